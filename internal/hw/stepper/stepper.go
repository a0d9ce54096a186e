package stepper

import (
	"time"

	"github.com/cjeanneret/padgantry/internal/debug"
	"github.com/cjeanneret/padgantry/internal/hw/gpio"
)

// DefaultStepDelay is the pause after each step pulse when none is configured.
const DefaultStepDelay = 60 * time.Microsecond

// Config holds the hardware configuration for a stepper motor.
type Config struct {
	Name      string // used in log output only
	StepPin   int
	DirPin    int
	EnablePin int           // driver ENABLE pin (BCM). 0 = not used. Active LOW (LOW=enabled).
	StepDelay time.Duration // pause after each STEP pulse; the only timing budget, no ramping.
}

// Stepper drives one STEP/DIR motor driver.
type Stepper struct {
	gpio  gpio.Driver
	cfg   Config
	delay time.Duration
}

// NewStepper creates a new stepper motor controller.
// cfg.StepDelay: if 0, defaults to DefaultStepDelay.
func NewStepper(g gpio.Driver, cfg Config) *Stepper {
	_ = g.SetupPin(cfg.StepPin, gpio.Output)
	_ = g.SetupPin(cfg.DirPin, gpio.Output)

	delay := cfg.StepDelay
	if delay <= 0 {
		delay = DefaultStepDelay
	}

	s := &Stepper{
		gpio:  g,
		cfg:   cfg,
		delay: delay,
	}

	if cfg.EnablePin > 0 {
		_ = g.SetupPin(cfg.EnablePin, gpio.Output)
		_ = g.WritePin(cfg.EnablePin, gpio.Low) // enable by default
	}

	return s
}

// Name returns the configured motor name.
func (s *Stepper) Name() string { return s.cfg.Name }

// SetDirection writes the DIR pin.
func (s *Stepper) SetDirection(level gpio.Level) error {
	return s.gpio.WritePin(s.cfg.DirPin, level)
}

// Step emits n pulses in the current direction, pausing StepDelay after each.
func (s *Stepper) Step(n int) error {
	for i := 0; i < n; i++ {
		if err := s.pulse(); err != nil {
			return err
		}
		time.Sleep(s.delay)
	}
	return nil
}

// MoveSteps moves the motor by a number of steps (positive or negative).
// Positive drives DIR HIGH, negative drives DIR LOW.
func (s *Stepper) MoveSteps(steps int) error {
	if steps == 0 {
		return nil
	}

	dirLevel := gpio.High
	direction := "forward"
	if steps < 0 {
		dirLevel = gpio.Low
		direction = "backward"
		steps = -steps
	}

	debug.Printf("Stepper %s: moving %d steps (%s) on pin %d", s.cfg.Name, steps, direction, s.cfg.StepPin)

	if err := s.SetDirection(dirLevel); err != nil {
		return err
	}
	return s.Step(steps)
}

// pulse produces one LOW->HIGH edge on the STEP pin; drivers step on the rising edge.
func (s *Stepper) pulse() error {
	if err := s.gpio.WritePin(s.cfg.StepPin, gpio.Low); err != nil {
		return err
	}
	return s.gpio.WritePin(s.cfg.StepPin, gpio.High)
}

// Enable turns on the motor driver (ENABLE=LOW). Motors hold position.
func (s *Stepper) Enable() error {
	if s.cfg.EnablePin <= 0 {
		return nil
	}
	return s.gpio.WritePin(s.cfg.EnablePin, gpio.Low)
}

// Disable turns off the motor driver (ENABLE=HIGH). Motors freewheel.
func (s *Stepper) Disable() error {
	if s.cfg.EnablePin <= 0 {
		return nil
	}
	return s.gpio.WritePin(s.cfg.EnablePin, gpio.High)
}

// Gang pulses several motors in lockstep: every motor gets one pulse per
// step and the delay is paid once per step, not once per motor. Belt-coupled
// axes where two motors must turn together use this.
type Gang struct {
	motors []*Stepper
	delay  time.Duration
}

// NewGang groups motors that always step together.
func NewGang(delay time.Duration, motors ...*Stepper) *Gang {
	if delay <= 0 {
		delay = DefaultStepDelay
	}
	return &Gang{motors: motors, delay: delay}
}

// Step emits n lockstep pulses.
func (g *Gang) Step(n int) error {
	for i := 0; i < n; i++ {
		for _, m := range g.motors {
			if err := m.pulse(); err != nil {
				return err
			}
		}
		time.Sleep(g.delay)
	}
	return nil
}

// Enable enables every motor in the gang.
func (g *Gang) Enable() error {
	for _, m := range g.motors {
		if err := m.Enable(); err != nil {
			return err
		}
	}
	return nil
}

// Disable disables every motor in the gang.
func (g *Gang) Disable() error {
	for _, m := range g.motors {
		if err := m.Disable(); err != nil {
			return err
		}
	}
	return nil
}
