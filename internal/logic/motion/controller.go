package motion

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/cjeanneret/padgantry/internal/debug"
	"github.com/cjeanneret/padgantry/internal/hw/stepper"
	"github.com/cjeanneret/padgantry/internal/logic/geometry"
)

// Config holds the calibration of the gantry.
type Config struct {
	StepsPerUnitX float64       // left/right axis
	StepsPerUnitY float64       // forward/backward axis
	LiftSteps     int           // pulses for one full lift travel
	StepDelay     time.Duration // pause after each lockstep pulse of the belt motors
}

// Controller drives the gantry: two belt motors that move the carriage in
// the horizontal plane together, and a lift motor that toggles between its
// two end stops.
//
// It's open loop. There are no encoders or limit switches, so the position
// it reports is a belief built from commanded moves. A dropped step is not
// detectable here.
type Controller struct {
	motorA *stepper.Stepper
	motorB *stepper.Stepper
	plane  *stepper.Gang
	lift   *stepper.Stepper
	hw     io.Closer

	steps     *geometry.StepsCalculator
	liftSteps int

	state   State
	cleaned bool
}

// NewController wires the three motors. The carriage is assumed to be at
// (0,0) with the lift raised. hw is closed by Cleanup.
func NewController(a, b, lift *stepper.Stepper, hw io.Closer, cfg Config) *Controller {
	return &Controller{
		motorA:    a,
		motorB:    b,
		plane:     stepper.NewGang(cfg.StepDelay, a, b),
		lift:      lift,
		hw:        hw,
		steps:     geometry.NewStepsCalculator(cfg.StepsPerUnitX, cfg.StepsPerUnitY),
		liftSteps: cfg.LiftSteps,
	}
}

// State returns a snapshot of the believed carriage state.
func (c *Controller) State() State { return c.state }

// Position returns the believed carriage position.
func (c *Controller) Position() geometry.Point { return c.state.Position }

// SetDirection writes the DIR levels of both belt motors for dir.
func (c *Controller) SetDirection(dir Direction) error {
	p, ok := polarities[dir]
	if !ok {
		return fmt.Errorf("%w: %d", ErrInvalidDirection, int(dir))
	}
	if err := c.motorA.SetDirection(p.a); err != nil {
		return err
	}
	return c.motorB.SetDirection(p.b)
}

// MoveAxis travels distance units in dir and commits the move to the
// believed position once every pulse has been issued.
func (c *Controller) MoveAxis(dir Direction, distance float64) error {
	if _, ok := polarities[dir]; !ok {
		return fmt.Errorf("%w: %d", ErrInvalidDirection, int(dir))
	}
	if distance < 0 || math.IsNaN(distance) || math.IsInf(distance, 0) {
		return fmt.Errorf("%w: got %g", ErrNegativeDistance, distance)
	}
	if distance == 0 {
		return nil
	}

	if err := c.SetDirection(dir); err != nil {
		return err
	}

	var n int
	if dir.IsY() {
		n = c.steps.StepsY(distance)
	} else {
		n = c.steps.StepsX(distance)
	}
	debug.Move(axisName(dir), n, dir.String())

	if err := c.plane.Step(n); err != nil {
		return fmt.Errorf("move %s %.2f: %w", dir, distance, err)
	}

	if dir.IsY() {
		c.state.Position.Y += sign[dir] * distance
	} else {
		c.state.Position.X += sign[dir] * distance
	}
	return nil
}

// GoTo moves the carriage to (x, y): X first, then Y. The belts cannot move
// both axes at once, so the two legs never overlap.
func (c *Controller) GoTo(x, y float64) error {
	debug.Verbose("GoTo (%.1f, %.1f) from %v", x, y, c.state.Position)

	dx := x - c.state.Position.X
	switch {
	case dx > 0:
		if err := c.MoveAxis(Left, math.Abs(dx)); err != nil {
			return err
		}
	case dx < 0:
		if err := c.MoveAxis(Right, math.Abs(dx)); err != nil {
			return err
		}
	}

	dy := y - c.state.Position.Y
	switch {
	case dy > 0:
		return c.MoveAxis(Backward, math.Abs(dy))
	case dy < 0:
		return c.MoveAxis(Forward, math.Abs(dy))
	}
	return nil
}

// MoveVertical flips the lift to its other end stop. It always issues the
// same number of pulses; whether that picks or drops a pad depends on
// where the caller put the carriage.
func (c *Controller) MoveVertical() error {
	next := c.state.Lift.Toggled()
	steps := c.liftSteps
	if next == Lowered {
		steps = -steps
	}
	debug.Move("lift", c.liftSteps, next.String())

	if err := c.lift.MoveSteps(steps); err != nil {
		return fmt.Errorf("lift %s: %w", next, err)
	}
	c.state.Lift = next
	return nil
}

// Cleanup disables the motor drivers and releases the GPIO driver. Only the
// first call does anything, so it can sit in a defer and also run on a
// fatal path.
func (c *Controller) Cleanup() error {
	if c.cleaned {
		return nil
	}
	c.cleaned = true
	debug.Verbose("Motion cleanup at %v (lift %s)", c.state.Position, c.state.Lift)

	_ = c.plane.Disable()
	_ = c.lift.Disable()
	if c.hw == nil {
		return nil
	}
	return c.hw.Close()
}

func axisName(dir Direction) string {
	if dir.IsY() {
		return "y"
	}
	return "x"
}
