package config

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cjeanneret/padgantry/internal/logic/geometry"
	"github.com/cjeanneret/padgantry/internal/vision/hsv"
)

// MaxConfigFileBytes caps the size of a config file.
const MaxConfigFileBytes = 1 << 20

// MotorConfig holds the pins of one A4988-style stepper driver.
type MotorConfig struct {
	StepPin   int `yaml:"step_pin"`
	DirPin    int `yaml:"dir_pin"`
	EnablePin int `yaml:"enable_pin"` // ENABLE pin (BCM). 0 = not used. Active LOW.
}

// GantryConfig describes the two coupled horizontal motors and the lift.
type GantryConfig struct {
	MotorA        MotorConfig `yaml:"motor_a"`
	MotorB        MotorConfig `yaml:"motor_b"`
	Lift          MotorConfig `yaml:"lift"`
	StepsPerUnitX float64     `yaml:"steps_per_unit_x"` // steps per pixel along X
	StepsPerUnitY float64     `yaml:"steps_per_unit_y"` // steps per pixel along Y
	LiftSteps     int         `yaml:"lift_steps"`       // pulses for one full lift travel
	StepDelayUs   int         `yaml:"step_delay_us"`    // delay after each step pulse (µs)
	SettleDelayMs int         `yaml:"settle_delay_ms"`  // pause after each command of a sequence (ms)
}

// CameraConfig selects the capture device and the region it watches.
type CameraConfig struct {
	Index       int           `yaml:"index"`
	ROI         geometry.Rect `yaml:"roi"`
	RotationDeg int           `yaml:"rotation_deg"` // 0, 90, 180 or 270
}

// DetectionConfig points at the phone detection service.
type DetectionConfig struct {
	APIURL          string `yaml:"api_url"`
	APIKey          string `yaml:"api_key"`
	TimeoutS        int    `yaml:"timeout_s"`        // per request
	PixelThreshold  int    `yaml:"pixel_threshold"`  // per-axis match bound between the two passes
	SampleTimeoutS  int    `yaml:"sample_timeout_s"` // how long a detection state keeps sampling
	RetryIntervalMs int    `yaml:"retry_interval_ms"`
}

// RetrievalConfig tunes zone exclusion and the charge-complete signal.
type RetrievalConfig struct {
	ZoneRadius        float64    `yaml:"zone_radius"`        // pixels around an active placement
	DistanceThreshold float64    `yaml:"distance_threshold"` // red light to placement distance
	MinArea           float64    `yaml:"min_area"`           // smallest red blob, square pixels
	RedBands          []hsv.Band `yaml:"red_bands"`
}

// OrchestratorConfig selects how far the cycle runs.
type OrchestratorConfig struct {
	Mode string `yaml:"mode"` // "continuous" or "single_shot"
}

// HistoryConfig locates the placement journal.
type HistoryConfig struct {
	Path string `yaml:"path"` // empty = no journal
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int  `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO   bool `yaml:"mock_gpio"`   // use mock GPIO (true=dev/test, false=real Raspberry Pi)
}

// Config aggregates all application configuration.
type Config struct {
	Gantry       GantryConfig       `yaml:"gantry"`
	Camera       CameraConfig       `yaml:"camera"`
	Detection    DetectionConfig    `yaml:"detection"`
	Retrieval    RetrievalConfig    `yaml:"retrieval"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	History      HistoryConfig      `yaml:"history"`
	Defaults     DefaultsConfig     `yaml:"defaults"`
}

// ValidateConfigPath checks that path names a .yaml file directly inside a
// directory called configs, with no traversal left after cleaning.
func ValidateConfigPath(path string) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("config path %q must not contain '..'", path)
		}
	}
	clean := filepath.Clean(path)
	if filepath.Ext(clean) != ".yaml" {
		return fmt.Errorf("config path %q must have a .yaml extension", path)
	}
	abs, err := filepath.Abs(clean)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if filepath.Base(filepath.Dir(abs)) != "configs" {
		return fmt.Errorf("config file %q must be inside a configs/ directory", path)
	}
	return nil
}

// Load reads a YAML file, fills defaults and validates the result.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxConfigFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if len(data) > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file larger than %d bytes", MaxConfigFileBytes)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	g := &c.Gantry
	if g.MotorA == (MotorConfig{}) {
		g.MotorA = MotorConfig{StepPin: 21, DirPin: 20}
	}
	if g.MotorB == (MotorConfig{}) {
		g.MotorB = MotorConfig{StepPin: 26, DirPin: 19}
	}
	if g.Lift == (MotorConfig{}) {
		g.Lift = MotorConfig{StepPin: 6, DirPin: 5}
	}
	if g.StepsPerUnitX == 0 {
		g.StepsPerUnitX = 38.5
	}
	if g.StepsPerUnitY == 0 {
		g.StepsPerUnitY = 39.9
	}
	if g.LiftSteps == 0 {
		g.LiftSteps = 27500
	}
	if g.StepDelayUs == 0 {
		g.StepDelayUs = 60
	}
	if g.SettleDelayMs == 0 {
		g.SettleDelayMs = 1000
	}

	d := &c.Detection
	if d.TimeoutS == 0 {
		d.TimeoutS = 60
	}
	if d.PixelThreshold == 0 {
		d.PixelThreshold = 5
	}
	if d.SampleTimeoutS == 0 {
		d.SampleTimeoutS = 5
	}
	if d.RetryIntervalMs == 0 {
		d.RetryIntervalMs = 200
	}

	r := &c.Retrieval
	if r.ZoneRadius == 0 {
		r.ZoneRadius = 50
	}
	if r.DistanceThreshold == 0 {
		r.DistanceThreshold = 30
	}
	if r.MinArea == 0 {
		r.MinArea = hsv.DefaultMinArea
	}
	if len(r.RedBands) == 0 {
		r.RedBands = hsv.DefaultRedBands()
	}

	if c.Orchestrator.Mode == "" {
		c.Orchestrator.Mode = "continuous"
	}
}

// Validate checks a defaulted configuration.
func (c *Config) Validate() error {
	g := c.Gantry
	for name, m := range map[string]MotorConfig{"motor_a": g.MotorA, "motor_b": g.MotorB, "lift": g.Lift} {
		if m.StepPin <= 0 || m.DirPin <= 0 || m.EnablePin < 0 {
			return fmt.Errorf("gantry.%s: step_pin and dir_pin must be > 0, got %d/%d", name, m.StepPin, m.DirPin)
		}
		if m.StepPin == m.DirPin {
			return fmt.Errorf("gantry.%s: step_pin and dir_pin must differ", name)
		}
	}
	if !positive(g.StepsPerUnitX) || !positive(g.StepsPerUnitY) {
		return fmt.Errorf("gantry.steps_per_unit_x/y must be > 0, got %v/%v", g.StepsPerUnitX, g.StepsPerUnitY)
	}
	if g.LiftSteps < 0 || g.StepDelayUs < 0 || g.SettleDelayMs < 0 {
		return errors.New("gantry.lift_steps, step_delay_us and settle_delay_ms must be >= 0")
	}

	switch c.Camera.RotationDeg {
	case 0, 90, 180, 270:
	default:
		return fmt.Errorf("camera.rotation_deg must be 0, 90, 180 or 270, got %d", c.Camera.RotationDeg)
	}
	roi := c.Camera.ROI
	if roi.X1 < 0 || roi.Y1 < 0 || roi.X2 <= roi.X1 || roi.Y2 <= roi.Y1 {
		return fmt.Errorf("camera.roi must satisfy 0 <= x1 < x2 and 0 <= y1 < y2, got %+v", roi)
	}

	d := c.Detection
	if d.APIURL == "" && !c.Defaults.MockGPIO {
		return errors.New("detection.api_url is required")
	}
	if d.TimeoutS < 0 || d.PixelThreshold < 0 || d.SampleTimeoutS < 0 || d.RetryIntervalMs < 0 {
		return errors.New("detection timeouts and pixel_threshold must be >= 0")
	}

	r := c.Retrieval
	if !positive(r.ZoneRadius) || !positive(r.DistanceThreshold) || r.MinArea < 0 {
		return fmt.Errorf("retrieval.zone_radius and distance_threshold must be > 0, got %v/%v", r.ZoneRadius, r.DistanceThreshold)
	}
	for i, b := range r.RedBands {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("retrieval.red_bands[%d]: %w", i, err)
		}
	}

	switch c.Orchestrator.Mode {
	case "continuous", "single_shot":
	default:
		return fmt.Errorf("orchestrator.mode must be continuous or single_shot, got %q", c.Orchestrator.Mode)
	}

	if c.Defaults.DebugLevel < 0 || c.Defaults.DebugLevel > 4 {
		return fmt.Errorf("defaults.debug_level must be between 0 and 4, got %d", c.Defaults.DebugLevel)
	}
	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// StepDelay returns the delay after each step pulse.
func (c *Config) StepDelay() time.Duration {
	return time.Duration(c.Gantry.StepDelayUs) * time.Microsecond
}

// SettleDelay returns the pause after each command of a sequence.
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.Gantry.SettleDelayMs) * time.Millisecond
}

// RequestTimeout returns the detection service timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Detection.TimeoutS) * time.Second
}

// SampleTimeout returns how long a detection state keeps sampling.
func (c *Config) SampleTimeout() time.Duration {
	return time.Duration(c.Detection.SampleTimeoutS) * time.Second
}

// RetryInterval returns the pause between failed or empty samples.
func (c *Config) RetryInterval() time.Duration {
	return time.Duration(c.Detection.RetryIntervalMs) * time.Millisecond
}
