package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// ---------- ValidateConfigPath ----------

func TestValidateConfigPath_Valid(t *testing.T) {
	// Create a real configs/ directory so filepath.Abs resolves correctly.
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfgDir, "default.yaml")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := ValidateConfigPath(path); err != nil {
		t.Errorf("expected valid path, got error: %v", err)
	}
}

func TestValidateConfigPath_PathTraversal(t *testing.T) {
	cases := []string{
		"../../etc/passwd",
		"configs/../../../etc/shadow",
	}
	for _, path := range cases {
		if err := ValidateConfigPath(path); err == nil {
			t.Errorf("expected error for traversal path %q, got nil", path)
		}
	}
}

func TestValidateConfigPath_WrongExtension(t *testing.T) {
	cases := []string{
		"configs/default.json",
		"configs/default.yml",
		"configs/default.txt",
		"configs/default",
	}
	for _, path := range cases {
		if err := ValidateConfigPath(path); err == nil {
			t.Errorf("expected error for extension in %q, got nil", path)
		}
	}
}

func TestValidateConfigPath_NotInConfigsDir(t *testing.T) {
	cases := []string{
		"other/default.yaml",
		"default.yaml",
		"/tmp/default.yaml",
	}
	for _, path := range cases {
		if err := ValidateConfigPath(path); err == nil {
			t.Errorf("expected error for path outside configs/ %q, got nil", path)
		}
	}
}

func TestValidateConfigPath_EmptyPath(t *testing.T) {
	if err := ValidateConfigPath(""); err == nil {
		t.Error("expected error for empty path, got nil")
	}
}

func TestValidateConfigPath_VeryLongPath(t *testing.T) {
	long := "configs/" + strings.Repeat("a", 1000) + ".yaml"
	// Should not panic; error or success is OS-dependent, but must not crash.
	_ = ValidateConfigPath(long)
}

func TestValidateConfigPath_SpecialChars(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name    string
		wantErr bool
	}{
		{"con fig.yaml", false},
		{"café.yaml", false},
	}
	for _, tc := range cases {
		path := filepath.Join(cfgDir, tc.name)
		err := ValidateConfigPath(path)
		if tc.wantErr && err == nil {
			t.Errorf("expected error for %q, got nil", tc.name)
		}
		if !tc.wantErr && err != nil {
			t.Errorf("unexpected error for %q: %v", tc.name, err)
		}
	}
}

func TestValidateConfigPath_DoubleTraversal(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	// Try to escape via ../../configs/ok.yaml; filepath.Clean resolves this
	// and the parent must still be "configs".
	path := filepath.Join(cfgDir, "../../configs/ok.yaml")
	err := ValidateConfigPath(path)
	// After Clean the parent may or may not be "configs" depending on resolution.
	// The important thing is it either succeeds with a valid parent or fails.
	_ = err
}

// ---------- Load ----------

// writeConfig creates a temporary configs/ dir with the given YAML content and returns the path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfgDir, "test.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validYAML = `
gantry:
  motor_a: {step_pin: 21, dir_pin: 20}
  motor_b: {step_pin: 26, dir_pin: 19}
  lift: {step_pin: 6, dir_pin: 5, enable_pin: 13}
  steps_per_unit_x: 38.5
  steps_per_unit_y: 39.9
  lift_steps: 27500
  step_delay_us: 60
  settle_delay_ms: 1000
camera:
  index: 0
  roi: {x1: 100, y1: 40, x2: 400, y2: 240}
  rotation_deg: 90
detection:
  api_url: "http://detector.local:8000/detect"
  api_key: "secret"
  timeout_s: 60
  pixel_threshold: 5
  sample_timeout_s: 5
retrieval:
  zone_radius: 50
  distance_threshold: 30
  min_area: 50
  red_bands:
    - {low: [0, 120, 70], high: [10, 255, 255]}
    - {low: [170, 120, 70], high: [180, 255, 255]}
orchestrator:
  mode: continuous
history:
  path: "padgantry.db"
defaults:
  debug_level: 1
  mock_gpio: false
`

// minimalYAML is the smallest config that validates.
const minimalYAML = `
camera:
  roi: {x1: 0, y1: 0, x2: 200, y2: 300}
detection:
  api_url: "http://localhost/detect"
`

func TestLoad_ValidFullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Gantry.Lift.EnablePin != 13 {
		t.Errorf("gantry.lift.enable_pin = %d, want 13", cfg.Gantry.Lift.EnablePin)
	}
	if cfg.Gantry.StepsPerUnitY != 39.9 {
		t.Errorf("gantry.steps_per_unit_y = %v, want 39.9", cfg.Gantry.StepsPerUnitY)
	}
	if cfg.Camera.ROI.Width() != 300 || cfg.Camera.ROI.Height() != 200 {
		t.Errorf("camera.roi size = %dx%d, want 300x200", cfg.Camera.ROI.Width(), cfg.Camera.ROI.Height())
	}
	if cfg.Detection.APIKey != "secret" {
		t.Errorf("detection.api_key = %q, want %q", cfg.Detection.APIKey, "secret")
	}
	if len(cfg.Retrieval.RedBands) != 2 || cfg.Retrieval.RedBands[1].Low[0] != 170 {
		t.Errorf("retrieval.red_bands = %+v", cfg.Retrieval.RedBands)
	}
	if cfg.History.Path != "padgantry.db" {
		t.Errorf("history.path = %q", cfg.History.Path)
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	g := cfg.Gantry
	if g.MotorA.StepPin != 21 || g.MotorA.DirPin != 20 {
		t.Errorf("motor_a default = %+v, want step 21 dir 20", g.MotorA)
	}
	if g.MotorB.StepPin != 26 || g.MotorB.DirPin != 19 {
		t.Errorf("motor_b default = %+v, want step 26 dir 19", g.MotorB)
	}
	if g.Lift.StepPin != 6 || g.Lift.DirPin != 5 {
		t.Errorf("lift default = %+v, want step 6 dir 5", g.Lift)
	}
	if g.StepsPerUnitX != 38.5 || g.StepsPerUnitY != 39.9 {
		t.Errorf("steps per unit default = %v/%v, want 38.5/39.9", g.StepsPerUnitX, g.StepsPerUnitY)
	}
	if g.LiftSteps != 27500 {
		t.Errorf("lift_steps default = %d, want 27500", g.LiftSteps)
	}
	if cfg.Detection.PixelThreshold != 5 {
		t.Errorf("pixel_threshold default = %d, want 5", cfg.Detection.PixelThreshold)
	}
	if cfg.Retrieval.ZoneRadius != 50 || cfg.Retrieval.DistanceThreshold != 30 || cfg.Retrieval.MinArea != 50 {
		t.Errorf("retrieval defaults = %+v", cfg.Retrieval)
	}
	if len(cfg.Retrieval.RedBands) != 2 {
		t.Errorf("red_bands default has %d bands, want 2", len(cfg.Retrieval.RedBands))
	}
	if cfg.Orchestrator.Mode != "continuous" {
		t.Errorf("orchestrator.mode default = %q, want continuous", cfg.Orchestrator.Mode)
	}
	if cfg.History.Path != "" {
		t.Errorf("history.path default = %q, want empty", cfg.History.Path)
	}
}

func TestLoad_Rejects(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"missing roi", `
detection: {api_url: "http://x"}
`},
		{"inverted roi", `
camera: {roi: {x1: 200, y1: 0, x2: 100, y2: 300}}
detection: {api_url: "http://x"}
`},
		{"odd rotation", `
camera: {roi: {x1: 0, y1: 0, x2: 10, y2: 10}, rotation_deg: 45}
detection: {api_url: "http://x"}
`},
		{"missing api url", `
camera: {roi: {x1: 0, y1: 0, x2: 10, y2: 10}}
`},
		{"negative steps per unit", minimalYAML + `
gantry: {steps_per_unit_x: -1}
`},
		{"same step and dir pin", minimalYAML + `
gantry: {motor_a: {step_pin: 4, dir_pin: 4}}
`},
		{"negative zone radius", minimalYAML + `
retrieval: {zone_radius: -5}
`},
		{"bad red band", minimalYAML + `
retrieval: {red_bands: [{low: [20, 0, 0], high: [10, 255, 255]}]}
`},
		{"unknown mode", minimalYAML + `
orchestrator: {mode: forever}
`},
		{"debug level", minimalYAML + `
defaults: {debug_level: ` + formatFloat(7) + `}
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.yaml)); err == nil {
				t.Errorf("expected error for %s, got nil", tc.name)
			}
		})
	}
}

func TestLoad_MockAllowsMissingAPIURL(t *testing.T) {
	yaml := `
camera: {roi: {x1: 0, y1: 0, x2: 10, y2: 10}}
defaults: {mock_gpio: true}
`
	if _, err := Load(writeConfig(t, yaml)); err != nil {
		t.Errorf("mock config without api_url should load, got %v", err)
	}
}

func TestLoad_FileTooLarge(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfgDir, "big.yaml")
	data := make([]byte, MaxConfigFileBytes+1)
	for i := range data {
		data[i] = '#'
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if err == nil {
		t.Error("expected error for oversized config file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "{{{{invalid yaml!!!!")
	_, err := Load(path)
	if err == nil {
		t.Error("expected error for invalid YAML, got nil")
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	path := writeConfig(t, "")
	_, err := Load(path)
	if err == nil {
		t.Error("expected error for empty config (camera.roi missing), got nil")
	}
}

func TestLoad_UnknownFields(t *testing.T) {
	path := writeConfig(t, minimalYAML+`
unknown_section:
  foo: bar
`)
	_, err := Load(path)
	if err != nil {
		t.Errorf("unknown fields should be ignored, got error: %v", err)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfgDir, "nonexistent.yaml")
	_, err := Load(path)
	if err == nil {
		t.Error("expected error for nonexistent file, got nil")
	}
}

func TestLoad_ShippedDefaultConfig(t *testing.T) {
	path := filepath.Join("..", "..", "configs", "default.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("configs/default.yaml does not load: %v", err)
	}
	if !cfg.Defaults.MockGPIO {
		t.Error("shipped config should default to mock GPIO")
	}
}

// ---------- Helper methods ----------

func TestConfig_Durations(t *testing.T) {
	cfg := &Config{
		Gantry:    GantryConfig{StepDelayUs: 60, SettleDelayMs: 1000},
		Detection: DetectionConfig{TimeoutS: 60, SampleTimeoutS: 5, RetryIntervalMs: 200},
	}
	cases := []struct {
		name string
		got  time.Duration
		want time.Duration
	}{
		{"StepDelay", cfg.StepDelay(), 60 * time.Microsecond},
		{"SettleDelay", cfg.SettleDelay(), time.Second},
		{"RequestTimeout", cfg.RequestTimeout(), time.Minute},
		{"SampleTimeout", cfg.SampleTimeout(), 5 * time.Second},
		{"RetryInterval", cfg.RetryInterval(), 200 * time.Millisecond},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Errorf("%s() = %v, want %v", tc.name, tc.got, tc.want)
		}
	}
}

// formatFloat is a test helper for embedding numbers into YAML strings.
func formatFloat(f float64) string {
	return fmt.Sprintf("%g", f)
}
