package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/cjeanneret/padgantry/internal/config"
	"github.com/cjeanneret/padgantry/internal/debug"
	"github.com/cjeanneret/padgantry/internal/hw/gpio"
	"github.com/cjeanneret/padgantry/internal/hw/stepper"
	"github.com/cjeanneret/padgantry/internal/logic/geometry"
	"github.com/cjeanneret/padgantry/internal/logic/inventory"
	"github.com/cjeanneret/padgantry/internal/logic/motion"
	"github.com/cjeanneret/padgantry/internal/logic/placement"
	"github.com/cjeanneret/padgantry/internal/phoneapi"
	"github.com/cjeanneret/padgantry/internal/store/history"
	"github.com/cjeanneret/padgantry/internal/vision"
	"github.com/cjeanneret/padgantry/internal/web"
)

// cliOverrides holds command line values that replace config settings.
// Zero values mean "use config".
type cliOverrides struct {
	DebugLevel int // -1 = unset
	Mode       string
}

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web status server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	debugLevel := flag.Int("debug", -1, "override debug level (0-4)")
	mode := flag.String("mode", "", "override orchestrator mode (continuous or single_shot)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := config.ValidateConfigPath(*cfgPath); err != nil {
		log.Fatalf("invalid config path: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	overrides := cliOverrides{DebugLevel: *debugLevel, Mode: *mode}
	if err := validateCLIOverrides(overrides); err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}
	applyOverrides(cfg, overrides)

	if err := run(ctx, cfg, *cfgPath, webPort.port()); err != nil {
		log.Printf("padgantry: %v", err)
		// Deferred cleanup in run has already released GPIO.
		os.Exit(1)
	}
}

// run wires the hardware and runs the placement cycle until ctx is
// cancelled. GPIO is released on every return path.
func run(ctx context.Context, cfg *config.Config, cfgPath string, port int) error {
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)

	// Initialize GPIO driver
	debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
	debug.Step(1, "Initializing GPIO driver")
	gpioDriver, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
	if err != nil {
		return fmt.Errorf("init GPIO: %w", err)
	}

	// Initialize stepper motors
	debug.Step(2, "Initializing gantry")
	ctrl := newController(gpioDriver, cfg)
	defer func() {
		if err := ctrl.Cleanup(); err != nil {
			log.Printf("gantry cleanup failed: %v", err)
		}
	}()
	debug.PrintStruct("Gantry config", cfg.Gantry)

	// Initialize camera
	debug.Step(3, "Initializing camera")
	cam, err := vision.OpenCamera(cfg.Camera.Index, cfg.Camera.ROI, cfg.Camera.RotationDeg)
	if err != nil {
		return fmt.Errorf("init camera: %w", err)
	}
	defer cam.Close()
	width, height, err := cam.Validate()
	if err != nil {
		return fmt.Errorf("validate camera: %w", err)
	}
	debug.Value("Working area", fmt.Sprintf("%dx%d", width, height))

	debug.Step(4, "Initializing detectors")
	client := phoneapi.NewClient(nil, cfg.Detection.APIURL, cfg.Detection.APIKey, cfg.RequestTimeout())
	station := vision.NewStation(cam, client, vision.NewRedLightDetector(cfg.Retrieval.RedBands, cfg.Retrieval.MinArea))
	debug.Value("Detection service", cfg.Detection.APIURL)

	params, err := buildParams(cfg)
	if err != nil {
		return err
	}
	inv := inventory.ForArea(width, height)
	for _, p := range inv.Pads() {
		debug.Verbose("Pad %d home %v", p.ID, p.Home)
	}
	orch := placement.New(motion.NewExecutor(ctrl, cfg.SettleDelay()), station, inv, params)

	var journal *history.Journal
	if cfg.History.Path != "" {
		debug.Step(5, "Opening history journal")
		journal, err = history.Open(cfg.History.Path)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer journal.Close()
		orch.SetRecorder(journal)
	}

	webErr := make(chan error, 1)
	if port > 0 {
		broadcaster := web.NewStatusBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))

		var historyFn web.HistoryFunc
		if journal != nil {
			historyFn = func(limit int) (any, error) { return journal.Recent(limit) }
		}
		status := func() any { return orch.Snapshot() }
		srv := web.NewServer(fmt.Sprintf(":%d", port), broadcaster, status, station.LastFrame, historyFn, publicConfig(cfg))
		go func() { webErr <- srv.Run(ctx) }()
		go broadcaster.PublishState(ctx, 500*time.Millisecond, status)
	}

	debug.Section("Placement cycle")
	if err := orch.Run(ctx); err != nil {
		return err
	}
	debug.Info("Placement cycle stopped after %d cycle(s)", orch.Snapshot().Cycles)

	if port > 0 {
		// Keep serving status until asked to stop.
		select {
		case <-ctx.Done():
		case err := <-webErr:
			if err != nil {
				return fmt.Errorf("web server: %w", err)
			}
		}
	}
	return nil
}

func newController(g gpio.Driver, cfg *config.Config) *motion.Controller {
	delay := cfg.StepDelay()
	motor := func(name string, m config.MotorConfig) *stepper.Stepper {
		return stepper.NewStepper(g, stepper.Config{
			Name:      name,
			StepPin:   m.StepPin,
			DirPin:    m.DirPin,
			EnablePin: m.EnablePin,
			StepDelay: delay,
		})
	}
	return motion.NewController(
		motor("a", cfg.Gantry.MotorA),
		motor("b", cfg.Gantry.MotorB),
		motor("lift", cfg.Gantry.Lift),
		g,
		motion.Config{
			StepsPerUnitX: cfg.Gantry.StepsPerUnitX,
			StepsPerUnitY: cfg.Gantry.StepsPerUnitY,
			LiftSteps:     cfg.Gantry.LiftSteps,
			StepDelay:     delay,
		},
	)
}

// buildParams maps configuration onto the placement cycle's parameters.
func buildParams(cfg *config.Config) (placement.Params, error) {
	mode, err := placement.ParseMode(cfg.Orchestrator.Mode)
	if err != nil {
		return placement.Params{}, err
	}
	return placement.Params{
		Mode:               mode,
		PixelThreshold:     cfg.Detection.PixelThreshold,
		SampleTimeout:      cfg.SampleTimeout(),
		RetryInterval:      cfg.RetryInterval(),
		ZoneRadius:         cfg.Retrieval.ZoneRadius,
		RetrievalThreshold: cfg.Retrieval.DistanceThreshold,
		Rest:               geometry.Pt(0, 0),
	}, nil
}

// publicConfig returns a copy of cfg safe to serve over HTTP.
func publicConfig(cfg *config.Config) config.Config {
	out := *cfg
	if out.Detection.APIKey != "" {
		out.Detection.APIKey = "***"
	}
	return out
}

// validateCLIOverrides checks the values given on the command line.
func validateCLIOverrides(o cliOverrides) error {
	if o.DebugLevel < -1 || o.DebugLevel > 4 {
		return fmt.Errorf("debug must be between 0 and 4, got %d", o.DebugLevel)
	}
	if o.Mode != "" {
		if _, err := placement.ParseMode(o.Mode); err != nil {
			return err
		}
	}
	return nil
}

// applyOverrides mutates cfg with overrides. Unset values are skipped.
func applyOverrides(cfg *config.Config, o cliOverrides) {
	if o.DebugLevel >= 0 {
		cfg.Defaults.DebugLevel = o.DebugLevel
	}
	if o.Mode != "" {
		cfg.Orchestrator.Mode = o.Mode
	}
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return errors.New("port must be 1-65535, got " + s)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
