package placement

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cjeanneret/padgantry/internal/debug"
	"github.com/cjeanneret/padgantry/internal/logic/detection"
	"github.com/cjeanneret/padgantry/internal/logic/geometry"
	"github.com/cjeanneret/padgantry/internal/logic/inventory"
	"github.com/cjeanneret/padgantry/internal/logic/motion"
)

// Sensor samples the camera. Each call grabs a fresh frame.
type Sensor interface {
	// Phones runs phone detection on a new frame. An empty result with a
	// nil error means the frame held no phones.
	Phones(ctx context.Context) ([]detection.Detection, error)
	// RedLights returns the centroids of lit charge indicators on a new frame.
	RedLights(ctx context.Context) ([]image.Point, error)
}

// Gantry executes physical sequences.
type Gantry interface {
	Run(seq motion.Sequence) motion.Result
	State() motion.State
}

// Recorder is told about every placement and retrieval. Errors are logged
// and never stop the cycle.
type Recorder interface {
	RecordPlacement(p Placement) error
	RecordRetrieval(p Placement, at time.Time) error
}

// Params tunes the cycle.
type Params struct {
	Mode               Mode
	PixelThreshold     int           // per-axis match bound between detection passes
	SampleTimeout      time.Duration // how long a detection state keeps sampling
	RetryInterval      time.Duration // pause after a failed or empty sample
	ZoneRadius         float64       // exclusion radius around an active placement
	RetrievalThreshold float64       // red light to placement distance that triggers retrieval
	Rest               geometry.Point
}

// Placement is a pad sitting on a phone. Placements are indexed by pad id,
// never by coordinate, so two phones that round to the same pixel cannot
// collide.
type Placement struct {
	ID       uuid.UUID       `json:"id"`
	PadID    int             `json:"pad_id"`
	PadHome  geometry.Point  `json:"pad_home"`
	Location geometry.Point  `json:"location"`
	Zone     geometry.Circle `json:"zone"`
	PlacedAt time.Time       `json:"placed_at"`
}

// Snapshot is a consistent view of the orchestrator for status output.
type Snapshot struct {
	State      State           `json:"state"`
	Mode       string          `json:"mode"`
	Carriage   motion.State    `json:"carriage"`
	Pads       []inventory.Pad `json:"pads"`
	Placements []Placement     `json:"placements"`
	Cycles     int             `json:"cycles"`
	Done       bool            `json:"done"`
}

// Orchestrator runs the placement cycle. It owns the inventory, the
// placements and their zones; only its own goroutine mutates them.
// Snapshot may be called from other goroutines.
type Orchestrator struct {
	gantry   Gantry
	sensor   Sensor
	params   Params
	recorder Recorder
	now      func() time.Time

	mu         sync.RWMutex
	inv        *inventory.Inventory
	placements map[int]*Placement
	carriage   motion.State
	state      State
	cycles     int
	done       bool

	// per-cycle scratch, only touched by the control goroutine
	first     []detection.Detection
	confirmed []image.Point
	queue     []int
}

// New creates an orchestrator in AwaitFirstDetection.
func New(g Gantry, s Sensor, inv *inventory.Inventory, p Params) *Orchestrator {
	return &Orchestrator{
		gantry:     g,
		sensor:     s,
		params:     p,
		now:        time.Now,
		inv:        inv,
		placements: make(map[int]*Placement),
		carriage:   g.State(),
		state:      AwaitFirstDetection,
	}
}

// SetRecorder attaches a recorder. Pass nil to detach.
func (o *Orchestrator) SetRecorder(r Recorder) { o.recorder = r }

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Done reports whether a single-shot run has finished.
func (o *Orchestrator) Done() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.done
}

// Run steps the cycle until ctx is cancelled or a step fails. Cancellation
// is only observed between steps, so a sequence that has started always
// finishes first. A cancelled context is a normal stop and returns nil.
func (o *Orchestrator) Run(ctx context.Context) error {
	for !o.Done() {
		if ctx.Err() != nil {
			return nil
		}
		if err := o.Step(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
	return nil
}

// Step runs the current state once and moves to the next one. Errors are
// hardware failures inside a sequence or an inconsistent internal state;
// both leave the machine in an unknown physical state.
func (o *Orchestrator) Step(ctx context.Context) error {
	var (
		next State
		err  error
	)
	cur := o.State()
	switch cur {
	case AwaitFirstDetection:
		next, err = o.awaitFirst(ctx)
	case AwaitSecondDetection:
		next, err = o.awaitSecond(ctx)
	case AssignAndPlace:
		next, err = o.assignAndPlace()
	case WatchForCompletion:
		next, err = o.watch(ctx)
	case Retrieve:
		next, err = o.retrieve()
	default:
		return fmt.Errorf("unknown state %v", cur)
	}
	if err != nil {
		return err
	}
	if err := o.Consistent(); err != nil {
		return err
	}

	o.mu.Lock()
	if next == AwaitFirstDetection && cur != AwaitFirstDetection {
		o.cycles++
	}
	o.state = next
	o.mu.Unlock()
	if next != cur {
		debug.State(cur.String(), next.String())
	}
	return nil
}

// afterIdle is where a detection state goes when it found nothing to do.
// With pads out, the cycle still has to look for finished phones.
func (o *Orchestrator) afterIdle() State {
	if o.activeCount() > 0 {
		return WatchForCompletion
	}
	return AwaitFirstDetection
}

func (o *Orchestrator) awaitFirst(ctx context.Context) (State, error) {
	o.first, o.confirmed, o.queue = nil, nil, nil

	var found []detection.Detection
	ok, err := o.sample(ctx, "first detection", func(ctx context.Context) (bool, error) {
		ds, err := o.sensor.Phones(ctx)
		if err != nil {
			return false, err
		}
		found = ds
		return len(ds) > 0, nil
	})
	if err != nil {
		return AwaitFirstDetection, err
	}
	if !ok {
		debug.Verbose("First detection: no phones within %v", o.params.SampleTimeout)
		return o.afterIdle(), nil
	}
	debug.Live("First detection found %d phone(s)", len(found))
	o.first = found
	return AwaitSecondDetection, nil
}

func (o *Orchestrator) awaitSecond(ctx context.Context) (State, error) {
	var confirmed []image.Point
	ok, err := o.sample(ctx, "second detection", func(ctx context.Context) (bool, error) {
		ds, err := o.sensor.Phones(ctx)
		if err != nil {
			return false, err
		}
		matched := detection.Confirm(o.first, ds, o.params.PixelThreshold)
		confirmed = o.ExcludeOccupied(matched)
		if dropped := len(matched) - len(confirmed); dropped > 0 {
			debug.Verbose("Second detection: %d point(s) inside occupied zones", dropped)
		}
		return len(confirmed) > 0, nil
	})
	if err != nil {
		return AwaitSecondDetection, err
	}
	if !ok {
		debug.Verbose("Second detection: nothing new to serve")
		return o.afterIdle(), nil
	}
	debug.Live("Confirmed %d phone(s): %v", len(confirmed), confirmed)
	o.confirmed = confirmed
	return AssignAndPlace, nil
}

func (o *Orchestrator) assignAndPlace() (State, error) {
	defer func() { o.confirmed = nil }()

	for _, pt := range o.confirmed {
		phone := geometry.FromImage(pt)

		o.mu.Lock()
		pad, err := o.inv.Assign(phone)
		o.mu.Unlock()
		if errors.Is(err, inventory.ErrUnavailable) {
			debug.Info("No available charging pad for phone at %v, skipping", phone)
			continue
		}
		if err != nil {
			return AssignAndPlace, err
		}

		debug.Live("Placing pad %d from %v to %v", pad.ID, pad.Home, phone)
		res := o.gantry.Run(placeSequence(pad.Home, phone, o.params.Rest))
		o.refreshCarriage()

		switch {
		case res.Reached(placeDone):
			o.addPlacement(pad, phone)
		case !res.Reached(placePicked):
			// Pad never left its home.
			o.mu.Lock()
			_ = o.inv.Release(pad.ID)
			o.mu.Unlock()
		default:
			debug.Info("Pad %d is on the carriage after a failed placement", pad.ID)
		}
		if !res.OK() {
			return AssignAndPlace, fmt.Errorf("placement of pad %d: %w", pad.ID, res.Err)
		}
	}

	if o.params.Mode == SingleShot {
		o.mu.Lock()
		o.done = true
		o.mu.Unlock()
		return AssignAndPlace, nil
	}
	return WatchForCompletion, nil
}

func (o *Orchestrator) watch(ctx context.Context) (State, error) {
	if o.activeCount() == 0 {
		return Retrieve, nil
	}

	var lights []image.Point
	ok, err := o.sample(ctx, "red light detection", func(ctx context.Context) (bool, error) {
		ls, err := o.sensor.RedLights(ctx)
		if err != nil {
			return false, err
		}
		lights = ls
		return true, nil
	})
	if err != nil {
		return WatchForCompletion, err
	}
	if !ok {
		return Retrieve, nil
	}

	o.queue = o.DueForRetrieval(lights)
	if len(o.queue) > 0 {
		debug.Live("Charging complete for pad(s) %v", o.queue)
	}
	return Retrieve, nil
}

func (o *Orchestrator) retrieve() (State, error) {
	defer func() { o.queue = nil }()

	for _, padID := range o.queue {
		o.mu.RLock()
		p, ok := o.placements[padID]
		o.mu.RUnlock()
		if !ok {
			continue
		}
		pl := *p

		debug.Live("Retrieving pad %d from %v", pl.PadID, pl.Location)
		res := o.gantry.Run(retrieveSequence(pl.Location, pl.PadHome, o.params.Rest))
		o.refreshCarriage()

		switch {
		case res.Reached(retrieveReturned):
			o.removePlacement(pl)
		case res.Reached(retrievePicked):
			debug.Info("Pad %d is on the carriage after a failed retrieval", pl.PadID)
		}
		if !res.OK() {
			return Retrieve, fmt.Errorf("retrieval of pad %d: %w", pl.PadID, res.Err)
		}
	}
	return AwaitFirstDetection, nil
}

// sample calls try until it reports success or the sample timeout runs out.
// Errors from try are transient sensing failures: logged and retried.
// Only context cancellation is returned.
func (o *Orchestrator) sample(ctx context.Context, what string, try func(context.Context) (bool, error)) (bool, error) {
	deadline := o.now().Add(o.params.SampleTimeout)
	for {
		ok, err := try(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			debug.Live("%s: %v", what, err)
		} else if ok {
			return true, nil
		}

		if !o.now().Before(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(o.params.RetryInterval):
		}
	}
}

// ExcludeOccupied drops every point inside (or on the edge of) an active
// placement's zone.
func (o *Orchestrator) ExcludeOccupied(points []image.Point) []image.Point {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]image.Point, 0, len(points))
	for _, pt := range points {
		p := geometry.FromImage(pt)
		occupied := false
		for _, pl := range o.placements {
			if pl.Zone.Contains(p) {
				occupied = true
				break
			}
		}
		if !occupied {
			out = append(out, pt)
		}
	}
	return out
}

// DueForRetrieval returns, in pad order, the placements with a red light
// within the retrieval threshold.
func (o *Orchestrator) DueForRetrieval(lights []image.Point) []int {
	var due []int
	for _, pl := range o.Placements() {
		for _, l := range lights {
			if geometry.Distance(pl.Location, geometry.FromImage(l)) <= o.params.RetrievalThreshold {
				due = append(due, pl.PadID)
				break
			}
		}
	}
	return due
}

// Placements returns the active placements ordered by pad id.
func (o *Orchestrator) Placements() []Placement {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]Placement, 0, len(o.placements))
	for _, p := range o.placements {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PadID < out[j].PadID })
	return out
}

// Consistent checks that pads in use, placements and zones agree.
func (o *Orchestrator) Consistent() error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	inUse := o.inv.InUse()
	if inUse != len(o.placements) {
		return fmt.Errorf("inconsistent state: %d pads in use, %d placements", inUse, len(o.placements))
	}
	for id := range o.placements {
		if pad, ok := o.inv.Pad(id); !ok || pad.Available {
			return fmt.Errorf("inconsistent state: placement for pad %d but pad is available", id)
		}
	}
	return nil
}

// Snapshot returns a copy of the orchestrator state.
func (o *Orchestrator) Snapshot() Snapshot {
	placements := o.Placements()
	o.mu.RLock()
	defer o.mu.RUnlock()
	mode := "continuous"
	if o.params.Mode == SingleShot {
		mode = "single_shot"
	}
	return Snapshot{
		State:      o.state,
		Mode:       mode,
		Carriage:   o.carriage,
		Pads:       o.inv.Pads(),
		Placements: placements,
		Cycles:     o.cycles,
		Done:       o.done,
	}
}

func (o *Orchestrator) activeCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.placements)
}

func (o *Orchestrator) refreshCarriage() {
	st := o.gantry.State()
	o.mu.Lock()
	o.carriage = st
	o.mu.Unlock()
}

func (o *Orchestrator) addPlacement(pad inventory.Pad, phone geometry.Point) {
	pl := &Placement{
		ID:       uuid.New(),
		PadID:    pad.ID,
		PadHome:  pad.Home,
		Location: phone,
		Zone:     geometry.Circle{Center: phone, Radius: o.params.ZoneRadius},
		PlacedAt: o.now(),
	}
	o.mu.Lock()
	o.placements[pad.ID] = pl
	o.mu.Unlock()

	debug.Placement(pad.ID, phone.X, phone.Y)
	if o.recorder != nil {
		if err := o.recorder.RecordPlacement(*pl); err != nil {
			debug.Error(fmt.Errorf("record placement: %w", err))
		}
	}
}

func (o *Orchestrator) removePlacement(pl Placement) {
	o.mu.Lock()
	_ = o.inv.Release(pl.PadID)
	delete(o.placements, pl.PadID)
	o.mu.Unlock()

	debug.Retrieval(pl.PadID, pl.Location.X, pl.Location.Y)
	if o.recorder != nil {
		if err := o.recorder.RecordRetrieval(pl, o.now()); err != nil {
			debug.Error(fmt.Errorf("record retrieval: %w", err))
		}
	}
}
