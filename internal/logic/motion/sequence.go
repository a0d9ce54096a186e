package motion

import (
	"fmt"
	"time"

	"github.com/cjeanneret/padgantry/internal/debug"
	"github.com/cjeanneret/padgantry/internal/logic/geometry"
)

// Mover is the part of Controller a sequence needs.
type Mover interface {
	GoTo(x, y float64) error
	MoveVertical() error
	State() State
}

// CommandKind selects what a Command does.
type CommandKind int

const (
	CmdGoTo CommandKind = iota
	CmdLift
)

// Command is one atomic physical action.
type Command struct {
	Kind   CommandKind
	Target geometry.Point // CmdGoTo only
	Label  string
}

// GoTo builds a horizontal move command.
func GoTo(label string, p geometry.Point) Command {
	return Command{Kind: CmdGoTo, Target: p, Label: label}
}

// Lift builds a lift toggle command.
func Lift(label string) Command {
	return Command{Kind: CmdLift, Label: label}
}

// Sequence is a fixed list of commands that must run to completion.
type Sequence struct {
	Name     string
	Commands []Command
}

// Result reports how far a sequence got.
type Result struct {
	Sequence  string
	Completed int
	Total     int
	Err       error
}

// OK reports whether every command ran.
func (r Result) OK() bool { return r.Err == nil && r.Completed == r.Total }

// Partial reports whether the sequence stopped after doing some, but not
// all, of its commands. Physical and logical state may disagree after a
// partial run.
func (r Result) Partial() bool { return r.Completed > 0 && r.Completed < r.Total }

// Reached reports whether command i (0-based) completed.
func (r Result) Reached(i int) bool { return r.Completed > i }

func (r Result) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: %d/%d commands, error: %v", r.Sequence, r.Completed, r.Total, r.Err)
	}
	return fmt.Sprintf("%s: %d/%d commands", r.Sequence, r.Completed, r.Total)
}

// Executor runs sequences one command at a time with a settle pause after
// each command so the carriage stops swinging before the next one.
type Executor struct {
	mover  Mover
	settle time.Duration
}

// NewExecutor creates an executor for m.
func NewExecutor(m Mover, settle time.Duration) *Executor {
	return &Executor{mover: m, settle: settle}
}

// State returns the mover's believed carriage state.
func (e *Executor) State() State { return e.mover.State() }

// Run executes seq. It takes no context: once started, a sequence either
// finishes or stops on a hardware error.
func (e *Executor) Run(seq Sequence) Result {
	res := Result{Sequence: seq.Name, Total: len(seq.Commands)}
	for i, cmd := range seq.Commands {
		debug.Step(i+1, seq.Name+": "+cmd.Label)

		var err error
		switch cmd.Kind {
		case CmdGoTo:
			err = e.mover.GoTo(cmd.Target.X, cmd.Target.Y)
		case CmdLift:
			err = e.mover.MoveVertical()
		default:
			err = fmt.Errorf("unknown command kind %d", cmd.Kind)
		}
		if err != nil {
			res.Err = fmt.Errorf("%s step %d (%s): %w", seq.Name, i+1, cmd.Label, err)
			return res
		}
		res.Completed++
		time.Sleep(e.settle)
	}
	return res
}
