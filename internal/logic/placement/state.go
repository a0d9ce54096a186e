package placement

import "fmt"

// State is a step of the placement cycle.
type State int

const (
	AwaitFirstDetection State = iota
	AwaitSecondDetection
	AssignAndPlace
	WatchForCompletion
	Retrieve
)

func (s State) String() string {
	switch s {
	case AwaitFirstDetection:
		return "await_first_detection"
	case AwaitSecondDetection:
		return "await_second_detection"
	case AssignAndPlace:
		return "assign_and_place"
	case WatchForCompletion:
		return "watch_for_completion"
	case Retrieve:
		return "retrieve"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText renders the state name in JSON snapshots.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Mode selects how far the cycle runs.
type Mode int

const (
	// Continuous cycles forever: detect, place, watch, retrieve.
	Continuous Mode = iota
	// SingleShot detects once, places pads and stops. No retrieval.
	SingleShot
)

// ParseMode maps a config string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "continuous":
		return Continuous, nil
	case "single_shot":
		return SingleShot, nil
	default:
		return Continuous, fmt.Errorf("unknown orchestrator mode %q", s)
	}
}
