package motion

import "github.com/cjeanneret/padgantry/internal/logic/geometry"

// LiftState is the vertical carriage position. It only ever toggles.
type LiftState int

const (
	Raised LiftState = iota
	Lowered
)

func (l LiftState) String() string {
	if l == Lowered {
		return "lowered"
	}
	return "raised"
}

// Toggled returns the opposite state.
func (l LiftState) Toggled() LiftState {
	if l == Raised {
		return Lowered
	}
	return Raised
}

// State is what the controller believes about the carriage. Nothing measures
// it: Position is the signed sum of every committed move since start, and a
// step lost by a driver or motor makes it silently wrong.
type State struct {
	Position geometry.Point `json:"position"`
	Lift     LiftState      `json:"lift"`
}

// MarshalText lets LiftState render as a word in JSON snapshots.
func (l LiftState) MarshalText() ([]byte, error) { return []byte(l.String()), nil }
