package motion

import (
	"errors"
	"fmt"

	"github.com/cjeanneret/padgantry/internal/hw/gpio"
)

var (
	// ErrInvalidDirection is returned for any direction outside the four axis moves.
	ErrInvalidDirection = errors.New("invalid direction")
	// ErrNegativeDistance is returned when an axis move is asked to travel a negative distance.
	ErrNegativeDistance = errors.New("distance must be >= 0")
)

// Direction is a horizontal move along one of the two logical axes.
// Forward/Backward move along Y, Left/Right along X.
type Direction int

const (
	Forward Direction = iota + 1
	Backward
	Left
	Right
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// IsY reports whether d moves along the forward/backward axis.
func (d Direction) IsY() bool { return d == Forward || d == Backward }

// polarity is the DIR level pair (motor A, motor B) for a direction.
// The table reflects how the belts are wired on the machine; it is not
// derived from the geometry.
type polarity struct{ a, b gpio.Level }

var polarities = map[Direction]polarity{
	Forward:  {gpio.Low, gpio.Low},
	Backward: {gpio.High, gpio.High},
	Left:     {gpio.Low, gpio.High},
	Right:    {gpio.High, gpio.Low},
}

// sign is the change applied to the believed position per unit moved.
// Forward decreases Y and Right decreases X; this is a wiring artifact
// and must match the polarity table above.
var sign = map[Direction]float64{
	Forward:  -1,
	Backward: +1,
	Left:     +1,
	Right:    -1,
}
