package geometry

import (
	"errors"
	"fmt"
)

// ErrROIOutOfBounds is returned when a region does not fit inside a frame.
var ErrROIOutOfBounds = errors.New("roi out of frame bounds")

// Rect is a pixel region [X1,X2) x [Y1,Y2) of a captured frame.
type Rect struct {
	X1 int `yaml:"x1" json:"x1"`
	Y1 int `yaml:"y1" json:"y1"`
	X2 int `yaml:"x2" json:"x2"`
	Y2 int `yaml:"y2" json:"y2"`
}

func (r Rect) Width() int  { return r.X2 - r.X1 }
func (r Rect) Height() int { return r.Y2 - r.Y1 }

// Validate checks 0 <= X1 < X2 <= width and 0 <= Y1 < Y2 <= height.
func (r Rect) Validate(width, height int) error {
	if !(0 <= r.X1 && r.X1 < r.X2 && r.X2 <= width) || !(0 <= r.Y1 && r.Y1 < r.Y2 && r.Y2 <= height) {
		return fmt.Errorf("%w: roi (%d,%d)-(%d,%d), frame %dx%d",
			ErrROIOutOfBounds, r.X1, r.Y1, r.X2, r.Y2, width, height)
	}
	return nil
}

// RotatedSize returns the size of a w x h image after rotating it by deg
// degrees. Quarter turns swap the axes; any other angle keeps the canvas.
func RotatedSize(w, h, deg int) (int, int) {
	switch ((deg % 360) + 360) % 360 {
	case 90, 270:
		return h, w
	default:
		return w, h
	}
}

// Corners returns the four corner pixels of a w x h working area in
// declaration order: top-left, top-right, bottom-left, bottom-right.
func Corners(w, h int) [4]Point {
	return [4]Point{
		Pt(0, 0),
		Pt(float64(w-1), 0),
		Pt(0, float64(h-1)),
		Pt(float64(w-1), float64(h-1)),
	}
}
