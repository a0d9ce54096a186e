// Package vision grabs frames from the overhead camera and finds phones and
// charge indicators in them.
package vision

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/cjeanneret/padgantry/internal/debug"
	"github.com/cjeanneret/padgantry/internal/logic/geometry"
)

// ErrNoFrame is returned when the camera yields no image.
var ErrNoFrame = errors.New("camera returned no frame")

// Camera is the overhead camera. Frames come out cropped to the ROI and
// rotated into the gantry's orientation.
type Camera struct {
	vc       *gocv.VideoCapture
	roi      geometry.Rect
	rotation int
}

// OpenCamera opens the capture device at index. The ROI is not checked
// here; call Validate once the first frame size is known.
func OpenCamera(index int, roi geometry.Rect, rotation int) (*Camera, error) {
	if _, ok := rotateFlag(rotation); !ok && rotation != 0 {
		return nil, fmt.Errorf("unsupported rotation %d", rotation)
	}
	vc, err := gocv.OpenVideoCapture(index)
	if err != nil {
		return nil, fmt.Errorf("open camera %d: %w", index, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("open camera %d: device not available", index)
	}
	debug.Info("Camera %d opened", index)
	return &Camera{vc: vc, roi: roi, rotation: rotation}, nil
}

// Validate grabs one raw frame and checks that the ROI lies inside it.
// It returns the size of the frames Grab will produce.
func (c *Camera) Validate() (width, height int, err error) {
	raw := gocv.NewMat()
	defer raw.Close()
	if ok := c.vc.Read(&raw); !ok || raw.Empty() {
		return 0, 0, ErrNoFrame
	}
	debug.Verbose("Camera frame size: %dx%d", raw.Cols(), raw.Rows())
	if err := c.roi.Validate(raw.Cols(), raw.Rows()); err != nil {
		return 0, 0, err
	}
	w, h := geometry.RotatedSize(c.roi.Width(), c.roi.Height(), c.rotation)
	return w, h, nil
}

// Grab reads a frame, crops it to the ROI and rotates it. The caller owns
// the returned Mat.
func (c *Camera) Grab() (gocv.Mat, error) {
	raw := gocv.NewMat()
	defer raw.Close()
	if ok := c.vc.Read(&raw); !ok || raw.Empty() {
		return gocv.NewMat(), ErrNoFrame
	}

	region := raw.Region(image.Rect(c.roi.X1, c.roi.Y1, c.roi.X2, c.roi.Y2))
	defer region.Close()

	out := gocv.NewMat()
	flag, ok := rotateFlag(c.rotation)
	if !ok {
		region.CopyTo(&out)
		return out, nil
	}
	gocv.Rotate(region, &out, flag)
	return out, nil
}

// Close releases the capture device.
func (c *Camera) Close() error {
	return c.vc.Close()
}

func rotateFlag(deg int) (gocv.RotateFlag, bool) {
	switch deg {
	case 90:
		return gocv.Rotate90Clockwise, true
	case 180:
		return gocv.Rotate180Clockwise, true
	case 270:
		return gocv.Rotate90CounterClockwise, true
	default:
		return 0, false
	}
}

// EncodeJPEG encodes a frame for the detection service.
func EncodeJPEG(m gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, m)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()
	b := buf.GetBytes()
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}
