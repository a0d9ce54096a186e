package vision

import (
	"image"

	"gocv.io/x/gocv"

	"github.com/cjeanneret/padgantry/internal/debug"
	"github.com/cjeanneret/padgantry/internal/logic/geometry"
	"github.com/cjeanneret/padgantry/internal/vision/hsv"
)

// RedLightDetector finds lit charge indicators by color.
type RedLightDetector struct {
	Bands   []hsv.Band
	MinArea float64
}

// NewRedLightDetector creates a detector. Empty bands fall back to the
// default red bands, a non-positive minArea to hsv.DefaultMinArea.
func NewRedLightDetector(bands []hsv.Band, minArea float64) *RedLightDetector {
	if len(bands) == 0 {
		bands = hsv.DefaultRedBands()
	}
	if minArea <= 0 {
		minArea = hsv.DefaultMinArea
	}
	return &RedLightDetector{Bands: bands, MinArea: minArea}
}

// Detect returns the centroid of every red blob in a BGR frame whose area
// reaches MinArea, in contour order.
func (d *RedLightDetector) Detect(frame gocv.Mat) []image.Point {
	hsvFrame := gocv.NewMat()
	defer hsvFrame.Close()
	gocv.CvtColor(frame, &hsvFrame, gocv.ColorBGRToHSV)

	mask := gocv.Zeros(hsvFrame.Rows(), hsvFrame.Cols(), gocv.MatTypeCV8U)
	defer mask.Close()
	band := gocv.NewMat()
	defer band.Close()
	for _, b := range d.Bands {
		lo := gocv.NewScalar(b.Low[0], b.Low[1], b.Low[2], 0)
		hi := gocv.NewScalar(b.High[0], b.High[1], b.High[2], 0)
		gocv.InRangeWithScalar(hsvFrame, lo, hi, &band)
		gocv.BitwiseOr(mask, band, &mask)
	}

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var lights []image.Point
	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		area := gocv.ContourArea(c)
		if area < d.MinArea {
			continue
		}
		if p, ok := geometry.Centroid(c.ToPoints()); ok {
			lights = append(lights, p)
			debug.Trace("Red light at %v (area %.0f)", p, area)
		}
	}
	return lights
}
