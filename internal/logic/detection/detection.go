// Package detection reconciles noisy phone detections.
package detection

import "image"

// Detection is one phone found in one frame, in rotated ROI pixels.
type Detection struct {
	X          int             `json:"x"`
	Y          int             `json:"y"`
	Confidence float64         `json:"confidence"`
	Box        image.Rectangle `json:"box"`
}

// Point returns the detection center.
func (d Detection) Point() image.Point { return image.Pt(d.X, d.Y) }

// Confirm reconciles a first pass with a second pass over the same scene.
//
// Each first-pass detection claims the first still-unclaimed second-pass
// detection lying within threshold pixels on both axes, and the claimed
// second-pass coordinate is emitted. Without a match the first-pass
// coordinate is emitted unchanged. Order follows first. Nothing is carried
// between calls; this is a denoising pass, not a tracker.
func Confirm(first, second []Detection, threshold int) []image.Point {
	out := make([]image.Point, 0, len(first))
	pool := make([]Detection, len(second))
	copy(pool, second)

	for _, f := range first {
		matched := false
		for i, s := range pool {
			if abs(s.X-f.X) <= threshold && abs(s.Y-f.Y) <= threshold {
				out = append(out, s.Point())
				pool = append(pool[:i], pool[i+1:]...)
				matched = true
				break
			}
		}
		if !matched {
			out = append(out, f.Point())
		}
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
