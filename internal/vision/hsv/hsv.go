// Package hsv describes color ranges for segmenting camera frames.
package hsv

import "fmt"

// DefaultMinArea drops specks smaller than this many square pixels.
const DefaultMinArea = 50

// Band is an inclusive HSV range in OpenCV units (H 0-180, S and V 0-255).
type Band struct {
	Low  [3]float64 `yaml:"low" json:"low"`
	High [3]float64 `yaml:"high" json:"high"`
}

var channelMax = [3]float64{180, 255, 255}

// Validate checks channel bounds and ordering.
func (b Band) Validate() error {
	for i := range b.Low {
		if b.Low[i] < 0 || b.High[i] > channelMax[i] || b.Low[i] > b.High[i] {
			return fmt.Errorf("hsv band channel %d: [%v, %v] outside [0, %v]", i, b.Low[i], b.High[i], channelMax[i])
		}
	}
	return nil
}

// DefaultRedBands covers red on both sides of the hue wrap.
func DefaultRedBands() []Band {
	return []Band{
		{Low: [3]float64{0, 120, 70}, High: [3]float64{10, 255, 255}},
		{Low: [3]float64{170, 120, 70}, High: [3]float64{180, 255, 255}},
	}
}
