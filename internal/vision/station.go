package vision

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"

	"gocv.io/x/gocv"

	"github.com/cjeanneret/padgantry/internal/debug"
	"github.com/cjeanneret/padgantry/internal/logic/detection"
)

// FrameSource yields oriented frames. *Camera is one.
type FrameSource interface {
	Grab() (gocv.Mat, error)
}

// PhoneDetector finds phones in a JPEG frame.
type PhoneDetector interface {
	Detect(ctx context.Context, jpeg []byte) ([]detection.Detection, error)
}

var (
	boxColor    = color.RGBA{G: 255, A: 255}
	centerColor = color.RGBA{R: 255, A: 255}
	lightColor  = color.RGBA{R: 255, G: 255, A: 255}
)

// Station ties the camera to both detectors. It keeps the last annotated
// frame for the status page.
type Station struct {
	src    FrameSource
	phones PhoneDetector
	red    *RedLightDetector

	mu   sync.RWMutex
	last []byte
}

// NewStation creates a station.
func NewStation(src FrameSource, phones PhoneDetector, red *RedLightDetector) *Station {
	return &Station{src: src, phones: phones, red: red}
}

// Phones grabs a frame and asks the detection service for phones in it.
func (s *Station) Phones(ctx context.Context) ([]detection.Detection, error) {
	frame, err := s.src.Grab()
	if err != nil {
		frame.Close()
		return nil, err
	}
	defer frame.Close()

	jpeg, err := EncodeJPEG(frame)
	if err != nil {
		return nil, err
	}
	found, err := s.phones.Detect(ctx, jpeg)
	if err != nil {
		return nil, fmt.Errorf("phone detection: %w", err)
	}

	for i, d := range found {
		debug.Verbose("Phone %d: box %v center (%d, %d) confidence %.2f", i+1, d.Box, d.X, d.Y, d.Confidence)
		gocv.Rectangle(&frame, d.Box, boxColor, 2)
		gocv.Circle(&frame, d.Point(), 5, centerColor, -1)
		gocv.PutText(&frame, fmt.Sprintf("Conf: %.2f", d.Confidence), d.Box.Min.Add(image.Pt(0, -10)),
			gocv.FontHersheySimplex, 0.5, boxColor, 2)
	}
	s.keep(frame)
	return found, nil
}

// RedLights grabs a frame and returns the lit indicator centroids.
func (s *Station) RedLights(ctx context.Context) ([]image.Point, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	frame, err := s.src.Grab()
	if err != nil {
		frame.Close()
		return nil, err
	}
	defer frame.Close()

	lights := s.red.Detect(frame)
	for _, p := range lights {
		gocv.Circle(&frame, p, 12, lightColor, 2)
	}
	s.keep(frame)
	return lights, nil
}

// LastFrame returns the most recent annotated frame as JPEG, or nil.
func (s *Station) LastFrame() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

func (s *Station) keep(frame gocv.Mat) {
	jpeg, err := EncodeJPEG(frame)
	if err != nil {
		debug.Verbose("Annotated frame not kept: %v", err)
		return
	}
	s.mu.Lock()
	s.last = jpeg
	s.mu.Unlock()
}
