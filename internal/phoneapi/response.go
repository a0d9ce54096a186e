package phoneapi

import (
	"encoding/json"
	"fmt"
	"image"
	"math"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/cjeanneret/padgantry/internal/debug"
	"github.com/cjeanneret/padgantry/internal/logic/detection"
)

// phoneSchema describes one entry of the "phones" array. Entries that do not
// match are skipped on their own.
const phoneSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["coordinates", "center"],
  "properties": {
    "coordinates": {
      "type": "object",
      "required": ["x1", "y1", "x2", "y2"],
      "properties": {
        "x1": {"type": "number"},
        "y1": {"type": "number"},
        "x2": {"type": "number"},
        "y2": {"type": "number"}
      }
    },
    "center": {
      "type": "object",
      "required": ["x", "y"],
      "properties": {
        "x": {"type": "number"},
        "y": {"type": "number"}
      }
    },
    "confidence": {"type": "number", "minimum": 0, "maximum": 1}
  }
}`

var phoneEntry = jsonschema.MustCompileString("phone.schema.json", phoneSchema)

type rawPhone struct {
	Coordinates struct {
		X1 float64 `json:"x1"`
		Y1 float64 `json:"y1"`
		X2 float64 `json:"x2"`
		Y2 float64 `json:"y2"`
	} `json:"coordinates"`
	Center struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	} `json:"center"`
	Confidence float64 `json:"confidence"`
}

type rawResponse struct {
	Phones  []json.RawMessage `json:"phones"`
	Message *string           `json:"message"`
}

// Parse decodes a detection service response body. Coordinates are rounded
// to whole pixels. A "message" response or an empty phone list yields no
// detections and no error; only a body that is not a JSON object fails.
func Parse(body []byte) ([]detection.Detection, error) {
	var resp rawResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding detection response: %w", err)
	}

	switch {
	case resp.Phones != nil:
	case resp.Message != nil:
		debug.Info("Message from detection service: %s", *resp.Message)
		return nil, nil
	default:
		debug.Info("Unexpected detection response: %s", body)
		return nil, nil
	}

	out := make([]detection.Detection, 0, len(resp.Phones))
	for i, entry := range resp.Phones {
		d, err := parsePhone(entry)
		if err != nil {
			debug.Verbose("Phone %d: %v, skipping", i+1, err)
			continue
		}
		out = append(out, d)
	}
	debug.Verbose("Detection service reported %d phone(s), %d usable", len(resp.Phones), len(out))
	return out, nil
}

func parsePhone(entry json.RawMessage) (detection.Detection, error) {
	var doc any
	if err := json.Unmarshal(entry, &doc); err != nil {
		return detection.Detection{}, err
	}
	if err := phoneEntry.Validate(doc); err != nil {
		return detection.Detection{}, fmt.Errorf("incomplete entry: %w", err)
	}

	var p rawPhone
	if err := json.Unmarshal(entry, &p); err != nil {
		return detection.Detection{}, err
	}
	return detection.Detection{
		X:          round(p.Center.X),
		Y:          round(p.Center.Y),
		Confidence: p.Confidence,
		Box: image.Rect(
			round(p.Coordinates.X1), round(p.Coordinates.Y1),
			round(p.Coordinates.X2), round(p.Coordinates.Y2),
		),
	}, nil
}

func round(v float64) int { return int(math.RoundToEven(v)) }
