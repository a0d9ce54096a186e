package placement

import (
	"github.com/cjeanneret/padgantry/internal/logic/geometry"
	"github.com/cjeanneret/padgantry/internal/logic/motion"
)

// Command indices inside the physical sequences. A sequence that stopped
// early is judged by the last index it reached.
const (
	placePicked = 1 // lift lowered at the pad home: pad is on the carriage
	placeDone   = 3 // lift raised at the phone: pad is on the phone

	retrievePicked   = 1 // lift lowered at the phone: pad is on the carriage
	retrieveReturned = 3 // lift raised at the pad home: pad is parked
)

func placeSequence(padHome, phone, rest geometry.Point) motion.Sequence {
	return motion.Sequence{
		Name: "place",
		Commands: []motion.Command{
			motion.GoTo("go to pad home "+padHome.String(), padHome),
			motion.Lift("pick pad"),
			motion.GoTo("go to phone "+phone.String(), phone),
			motion.Lift("place pad"),
			motion.GoTo("return to rest", rest),
		},
	}
}

func retrieveSequence(location, padHome, rest geometry.Point) motion.Sequence {
	return motion.Sequence{
		Name: "retrieve",
		Commands: []motion.Command{
			motion.GoTo("go to placement "+location.String(), location),
			motion.Lift("pick pad"),
			motion.GoTo("go to pad home "+padHome.String(), padHome),
			motion.Lift("release pad"),
			motion.GoTo("return to rest", rest),
		},
	}
}
