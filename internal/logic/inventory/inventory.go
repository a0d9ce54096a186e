// Package inventory tracks the charging pads and which of them are parked
// at home.
package inventory

import (
	"errors"
	"fmt"

	"github.com/cjeanneret/padgantry/internal/logic/geometry"
)

// ErrUnavailable is returned by Assign when every pad is out.
var ErrUnavailable = errors.New("no charging pad available")

// ErrUnknownPad is returned for a pad id that is not in the inventory.
var ErrUnknownPad = errors.New("unknown pad")

// Pad is one physical charging pad. ID is its declaration index and never
// changes.
type Pad struct {
	ID        int            `json:"id"`
	Home      geometry.Point `json:"home"`
	Available bool           `json:"available"`
}

// Inventory is the fixed set of pads.
type Inventory struct {
	pads []Pad
}

// New creates an inventory with one available pad per home, in the given
// order. The order breaks distance ties in Assign.
func New(homes ...geometry.Point) *Inventory {
	pads := make([]Pad, len(homes))
	for i, h := range homes {
		pads[i] = Pad{ID: i, Home: h, Available: true}
	}
	return &Inventory{pads: pads}
}

// ForArea creates the standard four-pad inventory with a pad parked in each
// corner of a w x h working area.
func ForArea(w, h int) *Inventory {
	c := geometry.Corners(w, h)
	return New(c[:]...)
}

// Assign picks the available pad whose home is closest to p, marks it
// unavailable and returns it. Callers skip p on ErrUnavailable; nothing is
// queued.
func (inv *Inventory) Assign(p geometry.Point) (Pad, error) {
	best := -1
	bestDist := 0.0
	for i, pad := range inv.pads {
		if !pad.Available {
			continue
		}
		d := geometry.Distance(pad.Home, p)
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return Pad{}, ErrUnavailable
	}
	inv.pads[best].Available = false
	return inv.pads[best], nil
}

// Release marks a pad available again. It trusts that the caller already
// drove the pad back to its home.
func (inv *Inventory) Release(id int) error {
	if id < 0 || id >= len(inv.pads) {
		return fmt.Errorf("%w: %d", ErrUnknownPad, id)
	}
	inv.pads[id].Available = true
	return nil
}

// Pad returns the pad with the given id.
func (inv *Inventory) Pad(id int) (Pad, bool) {
	if id < 0 || id >= len(inv.pads) {
		return Pad{}, false
	}
	return inv.pads[id], true
}

// Pads returns a copy of all pads in declaration order.
func (inv *Inventory) Pads() []Pad {
	out := make([]Pad, len(inv.pads))
	copy(out, inv.pads)
	return out
}

// InUse counts unavailable pads.
func (inv *Inventory) InUse() int {
	n := 0
	for _, p := range inv.pads {
		if !p.Available {
			n++
		}
	}
	return n
}
