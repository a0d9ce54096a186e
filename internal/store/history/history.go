// Package history journals placements and retrievals to SQLite. The journal
// is only ever appended to and listed; it is never used to restore state.
package history

import (
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/cjeanneret/padgantry/internal/debug"
	"github.com/cjeanneret/padgantry/internal/logic/geometry"
	"github.com/cjeanneret/padgantry/internal/logic/placement"
)

// schema.sql creates the placements table.
//
//go:embed schema.sql
var schemaSQL string

// Journal is the history database.
type Journal struct {
	*sql.DB
}

// Entry is one journaled placement.
type Entry struct {
	ID          uuid.UUID      `json:"id"`
	PadID       int            `json:"pad_id"`
	PadHome     geometry.Point `json:"pad_home"`
	Location    geometry.Point `json:"location"`
	ZoneRadius  float64        `json:"zone_radius"`
	PlacedAt    time.Time      `json:"placed_at"`
	RetrievedAt *time.Time     `json:"retrieved_at,omitempty"`
}

// Open opens (and creates if needed) the journal at path.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer; the control loop is the only caller that writes.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}
	debug.Verbose("History journal opened at %s", path)
	return &Journal{db}, nil
}

// RecordPlacement stores a new placement.
func (j *Journal) RecordPlacement(p placement.Placement) error {
	query := `
		INSERT INTO placements (id, pad_id, pad_x, pad_y, x, y, zone_radius, placed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := j.Exec(query, p.ID.String(), p.PadID, p.PadHome.X, p.PadHome.Y,
		p.Location.X, p.Location.Y, p.Zone.Radius, p.PlacedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert placement: %w", err)
	}
	return nil
}

// RecordRetrieval marks a placement as retrieved.
func (j *Journal) RecordRetrieval(p placement.Placement, at time.Time) error {
	res, err := j.Exec(`UPDATE placements SET retrieved_at = ? WHERE id = ?`, at.UnixNano(), p.ID.String())
	if err != nil {
		return fmt.Errorf("failed to record retrieval: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to record retrieval: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("retrieval of unknown placement %s", p.ID)
	}
	return nil
}

// Recent lists up to limit placements, newest first.
func (j *Journal) Recent(limit int) ([]Entry, error) {
	rows, err := j.Query(`
		SELECT id, pad_id, pad_x, pad_y, x, y, zone_radius, placed_at, retrieved_at
		FROM placements
		ORDER BY placed_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list placements: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e         Entry
			id        string
			placedAt  int64
			retrieved sql.NullInt64
		)
		if err := rows.Scan(&id, &e.PadID, &e.PadHome.X, &e.PadHome.Y, &e.Location.X, &e.Location.Y,
			&e.ZoneRadius, &placedAt, &retrieved); err != nil {
			return nil, fmt.Errorf("failed to scan placement: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("bad placement id %q: %w", id, err)
		}
		e.PlacedAt = time.Unix(0, placedAt)
		if retrieved.Valid {
			t := time.Unix(0, retrieved.Int64)
			e.RetrievedAt = &t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
