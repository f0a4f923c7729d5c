// Package scoring converts a final lobby placement into tournament points.
package scoring

import (
	"errors"
	"fmt"
)

// ErrInvalidScoringInput is returned for placements below 1. It signals a
// programming error upstream and should fail fast.
var ErrInvalidScoringInput = errors.New("placement must be at least 1")

// ErrInvalidTable is returned when a scoring table has no rows or negative points.
var ErrInvalidTable = errors.New("invalid scoring table")

// defaultTable is the standard eight-player lobby table.
var defaultTable = Table{8, 7, 6, 5, 4, 3, 2, 1}

// Converter maps a placement to points.
type Converter interface {
	Points(placement int) (int, error)
}

// Table awards Table[i] points for placement i+1. Placements past the end of
// the table earn zero.
type Table []int

// DefaultTable returns a copy of the 8-7-6-5-4-3-2-1 table.
func DefaultTable() Table {
	out := make(Table, len(defaultTable))
	copy(out, defaultTable)
	return out
}

// NewTable validates points and returns it as a Table. An empty slice yields
// the default table.
func NewTable(points []int) (Table, error) {
	if len(points) == 0 {
		return DefaultTable(), nil
	}
	for i, p := range points {
		if p < 0 {
			return nil, fmt.Errorf("%w: placement %d has %d points", ErrInvalidTable, i+1, p)
		}
	}
	out := make(Table, len(points))
	copy(out, points)
	return out, nil
}

// Points returns the points for placement.
func (t Table) Points(placement int) (int, error) {
	if placement < 1 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidScoringInput, placement)
	}
	if placement > len(t) {
		return 0, nil
	}
	return t[placement-1], nil
}

// Lobby is the number of placements the table scores.
func (t Table) Lobby() int {
	return len(t)
}

// MustPoints is Points for callers that have already validated placement.
func (t Table) MustPoints(placement int) int {
	pts, err := t.Points(placement)
	if err != nil {
		panic(err)
	}
	return pts
}
