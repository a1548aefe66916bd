package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Summary aggregates the entries of a time range. All weights are in
// kilograms; every field except Count is zero when the range is empty.
type Summary struct {
	Count    int       `json:"count"`
	MinKg    float64   `json:"min_kg"`
	MaxKg    float64   `json:"max_kg"`
	MeanKg   float64   `json:"mean_kg"`
	FirstKg  float64   `json:"first_kg"`  // Oldest measurement in the range.
	LastKg   float64   `json:"last_kg"`   // Newest measurement in the range.
	ChangeKg float64   `json:"change_kg"` // LastKg - FirstKg.
	First    time.Time `json:"first"`     // When FirstKg was measured.
	Last     time.Time `json:"last"`      // When LastKg was measured.
}

// Summary aggregates the entries measured in [from, to).
func (x *Index) Summary(from, to time.Time) (Summary, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return Summary{}, ErrIndexClosed
	}

	where, args := rangeClause(from, to)

	var s Summary
	row := x.db.QueryRow("SELECT COUNT(*), COALESCE(MIN(weight_kg), 0), COALESCE(MAX(weight_kg), 0), COALESCE(AVG(weight_kg), 0) FROM entries"+where, args...)
	if err := row.Scan(&s.Count, &s.MinKg, &s.MaxKg, &s.MeanKg); err != nil {
		return Summary{}, fmt.Errorf("aggregate range: %w", err)
	}
	if s.Count == 0 {
		return s, nil
	}

	var err error
	if s.FirstKg, s.First, err = x.endpoint(where, oldestFirst, args); err != nil {
		return Summary{}, err
	}
	if s.LastKg, s.Last, err = x.endpoint(where, newestFirst, args); err != nil {
		return Summary{}, err
	}
	s.ChangeKg = s.LastKg - s.FirstKg
	return s, nil
}

// endpoint returns the first row of the range in the given order.
func (x *Index) endpoint(where, order string, args []any) (float64, time.Time, error) {
	var (
		kg        float64
		sec, nsec int64
	)
	row := x.db.QueryRow("SELECT weight_kg, measured_sec, measured_nsec FROM entries"+where+" "+order+" LIMIT 1", args...)
	if err := row.Scan(&kg, &sec, &nsec); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, time.Time{}, fmt.Errorf("range endpoint vanished: %w", err)
		}
		return 0, time.Time{}, fmt.Errorf("range endpoint: %w", err)
	}
	return kg, time.Unix(sec, nsec).UTC(), nil
}
