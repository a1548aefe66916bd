package types

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Entry sources.
const (
	SourceManual = "manual"
	SourceHealth = "health"
)

// maxWeightKg bounds accepted measurements.
const maxWeightKg = 1000

// WeightEntry is a single body-weight measurement.
type WeightEntry struct {
	ID         string    `json:"id"`             // UUID v7, generated on creation.
	WeightKg   float64   `json:"weight_kg"`      // Always stored in kilograms.
	MeasuredAt time.Time `json:"measured_at"`    // When the measurement was taken.
	Note       string    `json:"note,omitempty"` // Free text, NFC normalized.
	Source     string    `json:"source"`         // SourceManual or SourceHealth.
	CreatedAt  time.Time `json:"created_at"`     // When the entry was logged.
}

// NewWeightEntry builds a manual entry with timestamps in UTC and the note
// trimmed and NFC normalized. The caller assigns the ID.
func NewWeightEntry(id string, weightKg float64, measuredAt time.Time, note string) WeightEntry {
	now := time.Now().UTC()
	if measuredAt.IsZero() {
		measuredAt = now
	}
	return WeightEntry{
		ID:         id,
		WeightKg:   weightKg,
		MeasuredAt: measuredAt.UTC(),
		Note:       norm.NFC.String(strings.TrimSpace(note)),
		Source:     SourceManual,
		CreatedAt:  now,
	}
}

// Validate checks the fields a store relies on.
func (e WeightEntry) Validate() error {
	if e.ID == "" {
		return ErrInvalidID
	}
	if e.WeightKg <= 0 || e.WeightKg >= maxWeightKg {
		return ErrInvalidWeight
	}
	if e.MeasuredAt.IsZero() {
		return ErrInvalidTimestamp
	}
	return nil
}

// EntryID returns the identity of an entry.
func EntryID(e WeightEntry) string { return e.ID }

// EntryNewerFirst orders entries by measurement time, newest first, breaking
// ties by ID so the order depends only on record contents.
func EntryNewerFirst(a, b WeightEntry) bool {
	if !a.MeasuredAt.Equal(b.MeasuredAt) {
		return a.MeasuredAt.After(b.MeasuredAt)
	}
	return a.ID < b.ID
}
