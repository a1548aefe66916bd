package types

import (
	"context"
	"time"
)

// Stream is a live subscription to store snapshots. The first value is the
// state at subscription time; each committed change follows. The channel is
// closed after Cancel.
type Stream[S any] interface {
	C() <-chan S
	Cancel()
}

// Entries exposes weight entries to consumers.
type Entries interface {
	// Entries returns every entry, newest measurement first.
	Entries() ([]WeightEntry, error)

	// ObserveEntries subscribes to entry snapshots until ctx is done or the
	// stream is cancelled. A load failure fails the call.
	ObserveEntries(ctx context.Context) (Stream[[]WeightEntry], error)

	// LogWeight records a new manual measurement and returns it.
	LogWeight(weightKg float64, measuredAt time.Time, note string) (WeightEntry, error)

	// SaveEntry inserts or replaces an entry by ID.
	SaveEntry(e WeightEntry) error

	// DeleteEntry removes an entry and its sync record. Deleting an unknown
	// ID succeeds without changing anything.
	DeleteEntry(id string) error
}

// Goals exposes the single weight goal.
type Goals interface {
	// Goal returns the current goal, or nil when none is set.
	Goal() (*WeightGoal, error)

	// ObserveGoal subscribes to goal snapshots; nil means no goal.
	ObserveGoal(ctx context.Context) (Stream[*WeightGoal], error)

	SetGoal(g WeightGoal) error
	ClearGoal() error
}

// SyncLedger exposes health-platform sync metadata.
type SyncLedger interface {
	SyncRecords() ([]SyncRecord, error)
	ObserveSyncRecords(ctx context.Context) (Stream[[]SyncRecord], error)
	MarkSynced(entryID, externalID, platform string) (SyncRecord, error)
}

// Journal is the full service surface: entries, the goal, and sync metadata.
type Journal interface {
	Entries
	Goals
	SyncLedger

	// Unit returns the configured display unit.
	Unit() string
}
