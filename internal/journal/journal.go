// Package journal implements the weight journal service on top of the file
// stores. Each operation delegates to exactly one store; derived queries
// combine snapshots without writing.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/weightlog/internal/paths"
	"github.com/mesh-intelligence/weightlog/internal/store"
	"github.com/mesh-intelligence/weightlog/pkg/types"
)

// Backing file names inside the data directory.
const (
	EntriesFile = "entries.json"
	GoalFile    = "goal.json"
	SyncFile    = "sync_metadata.json"
)

// Options carries optional collaborators. Zero values select the OS
// filesystem, the shared codec, a no-op logger, no metrics, the wall clock,
// and UUID v7 identifiers.
type Options struct {
	Fs      afero.Fs
	Codec   store.Codec
	Logger  *zap.Logger
	Metrics *store.Metrics
	Now     func() time.Time
	NewID   func() string
}

// Journal owns the three stores of one data directory.
type Journal struct {
	unit    string
	log     *zap.Logger
	now     func() time.Time
	newID   func() string
	entries *store.Collection[types.WeightEntry]
	goal    *store.Singleton[types.WeightGoal]
	syncs   *store.Collection[types.SyncRecord]
}

var _ types.Journal = (*Journal)(nil)

// Open validates cfg and builds the stores for cfg.DataDir. No file is read
// until the first operation.
func Open(cfg types.Config, opts Options) (*Journal, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("journal config: %w", err)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = newUUID
	}
	unit := cfg.Unit
	if unit == "" {
		unit = types.UnitKg
	}

	so := store.Options{
		Resolver: paths.NewDirResolver(cfg.DataDir, opts.Fs),
		Fs:       opts.Fs,
		Codec:    opts.Codec,
		Logger:   opts.Logger,
		Metrics:  opts.Metrics,
	}
	j := &Journal{
		unit:    unit,
		log:     opts.Logger.With(zap.String("component", "journal")),
		now:     opts.Now,
		newID:   opts.NewID,
		entries: store.NewCollection(EntriesFile, store.Keys[types.WeightEntry]{ID: types.EntryID, Less: types.EntryNewerFirst}, so),
		goal:    store.NewSingleton[types.WeightGoal](GoalFile, so),
		syncs:   store.NewCollection(SyncFile, store.Keys[types.SyncRecord]{ID: types.SyncRecordID, Less: types.SyncNewerFirst}, so),
	}
	return j, nil
}

// newUUID generates a UUID v7 string, falling back to v4.
func newUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// Unit returns the configured display unit.
func (j *Journal) Unit() string { return j.unit }

// Entries returns every entry, newest measurement first.
func (j *Journal) Entries() ([]types.WeightEntry, error) {
	return j.entries.FetchAll()
}

// ObserveEntries subscribes to entry snapshots.
func (j *Journal) ObserveEntries(ctx context.Context) (types.Stream[[]types.WeightEntry], error) {
	sub, err := j.entries.Observe(ctx)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// LogWeight records a manual measurement. A zero measuredAt means now.
func (j *Journal) LogWeight(weightKg float64, measuredAt time.Time, note string) (types.WeightEntry, error) {
	if measuredAt.IsZero() {
		measuredAt = j.now()
	}
	e := types.NewWeightEntry(j.newID(), weightKg, measuredAt, note)
	e.CreatedAt = j.now().UTC()
	if err := j.SaveEntry(e); err != nil {
		return types.WeightEntry{}, err
	}
	j.log.Info("weight logged", zap.String("id", e.ID), zap.Float64("weight_kg", e.WeightKg))
	return e, nil
}

// SaveEntry inserts or replaces e by ID.
func (j *Journal) SaveEntry(e types.WeightEntry) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("save entry: %w", err)
	}
	return j.entries.Upsert(e)
}

// DeleteEntry removes the entry and then its sync record. If the second step
// fails the entry stays deleted and the orphaned sync record is left for a
// later delete to clean up.
func (j *Journal) DeleteEntry(id string) error {
	if err := j.entries.Delete(id); err != nil {
		return err
	}
	if err := j.syncs.Delete(id); err != nil {
		return fmt.Errorf("delete sync record for %s: %w", id, err)
	}
	return nil
}

// Entry returns the entry with the given ID or an error matching
// types.ErrNotFound.
func (j *Journal) Entry(id string) (types.WeightEntry, error) {
	e, ok, err := j.entries.Get(id)
	if err != nil {
		return types.WeightEntry{}, err
	}
	if !ok {
		return types.WeightEntry{}, fmt.Errorf("entry %s: %w", id, types.ErrNotFound)
	}
	return e, nil
}

// Latest returns the most recent measurement.
func (j *Journal) Latest() (types.WeightEntry, error) {
	all, err := j.entries.FetchAll()
	if err != nil {
		return types.WeightEntry{}, err
	}
	if len(all) == 0 {
		return types.WeightEntry{}, fmt.Errorf("latest entry: %w", types.ErrNotFound)
	}
	return all[0], nil
}

// Goal returns the current goal, or nil when none is set.
func (j *Journal) Goal() (*types.WeightGoal, error) {
	return j.goal.Fetch()
}

// ObserveGoal subscribes to goal snapshots.
func (j *Journal) ObserveGoal(ctx context.Context) (types.Stream[*types.WeightGoal], error) {
	sub, err := j.goal.Observe(ctx)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// SetGoal replaces the goal. UpdatedAt is stamped when zero.
func (j *Journal) SetGoal(g types.WeightGoal) error {
	if g.UpdatedAt.IsZero() {
		g.UpdatedAt = j.now().UTC()
	}
	if err := g.Validate(); err != nil {
		return fmt.Errorf("set goal: %w", err)
	}
	return j.goal.Upsert(g)
}

// ClearGoal removes the goal.
func (j *Journal) ClearGoal() error {
	return j.goal.Delete()
}

// Progress measures the latest entry against the goal. Both must exist.
func (j *Journal) Progress() (types.GoalProgress, error) {
	g, err := j.goal.Fetch()
	if err != nil {
		return types.GoalProgress{}, err
	}
	if g == nil {
		return types.GoalProgress{}, fmt.Errorf("goal: %w", types.ErrNotFound)
	}
	latest, err := j.Latest()
	if err != nil {
		return types.GoalProgress{}, err
	}
	return g.Progress(latest.WeightKg), nil
}

// SyncRecords returns all sync records, most recent sync first.
func (j *Journal) SyncRecords() ([]types.SyncRecord, error) {
	return j.syncs.FetchAll()
}

// ObserveSyncRecords subscribes to sync record snapshots.
func (j *Journal) ObserveSyncRecords(ctx context.Context) (types.Stream[[]types.SyncRecord], error) {
	sub, err := j.syncs.Observe(ctx)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// MarkSynced records that entryID was written to platform under externalID.
// The entry must exist.
func (j *Journal) MarkSynced(entryID, externalID, platform string) (types.SyncRecord, error) {
	if _, err := j.Entry(entryID); err != nil {
		return types.SyncRecord{}, err
	}
	r := types.SyncRecord{
		EntryID:    entryID,
		ExternalID: externalID,
		Platform:   platform,
		SyncedAt:   j.now().UTC(),
	}
	if err := r.Validate(); err != nil {
		return types.SyncRecord{}, fmt.Errorf("mark synced: %w", err)
	}
	if err := j.syncs.Upsert(r); err != nil {
		return types.SyncRecord{}, err
	}
	return r, nil
}

// Unsynced returns the entries without a sync record, in entry order.
func (j *Journal) Unsynced() ([]types.WeightEntry, error) {
	all, err := j.entries.FetchAll()
	if err != nil {
		return nil, err
	}
	records, err := j.syncs.FetchAll()
	if err != nil {
		return nil, err
	}
	synced := make(map[string]bool, len(records))
	for _, r := range records {
		synced[r.EntryID] = true
	}
	out := make([]types.WeightEntry, 0, len(all))
	for _, e := range all {
		if !synced[e.ID] {
			out = append(out, e)
		}
	}
	return out, nil
}

// Export returns the committed encoding of every store keyed by file name.
// The goal is omitted when none is set.
func (j *Journal) Export() (map[string][]byte, error) {
	out := make(map[string][]byte, 3)

	data, err := j.entries.Export()
	if err != nil {
		return nil, err
	}
	out[EntriesFile] = data

	data, err = j.syncs.Export()
	if err != nil {
		return nil, err
	}
	out[SyncFile] = data

	data, ok, err := j.goal.Export()
	if err != nil {
		return nil, err
	}
	if ok {
		out[GoalFile] = data
	}
	return out, nil
}
