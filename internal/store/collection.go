package store

import (
	"bytes"
	"context"
	"slices"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/weightlog/pkg/types"
)

// Keys describes the identity and ordering of collection records.
type Keys[T any] struct {
	// ID returns the unique identifier of a record.
	ID func(T) string
	// Less reports whether a sorts before b. Snapshots and the backing file
	// are always in this order.
	Less func(a, b T) bool
}

// Collection is a store for an ordered set of records with unique IDs. The
// backing file holds a JSON array.
type Collection[T any] struct {
	name    string
	keys    Keys[T]
	file    backingFile
	codec   Codec
	log     *zap.Logger
	metrics *Metrics

	mu      sync.Mutex
	loaded  bool
	cache   []T
	encoded []byte // Codec encoding of cache.
	subs    broadcaster[[]T]
}

// NewCollection creates a collection store backed by the file name resolved
// through opts.Resolver. Nothing is read until the first operation.
func NewCollection[T any](name string, keys Keys[T], opts Options) *Collection[T] {
	opts = opts.withDefaults()
	return &Collection[T]{
		name:    name,
		keys:    keys,
		file:    backingFile{name: name, resolver: opts.Resolver, fsys: opts.Fs},
		codec:   opts.Codec,
		log:     opts.Logger.With(zap.String("store", name)),
		metrics: opts.Metrics,
		subs:    newBroadcaster(func(s []T) []T { return slices.Clone(s) }),
	}
}

// Name returns the backing file name.
func (c *Collection[T]) Name() string { return c.name }

// FetchAll returns the current snapshot.
func (c *Collection[T]) FetchAll() ([]T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loadLocked(); err != nil {
		return nil, err
	}
	return slices.Clone(c.cache), nil
}

// Get returns the record with the given ID and whether it exists.
func (c *Collection[T]) Get(id string) (T, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	if err := c.loadLocked(); err != nil {
		return zero, false, err
	}
	if i := c.indexLocked(id); i >= 0 {
		return c.cache[i], true, nil
	}
	return zero, false, nil
}

// Observe subscribes to snapshots. The current snapshot is queued before
// Observe returns; every committed change follows. The subscription ends when
// it is cancelled or ctx is done. A load failure fails the call.
func (c *Collection[T]) Observe(ctx context.Context) (*Subscription[[]T], error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loadLocked(); err != nil {
		return nil, err
	}
	sub := c.subs.subscribe(c.cache, c.unsubscribe)
	c.metrics.setSubscribers(c.name, c.subs.len())
	c.log.Debug("subscription opened", zap.Int("subscribers", c.subs.len()))
	sub.cancelOn(ctx)
	return sub, nil
}

func (c *Collection[T]) unsubscribe(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.subs.remove(id)
	c.metrics.setSubscribers(c.name, c.subs.len())
	c.log.Debug("subscription closed", zap.Int("subscribers", c.subs.len()))
}

// Upsert replaces the record with the same ID in place, or appends it, then
// re-sorts, persists, and broadcasts. Upserting a record identical to the
// stored one changes nothing.
func (c *Collection[T]) Upsert(rec T) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loadLocked(); err != nil {
		return err
	}

	next := slices.Clone(c.cache)
	if i := c.indexLocked(c.keys.ID(rec)); i >= 0 {
		next[i] = rec
	} else {
		next = append(next, rec)
	}
	return c.applyLocked(next)
}

// Delete removes the record with the given ID. An unknown ID is a no-op: no
// write and no broadcast.
func (c *Collection[T]) Delete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loadLocked(); err != nil {
		return err
	}

	i := c.indexLocked(id)
	if i < 0 {
		c.log.Debug("delete of unknown id ignored", zap.String("id", id))
		return nil
	}
	next := slices.Delete(slices.Clone(c.cache), i, i+1)
	return c.applyLocked(next)
}

// Export returns the canonical encoding of the committed snapshot. It equals
// the file contents after any write by this store; a hand-edited file that
// has not been rewritten yet differs only in formatting.
func (c *Collection[T]) Export() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loadLocked(); err != nil {
		return nil, err
	}
	return bytes.Clone(c.encoded), nil
}

func (c *Collection[T]) indexLocked(id string) int {
	return slices.IndexFunc(c.cache, func(r T) bool { return c.keys.ID(r) == id })
}

func (c *Collection[T]) sortRecords(records []T) {
	sort.SliceStable(records, func(i, j int) bool {
		return c.keys.Less(records[i], records[j])
	})
}

// applyLocked sorts next, persists it, and only then commits and broadcasts.
func (c *Collection[T]) applyLocked(next []T) error {
	c.sortRecords(next)
	data, err := c.codec.Marshal(next)
	if err != nil {
		return &types.PersistenceError{Op: types.OpEncode, Err: err}
	}
	if bytes.Equal(data, c.encoded) {
		c.log.Debug("unchanged state not persisted")
		return nil
	}

	err = c.file.write(data)
	c.metrics.persisted(c.name, err)
	if err != nil {
		return err
	}

	c.cache = next
	c.encoded = data
	n := c.subs.publish(c.cache)
	c.metrics.broadcast(c.name, n)
	c.log.Debug("persisted and broadcast",
		zap.Int("records", len(next)),
		zap.Int("subscribers", n))
	return nil
}

// loadLocked reads the backing file once. A missing or blank file is an
// empty collection; an undecodable one is a PersistenceError and leaves the
// store unloaded so the corruption keeps surfacing.
func (c *Collection[T]) loadLocked() error {
	if c.loaded {
		return nil
	}

	data, path, err := c.file.read()
	if err != nil {
		return err
	}
	records := []T{}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := c.codec.Unmarshal(data, &records); err != nil {
			return &types.PersistenceError{Op: types.OpDecode, Path: path, Err: err}
		}
		if records == nil {
			records = []T{}
		}
	}
	c.sortRecords(records)

	encoded, err := c.codec.Marshal(records)
	if err != nil {
		return &types.PersistenceError{Op: types.OpEncode, Path: path, Err: err}
	}

	c.cache = records
	c.encoded = encoded
	c.loaded = true
	c.metrics.loaded(c.name)
	c.log.Debug("loaded", zap.String("path", path), zap.Int("records", len(records)))
	return nil
}
