package store

import (
	"bytes"
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/weightlog/pkg/types"
)

var jsonNull = []byte("null")

// Singleton is a store for at most one record. The backing file holds a JSON
// object; an absent file means no value.
type Singleton[T any] struct {
	name    string
	file    backingFile
	codec   Codec
	log     *zap.Logger
	metrics *Metrics

	mu      sync.Mutex
	loaded  bool
	value   *T
	encoded []byte // Codec encoding of *value; nil when value is nil.
	subs    broadcaster[*T]
}

// NewSingleton creates a single-value store backed by the file name resolved
// through opts.Resolver. Nothing is read until the first operation.
func NewSingleton[T any](name string, opts Options) *Singleton[T] {
	opts = opts.withDefaults()
	return &Singleton[T]{
		name:    name,
		file:    backingFile{name: name, resolver: opts.Resolver, fsys: opts.Fs},
		codec:   opts.Codec,
		log:     opts.Logger.With(zap.String("store", name)),
		metrics: opts.Metrics,
		subs:    newBroadcaster(clonePtr[T]),
	}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Name returns the backing file name.
func (s *Singleton[T]) Name() string { return s.name }

// Fetch returns a copy of the current value, or nil when none is stored.
func (s *Singleton[T]) Fetch() (*T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return nil, err
	}
	return clonePtr(s.value), nil
}

// Observe subscribes to the value. The current value (possibly nil) is queued
// before Observe returns; every committed change follows. A load failure
// fails the call.
func (s *Singleton[T]) Observe(ctx context.Context) (*Subscription[*T], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return nil, err
	}
	sub := s.subs.subscribe(s.value, s.unsubscribe)
	s.metrics.setSubscribers(s.name, s.subs.len())
	s.log.Debug("subscription opened", zap.Int("subscribers", s.subs.len()))
	sub.cancelOn(ctx)
	return sub, nil
}

func (s *Singleton[T]) unsubscribe(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subs.remove(id)
	s.metrics.setSubscribers(s.name, s.subs.len())
	s.log.Debug("subscription closed", zap.Int("subscribers", s.subs.len()))
}

// Upsert stores v, replacing any previous value, and broadcasts it. Storing a
// value identical to the current one changes nothing.
func (s *Singleton[T]) Upsert(v T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return err
	}

	data, err := s.codec.Marshal(v)
	if err != nil {
		return &types.PersistenceError{Op: types.OpEncode, Err: err}
	}
	if s.value != nil && bytes.Equal(data, s.encoded) {
		s.log.Debug("unchanged value not persisted")
		return nil
	}

	err = s.file.write(data)
	s.metrics.persisted(s.name, err)
	if err != nil {
		return err
	}
	s.commitLocked(&v, data)
	return nil
}

// Delete clears the value by removing the backing file and broadcasts nil.
// Deleting when no value is stored is a no-op.
func (s *Singleton[T]) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return err
	}
	if s.value == nil {
		s.log.Debug("delete of empty value ignored")
		return nil
	}

	err := s.file.remove()
	s.metrics.persisted(s.name, err)
	if err != nil {
		return err
	}
	s.commitLocked(nil, nil)
	return nil
}

// Export returns the encoding of the committed value and whether one exists.
func (s *Singleton[T]) Export() ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return nil, false, err
	}
	if s.value == nil {
		return nil, false, nil
	}
	return bytes.Clone(s.encoded), true, nil
}

func (s *Singleton[T]) commitLocked(v *T, data []byte) {
	s.value = v
	s.encoded = data
	n := s.subs.publish(s.value)
	s.metrics.broadcast(s.name, n)
	s.log.Debug("persisted and broadcast",
		zap.Bool("present", v != nil),
		zap.Int("subscribers", n))
}

// loadLocked reads the backing file once. A missing, blank, or null file
// means no value; an undecodable one is a PersistenceError.
func (s *Singleton[T]) loadLocked() error {
	if s.loaded {
		return nil
	}

	data, path, err := s.file.read()
	if err != nil {
		return err
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, jsonNull) {
		var v T
		if err := s.codec.Unmarshal(data, &v); err != nil {
			return &types.PersistenceError{Op: types.OpDecode, Path: path, Err: err}
		}
		encoded, err := s.codec.Marshal(v)
		if err != nil {
			return &types.PersistenceError{Op: types.OpEncode, Path: path, Err: err}
		}
		s.value = &v
		s.encoded = encoded
	}

	s.loaded = true
	s.metrics.loaded(s.name)
	s.log.Debug("loaded", zap.String("path", path), zap.Bool("present", s.value != nil))
	return nil
}
