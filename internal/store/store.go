// Package store implements file-backed reactive entity stores.
//
// A store owns one JSON file. It loads the file lazily on first use, serves
// reads from an in-memory cache afterwards, and serializes every read and
// mutation through a per-store mutex. A mutation is persisted before it is
// committed to the cache, so the cache always equals the last successfully
// written state. Every committed change is broadcast to all live
// subscriptions; changes that leave the state as it was are neither written
// nor broadcast.
//
// Two shapes are provided: Collection for an ordered set of records with
// unique IDs, and Singleton for at most one record. Subscriptions are not
// capped; a caller that never cancels keeps its queue alive for the lifetime
// of the store.
package store

import (
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/weightlog/internal/codec"
	"github.com/mesh-intelligence/weightlog/internal/paths"
)

// Codec encodes and decodes a store's backing file.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Options carries the collaborators of a store. Zero values select defaults:
// the OS filesystem, codec.Default, a no-op logger, and no metrics. A nil
// Resolver makes every disk access fail with ErrDirectoryUnavailable.
type Options struct {
	Resolver paths.Resolver
	Fs       afero.Fs
	Codec    Codec
	Logger   *zap.Logger
	Metrics  *Metrics
}

func (o Options) withDefaults() Options {
	if o.Fs == nil {
		o.Fs = afero.NewOsFs()
	}
	if o.Codec == nil {
		o.Codec = codec.Default
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}
