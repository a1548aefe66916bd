// Package journal provides the public API for opening a weight journal.
// This package exposes the factory function while keeping the store
// implementation internal.
package journal

import (
	"github.com/mesh-intelligence/weightlog/internal/journal"
	"github.com/mesh-intelligence/weightlog/pkg/types"
)

// Open creates a journal over cfg.DataDir using the OS filesystem.
//
// Example:
//
//	j, err := journal.Open(types.Config{DataDir: "/var/lib/weightlog"})
//	if err != nil {
//	    return err
//	}
//	entry, err := j.LogWeight(72.4, time.Time{}, "")
func Open(cfg types.Config) (types.Journal, error) {
	j, err := journal.Open(cfg, journal.Options{})
	if err != nil {
		return nil, err
	}
	return j, nil
}
