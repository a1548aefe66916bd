package types

import (
	"errors"
	"fmt"
)

// Storage errors.
var (
	// ErrDirectoryUnavailable reports that no writable private data directory
	// could be determined or created. It is never retried internally.
	ErrDirectoryUnavailable = errors.New("data directory unavailable")

	// ErrPersistence matches every *PersistenceError via errors.Is.
	ErrPersistence = errors.New("persistence failure")
)

// Entity and lookup errors.
var (
	ErrNotFound         = errors.New("entity not found")
	ErrInvalidID        = errors.New("invalid entity ID")
	ErrInvalidWeight    = errors.New("weight must be between 0 and 1000 kg")
	ErrInvalidTimestamp = errors.New("timestamp must be set")
	ErrInvalidGoal      = errors.New("invalid weight goal")
	ErrInvalidUnit      = errors.New("unknown weight unit")
)

// Persistence operations recorded in PersistenceError.Op.
const (
	OpRead   = "read"
	OpWrite  = "write"
	OpEncode = "encode"
	OpDecode = "decode"
	OpRemove = "remove"
)

// PersistenceError wraps a read, write, encode, decode, or remove failure on a
// store's backing file. A decode failure on a non-empty file means the file is
// corrupt; stores surface it instead of resetting to empty.
type PersistenceError struct {
	Op   string // One of the Op constants.
	Path string // Backing file path, when known.
	Err  error  // Underlying cause.
}

func (e *PersistenceError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Is reports whether target is ErrPersistence.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}
