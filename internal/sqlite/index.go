// Package sqlite maintains a disposable SQLite projection of the weight
// entries for range and summary queries. The JSON files remain the source of
// truth; the index is rebuilt from a snapshot whenever it is opened.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/weightlog/pkg/types"
)

// IndexFile is the database file name inside the data directory.
const IndexFile = "index.db"

// ErrIndexClosed is returned by operations on a closed index.
var ErrIndexClosed = errors.New("index is closed")

// Index is a SQLite table of weight entries kept in step with the entry
// store by Replace or Follow.
type Index struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	log    *zap.Logger
	closed bool
}

// OpenIndex creates a fresh index.db in dataDir. Any existing database file
// is removed first so the schema always matches this build.
func OpenIndex(dataDir string, logger *zap.Logger) (*Index, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, IndexFile)
	if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("remove stale index: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	// A single connection serializes Replace against queries.
	db.SetMaxOpenConns(1)

	for _, stmt := range schemaDDL {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}

	return &Index{
		db:   db,
		path: dbPath,
		log:  logger.With(zap.String("component", "index")),
	}, nil
}

// Path returns the database file path.
func (x *Index) Path() string { return x.path }

// Close releases the database. Closing twice is not an error.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return nil
	}
	x.closed = true
	return x.db.Close()
}

// Replace swaps the indexed rows for entries in one transaction.
func (x *Index) Replace(entries []types.WeightEntry) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return ErrIndexClosed
	}

	tx, err := x.db.Begin()
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM entries"); err != nil {
		return fmt.Errorf("clear entries: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO entries (" + entryColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		_, err := stmt.Exec(
			e.ID,
			e.WeightKg,
			e.MeasuredAt.Unix(),
			e.MeasuredAt.Nanosecond(),
			e.Note,
			e.Source,
			e.CreatedAt.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("insert entry %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}
	x.log.Debug("index replaced", zap.Int("entries", len(entries)))
	return nil
}

// Follow applies every snapshot from stream until ctx is done or the stream
// closes. It returns ctx.Err() on cancellation, nil when the stream closes,
// and the first Replace error otherwise. The caller owns the stream.
func (x *Index) Follow(ctx context.Context, stream types.Stream[[]types.WeightEntry]) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snapshot, ok := <-stream.C():
			if !ok {
				return nil
			}
			if err := x.Replace(snapshot); err != nil {
				return err
			}
		}
	}
}

// Range returns the entries measured in [from, to), newest first. A zero
// bound leaves that side open.
func (x *Index) Range(from, to time.Time) ([]types.WeightEntry, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return nil, ErrIndexClosed
	}

	where, args := rangeClause(from, to)
	rows, err := x.db.Query("SELECT "+entryColumns+" FROM entries"+where+" "+newestFirst, args...)
	if err != nil {
		return nil, fmt.Errorf("query range: %w", err)
	}
	defer rows.Close()

	entries := []types.WeightEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate range: %w", err)
	}
	return entries, nil
}

func scanEntry(rows *sql.Rows) (types.WeightEntry, error) {
	var (
		e         types.WeightEntry
		sec, nsec int64
		createdAt string
	)
	if err := rows.Scan(&e.ID, &e.WeightKg, &sec, &nsec, &e.Note, &e.Source, &createdAt); err != nil {
		return types.WeightEntry{}, fmt.Errorf("scan entry: %w", err)
	}
	e.MeasuredAt = time.Unix(sec, nsec).UTC()
	created, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return types.WeightEntry{}, fmt.Errorf("parse created_at of %s: %w", e.ID, err)
	}
	e.CreatedAt = created
	return e, nil
}

// rangeClause builds the WHERE clause for [from, to).
func rangeClause(from, to time.Time) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if !from.IsZero() {
		conds = append(conds, "(measured_sec > ? OR (measured_sec = ? AND measured_nsec >= ?))")
		args = append(args, from.Unix(), from.Unix(), from.Nanosecond())
	}
	if !to.IsZero() {
		conds = append(conds, "(measured_sec < ? OR (measured_sec = ? AND measured_nsec < ?))")
		args = append(args, to.Unix(), to.Unix(), to.Nanosecond())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
