package sqlite

// Schema DDL for the entry index. Measurement times are split into unix
// seconds and nanoseconds so every representable time orders correctly.
const (
	createEntries = `CREATE TABLE entries (
    id TEXT PRIMARY KEY,
    weight_kg REAL NOT NULL,
    measured_sec INTEGER NOT NULL,
    measured_nsec INTEGER NOT NULL,
    note TEXT NOT NULL DEFAULT '',
    source TEXT NOT NULL,
    created_at TEXT NOT NULL
);`

	createEntriesMeasuredIndex = `CREATE INDEX idx_entries_measured ON entries (measured_sec, measured_nsec);`
)

// schemaDDL lists the statements executed when the index is created.
var schemaDDL = []string{
	createEntries,
	createEntriesMeasuredIndex,
}

// entryColumns is the column list shared by inserts and selects.
const entryColumns = "id, weight_kg, measured_sec, measured_nsec, note, source, created_at"

// Ordering clauses. newestFirst matches the store's entry order; oldestFirst
// is its exact reverse.
const (
	newestFirst = "ORDER BY measured_sec DESC, measured_nsec DESC, id ASC"
	oldestFirst = "ORDER BY measured_sec ASC, measured_nsec ASC, id DESC"
)
