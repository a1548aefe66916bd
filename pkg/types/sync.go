package types

import "time"

// SyncRecord notes that an entry has been written to the health platform.
// There is at most one record per entry.
type SyncRecord struct {
	EntryID    string    `json:"entry_id"`
	ExternalID string    `json:"external_id"` // Sample identifier assigned by the platform.
	Platform   string    `json:"platform"`
	SyncedAt   time.Time `json:"synced_at"`
}

// Validate checks the identity fields.
func (r SyncRecord) Validate() error {
	if r.EntryID == "" || r.ExternalID == "" {
		return ErrInvalidID
	}
	if r.SyncedAt.IsZero() {
		return ErrInvalidTimestamp
	}
	return nil
}

// SyncRecordID returns the identity of a sync record.
func SyncRecordID(r SyncRecord) string { return r.EntryID }

// SyncNewerFirst orders records by sync time, newest first, ties by entry ID.
func SyncNewerFirst(a, b SyncRecord) bool {
	if !a.SyncedAt.Equal(b.SyncedAt) {
		return a.SyncedAt.After(b.SyncedAt)
	}
	return a.EntryID < b.EntryID
}
