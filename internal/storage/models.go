package storage

import (
	"time"
)

// Sync run statuses.
const (
	SyncStatusOK      = "ok"
	SyncStatusFailed  = "failed"
	SyncStatusSkipped = "skipped"
)

// SyncRun records one attempt to persist live rates, for auditing.
type SyncRun struct {
	ID           int64
	Trigger      string
	BusinessDate string
	Status       string
	Error        *string
	CreatedAt    time.Time
}
