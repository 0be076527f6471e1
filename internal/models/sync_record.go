package models

import "time"

// SyncStatus represents the outcome of the last write of a remote document.
const (
	StatusSuccess SyncStatus = "success"
	StatusFailed  SyncStatus = "failed"
	StatusDeleted SyncStatus = "deleted"
	StatusSkipped SyncStatus = "skipped"
)

type SyncStatus string

func (s SyncStatus) String() string {
	return string(s)
}

// SyncRecord is the ledger row kept for every remote document the tool writes.
type SyncRecord struct {
	RemotePath      string     `db:"remote_path" json:"remote_path" yaml:"remote_path"`
	EntityKind      TargetKind `db:"entity_kind" json:"entity_kind" yaml:"entity_kind"`
	Target          string     `db:"target" json:"target" yaml:"target"`
	EntityID        string     `db:"entity_id" json:"entity_id" yaml:"entity_id"`
	LastSyncAttempt time.Time  `db:"last_sync_attempt" json:"last_sync_attempt" yaml:"last_sync_attempt"`
	LastSyncSuccess *time.Time `db:"last_sync_success" json:"last_sync_success,omitempty" yaml:"last_sync_success,omitempty"`
	Status          SyncStatus `db:"status" json:"status" yaml:"status"`
	ErrorMessage    *string    `db:"error_message" json:"error_message,omitempty" yaml:"error_message,omitempty"`
}

func (r *SyncRecord) SetErrorMessage(msg *string) {
	r.ErrorMessage = msg
}

func (r *SyncRecord) SetStatus(status SyncStatus) {
	r.Status = status
}

func (r *SyncRecord) SetLastSuccessAttempt(t *time.Time) {
	r.LastSyncSuccess = t
}
