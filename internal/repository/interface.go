package repository

import (
	"context"

	"firesync/internal/models"
)

// SyncRecordRepository keeps the last write outcome per remote document path.
type SyncRecordRepository interface {
	GetSyncRecord(ctx context.Context, remotePath string) (*models.SyncRecord, error)
	UpsertSyncRecord(ctx context.Context, record models.SyncRecord) error
	// ListSyncRecords returns records by most recent attempt first. A limit of
	// zero or less returns every record.
	ListSyncRecords(ctx context.Context, limit int) ([]models.SyncRecord, error)
	CountByStatus(ctx context.Context) (map[models.SyncStatus]int, error)
	Close() error
}

// ValidateRecord rejects records that cannot be keyed.
func ValidateRecord(record models.SyncRecord) error {
	if record.RemotePath == "" || record.Status == "" {
		return ErrInvalidQueryParameters
	}
	return nil
}
