package testutil

import (
	"time"

	"firesync/internal/models"
)

func CopyStruct[T any](original *T) *T {
	if original == nil {
		return nil
	}
	copy := *original
	return &copy
}

// NewSyncRecord builds a successful ledger record for the given remote path.
func NewSyncRecord(remotePath string, attempt time.Time) models.SyncRecord {
	success := attempt
	return models.SyncRecord{
		RemotePath:      remotePath,
		EntityKind:      models.TargetContentType,
		Target:          "post",
		EntityID:        "1",
		LastSyncAttempt: attempt,
		LastSyncSuccess: &success,
		Status:          models.StatusSuccess,
	}
}
