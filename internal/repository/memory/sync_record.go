package memory

import (
	"container/list"
	"context"
	"sort"
	"sync"

	"firesync/internal/models"
	"firesync/internal/repository"
)

const DefaultCapacity = 100

// SyncRecordRepository is the ledger used when no database is configured. It
// keeps the most recently written records and evicts the oldest write once
// capacity is reached.
type SyncRecordRepository struct {
	mu       sync.RWMutex
	capacity int
	order    *list.List
	index    map[string]*list.Element
}

func NewSyncRecordRepository(capacity int) *SyncRecordRepository {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &SyncRecordRepository{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[string]*list.Element),
	}
}

func (r *SyncRecordRepository) GetSyncRecord(_ context.Context, remotePath string) (*models.SyncRecord, error) {
	if remotePath == "" {
		return nil, repository.ErrInvalidQueryParameters
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	el, ok := r.index[remotePath]
	if !ok {
		return nil, repository.ErrRecordNotFound
	}
	record := el.Value.(models.SyncRecord)
	return &record, nil
}

func (r *SyncRecordRepository) UpsertSyncRecord(_ context.Context, record models.SyncRecord) error {
	if err := repository.ValidateRecord(record); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if el, ok := r.index[record.RemotePath]; ok {
		previous := el.Value.(models.SyncRecord)
		if record.LastSyncSuccess == nil {
			record.LastSyncSuccess = previous.LastSyncSuccess
		}
		r.order.Remove(el)
	}
	r.index[record.RemotePath] = r.order.PushFront(record)

	for r.order.Len() > r.capacity {
		oldest := r.order.Back()
		r.order.Remove(oldest)
		delete(r.index, oldest.Value.(models.SyncRecord).RemotePath)
	}
	return nil
}

func (r *SyncRecordRepository) ListSyncRecords(_ context.Context, limit int) ([]models.SyncRecord, error) {
	r.mu.RLock()
	records := make([]models.SyncRecord, 0, r.order.Len())
	for el := r.order.Front(); el != nil; el = el.Next() {
		records = append(records, el.Value.(models.SyncRecord))
	}
	r.mu.RUnlock()

	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].LastSyncAttempt.Equal(records[j].LastSyncAttempt) {
			return records[i].LastSyncAttempt.After(records[j].LastSyncAttempt)
		}
		return records[i].RemotePath < records[j].RemotePath
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (r *SyncRecordRepository) CountByStatus(_ context.Context) (map[models.SyncStatus]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[models.SyncStatus]int)
	for el := r.order.Front(); el != nil; el = el.Next() {
		counts[el.Value.(models.SyncRecord).Status]++
	}
	return counts, nil
}

func (r *SyncRecordRepository) Close() error { return nil }
