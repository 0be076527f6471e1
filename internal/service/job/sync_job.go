package job

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"firesync/internal/models"
	"firesync/internal/repository"
	"firesync/pkg/log"
)

// Writer is the part of the document store a job needs.
type Writer interface {
	Upsert(ctx context.Context, path string, doc *models.SyncDocument, merge bool) error
	Delete(ctx context.Context, path string) error
}

type Operation string

const (
	OperationUpsert Operation = "upsert"
	OperationDelete Operation = "delete"
)

// Entity identifies what a job writes and where.
type Entity struct {
	Kind   models.TargetKind
	Target string
	ID     string
	Path   string
}

// SyncJob writes or deletes one remote document and records the outcome in
// the ledger.
type SyncJob struct {
	entity    Entity
	operation Operation
	document  *models.SyncDocument
	degraded  []string
	writer    Writer
	ledger    repository.SyncRecordRepository
	now       func() time.Time
	logger    zerolog.Logger
}

// NewUpsertJob replaces the remote document with doc. degraded lists the
// destination keys that resolved to null while mapping.
func NewUpsertJob(entity Entity, doc *models.SyncDocument, degraded []string, writer Writer, ledger repository.SyncRecordRepository) *SyncJob {
	return newSyncJob(entity, OperationUpsert, doc, degraded, writer, ledger)
}

func NewDeleteJob(entity Entity, writer Writer, ledger repository.SyncRecordRepository) *SyncJob {
	return newSyncJob(entity, OperationDelete, nil, nil, writer, ledger)
}

func newSyncJob(entity Entity, op Operation, doc *models.SyncDocument, degraded []string, writer Writer, ledger repository.SyncRecordRepository) *SyncJob {
	return &SyncJob{
		entity:    entity,
		operation: op,
		document:  doc,
		degraded:  degraded,
		writer:    writer,
		ledger:    ledger,
		now:       time.Now,
		logger: log.Logger.With().
			Str("component", "sync_job").
			Str("kind", string(entity.Kind)).
			Str("target", entity.Target).
			Str("path", entity.Path).
			Logger(),
	}
}

func (job *SyncJob) Execute(ctx context.Context) *SyncJobResult {
	logger := job.logger.With().Str("action", string(job.operation)).Logger()
	started := job.now()

	if err := ctx.Err(); err != nil {
		logger.Debug().Err(err).Msg("Job skipped, context is done")
		return job.result(SyncJobStatusSkipped, err, started)
	}

	var err error
	switch job.operation {
	case OperationUpsert:
		err = job.writer.Upsert(ctx, job.entity.Path, job.document, false)
	case OperationDelete:
		err = job.writer.Delete(ctx, job.entity.Path)
	default:
		err = errors.New("unknown job operation " + string(job.operation))
	}

	if err != nil {
		logger.Error().Err(err).Msg("Failed to write remote document")
		job.record(ctx, models.StatusFailed, err, started)
		return job.result(SyncJobStatusFailed, err, started)
	}

	status, ledgerStatus := SyncJobStatusUpdated, models.StatusSuccess
	if job.operation == OperationDelete {
		status, ledgerStatus = SyncJobStatusDeleted, models.StatusDeleted
	}
	job.record(ctx, ledgerStatus, nil, started)

	logger.Debug().Int("degraded", len(job.degraded)).Msg("Remote document written")
	return job.result(status, nil, started)
}

// record writes the ledger entry. Ledger failures are logged and never change
// the job outcome, the remote write already happened.
func (job *SyncJob) record(ctx context.Context, status models.SyncStatus, cause error, attempted time.Time) {
	if job.ledger == nil {
		return
	}
	record := models.SyncRecord{
		RemotePath:      job.entity.Path,
		EntityKind:      job.entity.Kind,
		Target:          job.entity.Target,
		EntityID:        job.entity.ID,
		LastSyncAttempt: attempted.UTC(),
	}
	record.SetStatus(status)
	if cause != nil {
		msg := cause.Error()
		record.SetErrorMessage(&msg)
	} else {
		success := attempted.UTC()
		record.SetLastSuccessAttempt(&success)
	}

	if err := job.ledger.UpsertSyncRecord(ctx, record); err != nil {
		job.logger.Warn().Err(err).Msg("Failed to record sync attempt in the ledger")
	}
}

func (job *SyncJob) result(status SyncJobStatus, err error, started time.Time) *SyncJobResult {
	return &SyncJobResult{
		Entity:    job.entity,
		Operation: job.operation,
		Status:    status,
		Degraded:  job.degraded,
		Error:     err,
		Duration:  job.now().Sub(started),
	}
}

type SyncJobStatus string

const (
	SyncJobStatusUpdated SyncJobStatus = "updated"
	SyncJobStatusDeleted SyncJobStatus = "deleted"
	SyncJobStatusFailed  SyncJobStatus = "failed"
	SyncJobStatusSkipped SyncJobStatus = "skipped"
)

type SyncJobResult struct {
	Entity    Entity
	Operation Operation
	Status    SyncJobStatus
	Degraded  []string
	Error     error
	Duration  time.Duration
}

func (r *SyncJobResult) Failed() bool {
	return r.Status == SyncJobStatusFailed
}

// NewFailedResult reports a job that failed before it could write, e.g.
// because the entity could not be read from the content system.
func NewFailedResult(entity Entity, op Operation, err error) *SyncJobResult {
	return &SyncJobResult{Entity: entity, Operation: op, Status: SyncJobStatusFailed, Error: err}
}
