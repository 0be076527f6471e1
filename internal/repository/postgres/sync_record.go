package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"firesync/internal/models"
	"firesync/internal/repository"
	"firesync/pkg/db"
	"firesync/pkg/log"
)

const recordColumns = `remote_path, entity_kind, target, entity_id, last_sync_attempt, last_sync_success, status, error_message`

// PostgreSQLSyncRecordRepository stores the ledger in Postgres. Every query
// goes through a retry policy wrapped by a circuit breaker.
type PostgreSQLSyncRecordRepository struct {
	psql           *db.PostgresDatastore
	circuitBreaker *gobreaker.CircuitBreaker
	retryOptFunc   func() []backoff.RetryOption
	logger         zerolog.Logger
}

func NewPostgreSQLSyncRecordRepository(psql *db.PostgresDatastore) *PostgreSQLSyncRecordRepository {
	logger := log.Logger.With().Str("component", "sync_record_repository").Logger()
	return &PostgreSQLSyncRecordRepository{
		psql:           psql,
		circuitBreaker: newCircuitBreaker(logger),
		retryOptFunc:   newBackoffStrategy,
		logger:         logger,
	}
}

func newCircuitBreaker(logger zerolog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "postgres_sync_records",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: isSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker changed state")
		},
	})
}

//nolint:mnd
func newBackoffStrategy() []backoff.RetryOption {
	strategy := backoff.NewExponentialBackOff()
	strategy.InitialInterval = 200 * time.Millisecond
	strategy.MaxInterval = 2 * time.Second
	return []backoff.RetryOption{
		backoff.WithBackOff(strategy),
		backoff.WithMaxTries(10),
		backoff.WithMaxElapsedTime(15 * time.Second),
	}
}

func isSuccessful(err error) bool {
	return err == nil || errors.Is(err, sql.ErrNoRows) || errors.Is(err, repository.ErrInvalidQueryParameters)
}

func (repo *PostgreSQLSyncRecordRepository) GetSyncRecord(ctx context.Context, remotePath string) (*models.SyncRecord, error) {
	if remotePath == "" {
		return nil, repository.ErrInvalidQueryParameters
	}
	query := `SELECT ` + recordColumns + ` FROM sync_records WHERE remote_path = $1`

	record, err := execute(ctx, repo, func() (*models.SyncRecord, error) {
		var record models.SyncRecord
		if err := repo.psql.DB.GetContext(ctx, &record, query, remotePath); err != nil {
			return nil, err
		}
		return &record, nil
	})
	if err != nil {
		repo.decorateLog(repo.logger.Debug, remotePath).Err(err).Msg("Failed to get sync record")
		return nil, err
	}
	repo.decorateLog(repo.logger.Debug, remotePath).Msg("Retrieved sync record")
	return record, nil
}

// UpsertSyncRecord inserts or replaces the row for the record's remote path.
// A record without a success time keeps the previously stored one.
func (repo *PostgreSQLSyncRecordRepository) UpsertSyncRecord(ctx context.Context, record models.SyncRecord) error {
	if err := repository.ValidateRecord(record); err != nil {
		return err
	}
	query := `
		INSERT INTO sync_records (` + recordColumns + `)
		VALUES (:remote_path, :entity_kind, :target, :entity_id, :last_sync_attempt, :last_sync_success, :status, :error_message)
		ON CONFLICT (remote_path) DO UPDATE SET
			entity_kind       = EXCLUDED.entity_kind,
			target            = EXCLUDED.target,
			entity_id         = EXCLUDED.entity_id,
			last_sync_attempt = EXCLUDED.last_sync_attempt,
			last_sync_success = COALESCE(EXCLUDED.last_sync_success, sync_records.last_sync_success),
			status            = EXCLUDED.status,
			error_message     = EXCLUDED.error_message`

	_, err := execute(ctx, repo, func() (sql.Result, error) {
		return repo.psql.DB.NamedExecContext(ctx, query, record)
	})
	if err != nil {
		repo.decorateLog(repo.logger.Error, record.RemotePath).Err(err).Msg("Failed to upsert sync record")
		return err
	}
	repo.decorateLog(repo.logger.Debug, record.RemotePath).Str("status", record.Status.String()).Msg("Recorded sync attempt")
	return nil
}

func (repo *PostgreSQLSyncRecordRepository) ListSyncRecords(ctx context.Context, limit int) ([]models.SyncRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM sync_records ORDER BY last_sync_attempt DESC, remote_path`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	records, err := execute(ctx, repo, func() ([]models.SyncRecord, error) {
		records := make([]models.SyncRecord, 0)
		if err := repo.psql.DB.SelectContext(ctx, &records, query, args...); err != nil {
			return nil, err
		}
		return records, nil
	})
	if err != nil {
		repo.logger.Error().Err(err).Msg("Failed to list sync records")
		return []models.SyncRecord{}, err
	}
	return records, nil
}

func (repo *PostgreSQLSyncRecordRepository) CountByStatus(ctx context.Context) (map[models.SyncStatus]int, error) {
	query := `SELECT status, COUNT(*) AS count FROM sync_records GROUP BY status`

	type statusCount struct {
		Status models.SyncStatus `db:"status"`
		Count  int               `db:"count"`
	}
	rows, err := execute(ctx, repo, func() ([]statusCount, error) {
		var rows []statusCount
		if err := repo.psql.DB.SelectContext(ctx, &rows, query); err != nil {
			return nil, err
		}
		return rows, nil
	})
	if err != nil {
		repo.logger.Error().Err(err).Msg("Failed to count sync records")
		return nil, err
	}

	counts := make(map[models.SyncStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (repo *PostgreSQLSyncRecordRepository) Close() error {
	return repo.psql.Close()
}

// execute runs op with retries inside the circuit breaker and maps failures
// onto the repository sentinels.
func execute[T any](ctx context.Context, repo *PostgreSQLSyncRecordRepository, op func() (T, error)) (T, error) {
	var zero T

	result, err := repo.circuitBreaker.Execute(func() (any, error) {
		return backoff.Retry(ctx, func() (T, error) {
			value, err := op()
			if errors.Is(err, sql.ErrNoRows) {
				return value, backoff.Permanent(err)
			}
			return value, err
		}, repo.retryOptFunc()...)
	})

	switch {
	case err == nil:
		return result.(T), nil
	case errors.Is(err, sql.ErrNoRows):
		return zero, repository.ErrRecordNotFound
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return zero, fmt.Errorf("%w: %v", repository.ErrDatabaseUnavailable, err)
	default:
		return zero, fmt.Errorf("%w: %v", repository.ErrDatabaseGeneric, err)
	}
}

func (repo *PostgreSQLSyncRecordRepository) decorateLog(eventFactory func() *zerolog.Event, remotePath string) *zerolog.Event {
	return eventFactory().Str("remote_path", remotePath)
}
