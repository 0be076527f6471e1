package db

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx driver with database/sql
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/golang-migrate/migrate/v4"
	psqlmigrator "github.com/golang-migrate/migrate/v4/database/postgres"

	"firesync/internal/config"
	"firesync/pkg/db/migrations"
	"firesync/pkg/log"
)

//nolint:gochecknoglobals
var defaultHealthCheckPeriod = 1 * time.Minute

const pingTimeout = 5 * time.Second

// PostgresDatastore owns the ledger connection pool and its background health check.
type PostgresDatastore struct {
	DB              *sqlx.DB
	migrationSource migrations.MigrationSource
	healthy         bool
	mu              sync.RWMutex
	stop            chan struct{}
	done            sync.WaitGroup
	closeOnce       sync.Once
	logger          zerolog.Logger
}

type poolConfig struct {
	maxOpen         int
	maxIdle         int
	connMaxLifetime time.Duration
	connMaxIdleTime time.Duration
}

func NewPostgresDatastore(
	ctx context.Context,
	cfg *config.Postgres,
	migrationSource migrations.MigrationSource,
) (*PostgresDatastore, error) {
	if cfg == nil {
		return nil, errors.New("postgres configuration is missing")
	}
	logger := log.Logger.With().Str("component", "postgres_datastore").Logger()

	dsn := buildPostgresDSN(cfg)
	redacted := redactDSN(dsn)
	logger.Info().Str("dsn", redacted).Msg("Connecting to PostgreSQL")

	conn, err := sqlx.ConnectContext(ctx, "pgx", dsn)
	if err != nil {
		logger.Error().Err(err).Str("dsn", redacted).Msg("Failed to connect to postgres")
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	pool := defaultPoolConfig(cfg.MaxConnections)
	setPoolConfig(pool, conn, logger)

	store := &PostgresDatastore{
		DB:              conn,
		migrationSource: migrationSource,
		healthy:         true,
		stop:            make(chan struct{}),
		logger:          logger,
	}

	if err := store.initSchema(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	store.startHealthCheck(defaultHealthCheckPeriod)
	logger.Info().Str("dsn", redacted).Msg("Connected to PostgreSQL")
	return store, nil
}

// Healthy reports the result of the last background ping.
func (p *PostgresDatastore) Healthy() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.healthy
}

func (p *PostgresDatastore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	err := p.DB.PingContext(ctx)
	p.mu.Lock()
	p.healthy = err == nil
	p.mu.Unlock()
	return err
}

func (p *PostgresDatastore) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.stop)
		p.done.Wait()
		if p.DB != nil {
			p.logger.Info().Msg("Closing PostgreSQL connection")
			err = p.DB.Close()
		}
	})
	return err
}

func (p *PostgresDatastore) initSchema() error {
	if p.migrationSource == nil {
		return errors.New("could not create migrate instance: no migration source")
	}
	d, err := p.migrationSource.GetSourceDriver()
	if err != nil {
		return err
	}

	driver, err := psqlmigrator.WithInstance(p.DB.DB, &psqlmigrator.Config{})
	if err != nil {
		p.logger.Error().Err(err).Msg("Could not create postgres driver for migrate")
		return fmt.Errorf("could not create postgres driver for migrate: %w", err)
	}

	m, err := migrate.NewWithInstance(p.migrationSource.GetSourceType(), d, p.DB.DriverName(), driver)
	if err != nil {
		p.logger.Error().Err(err).Msg("Could not create migrate instance")
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if upErr := m.Up(); upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		p.logger.Error().Err(upErr).Msg("Failed to apply migrations")
		return fmt.Errorf("failed to apply migrations: %w", upErr)
	}

	version, dirty, err := m.Version()
	if err != nil {
		p.logger.Warn().Err(err).Msg("Could not read migration version")
		return nil
	}
	p.logger.Info().Uint("version", version).Bool("dirty", dirty).Msg("Ledger schema is up to date")
	return nil
}

func (p *PostgresDatastore) startHealthCheck(period time.Duration) {
	ticker := time.NewTicker(period)
	p.done.Add(1)
	go func() {
		defer p.done.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := p.Ping(context.Background()); err != nil {
					p.logger.Warn().Err(err).Msg("Database health check failed")
				}
			case <-p.stop:
				p.logger.Debug().Msg("Stopped database health check")
				return
			}
		}
	}()
}

func buildPostgresDSN(cfg *config.Postgres) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.Username, cfg.Password),
		Host:   fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Path:   cfg.DBName,
	}
	query := dsn.Query()
	query.Set("sslmode", sslMode)
	dsn.RawQuery = query.Encode()

	return dsn.String()
}

func redactDSN(dsn string) string {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return "<unparseable dsn>"
	}
	if parsed.User != nil {
		parsed.User = url.UserPassword(parsed.User.Username(), "xxxxx")
	}
	return parsed.String()
}

//nolint:mnd
func defaultPoolConfig(maxConnections int) poolConfig {
	return poolConfig{
		maxOpen:         maxConnections,
		maxIdle:         2,
		connMaxLifetime: 15 * time.Minute,
		connMaxIdleTime: 5 * time.Minute,
	}
}

func setPoolConfig(cfg poolConfig, db *sqlx.DB, logger zerolog.Logger) {
	db.SetMaxIdleConns(cfg.maxIdle)
	db.SetMaxOpenConns(cfg.maxOpen)
	db.SetConnMaxIdleTime(cfg.connMaxIdleTime)
	db.SetConnMaxLifetime(cfg.connMaxLifetime)

	logger.Debug().
		Int("max_open", cfg.maxOpen).
		Int("max_idle", cfg.maxIdle).
		Dur("max_lifetime", cfg.connMaxLifetime).
		Dur("max_idle_time", cfg.connMaxIdleTime).
		Msg("Configured PostgreSQL connection pool")
}
