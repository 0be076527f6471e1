package testutil

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"firesync/internal/config"
)

const (
	postgresImage    = "postgres:15-alpine"
	postgresUser     = "testuser"
	postgresPassword = "testpassword"
	postgresDB       = "firesync_test"
)

// PostgresHelper runs a disposable Postgres for ledger integration tests.
// The host port is pinned so the container keeps its address across Stop and Start.
type PostgresHelper struct {
	Container *postgres.PostgresContainer
	Config    *config.Postgres
	hostPort  int
}

func NewPostgresContainer(ctx context.Context) (*PostgresHelper, error) {
	hostPort, err := getPortManager().reservePort()
	if err != nil {
		return nil, err
	}

	pgContainer, err := postgres.Run(ctx,
		postgresImage,
		postgres.WithDatabase(postgresDB),
		postgres.WithUsername(postgresUser),
		postgres.WithPassword(postgresPassword),
		postgres.WithSQLDriver("pgx"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(1*time.Minute),
			wait.ForExposedPort().WithStartupTimeout(1*time.Minute),
		),
		testcontainers.WithHostConfigModifier(func(hostConfig *container.HostConfig) {
			hostConfig.PortBindings = nat.PortMap{
				nat.Port("5432/tcp"): []nat.PortBinding{{HostPort: strconv.Itoa(hostPort)}},
			}
		}),
	)
	if err != nil {
		getPortManager().releasePort(hostPort)
		return nil, fmt.Errorf("failed to start PostgreSQL container: %w", err)
	}

	host, err := pgContainer.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get host: %w", err)
	}

	portNat, err := pgContainer.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return nil, fmt.Errorf("failed to get mapped port: %w", err)
	}

	port, err := strconv.Atoi(portNat.Port())
	if err != nil {
		return nil, fmt.Errorf("failed to convert port to integer: %w", err)
	}

	return &PostgresHelper{
		Container: pgContainer,
		Config: &config.Postgres{
			Address:  host,
			Port:     port,
			Username: postgresUser,
			Password: postgresPassword,
			DBName:   postgresDB,
			SSLMode:  "disable",
		},
		hostPort: hostPort,
	}, nil
}

// ExecutePsqlCommand runs one SQL statement inside the container.
func (p *PostgresHelper) ExecutePsqlCommand(ctx context.Context, statement string) (string, error) {
	code, reader, err := p.Container.Exec(ctx, []string{
		"psql", "-U", postgresUser, "-d", postgresDB, "-v", "ON_ERROR_STOP=1", "-c", statement,
	})
	if err != nil {
		return "", fmt.Errorf("failed to execute psql: %w", err)
	}
	out, _ := io.ReadAll(reader)
	if code != 0 {
		return string(out), fmt.Errorf("psql exited with code %d: %s", code, out)
	}
	return string(out), nil
}

func (p *PostgresHelper) Terminate(ctx context.Context) error {
	if p.Container == nil {
		return nil
	}
	defer getPortManager().releasePort(p.hostPort)
	return p.Container.Terminate(ctx)
}

func (p *PostgresHelper) Stop(ctx context.Context, timeout *time.Duration) error {
	if p.Container != nil {
		return p.Container.Stop(ctx, timeout)
	}
	return nil
}

func (p *PostgresHelper) Start(ctx context.Context) error {
	if p.Container != nil {
		return p.Container.Start(ctx)
	}
	return nil
}
