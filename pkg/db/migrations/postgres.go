package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"firesync/pkg/log"
)

const sourceType = "iofs"

//go:embed postgres/*.sql
var PostgresFS embed.FS

// LedgerMigrations serves the sync ledger schema embedded in the binary.
type LedgerMigrations struct {
	fs fs.FS
}

func NewLedgerMigrations() *LedgerMigrations {
	subFS, err := fs.Sub(PostgresFS, "postgres")
	if err != nil {
		log.Logger.Error().Err(err).Str("component", "migrations").Msg("Failed to open embedded ledger migrations")
		return nil
	}
	return &LedgerMigrations{fs: subFS}
}

func (m *LedgerMigrations) GetSourceType() string {
	return sourceType
}

func (m *LedgerMigrations) GetSourceDriver() (source.Driver, error) {
	d, err := iofs.New(m.fs, ".")
	if err != nil {
		log.Logger.Error().Err(err).Str("component", "migrations").Msg("Failed to create migration source from embedded files")
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}
	return d, nil
}

// UpScripts lists the forward migration files in apply order.
func (m *LedgerMigrations) UpScripts() ([]string, error) {
	entries, err := fs.ReadDir(m.fs, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}
	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
