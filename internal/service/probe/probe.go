package probe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"firesync/internal/firestore"
	"firesync/internal/models"
	"firesync/pkg/log"
)

const testMessage = "Connection test from firesync"

// Store is the part of the document store the probe uses.
type Store interface {
	Probe(ctx context.Context) (bool, error)
	Upsert(ctx context.Context, path string, doc *models.SyncDocument, merge bool) error
}

// ConnectionProbe checks that the document store is reachable with the
// configured credentials.
type ConnectionProbe struct {
	store  Store
	now    func() time.Time
	logger zerolog.Logger
}

func New(store Store) *ConnectionProbe {
	return &ConnectionProbe{
		store:  store,
		now:    time.Now,
		logger: log.Logger.With().Str("component", "probe").Logger(),
	}
}

// Check reports reachability as a plain boolean. The cause of a failure is
// only logged.
func (p *ConnectionProbe) Check(ctx context.Context) bool {
	if err := p.CheckWithError(ctx); err != nil {
		p.logger.Error().Err(err).Msg("Document store is not reachable")
		return false
	}
	return true
}

func (p *ConnectionProbe) CheckWithError(ctx context.Context) error {
	ok, err := p.store.Probe(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("document store probe failed")
	}
	p.logger.Debug().Msg("Document store reachable")
	return nil
}

// WriteResult describes the document written by WriteTest.
type WriteResult struct {
	Path      string    `json:"path" yaml:"path"`
	ID        string    `json:"id" yaml:"id"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// WriteTest writes a small document into the test collection. It proves
// write access, which Check alone does not.
func (p *ConnectionProbe) WriteTest(ctx context.Context) (*WriteResult, error) {
	now := p.now().UTC()
	result := &WriteResult{
		Path:      firestore.TestDocumentPath(now.Unix()),
		ID:        uuid.NewString(),
		Timestamp: now,
	}

	doc := models.NewSyncDocument().
		Set("id", models.String(result.ID)).
		Set("timestamp", models.Int(now.Unix())).
		Set("message", models.String(testMessage))

	if err := p.store.Upsert(ctx, result.Path, doc, false); err != nil {
		return nil, fmt.Errorf("failed to write test document %s: %w", result.Path, err)
	}

	p.logger.Info().Str("path", result.Path).Str("id", result.ID).Msg("Test document written")
	return result, nil
}
