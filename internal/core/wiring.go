package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"firesync/internal/auth"
	"firesync/internal/cms"
	"firesync/internal/cms/wordpress"
	"firesync/internal/config"
	"firesync/internal/firestore"
	"firesync/internal/repository"
	"firesync/internal/repository/memory"
	"firesync/internal/repository/postgres"
	"firesync/internal/service/mapper"
	"firesync/internal/service/orchestrator"
	"firesync/internal/service/probe"
	"firesync/internal/webhook"
	"firesync/pkg/db"
	"firesync/pkg/db/migrations"
	"firesync/pkg/log"
)

// Wiring builds every component once from the loaded configuration and owns
// their lifetime.
type Wiring struct {
	config *config.Config
	viper  *viper.Viper
	logger zerolog.Logger

	tokensOnce sync.Once
	tokens     auth.Source
	tokensErr  error

	storeOnce sync.Once
	store     firestore.Transport
	storeErr  error

	wordpressOnce sync.Once
	wordpress     *wordpress.Client
	wordpressErr  error

	ledgerOnce sync.Once
	ledger     repository.SyncRecordRepository
	ledgerErr  error

	targetsOnce sync.Once
	targets     *config.TargetStore
}

func NewWiring(cfg *config.Config, v *viper.Viper) *Wiring {
	return &Wiring{
		config: cfg,
		viper:  v,
		logger: log.Logger.With().Str("component", "wiring").Logger(),
	}
}

func (w *Wiring) GetConfig() *config.Config {
	return w.config
}

// InitTokenSource returns the emulator source when the emulator is enabled,
// otherwise a cached service account source.
func (w *Wiring) InitTokenSource() (auth.Source, error) {
	w.tokensOnce.Do(func() {
		fs := w.config.Firestore
		if fs.Emulator.Enabled {
			w.tokens = auth.EmulatorSource{}
			return
		}

		var cred *auth.ServiceAccountCredential
		if fs.ServiceAccountJSON != "" {
			cred, w.tokensErr = auth.ParseServiceAccountCredential([]byte(fs.ServiceAccountJSON))
		} else {
			cred, w.tokensErr = auth.LoadServiceAccountFile(fs.ServiceAccountFile)
		}
		if w.tokensErr != nil {
			return
		}
		provider := auth.NewTokenProvider(auth.WithExchangeTimeout(fs.Timeout))
		w.tokens = auth.NewCredentialSource(provider, cred)
	})
	return w.tokens, w.tokensErr
}

func (w *Wiring) InitFirestore(ctx context.Context) (firestore.Transport, error) {
	w.storeOnce.Do(func() {
		tokens, err := w.InitTokenSource()
		if err != nil {
			w.storeErr = err
			return
		}

		fs := w.config.Firestore
		endpoint := firestore.Endpoint{
			BaseURL:    fs.BaseURL,
			ProjectID:  fs.ProjectID,
			DatabaseID: fs.DatabaseID,
		}
		if fs.Emulator.Enabled {
			endpoint.BaseURL = firestore.EmulatorBaseURL(fs.Emulator.Host, fs.Emulator.Port)
		}

		opts := firestore.Options{
			Endpoint: endpoint,
			Tokens:   tokens,
			Mode:     firestore.Mode(fs.Transport),
			Timeout:  fs.Timeout,
		}
		if fs.Breaker.Enabled {
			opts.Breaker = &firestore.BreakerSettings{
				MaxRequests:         fs.Breaker.MaxRequests,
				Interval:            fs.Breaker.Interval,
				Timeout:             fs.Breaker.Timeout,
				ConsecutiveFailures: fs.Breaker.ConsecutiveFailures,
			}
		}
		w.store, w.storeErr = firestore.New(ctx, opts)
	})
	return w.store, w.storeErr
}

func (w *Wiring) InitWordPress() (*wordpress.Client, error) {
	w.wordpressOnce.Do(func() {
		c := w.config.CMS
		w.wordpress, w.wordpressErr = wordpress.NewClient(wordpress.Options{
			BaseURL:             c.BaseURL,
			Username:            c.Username,
			ApplicationPassword: c.ApplicationPassword,
			Timeout:             c.Timeout,
			PerPage:             c.PerPage,
		})
	})
	return w.wordpress, w.wordpressErr
}

// InitLedger returns the Postgres ledger when a database is configured and
// the in-memory one otherwise.
func (w *Wiring) InitLedger(ctx context.Context) (repository.SyncRecordRepository, error) {
	w.ledgerOnce.Do(func() {
		if w.config.Postgres == nil {
			w.logger.Debug().Int("capacity", memory.DefaultCapacity).Msg("No database configured, keeping the sync ledger in memory")
			w.ledger = memory.NewSyncRecordRepository(memory.DefaultCapacity)
			return
		}
		datastore, err := db.NewPostgresDatastore(ctx, w.config.Postgres, migrations.NewLedgerMigrations())
		if err != nil {
			w.ledgerErr = fmt.Errorf("failed to create postgres datastore: %w", err)
			return
		}
		w.ledger = postgres.NewPostgreSQLSyncRecordRepository(datastore)
	})
	return w.ledger, w.ledgerErr
}

func (w *Wiring) InitTargetStore() *config.TargetStore {
	w.targetsOnce.Do(func() {
		w.targets = config.NewTargetStore(w.viper, w.config)
	})
	return w.targets
}

func (w *Wiring) InitProbe(ctx context.Context) (*probe.ConnectionProbe, error) {
	store, err := w.InitFirestore(ctx)
	if err != nil {
		return nil, err
	}
	return probe.New(store), nil
}

func (w *Wiring) InitMapper() (*mapper.Mapper, error) {
	client, err := w.InitWordPress()
	if err != nil {
		return nil, err
	}
	return mapper.New(cms.Collaborators{
		Content:      client,
		Metadata:     client,
		Taxonomies:   client,
		CustomFields: client,
	}), nil
}

func (w *Wiring) InitOrchestrator(ctx context.Context) (*orchestrator.SyncOrchestrator, error) {
	store, err := w.InitFirestore(ctx)
	if err != nil {
		return nil, err
	}
	client, err := w.InitWordPress()
	if err != nil {
		return nil, err
	}
	itemMapper, err := w.InitMapper()
	if err != nil {
		return nil, err
	}
	ledger, err := w.InitLedger(ctx)
	if err != nil {
		return nil, err
	}

	return orchestrator.NewSyncOrchestrator(orchestrator.Dependencies{
		Content:     client,
		Mapper:      itemMapper,
		Writer:      store,
		Ledger:      ledger,
		Targets:     w.InitTargetStore(),
		Preflight:   probe.New(store),
		Refresher:   client,
		Concurrency: w.config.Concurrency,
	}), nil
}

func (w *Wiring) InitWebhookServer(ctx context.Context) (*webhook.Server, error) {
	o, err := w.InitOrchestrator(ctx)
	if err != nil {
		return nil, err
	}
	return webhook.NewServer(w.config.Webhook, o), nil
}

// Close releases the ledger connection if one was opened.
func (w *Wiring) Close() error {
	var errs []error
	if w.ledger != nil {
		errs = append(errs, w.ledger.Close())
	}
	return errors.Join(errs...)
}
