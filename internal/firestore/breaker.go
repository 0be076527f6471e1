package firestore

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"firesync/internal/models"
	"firesync/pkg/log"
)

// BreakerSettings configures the circuit breaker around store calls.
type BreakerSettings struct {
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// BreakerTransport stops calling the store after repeated unreachable errors.
// While open every call fails fast as Unreachable.
type BreakerTransport struct {
	inner   Transport
	breaker *gobreaker.CircuitBreaker
	logger  zerolog.Logger
}

func NewBreakerTransport(inner Transport, settings BreakerSettings) *BreakerTransport {
	logger := log.Logger.With().Str("component", "firestore_breaker").Logger()
	threshold := settings.ConsecutiveFailures
	if threshold == 0 {
		threshold = DefaultBreakerSettings().ConsecutiveFailures
	}

	return &BreakerTransport{
		inner: inner,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "firestore",
			MaxRequests: settings.MaxRequests,
			Interval:    settings.Interval,
			Timeout:     settings.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			IsSuccessful: func(err error) bool {
				return err == nil || !errors.Is(err, ErrUnreachable)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
					Msg("Circuit breaker changed state")
			},
		}),
		logger: logger,
	}
}

func (t *BreakerTransport) Name() string { return t.inner.Name() }

func (t *BreakerTransport) State() gobreaker.State { return t.breaker.State() }

func (t *BreakerTransport) Probe(ctx context.Context) (bool, error) {
	ok, err := execute(t, "probe", "", func() (bool, error) { return t.inner.Probe(ctx) })
	return ok, err
}

func (t *BreakerTransport) Upsert(ctx context.Context, path string, doc *models.SyncDocument, merge bool) error {
	_, err := execute(t, "upsert", path, func() (struct{}, error) {
		return struct{}{}, t.inner.Upsert(ctx, path, doc, merge)
	})
	return err
}

func (t *BreakerTransport) Delete(ctx context.Context, path string) error {
	_, err := execute(t, "delete", path, func() (struct{}, error) {
		return struct{}{}, t.inner.Delete(ctx, path)
	})
	return err
}

func (t *BreakerTransport) Get(ctx context.Context, path string) (*models.SyncDocument, bool, error) {
	res, err := execute(t, "get", path, func() (getResult, error) {
		doc, found, err := t.inner.Get(ctx, path)
		return getResult{doc: doc, found: found}, err
	})
	return res.doc, res.found, err
}

func (t *BreakerTransport) ListCollections(ctx context.Context, parent string) ([]string, error) {
	return execute(t, "list_collections", parent, func() ([]string, error) {
		return t.inner.ListCollections(ctx, parent)
	})
}

func execute[T any](t *BreakerTransport, op, path string, fn func() (T, error)) (T, error) {
	var zero T
	res, err := t.breaker.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			t.logger.Debug().Str("action", op).Str("path", path).Msg("Circuit open, failing fast")
			return zero, classify(op, path, err)
		}
		if res == nil {
			return zero, err
		}
		return res.(T), err
	}
	return res.(T), nil
}
