package firestore

import (
	"context"
	"errors"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"firesync/internal/auth"
	"firesync/internal/models"
	"firesync/pkg/log"
)

// RefreshingTransport retries an operation exactly once after the store
// rejects the access token, forcing a token refresh in between. Every other
// error is returned as is.
type RefreshingTransport struct {
	inner  Transport
	tokens auth.Source
	logger zerolog.Logger
}

func NewRefreshingTransport(inner Transport, tokens auth.Source) *RefreshingTransport {
	return &RefreshingTransport{
		inner:  inner,
		tokens: tokens,
		logger: log.Logger.With().Str("component", "firestore_refresh").Logger(),
	}
}

func (t *RefreshingTransport) Name() string { return t.inner.Name() }

func (t *RefreshingTransport) Probe(ctx context.Context) (bool, error) {
	return withTokenRefresh(ctx, t, "probe", func() (bool, error) {
		return t.inner.Probe(ctx)
	})
}

func (t *RefreshingTransport) Upsert(ctx context.Context, path string, doc *models.SyncDocument, merge bool) error {
	_, err := withTokenRefresh(ctx, t, "upsert", func() (struct{}, error) {
		return struct{}{}, t.inner.Upsert(ctx, path, doc, merge)
	})
	return err
}

func (t *RefreshingTransport) Delete(ctx context.Context, path string) error {
	_, err := withTokenRefresh(ctx, t, "delete", func() (struct{}, error) {
		return struct{}{}, t.inner.Delete(ctx, path)
	})
	return err
}

type getResult struct {
	doc   *models.SyncDocument
	found bool
}

func (t *RefreshingTransport) Get(ctx context.Context, path string) (*models.SyncDocument, bool, error) {
	res, err := withTokenRefresh(ctx, t, "get", func() (getResult, error) {
		doc, found, err := t.inner.Get(ctx, path)
		return getResult{doc: doc, found: found}, err
	})
	return res.doc, res.found, err
}

func (t *RefreshingTransport) ListCollections(ctx context.Context, parent string) ([]string, error) {
	return withTokenRefresh(ctx, t, "list_collections", func() ([]string, error) {
		return t.inner.ListCollections(ctx, parent)
	})
}

func withTokenRefresh[T any](ctx context.Context, t *RefreshingTransport, op string, fn func() (T, error)) (T, error) {
	attempt := 0
	res, err := backoff.Retry(ctx, func() (T, error) {
		attempt++
		v, err := fn()
		if err == nil {
			return v, nil
		}
		if attempt == 1 && errors.Is(err, ErrUnauthorized) && !t.tokens.Emulator() {
			t.logger.Warn().Err(err).Str("action", op).Msg("Access token rejected, refreshing and retrying once")
			t.tokens.Invalidate()
			return v, err
		}
		return v, backoff.Permanent(err)
	},
		backoff.WithBackOff(&backoff.ZeroBackOff{}),
		backoff.WithMaxTries(2),
	)
	if err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Err
		}
	}
	return res, err
}
