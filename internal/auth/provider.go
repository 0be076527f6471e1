package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/sync/singleflight"

	"firesync/pkg/log"
)

const (
	DatastoreScope = "https://www.googleapis.com/auth/datastore"

	defaultSafetyMargin      = 5 * time.Minute
	defaultExchangeTimeout   = 30 * time.Second
	defaultAssertionLifetime = time.Hour
)

// AccessToken is a bearer credential and the instant it stops being valid.
type AccessToken struct {
	Value  string
	Expiry time.Time
}

func (t AccessToken) IsZero() bool {
	return t.Value == ""
}

type exchangeFunc func(ctx context.Context, cred *ServiceAccountCredential) (*oauth2.Token, error)

// TokenProvider mints access tokens from service account credentials and
// caches them per client identity until they are within the safety margin of
// expiring. Concurrent refreshes for one identity share a single exchange.
type TokenProvider struct {
	cache        *gocache.Cache
	group        singleflight.Group
	safetyMargin time.Duration
	timeout      time.Duration
	scopes       []string
	httpClient   *http.Client
	exchange     exchangeFunc
	logger       zerolog.Logger
}

type Option func(*TokenProvider)

func WithSafetyMargin(d time.Duration) Option {
	return func(p *TokenProvider) { p.safetyMargin = d }
}

func WithExchangeTimeout(d time.Duration) Option {
	return func(p *TokenProvider) { p.timeout = d }
}

func WithScopes(scopes ...string) Option {
	return func(p *TokenProvider) { p.scopes = scopes }
}

func WithHTTPClient(c *http.Client) Option {
	return func(p *TokenProvider) { p.httpClient = c }
}

func NewTokenProvider(opts ...Option) *TokenProvider {
	p := &TokenProvider{
		safetyMargin: defaultSafetyMargin,
		timeout:      defaultExchangeTimeout,
		scopes:       []string{DatastoreScope},
		logger:       log.Logger.With().Str("component", "token_provider").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.httpClient == nil {
		p.httpClient = &http.Client{Timeout: p.timeout}
	}
	if p.exchange == nil {
		p.exchange = p.exchangeJWT
	}
	p.cache = gocache.New(gocache.NoExpiration, 10*time.Minute)
	return p
}

// Token returns a cached token for the credential or exchanges a new one.
func (p *TokenProvider) Token(ctx context.Context, cred *ServiceAccountCredential) (AccessToken, error) {
	if cred == nil {
		return AccessToken{}, &CredentialError{Reason: "no credential configured"}
	}
	key := cred.Identity()

	if cached, ok := p.cached(key); ok {
		return cached, nil
	}

	result, err, shared := p.group.Do(key, func() (any, error) {
		if cached, ok := p.cached(key); ok {
			return cached, nil
		}
		return p.refresh(ctx, cred)
	})
	if err != nil {
		return AccessToken{}, err
	}
	if shared {
		p.logger.Debug().Str("client_email", key).Msg("Shared in-flight token exchange")
	}
	return result.(AccessToken), nil
}

// Invalidate drops the cached token so the next call performs an exchange.
func (p *TokenProvider) Invalidate(cred *ServiceAccountCredential) {
	if cred == nil {
		return
	}
	p.cache.Delete(cred.Identity())
	p.logger.Debug().Str("client_email", cred.Identity()).Msg("Invalidated cached access token")
}

func (p *TokenProvider) cached(key string) (AccessToken, bool) {
	v, ok := p.cache.Get(key)
	if !ok {
		return AccessToken{}, false
	}
	return v.(AccessToken), true
}

func (p *TokenProvider) refresh(ctx context.Context, cred *ServiceAccountCredential) (AccessToken, error) {
	logger := p.logger.With().Str("action", "refresh").Str("client_email", cred.Identity()).Logger()
	logger.Debug().Msg("Exchanging signed assertion for access token")

	exchangeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	exchangeCtx = context.WithValue(exchangeCtx, oauth2.HTTPClient, p.httpClient)

	tok, err := p.exchange(exchangeCtx, cred)
	if err != nil {
		logger.Error().Err(err).Msg("Token exchange failed")
		return AccessToken{}, wrapExchangeError(cred, err)
	}
	if tok == nil || tok.AccessToken == "" {
		return AccessToken{}, &AuthExchangeError{ClientEmail: cred.Identity(), Err: errors.New("empty access token in response")}
	}

	expiry := tok.Expiry
	if expiry.IsZero() {
		expiry = time.Now().Add(defaultAssertionLifetime)
	}
	token := AccessToken{Value: tok.AccessToken, Expiry: expiry}

	ttl := time.Until(expiry) - p.safetyMargin
	if ttl > 0 {
		p.cache.Set(cred.Identity(), token, ttl)
	} else {
		logger.Warn().Time("expiry", expiry).Msg("Token expires within the safety margin, not caching it")
	}

	logger.Info().Time("expiry", expiry).Dur("cached_for", max(ttl, 0)).Msg("Obtained access token")
	return token, nil
}

// exchangeJWT signs an RS256 assertion with the credential's key and trades it
// at the credential's token endpoint.
func (p *TokenProvider) exchangeJWT(ctx context.Context, cred *ServiceAccountCredential) (*oauth2.Token, error) {
	conf, err := google.JWTConfigFromJSON(cred.JSON(), p.scopes...)
	if err != nil {
		return nil, &CredentialError{Reason: "cannot build assertion config", Err: err}
	}
	conf.Expires = defaultAssertionLifetime
	return conf.TokenSource(ctx).Token()
}

func wrapExchangeError(cred *ServiceAccountCredential, err error) error {
	var credErr *CredentialError
	if errors.As(err, &credErr) {
		return err
	}
	exchangeErr := &AuthExchangeError{ClientEmail: cred.Identity(), Err: err}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		exchangeErr.StatusCode = retrieveErr.Response.StatusCode
	}
	return exchangeErr
}
