package firestore

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"firesync/internal/auth"
	"firesync/pkg/log"
)

// Mode selects the transport implementation.
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeNative Mode = "native"
	ModeREST   Mode = "rest"
)

type Options struct {
	Endpoint Endpoint
	Tokens   auth.Source
	Mode     Mode
	Timeout  time.Duration
	// HTTPClient overrides the client used by both implementations.
	HTTPClient *http.Client
	// Breaker wraps calls in a circuit breaker when set.
	Breaker *BreakerSettings
}

// NativeAvailable reports whether the native client is compiled in.
func NativeAvailable() bool {
	return nativeAvailable
}

// New builds the transport once. In auto mode the native client is used when
// it is compiled in and can be constructed, otherwise the REST client; the
// choice is fixed for the life of the returned value.
func New(ctx context.Context, opts Options) (Transport, error) {
	logger := log.Logger.With().Str("component", "firestore").Logger()

	if opts.Tokens == nil {
		opts.Tokens = auth.EmulatorSource{}
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	var (
		base Transport
		err  error
	)
	switch opts.Mode {
	case ModeNative:
		base, err = newNativeTransport(ctx, opts.Endpoint, opts.Tokens, client)
		if err != nil {
			return nil, err
		}
	case ModeREST:
		base = NewRESTTransport(opts.Endpoint, opts.Tokens, client)
	case ModeAuto, "":
		if nativeAvailable {
			base, err = newNativeTransport(ctx, opts.Endpoint, opts.Tokens, client)
			if err != nil {
				logger.Warn().Err(err).Msg("Native client unavailable, using REST transport")
			}
		}
		if base == nil {
			base = NewRESTTransport(opts.Endpoint, opts.Tokens, client)
		}
	default:
		return nil, fmt.Errorf("unknown transport mode %q", opts.Mode)
	}

	logger.Info().
		Str("transport", base.Name()).
		Str("base_url", opts.Endpoint.base()).
		Str("database", opts.Endpoint.database()).
		Bool("emulator", opts.Tokens.Emulator()).
		Msg("Selected document store transport")

	var transport Transport = base
	if opts.Breaker != nil {
		transport = NewBreakerTransport(transport, *opts.Breaker)
	}
	return NewRefreshingTransport(transport, opts.Tokens), nil
}
