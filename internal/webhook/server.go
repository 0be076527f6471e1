// Package webhook receives content system events over HTTP and hands them to
// the sync event handlers.
package webhook

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"firesync/internal/config"
	"firesync/internal/models"
	"firesync/internal/service/orchestrator"
	"firesync/pkg/log"
)

const (
	SecretHeader    = "X-Firesync-Secret"
	shutdownTimeout = 10 * time.Second
)

// EventHandler is the set of sync reactions the receiver dispatches to.
type EventHandler interface {
	OnEntitySaved(ctx context.Context, event orchestrator.SaveEvent) (*orchestrator.SyncResult, error)
	OnEntityDeleted(ctx context.Context, contentType string, id int64) (*orchestrator.SyncResult, error)
	OnStatusChanged(ctx context.Context, contentType string, id int64, oldStatus, newStatus string) (*orchestrator.SyncResult, error)
	OnMetadataChanged(ctx context.Context, contentType string, id int64, key string) (*orchestrator.SyncResult, error)
	OnPrimaryImageChanged(ctx context.Context, contentType string, id int64) (*orchestrator.SyncResult, error)
	OnTermChanged(ctx context.Context, taxonomy string, termID int64) (*orchestrator.SyncResult, error)
	OnTypeRegistered(ctx context.Context, kind models.TargetKind, slug string) (*orchestrator.SyncResult, error)
}

type Server struct {
	echo   *echo.Echo
	listen string
	logger zerolog.Logger
}

type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i any) error {
	return v.validate.Struct(i)
}

func NewServer(cfg config.Webhook, events EventHandler) *Server {
	logger := log.Logger.With().Str("component", "webhook").Logger()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{validate: validator.New(validator.WithRequiredStructEnabled())}
	e.Use(middleware.Recover())
	e.Use(requestLogger(logger))

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})

	h := &handler{events: events, logger: logger}
	group := e.Group("/events", sharedSecret(cfg.Secret))
	h.RegisterRoutes(group)

	return &Server{echo: e, listen: cfg.Listen, logger: logger}
}

// Handler exposes the routes for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is done and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("listen", s.listen).Msg("Webhook receiver listening")
		errCh <- s.echo.Start(s.listen)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down webhook receiver")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.echo.Shutdown(shutdownCtx)
}

// sharedSecret rejects requests without the configured secret header. An
// empty secret disables the check.
func sharedSecret(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if secret == "" {
				return next(c)
			}
			given := c.Request().Header.Get(SecretHeader)
			if subtle.ConstantTimeCompare([]byte(given), []byte(secret)) != 1 {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid webhook secret"})
			}
			return next(c)
		}
	}
}

func requestLogger(logger zerolog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogMethod:  true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			event := logger.Debug()
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				event = logger.Warn().Err(v.Error)
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("Request handled")
			return nil
		},
	})
}
