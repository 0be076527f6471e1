package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"firesync/internal/auth"
	"firesync/internal/config"
	"firesync/internal/models"
	"firesync/internal/service/orchestrator"
)

type mockEvents struct {
	mock.Mock
}

func result(args mock.Arguments) (*orchestrator.SyncResult, error) {
	r, _ := args.Get(0).(*orchestrator.SyncResult)
	return r, args.Error(1)
}

func (m *mockEvents) OnEntitySaved(ctx context.Context, event orchestrator.SaveEvent) (*orchestrator.SyncResult, error) {
	return result(m.Called(ctx, event))
}

func (m *mockEvents) OnEntityDeleted(ctx context.Context, contentType string, id int64) (*orchestrator.SyncResult, error) {
	return result(m.Called(ctx, contentType, id))
}

func (m *mockEvents) OnStatusChanged(ctx context.Context, contentType string, id int64, oldStatus, newStatus string) (*orchestrator.SyncResult, error) {
	return result(m.Called(ctx, contentType, id, oldStatus, newStatus))
}

func (m *mockEvents) OnMetadataChanged(ctx context.Context, contentType string, id int64, key string) (*orchestrator.SyncResult, error) {
	return result(m.Called(ctx, contentType, id, key))
}

func (m *mockEvents) OnPrimaryImageChanged(ctx context.Context, contentType string, id int64) (*orchestrator.SyncResult, error) {
	return result(m.Called(ctx, contentType, id))
}

func (m *mockEvents) OnTermChanged(ctx context.Context, taxonomy string, termID int64) (*orchestrator.SyncResult, error) {
	return result(m.Called(ctx, taxonomy, termID))
}

func (m *mockEvents) OnTypeRegistered(ctx context.Context, kind models.TargetKind, slug string) (*orchestrator.SyncResult, error) {
	return result(m.Called(ctx, kind, slug))
}

func post(t *testing.T, server *Server, path, body, secret string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(SecretHeader, secret)
	}
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

var ok = &orchestrator.SyncResult{RunID: "run-1", Success: true, Total: 1, Succeeded: 1}

func TestEventRoutes(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		body   string
		expect func(m *mockEvents)
	}{
		{
			name: "entity saved",
			path: "/events/entity/saved",
			body: `{"content_type":"book","id":20,"autosave":true}`,
			expect: func(m *mockEvents) {
				m.On("OnEntitySaved", mock.Anything, orchestrator.SaveEvent{ContentType: "book", ID: 20, Autosave: true}).Return(ok, nil)
			},
		},
		{
			name: "entity deleted",
			path: "/events/entity/deleted",
			body: `{"content_type":"book","id":20}`,
			expect: func(m *mockEvents) {
				m.On("OnEntityDeleted", mock.Anything, "book", int64(20)).Return(ok, nil)
			},
		},
		{
			name: "status changed",
			path: "/events/entity/status",
			body: `{"content_type":"book","id":20,"old_status":"publish","new_status":"draft"}`,
			expect: func(m *mockEvents) {
				m.On("OnStatusChanged", mock.Anything, "book", int64(20), "publish", "draft").Return(ok, nil)
			},
		},
		{
			name: "metadata changed",
			path: "/events/entity/meta",
			body: `{"content_type":"book","id":20,"meta_key":"isbn"}`,
			expect: func(m *mockEvents) {
				m.On("OnMetadataChanged", mock.Anything, "book", int64(20), "isbn").Return(ok, nil)
			},
		},
		{
			name: "primary image changed",
			path: "/events/entity/image",
			body: `{"content_type":"book","id":20}`,
			expect: func(m *mockEvents) {
				m.On("OnPrimaryImageChanged", mock.Anything, "book", int64(20)).Return(ok, nil)
			},
		},
		{
			name: "term changed",
			path: "/events/term",
			body: `{"taxonomy":"genre","term_id":3}`,
			expect: func(m *mockEvents) {
				m.On("OnTermChanged", mock.Anything, "genre", int64(3)).Return(ok, nil)
			},
		},
		{
			name: "type registered",
			path: "/events/type",
			body: `{"kind":"taxonomy","slug":"genre"}`,
			expect: func(m *mockEvents) {
				m.On("OnTypeRegistered", mock.Anything, models.TargetTaxonomy, "genre").Return(ok, nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := new(mockEvents)
			tt.expect(events)
			server := NewServer(config.Webhook{Listen: ":0", Secret: "s3cret"}, events)

			rec := post(t, server, tt.path, tt.body, "s3cret")

			assert.Equal(t, http.StatusOK, rec.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "run-1", body["run_id"])
			assert.Equal(t, true, body["success"])
			events.AssertExpectations(t)
		})
	}
}

func TestSharedSecret(t *testing.T) {
	events := new(mockEvents)
	server := NewServer(config.Webhook{Listen: ":0", Secret: "s3cret"}, events)

	rec := post(t, server, "/events/term", `{"taxonomy":"genre"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = post(t, server, "/events/term", `{"taxonomy":"genre"}`, "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	events.AssertNotCalled(t, "OnTermChanged", mock.Anything, mock.Anything, mock.Anything)
}

func TestSecretIsOptional(t *testing.T) {
	events := new(mockEvents)
	events.On("OnTermChanged", mock.Anything, "genre", int64(0)).Return(ok, nil)
	server := NewServer(config.Webhook{Listen: ":0"}, events)

	rec := post(t, server, "/events/term", `{"taxonomy":"genre"}`, "")

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInvalidPayloads(t *testing.T) {
	events := new(mockEvents)
	server := NewServer(config.Webhook{Listen: ":0"}, events)

	for name, tc := range map[string]struct{ path, body string }{
		"malformed json":   {"/events/entity/saved", `{"content_type":`},
		"missing type":     {"/events/entity/saved", `{"id":20}`},
		"missing id":       {"/events/entity/deleted", `{"content_type":"book"}`},
		"missing key":      {"/events/entity/meta", `{"content_type":"book","id":1}`},
		"unknown kind":     {"/events/type", `{"kind":"widget","slug":"x"}`},
		"missing taxonomy": {"/events/term", `{"term_id":1}`},
	} {
		t.Run(name, func(t *testing.T) {
			rec := post(t, server, tc.path, tc.body, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Empty(t, events.Calls)
}

func TestEventOutcomes(t *testing.T) {
	t.Run("unsuccessful sync answers bad gateway", func(t *testing.T) {
		events := new(mockEvents)
		events.On("OnEntityDeleted", mock.Anything, "book", int64(20)).
			Return(&orchestrator.SyncResult{RunID: "run-2", Failed: 1, Reason: "rejected"}, nil)
		server := NewServer(config.Webhook{Listen: ":0"}, events)

		rec := post(t, server, "/events/entity/deleted", `{"content_type":"book","id":20}`, "")

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Contains(t, rec.Body.String(), "rejected")
	})

	t.Run("fatal errors answer internal server error", func(t *testing.T) {
		events := new(mockEvents)
		events.On("OnEntityDeleted", mock.Anything, "book", int64(20)).
			Return(&orchestrator.SyncResult{}, auth.ErrCredential)
		server := NewServer(config.Webhook{Listen: ":0"}, events)

		rec := post(t, server, "/events/entity/deleted", `{"content_type":"book","id":20}`, "")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestHealthz(t *testing.T) {
	server := NewServer(config.Webhook{Listen: ":0", Secret: "s3cret"}, new(mockEvents))
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRunStopsWithContext(t *testing.T) {
	server := NewServer(config.Webhook{Listen: "127.0.0.1:0"}, new(mockEvents))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- server.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
