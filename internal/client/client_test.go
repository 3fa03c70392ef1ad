package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"promptliano-client/internal/client"
	"promptliano-client/internal/domain"
	"promptliano-client/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestClient_ListDecodesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tickets", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("projectId"))
		respond(w, http.StatusOK, map[string]any{
			"data": []domain.Ticket{
				{ID: domain.ConfirmedID(1), Title: "P1"},
				{ID: domain.ConfirmedID(2), Title: "P2"},
			},
		})
	}))
	defer srv.Close()

	c := client.New(srv.URL)
	tickets, err := c.Tickets().List(context.Background(), url.Values{"projectId": {"1"}})

	require.NoError(t, err)
	require.Len(t, tickets, 2)
	assert.Equal(t, "P1", tickets[0].Title)
	assert.Equal(t, int64(2), tickets[1].ID.Value())
}

func TestClient_CreateSendsBodyAndAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var body domain.CreateTicketRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "New ticket", body.Title)
		respond(w, http.StatusCreated, map[string]any{
			"data": domain.Ticket{ID: domain.ConfirmedID(999), Title: body.Title},
		})
	}))
	defer srv.Close()

	c := client.New(srv.URL, client.WithAPIKey("secret"))
	created, err := c.Tickets().Create(context.Background(), domain.CreateTicketRequest{
		ProjectID: domain.ConfirmedID(1),
		Title:     "New ticket",
	})

	require.NoError(t, err)
	assert.Equal(t, int64(999), created.ID.Value())
}

func TestClient_ServerErrorMessagePreservedVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusInternalServerError, map[string]any{
			"error": map[string]any{"message": "Server error", "code": "INTERNAL"},
		})
	}))
	defer srv.Close()

	c := client.New(srv.URL)
	_, err := c.Tickets().Create(context.Background(), domain.CreateTicketRequest{Title: "x"})

	require.Error(t, err)
	assert.Equal(t, "Server error", errors.UserMessage(err))
	assert.True(t, errors.IsRetryable(err))
}

func TestClient_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusNotFound, map[string]any{
			"error": map[string]any{"message": "ticket not found"},
		})
	}))
	defer srv.Close()

	c := client.New(srv.URL)
	_, err := c.Tickets().Get(context.Background(), domain.ConfirmedID(42))

	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.Equal(t, "ticket not found", errors.UserMessage(err))
}

func TestClient_CanceledContextClassified(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	c := client.New(srv.URL)
	_, err := c.Tickets().List(ctx, nil)

	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeCanceled))
	assert.False(t, errors.IsRetryable(err))
}

func TestClient_TimeoutClassified(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	c := client.New(srv.URL)
	_, err := c.Tickets().List(ctx, nil)

	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTimeout))
	assert.True(t, errors.IsRetryable(err))
}

func TestClient_BreakerOpensAfterSustainedFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusInternalServerError, map[string]any{
			"error": map[string]any{"message": "down"},
		})
	}))
	defer srv.Close()

	cfg := client.DefaultBreakerConfig("test")
	cfg.MinRequests = 2
	cfg.FailureThreshold = 0.5
	c := client.New(srv.URL, client.WithBreaker(cfg))

	for i := 0; i < 3; i++ {
		_, _ = c.Tickets().List(context.Background(), nil)
	}
	_, err := c.Tickets().List(context.Background(), nil)

	require.Error(t, err)
	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.CodeCircuitOpen, e.Code)
}

func TestClient_DeleteDiscardsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/tickets/5", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := client.New(srv.URL)
	err := c.Tickets().Delete(context.Background(), domain.ConfirmedID(5))

	assert.NoError(t, err)
}

func TestClient_MetricsRecorded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, map[string]any{"data": []domain.Ticket{}})
	}))
	defer srv.Close()

	rec := &recordingMetrics{}
	c := client.New(srv.URL, client.WithMetrics(rec))
	_, err := c.Tickets().List(context.Background(), nil)

	require.NoError(t, err)
	require.Len(t, rec.calls, 1)
	assert.Equal(t, http.MethodGet, rec.calls[0].method)
	assert.Equal(t, "/api/tickets", rec.calls[0].path)
	assert.Equal(t, http.StatusOK, rec.calls[0].status)
}

type metricCall struct {
	method string
	path   string
	status int
}

type recordingMetrics struct {
	calls []metricCall
}

func (r *recordingMetrics) RequestCompleted(method, path string, status int, _ time.Duration) {
	r.calls = append(r.calls, metricCall{method: method, path: path, status: status})
}
