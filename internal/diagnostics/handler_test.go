package diagnostics_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"promptliano-client/internal/diagnostics"
	"promptliano-client/internal/domain"
	"promptliano-client/internal/invalidation"
	"promptliano-client/internal/querycache"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDiagnosticsServer(t *testing.T) (*httptest.Server, *invalidation.Engine, *querycache.Store) {
	t.Helper()
	store := querycache.NewStore()
	engine := invalidation.NewEngine(store, domain.DefaultRegistry())
	handler := diagnostics.NewHandler(store, engine, nil)

	r := chi.NewRouter()
	r.Route("/diagnostics", handler.Routes)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, engine, store
}

func get(t *testing.T, url string) map[string]json.RawMessage {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestHandler_StatsAndHistory(t *testing.T) {
	srv, engine, store := newDiagnosticsServer(t)
	store.Set(querycache.ListKey(domain.EntityTickets), "cached")
	engine.InvalidateWithRelationships(domain.EntityTickets, domain.OpUpdate, domain.ConfirmedID(5), nil)

	stats := get(t, srv.URL+"/diagnostics/stats")
	assert.Contains(t, string(stats["data"]), "invalidation")

	history := get(t, srv.URL+"/diagnostics/history")
	var events []invalidation.Event
	require.NoError(t, json.Unmarshal(mustField(t, history, "data"), &events))
	require.Len(t, events, 1)
	assert.Equal(t, domain.EntityTickets, events[0].Entity)
}

func TestHandler_KeysAndReset(t *testing.T) {
	srv, engine, store := newDiagnosticsServer(t)
	store.Set(querycache.ListKey(domain.EntityProjects), "cached")
	engine.InvalidateWithRelationships(domain.EntityProjects, domain.OpCreate, domain.ID{}, nil)

	keys := get(t, srv.URL+"/diagnostics/keys")
	assert.Contains(t, string(keys["data"]), "projects/list")

	resp, err := http.Post(srv.URL+"/diagnostics/reset", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Zero(t, engine.Stats().Total)
	assert.Empty(t, engine.EventHistory())
}

func mustField(t *testing.T, body map[string]json.RawMessage, field string) json.RawMessage {
	t.Helper()
	raw, ok := body[field]
	require.True(t, ok, "missing %q field", field)
	return raw
}
