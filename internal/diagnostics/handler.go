// Package diagnostics exposes the caching layer's introspection surface over
// HTTP: cache counters, invalidation statistics and the recent event history.
package diagnostics

import (
	"encoding/json"
	"net/http"

	"promptliano-client/internal/invalidation"
	"promptliano-client/internal/querycache"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler serves the diagnostics endpoints.
type Handler struct {
	store  *querycache.Store
	engine *invalidation.Engine
	logger *zap.Logger
}

// NewHandler creates the diagnostics handler.
func NewHandler(store *querycache.Store, engine *invalidation.Engine, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, engine: engine, logger: logger}
}

// Routes mounts the endpoints on a router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/stats", h.stats)
	r.Get("/history", h.history)
	r.Get("/keys", h.keys)
	r.Post("/reset", h.reset)
}

func (h *Handler) respond(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"data": data}); err != nil {
		h.logger.Warn("failed to encode diagnostics response", zap.Error(err))
	}
}

// stats reports the cache counters and invalidation statistics side by side.
func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	h.respond(w, map[string]any{
		"cache":        h.store.Stats(),
		"invalidation": h.engine.Stats(),
	})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.engine.EventHistory())
}

// keys lists the cached query keys, for inspecting what the store holds.
func (h *Handler) keys(w http.ResponseWriter, r *http.Request) {
	keys := h.store.Keys()
	out := make([]string, len(keys))
	for i, key := range keys {
		out[i] = key.String()
	}
	h.respond(w, out)
}

func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	h.engine.ResetStats()
	h.respond(w, map[string]string{"status": "reset"})
}
