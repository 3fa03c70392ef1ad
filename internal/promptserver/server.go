// Package promptserver is an in-memory Promptliano API server. It exists for
// integration tests, the simulator, and local development against a
// predictable backend; it is not a production persistence layer.
package promptserver

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"promptliano-client/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Server holds the in-memory collections and the router over them.
type Server struct {
	router   chi.Router
	validate *validator.Validate
	logger   *zap.Logger

	mu     sync.RWMutex
	nextID int64

	projects map[int64]domain.Project
	tickets  map[int64]domain.Ticket
	tasks    map[int64]domain.Task
	prompts  map[int64]domain.Prompt
	queues   map[int64]domain.Queue
	chats    map[int64]domain.Chat
	messages map[int64]domain.ChatMessage
	agents   map[int64]domain.Agent
	files    map[int64]domain.ProjectFile

	// failNext, when set, makes the next mutating request fail with the
	// given message. Lets tests exercise rollback paths.
	failNext string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// New creates an empty server.
func New(opts ...Option) *Server {
	s := &Server{
		validate: validator.New(),
		logger:   zap.NewNop(),
		nextID:   1,
		projects: make(map[int64]domain.Project),
		tickets:  make(map[int64]domain.Ticket),
		tasks:    make(map[int64]domain.Task),
		prompts:  make(map[int64]domain.Prompt),
		queues:   make(map[int64]domain.Queue),
		chats:    make(map[int64]domain.Chat),
		messages: make(map[int64]domain.ChatMessage),
		agents:   make(map[int64]domain.Agent),
		files:    make(map[int64]domain.ProjectFile),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// FailNext makes the next mutating request fail with the given message.
func (s *Server) FailNext(message string) {
	s.mu.Lock()
	s.failNext = message
	s.mu.Unlock()
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/projects", s.projectRoutes)
		r.Route("/tickets", s.ticketRoutes)
		r.Route("/tasks", s.taskRoutes)
		r.Route("/prompts", s.promptRoutes)
		r.Route("/queues", s.queueRoutes)
		r.Route("/chats", s.chatRoutes)
		r.Route("/messages", s.messageRoutes)
		r.Route("/agents", s.agentRoutes)
		r.Route("/files", s.fileRoutes)
	})
	s.router = r
}

// ============================================================================
// RESPONSE HELPERS
// ============================================================================

func (s *Server) respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"message": message},
	})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, into any) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := s.validate.Struct(into); err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return false
	}
	return true
}

// pathID parses the {id} route parameter.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}

// checkFailNext consumes a pending forced failure. Must be called with the
// write lock held.
func (s *Server) checkFailNext(w http.ResponseWriter) bool {
	if s.failNext == "" {
		return false
	}
	message := s.failNext
	s.failNext = ""
	s.respondError(w, http.StatusInternalServerError, message)
	return true
}

func (s *Server) allocID() int64 {
	id := s.nextID
	s.nextID++
	return id
}

// sortedByID returns the map values ordered by ascending id, so list
// responses are deterministic.
func sortedByID[T any](items map[int64]T, idOf func(T) int64) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return idOf(out[i]) < idOf(out[j]) })
	return out
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
