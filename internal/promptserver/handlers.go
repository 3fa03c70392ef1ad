package promptserver

import (
	"net/http"
	"net/url"

	"promptliano-client/internal/domain"

	"github.com/go-chi/chi/v5"
)

// ============================================================================
// GENERIC COLLECTION HANDLERS
// ============================================================================

func handleList[T any](s *Server, items func() map[int64]T, idOf func(T) int64, match func(T, url.Values) bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		all := sortedByID(items(), idOf)
		s.mu.RUnlock()

		query := r.URL.Query()
		if len(query) == 0 || match == nil {
			s.respond(w, http.StatusOK, all)
			return
		}
		filtered := make([]T, 0, len(all))
		for _, item := range all {
			if match(item, query) {
				filtered = append(filtered, item)
			}
		}
		s.respond(w, http.StatusOK, filtered)
	}
}

func handleGet[T any](s *Server, name string, items func() map[int64]T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			s.respondError(w, http.StatusBadRequest, "invalid id")
			return
		}
		s.mu.RLock()
		item, found := items()[id]
		s.mu.RUnlock()
		if !found {
			s.respondError(w, http.StatusNotFound, name+" not found")
			return
		}
		s.respond(w, http.StatusOK, item)
	}
}

func handleDelete[T any](s *Server, name string, items func() map[int64]T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			s.respondError(w, http.StatusBadRequest, "invalid id")
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.checkFailNext(w) {
			return
		}
		if _, found := items()[id]; !found {
			s.respondError(w, http.StatusNotFound, name+" not found")
			return
		}
		delete(items(), id)
		s.respond(w, http.StatusNoContent, nil)
	}
}

func matchID(query url.Values, param string, id domain.ID) bool {
	want := query.Get(param)
	return want == "" || want == id.String()
}

// ============================================================================
// PROJECTS
// ============================================================================

func (s *Server) projectRoutes(r chi.Router) {
	r.Get("/", handleList(s, func() map[int64]domain.Project { return s.projects },
		func(p domain.Project) int64 { return p.ID.Value() }, nil))
	r.Post("/", s.createProject)
	r.Get("/{id}", handleGet(s, "project", func() map[int64]domain.Project { return s.projects }))
	r.Patch("/{id}", s.updateProject)
	r.Delete("/{id}", handleDelete(s, "project", func() map[int64]domain.Project { return s.projects }))
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateProjectRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkFailNext(w) {
		return
	}
	ts := now()
	project := domain.Project{
		ID: domain.ConfirmedID(s.allocID()), Name: req.Name,
		Description: req.Description, Path: req.Path,
		CreatedAt: ts, UpdatedAt: ts,
	}
	s.projects[project.ID.Value()] = project
	s.respond(w, http.StatusCreated, project)
}

func (s *Server) updateProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.respondError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req domain.UpdateProjectRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkFailNext(w) {
		return
	}
	project, found := s.projects[id]
	if !found {
		s.respondError(w, http.StatusNotFound, "project not found")
		return
	}
	if req.Name != nil {
		project.Name = *req.Name
	}
	if req.Description != nil {
		project.Description = *req.Description
	}
	if req.Path != nil {
		project.Path = *req.Path
	}
	project.UpdatedAt = now()
	s.projects[id] = project
	s.respond(w, http.StatusOK, project)
}

// ============================================================================
// TICKETS
// ============================================================================

func (s *Server) ticketRoutes(r chi.Router) {
	r.Get("/", handleList(s, func() map[int64]domain.Ticket { return s.tickets },
		func(t domain.Ticket) int64 { return t.ID.Value() },
		func(t domain.Ticket, q url.Values) bool {
			return matchID(q, "projectId", t.ProjectID) &&
				(q.Get("status") == "" || q.Get("status") == t.Status)
		}))
	r.Post("/", s.createTicket)
	r.Get("/{id}", handleGet(s, "ticket", func() map[int64]domain.Ticket { return s.tickets }))
	r.Patch("/{id}", s.updateTicket)
	r.Delete("/{id}", handleDelete(s, "ticket", func() map[int64]domain.Ticket { return s.tickets }))
}

func (s *Server) createTicket(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateTicketRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkFailNext(w) {
		return
	}
	if _, found := s.projects[req.ProjectID.Value()]; !found {
		s.respondError(w, http.StatusUnprocessableEntity, "project does not exist")
		return
	}
	status := req.Status
	if status == "" {
		status = domain.TicketStatusOpen
	}
	ts := now()
	ticket := domain.Ticket{
		ID: domain.ConfirmedID(s.allocID()), ProjectID: req.ProjectID,
		Title: req.Title, Overview: req.Overview, Status: status, Priority: req.Priority,
		CreatedAt: ts, UpdatedAt: ts,
	}
	s.tickets[ticket.ID.Value()] = ticket
	s.respond(w, http.StatusCreated, ticket)
}

func (s *Server) updateTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.respondError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req domain.UpdateTicketRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkFailNext(w) {
		return
	}
	ticket, found := s.tickets[id]
	if !found {
		s.respondError(w, http.StatusNotFound, "ticket not found")
		return
	}
	if req.Title != nil {
		ticket.Title = *req.Title
	}
	if req.Overview != nil {
		ticket.Overview = *req.Overview
	}
	if req.Status != nil {
		ticket.Status = *req.Status
	}
	if req.Priority != nil {
		ticket.Priority = *req.Priority
	}
	if req.QueueID != nil {
		ticket.QueueID = *req.QueueID
	}
	ticket.UpdatedAt = now()
	s.tickets[id] = ticket
	s.respond(w, http.StatusOK, ticket)
}

// ============================================================================
// TASKS
// ============================================================================

func (s *Server) taskRoutes(r chi.Router) {
	r.Get("/", handleList(s, func() map[int64]domain.Task { return s.tasks },
		func(t domain.Task) int64 { return t.ID.Value() },
		func(t domain.Task, q url.Values) bool { return matchID(q, "ticketId", t.TicketID) }))
	r.Post("/", s.createTask)
	r.Get("/{id}", handleGet(s, "task", func() map[int64]domain.Task { return s.tasks }))
	r.Patch("/{id}", s.updateTask)
	r.Delete("/{id}", handleDelete(s, "task", func() map[int64]domain.Task { return s.tasks }))
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateTaskRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkFailNext(w) {
		return
	}
	if _, found := s.tickets[req.TicketID.Value()]; !found {
		s.respondError(w, http.StatusUnprocessableEntity, "ticket does not exist")
		return
	}
	ts := now()
	task := domain.Task{
		ID: domain.ConfirmedID(s.allocID()), TicketID: req.TicketID,
		Content: req.Content, OrderIndex: req.OrderIndex,
		CreatedAt: ts, UpdatedAt: ts,
	}
	s.tasks[task.ID.Value()] = task
	s.respond(w, http.StatusCreated, task)
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.respondError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req domain.UpdateTaskRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkFailNext(w) {
		return
	}
	task, found := s.tasks[id]
	if !found {
		s.respondError(w, http.StatusNotFound, "task not found")
		return
	}
	if req.Content != nil {
		task.Content = *req.Content
	}
	if req.Done != nil {
		task.Done = *req.Done
	}
	if req.OrderIndex != nil {
		task.OrderIndex = *req.OrderIndex
	}
	task.UpdatedAt = now()
	s.tasks[id] = task
	s.respond(w, http.StatusOK, task)
}

// ============================================================================
// PROMPTS
// ============================================================================

type createPromptRequest struct {
	ProjectID domain.ID `json:"projectId" validate:"required"`
	Name      string    `json:"name" validate:"required,max=200"`
	Content   string    `json:"content" validate:"required"`
}

type updatePromptRequest struct {
	Name    *string `json:"name,omitempty"`
	Content *string `json:"content,omitempty"`
}

func (s *Server) promptRoutes(r chi.Router) {
	r.Get("/", handleList(s, func() map[int64]domain.Prompt { return s.prompts },
		func(p domain.Prompt) int64 { return p.ID.Value() },
		func(p domain.Prompt, q url.Values) bool { return matchID(q, "projectId", p.ProjectID) }))
	r.Post("/", s.createPrompt)
	r.Get("/{id}", handleGet(s, "prompt", func() map[int64]domain.Prompt { return s.prompts }))
	r.Patch("/{id}", s.updatePrompt)
	r.Delete("/{id}", handleDelete(s, "prompt", func() map[int64]domain.Prompt { return s.prompts }))
}

func (s *Server) createPrompt(w http.ResponseWriter, r *http.Request) {
	var req createPromptRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkFailNext(w) {
		return
	}
	ts := now()
	prompt := domain.Prompt{
		ID: domain.ConfirmedID(s.allocID()), ProjectID: req.ProjectID,
		Name: req.Name, Content: req.Content,
		CreatedAt: ts, UpdatedAt: ts,
	}
	s.prompts[prompt.ID.Value()] = prompt
	s.respond(w, http.StatusCreated, prompt)
}

func (s *Server) updatePrompt(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.respondError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req updatePromptRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkFailNext(w) {
		return
	}
	prompt, found := s.prompts[id]
	if !found {
		s.respondError(w, http.StatusNotFound, "prompt not found")
		return
	}
	if req.Name != nil {
		prompt.Name = *req.Name
	}
	if req.Content != nil {
		prompt.Content = *req.Content
	}
	prompt.UpdatedAt = now()
	s.prompts[id] = prompt
	s.respond(w, http.StatusOK, prompt)
}

// ============================================================================
// QUEUES
// ============================================================================

type createQueueRequest struct {
	ProjectID        domain.ID `json:"projectId" validate:"required"`
	Name             string    `json:"name" validate:"required,max=200"`
	Description      string    `json:"description,omitempty"`
	MaxParallelItems int       `json:"maxParallelItems,omitempty"`
}

func (s *Server) queueRoutes(r chi.Router) {
	r.Get("/", handleList(s, func() map[int64]domain.Queue { return s.queues },
		func(q domain.Queue) int64 { return q.ID.Value() },
		func(queue domain.Queue, q url.Values) bool { return matchID(q, "projectId", queue.ProjectID) }))
	r.Post("/", s.createQueue)
	r.Get("/{id}", handleGet(s, "queue", func() map[int64]domain.Queue { return s.queues }))
	r.Delete("/{id}", handleDelete(s, "queue", func() map[int64]domain.Queue { return s.queues }))
}

func (s *Server) createQueue(w http.ResponseWriter, r *http.Request) {
	var req createQueueRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkFailNext(w) {
		return
	}
	maxParallel := req.MaxParallelItems
	if maxParallel <= 0 {
		maxParallel = 1
	}
	ts := now()
	queue := domain.Queue{
		ID: domain.ConfirmedID(s.allocID()), ProjectID: req.ProjectID,
		Name: req.Name, Description: req.Description, MaxParallelItems: maxParallel,
		CreatedAt: ts, UpdatedAt: ts,
	}
	s.queues[queue.ID.Value()] = queue
	s.respond(w, http.StatusCreated, queue)
}

// ============================================================================
// CHATS
// ============================================================================

func (s *Server) chatRoutes(r chi.Router) {
	r.Get("/", handleList(s, func() map[int64]domain.Chat { return s.chats },
		func(c domain.Chat) int64 { return c.ID.Value() },
		func(c domain.Chat, q url.Values) bool { return matchID(q, "projectId", c.ProjectID) }))
	r.Post("/", s.createChat)
	r.Get("/{id}", handleGet(s, "chat", func() map[int64]domain.Chat { return s.chats }))
	r.Patch("/{id}", s.updateChat)
	r.Delete("/{id}", handleDelete(s, "chat", func() map[int64]domain.Chat { return s.chats }))
}

func (s *Server) createChat(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateChatRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkFailNext(w) {
		return
	}
	ts := now()
	chat := domain.Chat{
		ID: domain.ConfirmedID(s.allocID()), ProjectID: req.ProjectID, Title: req.Title,
		CreatedAt: ts, UpdatedAt: ts,
	}
	s.chats[chat.ID.Value()] = chat
	s.respond(w, http.StatusCreated, chat)
}

func (s *Server) updateChat(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.respondError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req domain.UpdateChatRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkFailNext(w) {
		return
	}
	chat, found := s.chats[id]
	if !found {
		s.respondError(w, http.StatusNotFound, "chat not found")
		return
	}
	if req.Title != nil {
		chat.Title = *req.Title
	}
	chat.UpdatedAt = now()
	s.chats[id] = chat
	s.respond(w, http.StatusOK, chat)
}

// ============================================================================
// MESSAGES
// ============================================================================

func (s *Server) messageRoutes(r chi.Router) {
	r.Get("/", handleList(s, func() map[int64]domain.ChatMessage { return s.messages },
		func(m domain.ChatMessage) int64 { return m.ID.Value() },
		func(m domain.ChatMessage, q url.Values) bool { return matchID(q, "chatId", m.ChatID) }))
	r.Post("/", s.createMessage)
	r.Get("/{id}", handleGet(s, "message", func() map[int64]domain.ChatMessage { return s.messages }))
	r.Delete("/{id}", handleDelete(s, "message", func() map[int64]domain.ChatMessage { return s.messages }))
}

func (s *Server) createMessage(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateMessageRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkFailNext(w) {
		return
	}
	chat, found := s.chats[req.ChatID.Value()]
	if !found {
		s.respondError(w, http.StatusUnprocessableEntity, "chat does not exist")
		return
	}
	message := domain.ChatMessage{
		ID: domain.ConfirmedID(s.allocID()), ChatID: req.ChatID,
		Role: req.Role, Content: req.Content, CreatedAt: now(),
	}
	s.messages[message.ID.Value()] = message
	// Appending a message bumps the chat's activity timestamp.
	chat.UpdatedAt = message.CreatedAt
	s.chats[chat.ID.Value()] = chat
	s.respond(w, http.StatusCreated, message)
}

// ============================================================================
// AGENTS
// ============================================================================

type createAgentRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
}

func (s *Server) agentRoutes(r chi.Router) {
	r.Get("/", handleList(s, func() map[int64]domain.Agent { return s.agents },
		func(a domain.Agent) int64 { return a.ID.Value() }, nil))
	r.Post("/", s.createAgent)
	r.Get("/{id}", handleGet(s, "agent", func() map[int64]domain.Agent { return s.agents }))
	r.Delete("/{id}", handleDelete(s, "agent", func() map[int64]domain.Agent { return s.agents }))
}

func (s *Server) createAgent(w http.ResponseWriter, r *http.Request) {
	var req createAgentRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkFailNext(w) {
		return
	}
	ts := now()
	agent := domain.Agent{
		ID: domain.ConfirmedID(s.allocID()), Name: req.Name,
		Description: req.Description, Color: req.Color,
		CreatedAt: ts, UpdatedAt: ts,
	}
	s.agents[agent.ID.Value()] = agent
	s.respond(w, http.StatusCreated, agent)
}

// ============================================================================
// FILES
// ============================================================================

type createFileRequest struct {
	ProjectID domain.ID `json:"projectId" validate:"required"`
	Path      string    `json:"path" validate:"required"`
	Checksum  string    `json:"checksum,omitempty"`
}

func (s *Server) fileRoutes(r chi.Router) {
	r.Get("/", handleList(s, func() map[int64]domain.ProjectFile { return s.files },
		func(f domain.ProjectFile) int64 { return f.ID.Value() },
		func(f domain.ProjectFile, q url.Values) bool { return matchID(q, "projectId", f.ProjectID) }))
	r.Post("/", s.createFile)
	r.Get("/{id}", handleGet(s, "file", func() map[int64]domain.ProjectFile { return s.files }))
	r.Delete("/{id}", handleDelete(s, "file", func() map[int64]domain.ProjectFile { return s.files }))
}

func (s *Server) createFile(w http.ResponseWriter, r *http.Request) {
	var req createFileRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkFailNext(w) {
		return
	}
	ts := now()
	file := domain.ProjectFile{
		ID: domain.ConfirmedID(s.allocID()), ProjectID: req.ProjectID,
		Path: req.Path, Checksum: req.Checksum,
		CreatedAt: ts, UpdatedAt: ts,
	}
	s.files[file.ID.Value()] = file
	s.respond(w, http.StatusCreated, file)
}
