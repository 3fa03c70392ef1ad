// Package domain defines the entity types exchanged with the Promptliano API
// and the identifier and registry types the caching layer is built around.
package domain

import "time"

// Operation is the kind of mutation applied to an entity.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Valid reports whether the operation is one of create, update or delete.
func (o Operation) Valid() bool {
	return o == OpCreate || o == OpUpdate || o == OpDelete
}

// TicketStatus values used by the API.
const (
	TicketStatusOpen       = "open"
	TicketStatusInProgress = "in_progress"
	TicketStatusDone       = "done"
)

// Project is a workspace holding tickets, prompts, queues, chats and files.
type Project struct {
	ID          ID        `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Path        string    `json:"path,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Ticket is a unit of work within a project.
type Ticket struct {
	ID        ID        `json:"id"`
	ProjectID ID        `json:"projectId"`
	Title     string    `json:"title"`
	Overview  string    `json:"overview,omitempty"`
	Status    string    `json:"status"`
	Priority  string    `json:"priority,omitempty"`
	QueueID   ID        `json:"queueId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Task is a checklist item under a ticket.
type Task struct {
	ID         ID        `json:"id"`
	TicketID   ID        `json:"ticketId"`
	Content    string    `json:"content"`
	Done       bool      `json:"done"`
	OrderIndex int       `json:"orderIndex"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Prompt is a reusable prompt template scoped to a project.
type Prompt struct {
	ID        ID        `json:"id"`
	ProjectID ID        `json:"projectId"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Queue orders tickets for agent processing.
type Queue struct {
	ID               ID        `json:"id"`
	ProjectID        ID        `json:"projectId"`
	Name             string    `json:"name"`
	Description      string    `json:"description,omitempty"`
	MaxParallelItems int       `json:"maxParallelItems"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Chat is a conversation with the assistant.
type Chat struct {
	ID        ID        `json:"id"`
	ProjectID ID        `json:"projectId,omitempty"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ChatMessage is a single message within a chat.
type ChatMessage struct {
	ID        ID        `json:"id"`
	ChatID    ID        `json:"chatId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Agent is a named assistant configuration.
type Agent struct {
	ID          ID        `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Color       string    `json:"color,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ProjectFile is a file tracked within a project.
type ProjectFile struct {
	ID        ID        `json:"id"`
	ProjectID ID        `json:"projectId"`
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ============================================================================
// REQUEST PAYLOADS
// ============================================================================

// CreateProjectRequest is the payload for creating a project.
type CreateProjectRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description,omitempty"`
	Path        string `json:"path,omitempty"`
}

// UpdateProjectRequest is the partial-update payload for a project. Nil fields
// are left unchanged.
type UpdateProjectRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Path        *string `json:"path,omitempty"`
}

// CreateTicketRequest is the payload for creating a ticket.
type CreateTicketRequest struct {
	ProjectID ID     `json:"projectId" validate:"required"`
	Title     string `json:"title" validate:"required,max=500"`
	Overview  string `json:"overview,omitempty"`
	Status    string `json:"status,omitempty"`
	Priority  string `json:"priority,omitempty"`
}

// UpdateTicketRequest is the partial-update payload for a ticket.
type UpdateTicketRequest struct {
	Title    *string `json:"title,omitempty"`
	Overview *string `json:"overview,omitempty"`
	Status   *string `json:"status,omitempty"`
	Priority *string `json:"priority,omitempty"`
	QueueID  *ID     `json:"queueId,omitempty"`
}

// CreateTaskRequest is the payload for creating a task under a ticket.
type CreateTaskRequest struct {
	TicketID   ID     `json:"ticketId" validate:"required"`
	Content    string `json:"content" validate:"required"`
	OrderIndex int    `json:"orderIndex,omitempty"`
}

// UpdateTaskRequest is the partial-update payload for a task.
type UpdateTaskRequest struct {
	Content    *string `json:"content,omitempty"`
	Done       *bool   `json:"done,omitempty"`
	OrderIndex *int    `json:"orderIndex,omitempty"`
}

// CreateChatRequest is the payload for starting a chat.
type CreateChatRequest struct {
	ProjectID ID     `json:"projectId,omitempty"`
	Title     string `json:"title" validate:"required,max=200"`
}

// UpdateChatRequest is the partial-update payload for a chat.
type UpdateChatRequest struct {
	Title *string `json:"title,omitempty"`
}

// CreateMessageRequest is the payload for appending a message to a chat.
type CreateMessageRequest struct {
	ChatID  ID     `json:"chatId" validate:"required"`
	Role    string `json:"role" validate:"required,oneof=user assistant system"`
	Content string `json:"content" validate:"required"`
}

// UpdateMessageRequest is the partial-update payload for a message.
type UpdateMessageRequest struct {
	Content *string `json:"content,omitempty"`
}
