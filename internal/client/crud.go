package client

import (
	"context"
	"net/http"
	"net/url"

	"promptliano-client/internal/domain"
)

// Resource is the typed CRUD surface for one entity collection. All methods
// go through the shared transport, so tracing, metrics and error
// classification apply uniformly.
type Resource[T any] struct {
	c    *Client
	base string
}

// NewResource creates a resource rooted at base (e.g. "/api/tickets").
func NewResource[T any](c *Client, base string) *Resource[T] {
	return &Resource[T]{c: c, base: base}
}

// List fetches the collection, optionally filtered by query parameters.
func (r *Resource[T]) List(ctx context.Context, query url.Values) ([]T, error) {
	var out []T
	if err := r.c.do(ctx, http.MethodGet, r.base, query, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get fetches one record by id.
func (r *Resource[T]) Get(ctx context.Context, id domain.ID) (T, error) {
	var out T
	err := r.c.do(ctx, http.MethodGet, r.base+"/"+id.String(), nil, nil, &out)
	return out, err
}

// Create posts a new record and returns the server's canonical copy, with
// its assigned id.
func (r *Resource[T]) Create(ctx context.Context, body any) (T, error) {
	var out T
	err := r.c.do(ctx, http.MethodPost, r.base, nil, body, &out)
	return out, err
}

// Update patches a record and returns the server's canonical copy.
func (r *Resource[T]) Update(ctx context.Context, id domain.ID, body any) (T, error) {
	var out T
	err := r.c.do(ctx, http.MethodPatch, r.base+"/"+id.String(), nil, body, &out)
	return out, err
}

// Delete removes a record.
func (r *Resource[T]) Delete(ctx context.Context, id domain.ID) error {
	return r.c.do(ctx, http.MethodDelete, r.base+"/"+id.String(), nil, nil, nil)
}

// ============================================================================
// TYPED ACCESSORS
// ============================================================================

// Projects returns the projects resource.
func (c *Client) Projects() *Resource[domain.Project] {
	return NewResource[domain.Project](c, "/api/projects")
}

// Tickets returns the tickets resource.
func (c *Client) Tickets() *Resource[domain.Ticket] {
	return NewResource[domain.Ticket](c, "/api/tickets")
}

// Tasks returns the tasks resource.
func (c *Client) Tasks() *Resource[domain.Task] {
	return NewResource[domain.Task](c, "/api/tasks")
}

// Prompts returns the prompts resource.
func (c *Client) Prompts() *Resource[domain.Prompt] {
	return NewResource[domain.Prompt](c, "/api/prompts")
}

// Queues returns the queues resource.
func (c *Client) Queues() *Resource[domain.Queue] {
	return NewResource[domain.Queue](c, "/api/queues")
}

// Chats returns the chats resource.
func (c *Client) Chats() *Resource[domain.Chat] {
	return NewResource[domain.Chat](c, "/api/chats")
}

// Messages returns the chat messages resource.
func (c *Client) Messages() *Resource[domain.ChatMessage] {
	return NewResource[domain.ChatMessage](c, "/api/messages")
}

// Agents returns the agents resource.
func (c *Client) Agents() *Resource[domain.Agent] {
	return NewResource[domain.Agent](c, "/api/agents")
}

// Files returns the project files resource.
func (c *Client) Files() *Resource[domain.ProjectFile] {
	return NewResource[domain.ProjectFile](c, "/api/files")
}
