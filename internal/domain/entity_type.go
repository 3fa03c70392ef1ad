package domain

import "sort"

// EntityType names one of the entity families served by the Promptliano API.
// Query keys, relationships and invalidation rules are all declared against
// these names.
type EntityType string

const (
	EntityProjects EntityType = "projects"
	EntityTickets  EntityType = "tickets"
	EntityTasks    EntityType = "tasks"
	EntityPrompts  EntityType = "prompts"
	EntityQueues   EntityType = "queues"
	EntityChats    EntityType = "chats"
	EntityMessages EntityType = "messages"
	EntityAgents   EntityType = "agents"
	EntityFiles    EntityType = "files"
)

// Registry is the set of entity types known to the data layer. Relationships
// and rules that reference a type outside the registry are configuration
// errors, caught by the startup validation pass.
type Registry struct {
	types map[EntityType]struct{}
}

// NewRegistry builds a registry from the given entity types.
func NewRegistry(types ...EntityType) *Registry {
	r := &Registry{types: make(map[EntityType]struct{}, len(types))}
	for _, t := range types {
		r.types[t] = struct{}{}
	}
	return r
}

// DefaultRegistry returns the registry covering every Promptliano entity type.
func DefaultRegistry() *Registry {
	return NewRegistry(
		EntityProjects, EntityTickets, EntityTasks, EntityPrompts,
		EntityQueues, EntityChats, EntityMessages, EntityAgents, EntityFiles,
	)
}

// Contains reports whether the entity type is registered.
func (r *Registry) Contains(t EntityType) bool {
	_, ok := r.types[t]
	return ok
}

// All returns the registered entity types in stable order.
func (r *Registry) All() []EntityType {
	out := make([]EntityType, 0, len(r.types))
	for t := range r.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len returns the number of registered entity types.
func (r *Registry) Len() int { return len(r.types) }
