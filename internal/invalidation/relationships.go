// Package invalidation implements the relationship-aware cache invalidation
// engine: static relationship and rule tables, the engine that translates
// entity-change events into cache operations, and the bounded event history
// and running statistics it maintains.
package invalidation

import (
	"promptliano-client/internal/domain"
)

// Strategy controls how far a relationship's invalidation reaches.
type Strategy string

const (
	// StrategyImmediate invalidates the related entity's full query family.
	StrategyImmediate Strategy = "immediate"
	// StrategySmart invalidates only the related entity's list family,
	// leaving detail views untouched to avoid unnecessary refetches.
	StrategySmart Strategy = "smart"
)

// Relationship declares that changes to Entity affect the query families of
// the Related entity types. Relationships are configuration: built once at
// startup and never mutated.
type Relationship struct {
	Entity        domain.EntityType
	Related       []domain.EntityType
	Bidirectional bool
	Strategy      Strategy
}

// Link is one resolved edge of the relationship graph.
type Link struct {
	To       domain.EntityType
	Strategy Strategy
}

// Table is the resolved relationship graph. Bidirectional relationships are
// expanded into reverse links at construction time.
type Table struct {
	declared []Relationship
	links    map[domain.EntityType][]Link
}

// NewTable resolves the declared relationships into a lookup table.
func NewTable(relationships ...Relationship) *Table {
	t := &Table{
		declared: relationships,
		links:    make(map[domain.EntityType][]Link),
	}
	for _, rel := range relationships {
		for _, related := range rel.Related {
			t.addLink(rel.Entity, related, rel.Strategy)
			if rel.Bidirectional {
				t.addLink(related, rel.Entity, rel.Strategy)
			}
		}
	}
	return t
}

func (t *Table) addLink(from, to domain.EntityType, strategy Strategy) {
	for _, link := range t.links[from] {
		if link.To == to {
			return // first declaration wins
		}
	}
	t.links[from] = append(t.links[from], Link{To: to, Strategy: strategy})
}

// Related returns the resolved links for an entity type, in declaration order.
func (t *Table) Related(entity domain.EntityType) []Link {
	return t.links[entity]
}

// Declared returns the relationships as originally declared, for the startup
// validation pass and diagnostics.
func (t *Table) Declared() []Relationship {
	return t.declared
}

// DefaultTable returns the relationship graph of the Promptliano entity set.
func DefaultTable() *Table {
	return NewTable(
		Relationship{
			Entity:        domain.EntityTickets,
			Related:       []domain.EntityType{domain.EntityProjects, domain.EntityQueues, domain.EntityTasks},
			Bidirectional: true,
			Strategy:      StrategyImmediate,
		},
		Relationship{
			Entity:   domain.EntityProjects,
			Related:  []domain.EntityType{domain.EntityTickets, domain.EntityPrompts, domain.EntityQueues, domain.EntityChats, domain.EntityFiles},
			Strategy: StrategySmart,
		},
		Relationship{
			Entity:   domain.EntityTasks,
			Related:  []domain.EntityType{domain.EntityTickets},
			Strategy: StrategyImmediate,
		},
		Relationship{
			Entity:   domain.EntityMessages,
			Related:  []domain.EntityType{domain.EntityChats},
			Strategy: StrategySmart,
		},
		Relationship{
			Entity:   domain.EntityPrompts,
			Related:  []domain.EntityType{domain.EntityProjects},
			Strategy: StrategySmart,
		},
		Relationship{
			Entity:   domain.EntityQueues,
			Related:  []domain.EntityType{domain.EntityTickets},
			Strategy: StrategySmart,
		},
		Relationship{
			Entity:   domain.EntityFiles,
			Related:  []domain.EntityType{domain.EntityProjects},
			Strategy: StrategySmart,
		},
	)
}
