package invalidation

import (
	"time"

	"promptliano-client/internal/domain"
	"promptliano-client/internal/querycache"
)

// OpAny is the wildcard operation: a rule declared with it fires for create,
// update and delete alike.
const OpAny domain.Operation = "*"

// ChangePayload carries the mutation context a rule predicate can inspect.
// It is a small tagged struct rather than a loosely-typed map, so predicates
// are checked at compile time against the fields that actually exist.
type ChangePayload struct {
	Status        string   // new status value, if the mutation set one
	StatusChanged bool     // whether the mutation changed the status field
	Fields        []string // names of the fields the mutation touched
}

// Touched reports whether the mutation touched the named field.
func (p *ChangePayload) Touched(field string) bool {
	if p == nil {
		return false
	}
	for _, f := range p.Fields {
		if f == field {
			return true
		}
	}
	return false
}

// RulePredicate guards a rule against the mutation payload.
type RulePredicate func(payload *ChangePayload) bool

// TargetPredicate guards a target against the cached entry currently in the
// store, not the mutation payload.
type TargetPredicate func(entry querycache.Entry) bool

// TargetStrategy is the cache operation a target performs.
type TargetStrategy string

const (
	// TargetInvalidate marks matching entries stale for refetch on access.
	TargetInvalidate TargetStrategy = "invalidate"
	// TargetRemove evicts matching entries outright.
	TargetRemove TargetStrategy = "remove"
	// TargetRefresh reloads matching entries in the background without
	// marking other consumers' entries stale.
	TargetRefresh TargetStrategy = "refresh"
	// TargetUpdate is currently handled identically to TargetInvalidate; no
	// granular patch-merge is performed.
	TargetUpdate TargetStrategy = "update"
)

// Target describes one cache-key family plus the action to take on it.
type Target struct {
	Entity   domain.EntityType
	Scope    querycache.Scope // "" selects every scope of the entity
	Name     string           // custom scope name
	Strategy TargetStrategy
	Exact    bool

	// ScopeByID narrows a detail target to the event's entity id. When the
	// event carries no id the whole detail family is selected; a missing id
	// is the deliberate broad-invalidation signal for bulk operations, not
	// an error.
	ScopeByID bool

	Condition TargetPredicate
}

// PrefixFor resolves the target to a concrete key prefix for the given event
// id.
func (t Target) PrefixFor(id domain.ID) querycache.Prefix {
	p := querycache.Prefix{Entity: t.Entity, Scope: t.Scope, Name: t.Name}
	if t.Scope == querycache.ScopeDetail && t.ScopeByID {
		p.ID = id // zero id leaves the family unscoped
	}
	return p
}

// Rule maps an (entity, operation) pair to its invalidation targets. Rules
// are configuration, evaluated in registration order; every matching rule
// fires, there is no priority or short-circuit.
type Rule struct {
	ID        string
	Entity    domain.EntityType
	Operation domain.Operation // concrete operation or OpAny
	Targets   []Target
	Condition RulePredicate
	Delay     time.Duration // optional deferred execution
}

// Matches reports whether the rule fires for the given event.
func (r Rule) Matches(entity domain.EntityType, op domain.Operation, payload *ChangePayload) bool {
	if r.Entity != entity {
		return false
	}
	if r.Operation != OpAny && r.Operation != op {
		return false
	}
	if r.Condition != nil && !r.Condition(payload) {
		return false
	}
	return true
}

// ============================================================================
// DEFAULT RULE SET
// ============================================================================

// crudRules returns the standard create/update/delete rules for one entity
// type: create touches the list family, update touches list plus the scoped
// detail record, delete evicts the detail record and invalidates the list.
func crudRules(entity domain.EntityType) []Rule {
	return []Rule{
		{
			ID: string(entity) + ".create", Entity: entity, Operation: domain.OpCreate,
			Targets: []Target{
				{Entity: entity, Scope: querycache.ScopeList, Strategy: TargetInvalidate},
			},
		},
		{
			ID: string(entity) + ".update", Entity: entity, Operation: domain.OpUpdate,
			Targets: []Target{
				{Entity: entity, Scope: querycache.ScopeList, Strategy: TargetInvalidate},
				{Entity: entity, Scope: querycache.ScopeDetail, ScopeByID: true, Strategy: TargetInvalidate},
			},
		},
		{
			ID: string(entity) + ".delete", Entity: entity, Operation: domain.OpDelete,
			Targets: []Target{
				{Entity: entity, Scope: querycache.ScopeDetail, ScopeByID: true, Strategy: TargetRemove},
				{Entity: entity, Scope: querycache.ScopeList, Strategy: TargetInvalidate},
			},
		},
	}
}

// DefaultRules returns the rule set for the Promptliano entity registry.
func DefaultRules() []Rule {
	var rules []Rule
	for _, entity := range []domain.EntityType{
		domain.EntityProjects, domain.EntityTickets, domain.EntityTasks,
		domain.EntityPrompts, domain.EntityQueues, domain.EntityChats,
		domain.EntityMessages, domain.EntityAgents, domain.EntityFiles,
	} {
		rules = append(rules, crudRules(entity)...)
	}

	rules = append(rules,
		// Appending a message should quietly refresh the chat list (message
		// counts, last-activity ordering) without flagging it stale for every
		// subscriber.
		Rule{
			ID: "messages.create.refresh-chats", Entity: domain.EntityMessages, Operation: domain.OpCreate,
			Targets: []Target{
				{Entity: domain.EntityChats, Scope: querycache.ScopeList, Strategy: TargetRefresh},
			},
		},
		// A ticket status change affects queue contents and counts.
		Rule{
			ID: "tickets.status.queues", Entity: domain.EntityTickets, Operation: domain.OpUpdate,
			Condition: func(p *ChangePayload) bool { return p != nil && p.StatusChanged },
			Targets: []Target{
				{Entity: domain.EntityQueues, Scope: querycache.ScopeList, Strategy: TargetInvalidate},
				{Entity: domain.EntityQueues, Scope: querycache.ScopeCustom, Name: "stats", Strategy: TargetInvalidate},
			},
		},
		// Any file mutation invalidates the project file summaries.
		Rule{
			ID: "files.any.summaries", Entity: domain.EntityFiles, Operation: OpAny,
			Targets: []Target{
				{Entity: domain.EntityProjects, Scope: querycache.ScopeCustom, Name: "summary", Strategy: TargetInvalidate},
			},
		},
	)
	return rules
}
