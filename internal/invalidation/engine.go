package invalidation

import (
	"context"
	"time"

	"promptliano-client/internal/domain"
	"promptliano-client/internal/querycache"

	"go.uber.org/zap"
)

// Metrics is the observability surface the engine reports to.
type Metrics interface {
	InvalidationRun(entity, operation string, targets int)
}

// Engine translates entity-change events into deterministic sets of cache
// operations and records diagnostics. It is constructed once at application
// start and injected wherever invalidation is needed; it holds no global
// state, so isolated instances can be built freely in tests.
type Engine struct {
	store    *querycache.Store
	registry *domain.Registry
	table    *Table
	rules    []Rule
	history  *History
	stats    *Stats
	logger   *zap.Logger
	metrics  Metrics
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithRelationships replaces the default relationship table.
func WithRelationships(table *Table) EngineOption {
	return func(e *Engine) { e.table = table }
}

// WithRules replaces the default rule set.
func WithRules(rules []Rule) EngineOption {
	return func(e *Engine) { e.rules = rules }
}

// WithEngineLogger sets the engine logger. Defaults to a no-op logger.
func WithEngineLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// WithEngineMetrics attaches an observability collector.
func WithEngineMetrics(m Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithHistorySize bounds the diagnostic event history.
func WithHistorySize(size int) EngineOption {
	return func(e *Engine) { e.history = NewHistory(size) }
}

// NewEngine creates an invalidation engine over the given store and registry.
func NewEngine(store *querycache.Store, registry *domain.Registry, opts ...EngineOption) *Engine {
	e := &Engine{
		store:    store,
		registry: registry,
		table:    DefaultTable(),
		rules:    DefaultRules(),
		history:  NewHistory(DefaultHistorySize),
		stats:    NewStats(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ============================================================================
// INVALIDATE WITH RELATIONSHIPS
// ============================================================================

// InvalidateWithRelationships translates one entity-change event into cache
// operations:
//
//  1. The relationship table cascades to related entity types: immediate
//     links invalidate the related type's full query family, smart links only
//     its list family.
//  2. Every rule matching (entity, operation, payload) fires, in registration
//     order. Targets guarded by a condition are evaluated against the cached
//     entries currently in the store. Rules run after the cascade so a
//     refresh target gets the last word over a generic invalidation of the
//     same key.
//
// An unregistered entity is a silent no-op, not an error: the call returns an
// event with zero targets so a misconfigured call site cannot crash the UI.
// The returned event is also appended to the bounded history.
func (e *Engine) InvalidateWithRelationships(entity domain.EntityType, op domain.Operation, entityID domain.ID, payload *ChangePayload) Event {
	if op == "" || !op.Valid() {
		op = domain.OpUpdate
	}
	event := Event{
		Entity:    entity,
		Operation: op,
		EntityID:  entityID,
		Timestamp: time.Now(),
	}

	if !e.registry.Contains(entity) {
		e.logger.Debug("invalidation for unregistered entity ignored",
			zap.String("entity", string(entity)),
		)
		return event
	}

	// Step 1: relationship cascade.
	for _, link := range e.table.Related(entity) {
		if !e.registry.Contains(link.To) {
			e.logger.Warn("relationship references unregistered entity",
				zap.String("entity", string(entity)),
				zap.String("related", string(link.To)),
			)
			continue
		}
		switch link.Strategy {
		case StrategyImmediate:
			event.TargetsInvalidated += e.store.Invalidate(querycache.EntityPrefix(link.To), false)
		case StrategySmart:
			event.TargetsInvalidated += e.store.Invalidate(querycache.ListPrefix(link.To), false)
		}
	}

	// Step 2: matching rules, all of them; no first-match-wins.
	for _, rule := range e.rules {
		if !rule.Matches(entity, op, payload) {
			continue
		}
		event.TriggeredRuleIDs = append(event.TriggeredRuleIDs, rule.ID)
		if rule.Delay > 0 {
			// Deferred rules run outside this event; their targets are not
			// part of this event's tally.
			e.scheduleRule(rule, entityID)
			continue
		}
		event.TargetsInvalidated += e.applyRule(rule, entityID)
	}

	e.record(event)
	return event
}

func (e *Engine) applyRule(rule Rule, entityID domain.ID) int {
	total := 0
	for _, target := range rule.Targets {
		total += e.applyTarget(target, entityID)
	}
	return total
}

func (e *Engine) applyTarget(target Target, entityID domain.ID) int {
	prefix := target.PrefixFor(entityID)

	if target.Condition == nil {
		switch target.Strategy {
		case TargetRemove:
			return e.store.Remove(prefix, target.Exact)
		case TargetRefresh:
			return e.store.Refetch(context.Background(), prefix, target.Exact)
		default:
			// TargetUpdate is deliberately folded into TargetInvalidate; no
			// granular patch-merge exists.
			return e.store.Invalidate(prefix, target.Exact)
		}
	}

	// Conditioned targets are filtered per entry against the cached value
	// currently in the store.
	count := 0
	for _, key := range e.store.Keys() {
		if !prefix.Matches(key, target.Exact) {
			continue
		}
		entry, ok := e.store.Snapshot(key)
		if !ok || !target.Condition(entry) {
			continue
		}
		switch target.Strategy {
		case TargetRemove:
			if e.store.RemoveKey(key) {
				count++
			}
		case TargetRefresh:
			if e.store.RefetchKey(context.Background(), key) {
				count++
			}
		default:
			if e.store.InvalidateKey(key) {
				count++
			}
		}
	}
	return count
}

func (e *Engine) scheduleRule(rule Rule, entityID domain.ID) {
	time.AfterFunc(rule.Delay, func() {
		targets := e.applyRule(rule, entityID)
		e.logger.Debug("deferred rule fired",
			zap.String("rule", rule.ID),
			zap.Int("targets", targets),
		)
	})
}

func (e *Engine) record(event Event) {
	e.history.Append(event)
	e.stats.Record(event)
	if e.metrics != nil {
		e.metrics.InvalidationRun(string(event.Entity), string(event.Operation), event.TargetsInvalidated)
	}
	e.logger.Debug("invalidation run",
		zap.String("entity", string(event.Entity)),
		zap.String("operation", string(event.Operation)),
		zap.String("id", event.EntityID.String()),
		zap.Strings("rules", event.TriggeredRuleIDs),
		zap.Int("targets", event.TargetsInvalidated),
	)
}

// ============================================================================
// SMART INVALIDATE
// ============================================================================

// SmartOptions tune a SmartInvalidate walk.
type SmartOptions struct {
	// IncludeRelated expands the walk into the relationship graph.
	IncludeRelated bool
	// MaxDepth caps the number of relationship hops taken from the root.
	MaxDepth int
	// OnlyStale restricts the walk to entries already marked stale.
	OnlyStale bool
}

// SmartInvalidate walks outward from one entity through the relationship
// graph up to MaxDepth hops. Expansion is disabled from the second hop
// onward: relationships-of-relationships are invalidated but not further
// expanded, bounding fan-out in densely connected graphs. Returns the number
// of entries touched.
func (e *Engine) SmartInvalidate(entity domain.EntityType, entityID domain.ID, opts SmartOptions) int {
	if !e.registry.Contains(entity) {
		return 0
	}
	visited := make(map[domain.EntityType]bool)
	return e.smartWalk(entity, entityID, opts, 0, visited)
}

func (e *Engine) smartWalk(entity domain.EntityType, entityID domain.ID, opts SmartOptions, depth int, visited map[domain.EntityType]bool) int {
	if visited[entity] {
		return 0
	}
	visited[entity] = true

	count := e.invalidateScoped(entity, entityID, opts.OnlyStale)

	if !opts.IncludeRelated || opts.MaxDepth <= depth {
		return count
	}
	for _, link := range e.table.Related(entity) {
		if !e.registry.Contains(link.To) {
			continue
		}
		child := opts
		// Only the root expands; entities reached at depth >= 1 are
		// invalidated without pulling in their own relations.
		child.IncludeRelated = depth == 0 && opts.MaxDepth > depth+1
		count += e.smartWalk(link.To, domain.ID{}, child, depth+1, visited)
	}
	return count
}

func (e *Engine) invalidateScoped(entity domain.EntityType, entityID domain.ID, onlyStale bool) int {
	var prefixes []querycache.Prefix
	if entityID.IsZero() {
		prefixes = []querycache.Prefix{querycache.EntityPrefix(entity)}
	} else {
		prefixes = []querycache.Prefix{
			querycache.ListPrefix(entity),
			querycache.DetailPrefix(entity, entityID),
		}
	}

	if !onlyStale {
		count := 0
		for _, p := range prefixes {
			count += e.store.Invalidate(p, false)
		}
		return count
	}

	count := 0
	for _, key := range e.store.Keys() {
		for _, p := range prefixes {
			if !p.Matches(key, false) {
				continue
			}
			entry, ok := e.store.Snapshot(key)
			if ok && entry.Stale && e.store.InvalidateKey(key) {
				count++
			}
			break
		}
	}
	return count
}

// ============================================================================
// BATCH INVALIDATE
// ============================================================================

// BatchOperation is one entry of a BatchInvalidate call.
type BatchOperation struct {
	Entity    domain.EntityType
	Operation domain.Operation
	EntityID  domain.ID
	Payload   *ChangePayload
}

// BatchInvalidate executes the operations grouped by entity type. Grouping
// exists for future coalescing only: each operation currently runs through
// InvalidateWithRelationships independently, and overlapping invalidations
// are not deduplicated. That is an inefficiency, not a correctness issue,
// because invalidation is idempotent.
func (e *Engine) BatchInvalidate(operations []BatchOperation) []Event {
	groups := make(map[domain.EntityType][]BatchOperation)
	order := make([]domain.EntityType, 0, len(operations))
	for _, op := range operations {
		if _, seen := groups[op.Entity]; !seen {
			order = append(order, op.Entity)
		}
		groups[op.Entity] = append(groups[op.Entity], op)
	}

	events := make([]Event, 0, len(operations))
	for _, entity := range order {
		for _, op := range groups[entity] {
			events = append(events, e.InvalidateWithRelationships(op.Entity, op.Operation, op.EntityID, op.Payload))
		}
	}
	return events
}

// ============================================================================
// DIAGNOSTICS
// ============================================================================

// Stats returns a snapshot of the running counters.
func (e *Engine) Stats() StatsSnapshot {
	return e.stats.Snapshot()
}

// EventHistory returns the retained invalidation events, oldest first.
func (e *Engine) EventHistory() []Event {
	return e.history.Events()
}

// ResetStats zeroes the counters and clears the event history.
func (e *Engine) ResetStats() {
	e.stats.Reset()
	e.history.Clear()
}

// Rules returns the configured rule set, for validation and diagnostics.
func (e *Engine) Rules() []Rule { return e.rules }

// Relationships returns the configured relationship table.
func (e *Engine) Relationships() *Table { return e.table }
