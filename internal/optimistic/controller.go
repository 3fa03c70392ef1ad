// Package optimistic applies mutations to the query cache before the server
// confirms them, so the UI reflects a change the moment the user makes it.
// Each staged mutation snapshots exactly the entries it touches; a confirm
// discards the snapshot, a rollback restores it byte for byte.
package optimistic

import (
	"sync"

	"promptliano-client/internal/domain"
	"promptliano-client/internal/errors"
	"promptliano-client/internal/querycache"

	"go.uber.org/zap"
)

// Notifier surfaces a rollback to the user. Implementations decide the
// delivery channel; the controller only supplies the message.
type Notifier interface {
	NotifyError(message string)
}

// DeleteStrategy controls what a staged delete does to the entity's detail
// entry.
type DeleteStrategy string

const (
	// DeleteRemove evicts the detail entry outright.
	DeleteRemove DeleteStrategy = "remove"
	// DeleteMark keeps the detail entry but rewrites it through MarkDeleted,
	// for views that render tombstones.
	DeleteMark DeleteStrategy = "mark-deleted"
)

// Config describes how the controller manipulates one entity type.
type Config[T any] struct {
	Entity domain.EntityType

	// IDOf extracts the entity's id. Placeholders returned by the caller
	// must already carry a pending id (domain.NewPendingID).
	IDOf func(T) domain.ID

	// Merge folds a partial update into a cached copy. Required for staged
	// updates.
	Merge func(current T, patch T) T

	// DeleteStrategy defaults to DeleteRemove.
	DeleteStrategy DeleteStrategy

	// MarkDeleted rewrites an entity into its tombstone form. Required when
	// DeleteStrategy is DeleteMark.
	MarkDeleted func(T) T
}

// Controller stages, confirms and rolls back optimistic mutations for one
// entity type. All methods are safe for concurrent use; each in-flight
// mutation owns its snapshots, so independent mutations never interfere.
type Controller[T any] struct {
	store    *querycache.Store
	cfg      Config[T]
	logger   *zap.Logger
	notifier Notifier

	mu sync.Mutex
	// pending tracks the placeholder ids of creates staged but not yet
	// settled. Rollback consults it to scrub settled placeholders out of
	// restored list snapshots.
	pending map[string]struct{}
}

// Option configures a Controller.
type Option func(*options)

type options struct {
	logger   *zap.Logger
	notifier Notifier
}

// WithLogger sets the controller logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithNotifier attaches a rollback notifier.
func WithNotifier(n Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// NewController builds a controller over the given store.
func NewController[T any](store *querycache.Store, cfg Config[T], opts ...Option) *Controller[T] {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if cfg.DeleteStrategy == "" {
		cfg.DeleteStrategy = DeleteRemove
	}
	return &Controller[T]{
		store:    store,
		cfg:      cfg,
		logger:   o.logger,
		notifier: o.notifier,
		pending:  make(map[string]struct{}),
	}
}

// ============================================================================
// MUTATIONS
// ============================================================================

// Mutation is one staged optimistic change. It holds the snapshots needed to
// undo exactly what the stage wrote, nothing more.
type Mutation[T any] struct {
	pendingID domain.ID
	entityID  domain.ID
	snapshots []snapshot
	done      bool
}

type snapshot struct {
	key     querycache.Key
	entry   querycache.Entry
	existed bool
}

// PendingID returns the placeholder id of a staged create, or the zero id
// for updates and deletes.
func (m *Mutation[T]) PendingID() domain.ID { return m.pendingID }

func (c *Controller[T]) snapshotKey(m *Mutation[T], key querycache.Key) {
	entry, ok := c.store.Snapshot(key)
	m.snapshots = append(m.snapshots, snapshot{key: key, entry: entry, existed: ok})
}

// listEntries returns the cached list-scope entries of the configured entity
// whose values hold []T. Entries of another shape are skipped with a debug
// log rather than corrupted.
func (c *Controller[T]) listEntries() []querycache.Entry {
	prefix := querycache.ListPrefix(c.cfg.Entity)
	var out []querycache.Entry
	for _, key := range c.store.Keys() {
		if !prefix.Matches(key, false) {
			continue
		}
		entry, ok := c.store.Snapshot(key)
		if !ok {
			continue
		}
		if _, isList := entry.Value.([]T); !isList {
			c.logger.Debug("cached list entry has unexpected value type, skipping",
				zap.String("key", key.String()),
			)
			continue
		}
		out = append(out, entry)
	}
	return out
}

// StageCreate appends the placeholder to every cached list of the entity and
// returns the staged mutation. The placeholder must carry a pending id; the
// server's real record later replaces it by that id.
func (c *Controller[T]) StageCreate(placeholder T) *Mutation[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := &Mutation[T]{pendingID: c.cfg.IDOf(placeholder)}
	c.pending[m.pendingID.Token()] = struct{}{}
	for _, entry := range c.listEntries() {
		c.snapshotKey(m, entry.Key)
		list := entry.Value.([]T)
		next := make([]T, 0, len(list)+1)
		next = append(next, list...)
		next = append(next, placeholder)
		c.store.Set(entry.Key, next, querycache.WithStaleTime(entry.StaleTime))
	}
	c.logger.Debug("staged optimistic create",
		zap.String("entity", string(c.cfg.Entity)),
		zap.String("pending_id", m.pendingID.String()),
		zap.Int("lists", len(m.snapshots)),
	)
	return m
}

// ConfirmCreate replaces the placeholder with the server's record in every
// cached list. A list where the placeholder is no longer present (evicted,
// overwritten by a refetch) gets the record appended instead, so the
// confirmed entity is present either way.
func (c *Controller[T]) ConfirmCreate(m *Mutation[T], actual T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m.done {
		return
	}
	m.done = true
	delete(c.pending, m.pendingID.Token())

	for _, entry := range c.listEntries() {
		list := entry.Value.([]T)
		next := make([]T, 0, len(list)+1)
		replaced := false
		for _, item := range list {
			if c.cfg.IDOf(item).Equal(m.pendingID) {
				next = append(next, actual)
				replaced = true
				continue
			}
			next = append(next, item)
		}
		if !replaced {
			next = append(next, actual)
		}
		c.store.Set(entry.Key, next, querycache.WithStaleTime(entry.StaleTime))
	}
	c.store.Set(querycache.DetailKey(c.cfg.Entity, c.cfg.IDOf(actual)), actual)
}

// StageUpdate merges the patch into the cached detail entry and every cached
// list occurrence of the entity.
func (c *Controller[T]) StageUpdate(id domain.ID, patch T) (*Mutation[T], error) {
	if c.cfg.Merge == nil {
		return nil, errors.NewConfiguration(errors.CodeOptimisticMissing, "optimistic update requires a Merge function")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	m := &Mutation[T]{entityID: id}

	detailKey := querycache.DetailKey(c.cfg.Entity, id)
	if entry, ok := c.store.Snapshot(detailKey); ok {
		if current, isT := entry.Value.(T); isT {
			c.snapshotKey(m, detailKey)
			c.store.Set(detailKey, c.cfg.Merge(current, patch), querycache.WithStaleTime(entry.StaleTime))
		}
	}

	for _, entry := range c.listEntries() {
		list := entry.Value.([]T)
		touched := false
		next := make([]T, len(list))
		for i, item := range list {
			if c.cfg.IDOf(item).Equal(id) {
				next[i] = c.cfg.Merge(item, patch)
				touched = true
				continue
			}
			next[i] = item
		}
		if !touched {
			continue
		}
		c.snapshotKey(m, entry.Key)
		c.store.Set(entry.Key, next, querycache.WithStaleTime(entry.StaleTime))
	}
	return m, nil
}

// ConfirmUpdate writes the server's record over the optimistic merge.
func (c *Controller[T]) ConfirmUpdate(m *Mutation[T], actual T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m.done {
		return
	}
	m.done = true

	id := c.cfg.IDOf(actual)
	c.store.Set(querycache.DetailKey(c.cfg.Entity, id), actual)
	for _, entry := range c.listEntries() {
		list := entry.Value.([]T)
		next := make([]T, len(list))
		for i, item := range list {
			if c.cfg.IDOf(item).Equal(id) {
				next[i] = actual
				continue
			}
			next[i] = item
		}
		c.store.Set(entry.Key, next, querycache.WithStaleTime(entry.StaleTime))
	}
}

// StageDelete removes the entity from every cached list and applies the
// configured strategy to its detail entry.
func (c *Controller[T]) StageDelete(id domain.ID) *Mutation[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := &Mutation[T]{entityID: id}

	for _, entry := range c.listEntries() {
		list := entry.Value.([]T)
		next := make([]T, 0, len(list))
		touched := false
		for _, item := range list {
			if c.cfg.IDOf(item).Equal(id) {
				touched = true
				continue
			}
			next = append(next, item)
		}
		if !touched {
			continue
		}
		c.snapshotKey(m, entry.Key)
		c.store.Set(entry.Key, next, querycache.WithStaleTime(entry.StaleTime))
	}

	detailKey := querycache.DetailKey(c.cfg.Entity, id)
	if entry, ok := c.store.Snapshot(detailKey); ok {
		c.snapshotKey(m, detailKey)
		switch {
		case c.cfg.DeleteStrategy == DeleteMark && c.cfg.MarkDeleted != nil:
			if current, isT := entry.Value.(T); isT {
				c.store.Set(detailKey, c.cfg.MarkDeleted(current), querycache.WithStaleTime(entry.StaleTime))
			}
		default:
			c.store.RemoveKey(detailKey)
		}
	}
	return m
}

// ConfirmDelete finalizes a staged delete. Under DeleteMark the tombstone is
// evicted now that the server agrees the record is gone.
func (c *Controller[T]) ConfirmDelete(m *Mutation[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m.done {
		return
	}
	m.done = true

	if c.cfg.DeleteStrategy == DeleteMark {
		c.store.RemoveKey(querycache.DetailKey(c.cfg.Entity, m.entityID))
	}
}

// Rollback restores every entry the mutation touched to its staged-time
// snapshot. Entries that did not exist before the stage are evicted again.
// List snapshots are scrubbed of placeholders whose own mutation has already
// settled: a snapshot taken while another create was in flight contains that
// create's placeholder, and restoring it verbatim would resurrect the
// placeholder with no surviving mutation left to reconcile it.
// When the mutation failed with a server error, err carries it; its human
// message is forwarded verbatim to the notifier.
func (c *Controller[T]) Rollback(m *Mutation[T], err error) {
	c.mu.Lock()
	if m.done {
		c.mu.Unlock()
		return
	}
	m.done = true
	if m.pendingID.IsPending() {
		delete(c.pending, m.pendingID.Token())
	}

	for _, snap := range m.snapshots {
		if !snap.existed {
			c.store.RemoveKey(snap.key)
			continue
		}
		entry := snap.entry
		if list, isList := entry.Value.([]T); isList {
			entry.Value = c.scrubSettled(list)
		}
		c.store.Restore(entry)
	}
	c.mu.Unlock()

	c.logger.Debug("rolled back optimistic mutation",
		zap.String("entity", string(c.cfg.Entity)),
		zap.String("pending_id", m.pendingID.String()),
		zap.Int("restored", len(m.snapshots)),
		zap.Error(err),
	)
	if err != nil && c.notifier != nil {
		c.notifier.NotifyError(errors.UserMessage(err))
	}
}

// scrubSettled drops placeholders that no staged mutation owns anymore.
// Callers hold c.mu.
func (c *Controller[T]) scrubSettled(list []T) []T {
	out := make([]T, 0, len(list))
	for _, item := range list {
		if id := c.cfg.IDOf(item); id.IsPending() {
			if _, live := c.pending[id.Token()]; !live {
				continue
			}
		}
		out = append(out, item)
	}
	return out
}
