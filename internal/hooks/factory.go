// Package hooks assembles the data-access surface an application embeds: a
// typed read-through cache over the API client, optimistic mutations, and
// relationship-aware invalidation after every confirmed write.
package hooks

import (
	"context"
	"net/url"
	"time"

	"promptliano-client/internal/client"
	"promptliano-client/internal/domain"
	"promptliano-client/internal/errors"
	"promptliano-client/internal/invalidation"
	"promptliano-client/internal/optimistic"
	"promptliano-client/internal/querycache"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Deps are the shared collaborators every entity hook set is built over.
type Deps struct {
	Store    *querycache.Store
	Engine   *invalidation.Engine
	Notifier Notifier
	Logger   *zap.Logger
}

// Config describes one entity's hook set.
type Config[T any] struct {
	Entity   domain.EntityType
	Resource *client.Resource[T]

	// Optimistic manipulation of cached copies; IDOf is required.
	IDOf  func(T) domain.ID
	Merge func(current, patch T) T

	// StaleTime overrides the store default for this entity's entries.
	StaleTime time.Duration
}

// Entity is the hook set for one entity type. Reads go through the cache
// with in-flight deduplication; writes apply optimistically, then confirm or
// roll back against the server's answer, and finish by running the
// invalidation cascade.
type Entity[T any] struct {
	cfg      Config[T]
	store    *querycache.Store
	engine   *invalidation.Engine
	optimist *optimistic.Controller[T]
	notifier Notifier
	logger   *zap.Logger
	group    singleflight.Group
}

// NewEntity builds the hook set for one entity type.
func NewEntity[T any](deps Deps, cfg Config[T]) *Entity[T] {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = NewZapNotifier(logger)
	}
	ctrl := optimistic.NewController(deps.Store, optimistic.Config[T]{
		Entity: cfg.Entity,
		IDOf:   cfg.IDOf,
		Merge:  cfg.Merge,
	}, optimistic.WithLogger(logger), optimistic.WithNotifier(notifierAdapter{notifier}))

	return &Entity[T]{
		cfg:      cfg,
		store:    deps.Store,
		engine:   deps.Engine,
		optimist: ctrl,
		notifier: notifier,
		logger:   logger,
	}
}

// notifierAdapter narrows the hooks notifier to the optimistic layer's
// error-only surface.
type notifierAdapter struct {
	n Notifier
}

func (a notifierAdapter) NotifyError(message string) { a.n.NotifyError(message) }

// ============================================================================
// READS
// ============================================================================

// List returns the cached collection when fresh, otherwise fetches it.
// Concurrent callers of the same key share one in-flight request.
func (e *Entity[T]) List(ctx context.Context, params map[string]string) ([]T, error) {
	key := querycache.ListKeyWithParams(e.cfg.Entity, params)
	value, err := e.readThrough(ctx, key, func(ctx context.Context) (any, error) {
		return e.cfg.Resource.List(ctx, toValues(params))
	})
	if err != nil {
		return nil, err
	}
	list, ok := value.([]T)
	if !ok {
		return nil, errors.NewInternal("cached value has unexpected type", nil)
	}
	return list, nil
}

// Get returns the cached record when fresh, otherwise fetches it.
func (e *Entity[T]) Get(ctx context.Context, id domain.ID) (T, error) {
	var zero T
	key := querycache.DetailKey(e.cfg.Entity, id)
	value, err := e.readThrough(ctx, key, func(ctx context.Context) (any, error) {
		return e.cfg.Resource.Get(ctx, id)
	})
	if err != nil {
		return zero, err
	}
	record, ok := value.(T)
	if !ok {
		return zero, errors.NewInternal("cached value has unexpected type", nil)
	}
	return record, nil
}

// Prefetch warms the cache for a list the caller expects to need shortly.
// Errors are logged, not returned: a failed prefetch only costs the later
// caller a regular fetch.
func (e *Entity[T]) Prefetch(ctx context.Context, params map[string]string) {
	if _, err := e.List(ctx, params); err != nil {
		e.logger.Debug("prefetch failed",
			zap.String("entity", string(e.cfg.Entity)),
			zap.Error(err),
		)
	}
}

func (e *Entity[T]) readThrough(ctx context.Context, key querycache.Key, fetch querycache.FetchFunc) (any, error) {
	if entry, ok := e.store.Get(key); ok && entry.Fresh(time.Now()) {
		return entry.Value, nil
	}

	value, err, _ := e.group.Do(key.String(), func() (any, error) {
		// Re-check under the flight: another caller may have landed the
		// value while this one queued.
		if entry, ok := e.store.Get(key); ok && entry.Fresh(time.Now()) {
			return entry.Value, nil
		}
		value, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		opts := []querycache.SetOption{querycache.WithFetcher(fetch)}
		if e.cfg.StaleTime > 0 {
			opts = append(opts, querycache.WithStaleTime(e.cfg.StaleTime))
		}
		e.store.Set(key, value, opts...)
		return value, nil
	})
	return value, err
}

func toValues(params map[string]string) url.Values {
	if len(params) == 0 {
		return nil
	}
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	return values
}

// ============================================================================
// WRITES
// ============================================================================

// Create stages the placeholder optimistically, posts the request, and
// either confirms with the server's record or rolls back. The returned
// record carries the server-assigned id.
func (e *Entity[T]) Create(ctx context.Context, body any, placeholder T) (T, error) {
	var zero T
	m := e.optimist.StageCreate(placeholder)

	created, err := e.cfg.Resource.Create(ctx, body)
	if err != nil {
		e.rollback(m, err)
		return zero, err
	}

	e.optimist.ConfirmCreate(m, created)
	e.engine.InvalidateWithRelationships(e.cfg.Entity, domain.OpCreate, e.cfg.IDOf(created), nil)
	return created, nil
}

// Update merges the patch into cached copies, sends the request, and either
// confirms or rolls back. The payload feeds rule predicates (status changes
// and the like) on the invalidation run.
func (e *Entity[T]) Update(ctx context.Context, id domain.ID, body any, patch T, payload *invalidation.ChangePayload) (T, error) {
	var zero T
	m, err := e.optimist.StageUpdate(id, patch)
	if err != nil {
		return zero, err
	}

	updated, err := e.cfg.Resource.Update(ctx, id, body)
	if err != nil {
		e.rollback(m, err)
		return zero, err
	}

	e.optimist.ConfirmUpdate(m, updated)
	e.engine.InvalidateWithRelationships(e.cfg.Entity, domain.OpUpdate, id, payload)
	return updated, nil
}

// Delete removes cached copies optimistically, sends the request, and either
// confirms or rolls back.
func (e *Entity[T]) Delete(ctx context.Context, id domain.ID) error {
	m := e.optimist.StageDelete(id)

	if err := e.cfg.Resource.Delete(ctx, id); err != nil {
		e.rollback(m, err)
		return err
	}

	e.optimist.ConfirmDelete(m)
	e.engine.InvalidateWithRelationships(e.cfg.Entity, domain.OpDelete, id, nil)
	return nil
}

// rollback restores the snapshots. An aborted mutation rolls back silently;
// a failed one surfaces the server's message to the user.
func (e *Entity[T]) rollback(m *optimistic.Mutation[T], err error) {
	if errors.IsType(err, errors.ErrorTypeCanceled) {
		e.optimist.Rollback(m, nil)
		return
	}
	e.optimist.Rollback(m, err)
}

// Invalidate marks this entity's cached queries stale and cascades through
// its relationships, outside any mutation. For push events from the server.
func (e *Entity[T]) Invalidate(op domain.Operation, id domain.ID, payload *invalidation.ChangePayload) invalidation.Event {
	return e.engine.InvalidateWithRelationships(e.cfg.Entity, op, id, payload)
}
