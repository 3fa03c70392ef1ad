package querycache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// FetchFunc reloads the data behind a cache entry. Hooks register one per
// query so the store can refresh bystander entries in the background.
type FetchFunc func(ctx context.Context) (any, error)

// Entry is one cached query result. Value is replaced as a whole on every
// write; there are no partial updates, so readers never observe a torn value.
type Entry struct {
	Key       Key
	Value     any
	Stale     bool
	UpdatedAt time.Time
	StaleTime time.Duration
}

// Fresh reports whether the entry can be served without a refetch.
func (e Entry) Fresh(now time.Time) bool {
	if e.Stale {
		return false
	}
	if e.StaleTime <= 0 {
		return false
	}
	return now.Sub(e.UpdatedAt) < e.StaleTime
}

// EventOp is the kind of store write a subscriber is notified about.
type EventOp string

const (
	EventSet        EventOp = "set"
	EventInvalidate EventOp = "invalidate"
	EventRemove     EventOp = "remove"
)

// Event describes one store write.
type Event struct {
	Op    EventOp
	Entry Entry
}

// Subscriber receives store events. Subscribers are invoked synchronously
// after each write completes, in subscription order, outside the store lock.
type Subscriber func(Event)

// Metrics is the narrow observability surface the store reports to.
type Metrics interface {
	CacheHit()
	CacheMiss()
	CacheStaleHit()
	CacheSet()
	CacheEvicted(count int)
}

// Stats are the store's running counters, reset only with the store itself.
type Stats struct {
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	StaleHits   int64 `json:"staleHits"`
	Sets        int64 `json:"sets"`
	Invalidated int64 `json:"invalidated"`
	Removed     int64 `json:"removed"`
	Refetches   int64 `json:"refetches"`
}

// ============================================================================
// STORE
// ============================================================================

type storeEntry struct {
	entry Entry
	fetch FetchFunc
}

type subscription struct {
	id     int
	prefix Prefix
	fn     Subscriber
}

// Store is the in-memory query cache. All methods are safe for concurrent
// use; writes complete fully before the next write to the same key begins.
type Store struct {
	mu      sync.Mutex
	entries map[string]*storeEntry
	subs    []subscription
	nextSub int
	stats   Stats

	defaultStaleTime time.Duration
	syncRefetch      bool
	logger           *zap.Logger
	metrics          Metrics

	refetchWG sync.WaitGroup
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithDefaultStaleTime sets the freshness window applied to entries that do
// not specify their own.
func WithDefaultStaleTime(d time.Duration) Option {
	return func(s *Store) { s.defaultStaleTime = d }
}

// WithMetrics attaches an observability collector.
func WithMetrics(m Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithSyncRefetch makes Refetch run fetchers inline instead of in background
// goroutines. Intended for deterministic tests.
func WithSyncRefetch() Option {
	return func(s *Store) { s.syncRefetch = true }
}

// NewStore creates an empty query cache.
func NewStore(opts ...Option) *Store {
	s := &Store{
		entries:          make(map[string]*storeEntry),
		defaultStaleTime: 30 * time.Second,
		logger:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ============================================================================
// READS
// ============================================================================

// Get returns the entry cached under key. Fresh hits, stale hits and misses
// are tallied separately; a stale entry is still returned so callers can show
// it while a refetch is in flight.
func (s *Store) Get(key Key) (Entry, bool) {
	s.mu.Lock()
	se, ok := s.entries[key.String()]
	var entry Entry
	if ok {
		entry = se.entry
	}
	now := time.Now()
	switch {
	case !ok:
		s.stats.Misses++
	case entry.Fresh(now):
		s.stats.Hits++
	default:
		s.stats.StaleHits++
	}
	s.mu.Unlock()

	if s.metrics != nil {
		switch {
		case !ok:
			s.metrics.CacheMiss()
		case entry.Fresh(now):
			s.metrics.CacheHit()
		default:
			s.metrics.CacheStaleHit()
		}
	}
	return entry, ok
}

// Snapshot returns a copy of the entry for later Restore. The copy carries
// value, staleness and timestamps, so a rollback reproduces the exact
// pre-mutation state.
func (s *Store) Snapshot(key Key) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	se, ok := s.entries[key.String()]
	if !ok {
		return Entry{}, false
	}
	return se.entry, true
}

// Keys returns the keys of all cached entries.
func (s *Store) Keys() []Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Key, 0, len(s.entries))
	for _, se := range s.entries {
		out = append(out, se.entry.Key)
	}
	return out
}

// Len returns the number of cached entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Stats returns a copy of the running counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// ============================================================================
// WRITES
// ============================================================================

// SetOption adjusts a single Set call.
type SetOption func(*storeEntry)

// WithStaleTime overrides the freshness window for this entry.
func WithStaleTime(d time.Duration) SetOption {
	return func(se *storeEntry) { se.entry.StaleTime = d }
}

// WithFetcher registers the function used to refresh this entry.
func WithFetcher(fetch FetchFunc) SetOption {
	return func(se *storeEntry) { se.fetch = fetch }
}

// Set replaces the value cached under key and marks it fresh. Existing
// fetcher and stale-time are kept unless overridden by options.
func (s *Store) Set(key Key, value any, opts ...SetOption) {
	s.mu.Lock()
	se, ok := s.entries[key.String()]
	if !ok {
		se = &storeEntry{entry: Entry{Key: key, StaleTime: s.defaultStaleTime}}
		s.entries[key.String()] = se
	}
	se.entry.Value = value
	se.entry.Stale = false
	se.entry.UpdatedAt = time.Now()
	for _, opt := range opts {
		opt(se)
	}
	s.stats.Sets++
	event := Event{Op: EventSet, Entry: se.entry}
	subs := s.matchingSubs(key)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.CacheSet()
	}
	s.dispatch(subs, event)
}

// Restore writes a snapshot back, reproducing value, staleness and timestamps
// exactly. Used by the optimistic controller's rollback path.
func (s *Store) Restore(snapshot Entry) {
	s.mu.Lock()
	se, ok := s.entries[snapshot.Key.String()]
	if !ok {
		se = &storeEntry{}
		s.entries[snapshot.Key.String()] = se
	}
	se.entry = snapshot
	event := Event{Op: EventSet, Entry: se.entry}
	subs := s.matchingSubs(snapshot.Key)
	s.mu.Unlock()

	s.dispatch(subs, event)
}

// Invalidate marks every entry under the prefix stale. The data stays
// available for stale serves; it is refetched on next access. Returns the
// number of entries touched. Invalidation is idempotent.
func (s *Store) Invalidate(prefix Prefix, exact bool) int {
	s.mu.Lock()
	var touched []Event
	for _, se := range s.entries {
		if prefix.Matches(se.entry.Key, exact) {
			se.entry.Stale = true
			touched = append(touched, Event{Op: EventInvalidate, Entry: se.entry})
		}
	}
	s.stats.Invalidated += int64(len(touched))
	subsByEvent := s.collectSubs(touched)
	s.mu.Unlock()

	s.dispatchAll(subsByEvent, touched)
	return len(touched)
}

// Remove evicts every entry under the prefix outright. Used when an entity is
// deleted and its detail views should no longer exist.
func (s *Store) Remove(prefix Prefix, exact bool) int {
	s.mu.Lock()
	var removed []Event
	for mapKey, se := range s.entries {
		if prefix.Matches(se.entry.Key, exact) {
			delete(s.entries, mapKey)
			removed = append(removed, Event{Op: EventRemove, Entry: se.entry})
		}
	}
	s.stats.Removed += int64(len(removed))
	subsByEvent := s.collectSubs(removed)
	s.mu.Unlock()

	if s.metrics != nil && len(removed) > 0 {
		s.metrics.CacheEvicted(len(removed))
	}
	s.dispatchAll(subsByEvent, removed)
	return len(removed)
}

// InvalidateKey marks the single entry under key stale. Returns false when no
// such entry exists.
func (s *Store) InvalidateKey(key Key) bool {
	s.mu.Lock()
	se, ok := s.entries[key.String()]
	if !ok {
		s.mu.Unlock()
		return false
	}
	se.entry.Stale = true
	s.stats.Invalidated++
	event := Event{Op: EventInvalidate, Entry: se.entry}
	subs := s.matchingSubs(key)
	s.mu.Unlock()

	s.dispatch(subs, event)
	return true
}

// RemoveKey evicts the single entry under key. Returns false when no such
// entry exists.
func (s *Store) RemoveKey(key Key) bool {
	s.mu.Lock()
	se, ok := s.entries[key.String()]
	if !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.entries, key.String())
	s.stats.Removed++
	event := Event{Op: EventRemove, Entry: se.entry}
	subs := s.matchingSubs(key)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.CacheEvicted(1)
	}
	s.dispatch(subs, event)
	return true
}

// RefetchKey reloads the single entry under key if it has a fetcher. Returns
// false when there is nothing to refetch.
func (s *Store) RefetchKey(ctx context.Context, key Key) bool {
	s.mu.Lock()
	se, ok := s.entries[key.String()]
	if !ok || se.fetch == nil {
		s.mu.Unlock()
		return false
	}
	fetch := se.fetch
	s.stats.Refetches++
	s.mu.Unlock()

	run := func() {
		value, err := fetch(ctx)
		if err != nil {
			s.logger.Debug("background refetch failed",
				zap.String("key", key.String()),
				zap.Error(err),
			)
			s.InvalidateKey(key)
			return
		}
		s.Set(key, value)
	}
	if s.syncRefetch {
		run()
	} else {
		s.refetchWG.Add(1)
		go func() {
			defer s.refetchWG.Done()
			run()
		}()
	}
	return true
}

// Refetch eagerly reloads matching entries that have a registered fetcher,
// without marking them stale, so subscribers of other entries are not
// disturbed. Fetches run in background goroutines unless the store was built
// with WithSyncRefetch. Returns the number of refetches triggered.
func (s *Store) Refetch(ctx context.Context, prefix Prefix, exact bool) int {
	s.mu.Lock()
	type job struct {
		key   Key
		fetch FetchFunc
	}
	var jobs []job
	for _, se := range s.entries {
		if se.fetch != nil && prefix.Matches(se.entry.Key, exact) {
			jobs = append(jobs, job{key: se.entry.Key, fetch: se.fetch})
		}
	}
	s.stats.Refetches += int64(len(jobs))
	s.mu.Unlock()

	run := func(j job) {
		value, err := j.fetch(ctx)
		if err != nil {
			// A failed background refresh falls back to lazy refetch on the
			// next access.
			s.logger.Debug("background refetch failed",
				zap.String("key", j.key.String()),
				zap.Error(err),
			)
			s.InvalidateKey(j.key)
			return
		}
		s.Set(j.key, value)
	}

	for _, j := range jobs {
		if s.syncRefetch {
			run(j)
			continue
		}
		s.refetchWG.Add(1)
		go func(j job) {
			defer s.refetchWG.Done()
			run(j)
		}(j)
	}
	return len(jobs)
}

// Flush blocks until all background refetches started so far have finished.
func (s *Store) Flush() {
	s.refetchWG.Wait()
}

// Clear drops every entry. Subscriptions and counters survive.
func (s *Store) Clear() {
	s.mu.Lock()
	s.entries = make(map[string]*storeEntry)
	s.mu.Unlock()
}

// ============================================================================
// SUBSCRIPTIONS
// ============================================================================

// Subscribe registers fn for every write to keys under the prefix. The
// returned function cancels the subscription.
func (s *Store) Subscribe(prefix Prefix, fn Subscriber) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs = append(s.subs, subscription{id: id, prefix: prefix, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// matchingSubs must be called with the lock held.
func (s *Store) matchingSubs(key Key) []Subscriber {
	var out []Subscriber
	for _, sub := range s.subs {
		if sub.prefix.Matches(key, false) {
			out = append(out, sub.fn)
		}
	}
	return out
}

// collectSubs must be called with the lock held.
func (s *Store) collectSubs(events []Event) [][]Subscriber {
	out := make([][]Subscriber, len(events))
	for i, ev := range events {
		out[i] = s.matchingSubs(ev.Entry.Key)
	}
	return out
}

func (s *Store) dispatch(subs []Subscriber, event Event) {
	for _, fn := range subs {
		fn(event)
	}
}

func (s *Store) dispatchAll(subsByEvent [][]Subscriber, events []Event) {
	for i, ev := range events {
		s.dispatch(subsByEvent[i], ev)
	}
}
