package hooks_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"promptliano-client/internal/client"
	"promptliano-client/internal/domain"
	"promptliano-client/internal/hooks"
	"promptliano-client/internal/invalidation"
	"promptliano-client/internal/promptserver"
	"promptliano-client/internal/querycache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu       sync.Mutex
	errors   []string
	messages []string
}

func (n *recordingNotifier) NotifyError(message string) {
	n.mu.Lock()
	n.errors = append(n.errors, message)
	n.mu.Unlock()
}

func (n *recordingNotifier) NotifySuccess(message string) {
	n.mu.Lock()
	n.messages = append(n.messages, message)
	n.mu.Unlock()
}

type fixture struct {
	api      *promptserver.Server
	client   *client.Client
	store    *querycache.Store
	engine   *invalidation.Engine
	notifier *recordingNotifier
	requests *atomic.Int64
	tickets  *hooks.Entity[domain.Ticket]
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		api:      promptserver.New(),
		notifier: &recordingNotifier{},
		requests: &atomic.Int64{},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		f.api.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	f.client = client.New(srv.URL)
	f.store = querycache.NewStore(querycache.WithSyncRefetch())
	f.engine = invalidation.NewEngine(f.store, domain.DefaultRegistry())

	deps := hooks.Deps{Store: f.store, Engine: f.engine, Notifier: f.notifier}
	f.tickets = hooks.NewEntity(deps, hooks.Config[domain.Ticket]{
		Entity:   domain.EntityTickets,
		Resource: f.client.Tickets(),
		IDOf:     func(tk domain.Ticket) domain.ID { return tk.ID },
		Merge: func(current, patch domain.Ticket) domain.Ticket {
			if patch.Title != "" {
				current.Title = patch.Title
			}
			if patch.Status != "" {
				current.Status = patch.Status
			}
			return current
		},
		StaleTime: time.Minute,
	})
	return f
}

func (f *fixture) seedProject(t *testing.T) domain.Project {
	t.Helper()
	p, err := f.client.Projects().Create(context.Background(), domain.CreateProjectRequest{Name: "demo"})
	require.NoError(t, err)
	return p
}

func (f *fixture) seedTicket(t *testing.T, projectID domain.ID, title string) domain.Ticket {
	t.Helper()
	tk, err := f.client.Tickets().Create(context.Background(), domain.CreateTicketRequest{
		ProjectID: projectID, Title: title,
	})
	require.NoError(t, err)
	return tk
}

func TestEntity_ListServedFromCacheWhileFresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProject(t)
	f.seedTicket(t, p.ID, "P1")

	before := f.requests.Load()
	first, err := f.tickets.List(ctx, nil)
	require.NoError(t, err)
	second, err := f.tickets.List(ctx, nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), f.requests.Load()-before, "second read must come from the cache")
}

func TestEntity_ConcurrentListsShareOneFlight(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProject(t)
	f.seedTicket(t, p.ID, "P1")

	before := f.requests.Load()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.tickets.List(ctx, nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, f.requests.Load()-before, int64(2),
		"concurrent identical reads collapse into a shared flight")
}

func TestEntity_CreateConfirmsWithServerID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProject(t)
	f.seedTicket(t, p.ID, "P1")
	f.seedTicket(t, p.ID, "P2")

	_, err := f.tickets.List(ctx, nil)
	require.NoError(t, err)

	placeholder := domain.Ticket{ID: domain.NewPendingID(), ProjectID: p.ID, Title: "P3", Status: domain.TicketStatusOpen}
	created, err := f.tickets.Create(ctx, domain.CreateTicketRequest{ProjectID: p.ID, Title: "P3"}, placeholder)
	require.NoError(t, err)
	assert.False(t, created.ID.IsPending())

	// The confirmed record is fetchable through the detail cache.
	fetched, err := f.tickets.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "P3", fetched.Title)
	assert.Empty(t, f.notifier.errors)
}

func TestEntity_FailedCreateRollsBackAndNotifies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProject(t)
	f.seedTicket(t, p.ID, "P1")
	f.seedTicket(t, p.ID, "P2")

	original, err := f.tickets.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, original, 2)

	f.api.FailNext("Server error")
	placeholder := domain.Ticket{ID: domain.NewPendingID(), ProjectID: p.ID, Title: "P3"}
	_, err = f.tickets.Create(ctx, domain.CreateTicketRequest{ProjectID: p.ID, Title: "P3"}, placeholder)
	require.Error(t, err)

	entry, ok := f.store.Snapshot(querycache.ListKey(domain.EntityTickets))
	require.True(t, ok)
	assert.Equal(t, original, entry.Value, "cached list restored to its pre-mutation state")
	require.Len(t, f.notifier.errors, 1)
	assert.Equal(t, "Server error", f.notifier.errors[0])
}

func TestEntity_UpdateWithStatusChangeCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProject(t)
	tk := f.seedTicket(t, p.ID, "P1")

	_, err := f.tickets.List(ctx, nil)
	require.NoError(t, err)
	f.store.Set(querycache.CustomKey(domain.EntityQueues, "stats"), "queue-stats")

	status := domain.TicketStatusDone
	updated, err := f.tickets.Update(ctx, tk.ID,
		domain.UpdateTicketRequest{Status: &status},
		domain.Ticket{Status: status},
		&invalidation.ChangePayload{Status: status, StatusChanged: true, Fields: []string{"status"}},
	)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusDone, updated.Status)

	entry, ok := f.store.Snapshot(querycache.CustomKey(domain.EntityQueues, "stats"))
	require.True(t, ok)
	assert.True(t, entry.Stale, "status change reaches the queue stats view")
}

func TestEntity_DeleteEvictsAndInvalidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProject(t)
	tk := f.seedTicket(t, p.ID, "P1")

	_, err := f.tickets.Get(ctx, tk.ID)
	require.NoError(t, err)

	require.NoError(t, f.tickets.Delete(ctx, tk.ID))

	_, ok := f.store.Snapshot(querycache.DetailKey(domain.EntityTickets, tk.ID))
	assert.False(t, ok)
	assert.Empty(t, f.notifier.errors)
}

func TestEntity_CanceledMutationRollsBackSilently(t *testing.T) {
	f := newFixture(t)
	p := f.seedProject(t)
	f.seedTicket(t, p.ID, "P1")

	_, err := f.tickets.List(context.Background(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	placeholder := domain.Ticket{ID: domain.NewPendingID(), ProjectID: p.ID, Title: "P2"}
	_, err = f.tickets.Create(ctx, domain.CreateTicketRequest{ProjectID: p.ID, Title: "P2"}, placeholder)
	require.Error(t, err)

	entry, ok := f.store.Snapshot(querycache.ListKey(domain.EntityTickets))
	require.True(t, ok)
	list := entry.Value.([]domain.Ticket)
	require.Len(t, list, 1)
	assert.Empty(t, f.notifier.errors, "an aborted mutation does not notify")
}

func TestEntity_PrefetchWarmsCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProject(t)
	f.seedTicket(t, p.ID, "P1")

	f.tickets.Prefetch(ctx, map[string]string{"projectId": p.ID.String()})

	before := f.requests.Load()
	list, err := f.tickets.List(ctx, map[string]string{"projectId": p.ID.String()})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Zero(t, f.requests.Load()-before, "prefetched list is served from the cache")
}
