package optimistic_test

import (
	"testing"
	"time"

	"promptliano-client/internal/domain"
	"promptliano-client/internal/errors"
	"promptliano-client/internal/optimistic"
	"promptliano-client/internal/querycache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	messages []string
}

func (n *recordingNotifier) NotifyError(message string) {
	n.messages = append(n.messages, message)
}

func ticketConfig() optimistic.Config[domain.Ticket] {
	return optimistic.Config[domain.Ticket]{
		Entity: domain.EntityTickets,
		IDOf:   func(t domain.Ticket) domain.ID { return t.ID },
		Merge: func(current, patch domain.Ticket) domain.Ticket {
			if patch.Title != "" {
				current.Title = patch.Title
			}
			if patch.Status != "" {
				current.Status = patch.Status
			}
			return current
		},
	}
}

func seedTickets(store *querycache.Store) (querycache.Key, []domain.Ticket) {
	key := querycache.ListKey(domain.EntityTickets)
	list := []domain.Ticket{
		{ID: domain.ConfirmedID(1), Title: "P1", Status: domain.TicketStatusOpen},
		{ID: domain.ConfirmedID(2), Title: "P2", Status: domain.TicketStatusOpen},
	}
	store.Set(key, list)
	return key, list
}

func cachedTickets(t *testing.T, store *querycache.Store, key querycache.Key) []domain.Ticket {
	t.Helper()
	entry, ok := store.Snapshot(key)
	require.True(t, ok, "expected %s to be cached", key.String())
	list, ok := entry.Value.([]domain.Ticket)
	require.True(t, ok, "cached value is not a ticket list")
	return list
}

func TestController_CreatePlaceholderVisibleThenReplaced(t *testing.T) {
	store := querycache.NewStore()
	key, _ := seedTickets(store)
	ctrl := optimistic.NewController(store, ticketConfig())

	placeholder := domain.Ticket{ID: domain.NewPendingID(), Title: "P3", Status: domain.TicketStatusOpen}
	m := ctrl.StageCreate(placeholder)

	// Mid-flight: the placeholder is in the list under its pending id.
	list := cachedTickets(t, store, key)
	require.Len(t, list, 3)
	assert.Equal(t, "P3", list[2].Title)
	assert.True(t, list[2].ID.IsPending())
	assert.True(t, m.PendingID().Equal(placeholder.ID))

	// The server assigns the real id; the placeholder is replaced in place.
	confirmed := placeholder
	confirmed.ID = domain.ConfirmedID(999)
	ctrl.ConfirmCreate(m, confirmed)

	list = cachedTickets(t, store, key)
	require.Len(t, list, 3)
	assert.Equal(t, int64(999), list[2].ID.Value())
	assert.False(t, list[2].ID.IsPending())

	detail, ok := store.Snapshot(querycache.DetailKey(domain.EntityTickets, domain.ConfirmedID(999)))
	require.True(t, ok)
	assert.Equal(t, confirmed, detail.Value)
}

func TestController_ConfirmCreateEnsuresPresence(t *testing.T) {
	// A refetch replaced the list while the mutation was in flight, so the
	// placeholder is gone. Confirming must still land the server record.
	store := querycache.NewStore()
	key, original := seedTickets(store)
	ctrl := optimistic.NewController(store, ticketConfig())

	m := ctrl.StageCreate(domain.Ticket{ID: domain.NewPendingID(), Title: "P3"})
	store.Set(key, original) // concurrent refetch overwrote the optimistic list

	confirmed := domain.Ticket{ID: domain.ConfirmedID(999), Title: "P3"}
	ctrl.ConfirmCreate(m, confirmed)

	list := cachedTickets(t, store, key)
	require.Len(t, list, 3)
	assert.Equal(t, int64(999), list[2].ID.Value())
}

func TestController_RollbackRestoresExactSnapshotAndNotifies(t *testing.T) {
	store := querycache.NewStore()
	key, original := seedTickets(store)
	notifier := &recordingNotifier{}
	ctrl := optimistic.NewController(store, ticketConfig(), optimistic.WithNotifier(notifier))

	m := ctrl.StageCreate(domain.Ticket{ID: domain.NewPendingID(), Title: "P3"})
	require.Len(t, cachedTickets(t, store, key), 3)

	serverErr := errors.NewExternal(errors.CodeServerErrorResponse, "Server error", nil)
	ctrl.Rollback(m, serverErr)

	assert.Equal(t, original, cachedTickets(t, store, key))
	require.Len(t, notifier.messages, 1)
	assert.Equal(t, "Server error", notifier.messages[0])
}

func TestController_RollbackIsIdempotent(t *testing.T) {
	store := querycache.NewStore()
	key, original := seedTickets(store)
	notifier := &recordingNotifier{}
	ctrl := optimistic.NewController(store, ticketConfig(), optimistic.WithNotifier(notifier))

	m := ctrl.StageCreate(domain.Ticket{ID: domain.NewPendingID(), Title: "P3"})
	err := errors.NewExternal(errors.CodeServerErrorResponse, "Server error", nil)
	ctrl.Rollback(m, err)
	ctrl.Rollback(m, err)
	ctrl.ConfirmCreate(m, domain.Ticket{ID: domain.ConfirmedID(999)})

	assert.Equal(t, original, cachedTickets(t, store, key))
	assert.Len(t, notifier.messages, 1, "a settled mutation stays settled")
}

func TestController_StageUpdateMergesListAndDetail(t *testing.T) {
	store := querycache.NewStore()
	key, _ := seedTickets(store)
	detailKey := querycache.DetailKey(domain.EntityTickets, domain.ConfirmedID(1))
	store.Set(detailKey, domain.Ticket{ID: domain.ConfirmedID(1), Title: "P1", Status: domain.TicketStatusOpen})
	ctrl := optimistic.NewController(store, ticketConfig())

	m, err := ctrl.StageUpdate(domain.ConfirmedID(1), domain.Ticket{Status: domain.TicketStatusDone})
	require.NoError(t, err)

	list := cachedTickets(t, store, key)
	assert.Equal(t, domain.TicketStatusDone, list[0].Status)
	assert.Equal(t, "P1", list[0].Title, "unpatched fields survive the merge")
	assert.Equal(t, domain.TicketStatusOpen, list[1].Status)

	entry, _ := store.Snapshot(detailKey)
	assert.Equal(t, domain.TicketStatusDone, entry.Value.(domain.Ticket).Status)

	// Server responds with its canonical record.
	actual := domain.Ticket{ID: domain.ConfirmedID(1), Title: "P1", Status: domain.TicketStatusDone, UpdatedAt: time.Now()}
	ctrl.ConfirmUpdate(m, actual)
	entry, _ = store.Snapshot(detailKey)
	assert.Equal(t, actual, entry.Value)
}

func TestController_StageUpdateRollback(t *testing.T) {
	store := querycache.NewStore()
	key, original := seedTickets(store)
	ctrl := optimistic.NewController(store, ticketConfig())

	m, err := ctrl.StageUpdate(domain.ConfirmedID(2), domain.Ticket{Title: "renamed"})
	require.NoError(t, err)
	assert.Equal(t, "renamed", cachedTickets(t, store, key)[1].Title)

	ctrl.Rollback(m, errors.NewExternal(errors.CodeServerErrorResponse, "Server error", nil))

	assert.Equal(t, original, cachedTickets(t, store, key))
}

func TestController_StageUpdateRequiresMerge(t *testing.T) {
	store := querycache.NewStore()
	cfg := ticketConfig()
	cfg.Merge = nil
	ctrl := optimistic.NewController(store, cfg)

	_, err := ctrl.StageUpdate(domain.ConfirmedID(1), domain.Ticket{})

	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
}

func TestController_StageDeleteRemovesAndRollsBack(t *testing.T) {
	store := querycache.NewStore()
	key, original := seedTickets(store)
	detailKey := querycache.DetailKey(domain.EntityTickets, domain.ConfirmedID(1))
	store.Set(detailKey, original[0])
	ctrl := optimistic.NewController(store, ticketConfig())

	m := ctrl.StageDelete(domain.ConfirmedID(1))

	list := cachedTickets(t, store, key)
	require.Len(t, list, 1)
	assert.Equal(t, "P2", list[0].Title)
	_, ok := store.Snapshot(detailKey)
	assert.False(t, ok, "detail entry evicted while the delete is in flight")

	ctrl.Rollback(m, errors.NewExternal(errors.CodeServerErrorResponse, "Server error", nil))

	assert.Equal(t, original, cachedTickets(t, store, key))
	entry, ok := store.Snapshot(detailKey)
	require.True(t, ok, "rollback recreates the evicted detail entry")
	assert.Equal(t, original[0], entry.Value)
}

func TestController_StageDeleteMarkStrategy(t *testing.T) {
	store := querycache.NewStore()
	_, original := seedTickets(store)
	detailKey := querycache.DetailKey(domain.EntityTickets, domain.ConfirmedID(1))
	store.Set(detailKey, original[0])

	cfg := ticketConfig()
	cfg.DeleteStrategy = optimistic.DeleteMark
	cfg.MarkDeleted = func(tk domain.Ticket) domain.Ticket {
		tk.Status = "deleted"
		return tk
	}
	ctrl := optimistic.NewController(store, cfg)

	m := ctrl.StageDelete(domain.ConfirmedID(1))

	entry, ok := store.Snapshot(detailKey)
	require.True(t, ok, "mark strategy keeps the detail entry")
	assert.Equal(t, "deleted", entry.Value.(domain.Ticket).Status)

	ctrl.ConfirmDelete(m)
	_, ok = store.Snapshot(detailKey)
	assert.False(t, ok, "confirm evicts the tombstone")
}

func TestController_IndependentMutationsDoNotInterfere(t *testing.T) {
	store := querycache.NewStore()
	key, _ := seedTickets(store)
	ctrl := optimistic.NewController(store, ticketConfig())

	first := ctrl.StageCreate(domain.Ticket{ID: domain.NewPendingID(), Title: "P3"})
	second := ctrl.StageCreate(domain.Ticket{ID: domain.NewPendingID(), Title: "P4"})

	ctrl.Rollback(second, errors.NewExternal(errors.CodeServerErrorResponse, "Server error", nil))
	ctrl.ConfirmCreate(first, domain.Ticket{ID: domain.ConfirmedID(999), Title: "P3"})

	titles := []string{}
	for _, tk := range cachedTickets(t, store, key) {
		titles = append(titles, tk.Title)
	}
	assert.Contains(t, titles, "P3")
	assert.NotContains(t, titles, "P4")
}

func TestController_InterleavedRollbacksLeaveNoPlaceholder(t *testing.T) {
	// The second create stages while the first is still in flight, so its
	// snapshot contains the first placeholder. Rolling both back in staging
	// order must not restore the first placeholder from the second snapshot.
	store := querycache.NewStore()
	key, original := seedTickets(store)
	ctrl := optimistic.NewController(store, ticketConfig())

	first := ctrl.StageCreate(domain.Ticket{ID: domain.NewPendingID(), Title: "P3"})
	second := ctrl.StageCreate(domain.Ticket{ID: domain.NewPendingID(), Title: "P4"})

	ctrl.Rollback(first, errors.NewExternal(errors.CodeServerErrorResponse, "Server error", nil))
	ctrl.Rollback(second, errors.NewExternal(errors.CodeServerErrorResponse, "Server error", nil))

	list := cachedTickets(t, store, key)
	assert.Equal(t, original, list)
	for _, tk := range list {
		assert.False(t, tk.ID.IsPending(), "rollback left placeholder %q in the cache", tk.Title)
	}
}

func TestController_RollbackKeepsLivePlaceholder(t *testing.T) {
	// Rolling back the second create must not scrub the first placeholder,
	// whose mutation is still in flight and settles on its own.
	store := querycache.NewStore()
	key, _ := seedTickets(store)
	ctrl := optimistic.NewController(store, ticketConfig())

	first := ctrl.StageCreate(domain.Ticket{ID: domain.NewPendingID(), Title: "P3"})
	second := ctrl.StageCreate(domain.Ticket{ID: domain.NewPendingID(), Title: "P4"})

	ctrl.Rollback(second, nil)

	titles := []string{}
	for _, tk := range cachedTickets(t, store, key) {
		titles = append(titles, tk.Title)
	}
	assert.Contains(t, titles, "P3")
	assert.NotContains(t, titles, "P4")

	ctrl.ConfirmCreate(first, domain.Ticket{ID: domain.ConfirmedID(999), Title: "P3"})
	for _, tk := range cachedTickets(t, store, key) {
		assert.False(t, tk.ID.IsPending())
	}
}
