package domain_test

import (
	"encoding/json"
	"testing"

	"promptliano-client/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestID_ConfirmedAndPending(t *testing.T) {
	confirmed := domain.ConfirmedID(42)
	assert.False(t, confirmed.IsPending())
	assert.Equal(t, int64(42), confirmed.Value())
	assert.Equal(t, "42", confirmed.String())

	pending := domain.NewPendingID()
	assert.True(t, pending.IsPending())
	assert.Zero(t, pending.Value())
	assert.NotEmpty(t, pending.Token())
	assert.Contains(t, pending.String(), "pending:")
}

func TestID_PendingIDsAreDistinct(t *testing.T) {
	a := domain.NewPendingID()
	b := domain.NewPendingID()

	assert.False(t, a.Equal(b))
	assert.True(t, a.Equal(a))
}

func TestID_Equal(t *testing.T) {
	assert.True(t, domain.ConfirmedID(7).Equal(domain.ConfirmedID(7)))
	assert.False(t, domain.ConfirmedID(7).Equal(domain.ConfirmedID(8)))
	// A pending ID never equals a confirmed one, whatever the numbers say.
	assert.False(t, domain.NewPendingID().Equal(domain.ConfirmedID(0)))
}

func TestID_JSONRoundTrip(t *testing.T) {
	t.Run("confirmed encodes as number", func(t *testing.T) {
		data, err := json.Marshal(domain.ConfirmedID(999))
		require.NoError(t, err)
		assert.Equal(t, "999", string(data))

		var decoded domain.ID
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.True(t, decoded.Equal(domain.ConfirmedID(999)))
	})

	t.Run("pending encodes as tagged string", func(t *testing.T) {
		pending := domain.NewPendingID()
		data, err := json.Marshal(pending)
		require.NoError(t, err)

		var decoded domain.ID
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.True(t, decoded.IsPending())
		assert.True(t, decoded.Equal(pending))
	})

	t.Run("numeric string is accepted", func(t *testing.T) {
		var decoded domain.ID
		require.NoError(t, json.Unmarshal([]byte(`"123"`), &decoded))
		assert.Equal(t, int64(123), decoded.Value())
	})

	t.Run("garbage is rejected", func(t *testing.T) {
		var decoded domain.ID
		assert.Error(t, json.Unmarshal([]byte(`"abc"`), &decoded))
		assert.Error(t, json.Unmarshal([]byte(`true`), &decoded))
	})
}

func TestRegistry(t *testing.T) {
	reg := domain.DefaultRegistry()

	assert.True(t, reg.Contains(domain.EntityTickets))
	assert.False(t, reg.Contains(domain.EntityType("widgets")))
	assert.Equal(t, 9, reg.Len())

	all := reg.All()
	assert.Len(t, all, 9)
	// Stable order for diagnostics output.
	assert.Equal(t, all, domain.DefaultRegistry().All())
}
