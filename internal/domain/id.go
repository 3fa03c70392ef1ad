package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ID identifies an entity. It is a tagged union of two cases:
//
//   - Confirmed: a positive server-issued identifier.
//   - Pending: a client-issued placeholder token for an optimistic entity that
//     has not been confirmed by the server yet.
//
// Making "is this optimistic" a type-level fact avoids the classic sign-bit
// convention where a negative number means "temporary" and can collide with
// other negative-number usages.
type ID struct {
	value int64  // server-issued identifier, > 0 when confirmed
	token string // placeholder token, non-empty when pending
}

// ConfirmedID wraps a server-issued identifier.
func ConfirmedID(value int64) ID {
	return ID{value: value}
}

// NewPendingID issues a fresh placeholder identifier. Every call returns a
// distinct ID, so concurrent optimistic mutations never interfere.
func NewPendingID() ID {
	return ID{token: uuid.New().String()}
}

// IsPending reports whether the ID is an unconfirmed placeholder.
func (id ID) IsPending() bool { return id.token != "" }

// IsZero reports whether the ID carries neither a value nor a token.
func (id ID) IsZero() bool { return id.value == 0 && id.token == "" }

// Value returns the server-issued identifier, or 0 for pending IDs.
func (id ID) Value() int64 { return id.value }

// Token returns the placeholder token, or "" for confirmed IDs.
func (id ID) Token() string { return id.token }

// Equal reports whether two IDs identify the same entity. A pending ID only
// ever equals itself.
func (id ID) Equal(other ID) bool {
	if id.IsPending() || other.IsPending() {
		return id.token == other.token && id.token != ""
	}
	return id.value == other.value
}

// String renders the ID for cache keys and logs.
func (id ID) String() string {
	if id.IsPending() {
		return "pending:" + id.token
	}
	return strconv.FormatInt(id.value, 10)
}

// MarshalJSON encodes confirmed IDs as their numeric value, matching the wire
// format of the Promptliano API, and pending IDs as a tagged string. Pending
// IDs never cross the network; the tagged form only appears inside the local
// cache and in diagnostics output.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.IsPending() {
		return json.Marshal("pending:" + id.token)
	}
	return json.Marshal(id.value)
}

// UnmarshalJSON accepts both encodings produced by MarshalJSON.
func (id *ID) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case float64:
		id.value = int64(v)
		id.token = ""
		return nil
	case string:
		if token, ok := strings.CutPrefix(v, "pending:"); ok {
			id.value = 0
			id.token = token
			return nil
		}
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid id %q: %w", v, err)
		}
		id.value = parsed
		id.token = ""
		return nil
	default:
		return fmt.Errorf("invalid id type %T", raw)
	}
}
