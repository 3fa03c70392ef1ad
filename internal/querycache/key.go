// Package querycache implements the client-side query cache: structured query
// keys, cached entries with stale-time semantics, prefix-based invalidation
// and synchronous change subscriptions.
//
// The cache is the single shared mutable resource of the data layer. It is
// internally synchronized, so callers never take locks of their own; every
// write is a single whole-value replace and subscribers observe writes in
// order.
package querycache

import (
	"sort"
	"strings"

	"promptliano-client/internal/domain"
)

// Scope distinguishes the query families cached per entity type.
type Scope string

const (
	// ScopeList is the collection query for an entity type.
	ScopeList Scope = "list"
	// ScopeDetail is the single-record query for one entity id.
	ScopeDetail Scope = "detail"
	// ScopeCustom covers named auxiliary queries (counts, summaries).
	ScopeCustom Scope = "custom"
)

// Key is the structured identifier a piece of fetched data is cached under.
// It replaces ad hoc string-array keys with a small sum type: entity plus
// scope, an optional id for detail records, an optional name for custom
// queries, and canonicalized query params for parameterized lists.
type Key struct {
	Entity domain.EntityType
	Scope  Scope
	ID     domain.ID // detail scope only; zero means the key is malformed
	Name   string    // custom scope only
	Params string    // canonical "k=v&k2=v2" encoding, may be empty
}

// ListKey returns the list-family key for an entity type.
func ListKey(entity domain.EntityType) Key {
	return Key{Entity: entity, Scope: ScopeList}
}

// ListKeyWithParams returns a parameterized list key. Params are canonicalized
// by sorting, so logically equal queries share one cache entry.
func ListKeyWithParams(entity domain.EntityType, params map[string]string) Key {
	return Key{Entity: entity, Scope: ScopeList, Params: canonicalParams(params)}
}

// DetailKey returns the detail key for one entity record.
func DetailKey(entity domain.EntityType, id domain.ID) Key {
	return Key{Entity: entity, Scope: ScopeDetail, ID: id}
}

// CustomKey returns a named auxiliary key scoped to an entity type.
func CustomKey(entity domain.EntityType, name string) Key {
	return Key{Entity: entity, Scope: ScopeCustom, Name: name}
}

// String renders the canonical cache-map key.
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(string(k.Entity))
	b.WriteByte('/')
	b.WriteString(string(k.Scope))
	if k.Scope == ScopeDetail {
		b.WriteByte('/')
		b.WriteString(k.ID.String())
	}
	if k.Scope == ScopeCustom {
		b.WriteByte('/')
		b.WriteString(k.Name)
	}
	if k.Params != "" {
		b.WriteByte('?')
		b.WriteString(k.Params)
	}
	return b.String()
}

// IsZero reports whether the key is empty.
func (k Key) IsZero() bool { return k.Entity == "" }

func canonicalParams(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+params[k])
	}
	return strings.Join(parts, "&")
}

// ============================================================================
// PREFIX MATCHING
// ============================================================================

// Prefix selects a family of keys for invalidation. Unset fields act as
// wildcards: a prefix with only Entity set selects every query of that entity
// type; adding Scope narrows to one family; adding ID narrows to one detail
// record. Prefix matching is an explicit operation rather than array slicing.
type Prefix struct {
	Entity domain.EntityType
	Scope  Scope     // "" matches every scope
	ID     domain.ID // zero matches every detail id
	Name   string    // "" matches every custom name
}

// EntityPrefix selects every cached query of the entity type.
func EntityPrefix(entity domain.EntityType) Prefix {
	return Prefix{Entity: entity}
}

// ListPrefix selects the list family of the entity type, including
// parameterized list queries.
func ListPrefix(entity domain.EntityType) Prefix {
	return Prefix{Entity: entity, Scope: ScopeList}
}

// DetailPrefix selects detail records of the entity type. A zero id selects
// the whole detail family; this is the deliberate broad-invalidation signal
// for bulk operations, not an error.
func DetailPrefix(entity domain.EntityType, id domain.ID) Prefix {
	return Prefix{Entity: entity, Scope: ScopeDetail, ID: id}
}

// CustomPrefix selects a named custom query family.
func CustomPrefix(entity domain.EntityType, name string) Prefix {
	return Prefix{Entity: entity, Scope: ScopeCustom, Name: name}
}

// Matches reports whether the key falls under the prefix. With exact set, the
// key must carry no segments beyond those the prefix pins down: an exact list
// prefix matches only the unparameterized list key, and an exact detail
// prefix requires the id to be pinned.
func (p Prefix) Matches(key Key, exact bool) bool {
	if p.Entity != key.Entity {
		return false
	}
	if p.Scope != "" && p.Scope != key.Scope {
		return false
	}
	if p.Scope == ScopeDetail && !p.ID.IsZero() && !p.ID.Equal(key.ID) {
		return false
	}
	if p.Scope == ScopeCustom && p.Name != "" && p.Name != key.Name {
		return false
	}
	if exact {
		if p.Scope == "" {
			return false // an exact match needs a pinned scope
		}
		if key.Params != "" {
			return false
		}
		if p.Scope == ScopeDetail && p.ID.IsZero() {
			return false
		}
	}
	return true
}

// String renders the prefix for logs and diagnostics.
func (p Prefix) String() string {
	var b strings.Builder
	b.WriteString(string(p.Entity))
	if p.Scope != "" {
		b.WriteByte('/')
		b.WriteString(string(p.Scope))
	}
	if p.Scope == ScopeDetail && !p.ID.IsZero() {
		b.WriteByte('/')
		b.WriteString(p.ID.String())
	}
	if p.Scope == ScopeCustom && p.Name != "" {
		b.WriteByte('/')
		b.WriteString(p.Name)
	}
	return b.String()
}
