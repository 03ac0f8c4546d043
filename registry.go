// Copyright © 2020 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package tson

import "fmt"

// TagKind distinguishes a sync tag (pure value<->JSON fold, §4.1) from an
// async one (value <-> a stream of JSON payloads keyed by path).
type TagKind int

const (
	// KindSync folds/unfolds a value in a single step.
	KindSync TagKind = iota
	// KindAsync folds/unfolds a value into/from a stream of events.
	KindAsync
)

// Guard is a unary predicate applied after matching, on either side of the
// wire. A failing guard yields ErrGuardFailed: during head encoding or on the
// consumer side it aborts the session; for a value carried by a producer's
// event, that event's row carries an error event instead and draining
// continues.
type Guard func(value interface{}) error

// SyncFuncs is the fold/unfold pair for a sync tag entry.
type SyncFuncs struct {
	Serialize   func(value interface{}) (interface{}, error)
	Deserialize func(payload interface{}) (interface{}, error)
}

// AsyncFuncs is the fold/unfold pair for an async tag entry. Unfold runs
// producer-side: it converts the matched value into a Producer the
// multiplexer drains. NewHandle runs consumer-side: it allocates the handle
// object materialized in place of the placeholder.
type AsyncFuncs struct {
	Unfold    func(value interface{}) Producer
	NewHandle func() Handle
}

// Entry is one registered tag: a test predicate, a unique key, and either a
// SyncFuncs or an AsyncFuncs half (§9: "model as a tagged variant with two
// cases rather than a subclass hierarchy").
type Entry struct {
	Key   string
	Test  func(value interface{}) bool
	Kind  TagKind
	Sync  *SyncFuncs
	Async *AsyncFuncs
}

// Registry is the opaque (value -> key) / (key -> value) lookup the core
// treats as a collaborator (§1, §4.1).
type Registry struct {
	entries []*Entry
	byKey   map[string]*Entry
	guards  []Guard
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byKey: map[string]*Entry{}}
}

// Register adds entry to the registry. Registration order is match priority:
// ties among Test predicates are broken by first-registered-wins.
func (r *Registry) Register(entry *Entry) error {
	if entry.Key == "" {
		return fmt.Errorf("tson: tag entry must have a non-empty key")
	}
	if _, exists := r.byKey[entry.Key]; exists {
		return fmt.Errorf("tson: tag key %q already registered", entry.Key)
	}
	if entry.Kind == KindSync && entry.Sync == nil {
		return fmt.Errorf("tson: sync tag %q missing SyncFuncs", entry.Key)
	}
	if entry.Kind == KindAsync && entry.Async == nil {
		return fmt.Errorf("tson: async tag %q missing AsyncFuncs", entry.Key)
	}

	r.entries = append(r.entries, entry)
	r.byKey[entry.Key] = entry
	return nil
}

// Guard adds g to the set of guards applied to every folded/unfolded value.
func (r *Registry) Guard(g Guard) {
	r.guards = append(r.guards, g)
}

// MatchFold returns the first entry (in registration order) whose Test
// predicate matches value, or nil if none does.
func (r *Registry) MatchFold(value interface{}) *Entry {
	for _, entry := range r.entries {
		if entry.Test(value) {
			return entry
		}
	}
	return nil
}

// MatchUnfold performs a strict lookup by key; an unknown key is fatal
// (ErrProtocolError at the dispatcher).
func (r *Registry) MatchUnfold(key string) (*Entry, error) {
	entry, ok := r.byKey[key]
	if !ok {
		return nil, newError(ErrProtocolError, fmt.Errorf("unknown tag key %q", key))
	}
	return entry, nil
}

// applyGuards runs every registered guard against value, returning the first
// failure wrapped as ErrGuardFailed.
func (r *Registry) applyGuards(value interface{}) error {
	for _, g := range r.guards {
		if err := g(value); err != nil {
			return newError(ErrGuardFailed, err, withValue(value))
		}
	}
	return nil
}
