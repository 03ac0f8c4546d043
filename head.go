// Copyright © 2020 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package tson

import (
	"fmt"
	"reflect"
	"sync/atomic"
)

// idAllocator hands out monotonically increasing producer ids, shared between
// the Head Encoder and the Stream Multiplexer (§3: "ids are assigned in the
// order producers are first encountered during head encoding or during
// draining").
type idAllocator struct {
	next int64
}

func (a *idAllocator) allocate() int64 {
	return atomic.AddInt64(&a.next, 1) - 1
}

// drain is a pending continuation the Stream Multiplexer must drain: the id
// assigned to the producer and the Producer itself.
type drain struct {
	id       int64
	parent   Path
	producer Producer
}

// headEncoder walks a value graph once, replacing every matched entity with
// a tagged placeholder (§4.2).
type headEncoder struct {
	registry *Registry
	nonce    Nonce
	ids      *idAllocator
	drains   []*drain
	visiting map[uintptr]bool
}

func newHeadEncoder(registry *Registry, nonce Nonce, ids *idAllocator) *headEncoder {
	return &headEncoder{
		registry: registry,
		nonce:    nonce,
		ids:      ids,
		visiting: map[uintptr]bool{},
	}
}

// encode folds root into its wire representation, recording any async
// producers discovered along the way as pending drains. parent is the path
// prefix of the producer that yielded root (nil for the document root
// itself), so that nested producers' ids extend the right prefix (§3).
func (h *headEncoder) encode(root interface{}, parent Path) (interface{}, error) {
	return h.fold(root, parent)
}

func (h *headEncoder) fold(value interface{}, parent Path) (interface{}, error) {
	if err := h.registry.applyGuards(value); err != nil {
		return nil, err
	}

	if entry := h.registry.MatchFold(value); entry != nil {
		return h.foldEntry(entry, value, parent)
	}

	switch v := value.(type) {
	case map[string]interface{}:
		return h.foldMap(v, parent)
	case []interface{}:
		return h.foldSlice(v, parent)
	default:
		if guardOnlyMatch(value) {
			return nil, newError(ErrUnknownTag, fmt.Errorf("value matches no registered tag but is not plain JSON: %#v", value), withPath(parent))
		}
		return value, nil
	}
}

func (h *headEncoder) foldEntry(entry *Entry, value interface{}, parent Path) (interface{}, error) {
	switch entry.Kind {
	case KindSync:
		payload, err := entry.Sync.Serialize(value)
		if err != nil {
			return nil, err
		}
		// Sync payloads may themselves nest further tagged values (§4.2:
		// "traversal continues into the payload, allowing nesting").
		folded, err := h.fold(payload, parent)
		if err != nil {
			return nil, err
		}
		return []interface{}{entry.Key, folded, h.nonce}, nil
	case KindAsync:
		id := h.ids.allocate()
		path := append(append(Path{}, parent...), id)
		producer, err := callUnfold(entry.Async.Unfold, value)
		if err != nil {
			// §4.3 fault isolation: a throwing unfold becomes an error
			// terminator for this producer rather than aborting the session.
			producer = failedProducer(err)
		}
		h.drains = append(h.drains, &drain{
			id:       id,
			parent:   path,
			producer: producer,
		})
		return []interface{}{entry.Key, id, h.nonce}, nil
	default:
		return nil, fmt.Errorf("tson: tag %q has unknown kind", entry.Key)
	}
}

func (h *headEncoder) foldMap(m map[string]interface{}, parent Path) (interface{}, error) {
	ptr := mapIdentity(m)
	if h.visiting[ptr] {
		return nil, newError(ErrRecursion, fmt.Errorf("cyclic value detected during fold"), withPath(parent))
	}
	h.visiting[ptr] = true
	defer delete(h.visiting, ptr)

	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		folded, err := h.fold(v, parent)
		if err != nil {
			return nil, err
		}
		out[k] = folded
	}
	return out, nil
}

func (h *headEncoder) foldSlice(s []interface{}, parent Path) (interface{}, error) {
	ptr := sliceIdentity(s)
	if ptr != 0 {
		if h.visiting[ptr] {
			return nil, newError(ErrRecursion, fmt.Errorf("cyclic value detected during fold"), withPath(parent))
		}
		h.visiting[ptr] = true
		defer delete(h.visiting, ptr)
	}

	out := make([]interface{}, len(s))
	for i, v := range s {
		folded, err := h.fold(v, parent)
		if err != nil {
			return nil, err
		}
		out[i] = folded
	}
	return out, nil
}

// mapIdentity returns a stable pointer-sized identity for m, used only for
// cycle detection — never dereferenced or relied on for anything else.
func mapIdentity(m map[string]interface{}) uintptr {
	return reflect.ValueOf(m).Pointer()
}

func sliceIdentity(s []interface{}) uintptr {
	if len(s) == 0 {
		return 0
	}
	return reflect.ValueOf(s).Pointer()
}

// guardOnlyMatch reports whether value is some non-JSON Go type (neither a
// registered tag, a map, a slice, nor a JSON scalar) — a programmer error
// (§4.2: "a value that only matches an unregistered predicate is a
// programmer error").
func guardOnlyMatch(value interface{}) bool {
	switch value.(type) {
	case nil, bool, string, float64, int, int64:
		return false
	default:
		return true
	}
}
