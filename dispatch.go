// Copyright © 2020 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package tson

import "fmt"

// dispatcher is the Dispatcher (§4.5): it materializes handles from the
// parsed head and routes subsequent tail-row events to them by id. Grounded
// on machine.go's inject, which routes a keyed log entry to the matching
// graph node.
type dispatcher struct {
	registry *Registry
	nonce    Nonce
	handles  map[int64]Handle
}

func newDispatcher(registry *Registry, nonce Nonce) *dispatcher {
	return &dispatcher{registry: registry, nonce: nonce, handles: map[int64]Handle{}}
}

// materialize walks value (the parsed head's json field, or a folded event
// payload), replacing every placeholder stamped with this session's nonce
// with its consumer-side replacement: a fresh Handle for an async tag, or the
// deserialized value for a sync tag.
func (d *dispatcher) materialize(value interface{}) (interface{}, error) {
	if err := d.registry.applyGuards(value); err != nil {
		return nil, err
	}

	if key, payload, ok := asPlaceholder(value, d.nonce); ok {
		return d.materializeEntry(key, payload)
	}

	switch v := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, sub := range v {
			m, err := d.materialize(sub)
			if err != nil {
				return nil, err
			}
			out[k] = m
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, sub := range v {
			m, err := d.materialize(sub)
			if err != nil {
				return nil, err
			}
			out[i] = m
		}
		return out, nil
	default:
		return value, nil
	}
}

func (d *dispatcher) materializeEntry(key string, payload interface{}) (interface{}, error) {
	entry, err := d.registry.MatchUnfold(key)
	if err != nil {
		return nil, err
	}

	switch entry.Kind {
	case KindAsync:
		id, err := asID(payload)
		if err != nil {
			return nil, err
		}
		handle := entry.Async.NewHandle()
		d.handles[id] = handle
		return handle, nil
	case KindSync:
		folded, err := d.materialize(payload)
		if err != nil {
			return nil, err
		}
		return entry.Sync.Deserialize(folded)
	default:
		return nil, fmt.Errorf("tson: tag %q has unknown kind", key)
	}
}

// route delivers a decoded tail-row event to the handle registered under id.
// The event's own payload is walked first so that any newly introduced
// placeholders become handles before user code observes them (§4.5).
func (d *dispatcher) route(id int64, ev Event) error {
	handle, ok := d.handles[id]
	if !ok {
		return newError(ErrProtocolError, fmt.Errorf("tail row references unknown id %d", id), withPath(Path{id}))
	}

	if ev.Kind == evValue || ev.Kind == evError {
		materialized, err := d.materialize(ev.Value)
		if err != nil {
			return err
		}
		ev.Value = materialized
	}

	handle.deliver(ev)
	return nil
}

// interruptAll transitions every still-registered handle to
// StreamInterrupted (§4.6). deliver/interrupt are idempotent past a handle's
// first terminal transition, so calling this after some handles have already
// completed normally is safe.
func (d *dispatcher) interruptAll() {
	for _, h := range d.handles {
		h.interrupt()
	}
}

// asPlaceholder reports whether value is a 3-element tuple [key, payload,
// nonce] stamped with this session's nonce (§3, §9): the nonce disambiguates
// protocol tuples from user data shaped the same way.
func asPlaceholder(value interface{}, nonce Nonce) (key string, payload interface{}, ok bool) {
	arr, isArr := value.([]interface{})
	if !isArr || len(arr) != 3 {
		return "", nil, false
	}
	k, isStr := arr[0].(string)
	n, nIsStr := arr[2].(string)
	if !isStr || !nIsStr || n != nonce {
		return "", nil, false
	}
	return k, arr[1], true
}

func asID(payload interface{}) (int64, error) {
	switch v := payload.(type) {
	case float64:
		return int64(v), nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	default:
		return 0, newError(ErrProtocolError, fmt.Errorf("placeholder id must be numeric, got %T", payload))
	}
}
