// Copyright © 2020 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package tson

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/streamson-io/tson/internal/telemetry"
	"github.com/streamson-io/tson/internal/tlog"
)

// Producer is the producer-side half of an async tag entry: a source of
// Events, closed by the implementation once it has emitted its terminating
// event (for single-shot: its one fulfillment/rejection; for multi-shot: its
// done/error terminator).
type Producer interface {
	Events() <-chan Event
}

// producerFunc adapts a channel-returning function to Producer.
type producerFunc func() <-chan Event

func (f producerFunc) Events() <-chan Event { return f() }

// failedProducer yields a single error event then closes, used when an
// AsyncFuncs.Unfold itself panics or errors (§4.3 fault isolation).
func failedProducer(err error) Producer {
	ch := make(chan Event, 1)
	ch <- ErrEvent(err)
	close(ch)
	return producerFunc(func() <-chan Event { return ch })
}

// callUnfold invokes unfold, converting a panic into an error the way a
// user-raised Go panic in producer code would be expected to surface.
func callUnfold(unfold func(interface{}) Producer, value interface{}) (p Producer, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in unfold: %v", r)
		}
	}()
	return unfold(value), nil
}

// rowMsg is an event forwarded from a producer's fan-in goroutine to the
// multiplexer's drain loop, or a sentinel signalling that producer's
// Events channel has closed.
type rowMsg struct {
	id     int64
	event  Event
	closed bool
}

// multiplexer is the Stream Multiplexer (§4.3): it owns the byte sink, the
// set P of currently draining producers, and the onStreamError callback.
type multiplexer struct {
	registry      *Registry
	nonce         Nonce
	ids           *idAllocator
	onStreamError func(*Error)
	out           chan<- string
	indent        string
}

// stringify runs the full producer-side protocol: emit the head, seed P from
// the Head Encoder's pending drains, then drain until P is empty, emitting a
// tail row per event in arrival order (§4.3's "arrival order, not per-producer
// order" discipline). Grounded on channel.go's sendTo fan-in and vertex.go's
// context-cancellable select loop.
func (m *multiplexer) stringify(ctx context.Context, root interface{}) error {
	ctx, span := telemetry.StartStringify(ctx)
	defer span.End()

	enc := newHeadEncoder(m.registry, m.nonce, m.ids)
	headJSON, err := enc.encode(root, nil)
	if err != nil {
		tlog.Debug().Err(err).Msg("tson: head encode aborted before any bytes were emitted")
		return err
	}

	head := Head{JSON: headJSON, Nonce: m.nonce}
	var headBytes []byte
	if m.indent != "" {
		headBytes, err = json.MarshalIndent(head, "", m.indent)
	} else {
		headBytes, err = json.Marshal(head)
	}
	if err != nil {
		return err
	}

	if !m.send(ctx, "[\n"+string(headBytes)+"\n,\n[\n") {
		return nil
	}

	arrived := make(chan rowMsg)
	active := map[int64]bool{}

	seed := func(d *drain) {
		active[d.id] = true
		telemetry.ProducerRegistered(ctx)
		go m.pump(ctx, d.id, d.producer, arrived)
	}

	for _, d := range enc.drains {
		seed(d)
	}

	first := true
	for len(active) > 0 {
		select {
		case <-ctx.Done():
			// Cancellation (§4.3/§5): leave the stream syntactically
			// incomplete; the consumer must detect this.
			telemetry.RowsDropped(ctx, int64(len(active)))
			return ctx.Err()
		case msg := <-arrived:
			if msg.closed {
				delete(active, msg.id)
				continue
			}

			payload, nested, ferr := m.foldEvent(pathFor(msg.id), msg.event)
			if ferr != nil {
				if asErr, ok := ferr.(*Error); ok && m.onStreamError != nil {
					m.onStreamError(asErr)
				}
				payload = []interface{}{evError, ferr.Error()}
			}
			for _, d := range nested {
				seed(d)
			}

			row, merr := json.Marshal([]interface{}{msg.id, payload})
			if merr != nil {
				return merr
			}

			sep := ",\n"
			if first {
				sep = ""
				first = false
			}
			if !m.send(ctx, sep+string(row)) {
				return nil
			}
			telemetry.RowEmitted(ctx)
		}
	}

	m.send(ctx, "\n]\n]\n")
	tlog.Debug().Msg("tson: stream closed, all producers drained")
	return nil
}

// pump forwards a single producer's events into the shared arrival channel,
// preserving that producer's own FIFO order (§5 ordering guarantees), and
// recovers a panicking producer into an error event (§4.3).
func (m *multiplexer) pump(ctx context.Context, id int64, p Producer, arrived chan<- rowMsg) {
	defer func() {
		if r := recover(); r != nil {
			select {
			case arrived <- rowMsg{id: id, event: ErrEvent(fmt.Errorf("panic in producer: %v", r))}:
			case <-ctx.Done():
			}
		}
		select {
		case arrived <- rowMsg{id: id, closed: true}:
		case <-ctx.Done():
		}
	}()

	for ev := range p.Events() {
		select {
		case arrived <- rowMsg{id: id, event: ev}:
		case <-ctx.Done():
			return
		}
	}
}

// foldEvent folds an event's carried value (if any) back through the Head
// Encoder, so that a produced value's own nested async producers are
// discovered and assigned fresh ids (§3: "the fold applied... is recursive").
func (m *multiplexer) foldEvent(parent Path, ev Event) (interface{}, []*drain, error) {
	switch ev.Kind {
	case evDone:
		return []interface{}{evDone}, nil, nil
	case evValue, evError:
		value := ev.Value
		if ev.Kind == evError {
			if asErr, ok := value.(error); ok {
				value = asErr.Error()
			}
		}
		enc := newHeadEncoder(m.registry, m.nonce, m.ids)
		folded, err := enc.encode(value, parent)
		if err != nil {
			return nil, nil, err
		}
		return []interface{}{ev.Kind, folded}, enc.drains, nil
	default:
		return nil, nil, fmt.Errorf("tson: unknown event kind %d", ev.Kind)
	}
}

// send writes chunk to the sink, returning false if ctx was cancelled first.
func (m *multiplexer) send(ctx context.Context, chunk string) bool {
	select {
	case m.out <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

// pathFor is the path used when folding an event of producer id: just that
// producer's id, without its own ancestors. It prefixes the paths of nested
// producers and of fold errors.
func pathFor(id int64) Path { return Path{id} }
