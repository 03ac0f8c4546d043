// Copyright © 2020 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package tson

import (
	"context"
	"fmt"
	"math/big"
)

// Promise is a single-shot async producer/handle (§3, §4.6). The same type
// plays both roles: producer code constructs one with NewPromise and calls
// Resolve/Reject; the Dispatcher materializes a fresh, blank one on the
// consumer side and routes tail rows to it, which user code observes via
// Await.
type Promise struct{ state *singleShotState }

// NewPromise returns a pending Promise ready to be embedded in a value graph
// passed to Session.Stringify.
func NewPromise() *Promise { return &Promise{state: newSingleShotState()} }

// Resolve fulfills the promise with value. Only the first of Resolve/Reject
// has effect; later calls are no-ops (§4.6: pending -> terminal is a one-way
// transition).
func (p *Promise) Resolve(value interface{}) { p.state.finish(ValueEvent(value)) }

// Reject fails the promise with err.
func (p *Promise) Reject(err error) { p.state.finish(ErrEvent(err)) }

// Await suspends the caller until the promise is fulfilled, rejected, or ctx
// is cancelled.
func (p *Promise) Await(ctx context.Context) (interface{}, error) { return p.state.await(ctx) }

func (p *Promise) deliver(ev Event) { p.state.deliver(ev) }
func (p *Promise) interrupt()       { p.state.interrupt() }

// Events implements Producer: exactly one event, then the channel closes.
func (p *Promise) Events() <-chan Event { return p.state.events }

// Stream is a multi-shot async producer/handle (§3, §4.6): a sequence of
// values ending normally or by error. As with Promise, the same type is
// constructed on the producer side (Send/Fail/Close) and materialized fresh
// on the consumer side (Next).
type Stream struct{ state *multiShotState }

// NewStream returns an open Stream with the given consumer-side buffer size
// (0 is a synchronous handoff; the bound only affects local backpressure,
// never what's observed on the wire — §5 "Backpressure").
func NewStream(buffer int) *Stream { return &Stream{state: newMultiShotState(buffer)} }

// Send emits the next value. No-op once the stream has reached a terminal
// state.
func (s *Stream) Send(value interface{}) { s.state.push(value) }

// Fail ends the stream with a terminal error.
func (s *Stream) Fail(err error) { s.state.finish(err) }

// Close ends the stream normally.
func (s *Stream) Close() { s.state.finish(nil) }

// Next pulls the next value. ok is false once the stream has ended; err then
// holds the terminal error, or nil for a normal end.
func (s *Stream) Next(ctx context.Context) (value interface{}, ok bool, err error) {
	return s.state.next(ctx)
}

func (s *Stream) deliver(ev Event) { s.state.deliver(ev) }
func (s *Stream) interrupt()       { s.state.interrupt() }

// Events implements Producer.
func (s *Stream) Events() <-chan Event { return s.state.asProducerEvents() }

const (
	tagPromise = "Promise"
	tagStream  = "AsyncSequence"
	tagBigInt  = "BigInt"
)

// RegisterBuiltins adds the reference Promise, AsyncSequence, and BigInt tag
// entries to r. The concrete registry of built-in type handlers is named as
// an external collaborator by spec.md §1; this is the pack's own reference
// implementation of that collaborator, kept in the core so the protocol is
// testable end to end without a caller supplying every tag by hand.
func RegisterBuiltins(r *Registry) error {
	if err := r.Register(&Entry{
		Key:  tagPromise,
		Kind: KindAsync,
		Test: func(v interface{}) bool { _, ok := v.(*Promise); return ok },
		Async: &AsyncFuncs{
			Unfold:    func(v interface{}) Producer { return v.(*Promise) },
			NewHandle: func() Handle { return NewPromise() },
		},
	}); err != nil {
		return err
	}

	if err := r.Register(&Entry{
		Key:  tagStream,
		Kind: KindAsync,
		Test: func(v interface{}) bool { _, ok := v.(*Stream); return ok },
		Async: &AsyncFuncs{
			Unfold:    func(v interface{}) Producer { return v.(*Stream) },
			NewHandle: func() Handle { return NewStream(0) },
		},
	}); err != nil {
		return err
	}

	return r.Register(&Entry{
		Key:  tagBigInt,
		Kind: KindSync,
		Test: func(v interface{}) bool { _, ok := v.(*big.Int); return ok },
		Sync: &SyncFuncs{
			Serialize: func(v interface{}) (interface{}, error) {
				return v.(*big.Int).String(), nil
			},
			Deserialize: func(payload interface{}) (interface{}, error) {
				s, ok := payload.(string)
				if !ok {
					return nil, fmt.Errorf("tson: BigInt payload must be a string, got %T", payload)
				}
				n, ok := new(big.Int).SetString(s, 10)
				if !ok {
					return nil, fmt.Errorf("tson: invalid BigInt literal %q", s)
				}
				return n, nil
			},
		},
	})
}

// Promise and Stream each double as both Producer and Handle: the same
// value materialized for a placeholder is also the consumer-facing surface
// (Await/Next) returned to the caller.
var _ Producer = (*Promise)(nil)
var _ Producer = (*Stream)(nil)
var _ Handle = (*Promise)(nil)
var _ Handle = (*Stream)(nil)
