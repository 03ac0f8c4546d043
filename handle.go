// Copyright © 2020 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package tson

import (
	"context"
	"fmt"
	"sync"
)

// Handle is implemented by every consumer-side object the Dispatcher
// materializes in place of an async placeholder (§4.5, §4.6). deliver routes
// one decoded tail-row event to the handle; interrupt transitions a
// non-terminal handle exactly once when the stream ends unexpectedly.
type Handle interface {
	deliver(ev Event)
	interrupt()
}

func asError(v interface{}) error {
	if err, ok := v.(error); ok {
		return err
	}
	return fmt.Errorf("%v", v)
}

// singleShotState is the pending -> fulfilled | rejected machine (§4.6). The
// same instance plays both roles of the wire: on the producer side Resolve/
// Reject call finish directly; on the consumer side the Dispatcher calls
// deliver (itself just finish) as tail rows for this id arrive.
type singleShotState struct {
	mu     sync.Mutex
	done   chan struct{}
	events chan Event
	closed bool
	value  interface{}
	err    error
}

func newSingleShotState() *singleShotState {
	return &singleShotState{
		done:   make(chan struct{}),
		events: make(chan Event, 1),
	}
}

func (s *singleShotState) finish(ev Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	switch ev.Kind {
	case evValue:
		s.value = ev.Value
	case evError:
		s.err = asError(ev.Value)
	}
	close(s.done)
	s.mu.Unlock()

	s.events <- ev
	close(s.events)
}

func (s *singleShotState) deliver(ev Event) { s.finish(ev) }

func (s *singleShotState) interrupt() {
	s.finish(ErrEvent(newError(ErrStreamInterrupted, errStreamEndedUnexpectedly)))
}

// await blocks the caller until the handle reaches a terminal state or ctx
// is cancelled.
func (s *singleShotState) await(ctx context.Context) (interface{}, error) {
	select {
	case <-s.done:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.value, s.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// multiShotState is the open -> (value)* -> done | errored machine (§4.6). A
// bounded channel decouples arrival from consumption; a full channel
// naturally backpressures further routing, which is the spec's intended
// "bounded by parser flow" behavior rather than an end-to-end guarantee.
type multiShotState struct {
	mu     sync.Mutex
	values chan interface{}
	doneCh chan struct{}
	closed bool
	err    error

	eventsOnce sync.Once
	events     chan Event
}

func newMultiShotState(buffer int) *multiShotState {
	return &multiShotState{
		values: make(chan interface{}, buffer),
		doneCh: make(chan struct{}),
	}
}

func (s *multiShotState) push(v interface{}) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	s.values <- v
}

func (s *multiShotState) finish(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.err = err
	s.mu.Unlock()

	close(s.values)
	close(s.doneCh)
}

func (s *multiShotState) deliver(ev Event) {
	switch ev.Kind {
	case evValue:
		s.push(ev.Value)
	case evError:
		s.finish(asError(ev.Value))
	case evDone:
		s.finish(nil)
	}
}

func (s *multiShotState) interrupt() {
	s.finish(newError(ErrStreamInterrupted, errStreamEndedUnexpectedly))
}

// next pulls the next value for the consumer side; ok is false once the
// producer has reached a terminal state, in which case err holds the
// terminal error (nil for a normal end).
func (s *multiShotState) next(ctx context.Context) (interface{}, bool, error) {
	select {
	case v, ok := <-s.values:
		if !ok {
			s.mu.Lock()
			defer s.mu.Unlock()
			return nil, false, s.err
		}
		return v, true, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// asProducerEvents lazily spins the translator goroutine that turns this
// state's pushed values/terminal into the Event stream the Multiplexer pumps
// (§4.3). The goroutine is started once per state and repeated calls return
// the same channel; the producer side and the consumer-materialized side of
// a tag are always distinct instances.
func (s *multiShotState) asProducerEvents() <-chan Event {
	s.eventsOnce.Do(func() {
		out := make(chan Event)
		s.events = out
		go func() {
			defer close(out)
			for v := range s.values {
				out <- ValueEvent(v)
			}
			s.mu.Lock()
			err := s.err
			s.mu.Unlock()
			if err != nil {
				out <- ErrEvent(err)
			} else {
				out <- DoneEvent()
			}
		}()
	})
	return s.events
}
