// Copyright © 2020 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package tson

import (
	"fmt"
	"time"
)

// Nonce is the opaque, per-session marker stamped into every placeholder so a
// consumer can distinguish protocol tuples from user data that happens to look
// like one. In this package a Nonce is always a string; integer nonces are
// not supported.
type Nonce = string

// Path identifies an async producer in errors as a list of producer ids: a
// producer found in the head has [id]; a producer found in another
// producer's event has [parentID, id]. The session nonce is not part of a
// Path, and ancestry beyond the immediate parent is not recorded.
type Path []interface{}

func (p Path) String() string {
	out := "["
	for i, v := range p {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf("%v", v)
	}
	return out + "]"
}

// Head is the single JSON object emitted first on the wire (§3): the folded
// root value plus the session nonce.
type Head struct {
	JSON  interface{} `json:"json"`
	Nonce Nonce       `json:"nonce"`
}

// event kind discriminants used in tail rows, §3's event-shape table.
const (
	evValue = 0
	evError = 1
	evDone  = 2
)

// Event is one event a producer yields: a value, a terminal error, or (for
// multi-shot producers only) a normal-end terminator.
type Event struct {
	Kind  int
	Value interface{}
}

// ValueEvent wraps v as a fulfillment / next-value event.
func ValueEvent(v interface{}) Event { return Event{Kind: evValue, Value: v} }

// ErrEvent wraps err as a rejection / error-end event.
func ErrEvent(err error) Event { return Event{Kind: evError, Value: err} }

// DoneEvent is the normal-end terminator for a multi-shot producer.
func DoneEvent() Event { return Event{Kind: evDone} }

func (e Event) terminal() bool { return e.Kind == evError || e.Kind == evDone }

// ErrorKind enumerates the typed fault taxonomy of §7.
type ErrorKind int

const (
	// ErrUnknownTag: producer-side, programmer error, aborts before I/O.
	ErrUnknownTag ErrorKind = iota
	// ErrGuardFailed: either side, carries the offending value.
	ErrGuardFailed
	// ErrRecursion: producer-side, a cyclic user graph was detected during fold.
	ErrRecursion
	// ErrStreamInterrupted: consumer-side, delivered to every non-terminal
	// handle when the source sequence ends before the outer array closes.
	ErrStreamInterrupted
	// ErrProtocolError: consumer-side, malformed frame, unknown id, nonce
	// mismatch.
	ErrProtocolError
	// ErrUserFault: a producer's own emitted error terminator.
	ErrUserFault
)

func (k ErrorKind) String() string {
	switch k {
	case ErrUnknownTag:
		return "UnknownTag"
	case ErrGuardFailed:
		return "GuardFailed"
	case ErrRecursion:
		return "Recursion"
	case ErrStreamInterrupted:
		return "StreamInterrupted"
	case ErrProtocolError:
		return "ProtocolError"
	case ErrUserFault:
		return "UserFault"
	default:
		return "Unknown"
	}
}

// Error is the typed fault carried across both sides of the protocol.
type Error struct {
	Kind  ErrorKind
	Path  Path
	Cause error
	Value interface{}
	Time  time.Time
}

func newError(kind ErrorKind, cause error, opts ...func(*Error)) *Error {
	e := &Error{Kind: kind, Cause: cause, Time: time.Now()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func withPath(p Path) func(*Error)   { return func(e *Error) { e.Path = p } }
func withValue(v interface{}) func(*Error) { return func(e *Error) { e.Value = v } }

func (e *Error) Error() string {
	if len(e.Path) > 0 {
		return fmt.Sprintf("%s: %s (path %s)", e.Kind, e.causeMessage(), e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.causeMessage())
}

func (e *Error) causeMessage() string {
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "stream ended unexpectedly"
}

// Unwrap exposes the wrapped cause for errors.Is/As.
func (e *Error) Unwrap() error { return e.Cause }

// errStreamEndedUnexpectedly is the sentinel cause used for every handle transitioned
// by an interruption (§4.6).
var errStreamEndedUnexpectedly = fmt.Errorf("stream ended unexpectedly")
