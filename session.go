// Copyright © 2020 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package tson

import (
	"context"
	"fmt"
	"io"

	"github.com/streamson-io/tson/internal/telemetry"
	"github.com/streamson-io/tson/internal/tlog"
)

// Config holds the settings a Session is constructed with (§6 Configuration).
type Config struct {
	// Types is the ordered list of sync/async tag entries registered in
	// addition to the built-in Promise/AsyncSequence/BigInt entries.
	Types []*Entry
	// Nonce returns a fresh nonce per session; DefaultNonce is used if nil.
	Nonce NonceFunc
	// Guards are applied to every folded/unfolded value on both sides.
	Guards []Guard
	// OnStreamError is called once per fault: a producer-side fault surfaced
	// during Stringify, or a protocol/interruption fault surfaced during
	// Parse.
	OnStreamError func(*Error)
	// Indent, if non-empty, pretty-prints the head's json value. Tail rows
	// always stay single-line (§9 supplement: indenting a live stream would
	// require buffering rows).
	Indent string
}

// Option configures a Session, grounded on options.go's Option struct and
// merge/join pattern — here expressed the idiomatic functional-options way
// rather than a pointer-field struct, since a Session is built once and not
// re-merged mid-flight the way a machine.Option is per-vertex.
type Option func(*Config)

// WithTypes registers additional sync/async tag entries.
func WithTypes(entries ...*Entry) Option {
	return func(c *Config) { c.Types = append(c.Types, entries...) }
}

// WithNonce overrides the default nonce generator.
func WithNonce(fn NonceFunc) Option {
	return func(c *Config) { c.Nonce = fn }
}

// WithGuard adds a guard applied to every folded/unfolded value.
func WithGuard(g Guard) Option {
	return func(c *Config) { c.Guards = append(c.Guards, g) }
}

// WithOnStreamError sets the fault callback.
func WithOnStreamError(fn func(*Error)) Option {
	return func(c *Config) { c.OnStreamError = fn }
}

// WithIndent pretty-prints the head with the given indent string.
func WithIndent(indent string) Option {
	return func(c *Config) { c.Indent = indent }
}

// Session is the entry point to the protocol (§6 External Interfaces),
// mirroring builder.go's top-level New/Build constructors.
type Session struct {
	registry      *Registry
	nonceFn       NonceFunc
	onStreamError func(*Error)
	indent        string
}

// New builds a Session from opts. The built-in Promise, AsyncSequence, and
// BigInt tags (builtins.go) are always registered first, so for a value that
// a built-in Test also matches, the built-in entry wins; a user Type whose
// Key equals a built-in key makes New return an error.
func New(opts ...Option) (*Session, error) {
	cfg := &Config{Nonce: DefaultNonce}
	for _, opt := range opts {
		opt(cfg)
	}

	registry := NewRegistry()
	if err := RegisterBuiltins(registry); err != nil {
		return nil, fmt.Errorf("tson: registering builtins: %w", err)
	}
	for _, entry := range cfg.Types {
		if err := registry.Register(entry); err != nil {
			return nil, err
		}
	}
	for _, g := range cfg.Guards {
		registry.Guard(g)
	}

	return &Session{
		registry:      registry,
		nonceFn:       cfg.Nonce,
		onStreamError: cfg.OnStreamError,
		indent:        cfg.Indent,
	}, nil
}

// Stringify serializes root onto an async sequence of string chunks (§6).
// The returned error channel carries at most one value: a producer-side
// abort (UnknownTag, GuardFailed, Recursion) that occurred before any bytes
// were emitted, or a context cancellation.
func (s *Session) Stringify(ctx context.Context, root interface{}) (<-chan string, <-chan error) {
	out := make(chan string)
	errs := make(chan error, 1)

	m := &multiplexer{
		registry:      s.registry,
		nonce:         s.nonceFn(),
		ids:           &idAllocator{},
		onStreamError: s.onStreamError,
		out:           out,
		indent:        s.indent,
	}

	go func() {
		defer close(out)
		defer close(errs)
		if err := m.stringify(ctx, root); err != nil {
			errs <- err
		}
	}()

	return out, errs
}

// Parse reconstructs the root value as soon as the head is parsed (§6): async
// handles within the returned root continue to resolve/yield as rows arrive
// on a background goroutine for the remaining lifetime of the session.
func (s *Session) Parse(ctx context.Context, chunks <-chan string) (interface{}, error) {
	ctx, span := telemetry.StartParse(ctx)

	events := make(chan parserEvent)
	go parseStream(ctx, chunks, events)

	select {
	case ev, ok := <-events:
		if !ok {
			span.End()
			return nil, newError(ErrStreamInterrupted, errStreamEndedUnexpectedly)
		}
		switch ev.kind {
		case parserHead:
			d := newDispatcher(s.registry, ev.head.Nonce)
			root, err := d.materialize(ev.head.JSON)
			if err != nil {
				span.End()
				return nil, err
			}
			go func() {
				defer span.End()
				s.drainRows(ctx, d, events)
			}()
			return root, nil
		case parserInterrupted:
			span.End()
			return nil, s.reportParserFault(ev.err)
		default:
			span.End()
			return nil, newError(ErrProtocolError, fmt.Errorf("unexpected parser event before head"))
		}
	case <-ctx.Done():
		span.End()
		return nil, ctx.Err()
	}
}

// drainRows runs for the remaining lifetime of a Parse call, routing tail
// rows to their handles and interrupting every still-open handle exactly
// once if the stream ends prematurely (§4.6, §5 "Suspension points").
func (s *Session) drainRows(ctx context.Context, d *dispatcher, events <-chan parserEvent) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				tlog.Debug().Msg("tson: row stream closed without a terminal frame, interrupting open handles")
				d.interruptAll()
				return
			}
			switch ev.kind {
			case parserRow:
				if err := d.route(ev.rowID, ev.rowEvent); err != nil {
					s.reportParserFault(err)
					d.interruptAll()
					return
				}
			case parserEnd:
				tlog.Debug().Msg("tson: row stream ended cleanly")
				return
			case parserInterrupted:
				d.interruptAll()
				s.reportParserFault(ev.err)
				return
			}
		case <-ctx.Done():
			tlog.Debug().Msg("tson: parse cancelled, interrupting open handles")
			d.interruptAll()
			return
		}
	}
}

// reportParserFault normalizes a parser/dispatch-side error into *Error,
// notifies OnStreamError once, and returns it for the caller to also return.
func (s *Session) reportParserFault(err error) *Error {
	var wrapped *Error
	if asErr, ok := err.(*Error); ok {
		wrapped = asErr
	} else if err == io.EOF || err == io.ErrUnexpectedEOF {
		wrapped = newError(ErrStreamInterrupted, errStreamEndedUnexpectedly)
	} else {
		wrapped = newError(ErrStreamInterrupted, err)
	}

	if s.onStreamError != nil {
		s.onStreamError(wrapped)
	}
	return wrapped
}
