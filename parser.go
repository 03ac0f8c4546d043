// Copyright © 2020 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package tson

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// parserEventKind discriminates the four events the Stream Parser (§4.4) can
// emit.
type parserEventKind int

const (
	parserHead parserEventKind = iota
	parserRow
	parserEnd
	parserInterrupted
)

type parserEvent struct {
	kind     parserEventKind
	head     Head
	rowID    int64
	rowEvent Event
	err      error
}

// chunkReader adapts an async sequence of string chunks (§6: "any async
// sequence of string chunks") to io.Reader, so the incremental parser can
// ride on encoding/json's own incremental Decoder rather than hand-rolling a
// byte-level tokenizer (see DESIGN.md). A Read call blocks until a chunk
// arrives or the sequence ends, exactly where json.Decoder expects to block
// on a partial token.
type chunkReader struct {
	chunks <-chan string
	buf    []byte
}

func (c *chunkReader) Read(p []byte) (int, error) {
	for len(c.buf) == 0 {
		chunk, ok := <-c.chunks
		if !ok {
			return 0, io.EOF
		}
		c.buf = []byte(chunk)
	}
	n := copy(p, c.buf)
	c.buf = c.buf[n:]
	return n, nil
}

// parseStream drives the Stream Parser state machine over chunks, emitting
// parserEvents on events until the frame closes or the source is
// interrupted. Whitespace between structural tokens and standard JSON string
// escaping are handled by encoding/json itself.
func parseStream(ctx context.Context, chunks <-chan string, events chan<- parserEvent) {
	defer close(events)

	emit := func(ev parserEvent) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	interrupted := func(err error) {
		emit(parserEvent{kind: parserInterrupted, err: err})
	}

	dec := json.NewDecoder(&chunkReader{chunks: chunks})

	if _, err := dec.Token(); err != nil { // outer '['
		interrupted(err)
		return
	}

	var head Head
	if err := dec.Decode(&head); err != nil {
		interrupted(err)
		return
	}
	if !emit(parserEvent{kind: parserHead, head: head}) {
		return
	}

	if _, err := dec.Token(); err != nil { // tail rows '['
		interrupted(err)
		return
	}

	for dec.More() {
		id, ev, err := decodeRow(dec)
		if err != nil {
			interrupted(err)
			return
		}
		if !emit(parserEvent{kind: parserRow, rowID: id, rowEvent: ev}) {
			return
		}
	}

	if _, err := dec.Token(); err != nil { // tail rows ']'
		interrupted(err)
		return
	}
	if _, err := dec.Token(); err != nil { // outer ']'
		interrupted(err)
		return
	}

	emit(parserEvent{kind: parserEnd})
}

// decodeRow decodes one [id, event] tail row (§3) positioned at dec's cursor.
func decodeRow(dec *json.Decoder) (int64, Event, error) {
	var raw []json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return 0, Event{}, err
	}
	if len(raw) != 2 {
		return 0, Event{}, newError(ErrProtocolError, fmt.Errorf("tail row must have 2 elements, got %d", len(raw)))
	}

	var id int64
	if err := json.Unmarshal(raw[0], &id); err != nil {
		return 0, Event{}, newError(ErrProtocolError, fmt.Errorf("tail row id: %w", err))
	}

	var evRaw []json.RawMessage
	if err := json.Unmarshal(raw[1], &evRaw); err != nil {
		return 0, Event{}, newError(ErrProtocolError, fmt.Errorf("tail row event: %w", err))
	}
	if len(evRaw) == 0 {
		return 0, Event{}, newError(ErrProtocolError, fmt.Errorf("tail row event must have a kind"))
	}

	var kind int
	if err := json.Unmarshal(evRaw[0], &kind); err != nil {
		return 0, Event{}, newError(ErrProtocolError, fmt.Errorf("tail row event kind: %w", err))
	}

	switch kind {
	case evDone:
		return id, DoneEvent(), nil
	case evValue, evError:
		var value interface{}
		if len(evRaw) > 1 {
			if err := json.Unmarshal(evRaw[1], &value); err != nil {
				return 0, Event{}, newError(ErrProtocolError, fmt.Errorf("tail row event payload: %w", err))
			}
		}
		return id, Event{Kind: kind, Value: value}, nil
	default:
		return 0, Event{}, newError(ErrProtocolError, fmt.Errorf("unknown tail row event kind %d", kind))
	}
}
