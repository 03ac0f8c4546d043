// Package anthropicstream provides a tson async tag entry wrapping an
// Anthropic Messages streaming response: each streaming delta becomes one
// value event on a multi-shot sequence, ending normally when the SDK stream
// closes or with an error terminator if the stream itself errors. Grounded
// on goadesign-goa-ai's features/model/anthropic/stream.go (a goroutine
// pumping an ssestream.Stream into a buffered channel, Recv translating
// io.EOF into a clean end), adapted here from a pull-based Recv() to tson's
// push-based Producer.
package anthropicstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/streamson-io/tson"
)

// Source wraps an in-flight Anthropic Messages stream as a multi-shot
// tson producer.
type Source struct {
	stream *ssestream.Stream[sdk.MessageStreamEventUnion]
}

// NewSource adapts stream, typically the return of client.Messages.NewStreaming.
func NewSource(stream *ssestream.Stream[sdk.MessageStreamEventUnion]) *Source {
	return &Source{stream: stream}
}

// Events implements the producer half of tson.Producer: one value event per
// streaming event union, a done terminator when the SDK stream is
// exhausted, or an error terminator if reading it fails.
func (s *Source) Events(ctx context.Context) <-chan tson.Event {
	out := make(chan tson.Event)

	go func() {
		defer close(out)
		defer s.stream.Close()

		for s.stream.Next() {
			value, err := eventToValue(s.stream.Current())
			if err != nil {
				select {
				case out <- tson.ErrEvent(err):
				case <-ctx.Done():
				}
				return
			}
			select {
			case out <- tson.ValueEvent(value):
			case <-ctx.Done():
				return
			}
		}

		if err := s.stream.Err(); err != nil && !errors.Is(err, io.EOF) {
			select {
			case out <- tson.ErrEvent(err):
			case <-ctx.Done():
			}
			return
		}

		select {
		case out <- tson.DoneEvent():
		case <-ctx.Done():
		}
	}()

	return out
}

// eventToValue folds one streaming event union into the plain JSON shape
// tson carries across the wire, marshaling the union itself (every SDK
// message type in the union is a plain JSON-tagged struct) rather than
// trying to model each of message_start/content_block_delta/message_stop
// as its own tson payload shape.
func eventToValue(event sdk.MessageStreamEventUnion) (interface{}, error) {
	raw, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, err
	}
	return value, nil
}

// NewEntry registers an Anthropic-stream-backed AsyncEntry under key.
func NewEntry(ctx context.Context, key string) *tson.Entry {
	return &tson.Entry{
		Key:  key,
		Kind: tson.KindAsync,
		Test: func(v interface{}) bool { _, ok := v.(*Source); return ok },
		Async: &tson.AsyncFuncs{
			Unfold: func(v interface{}) tson.Producer {
				src := v.(*Source)
				events := src.Events(ctx)
				return producerFunc(func() <-chan tson.Event { return events })
			},
			NewHandle: func() tson.Handle { return tson.NewStream(0) },
		},
	}
}

type producerFunc func() <-chan tson.Event

func (f producerFunc) Events() <-chan tson.Event { return f() }
