// Package redisstream provides a tson async tag entry backed by a Redis
// pub/sub channel: the producer side is a single-shot promise whose
// fulfillment or rejection arrives as one published message. Grounded on
// goadesign-goa-ai's registry.ResultStreamManager (PublishResult/
// WaitForResult over a Redis-backed result stream keyed by a generated id),
// narrowed here from a full manager interface to the one producer shape
// tson's Promise needs.
package redisstream

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/streamson-io/tson"
)

// resultMessage mirrors ToolResultMessage's success/failure split: a
// published payload carries either a Result or an Error, never both.
type resultMessage struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// MarshalBinary encodes m as JSON, the form Events parses on receipt.
func (m resultMessage) MarshalBinary() ([]byte, error) { return json.Marshal(m) }

// Source is a single-shot producer waiting on channel for exactly one
// published resultMessage.
type Source struct {
	rdb     *redis.Client
	channel string
}

// NewSource returns a Source that will subscribe to channel on Unfold.
func NewSource(rdb *redis.Client, channel string) *Source {
	return &Source{rdb: rdb, channel: channel}
}

// Publish fulfills the promise waiting on channel. Only the first publish on
// a given channel has effect downstream, since the subscriber unsubscribes
// after the first message (matching Promise's pending->terminal transition).
func Publish(ctx context.Context, rdb *redis.Client, channel string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return rdb.Publish(ctx, channel, resultMessage{Result: payload}).Err()
}

// PublishError fails the promise waiting on channel with msg.
func PublishError(ctx context.Context, rdb *redis.Client, channel, msg string) error {
	return rdb.Publish(ctx, channel, resultMessage{Error: msg}).Err()
}

// Events implements the producer half of tson.Producer: it blocks on the
// subscription until one message arrives, the deadline passes, or ctx is
// cancelled, then yields exactly one event and closes (§4.6: single-shot).
func (s *Source) Events(ctx context.Context, deadline time.Duration) <-chan tson.Event {
	out := make(chan tson.Event, 1)

	go func() {
		defer close(out)

		sub := s.rdb.Subscribe(ctx, s.channel)
		defer sub.Close()

		waitCtx := ctx
		var cancel context.CancelFunc
		if deadline > 0 {
			waitCtx, cancel = context.WithTimeout(ctx, deadline)
			defer cancel()
		}

		msg, err := sub.ReceiveMessage(waitCtx)
		if err != nil {
			out <- tson.ErrEvent(err)
			return
		}

		var parsed resultMessage
		if err := json.Unmarshal([]byte(msg.Payload), &parsed); err != nil {
			out <- tson.ErrEvent(err)
			return
		}
		if parsed.Error != "" {
			out <- tson.ErrEvent(errors.New(parsed.Error))
			return
		}

		var value interface{}
		if err := json.Unmarshal(parsed.Result, &value); err != nil {
			out <- tson.ErrEvent(err)
			return
		}
		out <- tson.ValueEvent(value)
	}()

	return out
}

// NewEntry registers a Redis-backed AsyncEntry under key with the given
// subscribe deadline (0 disables the deadline, relying on ctx alone).
func NewEntry(ctx context.Context, key string, deadline time.Duration) *tson.Entry {
	return &tson.Entry{
		Key:  key,
		Kind: tson.KindAsync,
		Test: func(v interface{}) bool { _, ok := v.(*Source); return ok },
		Async: &tson.AsyncFuncs{
			Unfold: func(v interface{}) tson.Producer {
				src := v.(*Source)
				events := src.Events(ctx, deadline)
				return producerFunc(func() <-chan tson.Event { return events })
			},
			NewHandle: func() tson.Handle { return tson.NewPromise() },
		},
	}
}

type producerFunc func() <-chan tson.Event

func (f producerFunc) Events() <-chan tson.Event { return f() }
