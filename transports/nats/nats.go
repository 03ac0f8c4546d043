// Package nats provides a tson async tag entry whose producer side is a NATS
// subject subscription: each received message becomes one value event, ending
// only on a subscribe error, a message that is not valid JSON, or context
// cancellation. There is
// no hand-written NATS usage elsewhere in the retrieved corpus to imitate
// line-for-line (nats-io/nats.go is a listed, not exercised, dependency
// there); this wiring follows nats.go's own documented Subscribe/Msg API,
// shaped the same producer-adapter way as transports/kafka.
package nats

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"

	"github.com/streamson-io/tson"
)

// Source is a multi-shot producer backed by a subscription to subject.
type Source struct {
	conn    *nats.Conn
	subject string
}

// NewSource returns a Source for subject on conn. The subscription is made
// when Events is called (from the registered Entry's Unfold) and torn down
// when that call's context is cancelled.
func NewSource(conn *nats.Conn, subject string) *Source {
	return &Source{conn: conn, subject: subject}
}

// Events implements the producer half of tson.Producer, parameterized over
// ctx so a single Source can be unfolded into independent producers per
// Stringify call if reused.
func (s *Source) Events(ctx context.Context) <-chan tson.Event {
	out := make(chan tson.Event)

	msgs := make(chan *nats.Msg, 64)
	sub, err := s.conn.ChanSubscribe(s.subject, msgs)
	if err != nil {
		go func() {
			defer close(out)
			out <- tson.ErrEvent(err)
		}()
		return out
	}

	go func() {
		defer close(out)
		defer sub.Unsubscribe()

		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var value interface{}
				if err := json.Unmarshal(msg.Data, &value); err != nil {
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
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// NewEntry registers a NATS-backed AsyncEntry under key, the subject
// subscription standing in for the multi-shot sequence of values (§1
// "external collaborators").
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
