// Package kafka provides a tson async tag entry whose producer side reads a
// Kafka topic: each consumed message becomes one value event on the stream,
// ending the sequence only when the reader itself errors, a message is not
// valid JSON, or the context is cancelled. Grounded on components/kafka/kafka.go's Initium, generalized
// from a batching []map[string]interface{} source to a per-message
// tson.Producer.
package kafka

import (
	"context"
	"encoding/json"
	"time"

	kaf "github.com/segmentio/kafka-go"
	"github.com/spf13/viper"

	"github.com/streamson-io/tson"
)

// Config mirrors the viper keys components/kafka/kafka.go reads, scoped
// under whatever key the caller configures the topic under.
type Config struct {
	Brokers []string
	Topic   string
	Deadline time.Duration
	Retries int
}

// ConfigFromViper reads Config from v the same way Initium does.
func ConfigFromViper(v *viper.Viper) Config {
	return Config{
		Brokers:  v.GetStringSlice("brokers"),
		Topic:    v.GetString("topic"),
		Deadline: v.GetDuration("deadline"),
		Retries:  v.GetInt("retries"),
	}
}

// Source is a multi-shot producer that reads cfg.Topic until ctx is
// cancelled or the reader returns a terminal error.
type Source struct {
	cfg    Config
	reader *kaf.Reader
}

// NewSource opens a kafka reader for cfg. Close must be called once the
// returned Producer's Events channel has been fully drained.
func NewSource(cfg Config) *Source {
	return &Source{
		cfg: cfg,
		reader: kaf.NewReader(kaf.ReaderConfig{
			Brokers:     cfg.Brokers,
			Topic:       cfg.Topic,
			MaxWait:     cfg.Deadline,
			MaxAttempts: cfg.Retries,
		}),
	}
}

// Close releases the underlying kafka connection.
func (s *Source) Close() error { return s.reader.Close() }

// Events returns the event channel that NewEntry's Unfold wraps as a
// tson.Producer: one value event per consumed message, decoded from JSON,
// until the context is cancelled or the reader or decoding errors.
func (s *Source) Events(ctx context.Context) <-chan tson.Event {
	out := make(chan tson.Event)
	go func() {
		defer close(out)
		for {
			msg, err := s.reader.ReadMessage(ctx)
			if err != nil {
				select {
				case out <- tson.ErrEvent(err):
				case <-ctx.Done():
				}
				return
			}

			var value interface{}
			if err := json.Unmarshal(msg.Value, &value); err != nil {
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
	}()
	return out
}

// NewEntry registers a kafka-backed AsyncEntry under key: folding a *Source
// unfolds it into a tson.Producer bound to ctx; the consumer side
// materializes a plain *tson.Stream, since a kafka topic is exactly a
// multi-shot sequence of values from the wire's point of view.
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
