// Copyright © 2020 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package tson

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSingleShotStateFulfill(t *testing.T) {
	s := newSingleShotState()
	s.finish(ValueEvent("ok"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	v, err := s.await(ctx)
	if err != nil {
		t.Fatalf("await() error = %v", err)
	}
	if v != "ok" {
		t.Fatalf("await() = %v, want ok", v)
	}
}

func TestSingleShotStateOnlyFirstTransitionWins(t *testing.T) {
	s := newSingleShotState()
	s.finish(ValueEvent("first"))
	s.finish(ErrEvent(errors.New("second")))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	v, err := s.await(ctx)
	if err != nil || v != "first" {
		t.Fatalf("await() = (%v, %v), want (first, nil)", v, err)
	}
}

func TestSingleShotStateInterrupt(t *testing.T) {
	s := newSingleShotState()
	s.interrupt()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := s.await(ctx)
	var tErr *Error
	if !errors.As(err, &tErr) || tErr.Kind != ErrStreamInterrupted {
		t.Fatalf("await() error = %v, want ErrStreamInterrupted", err)
	}
}

func TestMultiShotStateSequenceThenDone(t *testing.T) {
	s := newMultiShotState(2)
	s.push("a")
	s.push("b")
	s.finish(nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var got []interface{}
	for {
		v, ok, err := s.next(ctx)
		if !ok {
			if err != nil {
				t.Fatalf("next() terminal error = %v", err)
			}
			break
		}
		got = append(got, v)
	}

	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("got = %v, want [a b]", got)
	}
}

func TestMultiShotStatePushAfterCloseIsNoop(t *testing.T) {
	s := newMultiShotState(2)
	s.finish(nil)
	s.push("too-late")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, ok, err := s.next(ctx)
	if ok || err != nil {
		t.Fatalf("next() = (_, %v, %v), want (_, false, nil)", ok, err)
	}
}

func TestMultiShotStateAsProducerEventsTranslatesPushesAndTerminal(t *testing.T) {
	s := newMultiShotState(2)
	events := s.asProducerEvents()

	s.push("x")
	s.finish(errors.New("boom"))

	first := <-events
	if first.Kind != evValue || first.Value != "x" {
		t.Fatalf("first event = %+v, want value x", first)
	}
	second := <-events
	if second.Kind != evError {
		t.Fatalf("second event = %+v, want error", second)
	}
	if _, ok := <-events; ok {
		t.Fatal("expected events channel to close after terminal event")
	}
}
