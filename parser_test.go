// Copyright © 2020 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package tson

import (
	"context"
	"testing"
	"time"
)

// feedByBytes splits frame into byte-sized chunks so the parser is exercised against
// the worst-case chunk-boundary split (§4.4 "tolerant of chunk boundaries
// falling anywhere, including mid-token").
func feedByBytes(ctx context.Context, frame string) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		for i := 0; i < len(frame); i++ {
			select {
			case out <- string(frame[i]):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func TestParseStreamByteSplitHead(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	frame := `[` + "\n" + `{"json":{"name":"hi"},"nonce":"n"}` + "\n,\n[\n" + "\n]\n]\n"
	events := make(chan parserEvent)
	go parseStream(ctx, feedByBytes(ctx, frame), events)

	ev, ok := <-events
	if !ok {
		t.Fatal("expected head event")
	}
	if ev.kind != parserHead {
		t.Fatalf("kind = %v, want parserHead", ev.kind)
	}
	if ev.head.Nonce != "n" {
		t.Fatalf("nonce = %v, want n", ev.head.Nonce)
	}

	ev, ok = <-events
	if !ok || ev.kind != parserEnd {
		t.Fatalf("expected parserEnd, got %+v (ok=%v)", ev, ok)
	}
}

func TestParseStreamRowsByteSplit(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	frame := `[` + "\n" + `{"json":1,"nonce":"n"}` + "\n,\n[\n" +
		`[0,[0,"a"]]` + ",\n" + `[0,[2]]` + "\n]\n]\n"

	events := make(chan parserEvent)
	go parseStream(ctx, feedByBytes(ctx, frame), events)

	var rows []parserEvent
	for ev := range events {
		if ev.kind == parserRow {
			rows = append(rows, ev)
		}
	}

	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].rowID != 0 || rows[0].rowEvent.Kind != evValue || rows[0].rowEvent.Value != "a" {
		t.Fatalf("rows[0] = %+v, want id 0 value a", rows[0])
	}
	if rows[1].rowEvent.Kind != evDone {
		t.Fatalf("rows[1] kind = %v, want evDone", rows[1].rowEvent.Kind)
	}
}

func TestParseStreamTruncatedHeadIsInterrupted(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	chunks := make(chan string)
	close(chunks) // source ends before any bytes at all

	events := make(chan parserEvent)
	go parseStream(ctx, chunks, events)

	ev, ok := <-events
	if !ok || ev.kind != parserInterrupted {
		t.Fatalf("expected parserInterrupted, got %+v (ok=%v)", ev, ok)
	}
}
