package redisstream

import (
	"context"
	"testing"
	"time"

	"github.com/streamson-io/tson"
)

func TestNewEntryShape(t *testing.T) {
	entry := NewEntry(context.Background(), "RedisPromise", 5*time.Second)

	if entry.Kind != tson.KindAsync {
		t.Fatalf("Kind = %v, want KindAsync", entry.Kind)
	}
	if !entry.Test(&Source{channel: "result:1"}) {
		t.Fatal("Test() should match a *Source value")
	}
	if entry.Test(struct{}{}) {
		t.Fatal("Test() should not match an unrelated value")
	}
	if _, ok := entry.Async.NewHandle().(*tson.Promise); !ok {
		t.Fatal("NewHandle() should return a *tson.Promise")
	}
}
