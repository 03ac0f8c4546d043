package anthropicstream

import (
	"context"
	"testing"

	"github.com/streamson-io/tson"
)

func TestNewEntryShape(t *testing.T) {
	entry := NewEntry(context.Background(), "AnthropicStream")

	if entry.Kind != tson.KindAsync {
		t.Fatalf("Kind = %v, want KindAsync", entry.Kind)
	}
	if !entry.Test(&Source{}) {
		t.Fatal("Test() should match a *Source value")
	}
	if entry.Test("not a source") {
		t.Fatal("Test() should not match an unrelated value")
	}
	if _, ok := entry.Async.NewHandle().(*tson.Stream); !ok {
		t.Fatal("NewHandle() should return a *tson.Stream")
	}
}
