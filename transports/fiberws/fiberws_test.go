package fiberws

import (
	"context"
	"testing"
	"time"
)

func TestWriteChunksRespectsCancellation(t *testing.T) {
	// WriteChunks on a nil-backed Conn can't dial a real socket here, but a
	// cancelled context must still return promptly without attempting a
	// write, exercising the same ctx.Done() branch a closed connection
	// would hit.
	chunks := make(chan string)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := &Conn{}
	done := make(chan error, 1)
	go func() { done <- c.WriteChunks(ctx, chunks) }()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("WriteChunks() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("WriteChunks() did not return after context cancellation")
	}
}
