// Copyright © 2020 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package tson

import (
	"context"
	"strings"
)

// ToSSEResponse reframes Stringify's chunk sequence as Server-Sent Events,
// one "data:" record per line of the underlying stream (§6, §9 supplement).
// Grounded on the pack's SSETracer shape (a channel of events fanned out to
// subscribers), adapted here from a pub/sub tracer to a single-response
// reframer of this session's own Stringify output.
func (s *Session) ToSSEResponse(ctx context.Context, root interface{}) (<-chan string, <-chan error) {
	chunks, errs := s.Stringify(ctx, root)
	out := make(chan string)

	go func() {
		defer close(out)

		var buf strings.Builder
		emit := func(line string) bool {
			select {
			case out <- "data: " + line + "\n\n":
				return true
			case <-ctx.Done():
				return false
			}
		}

		for chunk := range chunks {
			buf.WriteString(chunk)
			for {
				pending := buf.String()
				idx := strings.IndexByte(pending, '\n')
				if idx < 0 {
					break
				}
				line := pending[:idx]
				buf.Reset()
				buf.WriteString(pending[idx+1:])
				if !emit(line) {
					return
				}
			}
		}
		if buf.Len() > 0 {
			emit(buf.String())
		}
	}()

	return out, errs
}
