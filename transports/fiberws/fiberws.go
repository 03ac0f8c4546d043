// Package fiberws provides the websocket Source/Sink pair named as an
// external collaborator by §1/§6 ("any async sequence of string chunks"):
// a fiber/fasthttp websocket connection read as an inbound chunk sequence
// for Session.Parse, and written to as an outbound chunk sink for
// Session.Stringify. Grounded on components/http/http.go's fiber-server
// Initium/Terminus pair, generalized from a batching []map[string]interface{}
// channel to a raw chunk-of-bytes channel, and on builder_test.go's use of
// fasthttp/websocket for the dial side of the same protocol.
package fiberws

import (
	"context"
	"net/http"

	fasthttpws "github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// Conn wraps a server-side websocket connection as a chunk source and sink.
type Conn struct {
	ws *websocket.Conn
}

// NewConn wraps ws.
func NewConn(ws *websocket.Conn) *Conn { return &Conn{ws: ws} }

// ReadChunks reads text frames off the connection as a chunk sequence
// suitable for Session.Parse, closing the returned channel once the
// connection closes or ctx is cancelled.
func (c *Conn) ReadChunks(ctx context.Context) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		for {
			_, data, err := c.ws.ReadMessage()
			if err != nil {
				return
			}
			select {
			case out <- string(data):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// WriteChunks drains chunks onto the connection as text frames, one frame
// per chunk emitted by Session.Stringify, returning the first write error
// encountered (if any).
func (c *Conn) WriteChunks(ctx context.Context, chunks <-chan string) error {
	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				return nil
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, []byte(chunk)); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Upgrade returns the fiber middleware that must precede a Handler on the
// route (the standard gofiber/websocket/v2 handshake check).
func Upgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

// Handler adapts a function of a single established Conn to a
// gofiber/websocket/v2 handler, ready to mount behind Upgrade() on a route.
func Handler(fn func(ctx context.Context, conn *Conn)) func(*websocket.Conn) {
	return func(ws *websocket.Conn) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		fn(ctx, NewConn(ws))
	}
}

// ClientConn is the dial-side counterpart of Conn, used by anything
// consuming a tson stream served behind fiberws (e.g. a test harness or a
// non-HTTP client), grounded directly on builder_test.go's
// fasthttp/websocket.DefaultDialer.Dial round trip against a running
// machine/fiber server.
type ClientConn struct {
	conn *fasthttpws.Conn
}

// Dial connects to url (e.g. "ws://localhost:5000/stream").
func Dial(url string, header http.Header) (*ClientConn, error) {
	conn, _, err := fasthttpws.DefaultDialer.Dial(url, header)
	if err != nil {
		return nil, err
	}
	return &ClientConn{conn: conn}, nil
}

// ReadChunks mirrors Conn.ReadChunks for the dial side.
func (c *ClientConn) ReadChunks(ctx context.Context) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		for {
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				return
			}
			select {
			case out <- string(data):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// WriteChunks mirrors Conn.WriteChunks for the dial side.
func (c *ClientConn) WriteChunks(ctx context.Context, chunks <-chan string) error {
	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				return nil
			}
			if err := c.conn.WriteMessage(fasthttpws.TextMessage, []byte(chunk)); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close closes the dial-side connection.
func (c *ClientConn) Close() error { return c.conn.Close() }
