package server

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/tecu23/arena-server/pkg/registry"
)

var (
	_ Conn            = &stubConn{}
	_ registry.Sender = &stubConn{}
)

// stubConn stands in for a websocket connection on both sides the hub
// cares about: identity for routing and a sink for outbound messages.
type stubConn struct {
	id     uuid.UUID
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	sent      []any
	closed    bool
	failSends bool
}

func newStubConn() *stubConn {
	ctx, cancel := context.WithCancel(context.Background())
	return &stubConn{id: uuid.New(), ctx: ctx, cancel: cancel}
}

func (c *stubConn) ID() uuid.UUID { return c.id }

func (c *stubConn) Context() context.Context { return c.ctx }

func (c *stubConn) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failSends {
		return assert.AnError
	}

	c.sent = append(c.sent, v)
	return nil
}

func (c *stubConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.cancel()
	return nil
}

func (c *stubConn) messages() []any {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]any, len(c.sent))
	copy(out, c.sent)
	return out
}

func (c *stubConn) wasClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// lastOf returns the most recent message of type T sent to the stub.
func lastOf[T any](t *testing.T, c *stubConn) T {
	t.Helper()

	msgs := c.messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if m, ok := msgs[i].(T); ok {
			return m
		}
	}

	var zero T
	t.Fatalf("no %T among %d messages", zero, len(msgs))
	return zero
}

// countOf counts messages of type T sent to the stub.
func countOf[T any](c *stubConn) int {
	n := 0
	for _, m := range c.messages() {
		if _, ok := m.(T); ok {
			n++
		}
	}
	return n
}
