package realtime

import (
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// frame is one message written to a fakeConn.
type frame struct {
	kind int
	data []byte
}

// fakeConn records writes and replays scripted read errors. Reads after the
// script is exhausted return io.EOF.
type fakeConn struct {
	mu     sync.Mutex
	frames []frame
	reads  []error
	closes int
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.reads) == 0 {
		return 0, nil, io.EOF
	}
	err := c.reads[0]
	c.reads = c.reads[1:]
	return 1, nil, err
}

func (c *fakeConn) WriteMessage(kind int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, frame{kind: kind, data: append([]byte(nil), data...)})
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	return nil
}

func (c *fakeConn) written() []frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]frame(nil), c.frames...)
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

// subscribe joins a fake subscriber with an outbox of size buf.
func subscribe(t *testing.T, hub *Hub, buf int) *subscriber {
	t.Helper()
	s := &subscriber{conn: &fakeConn{}, outbox: make(chan []byte, buf)}
	require.True(t, hub.join(s))
	return s
}
