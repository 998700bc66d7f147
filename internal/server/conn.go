package server

import (
	"net"
	"sync"
)

// conn is the per-connection state. The core loop owns the registry entry
// and is the only producer of replies; the writer goroutine drains them.
type conn struct {
	nc     net.Conn
	remote string

	mu              sync.Mutex
	wbuf            []byte
	closeAfterDrain bool
	forceClosed     bool

	// wake has capacity 1; signals coalesce.
	wake chan struct{}
}

func newConn(nc net.Conn) *conn {
	return &conn{
		nc:     nc,
		remote: nc.RemoteAddr().String(),
		wake:   make(chan struct{}, 1),
	}
}

// enqueue appends a framed reply to the write buffer and wakes the writer.
// Backpressure from slow clients shows up as buffer growth.
func (c *conn) enqueue(reply string) {
	c.mu.Lock()
	c.wbuf = append(c.wbuf, reply...)
	c.mu.Unlock()
	c.signal()
}

// drainClose asks the writer to close the socket once the write buffer is
// empty. Used for QUIT and read-side errors.
func (c *conn) drainClose() {
	c.mu.Lock()
	c.closeAfterDrain = true
	c.mu.Unlock()
	c.signal()
}

// close tears the connection down immediately, discarding unsent replies.
// Used on server shutdown.
func (c *conn) close() {
	c.mu.Lock()
	c.forceClosed = true
	c.mu.Unlock()
	_ = c.nc.Close()
	c.signal()
}

func (c *conn) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// writeLoop drains the write buffer to the socket. It exits when the
// connection is force-closed, when a write fails, or after a graceful
// drain-close completes.
func (c *conn) writeLoop() {
	for range c.wake {
		for {
			c.mu.Lock()
			buf := c.wbuf
			c.wbuf = nil
			closing := c.closeAfterDrain
			dead := c.forceClosed
			c.mu.Unlock()

			if dead {
				return
			}
			if len(buf) == 0 {
				if closing {
					_ = c.nc.Close()
					return
				}
				break
			}
			if _, err := c.nc.Write(buf); err != nil {
				_ = c.nc.Close()
				return
			}
		}
	}
}
