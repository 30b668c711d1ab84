// Package nettransport implements api.Transport over a real net.Conn,
// the concrete transport collaborator a caller reaches for once a
// handshake is performed over an ordinary TCP or TLS connection.
//
// Grounded on the teacher's transport.NetConn, generalized from a bare
// Read/Write/Close wrapper into a full api.Transport plus the read
// loop that feeds an Endpoint — the engine itself spawns no
// goroutines (spec.md §5), so that loop is this package's job, not
// the engine's.
//
// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT
package nettransport

import (
	"errors"
	"io"
	"net"
	"sync"

	"github.com/HANABLI/WebSocket/internal/pool"
)

// Conn adapts a net.Conn to api.Transport.
type Conn struct {
	conn net.Conn
	pool *pool.BytePool

	mu     sync.Mutex
	closed bool
}

// New wraps conn for use as an api.Transport. readBufferSize sizes
// the pooled buffers ReadLoop uses to pull bytes off the wire; zero
// selects a 4096-byte default.
func New(conn net.Conn, readBufferSize int) *Conn {
	if readBufferSize <= 0 {
		readBufferSize = 4096
	}
	return &Conn{conn: conn, pool: pool.NewBytePool(readBufferSize)}
}

// Send implements api.Transport.
func (c *Conn) Send(data []byte) error {
	_, err := c.conn.Write(data)
	return err
}

// Break implements api.Transport. clean is accepted for interface
// compatibility; a TCP close is a TCP close either way.
func (c *Conn) Break(clean bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

// PeerID implements api.Transport, returning the remote address.
func (c *Conn) PeerID() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return "unknown"
}

// Sink is the subset of websocket.Endpoint that ReadLoop needs to
// feed: Deliver for incoming bytes, NotifyBroken once the loop ends.
type Sink interface {
	Deliver(data []byte) error
	NotifyBroken(graceful bool)
}

// ReadLoop blocks, reading from conn and calling sink.Deliver for each
// chunk read, until the connection ends or a read error occurs, at
// which point it calls sink.NotifyBroken and returns. Callers run this
// in their own goroutine, once per connection — the engine itself
// never starts it automatically.
func ReadLoop(c *Conn, sink Sink) {
	for {
		buf := c.pool.Get()
		buf = buf[:cap(buf)]
		n, err := c.conn.Read(buf)
		if n > 0 {
			if derr := sink.Deliver(buf[:n]); derr != nil {
				c.pool.Put(buf)
				sink.NotifyBroken(false)
				return
			}
		}
		c.pool.Put(buf)
		if err != nil {
			graceful := errors.Is(err, io.EOF)
			sink.NotifyBroken(graceful)
			return
		}
	}
}
