// Package tcpchan implements the length-prefixed TCP framed channel from
// spec.md §4.2: one message per `[i32 big-endian length][payload]` frame,
// send and receive each completing in a single call with no partial-frame
// state surfacing to the caller.
package tcpchan

import (
	"encoding/binary"
	"io"
	"net"
	"sync"
	"time"
)

// MaxFrameSize bounds the length prefix a peer may announce. It exists to
// keep a hostile or buggy peer from making receive() allocate unboundedly;
// spec.md leaves the codec itself uncapped (§9 Open Questions) but the
// transport-level FrameTooLarge error kind is named explicitly in §7.
const MaxFrameSize = 64 * 1024 * 1024

type state int

const (
	stateOpen state = iota
	stateClosed
)

// Channel wraps a net.Conn with the frame protocol. A Channel exclusively
// owns its connection; Send/Receive are not safe to call concurrently with
// each other from multiple goroutines (the client invoker serializes them).
type Channel struct {
	conn net.Conn

	mu    sync.Mutex
	state state
}

// New wraps an already-connected net.Conn (TCP, or any byte stream) in a framed Channel.
func New(conn net.Conn) *Channel {
	return &Channel{conn: conn, state: stateOpen}
}

// Send writes one frame: a 4-byte big-endian length followed by payload.
func (c *Channel) Send(payload []byte) error {
	c.mu.Lock()
	st := c.state
	c.mu.Unlock()
	if st == stateClosed {
		return newErr(ErrNotConnected, "send on closed channel", nil)
	}

	header := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(header[:4], uint32(len(payload)))
	copy(header[4:], payload)

	if _, err := c.conn.Write(header); err != nil {
		return newErr(ErrIO, "write frame", err)
	}
	return nil
}

// Receive reads exactly one frame and returns its payload.
func (c *Channel) Receive() ([]byte, error) {
	c.mu.Lock()
	st := c.state
	c.mu.Unlock()
	if st == stateClosed {
		return nil, newErr(ErrNotConnected, "receive on closed channel", nil)
	}

	var headerBuf [4]byte
	if _, err := io.ReadFull(c.conn, headerBuf[:]); err != nil {
		if err == io.EOF {
			return nil, newErr(ErrChannelClosed, "peer closed the connection", err)
		}
		if err == io.ErrUnexpectedEOF {
			return nil, newErr(ErrShortHeader, "stream ended partway through the length prefix", err)
		}
		return nil, newErr(ErrIO, "read frame header", err)
	}

	length := binary.BigEndian.Uint32(headerBuf[:])
	if length > MaxFrameSize {
		return nil, newErr(ErrFrameTooLarge, "announced frame exceeds MaxFrameSize", nil)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(c.conn, payload); err != nil {
		return nil, newErr(ErrIO, "read frame payload", err)
	}
	return payload, nil
}

// Close idempotently closes the underlying connection.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == stateClosed {
		return nil
	}
	c.state = stateClosed
	return c.conn.Close()
}

// RemoteAddr returns the peer address, for logging.
func (c *Channel) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// SetDeadline forwards to the underlying connection. The server loop uses
// this to bound an otherwise-idle connection's blocking Receive
// (SPEC_FULL.md §12, grounded on the teacher's handleTCPConn).
func (c *Channel) SetDeadline(t time.Time) error {
	return c.conn.SetDeadline(t)
}
