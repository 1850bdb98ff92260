// Package udpchan implements the UDP reliable-message protocol from
// spec.md §4.3: a handshake datagram announcing a message's id and size,
// followed by a burst of index-addressed data packets, with a single
// acknowledgment gating the whole exchange.
package udpchan

import (
	"encoding/binary"
	"math/rand/v2"
	"net"
	"sync"
	"time"
)

const (
	defaultHandshakeTimeout = 2000 * time.Millisecond
	defaultPacketTimeout    = 1000 * time.Millisecond
)

// Channel wraps a bound, unconnected UDP socket with the reliable-message
// protocol. Send and Receive each own the socket's read deadline for the
// duration of the call; a Channel is not safe for concurrent Send/Receive
// from multiple goroutines (the server loop and client invoker each use
// one Channel from a single goroutine).
type Channel struct {
	conn *net.UDPConn

	handshakeTimeout time.Duration
	packetTimeout    time.Duration

	mu       sync.Mutex
	lastPeer *net.UDPAddr
}

// Option configures a Channel at construction.
type Option func(*Channel)

// WithPacketTimeout overrides the default 1000ms per-packet timeout.
func WithPacketTimeout(d time.Duration) Option {
	return func(c *Channel) { c.packetTimeout = d }
}

// WithHandshakeTimeout overrides the default 2000ms handshake wait.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Channel) { c.handshakeTimeout = d }
}

// New wraps conn. conn should already be bound (via net.ListenUDP) and not
// dialed to any particular peer. Receive accepts data packets only from the
// address that sent the handshake. Send does not filter by address: it
// takes the first datagram that arrives as the handshake acknowledgment,
// whatever its source.
func New(conn *net.UDPConn, opts ...Option) *Channel {
	c := &Channel{
		conn:             conn,
		handshakeTimeout: defaultHandshakeTimeout,
		packetTimeout:    defaultPacketTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LastPeer returns the address recorded by the most recent successful
// Receive, used by the server loop to address its reply.
func (c *Channel) LastPeer() *net.UDPAddr {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPeer
}

// Send transmits payload to peer using the handshake-then-burst protocol.
func (c *Channel) Send(payload []byte, peer *net.UDPAddr) error {
	n := numPackets(len(payload))
	if n > MaxPackets {
		return newErr(ErrOutOfBounds, "message requires more than MaxPackets data packets", nil)
	}

	id := rand.Int32()
	hs := encodeHandshake(handshakePacket{id: id, size: int32(len(payload))})
	if _, err := c.conn.WriteToUDP(hs, peer); err != nil {
		return newErr(ErrSocket, "writing handshake", err)
	}

	if err := c.conn.SetReadDeadline(time.Now().Add(c.packetTimeout)); err != nil {
		return newErr(ErrSocket, "arming handshake-ack deadline", err)
	}
	ackBuf := make([]byte, MaxDatagram)
	nRead, _, err := c.conn.ReadFromUDP(ackBuf)
	if err != nil {
		if isTimeout(err) {
			return newErr(ErrTimeout, "waiting for handshake ack", err)
		}
		return newErr(ErrSocket, "reading handshake ack", err)
	}
	if _, err := decodeHandshake(ackBuf[:nRead]); err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		start := i * MaxData
		end := start + MaxData
		if end > len(payload) {
			end = len(payload)
		}
		pkt := encodeDataPacket(dataPacket{id: id, index: int32(i), chunk: payload[start:end]})
		if _, err := c.conn.WriteToUDP(pkt, peer); err != nil {
			return newErr(ErrSocket, "writing data packet", err)
		}
	}
	return nil
}

// Receive waits for a full message and returns its payload. The sender's
// address is recorded and retrievable via LastPeer.
func (c *Channel) Receive() ([]byte, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.handshakeTimeout)); err != nil {
		return nil, newErr(ErrSocket, "arming handshake deadline", err)
	}
	raw := make([]byte, MaxDatagram)
	n, from, err := c.conn.ReadFromUDP(raw)
	if err != nil {
		if isTimeout(err) {
			return nil, newErr(ErrTimeout, "waiting for handshake", err)
		}
		return nil, newErr(ErrSocket, "reading handshake", err)
	}
	hs, err := decodeHandshake(raw[:n])
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.lastPeer = from
	c.mu.Unlock()

	size := int(hs.size)
	count := numPackets(size)
	if count > MaxPackets {
		return nil, newErr(ErrOutOfBounds, "announced size requires more than MaxPackets data packets", nil)
	}
	payload := make([]byte, size)

	ack := encodeHandshake(hs)
	if _, err := c.conn.WriteToUDP(ack, from); err != nil {
		return nil, newErr(ErrSocket, "sending handshake ack", err)
	}

	buf := make([]byte, MaxDatagram)
	foreign := 0
	for i := 0; i < count; i++ {
		for {
			if err := c.conn.SetReadDeadline(time.Now().Add(c.packetTimeout)); err != nil {
				return nil, newErr(ErrSocket, "arming data-packet deadline", err)
			}
			nRead, src, err := c.conn.ReadFromUDP(buf)
			if err != nil {
				if isTimeout(err) {
					return nil, newErr(ErrTimeout, "waiting for data packet", err)
				}
				return nil, newErr(ErrSocket, "reading data packet", err)
			}
			fromPeer := src.Port == from.Port && src.IP.Equal(from.IP)
			if !fromPeer || nRead < 1 || int8(buf[0]) != tagData || !matchesID(buf[:nRead], hs.id) {
				foreign++
				if foreign > maxForeignPackets {
					return nil, newErr(ErrTooManyForeignPackets, "too many foreign packets while filling message", nil)
				}
				continue
			}
			pkt, err := decodeDataPacket(buf[:nRead])
			if err != nil {
				return nil, err
			}
			offset := int(pkt.index) * MaxData
			if offset+len(pkt.chunk) > size {
				return nil, newErr(ErrOutOfBounds, "data packet would write past announced size", nil)
			}
			copy(payload[offset:], pkt.chunk)
			break
		}
	}

	return payload, nil
}

func matchesID(buf []byte, id int32) bool {
	if len(buf) < 5 {
		return false
	}
	return int32(binary.BigEndian.Uint32(buf[1:5])) == id
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

// Close closes the underlying socket.
func (c *Channel) Close() error {
	return c.conn.Close()
}

// DialedChannel pins a Channel to a fixed peer, giving it the same
// Send(payload)/Receive() shape as tcpchan.Channel so the client invoker
// can drive either transport through one interface.
type DialedChannel struct {
	ch   *Channel
	peer *net.UDPAddr
}

// Dial returns a DialedChannel that always addresses peer.
func Dial(conn *net.UDPConn, peer *net.UDPAddr, opts ...Option) *DialedChannel {
	return &DialedChannel{ch: New(conn, opts...), peer: peer}
}

func (d *DialedChannel) Send(payload []byte) error { return d.ch.Send(payload, d.peer) }
func (d *DialedChannel) Receive() ([]byte, error)  { return d.ch.Receive() }
func (d *DialedChannel) Close() error              { return d.ch.Close() }
