// Package server implements the TCP and UDP server loops from spec.md §4.6:
// TCP accepts a connection per task and serves frames until the peer or the
// server closes the socket; UDP runs a single receive/dispatch/reply loop.
package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/marmos91/wirerpc/internal/descriptor"
	"github.com/marmos91/wirerpc/internal/logger"
	"github.com/marmos91/wirerpc/internal/rpc/dispatch"
	"github.com/marmos91/wirerpc/internal/transport/tcpchan"
	"github.com/marmos91/wirerpc/internal/transport/udpchan"
	"github.com/marmos91/wirerpc/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// Config describes the sockets a Server listens on and the registry it
// dispatches against. Leaving TCPAddr or UDPAddr empty disables that
// transport.
type Config struct {
	TCPAddr  string
	UDPAddr  string
	Registry dispatch.Registry

	// IdleTimeout bounds how long a TCP connection task may block in
	// Receive with no traffic before it is torn down. Zero disables it.
	IdleTimeout time.Duration

	// UDPHandshakeTimeout and UDPPacketTimeout override udpchan's
	// defaults (2000ms / 1000ms) when non-zero.
	UDPHandshakeTimeout time.Duration
	UDPPacketTimeout    time.Duration
}

// Server runs the TCP and/or UDP loops described by its Config.
type Server struct {
	cfg Config

	tcpListener net.Listener
	udpConn     *net.UDPConn

	conns        *connSet
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// New constructs a Server; call Serve to start listening.
func New(cfg Config) *Server {
	return &Server{
		cfg:      cfg,
		conns:    newConnSet(),
		shutdown: make(chan struct{}),
	}
}

// Serve opens the configured sockets and blocks until ctx is cancelled,
// Stop is called, or a fatal error occurs on either loop.
func (s *Server) Serve(ctx context.Context) error {
	if s.cfg.TCPAddr != "" {
		l, err := net.Listen("tcp", s.cfg.TCPAddr)
		if err != nil {
			return newErr(ErrSocketBindFailed, err)
		}
		s.tcpListener = l
	}
	if s.cfg.UDPAddr != "" {
		udpAddr, err := net.ResolveUDPAddr("udp", s.cfg.UDPAddr)
		if err != nil {
			return newErr(ErrSocketCreateFailed, err)
		}
		conn, err := net.ListenUDP("udp", udpAddr)
		if err != nil {
			return newErr(ErrSocketBindFailed, err)
		}
		s.udpConn = conn
	}

	g, gctx := errgroup.WithContext(ctx)
	if s.tcpListener != nil {
		g.Go(func() error { return s.serveTCP(gctx) })
	}
	if s.udpConn != nil {
		g.Go(func() error { return s.serveUDP(gctx) })
	}

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.shutdown:
		}
	}()

	logger.Info("wirerpc server started", "tcp", s.cfg.TCPAddr, "udp", s.cfg.UDPAddr)
	return g.Wait()
}

func (s *Server) serveTCP(ctx context.Context) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := s.tcpListener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return nil
			default:
				return newErr(ErrAcceptFailed, err)
			}
		}

		ch := tcpchan.New(conn)
		s.conns.add(ch)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer s.conns.remove(ch)
			defer ch.Close()
			s.handleConn(ch)
		}()
	}
}

func (s *Server) handleConn(ch *tcpchan.Channel) {
	peer := ch.RemoteAddr().String()
	for {
		if s.cfg.IdleTimeout > 0 {
			_ = ch.SetDeadline(time.Now().Add(s.cfg.IdleTimeout))
		}

		frame, err := ch.Receive()
		if err != nil {
			var terr *tcpchan.Error
			if errors.As(err, &terr) {
				logger.Debug("tcp connection closing", "peer", peer, "kind", terr.Kind.String())
			}
			return
		}

		started := time.Now()
		opName, _ := dispatch.PeekOperationName(frame)
		resp, err := dispatch.Dispatch(s.cfg.Registry, frame)
		metrics.Observe("tcp", opName, started, err)
		if err != nil {
			logger.Warn("dispatch failed", "peer", peer, "error", err)
			continue
		}
		if resp.Descriptor == descriptor.Void {
			continue
		}

		body, err := dispatch.EncodeResponse(resp)
		if err != nil {
			logger.Warn("encoding response failed", "peer", peer, "error", err)
			continue
		}
		if err := ch.Send(body); err != nil {
			logger.Debug("tcp connection closing on send error", "peer", peer, "error", err)
			return
		}
	}
}

func (s *Server) serveUDP(ctx context.Context) error {
	var opts []udpchan.Option
	if s.cfg.UDPHandshakeTimeout > 0 {
		opts = append(opts, udpchan.WithHandshakeTimeout(s.cfg.UDPHandshakeTimeout))
	}
	if s.cfg.UDPPacketTimeout > 0 {
		opts = append(opts, udpchan.WithPacketTimeout(s.cfg.UDPPacketTimeout))
	}
	ch := udpchan.New(s.udpConn, opts...)

	for {
		select {
		case <-s.shutdown:
			return nil
		default:
		}

		payload, err := ch.Receive()
		if err != nil {
			select {
			case <-s.shutdown:
				return nil
			default:
			}
			var uerr *udpchan.Error
			if errors.As(err, &uerr) {
				if uerr.Critical() {
					return newErr(ErrUdpCriticalIO, uerr)
				}
				logger.Debug("udp receive error", "kind", uerr.Kind.String())
				continue
			}
			return newErr(ErrUdpCriticalIO, err)
		}

		started := time.Now()
		opName, _ := dispatch.PeekOperationName(payload)
		resp, err := dispatch.Dispatch(s.cfg.Registry, payload)
		metrics.Observe("udp", opName, started, err)
		if err != nil {
			logger.Warn("dispatch failed", "error", err)
			continue
		}
		if resp.Descriptor == descriptor.Void {
			continue
		}

		body, err := dispatch.EncodeResponse(resp)
		if err != nil {
			logger.Warn("encoding response failed", "error", err)
			continue
		}
		if err := ch.Send(body, ch.LastPeer()); err != nil {
			logger.Warn("udp reply send failed", "peer", ch.LastPeer(), "error", err)
		}
	}
}

// Stop closes both listening sockets and every live TCP connection,
// unblocking their in-flight Accept/Receive calls cooperatively.
func (s *Server) Stop() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)
		if s.tcpListener != nil {
			_ = s.tcpListener.Close()
		}
		if s.udpConn != nil {
			_ = s.udpConn.Close()
		}
		s.conns.closeAll()
	})
}

// Addr returns the TCP listener's bound address, or "" if TCP is disabled.
func (s *Server) Addr() string {
	if s.tcpListener == nil {
		return ""
	}
	return s.tcpListener.Addr().String()
}

// UDPAddr returns the UDP socket's bound address, or "" if UDP is disabled.
func (s *Server) UDPAddr() string {
	if s.udpConn == nil {
		return ""
	}
	return s.udpConn.LocalAddr().String()
}

// LiveConnections reports the number of currently-open TCP connections.
func (s *Server) LiveConnections() int {
	return s.conns.len()
}
