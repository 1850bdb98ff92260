package server

import (
	"sync"

	"github.com/marmos91/wirerpc/internal/transport/tcpchan"
)

// connSet is the concurrency-safe set of live TCP connections spec.md §5
// names as the server's only shared mutable state. A single mutex guards
// it, grounded on the teacher's preference for one mutex over lock-free
// structures for small, infrequently-contended sets.
type connSet struct {
	mu    sync.Mutex
	conns map[*tcpchan.Channel]struct{}
}

func newConnSet() *connSet {
	return &connSet{conns: make(map[*tcpchan.Channel]struct{})}
}

func (s *connSet) add(ch *tcpchan.Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[ch] = struct{}{}
}

func (s *connSet) remove(ch *tcpchan.Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, ch)
}

func (s *connSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// closeAll closes every live connection, used during shutdown to unblock
// each connection task's in-flight Receive.
func (s *connSet) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.conns {
		_ = ch.Close()
	}
}
