// Package client implements the RPC client invoker from spec.md §4.5: it
// encodes an operation call, sends it over a channel, and (for non-void
// operations) waits for and decodes the reply, all under a per-invoker
// mutex so a single Channel can be shared safely by concurrent callers.
package client

import (
	"bytes"
	"sync"

	"github.com/marmos91/wirerpc/internal/codec"
	"github.com/marmos91/wirerpc/internal/descriptor"
)

// Channel is the transport surface an Invoker drives. tcpchan.Channel and
// udpchan.DialedChannel both satisfy it.
type Channel interface {
	Send(payload []byte) error
	Receive() ([]byte, error)
}

// Arg pairs a value with the descriptor to encode it as.
type Arg struct {
	Desc  *descriptor.Descriptor
	Value any
}

var operationNameDescriptor = &descriptor.Descriptor{Kind: descriptor.KindUtf8String}

// Invoker serializes calls over a single Channel. Per spec.md §5, holding
// the reply read inside the send/receive critical section is deliberate:
// it pairs one request with exactly one reply on a channel that carries no
// correlation id of its own.
type Invoker struct {
	ch Channel
	mu sync.Mutex
}

// New wraps ch in an Invoker.
func New(ch Channel) *Invoker {
	return &Invoker{ch: ch}
}

// Invoke calls operation with args, returning the decoded reply value. If
// returnDesc is descriptor.Void, Invoke sends the request but neither
// waits for nor decodes a reply, and returns (nil, nil).
func (inv *Invoker) Invoke(returnDesc *descriptor.Descriptor, operation string, args ...Arg) (any, error) {
	var buf bytes.Buffer
	if err := codec.Encode(&buf, operationNameDescriptor, &operation); err != nil {
		return nil, &Error{Operation: operation, Cause: err}
	}
	for _, a := range args {
		if err := codec.Encode(&buf, a.Desc, a.Value); err != nil {
			return nil, &Error{Operation: operation, Cause: err}
		}
	}

	inv.mu.Lock()
	defer inv.mu.Unlock()

	if err := inv.ch.Send(buf.Bytes()); err != nil {
		return nil, &Error{Operation: operation, Cause: err}
	}

	if returnDesc == descriptor.Void {
		return nil, nil
	}

	reply, err := inv.ch.Receive()
	if err != nil {
		return nil, &Error{Operation: operation, Cause: err}
	}

	value, err := codec.Decode(bytes.NewReader(reply), returnDesc)
	if err != nil {
		return nil, &Error{Operation: operation, Cause: err}
	}
	return value, nil
}
