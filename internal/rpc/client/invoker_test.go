package client

import (
	"net"
	"testing"

	"github.com/marmos91/wirerpc/internal/descriptor"
	"github.com/marmos91/wirerpc/internal/rpc/dispatch"
	"github.com/marmos91/wirerpc/internal/transport/tcpchan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var stringDesc = &descriptor.Descriptor{Kind: descriptor.KindUtf8String}

// serveOnePipedRequest runs one dispatch-and-reply cycle on the server end
// of a net.Pipe, emulating a single connection's worth of server.go so the
// invoker can be exercised end-to-end without a real listening socket.
func serveOnePipedRequest(t *testing.T, serverSide *tcpchan.Channel, table dispatch.Table) {
	t.Helper()
	go func() {
		req, err := serverSide.Receive()
		if err != nil {
			return
		}
		resp, err := dispatch.Dispatch(table, req)
		if err != nil {
			return
		}
		if resp.Descriptor == descriptor.Void {
			return
		}
		body, err := dispatch.EncodeResponse(resp)
		if err != nil {
			return
		}
		_ = serverSide.Send(body)
	}()
}

func TestInvokeEchoRoundTrip(t *testing.T) {
	a, b := net.Pipe()
	clientSide := tcpchan.New(a)
	serverSide := tcpchan.New(b)
	defer clientSide.Close()
	defer serverSide.Close()

	table := dispatch.Table{
		"echo": &dispatch.Operation{
			ArgDescriptors:   []*descriptor.Descriptor{stringDesc},
			ReturnDescriptor: stringDesc,
			Call: func(args []any) (any, error) {
				return args[0], nil
			},
		},
	}
	serveOnePipedRequest(t, serverSide, table)

	inv := New(clientSide)
	value, err := inv.Invoke(stringDesc, "echo", Arg{Desc: stringDesc, Value: strPtr("hi")})
	require.NoError(t, err)
	got, ok := value.(*string)
	require.True(t, ok)
	assert.Equal(t, "hi", *got)
}

func TestInvokeVoidOperationDoesNotWaitForReply(t *testing.T) {
	a, b := net.Pipe()
	clientSide := tcpchan.New(a)
	serverSide := tcpchan.New(b)
	defer clientSide.Close()
	defer serverSide.Close()

	received := make(chan struct{})
	go func() {
		_, _ = serverSide.Receive()
		close(received)
	}()

	inv := New(clientSide)
	value, err := inv.Invoke(descriptor.Void, "fireAndForget")
	require.NoError(t, err)
	assert.Nil(t, value)

	<-received
}

func strPtr(s string) *string { return &s }
