package udpchan

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLoopback(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func newPair(t *testing.T) (sender *Channel, receiver *Channel) {
	t.Helper()
	senderConn := newLoopback(t)
	receiverConn := newLoopback(t)
	sender = New(senderConn, WithPacketTimeout(200*time.Millisecond), WithHandshakeTimeout(300*time.Millisecond))
	receiver = New(receiverConn, WithPacketTimeout(200*time.Millisecond), WithHandshakeTimeout(300*time.Millisecond))
	return sender, receiver
}

func TestSizeZeroMessage(t *testing.T) {
	sender, receiver := newPair(t)
	receiverAddr := receiver.conn.LocalAddr().(*net.UDPAddr)

	errCh := make(chan error, 1)
	go func() { errCh <- sender.Send([]byte{}, receiverAddr) }()

	got, err := receiver.Receive()
	require.NoError(t, err)
	assert.Equal(t, []byte{}, got)
	require.NoError(t, <-errCh)

	assert.Equal(t, sender.conn.LocalAddr().(*net.UDPAddr).Port, receiver.LastPeer().Port)
}

func TestMessageUnderOnePacket(t *testing.T) {
	sender, receiver := newPair(t)
	receiverAddr := receiver.conn.LocalAddr().(*net.UDPAddr)

	payload := []byte("hello reliable udp")
	errCh := make(chan error, 1)
	go func() { errCh <- sender.Send(payload, receiverAddr) }()

	got, err := receiver.Receive()
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	require.NoError(t, <-errCh)
}

func TestMessageExactlyMaxDataProducesOnePacket(t *testing.T) {
	assert.Equal(t, 1, numPackets(MaxData))
}

func TestMessageMaxDataPlusOneProducesTwoPackets(t *testing.T) {
	assert.Equal(t, 2, numPackets(MaxData+1))
}

func TestMultiPacketRoundTrip(t *testing.T) {
	sender, receiver := newPair(t)
	receiverAddr := receiver.conn.LocalAddr().(*net.UDPAddr)

	payload := make([]byte, MaxData+100)
	for i := range payload {
		payload[i] = byte(i % 251)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- sender.Send(payload, receiverAddr) }()

	got, err := receiver.Receive()
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	require.NoError(t, <-errCh)
}

func TestForeignPacketDuringReceiveIsDiscarded(t *testing.T) {
	sender, receiver := newPair(t)
	receiverAddr := receiver.conn.LocalAddr().(*net.UDPAddr)

	payload := []byte("genuine payload")
	errCh := make(chan error, 1)
	go func() {
		// drive the sending side by hand so a packet can be slipped in
		// between the handshake ack and the real burst
		const id int32 = 7
		hs := encodeHandshake(handshakePacket{id: id, size: int32(len(payload))})
		if _, err := sender.conn.WriteToUDP(hs, receiverAddr); err != nil {
			errCh <- err
			return
		}
		ack := make([]byte, MaxDatagram)
		if _, _, err := sender.conn.ReadFromUDP(ack); err != nil {
			errCh <- err
			return
		}
		// a data packet with the right tag but a wrong id, after the handshake
		foreign := encodeDataPacket(dataPacket{id: 424242, index: 0, chunk: []byte("forged")})
		_, _ = sender.conn.WriteToUDP(foreign, receiverAddr)
		_, err := sender.conn.WriteToUDP(encodeDataPacket(dataPacket{id: id, index: 0, chunk: payload}), receiverAddr)
		errCh <- err
	}()

	got, err := receiver.Receive()
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	require.NoError(t, <-errCh)
}

func TestReceiveHandshakeTimeout(t *testing.T) {
	_, receiver := newPair(t)
	_, err := receiver.Receive()
	require.Error(t, err)
	var uerr *Error
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, ErrTimeout, uerr.Kind)
	assert.False(t, uerr.Critical())
}

func TestSendUnexpectedAckTag(t *testing.T) {
	sender, _ := newPair(t)
	impostor := newLoopback(t)
	impostorAddr := impostor.LocalAddr().(*net.UDPAddr)

	go func() {
		buf := make([]byte, MaxDatagram)
		_, from, err := impostor.ReadFromUDP(buf)
		if err != nil {
			return
		}
		// reply with a data-tagged packet instead of a handshake ack
		bogus := encodeDataPacket(dataPacket{id: 1, index: 0, chunk: []byte("x")})
		_, _ = impostor.WriteToUDP(bogus, from)
	}()

	err := sender.Send([]byte("hi"), impostorAddr)
	require.Error(t, err)
	var uerr *Error
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, ErrUnexpectedPacket, uerr.Kind)
}
