package udpchan

import (
	"encoding/binary"
	"fmt"
)

const (
	tagHandshake int8 = -1
	tagData      int8 = -2

	// MaxDatagram is the ceiling on any single UDP datagram this package
	// emits, well under typical path MTU plus headers.
	MaxDatagram = 60000

	// MaxData is the data payload carried by a single data packet:
	// MaxDatagram minus the tag/id/index/chunk-size header fields.
	MaxData = MaxDatagram - 3*4 - 1

	// MaxPackets bounds how many data packets a single message may split
	// into, so a received "message-size" field cannot force an
	// unbounded receive-buffer allocation.
	MaxPackets = 1 << 16

	// maxForeignPackets bounds how many non-matching datagrams a receive
	// will silently discard before giving up (SPEC_FULL.md §12 resolves
	// the "unbounded foreign-packet skip" open question this way).
	maxForeignPackets = 256
)

type handshakePacket struct {
	id   int32
	size int32
}

func encodeHandshake(p handshakePacket) []byte {
	buf := make([]byte, 9)
	tag := tagHandshake
	buf[0] = byte(tag)
	binary.BigEndian.PutUint32(buf[1:5], uint32(p.id))
	binary.BigEndian.PutUint32(buf[5:9], uint32(p.size))
	return buf
}

func decodeHandshake(buf []byte) (handshakePacket, error) {
	if len(buf) == 0 {
		return handshakePacket{}, newErr(ErrUnexpectedPacket, "empty datagram, want handshake", nil)
	}
	if int8(buf[0]) != tagHandshake {
		return handshakePacket{}, newErr(ErrUnexpectedPacket, fmt.Sprintf("tag %d, want handshake", int8(buf[0])), nil)
	}
	if len(buf) != 9 {
		return handshakePacket{}, newErr(ErrUnexpectedPacket, fmt.Sprintf("handshake packet has %d bytes, want 9", len(buf)), nil)
	}
	return handshakePacket{
		id:   int32(binary.BigEndian.Uint32(buf[1:5])),
		size: int32(binary.BigEndian.Uint32(buf[5:9])),
	}, nil
}

type dataPacket struct {
	id    int32
	index int32
	chunk []byte
}

func encodeDataPacket(p dataPacket) []byte {
	buf := make([]byte, 13+len(p.chunk))
	tag := tagData
	buf[0] = byte(tag)
	binary.BigEndian.PutUint32(buf[1:5], uint32(p.id))
	binary.BigEndian.PutUint32(buf[5:9], uint32(p.index))
	binary.BigEndian.PutUint32(buf[9:13], uint32(len(p.chunk)))
	copy(buf[13:], p.chunk)
	return buf
}

func decodeDataPacket(buf []byte) (dataPacket, error) {
	if len(buf) < 13 {
		return dataPacket{}, newErr(ErrUnexpectedPacket, "data packet shorter than header", nil)
	}
	if int8(buf[0]) != tagData {
		return dataPacket{}, newErr(ErrUnexpectedPacket, fmt.Sprintf("tag %d, want data", int8(buf[0])), nil)
	}
	id := int32(binary.BigEndian.Uint32(buf[1:5]))
	index := int32(binary.BigEndian.Uint32(buf[5:9]))
	chunkSize := binary.BigEndian.Uint32(buf[9:13])
	if len(buf[13:]) != int(chunkSize) {
		return dataPacket{}, newErr(ErrUnexpectedPacket, "declared chunk-size does not match datagram length", nil)
	}
	return dataPacket{id: id, index: index, chunk: buf[13:]}, nil
}

func numPackets(size int) int {
	if size == 0 {
		return 0
	}
	return (size + MaxData - 1) / MaxData
}
