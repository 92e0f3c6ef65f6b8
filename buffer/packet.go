// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package buffer // import "github.com/facebookarchive/profilo-sub011/buffer"

import "encoding/binary"

const (
	// PacketSize is the size of one packet including its header.
	PacketSize = 128
	// PacketHeaderSize is the size of the packet header.
	PacketHeaderSize = 8
	// MaxPayloadSize is the number of payload bytes one packet can carry.
	MaxPayloadSize = PacketSize - PacketHeaderSize

	packetWords = PacketSize / 8

	flagStart = 1 << 0
	flagNext  = 1 << 1
)

// StreamID identifies the packets belonging to one serialized entry.
type StreamID uint32

// Packet is the unit stored in one ring buffer slot.
type Packet struct {
	Stream StreamID
	// Start is set on the first packet of a stream.
	Start bool
	// Next is set on every packet of a stream except the last one.
	Next bool
	// Size is the number of valid bytes in Data.
	Size uint16
	Data [MaxPayloadSize]byte
}

// Payload returns the valid part of Data.
func (p *Packet) Payload() []byte {
	return p.Data[:p.Size]
}

func (p *Packet) header() uint64 {
	var flags uint64
	if p.Start {
		flags |= flagStart
	}
	if p.Next {
		flags |= flagNext
	}
	return uint64(p.Stream) | flags<<32 | uint64(p.Size)<<48
}

func (p *Packet) setHeader(h uint64) {
	p.Stream = StreamID(h)
	flags := (h >> 32) & 0xffff
	p.Start = flags&flagStart != 0
	p.Next = flags&flagNext != 0
	p.Size = uint16(h >> 48)
	if p.Size > MaxPayloadSize {
		p.Size = MaxPayloadSize
	}
}

// words returns the packet in its slot representation.
func (p *Packet) words(dst *[packetWords]uint64) {
	dst[0] = p.header()
	for i := 1; i < packetWords; i++ {
		dst[i] = binary.LittleEndian.Uint64(p.Data[(i-1)*8:])
	}
}

func (p *Packet) fromWords(src *[packetWords]uint64) {
	p.setHeader(src[0])
	for i := 1; i < packetWords; i++ {
		binary.LittleEndian.PutUint64(p.Data[(i-1)*8:], src[i])
	}
}
