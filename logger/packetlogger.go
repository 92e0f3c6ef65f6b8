// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package logger // import "github.com/facebookarchive/profilo-sub011/logger"

import (
	"sync/atomic"

	"github.com/facebookarchive/profilo-sub011/buffer"
)

// PacketLogger splits serialized entries into packets and writes them to a
// TraceBuffer.
type PacketLogger struct {
	buf     *buffer.TraceBuffer
	streams atomic.Uint32
}

// NewPacketLogger returns a PacketLogger writing to buf.
func NewPacketLogger(buf *buffer.TraceBuffer) *PacketLogger {
	return &PacketLogger{buf: buf}
}

// Write stores payload as one stream of packets. An empty payload is stored
// as a single empty packet.
func (l *PacketLogger) Write(payload []byte) {
	var p buffer.Packet
	p.Stream = buffer.StreamID(l.streams.Add(1))
	p.Start = true

	for {
		n := copy(p.Data[:], payload)
		payload = payload[n:]
		p.Size = uint16(n)
		p.Next = len(payload) > 0
		l.buf.Write(&p)
		if !p.Next {
			return
		}
		p.Start = false
	}
}

// Buffer returns the buffer packets are written to.
func (l *PacketLogger) Buffer() *buffer.TraceBuffer {
	return l.buf
}
