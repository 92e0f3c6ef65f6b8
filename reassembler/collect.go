// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package reassembler // import "github.com/facebookarchive/profilo-sub011/reassembler"

import (
	"slices"

	"github.com/facebookarchive/profilo-sub011/buffer"
)

// CollectBackwards reads buf from its newest packet towards older ones until
// the reader is lapped or the first index is reached. It returns the complete
// payloads in write order together with the reassembly counters. Streams
// whose start was already overwritten are dropped. Slots that were claimed
// but never published are counted as dropped and skipped.
func CollectBackwards(buf *buffer.TraceBuffer, poolSize int) ([][]byte, Stats) {
	var payloads [][]byte
	r := New(poolSize, func(payload []byte) {
		payloads = append(payloads, slices.Clone(payload))
	})

	var p buffer.Packet
	c := buf.CurrentHead()
walk:
	for c.MoveBackward() {
		switch buf.TryRead(c, &p) {
		case buffer.ReadOK:
			r.ProcessBackwards(&p)
		case buffer.ReadEmpty:
			// A writer took the ticket and died before publishing it.
			r.stats.Dropped++
		case buffer.ReadLapped:
			break walk
		}
	}
	r.stats.Dropped += uint64(r.pendingPackets())
	r.Reset()

	slices.Reverse(payloads)
	return payloads, r.Stats()
}

func (r *Reassembler) pendingPackets() int {
	n := 0
	for _, s := range r.active {
		n += len(s.sizes)
	}
	return n
}
