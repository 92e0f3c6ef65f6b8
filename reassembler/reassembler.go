// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package reassembler rebuilds serialized entries from the packets they were
// split into. Packets can be fed in write order while draining live, or in
// reverse order while recovering a buffer from its newest packet backwards.
package reassembler // import "github.com/facebookarchive/profilo-sub011/reassembler"

import (
	log "github.com/sirupsen/logrus"

	"github.com/facebookarchive/profilo-sub011/buffer"
)

// DefaultPoolSize is the number of stream buffers kept for reuse.
const DefaultPoolSize = 8

// Callback receives a complete payload. The slice is only valid during the
// call.
type Callback func(payload []byte)

type stream struct {
	id   buffer.StreamID
	data []byte
	// Fragment sizes in arrival order, used when reassembling backwards.
	sizes []int
}

// Stats counts reassembly events since the last call to Stats.
type Stats struct {
	// Dropped is the number of packets discarded because their stream
	// could not be completed, plus slots that were never published.
	Dropped uint64
	// PoolMisses is the number of streams that needed a fresh buffer.
	PoolMisses uint64
}

// Reassembler is a per-consumer packet reassembler. It is not safe for
// concurrent use.
type Reassembler struct {
	callback Callback
	poolSize int
	free     []*stream
	active   []*stream
	assembly []byte
	stats    Stats
}

// New returns a Reassembler keeping up to poolSize stream buffers for reuse.
func New(poolSize int, callback Callback) *Reassembler {
	if poolSize < 0 {
		poolSize = 0
	}
	r := &Reassembler{
		callback: callback,
		poolSize: poolSize,
		free:     make([]*stream, 0, poolSize),
	}
	for range poolSize {
		r.free = append(r.free, &stream{
			data: make([]byte, 0, 2*buffer.MaxPayloadSize),
		})
	}
	return r
}

// Process handles a packet read in write order.
func (r *Reassembler) Process(p *buffer.Packet) {
	payload := p.Payload()

	if p.Start {
		if s := r.find(p.Stream); s != nil {
			// The rest of the previous stream with this id was lost.
			r.stats.Dropped += uint64(len(s.sizes))
			r.release(s)
		}
		if !p.Next {
			r.callback(payload)
			return
		}
		s := r.acquire(p.Stream)
		s.data = append(s.data, payload...)
		s.sizes = append(s.sizes, len(payload))
		return
	}

	s := r.find(p.Stream)
	if s == nil {
		log.Debugf("Dropping continuation packet of unknown stream %d", p.Stream)
		r.stats.Dropped++
		return
	}
	s.data = append(s.data, payload...)
	s.sizes = append(s.sizes, len(payload))
	if p.Next {
		return
	}
	r.callback(s.data)
	r.release(s)
}

// ProcessBackwards handles a packet read in reverse write order. The payloads
// handed to the callback are identical to the ones Process produces.
func (r *Reassembler) ProcessBackwards(p *buffer.Packet) {
	payload := p.Payload()
	s := r.find(p.Stream)

	if !p.Next {
		// Last packet of a stream, which is the first one seen backwards.
		if s != nil {
			log.Debugf("Dropping incomplete stream %d", p.Stream)
			r.stats.Dropped += uint64(len(s.sizes))
			r.release(s)
		}
		if p.Start {
			r.callback(payload)
			return
		}
		s = r.acquire(p.Stream)
		s.data = append(s.data, payload...)
		s.sizes = append(s.sizes, len(payload))
		return
	}

	if s == nil {
		// The later packets of this stream were not seen.
		r.stats.Dropped++
		return
	}
	s.data = append(s.data, payload...)
	s.sizes = append(s.sizes, len(payload))
	if !p.Start {
		return
	}

	// Fragments were stored newest first. Emit them oldest first.
	r.assembly = r.assembly[:0]
	end := len(s.data)
	for i := len(s.sizes) - 1; i >= 0; i-- {
		start := end - s.sizes[i]
		r.assembly = append(r.assembly, s.data[start:end]...)
		end = start
	}
	r.callback(r.assembly)
	r.release(s)
}

// Reset drops all partially reassembled streams.
func (r *Reassembler) Reset() {
	for len(r.active) > 0 {
		r.release(r.active[len(r.active)-1])
	}
}

// Pending returns the number of partially reassembled streams.
func (r *Reassembler) Pending() int {
	return len(r.active)
}

// Stats returns and resets the reassembly counters.
func (r *Reassembler) Stats() Stats {
	s := r.stats
	r.stats = Stats{}
	return s
}

func (r *Reassembler) find(id buffer.StreamID) *stream {
	for _, s := range r.active {
		if s.id == id {
			return s
		}
	}
	return nil
}

func (r *Reassembler) acquire(id buffer.StreamID) *stream {
	var s *stream
	if n := len(r.free); n > 0 {
		s = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		r.stats.PoolMisses++
		s = &stream{}
	}
	s.id = id
	s.data = s.data[:0]
	s.sizes = s.sizes[:0]
	r.active = append(r.active, s)
	return s
}

func (r *Reassembler) release(s *stream) {
	for i, a := range r.active {
		if a == s {
			last := len(r.active) - 1
			r.active[i] = r.active[last]
			r.active[last] = nil
			r.active = r.active[:last]
			break
		}
	}
	if len(r.free) < r.poolSize {
		r.free = append(r.free, s)
	}
}
