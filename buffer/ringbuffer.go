// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package buffer implements the lock-free ring buffer that producers write
// packets into and consumers drain forward or backward.
//
// The buffer lives in a caller supplied memory region so it can be placed in
// shared or file-backed memory and be recovered after the writing process
// died. Every slot is guarded by a sequence word: a writer claims the slot for
// its turn, stores the packet and publishes it. Readers validate the sequence
// before and after copying, so a torn read is reported as lapped instead of
// being returned.
package buffer // import "github.com/facebookarchive/profilo-sub011/buffer"

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"unsafe"
)

const (
	// DefaultSlots is the default capacity in packets.
	DefaultSlots = 1000

	// Version is the layout version stored in the region header.
	Version = 1

	regionMagic = 0x70726f66

	// Number of failed slot claims before the writer yields its processor.
	maxSpins = 64
)

var (
	// ErrInvalidSlots is returned for a capacity below one slot.
	ErrInvalidSlots = errors.New("ring buffer needs at least one slot")
	// ErrRegionTooSmall is returned when a region cannot hold the buffer.
	ErrRegionTooSmall = errors.New("region too small for ring buffer")
	// ErrMisaligned is returned when a region is not 8 byte aligned.
	ErrMisaligned = errors.New("region not 8 byte aligned")
	// ErrBadRegion is returned when attaching to a region that was not
	// initialized by Init or has an incompatible layout.
	ErrBadRegion = errors.New("region does not contain a ring buffer")
)

// ReadStatus is the outcome of a TryRead.
type ReadStatus int

const (
	// ReadOK means the packet was copied.
	ReadOK ReadStatus = iota
	// ReadEmpty means the slot for the cursor was not published yet.
	ReadEmpty
	// ReadLapped means the writer overwrote, or is overwriting, the slot.
	ReadLapped
)

func (s ReadStatus) String() string {
	switch s {
	case ReadOK:
		return "ok"
	case ReadEmpty:
		return "empty"
	case ReadLapped:
		return "lapped"
	}
	return fmt.Sprintf("ReadStatus(%d)", int(s))
}

type regionHeader struct {
	magic   uint32
	version uint32
	slots   uint64
	head    atomic.Uint64
	_       [5]uint64
}

// slot.seq is 2*turn while free for turn, 2*turn+1 while the writer of turn
// stores, and 2*(turn+1) once that write is published.
type slot struct {
	seq   atomic.Uint64
	words [packetWords]atomic.Uint64
}

const (
	regionHeaderSize = int(unsafe.Sizeof(regionHeader{}))
	slotSize         = int(unsafe.Sizeof(slot{}))
)

// TraceBuffer is a fixed capacity multi-producer ring buffer of packets.
// All methods are safe for concurrent use.
type TraceBuffer struct {
	hdr      *regionHeader
	slots    []slot
	capacity uint64
}

// RegionSize returns the number of bytes a region for the given number of
// slots needs.
func RegionSize(slots int) int {
	return regionHeaderSize + slots*slotSize
}

// New allocates a private region and initializes a buffer in it.
func New(slots int) (*TraceBuffer, error) {
	if slots < 1 {
		return nil, ErrInvalidSlots
	}
	words := make([]uint64, (RegionSize(slots)+7)/8)
	region := unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), len(words)*8)
	return Init(region, slots)
}

// Init formats region as an empty buffer. The buffer borrows region and the
// caller keeps ownership of it.
func Init(region []byte, slots int) (*TraceBuffer, error) {
	if slots < 1 {
		return nil, ErrInvalidSlots
	}
	if err := checkRegion(region, slots); err != nil {
		return nil, err
	}
	clear(region[:RegionSize(slots)])
	b := mapRegion(region, slots)
	b.hdr.magic = regionMagic
	b.hdr.version = Version
	b.hdr.slots = uint64(slots)
	return b, nil
}

// Attach adopts a region previously formatted by Init, for instance one that
// was written by another process.
func Attach(region []byte) (*TraceBuffer, error) {
	if len(region) < regionHeaderSize {
		return nil, ErrRegionTooSmall
	}
	if uintptr(unsafe.Pointer(&region[0]))%8 != 0 {
		return nil, ErrMisaligned
	}
	hdr := (*regionHeader)(unsafe.Pointer(&region[0]))
	if hdr.magic != regionMagic {
		return nil, fmt.Errorf("%w: bad magic 0x%x", ErrBadRegion, hdr.magic)
	}
	if hdr.version != Version {
		return nil, fmt.Errorf("%w: version %d, expected %d", ErrBadRegion,
			hdr.version, Version)
	}
	if hdr.slots < 1 || hdr.slots > uint64(len(region)) {
		return nil, fmt.Errorf("%w: invalid slot count %d", ErrBadRegion, hdr.slots)
	}
	slots := int(hdr.slots)
	if err := checkRegion(region, slots); err != nil {
		return nil, err
	}
	return mapRegion(region, slots), nil
}

func checkRegion(region []byte, slots int) error {
	if len(region) < RegionSize(slots) {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrRegionTooSmall,
			RegionSize(slots), len(region))
	}
	if uintptr(unsafe.Pointer(&region[0]))%8 != 0 {
		return ErrMisaligned
	}
	return nil
}

func mapRegion(region []byte, slots int) *TraceBuffer {
	return &TraceBuffer{
		hdr:      (*regionHeader)(unsafe.Pointer(&region[0])),
		slots:    unsafe.Slice((*slot)(unsafe.Pointer(&region[regionHeaderSize])), slots),
		capacity: uint64(slots),
	}
}

// Capacity returns the number of slots.
func (b *TraceBuffer) Capacity() int {
	return int(b.capacity)
}

// Head returns the index the next write will be assigned.
func (b *TraceBuffer) Head() uint64 {
	return b.hdr.head.Load()
}

// Write stores p in the next slot and returns the index it was assigned.
// Write never blocks on readers. It only waits when a full lap of writers
// reaches a slot whose previous write is still in flight.
func (b *TraceBuffer) Write(p *Packet) uint64 {
	var words [packetWords]uint64
	p.words(&words)

	ticket := b.hdr.head.Add(1) - 1
	s := &b.slots[ticket%b.capacity]
	turn := ticket / b.capacity

	for spins := 0; !s.seq.CompareAndSwap(2*turn, 2*turn+1); spins++ {
		if spins >= maxSpins {
			runtime.Gosched()
		}
	}
	for i := range words {
		s.words[i].Store(words[i])
	}
	s.seq.Store(2*turn + 2)
	return ticket
}

// TryRead copies the packet at c into p.
func (b *TraceBuffer) TryRead(c Cursor, p *Packet) ReadStatus {
	head := b.hdr.head.Load()
	if c.index >= head {
		return ReadEmpty
	}
	if head-c.index > b.capacity {
		return ReadLapped
	}

	s := &b.slots[c.index%b.capacity]
	want := 2 * (c.index/b.capacity + 1)
	seq := s.seq.Load()
	if seq < want {
		return ReadEmpty
	}
	if seq > want {
		return ReadLapped
	}

	var words [packetWords]uint64
	for i := range words {
		words[i] = s.words[i].Load()
	}
	if s.seq.Load() != want {
		return ReadLapped
	}
	p.fromWords(&words)
	return ReadOK
}

// CurrentHead returns a cursor at the index the next write will be assigned.
func (b *TraceBuffer) CurrentHead() Cursor {
	return Cursor{index: b.hdr.head.Load()}
}

// CurrentTail returns a cursor at the oldest index still held by the buffer.
func (b *TraceBuffer) CurrentTail() Cursor {
	head := b.hdr.head.Load()
	if head <= b.capacity {
		return Cursor{}
	}
	return Cursor{index: head - b.capacity}
}

// CursorAt returns a cursor at an absolute index.
func (b *TraceBuffer) CursorAt(index uint64) Cursor {
	return Cursor{index: index}
}

// Cursor is an absolute, never wrapping position in a TraceBuffer.
type Cursor struct {
	index uint64
}

// Index returns the absolute index of the cursor.
func (c Cursor) Index() uint64 {
	return c.index
}

// MoveForward advances the cursor by one slot.
func (c *Cursor) MoveForward() {
	c.index++
}

// MoveBackward moves the cursor back by one slot and reports false if it is
// already at the first index.
func (c *Cursor) MoveBackward() bool {
	if c.index == 0 {
		return false
	}
	c.index--
	return true
}
