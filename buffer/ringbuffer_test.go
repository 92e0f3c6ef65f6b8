// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package buffer

import (
	"encoding/binary"
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makePacket(stream StreamID, value uint64) *Packet {
	p := &Packet{Stream: stream, Start: true, Size: 8}
	binary.LittleEndian.PutUint64(p.Data[:], value)
	return p
}

func packetValue(p *Packet) uint64 {
	return binary.LittleEndian.Uint64(p.Data[:])
}

func TestPacketWordsRoundTrip(t *testing.T) {
	in := Packet{Stream: 0xdeadbeef, Start: true, Next: true, Size: MaxPayloadSize}
	for i := range in.Data {
		in.Data[i] = byte(i)
	}
	var words [packetWords]uint64
	in.words(&words)

	var out Packet
	out.fromWords(&words)
	assert.Equal(t, in, out)
	assert.Len(t, out.Payload(), MaxPayloadSize)
}

func TestWriteRead(t *testing.T) {
	b, err := New(10)
	require.NoError(t, err)

	start := b.CurrentHead()
	var p Packet
	assert.Equal(t, ReadEmpty, b.TryRead(start, &p))

	for i := range 5 {
		idx := b.Write(makePacket(StreamID(i), uint64(i*10)))
		assert.Equal(t, uint64(i), idx)
	}

	c := start
	for i := range 5 {
		require.Equal(t, ReadOK, b.TryRead(c, &p))
		assert.Equal(t, StreamID(i), p.Stream)
		assert.True(t, p.Start)
		assert.False(t, p.Next)
		assert.Equal(t, uint64(i*10), packetValue(&p))
		c.MoveForward()
	}
	assert.Equal(t, ReadEmpty, b.TryRead(c, &p))
}

func TestLapped(t *testing.T) {
	const slots = 10
	b, err := New(slots)
	require.NoError(t, err)

	start := b.CurrentTail()
	for i := range slots + 5 {
		b.Write(makePacket(1, uint64(i)))
	}

	var p Packet
	assert.Equal(t, ReadLapped, b.TryRead(start, &p))
	assert.Equal(t, uint64(5), b.CurrentTail().Index())

	tail := b.CurrentTail()
	require.Equal(t, ReadOK, b.TryRead(tail, &p))
	assert.Equal(t, uint64(5), packetValue(&p))
}

func TestReadBackwards(t *testing.T) {
	const slots = 10
	b, err := New(slots)
	require.NoError(t, err)

	const writes = 25
	for i := range writes {
		b.Write(makePacket(1, uint64(i)))
	}

	c := b.CurrentHead()
	require.True(t, c.MoveBackward())

	var got []uint64
	var p Packet
	for b.TryRead(c, &p) == ReadOK {
		got = append(got, packetValue(&p))
		if !c.MoveBackward() {
			break
		}
	}
	require.Len(t, got, slots)
	for i, v := range got {
		assert.Equal(t, uint64(writes-1-i), v)
	}
}

func TestCursorMoveBackwardAtZero(t *testing.T) {
	var c Cursor
	assert.False(t, c.MoveBackward())
	assert.Equal(t, uint64(0), c.Index())
}

func TestConcurrentWriters(t *testing.T) {
	const (
		writers   = 8
		perWriter = 1000
	)
	b, err := New(writers * perWriter)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWriter {
				b.Write(makePacket(StreamID(w), uint64(w*perWriter+i)))
			}
		}()
	}
	wg.Wait()

	seen := make(map[uint64]bool)
	var p Packet
	c := b.CurrentTail()
	for range writers * perWriter {
		require.Equal(t, ReadOK, b.TryRead(c, &p))
		v := packetValue(&p)
		assert.Equal(t, StreamID(v/perWriter), p.Stream)
		seen[v] = true
		c.MoveForward()
	}
	assert.Len(t, seen, writers*perWriter)
}

func TestConcurrentReaderDoesNotTear(t *testing.T) {
	const slots = 4
	b, err := New(slots)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range 20000 {
			p := makePacket(StreamID(i), uint64(i))
			b.Write(p)
		}
	}()

	var p Packet
	c := b.CurrentHead()
	for {
		select {
		case <-done:
			return
		default:
		}
		switch b.TryRead(c, &p) {
		case ReadOK:
			// Header and payload must come from the same write.
			require.Equal(t, uint64(p.Stream), packetValue(&p))
			c.MoveForward()
		case ReadLapped:
			c = b.CurrentTail()
		case ReadEmpty:
		}
	}
}

func TestRegion(t *testing.T) {
	const slots = 16
	words := make([]uint64, (RegionSize(slots)+8)/8+1)
	region := unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), len(words)*8)

	_, err := Init(region[1:], slots)
	require.ErrorIs(t, err, ErrMisaligned)

	_, err = Init(region[:RegionSize(slots)-1], slots)
	require.ErrorIs(t, err, ErrRegionTooSmall)

	_, err = Init(region, 0)
	require.ErrorIs(t, err, ErrInvalidSlots)

	_, err = Attach(region)
	require.ErrorIs(t, err, ErrBadRegion)

	b, err := Init(region, slots)
	require.NoError(t, err)
	for i := range 3 {
		b.Write(makePacket(7, uint64(i)))
	}

	attached, err := Attach(region)
	require.NoError(t, err)
	assert.Equal(t, slots, attached.Capacity())
	assert.Equal(t, uint64(3), attached.Head())

	var p Packet
	require.Equal(t, ReadOK, attached.TryRead(attached.CursorAt(2), &p))
	assert.Equal(t, uint64(2), packetValue(&p))
}
