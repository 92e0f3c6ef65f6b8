// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package entries // import "github.com/facebookarchive/profilo-sub011/entries"

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"slices"
)

const (
	// StandardEntrySize is the encoded size of a StandardEntry.
	StandardEntrySize = 1 + 4 + 1 + 8 + 4 + 4 + 4 + 8
	// FramesEntryHeaderSize is the encoded size of a FramesEntry without frames.
	FramesEntryHeaderSize = 1 + 4 + 1 + 8 + 4 + 2
	// BytesEntryHeaderSize is the encoded size of a BytesEntry without payload.
	BytesEntryHeaderSize = 1 + 4 + 1 + 4 + 2

	// MaxArrayLength is the maximum number of frames or bytes in one entry.
	MaxArrayLength = math.MaxUint16
)

var (
	// ErrUnknownKind is returned when the discriminant byte is not a known Kind.
	ErrUnknownKind = errors.New("unknown entry kind")
	// ErrShortBuffer is returned when a buffer is smaller than the encoding.
	ErrShortBuffer = errors.New("buffer too small for entry")
	// ErrPayloadTooLarge is returned when frames or bytes exceed MaxArrayLength.
	ErrPayloadTooLarge = errors.New("entry payload too large")
)

// CalculateSize returns the number of bytes Pack needs for e.
func CalculateSize(e Entry) int {
	switch e := e.(type) {
	case *StandardEntry:
		return StandardEntrySize
	case *FramesEntry:
		return FramesEntryHeaderSize + 8*len(e.Frames)
	case *BytesEntry:
		return BytesEntryHeaderSize + len(e.Bytes)
	}
	return 0
}

// Pack encodes e into dst and returns the number of bytes written.
func Pack(e Entry, dst []byte) (int, error) {
	switch e := e.(type) {
	case *StandardEntry:
		return PackStandard(e, dst)
	case *FramesEntry:
		return PackFrames(e, dst)
	case *BytesEntry:
		return PackBytes(e, dst)
	}
	return 0, ErrUnknownKind
}

// PackStandard encodes e into dst.
func PackStandard(e *StandardEntry, dst []byte) (int, error) {
	if len(dst) < StandardEntrySize {
		return 0, fmt.Errorf("%w: need %d, have %d", ErrShortBuffer, StandardEntrySize, len(dst))
	}
	dst[0] = byte(KindStandard)
	binary.LittleEndian.PutUint32(dst[1:], uint32(e.ID))
	dst[5] = byte(e.Type)
	binary.LittleEndian.PutUint64(dst[6:], uint64(e.Timestamp))
	binary.LittleEndian.PutUint32(dst[14:], uint32(e.TID))
	binary.LittleEndian.PutUint32(dst[18:], uint32(e.CallID))
	binary.LittleEndian.PutUint32(dst[22:], uint32(e.MatchID))
	binary.LittleEndian.PutUint64(dst[26:], uint64(e.Extra))
	return StandardEntrySize, nil
}

// PackFrames encodes e into dst.
func PackFrames(e *FramesEntry, dst []byte) (int, error) {
	if len(e.Frames) > MaxArrayLength {
		return 0, fmt.Errorf("%w: %d frames", ErrPayloadTooLarge, len(e.Frames))
	}
	size := FramesEntryHeaderSize + 8*len(e.Frames)
	if len(dst) < size {
		return 0, fmt.Errorf("%w: need %d, have %d", ErrShortBuffer, size, len(dst))
	}
	dst[0] = byte(KindFrames)
	binary.LittleEndian.PutUint32(dst[1:], uint32(e.ID))
	dst[5] = byte(e.Type)
	binary.LittleEndian.PutUint64(dst[6:], uint64(e.Timestamp))
	binary.LittleEndian.PutUint32(dst[14:], uint32(e.TID))
	binary.LittleEndian.PutUint16(dst[18:], uint16(len(e.Frames)))
	off := FramesEntryHeaderSize
	for _, f := range e.Frames {
		binary.LittleEndian.PutUint64(dst[off:], uint64(f))
		off += 8
	}
	return size, nil
}

// PackBytes encodes e into dst.
func PackBytes(e *BytesEntry, dst []byte) (int, error) {
	if len(e.Bytes) > MaxArrayLength {
		return 0, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(e.Bytes))
	}
	size := BytesEntryHeaderSize + len(e.Bytes)
	if len(dst) < size {
		return 0, fmt.Errorf("%w: need %d, have %d", ErrShortBuffer, size, len(dst))
	}
	dst[0] = byte(KindBytes)
	binary.LittleEndian.PutUint32(dst[1:], uint32(e.ID))
	dst[5] = byte(e.Type)
	binary.LittleEndian.PutUint32(dst[6:], uint32(e.MatchID))
	binary.LittleEndian.PutUint16(dst[10:], uint16(len(e.Bytes)))
	copy(dst[BytesEntryHeaderSize:], e.Bytes)
	return size, nil
}

// PeekType returns the Kind of an encoded entry by reading only its first byte.
func PeekType(src []byte) (Kind, error) {
	if len(src) < 1 {
		return KindInvalid, ErrShortBuffer
	}
	switch k := Kind(src[0]); k {
	case KindStandard, KindFrames, KindBytes:
		return k, nil
	default:
		return KindInvalid, fmt.Errorf("%w: %d", ErrUnknownKind, src[0])
	}
}

// Unpack decodes src into a newly allocated entry. Hot paths should use the
// Unpack* variants or a Parser, which reuse their destination.
func Unpack(src []byte) (Entry, error) {
	kind, err := PeekType(src)
	if err != nil {
		return nil, err
	}
	switch kind {
	case KindStandard:
		e := &StandardEntry{}
		if err := UnpackStandard(src, e); err != nil {
			return nil, err
		}
		return e, nil
	case KindFrames:
		e := &FramesEntry{}
		if err := UnpackFrames(src, e); err != nil {
			return nil, err
		}
		return e, nil
	default:
		e := &BytesEntry{}
		if err := UnpackBytes(src, e); err != nil {
			return nil, err
		}
		// Detach from src as the caller owns the result.
		e.Bytes = slices.Clone(e.Bytes)
		return e, nil
	}
}

func checkKind(src []byte, want Kind, size int) error {
	if len(src) < size {
		return fmt.Errorf("%w: need %d, have %d", ErrShortBuffer, size, len(src))
	}
	if Kind(src[0]) != want {
		return fmt.Errorf("%w: expected %v, got %d", ErrUnknownKind, want, src[0])
	}
	return nil
}

// UnpackStandard decodes src into dst.
func UnpackStandard(src []byte, dst *StandardEntry) error {
	if err := checkKind(src, KindStandard, StandardEntrySize); err != nil {
		return err
	}
	dst.ID = int32(binary.LittleEndian.Uint32(src[1:]))
	dst.Type = EntryType(src[5])
	dst.Timestamp = int64(binary.LittleEndian.Uint64(src[6:]))
	dst.TID = int32(binary.LittleEndian.Uint32(src[14:]))
	dst.CallID = int32(binary.LittleEndian.Uint32(src[18:]))
	dst.MatchID = int32(binary.LittleEndian.Uint32(src[22:]))
	dst.Extra = int64(binary.LittleEndian.Uint64(src[26:]))
	return nil
}

// UnpackFrames decodes src into dst, reusing the capacity of dst.Frames.
// dst.Frames is never nil afterwards.
func UnpackFrames(src []byte, dst *FramesEntry) error {
	if err := checkKind(src, KindFrames, FramesEntryHeaderSize); err != nil {
		return err
	}
	n := int(binary.LittleEndian.Uint16(src[18:]))
	if len(src) < FramesEntryHeaderSize+8*n {
		return fmt.Errorf("%w: %d frames need %d, have %d", ErrShortBuffer,
			n, FramesEntryHeaderSize+8*n, len(src))
	}
	dst.ID = int32(binary.LittleEndian.Uint32(src[1:]))
	dst.Type = EntryType(src[5])
	dst.Timestamp = int64(binary.LittleEndian.Uint64(src[6:]))
	dst.TID = int32(binary.LittleEndian.Uint32(src[14:]))
	if dst.Frames == nil || cap(dst.Frames) < n {
		dst.Frames = make([]int64, n)
	}
	dst.Frames = dst.Frames[:n]
	off := FramesEntryHeaderSize
	for i := range dst.Frames {
		dst.Frames[i] = int64(binary.LittleEndian.Uint64(src[off:]))
		off += 8
	}
	return nil
}

// UnpackBytes decodes src into dst. dst.Bytes aliases src.
func UnpackBytes(src []byte, dst *BytesEntry) error {
	if err := checkKind(src, KindBytes, BytesEntryHeaderSize); err != nil {
		return err
	}
	n := int(binary.LittleEndian.Uint16(src[10:]))
	if len(src) < BytesEntryHeaderSize+n {
		return fmt.Errorf("%w: %d bytes need %d, have %d", ErrShortBuffer,
			n, BytesEntryHeaderSize+n, len(src))
	}
	dst.ID = int32(binary.LittleEndian.Uint32(src[1:]))
	dst.Type = EntryType(src[5])
	dst.MatchID = int32(binary.LittleEndian.Uint32(src[6:]))
	dst.Bytes = src[BytesEntryHeaderSize : BytesEntryHeaderSize+n]
	return nil
}
