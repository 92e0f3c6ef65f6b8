// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package entries

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	tests := map[string]struct {
		entry Entry
		size  int
	}{
		"standard": {
			entry: &StandardEntry{
				ID:        10,
				Type:      TraceStart,
				Timestamp: 123,
				TID:       -1,
				CallID:    1,
				MatchID:   2,
				Extra:     -3,
			},
			size: StandardEntrySize,
		},
		"frames": {
			entry: &FramesEntry{
				ID:        11,
				Type:      StackFrame,
				Timestamp: 1 << 40,
				TID:       4,
				Frames:    []int64{100, 200, 300},
			},
			size: FramesEntryHeaderSize + 3*8,
		},
		"empty frames": {
			entry: &FramesEntry{ID: 12, Type: StackFrame, Frames: []int64{}},
			size:  FramesEntryHeaderSize,
		},
		"empty bytes": {
			entry: &BytesEntry{ID: 14, Type: StringValue, Bytes: []byte{}},
			size:  BytesEntryHeaderSize,
		},
		"bytes": {
			entry: &BytesEntry{
				ID:      13,
				Type:    StringKey,
				MatchID: 1,
				Bytes:   []byte("hi!"),
			},
			size: BytesEntryHeaderSize + 3,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, tc.size, CalculateSize(tc.entry))

			buf := make([]byte, tc.size)
			n, err := Pack(tc.entry, buf)
			require.NoError(t, err)
			require.Equal(t, tc.size, n)

			kind, err := PeekType(buf)
			require.NoError(t, err)
			assert.Equal(t, tc.entry.Kind(), kind)

			out, err := Unpack(buf)
			require.NoError(t, err)
			assert.Equal(t, tc.entry, out)
		})
	}
}

func TestPackShortBuffer(t *testing.T) {
	tests := map[string]Entry{
		"standard": &StandardEntry{ID: 1},
		"frames":   &FramesEntry{ID: 1, Frames: []int64{1}},
		"bytes":    &BytesEntry{ID: 1, Bytes: []byte("abc")},
	}
	for name, e := range tests {
		t.Run(name, func(t *testing.T) {
			buf := make([]byte, CalculateSize(e)-1)
			_, err := Pack(e, buf)
			require.ErrorIs(t, err, ErrShortBuffer)
		})
	}
}

func TestPackPayloadTooLarge(t *testing.T) {
	e := &BytesEntry{Bytes: make([]byte, MaxArrayLength+1)}
	_, err := Pack(e, make([]byte, CalculateSize(e)))
	require.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestUnpackWrongKind(t *testing.T) {
	buf := make([]byte, StandardEntrySize)
	_, err := PackStandard(&StandardEntry{ID: 1}, buf)
	require.NoError(t, err)

	var frames FramesEntry
	require.ErrorIs(t, UnpackFrames(buf, &frames), ErrUnknownKind)
	var bytes BytesEntry
	require.ErrorIs(t, UnpackBytes(buf, &bytes), ErrUnknownKind)
}

func TestUnpackTruncated(t *testing.T) {
	e := &FramesEntry{ID: 1, Frames: []int64{1, 2, 3}}
	buf := make([]byte, CalculateSize(e))
	_, err := Pack(e, buf)
	require.NoError(t, err)

	_, err = Unpack(buf[:len(buf)-1])
	require.ErrorIs(t, err, ErrShortBuffer)
}

func TestPeekType(t *testing.T) {
	_, err := PeekType(nil)
	require.ErrorIs(t, err, ErrShortBuffer)

	_, err = PeekType([]byte{0xff})
	require.ErrorIs(t, err, ErrUnknownKind)

	// Only the discriminant is inspected.
	kind, err := PeekType([]byte{byte(KindBytes)})
	require.NoError(t, err)
	assert.Equal(t, KindBytes, kind)
}

func TestUnpackFramesReusesCapacity(t *testing.T) {
	e := &FramesEntry{ID: 1, Frames: []int64{7, 8}}
	buf := make([]byte, CalculateSize(e))
	_, err := Pack(e, buf)
	require.NoError(t, err)

	dst := FramesEntry{Frames: make([]int64, 0, 16)}
	backing := &dst.Frames[:1][0]
	require.NoError(t, UnpackFrames(buf, &dst))
	assert.Equal(t, []int64{7, 8}, dst.Frames)
	assert.Same(t, backing, &dst.Frames[0])
}

func TestUnpackNilSlices(t *testing.T) {
	tests := map[string]Entry{
		"frames": &FramesEntry{ID: 1, Type: StackFrame},
		"bytes":  &BytesEntry{ID: 2, Type: StringKey},
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			buf := make([]byte, CalculateSize(in))
			_, err := Pack(in, buf)
			require.NoError(t, err)
			out, err := Unpack(buf)
			require.NoError(t, err)
			switch e := out.(type) {
			case *FramesEntry:
				assert.NotNil(t, e.Frames)
				assert.Empty(t, e.Frames)
			case *BytesEntry:
				assert.NotNil(t, e.Bytes)
				assert.Empty(t, e.Bytes)
			}
		})
	}
}

func TestEntryTypeNames(t *testing.T) {
	assert.Equal(t, "TRACE_START", TraceStart.String())
	assert.Equal(t, "STACK_FRAME", StackFrame.String())
	assert.Equal(t, "MAPPING", Mapping.String())
	assert.Equal(t, EntryType(40), TraceStart)
	assert.Equal(t, EntryType(92), Mapping)

	for i := range numEntryTypes {
		typ := EntryType(i)
		parsed, err := ParseEntryType(typ.String())
		require.NoError(t, err)
		assert.Equal(t, typ, parsed)
	}

	_, err := ParseEntryType("NOT_A_TYPE")
	require.Error(t, err)
}

type recordingVisitor struct {
	entries []Entry
}

func (r *recordingVisitor) Visit(e Entry) error {
	r.entries = append(r.entries, Clone(e))
	return nil
}

func TestParser(t *testing.T) {
	input := []Entry{
		&StandardEntry{ID: 1, Type: MarkPush, Timestamp: 5},
		&FramesEntry{ID: 2, Type: StackFrame, Frames: []int64{1, 2}},
		&BytesEntry{ID: 3, Type: StringValue, MatchID: 1, Bytes: []byte("value")},
		&StandardEntry{ID: 4, Type: MarkPop, Timestamp: 6},
	}

	var p Parser
	v := &recordingVisitor{}
	for _, e := range input {
		buf := make([]byte, CalculateSize(e))
		_, err := Pack(e, buf)
		require.NoError(t, err)
		require.NoError(t, p.Parse(buf, v))
	}
	assert.Equal(t, input, v.entries)

	require.ErrorIs(t, p.Parse([]byte{0}, v), ErrUnknownKind)
	assert.Len(t, v.entries, len(input))
}
