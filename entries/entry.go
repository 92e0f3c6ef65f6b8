// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package entries defines the trace entry data model and its binary encoding.
//
// Every encoded entry starts with a one byte Kind discriminant followed by the
// little endian fields of the variant. The encoding is self-describing, so a
// consumer can decode a payload without any out-of-band type information.
package entries // import "github.com/facebookarchive/profilo-sub011/entries"

// Kind is the serialization discriminant stored in the first byte of every
// encoded entry.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindStandard
	KindFrames
	KindBytes
)

func (k Kind) String() string {
	switch k {
	case KindStandard:
		return "StandardEntry"
	case KindFrames:
		return "FramesEntry"
	case KindBytes:
		return "BytesEntry"
	default:
		return "InvalidEntry"
	}
}

// Entry is one of StandardEntry, FramesEntry or BytesEntry.
type Entry interface {
	// Kind returns the serialization discriminant of the entry.
	Kind() Kind
	// EntryID returns the id assigned by the producer.
	EntryID() int32
	// EntryType returns the semantic type of the entry.
	EntryType() EntryType

	isEntry()
}

// StandardEntry is the fixed-size entry used for the majority of events,
// including the trace lifecycle markers.
type StandardEntry struct {
	ID        int32
	Type      EntryType
	Timestamp int64
	TID       int32
	CallID    int32
	MatchID   int32
	Extra     int64
}

// FramesEntry carries a captured stack. Frames are stored bottom frame first
// as captured by the producer.
type FramesEntry struct {
	ID        int32
	Type      EntryType
	Timestamp int64
	TID       int32
	Frames    []int64
}

// BytesEntry carries an opaque byte payload, typically a string annotation
// linked to a parent entry through MatchID.
type BytesEntry struct {
	ID      int32
	Type    EntryType
	MatchID int32
	Bytes   []byte
}

func (*StandardEntry) Kind() Kind { return KindStandard }
func (*FramesEntry) Kind() Kind   { return KindFrames }
func (*BytesEntry) Kind() Kind    { return KindBytes }

func (e *StandardEntry) EntryID() int32 { return e.ID }
func (e *FramesEntry) EntryID() int32   { return e.ID }
func (e *BytesEntry) EntryID() int32    { return e.ID }

func (e *StandardEntry) EntryType() EntryType { return e.Type }
func (e *FramesEntry) EntryType() EntryType   { return e.Type }
func (e *BytesEntry) EntryType() EntryType    { return e.Type }

func (*StandardEntry) isEntry() {}
func (*FramesEntry) isEntry()   {}
func (*BytesEntry) isEntry()    {}

// IsTraceMarker reports whether e is a lifecycle marker of any trace.
func IsTraceMarker(e Entry) bool {
	se, ok := e.(*StandardEntry)
	if !ok {
		return false
	}
	return se.Type.IsTraceStart() || se.Type.IsTraceTerminal()
}
