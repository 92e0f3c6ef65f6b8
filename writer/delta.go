// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package writer // import "github.com/facebookarchive/profilo-sub011/writer"

import "github.com/facebookarchive/profilo-sub011/entries"

// deltaState holds the previous absolute value of every delta encoded field.
// All entry kinds share it, so encoding and decoding must see entries in the
// same order.
type deltaState struct {
	id        int32
	timestamp int64
	tid       int32
	callID    int32
	matchID   int32
	extra     int64
}

// DeltaEncodingVisitor replaces field values with their difference to the
// previous entry. A FramesEntry is emitted as one single frame entry per
// frame, where all but the first carry zero deltas, so every printed line can
// be decoded on its own.
type DeltaEncodingVisitor struct {
	next entries.Visitor
	prev deltaState

	standard entries.StandardEntry
	frames   entries.FramesEntry
	bytes    entries.BytesEntry
}

// NewDeltaEncodingVisitor returns a delta encoding stage.
func NewDeltaEncodingVisitor(next entries.Visitor) *DeltaEncodingVisitor {
	return &DeltaEncodingVisitor{next: next}
}

func (v *DeltaEncodingVisitor) Visit(e entries.Entry) error {
	switch e := e.(type) {
	case *entries.StandardEntry:
		v.standard = entries.StandardEntry{
			ID:        e.ID - v.prev.id,
			Type:      e.Type,
			Timestamp: e.Timestamp - v.prev.timestamp,
			TID:       e.TID - v.prev.tid,
			CallID:    e.CallID - v.prev.callID,
			MatchID:   e.MatchID - v.prev.matchID,
			Extra:     e.Extra - v.prev.extra,
		}
		v.prev = deltaState{
			id:        e.ID,
			timestamp: e.Timestamp,
			tid:       e.TID,
			callID:    e.CallID,
			matchID:   e.MatchID,
			extra:     e.Extra,
		}
		return v.next.Visit(&v.standard)

	case *entries.FramesEntry:
		v.frames = entries.FramesEntry{
			ID:        e.ID - v.prev.id,
			Type:      e.Type,
			Timestamp: e.Timestamp - v.prev.timestamp,
			TID:       e.TID - v.prev.tid,
		}
		v.prev.id = e.ID
		v.prev.timestamp = e.Timestamp
		v.prev.tid = e.TID
		if len(e.Frames) == 0 {
			return v.next.Visit(&v.frames)
		}
		for i := range e.Frames {
			v.frames.Frames = e.Frames[i : i+1]
			if err := v.next.Visit(&v.frames); err != nil {
				return err
			}
			v.frames.ID = 0
			v.frames.Timestamp = 0
			v.frames.TID = 0
		}
		return nil

	case *entries.BytesEntry:
		v.bytes = entries.BytesEntry{
			ID:      e.ID - v.prev.id,
			Type:    e.Type,
			MatchID: e.MatchID - v.prev.matchID,
			Bytes:   e.Bytes,
		}
		v.prev.id = e.ID
		v.prev.matchID = e.MatchID
		return v.next.Visit(&v.bytes)
	}
	return v.next.Visit(e)
}

// DeltaDecodingVisitor is the inverse of DeltaEncodingVisitor.
type DeltaDecodingVisitor struct {
	next entries.Visitor
	prev deltaState

	standard entries.StandardEntry
	frames   entries.FramesEntry
	bytes    entries.BytesEntry
}

// NewDeltaDecodingVisitor returns a delta decoding stage.
func NewDeltaDecodingVisitor(next entries.Visitor) *DeltaDecodingVisitor {
	return &DeltaDecodingVisitor{next: next}
}

func (v *DeltaDecodingVisitor) Visit(e entries.Entry) error {
	switch e := e.(type) {
	case *entries.StandardEntry:
		v.prev = deltaState{
			id:        v.prev.id + e.ID,
			timestamp: v.prev.timestamp + e.Timestamp,
			tid:       v.prev.tid + e.TID,
			callID:    v.prev.callID + e.CallID,
			matchID:   v.prev.matchID + e.MatchID,
			extra:     v.prev.extra + e.Extra,
		}
		v.standard = entries.StandardEntry{
			ID:        v.prev.id,
			Type:      e.Type,
			Timestamp: v.prev.timestamp,
			TID:       v.prev.tid,
			CallID:    v.prev.callID,
			MatchID:   v.prev.matchID,
			Extra:     v.prev.extra,
		}
		return v.next.Visit(&v.standard)

	case *entries.FramesEntry:
		v.prev.id += e.ID
		v.prev.timestamp += e.Timestamp
		v.prev.tid += e.TID
		v.frames = entries.FramesEntry{
			ID:        v.prev.id,
			Type:      e.Type,
			Timestamp: v.prev.timestamp,
			TID:       v.prev.tid,
			Frames:    e.Frames,
		}
		return v.next.Visit(&v.frames)

	case *entries.BytesEntry:
		v.prev.id += e.ID
		v.prev.matchID += e.MatchID
		v.bytes = entries.BytesEntry{
			ID:      v.prev.id,
			Type:    e.Type,
			MatchID: v.prev.matchID,
			Bytes:   e.Bytes,
		}
		return v.next.Visit(&v.bytes)
	}
	return v.next.Visit(e)
}
