// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package logger is the producer API used by event sources to record entries
// into a ring buffer. Writing never locks and never allocates on the heap.
package logger // import "github.com/facebookarchive/profilo-sub011/logger"

import (
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/facebookarchive/profilo-sub011/buffer"
	"github.com/facebookarchive/profilo-sub011/entries"
	"github.com/facebookarchive/profilo-sub011/times"
)

const (
	// MaxVariableLengthEntry is the largest byte payload stored in one
	// BytesEntry. WriteBytes splits longer payloads.
	MaxVariableLengthEntry = 1024
	// MaxStackDepth is the deepest stack WriteFrames accepts.
	MaxStackDepth = 1024

	maxPackedSize = entries.FramesEntryHeaderSize + 8*MaxStackDepth
)

var (
	// ErrStackTooDeep is returned for stacks deeper than MaxStackDepth.
	ErrStackTooDeep = errors.New("stack too deep")
	// ErrEntryTooLarge is returned for entries that do not fit the
	// producer's scratch space.
	ErrEntryTooLarge = errors.New("entry too large")
)

// IDCounter hands out entry ids. Loggers that share a counter produce ids that
// are unique across all of them.
type IDCounter struct {
	last atomic.Int32
}

// NewIDCounter returns a counter whose first id is initial+1.
func NewIDCounter(initial int32) *IDCounter {
	c := &IDCounter{}
	c.last.Store(initial)
	return c
}

// Next returns a fresh id.
func (c *IDCounter) Next() int32 {
	return c.last.Add(1)
}

// Config holds the optional collaborators of a Logger.
type Config struct {
	// IDs is the id source. A private counter is used if nil.
	IDs *IDCounter
	// Providers gates the provider aware helpers. All providers are
	// considered enabled if nil.
	Providers *Providers
}

// Logger writes entries into a TraceBuffer.
type Logger struct {
	packets   *PacketLogger
	ids       *IDCounter
	providers *Providers
}

// New returns a Logger writing to buf.
func New(buf *buffer.TraceBuffer, cfg Config) *Logger {
	ids := cfg.IDs
	if ids == nil {
		ids = NewIDCounter(0)
	}
	return &Logger{
		packets:   NewPacketLogger(buf),
		ids:       ids,
		providers: cfg.Providers,
	}
}

// Buffer returns the buffer the logger writes to.
func (l *Logger) Buffer() *buffer.TraceBuffer {
	return l.packets.Buffer()
}

// Write assigns a fresh id to e, stores it and returns the id.
func (l *Logger) Write(e entries.Entry) (int32, error) {
	var scratch [maxPackedSize]byte

	id := l.ids.Next()
	switch e := e.(type) {
	case *entries.StandardEntry:
		e.ID = id
	case *entries.FramesEntry:
		if len(e.Frames) > MaxStackDepth {
			return 0, fmt.Errorf("%w: %d frames", ErrStackTooDeep, len(e.Frames))
		}
		e.ID = id
	case *entries.BytesEntry:
		if len(e.Bytes) > MaxVariableLengthEntry {
			return 0, fmt.Errorf("%w: %d bytes", ErrEntryTooLarge, len(e.Bytes))
		}
		e.ID = id
	}

	n, err := entries.Pack(e, scratch[:])
	if err != nil {
		return 0, err
	}
	l.packets.Write(scratch[:n])
	return id, nil
}

// WriteStandard records a StandardEntry stamped with the current monotonic
// time.
func (l *Logger) WriteStandard(typ entries.EntryType, tid, callID, matchID int32,
	extra int64) int32 {
	var scratch [entries.StandardEntrySize]byte

	e := entries.StandardEntry{
		ID:        l.ids.Next(),
		Type:      typ,
		Timestamp: int64(times.GetKTime()),
		TID:       tid,
		CallID:    callID,
		MatchID:   matchID,
		Extra:     extra,
	}
	// The scratch space always fits a StandardEntry.
	n, _ := entries.PackStandard(&e, scratch[:])
	l.packets.Write(scratch[:n])
	return e.ID
}

// WriteBytes records data as one or more BytesEntry linked to parentID and
// returns the id of the first one. Payloads longer than
// MaxVariableLengthEntry are split into consecutive entries.
func (l *Logger) WriteBytes(typ entries.EntryType, parentID int32, data []byte) int32 {
	var scratch [entries.BytesEntryHeaderSize + MaxVariableLengthEntry]byte

	first := int32(0)
	for {
		chunk := data
		if len(chunk) > MaxVariableLengthEntry {
			chunk = chunk[:MaxVariableLengthEntry]
		}
		data = data[len(chunk):]

		e := entries.BytesEntry{
			ID:      l.ids.Next(),
			Type:    typ,
			MatchID: parentID,
			Bytes:   chunk,
		}
		// Chunks are bounded by MaxVariableLengthEntry and always fit.
		n, _ := entries.PackBytes(&e, scratch[:])
		l.packets.Write(scratch[:n])
		if first == 0 {
			first = e.ID
		}
		if len(data) == 0 {
			return first
		}
	}
}

// WritePayload stores an already serialized entry unchanged. Its id is not
// reassigned.
func (l *Logger) WritePayload(payload []byte) {
	l.packets.Write(payload)
}

// WriteFrames records a stack, bottom frame first.
func (l *Logger) WriteFrames(typ entries.EntryType, timestamp int64, tid int32,
	frames []int64) (int32, error) {
	return l.Write(&entries.FramesEntry{
		Type:      typ,
		Timestamp: timestamp,
		TID:       tid,
		Frames:    frames,
	})
}

// WriteAnnotation records a key/value string pair attached to parentID. The
// key is linked to parentID and the value to the key.
func (l *Logger) WriteAnnotation(parentID int32, key, value string) int32 {
	keyID := l.WriteBytes(entries.StringKey, parentID, []byte(key))
	l.WriteBytes(entries.StringValue, keyID, []byte(value))
	return keyID
}

// Enabled reports whether any provider in mask is enabled.
func (l *Logger) Enabled(mask uint32) bool {
	if l.providers == nil {
		return true
	}
	return l.providers.Enabled(mask)
}

// Event records a StandardEntry if one of the providers in mask is enabled.
// It returns 0 without touching the clock or the buffer otherwise.
func (l *Logger) Event(mask uint32, typ entries.EntryType, tid, callID, matchID int32,
	extra int64) int32 {
	if !l.Enabled(mask) {
		return 0
	}
	return l.WriteStandard(typ, tid, callID, matchID, extra)
}

// MarkPush records the start of a named block for the given providers.
func (l *Logger) MarkPush(mask uint32, tid int32, name string) int32 {
	if !l.Enabled(mask) {
		return 0
	}
	id := l.WriteStandard(entries.MarkPush, tid, 0, 0, 0)
	if name != "" {
		l.WriteBytes(entries.StringName, id, []byte(name))
	}
	return id
}

// MarkPop records the end of the innermost block for the given providers.
func (l *Logger) MarkPop(mask uint32, tid int32) int32 {
	return l.Event(mask, entries.MarkPop, tid, 0, 0, 0)
}

// ThreadID returns the kernel thread id of the calling thread. It issues a
// system call, so callers on hot paths lock their goroutine to its thread
// and cache the result.
func ThreadID() int32 {
	return int32(unix.Gettid())
}
