// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package writer // import "github.com/facebookarchive/profilo-sub011/writer"

import (
	"io"
	"strconv"

	"github.com/facebookarchive/profilo-sub011/entries"
)

// PrintEntryVisitor writes entries in the line oriented trace format:
//
//	id|TYPE|timestamp|tid|callid|matchid|extra
//	id|TYPE|timestamp|tid|0|0|frame     (one line per frame)
//	id|TYPE|matchid|bytes
type PrintEntryVisitor struct {
	w    io.Writer
	line []byte
}

// NewPrintEntryVisitor returns the final pipeline stage writing to w.
func NewPrintEntryVisitor(w io.Writer) *PrintEntryVisitor {
	return &PrintEntryVisitor{w: w, line: make([]byte, 0, 256)}
}

func (v *PrintEntryVisitor) Visit(e entries.Entry) error {
	switch e := e.(type) {
	case *entries.StandardEntry:
		b := v.prefix(e.ID, e.Type)
		b = strconv.AppendInt(b, e.Timestamp, 10)
		b = append(b, '|')
		b = strconv.AppendInt(b, int64(e.TID), 10)
		b = append(b, '|')
		b = strconv.AppendInt(b, int64(e.CallID), 10)
		b = append(b, '|')
		b = strconv.AppendInt(b, int64(e.MatchID), 10)
		b = append(b, '|')
		b = strconv.AppendInt(b, e.Extra, 10)
		return v.flush(b)

	case *entries.FramesEntry:
		for _, frame := range e.Frames {
			b := v.prefix(e.ID, e.Type)
			b = strconv.AppendInt(b, e.Timestamp, 10)
			b = append(b, '|')
			b = strconv.AppendInt(b, int64(e.TID), 10)
			b = append(b, "|0|0|"...)
			b = strconv.AppendInt(b, frame, 10)
			if err := v.flush(b); err != nil {
				return err
			}
		}
		return nil

	case *entries.BytesEntry:
		b := v.prefix(e.ID, e.Type)
		b = strconv.AppendInt(b, int64(e.MatchID), 10)
		b = append(b, '|')
		b = append(b, e.Bytes...)
		return v.flush(b)
	}
	return nil
}

func (v *PrintEntryVisitor) prefix(id int32, typ entries.EntryType) []byte {
	b := strconv.AppendInt(v.line[:0], int64(id), 10)
	b = append(b, '|')
	b = append(b, typ.String()...)
	return append(b, '|')
}

func (v *PrintEntryVisitor) flush(b []byte) error {
	b = append(b, '\n')
	v.line = b
	_, err := v.w.Write(b)
	return err
}
