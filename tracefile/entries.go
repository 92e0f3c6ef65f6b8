// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package tracefile // import "github.com/facebookarchive/profilo-sub011/tracefile"

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/facebookarchive/profilo-sub011/entries"
	"github.com/facebookarchive/profilo-sub011/writer"
)

var frameTypes = map[string]bool{
	entries.StackFrame.String():           true,
	entries.JavascriptStackFrame.String(): true,
}

var bytesTypes = map[string]bool{
	entries.StringKey.String():     true,
	entries.StringValue.String():   true,
	entries.StringName.String():    true,
	entries.JavaFrameName.String(): true,
	entries.Mapping.String():       true,
}

// kindOf classifies an entry line by its type name. Lines of unknown types
// are standard entries if they have seven numeric fields.
func kindOf(typeName, line string) entries.Kind {
	switch {
	case frameTypes[typeName]:
		return entries.KindFrames
	case bytesTypes[typeName]:
		return entries.KindBytes
	}
	fields := strings.Split(line, "|")
	if len(fields) != 7 {
		return entries.KindBytes
	}
	for _, f := range fields[2:] {
		if _, err := strconv.ParseInt(f, 10, 64); err != nil {
			return entries.KindBytes
		}
	}
	return entries.KindStandard
}

// Entry converts a record to the delta encoded entry it was printed from.
func (rec Record) Entry() (entries.Entry, error) {
	if len(rec.Fields) < 4 {
		return nil, fmt.Errorf("%w: %d fields", ErrBadRecord, len(rec.Fields))
	}
	typ, err := entries.ParseEntryType(rec.Fields[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRecord, err)
	}

	if len(rec.Fields) == 4 {
		ints, err := parseInts(rec.Fields[0], rec.Fields[2])
		if err != nil {
			return nil, err
		}
		return &entries.BytesEntry{
			ID:      int32(ints[0]),
			Type:    typ,
			MatchID: int32(ints[1]),
			Bytes:   []byte(rec.Fields[3]),
		}, nil
	}

	if len(rec.Fields) != 7 {
		return nil, fmt.Errorf("%w: %d fields", ErrBadRecord, len(rec.Fields))
	}
	ints, err := parseInts(rec.Fields[0], rec.Fields[2], rec.Fields[3],
		rec.Fields[4], rec.Fields[5], rec.Fields[6])
	if err != nil {
		return nil, err
	}
	if frameTypes[rec.Fields[1]] {
		return &entries.FramesEntry{
			ID:        int32(ints[0]),
			Type:      typ,
			Timestamp: ints[1],
			TID:       int32(ints[2]),
			Frames:    []int64{ints[5]},
		}, nil
	}
	return &entries.StandardEntry{
		ID:        int32(ints[0]),
		Type:      typ,
		Timestamp: ints[1],
		TID:       int32(ints[2]),
		CallID:    int32(ints[3]),
		MatchID:   int32(ints[4]),
		Extra:     ints[5],
	}, nil
}

func parseInts(fields ...string) ([]int64, error) {
	out := make([]int64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadRecord, err)
		}
		out[i] = v
	}
	return out, nil
}

// Visit decodes every remaining record and hands the absolute entries to v.
// Each frame of a stack is delivered as its own single frame entry, top
// frame first.
func (r *Reader) Visit(v entries.Visitor) error {
	decoder := writer.NewDeltaDecodingVisitor(v)
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		e, err := rec.Entry()
		if err != nil {
			return err
		}
		if err = decoder.Visit(e); err != nil {
			return err
		}
	}
}
