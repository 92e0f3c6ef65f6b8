// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package writer // import "github.com/facebookarchive/profilo-sub011/writer"

import (
	"errors"
	"fmt"

	"github.com/facebookarchive/profilo-sub011/entries"
)

// ErrInvalidPrecision is returned for a timestamp precision above nanoseconds.
var ErrInvalidPrecision = errors.New("invalid timestamp precision")

// nativePrecision is the number of decimal digits of a nanosecond timestamp
// below one second.
const nativePrecision = 9

// TimestampTruncatingVisitor reduces nanosecond timestamps to the configured
// number of sub-second digits, rounding to nearest.
type TimestampTruncatingVisitor struct {
	next    entries.Visitor
	divisor int64

	standard entries.StandardEntry
	frames   entries.FramesEntry
}

// NewTimestampTruncatingVisitor returns a stage keeping precision digits below
// the second. A precision of 6 keeps microseconds.
func NewTimestampTruncatingVisitor(next entries.Visitor,
	precision int) (*TimestampTruncatingVisitor, error) {
	if precision < 0 || precision > nativePrecision {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPrecision, precision)
	}
	divisor := int64(1)
	for range nativePrecision - precision {
		divisor *= 10
	}
	return &TimestampTruncatingVisitor{next: next, divisor: divisor}, nil
}

func (v *TimestampTruncatingVisitor) truncate(ts int64) int64 {
	if v.divisor == 1 {
		return ts
	}
	half := v.divisor / 2
	if ts < 0 {
		return (ts - half) / v.divisor
	}
	return (ts + half) / v.divisor
}

func (v *TimestampTruncatingVisitor) Visit(e entries.Entry) error {
	switch e := e.(type) {
	case *entries.StandardEntry:
		v.standard = *e
		v.standard.Timestamp = v.truncate(e.Timestamp)
		return v.next.Visit(&v.standard)
	case *entries.FramesEntry:
		v.frames = *e
		v.frames.Timestamp = v.truncate(e.Timestamp)
		return v.next.Visit(&v.frames)
	default:
		return v.next.Visit(e)
	}
}
