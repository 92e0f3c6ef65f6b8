// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package writer // import "github.com/facebookarchive/profilo-sub011/writer"

import (
	"errors"
	"fmt"

	"github.com/facebookarchive/profilo-sub011/entries"
)

// ErrStackTooDeep is returned for stacks deeper than the configured maximum.
var ErrStackTooDeep = errors.New("stack too deep")

// StackTraceInvertingVisitor turns bottom first stacks into top first stacks.
type StackTraceInvertingVisitor struct {
	next     entries.Visitor
	maxDepth int

	frames   entries.FramesEntry
	reversed []int64
}

// NewStackTraceInvertingVisitor returns a stage rejecting stacks deeper than
// maxDepth.
func NewStackTraceInvertingVisitor(next entries.Visitor,
	maxDepth int) *StackTraceInvertingVisitor {
	return &StackTraceInvertingVisitor{
		next:     next,
		maxDepth: maxDepth,
		reversed: make([]int64, 0, maxDepth),
	}
}

func (v *StackTraceInvertingVisitor) Visit(e entries.Entry) error {
	fe, ok := e.(*entries.FramesEntry)
	if !ok {
		return v.next.Visit(e)
	}
	if len(fe.Frames) > v.maxDepth {
		return fmt.Errorf("%w: %d frames, max %d", ErrStackTooDeep,
			len(fe.Frames), v.maxDepth)
	}

	v.reversed = v.reversed[:0]
	for i := len(fe.Frames) - 1; i >= 0; i-- {
		v.reversed = append(v.reversed, fe.Frames[i])
	}
	v.frames = *fe
	v.frames.Frames = v.reversed
	return v.next.Visit(&v.frames)
}
