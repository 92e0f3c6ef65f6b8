// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package writer // import "github.com/facebookarchive/profilo-sub011/writer"

import (
	"io"

	"github.com/facebookarchive/profilo-sub011/entries"
)

// NewPipeline returns the on-disk encoding pipeline writing to w. Entries are
// truncated, inverted, delta encoded and printed, in that order.
func NewPipeline(w io.Writer, precision, maxStackDepth int) (entries.Visitor, error) {
	var v entries.Visitor = NewPrintEntryVisitor(w)
	v = NewDeltaEncodingVisitor(v)
	v = NewStackTraceInvertingVisitor(v, maxStackDepth)
	tv, err := NewTimestampTruncatingVisitor(v, precision)
	if err != nil {
		return nil, err
	}
	return tv, nil
}
