// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package entries // import "github.com/facebookarchive/profilo-sub011/entries"

import "slices"

// Visitor consumes decoded entries. Entries handed to Visit are only valid for
// the duration of the call; implementations copy what they need to retain.
type Visitor interface {
	Visit(e Entry) error
}

// VisitorFunc adapts a function to the Visitor interface.
type VisitorFunc func(e Entry) error

func (f VisitorFunc) Visit(e Entry) error { return f(e) }

// Parser decodes payloads into reusable scratch entries and dispatches them to
// a Visitor. A Parser must not be used concurrently.
type Parser struct {
	standard StandardEntry
	frames   FramesEntry
	bytes    BytesEntry
}

// Parse decodes src and hands the entry to v. Decoding errors are returned
// without calling v.
func (p *Parser) Parse(src []byte, v Visitor) error {
	kind, err := PeekType(src)
	if err != nil {
		return err
	}
	switch kind {
	case KindStandard:
		if err := UnpackStandard(src, &p.standard); err != nil {
			return err
		}
		return v.Visit(&p.standard)
	case KindFrames:
		if err := UnpackFrames(src, &p.frames); err != nil {
			return err
		}
		return v.Visit(&p.frames)
	default:
		if err := UnpackBytes(src, &p.bytes); err != nil {
			return err
		}
		return v.Visit(&p.bytes)
	}
}

// Clone returns a deep copy of e that does not alias any decoder buffers.
func Clone(e Entry) Entry {
	switch e := e.(type) {
	case *StandardEntry:
		c := *e
		return &c
	case *FramesEntry:
		c := *e
		c.Frames = slices.Clone(e.Frames)
		return &c
	case *BytesEntry:
		c := *e
		c.Bytes = slices.Clone(e.Bytes)
		return &c
	}
	return nil
}
