// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package writer_test

import (
	"sync"

	"github.com/facebookarchive/profilo-sub011/writer"
)

type eventKind string

const (
	eventStart eventKind = "start"
	eventEnd   eventKind = "end"
	eventAbort eventKind = "abort"
)

type event struct {
	kind    eventKind
	traceID int64
	flags   int32
	path    string
	crc     uint32
	reason  writer.AbortReason
}

// recorder is a TraceCallbacks that remembers every call.
type recorder struct {
	mu     sync.Mutex
	events []event
}

var _ writer.TraceCallbacks = (*recorder)(nil)

func (r *recorder) add(e event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) OnTraceStart(traceID int64, flags int32, path string) {
	r.add(event{kind: eventStart, traceID: traceID, flags: flags, path: path})
}

func (r *recorder) OnTraceEnd(traceID int64, crc uint32) {
	r.add(event{kind: eventEnd, traceID: traceID, crc: crc})
}

func (r *recorder) OnTraceAbort(traceID int64, reason writer.AbortReason) {
	r.add(event{kind: eventAbort, traceID: traceID, reason: reason})
}

func (r *recorder) all() []event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event(nil), r.events...)
}

// summary returns the events without paths, flags and checksums.
func (r *recorder) summary() []event {
	var out []event
	for _, e := range r.all() {
		out = append(out, event{kind: e.kind, traceID: e.traceID, reason: e.reason})
	}
	return out
}

func (r *recorder) find(kind eventKind, traceID int64) (event, bool) {
	for _, e := range r.all() {
		if e.kind == kind && e.traceID == traceID {
			return e, true
		}
	}
	return event{}, false
}
