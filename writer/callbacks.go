// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package writer // import "github.com/facebookarchive/profilo-sub011/writer"

import "fmt"

// AbortReason tells a TraceCallbacks consumer why a trace did not end.
type AbortReason int32

const (
	AbortReasonUnknown AbortReason = iota + 1
	AbortReasonControllerInitiated
	AbortReasonMissedEvent
	AbortReasonTimeout
	AbortReasonNewStart
	AbortReasonRemoteProcess
)

func (r AbortReason) String() string {
	switch r {
	case AbortReasonUnknown:
		return "unknown"
	case AbortReasonControllerInitiated:
		return "controller_initiated"
	case AbortReasonMissedEvent:
		return "missed_event"
	case AbortReasonTimeout:
		return "timeout"
	case AbortReasonNewStart:
		return "new_start"
	case AbortReasonRemoteProcess:
		return "remote_process"
	}
	return fmt.Sprintf("AbortReason(%d)", int32(r))
}

// Valid reports whether r is one of the defined reasons.
func (r AbortReason) Valid() bool {
	return r >= AbortReasonUnknown && r <= AbortReasonRemoteProcess
}

// TraceCallbacks receives trace outcomes. Methods are called synchronously on
// the draining goroutine and must not block for long.
type TraceCallbacks interface {
	OnTraceStart(traceID int64, flags int32, path string)
	OnTraceEnd(traceID int64, crc uint32)
	OnTraceAbort(traceID int64, reason AbortReason)
}

// CallbacksList forwards every callback to each of its elements in order.
type CallbacksList []TraceCallbacks

var _ TraceCallbacks = CallbacksList(nil)

func (l CallbacksList) OnTraceStart(traceID int64, flags int32, path string) {
	for _, c := range l {
		c.OnTraceStart(traceID, flags, path)
	}
}

func (l CallbacksList) OnTraceEnd(traceID int64, crc uint32) {
	for _, c := range l {
		c.OnTraceEnd(traceID, crc)
	}
}

func (l CallbacksList) OnTraceAbort(traceID int64, reason AbortReason) {
	for _, c := range l {
		c.OnTraceAbort(traceID, reason)
	}
}
