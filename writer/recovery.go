// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package writer // import "github.com/facebookarchive/profilo-sub011/writer"

import (
	log "github.com/sirupsen/logrus"

	"github.com/facebookarchive/profilo-sub011/buffer"
	"github.com/facebookarchive/profilo-sub011/reassembler"
)

// RecoverBackwards reads the packets still held by src from the newest one
// backwards and replays the recovered entries in write order. Traces that
// are still active once all entries were replayed are aborted with
// AbortReasonMissedEvent. It returns the final state of traceID.
func (w *TraceWriter) RecoverBackwards(src *buffer.TraceBuffer, traceID int64) State {
	payloads, stats := reassembler.CollectBackwards(src, w.poolSize)
	log.Debugf("Recovered %d payloads, dropped %d packets", len(payloads), stats.Dropped)

	w.pass = passState{expected: traceID}
	for _, payload := range payloads {
		w.onPayload(payload)
	}
	if w.multi.ActiveCount() > 0 {
		w.counters.missedEvents++
		w.multi.Abort(AbortReasonMissedEvent)
	}
	return w.multi.State(traceID)
}
