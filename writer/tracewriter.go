// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package writer // import "github.com/facebookarchive/profilo-sub011/writer"

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/facebookarchive/profilo-sub011/buffer"
	"github.com/facebookarchive/profilo-sub011/config"
	"github.com/facebookarchive/profilo-sub011/entries"
	"github.com/facebookarchive/profilo-sub011/reassembler"
	"github.com/facebookarchive/profilo-sub011/times"
)

// StopLoopTraceID submitted to a TraceWriter makes Loop return.
const StopLoopTraceID int64 = 0

type submission struct {
	cursor  buffer.Cursor
	traceID int64
}

// TraceWriter drains a TraceBuffer into trace files. Submissions are served
// one at a time by Loop. ProcessTrace and Loop must not run concurrently.
type TraceWriter struct {
	buf       *buffer.TraceBuffer
	intervals times.IntervalsAndTimers
	multi     *MultiTraceLifecycleVisitor
	parser    entries.Parser
	reasm     *reassembler.Reassembler
	poolSize  int

	mu            sync.Mutex
	queue         []submission
	wake          chan struct{}
	pendingAborts map[int64]AbortReason
	hasAborts     atomic.Bool

	// pass holds the state of the running ProcessTrace call.
	pass passState

	counters counters
}

type passState struct {
	expected     int64
	terminalSeen bool
}

type counters struct {
	tracesStarted  uint64
	tracesEnded    uint64
	tracesAborted  uint64
	missedEvents   uint64
	packetsRead    uint64
	entriesDropped uint64
}

// countingCallbacks counts trace outcomes for the metrics of a TraceWriter.
type countingCallbacks struct {
	next TraceCallbacks
	c    *counters
}

func (cc countingCallbacks) OnTraceStart(traceID int64, flags int32, path string) {
	cc.c.tracesStarted++
	if cc.next != nil {
		cc.next.OnTraceStart(traceID, flags, path)
	}
}

func (cc countingCallbacks) OnTraceEnd(traceID int64, crc uint32) {
	cc.c.tracesEnded++
	if cc.next != nil {
		cc.next.OnTraceEnd(traceID, crc)
	}
}

func (cc countingCallbacks) OnTraceAbort(traceID int64, reason AbortReason) {
	cc.c.tracesAborted++
	if cc.next != nil {
		cc.next.OnTraceAbort(traceID, reason)
	}
}

// New returns a TraceWriter draining buf with the validated configuration
// cfg. callbacks may be nil.
func New(buf *buffer.TraceBuffer, cfg *config.Config, callbacks TraceCallbacks,
	headers []Header) (*TraceWriter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	opts := OptionsFromConfig(cfg, headers)
	return newTraceWriter(buf, &opts, cfg, callbacks)
}

func newTraceWriter(buf *buffer.TraceBuffer, opts *Options, cfg *config.Config,
	callbacks TraceCallbacks) (*TraceWriter, error) {
	w := &TraceWriter{
		buf:           buf,
		intervals:     times.New(cfg.MonitorInterval, cfg.PollInterval),
		wake:          make(chan struct{}, 1),
		pendingAborts: make(map[int64]AbortReason),
		poolSize:      cfg.StreamPoolSize,
	}
	multi, err := NewMultiTraceLifecycleVisitor(opts,
		countingCallbacks{next: callbacks, c: &w.counters},
		uint32(cfg.ConsumedTraceCacheSize))
	if err != nil {
		return nil, err
	}
	w.multi = multi
	w.reasm = reassembler.New(cfg.StreamPoolSize, w.onPayload)
	return w, nil
}

// Submit queues the trace traceID to be drained starting at cursor. It never
// blocks. Submitting StopLoopTraceID makes Loop return once the submissions
// before it are served.
func (w *TraceWriter) Submit(cursor buffer.Cursor, traceID int64) {
	w.mu.Lock()
	w.queue = append(w.queue, submission{cursor: cursor, traceID: traceID})
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *TraceWriter) next() (submission, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.queue) == 0 {
		return submission{}, false
	}
	s := w.queue[0]
	w.queue = w.queue[1:]
	return s, true
}

// AbortTrace asks the draining goroutine to abort traceID with reason. It is
// safe to call from any goroutine and takes effect on the next drain
// iteration. Repeated calls are harmless.
func (w *TraceWriter) AbortTrace(traceID int64, reason AbortReason) {
	w.mu.Lock()
	if _, found := w.pendingAborts[traceID]; !found {
		w.pendingAborts[traceID] = reason
	}
	w.mu.Unlock()
	w.hasAborts.Store(true)
}

func (w *TraceWriter) applyAborts() {
	if !w.hasAborts.Load() {
		return
	}
	w.mu.Lock()
	pending := w.pendingAborts
	w.pendingAborts = make(map[int64]AbortReason)
	w.hasAborts.Store(false)
	w.mu.Unlock()

	for id, reason := range pending {
		if id == w.pass.expected && w.multi.State(id) == StateUnstarted {
			// Traces opened on the way are still drained.
			w.multi.Forget(id)
			continue
		}
		w.multi.AbortTrace(id, reason)
	}
}

// Loop serves submissions until StopLoopTraceID is submitted or ctx is
// canceled.
func (w *TraceWriter) Loop(ctx context.Context) error {
	metricsTicker := time.NewTicker(w.intervals.MonitorInterval())
	defer metricsTicker.Stop()
	defer w.collectMetrics()

	for {
		for {
			s, ok := w.next()
			if !ok {
				break
			}
			if s.traceID == StopLoopTraceID {
				return nil
			}
			if err := w.ProcessTrace(ctx, s.traceID, s.cursor); err != nil {
				return err
			}
		}

		select {
		case <-w.wake:
		case <-metricsTicker.C:
			w.collectMetrics()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ProcessTrace drains the buffer from cursor until traceID is finished and no
// other trace opened on the way is still active. It returns early if the
// reader is lapped, if the end of traceID is seen before its start, or if
// ctx is canceled. Only context errors are returned.
func (w *TraceWriter) ProcessTrace(ctx context.Context, traceID int64,
	cursor buffer.Cursor) error {
	if w.multi.State(traceID).Terminal() {
		log.Debugf("Trace %d was already consumed", traceID)
		return nil
	}
	w.pass = passState{expected: traceID}
	defer w.reasm.Reset()

	var (
		p           buffer.Packet
		backoff     time.Duration
		lastMetrics = time.Now()
	)
	for !w.passDone() {
		w.applyAborts()

		switch w.buf.TryRead(cursor, &p) {
		case buffer.ReadOK:
			backoff = 0
			w.counters.packetsRead++
			w.reasm.Process(&p)
			cursor.MoveForward()

		case buffer.ReadLapped:
			log.Warnf("Reader lapped at index %d while draining trace %d",
				cursor.Index(), traceID)
			w.counters.missedEvents++
			w.multi.Abort(AbortReasonMissedEvent)
			return nil

		case buffer.ReadEmpty:
			if time.Since(lastMetrics) >= w.intervals.MonitorInterval() {
				w.collectMetrics()
				lastMetrics = time.Now()
			}
			backoff = min(max(2*backoff, times.MinPollInterval),
				w.intervals.PollInterval())
			if err := sleep(ctx, backoff); err != nil {
				w.multi.Abort(AbortReasonUnknown)
				return err
			}
		}
	}
	return nil
}

// State returns the lifecycle state of traceID as seen by the draining
// goroutine. It must not be called while Loop or ProcessTrace run.
func (w *TraceWriter) State(traceID int64) State {
	return w.multi.State(traceID)
}

func (w *TraceWriter) passDone() bool {
	if w.multi.ActiveCount() > 0 {
		return false
	}
	return w.pass.terminalSeen || w.multi.State(w.pass.expected).Terminal()
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// onPayload receives every reassembled payload of the running pass.
func (w *TraceWriter) onPayload(payload []byte) {
	if err := w.parser.Parse(payload, entries.VisitorFunc(w.visit)); err != nil {
		w.counters.entriesDropped++
		log.Debugf("Dropping malformed entry: %v", err)
	}
}

func (w *TraceWriter) visit(e entries.Entry) error {
	if se, ok := e.(*entries.StandardEntry); ok && se.Type.IsTraceTerminal() &&
		se.Extra == w.pass.expected && w.multi.State(se.Extra) == StateUnstarted {
		w.pass.terminalSeen = true
	}
	return w.multi.Visit(e)
}
