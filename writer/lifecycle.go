// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package writer // import "github.com/facebookarchive/profilo-sub011/writer"

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/facebookarchive/profilo-sub011/config"
	"github.com/facebookarchive/profilo-sub011/entries"
)

// State is the lifecycle state of a single trace.
type State uint8

const (
	StateUnstarted State = iota
	StateActive
	StateEnded
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateActive:
		return "active"
	case StateEnded:
		return "ended"
	case StateAborted:
		return "aborted"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateEnded || s == StateAborted
}

// Options control where and how trace files are written.
type Options struct {
	Folder        string
	Prefix        string
	PID           int
	Precision     int
	MaxStackDepth int
	Compression   config.Compression
	Headers       []Header

	// Now returns the time used in file names. Defaults to time.Now.
	Now func() time.Time
}

// OptionsFromConfig derives trace output options from cfg.
func OptionsFromConfig(cfg *config.Config, headers []Header) Options {
	return Options{
		Folder:        cfg.TraceFolder,
		Prefix:        cfg.TracePrefix,
		PID:           os.Getpid(),
		Precision:     cfg.TimestampPrecision,
		MaxStackDepth: cfg.MaxStackDepth,
		Compression:   cfg.Compression,
		Headers:       headers,
	}
}

func (o *Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// TraceLifecycleVisitor follows the markers of one trace id. It opens the
// trace file on the start marker, writes every following entry through the
// output pipeline and reports the outcome to its callbacks.
type TraceLifecycleVisitor struct {
	traceID   int64
	opts      *Options
	callbacks TraceCallbacks

	state    State
	output   *traceOutput
	pipeline entries.Visitor
	// terminalSeen is set when an end or abort marker arrived before the
	// start marker.
	terminalSeen bool
}

// NewTraceLifecycleVisitor returns a visitor for traceID. callbacks may be nil.
func NewTraceLifecycleVisitor(traceID int64, opts *Options,
	callbacks TraceCallbacks) *TraceLifecycleVisitor {
	return &TraceLifecycleVisitor{
		traceID:   traceID,
		opts:      opts,
		callbacks: callbacks,
	}
}

// TraceID returns the id this visitor follows.
func (v *TraceLifecycleVisitor) TraceID() int64 {
	return v.traceID
}

// State returns the current lifecycle state.
func (v *TraceLifecycleVisitor) State() State {
	return v.state
}

// Path returns the trace file path, or "" if no file was opened.
func (v *TraceLifecycleVisitor) Path() string {
	if v.output == nil {
		return ""
	}
	return v.output.path
}

// Visit never fails. Output and pipeline errors abort the trace.
func (v *TraceLifecycleVisitor) Visit(e entries.Entry) error {
	if se, ok := e.(*entries.StandardEntry); ok &&
		(se.Type.IsTraceStart() || se.Type.IsTraceTerminal()) {
		if se.Extra != v.traceID {
			return nil
		}
		switch se.Type {
		case entries.TraceStart, entries.TraceBackwards:
			v.onStart(se)
		case entries.TraceEnd:
			v.onEnd(se)
		case entries.TraceTimeout:
			v.onAbortMarker(se, AbortReasonTimeout)
		case entries.TraceAbort:
			reason := AbortReasonControllerInitiated
			if r := AbortReason(se.MatchID); r.Valid() {
				reason = r
			}
			v.onAbortMarker(se, reason)
		}
		return nil
	}

	if v.state != StateActive {
		return nil
	}
	if err := v.pipeline.Visit(e); err != nil {
		v.fail(err)
	}
	return nil
}

// Abort ends an active trace with reason. It has no effect on a trace that
// is not active.
func (v *TraceLifecycleVisitor) Abort(reason AbortReason) {
	if v.state != StateActive {
		return
	}
	v.output.discard()
	v.retire(StateAborted)
	log.Debugf("Trace %d aborted: %s", v.traceID, reason)
	if v.callbacks != nil {
		v.callbacks.OnTraceAbort(v.traceID, reason)
	}
}

func (v *TraceLifecycleVisitor) onStart(se *entries.StandardEntry) {
	switch v.state {
	case StateActive:
		v.Abort(AbortReasonNewStart)
		return
	case StateEnded, StateAborted:
		log.Debugf("Ignoring start of finished trace %d", v.traceID)
		return
	}

	if err := v.open(); err != nil {
		log.Errorf("Failed to open trace %d: %v", v.traceID, err)
		v.state = StateAborted
		if v.callbacks != nil {
			v.callbacks.OnTraceAbort(v.traceID, AbortReasonUnknown)
		}
		return
	}
	v.state = StateActive

	if err := v.pipeline.Visit(se); err != nil {
		v.fail(err)
		return
	}
	if v.callbacks != nil {
		v.callbacks.OnTraceStart(v.traceID, se.MatchID, v.output.path)
	}
}

func (v *TraceLifecycleVisitor) onEnd(se *entries.StandardEntry) {
	if v.state != StateActive {
		v.terminalSeen = v.terminalSeen || v.state == StateUnstarted
		return
	}
	if err := v.pipeline.Visit(se); err != nil {
		v.fail(err)
		return
	}
	crc, err := v.output.finish()
	if err != nil {
		log.Errorf("Failed to finalize trace %d: %v", v.traceID, err)
		// The file is already closed, only remove it.
		_ = os.Remove(v.output.path)
		v.retire(StateAborted)
		if v.callbacks != nil {
			v.callbacks.OnTraceAbort(v.traceID, AbortReasonUnknown)
		}
		return
	}
	v.retire(StateEnded)
	if v.callbacks != nil {
		v.callbacks.OnTraceEnd(v.traceID, crc)
	}
}

func (v *TraceLifecycleVisitor) onAbortMarker(se *entries.StandardEntry, reason AbortReason) {
	if v.state != StateActive {
		v.terminalSeen = v.terminalSeen || v.state == StateUnstarted
		return
	}
	_ = v.pipeline.Visit(se)
	v.Abort(reason)
}

func (v *TraceLifecycleVisitor) fail(err error) {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		log.Errorf("I/O failure on trace %d: %v", v.traceID, err)
	} else {
		log.Warnf("Dropping trace %d: %v", v.traceID, err)
	}
	v.Abort(AbortReasonUnknown)
}

func (v *TraceLifecycleVisitor) retire(state State) {
	v.state = state
	v.pipeline = nil
}

func (v *TraceLifecycleVisitor) open() error {
	idStr, err := FormatTraceID(v.traceID)
	if err != nil {
		return err
	}
	folder := TraceFolder(v.opts.Folder, idStr)
	if err = os.MkdirAll(folder, 0o770); err != nil {
		return fmt.Errorf("failed to create trace folder: %w", err)
	}
	path := filepath.Join(folder,
		TraceFileName(v.opts.Prefix, v.opts.PID, idStr, v.opts.now()))

	out, err := createOutput(path, v.opts.Compression)
	if err != nil {
		return err
	}
	if err = out.writeHeader(idStr, v.opts.Precision, v.opts.Headers); err != nil {
		out.discard()
		return err
	}
	pipeline, err := NewPipeline(out, v.opts.Precision, v.opts.MaxStackDepth)
	if err != nil {
		out.discard()
		return err
	}
	v.output = out
	v.pipeline = pipeline
	return nil
}

// bytesWritten returns the uncompressed size of the trace so far.
func (v *TraceLifecycleVisitor) bytesWritten() int64 {
	if v.output == nil {
		return 0
	}
	return v.output.written
}
