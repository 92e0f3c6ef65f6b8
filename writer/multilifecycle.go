// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package writer // import "github.com/facebookarchive/profilo-sub011/writer"

import (
	"encoding/binary"
	"slices"

	lru "github.com/elastic/go-freelru"
	log "github.com/sirupsen/logrus"
	"github.com/zeebo/xxh3"

	"github.com/facebookarchive/profilo-sub011/entries"
)

func hashTraceID(id int64) uint32 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(id))
	return uint32(xxh3.Hash(b[:]))
}

// MultiTraceLifecycleVisitor runs one TraceLifecycleVisitor per concurrently
// open trace. Start and terminal markers only reach the visitor of the trace
// they name. All other entries reach every active trace.
type MultiTraceLifecycleVisitor struct {
	opts      *Options
	callbacks TraceCallbacks

	visitors map[int64]*TraceLifecycleVisitor
	// order keeps the active trace ids in creation order.
	order []int64
	// scratch is reused to iterate order while visitors retire.
	scratch []int64
	// consumed remembers the final state of retired traces.
	consumed *lru.LRU[int64, State]

	bytesWritten int64
}

// NewMultiTraceLifecycleVisitor returns a demultiplexing visitor remembering
// up to consumedCacheSize finished trace ids.
func NewMultiTraceLifecycleVisitor(opts *Options, callbacks TraceCallbacks,
	consumedCacheSize uint32) (*MultiTraceLifecycleVisitor, error) {
	consumed, err := lru.New[int64, State](consumedCacheSize, hashTraceID)
	if err != nil {
		return nil, err
	}
	return &MultiTraceLifecycleVisitor{
		opts:      opts,
		callbacks: callbacks,
		visitors:  make(map[int64]*TraceLifecycleVisitor),
		consumed:  consumed,
	}, nil
}

func (m *MultiTraceLifecycleVisitor) Visit(e entries.Entry) error {
	se, ok := e.(*entries.StandardEntry)
	if ok && se.Type.IsTraceStart() {
		m.visitStart(se)
		return nil
	}
	if ok && se.Type.IsTraceTerminal() {
		v, found := m.visitors[se.Extra]
		if !found {
			log.Debugf("Ignoring %s for inactive trace %d", se.Type, se.Extra)
			return nil
		}
		_ = v.Visit(se)
		m.retireIfDone(v)
		return nil
	}

	m.scratch = append(m.scratch[:0], m.order...)
	for _, id := range m.scratch {
		v := m.visitors[id]
		_ = v.Visit(e)
		m.retireIfDone(v)
	}
	return nil
}

func (m *MultiTraceLifecycleVisitor) visitStart(se *entries.StandardEntry) {
	id := se.Extra
	if v, found := m.visitors[id]; found {
		// A second start of an active trace aborts it.
		_ = v.Visit(se)
		m.retireIfDone(v)
		return
	}
	if _, done := m.consumed.Get(id); done {
		log.Debugf("Ignoring duplicate start of trace %d", id)
		return
	}

	v := NewTraceLifecycleVisitor(id, m.opts, m.callbacks)
	_ = v.Visit(se)
	if v.State() != StateActive {
		m.consumed.Add(id, v.State())
		return
	}
	m.visitors[id] = v
	m.order = append(m.order, id)
}

func (m *MultiTraceLifecycleVisitor) retireIfDone(v *TraceLifecycleVisitor) {
	if !v.State().Terminal() {
		return
	}
	m.bytesWritten += v.bytesWritten()
	delete(m.visitors, v.TraceID())
	m.order = slices.DeleteFunc(m.order, func(id int64) bool {
		return id == v.TraceID()
	})
	m.consumed.Add(v.TraceID(), v.State())
}

// Abort aborts every active trace with reason.
func (m *MultiTraceLifecycleVisitor) Abort(reason AbortReason) {
	for _, id := range slices.Clone(m.order) {
		m.AbortTrace(id, reason)
	}
}

// AbortTrace aborts the trace id if it is active.
func (m *MultiTraceLifecycleVisitor) AbortTrace(id int64, reason AbortReason) {
	v, found := m.visitors[id]
	if !found {
		return
	}
	v.Abort(reason)
	m.retireIfDone(v)
}

// Forget marks the unstarted trace id as aborted so that a later start of
// it is ignored. Active traces are left alone.
func (m *MultiTraceLifecycleVisitor) Forget(id int64) {
	if _, found := m.visitors[id]; found {
		return
	}
	if _, done := m.consumed.Get(id); done {
		return
	}
	m.consumed.Add(id, StateAborted)
}

// State returns the lifecycle state of trace id. Ids that were never started
// or fell out of the consumed cache report StateUnstarted.
func (m *MultiTraceLifecycleVisitor) State(id int64) State {
	if v, found := m.visitors[id]; found {
		return v.State()
	}
	if s, found := m.consumed.Get(id); found {
		return s
	}
	return StateUnstarted
}

// Active returns the ids of active traces in start order.
func (m *MultiTraceLifecycleVisitor) Active() []int64 {
	return slices.Clone(m.order)
}

// ActiveCount returns the number of active traces.
func (m *MultiTraceLifecycleVisitor) ActiveCount() int {
	return len(m.order)
}

// BytesWritten returns the uncompressed bytes of retired traces and resets
// the counter.
func (m *MultiTraceLifecycleVisitor) BytesWritten() int64 {
	n := m.bytesWritten
	m.bytesWritten = 0
	return n
}
