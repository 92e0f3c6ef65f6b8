// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package writer_test

import (
	"bytes"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facebookarchive/profilo-sub011/config"
	"github.com/facebookarchive/profilo-sub011/entries"
	"github.com/facebookarchive/profilo-sub011/tracefile"
	"github.com/facebookarchive/profilo-sub011/writer"
)

func testOptions(t *testing.T) *writer.Options {
	t.Helper()
	return &writer.Options{
		Folder:        t.TempDir(),
		Prefix:        "test-prefix",
		PID:           1234,
		Precision:     6,
		MaxStackDepth: 16,
		Compression:   config.CompressionNone,
		Headers: []writer.Header{
			{Key: "key1", Value: "value1"},
			{Key: "key2", Value: "value2"},
		},
	}
}

func marker(typ entries.EntryType, traceID int64) *entries.StandardEntry {
	return &entries.StandardEntry{ID: 1, Type: typ, Timestamp: 1000, Extra: traceID}
}

func filler(id int32) *entries.StandardEntry {
	return &entries.StandardEntry{ID: id, Type: entries.MarkPush, Timestamp: int64(id) * 1000}
}

func readTrace(t *testing.T, path string) (*tracefile.Header, []entries.Entry) {
	t.Helper()
	r, err := tracefile.Open(path)
	require.NoError(t, err)
	defer r.Close()

	var got []entries.Entry
	require.NoError(t, r.Visit(entries.VisitorFunc(func(e entries.Entry) error {
		got = append(got, entries.Clone(e))
		return nil
	})))
	h := *r.Header()
	return &h, got
}

func TestLifecycleStartEntriesEnd(t *testing.T) {
	opts := testOptions(t)
	var rec recorder
	v := writer.NewTraceLifecycleVisitor(1, opts, &rec)
	assert.Equal(t, writer.StateUnstarted, v.State())

	require.NoError(t, v.Visit(marker(entries.TraceStart, 1)))
	assert.Equal(t, writer.StateActive, v.State())
	for i := range 10 {
		require.NoError(t, v.Visit(filler(int32(i+2))))
	}
	require.NoError(t, v.Visit(marker(entries.TraceEnd, 1)))
	assert.Equal(t, writer.StateEnded, v.State())

	events := rec.all()
	require.Len(t, events, 2)
	assert.Equal(t, eventStart, events[0].kind)
	assert.Equal(t, int64(1), events[0].traceID)
	assert.Equal(t, eventEnd, events[1].kind)
	assert.Equal(t, int64(1), events[1].traceID)

	path := events[0].path
	assert.Equal(t, path, v.Path())
	assert.Equal(t, "AAAAAAAAAAB", filepath.Base(filepath.Dir(path)))
	name := filepath.Base(path)
	assert.True(t, strings.HasPrefix(name, "test-prefix-1234-"), name)
	assert.True(t, strings.HasSuffix(name, "-AAAAAAAAAAB.tmp"), name)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, crc32.ChecksumIEEE(raw), events[1].crc)
	assert.True(t, bytes.HasPrefix(raw,
		[]byte("dt\nver|3\nid|AAAAAAAAAAB\nprec|6\nkey1|value1\nkey2|value2\n\n")))

	header, got := readTrace(t, path)
	assert.Equal(t, int64(1), header.TraceID)
	require.Len(t, got, 12)
	assert.Equal(t, entries.TraceStart, got[0].EntryType())
	assert.Equal(t, entries.TraceEnd, got[11].EntryType())
	// Nanoseconds are truncated to microseconds.
	assert.Equal(t, int64(5), got[4].(*entries.StandardEntry).Timestamp)
}

func TestLifecycleGzipChecksum(t *testing.T) {
	opts := testOptions(t)
	opts.Compression = config.CompressionGzip
	var rec recorder
	v := writer.NewTraceLifecycleVisitor(1, opts, &rec)

	require.NoError(t, v.Visit(marker(entries.TraceStart, 1)))
	require.NoError(t, v.Visit(&entries.FramesEntry{
		ID: 2, Type: entries.StackFrame, Timestamp: 2000, TID: 1, Frames: []int64{3, 2, 1},
	}))
	require.NoError(t, v.Visit(marker(entries.TraceEnd, 1)))

	end, ok := rec.find(eventEnd, 1)
	require.True(t, ok)

	f, err := os.Open(v.Path())
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	plain, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, crc32.ChecksumIEEE(plain), end.crc)
	assert.Contains(t, string(plain), "1|STACK_FRAME|1|1|0|0|1\n0|STACK_FRAME|0|0|0|0|2\n")
}

func TestLifecycleAbortMarkers(t *testing.T) {
	tests := map[string]struct {
		marker *entries.StandardEntry
		reason writer.AbortReason
	}{
		"abort": {
			marker: marker(entries.TraceAbort, 1),
			reason: writer.AbortReasonControllerInitiated,
		},
		"abort with reason": {
			marker: &entries.StandardEntry{Type: entries.TraceAbort, Extra: 1,
				MatchID: int32(writer.AbortReasonRemoteProcess)},
			reason: writer.AbortReasonRemoteProcess,
		},
		"timeout": {
			marker: marker(entries.TraceTimeout, 1),
			reason: writer.AbortReasonTimeout,
		},
		"new start": {
			marker: marker(entries.TraceStart, 1),
			reason: writer.AbortReasonNewStart,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			var rec recorder
			v := writer.NewTraceLifecycleVisitor(1, testOptions(t), &rec)
			require.NoError(t, v.Visit(marker(entries.TraceStart, 1)))
			path := v.Path()
			require.NoError(t, v.Visit(filler(2)))
			require.NoError(t, v.Visit(tc.marker))

			assert.Equal(t, writer.StateAborted, v.State())
			assert.Equal(t, []event{
				{kind: eventStart, traceID: 1},
				{kind: eventAbort, traceID: 1, reason: tc.reason},
			}, rec.summary())
			assert.NoFileExists(t, path)

			// Aborting again or ending has no effect.
			v.Abort(writer.AbortReasonUnknown)
			require.NoError(t, v.Visit(marker(entries.TraceEnd, 1)))
			assert.Len(t, rec.all(), 2)
		})
	}
}

func TestLifecycleIgnoresOtherTraces(t *testing.T) {
	var rec recorder
	v := writer.NewTraceLifecycleVisitor(1, testOptions(t), &rec)

	require.NoError(t, v.Visit(marker(entries.TraceEnd, 1)))
	require.NoError(t, v.Visit(filler(2)))
	require.NoError(t, v.Visit(marker(entries.TraceStart, 2)))
	assert.Equal(t, writer.StateUnstarted, v.State())
	assert.Empty(t, rec.all())
}

func TestLifecycleOpenFailure(t *testing.T) {
	opts := testOptions(t)
	// A regular file where the trace folder should be created.
	opts.Folder = filepath.Join(opts.Folder, "file")
	require.NoError(t, os.WriteFile(opts.Folder, nil, 0o600))

	var rec recorder
	v := writer.NewTraceLifecycleVisitor(1, opts, &rec)
	require.NoError(t, v.Visit(marker(entries.TraceStart, 1)))

	assert.Equal(t, writer.StateAborted, v.State())
	assert.Equal(t, []event{
		{kind: eventAbort, traceID: 1, reason: writer.AbortReasonUnknown},
	}, rec.summary())
}

func TestLifecyclePipelineFailure(t *testing.T) {
	opts := testOptions(t)
	opts.MaxStackDepth = 2

	var rec recorder
	v := writer.NewTraceLifecycleVisitor(1, opts, &rec)
	require.NoError(t, v.Visit(marker(entries.TraceStart, 1)))
	require.NoError(t, v.Visit(&entries.FramesEntry{ID: 2, Type: entries.StackFrame,
		Frames: []int64{1, 2, 3}}))

	assert.Equal(t, writer.StateAborted, v.State())
	assert.Equal(t, []event{
		{kind: eventStart, traceID: 1},
		{kind: eventAbort, traceID: 1, reason: writer.AbortReasonUnknown},
	}, rec.summary())
}

func TestMultiLifecycleInterleaved(t *testing.T) {
	const traceA, traceB = 1, 2
	var rec recorder
	m, err := writer.NewMultiTraceLifecycleVisitor(testOptions(t), &rec, 16)
	require.NoError(t, err)

	for _, e := range []entries.Entry{
		marker(entries.TraceStart, traceA),
		filler(2),
		marker(entries.TraceStart, traceB),
		filler(3),
		marker(entries.TraceEnd, traceA),
		filler(4),
		marker(entries.TraceAbort, traceB),
	} {
		require.NoError(t, m.Visit(e))
	}

	assert.Equal(t, []event{
		{kind: eventStart, traceID: traceA},
		{kind: eventStart, traceID: traceB},
		{kind: eventEnd, traceID: traceA},
		{kind: eventAbort, traceID: traceB, reason: writer.AbortReasonControllerInitiated},
	}, rec.summary())
	assert.Equal(t, writer.StateEnded, m.State(traceA))
	assert.Equal(t, writer.StateAborted, m.State(traceB))
	assert.Zero(t, m.ActiveCount())

	startA, _ := rec.find(eventStart, traceA)
	startB, _ := rec.find(eventStart, traceB)
	assert.NoFileExists(t, startB.path)

	_, got := readTrace(t, startA.path)
	require.Len(t, got, 4)
	for _, e := range got {
		se, ok := e.(*entries.StandardEntry)
		require.True(t, ok)
		if se.Type.IsTraceStart() || se.Type.IsTraceTerminal() {
			assert.Equal(t, int64(traceA), se.Extra)
		}
	}
	assert.Equal(t, []int32{1, 2, 3, 1}, []int32{
		got[0].EntryID(), got[1].EntryID(), got[2].EntryID(), got[3].EntryID(),
	})
}

func TestMultiLifecycleConsumed(t *testing.T) {
	var rec recorder
	m, err := writer.NewMultiTraceLifecycleVisitor(testOptions(t), &rec, 16)
	require.NoError(t, err)

	require.NoError(t, m.Visit(marker(entries.TraceEnd, 5)))
	require.NoError(t, m.Visit(marker(entries.TraceStart, 5)))
	require.NoError(t, m.Visit(marker(entries.TraceEnd, 5)))
	// Duplicate start and stale markers of a finished trace.
	require.NoError(t, m.Visit(marker(entries.TraceStart, 5)))
	require.NoError(t, m.Visit(marker(entries.TraceAbort, 5)))

	assert.Equal(t, []event{
		{kind: eventStart, traceID: 5},
		{kind: eventEnd, traceID: 5},
	}, rec.summary())
	assert.Equal(t, writer.StateEnded, m.State(5))
	assert.Equal(t, writer.StateUnstarted, m.State(6))
}

func TestMultiLifecycleAbort(t *testing.T) {
	var rec recorder
	m, err := writer.NewMultiTraceLifecycleVisitor(testOptions(t), &rec, 16)
	require.NoError(t, err)

	require.NoError(t, m.Visit(marker(entries.TraceStart, 1)))
	require.NoError(t, m.Visit(marker(entries.TraceStart, 2)))
	assert.Equal(t, []int64{1, 2}, m.Active())

	m.AbortTrace(2, writer.AbortReasonTimeout)
	m.Abort(writer.AbortReasonMissedEvent)
	m.Abort(writer.AbortReasonMissedEvent)

	assert.Equal(t, []event{
		{kind: eventStart, traceID: 1},
		{kind: eventStart, traceID: 2},
		{kind: eventAbort, traceID: 2, reason: writer.AbortReasonTimeout},
		{kind: eventAbort, traceID: 1, reason: writer.AbortReasonMissedEvent},
	}, rec.summary())
	assert.Empty(t, m.Active())
}
