// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package mmapbuf // import "github.com/facebookarchive/profilo-sub011/mmapbuf"

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/facebookarchive/profilo-sub011/buffer"
	"github.com/facebookarchive/profilo-sub011/config"
	"github.com/facebookarchive/profilo-sub011/entries"
	"github.com/facebookarchive/profilo-sub011/logger"
	"github.com/facebookarchive/profilo-sub011/procmaps"
	"github.com/facebookarchive/profilo-sub011/reassembler"
	"github.com/facebookarchive/profilo-sub011/times"
	"github.com/facebookarchive/profilo-sub011/writer"
)

const (
	// TriggerEventFlag marks annotations describing how a trace was
	// collected.
	TriggerEventFlag int64 = 1 << 49

	// MappingKey is the annotation key of recovered memory mappings.
	MappingKey = "l:s:u:o:s"

	// Slots reserved for the entries added around the recovered ones.
	extraSlots = 4096
)

// Call ids of the TRACE_ANNOTATION entries added to recovered traces.
const (
	AnnotationVersionCode int32 = iota + 1
	AnnotationConfigID
	AnnotationSessionID
	AnnotationPID
	AnnotationCollection
)

var (
	// ErrNoActiveTrace is returned for dumps of processes that were not
	// tracing when they died.
	ErrNoActiveTrace = errors.New("no trace was active")
	// ErrEmptyDump is returned when no entry could be read from a dump.
	ErrEmptyDump = errors.New("unable to read the file-backed buffer")
	// ErrTraceAborted is returned when the recovered trace was aborted
	// instead of written.
	ErrTraceAborted = errors.New("recovered trace was not written")
)

// DumpWriter turns buffer files left behind by dead processes into trace
// files.
type DumpWriter struct {
	cfg       *config.Config
	callbacks writer.TraceCallbacks
	headers   []writer.Header
	flags     int32
}

// NewDumpWriter returns a DumpWriter writing traces as configured by cfg.
// traceFlags is reported as the flags of every recovered trace.
func NewDumpWriter(cfg *config.Config, callbacks writer.TraceCallbacks,
	headers []writer.Header, traceFlags int32) (*DumpWriter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &DumpWriter{
		cfg:       cfg,
		callbacks: callbacks,
		headers:   headers,
		flags:     traceFlags,
	}, nil
}

// WriteTrace recovers the trace that was active in the buffer file at
// dumpPath and returns its id. dumpType is recorded as an annotation. The
// trace outcome is reported to the callbacks.
func (d *DumpWriter) WriteTrace(ctx context.Context, dumpPath, dumpType string) (int64, error) {
	return d.writeTrace(ctx, dumpPath, dumpType, int64(times.GetKTime()))
}

func (d *DumpWriter) writeTrace(ctx context.Context, dumpPath, dumpType string,
	timestamp int64) (int64, error) {
	src, err := Open(dumpPath)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	hdr := src.Header()
	if hdr.TraceID == 0 {
		return 0, ErrNoActiveTrace
	}
	traceID := hdr.TraceID

	payloads, stats := reassembler.CollectBackwards(src.TraceBuffer(), d.cfg.StreamPoolSize)
	if len(payloads) == 0 {
		return traceID, fmt.Errorf("%w: %s", ErrEmptyDump, dumpPath)
	}
	log.Debugf("Recovered %d entries of trace %d from %s, dropped %d packets",
		len(payloads), traceID, dumpPath, stats.Dropped)

	var mappings []string
	if hdr.MapsFilename != "" {
		mappings = readMappings(filepath.Join(filepath.Dir(dumpPath), hdr.MapsFilename))
	}

	slots := extraSlots
	for _, p := range payloads {
		slots += packetsFor(len(p))
	}
	for _, line := range mappings {
		slots += 1 + packetsFor(entries.BytesEntryHeaderSize+len(MappingKey)) +
			packetsFor(entries.BytesEntryHeaderSize+len(line)) +
			len(line)/logger.MaxVariableLengthEntry
	}
	dst, err := buffer.New(slots)
	if err != nil {
		return traceID, err
	}
	start := dst.CurrentHead()
	l := logger.New(dst, logger.Config{})
	tid := logger.ThreadID()

	write := func(typ entries.EntryType, callID, matchID int32, extra int64) int32 {
		// Standard entries always fit a packet stream.
		id, _ := l.Write(&entries.StandardEntry{
			Type:      typ,
			Timestamp: timestamp,
			TID:       tid,
			CallID:    callID,
			MatchID:   matchID,
			Extra:     extra,
		})
		return id
	}

	// Recovered traces are marked as backwards traces.
	write(entries.TraceBackwards, 0, d.flags, traceID)
	for _, p := range payloads {
		if isMarkerOf(p, traceID) {
			continue
		}
		l.WritePayload(p)
	}

	write(entries.TraceAnnotation, AnnotationVersionCode, 0, hdr.VersionCode)
	write(entries.TraceAnnotation, AnnotationConfigID, 0, hdr.ConfigID)
	write(entries.TraceAnnotation, AnnotationPID, 0, int64(hdr.PID))
	id := write(entries.TraceAnnotation, AnnotationSessionID, 0, 0)
	l.WriteAnnotation(id, "session_id", hdr.SessionID)
	id = write(entries.TraceAnnotation, AnnotationCollection, 0, TriggerEventFlag)
	l.WriteAnnotation(id, "type", dumpType)
	id = write(entries.TraceAnnotation, AnnotationCollection, 0, TriggerEventFlag)
	l.WriteAnnotation(id, "collection_method", "persistent")

	for _, line := range mappings {
		id = write(entries.Mapping, 0, 0, 0)
		l.WriteAnnotation(id, MappingKey, line)
	}

	write(entries.TraceEnd, 0, 0, traceID)

	w, err := writer.New(dst, d.cfg, d.callbacks, d.headers)
	if err != nil {
		return traceID, err
	}
	if err = w.ProcessTrace(ctx, traceID, start); err != nil {
		return traceID, err
	}
	if state := w.State(traceID); state != writer.StateEnded {
		return traceID, fmt.Errorf("%w: trace %d is %s", ErrTraceAborted, traceID, state)
	}
	return traceID, nil
}

// isMarkerOf reports whether payload is a start or terminal marker of
// traceID. The recovered trace gets its own markers.
func isMarkerOf(payload []byte, traceID int64) bool {
	kind, err := entries.PeekType(payload)
	if err != nil || kind != entries.KindStandard {
		return false
	}
	var se entries.StandardEntry
	if err = entries.UnpackStandard(payload, &se); err != nil {
		return false
	}
	return se.Extra == traceID &&
		(se.Type.IsTraceStart() || se.Type.IsTraceTerminal())
}

// readMappings returns the file backed mapping lines of a memory maps file.
// A missing or unreadable file yields no mappings.
func readMappings(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		log.Debugf("Skipping memory mappings: %v", err)
		return nil
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		m, err := procmaps.ParseLine(line)
		if err != nil || m.IsAnonymous() {
			continue
		}
		lines = append(lines, line)
	}
	if err = scanner.Err(); err != nil {
		log.Warnf("Failed to read memory mappings %s: %v", path, err)
	}
	return lines
}

func packetsFor(n int) int {
	return max(1, (n+buffer.MaxPayloadSize-1)/buffer.MaxPayloadSize)
}
