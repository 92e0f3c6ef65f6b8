// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package writer // import "github.com/facebookarchive/profilo-sub011/writer"

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const (
	base64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"
	traceIDLen     = 11
)

// ErrNegativeTraceID is returned when formatting a negative trace id.
var ErrNegativeTraceID = errors.New("trace id must be non-negative")

// FormatTraceID returns the fixed width base64 representation of a trace id
// used in trace headers and file names.
func FormatTraceID(traceID int64) (string, error) {
	if traceID < 0 {
		return "", fmt.Errorf("%w: %d", ErrNegativeTraceID, traceID)
	}
	var out [traceIDLen]byte
	for i := traceIDLen - 1; i >= 0; i-- {
		out[i] = base64Alphabet[traceID%64]
		traceID /= 64
	}
	return string(out[:]), nil
}

// ParseTraceID is the inverse of FormatTraceID. Ids beyond math.MaxInt64,
// i.e. with a leading digit past 'H', are rejected.
func ParseTraceID(s string) (int64, error) {
	if len(s) != traceIDLen {
		return 0, fmt.Errorf("invalid trace id %q", s)
	}
	var id int64
	for i := range len(s) {
		idx := strings.IndexByte(base64Alphabet, s[i])
		if idx < 0 || (i == 0 && idx >= 8) {
			return 0, fmt.Errorf("invalid trace id %q", s)
		}
		id = id*64 + int64(idx)
	}
	return id, nil
}

// Sanitize replaces every byte outside [A-Za-z0-9._-] with an underscore.
func Sanitize(s string) string {
	out := []byte(s)
	for i, ch := range out {
		valid := (ch >= 'A' && ch <= 'Z') ||
			(ch >= 'a' && ch <= 'z') ||
			(ch >= '0' && ch <= '9') ||
			ch == '-' || ch == '_' || ch == '.'
		if !valid {
			out[i] = '_'
		}
	}
	return string(out)
}

// TraceFolder returns the folder holding the files of a trace.
func TraceFolder(root, traceID string) string {
	return filepath.Join(root, Sanitize(traceID))
}

// TraceFileName returns the name of a trace file created at now.
func TraceFileName(prefix string, pid int, traceID string, now time.Time) string {
	name := fmt.Sprintf("%s-%d-%d-%d-%dT%d-%d-%d-%s.tmp",
		prefix, pid,
		now.Year(), int(now.Month()), now.Day(),
		now.Hour(), now.Minute(), now.Second(),
		traceID)
	return Sanitize(name)
}
