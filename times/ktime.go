// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package times // import "github.com/facebookarchive/profilo-sub011/times"

import (
	"time"
	_ "unsafe" // required to use //go:linkname for runtime.nanotime
)

// KTime stores a time value, retrieved from a monotonic clock, in nanoseconds.
// Entry timestamps are KTime values.
type KTime int64

// GetKTime gets the current CLOCK_MONOTONIC time in nanoseconds.
// runtime.nanotime reads the clock through the vDSO, so producers can stamp
// entries without issuing a system call.
//
//go:noescape
//go:linkname GetKTime runtime.nanotime
func GetKTime() KTime

// Time converts the monotonic timestamp into a Go time object.
func (t KTime) Time() time.Time {
	return time.Unix(0, t.UnixNano())
}

// UnixNano converts the monotonic timestamp to nanoseconds since the epoch.
func (t KTime) UnixNano() int64 {
	return int64(t) + bootTimeUnixNano.Load()
}
