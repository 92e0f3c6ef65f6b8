// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package hostmetadata collects the host and build information written to
// the header block of every trace file.
package hostmetadata // import "github.com/facebookarchive/profilo-sub011/hostmetadata"

import (
	"bytes"
	"cmp"
	"os"
	"runtime"
	"slices"
	"strconv"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/facebookarchive/profilo-sub011/vc"
	"github.com/facebookarchive/profilo-sub011/writer"
)

// Header keys. Changing these values is a visible change for trace readers.
const (
	KeyPID           = "prid"
	KeyArch          = "arch"
	KeyOS            = "os"
	KeyOSVersion     = "os_ver"
	KeyMachine       = "machine"
	KeyHostname      = "hostname"
	KeyAgentVersion  = "agent_ver"
	KeyAgentRevision = "agent_rev"
)

// Collector gathers host metadata and caller supplied key/value pairs.
type Collector struct {
	customData map[string]string

	pid   int
	uname func(*unix.Utsname) error
}

// NewCollector returns a Collector describing the calling process.
func NewCollector() *Collector {
	return &Collector{
		customData: make(map[string]string),
		pid:        os.Getpid(),
		uname:      unix.Uname,
	}
}

// AddCustomData adds a key/value pair. Custom pairs override collected ones.
func (c *Collector) AddCustomData(key, value string) {
	c.customData[key] = value
}

// GetHostMetadata returns all metadata key/value pairs.
func (c *Collector) GetHostMetadata() map[string]string {
	result := map[string]string{
		KeyPID:          strconv.Itoa(c.pid),
		KeyArch:         runtime.GOARCH,
		KeyOS:           runtime.GOOS,
		KeyAgentVersion: vc.Version(),
	}
	if rev := vc.Revision(); rev != "" {
		result[KeyAgentRevision] = rev
	}

	var uts unix.Utsname
	if err := c.uname(&uts); err != nil {
		log.Warnf("Unable to get kernel information: %v", err)
	} else {
		result[KeyOSVersion] = sanitizeString(uts.Release[:])
		result[KeyMachine] = sanitizeString(uts.Machine[:])
		result[KeyHostname] = sanitizeString(uts.Nodename[:])
	}

	for k, v := range c.customData {
		result[k] = v
	}
	return result
}

// TraceHeaders returns the metadata as trace headers, ordered by key.
func (c *Collector) TraceHeaders() []writer.Header {
	metadata := c.GetHostMetadata()
	headers := make([]writer.Header, 0, len(metadata))
	for k, v := range metadata {
		headers = append(headers, writer.Header{Key: k, Value: v})
	}
	slices.SortFunc(headers, func(a, b writer.Header) int {
		return cmp.Compare(a.Key, b.Key)
	})
	return headers
}

// sanitizeString trims NUL padding and surrounding white space.
func sanitizeString(str []byte) string {
	if i := bytes.IndexByte(str, 0); i >= 0 {
		str = str[:i]
	}
	return string(bytes.TrimSpace(str))
}
