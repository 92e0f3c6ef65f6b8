// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package hostmetadata

import (
	"errors"
	"os"
	"runtime"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/facebookarchive/profilo-sub011/writer"
)

func fakeUname(release, machine, node string) func(*unix.Utsname) error {
	return func(uts *unix.Utsname) error {
		copy(uts.Release[:], release)
		copy(uts.Machine[:], machine)
		copy(uts.Nodename[:], node)
		return nil
	}
}

func TestGetHostMetadata(t *testing.T) {
	c := NewCollector()
	c.uname = fakeUname("6.1.0-test ", "aarch64", "host-1")
	c.AddCustomData("app", "demo")
	c.AddCustomData(KeyHostname, "override")

	md := c.GetHostMetadata()
	assert.Equal(t, strconv.Itoa(os.Getpid()), md[KeyPID])
	assert.Equal(t, runtime.GOARCH, md[KeyArch])
	assert.Equal(t, runtime.GOOS, md[KeyOS])
	assert.Equal(t, "6.1.0-test", md[KeyOSVersion])
	assert.Equal(t, "aarch64", md[KeyMachine])
	assert.Equal(t, "override", md[KeyHostname])
	assert.Equal(t, "demo", md["app"])
	assert.Equal(t, "dev", md[KeyAgentVersion])
}

func TestUnameFailure(t *testing.T) {
	c := NewCollector()
	c.uname = func(*unix.Utsname) error { return errors.New("denied") }

	md := c.GetHostMetadata()
	assert.NotContains(t, md, KeyOSVersion)
	assert.Contains(t, md, KeyPID)
}

func TestTraceHeaders(t *testing.T) {
	c := NewCollector()
	c.pid = 42
	c.uname = fakeUname("5.10", "x86_64", "box")

	headers := c.TraceHeaders()
	require.NotEmpty(t, headers)
	for i := 1; i < len(headers); i++ {
		assert.Less(t, headers[i-1].Key, headers[i].Key)
	}
	assert.Contains(t, headers, writer.Header{Key: KeyPID, Value: "42"})
	assert.Contains(t, headers, writer.Header{Key: KeyOSVersion, Value: "5.10"})
}

func TestSanitizeString(t *testing.T) {
	tests := map[string]struct {
		in   []byte
		want string
	}{
		"nul padded": {in: []byte("abc\x00\x00\x00"), want: "abc"},
		"spaces":     {in: []byte("  abc \n"), want: "abc"},
		"empty":      {in: []byte{0, 0}, want: ""},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, sanitizeString(tc.in))
		})
	}
}
