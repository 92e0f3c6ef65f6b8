// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package procmaps_test

import (
	"bytes"
	"debug/elf"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facebookarchive/profilo-sub011/procmaps"
)

const sampleMaps = `55fe82710000-55fe8273e000 r--p 00000000 fd:01 1068432 /usr/bin/dockerd
55fe8273e000-55fe83ec9000 r-xp 0002e000 fd:01 1068432 /usr/bin/dockerd
7f63c8c3b000-7f63c8c3c000 rw-p 00000000 00:00 0 [anon:linker_alloc_32]
7f63c8c3c000-7f63c8cbc000 rw-s 00000000 00:05 4099 /dev/ashmem/dalvik-heap (deleted)
7f63c8cbc000-7f63c8ebc000 r-xp 00000000 00:00 0
7f63c8ebc000-7f63c8ebd000 r-xp 00001000 fd:01 33 /system/lib/lib with space.so
garbage
7ffc7e1c1000-7ffc7e1e3000 rw-p 00000000 00:00 0 [stack]
`

func TestIsAnonymous(t *testing.T) {
	tests := map[string]struct {
		path string
		want bool
	}{
		"named anon":   {path: "[anon:linker_alloc_32]", want: true},
		"library":      {path: "/system/lib/libbinder.so", want: false},
		"empty":        {path: "", want: true},
		"ashmem":       {path: "/dev/ashmem/dalvik-main space", want: true},
		"heap":         {path: "[heap]", want: true},
		"thread stack": {path: "[stack:1234]", want: true},
		"apk":          {path: "/data/app/base.apk", want: false},
		"vdso":         {path: "[vdso]", want: false},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, procmaps.IsAnonymous(tc.path))
		})
	}
}

func TestParse(t *testing.T) {
	mappings, numErrors, err := procmaps.Parse(strings.NewReader(sampleMaps))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), numErrors)
	require.Len(t, mappings, 7)

	assert.Equal(t, procmaps.Mapping{
		Start:  0x55fe8273e000,
		End:    0x55fe83ec9000,
		Flags:  elf.PF_R | elf.PF_X,
		Offset: 0x2e000,
		Device: 0xfd01,
		Inode:  1068432,
		Path:   "/usr/bin/dockerd",
	}, mappings[1])
	assert.Equal(t, uint64(0x178b000), mappings[1].Length())

	assert.True(t, mappings[2].IsAnonymous())
	assert.True(t, mappings[3].Shared)
	assert.Equal(t, "/dev/ashmem/dalvik-heap", mappings[3].Path)
	assert.Empty(t, mappings[4].Path)
	assert.True(t, mappings[4].IsAnonymous())
	assert.Equal(t, "/system/lib/lib with space.so", mappings[5].Path)
	assert.False(t, mappings[5].IsAnonymous())
}

func TestParseLineErrors(t *testing.T) {
	for name, line := range map[string]string{
		"too few fields": "55fe82710000-55fe8273e000 r--p 00000000",
		"bad range":      "55fe82710000 r--p 00000000 fd:01 1 /a",
		"reversed range": "2000-1000 r--p 00000000 fd:01 1 /a",
		"bad perms":      "1000-2000 r- 00000000 fd:01 1 /a",
		"bad device":     "1000-2000 r--p 00000000 fd01 1 /a",
		"bad inode":      "1000-2000 r--p 00000000 fd:01 x /a",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := procmaps.ParseLine(line)
			require.ErrorIs(t, err, procmaps.ErrMalformed)
		})
	}
}

func TestWriteFileBacked(t *testing.T) {
	mappings, _, err := procmaps.Parse(strings.NewReader(sampleMaps))
	require.NoError(t, err)

	var out bytes.Buffer
	n, err := procmaps.WriteFileBacked(&out, mappings)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t,
		"55fe82710000-55fe8273e000 r--p 00000000 fd:01 1068432 /usr/bin/dockerd\n"+
			"55fe8273e000-55fe83ec9000 r-xp 0002e000 fd:01 1068432 /usr/bin/dockerd\n"+
			"7f63c8ebc000-7f63c8ebd000 r-xp 00001000 fd:01 33 /system/lib/lib with space.so\n",
		out.String())

	reparsed, numErrors, err := procmaps.Parse(&out)
	require.NoError(t, err)
	assert.Zero(t, numErrors)
	assert.Len(t, reparsed, 3)
}

func TestReadSelf(t *testing.T) {
	mappings, _, err := procmaps.Read(os.Getpid())
	require.NoError(t, err)
	assert.NotEmpty(t, mappings)
}
