// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package procmaps parses memory mapping listings in the /proc/<pid>/maps
// format and tells file backed mappings apart from anonymous memory.
package procmaps // import "github.com/facebookarchive/profilo-sub011/procmaps"

import (
	"bufio"
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// ErrMalformed is returned for lines that are not valid mapping lines.
var ErrMalformed = errors.New("malformed mapping line")

// Path prefixes of mappings that are not backed by a regular file.
var anonymousPrefixes = []string{
	"[anon:",
	"[heap]",
	"[stack",
	"//anon",
	"/dev/ashmem",
	"/anon_hugepage",
	"/memfd:",
}

// Mapping is one line of a maps listing.
type Mapping struct {
	Start  uint64
	End    uint64
	Flags  elf.ProgFlag
	Shared bool
	Offset uint64
	Device uint64
	Inode  uint64
	Path   string
}

// Length returns the size of the mapping in bytes.
func (m *Mapping) Length() uint64 {
	return m.End - m.Start
}

// IsAnonymous reports whether the mapping has no backing file.
func (m *Mapping) IsAnonymous() bool {
	return IsAnonymous(m.Path)
}

// IsAnonymous reports whether a mapping path denotes anonymous memory. Named
// anonymous regions like "[anon:linker_alloc]" and ashmem regions count as
// anonymous.
func IsAnonymous(path string) bool {
	if path == "" {
		return true
	}
	for _, prefix := range anonymousPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func trimPath(path string) string {
	// See path_with_deleted in linux/fs/d_path.c
	path = strings.TrimSuffix(path, " (deleted)")
	if path == "/dev/zero" {
		// JIT engines map their code area from /dev/zero.
		return ""
	}
	return path
}

// ParseLine parses a single maps line.
func ParseLine(line string) (Mapping, error) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return Mapping{}, fmt.Errorf("%w: %q", ErrMalformed, line)
	}

	start, end, ok := strings.Cut(fields[0], "-")
	if !ok {
		return Mapping{}, fmt.Errorf("%w: address range %q", ErrMalformed, fields[0])
	}
	var m Mapping
	var err error
	if m.Start, err = strconv.ParseUint(start, 16, 64); err != nil {
		return Mapping{}, fmt.Errorf("%w: start: %v", ErrMalformed, err)
	}
	if m.End, err = strconv.ParseUint(end, 16, 64); err != nil {
		return Mapping{}, fmt.Errorf("%w: end: %v", ErrMalformed, err)
	}
	if m.End < m.Start {
		return Mapping{}, fmt.Errorf("%w: end 0x%x below start 0x%x",
			ErrMalformed, m.End, m.Start)
	}

	perms := fields[1]
	if len(perms) < 4 {
		return Mapping{}, fmt.Errorf("%w: permissions %q", ErrMalformed, perms)
	}
	if perms[0] == 'r' {
		m.Flags |= elf.PF_R
	}
	if perms[1] == 'w' {
		m.Flags |= elf.PF_W
	}
	if perms[2] == 'x' {
		m.Flags |= elf.PF_X
	}
	m.Shared = perms[3] == 's'

	if m.Offset, err = strconv.ParseUint(fields[2], 16, 64); err != nil {
		return Mapping{}, fmt.Errorf("%w: offset: %v", ErrMalformed, err)
	}

	major, minor, ok := strings.Cut(fields[3], ":")
	if !ok {
		return Mapping{}, fmt.Errorf("%w: device %q", ErrMalformed, fields[3])
	}
	maj, err := strconv.ParseUint(major, 16, 64)
	if err != nil {
		return Mapping{}, fmt.Errorf("%w: major device: %v", ErrMalformed, err)
	}
	mnr, err := strconv.ParseUint(minor, 16, 64)
	if err != nil {
		return Mapping{}, fmt.Errorf("%w: minor device: %v", ErrMalformed, err)
	}
	m.Device = maj<<8 + mnr

	if m.Inode, err = strconv.ParseUint(fields[4], 10, 64); err != nil {
		return Mapping{}, fmt.Errorf("%w: inode: %v", ErrMalformed, err)
	}

	if len(fields) > 5 {
		// Paths may contain spaces, take everything after the inode.
		idx := 0
		for _, f := range fields[:5] {
			idx += strings.Index(line[idx:], f) + len(f)
		}
		m.Path = trimPath(strings.TrimSpace(line[idx:]))
	}
	return m, nil
}

// Parse reads every mapping from r. Malformed lines are skipped and counted.
func Parse(r io.Reader) ([]Mapping, uint32, error) {
	var numParseErrors uint32
	mappings := make([]Mapping, 0, 32)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		m, err := ParseLine(line)
		if err != nil {
			log.Debugf("Skipping mapping: %v", err)
			numParseErrors++
			continue
		}
		mappings = append(mappings, m)
	}
	return mappings, numParseErrors, scanner.Err()
}

// Read parses the mappings of process pid.
func Read(pid int) ([]Mapping, uint32, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/maps", pid))
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	return Parse(f)
}

// Format renders m in the maps listing format.
func (m *Mapping) Format() string {
	perms := []byte("---p")
	if m.Flags&elf.PF_R != 0 {
		perms[0] = 'r'
	}
	if m.Flags&elf.PF_W != 0 {
		perms[1] = 'w'
	}
	if m.Flags&elf.PF_X != 0 {
		perms[2] = 'x'
	}
	if m.Shared {
		perms[3] = 's'
	}
	s := fmt.Sprintf("%x-%x %s %08x %02x:%02x %d", m.Start, m.End, perms,
		m.Offset, m.Device>>8, m.Device&0xff, m.Inode)
	if m.Path != "" {
		s += " " + m.Path
	}
	return s
}

// WriteFileBacked writes the mappings that have a backing file to w, one
// line each, and returns the number of lines written.
func WriteFileBacked(w io.Writer, mappings []Mapping) (int, error) {
	bw := bufio.NewWriter(w)
	n := 0
	for i := range mappings {
		if mappings[i].IsAnonymous() {
			continue
		}
		if _, err := bw.WriteString(mappings[i].Format() + "\n"); err != nil {
			return n, err
		}
		n++
	}
	return n, bw.Flush()
}
