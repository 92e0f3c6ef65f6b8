// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package mmapbuf places a trace buffer in a file backed shared mapping so
// the packets written by a process survive its crash. The file starts with a
// fixed size prefix describing the buffer and the trace that was active.
package mmapbuf // import "github.com/facebookarchive/profilo-sub011/mmapbuf"

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"unsafe"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/facebookarchive/profilo-sub011/buffer"
	"github.com/facebookarchive/profilo-sub011/procmaps"
)

const (
	// Magic identifies buffer files.
	Magic uint64 = 0x6275666f6c69666f
	// Version is the prefix layout version.
	Version uint32 = 1
	// PrefixSize is the number of bytes in front of the ring buffer region.
	PrefixSize = 4096

	sessionIDLen    = 40
	mapsFilenameLen = 512
)

var (
	// ErrBadMagic is returned for files that are not buffer files.
	ErrBadMagic = errors.New("not a buffer file")
	// ErrVersionMismatch is returned for buffer files of another layout.
	ErrVersionMismatch = errors.New("unsupported buffer file version")
	// ErrNameTooLong is returned for a memory maps file name that does not
	// fit the prefix.
	ErrNameTooLong = errors.New("memory maps file name too long")
)

// prefix is the on-file layout in front of the ring buffer region.
type prefix struct {
	magic         uint64
	version       uint32
	bufferVersion uint32
	slots         uint64
	traceID       atomic.Int64
	pid           uint32
	_             uint32
	versionCode   int64
	configID      int64
	sessionID     [sessionIDLen]byte
	mapsFilename  [mapsFilenameLen]byte
}

// Compile time check that the prefix fits.
var _ [PrefixSize - unsafe.Sizeof(prefix{})]byte

// Options describe the process owning a new buffer file.
type Options struct {
	Slots       int
	VersionCode int64
	ConfigID    int64
}

// Header is a snapshot of a buffer file prefix.
type Header struct {
	Version       uint32
	BufferVersion uint32
	Slots         uint64
	TraceID       int64
	PID           uint32
	VersionCode   int64
	ConfigID      int64
	SessionID     string
	MapsFilename  string
}

// Buffer is a trace buffer backed by a memory mapped file.
type Buffer struct {
	path string
	mem  []byte
	pfx  *prefix
	buf  *buffer.TraceBuffer
}

// FileSize returns the size of a buffer file holding slots packets.
func FileSize(slots int) int {
	return PrefixSize + buffer.RegionSize(slots)
}

// Create creates or truncates the buffer file at path and maps it shared, so
// every packet written reaches the file without further calls.
func Create(path string, opts Options) (*Buffer, error) {
	if opts.Slots < 1 {
		return nil, buffer.ErrInvalidSlots
	}
	size := FileSize(opts.Slots)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err = f.Truncate(int64(size)); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to size buffer file: %w", err)
	}
	mem, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED)
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to map buffer file: %w", err)
	}

	tb, err := buffer.Init(mem[PrefixSize:], opts.Slots)
	if err != nil {
		_ = unix.Munmap(mem)
		_ = os.Remove(path)
		return nil, err
	}

	b := &Buffer{
		path: path,
		mem:  mem,
		pfx:  (*prefix)(unsafe.Pointer(&mem[0])),
		buf:  tb,
	}
	b.pfx.version = Version
	b.pfx.bufferVersion = buffer.Version
	b.pfx.slots = uint64(opts.Slots)
	b.pfx.pid = uint32(os.Getpid())
	b.pfx.versionCode = opts.VersionCode
	b.pfx.configID = opts.ConfigID
	copy(b.pfx.sessionID[:], uuid.New().String())
	// The magic is written last so a torn creation is never recognized.
	b.pfx.magic = Magic
	return b, nil
}

// Open maps an existing buffer file copy-on-write. Changes made through the
// returned Buffer never reach the file.
func Open(path string) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if st.Size() < PrefixSize {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrBadMagic, path, st.Size())
	}
	mem, err := unix.Mmap(int(f.Fd()), 0, int(st.Size()),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("failed to map buffer file: %w", err)
	}

	b := &Buffer{
		path: path,
		mem:  mem,
		pfx:  (*prefix)(unsafe.Pointer(&mem[0])),
	}
	if err = b.validate(); err != nil {
		_ = unix.Munmap(mem)
		return nil, err
	}
	if b.buf, err = buffer.Attach(mem[PrefixSize:]); err != nil {
		_ = unix.Munmap(mem)
		return nil, err
	}
	return b, nil
}

func (b *Buffer) validate() error {
	if b.pfx.magic != Magic {
		return fmt.Errorf("%w: magic 0x%x", ErrBadMagic, b.pfx.magic)
	}
	if b.pfx.version != Version {
		return fmt.Errorf("%w: prefix version %d", ErrVersionMismatch, b.pfx.version)
	}
	if b.pfx.bufferVersion != buffer.Version {
		return fmt.Errorf("%w: buffer version %d", ErrVersionMismatch,
			b.pfx.bufferVersion)
	}
	return nil
}

// Path returns the buffer file path.
func (b *Buffer) Path() string {
	return b.path
}

// TraceBuffer returns the ring buffer living in the file.
func (b *Buffer) TraceBuffer() *buffer.TraceBuffer {
	return b.buf
}

// SetTraceID records the id of the active trace, or 0 if none is active.
func (b *Buffer) SetTraceID(traceID int64) {
	b.pfx.traceID.Store(traceID)
}

// SetMapsFilename records the name of the memory maps file, relative to the
// directory of the buffer file.
func (b *Buffer) SetMapsFilename(name string) error {
	if len(name) >= mapsFilenameLen {
		return fmt.Errorf("%w: %d bytes", ErrNameTooLong, len(name))
	}
	clear(b.pfx.mapsFilename[:])
	copy(b.pfx.mapsFilename[:], name)
	return nil
}

// WriteMappings stores the file backed mappings of the calling process next
// to the buffer file under name and records name in the prefix.
func (b *Buffer) WriteMappings(name string) error {
	mappings, _, err := procmaps.Read(os.Getpid())
	if err != nil {
		return fmt.Errorf("failed to read mappings: %w", err)
	}
	f, err := os.Create(filepath.Join(filepath.Dir(b.path), name))
	if err != nil {
		return err
	}
	if _, err = procmaps.WriteFileBacked(f, mappings); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return b.SetMapsFilename(name)
}

// Header returns a snapshot of the prefix.
func (b *Buffer) Header() Header {
	return Header{
		Version:       b.pfx.version,
		BufferVersion: b.pfx.bufferVersion,
		Slots:         b.pfx.slots,
		TraceID:       b.pfx.traceID.Load(),
		PID:           b.pfx.pid,
		VersionCode:   b.pfx.versionCode,
		ConfigID:      b.pfx.configID,
		SessionID:     cString(b.pfx.sessionID[:]),
		MapsFilename:  cString(b.pfx.mapsFilename[:]),
	}
}

// Sync flushes the mapping to the file.
func (b *Buffer) Sync() error {
	return unix.Msync(b.mem, unix.MS_SYNC)
}

// Close unmaps the file. The Buffer and its TraceBuffer must not be used
// afterwards.
func (b *Buffer) Close() error {
	if b.mem == nil {
		return nil
	}
	err := unix.Munmap(b.mem)
	b.mem = nil
	b.pfx = nil
	b.buf = nil
	return err
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
