// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package tracefile reads trace files written by the writer package.
package tracefile // import "github.com/facebookarchive/profilo-sub011/tracefile"

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/facebookarchive/profilo-sub011/entries"
	"github.com/facebookarchive/profilo-sub011/writer"
)

const maxLineSize = 1 << 20

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

	// ErrBadHeader is returned for files that do not start with a valid
	// trace header.
	ErrBadHeader = errors.New("malformed trace header")
	// ErrBadRecord is returned for entry lines that cannot be parsed.
	ErrBadRecord = errors.New("malformed trace record")
)

// Header is the header block of a trace file.
type Header struct {
	Version   int
	ID        string
	TraceID   int64
	Precision int
	Headers   []writer.Header
}

// Get returns the value of the caller supplied header key.
func (h *Header) Get(key string) (string, bool) {
	for _, kv := range h.Headers {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// Record is one entry line split at its separators.
type Record struct {
	Fields []string
}

// Reader reads the header and the entry lines of a trace file.
type Reader struct {
	header  Header
	scanner *bufio.Scanner
	closers []io.Closer
}

// Open opens the trace file at path. Compressed files are detected by their
// magic bytes.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	r.closers = append(r.closers, f)
	return r, nil
}

// NewReader reads a trace from src and parses its header.
func NewReader(src io.Reader) (*Reader, error) {
	br := bufio.NewReader(src)
	magic, err := br.Peek(len(zstdMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	r := &Reader{}
	var in io.Reader = br
	switch {
	case bytes.HasPrefix(magic, gzipMagic):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, zr)
		in = zr
	case bytes.HasPrefix(magic, zstdMagic):
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, zr.IOReadCloser())
		in = zr
	}

	r.scanner = bufio.NewScanner(in)
	r.scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	if err := r.readHeader(); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}

func (r *Reader) readHeader() error {
	line, ok := r.line()
	if !ok || line != "dt" {
		return fmt.Errorf("%w: missing magic line", ErrBadHeader)
	}
	for {
		line, ok = r.line()
		if !ok {
			return fmt.Errorf("%w: unterminated header", ErrBadHeader)
		}
		if line == "" {
			break
		}
		key, value, found := strings.Cut(line, "|")
		if !found {
			return fmt.Errorf("%w: %q", ErrBadHeader, line)
		}

		var err error
		switch key {
		case "ver":
			r.header.Version, err = strconv.Atoi(value)
		case "id":
			r.header.ID = value
			r.header.TraceID, err = writer.ParseTraceID(value)
		case "prec":
			r.header.Precision, err = strconv.Atoi(value)
		default:
			r.header.Headers = append(r.header.Headers,
				writer.Header{Key: key, Value: value})
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBadHeader, err)
		}
	}
	if r.header.Version != writer.TraceFormatVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrBadHeader, r.header.Version)
	}
	return nil
}

func (r *Reader) line() (string, bool) {
	if !r.scanner.Scan() {
		return "", false
	}
	return r.scanner.Text(), true
}

// Header returns the parsed header block.
func (r *Reader) Header() *Header {
	return &r.header
}

// Next returns the next entry line. It returns io.EOF after the last one.
func (r *Reader) Next() (Record, error) {
	line, ok := r.line()
	if !ok {
		if err := r.scanner.Err(); err != nil {
			return Record{}, err
		}
		return Record{}, io.EOF
	}
	_, rest, found := strings.Cut(line, "|")
	if !found {
		return Record{}, fmt.Errorf("%w: %q", ErrBadRecord, line)
	}
	typeName, _, _ := strings.Cut(rest, "|")
	n := 7
	if kindOf(typeName, line) == entries.KindBytes {
		n = 4
	}
	return Record{Fields: strings.SplitN(line, "|", n)}, nil
}

// Close releases the underlying file and decompressor.
func (r *Reader) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i].Close())
	}
	r.closers = nil
	return errors.Join(errs...)
}
