// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package writer // import "github.com/facebookarchive/profilo-sub011/writer"

import (
	"bufio"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"os"
	"strconv"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	log "github.com/sirupsen/logrus"

	"github.com/facebookarchive/profilo-sub011/config"
)

const (
	// TraceFormatVersion is written to every trace header.
	TraceFormatVersion = 3

	outputBufSize = 1 << 19
)

// Header is a key/value pair written to the trace header.
type Header struct {
	Key   string
	Value string
}

// traceOutput is the byte sink of one trace. The checksum covers the
// uncompressed bytes.
type traceOutput struct {
	path       string
	file       *os.File
	compressor io.WriteCloser
	buf        *bufio.Writer
	crc        hash.Hash32
	written    int64
}

func createOutput(path string, compression config.Compression) (*traceOutput, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, err
	}

	out := &traceOutput{
		path: path,
		file: file,
		crc:  crc32.NewIEEE(),
	}
	switch compression {
	case config.CompressionGzip:
		out.compressor, err = gzip.NewWriterLevel(file, gzip.DefaultCompression)
	case config.CompressionZstd:
		out.compressor, err = zstd.NewWriter(file)
	case config.CompressionNone:
	default:
		err = fmt.Errorf("unknown compression %q", compression)
	}
	if err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return nil, err
	}

	if out.compressor != nil {
		out.buf = bufio.NewWriterSize(out.compressor, outputBufSize)
	} else {
		out.buf = bufio.NewWriterSize(file, outputBufSize)
	}
	return out, nil
}

func (o *traceOutput) Write(p []byte) (int, error) {
	n, err := o.buf.Write(p)
	_, _ = o.crc.Write(p[:n])
	o.written += int64(n)
	return n, err
}

func (o *traceOutput) writeHeader(traceID string, precision int, headers []Header) error {
	b := make([]byte, 0, 256)
	b = append(b, "dt\nver|"...)
	b = strconv.AppendInt(b, TraceFormatVersion, 10)
	b = append(b, "\nid|"...)
	b = append(b, traceID...)
	b = append(b, "\nprec|"...)
	b = strconv.AppendInt(b, int64(precision), 10)
	b = append(b, '\n')
	for _, h := range headers {
		b = append(b, h.Key...)
		b = append(b, '|')
		b = append(b, h.Value...)
		b = append(b, '\n')
	}
	b = append(b, '\n')
	_, err := o.Write(b)
	return err
}

// finish flushes and closes the output and returns the checksum.
func (o *traceOutput) finish() (uint32, error) {
	err := o.buf.Flush()
	if o.compressor != nil {
		if cerr := o.compressor.Close(); err == nil {
			err = cerr
		}
	}
	if serr := o.file.Sync(); err == nil {
		err = serr
	}
	if cerr := o.file.Close(); err == nil {
		err = cerr
	}
	return o.crc.Sum32(), err
}

// discard closes the output and removes the partial file.
func (o *traceOutput) discard() {
	if o.compressor != nil {
		_ = o.compressor.Close()
	}
	_ = o.file.Close()
	if err := os.Remove(o.path); err != nil && !os.IsNotExist(err) {
		log.Warnf("Failed to remove partial trace %s: %v", o.path, err)
	}
}
