// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !unix

package mmap // import "github.com/lxhq/hpctoolkit/libpf/pfelf/internal/mmap"

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ReaderAt holds the file contents in memory on platforms without mmap support.
type ReaderAt struct {
	data []byte
}

// Close closes the reader.
func (r *ReaderAt) Close() error {
	r.data = nil
	return nil
}

// Len returns the length of the underlying file.
func (r *ReaderAt) Len() int {
	return len(r.data)
}

// ReadAt implements the io.ReaderAt interface.
func (r *ReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if r.data == nil {
		return 0, errors.New("mmap: closed")
	}
	if off < 0 || int64(len(r.data)) < off {
		return 0, fmt.Errorf("mmap: invalid ReadAt offset %d", off)
	}
	n := copy(p, r.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Subslice returns length bytes starting at offset without copying.
func (r *ReaderAt) Subslice(offset, length int) ([]byte, error) {
	if offset < 0 || length < 0 || offset+length > len(r.data) {
		return nil, fmt.Errorf("requested %d bytes at 0x%x exceed file of %d bytes: %w",
			length, offset, len(r.data), io.EOF)
	}
	return r.data[offset : offset+length : offset+length], nil
}

// Open reads the named file into memory.
func Open(filename string) (*ReaderAt, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = make([]byte, 0)
	}
	return &ReaderAt{data: data}, nil
}
