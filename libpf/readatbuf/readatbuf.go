// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package readatbuf adds a page cache to types that implement the `ReaderAt` interface. The
// ELF reader uses it for files that are not memory mapped: header, symbol and string table
// reads are small and clustered, section content reads are large and bypass the cache.
package readatbuf // import "github.com/lxhq/hpctoolkit/libpf/readatbuf"

import (
	"errors"
	"fmt"
	"io"
	"sync"

	lru "github.com/elastic/go-freelru"

	"github.com/lxhq/hpctoolkit/libpf/freelru"
)

// page is a cached region of the underlying reader.
type page struct {
	data []byte
	// eof is set if the read filling this page hit the end of the reader.
	eof bool
}

// Statistics contains statistics about cache efficiency.
type Statistics struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Bypassed  uint64
}

// Reader implements buffering for random access reads via the `ReaderAt` interface. It is
// safe for concurrent use.
type Reader struct {
	inner    io.ReaderAt
	pageSize uint64

	mu    sync.Mutex
	cache *lru.LRU[uint64, page]
	stats Statistics
	spare []byte
}

var _ io.ReaderAt = &Reader{}

// New creates a new buffered reader. pageSize decides the size of each cached region and
// cacheSize the maximum number of regions kept.
func New(inner io.ReaderAt, pageSize, cacheSize uint) (*Reader, error) {
	if pageSize == 0 {
		return nil, errors.New("pageSize cannot be zero")
	}
	if cacheSize == 0 {
		return nil, errors.New("cacheSize cannot be zero")
	}

	reader := &Reader{
		inner:    inner,
		pageSize: uint64(pageSize),
	}

	cache, err := lru.New[uint64, page](uint32(cacheSize), freelru.HashUint64)
	if err != nil {
		return nil, fmt.Errorf("failed to create internal cache: %w", err)
	}
	cache.SetOnEvict(func(_ uint64, p page) {
		reader.stats.Evictions++
		// EOF pages may have been truncated, but all of them were allocated with the full
		// page size, so the capacity allows growing them back.
		reader.spare = p.data[:pageSize]
	})
	reader.cache = cache

	return reader, nil
}

// InvalidateCache flushes the internal cache and resets the statistics.
func (reader *Reader) InvalidateCache() {
	reader.mu.Lock()
	defer reader.mu.Unlock()
	reader.cache.Purge()
	reader.stats = Statistics{}
}

// Statistics returns statistics about cache efficiency.
func (reader *Reader) Statistics() Statistics {
	reader.mu.Lock()
	defer reader.mu.Unlock()
	return reader.stats
}

// ReadAt implements the `ReaderAt` interface.
func (reader *Reader) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset value %d given", off)
	}

	// Large reads (section contents) go straight to the inner reader so that a single
	// read does not flush every cached header page.
	if uint64(len(p)) > reader.pageSize*3/2 {
		reader.mu.Lock()
		reader.stats.Bypassed++
		reader.mu.Unlock()
		return reader.inner.ReadAt(p, off)
	}

	reader.mu.Lock()
	defer reader.mu.Unlock()

	written := uint64(0)
	remaining := uint64(len(p))
	skip := uint64(off) % reader.pageSize
	pageIdx := uint64(off) / reader.pageSize

	for remaining > 0 {
		data, eof, err := reader.page(pageIdx)
		if err != nil {
			return int(written), err
		}
		if skip > uint64(len(data)) {
			return int(written), io.EOF
		}

		n := min(remaining, uint64(len(data))-skip)
		copy(p[written:written+n], data[skip:skip+n])

		skip = 0
		pageIdx++
		written += n
		remaining -= n

		if eof {
			if remaining == 0 {
				break
			}
			return int(written), io.EOF
		}
	}

	return int(written), nil
}

// page returns the cached page or reads it. reader.mu must be held.
func (reader *Reader) page(pageIdx uint64) (data []byte, eof bool, err error) {
	if cached, ok := reader.cache.Get(pageIdx); ok {
		reader.stats.Hits++
		return cached.data, cached.eof, nil
	}
	reader.stats.Misses++

	buffer := reader.spare
	reader.spare = nil
	if buffer == nil {
		buffer = make([]byte, reader.pageSize)
	}

	n, err := reader.inner.ReadAt(buffer, int64(pageIdx*reader.pageSize))
	if err != nil {
		// Pages are read speculatively, so hitting the end of the reader is expected.
		if !errors.Is(err, io.EOF) {
			return nil, false, err
		}
		buffer = buffer[:n]
		eof = true
	}
	if !eof && uint64(n) < reader.pageSize {
		return nil, false, errors.New("failed to read whole page")
	}

	reader.cache.Add(pageIdx, page{data: buffer, eof: eof})
	return buffer, eof, nil
}
