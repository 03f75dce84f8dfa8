// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package readatbuf_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lxhq/hpctoolkit/libpf/readatbuf"
	"github.com/lxhq/hpctoolkit/testsupport"
)

func testVariant(t *testing.T, fileSize, granularity, cacheSize uint) {
	file := testsupport.GenerateTestInputFile(255, fileSize)
	cachingReader, err := readatbuf.New(bytes.NewReader(file), granularity, cacheSize)
	require.NoError(t, err)
	testsupport.ValidateReadAtWrapperTransparency(t, 10000, file, cachingReader)
}

func TestCaching(t *testing.T) {
	testVariant(t, 1024, 64, 1)
	testVariant(t, 1346, 11, 55)
	testVariant(t, 889, 34, 111)
}

func TestStatistics(t *testing.T) {
	file := testsupport.GenerateTestInputFile(16, 4096)
	reader, err := readatbuf.New(bytes.NewReader(file), 256, 4)
	require.NoError(t, err)

	small := make([]byte, 16)
	_, err = reader.ReadAt(small, 0)
	require.NoError(t, err)
	_, err = reader.ReadAt(small, 32)
	require.NoError(t, err)

	large := make([]byte, 1024)
	_, err = reader.ReadAt(large, 0)
	require.NoError(t, err)
	assert.Equal(t, file[:1024], large)

	stats := reader.Statistics()
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Bypassed)

	reader.InvalidateCache()
	assert.Equal(t, readatbuf.Statistics{}, reader.Statistics())
}

func TestNewRejectsZeroSizes(t *testing.T) {
	_, err := readatbuf.New(bytes.NewReader(nil), 0, 1)
	require.Error(t, err)
	_, err = readatbuf.New(bytes.NewReader(nil), 1, 0)
	require.Error(t, err)
}
