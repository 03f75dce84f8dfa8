// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package xsync_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lxhq/hpctoolkit/libpf/xsync"
)

func TestOnceRetriesFailedInit(t *testing.T) {
	var once xsync.Once[string]
	errNoDebugInfo := errors.New("no debug info")
	assert.Nil(t, once.Get())

	_, err := once.GetOrInit(func() (string, error) {
		return "", errNoDebugInfo
	})
	require.ErrorIs(t, err, errNoDebugInfo)
	assert.Nil(t, once.Get())

	val, err := once.GetOrInit(func() (string, error) {
		return "dwarf", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "dwarf", *val)
	assert.Equal(t, "dwarf", *once.Get())
}

func TestOnceInitRunsOnce(t *testing.T) {
	var once xsync.Once[int]
	var calls atomic.Int32
	var wg sync.WaitGroup

	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			val, err := once.GetOrInit(func() (int, error) {
				calls.Add(1)
				return 42, nil
			})
			assert.NoError(t, err)
			assert.Equal(t, 42, *val)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}
