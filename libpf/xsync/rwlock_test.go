// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package xsync_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lxhq/hpctoolkit/libpf/xsync"
)

func TestRWMutexConcurrentWriters(t *testing.T) {
	pcs := xsync.NewRWMutex(map[uint64]int{})

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 100 {
				m := pcs.WLock()
				(*m)[uint64(w*1000+i)]++
				pcs.WUnlock(&m)
			}
		}()
	}
	wg.Wait()

	m := pcs.RLock()
	defer pcs.RUnlock(&m)
	assert.Len(t, *m, 800)
}

func TestRWMutexUnlockClearsReference(t *testing.T) {
	m := xsync.NewRWMutex(uint64(0))
	p := m.WLock()
	*p = 123
	m.WUnlock(&p)
	assert.Nil(t, p)

	assert.Panics(t, func() {
		*p = 345
	})

	r := m.RLock()
	assert.Equal(t, uint64(123), *r)
	m.RUnlock(&r)
	assert.Nil(t, r)
}
