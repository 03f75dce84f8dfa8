// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package xsync // import "github.com/lxhq/hpctoolkit/libpf/xsync"

import (
	"sync"
	"sync/atomic"
)

// Once holds a value that is built at most once, on first use. The ELF reader keeps its
// parsed DWARF data in one so that files nobody asks for names never pay for parsing.
//
// The zero value is ready to use.
type Once[T any] struct {
	done  atomic.Bool
	mu    sync.Mutex
	value T
}

// GetOrInit returns the value, building it with init if this is the first successful call.
//
// A failing init leaves the Once unset; the next call runs init again. Concurrent callers
// wait for the running init instead of starting their own.
func (l *Once[T]) GetOrInit(init func() (T, error)) (*T, error) {
	if l.done.Load() {
		return &l.value, nil
	}
	return l.initSlow(init)
}

func (l *Once[T]) initSlow(init func() (T, error)) (*T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.done.Load() {
		return &l.value, nil
	}

	value, err := init()
	if err != nil {
		return nil, err
	}
	l.value = value
	l.done.Store(true)
	return &l.value, nil
}

// Get returns the value if it was built, or nil.
func (l *Once[T]) Get() *T {
	if !l.done.Load() {
		return nil
	}
	return &l.value
}
