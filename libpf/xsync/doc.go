// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package xsync provides locks that own the data they protect, so that the data can only
// be reached while the lock is held.
package xsync // import "github.com/lxhq/hpctoolkit/libpf/xsync"
