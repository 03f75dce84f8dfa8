// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// package pfelf implements functions for processing of ELF files and extracting data from
// them. This file implements an interface to open ELF files by name.

package pfelf // import "github.com/lxhq/hpctoolkit/libpf/pfelf"

// ELFOpener is the interface to open ELF files with given filename.
//
// Implementations must be safe to be called from different threads simultaneously.
type ELFOpener interface {
	OpenELF(string) (*File, error)
}

type systemOpener struct{}

func (systemOpener) OpenELF(file string) (*File, error) {
	return Open(file)
}

type bufferedOpener struct{}

func (bufferedOpener) OpenELF(file string) (*File, error) {
	return OpenBuffered(file)
}

// SystemOpener opens files from the file system through a memory mapping.
var SystemOpener ELFOpener = systemOpener{}

// BufferedOpener opens files from the file system through a page cache.
var BufferedOpener ELFOpener = bufferedOpener{}
