// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package binutils decomposes the text sections of a binary into procedures and
// instructions.
package binutils // import "github.com/lxhq/hpctoolkit/binutils"

import (
	"fmt"
	"io"

	"github.com/lxhq/hpctoolkit/libpf"
)

// Kind is the content type of a section.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindText
	KindData
	KindBSS
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "Text"
	case KindData:
		return "Data"
	case KindBSS:
		return "BSS"
	default:
		return "-unknown-"
	}
}

// Owner is the load module a section belongs to. Sections only refer to it.
type Owner interface {
	Name() string
}

// Section is a named, typed address range of a binary image.
type Section struct {
	name  string
	kind  Kind
	start libpf.Address
	size  uint64
	owner Owner
}

// NewSection returns the section [start, start+size).
func NewSection(owner Owner, name string, kind Kind, start libpf.Address, size uint64) Section {
	return Section{
		name:  name,
		kind:  kind,
		start: start,
		size:  size,
		owner: owner,
	}
}

func (s *Section) Name() string { return s.name }

func (s *Section) Kind() Kind { return s.kind }

func (s *Section) Start() libpf.Address { return s.start }

// End returns the first address past the section.
func (s *Section) End() libpf.Address { return s.start + libpf.Address(s.size) }

func (s *Section) Size() uint64 { return s.size }

// Owner returns the load module the section belongs to, or nil.
func (s *Section) Owner() Owner { return s.owner }

// Contains reports whether addr lies in [Start, End).
func (s *Section) Contains(addr libpf.Address) bool {
	return addr >= s.start && addr < s.End()
}

// Dump writes a human readable description of the section, each line starting with prefix.
func (s *Section) Dump(w io.Writer, prefix string) error {
	_, err := fmt.Fprintf(w,
		"%s------------------- Section Dump ------------------\n"+
			"%s  Name: `%s'\n"+
			"%s  Type: `%s'\n"+
			"%s  PC(start, end): 0x%x, 0x%x\n"+
			"%s  Size(b): %d\n",
		prefix,
		prefix, s.name,
		prefix, s.kind,
		prefix, uint64(s.start), uint64(s.End()),
		prefix, s.size)
	return err
}
