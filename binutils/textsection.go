// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package binutils // import "github.com/lxhq/hpctoolkit/binutils"

import (
	"errors"
	"fmt"
	"io"
	"math"

	log "github.com/sirupsen/logrus"

	"github.com/lxhq/hpctoolkit/asm/isa"
	"github.com/lxhq/hpctoolkit/libpf"
)

// ErrNotText is returned when a text section is built from a section of another kind.
var ErrNotText = errors.New("not a text section")

// Loader gives access to the contents and debug information of a binary.
type Loader interface {
	// SectionBytes fills dst with the contents of sec. len(dst) is the section size.
	SectionBytes(sec *Section, dst []byte) error

	// LineInfo returns the function, source file and line at addr.
	LineInfo(addr libpf.Address) (fn, file string, line int, ok bool)
}

// Options tunes the decomposition of a text section. The zero value is ready to use.
type Options struct {
	// Names resolves procedure names. Nil uses DebugInfoNamer then RawNamer.
	Names NameResolver
}

// TextSection is a section of executable code split into procedures.
type TextSection struct {
	Section

	buf   *TextBuffer
	procs []*Procedure

	// err is the reason buf could not be loaded
	err error

	numInstructions int
}

// NewTextSection discovers the procedures of sec from syms, loads the section contents
// and decodes them with dec, reporting every instruction to sink.
//
// Failing to read the section contents is not an error: the procedures are kept with
// their provisional extents, Buffer returns nil and Err returns the read error.
func NewTextSection(sec Section, syms libpf.SymbolTable, loader Loader, dec isa.Decoder,
	sink Sink, opts Options) (*TextSection, error) {
	if sec.Kind() != KindText {
		return nil, fmt.Errorf("%s: %w (%v)", sec.Name(), ErrNotText, sec.Kind())
	}
	if !dec.Class().Valid() {
		return nil, fmt.Errorf("%s: %w: %s has instruction class %v",
			sec.Name(), isa.ErrUnsupportedArch, dec.Name(), dec.Class())
	}
	if sec.Size() > math.MaxInt-2*PAD-Alignment {
		return nil, fmt.Errorf("%s: section size %d is too large", sec.Name(), sec.Size())
	}

	names := opts.Names
	if names == nil {
		names = NameResolver{DebugInfoNamer(loader), RawNamer()}
	}

	ts := &TextSection{Section: sec}
	ts.procs = discoverProcedures(&ts.Section, syms, names)

	buf := newTextBuffer(int(sec.Size()))
	if err := loader.SectionBytes(&ts.Section, buf.Bytes()); err != nil {
		log.Warnf("Failed to read contents of section %s: %v", sec.Name(), err)
		ts.err = fmt.Errorf("failed to read section %s: %w", sec.Name(), err)
		return ts, nil
	}
	ts.buf = buf

	for _, proc := range ts.procs {
		ts.numInstructions += decodeProcedure(proc, &ts.Section, buf, dec, sink)
	}
	log.Debugf("Decomposed %s: %d procedures, %d instructions",
		sec.Name(), len(ts.procs), ts.numInstructions)
	return ts, nil
}

// Procedures returns the procedures in address order.
func (ts *TextSection) Procedures() []*Procedure {
	return append([]*Procedure(nil), ts.procs...)
}

func (ts *TextSection) NumProcedures() int {
	return len(ts.procs)
}

// Buffer returns the section contents, or nil if they could not be read.
func (ts *TextSection) Buffer() *TextBuffer {
	return ts.buf
}

// Err returns the error that prevented the contents from being read.
func (ts *TextSection) Err() error {
	return ts.err
}

// NumInstructions returns the number of instructions reported to the sink.
func (ts *TextSection) NumInstructions() int {
	return ts.numInstructions
}

// Dump writes the section and its procedures, each line starting with prefix.
func (ts *TextSection) Dump(w io.Writer, prefix string) error {
	if err := ts.Section.Dump(w, prefix); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%s  Procedures (%d)\n", prefix, len(ts.procs)); err != nil {
		return err
	}
	for _, proc := range ts.procs {
		if err := proc.Dump(w, prefix+"  "); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the buffer and the procedures.
func (ts *TextSection) Close() {
	ts.buf = nil
	ts.procs = nil
}
