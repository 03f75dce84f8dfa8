// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package binutils

import (
	"github.com/lxhq/hpctoolkit/asm/isa"
	"github.com/lxhq/hpctoolkit/libpf"
)

type answer struct {
	size, numOps int
}

// scriptedDecoder answers from a table keyed by address. The address is derived
// from the length of the lookahead slice, which always ends PAD bytes past the section.
type scriptedDecoder struct {
	class    isa.Class
	sec      Section
	answers  map[libpf.Address]answer
	fallback answer
	calls    []libpf.Address
}

func (d *scriptedDecoder) InstSizeAndOps(code []byte) (size, numOps int) {
	pc := d.sec.End() + PAD - libpf.Address(len(code))
	d.calls = append(d.calls, pc)
	a, ok := d.answers[pc]
	if !ok {
		a = d.fallback
	}
	return a.size, a.numOps
}

func (d *scriptedDecoder) Class() isa.Class { return d.class }

func (d *scriptedDecoder) Name() string { return "scripted" }

type fakeLoader struct {
	data  []byte
	err   error
	funcs map[libpf.Address]string
}

func (l *fakeLoader) SectionBytes(_ *Section, dst []byte) error {
	if l.err != nil {
		return l.err
	}
	copy(dst, l.data)
	return nil
}

func (l *fakeLoader) LineInfo(addr libpf.Address) (fn, file string, line int, ok bool) {
	fn, ok = l.funcs[addr]
	return fn, "", 0, ok
}

type collectSink struct {
	insts []Instruction
}

func (s *collectSink) Report(inst Instruction) {
	s.insts = append(s.insts, inst)
}

func (s *collectSink) pcs() []libpf.Address {
	out := make([]libpf.Address, 0, len(s.insts))
	for _, inst := range s.insts {
		out = append(out, inst.PC)
	}
	return out
}

func function(name string, addr libpf.Address, flags libpf.SymbolFlags) libpf.Symbol {
	return libpf.Symbol{
		Name:    libpf.SymbolName(name),
		Address: addr,
		Flags:   flags | libpf.SymbolFunction,
	}
}

func textSection(start libpf.Address, size uint64) Section {
	return NewSection(nil, ".text", KindText, start, size)
}
