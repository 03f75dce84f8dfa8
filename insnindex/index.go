// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package insnindex stores the instructions decoded from the text sections of a
// load module.
package insnindex // import "github.com/lxhq/hpctoolkit/insnindex"

import (
	"slices"

	"github.com/lxhq/hpctoolkit/binutils"
	"github.com/lxhq/hpctoolkit/libpf"
	"github.com/lxhq/hpctoolkit/libpf/xsync"
)

// Key identifies one operation: the bundle address and the slot within it.
type Key struct {
	PC      libpf.Address
	OpIndex uint16
}

type state struct {
	insts      map[Key]binutils.Instruction
	duplicates int
}

// Index is a binutils.Sink that keeps every reported instruction. It is safe for
// concurrent use by the decomposition of several sections.
type Index struct {
	state xsync.RWMutex[state]
}

var _ binutils.Sink = &Index{}

// New returns an empty index.
func New() *Index {
	return &Index{
		state: xsync.NewRWMutex(state{
			insts: make(map[Key]binutils.Instruction),
		}),
	}
}

// Report stores inst. An instruction with the same key replaces the stored one.
func (idx *Index) Report(inst binutils.Instruction) {
	st := idx.state.WLock()
	defer idx.state.WUnlock(&st)
	key := Key{PC: inst.PC, OpIndex: inst.OpIndex}
	if _, ok := st.insts[key]; ok {
		st.duplicates++
	}
	st.insts[key] = inst
}

// Lookup returns the instruction stored for the operation opIndex at pc.
func (idx *Index) Lookup(pc libpf.Address, opIndex uint16) (binutils.Instruction, bool) {
	st := idx.state.RLock()
	defer idx.state.RUnlock(&st)
	inst, ok := st.insts[Key{PC: pc, OpIndex: opIndex}]
	return inst, ok
}

// Len returns the number of stored instructions.
func (idx *Index) Len() int {
	st := idx.state.RLock()
	defer idx.state.RUnlock(&st)
	return len(st.insts)
}

// Duplicates returns how many reports replaced an already stored instruction.
func (idx *Index) Duplicates() int {
	st := idx.state.RLock()
	defer idx.state.RUnlock(&st)
	return st.duplicates
}

func compareInstructions(a, b binutils.Instruction) int {
	if a.PC != b.PC {
		if a.PC < b.PC {
			return -1
		}
		return 1
	}
	return int(a.OpIndex) - int(b.OpIndex)
}

// Instructions returns all stored instructions ordered by address and slot.
func (idx *Index) Instructions() []binutils.Instruction {
	return idx.Range(0, ^libpf.Address(0))
}

// Range returns the stored instructions with an address in [start, end), ordered
// by address and slot.
func (idx *Index) Range(start, end libpf.Address) []binutils.Instruction {
	st := idx.state.RLock()
	out := make([]binutils.Instruction, 0, len(st.insts))
	for key, inst := range st.insts {
		if key.PC >= start && key.PC < end {
			out = append(out, inst)
		}
	}
	idx.state.RUnlock(&st)

	slices.SortFunc(out, compareInstructions)
	return out
}
