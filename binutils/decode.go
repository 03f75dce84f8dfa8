// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package binutils // import "github.com/lxhq/hpctoolkit/binutils"

import (
	"github.com/lxhq/hpctoolkit/asm/isa"
	"github.com/lxhq/hpctoolkit/libpf"
)

// decodeProcedure walks the bytes of proc up to its provisional end, reports every
// instruction to sink and moves the end of proc to the end of its last instruction.
// It returns the number of reported instructions.
//
// Bytes that do not decode are skipped one at a time. Units the decoder marks as
// data are skipped whole. An instruction running past the provisional end belongs
// to the next procedure's bytes and stops the walk.
func decodeProcedure(proc *Procedure, sec *Section, buf *TextBuffer, dec isa.Decoder,
	sink Sink) int {
	class := dec.Class()
	extent := proc.end
	lastValidPC := proc.start
	lastSize := 0
	reported := 0

	for pc := proc.start; pc < extent; {
		off := int(pc - sec.Start())
		size, numOps := dec.InstSizeAndOps(buf.From(off))
		if size == 0 {
			pc++
			continue
		}
		if pc+libpf.Address(size) > extent {
			break
		}
		if numOps == 0 {
			pc += libpf.Address(size)
			continue
		}

		lastValidPC = pc
		lastSize = size
		for op := range numOps {
			sink.Report(Instruction{
				PC:      pc,
				OpIndex: uint16(op),
				Size:    uint16(size),
				Class:   class,
			})
		}
		reported += numOps
		pc += libpf.Address(size)
	}

	proc.end = lastValidPC + libpf.Address(lastSize)
	return reported
}
