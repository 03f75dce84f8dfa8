// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package binutils // import "github.com/lxhq/hpctoolkit/binutils"

import (
	"fmt"

	"github.com/lxhq/hpctoolkit/asm/isa"
	"github.com/lxhq/hpctoolkit/libpf"
)

// Instruction is one operation decoded from a text section. Bundles of VLIW
// architectures produce one Instruction per operation, all with the same PC.
type Instruction struct {
	PC      libpf.Address
	OpIndex uint16
	Size    uint16
	Class   isa.Class
}

func (i Instruction) String() string {
	return fmt.Sprintf("%v/%d %s size %d", i.PC, i.OpIndex, i.Class, i.Size)
}

// Sink receives decoded instructions. Sinks shared by several text sections
// must accept concurrent Report calls.
type Sink interface {
	Report(inst Instruction)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(inst Instruction)

func (f SinkFunc) Report(inst Instruction) {
	f(inst)
}
