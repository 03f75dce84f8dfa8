// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package isa describes the instruction set capabilities that text decomposition
// relies on and selects them by ELF machine.
package isa // import "github.com/lxhq/hpctoolkit/asm/isa"

import (
	"debug/elf"
	"errors"
	"fmt"

	"github.com/lxhq/hpctoolkit/asm/amd"
	"github.com/lxhq/hpctoolkit/asm/arm"
	"github.com/lxhq/hpctoolkit/asm/ia64"
)

// ErrUnsupportedArch is returned for machines no decoder exists for.
var ErrUnsupportedArch = errors.New("unsupported architecture")

// Class is the architecture family, which decides how instruction streams are walked.
type Class uint8

const (
	// ClassUnknown is the zero value and never valid for decoding.
	ClassUnknown Class = iota
	// RISC architectures have fixed width instructions.
	RISC
	// CISC architectures have variable length instructions.
	CISC
	// VLIW architectures group several operations into one bundle.
	VLIW
)

func (c Class) String() string {
	switch c {
	case RISC:
		return "RISC"
	case CISC:
		return "CISC"
	case VLIW:
		return "VLIW"
	default:
		return fmt.Sprintf("Class(%d)", uint8(c))
	}
}

// Valid reports whether c is one of the decodable classes.
func (c Class) Valid() bool {
	return c == RISC || c == CISC || c == VLIW
}

// Decoder is the size oracle of one instruction set.
type Decoder interface {
	// InstSizeAndOps returns the byte size of the instruction at the start of code
	// and how many operations it contains. A size of zero means the bytes could not
	// be decoded. A non-zero size with zero operations marks data embedded in code.
	// code always extends at least 16 bytes past the last byte of the section.
	InstSizeAndOps(code []byte) (size, numOps int)

	// Class returns the architecture class.
	Class() Class

	// Name returns a short architecture name.
	Name() string
}

type x86Decoder struct {
	mode int
	name string
}

func (d x86Decoder) InstSizeAndOps(code []byte) (size, numOps int) {
	return amd.InstSizeAndOps(code, d.mode)
}

func (x86Decoder) Class() Class { return CISC }

func (d x86Decoder) Name() string { return d.name }

type arm64Decoder struct{}

func (arm64Decoder) InstSizeAndOps(code []byte) (size, numOps int) {
	return arm.InstSizeAndOps(code)
}

func (arm64Decoder) Class() Class { return RISC }

func (arm64Decoder) Name() string { return "arm64" }

type ia64Decoder struct{}

func (ia64Decoder) InstSizeAndOps(code []byte) (size, numOps int) {
	return ia64.InstSizeAndOps(code)
}

func (ia64Decoder) Class() Class { return VLIW }

func (ia64Decoder) Name() string { return "ia64" }

// ForMachine returns the decoder for the ELF machine m.
func ForMachine(m elf.Machine) (Decoder, error) {
	switch m {
	case elf.EM_X86_64:
		return x86Decoder{mode: amd.Mode64, name: "x86-64"}, nil
	case elf.EM_386:
		return x86Decoder{mode: amd.Mode32, name: "i386"}, nil
	case elf.EM_AARCH64:
		return arm64Decoder{}, nil
	case elf.EM_IA_64:
		return ia64Decoder{}, nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedArch, m)
	}
}
