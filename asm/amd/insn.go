// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package amd sizes x86 and x86-64 instructions.
package amd // import "github.com/lxhq/hpctoolkit/asm/amd"

import (
	"bytes"

	"golang.org/x/arch/x86/x86asm"
)

// Decoding modes accepted by InstSizeAndOps.
const (
	Mode32 = 32
	Mode64 = 64
)

var (
	endbr64 = []byte{0xf3, 0x0f, 0x1e, 0xfa}
	endbr32 = []byte{0xf3, 0x0f, 0x1e, 0xfb}
)

// IsEndbr returns true if the code starts with an endbr64 or endbr32 instruction
// https://www.felixcloutier.com/x86/endbr64
// The second returned argument is the size of the instruction which is always 4
//
// Compilers emit these at function entries for indirect branch tracking, and
// x86asm does not know them.
func IsEndbr(code []byte) (isEndbr bool, size int) {
	if bytes.HasPrefix(code, endbr64) || bytes.HasPrefix(code, endbr32) {
		return true, 4
	}
	return false, 0
}

// InstSizeAndOps returns the length of the instruction at the start of code and
// the number of operations it carries, which is always one on x86. Bytes that do
// not decode report a zero size.
func InstSizeAndOps(code []byte, mode int) (size, numOps int) {
	if ok, n := IsEndbr(code); ok {
		return n, 1
	}
	inst, err := x86asm.Decode(code, mode)
	if err != nil || inst.Len == 0 {
		return 0, 0
	}
	return inst.Len, 1
}
