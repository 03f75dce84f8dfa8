// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package arm sizes AArch64 instructions.
package arm // import "github.com/lxhq/hpctoolkit/asm/arm"

import (
	aa "golang.org/x/arch/arm64/arm64asm"
)

// InstSize is the fixed width of an AArch64 instruction word.
const InstSize = 4

// InstSizeAndOps returns the size and operation count of the word at the start
// of code. Words that are not instructions are literal pool data and report zero
// operations so the caller steps over them.
func InstSizeAndOps(code []byte) (size, numOps int) {
	if len(code) < InstSize {
		return 0, 0
	}
	if _, err := aa.Decode(code[:InstSize]); err != nil {
		return InstSize, 0
	}
	return InstSize, 1
}
