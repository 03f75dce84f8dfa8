// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package ia64 decodes the template field of Itanium instruction bundles.
package ia64 // import "github.com/lxhq/hpctoolkit/asm/ia64"

// BundleSize is the size of one IA-64 instruction bundle.
const BundleSize = 16

// templateMask selects the template field in the low bits of a bundle.
const templateMask = 0x1f

// templateNames lists the execution unit layout of each template. Reserved
// templates are empty. Odd templates end in a stop.
var templateNames = [32]string{
	0x00: "MII", 0x01: "MII",
	0x02: "MI_I", 0x03: "MI_I",
	0x04: "MLX", 0x05: "MLX",
	0x08: "MMI", 0x09: "MMI",
	0x0a: "M_MI", 0x0b: "M_MI",
	0x0c: "MFI", 0x0d: "MFI",
	0x0e: "MMF", 0x0f: "MMF",
	0x10: "MIB", 0x11: "MIB",
	0x12: "MBB", 0x13: "MBB",
	0x16: "BBB", 0x17: "BBB",
	0x18: "MMB", 0x19: "MMB",
	0x1c: "MFB", 0x1d: "MFB",
}

// Template returns the template of the bundle starting at code[0].
func Template(code []byte) uint8 {
	return code[0] & templateMask
}

// TemplateName returns the unit layout of template t, or "" if t is reserved.
func TemplateName(t uint8) string {
	return templateNames[t&templateMask]
}

// SlotCount returns the number of operations a bundle with template t carries.
// The long immediate of an MLX bundle spans two slots. Reserved templates carry
// none.
func SlotCount(t uint8) int {
	switch name := TemplateName(t); name {
	case "":
		return 0
	case "MLX":
		return 2
	default:
		return 3
	}
}

// InstSizeAndOps returns the bundle size and operation count of the bundle at the
// start of code. A bundle with a reserved template is data.
func InstSizeAndOps(code []byte) (size, numOps int) {
	if len(code) < BundleSize {
		return 0, 0
	}
	return BundleSize, SlotCount(Template(code))
}
