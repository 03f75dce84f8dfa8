// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package binutils // import "github.com/lxhq/hpctoolkit/binutils"

import (
	"fmt"
	"unsafe"
)

const (
	// PAD is the number of zero bytes kept before and after the section contents.
	// Decoders may read this far behind or ahead of any offset of the section.
	PAD = 16

	// Alignment of the first byte of the section contents.
	Alignment = 16
)

// TextBuffer holds the contents of one text section between two zeroed margins
// of PAD bytes. The contents start on an Alignment boundary.
type TextBuffer struct {
	raw []byte
	// base is the index of the first content byte in raw.
	base int
	size int
}

// newTextBuffer allocates a zeroed buffer for size bytes of section contents.
func newTextBuffer(size int) *TextBuffer {
	raw := make([]byte, size+2*PAD+Alignment-1)
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(raw))) + PAD
	skew := int((Alignment - addr%Alignment) % Alignment)
	return &TextBuffer{
		raw:  raw,
		base: skew + PAD,
		size: size,
	}
}

// Len returns the size of the section contents.
func (b *TextBuffer) Len() int {
	return b.size
}

func (b *TextBuffer) checkOffset(off int) {
	if off < 0 || off > b.size {
		panic(fmt.Sprintf("text buffer offset %d outside section of %d bytes", off, b.size))
	}
}

// Bytes returns the section contents. The slice cannot grow into the margin.
func (b *TextBuffer) Bytes() []byte {
	end := b.base + b.size
	return b.raw[b.base:end:end]
}

// From returns the bytes from off to the end of the trailing margin. This is
// the view instruction decoders get, so they can always look PAD bytes ahead.
func (b *TextBuffer) From(off int) []byte {
	b.checkOffset(off)
	end := b.base + b.size + PAD
	return b.raw[b.base+off : end : end]
}

// Lookback returns the PAD bytes preceding off.
func (b *TextBuffer) Lookback(off int) []byte {
	b.checkOffset(off)
	at := b.base + off
	return b.raw[at-PAD : at : at]
}

// Window returns PAD bytes on either side of off.
func (b *TextBuffer) Window(off int) []byte {
	b.checkOffset(off)
	at := b.base + off
	return b.raw[at-PAD : at+PAD : at+PAD]
}

// aligned reports whether the contents start on an Alignment boundary.
func (b *TextBuffer) aligned() bool {
	return uintptr(unsafe.Pointer(&b.raw[b.base]))%Alignment == 0
}

// margins returns the leading and trailing margin.
func (b *TextBuffer) margins() (leading, trailing []byte) {
	end := b.base + b.size
	return b.raw[b.base-PAD : b.base], b.raw[end : end+PAD]
}
