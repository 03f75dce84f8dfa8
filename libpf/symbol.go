// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package libpf // import "github.com/lxhq/hpctoolkit/libpf"

import (
	"sort"
	"strings"

	"github.com/zeebo/xxh3"
)

// SymbolName represents the name of a symbol
type SymbolName string

// Hash32 returns a 32 bits hash of the name.
// It's main purpose is to be used as key for caching.
func (s SymbolName) Hash32() uint32 {
	return uint32(xxh3.HashString(string(s)))
}

// SymbolFlags carries the linkage and type bits of a symbol table entry.
type SymbolFlags uint8

const (
	// SymbolLocal marks a symbol with local binding.
	SymbolLocal SymbolFlags = 1 << iota
	// SymbolGlobal marks a symbol with global binding.
	SymbolGlobal
	// SymbolWeak marks a symbol with weak binding.
	SymbolWeak
	// SymbolFunction marks a symbol that names code.
	SymbolFunction
	// SymbolUndefined marks a symbol that is not defined in any section of its module.
	SymbolUndefined
)

// String renders the set flags, e.g. "global|function".
func (f SymbolFlags) String() string {
	var parts []string
	for _, b := range []struct {
		flag SymbolFlags
		name string
	}{
		{SymbolLocal, "local"},
		{SymbolGlobal, "global"},
		{SymbolWeak, "weak"},
		{SymbolFunction, "function"},
		{SymbolUndefined, "undefined"},
	} {
		if f&b.flag != 0 {
			parts = append(parts, b.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Symbol represents one symbol table entry.
type Symbol struct {
	Name    SymbolName
	Address Address
	Size    uint64
	Flags   SymbolFlags
}

// IsFunction reports whether the symbol names code.
func (s *Symbol) IsFunction() bool {
	return s.Flags&SymbolFunction != 0
}

// IsUndefined reports whether the symbol resolves to no section of its module.
func (s *Symbol) IsUndefined() bool {
	return s.Flags&SymbolUndefined != 0
}

// SymbolTable is a sequence of symbols ordered by ascending address. Symbols sharing
// an address keep the order in which they were added.
type SymbolTable []Symbol

// NewSymbolTable sorts the given symbols by address and returns them as a table.
// The input slice is reordered in place.
func NewSymbolTable(syms []Symbol) SymbolTable {
	sort.SliceStable(syms, func(i, j int) bool {
		return syms[i].Address < syms[j].Address
	})
	return SymbolTable(syms)
}

// IsSorted reports whether the table is ordered by ascending address.
func (t SymbolTable) IsSorted() bool {
	return sort.SliceIsSorted(t, func(i, j int) bool {
		return t[i].Address < t[j].Address
	})
}

// Sorted returns a sorted copy of the table, leaving t untouched.
func (t SymbolTable) Sorted() SymbolTable {
	c := make([]Symbol, len(t))
	copy(c, t)
	return NewSymbolTable(c)
}

// LookupSymbol returns the first symbol with the given name.
func (t SymbolTable) LookupSymbol(name SymbolName) (*Symbol, bool) {
	for i := range t {
		if t[i].Name == name {
			return &t[i], true
		}
	}
	return nil, false
}
