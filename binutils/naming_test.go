// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package binutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lxhq/hpctoolkit/asm/isa"
	"github.com/lxhq/hpctoolkit/libpf"
)

func TestNameResolver(t *testing.T) {
	loader := &fakeLoader{funcs: map[libpf.Address]string{0x1000: "debug_name"}}
	demangler, err := NewDemangleNamer(16)
	require.NoError(t, err)
	names := NameResolver{DebugInfoNamer(loader), demangler, RawNamer()}

	tests := map[string]struct {
		sym  libpf.Symbol
		want string
	}{
		"debug info wins": {
			sym:  function("_ZN3foo3barEv", 0x1000, libpf.SymbolGlobal),
			want: "debug_name",
		},
		"demangled": {
			sym:  function("_ZN3foo3barEv", 0x2000, libpf.SymbolGlobal),
			want: "foo::bar()",
		},
		"raw": {
			sym:  function("main", 0x3000, libpf.SymbolGlobal),
			want: "main",
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, names.Resolve(&tc.sym))
		})
	}

	// An empty resolver still falls back to the symbol name.
	sym := function("plain", 0x1000, 0)
	assert.Equal(t, "plain", NameResolver{}.Resolve(&sym))
}

func TestDemangleNamerCache(t *testing.T) {
	demangler, err := NewDemangleNamer(16)
	require.NoError(t, err)

	sym := function("_ZN3foo3barEv", 0x1000, libpf.SymbolGlobal)
	for range 3 {
		assert.Equal(t, "foo::bar()", demangler.ProcedureName(&sym))
	}
	stats := demangler.cache.GetAndResetStatistics()
	assert.Equal(t, uint64(1), stats.Miss)
	assert.Equal(t, uint64(2), stats.Hit)

	plain := function("main", 0x2000, libpf.SymbolGlobal)
	assert.Empty(t, demangler.ProcedureName(&plain))
	demangler.LogStatistics()
}

func TestProcedureNamesInTextSection(t *testing.T) {
	sec := textSection(0x1000, 0x10)
	dec := &scriptedDecoder{class: isa.RISC, sec: sec, fallback: answer{4, 1}}
	syms := libpf.NewSymbolTable([]libpf.Symbol{
		function("raw_a", 0x1000, libpf.SymbolGlobal),
		function("raw_b", 0x1008, libpf.SymbolGlobal),
	})
	loader := &fakeLoader{funcs: map[libpf.Address]string{0x1008: "pretty_b"}}

	ts, _ := decompose(t, sec, syms, dec, loader)
	procs := ts.Procedures()
	require.Len(t, procs, 2)
	assert.Equal(t, "raw_a", procs[0].Name())
	assert.Equal(t, "pretty_b", procs[1].Name())
	assert.Equal(t, libpf.SymbolName("raw_b"), procs[1].SymbolName())
}
