// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package binutils // import "github.com/lxhq/hpctoolkit/binutils"

import (
	"github.com/ianlancetaylor/demangle"
	log "github.com/sirupsen/logrus"

	"github.com/lxhq/hpctoolkit/libpf"
	"github.com/lxhq/hpctoolkit/libpf/freelru"
)

// Namer derives a procedure name from its symbol. An empty result means the
// namer knows nothing about the symbol.
type Namer interface {
	ProcedureName(sym *libpf.Symbol) string
}

// NamerFunc adapts a function to the Namer interface.
type NamerFunc func(sym *libpf.Symbol) string

func (f NamerFunc) ProcedureName(sym *libpf.Symbol) string {
	return f(sym)
}

// NameResolver tries its namers in order and uses the first non-empty name.
// The raw symbol name is the fallback when all of them fail.
type NameResolver []Namer

// Resolve returns the name of the procedure starting at sym.
func (r NameResolver) Resolve(sym *libpf.Symbol) string {
	for _, n := range r {
		if name := n.ProcedureName(sym); name != "" {
			return name
		}
	}
	return string(sym.Name)
}

// DebugInfoNamer names procedures after the function the loader's line
// information places at the symbol address.
func DebugInfoNamer(loader Loader) Namer {
	return NamerFunc(func(sym *libpf.Symbol) string {
		fn, _, _, ok := loader.LineInfo(sym.Address)
		if !ok {
			return ""
		}
		return fn
	})
}

// RawNamer names procedures after their symbol.
func RawNamer() Namer {
	return NamerFunc(func(sym *libpf.Symbol) string {
		return string(sym.Name)
	})
}

// DemangleNamer demangles C++ and Rust symbol names. Results are cached since
// the same names show up in every section and module of a binary.
type DemangleNamer struct {
	cache *freelru.LRU[libpf.SymbolName, string]
}

// NewDemangleNamer returns a DemangleNamer caching up to cacheSize names.
func NewDemangleNamer(cacheSize uint32) (*DemangleNamer, error) {
	cache, err := freelru.New[libpf.SymbolName, string](cacheSize,
		libpf.SymbolName.Hash32)
	if err != nil {
		return nil, err
	}
	return &DemangleNamer{cache: cache}, nil
}

func demangleSymbol(name libpf.SymbolName) string {
	out := demangle.Filter(string(name), demangle.NoClones)
	if out == string(name) {
		return ""
	}
	return out
}

// ProcedureName returns the demangled symbol name, or "" if the name is not mangled.
func (d *DemangleNamer) ProcedureName(sym *libpf.Symbol) string {
	return d.cache.GetOrCompute(sym.Name, demangleSymbol)
}

// LogStatistics writes and resets the cache statistics.
func (d *DemangleNamer) LogStatistics() {
	stats := d.cache.GetAndResetStatistics()
	log.Debugf("Demangle cache: %d hits, %d misses, %d added, %d evicted",
		stats.Hit, stats.Miss, stats.Added, stats.Deleted)
}
