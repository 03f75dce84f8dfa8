// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package binutils // import "github.com/lxhq/hpctoolkit/binutils"

import (
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/lxhq/hpctoolkit/libpf"
)

// Linkage is the binding of the symbol a procedure was discovered from.
type Linkage uint8

const (
	LinkageUnknown Linkage = iota
	LinkageLocal
	LinkageWeak
	LinkageGlobal
)

func (l Linkage) String() string {
	switch l {
	case LinkageLocal:
		return "Local"
	case LinkageWeak:
		return "Weak"
	case LinkageGlobal:
		return "Global"
	default:
		return "Unknown"
	}
}

// linkageOf classifies flags. Local wins over Weak, which wins over Global.
func linkageOf(flags libpf.SymbolFlags) Linkage {
	switch {
	case flags&libpf.SymbolLocal != 0:
		return LinkageLocal
	case flags&libpf.SymbolWeak != 0:
		return LinkageWeak
	case flags&libpf.SymbolGlobal != 0:
		return LinkageGlobal
	default:
		return LinkageUnknown
	}
}

// Procedure is a function of a text section. Its end is provisional until the
// instructions of the section are decoded.
type Procedure struct {
	name    string
	symName libpf.SymbolName
	linkage Linkage
	start   libpf.Address
	end     libpf.Address
}

func (p *Procedure) Name() string { return p.name }

// SymbolName returns the raw name of the symbol the procedure was discovered from.
func (p *Procedure) SymbolName() libpf.SymbolName { return p.symName }

func (p *Procedure) Linkage() Linkage { return p.linkage }

func (p *Procedure) Start() libpf.Address { return p.start }

func (p *Procedure) End() libpf.Address { return p.end }

func (p *Procedure) Size() uint64 { return uint64(p.end - p.start) }

// Contains reports whether pc lies in [Start, End).
func (p *Procedure) Contains(pc libpf.Address) bool {
	return pc >= p.start && pc < p.end
}

func (p *Procedure) String() string {
	return fmt.Sprintf("%s [%v, %v)", p.name, p.start, p.end)
}

// Dump writes a human readable description of the procedure, each line starting with prefix.
func (p *Procedure) Dump(w io.Writer, prefix string) error {
	_, err := fmt.Fprintf(w,
		"%sProcedure: `%s' (symbol `%s')\n"+
			"%s  Linkage: %s\n"+
			"%s  PC(start, end): 0x%x, 0x%x\n"+
			"%s  Size(b): %d\n",
		prefix, p.name, p.symName,
		prefix, p.linkage,
		prefix, uint64(p.start), uint64(p.end),
		prefix, p.Size())
	return err
}

// isProcedureSymbol reports whether sym starts a procedure inside sec.
func isProcedureSymbol(sec *Section, sym *libpf.Symbol) bool {
	return sec.Contains(sym.Address) && sym.IsFunction() && !sym.IsUndefined()
}

// procedureExtent returns the provisional end of the procedure starting at syms[idx]:
// the address of the next function symbol of the section, or the section end.
func procedureExtent(sec *Section, syms libpf.SymbolTable, idx int) libpf.Address {
	for next := idx + 1; next < len(syms); next++ {
		sym := &syms[next]
		if !sec.Contains(sym.Address) {
			break
		}
		if sym.IsFunction() && !sym.IsUndefined() {
			return sym.Address
		}
	}
	return sec.End()
}

// discoverProcedures creates one procedure per defined function symbol inside sec,
// in symbol table order. Unsorted tables are sorted first.
func discoverProcedures(sec *Section, syms libpf.SymbolTable, names NameResolver) []*Procedure {
	if !syms.IsSorted() {
		log.Warnf("Symbol table for %s is not sorted by address, sorting %d symbols",
			sec.Name(), len(syms))
		syms = syms.Sorted()
	}

	var procs []*Procedure
	for i := range syms {
		sym := &syms[i]
		if !isProcedureSymbol(sec, sym) {
			continue
		}
		procs = append(procs, &Procedure{
			name:    names.Resolve(sym),
			symName: sym.Name,
			linkage: linkageOf(sym.Flags),
			start:   sym.Address,
			end:     procedureExtent(sec, syms, i),
		})
	}
	return procs
}
