// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package loadmodule decomposes all text sections of one executable or shared library.
package loadmodule // import "github.com/lxhq/hpctoolkit/loadmodule"

import (
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"runtime"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/lxhq/hpctoolkit/asm/isa"
	"github.com/lxhq/hpctoolkit/binutils"
	"github.com/lxhq/hpctoolkit/insnindex"
	"github.com/lxhq/hpctoolkit/libpf"
	"github.com/lxhq/hpctoolkit/libpf/pfelf"
)

const (
	// defaultNameCacheSize is the number of demangled names kept when
	// Config.NameCacheSize is zero.
	defaultNameCacheSize = 16384

	// maxTextSectionSize bounds the size of compressed text sections read into memory.
	maxTextSectionSize = 1 << 30
)

// ErrRelocatable is returned for object files that have not been linked.
var ErrRelocatable = errors.New("relocatable objects cannot be decomposed")

// Config controls how a load module is decomposed. The zero value decomposes all
// text sections, names procedures from DWARF where possible and uses one worker per CPU.
type Config struct {
	// Demangle enables demangling of C++ and Rust symbol names.
	Demangle bool
	// NameCacheSize is the number of demangled names cached.
	NameCacheSize uint32
	// MaxParallel limits the number of text sections decomposed at the same time.
	MaxParallel int
	// Sections restricts decomposition to the named text sections.
	Sections []string
	// NoDebugInfo skips reading DWARF for procedure names.
	NoDebugInfo bool
	// Opener opens the file in Open. Nil means pfelf.SystemOpener.
	Opener pfelf.ELFOpener
}

// LoadModule is a decomposed binary.
type LoadModule struct {
	name    string
	file    *pfelf.File
	fileID  libpf.FileID
	buildID string
	decoder isa.Decoder

	debugInfo *pfelf.DebugInfo

	sections []binutils.Section
	text     []*binutils.TextSection
	index    *insnindex.Index
}

var _ binutils.Loader = &LoadModule{}
var _ binutils.Owner = &LoadModule{}

// Open reads and decomposes the binary at path.
func Open(path string, cfg Config) (*LoadModule, error) {
	fileID, err := libpf.FileIDFromExecutableFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to compute file ID of %s: %w", path, err)
	}

	opener := cfg.Opener
	if opener == nil {
		opener = pfelf.SystemOpener
	}
	ef, err := opener.OpenELF(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	lm, err := New(path, ef, cfg)
	if err != nil {
		return nil, err
	}
	lm.fileID = fileID
	return lm, nil
}

// New decomposes the already opened ef. The load module takes ownership of ef,
// which is closed when New fails.
func New(name string, ef *pfelf.File, cfg Config) (*LoadModule, error) {
	lm, err := newLoadModule(name, ef, cfg)
	if err != nil {
		ef.Close()
		return nil, err
	}
	return lm, nil
}

func newLoadModule(name string, ef *pfelf.File, cfg Config) (*LoadModule, error) {
	// Sections of relocatable objects all start at address zero, so their
	// procedures and instructions would collide.
	if ef.Type == elf.ET_REL {
		return nil, fmt.Errorf("%s: %w", name, ErrRelocatable)
	}
	decoder, err := isa.ForMachine(ef.Machine)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if err = ef.LoadSections(); err != nil {
		return nil, fmt.Errorf("failed to load sections of %s: %w", name, err)
	}

	lm := &LoadModule{
		name:    name,
		file:    ef,
		decoder: decoder,
		index:   insnindex.New(),
	}
	if lm.buildID, err = ef.GetBuildID(); err != nil && !errors.Is(err, pfelf.ErrNoBuildID) {
		log.Debugf("Failed to read build ID of %s: %v", name, err)
	}

	names := binutils.NameResolver{}
	if !cfg.NoDebugInfo {
		if lm.debugInfo, err = ef.DebugInfo(); err != nil {
			log.Debugf("No debug info for %s: %v", name, err)
		} else {
			names = append(names, binutils.DebugInfoNamer(lm))
		}
	}
	var demangler *binutils.DemangleNamer
	if cfg.Demangle {
		cacheSize := cfg.NameCacheSize
		if cacheSize == 0 {
			cacheSize = defaultNameCacheSize
		}
		if demangler, err = binutils.NewDemangleNamer(cacheSize); err != nil {
			return nil, fmt.Errorf("failed to create name cache: %v", err)
		}
		names = append(names, demangler)
	}
	names = append(names, binutils.RawNamer())

	syms, err := lm.readSymbols()
	if err != nil {
		return nil, err
	}

	lm.classifySections()
	if err = lm.decompose(syms, names, cfg); err != nil {
		return nil, err
	}
	if demangler != nil {
		demangler.LogStatistics()
	}
	return lm, nil
}

// readSymbols returns .symtab, or .dynsym for stripped binaries.
func (lm *LoadModule) readSymbols() (libpf.SymbolTable, error) {
	syms, err := lm.file.ReadSymbols()
	if err == nil {
		return syms, nil
	}
	if !errors.Is(err, pfelf.ErrNoSymbols) {
		return nil, fmt.Errorf("failed to read symbols of %s: %w", lm.name, err)
	}
	syms, err = lm.file.ReadDynamicSymbols()
	if err == nil {
		return syms, nil
	}
	if !errors.Is(err, pfelf.ErrNoSymbols) {
		return nil, fmt.Errorf("failed to read dynamic symbols of %s: %w", lm.name, err)
	}
	log.Warnf("No symbol table in %s, no procedures will be found", lm.name)
	return libpf.SymbolTable{}, nil
}

// classifySections records every allocated section of the file.
func (lm *LoadModule) classifySections() {
	for i := range lm.file.Sections {
		s := &lm.file.Sections[i]
		if s.Flags&elf.SHF_ALLOC == 0 {
			continue
		}
		kind := binutils.KindData
		switch {
		case s.Flags&elf.SHF_EXECINSTR != 0:
			kind = binutils.KindText
		case s.Type == elf.SHT_NOBITS:
			kind = binutils.KindBSS
		}
		lm.sections = append(lm.sections,
			binutils.NewSection(lm, s.Name, kind, libpf.Address(s.Addr), s.Size))
	}
}

// decompose builds the text sections in parallel. They share the instruction index.
func (lm *LoadModule) decompose(syms libpf.SymbolTable, names binutils.NameResolver,
	cfg Config) error {
	wanted := libpf.SliceToSet(cfg.Sections)
	var text []binutils.Section
	for _, sec := range lm.sections {
		if sec.Kind() != binutils.KindText {
			continue
		}
		if len(wanted) != 0 && !wanted.Contains(sec.Name()) {
			continue
		}
		text = append(text, sec)
	}

	// Sort once here instead of once per section.
	if !syms.IsSorted() {
		log.Warnf("Symbol table of %s is not sorted by address", lm.name)
		syms = syms.Sorted()
	}

	maxParallel := cfg.MaxParallel
	if maxParallel <= 0 {
		maxParallel = runtime.NumCPU()
	}
	lm.text = make([]*binutils.TextSection, len(text))
	g := errgroup.Group{}
	g.SetLimit(maxParallel)
	for i, sec := range text {
		g.Go(func() error {
			ts, err := binutils.NewTextSection(sec, syms, lm, lm.decoder, lm.index,
				binutils.Options{Names: names})
			if err != nil {
				return fmt.Errorf("failed to decompose %s of %s: %w", sec.Name(), lm.name, err)
			}
			lm.text[i] = ts
			return nil
		})
	}
	return g.Wait()
}

// Name returns the path or name the module was opened with.
func (lm *LoadModule) Name() string { return lm.name }

// FileID returns the content hash of the file. It is zero for modules built with New.
func (lm *LoadModule) FileID() libpf.FileID { return lm.fileID }

// BuildID returns the GNU build ID, or "" if the file has none.
func (lm *LoadModule) BuildID() string { return lm.buildID }

func (lm *LoadModule) Machine() elf.Machine { return lm.file.Machine }

func (lm *LoadModule) Class() isa.Class { return lm.decoder.Class() }

// Sections returns all allocated sections.
func (lm *LoadModule) Sections() []binutils.Section {
	return append([]binutils.Section(nil), lm.sections...)
}

// TextSections returns the decomposed text sections.
func (lm *LoadModule) TextSections() []*binutils.TextSection {
	return append([]*binutils.TextSection(nil), lm.text...)
}

// Index returns the instructions of all text sections.
func (lm *LoadModule) Index() *insnindex.Index { return lm.index }

// NumProcedures returns the number of procedures over all text sections.
func (lm *LoadModule) NumProcedures() int {
	n := 0
	for _, ts := range lm.text {
		n += ts.NumProcedures()
	}
	return n
}

// SectionBytes implements binutils.Loader.
func (lm *LoadModule) SectionBytes(sec *binutils.Section, dst []byte) error {
	s := lm.file.Section(sec.Name())
	if s == nil {
		return fmt.Errorf("section %s not found", sec.Name())
	}
	if s.Type == elf.SHT_NOBITS {
		// Section contents stripped from the headers may still be mapped by a segment.
		return lm.segmentBytes(sec, dst)
	}
	if s.Flags&elf.SHF_COMPRESSED != 0 {
		data, err := s.Data(maxTextSectionSize)
		if err != nil {
			return err
		}
		if len(data) != len(dst) {
			return fmt.Errorf("section %s holds %d bytes, expected %d",
				sec.Name(), len(data), len(dst))
		}
		copy(dst, data)
		return nil
	}
	if len(dst) == 0 {
		return nil
	}
	n, err := s.ReadAt(dst, 0)
	if n == len(dst) {
		return nil
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("read %d of %d bytes: %w", n, len(dst), err)
}

// segmentBytes reads the contents of sec through the PT_LOAD segment covering it.
func (lm *LoadModule) segmentBytes(sec *binutils.Section, dst []byte) error {
	start := uint64(sec.Start())
	prog := lm.file.LoadSegment(start, uint64(len(dst)))
	if prog == nil {
		return fmt.Errorf("section %s has no contents", sec.Name())
	}
	if len(dst) == 0 {
		return nil
	}
	if _, err := prog.ReadAt(dst, int64(start-prog.Vaddr)); err != nil {
		return fmt.Errorf("failed to read section %s from its segment: %w", sec.Name(), err)
	}
	return nil
}

// LineInfo implements binutils.Loader.
func (lm *LoadModule) LineInfo(addr libpf.Address) (fn, file string, line int, ok bool) {
	if lm.debugInfo == nil {
		return "", "", 0, false
	}
	return lm.debugInfo.LineInfo(addr)
}

// Dump writes the module, its sections and procedures.
func (lm *LoadModule) Dump(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "Load module: `%s'\n  FileID: %s\n", lm.name, lm.fileID); err != nil {
		return err
	}
	if lm.buildID != "" {
		if _, err := fmt.Fprintf(w, "  BuildID: %s\n", lm.buildID); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "  Machine: %v (%s, %v)\n", lm.file.Machine,
		lm.decoder.Name(), lm.decoder.Class()); err != nil {
		return err
	}

	text := make(map[string]*binutils.TextSection, len(lm.text))
	for _, ts := range lm.text {
		text[ts.Name()] = ts
	}
	for i := range lm.sections {
		sec := &lm.sections[i]
		if ts, ok := text[sec.Name()]; ok {
			if err := ts.Dump(w, "  "); err != nil {
				return err
			}
			continue
		}
		if err := sec.Dump(w, "  "); err != nil {
			return err
		}
	}
	return nil
}

// DumpInstructions writes one line per instruction in address order.
func (lm *LoadModule) DumpInstructions(w io.Writer) error {
	for _, inst := range lm.index.Instructions() {
		if _, err := fmt.Fprintf(w, "%v\n", inst); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the text sections and the file.
func (lm *LoadModule) Close() error {
	for _, ts := range lm.text {
		ts.Close()
	}
	lm.text = nil
	return lm.file.Close()
}
