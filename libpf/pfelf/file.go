// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// package pfelf implements functions for processing of ELF files and extracting data from
// them. This file implements an independent ELF parser from debug/elf with different usage:
//   - loads only portions of the ELF really needed and accessed (minimizing CPU/RSS)
//   - reads the file through a memory mapping or a page cache
//   - keeps symbol binding and type flags that procedure discovery needs
//   - decompresses SHF_COMPRESSED sections (zlib and zstd)

// The Executable and Linking Format (ELF) specification is available at:
//   https://refspecs.linuxfoundation.org/elf/elf.pdf

package pfelf // import "github.com/lxhq/hpctoolkit/libpf/pfelf"

import (
	"bytes"
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"os"
	"unsafe"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"

	"github.com/lxhq/hpctoolkit/libpf"
	"github.com/lxhq/hpctoolkit/libpf/pfelf/internal/mmap"
	"github.com/lxhq/hpctoolkit/libpf/readatbuf"
	"github.com/lxhq/hpctoolkit/libpf/xsync"
)

const (
	// maxBytesSmallSection is the maximum section size for small libpf
	// parsed sections (e.g. notes)
	maxBytesSmallSection = 4 * 1024

	// maxBytesLargeSection is the maximum section size for large libpf
	// parsed sections (e.g. symbol tables, string tables and DWARF)
	maxBytesLargeSection = 256 * 1024 * 1024

	// bufferedPageSize and bufferedCacheSize configure the page cache of OpenBuffered.
	bufferedPageSize  = 4096
	bufferedCacheSize = 64
)

// ErrNotELF is returned when the file is not an ELF
var ErrNotELF = errors.New("not an ELF file")

// ErrNoSymbols is returned when the requested symbol table is not present
var ErrNoSymbols = errors.New("symbol table not present")

// File represents an open ELF file
type File struct {
	// closer is called internally when resources for this File are to be released
	closer io.Closer

	// elfReader is the ReadAt implementation used for this File
	elfReader io.ReaderAt

	// Progs contains the program header
	Progs []Prog

	// Sections contains the program sections if loaded
	Sections []Section

	// elfHeader is the ELF file header
	elfHeader elf.Header64

	// debugInfo is built on first use from the .debug_* sections
	debugInfo xsync.Once[DebugInfo]

	// Fields to mimic elf.debug
	Type    elf.Type
	Machine elf.Machine
	Entry   uint64
}

// Prog represents a program header, and data associated with it
type Prog struct {
	elf.ProgHeader

	// elfReader is the same ReadAt as used for the File
	elfReader io.ReaderAt
}

// Section represents a section header, and data associated with it.
// For compressed sections Size is the uncompressed size and FileSize the
// number of bytes the section occupies in the file.
type Section struct {
	elf.SectionHeader

	// Embed ReaderAt for ReadAt method. It reads the bytes as stored in the file.
	io.ReaderAt

	// Do not embed SectionReader directly, or as public member. We can't
	// return the same copy to multiple callers, otherwise they corrupt
	// each other's reader file position.
	sr *io.SectionReader
}

// Open memory-maps the named file and prepares it for use as an ELF binary.
func Open(name string) (*File, error) {
	mf, err := mmap.Open(name)
	if err != nil {
		return nil, err
	}
	ff, err := newFile(mf, mf)
	if err != nil {
		mf.Close()
		return nil, err
	}
	return ff, nil
}

// OpenBuffered opens the named file using os.Open and reads it through a page cache
// instead of a memory mapping.
func OpenBuffered(name string) (*File, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}

	// Wrap it in a cacher as we often do short reads
	buffered, err := readatbuf.New(f, bufferedPageSize, bufferedCacheSize)
	if err != nil {
		f.Close()
		return nil, err
	}

	ff, err := newFile(buffered, f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return ff, nil
}

// Close closes the File.
func (f *File) Close() (err error) {
	if f.closer != nil {
		err = f.closer.Close()
		f.closer = nil
	}
	return
}

// NewFile creates a new ELF file object that borrows the given reader.
func NewFile(r io.ReaderAt) (*File, error) {
	return newFile(r, nil)
}

func newFile(r io.ReaderAt, closer io.Closer) (*File, error) {
	f := &File{
		elfReader: r,
		closer:    closer,
	}

	hdr := &f.elfHeader
	if _, err := r.ReadAt(libpf.SliceFrom(hdr), 0); err != nil {
		return nil, fmt.Errorf("failed to read ELF header: %w", err)
	}
	if !bytes.Equal(hdr.Ident[0:4], []byte{0x7f, 'E', 'L', 'F'}) {
		return nil, ErrNotELF
	}
	if elf.Class(hdr.Ident[elf.EI_CLASS]) != elf.ELFCLASS64 ||
		elf.Data(hdr.Ident[elf.EI_DATA]) != elf.ELFDATA2LSB ||
		elf.Version(hdr.Ident[elf.EI_VERSION]) != elf.EV_CURRENT {
		return nil, fmt.Errorf("unsupported ELF file: %v", hdr.Ident)
	}

	// fill the Machine and Type fields
	f.Machine = elf.Machine(hdr.Machine)
	f.Type = elf.Type(hdr.Type)
	f.Entry = hdr.Entry

	// Relocatable objects carry no program headers but their sections
	// can still be decomposed.
	if hdr.Phnum == 0 {
		return f, nil
	}

	progs := make([]elf.Prog64, hdr.Phnum)
	if _, err := r.ReadAt(libpf.SliceFrom(progs), int64(hdr.Phoff)); err != nil {
		return nil, fmt.Errorf("failed to read program headers: %w", err)
	}

	f.Progs = make([]Prog, hdr.Phnum)
	for i, ph := range progs {
		p := &f.Progs[i]
		p.ProgHeader = elf.ProgHeader{
			Type:   elf.ProgType(ph.Type),
			Flags:  elf.ProgFlag(ph.Flags),
			Off:    ph.Off,
			Vaddr:  ph.Vaddr,
			Paddr:  ph.Paddr,
			Filesz: ph.Filesz,
			Memsz:  ph.Memsz,
			Align:  ph.Align,
		}
		p.elfReader = r
	}

	return f, nil
}

// getString extracts a null terminated string from an ELF string table
func getString(section []byte, start int) (string, bool) {
	if start < 0 || start >= len(section) {
		return "", false
	}
	slen := bytes.IndexByte(section[start:], 0)
	if slen < 0 {
		return "", false
	}
	return string(section[start : start+slen]), true
}

// LoadSections loads the ELF file sections
func (f *File) LoadSections() error {
	if f.Sections != nil {
		// Already loaded.
		return nil
	}

	hdr := &f.elfHeader
	if hdr.Shnum == 0 {
		// No sections. Nothing to do.
		return nil
	}
	if hdr.Shstrndx >= hdr.Shnum {
		return fmt.Errorf("invalid ELF section string table index (%d / %d)",
			hdr.Shstrndx, hdr.Shnum)
	}

	// Load section headers
	sections := make([]elf.Section64, hdr.Shnum)
	if _, err := f.elfReader.ReadAt(libpf.SliceFrom(sections), int64(hdr.Shoff)); err != nil {
		return fmt.Errorf("failed to read section headers: %w", err)
	}

	loaded := make([]Section, hdr.Shnum)
	for i, sh := range sections {
		s := &loaded[i]
		s.SectionHeader = elf.SectionHeader{
			Type:      elf.SectionType(sh.Type),
			Flags:     elf.SectionFlag(sh.Flags),
			Addr:      sh.Addr,
			Offset:    sh.Off,
			Size:      sh.Size,
			Link:      sh.Link,
			Info:      sh.Info,
			Addralign: sh.Addralign,
			Entsize:   sh.Entsize,
			FileSize:  sh.Size,
		}
		if s.Type == elf.SHT_NOBITS {
			s.FileSize = 0
		}
		s.sr = io.NewSectionReader(f.elfReader, int64(s.Offset), int64(s.FileSize))
		s.ReaderAt = s.sr

		if s.Flags&elf.SHF_COMPRESSED != 0 {
			var chdr elf.Chdr64
			if _, err := s.ReadAt(libpf.SliceFrom(&chdr), 0); err != nil {
				return fmt.Errorf("failed to read compression header of section %d: %v",
					i, err)
			}
			s.Size = chdr.Size
		}
	}

	// Load the section name string table
	strsh := loaded[hdr.Shstrndx]
	if strsh.FileSize >= 1024*1024 {
		return fmt.Errorf("section headers string table too large (%d)",
			strsh.FileSize)
	}
	strtab, err := strsh.Data(maxBytesLargeSection)
	if err != nil {
		return err
	}
	for i := range loaded {
		sh := &loaded[i]
		var ok bool
		sh.Name, ok = getString(strtab, int(sections[i].Name))
		if !ok {
			return fmt.Errorf("bad section name index (section %d, index %d/%d)",
				i, sections[i].Name, len(strtab))
		}
	}

	f.Sections = loaded
	return nil
}

// Section returns a section with the given name, or nil if no such section exists.
func (f *File) Section(name string) *Section {
	if err := f.LoadSections(); err != nil {
		return nil
	}
	for i := range f.Sections {
		s := &f.Sections[i]
		if s.Name == name {
			return s
		}
	}
	return nil
}

// GetBuildID returns the ELF BuildID if present
func (f *File) GetBuildID() (string, error) {
	s := f.Section(".note.gnu.build-id")
	if s == nil {
		s = f.Section(".notes")
	}
	if s == nil {
		return "", ErrNoBuildID
	}
	data, err := s.Data(maxBytesSmallSection)
	if err != nil {
		return "", err
	}

	return getBuildIDFromNotes(data)
}

// ReadAt implements the io.ReaderAt interface
func (ph *Prog) ReadAt(p []byte, off int64) (n int, err error) {
	// First load as much as possible from the disk
	if uint64(off) < ph.Filesz {
		end := int(min(int64(len(p)), int64(ph.Filesz)-off))
		n, err = ph.elfReader.ReadAt(p[0:end], int64(ph.Off)+off)
		if n != end || err != nil {
			return n, err
		}
		off += int64(n)
	}

	// The gap between Filesz and Memsz is allocated by dynamic loader as
	// anonymous pages, and zero initialized. Read zeroes from this area.
	if n < len(p) && uint64(off) < ph.Memsz {
		end := int(min(int64(len(p)-n), int64(ph.Memsz)-off))
		clear(p[n : n+end])
		n += end
	}

	if n != len(p) {
		return n, io.EOF
	}
	return n, nil
}

// LoadSegment returns the PT_LOAD segment whose file-backed part holds the
// size bytes at addr, or nil if no segment does.
func (f *File) LoadSegment(addr, size uint64) *Prog {
	for i := range f.Progs {
		ph := &f.Progs[i]
		if ph.Type != elf.PT_LOAD || addr < ph.Vaddr {
			continue
		}
		if off := addr - ph.Vaddr; off <= ph.Filesz && size <= ph.Filesz-off {
			return ph
		}
	}
	return nil
}

// Data loads the whole section header referenced data, and returns it as a slice.
// Compressed sections are returned decompressed.
func (sh *Section) Data(maxSize uint) ([]byte, error) {
	if sh.Type == elf.SHT_NOBITS {
		return nil, fmt.Errorf("section %s has no file data", sh.Name)
	}
	if sh.FileSize > uint64(maxSize) {
		return nil, fmt.Errorf("section size %d is too large", sh.FileSize)
	}
	p := make([]byte, sh.FileSize)
	if len(p) == 0 {
		return p, nil
	}
	if _, err := sh.ReadAt(p, 0); err != nil {
		return nil, err
	}
	if sh.Flags&elf.SHF_COMPRESSED == 0 {
		return p, nil
	}
	return decompress(p, maxSize)
}

// decompress expands the contents of an SHF_COMPRESSED section.
func decompress(raw []byte, maxSize uint) ([]byte, error) {
	var chdr elf.Chdr64
	hdrLen := int(unsafe.Sizeof(chdr))
	if len(raw) < hdrLen {
		return nil, errors.New("compressed section too short for its header")
	}
	copy(libpf.SliceFrom(&chdr), raw)
	if chdr.Size > uint64(maxSize) {
		return nil, fmt.Errorf("uncompressed section size %d is too large", chdr.Size)
	}
	payload := raw[hdrLen:]

	var out []byte
	switch ctype := elf.CompressionType(chdr.Type); ctype {
	case elf.COMPRESS_ZLIB:
		zr, err := zlib.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("failed to open zlib stream: %v", err)
		}
		defer zr.Close()
		out = make([]byte, chdr.Size)
		if _, err = io.ReadFull(zr, out); err != nil {
			return nil, fmt.Errorf("failed to inflate section: %v", err)
		}
	case elf.COMPRESS_ZSTD:
		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderMaxMemory(uint64(maxSize)))
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		out, err = dec.DecodeAll(payload, make([]byte, 0, chdr.Size))
		if err != nil {
			return nil, fmt.Errorf("failed to decode zstd section: %v", err)
		}
		if uint64(len(out)) != chdr.Size {
			return nil, fmt.Errorf("zstd section decoded to %d bytes, expected %d",
				len(out), chdr.Size)
		}
	default:
		return nil, fmt.Errorf("unsupported section compression %v", ctype)
	}
	return out, nil
}

// symbolFlags translates ELF binding, type and section index to libpf flags.
func symbolFlags(sym *elf.Sym64) libpf.SymbolFlags {
	var flags libpf.SymbolFlags
	switch elf.ST_BIND(sym.Info) {
	case elf.STB_LOCAL:
		flags |= libpf.SymbolLocal
	case elf.STB_GLOBAL, elf.STB_LOOS: // STB_LOOS is STB_GNU_UNIQUE
		flags |= libpf.SymbolGlobal
	case elf.STB_WEAK:
		flags |= libpf.SymbolWeak
	}
	switch elf.ST_TYPE(sym.Info) {
	case elf.STT_FUNC, elf.STT_LOOS: // STT_LOOS is STT_GNU_IFUNC
		flags |= libpf.SymbolFunction
	}
	if elf.SectionIndex(sym.Shndx) == elf.SHN_UNDEF {
		flags |= libpf.SymbolUndefined
	}
	return flags
}

// loadSymbolTable reads given symbol table
func (f *File) loadSymbolTable(name string) (libpf.SymbolTable, error) {
	symTab := f.Section(name)
	if symTab == nil {
		return nil, fmt.Errorf("failed to read %v: %w", name, ErrNoSymbols)
	}
	if symTab.Link >= uint32(len(f.Sections)) {
		return nil, fmt.Errorf("failed to read %v strtab: link %v out of range",
			name, symTab.Link)
	}
	strTab := f.Sections[symTab.Link]
	strs, err := strTab.Data(maxBytesLargeSection)
	if err != nil {
		return nil, fmt.Errorf("failed to read %v: %v", strTab.Name, err)
	}
	syms, err := symTab.Data(maxBytesLargeSection)
	if err != nil {
		return nil, fmt.Errorf("failed to read %v: %v", name, err)
	}

	symSz := int(unsafe.Sizeof(elf.Sym64{}))
	count := len(syms) / symSz
	if count == 0 {
		return libpf.SymbolTable{}, nil
	}
	records := make([]elf.Sym64, count)
	copy(libpf.SliceFrom(records), syms)

	// Entry zero is the reserved undefined symbol.
	out := make([]libpf.Symbol, 0, count-1)
	for i := 1; i < count; i++ {
		sym := &records[i]
		name, ok := getString(strs, int(sym.Name))
		if !ok {
			continue
		}
		out = append(out, libpf.Symbol{
			Name:    libpf.SymbolName(name),
			Address: libpf.Address(sym.Value),
			Size:    sym.Size,
			Flags:   symbolFlags(sym),
		})
	}
	return libpf.NewSymbolTable(out), nil
}

// ReadSymbols reads the full symbol table (.symtab) from the ELF
func (f *File) ReadSymbols() (libpf.SymbolTable, error) {
	return f.loadSymbolTable(".symtab")
}

// ReadDynamicSymbols reads the full dynamic symbol table (.dynsym) from the ELF
func (f *File) ReadDynamicSymbols() (libpf.SymbolTable, error) {
	return f.loadSymbolTable(".dynsym")
}
