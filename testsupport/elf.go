// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package testsupport // import "github.com/lxhq/hpctoolkit/testsupport"

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/require"
)

// TestSection describes one section of a synthesized ELF file.
type TestSection struct {
	Name  string
	Type  elf.SectionType
	Flags elf.SectionFlag
	Addr  uint64
	Data  []byte
	// Size is used for SHT_NOBITS sections, which have no Data.
	Size uint64
	// Compress stores Data zlib compressed with SHF_COMPRESSED set.
	Compress bool
	// Stripped writes Data to the file, where the PT_LOAD segment still maps
	// it, but marks the section header SHT_NOBITS.
	Stripped bool
}

// TestSymbol describes one .symtab entry. An empty Section makes it undefined.
type TestSymbol struct {
	Name    string
	Value   uint64
	Size    uint64
	Bind    elf.SymBind
	Type    elf.SymType
	Section string
}

// TestELF describes a little-endian ELF64 file to synthesize.
type TestELF struct {
	Machine  elf.Machine
	Type     elf.Type
	Sections []TestSection
	Symbols  []TestSymbol
	// BuildID adds a .note.gnu.build-id section when not empty.
	BuildID []byte
	// NoSymtab omits .symtab and .strtab.
	NoSymtab bool
}

// TextSection returns an executable SHT_PROGBITS section.
func TextSection(name string, addr uint64, code []byte) TestSection {
	return TestSection{
		Name:  name,
		Type:  elf.SHT_PROGBITS,
		Flags: elf.SHF_ALLOC | elf.SHF_EXECINSTR,
		Addr:  addr,
		Data:  code,
	}
}

// FuncSymbol returns a defined function symbol in section.
func FuncSymbol(name string, value, size uint64, bind elf.SymBind, section string) TestSymbol {
	return TestSymbol{
		Name:    name,
		Value:   value,
		Size:    size,
		Bind:    bind,
		Type:    elf.STT_FUNC,
		Section: section,
	}
}

type stringTable struct {
	buf bytes.Buffer
}

func newStringTable() *stringTable {
	st := &stringTable{}
	st.buf.WriteByte(0)
	return st
}

func (st *stringTable) add(s string) uint32 {
	if s == "" {
		return 0
	}
	off := uint32(st.buf.Len())
	st.buf.WriteString(s)
	st.buf.WriteByte(0)
	return off
}

func align(buf *bytes.Buffer, to int) {
	for buf.Len()%to != 0 {
		buf.WriteByte(0)
	}
}

func buildIDNote(id []byte) []byte {
	var note bytes.Buffer
	_ = binary.Write(&note, binary.LittleEndian, [3]uint32{4, uint32(len(id)), 3})
	note.WriteString("GNU\x00")
	note.Write(id)
	align(&note, 4)
	return note.Bytes()
}

func compressSection(data []byte) ([]byte, error) {
	var out bytes.Buffer
	chdr := elf.Chdr64{
		Type:      uint32(elf.COMPRESS_ZLIB),
		Size:      uint64(len(data)),
		Addralign: 1,
	}
	if err := binary.Write(&out, binary.LittleEndian, &chdr); err != nil {
		return nil, err
	}
	zw := zlib.NewWriter(&out)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Bytes renders the ELF image. The first allocated section is covered by
// the single PT_LOAD program header.
func (e *TestELF) Bytes() ([]byte, error) {
	const (
		ehdrSize = 64
		phdrSize = 56
		shdrSize = 64
		symSize  = 24
	)

	sections := append([]TestSection(nil), e.Sections...)
	if len(e.BuildID) != 0 {
		sections = append(sections, TestSection{
			Name:  ".note.gnu.build-id",
			Type:  elf.SHT_NOTE,
			Flags: elf.SHF_ALLOC,
			Data:  buildIDNote(e.BuildID),
		})
	}
	sectionIndex := make(map[string]uint16, len(sections))
	for i, s := range sections {
		sectionIndex[s.Name] = uint16(i + 1)
	}

	var symtab, strtabData []byte
	if !e.NoSymtab {
		strtab := newStringTable()
		var syms bytes.Buffer
		_ = binary.Write(&syms, binary.LittleEndian, &elf.Sym64{})
		for _, s := range e.Symbols {
			sym := elf.Sym64{
				Name:  strtab.add(s.Name),
				Info:  elf.ST_INFO(s.Bind, s.Type),
				Value: s.Value,
				Size:  s.Size,
			}
			if s.Section != "" {
				sym.Shndx = sectionIndex[s.Section]
			}
			_ = binary.Write(&syms, binary.LittleEndian, &sym)
		}
		symtab = syms.Bytes()
		strtabData = strtab.buf.Bytes()
	}

	var out bytes.Buffer
	out.Write(make([]byte, ehdrSize+phdrSize))

	shstrtab := newStringTable()
	headers := []elf.Section64{{}}
	var load elf.Prog64
	for _, s := range sections {
		align(&out, 16)
		data := s.Data
		flags := s.Flags
		if s.Compress {
			var err error
			if data, err = compressSection(s.Data); err != nil {
				return nil, err
			}
			flags |= elf.SHF_COMPRESSED
		}
		sh := elf.Section64{
			Name:      shstrtab.add(s.Name),
			Type:      uint32(s.Type),
			Flags:     uint64(flags),
			Addr:      s.Addr,
			Off:       uint64(out.Len()),
			Size:      uint64(len(data)),
			Addralign: 16,
		}
		switch {
		case s.Stripped:
			sh.Type = uint32(elf.SHT_NOBITS)
			out.Write(data)
		case s.Type == elf.SHT_NOBITS:
			sh.Size = s.Size
		default:
			out.Write(data)
		}
		if load.Type == 0 && flags&elf.SHF_ALLOC != 0 {
			load = elf.Prog64{
				Type:   uint32(elf.PT_LOAD),
				Flags:  uint32(elf.PF_R | elf.PF_X),
				Off:    sh.Off,
				Vaddr:  sh.Addr,
				Paddr:  sh.Addr,
				Filesz: uint64(len(data)),
				Memsz:  sh.Size,
				Align:  16,
			}
		}
		headers = append(headers, sh)
	}

	if !e.NoSymtab {
		align(&out, 8)
		strtabIndex := uint32(len(headers) + 1)
		headers = append(headers, elf.Section64{
			Name:      shstrtab.add(".symtab"),
			Type:      uint32(elf.SHT_SYMTAB),
			Off:       uint64(out.Len()),
			Size:      uint64(len(symtab)),
			Link:      strtabIndex,
			Info:      1,
			Addralign: 8,
			Entsize:   symSize,
		})
		out.Write(symtab)
		headers = append(headers, elf.Section64{
			Name:      shstrtab.add(".strtab"),
			Type:      uint32(elf.SHT_STRTAB),
			Off:       uint64(out.Len()),
			Size:      uint64(len(strtabData)),
			Addralign: 1,
		})
		out.Write(strtabData)
	}

	shstrndx := uint16(len(headers))
	shstrName := shstrtab.add(".shstrtab")
	headers = append(headers, elf.Section64{
		Name:      shstrName,
		Type:      uint32(elf.SHT_STRTAB),
		Off:       uint64(out.Len()),
		Size:      uint64(shstrtab.buf.Len()),
		Addralign: 1,
	})
	out.Write(shstrtab.buf.Bytes())

	align(&out, 8)
	shoff := uint64(out.Len())
	for i := range headers {
		_ = binary.Write(&out, binary.LittleEndian, &headers[i])
	}

	typ := e.Type
	if typ == elf.ET_NONE {
		typ = elf.ET_EXEC
	}
	hdr := elf.Header64{
		Type:      uint16(typ),
		Machine:   uint16(e.Machine),
		Version:   uint32(elf.EV_CURRENT),
		Phoff:     ehdrSize,
		Shoff:     shoff,
		Ehsize:    ehdrSize,
		Phentsize: phdrSize,
		Phnum:     1,
		Shentsize: shdrSize,
		Shnum:     uint16(len(headers)),
		Shstrndx:  shstrndx,
	}
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	image := out.Bytes()
	var head bytes.Buffer
	_ = binary.Write(&head, binary.LittleEndian, &hdr)
	_ = binary.Write(&head, binary.LittleEndian, &load)
	copy(image, head.Bytes())
	return image, nil
}

// WriteTestELF renders e into a file below t.TempDir and returns its path.
func WriteTestELF(t testing.TB, e *TestELF) string {
	t.Helper()
	image, err := e.Bytes()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "test.elf")
	require.NoError(t, os.WriteFile(path, image, 0o600))
	return path
}
