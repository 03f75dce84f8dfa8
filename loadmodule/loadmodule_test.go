// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package loadmodule

import (
	"bytes"
	"debug/elf"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lxhq/hpctoolkit/asm/isa"
	"github.com/lxhq/hpctoolkit/binutils"
	"github.com/lxhq/hpctoolkit/libpf"
	"github.com/lxhq/hpctoolkit/libpf/pfelf"
	"github.com/lxhq/hpctoolkit/testsupport"
)

var (
	mainCode = []byte{
		0x55,             // push rbp
		0x48, 0x89, 0xe5, // mov rbp, rsp
		0x5d, // pop rbp
		0xc3, // ret
	}
	helperCode = []byte{
		0xf3, 0x0f, 0x1e, 0xfa, // endbr64
		0x31, 0xc0, // xor eax, eax
		0xc3, // ret
	}
	initCode = []byte{
		0x48, 0x83, 0xec, 0x08, // sub rsp, 8
		0x48, 0x83, 0xc4, 0x08, // add rsp, 8
		0xc3, // ret
	}
)

func testBinary() *testsupport.TestELF {
	text := append(append([]byte(nil), mainCode...), helperCode...)
	return &testsupport.TestELF{
		Machine: elf.EM_X86_64,
		Sections: []testsupport.TestSection{
			testsupport.TextSection(".init", 0x400800, initCode),
			testsupport.TextSection(".text", 0x401000, text),
			{
				Name:  ".rodata",
				Type:  elf.SHT_PROGBITS,
				Flags: elf.SHF_ALLOC,
				Addr:  0x402000,
				Data:  []byte("hello\x00"),
			},
			{
				Name:  ".bss",
				Type:  elf.SHT_NOBITS,
				Flags: elf.SHF_ALLOC | elf.SHF_WRITE,
				Addr:  0x403000,
				Size:  0x40,
			},
			{
				Name: ".comment",
				Type: elf.SHT_PROGBITS,
				Data: []byte("GCC: 13.2\x00"),
			},
		},
		Symbols: []testsupport.TestSymbol{
			testsupport.FuncSymbol("_init", 0x400800, 9, elf.STB_GLOBAL, ".init"),
			testsupport.FuncSymbol("main", 0x401000, 6, elf.STB_GLOBAL, ".text"),
			testsupport.FuncSymbol("_ZN6helper3runEv", 0x401006, 7, elf.STB_LOCAL, ".text"),
			{Name: "greeting", Value: 0x402000, Size: 6, Bind: elf.STB_GLOBAL,
				Type: elf.STT_OBJECT, Section: ".rodata"},
			{Name: "printf", Bind: elf.STB_GLOBAL, Type: elf.STT_FUNC},
		},
		BuildID: []byte{0xca, 0xfe, 0xba, 0xbe},
	}
}

func procedureByName(lm *LoadModule, name string) *binutils.Procedure {
	for _, ts := range lm.TextSections() {
		for _, proc := range ts.Procedures() {
			if proc.Name() == name {
				return proc
			}
		}
	}
	return nil
}

func TestOpen(t *testing.T) {
	path := testsupport.WriteTestELF(t, testBinary())

	for name, opener := range map[string]pfelf.ELFOpener{
		"mmap":     pfelf.SystemOpener,
		"buffered": pfelf.BufferedOpener,
	} {
		t.Run(name, func(t *testing.T) {
			lm, err := Open(path, Config{Demangle: true, MaxParallel: 2, Opener: opener})
			require.NoError(t, err)
			defer lm.Close()

			assert.Equal(t, path, lm.Name())
			assert.False(t, lm.FileID().IsZero())
			assert.Equal(t, "cafebabe", lm.BuildID())
			assert.Equal(t, elf.EM_X86_64, lm.Machine())
			assert.Equal(t, isa.CISC, lm.Class())

			kinds := make(map[string]binutils.Kind)
			for _, sec := range lm.Sections() {
				kinds[sec.Name()] = sec.Kind()
				assert.Same(t, lm, sec.Owner())
			}
			assert.Equal(t, map[string]binutils.Kind{
				".init":              binutils.KindText,
				".text":              binutils.KindText,
				".rodata":            binutils.KindData,
				".bss":               binutils.KindBSS,
				".note.gnu.build-id": binutils.KindData,
			}, kinds)

			require.Len(t, lm.TextSections(), 2)
			assert.Equal(t, 3, lm.NumProcedures())

			mainProc := procedureByName(lm, "main")
			require.NotNil(t, mainProc)
			assert.Equal(t, libpf.Address(0x401006), mainProc.End())

			helper := procedureByName(lm, "helper::run()")
			require.NotNil(t, helper)
			assert.Equal(t, binutils.LinkageLocal, helper.Linkage())
			assert.Equal(t, libpf.Address(0x40100d), helper.End())

			// 3 instructions in .init, 4 in main and 3 in helper::run().
			assert.Equal(t, 10, lm.Index().Len())
			inst, ok := lm.Index().Lookup(0x401006, 0)
			require.True(t, ok)
			assert.Equal(t, uint16(4), inst.Size)
		})
	}
}

func TestSectionFilter(t *testing.T) {
	path := testsupport.WriteTestELF(t, testBinary())
	lm, err := Open(path, Config{Sections: []string{".text"}, NoDebugInfo: true})
	require.NoError(t, err)
	defer lm.Close()

	require.Len(t, lm.TextSections(), 1)
	assert.Equal(t, ".text", lm.TextSections()[0].Name())
	assert.Equal(t, 7, lm.Index().Len())
	// Without demangling the raw symbol name is kept.
	assert.NotNil(t, procedureByName(lm, "_ZN6helper3runEv"))
}

func TestUnsupportedMachine(t *testing.T) {
	bin := testBinary()
	bin.Machine = elf.EM_MIPS
	_, err := Open(testsupport.WriteTestELF(t, bin), Config{})
	require.ErrorIs(t, err, isa.ErrUnsupportedArch)
}

func TestNoSymbols(t *testing.T) {
	bin := testBinary()
	bin.NoSymtab = true
	lm, err := Open(testsupport.WriteTestELF(t, bin), Config{})
	require.NoError(t, err)
	defer lm.Close()

	assert.Len(t, lm.TextSections(), 2)
	assert.Zero(t, lm.NumProcedures())
	assert.Zero(t, lm.Index().Len())
}

func TestCompressedText(t *testing.T) {
	bin := testBinary()
	bin.Sections[1].Compress = true
	lm, err := Open(testsupport.WriteTestELF(t, bin), Config{Sections: []string{".text"}})
	require.NoError(t, err)
	defer lm.Close()

	require.Len(t, lm.TextSections(), 1)
	ts := lm.TextSections()[0]
	require.NoError(t, ts.Err())
	assert.Equal(t, append(append([]byte(nil), mainCode...), helperCode...), ts.Buffer().Bytes())
	assert.Equal(t, 7, ts.NumInstructions())
}

func TestDump(t *testing.T) {
	lm, err := Open(testsupport.WriteTestELF(t, testBinary()), Config{Demangle: true})
	require.NoError(t, err)
	defer lm.Close()

	var out bytes.Buffer
	require.NoError(t, lm.Dump(&out))
	dump := out.String()
	assert.Contains(t, dump, "  BuildID: cafebabe\n")
	assert.Contains(t, dump, "  Machine: EM_X86_64 (x86-64, CISC)\n")
	assert.Contains(t, dump, "    Name: `.rodata'\n")
	assert.Contains(t, dump, "    Type: `BSS'\n")
	assert.Contains(t, dump, "    Procedure: `helper::run()' (symbol `_ZN6helper3runEv')\n")

	out.Reset()
	require.NoError(t, lm.DumpInstructions(&out))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 10)
	assert.Equal(t, "0x400800/0 CISC size 4", lines[0])
}

// goarchMachines maps the architectures the decoders support to their ELF machine.
var goarchMachines = map[string]elf.Machine{
	"amd64": elf.EM_X86_64,
	"arm64": elf.EM_AARCH64,
}

func TestDecomposeGoBinary(t *testing.T) {
	if testing.Short() {
		t.Skip("building and decomposing a Go binary is slow")
	}
	machine, ok := goarchMachines[runtime.GOARCH]
	if !ok {
		t.Skipf("no instruction decoder for %s", runtime.GOARCH)
	}

	lm, err := Open(testsupport.BuildGoFixture(t), Config{MaxParallel: 4})
	require.NoError(t, err)
	defer lm.Close()

	assert.Equal(t, machine, lm.Machine())
	assert.Greater(t, lm.NumProcedures(), 100)
	assert.Positive(t, lm.Index().Len())

	for _, ts := range lm.TextSections() {
		require.NoError(t, ts.Err())
		procs := ts.Procedures()
		for i, proc := range procs {
			assert.LessOrEqual(t, proc.Start(), proc.End())
			if i > 0 {
				assert.LessOrEqual(t, procs[i-1].End(), proc.Start())
			}
		}
	}

	answer := procedureByName(lm, testsupport.FixtureFunction)
	require.NotNil(t, answer)
	assert.Greater(t, answer.Size(), uint64(0))

	fn, file, line, ok := lm.LineInfo(answer.Start())
	require.True(t, ok)
	assert.Equal(t, testsupport.FixtureFunction, fn)
	assert.Equal(t, "fixture.go", filepath.Base(file))
	assert.GreaterOrEqual(t, line, testsupport.FixtureFunctionLine())
}

func TestRelocatableObject(t *testing.T) {
	path := testsupport.WriteTestELF(t, &testsupport.TestELF{
		Machine: elf.EM_X86_64,
		Type:    elf.ET_REL,
		Sections: []testsupport.TestSection{
			testsupport.TextSection(".text.a", 0, mainCode),
			testsupport.TextSection(".text.b", 0, helperCode),
		},
		Symbols: []testsupport.TestSymbol{
			testsupport.FuncSymbol("a", 0, uint64(len(mainCode)), elf.STB_GLOBAL, ".text.a"),
			testsupport.FuncSymbol("b", 0, uint64(len(helperCode)), elf.STB_GLOBAL, ".text.b"),
		},
	})
	_, err := Open(path, Config{})
	require.ErrorIs(t, err, ErrRelocatable)
}

func TestNewClosesFileOnError(t *testing.T) {
	bin := testBinary()
	bin.Machine = elf.EM_MIPS
	ef, err := pfelf.Open(testsupport.WriteTestELF(t, bin))
	require.NoError(t, err)
	defer ef.Close()

	buf := make([]byte, len(initCode))
	_, err = ef.Progs[0].ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, initCode, buf)

	_, err = New("mips", ef, Config{})
	require.ErrorIs(t, err, isa.ErrUnsupportedArch)
	_, err = ef.Progs[0].ReadAt(buf, 0)
	require.Error(t, err)
}

func TestStrippedTextFromSegment(t *testing.T) {
	bin := testBinary()
	// .init is the section mapped by the PT_LOAD segment, .text is not.
	bin.Sections[0].Stripped = true
	bin.Sections[1].Stripped = true
	lm, err := Open(testsupport.WriteTestELF(t, bin), Config{})
	require.NoError(t, err)
	defer lm.Close()

	text := make(map[string]*binutils.TextSection)
	for _, ts := range lm.TextSections() {
		text[ts.Name()] = ts
	}
	require.Len(t, text, 2)

	initSec := text[".init"]
	require.NoError(t, initSec.Err())
	assert.Equal(t, initCode, initSec.Buffer().Bytes())
	assert.Equal(t, 3, initSec.NumInstructions())
	initProc := procedureByName(lm, "_init")
	require.NotNil(t, initProc)
	assert.Equal(t, libpf.Address(0x400809), initProc.End())

	// Without file data the procedures keep their provisional extents.
	require.Error(t, text[".text"].Err())
	assert.Nil(t, text[".text"].Buffer())
	mainProc := procedureByName(lm, "main")
	require.NotNil(t, mainProc)
	assert.Equal(t, libpf.Address(0x401006), mainProc.End())
	assert.Equal(t, 3, lm.Index().Len())
}
