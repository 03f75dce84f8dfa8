// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// package pfelf implements functions for processing of ELF files and extracting data from
// them. This file implements function name and source line lookups from DWARF if it is
// present.

package pfelf // import "github.com/lxhq/hpctoolkit/libpf/pfelf"

import (
	"debug/dwarf"
	"errors"
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/lxhq/hpctoolkit/libpf"
)

// ErrNoDebugInfo is returned when the file carries no .debug_info section
var ErrNoDebugInfo = errors.New("no DWARF debug info")

// optionalDebugSections are added to the DWARF data when present. DWARF 5
// producers cannot be decoded without them.
var optionalDebugSections = []string{
	".debug_addr",
	".debug_line_str",
	".debug_str_offsets",
	".debug_rnglists",
	".debug_loclists",
}

// funcRange is one contiguous address range of a DW_TAG_subprogram.
type funcRange struct {
	low, high uint64
	name      string
}

// DebugInfo answers address queries against the DWARF data of a File.
// It is safe for concurrent use: every query works on its own readers.
type DebugInfo struct {
	data *dwarf.Data

	// funcs is sorted by low address
	funcs []funcRange

	// maxHigh[i] is the largest high address of funcs[0..i]
	maxHigh []uint64
}

// DebugInfo returns the DWARF lookup tables of the file, building them on first use.
func (f *File) DebugInfo() (*DebugInfo, error) {
	return f.debugInfo.GetOrInit(f.loadDebugInfo)
}

// sectionData returns the contents of the named section, or nil if it is absent.
func (f *File) sectionData(name string) ([]byte, error) {
	s := f.Section(name)
	if s == nil {
		return nil, nil
	}
	return s.Data(maxBytesLargeSection)
}

func (f *File) loadDebugInfo() (DebugInfo, error) {
	if err := f.LoadSections(); err != nil {
		return DebugInfo{}, err
	}
	if f.Section(".debug_info") == nil {
		return DebugInfo{}, ErrNoDebugInfo
	}

	var sections [6][]byte
	for i, name := range []string{".debug_abbrev", ".debug_aranges", ".debug_info",
		".debug_line", ".debug_ranges", ".debug_str"} {
		data, err := f.sectionData(name)
		if err != nil {
			return DebugInfo{}, fmt.Errorf("failed to read %s: %v", name, err)
		}
		sections[i] = data
	}

	// Directly construct the DWARF data from the section slices. This
	// avoids the copies elf.File's DWARF() accessor makes.
	dwarfData, err := dwarf.New(sections[0], sections[1], nil, sections[2],
		sections[3], nil, sections[4], sections[5])
	if err != nil {
		return DebugInfo{}, fmt.Errorf("failed to parse DWARF: %w", err)
	}
	for _, name := range optionalDebugSections {
		data, err := f.sectionData(name)
		if err != nil {
			return DebugInfo{}, fmt.Errorf("failed to read %s: %v", name, err)
		}
		if data == nil {
			continue
		}
		if err := dwarfData.AddSection(name, data); err != nil {
			return DebugInfo{}, fmt.Errorf("failed to add %s: %v", name, err)
		}
	}

	funcs, err := collectFunctions(dwarfData)
	if err != nil {
		return DebugInfo{}, err
	}
	maxHigh := make([]uint64, len(funcs))
	var top uint64
	for i := range funcs {
		top = max(top, funcs[i].high)
		maxHigh[i] = top
	}
	log.Debugf("Loaded %d DWARF function ranges", len(funcs))
	return DebugInfo{data: dwarfData, funcs: funcs, maxHigh: maxHigh}, nil
}

// originName follows DW_AT_abstract_origin and DW_AT_specification to a named entry.
func originName(d *dwarf.Data, entry *dwarf.Entry) string {
	for range 4 {
		if name, ok := entry.Val(dwarf.AttrName).(string); ok {
			return name
		}
		off, ok := entry.Val(dwarf.AttrAbstractOrigin).(dwarf.Offset)
		if !ok {
			off, ok = entry.Val(dwarf.AttrSpecification).(dwarf.Offset)
		}
		if !ok {
			return ""
		}
		r := d.Reader()
		r.Seek(off)
		next, err := r.Next()
		if err != nil || next == nil {
			return ""
		}
		entry = next
	}
	return ""
}

func collectFunctions(d *dwarf.Data) ([]funcRange, error) {
	var funcs []funcRange
	reader := d.Reader()
	for {
		entry, err := reader.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to read DWARF entry: %w", err)
		}
		if entry == nil {
			break
		}
		if entry.Tag != dwarf.TagSubprogram {
			continue
		}
		name := originName(d, entry)
		if name == "" {
			continue
		}
		ranges, err := d.Ranges(entry)
		if err != nil {
			// A broken range list only loses this function.
			continue
		}
		for _, rng := range ranges {
			if rng[1] <= rng[0] {
				continue
			}
			funcs = append(funcs, funcRange{low: rng[0], high: rng[1], name: name})
		}
	}
	sort.SliceStable(funcs, func(i, j int) bool {
		return funcs[i].low < funcs[j].low
	})
	return funcs, nil
}

// NumFunctions returns the number of function address ranges known.
func (di *DebugInfo) NumFunctions() int {
	return len(di.funcs)
}

// FunctionName returns the name of the innermost subprogram whose range covers addr.
func (di *DebugInfo) FunctionName(addr libpf.Address) (string, bool) {
	a := uint64(addr)
	idx := sort.Search(len(di.funcs), func(i int) bool {
		return di.funcs[i].low > a
	})
	// Ranges starting later are nested deeper, so the closest start wins.
	for i := idx - 1; i >= 0 && di.maxHigh[i] > a; i-- {
		if fr := &di.funcs[i]; a < fr.high {
			return fr.name, true
		}
	}
	return "", false
}

// LineInfo returns the function name, source file and line for addr.
func (di *DebugInfo) LineInfo(addr libpf.Address) (fn, file string, line int, ok bool) {
	fn, _ = di.FunctionName(addr)

	reader := di.data.Reader()
	cu, err := reader.SeekPC(uint64(addr))
	if err != nil || cu == nil {
		return fn, "", 0, fn != ""
	}
	lr, err := di.data.LineReader(cu)
	if err != nil || lr == nil {
		return fn, "", 0, fn != ""
	}
	var entry dwarf.LineEntry
	if err := lr.SeekPC(uint64(addr), &entry); err != nil {
		return fn, "", 0, fn != ""
	}
	if entry.File != nil {
		file = entry.File.Name
	}
	return fn, file, entry.Line, true
}
