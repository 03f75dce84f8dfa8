// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"flag"
	"fmt"
	"runtime"
	"strings"

	"github.com/peterbourgon/ff/v3"
	log "github.com/sirupsen/logrus"

	"github.com/lxhq/hpctoolkit/libpf/pfelf"
	"github.com/lxhq/hpctoolkit/loadmodule"
)

const (
	// Default values for CLI flags
	defaultArgNameCacheSize = 16384
	defaultArgSections      = ""
	defaultArgOutput        = ""

	maxArgNameCacheSize = 1 << 24
)

// Help strings for command line arguments
var (
	configHelp        = "Read flags from the given plain text `file`."
	demangleHelp      = "Demangle C++ and Rust procedure names."
	instructionsHelp  = "Also list every decoded instruction."
	nameCacheSizeHelp = fmt.Sprintf("Number of demangled names to cache (max %d).",
		maxArgNameCacheSize)
	noDebugInfoHelp = "Do not read DWARF for procedure names."
	noMmapHelp      = "Read input files through a page cache instead of memory mapping them."
	outputHelp      = "Write the listing to `file` instead of stdout. " +
		"A .zst suffix compresses the output with zstd."
	parallelHelp = "Maximum number of text sections decomposed at the same time. " +
		"Defaults to the number of CPUs."
	sectionsHelp    = "Comma-separated list of text sections to decompose. Empty means all."
	verboseModeHelp = "Enable verbose logging."
	versionHelp     = "Show version."
)

type arguments struct {
	config        string
	demangle      bool
	instructions  bool
	nameCacheSize uint
	noDebugInfo   bool
	noMmap        bool
	output        string
	parallel      int
	sections      string
	verboseMode   bool
	version       bool

	files []string
	fs    *flag.FlagSet
}

func parseArgs(argv []string) (*arguments, error) {
	var args arguments

	fs := flag.NewFlagSet("hpcdecomp", flag.ContinueOnError)

	// Please keep the parameters ordered alphabetically in the source-code.
	fs.StringVar(&args.config, "config", "", configHelp)

	fs.BoolVar(&args.demangle, "demangle", false, demangleHelp)

	fs.BoolVar(&args.instructions, "instructions", false, instructionsHelp)

	fs.UintVar(&args.nameCacheSize, "name-cache-size", defaultArgNameCacheSize,
		nameCacheSizeHelp)

	fs.BoolVar(&args.noDebugInfo, "no-debug-info", false, noDebugInfoHelp)
	fs.BoolVar(&args.noMmap, "no-mmap", false, noMmapHelp)

	fs.StringVar(&args.output, "output", defaultArgOutput, outputHelp)

	fs.IntVar(&args.parallel, "parallel", runtime.NumCPU(), parallelHelp)

	fs.StringVar(&args.sections, "sections", defaultArgSections, sectionsHelp)

	fs.BoolVar(&args.verboseMode, "v", false, "Shorthand for -verbose.")
	fs.BoolVar(&args.verboseMode, "verbose", false, verboseModeHelp)
	fs.BoolVar(&args.version, "version", false, versionHelp)

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [flags] FILE...\n", fs.Name())
		fs.PrintDefaults()
	}

	args.fs = fs

	err := ff.Parse(fs, argv,
		ff.WithEnvVarPrefix("HPCDECOMP"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		// Unknown options in a config file shared with other tools are ignored.
		ff.WithIgnoreUndefined(true),
		ff.WithAllowMissingConfigFile(true),
	)
	args.files = fs.Args()
	return &args, err
}

// SanityCheck validates flag values that the flag package cannot.
func (args *arguments) SanityCheck() error {
	if args.version {
		return nil
	}
	if len(args.files) == 0 {
		return errors.New("no input files")
	}
	if args.nameCacheSize == 0 || args.nameCacheSize > maxArgNameCacheSize {
		return fmt.Errorf("name cache size must be between 1 and %d", maxArgNameCacheSize)
	}
	if args.parallel < 1 {
		return fmt.Errorf("invalid parallelism %d", args.parallel)
	}
	return nil
}

// sectionNames splits the -sections value, dropping empty entries.
func (args *arguments) sectionNames() []string {
	var names []string
	for _, name := range strings.Split(args.sections, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// loadModuleConfig translates the flags into the decomposition configuration.
func (args *arguments) loadModuleConfig() loadmodule.Config {
	cfg := loadmodule.Config{
		Demangle:      args.demangle,
		NameCacheSize: uint32(args.nameCacheSize),
		MaxParallel:   args.parallel,
		Sections:      args.sectionNames(),
		NoDebugInfo:   args.noDebugInfo,
		Opener:        pfelf.SystemOpener,
	}
	if args.noMmap {
		cfg.Opener = pfelf.BufferedOpener
	}
	return cfg
}

// dump visits all flags and logs them at debug level.
func (args *arguments) dump() {
	log.Debug("Config:")
	args.fs.VisitAll(func(f *flag.Flag) {
		log.Debugf("%s: %v", f.Name, f.Value)
	})
}
