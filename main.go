// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// hpcdecomp decomposes the text sections of ELF binaries into procedures and
// instructions and prints the result.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	log "github.com/sirupsen/logrus"

	"github.com/lxhq/hpctoolkit/loadmodule"
	"github.com/lxhq/hpctoolkit/vc"
)

type exitCode int

const (
	exitSuccess exitCode = 0
	exitFailure exitCode = 1

	// Go 'flag' package calls os.Exit(2) on flag parse errors, if ExitOnError is set
	exitParseError exitCode = 2
)

func main() {
	os.Exit(int(mainWithExitCode()))
}

func mainWithExitCode() exitCode {
	args, err := parseArgs(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitSuccess
		}
		return parseError("Failure to parse arguments: %v", err)
	}
	return run(args, os.Stdout)
}

func run(args *arguments, stdout io.Writer) exitCode {
	if args.version {
		fmt.Fprintf(stdout, "%s\n", vc.String())
		return exitSuccess
	}

	if args.verboseMode {
		log.SetLevel(log.DebugLevel)
		// Dump the arguments in debug mode.
		args.dump()
	}

	if err := args.SanityCheck(); err != nil {
		return parseError("%v", err)
	}

	out, closeOut, err := openOutput(args.output, stdout)
	if err != nil {
		return failure("Failed to open output: %v", err)
	}

	cfg := args.loadModuleConfig()
	code := exitSuccess
	for _, path := range args.files {
		if err = decompose(path, cfg, args.instructions, out); err != nil {
			log.Errorf("Failed to decompose %s: %v", path, err)
			code = exitFailure
		}
	}

	if err = closeOut(); err != nil {
		return failure("Failed to finish output: %v", err)
	}
	return code
}

func decompose(path string, cfg loadmodule.Config, instructions bool, w io.Writer) error {
	lm, err := loadmodule.Open(path, cfg)
	if err != nil {
		return err
	}
	defer lm.Close()

	log.Debugf("%s: %d text sections, %d procedures, %d instructions",
		path, len(lm.TextSections()), lm.NumProcedures(), lm.Index().Len())
	if n := lm.Index().Duplicates(); n > 0 {
		log.Warnf("%s: %d instructions reported more than once", path, n)
	}

	if err = lm.Dump(w); err != nil {
		return err
	}
	if instructions {
		return lm.DumpInstructions(w)
	}
	return nil
}

// openOutput returns the writer for the listing and a function flushing and
// closing it. An empty name selects stdout.
func openOutput(name string, stdout io.Writer) (io.Writer, func() error, error) {
	if name == "" {
		return stdout, func() error { return nil }, nil
	}

	f, err := os.Create(name)
	if err != nil {
		return nil, nil, err
	}
	if filepath.Ext(name) != ".zst" {
		return f, f.Close, nil
	}

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return enc, func() error {
		if err := enc.Close(); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}, nil
}

func parseError(msg string, args ...any) exitCode {
	log.Errorf(msg, args...)
	return exitParseError
}

func failure(msg string, args ...any) exitCode {
	log.Errorf(msg, args...)
	return exitFailure
}
