// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package testsupport // import "github.com/lxhq/hpctoolkit/testsupport"

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// FixtureFunction is a function of the program built by BuildGoFixture.
const FixtureFunction = "main.fixtureAnswer"

// FixtureSource is the program built by BuildGoFixture.
const FixtureSource = `package main

import (
	"fmt"
	"os"
)

//go:noinline
func fixtureAnswer(args []string) int {
	fmt.Fprintln(os.Stderr, len(args))
	return len(args)*6 + 4
}

func main() {
	os.Exit(fixtureAnswer(os.Args) - 10)
}
`

// FixtureFunctionLine returns the source line declaring FixtureFunction.
func FixtureFunctionLine() int {
	for i, line := range strings.Split(FixtureSource, "\n") {
		if strings.HasPrefix(line, "func fixtureAnswer(") {
			return i + 1
		}
	}
	return 0
}

func goTool() string {
	if path, err := exec.LookPath("go"); err == nil {
		return path
	}
	//nolint:staticcheck
	if root := runtime.GOROOT(); root != "" {
		path := filepath.Join(root, "bin", "go")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// BuildGoFixture builds FixtureSource with the Go toolchain and returns the path of
// the binary. Unlike test binaries, it keeps its symbol table and DWARF. The test is
// skipped when no toolchain is available.
func BuildGoFixture(t testing.TB) string {
	t.Helper()
	gocmd := goTool()
	if gocmd == "" {
		t.Skip("Go toolchain not found")
	}

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"),
		[]byte("module fixture\n\ngo 1.21\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fixture.go"),
		[]byte(FixtureSource), 0o600))

	out := filepath.Join(dir, "fixture")
	c := exec.Command(gocmd, "build", "-o", out, ".")
	c.Dir = dir
	c.Env = append(os.Environ(), "CGO_ENABLED=0", "GOWORK=off", "GOFLAGS=")
	stderr := bytes.NewBuffer(nil)
	c.Stderr = stderr
	require.NoError(t, c.Run(), stderr.String())
	return out
}
