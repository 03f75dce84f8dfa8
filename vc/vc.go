// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package vc provides buildtime information for hpcdecomp.
package vc // import "github.com/lxhq/hpctoolkit/vc"

import "fmt"

var (
	// Set at link time via
	// -ldflags "-X github.com/lxhq/hpctoolkit/vc.version=...".

	// revision is the VCS commit the binary was built from.
	revision = ""
	// buildTimestamp is the time of the build.
	buildTimestamp = ""
	// version in vX.Y.Z{-N-abbrev} format (via git-describe --tags)
	version = ""
)

// Revision of the binary.
func Revision() string {
	return revision
}

// BuildTimestamp returns the timestamp of the build.
func BuildTimestamp() string {
	return buildTimestamp
}

// Version in vX.Y.Z{-N-abbrev} format. Unstamped builds report "dev".
func Version() string {
	if version == "" {
		return "dev"
	}
	return version
}

// String summarizes all build information on one line.
func String() string {
	s := Version()
	if revision != "" {
		s += fmt.Sprintf(" (revision %s", revision)
		if buildTimestamp != "" {
			s += ", built " + buildTimestamp
		}
		s += ")"
	}
	return s
}
