// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package vc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	defer func(v, r, b string) { version, revision, buildTimestamp = v, r, b }(
		version, revision, buildTimestamp)

	version, revision, buildTimestamp = "", "", ""
	assert.Equal(t, "dev", Version())
	assert.Equal(t, "dev", String())

	version, revision = "v1.2.3", "abc123"
	assert.Equal(t, "v1.2.3 (revision abc123)", String())

	buildTimestamp = "2024-01-01"
	assert.Equal(t, "v1.2.3 (revision abc123, built 2024-01-01)", String())
	assert.Equal(t, "abc123", Revision())
	assert.Equal(t, "2024-01-01", BuildTimestamp())
}
