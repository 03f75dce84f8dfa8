// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package libpf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddressString(t *testing.T) {
	assert.Equal(t, "0x0", Address(0).String())
	assert.Equal(t, "0x401000", Address(0x401000).String())
}

func TestSet(t *testing.T) {
	set := SliceToSet([]string{".text", ".init", ".text"})
	assert.Len(t, set, 2)
	assert.True(t, set.Contains(".init"))
	assert.False(t, set.Contains(".fini"))
	assert.Equal(t, []string{".init", ".text"}, SortedKeys(set))
	assert.ElementsMatch(t, []string{".init", ".text"}, set.ToSlice())
}
