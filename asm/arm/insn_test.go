// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package arm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInstSizeAndOps(t *testing.T) {
	tests := map[string]struct {
		code   []byte
		size   int
		numOps int
	}{
		"ret":          {code: []byte{0xc0, 0x03, 0x5f, 0xd6}, size: 4, numOps: 1},
		"nop":          {code: []byte{0x1f, 0x20, 0x03, 0xd5, 0xff}, size: 4, numOps: 1},
		"stp x29, x30": {code: []byte{0xfd, 0x7b, 0xbf, 0xa9}, size: 4, numOps: 1},
		"udf literal":  {code: []byte{0x00, 0x00, 0x00, 0x00}, size: 4, numOps: 0},
		"short":        {code: []byte{0xc0, 0x03}, size: 0, numOps: 0},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			size, numOps := InstSizeAndOps(tc.code)
			assert.Equal(t, tc.size, size)
			assert.Equal(t, tc.numOps, numOps)
		})
	}
}
