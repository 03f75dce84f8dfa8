// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package amd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEndBr(t *testing.T) {
	res, n := IsEndbr([]byte{0xF3, 0x0F, 0x1E, 0xFA})
	assert.True(t, res)
	assert.Equal(t, 4, n)

	res, n = IsEndbr([]byte{0xF3, 0x0F, 0x1E, 0xFB, 0x55})
	assert.True(t, res)
	assert.Equal(t, 4, n)

	res, _ = IsEndbr([]byte{0xF3, 0x0F, 0x1E})
	assert.False(t, res)

	res, _ = IsEndbr([]byte{})
	assert.False(t, res)
}

func TestInstSizeAndOps(t *testing.T) {
	tests := map[string]struct {
		code   []byte
		mode   int
		size   int
		numOps int
	}{
		"push rbp":         {code: []byte{0x55}, mode: Mode64, size: 1, numOps: 1},
		"mov rbp, rsp":     {code: []byte{0x48, 0x89, 0xe5, 0xc3}, mode: Mode64, size: 3, numOps: 1},
		"ret":              {code: []byte{0xc3, 0, 0, 0}, mode: Mode64, size: 1, numOps: 1},
		"endbr64":          {code: []byte{0xf3, 0x0f, 0x1e, 0xfa, 0x55}, mode: Mode64, size: 4, numOps: 1},
		"call rel32":       {code: []byte{0xe8, 0x00, 0x00, 0x00, 0x00}, mode: Mode64, size: 5, numOps: 1},
		"mov eax, imm32":   {code: []byte{0xb8, 0x01, 0x00, 0x00, 0x00}, mode: Mode32, size: 5, numOps: 1},
		"truncated call":   {code: []byte{0xe8, 0x00}, mode: Mode64, size: 0, numOps: 0},
		"empty":            {code: nil, mode: Mode64, size: 0, numOps: 0},
		"invalid in 64bit": {code: []byte{0x06}, mode: Mode64, size: 0, numOps: 0},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			size, numOps := InstSizeAndOps(tc.code, tc.mode)
			assert.Equal(t, tc.size, size)
			assert.Equal(t, tc.numOps, numOps)
		})
	}
}
