// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package libpf holds the value types shared by the decomposition packages: addresses,
// symbols, symbol tables and file identifiers.
package libpf // import "github.com/lxhq/hpctoolkit/libpf"

import "fmt"

// Address represents a virtual address or an offset within a load module.
type Address uint64

// String formats the address in the hexadecimal notation used by all dumps.
func (a Address) String() string {
	return fmt.Sprintf("0x%x", uint64(a))
}

// Void allows to use maps as sets without memory allocation for the values.
// From the "Go Programming Language":
//
//	The struct type with no fields is called the empty struct, written struct{}. It has size zero
//	and carries no information but may be useful nonetheless. Some Go programmers
//	use it instead of bool as the value type of a map that represents a set, to emphasize
//	that only the keys are significant, but the space saving is marginal and the syntax more
//	cumbersome, so we generally avoid it.
type Void struct{}
