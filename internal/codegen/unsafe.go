// Copyright 2012, Fedor Indutny.

package codegen

import "unsafe"

// uintptrOf returns the address of an mmap'd byte slice's backing
// array, stable for the mapping's lifetime (see internal/heap's
// identical helper — not exported across the package boundary, so
// repeated here for the same reason).
func uintptrOf(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}
