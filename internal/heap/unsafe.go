// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heap

import "unsafe"

// uintptrOf returns the address of an mmap'd byte slice's backing
// array. The slice is never grown or moved by the Go runtime (it is
// not heap-allocated Go memory, it is a raw OS mapping), so the
// address is stable for the mapping's lifetime.
func uintptrOf(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}
