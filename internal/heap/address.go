// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heap

// An Address is a location in the managed heap, expressed as an
// absolute machine word. Unlike Value, an Address is never tagged: it
// is always the byte offset of some object header or word within it.
type Address uintptr

// Add returns the address n bytes past a.
func (a Address) Add(n int64) Address {
	return Address(int64(a) + n)
}

// Sub returns the distance in bytes from b to a.
func (a Address) Sub(b Address) int64 {
	return int64(a) - int64(b)
}

func (a Address) alignedDown(align int64) Address {
	return Address(int64(a) &^ (align - 1))
}
