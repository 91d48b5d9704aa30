// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heap

// HashValue computes the Map-slot hash of a value. Strings hash their
// (flattened) bytes, cached on the string object; small integers hash
// to themselves. This is the runtime behavior the code emitter's
// HashValue stub calls into from compiled code.
func (hp *Heap) HashValue(v Value) uint64 {
	switch {
	case v.IsSmi():
		return uint64(v.Smi())
	case v.IsNil():
		return 0
	default:
		h := hp.HeaderAt(v.Addr())
		if h.Tag() != TagString {
			// Non-string, non-smi property keys are not part of
			// this language's surface syntax; treat the address
			// itself as the hash so Map lookups stay total.
			return uint64(v)
		}
		return hp.StringView(v.Addr()).Hash()
	}
}

// fnv1a64 is the hashing algorithm used for string contents. Simple,
// dependency-free, and stable across a run — exactly what a
// lazily-cached per-object hash needs.
func fnv1a64(b []byte) uint64 {
	const (
		offset = 14695981039346656037
		prime  = 1099511628211
	)
	h := uint64(offset)
	for _, c := range b {
		h ^= uint64(c)
		h *= prime
	}
	return h
}
