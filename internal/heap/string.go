// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heap

// String payload layout:
//
//	flat: word0 = length, word1 = cached hash (0 means "not yet
//	      computed"; the empty string's hash is never 0 by
//	      construction, see Hash below), remaining bytes = UTF-8 data.
//	cons: word0 = length, word1 = cached hash, word2 = left Value,
//	      word3 = right Value.
//
// Length and equality always observe the flattened string: a cons
// string stores its combined length when built, and Bytes returns the
// concatenation of its children (built again on every call; the cons
// object itself is never flattened in place). Hash is computed over
// those bytes and cached in word1, so repeated hashing is O(1).
type StringView struct {
	h *Heap
	a Address
}

func (hp *Heap) StringView(a Address) StringView {
	return StringView{hp, a}
}

const (
	stringLengthWord = 0
	stringHashWord   = 1
	consLeftWord     = 2
	consRightWord    = 3
)

// NewString allocates a flat string holding s's bytes.
func (hp *Heap) NewString(s string) (Address, bool) {
	b := []byte(s)
	a, ok := hp.Allocate(TagString, StringFlat, 16+int64(len(b)))
	if !ok {
		return 0, false
	}
	hdr := hp.HeaderAt(a)
	hdr.SetWord(stringLengthWord, uint64(len(b)))
	hdr.SetWord(stringHashWord, 0)
	copy(hdr.page().Bytes(hdr.Payload().Add(16), int64(len(b))), b)
	return a, true
}

// NewCons allocates a cons string representing left+right without
// copying their bytes.
func (hp *Heap) NewCons(left, right Value) (Address, bool) {
	a, ok := hp.Allocate(TagString, StringCons, 32)
	if !ok {
		return 0, false
	}
	hdr := hp.HeaderAt(a)
	hdr.SetWord(stringLengthWord, uint64(hp.StringView(left.Addr()).Length()+hp.StringView(right.Addr()).Length()))
	hdr.SetWord(stringHashWord, 0)
	hdr.SetValue(consLeftWord, left)
	hdr.SetValue(consRightWord, right)
	return a, true
}

func (s StringView) header() Header { return s.h.HeaderAt(s.a) }

// Length returns the flattened length in bytes.
func (s StringView) Length() int64 {
	return int64(s.header().Word(stringLengthWord))
}

// Bytes returns the flattened contents. For a cons string this
// allocates a fresh concatenation (in Go memory, not the Candor
// heap — a read-only view for the runtime's own use).
func (s StringView) Bytes() []byte {
	hdr := s.header()
	if hdr.Repr() == StringFlat {
		return hdr.page().Bytes(hdr.Payload().Add(16), s.Length())
	}
	left := s.h.StringView(hdr.Value(consLeftWord).Addr())
	right := s.h.StringView(hdr.Value(consRightWord).Addr())
	out := make([]byte, 0, s.Length())
	out = append(out, left.Bytes()...)
	out = append(out, right.Bytes()...)
	return out
}

// Hash returns the cached hash of the flattened string, computing and
// caching it on first use.
func (s StringView) Hash() uint64 {
	hdr := s.header()
	if h := hdr.Word(stringHashWord); h != 0 {
		return h
	}
	h := fnv1a64(s.Bytes())
	if h == 0 {
		h = 1 // reserve 0 to mean "uncomputed"
	}
	hdr.SetWord(stringHashWord, h)
	return h
}

// Equal reports whether s and other have identical flattened content.
func (s StringView) Equal(other StringView) bool {
	if s.Length() != other.Length() {
		return false
	}
	if s.Hash() != other.Hash() {
		return false
	}
	sb, ob := s.Bytes(), other.Bytes()
	for i := range sb {
		if sb[i] != ob[i] {
			return false
		}
	}
	return true
}

func (s StringView) String() string {
	return string(s.Bytes())
}
