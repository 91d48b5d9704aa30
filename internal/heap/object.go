// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heap

// Object header layout (16 bytes, word-aligned):
//
//	offset 0: tag byte, repr byte, 6 bytes padding
//	offset 8: forwarding word — low bit 1 means "already copied by the
//	          collector currently in progress"; when set, the address
//	          with that bit cleared is the forwarding address. Object
//	          addresses are always 8-byte aligned so their low bit is
//	          naturally free, the same trick Value uses to distinguish
//	          small integers from pointers.
//	offset 16: type-specific payload begins.
//
// The low bit works as well as a high bit would for marking a
// forwarded object — what matters is that the bit is otherwise always
// zero on a live address — and it reuses the same tagged-word trick
// the rest of this runtime relies on throughout.
const headerSize = 16

// Header is a narrow, unsafe-scoped typed view over an object's
// header words.
type Header struct {
	h *Heap
	a Address
}

// HeaderAt returns a view over the header at a.
func (hp *Heap) HeaderAt(a Address) Header {
	return Header{hp, a}
}

func (h Header) page() *Page {
	p := h.h.pageFor(h.a)
	if p == nil {
		panic("heap: address not owned by either space")
	}
	return p
}

// Tag returns the object's type tag.
func (h Header) Tag() Tag {
	return Tag(h.page().ReadByte(h.a))
}

// SetTag stores the object's type tag.
func (h Header) SetTag(t Tag) {
	h.page().WriteByte(h.a, byte(t))
}

// Repr returns the representation discriminator (meaningful for
// TagString only).
func (h Header) Repr() StringRepr {
	return StringRepr(h.page().ReadByte(h.a.Add(1)))
}

// SetRepr stores the representation discriminator.
func (h Header) SetRepr(r StringRepr) {
	h.page().WriteByte(h.a.Add(1), byte(r))
}

// Forwarded reports whether the collector has already copied this
// object during the collection in progress.
func (h Header) Forwarded() bool {
	return h.page().ReadWord(h.a.Add(8))&1 == 1
}

// ForwardAddr returns the address this object was copied to. Valid
// only when Forwarded is true.
func (h Header) ForwardAddr() Address {
	return Address(h.page().ReadWord(h.a.Add(8)) &^ 1)
}

// SetForward marks this (old) header as forwarded to dest.
func (h Header) SetForward(dest Address) {
	h.page().WriteWord(h.a.Add(8), uint64(dest)|1)
}

// ClearForward resets the forwarding word, used when reusing a page
// for fresh allocations after a cycle completes.
func (h Header) ClearForward() {
	h.page().WriteWord(h.a.Add(8), 0)
}

// Payload returns the address of the first payload word, immediately
// following the header.
func (h Header) Payload() Address {
	return h.a.Add(headerSize)
}

// Word reads the i'th payload word (0-indexed).
func (h Header) Word(i int) uint64 {
	return h.page().ReadWord(h.Payload().Add(int64(i) * 8))
}

// SetWord writes the i'th payload word.
func (h Header) SetWord(i int, v uint64) {
	h.page().WriteWord(h.Payload().Add(int64(i)*8), v)
}

// Value reads the i'th payload word as a tagged Value.
func (h Header) Value(i int) Value {
	return Value(h.Word(i))
}

// SetValue writes the i'th payload word as a tagged Value.
func (h Header) SetValue(i int, v Value) {
	h.SetWord(i, uint64(v))
}
