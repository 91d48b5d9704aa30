// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heap

// ObjectSize returns the total number of bytes (header + payload)
// occupied by the object at a, used by the collector to raw-copy an
// object without needing tag-specific knowledge of its own.
func (hp *Heap) ObjectSize(a Address) int64 {
	hdr := hp.HeaderAt(a)
	switch hdr.Tag() {
	case TagNil:
		return headerSize
	case TagBoolean, TagNumber:
		return headerSize + 8
	case TagString:
		if hdr.Repr() == StringCons {
			return headerSize + 32
		}
		return headerSize + 16 + hdr.Word(stringLengthWord)
	case TagObject:
		return headerSize + 16
	case TagArray:
		return headerSize + 24
	case TagFunction:
		return headerSize + 32
	case TagContext:
		return headerSize + 16 + 8*hdr.Word(ctxCountWord)
	case TagMap:
		cap := int64(hdr.Word(mapCapacityWord))
		return headerSize + 16 + 16*cap
	case TagCData:
		return headerSize + 8 + int64(hdr.Word(0))
	default:
		panic("heap: unknown tag in ObjectSize")
	}
}

// CopyRaw bump-allocates size bytes in dst and copies a's bytes into
// it verbatim — including any pointer-valued payload words, which are
// fixed up later as the collector traces each word's referent. It
// does not touch a itself; callers set the forwarding word on a
// separately once the copy is made.
func (hp *Heap) CopyRaw(dst *Space, a Address, size int64) (Address, bool) {
	na, ok := dst.Allocate(size)
	if !ok {
		return 0, false
	}
	src := hp.pageFor(a)
	dstPage := dst.pageFor(na)
	copy(dstPage.Bytes(na, size), src.Bytes(a, size))
	return na, true
}

// SwapNew installs temp as the heap's new space, freeing the pages of
// the space it replaces.
func (hp *Heap) SwapNew(temp *Space) {
	hp.New.Reset()
	hp.New = temp
}

// SwapOld installs temp as the heap's old space, freeing the pages of
// the space it replaces.
func (hp *Heap) SwapOld(temp *Space) {
	hp.Old.Reset()
	hp.Old = temp
}
