// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heap

import "math"

// NewNumber boxes a float64. Only non-integral or out-of-smi-range
// numbers need boxing; codegen.Stubs' boxNumber decides when to box
// versus use a tagged smi.
func (hp *Heap) NewNumber(f float64) (Address, bool) {
	a, ok := hp.Allocate(TagNumber, 0, 8)
	if !ok {
		return 0, false
	}
	hp.HeaderAt(a).SetWord(0, math.Float64bits(f))
	return a, true
}

func (hp *Heap) NumberValue(a Address) float64 {
	return math.Float64frombits(hp.HeaderAt(a).Word(0))
}

// NewBoolean boxes a bool.
func (hp *Heap) NewBoolean(b bool) (Address, bool) {
	a, ok := hp.Allocate(TagBoolean, 0, 8)
	if !ok {
		return 0, false
	}
	var v uint64
	if b {
		v = 1
	}
	hp.HeaderAt(a).SetWord(0, v)
	return a, true
}

func (hp *Heap) BooleanValue(a Address) bool {
	return hp.HeaderAt(a).Word(0) != 0
}

// CData is a raw byte buffer whose lifetime is tied to the Value.
// Payload: word 0 = length, bytes follow.
func (hp *Heap) NewCData(contents []byte) (Address, bool) {
	a, ok := hp.Allocate(TagCData, 0, 8+int64(len(contents)))
	if !ok {
		return 0, false
	}
	hdr := hp.HeaderAt(a)
	hdr.SetWord(0, uint64(len(contents)))
	copy(hdr.page().Bytes(hdr.Payload().Add(8), int64(len(contents))), contents)
	return a, true
}

func (hp *Heap) CDataContents(a Address, size int64) []byte {
	hdr := hp.HeaderAt(a)
	n := int64(hdr.Word(0))
	if size > 0 && size < n {
		n = size
	}
	return hdr.page().Bytes(hdr.Payload().Add(8), n)
}
