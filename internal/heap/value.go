// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package heap implements Candor's managed heap: tagged values, the
// bump-allocated new/old spaces, and the on-heap object layout that the
// garbage collector and the rest of the runtime trace and mutate.
package heap

import "fmt"

// A Value is a single Candor runtime word: either an unboxed small
// integer or a tagged pointer into a Page's backing storage. It plays
// the same role for this package that core.Address plays for an
// inferior process in the debugger this runtime is modeled on — a raw
// word with narrow, typed accessor methods layered on top.
type Value uintptr

// Nil is the zero word, a distinct value of its own kind.
const Nil Value = 0

// IsSmi reports whether v is an unboxed small integer.
func (v Value) IsSmi() bool {
	return v&1 == 1
}

// Smi returns the integer payload of a small integer value.
func (v Value) Smi() int64 {
	return int64(v) >> 1
}

// SmiValue tags i as an unboxed small integer.
func SmiValue(i int64) Value {
	return Value(i<<1) | 1
}

// IsNil reports whether v is the designated nil value.
func (v Value) IsNil() bool {
	return v == Nil
}

// IsPointer reports whether v is a tagged pointer to a heap object.
func (v Value) IsPointer() bool {
	return v != Nil && v&1 == 0
}

// Addr returns the address a pointer value refers to. Panics if v is
// not a pointer.
func (v Value) Addr() Address {
	if !v.IsPointer() {
		panic(fmt.Sprintf("heap: %v is not a pointer value", v))
	}
	return Address(v)
}

// PointerValue tags an address as a heap pointer value.
func PointerValue(a Address) Value {
	if a&1 != 0 {
		panic("heap: misaligned object address")
	}
	return Value(a)
}

func (v Value) String() string {
	switch {
	case v.IsNil():
		return "nil"
	case v.IsSmi():
		return fmt.Sprintf("smi(%d)", v.Smi())
	default:
		return fmt.Sprintf("ptr(0x%x)", uintptr(v))
	}
}

// Tag identifies the runtime representation of a heap object. The GC
// dispatches tracing on this byte; the rest of the runtime dispatches
// behavior on it.
type Tag byte

const (
	TagNil Tag = iota
	TagBoolean
	TagNumber
	TagString
	TagObject
	TagArray
	TagFunction
	TagContext
	TagMap
	TagCData
)

func (t Tag) String() string {
	switch t {
	case TagNil:
		return "nil"
	case TagBoolean:
		return "boolean"
	case TagNumber:
		return "number"
	case TagString:
		return "string"
	case TagObject:
		return "object"
	case TagArray:
		return "array"
	case TagFunction:
		return "function"
	case TagContext:
		return "context"
	case TagMap:
		return "map"
	case TagCData:
		return "cdata"
	default:
		return fmt.Sprintf("tag(%d)", byte(t))
	}
}

// StringRepr distinguishes the two String payload shapes.
type StringRepr byte

const (
	StringFlat StringRepr = iota
	StringCons
)

// kDenseLengthMax is the largest Array length treated as dense. Every
// index, dense or not, is found by probing the Array's Map; a dense
// array differs only in reading an unassigned index below its length
// as a present nil.
// Carried over from the original source's HArray::kDenseLengthMax.
const kDenseLengthMax = 100

// kPointerSize is the machine word size this runtime targets.
const kPointerSize = 8
