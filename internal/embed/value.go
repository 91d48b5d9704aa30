// Copyright 2012, Fedor Indutny.

package embed

import (
	"encoding/binary"
	"fmt"

	"github.com/indutny/candor/internal/heap"
)

// Value is an opaque host-facing handle onto one heap.Value, the
// textbook embedding-API pattern: the host never sees a raw tagged
// word, only this wrapper and the typed operations below.
type Value struct {
	i *Isolate
	v heap.Value
}

func (v Value) tag() (heap.Tag, bool) {
	if !v.v.IsPointer() {
		return heap.TagNil, false
	}
	return v.i.iso.Heap.HeaderAt(v.v.Addr()).Tag(), true
}

// IsNil reports whether v is the nil Value.
func (v Value) IsNil() bool { return v.v.IsNil() }

// IsBoolean reports whether v is a boxed boolean.
func (v Value) IsBoolean() bool { t, ok := v.tag(); return ok && t == heap.TagBoolean }

// IsNumber reports whether v is a smi or a boxed number.
func (v Value) IsNumber() bool {
	if v.v.IsSmi() {
		return true
	}
	t, ok := v.tag()
	return ok && t == heap.TagNumber
}

// IsString reports whether v is a String.
func (v Value) IsString() bool { t, ok := v.tag(); return ok && t == heap.TagString }

// IsObject reports whether v is a plain Object (Arrays are not
// Objects for this predicate, matching spec.md's distinct Array tag).
func (v Value) IsObject() bool { t, ok := v.tag(); return ok && t == heap.TagObject }

// IsArray reports whether v is an Array.
func (v Value) IsArray() bool { t, ok := v.tag(); return ok && t == heap.TagArray }

// IsFunction reports whether v is a Function (compiled or a native
// binding).
func (v Value) IsFunction() bool { t, ok := v.tag(); return ok && t == heap.TagFunction }

// IsCData reports whether v is a CData buffer.
func (v Value) IsCData() bool { t, ok := v.tag(); return ok && t == heap.TagCData }

// AsBoolean returns v's boolean payload and whether v was actually a
// boolean (a checked cast, as opposed to ToBoolean's coercion).
func (v Value) AsBoolean() (bool, bool) {
	if !v.IsBoolean() {
		return false, false
	}
	return v.i.iso.Heap.BooleanValue(v.v.Addr()), true
}

// AsNumber returns v's numeric payload (smi or boxed) and whether v
// was actually number-shaped.
func (v Value) AsNumber() (float64, bool) {
	if v.v.IsSmi() {
		return float64(v.v.Smi()), true
	}
	if !v.IsNumber() {
		return 0, false
	}
	return v.i.iso.Heap.NumberValue(v.v.Addr()), true
}

// AsString returns v's Go string payload and whether v was actually a
// String.
func (v Value) AsString() (string, bool) {
	if !v.IsString() {
		return "", false
	}
	return v.i.iso.Heap.StringView(v.v.Addr()).String(), true
}

// ToBoolean coerces v by the language's truthiness rule.
func (v Value) ToBoolean() bool { return v.i.iso.Code.Stubs.CoerceToBoolean(v.v) }

// ToString coerces v to its string representation.
func (v Value) ToString() string { return v.i.iso.Code.Stubs.ToString(v.v) }

// ToNumber coerces v to a float64 (NaN for a non-numeric, non-smi
// value that is not unboxable).
func (v Value) ToNumber() float64 { return v.i.iso.Code.Stubs.ToNumber(v.v) }

// --- object operations ---

// Get reads property key from v (Object or Array).
func (v Value) Get(key string) (Value, error) {
	k, err := v.i.iso.Code.Stubs.Intern(key)
	if err != nil {
		return Value{}, err
	}
	if !v.v.IsPointer() {
		return Value{i: v.i, v: heap.Nil}, nil
	}
	r, _ := v.i.iso.Heap.ObjectView(v.v.Addr()).Get(k)
	return Value{i: v.i, v: r}, nil
}

// Set writes property key on v (Object or Array).
func (v Value) Set(key string, val Value) error {
	k, err := v.i.iso.Code.Stubs.Intern(key)
	if err != nil {
		return err
	}
	if !v.v.IsPointer() {
		return fmt.Errorf("embed: Set on a non-object Value")
	}
	_, ok := v.i.iso.Heap.ObjectView(v.v.Addr()).Set(k, val.v)
	if !ok {
		return outOfMemory()
	}
	return nil
}

// Delete removes property key from v.
func (v Value) Delete(key string) bool {
	k, err := v.i.iso.Code.Stubs.Intern(key)
	if err != nil || !v.v.IsPointer() {
		return false
	}
	return v.i.iso.Heap.ObjectView(v.v.Addr()).Delete(k)
}

// HasProperty reports whether v has an own property named key.
func (v Value) HasProperty(key string) bool {
	k, err := v.i.iso.Code.Stubs.Intern(key)
	if err != nil || !v.v.IsPointer() {
		return false
	}
	_, found := v.i.iso.Heap.ObjectView(v.v.Addr()).Get(k)
	return found
}

// Keys returns v's own property keys as an Array Value.
func (v Value) Keys() (Value, error) {
	r, err := v.i.iso.Code.Stubs.Keysof(v.v)
	return Value{i: v.i, v: r}, err
}

// Clone returns a shallow copy of v.
func (v Value) Clone() (Value, error) {
	r, err := v.i.iso.Code.Stubs.CloneObject(v.v)
	return Value{i: v.i, v: r}, err
}

// --- array operations ---

// Push appends val to v (an Array).
func (v Value) Push(val Value) bool {
	if !v.IsArray() {
		return false
	}
	return v.i.iso.Heap.ArrayView(v.v.Addr()).Push(val.v)
}

// SetIndex writes v[idx] (an Array).
func (v Value) SetIndex(idx int64, val Value) bool {
	if !v.IsArray() {
		return false
	}
	return v.i.iso.Heap.ArrayView(v.v.Addr()).SetIndex(idx, val.v)
}

// GetIndex reads v[idx] (an Array).
func (v Value) GetIndex(idx int64) (Value, bool) {
	if !v.IsArray() {
		return Value{i: v.i, v: heap.Nil}, false
	}
	r, ok := v.i.iso.Heap.ArrayView(v.v.Addr()).GetIndex(idx)
	return Value{i: v.i, v: r}, ok
}

// Length returns v's element count (an Array).
func (v Value) Length() int64 {
	if !v.IsArray() {
		return 0
	}
	return v.i.iso.Heap.ArrayView(v.v.Addr()).Length()
}

// --- function operations ---

// Call invokes v (a Function) with args. If context is non-nil it
// overrides whatever SetContext previously installed, which in turn
// overrides the function's own lexical closure — spec.md §6.1's
// Call(context, argc, argv).
func (v Value) Call(context Value, args ...Value) (Value, error) {
	raw := make([]heap.Value, len(args))
	for idx, a := range args {
		raw[idx] = a.v
	}
	r, err := v.i.iso.Code.Invoke(v.v, raw, context.v)
	return Value{i: v.i, v: r}, err
}

// SetContext installs globalObject as the context a future Call with
// a nil context argument runs v under.
func (v Value) SetContext(globalObject Value) error {
	if !v.v.IsPointer() {
		return fmt.Errorf("embed: SetContext on a non-function Value")
	}
	v.i.iso.Heap.FunctionView(v.v.Addr()).SetRoot(globalObject.v)
	return nil
}

// --- CData / CWrapper ---

// CData constructs a raw byte-buffer Value copying contents.
func (i *Isolate) CData(contents []byte) (Value, error) {
	a, ok := i.iso.Heap.NewCData(contents)
	if !ok {
		return Value{}, outOfMemory()
	}
	return Value{i: i, v: heap.PointerValue(a)}, nil
}

// GetContents returns up to size bytes of a CData Value's buffer (the
// whole buffer if size <= 0).
func (v Value) GetContents(size int64) ([]byte, bool) {
	if !v.IsCData() {
		return nil, false
	}
	return v.i.iso.Heap.CDataContents(v.v.Addr(), size), true
}

// cwrapperHeader is the fixed prefix every CWrapper-pattern CData
// buffer carries: a host-chosen class tag, then the id this package
// uses to look the wrapped Go value back up in Isolate.wrapped. A
// moving GC can relocate and copy the buffer's bytes freely; neither
// field depends on the buffer's address, only a plain Go-side map
// keyed by id, the idiomatic substitute for storing an unsafe.Pointer
// inside heap-managed, collector-relocated memory.
const cwrapperHeaderSize = 12

// Wrap stores obj (an arbitrary host-side value) in a CData Value
// tagged with magic, retrievable later via HasClass/Unwrap — the
// CWrapper pattern from spec.md §6.1, grounded on the original's
// `CWrapper` template wrapping a native pointer behind a magic-tagged
// CData.
func (i *Isolate) Wrap(magic uint32, obj interface{}) (Value, error) {
	id := i.nextWrapID
	i.nextWrapID++
	i.wrapped[id] = obj

	buf := make([]byte, cwrapperHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], magic)
	binary.LittleEndian.PutUint64(buf[4:12], id)
	return i.CData(buf)
}

// HasClass reports whether v is a CWrapper-pattern CData tagged with
// magic.
func (v Value) HasClass(magic uint32) bool {
	b, ok := v.GetContents(cwrapperHeaderSize)
	if !ok || len(b) < cwrapperHeaderSize {
		return false
	}
	return binary.LittleEndian.Uint32(b[0:4]) == magic
}

// Unwrap retrieves the Go value Isolate.Wrap stored in v, regardless
// of its magic tag; callers that care about the tag should check
// HasClass first.
func (v Value) Unwrap() (interface{}, bool) {
	b, ok := v.GetContents(cwrapperHeaderSize)
	if !ok || len(b) < cwrapperHeaderSize {
		return nil, false
	}
	id := binary.LittleEndian.Uint64(b[4:12])
	obj, ok := v.i.wrapped[id]
	return obj, ok
}
