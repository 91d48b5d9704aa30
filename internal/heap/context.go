// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heap

// Context payload layout: word 0 = parent (Value, Nil at the
// outermost function), word 1 = slot count, word 2.. = slot words.
// Closures reach outer-scope variables by walking parent pointers
// `depth` times then indexing.
const (
	ctxParentWord = 0
	ctxCountWord  = 1
	ctxSlotsBase  = 2
)

type ContextView struct {
	h *Heap
	a Address
}

func (hp *Heap) ContextView(a Address) ContextView { return ContextView{hp, a} }

// NewContext allocates a context with n slots, all initialized nil.
func (hp *Heap) NewContext(parent Value, n int) (Address, bool) {
	a, ok := hp.Allocate(TagContext, 0, 16+8*int64(n))
	if !ok {
		return 0, false
	}
	hdr := hp.HeaderAt(a)
	hdr.SetValue(ctxParentWord, parent)
	hdr.SetWord(ctxCountWord, uint64(n))
	for i := 0; i < n; i++ {
		hdr.SetValue(ctxSlotsBase+i, Nil)
	}
	return a, true
}

func (c ContextView) header() Header { return c.h.HeaderAt(c.a) }

func (c ContextView) Parent() Value { return c.header().Value(ctxParentWord) }
func (c ContextView) Count() int    { return int(c.header().Word(ctxCountWord)) }

func (c ContextView) Slot(i int) Value     { return c.header().Value(ctxSlotsBase + i) }
func (c ContextView) SetSlot(i int, v Value) { c.header().SetValue(ctxSlotsBase+i, v) }

// At walks depth parent links from c and returns the context found,
// matching the scope analyzer's (kind=context, depth, index)
// addressing for a captured variable.
func (c ContextView) At(depth int) ContextView {
	cur := c
	for d := 0; d < depth; d++ {
		cur = c.h.ContextView(cur.Parent().Addr())
	}
	return cur
}
