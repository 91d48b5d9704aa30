// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package handle implements the host-facing handle and persistent
// reference registry: scoped, strong, and weak indirections onto heap
// Values that the collector treats as additional roots beyond the
// mutator's own frames.
package handle

import "github.com/indutny/candor/internal/heap"

// A Handle is an indirection onto a single heap Value, created within
// a Scope. It stays valid — and is kept alive by the collector —
// until its owning Scope closes, unless Persist or Weaken is called
// first.
type Handle struct {
	slot  *heap.Value
	scope *Scope
	reg   *Registry
}

// Value returns the handle's current (possibly relocated by a
// collection) Value.
func (h *Handle) Value() heap.Value { return *h.slot }

// Set updates the value a handle refers to.
func (h *Handle) Set(v heap.Value) { *h.slot = v }

// Persist promotes h to a process-wide strong reference, unlinking it
// from its scope: it now outlives scope closure and is only released
// by an explicit Release call.
func (h *Handle) Persist() {
	h.scope.remove(h)
	h.scope = nil
	h.reg.persistent = append(h.reg.persistent, h)
}

// Weaken demotes h (which must already be Persist-ed, or is about to
// be removed from its scope) to a weak reference: the collector will
// null it out and invoke cb with its last value if its target does
// not survive a collection. A nil cb is valid; the handle is simply
// cleared on death.
func (h *Handle) Weaken(cb func(heap.Value)) {
	if h.scope != nil {
		h.scope.remove(h)
		h.scope = nil
	} else {
		h.reg.removePersistent(h)
	}
	h.reg.weak = append(h.reg.weak, WeakEntry{H: h, Cb: cb})
}

// Release drops a persistent or weak handle entirely. Handles that
// still belong to an open Scope are released automatically when the
// scope closes and do not need this call.
func (h *Handle) Release() {
	h.reg.removePersistent(h)
	h.reg.removeWeak(h)
}

// WeakEntry is one live weak handle, exposed so the isolate glue layer
// can hand the registry's roots to the collector (package gc) without
// this package needing to depend on gc itself.
type WeakEntry struct {
	H  *Handle
	Cb func(heap.Value)
}

// Slot returns the handle's backing slot.
func (e WeakEntry) Slot() *heap.Value { return e.H.slot }

// Callback returns the death callback, which may be nil.
func (e WeakEntry) Callback() func(heap.Value) { return e.Cb }

// A Scope is a LIFO frame of Handles: entering pushes a frame, every
// handle constructed within adds itself to it, and exiting pops the
// frame and dereferences every handle still owned by it.
type Scope struct {
	reg     *Registry
	handles []*Handle
	closed  bool
}

// New creates a Handle for v within the scope.
func (s *Scope) New(v heap.Value) *Handle {
	if s.closed {
		panic("handle: New called on a closed Scope")
	}
	slot := new(heap.Value)
	*slot = v
	h := &Handle{slot: slot, scope: s, reg: s.reg}
	s.handles = append(s.handles, h)
	return h
}

// Close pops the scope, invalidating every Handle still owned by it
// that was not Persist-ed or Weaken-ed away first.
func (s *Scope) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.reg.closeScope(s)
}

func (s *Scope) remove(h *Handle) {
	for i, hh := range s.handles {
		if hh == h {
			s.handles = append(s.handles[:i], s.handles[i+1:]...)
			return
		}
	}
}

// Registry is the process-wide table of persistent and weak handles,
// plus the stack of currently-open Scopes. It implements the two
// non-stack root sources the collector scans: persistent handles are
// strong entries, weak handles are processed last.
type Registry struct {
	scopes     []*Scope
	persistent []*Handle
	weak       []WeakEntry
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// OpenScope pushes a new handle scope and returns it.
func (r *Registry) OpenScope() *Scope {
	s := &Scope{reg: r}
	r.scopes = append(r.scopes, s)
	return s
}

func (r *Registry) closeScope(s *Scope) {
	for i := len(r.scopes) - 1; i >= 0; i-- {
		if r.scopes[i] == s {
			r.scopes = append(r.scopes[:i], r.scopes[i+1:]...)
			return
		}
	}
}

func (r *Registry) removePersistent(h *Handle) {
	for i, hh := range r.persistent {
		if hh == h {
			r.persistent = append(r.persistent[:i], r.persistent[i+1:]...)
			return
		}
	}
}

func (r *Registry) removeWeak(h *Handle) {
	for i, e := range r.weak {
		if e.H == h {
			r.weak = append(r.weak[:i], r.weak[i+1:]...)
			return
		}
	}
}

// StrongSlots returns the slots of every live strong handle: every
// handle in every currently-open scope, plus every persistent handle.
func (r *Registry) StrongSlots() []*heap.Value {
	var out []*heap.Value
	for _, s := range r.scopes {
		for _, h := range s.handles {
			out = append(out, h.slot)
		}
	}
	for _, h := range r.persistent {
		out = append(out, h.slot)
	}
	return out
}

// WeakEntries returns (slot, callback) for every live weak handle.
func (r *Registry) WeakEntries() []WeakEntry {
	return r.weak
}
