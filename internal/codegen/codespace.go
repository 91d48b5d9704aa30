// Copyright 2012, Fedor Indutny.

// Package codegen owns compiled code's home in memory and its
// execution. A real ahead-of-time compiler for this runtime would
// emit machine code for a concrete architecture (see
// ia32/macroassembler-ia32.cc and x64/macroassembler-x64.cc in the
// original implementation this runtime's design is drawn from); doing
// that convincingly for an arbitrary host architecture is out of
// scope here. Instead each compiled lir.Func is turned into a
// "native op record" — a LIR instruction plus its allocator-assigned
// registers/spill slots, frozen into a Program — and CodeSpace runs a
// fetch-execute loop over that record stream. The executable pages
// this package mmaps are real and guard-paged the way the original's
// CodeSpace page table is, but back bookkeeping (the reservation that
// gives every compiled function a stable, process-unique entry
// address FunctionView.Entry stores) rather than literal instruction
// bytes.
package codegen

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/indutny/candor/internal/gc"
	"github.com/indutny/candor/internal/handle"
	"github.com/indutny/candor/internal/heap"
	"github.com/indutny/candor/internal/lir"
	"github.com/indutny/candor/internal/pic"
	"github.com/indutny/candor/internal/regalloc"
	"github.com/indutny/candor/internal/sourcemap"
)

// codeUnitSize is the nominal number of bytes reserved per compiled
// function, loosely modeled on an average stub's generated code size;
// since no real instructions are written here, the exact figure only
// needs to be large enough that reservations don't collide.
const codeUnitSize = 256

// guardPages is the number of PROT_NONE pages placed on either side
// of each reservation, so an (impossible, since nothing executes
// through these pages for real) stray jump past the end of one
// function's code would fault instead of silently running into the
// next function's.
const guardPages = 1

// codeRegion is one mmap'd, guard-paged reservation of executable
// address space.
type codeRegion struct {
	full []byte // guard | exec | guard
	base uintptr
	size int
}

func newCodeRegion(size int) (*codeRegion, error) {
	ps := unix.Getpagesize()
	pagedSize := ((size + ps - 1) / ps) * ps
	total := pagedSize + 2*guardPages*ps

	mem, err := unix.Mmap(-1, 0, total, unix.PROT_NONE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("codegen: mmap region: %w", err)
	}
	execStart := guardPages * ps
	exec := mem[execStart : execStart+pagedSize]
	if err := unix.Mprotect(exec, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		unix.Munmap(mem)
		return nil, fmt.Errorf("codegen: mprotect exec: %w", err)
	}
	return &codeRegion{
		full: mem,
		base: uintptrOf(exec),
		size: pagedSize,
	}, nil
}

func (r *codeRegion) free() error { return unix.Munmap(r.full) }

// compiled is one Func's frozen, executable form.
type compiled struct {
	fn    *lir.Func
	alloc *regalloc.Result
	src   *sourcemap.Map
	sites map[*lir.Instr]*pic.Site
	base  uintptr
}

// CodeSpace owns every compiled function's reservation and the
// runtime stub table functions are executed against.
type CodeSpace struct {
	Stubs *Stubs

	regions  []*codeRegion
	byEntry  map[uint64]*compiled
	byFunc   map[*lir.Func]*compiled
	nextFunc uint64

	active *call // the call stack currently executing, if any
}

// NewCodeSpace wires a CodeSpace against a heap, a collector and a
// handle registry — exactly the triple every stub in STUBS_LIST needs
// (allocation, collection, and the host-visible handle lifetime).
func NewCodeSpace(hp *heap.Heap, collector *gc.Collector, handles *handle.Registry) *CodeSpace {
	cs := &CodeSpace{
		byEntry: make(map[uint64]*compiled),
		byFunc:  make(map[*lir.Func]*compiled),
	}
	cs.Stubs = newStubs(hp, collector, handles, cs)
	return cs
}

// CompileProgram allocates registers for, and reserves executable
// entries for, every Func in p (the top-level implicit function and
// every nested function literal), resolving AllocateFunction
// references between them. Returns the top-level Func's entry.
func (cs *CodeSpace) CompileProgram(p *lir.Program, filename, source string) (uint64, error) {
	all := append([]*lir.Func{p.Top}, p.Functions...)
	for _, fn := range all {
		if _, err := cs.compile(fn, filename, source); err != nil {
			return 0, err
		}
	}
	top := cs.byFunc[p.Top]
	return uint64(top.base), nil
}

func (cs *CodeSpace) compile(fn *lir.Func, filename, source string) (*compiled, error) {
	if c, ok := cs.byFunc[fn]; ok {
		return c, nil
	}
	alloc := regalloc.Allocate(fn)

	region, err := newCodeRegion(codeUnitSize)
	if err != nil {
		return nil, err
	}
	cs.regions = append(cs.regions, region)

	src := sourcemap.New()
	jitOffset := uint32(0)
	for _, blk := range fn.Blocks {
		for _, in := range blk.Instrs {
			if in.Result != nil && in.Result.HIR != nil {
				src.Push(jitOffset, uint32(in.Result.HIR.Pos))
			}
			jitOffset++
		}
	}
	src.Commit(filename, source, region.base)

	c := &compiled{
		fn:    fn,
		alloc: alloc,
		src:   src,
		sites: make(map[*lir.Instr]*pic.Site),
		base:  region.base,
	}
	cs.byFunc[fn] = c
	cs.byEntry[uint64(region.base)] = c
	return c, nil
}

// entryFor returns the already-compiled entry address for fn, used by
// AllocateFunction when wiring a closure to its compiled body.
func (cs *CodeSpace) entryFor(fn *lir.Func) (uint64, bool) {
	c, ok := cs.byFunc[fn]
	if !ok {
		return 0, false
	}
	return uint64(c.base), true
}

// Close releases every reserved code region.
func (cs *CodeSpace) Close() error {
	var first error
	for _, r := range cs.regions {
		if err := r.free(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Frame returns a disassembly/diagnostics-facing line describing the
// source position nearest pc.
func (cs *CodeSpace) Frame(pc uintptr) (string, bool) {
	for _, c := range cs.byEntry {
		if e, ok := c.src.Get(pc); ok {
			return e.String(), true
		}
	}
	return "", false
}
