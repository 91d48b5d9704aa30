// Copyright 2012, Fedor Indutny.

package codegen

import (
	"fmt"

	"github.com/indutny/candor/internal/heap"
	"github.com/indutny/candor/internal/hir"
	"github.com/indutny/candor/internal/lir"
	"github.com/indutny/candor/internal/pic"
	"github.com/indutny/candor/internal/regalloc"
)

// frame is one live activation, kept on an explicit Go slice (the
// interpreter's call stack) so StackTrace and a GC pass mid-call can
// walk every live value without depending on the host's own native
// call stack. regs/spill are indexed exactly the way
// internal/regalloc.Allocate assigned every lir.Virtual in this
// function — the allocator's decision is what placement a value
// actually lives at here, not just advisory metadata.
type frame struct {
	c     *compiled
	regs  [regalloc.RegisterCount]heap.Value
	spill []heap.Value
	ctx   heap.Value
	pc    uintptr // entry address, for Frame/StackTrace lookups
}

// call is the interpreter's call stack, exported on CodeSpace so
// CollectGarbage can be offered every live frame as extra roots.
type call struct {
	frames []*frame
}

// Execute runs the compiled function at entry with args and parent
// context parentCtx (Nil for the top-level program), returning its
// Return value. The call stack it builds is tracked on cs.active for
// the duration of the call, so a native binding invoked mid-execution
// can still ask for StackTrace.
func (cs *CodeSpace) Execute(entry uint64, args []heap.Value, parentCtx heap.Value) (heap.Value, error) {
	st := &call{}
	prev := cs.active
	cs.active = st
	defer func() { cs.active = prev }()
	return cs.run(st, entry, args, parentCtx)
}

// StackTrace builds the frame-description array for the call
// currently in progress (as Execute or a nested compiled call left
// it), for use from a native binding callback. Returns an empty Array
// when no call is in progress.
func (cs *CodeSpace) StackTrace() (heap.Value, error) {
	if cs.active == nil {
		a, ok := cs.Stubs.hp.NewArray()
		if !ok {
			return heap.Nil, cs.Stubs.outOfMemory()
		}
		return heap.PointerValue(a), nil
	}
	return cs.buildStackTrace(cs.active)
}

func (cs *CodeSpace) run(st *call, entry uint64, args []heap.Value, parentCtx heap.Value) (heap.Value, error) {
	c, ok := cs.byEntry[entry]
	if !ok {
		return heap.Nil, fmt.Errorf("codegen: no compiled function at entry 0x%x", entry)
	}

	// Every activation gets its own Context, even one declaring zero
	// slots of its own: VarRef.Depth counts function-nesting levels to
	// walk, so the parent chain's length must track real call nesting
	// exactly, independent of how many slots any one level owns.
	fr := &frame{c: c, pc: c.base, spill: make([]heap.Value, c.alloc.SpillSlots)}
	ctxAddr, okc := cs.Stubs.hp.NewContext(parentCtx, c.fn.ContextSlots)
	if !okc {
		cs.Stubs.CollectGarbage(st.roots())
		ctxAddr, okc = cs.Stubs.hp.NewContext(parentCtx, c.fn.ContextSlots)
		if !okc {
			return heap.Nil, cs.Stubs.outOfMemory()
		}
	}
	fr.ctx = heap.PointerValue(ctxAddr)

	st.frames = append(st.frames, fr)
	defer func() { st.frames = st.frames[:len(st.frames)-1] }()

	get := func(u *lir.Use) heap.Value {
		if u == nil || u.Value == nil {
			return heap.Nil
		}
		if u.Value.HasReg {
			return fr.regs[u.Value.Reg]
		}
		return fr.spill[u.Value.Spill]
	}
	set := func(v *lir.Virtual, val heap.Value) {
		if v == nil {
			return
		}
		if v.HasReg {
			fr.regs[v.Reg] = val
		} else {
			fr.spill[v.Spill] = val
		}
	}

	blk := c.fn.Entry
	for blk != nil {
		for _, in := range blk.Instrs {
			v, err := cs.step(st, fr, c, in, get, set, args)
			if err != nil {
				return heap.Nil, err
			}
			set(in.Result, v)
		}
		if blk.Gap != nil {
			moves := make([]heap.Value, len(blk.Gap.Moves))
			for i, mv := range blk.Gap.Moves {
				moves[i] = get(mv.From)
			}
			for i, mv := range blk.Gap.Moves {
				set(mv.To.Value, moves[i])
			}
		}
		if blk.Term == nil {
			break
		}
		switch blk.Term.Op {
		case lir.OpReturn:
			if len(blk.Term.Inputs) > 0 {
				return get(blk.Term.Inputs[0]), nil
			}
			return heap.Nil, nil
		case lir.OpGoto:
			blk = onlySucc(blk)
		case lir.OpBranch:
			cond := get(blk.Term.Inputs[0])
			blk = branchSucc(blk, cs.Stubs.CoerceToBoolean(cond))
		default:
			return heap.Nil, fmt.Errorf("codegen: unhandled terminator %s", blk.Term.Op)
		}
	}
	return heap.Nil, nil
}

// onlySucc returns a Goto block's single successor.
func onlySucc(b *lir.Block) *lir.Block {
	if len(b.Succs) == 0 {
		return nil
	}
	return b.Succs[0]
}

// branchSucc returns an If block's then/else successor. hir's if/else
// and while-loop builders always add the taken-when-true successor
// first, the taken-when-false successor second.
func branchSucc(b *lir.Block, cond bool) *lir.Block {
	if len(b.Succs) == 0 {
		return nil
	}
	if cond || len(b.Succs) == 1 {
		return b.Succs[0]
	}
	return b.Succs[1]
}

func (st *call) roots() []*heap.Value {
	var out []*heap.Value
	for _, fr := range st.frames {
		for i := range fr.regs {
			out = append(out, &fr.regs[i])
		}
		for i := range fr.spill {
			out = append(out, &fr.spill[i])
		}
		out = append(out, &fr.ctx)
	}
	return out
}

func (cs *CodeSpace) step(
	st *call,
	fr *frame,
	c *compiled,
	in *lir.Instr,
	get func(*lir.Use) heap.Value,
	set func(*lir.Virtual, heap.Value),
	args []heap.Value,
) (heap.Value, error) {
	s := cs.Stubs
	switch in.Op {
	case lir.OpEntry, lir.OpLabel, lir.OpGap:
		return heap.Nil, nil
	case lir.OpNil:
		return heap.Nil, nil
	case lir.OpLiteral:
		return s.literal(in.Aux)
	case lir.OpLoadArg:
		idx := in.Aux.(int)
		if idx < len(args) {
			return args[idx], nil
		}
		return heap.Nil, nil
	case lir.OpLoadVarArg:
		arr, ok := s.hp.NewArray()
		if !ok {
			return heap.Nil, s.outOfMemory()
		}
		av := s.hp.ArrayView(arr)
		if idx, ok := in.Aux.(int); ok && idx < len(args) {
			for _, a := range args[idx:] {
				av.Push(a)
			}
		}
		return heap.PointerValue(arr), nil
	case lir.OpLoadContext:
		return s.loadRef(fr, in.Aux)
	case lir.OpStoreContext:
		v := get(in.Inputs[0])
		if err := s.storeRef(fr, in.Aux, v); err != nil {
			return heap.Nil, err
		}
		return v, nil
	case lir.OpAllocateObject:
		a, ok := s.hp.NewObject()
		if !ok {
			return heap.Nil, s.outOfMemory()
		}
		return heap.PointerValue(a), nil
	case lir.OpAllocateArray:
		a, ok := s.hp.NewArray()
		if !ok {
			return heap.Nil, s.outOfMemory()
		}
		return heap.PointerValue(a), nil
	case lir.OpAllocateFunction:
		lf := in.Aux.(*lir.Func)
		entry, ok := cs.entryFor(lf)
		if !ok {
			return heap.Nil, fmt.Errorf("codegen: function literal compiled out of order")
		}
		a, ok := s.hp.NewFunction(fr.ctx, entry, fr.ctx, lf.Argc)
		if !ok {
			return heap.Nil, s.outOfMemory()
		}
		return heap.PointerValue(a), nil
	case lir.OpLoadProperty:
		return cs.loadProperty(c, in, get(in.Inputs[0]), get(in.Inputs[1]))
	case lir.OpStoreProperty:
		return cs.storeProperty(c, in, get(in.Inputs[0]), get(in.Inputs[1]), get(in.Inputs[2]))
	case lir.OpDeleteProperty:
		obj := get(in.Inputs[0])
		key := get(in.Inputs[1])
		if obj.IsPointer() {
			s.hp.ObjectView(obj.Addr()).Delete(key)
		}
		return heap.Nil, nil
	case lir.OpBinOp:
		return s.BinOp(in.Aux.(string), get(in.Inputs[0]), get(in.Inputs[1]))
	case lir.OpNot:
		return s.boxBool(!s.CoerceToBoolean(get(in.Inputs[0])))
	case lir.OpTypeof:
		return s.Typeof(get(in.Inputs[0]))
	case lir.OpSizeof:
		return s.Sizeof(get(in.Inputs[0]))
	case lir.OpKeysof:
		return s.Keysof(get(in.Inputs[0]))
	case lir.OpClone:
		return s.CloneObject(get(in.Inputs[0]))
	case lir.OpCall:
		vals := make([]heap.Value, len(in.Inputs))
		for i, u := range in.Inputs {
			vals[i] = get(u)
		}
		return cs.call(st, vals[0], vals[1:])
	case lir.OpPhi:
		return heap.Nil, nil // resolved entirely via predecessor Gap moves
	case lir.OpCollectGarbage:
		s.CollectGarbage(st.roots())
		return heap.Nil, nil
	case lir.OpGetStackTrace:
		return s.buildStackTrace(st)
	default:
		return heap.Nil, fmt.Errorf("codegen: unhandled LIR op %s", in.Op)
	}
}

func (s *Stubs) literal(aux interface{}) (heap.Value, error) {
	switch v := aux.(type) {
	case float64:
		return s.boxNumber(v)
	case string:
		return s.Intern(v)
	case bool:
		return s.boxBool(v)
	default:
		return heap.Nil, nil
	}
}

// loadRef resolves an OpLoadContext/OpStoreContext's Aux, which
// lir.Build carries through unchanged from hir.OpLoad/OpStore: a
// hir.VarRef{Index, Depth}.
func (s *Stubs) loadRef(fr *frame, aux interface{}) (heap.Value, error) {
	ref := asVarRef(aux)
	if ref.Depth == -1 {
		g, err := s.Global()
		if err != nil {
			return heap.Nil, err
		}
		name, err := s.GlobalName(ref.Index)
		if err != nil {
			return heap.Nil, err
		}
		v, _ := s.hp.ObjectView(g.Addr()).Get(name)
		return v, nil
	}
	ctx := s.hp.ContextView(fr.ctx.Addr()).At(ref.Depth)
	return ctx.Slot(ref.Index), nil
}

func (s *Stubs) storeRef(fr *frame, aux interface{}, v heap.Value) error {
	ref := asVarRef(aux)
	if ref.Depth == -1 {
		g, err := s.Global()
		if err != nil {
			return err
		}
		name, err := s.GlobalName(ref.Index)
		if err != nil {
			return err
		}
		_, ok := s.hp.ObjectView(g.Addr()).Set(name, v)
		if !ok {
			return s.outOfMemory()
		}
		return nil
	}
	ctx := s.hp.ContextView(fr.ctx.Addr()).At(ref.Depth)
	ctx.SetSlot(ref.Index, v)
	return nil
}

func asVarRef(aux interface{}) hir.VarRef {
	if v, ok := aux.(hir.VarRef); ok {
		return v
	}
	return hir.VarRef{Depth: -1}
}

func (cs *CodeSpace) loadProperty(c *compiled, in *lir.Instr, obj, key heap.Value) (heap.Value, error) {
	s := cs.Stubs
	if !obj.IsPointer() {
		return heap.Nil, nil
	}
	tag := s.hp.HeaderAt(obj.Addr()).Tag()
	if tag == heap.TagArray && key.IsSmi() {
		v, _ := s.hp.ArrayView(obj.Addr()).GetIndex(key.Smi())
		return v, nil
	}
	if tag != heap.TagObject && tag != heap.TagArray {
		return heap.Nil, nil
	}
	ov := s.hp.ObjectView(obj.Addr())
	site := c.siteFor(in)
	if idx, ok := site.Lookup(ov); ok {
		return ov.Map().ValueAt(idx), nil
	}
	v, found := ov.Get(key)
	if found {
		if idx, ok := ov.Map().Find(key); ok {
			site.Record(ov, idx)
		}
	}
	return v, nil
}

func (cs *CodeSpace) storeProperty(c *compiled, in *lir.Instr, obj, key, val heap.Value) (heap.Value, error) {
	s := cs.Stubs
	if !obj.IsPointer() {
		return val, nil
	}
	tag := s.hp.HeaderAt(obj.Addr()).Tag()
	if tag == heap.TagArray && key.IsSmi() {
		s.hp.ArrayView(obj.Addr()).SetIndex(key.Smi(), val)
		return val, nil
	}
	if tag != heap.TagObject && tag != heap.TagArray {
		return val, nil
	}
	ov := s.hp.ObjectView(obj.Addr())
	grew, ok := ov.Set(key, val)
	if !ok {
		return heap.Nil, s.outOfMemory()
	}
	if grew {
		c.siteFor(in).Reset()
	}
	return val, nil
}

func (c *compiled) siteFor(in *lir.Instr) *pic.Site {
	site, ok := c.sites[in]
	if !ok {
		site = pic.New()
		c.sites[in] = site
	}
	return site
}

func (cs *CodeSpace) call(st *call, callee heap.Value, args []heap.Value) (heap.Value, error) {
	if !callee.IsPointer() || cs.Stubs.hp.HeaderAt(callee.Addr()).Tag() != heap.TagFunction {
		return heap.Nil, nil // calling a non-function yields nil
	}
	fv := cs.Stubs.hp.FunctionView(callee.Addr())
	if fv.IsBinding() {
		return cs.Stubs.CallBinding(fv.Entry(), args)
	}
	return cs.run(st, fv.Entry(), args, fv.Parent())
}

// Invoke calls callee as a fresh top-level activation (not a nested
// call from another compiled function), the entry point the
// embedding bridge's Function.Call uses. ctxOverride, when non-nil,
// takes precedence over a prior SetContext (FunctionView.Root) which
// in turn takes precedence over the function's own lexical Parent —
// mirroring spec.md §6.1's Call(context, argc, argv) /
// SetContext(global_object) pair.
func (cs *CodeSpace) Invoke(callee heap.Value, args []heap.Value, ctxOverride heap.Value) (heap.Value, error) {
	if !callee.IsPointer() || cs.Stubs.hp.HeaderAt(callee.Addr()).Tag() != heap.TagFunction {
		return heap.Nil, fmt.Errorf("codegen: call target is not a function")
	}
	fv := cs.Stubs.hp.FunctionView(callee.Addr())
	if fv.IsBinding() {
		return cs.Stubs.CallBinding(fv.Entry(), args)
	}
	parent := fv.Parent()
	if !ctxOverride.IsNil() {
		parent = ctxOverride
	} else if !fv.Root().IsNil() {
		parent = fv.Root()
	}
	return cs.Execute(fv.Entry(), args, parent)
}

func (cs *CodeSpace) buildStackTrace(st *call) (heap.Value, error) {
	arr, ok := cs.Stubs.hp.NewArray()
	if !ok {
		return heap.Nil, cs.Stubs.outOfMemory()
	}
	av := cs.Stubs.hp.ArrayView(arr)
	for i := len(st.frames) - 1; i >= 0; i-- {
		line, err := cs.Stubs.Intern(cs.frameLabel(st.frames[i]))
		if err != nil {
			return heap.Nil, err
		}
		av.Push(line)
	}
	return heap.PointerValue(arr), nil
}

func (cs *CodeSpace) frameLabel(fr *frame) string {
	if e, ok := fr.c.src.Get(fr.pc); ok {
		return e.String()
	}
	return fr.c.fn.Name
}
