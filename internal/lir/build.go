// Copyright 2012, Fedor Indutny.

package lir

import "github.com/indutny/candor/internal/hir"

// Build linearizes an entire HIR program into LIR.
func Build(p *hir.Program) *Program {
	out := &Program{}
	funcMap := make(map[*hir.Func]*Func)

	stub := func(hf *hir.Func) *Func {
		return &Func{
			Name:         hf.Name,
			StackSlots:   hf.StackSlots,
			ContextSlots: hf.ContextSlots,
			Argc:         hf.Argc,
			Variadic:     hf.Variadic,
		}
	}
	out.Top = stub(p.Top)
	funcMap[p.Top] = out.Top
	for _, hf := range p.Functions {
		lf := stub(hf)
		funcMap[hf] = lf
		out.Functions = append(out.Functions, lf)
	}

	fill(p.Top, out.Top, funcMap)
	for i, hf := range p.Functions {
		fill(hf, out.Functions[i], funcMap)
	}
	return out
}

// mayCall reports whether generating op can invoke a runtime stub or
// otherwise reach a GC safepoint. The result is recorded in
// Instr.HasCall; the register allocator does not read it.
func mayCall(op hir.Op) bool {
	switch op {
	case hir.OpEntry, hir.OpReturn, hir.OpLoad, hir.OpStore, hir.OpLoadArg, hir.OpLoadVarArg,
		hir.OpLiteral, hir.OpNil, hir.OpIf, hir.OpGoto, hir.OpPhi:
		return false
	default:
		return true
	}
}

type funcBuilder struct {
	hirToLIR map[*hir.Block]*Block
	hirToVal map[*hir.Instr]*Virtual
	funcMap  map[*hir.Func]*Func
	fn       *Func
	nextV    int
	nextI    int
}

func fill(hf *hir.Func, lf *Func, funcMap map[*hir.Func]*Func) {
	b := &funcBuilder{
		hirToLIR: make(map[*hir.Block]*Block, len(hf.Blocks)),
		hirToVal: make(map[*hir.Instr]*Virtual),
		funcMap:  funcMap,
		fn:       lf,
	}

	for _, hb := range hf.Blocks {
		lb := &Block{ID: hb.ID}
		lb.Label = &Instr{ID: b.nextI, Op: OpLabel, Block: lb}
		b.nextI++
		lf.Blocks = append(lf.Blocks, lb)
		b.hirToLIR[hb] = lb
	}
	lf.Entry = b.hirToLIR[hf.Entry]

	// Pre-assign a Virtual to every value-producing HIR instruction so
	// forward references (a loop back-edge phi argument produced later
	// in program order) resolve without a second pass.
	for _, hb := range hf.Blocks {
		for _, in := range hb.Instrs {
			v := &Virtual{ID: b.nextV, HIR: in}
			b.nextV++
			b.hirToVal[in] = v
			lf.Virtuals = append(lf.Virtuals, v)
		}
	}

	for _, hb := range hf.Blocks {
		lb := b.hirToLIR[hb]
		for i, s := range hb.Succs {
			_ = i
			lb.addSucc(b.hirToLIR[s])
		}
		for _, in := range hb.Instrs {
			b.translate(lb, in)
		}
		b.translateTerm(lb, hb)
	}

	// Resolve phis: for each phi, append a move into each predecessor's
	// Gap copying that predecessor's corresponding argument into the
	// phi's virtual. Argument order follows hir's block.Preds order,
	// which the HIR builder constructs to match each Phi's Args order.
	for _, hb := range hf.Blocks {
		lb := b.hirToLIR[hb]
		for _, in := range hb.Instrs {
			if in.Op != hir.OpPhi {
				continue
			}
			phiVal := b.hirToVal[in]
			for i, arg := range in.Args {
				if i >= len(hb.Preds) {
					break
				}
				predLB := b.hirToLIR[hb.Preds[i]]
				gap := predLB.Gap
				gap.Moves = append(gap.Moves, Move{
					From: &Use{Kind: UseAny, Value: b.hirToVal[arg]},
					To:   &Use{Kind: UseAny, Value: phiVal},
				})
			}
			_ = lb
		}
	}
}

func (b *funcBuilder) use(in *hir.Instr) *Use {
	return &Use{Kind: UseAny, Value: b.hirToVal[in]}
}

func (b *funcBuilder) emit(lb *Block, hirIn *hir.Instr, op Op, aux interface{}, inputs ...*Use) {
	instr := &Instr{
		ID:      b.nextI,
		Op:      op,
		Inputs:  inputs,
		Aux:     aux,
		Block:   lb,
		HasCall: mayCall(hirIn.Op),
	}
	b.nextI++
	if v, ok := b.hirToVal[hirIn]; ok {
		instr.Result = v
	}
	lb.Instrs = append(lb.Instrs, instr)
}

func (b *funcBuilder) translate(lb *Block, in *hir.Instr) {
	switch in.Op {
	case hir.OpEntry:
		b.emit(lb, in, OpEntry, in.Aux)
	case hir.OpLiteral:
		b.emit(lb, in, OpLiteral, in.Aux)
	case hir.OpNil:
		b.emit(lb, in, OpNil, nil)
	case hir.OpLoad:
		b.emit(lb, in, OpLoadContext, in.Aux)
	case hir.OpStore:
		b.emit(lb, in, OpStoreContext, in.Aux, b.use(in.Args[0]))
	case hir.OpLoadArg:
		b.emit(lb, in, OpLoadArg, in.Aux)
	case hir.OpLoadVarArg:
		b.emit(lb, in, OpLoadVarArg, in.Aux)
	case hir.OpAllocateObject:
		b.emit(lb, in, OpAllocateObject, nil)
	case hir.OpAllocateArray:
		b.emit(lb, in, OpAllocateArray, nil)
	case hir.OpAllocateFunction:
		hf, _ := in.Aux.(*hir.Func)
		b.emit(lb, in, OpAllocateFunction, b.funcMap[hf])
	case hir.OpLoadProperty:
		b.emit(lb, in, OpLoadProperty, nil, b.use(in.Args[0]), b.use(in.Args[1]))
	case hir.OpStoreProperty:
		b.emit(lb, in, OpStoreProperty, nil, b.use(in.Args[0]), b.use(in.Args[1]), b.use(in.Args[2]))
	case hir.OpDeleteProperty:
		b.emit(lb, in, OpDeleteProperty, nil, b.use(in.Args[0]), b.use(in.Args[1]))
	case hir.OpBinOp:
		b.emit(lb, in, OpBinOp, in.Aux, b.use(in.Args[0]), b.use(in.Args[1]))
	case hir.OpNot:
		b.emit(lb, in, OpNot, nil, b.use(in.Args[0]))
	case hir.OpTypeof:
		b.emit(lb, in, OpTypeof, nil, b.use(in.Args[0]))
	case hir.OpSizeof:
		b.emit(lb, in, OpSizeof, nil, b.use(in.Args[0]))
	case hir.OpKeysof:
		b.emit(lb, in, OpKeysof, nil, b.use(in.Args[0]))
	case hir.OpClone:
		b.emit(lb, in, OpClone, nil, b.use(in.Args[0]))
	case hir.OpCall:
		uses := make([]*Use, len(in.Args))
		for i, a := range in.Args {
			uses[i] = b.use(a)
		}
		b.emit(lb, in, OpCall, nil, uses...)
	case hir.OpPhi:
		uses := make([]*Use, len(in.Args))
		for i, a := range in.Args {
			uses[i] = b.use(a)
		}
		b.emit(lb, in, OpPhi, in.Aux, uses...)
	case hir.OpCollectGarbage:
		b.emit(lb, in, OpCollectGarbage, nil)
	case hir.OpGetStackTrace:
		b.emit(lb, in, OpGetStackTrace, nil)
	}
	// The Gap that will hold this block's phi-resolution moves is
	// created lazily, right before the terminator is translated.
}

func (b *funcBuilder) translateTerm(lb *Block, hb *hir.Block) {
	lb.Gap = &Instr{ID: b.nextI, Op: OpGap, Block: lb}
	b.nextI++

	term := hb.Term
	if term == nil {
		return
	}
	switch term.Op {
	case hir.OpReturn:
		var inputs []*Use
		if len(term.Args) > 0 {
			inputs = []*Use{b.use(term.Args[0])}
		}
		lb.Term = &Instr{ID: b.nextI, Op: OpReturn, Inputs: inputs, Block: lb}
	case hir.OpIf:
		lb.Term = &Instr{ID: b.nextI, Op: OpBranch, Inputs: []*Use{b.use(term.Args[0])}, Block: lb}
	case hir.OpGoto:
		lb.Term = &Instr{ID: b.nextI, Op: OpGoto, Block: lb}
	}
	b.nextI++
}
