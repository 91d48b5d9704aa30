// Copyright 2012, Fedor Indutny.

package hir

import (
	"github.com/indutny/candor/internal/ast"
	"github.com/indutny/candor/internal/scope"
)

// Build lowers a scope-resolved program to HIR.
func Build(prog *ast.Program, info *scope.Info) *Program {
	b := &builder{info: info, out: &Program{}}
	b.out.Top = b.buildFunc("top", prog.Body, info.Program, nil, false)
	return b.out
}

// buildNested lowers a single nested function literal, used by the
// builder's own recursive descent into AllocateFunction bodies.
func buildNested(b *builder, lit *ast.FunctionLit) *Func {
	fi := b.info.Functions[lit]
	fn := b.buildFunc(lit.Name, lit.Body, fi, lit.Params, lit.Variadic)
	b.out.Functions = append(b.out.Functions, fn)
	return fn
}

type loopTarget struct {
	continueTo *Block
	breakTo    *Block
}

// builder carries the state needed while lowering one Func: its
// current block, the SSA environment for stack slots (indexed by
// scope.Slot.Index), and the enclosing loop targets for break and
// continue.
type builder struct {
	info *scope.Info
	out  *Program

	fn    *Func
	cur   *Block
	env   map[int]*Instr // stack slot index -> current SSA definition
	loops []loopTarget
	nextB int
	nextV int
}

func (b *builder) newBlock() *Block {
	blk := &Block{ID: b.nextB}
	b.nextB++
	b.fn.Blocks = append(b.fn.Blocks, blk)
	return blk
}

func (b *builder) emit(op Op, pos int, aux interface{}, args ...*Instr) *Instr {
	in := &Instr{ID: b.nextV, Op: op, Args: args, Aux: aux, Pos: pos, Block: b.cur}
	b.nextV++
	b.cur.Instrs = append(b.cur.Instrs, in)
	return in
}

func (b *builder) terminate(op Op, pos int, aux interface{}, args ...*Instr) *Instr {
	in := &Instr{ID: b.nextV, Op: op, Args: args, Aux: aux, Pos: pos, Block: b.cur}
	b.nextV++
	b.cur.Term = in
	return in
}

func (b *builder) buildFunc(name string, body []ast.Node, fi *scope.FuncInfo, params []string, variadic bool) *Func {
	inner := &builder{info: b.info, out: b.out}
	inner.fn = &Func{Name: name, StackSlots: fi.StackCount, ContextSlots: fi.ContextCount, Argc: len(params), Variadic: variadic}
	inner.cur = inner.newBlock()
	inner.fn.Entry = inner.cur
	inner.env = make(map[int]*Instr)

	inner.emit(OpEntry, 0, fi.ContextCount)

	for i := range params {
		inner.env[i] = inner.emit(OpLoadArg, 0, i)
	}

	inner.buildStmts(body)
	if inner.cur.Term == nil {
		inner.terminate(OpReturn, 0, nil)
	}
	return inner.fn
}

func (b *builder) buildStmts(body []ast.Node) {
	for _, n := range body {
		if b.cur.Term != nil {
			return // unreachable code after a terminator
		}
		b.buildStmt(n)
	}
}

func (b *builder) buildStmt(n ast.Node) {
	switch s := n.(type) {
	case *ast.If:
		b.buildIf(s)
	case *ast.While:
		b.buildWhile(s)
	case *ast.Break:
		lt := b.loops[len(b.loops)-1]
		b.gotoBlock(lt.breakTo, int(s.Pos()))
	case *ast.Continue:
		lt := b.loops[len(b.loops)-1]
		b.gotoBlock(lt.continueTo, int(s.Pos()))
	case *ast.Return:
		var v *Instr
		if s.Value != nil {
			v = b.buildExpr(s.Value)
		}
		if v != nil {
			b.terminate(OpReturn, int(s.Pos()), nil, v)
		} else {
			b.terminate(OpReturn, int(s.Pos()), nil)
		}
	case *ast.ScopeDecl:
		// Purely a scope-analysis directive; no HIR is generated.
	case *ast.ExprStmt:
		b.buildExpr(s.X)
	}
}

// gotoBlock emits an unconditional jump to target, snapshotting the
// current stack-slot environment onto target's pending join state.
func (b *builder) gotoBlock(target *Block, pos int) {
	b.terminate(OpGoto, pos, nil)
	b.cur.addSucc(target)
}

func (b *builder) buildIf(s *ast.If) {
	cond := b.buildExpr(s.Cond)
	thenB, elseB, joinB := b.newBlock(), b.newBlock(), b.newBlock()
	b.terminate(OpIf, int(s.Pos()), nil, cond)
	b.cur.addSucc(thenB)
	b.cur.addSucc(elseB)

	envBefore := b.cloneEnv()

	b.cur = thenB
	b.buildStmts(s.Then)
	thenEnv := b.env
	thenOpen := b.cur.Term == nil
	if thenOpen {
		b.terminate(OpGoto, 0, nil)
		b.cur.addSucc(joinB)
	}

	b.env = cloneEnvOf(envBefore)
	b.cur = elseB
	b.buildStmts(s.Else)
	elseEnv := b.env
	elseOpen := b.cur.Term == nil
	if elseOpen {
		b.terminate(OpGoto, 0, nil)
		b.cur.addSucc(joinB)
	}

	b.cur = joinB
	if !thenOpen && !elseOpen {
		// Both arms terminated (return/break/continue): join is
		// unreachable, but kept in fn.Blocks for a simple CFG shape.
		b.env = cloneEnvOf(envBefore)
		return
	}
	merged := make(map[int]*Instr)
	for idx := 0; idx < b.fn.StackSlots; idx++ {
		tv, tok := thenEnv[idx]
		ev, eok := elseEnv[idx]
		switch {
		case tok && eok && tv == ev:
			merged[idx] = tv
		case tok && eok:
			merged[idx] = b.insertPhi(joinB, idx, []*Instr{tv, ev})
		case tok:
			merged[idx] = tv
		case eok:
			merged[idx] = ev
		}
	}
	b.env = merged
}

func (b *builder) buildWhile(s *ast.While) {
	preheader := b.cur
	header := b.newBlock()
	header.IsLoopHdr = true
	b.terminate(OpGoto, int(s.Pos()), nil)
	preheader.addSucc(header)

	b.cur = header
	incoming := b.cloneEnv()
	// Eager phis: every stack slot live at loop entry gets a phi whose
	// first input is the preheader value; the back-edge input is
	// patched in once the body has been built.
	phis := make(map[int]*Instr, len(incoming))
	headerEnv := make(map[int]*Instr, len(incoming))
	for idx, v := range incoming {
		phi := &Instr{ID: b.nextV, Op: OpPhi, Args: []*Instr{v}, Aux: idx, Block: header}
		b.nextV++
		header.Instrs = append(header.Instrs, phi)
		phis[idx] = phi
		headerEnv[idx] = phi
	}
	b.env = headerEnv

	cond := b.buildExpr(s.Cond)
	body, exit := b.newBlock(), b.newBlock()
	b.terminate(OpIf, int(s.Cond.Pos()), nil, cond)
	b.cur.addSucc(body)
	b.cur.addSucc(exit)

	b.loops = append(b.loops, loopTarget{continueTo: header, breakTo: exit})
	b.cur = body
	b.buildStmts(s.Body)
	b.loops = b.loops[:len(b.loops)-1]

	if b.cur.Term == nil {
		for idx, phi := range phis {
			if v, ok := b.env[idx]; ok {
				phi.Args = append(phi.Args, v)
			} else {
				phi.Args = append(phi.Args, phi.Args[0])
			}
		}
		b.terminate(OpGoto, 0, nil)
		b.cur.addSucc(header)
	}

	b.cur = exit
	b.env = headerEnv
}

func (b *builder) cloneEnv() map[int]*Instr { return cloneEnvOf(b.env) }

func cloneEnvOf(src map[int]*Instr) map[int]*Instr {
	dst := make(map[int]*Instr, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (b *builder) insertPhi(blk *Block, slotIdx int, args []*Instr) *Instr {
	phi := &Instr{ID: b.nextV, Op: OpPhi, Args: args, Aux: slotIdx, Block: blk}
	b.nextV++
	blk.Instrs = append([]*Instr{phi}, blk.Instrs...)
	return phi
}
