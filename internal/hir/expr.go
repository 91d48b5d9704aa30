// Copyright 2012, Fedor Indutny.

package hir

import (
	"github.com/indutny/candor/internal/ast"
	"github.com/indutny/candor/internal/scope"
)

// VarRef is the Aux payload of an OpLoad/OpStore instruction: a
// variable resolved by the scope analyzer to either a context slot
// reachable by walking Depth function boundaries, or (Depth == -1) a
// property of the shared global object addressed by Index into its
// name table.
type VarRef struct {
	Index int
	Depth int
}

// buildExpr lowers an expression node to the instruction producing
// its value, returning that instruction.
func (b *builder) buildExpr(n ast.Node) *Instr {
	pos := int(n.Pos())
	switch e := n.(type) {
	case *ast.NumberLit:
		return b.emit(OpLiteral, pos, e.Value)
	case *ast.StringLit:
		return b.emit(OpLiteral, pos, e.Value)
	case *ast.BoolLit:
		return b.emit(OpLiteral, pos, e.Value)
	case *ast.NilLit:
		return b.emit(OpNil, pos, nil)
	case *ast.Ident:
		return b.loadIdent(e)
	case *ast.Assign:
		return b.buildAssign(e)
	case *ast.BinOp:
		return b.buildBinOp(e)
	case *ast.UnOp:
		return b.buildUnOp(e)
	case *ast.Member:
		obj := b.buildExpr(e.Object)
		key := b.memberKey(e)
		return b.emit(OpLoadProperty, pos, nil, obj, key)
	case *ast.Call:
		callee := b.buildExpr(e.Callee)
		args := make([]*Instr, 0, len(e.Args)+1)
		args = append(args, callee)
		for _, a := range e.Args {
			args = append(args, b.buildExpr(a))
		}
		return b.emit(OpCall, pos, nil, args...)
	case *ast.ObjectLit:
		obj := b.emit(OpAllocateObject, pos, nil)
		for i, key := range e.Keys {
			keyInstr := b.emit(OpLiteral, pos, key)
			val := b.buildExpr(e.Values[i])
			b.emit(OpStoreProperty, pos, nil, obj, keyInstr, val)
		}
		return obj
	case *ast.ArrayLit:
		arr := b.emit(OpAllocateArray, pos, nil)
		for i, v := range e.Values {
			keyInstr := b.emit(OpLiteral, pos, float64(i))
			val := b.buildExpr(v)
			b.emit(OpStoreProperty, pos, nil, arr, keyInstr, val)
		}
		return arr
	case *ast.FunctionLit:
		fn := buildNested(b, e)
		return b.emit(OpAllocateFunction, pos, fn)
	}
	return b.emit(OpNil, pos, nil)
}

// memberKey returns the instruction producing e's property key: a
// synthesized string literal for `.name` access, or the evaluated
// index expression for `[expr]` access. This keeps LoadProperty,
// StoreProperty and DeleteProperty uniformly shaped as
// Args = [object, key(, value)] with no separate Aux field for the
// key.
func (b *builder) memberKey(e *ast.Member) *Instr {
	if e.Computed {
		return b.buildExpr(e.Index)
	}
	return b.emit(OpLiteral, int(e.Pos()), e.Name)
}

func (b *builder) loadIdent(id *ast.Ident) *Instr {
	ref := b.info.Refs[id]
	if ref.Slot.Kind == scope.KindStack {
		if v, ok := b.env[ref.Slot.Index]; ok {
			return v
		}
		return b.emit(OpNil, int(id.Pos()), nil)
	}
	return b.emit(OpLoad, int(id.Pos()), VarRef{Index: ref.Slot.Index, Depth: ref.Depth})
}

// storeIdent assigns value to id's resolved slot, returning value
// unchanged (assignment is itself an expression in this language).
func (b *builder) storeIdent(id *ast.Ident, value *Instr) *Instr {
	ref := b.info.Refs[id]
	if ref.Slot.Kind == scope.KindStack {
		b.env[ref.Slot.Index] = value
		return value
	}
	b.emit(OpStore, int(id.Pos()), VarRef{Index: ref.Slot.Index, Depth: ref.Depth}, value)
	return value
}

func (b *builder) buildAssign(e *ast.Assign) *Instr {
	value := b.buildExpr(e.Value)
	switch t := e.Target.(type) {
	case *ast.Ident:
		return b.storeIdent(t, value)
	case *ast.Member:
		obj := b.buildExpr(t.Object)
		key := b.memberKey(t)
		b.emit(OpStoreProperty, int(e.Pos()), nil, obj, key, value)
		return value
	}
	return value
}

// buildBinOp lowers `&&`/`||` to a diamond with a join phi so the
// right-hand side is only evaluated when it can affect the result;
// every other binary operator lowers directly to OpBinOp.
func (b *builder) buildBinOp(e *ast.BinOp) *Instr {
	if e.Op == "&&" || e.Op == "||" {
		return b.buildShortCircuit(e)
	}
	left := b.buildExpr(e.Left)
	right := b.buildExpr(e.Right)
	return b.emit(OpBinOp, int(e.Pos()), e.Op, left, right)
}

func (b *builder) buildShortCircuit(e *ast.BinOp) *Instr {
	left := b.buildExpr(e.Left)
	rhsB, joinB := b.newBlock(), b.newBlock()
	entry := b.cur
	b.terminate(OpIf, int(e.Pos()), nil, left)
	if e.Op == "&&" {
		entry.addSucc(rhsB)
		entry.addSucc(joinB)
	} else {
		entry.addSucc(joinB)
		entry.addSucc(rhsB)
	}

	b.cur = rhsB
	right := b.buildExpr(e.Right)
	b.terminate(OpGoto, 0, nil)
	b.cur.addSucc(joinB)

	b.cur = joinB
	phi := &Instr{ID: b.nextV, Op: OpPhi, Block: joinB, Args: []*Instr{left, right}}
	b.nextV++
	joinB.Instrs = append(joinB.Instrs, phi)
	return phi
}

func (b *builder) buildUnOp(e *ast.UnOp) *Instr {
	pos := int(e.Pos())
	switch e.Op {
	case "!":
		operand := b.buildExpr(e.Operand)
		return b.emit(OpNot, pos, nil, operand)
	case "typeof":
		operand := b.buildExpr(e.Operand)
		return b.emit(OpTypeof, pos, nil, operand)
	case "sizeof":
		operand := b.buildExpr(e.Operand)
		return b.emit(OpSizeof, pos, nil, operand)
	case "keysof":
		operand := b.buildExpr(e.Operand)
		return b.emit(OpKeysof, pos, nil, operand)
	case "clone":
		operand := b.buildExpr(e.Operand)
		return b.emit(OpClone, pos, nil, operand)
	case "-":
		operand := b.buildExpr(e.Operand)
		zero := b.emit(OpLiteral, pos, float64(0))
		return b.emit(OpBinOp, pos, "-", zero, operand)
	case "delete":
		if m, ok := e.Operand.(*ast.Member); ok {
			obj := b.buildExpr(m.Object)
			key := b.memberKey(m)
			return b.emit(OpDeleteProperty, pos, nil, obj, key)
		}
		return b.emit(OpNil, pos, nil)
	case "++", "--":
		return b.buildIncDec(e)
	}
	return b.emit(OpNil, pos, nil)
}

// buildIncDec lowers prefix/postfix ++ and -- to a load, an add/sub
// by the literal 1, and a store, returning the old value for a
// postfix use and the new value for a prefix use.
func (b *builder) buildIncDec(e *ast.UnOp) *Instr {
	pos := int(e.Pos())
	op := "+"
	if e.Op == "--" {
		op = "-"
	}
	one := func() *Instr { return b.emit(OpLiteral, pos, float64(1)) }

	switch target := e.Operand.(type) {
	case *ast.Ident:
		old := b.loadIdent(target)
		next := b.emit(OpBinOp, pos, op, old, one())
		b.storeIdent(target, next)
		if e.Postfix {
			return old
		}
		return next
	case *ast.Member:
		obj := b.buildExpr(target.Object)
		key := b.memberKey(target)
		old := b.emit(OpLoadProperty, pos, nil, obj, key)
		next := b.emit(OpBinOp, pos, op, old, one())
		b.emit(OpStoreProperty, pos, nil, obj, key, next)
		if e.Postfix {
			return old
		}
		return next
	}
	return b.emit(OpNil, pos, nil)
}
