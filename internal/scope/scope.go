// Copyright 2012, Fedor Indutny.

// Package scope assigns every declared name in a program a storage
// slot: a position in the current function's stack frame, a position
// in a Context record shared with nested closures, or (for a name
// never declared anywhere in the lexical chain) a property of the
// language's global object.
package scope

import "github.com/indutny/candor/internal/ast"

// Kind is the storage class of a resolved slot.
type Kind int

const (
	KindStack Kind = iota
	KindContext
	KindImmediate
)

// Slot is the single resolution record shared by every reference to
// one declared name. Kind and Index are stable properties of the
// variable itself; Depth is meaningful only for a context slot, and
// differs per use site (see Ref).
type Slot struct {
	Name  string
	Kind  Kind
	Index int
}

// Ref is what Analyze attaches to each identifier use: the variable's
// canonical Slot plus the hop count from that use site's function to
// the function owning the slot. Depth -1 denotes the global object;
// a slot with Depth -1 carries no meaningful Index relative to any
// function's context chain — the index addresses a global property
// table instead.
type Ref struct {
	Slot  *Slot
	Depth int
}

// FuncInfo summarizes one function's storage layout after analysis.
type FuncInfo struct {
	StackCount   int
	ContextCount int
}

// Info is the result of analyzing a whole program.
type Info struct {
	Refs      map[*ast.Ident]*Ref
	Functions map[*ast.FunctionLit]*FuncInfo
	Program   *FuncInfo
	Globals   []string
}

// funcScope is one function's (or the top-level program's) lexical
// frame during analysis. Statement blocks (if/while bodies) do not
// introduce their own funcScope: Candor functions have a single flat
// frame, and only a function boundary changes addressing depth.
type funcScope struct {
	parent   *funcScope
	children []*funcScope
	names    map[string]*Slot
	order    []string // declaration order, used to assign final indices
	info     *FuncInfo
}

func newFuncScope(parent *funcScope) *funcScope {
	fs := &funcScope{parent: parent, names: make(map[string]*Slot), info: &FuncInfo{}}
	if parent != nil {
		parent.children = append(parent.children, fs)
	}
	return fs
}

func (f *funcScope) declare(name string) *Slot {
	if s, ok := f.names[name]; ok {
		return s
	}
	s := &Slot{Name: name, Kind: KindStack}
	f.names[name] = s
	f.order = append(f.order, name)
	return s
}

type analyzer struct {
	info    *Info
	globals map[string]*Slot
	scopes  map[*ast.FunctionLit]*funcScope
}

// Analyze walks prog, resolving every identifier to a Slot and
// recording per-function storage layouts.
func Analyze(prog *ast.Program) *Info {
	a := &analyzer{
		info: &Info{
			Refs:      make(map[*ast.Ident]*Ref),
			Functions: make(map[*ast.FunctionLit]*FuncInfo),
		},
		globals: make(map[string]*Slot),
		scopes:  make(map[*ast.FunctionLit]*funcScope),
	}
	top := newFuncScope(nil)
	a.info.Program = top.info

	a.declareStmts(top, prog.Body)
	a.resolveStmts(top, prog.Body)
	a.finalize(top)

	return a.info
}

// declareStmts implicitly declares every name assigned to, every
// function parameter, and every name named in a `scope { ... }`
// declaration within fs's own function body, never descending into a
// nested FunctionLit's body, which gets its own funcScope.
func (a *analyzer) declareStmts(fs *funcScope, body []ast.Node) {
	for _, n := range body {
		a.declareStmt(fs, n)
	}
}

func (a *analyzer) declareStmt(fs *funcScope, n ast.Node) {
	switch s := n.(type) {
	case *ast.If:
		a.declareStmts(fs, s.Then)
		a.declareStmts(fs, s.Else)
	case *ast.While:
		a.declareStmts(fs, s.Body)
	case *ast.ScopeDecl:
		for _, name := range s.Names {
			slot := fs.declare(name)
			slot.Kind = KindContext // eager capture, promoted regardless of escape
		}
	case *ast.ExprStmt:
		a.declareExpr(fs, s.X)
	case *ast.Return:
		if s.Value != nil {
			a.declareExpr(fs, s.Value)
		}
	}
}

// declareExpr finds Assign targets and nested FunctionLits (whose
// parameters declare into their own scope, built here so the
// resolve pass below can find it); it does not resolve references.
func (a *analyzer) declareExpr(fs *funcScope, n ast.Node) {
	switch e := n.(type) {
	case *ast.Assign:
		if id, ok := e.Target.(*ast.Ident); ok {
			fs.declare(id.Name)
		}
		a.declareExpr(fs, e.Target)
		a.declareExpr(fs, e.Value)
	case *ast.BinOp:
		a.declareExpr(fs, e.Left)
		a.declareExpr(fs, e.Right)
	case *ast.UnOp:
		a.declareExpr(fs, e.Operand)
	case *ast.Member:
		a.declareExpr(fs, e.Object)
		if e.Computed {
			a.declareExpr(fs, e.Index)
		}
	case *ast.Call:
		a.declareExpr(fs, e.Callee)
		for _, arg := range e.Args {
			a.declareExpr(fs, arg)
		}
	case *ast.ObjectLit:
		for _, v := range e.Values {
			a.declareExpr(fs, v)
		}
	case *ast.ArrayLit:
		for _, v := range e.Values {
			a.declareExpr(fs, v)
		}
	case *ast.FunctionLit:
		child := newFuncScope(fs)
		a.info.Functions[e] = child.info
		a.scopes[e] = child
		for _, p := range e.Params {
			child.declare(p)
		}
		a.declareStmts(child, e.Body)
	}
}

// resolveStmts walks every statement resolving identifier references
// against fs and, on encountering a nested FunctionLit, recurses into
// its previously-built child funcScope.
func (a *analyzer) resolveStmts(fs *funcScope, body []ast.Node) {
	for _, n := range body {
		a.resolveStmt(fs, n)
	}
}

func (a *analyzer) resolveStmt(fs *funcScope, n ast.Node) {
	switch s := n.(type) {
	case *ast.If:
		a.resolveExpr(fs, s.Cond)
		a.resolveStmts(fs, s.Then)
		a.resolveStmts(fs, s.Else)
	case *ast.While:
		a.resolveExpr(fs, s.Cond)
		a.resolveStmts(fs, s.Body)
	case *ast.ScopeDecl:
		// Names are already declared (and promoted) by declareStmt;
		// nothing left to resolve here.
	case *ast.ExprStmt:
		a.resolveExpr(fs, s.X)
	case *ast.Return:
		if s.Value != nil {
			a.resolveExpr(fs, s.Value)
		}
	}
}

func (a *analyzer) resolveExpr(fs *funcScope, n ast.Node) {
	switch e := n.(type) {
	case *ast.Ident:
		a.resolveIdent(fs, e)
	case *ast.Assign:
		a.resolveExpr(fs, e.Target)
		a.resolveExpr(fs, e.Value)
	case *ast.BinOp:
		a.resolveExpr(fs, e.Left)
		a.resolveExpr(fs, e.Right)
	case *ast.UnOp:
		a.resolveExpr(fs, e.Operand)
	case *ast.Member:
		a.resolveExpr(fs, e.Object)
		if e.Computed {
			a.resolveExpr(fs, e.Index)
		}
	case *ast.Call:
		a.resolveExpr(fs, e.Callee)
		for _, arg := range e.Args {
			a.resolveExpr(fs, arg)
		}
	case *ast.ObjectLit:
		for _, v := range e.Values {
			a.resolveExpr(fs, v)
		}
	case *ast.ArrayLit:
		for _, v := range e.Values {
			a.resolveExpr(fs, v)
		}
	case *ast.FunctionLit:
		child := a.scopes[e]
		a.resolveStmts(child, e.Body)
	}
}

// resolveIdent finds name's declaring funcScope by walking fs's
// parent chain, counting function boundaries crossed as depth. A
// name found anywhere but the current function is promoted to a
// context slot in its defining function, since every other reference
// to it shares the promotion: there is only one Context record per
// call. A name found nowhere becomes a property of the global
// object, addressed at depth -1 with no lexical owner.
func (a *analyzer) resolveIdent(fs *funcScope, id *ast.Ident) {
	depth := 0
	for cur := fs; cur != nil; cur = cur.parent {
		if slot, ok := cur.names[id.Name]; ok {
			if depth > 0 {
				slot.Kind = KindContext
			}
			a.info.Refs[id] = &Ref{Slot: slot, Depth: depth}
			return
		}
		depth++
	}
	slot, ok := a.globals[id.Name]
	if !ok {
		slot = &Slot{Name: id.Name, Kind: KindContext, Index: len(a.info.Globals)}
		a.globals[id.Name] = slot
		a.info.Globals = append(a.info.Globals, id.Name)
	}
	a.info.Refs[id] = &Ref{Slot: slot, Depth: -1}
}

// finalize assigns final indices: KindStack slots are numbered in
// declaration order among themselves, and KindContext slots
// (promoted by an escaping reference, or eager via `scope { }`) are
// separately numbered in declaration order, then the function's
// StackCount/ContextCount are recorded.
func (a *analyzer) finalize(fs *funcScope) {
	stackN, ctxN := 0, 0
	for _, name := range fs.order {
		slot := fs.names[name]
		switch slot.Kind {
		case KindStack:
			slot.Index = stackN
			stackN++
		case KindContext:
			slot.Index = ctxN
			ctxN++
		}
	}
	fs.info.StackCount = stackN
	fs.info.ContextCount = ctxN
	for _, child := range fs.children {
		a.finalize(child)
	}
}
