// Copyright 2012, Fedor Indutny.

// Package lir linearizes the SSA HIR graph into a per-block
// instruction sequence addressed in terms of virtual values still
// awaiting a register or spill slot, plus explicit Gap instructions
// holding the parallel moves needed to resolve phis. The builder
// emits no fixed-register uses and no moves for them.
package lir

import "github.com/indutny/candor/internal/hir"

// Op identifies a LIR instruction's operation. Unlike HIR, LIR also
// carries the block-linearization bookkeeping ops (Label, Gap, Move)
// that have no HIR equivalent.
type Op int

const (
	OpLabel Op = iota
	OpEntry
	OpGap
	OpMove
	OpReturn
	OpLoadContext
	OpStoreContext
	OpLoadArg
	OpLoadVarArg
	OpAllocateObject
	OpAllocateArray
	OpAllocateFunction
	OpLoadProperty
	OpStoreProperty
	OpDeleteProperty
	OpBinOp
	OpNot
	OpTypeof
	OpSizeof
	OpKeysof
	OpClone
	OpCall
	OpBranch
	OpGoto
	OpPhi
	OpLiteral
	OpNil
	OpCollectGarbage
	OpGetStackTrace
)

var opNames = [...]string{
	OpLabel: "Label", OpEntry: "Entry", OpGap: "Gap", OpMove: "Move", OpReturn: "Return",
	OpLoadContext: "LoadContext", OpStoreContext: "StoreContext",
	OpLoadArg: "LoadArg", OpLoadVarArg: "LoadVarArg",
	OpAllocateObject: "AllocateObject", OpAllocateArray: "AllocateArray", OpAllocateFunction: "AllocateFunction",
	OpLoadProperty: "LoadProperty", OpStoreProperty: "StoreProperty", OpDeleteProperty: "DeleteProperty",
	OpBinOp: "BinOp", OpNot: "Not", OpTypeof: "Typeof", OpSizeof: "Sizeof", OpKeysof: "Keysof",
	OpClone: "Clone", OpCall: "Call", OpBranch: "Branch", OpGoto: "Goto", OpPhi: "Phi",
	OpLiteral: "Literal", OpNil: "Nil", OpCollectGarbage: "CollectGarbage", OpGetStackTrace: "GetStackTrace",
}

func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return "Op(?)"
}

// UseKind constrains where the register allocator may place a use or
// a result: anywhere (a register or a spill slot it loads from first),
// in a register of the allocator's choosing, or in one fixed register
// dictated by a calling convention.
type UseKind int

const (
	UseAny UseKind = iota
	UseRegister
	UseFixed
)

// Virtual is one value flowing through the function: the LIR
// equivalent of an SSA name, eventually bound to a register or a
// spill slot by the allocator.
type Virtual struct {
	ID  int
	HIR *hir.Instr // nil for a value with no HIR origin (e.g. a Gap's temporary)

	// Filled in by internal/regalloc.
	HasReg bool
	Reg    int
	Spill  int // spill slot index, valid when !HasReg
}

// Use is one operand reference to a Virtual, along with the
// constraint the instruction places on where that virtual must live
// at this point.
type Use struct {
	Kind  UseKind
	Reg   int // meaningful when Kind == UseFixed
	Value *Virtual
}

// Move is one source-to-destination copy inside a Gap instruction.
// internal/codegen executes a Gap's Moves as one parallel copy,
// reading every source before writing any destination, so cycles
// among them need no scratch register.
type Move struct {
	From *Use
	To   *Use
}

// Instr is one LIR instruction. Most instructions produce a single
// value, held in Result; control-flow and store-like instructions
// leave Result nil.
type Instr struct {
	ID      int
	Op      Op
	Inputs  []*Use
	Result  *Virtual
	Aux     interface{}
	Moves   []Move // only populated on a Gap instruction
	HasCall bool   // true if generating this instruction may call into a runtime stub; internal/regalloc does not consult it
	Block   *Block
}

// Block is a single-entry, single-exit run of instructions ending in
// a Return, Branch or Goto. Gap, if non-nil, is the parallel-move
// instruction inserted immediately before Term to resolve phis and
// any allocator-introduced moves.
type Block struct {
	ID     int
	Label  *Instr
	Instrs []*Instr
	Gap    *Instr
	Term   *Instr
	Preds  []*Block
	Succs  []*Block
}

func (b *Block) addSucc(s *Block) {
	b.Succs = append(b.Succs, s)
	s.Preds = append(s.Preds, b)
}

// Func is one compiled function's linearized form.
type Func struct {
	Name         string
	Entry        *Block
	Blocks       []*Block
	Virtuals     []*Virtual
	StackSlots   int
	ContextSlots int
	Argc         int
	Variadic     bool
}

// Program mirrors hir.Program after linearization.
type Program struct {
	Top       *Func
	Functions []*Func
}
