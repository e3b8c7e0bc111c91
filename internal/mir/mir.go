// Package mir implements Nova's place-based mid-level intermediate
// representation, modeled on Rust MIR per spec §3: explicit CFG, dominance
// analysis, loop structure, and closure-environment materialization,
// lowered from internal/hir by GenerateMIR and consumed by internal/codegen.
package mir

import (
	"fmt"

	"github.com/orizon-lang/orizon/internal/hir"
)

// Kind is MIR's small type lattice, the translation target of hir.Kind.
type Kind int

const (
	KindVoid Kind = iota
	KindI1
	KindI64
	KindF64
	KindPointer
	// KindOpaque covers Array/Struct/Function: spec's "opaque kind markers".
	KindOpaque
)

func (k Kind) String() string {
	switch k {
	case KindVoid:
		return "void"
	case KindI1:
		return "i1"
	case KindI64:
		return "i64"
	case KindF64:
		return "f64"
	case KindPointer:
		return "ptr"
	case KindOpaque:
		return "opaque"
	default:
		return "unknown"
	}
}

// TranslateKind applies spec §4.4's type-translation table: Any maps to I64
// (callback boundaries pass untyped i64), String/Pointer map to Pointer,
// Array/Struct/Function collapse to the opaque marker.
func TranslateKind(k hir.Kind) Kind {
	switch k {
	case hir.KindVoid:
		return KindVoid
	case hir.KindBool:
		return KindI1
	case hir.KindI64, hir.KindAny, hir.KindNull, hir.KindUndefined:
		return KindI64
	case hir.KindF64:
		return KindF64
	case hir.KindString, hir.KindPointer:
		return KindPointer
	case hir.KindArray, hir.KindStruct, hir.KindFunction:
		return KindOpaque
	default:
		return KindI64
	}
}

// PlaceKind discriminates the storage class a Place names.
type PlaceKind int

const (
	PlaceLocal PlaceKind = iota
	PlaceStatic
	PlaceTemp
	PlaceReturn
	PlaceArgument
)

func (k PlaceKind) String() string {
	switch k {
	case PlaceLocal:
		return "local"
	case PlaceStatic:
		return "static"
	case PlaceTemp:
		return "temp"
	case PlaceReturn:
		return "return"
	case PlaceArgument:
		return "argument"
	default:
		return "?"
	}
}

// Place is a named storage location: the return value is always `_0`,
// matching spec §3.
type Place struct {
	PKind PlaceKind
	Index int
	Type  Kind
	Name  string // debug name, empty for anonymous temporaries

	// Storage marks a place that must get a real stack slot in codegen
	// (an `alloca` plus Load/Store discipline) rather than being tracked as
	// a plain SSA register: an HIR Alloca-backed source variable, or a
	// closure Copy-In local that the function body may reassign. Every
	// other temporary (binop/call/field-access results) is single-assignment
	// and stays a bare SSA value, per spec §4.5's "load only for
	// Alloca-backed places".
	Storage bool
}

func (p *Place) String() string {
	if p.PKind == PlaceReturn {
		return "_0"
	}

	return fmt.Sprintf("_%d", p.Index)
}

// Operand is anything an Rvalue or terminator consumes as an input.
type Operand interface {
	operandNode()
	OperandType() Kind
}

// CopyOperand reads a place's current value without invalidating it.
type CopyOperand struct{ Place *Place }

func (*CopyOperand) operandNode()        {}
func (o *CopyOperand) OperandType() Kind { return o.Place.Type }

// MoveOperand reads a place's value and, in a linear-typed MIR, would
// invalidate it; Nova's MIR does not track move-validity (no borrow
// checker in scope) but keeps Move as a distinct operand kind for fidelity
// with the Rust-MIR shape spec §3 asks for.
type MoveOperand struct{ Place *Place }

func (*MoveOperand) operandNode()        {}
func (o *MoveOperand) OperandType() Kind { return o.Place.Type }

// ConstKind discriminates ConstantOperand's tagged union.
type ConstKind int

const (
	ConstInt ConstKind = iota
	ConstFloat
	ConstBool
	ConstString
	ConstNull
	ConstUndefined
)

// ConstantOperand is a compile-time-known value.
type ConstantOperand struct {
	CKind   ConstKind
	IntVal  int64
	FltVal  float64
	BoolVal bool
	StrVal  string
	Type    Kind
}

func (*ConstantOperand) operandNode()        {}
func (o *ConstantOperand) OperandType() Kind { return o.Type }

// FuncRefOperand names a MIR function as a first-class value: the function
// pointer half of a closure value, or an indirect-call callee. There is no
// place backing it — it resolves directly to a codegen-time symbol.
type FuncRefOperand struct{ Name string }

func (*FuncRefOperand) operandNode()      {}
func (*FuncRefOperand) OperandType() Kind { return KindPointer }

// Rvalue is the right-hand side of an Assign statement.
type Rvalue interface {
	rvalueNode()
}

// UseRvalue is a bare operand read (`_1 = _2`-style moves/copies).
type UseRvalue struct{ Operand Operand }

func (*UseRvalue) rvalueNode() {}

// BinOp/UnOp mirror hir.Opcode's arithmetic/comparison/bitwise subset.
type BinOp int

const (
	BinAdd BinOp = iota
	BinSub
	BinMul
	BinDiv
	BinRem
	BinAnd
	BinOr
	BinXor
	BinShl
	BinShr
	BinUShr
	BinEq
	BinNe
	BinLt
	BinLe
	BinGt
	BinGe
)

type UnOp int

const (
	UnNeg UnOp = iota
	UnNot
)

// BinaryOpRvalue computes a dyadic operation.
type BinaryOpRvalue struct {
	Op          BinOp
	Left, Right Operand
}

func (*BinaryOpRvalue) rvalueNode() {}

// CheckedBinaryOpRvalue is BinaryOpRvalue's overflow-checked counterpart;
// Nova's integer domain is a single 64-bit kind with no trap-on-overflow
// requirement, so lowering never emits this today, but it is kept as a
// distinct Rvalue to match MIR's sum-type shape (§3) for future use by a
// stricter numeric mode.
type CheckedBinaryOpRvalue struct {
	Op          BinOp
	Left, Right Operand
}

func (*CheckedBinaryOpRvalue) rvalueNode() {}

// UnaryOpRvalue computes a monadic operation.
type UnaryOpRvalue struct {
	Op      UnOp
	Operand Operand
}

func (*UnaryOpRvalue) rvalueNode() {}

// CastRvalue reinterprets an operand as a different Kind.
type CastRvalue struct {
	Operand Operand
	To      Kind
}

func (*CastRvalue) rvalueNode() {}

// AggregateKind discriminates AggregateRvalue's several structural shapes.
type AggregateKind int

const (
	AggStruct AggregateKind = iota
	AggArray
	AggGetField
	AggSetField
	AggGetElement
	AggSetElement
)

// AggregateRvalue covers every struct/array-shaped operation: building a
// new aggregate (AggStruct/AggArray, Elems populated), reading a field/
// element (AggGetField/AggGetElement, Base (+Index for element) populated),
// or writing one (AggSetField/AggSetElement, Base/Index/Value populated).
// This is the general mechanism spec §4.4's "Store-to-GetField pattern"
// asks for: a Store whose destination is a GetField result becomes a
// three-operand AggSetField rather than a plain Assign.
type AggregateRvalue struct {
	Kind       AggregateKind
	Base       Operand
	FieldIndex int
	FieldName  string
	Index      Operand // element index, for AggGetElement/AggSetElement
	Value      Operand // written value, for AggSetField/AggSetElement
	Elems      []Operand
}

func (*AggregateRvalue) rvalueNode() {}

// RefRvalue takes a place's address as a first-class reference value.
type RefRvalue struct{ Place *Place }

func (*RefRvalue) rvalueNode() {}

// AddressOfRvalue is RefRvalue's raw-pointer counterpart (no aliasing
// discipline implied, unlike Ref).
type AddressOfRvalue struct{ Place *Place }

func (*AddressOfRvalue) rvalueNode() {}

// LenRvalue reads an array operand's runtime length.
type LenRvalue struct{ Operand Operand }

func (*LenRvalue) rvalueNode() {}

// DiscriminantRvalue reads a tagged union's discriminant; Nova's value
// domain has no sum types today, so this exists for shape-completeness
// with Rust MIR (spec §3) rather than having a current producer.
type DiscriminantRvalue struct{ Operand Operand }

func (*DiscriminantRvalue) rvalueNode() {}

// Statement is a non-terminating, order-sensitive operation within a block.
type Statement interface {
	stmtNode()
}

// AssignStmt writes an Rvalue's result into a place.
type AssignStmt struct {
	Dest *Place
	RHS  Rvalue
}

func (*AssignStmt) stmtNode() {}

// StorageLiveStmt/StorageDeadStmt are lifetime markers (§4.5: no-ops at
// codegen time) bracketing a place's live range.
type StorageLiveStmt struct{ Place *Place }

func (*StorageLiveStmt) stmtNode() {}

type StorageDeadStmt struct{ Place *Place }

func (*StorageDeadStmt) stmtNode() {}

// NopStmt is an explicit no-op, used where a HIR instruction has no MIR
// effect (e.g. an unsupported construct's placeholder).
type NopStmt struct{}

func (*NopStmt) stmtNode() {}

// Terminator is the single control-flow-ending operation closing a block.
type Terminator interface {
	terminatorNode()
}

// ReturnTerminator ends the function; Operand is nil for a bare `return`.
type ReturnTerminator struct{ Operand Operand }

func (*ReturnTerminator) terminatorNode() {}

// GotoTerminator is an unconditional branch.
type GotoTerminator struct{ Target *BasicBlock }

func (*GotoTerminator) terminatorNode() {}

// SwitchTarget pairs a discriminant value with its destination block.
type SwitchTarget struct {
	Value  int64
	Target *BasicBlock
}

// SwitchIntTerminator is MIR's only conditional branch shape; HIR's
// CondBr lowers to a two-way SwitchInt(cond, [1 -> trueBlock],
// otherwise=falseBlock) per spec §4.4, avoiding a separate terminator kind.
type SwitchIntTerminator struct {
	Discriminant Operand
	Targets      []SwitchTarget
	Otherwise    *BasicBlock
}

func (*SwitchIntTerminator) terminatorNode() {}

// CallTerminator is a HIR Call lowered to a terminator (spec §4.4: "each
// HIR Call becomes a MIR Call terminator plus a freshly created
// continuation block"), preserving the one-terminator-per-block invariant.
type CallTerminator struct {
	CalleeName string
	Args       []Operand
	Dest       *Place // nil for a discarded/void call result
	Target     *BasicBlock
}

func (*CallTerminator) terminatorNode() {}

// AssertTerminator is a runtime-checked branch (bounds/null checks);
// Nova's lowering does not emit these today, but the shape matches
// Rust MIR's Assert terminator for §3 fidelity.
type AssertTerminator struct {
	Cond     Operand
	Expected bool
	Target   *BasicBlock
}

func (*AssertTerminator) terminatorNode() {}

// DropTerminator runs a place's destructor before continuing; unused by
// current lowering (Nova has no destructors) but present for shape parity.
type DropTerminator struct {
	Place  *Place
	Target *BasicBlock
}

func (*DropTerminator) terminatorNode() {}

// UnreachableTerminator marks dead code (e.g. after a Break/Continue whose
// block has no real successor).
type UnreachableTerminator struct{}

func (*UnreachableTerminator) terminatorNode() {}

// BasicBlock is a label, a statement sequence, and exactly one terminator
// (set last, per the invariant spec §8 checks).
type BasicBlock struct {
	Label      string
	Statements []Statement
	Terminator Terminator
}

func (b *BasicBlock) IsTerminated() bool { return b.Terminator != nil }

// StructType mirrors hir.StructType, translated to MIR kinds.
type StructType struct {
	Name       string
	FieldNames []string
	FieldTypes []Kind
}

// Function is one MIR function: its return place `_0` (Return) and that
// place's kind (ReturnType), its argument places (Params), its ordinary
// locals and temporaries (Locals), and its block CFG.
type Function struct {
	Name       string
	Linkage    string
	ReturnType Kind
	Return     *Place
	Params     []*Place
	Locals     []*Place
	Blocks     []*BasicBlock
}

func (f *Function) Entry() *BasicBlock {
	if len(f.Blocks) == 0 {
		return nil
	}

	return f.Blocks[0]
}

// Module is the MIR compilation unit.
type Module struct {
	Name        string
	Functions   []*Function
	StructTypes map[string]*StructType
}

func NewModule(name string) *Module {
	return &Module{Name: name, StructTypes: make(map[string]*StructType)}
}

func (m *Module) String() string {
	return fmt.Sprintf("mir.module %s (%d functions)", m.Name, len(m.Functions))
}
