package codegen

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/orizon-lang/orizon/internal/mir"
	"github.com/orizon-lang/orizon/internal/position"
	"github.com/orizon-lang/orizon/internal/runtimeabi"
)

// funcCodegen carries the working state for lowering one mir.Function,
// mirroring internal/mir/builder.go's own funcBuilder shape: a per-function
// cursor over a block/value lookup table, rather than one giant switch.
type funcCodegen struct {
	cg     *LLVMCodeGen
	mirFn  *mir.Function
	llvmFn *ir.Func

	blockOf  map[*mir.BasicBlock]*ir.Block
	allocaOf map[*mir.Place]*ir.InstAlloca
	valueOf  map[*mir.Place]value.Value
}

func (fb *funcCodegen) build() {
	for _, mb := range fb.mirFn.Blocks {
		fb.blockOf[mb] = fb.llvmFn.NewBlock(mb.Label)
	}

	entry := fb.blockOf[fb.mirFn.Entry()]

	for i, p := range fb.mirFn.Params {
		fb.valueOf[p] = fb.llvmFn.Params[i]
	}

	// Every Alloca-backed place gets its stack slot up front in the entry
	// block, per spec §4.5: pure SSA temporaries never reach this table.
	for _, p := range fb.mirFn.Locals {
		if p.Storage {
			fb.allocaOf[p] = entry.NewAlloca(fb.cg.llvmType(p.Type))
		}
	}

	for _, mb := range fb.mirFn.Blocks {
		llvmBlock := fb.blockOf[mb]

		for _, stmt := range mb.Statements {
			fb.lowerStatement(stmt, llvmBlock)
		}

		fb.lowerTerminator(mb, llvmBlock)
	}
}

func (fb *funcCodegen) lowerStatement(stmt mir.Statement, cur *ir.Block) {
	switch s := stmt.(type) {
	case *mir.AssignStmt:
		v := fb.lowerRvalue(s.RHS, cur, s.Dest)
		if s.Dest != nil && s.Dest.Type != mir.KindVoid {
			fb.writePlace(s.Dest, v, cur)
		}
	case *mir.StorageLiveStmt, *mir.StorageDeadStmt, *mir.NopStmt:
		// No runtime effect: storage is allocated up front in build(), and
		// Nova has no destructors to run at scope exit.
	default:
		fb.cg.diags.Errorf(position.Span{}, "unsupported MIR statement reaching codegen: %T", stmt)
	}
}

func (fb *funcCodegen) lowerTerminator(mb *mir.BasicBlock, cur *ir.Block) {
	switch t := mb.Terminator.(type) {
	case *mir.ReturnTerminator:
		if t.Operand == nil {
			cur.NewRet(nil)
		} else {
			cur.NewRet(fb.operand(t.Operand, cur))
		}

	case *mir.GotoTerminator:
		cur.NewBr(fb.blockOf[t.Target])

	case *mir.SwitchIntTerminator:
		fb.lowerSwitchInt(t, cur)

	case *mir.CallTerminator:
		fn := fb.resolveCallee(t.CalleeName)
		args := make([]value.Value, len(t.Args))

		for i, a := range t.Args {
			args[i] = fb.operand(a, cur)
		}

		call := cur.NewCall(fn, args...)
		if t.Dest != nil {
			fb.writePlace(t.Dest, call, cur)
		}

		cur.NewBr(fb.blockOf[t.Target])

	case *mir.AssertTerminator:
		// Not emitted by current lowering (shape-complete-only, spec §3);
		// a structural backend with no runtime check to attach simply
		// continues to Target.
		cur.NewBr(fb.blockOf[t.Target])

	case *mir.DropTerminator:
		// Not emitted by current lowering (Nova has no destructors).
		cur.NewBr(fb.blockOf[t.Target])

	case *mir.UnreachableTerminator:
		cur.NewUnreachable()

	default:
		fb.cg.diags.Fatalf(position.Span{}, "codegen invariant violation: unterminated or unknown terminator %T in block %q", mb.Terminator, mb.Label)
	}
}

// lowerSwitchInt handles both shapes SwitchIntTerminator carries: the
// two-way form every `CondBr`→`SwitchInt` lowering produces (a single
// {Value:1, Target} entry, translated straight to `br i1`), and a genuine
// multi-way dispatch, translated to `switch`.
func (fb *funcCodegen) lowerSwitchInt(t *mir.SwitchIntTerminator, cur *ir.Block) {
	disc := fb.operand(t.Discriminant, cur)

	if len(t.Targets) == 1 && t.Targets[0].Value == 1 {
		cond := fb.toBool(cur, disc, t.Discriminant.OperandType())
		cur.NewCondBr(cond, fb.blockOf[t.Targets[0].Target], fb.blockOf[t.Otherwise])

		return
	}

	cases := make([]*ir.Case, len(t.Targets))
	for i, tgt := range t.Targets {
		cases[i] = ir.NewCase(constant.NewInt(types.I64, tgt.Value), fb.blockOf[tgt.Target])
	}

	cur.NewSwitch(disc, fb.blockOf[t.Otherwise], cases...)
}

func (fb *funcCodegen) toBool(cur *ir.Block, v value.Value, k mir.Kind) value.Value {
	if k == mir.KindI1 {
		return v
	}

	return cur.NewICmp(enum.IPredNE, v, fb.zeroOf(k))
}

func (fb *funcCodegen) resolveCallee(name string) *ir.Func {
	if fn, ok := fb.cg.funcs[name]; ok {
		return fn
	}

	fb.cg.diags.Warnf(position.Span{}, "call to unresolved function %q lowered via a lazily declared external stub", name)

	fn := runtimeabi.DeclareRuntimeFunc(fb.cg.mod, name)
	fb.cg.funcs[name] = fn

	return fn
}

// ---- rvalues ----

func (fb *funcCodegen) lowerRvalue(rv mir.Rvalue, cur *ir.Block, dest *mir.Place) value.Value {
	switch r := rv.(type) {
	case *mir.UseRvalue:
		return fb.operand(r.Operand, cur)
	case *mir.BinaryOpRvalue:
		return fb.lowerBinOp(r.Op, r.Left, r.Right, cur)
	case *mir.CheckedBinaryOpRvalue:
		// Unused by current lowering (no overflow-checked numeric mode
		// exists yet); falls back to the unchecked op.
		return fb.lowerBinOp(r.Op, r.Left, r.Right, cur)
	case *mir.UnaryOpRvalue:
		return fb.lowerUnOp(r, cur)
	case *mir.CastRvalue:
		return fb.lowerCast(r, cur)
	case *mir.AggregateRvalue:
		return fb.lowerAggregate(r, cur, dest)
	case *mir.RefRvalue:
		return fb.addressOf(r.Place)
	case *mir.AddressOfRvalue:
		return fb.addressOf(r.Place)
	case *mir.LenRvalue:
		return fb.callRuntime(cur, runtimeabi.ArrayLen, fb.operand(r.Operand, cur))
	case *mir.DiscriminantRvalue:
		// Unused by current lowering (Nova has no tagged-union values yet).
		return constant.NewInt(types.I64, 0)
	default:
		fb.cg.diags.Errorf(position.Span{}, "unsupported MIR rvalue reaching codegen: %T", rv)

		return constant.NewInt(types.I64, 0)
	}
}

func (fb *funcCodegen) addressOf(p *mir.Place) value.Value {
	if a, ok := fb.allocaOf[p]; ok {
		return a
	}

	fb.cg.diags.Errorf(position.Span{}, "cannot take the address of SSA place %s (not Alloca-backed)", p.String())

	return constant.NewNull(types.NewPointer(types.I8))
}

func (fb *funcCodegen) lowerBinOp(op mir.BinOp, leftOp, rightOp mir.Operand, cur *ir.Block) value.Value {
	l := fb.operand(leftOp, cur)
	r := fb.operand(rightOp, cur)
	isFloat := leftOp.OperandType() == mir.KindF64 || rightOp.OperandType() == mir.KindF64

	switch op {
	case mir.BinAdd:
		if isFloat {
			return cur.NewFAdd(l, r)
		}

		return cur.NewAdd(l, r)
	case mir.BinSub:
		if isFloat {
			return cur.NewFSub(l, r)
		}

		return cur.NewSub(l, r)
	case mir.BinMul:
		if isFloat {
			return cur.NewFMul(l, r)
		}

		return cur.NewMul(l, r)
	case mir.BinDiv:
		if isFloat {
			return cur.NewFDiv(l, r)
		}
		// Signed division, per spec §4.5's "signed integer ops".
		return cur.NewSDiv(l, r)
	case mir.BinRem:
		if isFloat {
			return cur.NewFRem(l, r)
		}

		return cur.NewSRem(l, r)
	case mir.BinAnd:
		return cur.NewAnd(l, r)
	case mir.BinOr:
		return cur.NewOr(l, r)
	case mir.BinXor:
		return cur.NewXor(l, r)
	case mir.BinShl:
		return cur.NewShl(l, r)
	case mir.BinShr:
		return cur.NewAShr(l, r)
	case mir.BinUShr:
		return cur.NewLShr(l, r)
	case mir.BinEq, mir.BinNe, mir.BinLt, mir.BinLe, mir.BinGt, mir.BinGe:
		return fb.lowerComparison(op, l, r, isFloat, cur)
	default:
		fb.cg.diags.Errorf(position.Span{}, "unsupported MIR binary op reaching codegen: %v", op)

		return constant.NewInt(types.I64, 0)
	}
}

// lowerComparison emits a signed-predicate `icmp` for integers (spec §4.5)
// or an ordered `fcmp` for floats.
func (fb *funcCodegen) lowerComparison(op mir.BinOp, l, r value.Value, isFloat bool, cur *ir.Block) value.Value {
	if isFloat {
		var pred enum.FPred

		switch op {
		case mir.BinEq:
			pred = enum.FPredOEQ
		case mir.BinNe:
			pred = enum.FPredONE
		case mir.BinLt:
			pred = enum.FPredOLT
		case mir.BinLe:
			pred = enum.FPredOLE
		case mir.BinGt:
			pred = enum.FPredOGT
		default:
			pred = enum.FPredOGE
		}

		return cur.NewFCmp(pred, l, r)
	}

	var pred enum.IPred

	switch op {
	case mir.BinEq:
		pred = enum.IPredEQ
	case mir.BinNe:
		pred = enum.IPredNE
	case mir.BinLt:
		pred = enum.IPredSLT
	case mir.BinLe:
		pred = enum.IPredSLE
	case mir.BinGt:
		pred = enum.IPredSGT
	default:
		pred = enum.IPredSGE
	}

	return cur.NewICmp(pred, l, r)
}

func (fb *funcCodegen) lowerUnOp(r *mir.UnaryOpRvalue, cur *ir.Block) value.Value {
	v := fb.operand(r.Operand, cur)

	switch r.Op {
	case mir.UnNeg:
		if r.Operand.OperandType() == mir.KindF64 {
			return cur.NewFNeg(v)
		}

		return cur.NewSub(constant.NewInt(types.I64, 0), v)
	case mir.UnNot:
		allOnes := constant.NewInt(types.I64, -1)
		if r.Operand.OperandType() == mir.KindI1 {
			allOnes = constant.NewInt(types.I1, 1)
		}

		return cur.NewXor(v, allOnes)
	default:
		return v
	}
}

func (fb *funcCodegen) lowerCast(r *mir.CastRvalue, cur *ir.Block) value.Value {
	v := fb.operand(r.Operand, cur)
	from := r.Operand.OperandType()
	to := r.To

	switch {
	case from == to:
		return v
	case from == mir.KindI64 && to == mir.KindF64:
		return cur.NewSIToFP(v, types.Double)
	case from == mir.KindF64 && to == mir.KindI64:
		return cur.NewFPToSI(v, types.I64)
	case from == mir.KindI1 && to == mir.KindI64:
		return cur.NewZExt(v, types.I64)
	case from == mir.KindI64 && to == mir.KindI1:
		return cur.NewICmp(enum.IPredNE, v, constant.NewInt(types.I64, 0))
	case (from == mir.KindPointer || from == mir.KindOpaque) && to == mir.KindI64:
		return cur.NewPtrToInt(v, types.I64)
	case from == mir.KindI64 && (to == mir.KindPointer || to == mir.KindOpaque):
		return cur.NewIntToPtr(v, types.NewPointer(types.I8))
	default:
		return cur.NewBitCast(v, fb.cg.llvmType(to))
	}
}

// ---- aggregates, routed through the nova_* runtime ABI (internal/runtimeabi) ----

func (fb *funcCodegen) lowerAggregate(r *mir.AggregateRvalue, cur *ir.Block, dest *mir.Place) value.Value {
	switch r.Kind {
	case mir.AggStruct:
		if len(r.Elems) == 2 {
			if _, ok := r.Elems[0].(*mir.FuncRefOperand); ok {
				fn := fb.operand(r.Elems[0], cur)
				env := fb.operand(r.Elems[1], cur)

				return fb.callRuntime(cur, runtimeabi.ClosureNew, fn, env)
			}
		}

		obj := fb.callRuntime(cur, runtimeabi.ObjectNew, constant.NewInt(types.I64, int64(len(r.Elems))))

		for i, e := range r.Elems {
			boxed := fb.box(cur, fb.operand(e, cur), e.OperandType())
			fb.callRuntimeVoid(cur, runtimeabi.ObjectSetField, obj, constant.NewInt(types.I64, int64(i)), boxed)
		}

		return obj

	case mir.AggArray:
		arr := fb.callRuntime(cur, runtimeabi.ArrayNew, constant.NewInt(types.I64, int64(len(r.Elems))))

		for i, e := range r.Elems {
			boxed := fb.box(cur, fb.operand(e, cur), e.OperandType())
			fb.callRuntimeVoid(cur, runtimeabi.ArraySet, arr, constant.NewInt(types.I64, int64(i)), boxed)
		}

		return arr

	case mir.AggGetField:
		base := fb.operand(r.Base, cur)

		if r.FieldIndex == 1 && r.FieldName == "__env" {
			return fb.callRuntime(cur, runtimeabi.ClosureGetEnv, base)
		}

		if r.FieldIndex == 0 && r.FieldName == "__fn" {
			return fb.callRuntime(cur, runtimeabi.ClosureGetFn, base)
		}

		boxed := fb.callRuntime(cur, runtimeabi.ObjectGetField, base, constant.NewInt(types.I64, int64(r.FieldIndex)))

		return fb.unbox(cur, boxed, destKind(dest))

	case mir.AggSetField:
		base := fb.operand(r.Base, cur)
		boxed := fb.box(cur, fb.operand(r.Value, cur), r.Value.OperandType())
		fb.callRuntimeVoid(cur, runtimeabi.ObjectSetField, base, constant.NewInt(types.I64, int64(r.FieldIndex)), boxed)

		return constant.NewInt(types.I64, 0)

	case mir.AggGetElement:
		base := fb.operand(r.Base, cur)
		idx := fb.operand(r.Index, cur)
		boxed := fb.callRuntime(cur, runtimeabi.ArrayGet, base, idx)

		return fb.unbox(cur, boxed, destKind(dest))

	case mir.AggSetElement:
		base := fb.operand(r.Base, cur)
		idx := fb.operand(r.Index, cur)
		boxed := fb.box(cur, fb.operand(r.Value, cur), r.Value.OperandType())
		fb.callRuntimeVoid(cur, runtimeabi.ArraySet, base, idx, boxed)

		return constant.NewInt(types.I64, 0)

	default:
		fb.cg.diags.Errorf(position.Span{}, "unsupported MIR aggregate kind reaching codegen: %v", r.Kind)

		return constant.NewInt(types.I64, 0)
	}
}

func destKind(dest *mir.Place) mir.Kind {
	if dest == nil {
		return mir.KindI64
	}

	return dest.Type
}

// box/unbox adapt a real-typed value to and from the single-i64-slot
// representation internal/runtimeabi's object/array/closure calls traffic
// in, matching spec §4.4's own Any-collapses-to-I64 translation table
// rather than inventing a second value representation at the runtime
// boundary.
func (fb *funcCodegen) box(cur *ir.Block, v value.Value, k mir.Kind) value.Value {
	switch k {
	case mir.KindF64:
		return cur.NewBitCast(v, types.I64)
	case mir.KindPointer, mir.KindOpaque:
		return cur.NewPtrToInt(v, types.I64)
	case mir.KindI1:
		return cur.NewZExt(v, types.I64)
	default:
		return v
	}
}

func (fb *funcCodegen) unbox(cur *ir.Block, v value.Value, k mir.Kind) value.Value {
	switch k {
	case mir.KindF64:
		return cur.NewBitCast(v, types.Double)
	case mir.KindPointer, mir.KindOpaque:
		return cur.NewIntToPtr(v, types.NewPointer(types.I8))
	case mir.KindI1:
		return cur.NewICmp(enum.IPredNE, v, constant.NewInt(types.I64, 0))
	default:
		return v
	}
}

func (fb *funcCodegen) callRuntime(cur *ir.Block, name string, args ...value.Value) value.Value {
	fn, ok := fb.cg.funcs[name]
	if !ok {
		fn = runtimeabi.DeclareRuntimeFunc(fb.cg.mod, name)
		fb.cg.funcs[name] = fn
	}

	return cur.NewCall(fn, args...)
}

func (fb *funcCodegen) callRuntimeVoid(cur *ir.Block, name string, args ...value.Value) {
	fb.callRuntime(cur, name, args...)
}

func (fb *funcCodegen) zeroOf(k mir.Kind) value.Value {
	switch k {
	case mir.KindF64:
		return constant.NewFloat(types.Double, 0)
	case mir.KindPointer, mir.KindOpaque:
		return constant.NewNull(types.NewPointer(types.I8))
	case mir.KindI1:
		return constant.NewInt(types.I1, 0)
	default:
		return constant.NewInt(types.I64, 0)
	}
}

// ---- operands and places ----

func (fb *funcCodegen) operand(op mir.Operand, cur *ir.Block) value.Value {
	switch o := op.(type) {
	case *mir.CopyOperand:
		return fb.readPlace(o.Place, cur)
	case *mir.MoveOperand:
		return fb.readPlace(o.Place, cur)
	case *mir.ConstantOperand:
		return fb.constValue(o)
	case *mir.FuncRefOperand:
		fn := fb.resolveCallee(o.Name)

		return cur.NewBitCast(fn, types.NewPointer(types.I8))
	default:
		fb.cg.diags.Errorf(position.Span{}, "unsupported MIR operand reaching codegen: %T", op)

		return constant.NewInt(types.I64, 0)
	}
}

func (fb *funcCodegen) readPlace(p *mir.Place, cur *ir.Block) value.Value {
	if a, ok := fb.allocaOf[p]; ok {
		return cur.NewLoad(fb.cg.llvmType(p.Type), a)
	}

	if v, ok := fb.valueOf[p]; ok {
		return v
	}

	fb.cg.diags.Warnf(position.Span{}, "read of place %s before any assignment reaching it", p.String())

	return fb.zeroOf(p.Type)
}

func (fb *funcCodegen) writePlace(p *mir.Place, v value.Value, cur *ir.Block) {
	if a, ok := fb.allocaOf[p]; ok {
		cur.NewStore(v, a)

		return
	}

	fb.valueOf[p] = v
}

func (fb *funcCodegen) constValue(c *mir.ConstantOperand) value.Value {
	switch c.CKind {
	case mir.ConstInt:
		return constant.NewInt(types.I64, c.IntVal)
	case mir.ConstFloat:
		return constant.NewFloat(types.Double, c.FltVal)
	case mir.ConstBool:
		v := int64(0)
		if c.BoolVal {
			v = 1
		}

		return constant.NewInt(types.I1, v)
	case mir.ConstString:
		// String constants are interned by the runtime, not emitted inline
		// here (no global-string-pool pass exists in this backend yet);
		// lowered as a null opaque pointer placeholder.
		return constant.NewNull(types.NewPointer(types.I8))
	case mir.ConstNull:
		return constant.NewNull(types.NewPointer(types.I8))
	default:
		return constant.NewInt(types.I64, 0)
	}
}
