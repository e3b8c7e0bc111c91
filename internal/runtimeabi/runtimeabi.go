// Package runtimeabi documents the `nova_*` runtime intrinsics spec §6
// names and lazily declares their LLVM signatures for internal/codegen.
// The runtime library's implementation is out of scope (spec.md's explicit
// Non-goal): this package is a collaborator stub naming the contract, not
// an implementation of it.
package runtimeabi

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
)

// Every Nova value that crosses a runtime-ABI boundary (an object field, an
// array element, a closure's function pointer or environment) is carried as
// a single 64-bit slot: an i64 bit pattern, a bitcast double, or a
// ptrtoint'd pointer. This mirrors the I64-for-Any collapse spec §4.4's own
// type-translation table already applies to HIR's Any kind — codegen does
// not invent a second, incompatible value representation for the runtime
// boundary.
//
// Reference signatures (documentation only; DeclareRuntimeFunc below is
// the actual LLVM declaration each name lazily produces):
//
//	func nova_object_new(fieldCount int64) unsafe.Pointer
//	func nova_object_get_field(obj unsafe.Pointer, index int64) int64
//	func nova_object_set_field(obj unsafe.Pointer, index int64, val int64)
//	func nova_value_array_new(length int64) unsafe.Pointer
//	func nova_value_array_get(arr unsafe.Pointer, index int64) int64
//	func nova_value_array_set(arr unsafe.Pointer, index int64, val int64)
//	func nova_value_array_len(arr unsafe.Pointer) int64
//	func nova_closure_new(fn unsafe.Pointer, env unsafe.Pointer) unsafe.Pointer
//	func nova_closure_get_fn(closure unsafe.Pointer) unsafe.Pointer
//	func nova_closure_get_env(closure unsafe.Pointer) unsafe.Pointer
//	func nova_print(val int64)
const (
	ObjectNew      = "nova_object_new"
	ObjectGetField = "nova_object_get_field"
	ObjectSetField = "nova_object_set_field"
	ArrayNew       = "nova_value_array_new"
	ArrayGet       = "nova_value_array_get"
	ArraySet       = "nova_value_array_set"
	ArrayLen       = "nova_value_array_len"
	ClosureNew     = "nova_closure_new"
	ClosureGetFn   = "nova_closure_get_fn"
	ClosureGetEnv  = "nova_closure_get_env"
	Print          = "nova_print"
)

func ptrType() *types.PointerType { return types.NewPointer(types.I8) }

// signatures maps each nova_* name to its LLVM parameter/return shape.
// Populated lazily by signature() rather than at package init, since
// *types.PointerType values aren't comparable constants.
func signature(name string) (params []types.Type, ret types.Type, ok bool) {
	ptr := ptrType()

	switch name {
	case ObjectNew:
		return []types.Type{types.I64}, ptr, true
	case ObjectGetField:
		return []types.Type{ptr, types.I64}, types.I64, true
	case ObjectSetField:
		return []types.Type{ptr, types.I64, types.I64}, types.Void, true
	case ArrayNew:
		return []types.Type{types.I64}, ptr, true
	case ArrayGet:
		return []types.Type{ptr, types.I64}, types.I64, true
	case ArraySet:
		return []types.Type{ptr, types.I64, types.I64}, types.Void, true
	case ArrayLen:
		return []types.Type{ptr}, types.I64, true
	case ClosureNew:
		return []types.Type{ptr, ptr}, ptr, true
	case ClosureGetFn:
		return []types.Type{ptr}, ptr, true
	case ClosureGetEnv:
		return []types.Type{ptr}, ptr, true
	case Print:
		return []types.Type{types.I64}, types.Void, true
	default:
		return nil, nil, false
	}
}

// DeclareRuntimeFunc lazily declares name's external LLVM signature in mod
// (inserting it once, reusing the existing declaration on later calls), per
// spec §4.5's "runtime functions are declared lazily". Unknown names fall
// back to a generic `i64 name(...)` vararg declaration: codegen's own
// structural-lowering contract, not an endorsement of the name as a real
// Nova intrinsic.
func DeclareRuntimeFunc(mod *ir.Module, name string) *ir.Func {
	for _, f := range mod.Funcs {
		if f.Name() == name {
			return f
		}
	}

	params, ret, ok := signature(name)
	if !ok {
		fn := mod.NewFunc(name, types.I64)
		fn.Sig.Variadic = true

		return fn
	}

	irParams := make([]*ir.Param, len(params))
	for i, t := range params {
		irParams[i] = ir.NewParam("", t)
	}

	return mod.NewFunc(name, ret, irParams...)
}
