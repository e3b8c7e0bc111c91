package codegen

import (
	"github.com/llir/llvm/ir/types"

	"github.com/orizon-lang/orizon/internal/mir"
)

// llvmType translates a MIR Kind to its LLVM type, per spec §4.5's type
// mapping. Pointer-shaped values (MIR's Pointer and Opaque kinds alike) are
// represented uniformly as an opaque i8*, the runtime-boxed value shape
// internal/runtimeabi's nova_* calls traffic in.
func (cg *LLVMCodeGen) llvmType(k mir.Kind) types.Type {
	if t, ok := cg.typeCache[k]; ok {
		return t
	}

	var t types.Type

	switch k {
	case mir.KindVoid:
		t = types.Void
	case mir.KindI1:
		t = types.I1
	case mir.KindI64:
		t = types.I64
	case mir.KindF64:
		t = types.Double
	case mir.KindPointer, mir.KindOpaque:
		t = types.NewPointer(types.I8)
	default:
		t = types.I64
	}

	cg.typeCache[k] = t

	return t
}
