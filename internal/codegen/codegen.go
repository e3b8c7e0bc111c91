// Package codegen implements Nova's Stage 5 backend: a structural,
// no-further-analysis lowering of internal/mir into LLVM IR via
// github.com/llir/llvm, grounded on the builder-cursor shape
// other_examples/be56a685_ccuetoh-maqui-lang__pkg-ir.go.go demonstrates (a
// *ir.Module/*ir.Block cursor pair plus a name->value.Value lookup table).
package codegen

import (
	"fmt"
	"os"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/orizon-lang/orizon/internal/diagnostic"
	"github.com/orizon-lang/orizon/internal/mir"
	"github.com/orizon-lang/orizon/internal/position"
)

// LLVMCodeGen drives one MIR module's lowering into a single *ir.Module,
// per spec §4.5. It is used by exactly one goroutine for its lifetime,
// matching the rest of the pipeline's concurrency model (spec §5).
type LLVMCodeGen struct {
	mod   *ir.Module
	diags *diagnostic.Collector

	funcs     map[string]*ir.Func
	typeCache map[mir.Kind]types.Type
}

// New creates an empty LLVMCodeGen targeting a module named moduleName.
func New(moduleName string) *LLVMCodeGen {
	mod := ir.NewModule()
	mod.SourceFilename = moduleName

	return &LLVMCodeGen{
		mod:       mod,
		diags:     diagnostic.NewCollector(diagnostic.StageCodegen),
		funcs:     make(map[string]*ir.Func),
		typeCache: make(map[mir.Kind]types.Type),
	}
}

// Diagnostics returns every diagnostic Generate recorded.
func (cg *LLVMCodeGen) Diagnostics() *diagnostic.Collector { return cg.diags }

// Module exposes the underlying *ir.Module, e.g. for a caller that wants to
// run its own llir/llvm passes over the result.
func (cg *LLVMCodeGen) Module() *ir.Module { return cg.mod }

// Generate lowers mirModule into cg's LLVM module. It returns false if any
// fatal diagnostic was recorded (an internal-consistency violation — see
// verifyModule), matching the other stages' "stage aborts, driver is told
// to stop" invariant-violation handling (spec §7).
func (cg *LLVMCodeGen) Generate(mirModule *mir.Module) bool {
	// Pass 1: declare every function's signature up front so forward and
	// mutually-recursive calls resolve regardless of declaration order —
	// the same two-pass discipline internal/mir/builder.go's own skeleton
	// block-creation pass uses.
	for _, fn := range mirModule.Functions {
		cg.declareFunc(fn)
	}

	// Pass 2: lower each function's body.
	for _, fn := range mirModule.Functions {
		fb := &funcCodegen{
			cg:       cg,
			mirFn:    fn,
			llvmFn:   cg.funcs[fn.Name],
			blockOf:  make(map[*mir.BasicBlock]*ir.Block),
			allocaOf: make(map[*mir.Place]*ir.InstAlloca),
			valueOf:  make(map[*mir.Place]value.Value),
		}
		fb.build()
	}

	return cg.verifyModule()
}

func (cg *LLVMCodeGen) declareFunc(fn *mir.Function) {
	retType := cg.llvmType(fn.ReturnType)

	params := make([]*ir.Param, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = ir.NewParam(p.Name, cg.llvmType(p.Type))
	}

	llvmFn := cg.mod.NewFunc(fn.Name, retType, params...)
	cg.funcs[fn.Name] = llvmFn
}

// verifyModule is llir/llvm's equivalent of LLVM's verifyModule: llir/llvm
// has no runtime IR verifier of its own (no cgo, no system LLVM), so Nova's
// own minimal structural check stands in, per spec §4.5's "final
// verifyModule-equivalent check" — every emitted block must end in exactly
// one terminator instruction.
func (cg *LLVMCodeGen) verifyModule() bool {
	for _, fn := range cg.mod.Funcs {
		for _, block := range fn.Blocks {
			if block.Term == nil {
				cg.diags.Fatalf(position.Span{}, "codegen invariant violation: block %q in function %q has no terminator", block.LocalIdent.Name(), fn.Name())
			}
		}
	}

	return !cg.diags.HasFatal()
}

// EmitLLVMIR writes the module's textual LLVM IR form to path.
func (cg *LLVMCodeGen) EmitLLVMIR(path string) error {
	return os.WriteFile(path, []byte(cg.mod.String()), 0o644)
}

// unimplementedExternalInterface names a Stage-5 boundary spec.md leaves as
// a named, unimplemented external interface: object/executable emission and
// JIT execution both require a system LLVM toolchain (`llc`, `clang`) or a
// JIT engine, which is out of scope per spec.md's explicit scope cut — see
// DESIGN.md.
func unimplementedExternalInterface(what string) error {
	return fmt.Errorf("codegen: %s is a named external interface not implemented by this backend (requires a system LLVM toolchain, out of scope)", what)
}

// EmitBitcode is a named, unimplemented external interface (see
// unimplementedExternalInterface).
func (cg *LLVMCodeGen) EmitBitcode(path string) error { return unimplementedExternalInterface("bitcode emission") }

// EmitObject is a named, unimplemented external interface (see
// unimplementedExternalInterface).
func (cg *LLVMCodeGen) EmitObject(path string) error { return unimplementedExternalInterface("object emission") }

// EmitAssembly is a named, unimplemented external interface (see
// unimplementedExternalInterface).
func (cg *LLVMCodeGen) EmitAssembly(path string) error {
	return unimplementedExternalInterface("target assembly emission")
}

// EmitExecutable is a named, unimplemented external interface (see
// unimplementedExternalInterface).
func (cg *LLVMCodeGen) EmitExecutable(path string) error {
	return unimplementedExternalInterface("executable linking")
}

// ExecuteMain is a named, unimplemented external interface: JIT execution
// is explicitly out of scope (see unimplementedExternalInterface). It
// records that interface's error message as a warning diagnostic and
// returns -1.
func (cg *LLVMCodeGen) ExecuteMain() int {
	cg.diags.Warnf(position.Span{}, "%s", unimplementedExternalInterface("JIT execution").Error())

	return -1
}
