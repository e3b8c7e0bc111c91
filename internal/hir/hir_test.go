package hir_test

import (
	"testing"

	"github.com/orizon-lang/orizon/internal/hir"
	"github.com/orizon-lang/orizon/internal/parser"
)

func mustLower(t *testing.T, src string) *hir.Module {
	t.Helper()

	prog, diags := parser.ParseProgram(src, "t.ts")
	if diags.HasErrors() {
		t.Fatalf("unexpected parse diagnostics for %q:\n%s", src, diags.Format())
	}

	mod, hirDiags := hir.GenerateHIR(prog, "t")
	if hirDiags.HasFatal() {
		t.Fatalf("unexpected fatal HIR diagnostics for %q:\n%s", src, hirDiags.Format())
	}

	return mod
}

func findFunc(mod *hir.Module, name string) *hir.Function {
	for _, fn := range mod.Functions {
		if fn.Name == name {
			return fn
		}
	}

	return nil
}

func blockLabels(fn *hir.Function) []string {
	var labels []string
	for _, b := range fn.Blocks {
		labels = append(labels, b.Label)
	}

	return labels
}

func hasLabel(labels []string, want string) bool {
	for _, l := range labels {
		if l == want {
			return true
		}
	}

	return false
}

func TestIfStructuralBlockNaming(t *testing.T) {
	mod := mustLower(t, "function f(x) { if (x) { x; } else { x; } }")

	fn := findFunc(mod, "f")
	if fn == nil {
		t.Fatalf("expected function 'f' in module")
	}

	labels := blockLabels(fn)
	for _, want := range []string{"if.then", "if.else", "if.end"} {
		if !hasLabel(labels, want) {
			t.Fatalf("expected block %q among %v", want, labels)
		}
	}
}

func TestWhileStructuralBlockNaming(t *testing.T) {
	mod := mustLower(t, "function f(x) { while (x) { x; } }")

	fn := findFunc(mod, "f")
	labels := blockLabels(fn)

	for _, want := range []string{"while.cond", "while.body", "while.end"} {
		if !hasLabel(labels, want) {
			t.Fatalf("expected block %q among %v", want, labels)
		}
	}
}

func TestForStructuralBlockNaming(t *testing.T) {
	mod := mustLower(t, "function f() { for (let i = 0; i < 10; i++) { i; } }")

	fn := findFunc(mod, "f")
	labels := blockLabels(fn)

	for _, want := range []string{"for.cond", "for.body", "for.update", "for.end"} {
		if !hasLabel(labels, want) {
			t.Fatalf("expected block %q among %v", want, labels)
		}
	}
}

func TestBreakContinueEmitPseudoOps(t *testing.T) {
	mod := mustLower(t, "function f(x) { while (x) { if (x) { break; } continue; } }")

	fn := findFunc(mod, "f")

	var sawBreak, sawContinue bool

	for _, b := range fn.Blocks {
		for _, instr := range b.Instructions {
			if instr.Op == hir.OpBreak {
				sawBreak = true
			}

			if instr.Op == hir.OpContinue {
				sawContinue = true
			}
		}
	}

	if !sawBreak {
		t.Fatalf("expected an OpBreak instruction")
	}

	if !sawContinue {
		t.Fatalf("expected an OpContinue instruction")
	}
}

func TestSwitchStructuralBlockNaming(t *testing.T) {
	mod := mustLower(t, "function f(x) { switch (x) { case 1: x; break; default: x; } }")

	fn := findFunc(mod, "f")
	labels := blockLabels(fn)

	if !hasLabel(labels, "switch.case_0") || !hasLabel(labels, "switch.default") || !hasLabel(labels, "switch.end") {
		t.Fatalf("expected switch.case_0/switch.default/switch.end among %v", labels)
	}
}

// TestClosureCaptureEnvironment mirrors the makeCounter/inc example: inc
// captures `count` from makeCounter's scope and is returned by name.
func TestClosureCaptureEnvironment(t *testing.T) {
	src := `
	function makeCounter() {
		let count = 0;
		function inc() {
			count = count + 1;
			return count;
		}
		return inc;
	}
	`
	mod := mustLower(t, src)

	capturedVars, ok := mod.ClosureCapturedVars["inc"]
	if !ok {
		t.Fatalf("expected 'inc' to be recorded as a closure")
	}

	if len(capturedVars) != 1 || capturedVars[0] != "count" {
		t.Fatalf("expected inc to capture exactly ['count'], got %v", capturedVars)
	}

	env, ok := mod.ClosureEnvironments["inc"]
	if !ok {
		t.Fatalf("expected an environment struct type for 'inc'")
	}

	if len(env.FieldNames) != 1 || env.FieldNames[0] != "count" {
		t.Fatalf("expected env field 'count', got %v", env.FieldNames)
	}

	incFn := findFunc(mod, "inc")
	if incFn == nil {
		t.Fatalf("expected function 'inc' in module")
	}

	lastParam := incFn.Params[len(incFn.Params)-1]
	if lastParam.Name != "__env" || lastParam.ValType != hir.KindPointer {
		t.Fatalf("expected trailing __env pointer parameter, got %+v", lastParam)
	}

	if mod.ClosureReturnedBy["makeCounter"] != "inc" {
		t.Fatalf("expected makeCounter to record closureReturnedBy = inc, got %q", mod.ClosureReturnedBy["makeCounter"])
	}
}

func TestTopLevelStatementsLowerIntoMain(t *testing.T) {
	mod := mustLower(t, "let x = 1 + 2;")

	main := findFunc(mod, "main")
	if main == nil {
		t.Fatalf("expected a synthesized 'main' function")
	}

	entry := main.Entry()
	if entry == nil || len(entry.Instructions) == 0 {
		t.Fatalf("expected main's entry block to contain lowered instructions")
	}

	var sawAlloca, sawStore bool

	for _, instr := range entry.Instructions {
		if instr.Op == hir.OpAlloca {
			sawAlloca = true
		}

		if instr.Op == hir.OpStore {
			sawStore = true
		}
	}

	if !sawAlloca || !sawStore {
		t.Fatalf("expected an Alloca(x) and a Store in main's entry block")
	}
}
