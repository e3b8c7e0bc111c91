package codegen_test

import (
	"strings"
	"testing"

	"github.com/orizon-lang/orizon/internal/codegen"
	"github.com/orizon-lang/orizon/internal/hir"
	"github.com/orizon-lang/orizon/internal/mir"
	"github.com/orizon-lang/orizon/internal/parser"
)

func generate(t *testing.T, src string) *codegen.LLVMCodeGen {
	t.Helper()

	prog, diags := parser.ParseProgram(src, "t.ts")
	if diags.HasErrors() {
		t.Fatalf("unexpected parse diagnostics for %q:\n%s", src, diags.Format())
	}

	hirMod, hirDiags := hir.GenerateHIR(prog, "t")
	if hirDiags.HasFatal() {
		t.Fatalf("unexpected fatal HIR diagnostics for %q:\n%s", src, hirDiags.Format())
	}

	mirMod, mirDiags := mir.GenerateMIR(hirMod, "t")
	if mirDiags.HasFatal() {
		t.Fatalf("unexpected fatal MIR diagnostics for %q:\n%s", src, mirDiags.Format())
	}

	cg := codegen.New("t")
	if ok := cg.Generate(mirMod); !ok {
		t.Fatalf("codegen failed for %q:\n%s", src, cg.Diagnostics().Format())
	}

	return cg
}

func TestAddFunctionEmitsIntegerArithmetic(t *testing.T) {
	cg := generate(t, `function add(a: number, b: number): number { return a + b; }`)
	ir := cg.Module().String()

	if !strings.Contains(ir, "define i64 @add(i64") {
		t.Errorf("expected an i64 @add function signature, got:\n%s", ir)
	}

	if !strings.Contains(ir, "add i64") {
		t.Errorf("expected an `add i64` instruction, got:\n%s", ir)
	}
}

func TestEveryBlockInEveryFunctionHasATerminator(t *testing.T) {
	cg := generate(t, `
		function classify(n: number): number {
			if (n < 0) {
				return -1;
			} else if (n === 0) {
				return 0;
			}
			return 1;
		}
	`)

	for _, fn := range cg.Module().Funcs {
		for _, b := range fn.Blocks {
			if b.Term == nil {
				t.Errorf("function %s: block %s has no terminator", fn.Name(), b.LocalIdent.Name())
			}
		}
	}
}

func TestWhileLoopLowersToBranchesNotSwitch(t *testing.T) {
	cg := generate(t, `
		function sumTo(n: number): number {
			let total = 0;
			let i = 0;
			while (i < n) {
				total = total + i;
				i = i + 1;
			}
			return total;
		}
	`)
	ir := cg.Module().String()

	if !strings.Contains(ir, "br i1") {
		t.Errorf("expected at least one conditional branch for the loop test, got:\n%s", ir)
	}

	if strings.Contains(ir, "switch i64") {
		t.Errorf("two-way SwitchInt shapes should lower to br i1, not a real switch:\n%s", ir)
	}
}

func TestAllocaBackedLocalUsesLoadStoreDiscipline(t *testing.T) {
	cg := generate(t, `
		function counter(): number {
			let x = 0;
			x = x + 1;
			x = x + 1;
			return x;
		}
	`)
	ir := cg.Module().String()

	if !strings.Contains(ir, "alloca i64") {
		t.Errorf("expected a reassigned local to get a stack slot, got:\n%s", ir)
	}

	if !strings.Contains(ir, "load i64") || !strings.Contains(ir, "store i64") {
		t.Errorf("expected load/store discipline around the alloca, got:\n%s", ir)
	}
}

func TestClosureCreationRoutesThroughRuntimeABI(t *testing.T) {
	cg := generate(t, `
		function makeCounter(): () => number {
			let count = 0;
			function inc(): number {
				count = count + 1;
				return count;
			}
			return inc;
		}
	`)
	ir := cg.Module().String()

	for _, want := range []string{"@nova_closure_new", "@nova_object_new", "@nova_object_get_field", "@nova_object_set_field"} {
		if !strings.Contains(ir, want) {
			t.Errorf("expected closure codegen to declare/call %s, got:\n%s", want, ir)
		}
	}
}

func TestIntegerComparisonUsesSignedPredicate(t *testing.T) {
	cg := generate(t, `function lt(a: number, b: number): boolean { return a < b; }`)
	ir := cg.Module().String()

	if !strings.Contains(ir, "icmp slt i64") {
		t.Errorf("expected a signed slt predicate for an integer comparison, got:\n%s", ir)
	}
}

func TestMutuallyRecursiveFunctionsResolveRegardlessOfOrder(t *testing.T) {
	cg := generate(t, `
		function isEven(n: number): boolean {
			if (n === 0) { return true; }
			return isOdd(n - 1);
		}
		function isOdd(n: number): boolean {
			if (n === 0) { return false; }
			return isEven(n - 1);
		}
	`)
	ir := cg.Module().String()

	if !strings.Contains(ir, "call i1 @isOdd") {
		t.Errorf("expected isEven to call isOdd despite being declared first, got:\n%s", ir)
	}

	if !strings.Contains(ir, "call i1 @isEven") {
		t.Errorf("expected isOdd to call isEven, got:\n%s", ir)
	}
}
