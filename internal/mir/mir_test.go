package mir_test

import (
	"testing"

	"github.com/orizon-lang/orizon/internal/hir"
	"github.com/orizon-lang/orizon/internal/mir"
	"github.com/orizon-lang/orizon/internal/parser"
)

func mustLowerMIR(t *testing.T, src string) *mir.Module {
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

	return mirMod
}

func findMIRFunc(mod *mir.Module, name string) *mir.Function {
	for _, fn := range mod.Functions {
		if fn.Name == name {
			return fn
		}
	}

	return nil
}

func countGotoTerminators(fn *mir.Function) int {
	n := 0

	for _, b := range fn.Blocks {
		if _, ok := b.Terminator.(*mir.GotoTerminator); ok {
			n++
		}
	}

	return n
}

func countSwitchIntTerminators(fn *mir.Function) int {
	n := 0

	for _, b := range fn.Blocks {
		if _, ok := b.Terminator.(*mir.SwitchIntTerminator); ok {
			n++
		}
	}

	return n
}

func TestEveryBlockHasExactlyOneTerminator(t *testing.T) {
	mod := mustLowerMIR(t, `
	function f(x) {
		while (x) {
			if (x) { break; }
			continue;
		}
		return x;
	}
	`)

	fn := findMIRFunc(mod, "f")
	if fn == nil {
		t.Fatalf("expected function 'f' in MIR module")
	}

	for _, b := range fn.Blocks {
		if !b.IsTerminated() {
			t.Fatalf("block %q has no terminator", b.Label)
		}
	}
}

func TestCallLowersToTerminatorWithContinuation(t *testing.T) {
	mod := mustLowerMIR(t, `
	function g(x) { return x + 1; }
	function f(x) {
		let y = g(x);
		return y + 1;
	}
	`)

	fn := findMIRFunc(mod, "f")
	if fn == nil {
		t.Fatalf("expected function 'f' in MIR module")
	}

	var calls int

	var sawTrailingAdd bool

	for _, b := range fn.Blocks {
		call, ok := b.Terminator.(*mir.CallTerminator)
		if !ok {
			continue
		}

		calls++

		if call.CalleeName != "g" {
			t.Fatalf("expected call to 'g', got %q", call.CalleeName)
		}

		if call.Target == nil || len(call.Target.Statements) == 0 {
			t.Fatalf("expected the continuation block to carry the `y + 1` statement that follows the call")
		}

		for _, stmt := range call.Target.Statements {
			if asn, ok := stmt.(*mir.AssignStmt); ok {
				if _, ok := asn.RHS.(*mir.BinaryOpRvalue); ok {
					sawTrailingAdd = true
				}
			}
		}
	}

	if calls != 1 {
		t.Fatalf("expected exactly one Call terminator, got %d", calls)
	}

	if !sawTrailingAdd {
		t.Fatalf("expected the binary op following the call to land in its continuation block, not a stale block")
	}
}

func TestWhileLoopBreakContinueTargets(t *testing.T) {
	mod := mustLowerMIR(t, `
	function f(x) {
		while (x) {
			if (x) { break; }
			continue;
		}
		return x;
	}
	`)

	fn := findMIRFunc(mod, "f")
	if fn == nil {
		t.Fatalf("expected function 'f' in MIR module")
	}

	gotos := countGotoTerminators(fn)
	if gotos == 0 {
		t.Fatalf("expected break/continue to resolve to Goto terminators")
	}

	for _, b := range fn.Blocks {
		if _, ok := b.Terminator.(*mir.UnreachableTerminator); ok {
			t.Fatalf("block %q is Unreachable — break/continue failed to resolve a target", b.Label)
		}
	}
}

func TestDoWhileLoopHeaderIsBodyNotCond(t *testing.T) {
	mod := mustLowerMIR(t, `
	function f(x) {
		let i = 0;
		do {
			i = i + 1;
		} while (i < x);
		return i;
	}
	`)

	fn := findMIRFunc(mod, "f")
	if fn == nil {
		t.Fatalf("expected function 'f' in MIR module")
	}

	for _, b := range fn.Blocks {
		if !b.IsTerminated() {
			t.Fatalf("block %q has no terminator", b.Label)
		}
	}

	sw := countSwitchIntTerminators(fn)
	if sw == 0 {
		t.Fatalf("expected at least one SwitchInt terminator lowering the do-while condition")
	}
}

func TestForLoopContinueRunsUpdateBeforeCond(t *testing.T) {
	mod := mustLowerMIR(t, `
	function f() {
		let sum = 0;
		for (let i = 0; i < 10; i = i + 1) {
			if (i == 5) { continue; }
			sum = sum + i;
		}
		return sum;
	}
	`)

	fn := findMIRFunc(mod, "f")
	if fn == nil {
		t.Fatalf("expected function 'f' in MIR module")
	}

	for _, b := range fn.Blocks {
		if _, ok := b.Terminator.(*mir.UnreachableTerminator); ok {
			t.Fatalf("block %q is Unreachable — for-loop continue failed to resolve its update-block target", b.Label)
		}
	}
}

func TestSwitchOwnershipAndBreakTarget(t *testing.T) {
	mod := mustLowerMIR(t, `
	function f(x) {
		switch (x) {
		case 1:
			x;
			break;
		default:
			x;
		}
		return x;
	}
	`)

	fn := findMIRFunc(mod, "f")
	if fn == nil {
		t.Fatalf("expected function 'f' in MIR module")
	}

	for _, b := range fn.Blocks {
		if !b.IsTerminated() {
			t.Fatalf("block %q has no terminator", b.Label)
		}
	}
}

func TestClosureCopyInCopyOutAndCallSiteRewrite(t *testing.T) {
	mod := mustLowerMIR(t, `
	function makeCounter() {
		let count = 0;
		function inc() {
			count = count + 1;
			return count;
		}
		return inc;
	}
	function useCounter() {
		let c = makeCounter();
		return c();
	}
	`)

	incFn := findMIRFunc(mod, "inc")
	if incFn == nil {
		t.Fatalf("expected function 'inc' in MIR module")
	}

	if len(incFn.Params) == 0 || incFn.Params[len(incFn.Params)-1].Name != "__env" {
		t.Fatalf("expected inc's last MIR param to be __env, got %+v", incFn.Params)
	}

	var sawCopyIn, sawCopyOut bool

	for _, b := range incFn.Blocks {
		for _, stmt := range b.Statements {
			asn, ok := stmt.(*mir.AssignStmt)
			if !ok {
				continue
			}

			agg, ok := asn.RHS.(*mir.AggregateRvalue)
			if !ok {
				continue
			}

			switch agg.Kind {
			case mir.AggGetField:
				sawCopyIn = true
			case mir.AggSetField:
				sawCopyOut = true
			}
		}
	}

	if !sawCopyIn {
		t.Fatalf("expected a Copy-In AggGetField reading 'count' out of __env at inc's entry")
	}

	if !sawCopyOut {
		t.Fatalf("expected a Copy-Out AggSetField writing 'count' back into __env before inc's return")
	}

	makeCounterFn := findMIRFunc(mod, "makeCounter")
	if makeCounterFn == nil {
		t.Fatalf("expected function 'makeCounter' in MIR module")
	}

	var sawClosurePackage bool

	for _, b := range makeCounterFn.Blocks {
		ret, ok := b.Terminator.(*mir.ReturnTerminator)
		if !ok || ret.Operand == nil {
			continue
		}

		if _, ok := ret.Operand.(*mir.CopyOperand); ok {
			sawClosurePackage = true
		}
	}

	if !sawClosurePackage {
		t.Fatalf("expected makeCounter's return to package a {FuncRef, env} closure value")
	}

	useCounterFn := findMIRFunc(mod, "useCounter")
	if useCounterFn == nil {
		t.Fatalf("expected function 'useCounter' in MIR module")
	}

	var rewrittenCall *mir.CallTerminator

	for _, b := range useCounterFn.Blocks {
		call, ok := b.Terminator.(*mir.CallTerminator)
		if !ok {
			continue
		}

		if call.CalleeName == "inc" {
			rewrittenCall = call
		}
	}

	if rewrittenCall == nil {
		t.Fatalf("expected the `c()` call to be rewritten to call 'inc' directly")
	}

	if len(rewrittenCall.Args) == 0 {
		t.Fatalf("expected the rewritten call to 'inc' to carry the closure's captured env as its first argument")
	}
}

func TestDominanceExcludesUnreachableFromLoopBody(t *testing.T) {
	mod := mustLowerMIR(t, `
	function f(x) {
		outer: for (let i = 0; i < x; i = i + 1) {
			if (i == 0) { break outer; }
		}
		return x;
	}
	`)

	fn := findMIRFunc(mod, "f")
	if fn == nil {
		t.Fatalf("expected function 'f' in MIR module")
	}

	if fn.Entry() == nil {
		t.Fatalf("expected a non-empty entry block")
	}

	for _, b := range fn.Blocks {
		if _, ok := b.Terminator.(*mir.UnreachableTerminator); ok {
			t.Fatalf("block %q is Unreachable — the dead block after `break outer` kept the loop from being identified", b.Label)
		}
	}
}

func TestPlaceReturnRendersAsUnderscoreZero(t *testing.T) {
	place := &mir.Place{PKind: mir.PlaceReturn}
	if got := place.String(); got != "_0" {
		t.Fatalf("expected return place to render as _0, got %q", got)
	}
}

func TestTranslateKindTable(t *testing.T) {
	cases := []struct {
		in   hir.Kind
		want mir.Kind
	}{
		{hir.KindAny, mir.KindI64},
		{hir.KindI64, mir.KindI64},
		{hir.KindNull, mir.KindI64},
		{hir.KindUndefined, mir.KindI64},
		{hir.KindBool, mir.KindI1},
		{hir.KindF64, mir.KindF64},
		{hir.KindString, mir.KindPointer},
		{hir.KindPointer, mir.KindPointer},
		{hir.KindArray, mir.KindOpaque},
		{hir.KindStruct, mir.KindOpaque},
		{hir.KindFunction, mir.KindOpaque},
		{hir.KindVoid, mir.KindVoid},
	}

	for _, c := range cases {
		if got := mir.TranslateKind(c.in); got != c.want {
			t.Fatalf("TranslateKind(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}
