package parser

import (
	"testing"

	"github.com/orizon-lang/orizon/internal/ast"
)

func mustParse(t *testing.T, src string) *ast.Program {
	t.Helper()

	prog, diags := ParseProgram(src, "t.ts")
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics for %q:\n%s", src, diags.Format())
	}

	return prog
}

func TestArrowVsSequenceDisambiguation(t *testing.T) {
	prog := mustParse(t, "(a, b) => a + b;")

	if len(prog.Statements) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(prog.Statements))
	}

	stmt, ok := prog.Statements[0].(*ast.ExprStmt)
	if !ok {
		t.Fatalf("expected ExprStmt, got %T", prog.Statements[0])
	}

	arrow, ok := stmt.Expr.(*ast.ArrowFunctionExpr)
	if !ok {
		t.Fatalf("expected ArrowFunctionExpr, got %T", stmt.Expr)
	}

	if len(arrow.Params) != 2 {
		t.Fatalf("expected 2 params, got %d", len(arrow.Params))
	}

	if arrow.Expression == nil {
		t.Fatalf("expected concise arrow body")
	}
}

func TestParenExpressionIsNotArrow(t *testing.T) {
	prog := mustParse(t, "(a, b);")

	stmt := prog.Statements[0].(*ast.ExprStmt)
	if _, ok := stmt.Expr.(*ast.SequenceExpr); !ok {
		t.Fatalf("expected SequenceExpr for parenthesized comma expression, got %T", stmt.Expr)
	}
}

func TestBareIdentifierArrow(t *testing.T) {
	prog := mustParse(t, "x => x * 2;")

	stmt := prog.Statements[0].(*ast.ExprStmt)
	arrow, ok := stmt.Expr.(*ast.ArrowFunctionExpr)

	if !ok {
		t.Fatalf("expected ArrowFunctionExpr, got %T", stmt.Expr)
	}

	if len(arrow.Params) != 1 {
		t.Fatalf("expected 1 param, got %d", len(arrow.Params))
	}
}

func TestArrowWithBlockBody(t *testing.T) {
	prog := mustParse(t, "const f = (x) => { return x + 1; };")

	decl := prog.Statements[0].(*ast.VarDecl)
	arrow := decl.Declarators[0].Init.(*ast.ArrowFunctionExpr)

	if arrow.Body == nil {
		t.Fatalf("expected block body")
	}
}

func TestTemplateLiteralInterpolation(t *testing.T) {
	prog := mustParse(t, "let s = `a${1 + 2}b${x}c`;")

	decl := prog.Statements[0].(*ast.VarDecl)
	tmpl := decl.Declarators[0].Init.(*ast.TemplateLit)

	if len(tmpl.Quasis) != 3 {
		t.Fatalf("expected 3 quasis, got %d (%v)", len(tmpl.Quasis), tmpl.Quasis)
	}

	if len(tmpl.Exprs) != 2 {
		t.Fatalf("expected 2 interpolated expressions, got %d", len(tmpl.Exprs))
	}

	if _, ok := tmpl.Exprs[0].(*ast.BinaryExpr); !ok {
		t.Fatalf("expected first interpolation to be a BinaryExpr, got %T", tmpl.Exprs[0])
	}
}

func TestOperatorPrecedence(t *testing.T) {
	prog := mustParse(t, "let x = 1 + 2 * 3;")

	decl := prog.Statements[0].(*ast.VarDecl)
	bin := decl.Declarators[0].Init.(*ast.BinaryExpr)

	if bin.Op != ast.OpAdd {
		t.Fatalf("expected outermost op to be Add, got %v", bin.Op)
	}

	if _, ok := bin.Right.(*ast.BinaryExpr); !ok {
		t.Fatalf("expected right operand to be the nested multiplication, got %T", bin.Right)
	}
}

func TestExponentiationRightAssociative(t *testing.T) {
	prog := mustParse(t, "let x = 2 ** 3 ** 2;")

	decl := prog.Statements[0].(*ast.VarDecl)
	bin := decl.Declarators[0].Init.(*ast.BinaryExpr)

	if bin.Op != ast.OpPow {
		t.Fatalf("expected Pow, got %v", bin.Op)
	}

	if _, ok := bin.Right.(*ast.BinaryExpr); !ok {
		t.Fatalf("expected right-associative nesting, got %T", bin.Right)
	}
}

func TestOptionalChainingAndNullish(t *testing.T) {
	prog := mustParse(t, "let y = a?.b?.c ?? d;")

	decl := prog.Statements[0].(*ast.VarDecl)
	logical := decl.Declarators[0].Init.(*ast.LogicalExpr)

	if logical.Op != ast.OpNullish {
		t.Fatalf("expected Nullish op, got %v", logical.Op)
	}

	member, ok := logical.Left.(*ast.MemberExpr)
	if !ok || !member.Optional {
		t.Fatalf("expected optional member chain, got %T", logical.Left)
	}
}

func TestPrivateClassField(t *testing.T) {
	prog := mustParse(t, "class C { #count = 0; inc() { this.#count++; } }")

	cls := prog.Statements[0].(*ast.ClassDecl)

	if len(cls.Members) == 0 {
		t.Fatalf("expected at least one member")
	}

	if !cls.Members[0].Private {
		t.Fatalf("expected #count to be marked private")
	}

	if cls.Members[0].Name != "#count" {
		t.Fatalf("expected lexeme '#count', got %q", cls.Members[0].Name)
	}
}

func TestForOfAndForIn(t *testing.T) {
	prog := mustParse(t, "for (const x of xs) {} for (const k in obj) {}")

	if _, ok := prog.Statements[0].(*ast.ForOfStmt); !ok {
		t.Fatalf("expected ForOfStmt, got %T", prog.Statements[0])
	}

	if _, ok := prog.Statements[1].(*ast.ForInStmt); !ok {
		t.Fatalf("expected ForInStmt, got %T", prog.Statements[1])
	}
}

func TestImportWithContextualFrom(t *testing.T) {
	prog := mustParse(t, `import { a, b as c } from "mod";`)

	imp, ok := prog.Statements[0].(*ast.ImportDecl)
	if !ok {
		t.Fatalf("expected ImportDecl, got %T", prog.Statements[0])
	}

	if imp.ModulePath != "mod" {
		t.Fatalf("expected module path 'mod', got %q", imp.ModulePath)
	}

	if len(imp.Specifiers) != 2 || imp.Specifiers[1].Local != "c" {
		t.Fatalf("unexpected specifiers: %+v", imp.Specifiers)
	}
}

func TestNewExpressionBindsBeforeTrailingCall(t *testing.T) {
	prog := mustParse(t, "let x = new Foo(a)(b);")

	decl := prog.Statements[0].(*ast.VarDecl)
	call, ok := decl.Declarators[0].Init.(*ast.CallExpr)

	if !ok {
		t.Fatalf("expected outer CallExpr, got %T", decl.Declarators[0].Init)
	}

	if _, ok := call.Callee.(*ast.NewExpr); !ok {
		t.Fatalf("expected NewExpr as call target, got %T", call.Callee)
	}
}
