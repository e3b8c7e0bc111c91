package hir

import (
	"strconv"
	"strings"

	"github.com/orizon-lang/orizon/internal/ast"
	"github.com/orizon-lang/orizon/internal/diagnostic"
)

// local records one declared variable's Alloca instruction and its
// pointee type (the type actually stored, since Alloca's own Type() is
// always KindPointer).
type local struct {
	alloca  *Instruction
	valType Kind
}

// Builder drives AST-to-HIR lowering: a current function/block cursor plus
// a symbol-table scope stack, in the teacher's builder-cursor discipline
// (single current-function/current-block pair updated in place as control
// flow is lowered).
type Builder struct {
	module       *Module
	fn           *Function
	block        *BasicBlock
	scopes       []map[string]*local
	labelCounter map[string]int
	diags        *diagnostic.Collector
	instrCounter int
	anonCounter  int
}

// GenerateHIR lowers a parsed Program into an HIR Module, per spec §6's
// `generateHIR(program, moduleName) → HIRModule` contract. Top-level
// statements are collected into a synthesized `main` function, the
// convention a driver invokes as the script's entry point.
func GenerateHIR(program *ast.Program, moduleName string) (*Module, *diagnostic.Collector) {
	b := &Builder{
		module:       NewModule(moduleName),
		labelCounter: make(map[string]int),
		diags:        diagnostic.NewCollector(diagnostic.StageHIR),
	}

	main := b.beginFunction("main", nil, false, false)
	b.pushScope()

	for _, stmt := range program.Statements {
		b.lowerStmt(stmt)
	}

	b.popScope()
	b.finishFunction(main)

	return b.module, b.diags
}

// ---- function/block/scope plumbing ----

func (b *Builder) beginFunction(name string, params []*ast.Param, async, generator bool) *Function {
	fn := &Function{Name: name, Linkage: "external", Async: async, Generator: generator}
	b.module.Functions = append(b.module.Functions, fn)

	b.fn = fn

	entry := b.newBlock("entry")
	b.setBlock(entry)

	for i, p := range params {
		ident, _ := p.Pattern.(*ast.IdentPattern)
		pname := ""

		if ident != nil {
			pname = ident.Name
		}

		param := &Parameter{Name: pname, Index: i, ValType: paramKind(p)}
		fn.Params = append(fn.Params, param)
	}

	return fn
}

// paramKind collapses a parameter's type annotation to a Kind; untyped
// parameters default to Any, matching spec §4.4's "Any → I64" boundary rule.
func paramKind(p *ast.Param) Kind {
	if p.Type == nil {
		return KindAny
	}

	return astKindOf(p.Type)
}

func astKindOf(t *ast.Type) Kind {
	switch t.Kind {
	case ast.TypeNumber:
		return KindI64
	case ast.TypeString:
		return KindString
	case ast.TypeBoolean:
		return KindBool
	case ast.TypeNull:
		return KindNull
	case ast.TypeUndefined:
		return KindUndefined
	case ast.TypeVoid:
		return KindVoid
	default:
		return KindAny
	}
}

// finishFunction closes the current block with a void Return when the body
// fell off its end without terminating. It does not touch the builder's
// function/block cursor or scopes (lowerFunctionLike restores those itself).
func (b *Builder) finishFunction(fn *Function) {
	if !b.block.Terminated() {
		b.emit(&Instruction{Op: OpReturn})
	}
}

// lowerFunctionLike lowers a nested function/arrow/method body, performing
// the five-step closure detection and environment synthesis from spec §4.3.
func (b *Builder) lowerFunctionLike(name string, params []*ast.Param, body *ast.BlockStmt, async, generator bool) *Function {
	outerFn, outerBlock, outerScopes := b.fn, b.block, b.scopes

	fn := &Function{Name: name, Linkage: "internal", Async: async, Generator: generator}
	b.module.Functions = append(b.module.Functions, fn)
	b.fn = fn

	entry := b.newBlock("entry")
	b.setBlock(entry)
	b.scopes = []map[string]*local{make(map[string]*local)}

	paramNames := make(map[string]bool)

	for i, p := range params {
		ident, _ := p.Pattern.(*ast.IdentPattern)
		pname := ""

		if ident != nil {
			pname = ident.Name
			paramNames[pname] = true
		}

		pk := paramKind(p)
		param := &Parameter{Name: pname, Index: i, ValType: pk}
		fn.Params = append(fn.Params, param)

		alloca := b.emit(&Instruction{Op: OpAlloca, ResultType: KindPointer, Label: pname})
		b.declare(pname, alloca, pk)

		if p.Default != nil {
			// Defaults are applied unconditionally here; a full
			// implementation would branch on `undefined`.
			def := b.lowerExpr(p.Default)
			b.emit(&Instruction{Op: OpStore, Operands: []Value{alloca, def}})
		} else {
			b.emit(&Instruction{Op: OpStore, Operands: []Value{alloca, &Parameter{Name: pname, Index: i, ValType: pk}}})
		}
	}

	// Step 1: collect free variables referenced by this function's body
	// that are NOT bound by its own parameters or local declarations.
	free := collectFreeVars(body, paramNames)

	var capturedNames []string

	var capturedValues []Value

	var fieldTypes []Kind

	for _, fv := range free {
		if l := b.lookupInScopes(outerScopes, fv); l != nil {
			capturedNames = append(capturedNames, fv)
			capturedValues = append(capturedValues, l.alloca)
			fieldTypes = append(fieldTypes, l.valType)
		}
	}

	if len(capturedNames) > 0 {
		// Steps 2-3: environment struct type + closure side-tables.
		env := &StructType{Name: name + ".env", FieldNames: capturedNames, FieldTypes: fieldTypes}
		b.module.ClosureEnvironments[name] = env
		b.module.ClosureCapturedVars[name] = capturedNames
		b.module.ClosureCapturedVarValues[name] = capturedValues

		// Step 4: append an `__env` pointer parameter.
		fn.Params = append(fn.Params, &Parameter{Name: "__env", Index: len(fn.Params), ValType: KindPointer})

		// Seed the inner function's own scope with each captured name
		// resolving to the *same* outer Alloca value: ordinary identifier
		// lookups in the body (Load/Store) then naturally reference that
		// outer HIR value as their operand, which is exactly what lets MIR
		// generation's valueMap_ substitute the Copy-In local for it (§4.4).
		for i, cn := range capturedNames {
			if outerAlloca, ok := capturedValues[i].(*Instruction); ok {
				b.declare(cn, outerAlloca, fieldTypes[i])
			}
		}
	}

	for _, stmt := range body.Body {
		b.lowerStmt(stmt)
	}

	if !b.block.Terminated() {
		b.emit(&Instruction{Op: OpReturn})
	}

	b.fn, b.block, b.scopes = outerFn, outerBlock, outerScopes

	return fn
}

func (b *Builder) lookupInScopes(scopes []map[string]*local, name string) *local {
	for i := len(scopes) - 1; i >= 0; i-- {
		if l, ok := scopes[i][name]; ok {
			return l
		}
	}

	return nil
}

func (b *Builder) pushScope() { b.scopes = append(b.scopes, make(map[string]*local)) }

func (b *Builder) popScope() { b.scopes = b.scopes[:len(b.scopes)-1] }

func (b *Builder) declare(name string, alloca *Instruction, valType Kind) {
	if name == "" {
		return
	}

	b.scopes[len(b.scopes)-1][name] = &local{alloca: alloca, valType: valType}
}

func (b *Builder) lookup(name string) *local { return b.lookupInScopes(b.scopes, name) }

func (b *Builder) newBlock(prefix string) *BasicBlock {
	b.labelCounter[prefix]++

	label := prefix
	if b.labelCounter[prefix] > 1 {
		label = prefix + "." + strconv.Itoa(b.labelCounter[prefix])
	}

	blk := &BasicBlock{Label: label}
	b.fn.Blocks = append(b.fn.Blocks, blk)

	return blk
}

func (b *Builder) setBlock(blk *BasicBlock) { b.block = blk }

func (b *Builder) emit(instr *Instruction) *Instruction {
	b.instrCounter++
	instr.ID = b.instrCounter
	instr.Block = b.block
	b.block.Instructions = append(b.block.Instructions, instr)

	return instr
}

func (b *Builder) br(target *BasicBlock) {
	if b.block.Terminated() {
		return
	}

	b.emit(&Instruction{Op: OpBr, Callee: target.Label})
	b.block.addSucc(target)
}

func (b *Builder) freshName(prefix string) string {
	b.anonCounter++

	return prefix + "$" + strconv.Itoa(b.anonCounter)
}

// ---- free-variable collection ----

// collectFreeVars walks stmt's subtree and returns, in first-reference
// order, every identifier name read that is not shadowed by params or by a
// nested var/let/const declarator. It does not model per-block shadowing
// precisely, and it does not walk the bodies of nested function, arrow or
// class expressions, so a name referenced only inside one of those is not
// collected. It serves spec §4.3's capture rule:
// "any identifier not bound in the function's own scope chain up to the
// enclosing function".
func collectFreeVars(body *ast.BlockStmt, bound map[string]bool) []string {
	local := make(map[string]bool, len(bound))
	for k := range bound {
		local[k] = true
	}

	var order []string

	seen := make(map[string]bool)

	var walkExpr func(ast.Expr)

	var walkStmt func(ast.Stmt)

	record := func(name string) {
		if local[name] || seen[name] {
			return
		}

		seen[name] = true

		order = append(order, name)
	}

	walkExpr = func(e ast.Expr) {
		if e == nil {
			return
		}

		switch n := e.(type) {
		case *ast.Ident:
			if n.Name != "this" && n.Name != "super" {
				record(n.Name)
			}
		case *ast.BinaryExpr:
			walkExpr(n.Left)
			walkExpr(n.Right)
		case *ast.LogicalExpr:
			walkExpr(n.Left)
			walkExpr(n.Right)
		case *ast.UnaryExpr:
			walkExpr(n.Operand)
		case *ast.UpdateExpr:
			walkExpr(n.Operand)
		case *ast.AssignExpr:
			walkExpr(n.Target)
			walkExpr(n.Value)
		case *ast.ConditionalExpr:
			walkExpr(n.Test)
			walkExpr(n.Consequent)
			walkExpr(n.Alternate)
		case *ast.SequenceExpr:
			for _, e2 := range n.Exprs {
				walkExpr(e2)
			}
		case *ast.CallExpr:
			walkExpr(n.Callee)
			for _, a := range n.Args {
				walkExpr(a)
			}
		case *ast.NewExpr:
			walkExpr(n.Callee)
			for _, a := range n.Args {
				walkExpr(a)
			}
		case *ast.MemberExpr:
			walkExpr(n.Object)

			if n.Computed {
				walkExpr(n.Property)
			}
		case *ast.NonNullExpr:
			walkExpr(n.Operand)
		case *ast.AsExpr:
			walkExpr(n.Operand)
		case *ast.ArrayLit:
			for _, el := range n.Elements {
				walkExpr(el)
			}
		case *ast.ObjectLit:
			for _, prop := range n.Properties {
				if prop.Computed {
					walkExpr(prop.Key)
				}

				walkExpr(prop.Value)
			}
		case *ast.TemplateLit:
			for _, e2 := range n.Exprs {
				walkExpr(e2)
			}
		case *ast.TaggedTemplateExpr:
			walkExpr(n.Tag)
			walkExpr(n.Template)
		case *ast.FunctionExpr:
			// Nested function, arrow and class bodies are not walked:
			// names referenced only inside them are not collected.
		case *ast.ArrowFunctionExpr:
		case *ast.ClassExpr:
		case *ast.JSXElement, *ast.JSXFragment, *ast.JSXExprContainer:
		}
	}

	walkStmt = func(s ast.Stmt) {
		if s == nil {
			return
		}

		switch n := s.(type) {
		case *ast.ExprStmt:
			walkExpr(n.Expr)
		case *ast.BlockStmt:
			for _, s2 := range n.Body {
				walkStmt(s2)
			}
		case *ast.IfStmt:
			walkExpr(n.Test)
			walkStmt(n.Consequent)
			walkStmt(n.Alternate)
		case *ast.WhileStmt:
			walkExpr(n.Test)
			walkStmt(n.Body)
		case *ast.DoWhileStmt:
			walkStmt(n.Body)
			walkExpr(n.Test)
		case *ast.ForStmt:
			walkExpr(n.Test)
			walkExpr(n.Update)
			walkStmt(n.Body)
		case *ast.ForInStmt:
			walkExpr(n.Right)
			walkStmt(n.Body)
		case *ast.ForOfStmt:
			walkExpr(n.Right)
			walkStmt(n.Body)
		case *ast.SwitchStmt:
			walkExpr(n.Discriminant)

			for _, c := range n.Cases {
				walkExpr(c.Test)

				for _, s2 := range c.Body {
					walkStmt(s2)
				}
			}
		case *ast.TryStmt:
			for _, s2 := range n.Block.Body {
				walkStmt(s2)
			}

			if n.CatchBody != nil {
				for _, s2 := range n.CatchBody.Body {
					walkStmt(s2)
				}
			}

			if n.Finally != nil {
				for _, s2 := range n.Finally.Body {
					walkStmt(s2)
				}
			}
		case *ast.ThrowStmt:
			walkExpr(n.Expr)
		case *ast.ReturnStmt:
			walkExpr(n.Expr)
		case *ast.WithStmt:
			walkExpr(n.Object)
			walkStmt(n.Body)
		case *ast.LabeledStmt:
			walkStmt(n.Body)
		case *ast.VarDecl:
			for _, d := range n.Declarators {
				walkExpr(d.Init)

				if id, ok := d.Target.(*ast.IdentPattern); ok {
					local[id.Name] = true
				}
			}
		}
	}

	for _, s := range body.Body {
		walkStmt(s)
	}

	return order
}

// ---- statement lowering ----

func (b *Builder) lowerStmt(s ast.Stmt) {
	switch n := s.(type) {
	case *ast.ExprStmt:
		b.lowerExpr(n.Expr)
	case *ast.BlockStmt:
		b.pushScope()

		for _, s2 := range n.Body {
			b.lowerStmt(s2)
		}

		b.popScope()
	case *ast.EmptyStmt, *ast.DebuggerStmt:
		// No-ops, per spec §4.3's "unsupported nodes lower to no-ops".
	case *ast.VarDecl:
		b.lowerVarDecl(n)
	case *ast.FunctionDecl:
		b.lowerFunctionLike(n.Name, n.Params, n.Body, n.Async, n.Generator)
	case *ast.ClassDecl:
		b.lowerClassDecl(n)
	case *ast.IfStmt:
		b.lowerIf(n)
	case *ast.WhileStmt:
		b.lowerWhile(n, "")
	case *ast.DoWhileStmt:
		b.lowerDoWhile(n, "")
	case *ast.ForStmt:
		b.lowerFor(n, "")
	case *ast.ForOfStmt:
		b.lowerForOf(n, "")
	case *ast.ForInStmt:
		b.lowerForIn(n, "")
	case *ast.SwitchStmt:
		b.lowerSwitch(n)
	case *ast.TryStmt:
		b.lowerTry(n)
	case *ast.ThrowStmt:
		val := b.lowerExpr(n.Expr)
		b.emit(&Instruction{Op: OpCall, Callee: "nova_throw", Operands: []Value{val}})
	case *ast.ReturnStmt:
		b.lowerReturn(n)
	case *ast.BreakStmt:
		b.emit(&Instruction{Op: OpBreak, Label: n.Label})
		b.block.HasBreakOrContinue = true
		b.setBlock(b.newBlock("unreachable"))
	case *ast.ContinueStmt:
		b.emit(&Instruction{Op: OpContinue, Label: n.Label})
		b.block.HasBreakOrContinue = true
		b.setBlock(b.newBlock("unreachable"))
	case *ast.WithStmt:
		b.diags.Warnf(n.SpanVal, "`with` is not supported; object scope is ignored")
		b.lowerExpr(n.Object)
		b.lowerStmt(n.Body)
	case *ast.LabeledStmt:
		b.lowerLabeled(n)
	case *ast.ImportDecl, *ast.ExportNamedDecl, *ast.ExportDefaultDecl, *ast.InterfaceDecl, *ast.TypeAliasDecl, *ast.EnumDecl:
		// Module/type-system surface: parse-and-discard per spec §4.2/§1.
	default:
		b.diags.Warnf(s.Span(), "unsupported statement form %T lowered as no-op", s)
	}
}

func (b *Builder) lowerLabeled(n *ast.LabeledStmt) {
	switch body := n.Body.(type) {
	case *ast.WhileStmt:
		b.lowerWhile(body, n.Label)
	case *ast.DoWhileStmt:
		b.lowerDoWhile(body, n.Label)
	case *ast.ForStmt:
		b.lowerFor(body, n.Label)
	case *ast.ForOfStmt:
		b.lowerForOf(body, n.Label)
	case *ast.ForInStmt:
		b.lowerForIn(body, n.Label)
	default:
		b.lowerStmt(n.Body)
	}
}

func (b *Builder) lowerVarDecl(n *ast.VarDecl) {
	for _, d := range n.Declarators {
		ident, ok := d.Target.(*ast.IdentPattern)
		if !ok {
			// Destructuring targets: lower the initializer for side
			// effects and diagnose the unsupported binding shape.
			if d.Init != nil {
				b.lowerExpr(d.Init)
			}

			b.diags.Warnf(d.SpanVal, "destructuring declarations are not lowered; binding discarded")

			continue
		}

		valType := KindAny
		if d.Type != nil {
			valType = astKindOf(d.Type)
		}

		alloca := b.emit(&Instruction{Op: OpAlloca, ResultType: KindPointer, Label: ident.Name})
		b.declare(ident.Name, alloca, valType)

		if d.Init != nil {
			if fn, isClosure := b.lowerClosureValuedExpr(d.Init); isClosure {
				b.emit(&Instruction{Op: OpStore, Operands: []Value{alloca, fn}})

				continue
			}

			val := b.lowerExpr(d.Init)
			b.emit(&Instruction{Op: OpStore, Operands: []Value{alloca, val}})
		}
	}
}

// lowerClosureValuedExpr lowers FunctionExpr/ArrowFunctionExpr specially so
// the binding records the closure's name as a string constant rather than
// an ordinary value, mirroring how Return handles closure-naming (§4.3 step 5).
func (b *Builder) lowerClosureValuedExpr(e ast.Expr) (Value, bool) {
	switch fe := e.(type) {
	case *ast.FunctionExpr:
		name := fe.Name
		if name == "" {
			name = b.freshName("closure")
		}

		b.lowerFunctionLike(name, fe.Params, fe.Body, fe.Async, fe.Generator)

		return &Constant{Kind: ConstString, StrVal: name, ValType: KindFunction}, true
	case *ast.ArrowFunctionExpr:
		name := b.freshName("arrow")
		body := fe.Body

		if body == nil {
			body = &ast.BlockStmt{Body: []ast.Stmt{&ast.ReturnStmt{Expr: fe.Expression}}}
		}

		b.lowerFunctionLike(name, fe.Params, body, fe.Async, false)

		return &Constant{Kind: ConstString, StrVal: name, ValType: KindFunction}, true
	default:
		return nil, false
	}
}

func (b *Builder) lowerReturn(n *ast.ReturnStmt) {
	if n.Expr == nil {
		b.emit(&Instruction{Op: OpReturn})

		return
	}

	// Step 5: a bare identifier naming a closure defined in this scope is
	// returned as a string constant so MIR generation can substitute
	// environment allocation for the return.
	if ident, ok := n.Expr.(*ast.Ident); ok {
		if _, isClosure := b.module.ClosureCapturedVars[ident.Name]; isClosure {
			b.module.ClosureReturnedBy[b.fn.Name] = ident.Name
			b.emit(&Instruction{Op: OpReturn, Operands: []Value{&Constant{Kind: ConstString, StrVal: ident.Name, ValType: KindFunction}}})

			return
		}
	}

	if val, isClosure := b.lowerClosureValuedExpr(n.Expr); isClosure {
		b.module.ClosureReturnedBy[b.fn.Name] = val.(*Constant).StrVal
		b.emit(&Instruction{Op: OpReturn, Operands: []Value{val}})

		return
	}

	val := b.lowerExpr(n.Expr)
	b.emit(&Instruction{Op: OpReturn, Operands: []Value{val}})
}

func (b *Builder) lowerClassDecl(n *ast.ClassDecl) {
	var fields []string

	var fieldTypes []Kind

	for _, m := range n.Members {
		if m.Kind == ast.MemberField {
			fields = append(fields, m.Name)
			fieldTypes = append(fieldTypes, KindAny)
		}
	}

	b.module.StructTypes[n.Name] = &StructType{Name: n.Name, FieldNames: fields, FieldTypes: fieldTypes}

	for _, m := range n.Members {
		switch m.Kind {
		case ast.MemberMethod, ast.MemberConstructor, ast.MemberGetter, ast.MemberSetter:
			if m.Body == nil {
				continue
			}

			qualified := n.Name + "." + m.Name
			if m.Kind == ast.MemberConstructor {
				qualified = n.Name + ".constructor"
			}

			b.lowerFunctionLike(qualified, m.Params, m.Body, false, false)
		}
	}
}

// ---- control flow ----

func (b *Builder) lowerIf(n *ast.IfStmt) {
	test := b.lowerExpr(n.Test)

	thenBlk := b.newBlock("if.then")
	endBlk := b.newBlock("if.end")

	var elseBlk *BasicBlock
	if n.Alternate != nil {
		elseBlk = b.newBlock("if.else")
	} else {
		elseBlk = endBlk
	}

	b.emit(&Instruction{Op: OpCondBr, Operands: []Value{test}, Callee: thenBlk.Label, Label: elseBlk.Label})
	b.block.addSucc(thenBlk)
	b.block.addSucc(elseBlk)

	b.setBlock(thenBlk)
	b.pushScope()
	b.lowerStmt(n.Consequent)
	b.popScope()
	b.br(endBlk)

	if n.Alternate != nil {
		b.setBlock(elseBlk)
		b.pushScope()
		b.lowerStmt(n.Alternate)
		b.popScope()
		b.br(endBlk)
	}

	b.setBlock(endBlk)

	// Branch fall-through policy: if both arms terminated, the end block
	// is otherwise empty and unreachable; give it a synthetic return so
	// the function stays well-formed.
	if len(endBlk.Preds) == 0 {
		b.emit(&Instruction{Op: OpReturn, Operands: []Value{&Constant{Kind: ConstInt, ValType: KindI64}}})
	}
}

func (b *Builder) lowerWhile(n *ast.WhileStmt, label string) {
	cond := b.newBlock("while.cond")
	body := b.newBlock("while.body")
	end := b.newBlock("while.end")

	if label != "" {
		cond.Label += "#" + label
	}

	b.br(cond)
	b.setBlock(cond)

	test := b.lowerExpr(n.Test)
	b.emit(&Instruction{Op: OpCondBr, Operands: []Value{test}, Callee: body.Label, Label: end.Label})
	b.block.addSucc(body)
	b.block.addSucc(end)

	b.setBlock(body)
	b.pushScope()
	b.lowerStmt(n.Body)
	b.popScope()
	b.br(cond)

	b.setBlock(end)
}

func (b *Builder) lowerDoWhile(n *ast.DoWhileStmt, label string) {
	body := b.newBlock("do-while.body")
	cond := b.newBlock("do-while.cond")
	end := b.newBlock("do-while.end")

	if label != "" {
		cond.Label += "#" + label
	}

	b.br(body)
	b.setBlock(body)
	b.pushScope()
	b.lowerStmt(n.Body)
	b.popScope()
	b.br(cond)

	b.setBlock(cond)

	test := b.lowerExpr(n.Test)
	b.emit(&Instruction{Op: OpCondBr, Operands: []Value{test}, Callee: body.Label, Label: end.Label})
	b.block.addSucc(body)
	b.block.addSucc(end)

	b.setBlock(end)
}

func (b *Builder) lowerFor(n *ast.ForStmt, label string) {
	b.pushScope()

	if n.Init != nil {
		switch init := n.Init.(type) {
		case *ast.VarDecl:
			b.lowerVarDecl(init)
		case ast.Expr:
			b.lowerExpr(init)
		}
	}

	cond := b.newBlock("for.cond")
	body := b.newBlock("for.body")
	update := b.newBlock("for.update")
	end := b.newBlock("for.end")

	if label != "" {
		update.Label += "#" + label
	}

	b.br(cond)
	b.setBlock(cond)

	if n.Test != nil {
		test := b.lowerExpr(n.Test)
		b.emit(&Instruction{Op: OpCondBr, Operands: []Value{test}, Callee: body.Label, Label: end.Label})
	} else {
		b.emit(&Instruction{Op: OpBr, Callee: body.Label})
	}

	b.block.addSucc(body)
	b.block.addSucc(end)

	b.setBlock(body)
	b.pushScope()
	b.lowerStmt(n.Body)
	b.popScope()
	b.br(update)

	b.setBlock(update)

	if n.Update != nil {
		b.lowerExpr(n.Update)
	}

	b.br(cond)

	b.setBlock(end)
	b.popScope()
}

// lowerForOf/lowerForIn lower to a runtime-iterator call pair rather than
// modeling JS iterator protocol structurally; this keeps the generated CFG
// in the same `for.*` block-naming family loop analysis (§4.4) recognizes.
func (b *Builder) lowerForOf(n *ast.ForOfStmt, label string) {
	b.pushScope()

	iterable := b.lowerExpr(n.Right)
	iter := b.emit(&Instruction{Op: OpCall, Callee: "nova_iter_of", Operands: []Value{iterable}, ResultType: KindPointer})

	cond := b.newBlock("for.cond")
	body := b.newBlock("for.body")
	update := b.newBlock("for.update")
	end := b.newBlock("for.end")

	if label != "" {
		update.Label += "#" + label
	}

	b.br(cond)
	b.setBlock(cond)

	hasNext := b.emit(&Instruction{Op: OpCall, Callee: "nova_iter_has_next", Operands: []Value{iter}, ResultType: KindBool})
	b.emit(&Instruction{Op: OpCondBr, Operands: []Value{hasNext}, Callee: body.Label, Label: end.Label})
	b.block.addSucc(body)
	b.block.addSucc(end)

	b.setBlock(body)
	b.pushScope()

	item := b.emit(&Instruction{Op: OpCall, Callee: "nova_iter_next", Operands: []Value{iter}, ResultType: KindAny})
	b.bindForTarget(n.Left, item)
	b.lowerStmt(n.Body)
	b.popScope()
	b.br(update)

	b.setBlock(update)
	b.br(cond)

	b.setBlock(end)
	b.popScope()
}

func (b *Builder) lowerForIn(n *ast.ForInStmt, label string) {
	b.pushScope()

	obj := b.lowerExpr(n.Right)
	iter := b.emit(&Instruction{Op: OpCall, Callee: "nova_iter_keys", Operands: []Value{obj}, ResultType: KindPointer})

	cond := b.newBlock("for.cond")
	body := b.newBlock("for.body")
	update := b.newBlock("for.update")
	end := b.newBlock("for.end")

	if label != "" {
		update.Label += "#" + label
	}

	b.br(cond)
	b.setBlock(cond)

	hasNext := b.emit(&Instruction{Op: OpCall, Callee: "nova_iter_has_next", Operands: []Value{iter}, ResultType: KindBool})
	b.emit(&Instruction{Op: OpCondBr, Operands: []Value{hasNext}, Callee: body.Label, Label: end.Label})
	b.block.addSucc(body)
	b.block.addSucc(end)

	b.setBlock(body)
	b.pushScope()

	key := b.emit(&Instruction{Op: OpCall, Callee: "nova_iter_next", Operands: []Value{iter}, ResultType: KindString})
	b.bindForTarget(n.Left, key)
	b.lowerStmt(n.Body)
	b.popScope()
	b.br(update)

	b.setBlock(update)
	b.br(cond)

	b.setBlock(end)
	b.popScope()
}

func (b *Builder) bindForTarget(left ast.Node, val Value) {
	switch l := left.(type) {
	case *ast.VarDecl:
		if len(l.Declarators) != 1 {
			return
		}

		ident, ok := l.Declarators[0].Target.(*ast.IdentPattern)
		if !ok {
			return
		}

		alloca := b.emit(&Instruction{Op: OpAlloca, ResultType: KindPointer, Label: ident.Name})
		b.declare(ident.Name, alloca, val.Type())
		b.emit(&Instruction{Op: OpStore, Operands: []Value{alloca, val}})
	case *ast.IdentPattern:
		if loc := b.lookup(l.Name); loc != nil {
			b.emit(&Instruction{Op: OpStore, Operands: []Value{loc.alloca, val}})
		}
	}
}

// lowerSwitch lowers to a cascade of `switch.case_N`/`switch.default` blocks
// joining at `switch.end`, the block-naming family §4.4 recognizes for
// switch-context construction.
func (b *Builder) lowerSwitch(n *ast.SwitchStmt) {
	disc := b.lowerExpr(n.Discriminant)
	end := b.newBlock("switch.end")

	caseBlocks := make([]*BasicBlock, len(n.Cases))
	for i := range n.Cases {
		if n.Cases[i].Test == nil {
			caseBlocks[i] = b.newBlock("switch.default")
		} else {
			caseBlocks[i] = b.newBlock("switch.case_" + strconv.Itoa(i))
		}
	}

	entry := b.block

	for i, c := range n.Cases {
		if c.Test == nil {
			continue
		}

		testVal := b.lowerExpr(c.Test)
		eq := b.emit(&Instruction{Op: OpEq, ResultType: KindBool, Operands: []Value{disc, testVal}})

		nextCheck := b.newBlock("switch.check")
		b.emit(&Instruction{Op: OpCondBr, Operands: []Value{eq}, Callee: caseBlocks[i].Label, Label: nextCheck.Label})
		b.block.addSucc(caseBlocks[i])
		b.block.addSucc(nextCheck)
		b.setBlock(nextCheck)
	}

	defaultTarget := end

	for i, c := range n.Cases {
		if c.Test == nil {
			defaultTarget = caseBlocks[i]
		}
	}

	b.emit(&Instruction{Op: OpBr, Callee: defaultTarget.Label})
	b.block.addSucc(defaultTarget)
	_ = entry

	for i, c := range n.Cases {
		b.setBlock(caseBlocks[i])
		b.pushScope()

		for _, s := range c.Body {
			b.lowerStmt(s)
		}

		b.popScope()

		var fallTo *BasicBlock
		if i+1 < len(caseBlocks) {
			fallTo = caseBlocks[i+1]
		} else {
			fallTo = end
		}

		b.br(fallTo)
	}

	b.setBlock(end)
}

func (b *Builder) lowerTry(n *ast.TryStmt) {
	b.pushScope()

	for _, s := range n.Block.Body {
		b.lowerStmt(s)
	}

	b.popScope()

	if n.CatchBody != nil {
		b.pushScope()

		if ident, ok := n.CatchParam.(*ast.IdentPattern); ok {
			alloca := b.emit(&Instruction{Op: OpAlloca, ResultType: KindPointer, Label: ident.Name})
			b.declare(ident.Name, alloca, KindAny)
		}

		for _, s := range n.CatchBody.Body {
			b.lowerStmt(s)
		}

		b.popScope()
	}

	if n.Finally != nil {
		b.pushScope()

		for _, s := range n.Finally.Body {
			b.lowerStmt(s)
		}

		b.popScope()
	}
}

// ---- expression lowering ----

func (b *Builder) lowerExpr(e ast.Expr) Value {
	switch n := e.(type) {
	case *ast.NumberLit:
		return lowerNumberLit(n)
	case *ast.StringLit:
		return &Constant{Kind: ConstString, StrVal: n.Value, ValType: KindString}
	case *ast.BoolLit:
		return &Constant{Kind: ConstBool, BoolVal: n.Value, ValType: KindBool}
	case *ast.NullLit:
		return &Constant{Kind: ConstNull, ValType: KindNull}
	case *ast.UndefinedLit:
		return &Constant{Kind: ConstUndefined, ValType: KindUndefined}
	case *ast.Ident:
		return b.lowerIdentRef(n, false)
	case *ast.TemplateLit:
		return b.lowerTemplateLit(n)
	case *ast.TaggedTemplateExpr:
		b.diags.Warnf(n.SpanVal, "tagged templates lower the tag's call ignoring the tag function")

		return b.lowerTemplateLit(n.Template)
	case *ast.RegexLit:
		b.diags.Warnf(n.SpanVal, "regex literals lower to an opaque runtime handle")

		return b.emit(&Instruction{Op: OpCall, Callee: "nova_regex_compile", ResultType: KindPointer,
			Operands: []Value{&Constant{Kind: ConstString, StrVal: n.Pattern, ValType: KindString}, &Constant{Kind: ConstString, StrVal: n.Flags, ValType: KindString}}})
	case *ast.ArrayLit:
		return b.lowerArrayLit(n)
	case *ast.ObjectLit:
		return b.lowerObjectLit(n)
	case *ast.BinaryExpr:
		return b.lowerBinary(n)
	case *ast.LogicalExpr:
		return b.lowerLogical(n)
	case *ast.UnaryExpr:
		return b.lowerUnary(n)
	case *ast.UpdateExpr:
		return b.lowerUpdate(n)
	case *ast.AssignExpr:
		return b.lowerAssign(n)
	case *ast.ConditionalExpr:
		return b.lowerConditional(n)
	case *ast.SequenceExpr:
		var last Value = &Constant{Kind: ConstUndefined, ValType: KindUndefined}
		for _, e2 := range n.Exprs {
			last = b.lowerExpr(e2)
		}

		return last
	case *ast.CallExpr:
		return b.lowerCall(n)
	case *ast.NewExpr:
		return b.lowerNew(n)
	case *ast.MemberExpr:
		return b.lowerMemberLoad(n)
	case *ast.NonNullExpr:
		return b.lowerExpr(n.Operand)
	case *ast.AsExpr:
		return b.lowerExpr(n.Operand)
	case *ast.FunctionExpr, *ast.ArrowFunctionExpr:
		val, _ := b.lowerClosureValuedExpr(n)

		return val
	case *ast.ClassExpr:
		b.lowerClassDecl(n.Class)

		return &Constant{Kind: ConstString, StrVal: n.Class.Name, ValType: KindFunction}
	case *ast.JSXElement, *ast.JSXFragment, *ast.JSXExprContainer, *ast.JSXText:
		b.diags.Warnf(e.Span(), "JSX is not lowered; substituting null")

		return &Constant{Kind: ConstNull, ValType: KindNull}
	default:
		b.diags.Warnf(e.Span(), "unsupported expression form %T lowered as null", e)

		return &Constant{Kind: ConstNull, ValType: KindNull}
	}
}

func lowerNumberLit(n *ast.NumberLit) *Constant {
	lexeme := strings.TrimSuffix(n.Value, "n")

	if !strings.ContainsAny(lexeme, ".eE") || strings.HasPrefix(lexeme, "0x") || strings.HasPrefix(lexeme, "0b") || strings.HasPrefix(lexeme, "0o") {
		if iv, err := parseIntLiteral(lexeme); err == nil {
			return &Constant{Kind: ConstInt, IntVal: iv, ValType: KindI64}
		}
	}

	if fv, err := strconv.ParseFloat(lexeme, 64); err == nil {
		return &Constant{Kind: ConstFloat, FltVal: fv, ValType: KindF64}
	}

	return &Constant{Kind: ConstInt, ValType: KindI64}
}

func parseIntLiteral(lexeme string) (int64, error) {
	switch {
	case strings.HasPrefix(lexeme, "0x") || strings.HasPrefix(lexeme, "0X"):
		return strconv.ParseInt(lexeme[2:], 16, 64)
	case strings.HasPrefix(lexeme, "0b") || strings.HasPrefix(lexeme, "0B"):
		return strconv.ParseInt(lexeme[2:], 2, 64)
	case strings.HasPrefix(lexeme, "0o") || strings.HasPrefix(lexeme, "0O"):
		return strconv.ParseInt(lexeme[2:], 8, 64)
	default:
		return strconv.ParseInt(lexeme, 10, 64)
	}
}

// lowerIdentRef resolves name in the scope chain, emitting a Load from its
// Alloca. An unresolved identifier is a diagnostic per spec §4.3, except
// when forTypeof is set: JavaScript's `typeof undeclaredVar` evaluates to
// `"undefined"` without a ReferenceError, an intentional amendment recorded
// in DESIGN.md (one of spec's four Open Questions).
func (b *Builder) lowerIdentRef(n *ast.Ident, forTypeof bool) Value {
	if n.Name == "this" || n.Name == "super" {
		return &Constant{Kind: ConstUndefined, ValType: KindAny}
	}

	loc := b.lookup(n.Name)
	if loc == nil {
		if forTypeof {
			return &Constant{Kind: ConstString, StrVal: "undefined", ValType: KindString}
		}

		b.diags.Errorf(n.SpanVal, "use of undeclared identifier '%s'", n.Name)

		return &Constant{Kind: ConstUndefined, ValType: KindUndefined}
	}

	return b.emit(&Instruction{Op: OpLoad, ResultType: loc.valType, Operands: []Value{loc.alloca}})
}

func (b *Builder) lowerTemplateLit(n *ast.TemplateLit) Value {
	parts := make([]Value, 0, len(n.Quasis)+len(n.Exprs))

	for i, q := range n.Quasis {
		parts = append(parts, &Constant{Kind: ConstString, StrVal: q, ValType: KindString})

		if i < len(n.Exprs) {
			parts = append(parts, b.lowerExpr(n.Exprs[i]))
		}
	}

	return b.emit(&Instruction{Op: OpCall, Callee: "nova_template_literal", ResultType: KindString, Operands: parts})
}

func (b *Builder) lowerArrayLit(n *ast.ArrayLit) Value {
	arr := b.emit(&Instruction{Op: OpCall, Callee: "nova_array_of", ResultType: KindArray})

	for _, el := range n.Elements {
		if el == nil {
			continue
		}

		v := b.lowerExpr(el)
		b.emit(&Instruction{Op: OpCall, Callee: "nova_value_array_push", ResultType: KindVoid, Operands: []Value{arr, v}})
	}

	return arr
}

func (b *Builder) lowerObjectLit(n *ast.ObjectLit) Value {
	obj := b.emit(&Instruction{Op: OpCall, Callee: "nova_object_create", ResultType: KindStruct})

	for _, prop := range n.Properties {
		if prop.Spread {
			v := b.lowerExpr(prop.Value)
			b.emit(&Instruction{Op: OpCall, Callee: "nova_object_assign", ResultType: KindVoid, Operands: []Value{obj, v}})

			continue
		}

		ident, _ := prop.Key.(*ast.Ident)
		name := ""

		if ident != nil {
			name = ident.Name
		}

		v := b.lowerExpr(prop.Value)
		b.emit(&Instruction{Op: OpSetField, Label: name, Operands: []Value{obj, v}})
	}

	return obj
}

var binaryOps = map[ast.Op]Opcode{
	ast.OpAdd: OpAdd, ast.OpSub: OpSub, ast.OpMul: OpMul, ast.OpDiv: OpDiv, ast.OpMod: OpRem,
	ast.OpBitAnd: OpAnd, ast.OpBitOr: OpOr, ast.OpBitXor: OpXor,
	ast.OpShl: OpShl, ast.OpShr: OpShr, ast.OpUShr: OpUShr,
	ast.OpEq: OpEq, ast.OpNotEq: OpNe, ast.OpStrictEq: OpEq, ast.OpStrictNotEq: OpNe,
	ast.OpLt: OpLt, ast.OpLe: OpLe, ast.OpGt: OpGt, ast.OpGe: OpGe,
}

func (b *Builder) lowerBinary(n *ast.BinaryExpr) Value {
	if n.Op == ast.OpPow {
		l := b.lowerExpr(n.Left)
		r := b.lowerExpr(n.Right)

		return b.emit(&Instruction{Op: OpCall, Callee: "nova_math_pow", ResultType: KindF64, Operands: []Value{l, r}})
	}

	if n.Op == ast.OpInstanceof || n.Op == ast.OpIn {
		l := b.lowerExpr(n.Left)
		r := b.lowerExpr(n.Right)

		callee := "nova_instanceof"
		if n.Op == ast.OpIn {
			callee = "nova_object_hasOwn"
		}

		return b.emit(&Instruction{Op: OpCall, Callee: callee, ResultType: KindBool, Operands: []Value{l, r}})
	}

	op, ok := binaryOps[n.Op]
	if !ok {
		b.diags.Warnf(n.SpanVal, "unsupported binary operator")

		return &Constant{Kind: ConstUndefined, ValType: KindUndefined}
	}

	l := b.lowerExpr(n.Left)
	r := b.lowerExpr(n.Right)

	resultType := KindI64
	if op == OpEq || op == OpNe || op == OpLt || op == OpLe || op == OpGt || op == OpGe {
		resultType = KindBool
	} else if l.Type() == KindF64 || r.Type() == KindF64 {
		resultType = KindF64
	} else if l.Type() == KindString || r.Type() == KindString {
		resultType = KindString
	}

	return b.emit(&Instruction{Op: op, ResultType: resultType, Operands: []Value{l, r}})
}

func (b *Builder) lowerLogical(n *ast.LogicalExpr) Value {
	if n.Op == ast.OpNullish {
		l := b.lowerExpr(n.Left)

		return b.emit(&Instruction{Op: OpCall, Callee: "nova_nullish_coalesce", ResultType: KindAny, Operands: []Value{l, b.lowerExpr(n.Right)}})
	}

	// Short-circuit: lower left, branch into a rhs block or skip it.
	l := b.lowerExpr(n.Left)
	rhsBlk := b.newBlock("logical.rhs")
	endBlk := b.newBlock("logical.end")

	resultAlloca := b.emit(&Instruction{Op: OpAlloca, ResultType: KindPointer})
	b.emit(&Instruction{Op: OpStore, Operands: []Value{resultAlloca, l}})

	if n.Op == ast.OpAnd {
		b.emit(&Instruction{Op: OpCondBr, Operands: []Value{l}, Callee: rhsBlk.Label, Label: endBlk.Label})
	} else {
		b.emit(&Instruction{Op: OpCondBr, Operands: []Value{l}, Callee: endBlk.Label, Label: rhsBlk.Label})
	}

	b.block.addSucc(rhsBlk)
	b.block.addSucc(endBlk)

	b.setBlock(rhsBlk)

	r := b.lowerExpr(n.Right)
	b.emit(&Instruction{Op: OpStore, Operands: []Value{resultAlloca, r}})
	b.br(endBlk)

	b.setBlock(endBlk)

	return b.emit(&Instruction{Op: OpLoad, ResultType: KindAny, Operands: []Value{resultAlloca}})
}

var unaryOpcodes = map[ast.Op]Opcode{ast.OpNeg: OpNeg, ast.OpNot: OpNot, ast.OpBitNot: OpNot}

func (b *Builder) lowerUnary(n *ast.UnaryExpr) Value {
	switch n.Op {
	case ast.OpTypeof:
		if ident, ok := n.Operand.(*ast.Ident); ok {
			val := b.lowerIdentRef(ident, true)
			if c, isConst := val.(*Constant); isConst && c.Kind == ConstString && c.StrVal == "undefined" {
				return c
			}

			return b.emit(&Instruction{Op: OpCall, Callee: "nova_typeof", ResultType: KindString, Operands: []Value{val}})
		}

		v := b.lowerExpr(n.Operand)

		return b.emit(&Instruction{Op: OpCall, Callee: "nova_typeof", ResultType: KindString, Operands: []Value{v}})
	case ast.OpVoid:
		b.lowerExpr(n.Operand)

		return &Constant{Kind: ConstUndefined, ValType: KindUndefined}
	case ast.OpDelete:
		if member, ok := n.Operand.(*ast.MemberExpr); ok {
			obj := b.lowerExpr(member.Object)
			name := memberName(member)

			return b.emit(&Instruction{Op: OpCall, Callee: "nova_object_delete", ResultType: KindBool, Operands: []Value{obj, &Constant{Kind: ConstString, StrVal: name, ValType: KindString}}})
		}

		return &Constant{Kind: ConstBool, BoolVal: true, ValType: KindBool}
	case ast.OpAwait:
		v := b.lowerExpr(n.Operand)

		return b.emit(&Instruction{Op: OpCall, Callee: "nova_await", ResultType: KindAny, Operands: []Value{v}})
	case ast.OpPlus:
		v := b.lowerExpr(n.Operand)

		return b.emit(&Instruction{Op: OpCall, Callee: "nova_to_number", ResultType: KindI64, Operands: []Value{v}})
	}

	op, ok := unaryOpcodes[n.Op]
	if !ok {
		b.diags.Warnf(n.SpanVal, "unsupported unary operator")

		return &Constant{Kind: ConstUndefined, ValType: KindUndefined}
	}

	v := b.lowerExpr(n.Operand)

	return b.emit(&Instruction{Op: op, ResultType: v.Type(), Operands: []Value{v}})
}

func (b *Builder) lowerUpdate(n *ast.UpdateExpr) Value {
	ident, ok := n.Operand.(*ast.Ident)
	if !ok {
		b.diags.Warnf(n.SpanVal, "increment/decrement of non-identifier target is not lowered")

		return &Constant{Kind: ConstUndefined, ValType: KindUndefined}
	}

	loc := b.lookup(ident.Name)
	if loc == nil {
		b.diags.Errorf(n.SpanVal, "use of undeclared identifier '%s'", ident.Name)

		return &Constant{Kind: ConstUndefined, ValType: KindUndefined}
	}

	old := b.emit(&Instruction{Op: OpLoad, ResultType: loc.valType, Operands: []Value{loc.alloca}})

	delta := Opcode(OpAdd)
	if n.Op == ast.OpPreDec || n.Op == ast.OpPostDec {
		delta = OpSub
	}

	updated := b.emit(&Instruction{Op: delta, ResultType: loc.valType, Operands: []Value{old, &Constant{Kind: ConstInt, IntVal: 1, ValType: KindI64}}})
	b.emit(&Instruction{Op: OpStore, Operands: []Value{loc.alloca, updated}})

	if n.Op == ast.OpPreInc || n.Op == ast.OpPreDec {
		return updated
	}

	return old
}

func memberName(m *ast.MemberExpr) string {
	if ident, ok := m.Property.(*ast.Ident); ok {
		return ident.Name
	}

	return ""
}

func (b *Builder) lowerMemberLoad(n *ast.MemberExpr) Value {
	obj := b.lowerExpr(n.Object)

	if n.Computed {
		idx := b.lowerExpr(n.Property)

		return b.emit(&Instruction{Op: OpGetElement, ResultType: KindAny, Operands: []Value{obj, idx}})
	}

	return b.emit(&Instruction{Op: OpGetField, ResultType: KindAny, Label: memberName(n), Operands: []Value{obj}})
}

var compoundBase = map[ast.Op]Opcode{
	ast.OpAddAssign: OpAdd, ast.OpSubAssign: OpSub, ast.OpMulAssign: OpMul, ast.OpDivAssign: OpDiv,
	ast.OpModAssign: OpRem, ast.OpAndAssign: OpAnd, ast.OpOrAssign: OpOr, ast.OpXorAssign: OpXor,
	ast.OpShlAssign: OpShl, ast.OpShrAssign: OpShr, ast.OpUShrAssign: OpUShr,
}

func (b *Builder) lowerAssign(n *ast.AssignExpr) Value {
	switch target := n.Target.(type) {
	case *ast.Ident:
		loc := b.lookup(target.Name)
		if loc == nil {
			b.diags.Errorf(n.SpanVal, "assignment to undeclared identifier '%s'", target.Name)

			return b.lowerExpr(n.Value)
		}

		val := b.computeAssignValue(n, func() Value {
			return b.emit(&Instruction{Op: OpLoad, ResultType: loc.valType, Operands: []Value{loc.alloca}})
		})
		b.emit(&Instruction{Op: OpStore, Operands: []Value{loc.alloca, val}})

		return val
	case *ast.MemberExpr:
		obj := b.lowerExpr(target.Object)

		if target.Computed {
			idx := b.lowerExpr(target.Property)
			val := b.computeAssignValue(n, func() Value {
				return b.emit(&Instruction{Op: OpGetElement, ResultType: KindAny, Operands: []Value{obj, idx}})
			})
			b.emit(&Instruction{Op: OpSetElement, Operands: []Value{obj, idx, val}})

			return val
		}

		name := memberName(target)
		val := b.computeAssignValue(n, func() Value {
			return b.emit(&Instruction{Op: OpGetField, ResultType: KindAny, Label: name, Operands: []Value{obj}})
		})
		b.emit(&Instruction{Op: OpSetField, Label: name, Operands: []Value{obj, val}})

		return val
	default:
		b.diags.Warnf(n.SpanVal, "unsupported assignment target")

		return b.lowerExpr(n.Value)
	}
}

func (b *Builder) computeAssignValue(n *ast.AssignExpr, loadCurrent func() Value) Value {
	if n.Op == ast.OpAssign {
		return b.lowerExpr(n.Value)
	}

	if n.Op == ast.OpLogicalAndAssign || n.Op == ast.OpLogicalOrAssign || n.Op == ast.OpNullishAssign {
		cur := loadCurrent()
		rhs := b.lowerExpr(n.Value)
		callee := map[ast.Op]string{ast.OpLogicalAndAssign: "nova_logical_and", ast.OpLogicalOrAssign: "nova_logical_or", ast.OpNullishAssign: "nova_nullish_coalesce"}[n.Op]

		return b.emit(&Instruction{Op: OpCall, Callee: callee, ResultType: KindAny, Operands: []Value{cur, rhs}})
	}

	op, ok := compoundBase[n.Op]
	if !ok {
		return b.lowerExpr(n.Value)
	}

	cur := loadCurrent()
	rhs := b.lowerExpr(n.Value)

	return b.emit(&Instruction{Op: op, ResultType: cur.Type(), Operands: []Value{cur, rhs}})
}

func (b *Builder) lowerConditional(n *ast.ConditionalExpr) Value {
	test := b.lowerExpr(n.Test)

	thenBlk := b.newBlock("if.then")
	elseBlk := b.newBlock("if.else")
	endBlk := b.newBlock("if.end")

	resultAlloca := b.emit(&Instruction{Op: OpAlloca, ResultType: KindPointer})

	b.emit(&Instruction{Op: OpCondBr, Operands: []Value{test}, Callee: thenBlk.Label, Label: elseBlk.Label})
	b.block.addSucc(thenBlk)
	b.block.addSucc(elseBlk)

	b.setBlock(thenBlk)

	cv := b.lowerExpr(n.Consequent)
	b.emit(&Instruction{Op: OpStore, Operands: []Value{resultAlloca, cv}})
	b.br(endBlk)

	b.setBlock(elseBlk)

	av := b.lowerExpr(n.Alternate)
	b.emit(&Instruction{Op: OpStore, Operands: []Value{resultAlloca, av}})
	b.br(endBlk)

	b.setBlock(endBlk)

	return b.emit(&Instruction{Op: OpLoad, ResultType: KindAny, Operands: []Value{resultAlloca}})
}

func (b *Builder) lowerCall(n *ast.CallExpr) Value {
	args := make([]Value, 0, len(n.Args)+1)

	var calleeName string

	switch callee := n.Callee.(type) {
	case *ast.Ident:
		calleeName = callee.Name
	case *ast.MemberExpr:
		obj := b.lowerExpr(callee.Object)
		args = append(args, obj)
		calleeName = memberName(callee)
	default:
		b.diags.Warnf(n.SpanVal, "dynamic call targets are not lowered")

		calleeName = "<dynamic>"
	}

	for _, a := range n.Args {
		args = append(args, b.lowerExpr(a))
	}

	return b.emit(&Instruction{Op: OpCall, Callee: calleeName, ResultType: KindAny, Operands: args})
}

func (b *Builder) lowerNew(n *ast.NewExpr) Value {
	calleeName := "<anonymous>"
	if ident, ok := n.Callee.(*ast.Ident); ok {
		calleeName = ident.Name + ".constructor"
	}

	args := make([]Value, 0, len(n.Args))
	for _, a := range n.Args {
		args = append(args, b.lowerExpr(a))
	}

	return b.emit(&Instruction{Op: OpCall, Callee: calleeName, ResultType: KindPointer, Operands: args})
}
