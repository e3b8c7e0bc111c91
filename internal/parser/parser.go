// Package parser implements Nova's hand-written recursive-descent parser:
// tokens (pre-fetched into a vector) to an AST, with precedence climbing for
// expressions and panic-mode recovery for statements.
package parser

import (
	"strings"

	"github.com/orizon-lang/orizon/internal/ast"
	"github.com/orizon-lang/orizon/internal/diagnostic"
	"github.com/orizon-lang/orizon/internal/lexer"
	"github.com/orizon-lang/orizon/internal/position"
	"github.com/orizon-lang/orizon/internal/token"
)

// Parser walks a pre-fetched token vector with a current-index cursor.
type Parser struct {
	diags    *diagnostic.Collector
	filename string
	tokens   []token.Token
	cur      int
}

// New constructs a parser over lexer l's full token stream.
func New(l *lexer.Lexer, filename string) *Parser {
	p := &Parser{
		tokens:   l.AllTokens(),
		filename: filename,
		diags:    diagnostic.NewCollector(diagnostic.StageParse),
	}
	p.diags.Merge(l.Diagnostics())

	return p
}

// ParseProgram parses the entire token stream into a Program, per spec §6's
// `Parser.parseProgram() → (Program, diagnostics)` contract.
func ParseProgram(source, filename string) (*ast.Program, *diagnostic.Collector) {
	l := lexer.New(filename, source)
	p := New(l, filename)

	return p.parseProgram(), p.diags
}

func (p *Parser) Diagnostics() *diagnostic.Collector { return p.diags }

func (p *Parser) parseProgram() *ast.Program {
	start := p.peek().Span
	prog := &ast.Program{}

	for !p.atEnd() {
		stmt := p.parseStatement()
		if stmt != nil {
			prog.Statements = append(prog.Statements, stmt)
		}
	}

	prog.SpanVal = p.spanFrom(start)

	return prog
}

// ---- cursor helpers ----

func (p *Parser) peek() token.Token {
	if p.cur >= len(p.tokens) {
		return token.Token{Kind: token.EndOfFile}
	}

	return p.tokens[p.cur]
}

func (p *Parser) peekAt(offset int) token.Token {
	idx := p.cur + offset
	if idx >= len(p.tokens) {
		return token.Token{Kind: token.EndOfFile}
	}

	return p.tokens[idx]
}

func (p *Parser) atEnd() bool {
	return p.peek().Kind == token.EndOfFile
}

func (p *Parser) advance() token.Token {
	tok := p.peek()
	if !p.atEnd() {
		p.cur++
	}

	return tok
}

func (p *Parser) check(k token.Kind) bool {
	return p.peek().Kind == k
}

func (p *Parser) match(kinds ...token.Kind) bool {
	for _, k := range kinds {
		if p.check(k) {
			p.advance()

			return true
		}
	}

	return false
}

// matchContextual consumes an identifier token whose lexeme equals word
// (e.g. `from`, `as` outside of import/export clauses) without reserving
// it as a keyword.
func (p *Parser) matchContextual(word string) bool {
	if p.check(token.Identifier) && p.peek().Lexeme == word {
		p.advance()

		return true
	}

	return false
}

func (p *Parser) expect(k token.Kind) token.Token {
	if p.check(k) {
		return p.advance()
	}

	p.diags.Errorf(p.peek().Span, "expected '%s', found '%s'", k, p.peek().Kind)

	return p.peek()
}

func (p *Parser) spanFrom(start position.Span) position.Span {
	end := start
	if p.cur > 0 {
		end = p.tokens[p.cur-1].Span
	}

	return position.Span{Start: start.Start, End: end.End}
}

// synchronize implements spec §4.2's panic-mode recovery: skip tokens until
// a statement-starting keyword or the token following a semicolon.
func (p *Parser) synchronize() {
	for !p.atEnd() {
		if p.tokens[p.cur].Kind == token.Semicolon {
			p.advance()

			return
		}

		switch p.peek().Kind {
		case token.KwClass, token.KwFunction, token.KwVar, token.KwLet, token.KwConst,
			token.KwIf, token.KwFor, token.KwWhile, token.KwReturn, token.KwSwitch,
			token.KwTry, token.KwThrow, token.KwImport, token.KwExport:
			return
		}

		p.advance()
	}
}

// ---- statements ----

func (p *Parser) parseStatement() (stmt ast.Stmt) {
	defer func() {
		if r := recover(); r != nil {
			p.synchronize()

			stmt = nil
		}
	}()

	switch p.peek().Kind {
	case token.LBrace:
		return p.parseBlock()
	case token.KwVar, token.KwLet, token.KwConst:
		return p.parseVarDeclStmt()
	case token.KwFunction:
		return p.parseFunctionDecl(false, false)
	case token.KwAsync:
		if p.peekAt(1).Kind == token.KwFunction {
			p.advance()

			return p.parseFunctionDecl(true, false)
		}
	case token.KwClass:
		return p.parseClassDecl(false, false)
	case token.KwIf:
		return p.parseIfStmt()
	case token.KwWhile:
		return p.parseWhileStmt("")
	case token.KwDo:
		return p.parseDoWhileStmt("")
	case token.KwFor:
		return p.parseForStmt("")
	case token.KwSwitch:
		return p.parseSwitchStmt("")
	case token.KwTry:
		return p.parseTryStmt()
	case token.KwThrow:
		return p.parseThrowStmt()
	case token.KwReturn:
		return p.parseReturnStmt()
	case token.KwBreak:
		return p.parseBreakStmt()
	case token.KwContinue:
		return p.parseContinueStmt()
	case token.KwDebugger:
		start := p.advance().Span
		p.match(token.Semicolon)

		return &ast.DebuggerStmt{SpanVal: start}
	case token.KwWith:
		return p.parseWithStmt()
	case token.KwImport:
		return p.parseImportDecl()
	case token.KwExport:
		return p.parseExportDecl()
	case token.KwInterface:
		return p.parseInterfaceDecl(false)
	case token.KwType:
		return p.parseTypeAliasDecl(false)
	case token.KwEnum:
		return p.parseEnumDecl(false, false)
	case token.Semicolon:
		start := p.advance().Span

		return &ast.EmptyStmt{SpanVal: start}
	}

	// labeled statement: IDENT ':' stmt
	if p.check(token.Identifier) && p.peekAt(1).Kind == token.Colon {
		start := p.peek().Span
		label := p.advance().Lexeme
		p.advance() // ':'

		body := p.labeledBody(label)

		return &ast.LabeledStmt{SpanVal: p.spanFrom(start), Label: label, Body: body}
	}

	return p.parseExprStmt()
}

// labeledBody parses the statement following a label, threading the label
// into loop/switch statements that recognize labeled break/continue.
func (p *Parser) labeledBody(label string) ast.Stmt {
	switch p.peek().Kind {
	case token.KwWhile:
		return p.parseWhileStmt(label)
	case token.KwDo:
		return p.parseDoWhileStmt(label)
	case token.KwFor:
		return p.parseForStmt(label)
	case token.KwSwitch:
		return p.parseSwitchStmt(label)
	default:
		return p.parseStatement()
	}
}

func (p *Parser) parseBlock() *ast.BlockStmt {
	start := p.expect(token.LBrace).Span
	block := &ast.BlockStmt{}

	for !p.check(token.RBrace) && !p.atEnd() {
		stmt := p.parseStatement()
		if stmt != nil {
			block.Body = append(block.Body, stmt)
		}
	}

	p.expect(token.RBrace)
	block.SpanVal = p.spanFrom(start)

	return block
}

func (p *Parser) parseExprStmt() ast.Stmt {
	start := p.peek().Span
	expr := p.parseExpression()
	p.match(token.Semicolon)

	return &ast.ExprStmt{SpanVal: p.spanFrom(start), Expr: expr}
}

func varKindOf(k token.Kind) ast.VarKind {
	switch k {
	case token.KwVar:
		return ast.VarVar
	case token.KwConst:
		return ast.VarConst
	default:
		return ast.VarLet
	}
}

func (p *Parser) parseVarDeclStmt() ast.Stmt {
	decl := p.parseVarDecl()
	p.match(token.Semicolon)

	return decl
}

func (p *Parser) parseVarDecl() *ast.VarDecl {
	start := p.peek().Span
	kind := varKindOf(p.advance().Kind)

	decl := &ast.VarDecl{Kind: kind}

	for {
		declStart := p.peek().Span
		target := p.parseBindingTarget()

		var typ *ast.Type
		if p.match(token.Colon) {
			typ = p.parseTypeAnnotation()
		}

		var init ast.Expr
		if p.match(token.Assign) {
			init = p.parseAssignExpr()
		}

		decl.Declarators = append(decl.Declarators, &ast.VarDeclarator{
			SpanVal: p.spanFrom(declStart), Target: target, Type: typ, Init: init,
		})

		if !p.match(token.Comma) {
			break
		}
	}

	decl.SpanVal = p.spanFrom(start)

	return decl
}

func (p *Parser) parseBindingTarget() ast.Pattern {
	switch p.peek().Kind {
	case token.LBracket:
		return p.parseArrayPattern()
	case token.LBrace:
		return p.parseObjectPattern()
	default:
		start := p.peek().Span
		name := p.expect(token.Identifier).Lexeme

		return &ast.IdentPattern{SpanVal: p.spanFrom(start), Name: name}
	}
}

func (p *Parser) parseArrayPattern() ast.Pattern {
	start := p.expect(token.LBracket).Span
	pat := &ast.ArrayPattern{}

	for !p.check(token.RBracket) && !p.atEnd() {
		if p.check(token.Comma) {
			pat.Elements = append(pat.Elements, nil)
			p.advance()

			continue
		}

		if p.match(token.DotDotDot) {
			pat.Rest = p.parseBindingTarget()

			break
		}

		elem := p.parseBindingTarget()

		if p.match(token.Assign) {
			def := p.parseAssignExpr()
			elem = &ast.AssignPattern{SpanVal: elem.Span(), Target: elem, Default: def}
		}

		pat.Elements = append(pat.Elements, elem)

		if !p.match(token.Comma) {
			break
		}
	}

	p.expect(token.RBracket)
	pat.SpanVal = p.spanFrom(start)

	return pat
}

func (p *Parser) parseObjectPattern() ast.Pattern {
	start := p.expect(token.LBrace).Span
	pat := &ast.ObjectPattern{}

	for !p.check(token.RBrace) && !p.atEnd() {
		if p.match(token.DotDotDot) {
			pat.Rest = p.parseBindingTarget()

			break
		}

		key := p.expect(token.Identifier).Lexeme

		var value ast.Pattern = &ast.IdentPattern{Name: key}

		if p.match(token.Colon) {
			value = p.parseBindingTarget()
		}

		var def ast.Expr
		if p.match(token.Assign) {
			def = p.parseAssignExpr()
		}

		pat.Properties = append(pat.Properties, ast.ObjectPatternProperty{Key: key, Value: value, Default: def})

		if !p.match(token.Comma) {
			break
		}
	}

	p.expect(token.RBrace)
	pat.SpanVal = p.spanFrom(start)

	return pat
}

// parseTypeAnnotation parses defensively: unions/intersections/generics/
// tuples are consumed without structural recording and collapse to TypeAny,
// per spec §4.2.
func (p *Parser) parseTypeAnnotation() *ast.Type {
	start := p.peek().Span
	kind, name := p.parseTypeAtomKind()

	depth := 0

	for {
		switch p.peek().Kind {
		case token.Pipe, token.Amp:
			p.advance()
			p.parseTypeAtomKind()
			kind = ast.TypeAny
		case token.LBracket:
			p.advance()
			p.expect(token.RBracket)
		case token.Lt:
			depth++
			p.advance()
			kind = ast.TypeAny
		case token.Gt:
			if depth > 0 {
				depth--
				p.advance()

				continue
			}

			goto done
		default:
			goto done
		}
	}

done:
	return &ast.Type{SpanVal: p.spanFrom(start), Kind: kind, Name: name}
}

func (p *Parser) parseTypeAtomKind() (ast.TypeKind, string) {
	tok := p.peek()

	switch tok.Kind {
	case token.KwAny:
		p.advance()

		return ast.TypeAny, "any"
	case token.KwUnknown:
		p.advance()

		return ast.TypeUnknown, "unknown"
	case token.KwNever:
		p.advance()

		return ast.TypeNever, "never"
	case token.KwVoidType, token.KwVoid:
		p.advance()

		return ast.TypeVoid, "void"
	case token.KwNumberType:
		p.advance()

		return ast.TypeNumber, "number"
	case token.KwStringType:
		p.advance()

		return ast.TypeString, "string"
	case token.KwBoolean:
		p.advance()

		return ast.TypeBoolean, "boolean"
	case token.Null:
		p.advance()

		return ast.TypeNull, "null"
	case token.KwUndefinedType, token.Undefined:
		p.advance()

		return ast.TypeUndefined, "undefined"
	case token.KwObjectType, token.LBrace:
		p.skipBalanced(token.LBrace, token.RBrace)

		return ast.TypeObject, "object"
	case token.LParen:
		p.skipBalanced(token.LParen, token.RParen)

		if p.match(token.Arrow) {
			p.parseTypeAnnotation()
		}

		return ast.TypeAny, "any"
	case token.Identifier:
		p.advance()

		return ast.TypeAny, tok.Lexeme
	default:
		p.advance()

		return ast.TypeAny, "any"
	}
}

func (p *Parser) skipBalanced(open, close token.Kind) {
	if !p.match(open) {
		return
	}

	depth := 1

	for depth > 0 && !p.atEnd() {
		switch p.peek().Kind {
		case open:
			depth++
		case close:
			depth--
		}

		p.advance()
	}
}

func (p *Parser) parseIfStmt() ast.Stmt {
	start := p.advance().Span // 'if'
	p.expect(token.LParen)
	test := p.parseExpression()
	p.expect(token.RParen)
	cons := p.parseStatement()

	var alt ast.Stmt
	if p.match(token.KwElse) {
		alt = p.parseStatement()
	}

	return &ast.IfStmt{SpanVal: p.spanFrom(start), Test: test, Consequent: cons, Alternate: alt}
}

func (p *Parser) parseWhileStmt(label string) ast.Stmt {
	start := p.advance().Span // 'while'
	p.expect(token.LParen)
	test := p.parseExpression()
	p.expect(token.RParen)
	body := p.parseStatement()

	return &ast.WhileStmt{SpanVal: p.spanFrom(start), Test: test, Body: body, Label: label}
}

func (p *Parser) parseDoWhileStmt(label string) ast.Stmt {
	start := p.advance().Span // 'do'
	body := p.parseStatement()
	p.expect(token.KwWhile)
	p.expect(token.LParen)
	test := p.parseExpression()
	p.expect(token.RParen)
	p.match(token.Semicolon)

	return &ast.DoWhileStmt{SpanVal: p.spanFrom(start), Body: body, Test: test, Label: label}
}

// parseForStmt routes between C-style, for-in, and for-of via a two-token
// look-ahead after the initializer, per spec §4.2.
func (p *Parser) parseForStmt(label string) ast.Stmt {
	start := p.advance().Span // 'for'
	p.expect(token.LParen)

	var init ast.Node

	var leftPattern ast.Pattern

	switch p.peek().Kind {
	case token.Semicolon:
		// no initializer
	case token.KwVar, token.KwLet, token.KwConst:
		kind := varKindOf(p.peek().Kind)
		declStart := p.peek().Span
		p.advance()
		target := p.parseBindingTarget()

		if p.check(token.KwIn) || p.check(token.KwOf) {
			leftPattern = target
			decl := &ast.VarDecl{SpanVal: p.spanFrom(declStart), Kind: kind, Declarators: []*ast.VarDeclarator{
				{SpanVal: target.Span(), Target: target},
			}}
			init = decl
		} else {
			var typ *ast.Type
			if p.match(token.Colon) {
				typ = p.parseTypeAnnotation()
			}

			var val ast.Expr
			if p.match(token.Assign) {
				val = p.parseAssignExpr()
			}

			decl := &ast.VarDecl{Kind: kind, Declarators: []*ast.VarDeclarator{
				{SpanVal: target.Span(), Target: target, Type: typ, Init: val},
			}}

			for p.match(token.Comma) {
				t2 := p.parseBindingTarget()

				var v2 ast.Expr
				if p.match(token.Assign) {
					v2 = p.parseAssignExpr()
				}

				decl.Declarators = append(decl.Declarators, &ast.VarDeclarator{SpanVal: t2.Span(), Target: t2, Init: v2})
			}

			decl.SpanVal = p.spanFrom(declStart)
			init = decl
		}
	default:
		expr := p.parseExpression()
		init = expr
	}

	if p.match(token.KwIn) {
		right := p.parseExpression()
		p.expect(token.RParen)
		body := p.parseStatement()

		left := init
		if leftPattern != nil {
			left = init
		}

		return &ast.ForInStmt{SpanVal: p.spanFrom(start), Left: left, Right: right, Body: body, Label: label}
	}

	if p.match(token.KwOf) {
		right := p.parseAssignExpr()
		p.expect(token.RParen)
		body := p.parseStatement()

		return &ast.ForOfStmt{SpanVal: p.spanFrom(start), Left: init, Right: right, Body: body, Label: label}
	}

	p.expect(token.Semicolon)

	var test ast.Expr
	if !p.check(token.Semicolon) {
		test = p.parseExpression()
	}

	p.expect(token.Semicolon)

	var update ast.Expr
	if !p.check(token.RParen) {
		update = p.parseExpression()
	}

	p.expect(token.RParen)
	body := p.parseStatement()

	return &ast.ForStmt{SpanVal: p.spanFrom(start), Init: init, Test: test, Update: update, Body: body, Label: label}
}

func (p *Parser) parseSwitchStmt(label string) ast.Stmt {
	start := p.advance().Span // 'switch'
	p.expect(token.LParen)
	disc := p.parseExpression()
	p.expect(token.RParen)
	p.expect(token.LBrace)

	sw := &ast.SwitchStmt{Discriminant: disc, Label: label}

	for !p.check(token.RBrace) && !p.atEnd() {
		caseStart := p.peek().Span

		var test ast.Expr

		if p.match(token.KwCase) {
			test = p.parseExpression()
		} else {
			p.expect(token.KwDefault)
		}

		p.expect(token.Colon)

		sc := &ast.SwitchCase{Test: test}

		for !p.check(token.KwCase) && !p.check(token.KwDefault) && !p.check(token.RBrace) && !p.atEnd() {
			stmt := p.parseStatement()
			if stmt != nil {
				sc.Body = append(sc.Body, stmt)
			}
		}

		sc.SpanVal = p.spanFrom(caseStart)
		sw.Cases = append(sw.Cases, sc)
	}

	p.expect(token.RBrace)
	sw.SpanVal = p.spanFrom(start)

	return sw
}

func (p *Parser) parseTryStmt() ast.Stmt {
	start := p.advance().Span // 'try'
	block := p.parseBlock()

	t := &ast.TryStmt{Block: block}

	if p.match(token.KwCatch) {
		if p.match(token.LParen) {
			t.CatchParam = p.parseBindingTarget()
			p.expect(token.RParen)
		}

		t.CatchBody = p.parseBlock()
	}

	if p.match(token.KwFinally) {
		t.Finally = p.parseBlock()
	}

	t.SpanVal = p.spanFrom(start)

	return t
}

func (p *Parser) parseThrowStmt() ast.Stmt {
	start := p.advance().Span // 'throw'
	expr := p.parseExpression()
	p.match(token.Semicolon)

	return &ast.ThrowStmt{SpanVal: p.spanFrom(start), Expr: expr}
}

func (p *Parser) parseReturnStmt() ast.Stmt {
	start := p.advance().Span // 'return'

	var expr ast.Expr
	if !p.check(token.Semicolon) && !p.check(token.RBrace) && !p.atEnd() {
		expr = p.parseExpression()
	}

	p.match(token.Semicolon)

	return &ast.ReturnStmt{SpanVal: p.spanFrom(start), Expr: expr}
}

func (p *Parser) parseBreakStmt() ast.Stmt {
	start := p.advance().Span // 'break'

	label := ""
	if p.check(token.Identifier) {
		label = p.advance().Lexeme
	}

	p.match(token.Semicolon)

	return &ast.BreakStmt{SpanVal: p.spanFrom(start), Label: label}
}

func (p *Parser) parseContinueStmt() ast.Stmt {
	start := p.advance().Span // 'continue'

	label := ""
	if p.check(token.Identifier) {
		label = p.advance().Lexeme
	}

	p.match(token.Semicolon)

	return &ast.ContinueStmt{SpanVal: p.spanFrom(start), Label: label}
}

func (p *Parser) parseWithStmt() ast.Stmt {
	start := p.advance().Span // 'with'
	p.expect(token.LParen)
	obj := p.parseExpression()
	p.expect(token.RParen)
	body := p.parseStatement()

	return &ast.WithStmt{SpanVal: p.spanFrom(start), Object: obj, Body: body}
}

func (p *Parser) parseFunctionDecl(async, exported bool) ast.Stmt {
	start := p.peek().Span
	p.expect(token.KwFunction)
	generator := p.match(token.Star)
	name := p.expect(token.Identifier).Lexeme
	params := p.parseParamList()

	if p.match(token.Colon) {
		p.parseTypeAnnotation()
	}

	body := p.parseBlock()

	return &ast.FunctionDecl{
		SpanVal: p.spanFrom(start), Name: name, Params: params, Body: body,
		Async: async, Generator: generator, Exported: exported,
	}
}

func (p *Parser) parseParamList() []*ast.Param {
	p.expect(token.LParen)

	var params []*ast.Param

	for !p.check(token.RParen) && !p.atEnd() {
		start := p.peek().Span
		rest := p.match(token.DotDotDot)

		target := p.parseBindingTarget()

		var typ *ast.Type
		if p.match(token.Colon) {
			typ = p.parseTypeAnnotation()
		}

		var def ast.Expr
		if p.match(token.Assign) {
			def = p.parseAssignExpr()
		}

		params = append(params, &ast.Param{SpanVal: p.spanFrom(start), Pattern: target, Type: typ, Default: def, Rest: rest})

		if !p.match(token.Comma) {
			break
		}
	}

	p.expect(token.RParen)

	return params
}

// parseClassDecl handles visibility/static/readonly/abstract/override
// modifiers, getters/setters, private `#fields`, and decorators (spec
// §4.2's class grammar).
func (p *Parser) parseClassDecl(exported, isDefault bool) ast.Stmt {
	start := p.peek().Span

	decorators := p.parseDecorators()

	abstract := p.match(token.KwAbstract)
	p.expect(token.KwClass)

	name := ""
	if p.check(token.Identifier) {
		name = p.advance().Lexeme
	}

	if p.check(token.Lt) {
		p.skipGenericParams()
	}

	var super ast.Expr

	if p.match(token.KwExtends) {
		super = p.parseLeftHandSideExpr()
	}

	var implements []string

	if p.match(token.KwImplements) {
		implements = append(implements, p.expect(token.Identifier).Lexeme)

		for p.match(token.Comma) {
			implements = append(implements, p.expect(token.Identifier).Lexeme)
		}
	}

	p.expect(token.LBrace)

	cls := &ast.ClassDecl{Name: name, SuperClass: super, Implements: implements, Abstract: abstract, Decorators: decorators, Exported: exported, Default: isDefault}

	for !p.check(token.RBrace) && !p.atEnd() {
		if p.match(token.Semicolon) {
			continue
		}

		cls.Members = append(cls.Members, p.parseClassMember())
	}

	p.expect(token.RBrace)
	cls.SpanVal = p.spanFrom(start)

	return cls
}

func (p *Parser) skipGenericParams() {
	p.skipBalancedAngle()
}

func (p *Parser) skipBalancedAngle() {
	if !p.match(token.Lt) {
		return
	}

	depth := 1

	for depth > 0 && !p.atEnd() {
		switch p.peek().Kind {
		case token.Lt:
			depth++
		case token.Gt:
			depth--
		}

		p.advance()
	}
}

func (p *Parser) parseDecorators() []*ast.Decorator {
	var decs []*ast.Decorator

	for p.check(token.At) {
		start := p.advance().Span
		expr := p.parseLeftHandSideExpr()
		decs = append(decs, &ast.Decorator{SpanVal: p.spanFrom(start), Expr: expr})
	}

	return decs
}

func (p *Parser) parseClassMember() *ast.ClassMember {
	start := p.peek().Span
	decorators := p.parseDecorators()

	member := &ast.ClassMember{Decorators: decorators, Visibility: ast.VisibilityPublic}

	for {
		switch p.peek().Kind {
		case token.KwPublic:
			p.advance()
			member.Visibility = ast.VisibilityPublic

			continue
		case token.KwPrivate:
			p.advance()
			member.Visibility = ast.VisibilityPrivate

			continue
		case token.KwProtected:
			p.advance()
			member.Visibility = ast.VisibilityProtected

			continue
		case token.KwStatic:
			p.advance()
			member.Static = true

			continue
		case token.KwReadonly:
			p.advance()
			member.Readonly = true

			continue
		case token.KwAbstract:
			p.advance()
			member.Abstract = true

			continue
		case token.KwOverride:
			p.advance()
			member.Override = true

			continue
		}

		break
	}

	isGetter := false
	isSetter := false

	if p.check(token.KwGet) && p.peekAt(1).Kind != token.LParen {
		p.advance()
		isGetter = true
	} else if p.check(token.KwSet) && p.peekAt(1).Kind != token.LParen {
		p.advance()
		isSetter = true
	}

	if p.match(token.NonNull) {
		// definite-assignment assertion on a field; discarded, parse-and-ignore.
	}

	name := p.readMemberName(member)

	switch {
	case p.check(token.LParen):
		member.Params = p.parseParamList()

		if p.match(token.Colon) {
			p.parseTypeAnnotation()
		}

		if p.check(token.LBrace) {
			member.Body = p.parseBlock()
		} else {
			p.match(token.Semicolon)
		}

		switch {
		case name == "constructor":
			member.Kind = ast.MemberConstructor
		case isGetter:
			member.Kind = ast.MemberGetter
		case isSetter:
			member.Kind = ast.MemberSetter
		default:
			member.Kind = ast.MemberMethod
		}
	default:
		member.Kind = ast.MemberField

		if p.match(token.Colon) {
			p.parseTypeAnnotation()
		}

		if p.match(token.Assign) {
			member.Value = p.parseAssignExpr()
		}

		p.match(token.Semicolon)
	}

	member.Name = name
	member.SpanVal = p.spanFrom(start)

	return member
}

func (p *Parser) readMemberName(member *ast.ClassMember) string {
	if p.check(token.Identifier) {
		if strings.HasPrefix(p.peek().Lexeme, "#") {
			member.Private = true
		}

		return p.advance().Lexeme
	}

	// Keywords can be used as member names (e.g. `static`, `get`); accept
	// whatever token sits here rather than failing the whole class.
	return p.advance().Lexeme
}

func (p *Parser) parseInterfaceDecl(exported bool) ast.Stmt {
	start := p.advance().Span // 'interface'
	name := p.expect(token.Identifier).Lexeme

	if p.check(token.Lt) {
		p.skipBalancedAngle()
	}

	if p.match(token.KwExtends) {
		p.expect(token.Identifier)

		for p.match(token.Comma) {
			p.expect(token.Identifier)
		}
	}

	p.skipBalanced(token.LBrace, token.RBrace)

	return &ast.InterfaceDecl{SpanVal: p.spanFrom(start), Name: name, Exported: exported}
}

func (p *Parser) parseTypeAliasDecl(exported bool) ast.Stmt {
	start := p.advance().Span // 'type'
	name := p.expect(token.Identifier).Lexeme

	if p.check(token.Lt) {
		p.skipBalancedAngle()
	}

	p.expect(token.Assign)
	typ := p.parseTypeAnnotation()
	p.match(token.Semicolon)

	return &ast.TypeAliasDecl{SpanVal: p.spanFrom(start), Name: name, Type: typ, Exported: exported}
}

func (p *Parser) parseEnumDecl(isConst, exported bool) ast.Stmt {
	start := p.peek().Span

	if p.check(token.KwConst) {
		isConst = true
		p.advance()
	}

	p.expect(token.KwEnum)
	name := p.expect(token.Identifier).Lexeme
	p.expect(token.LBrace)

	enum := &ast.EnumDecl{Name: name, Const: isConst, Exported: exported}

	for !p.check(token.RBrace) && !p.atEnd() {
		memberName := p.expect(token.Identifier).Lexeme

		var init ast.Expr
		if p.match(token.Assign) {
			init = p.parseAssignExpr()
		}

		enum.Members = append(enum.Members, ast.EnumMember{Name: memberName, Init: init})

		if !p.match(token.Comma) {
			break
		}
	}

	p.expect(token.RBrace)
	enum.SpanVal = p.spanFrom(start)

	return enum
}

func (p *Parser) parseImportDecl() ast.Stmt {
	start := p.advance().Span // 'import'
	decl := &ast.ImportDecl{}

	if p.check(token.String) {
		decl.ModulePath = p.advance().Lexeme
		p.match(token.Semicolon)
		decl.SpanVal = p.spanFrom(start)

		return decl
	}

	if p.check(token.Identifier) {
		def := p.advance().Lexeme
		decl.Specifiers = append(decl.Specifiers, ast.ImportSpecifier{Local: def, Default: true})
		p.match(token.Comma)
	}

	if p.match(token.Star) {
		p.expect(token.KwAs)
		local := p.expect(token.Identifier).Lexeme
		decl.Specifiers = append(decl.Specifiers, ast.ImportSpecifier{Local: local, Namespace: true})
	} else if p.match(token.LBrace) {
		for !p.check(token.RBrace) && !p.atEnd() {
			imported := p.expect(token.Identifier).Lexeme
			local := imported

			if p.match(token.KwAs) {
				local = p.expect(token.Identifier).Lexeme
			}

			decl.Specifiers = append(decl.Specifiers, ast.ImportSpecifier{Imported: imported, Local: local})

			if !p.match(token.Comma) {
				break
			}
		}

		p.expect(token.RBrace)
	}

	p.matchContextual("from")

	if p.check(token.String) {
		decl.ModulePath = p.advance().Lexeme
	}

	p.match(token.Semicolon)
	decl.SpanVal = p.spanFrom(start)

	return decl
}

func (p *Parser) parseExportDecl() ast.Stmt {
	start := p.advance().Span // 'export'

	if p.match(token.KwDefault) {
		if p.check(token.KwFunction) {
			return &ast.ExportDefaultDecl{SpanVal: p.spanFrom(start), Decl: p.parseFunctionDecl(false, true).(ast.Decl)}
		}

		if p.check(token.KwClass) {
			return &ast.ExportDefaultDecl{SpanVal: p.spanFrom(start), Decl: p.parseClassDecl(true, true).(ast.Decl)}
		}

		expr := p.parseAssignExpr()
		p.match(token.Semicolon)

		return &ast.ExportDefaultDecl{SpanVal: p.spanFrom(start), Expr: expr}
	}

	switch p.peek().Kind {
	case token.KwFunction:
		return p.parseFunctionDecl(false, true)
	case token.KwAsync:
		p.advance()

		return p.parseFunctionDecl(true, true)
	case token.KwClass:
		return p.parseClassDecl(true, false)
	case token.KwVar, token.KwLet, token.KwConst:
		d := p.parseVarDecl()
		p.match(token.Semicolon)

		return &ast.ExportNamedDecl{SpanVal: p.spanFrom(start), Decl: d}
	case token.KwInterface:
		return p.parseInterfaceDecl(true)
	case token.KwType:
		return p.parseTypeAliasDecl(true)
	case token.KwEnum:
		return p.parseEnumDecl(false, true)
	case token.LBrace:
		p.advance()

		named := &ast.ExportNamedDecl{SpanVal: p.spanFrom(start)}

		for !p.check(token.RBrace) && !p.atEnd() {
			local := p.expect(token.Identifier).Lexeme
			exportedName := local

			if p.match(token.KwAs) {
				exportedName = p.expect(token.Identifier).Lexeme
			}

			named.Specifiers = append(named.Specifiers, ast.ImportSpecifier{Local: local, Imported: exportedName})

			if !p.match(token.Comma) {
				break
			}
		}

		p.expect(token.RBrace)

		p.matchContextual("from")

		if p.check(token.String) {
			named.FromModule = p.advance().Lexeme
		}

		p.match(token.Semicolon)
		named.SpanVal = p.spanFrom(start)

		return named
	default:
		expr := p.parseExpression()
		p.match(token.Semicolon)

		return &ast.ExprStmt{SpanVal: p.spanFrom(start), Expr: expr}
	}
}
