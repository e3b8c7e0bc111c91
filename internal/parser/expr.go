package parser

import (
	"strings"

	"github.com/orizon-lang/orizon/internal/ast"
	"github.com/orizon-lang/orizon/internal/lexer"
	"github.com/orizon-lang/orizon/internal/position"
	"github.com/orizon-lang/orizon/internal/token"
)

// parseExpression parses the lowest (comma/sequence) stratum.
func (p *Parser) parseExpression() ast.Expr {
	start := p.peek().Span
	first := p.parseAssignExpr()

	if !p.check(token.Comma) {
		return first
	}

	seq := &ast.SequenceExpr{Exprs: []ast.Expr{first}}

	for p.match(token.Comma) {
		seq.Exprs = append(seq.Exprs, p.parseAssignExpr())
	}

	seq.SpanVal = p.spanFrom(start)

	return seq
}

var assignOps = map[token.Kind]ast.Op{
	token.Assign: ast.OpAssign, token.PlusEqual: ast.OpAddAssign, token.MinusEqual: ast.OpSubAssign,
	token.StarEqual: ast.OpMulAssign, token.SlashEqual: ast.OpDivAssign, token.PercentEqual: ast.OpModAssign,
	token.StarStarEqual: ast.OpPowAssign, token.AmpEqual: ast.OpAndAssign, token.PipeEqual: ast.OpOrAssign,
	token.CaretEqual: ast.OpXorAssign, token.ShlEqual: ast.OpShlAssign, token.ShrEqual: ast.OpShrAssign,
	token.UShrEqual: ast.OpUShrAssign, token.AndAndEqual: ast.OpLogicalAndAssign,
	token.OrOrEqual: ast.OpLogicalOrAssign, token.QuestionQuestionEqual: ast.OpNullishAssign,
}

// parseAssignExpr implements the assignment stratum (right-associative,
// with compound forms) and is also the arrow-function entry point, per
// spec §4.2's disambiguation rule.
func (p *Parser) parseAssignExpr() ast.Expr {
	if arrow := p.tryParseArrowFunction(); arrow != nil {
		return arrow
	}

	start := p.peek().Span
	left := p.parseConditionalExpr()

	if op, ok := assignOps[p.peek().Kind]; ok {
		p.advance()
		right := p.parseAssignExpr()

		return &ast.AssignExpr{SpanVal: p.spanFrom(start), Op: op, Target: left, Value: right}
	}

	return left
}

// tryParseArrowFunction implements spec §4.2's speculative-parse-and-rewind
// arrow disambiguation: save the cursor, attempt a parameter list, require
// `)` `=>`; on failure restore and let the caller fall through to a normal
// expression parse. Also handles bare-identifier and async-prefixed arrows.
func (p *Parser) tryParseArrowFunction() ast.Expr {
	start := p.peek().Span
	saveOuter := p.cur

	async := false

	if p.check(token.KwAsync) {
		nextIsParam := p.peekAt(1).Kind == token.Identifier && p.peekAt(2).Kind == token.Arrow
		nextIsParenList := p.peekAt(1).Kind == token.LParen

		if nextIsParam || nextIsParenList {
			async = true
			p.advance()
		}
	}

	if p.check(token.Identifier) && p.peekAt(1).Kind == token.Arrow {
		name := p.advance().Lexeme
		p.advance() // '=>'

		param := &ast.Param{Pattern: &ast.IdentPattern{Name: name}}

		return p.finishArrowBody(start, []*ast.Param{param}, async)
	}

	if !p.check(token.LParen) {
		p.cur = saveOuter

		return nil
	}

	saveParams := p.cur

	params, ok := p.tryParseArrowParamList()
	if !ok || !p.check(token.Arrow) {
		p.cur = saveOuter
		_ = saveParams

		return nil
	}

	p.advance() // '=>'

	return p.finishArrowBody(start, params, async)
}

// tryParseArrowParamList attempts the `(` paramList `)` shape without
// raising diagnostics on failure; returns ok=false on any mismatch so the
// caller can restore the cursor and fall back to a parenthesized expression.
func (p *Parser) tryParseArrowParamList() (params []*ast.Param, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			params = nil
		}
	}()

	if !p.match(token.LParen) {
		return nil, false
	}

	for !p.check(token.RParen) {
		if p.atEnd() {
			return nil, false
		}

		rest := p.match(token.DotDotDot)

		if !p.check(token.Identifier) && !p.check(token.LBracket) && !p.check(token.LBrace) {
			return nil, false
		}

		target := p.parseBindingTarget()

		var typ *ast.Type
		if p.match(token.Colon) {
			typ = p.parseTypeAnnotation()
		}

		var def ast.Expr
		if p.match(token.Assign) {
			def = p.parseAssignExpr()
		}

		params = append(params, &ast.Param{Pattern: target, Type: typ, Default: def, Rest: rest})

		if !p.match(token.Comma) {
			break
		}
	}

	if !p.match(token.RParen) {
		return nil, false
	}

	if p.match(token.Colon) {
		p.parseTypeAnnotation()
	}

	return params, true
}

func (p *Parser) finishArrowBody(start position.Span, params []*ast.Param, async bool) ast.Expr {
	if p.check(token.LBrace) {
		body := p.parseBlock()

		return &ast.ArrowFunctionExpr{SpanVal: p.spanFrom(start), Params: params, Body: body, Async: async}
	}

	expr := p.parseAssignExpr()

	return &ast.ArrowFunctionExpr{SpanVal: p.spanFrom(start), Params: params, Expression: expr, Async: async}
}

func (p *Parser) parseConditionalExpr() ast.Expr {
	start := p.peek().Span
	test := p.parseNullishExpr()

	if !p.match(token.QuestionMark) {
		return test
	}

	cons := p.parseAssignExpr()
	p.expect(token.Colon)
	alt := p.parseAssignExpr()

	return &ast.ConditionalExpr{SpanVal: p.spanFrom(start), Test: test, Consequent: cons, Alternate: alt}
}

func (p *Parser) parseNullishExpr() ast.Expr {
	start := p.peek().Span
	left := p.parseLogicalOrExpr()

	for p.check(token.QuestionQuestion) {
		p.advance()
		right := p.parseLogicalOrExpr()
		left = &ast.LogicalExpr{SpanVal: p.spanFrom(start), Op: ast.OpNullish, Left: left, Right: right}
	}

	return left
}

func (p *Parser) parseLogicalOrExpr() ast.Expr {
	start := p.peek().Span
	left := p.parseLogicalAndExpr()

	for p.check(token.OrOr) {
		p.advance()
		right := p.parseLogicalAndExpr()
		left = &ast.LogicalExpr{SpanVal: p.spanFrom(start), Op: ast.OpOr, Left: left, Right: right}
	}

	return left
}

func (p *Parser) parseLogicalAndExpr() ast.Expr {
	start := p.peek().Span
	left := p.parseBitOrExpr()

	for p.check(token.AndAnd) {
		p.advance()
		right := p.parseBitOrExpr()
		left = &ast.LogicalExpr{SpanVal: p.spanFrom(start), Op: ast.OpAnd, Left: left, Right: right}
	}

	return left
}

func (p *Parser) parseBitOrExpr() ast.Expr {
	return p.parseBinaryLevel(p.parseBitXorExpr, map[token.Kind]ast.Op{token.Pipe: ast.OpBitOr})
}

func (p *Parser) parseBitXorExpr() ast.Expr {
	return p.parseBinaryLevel(p.parseBitAndExpr, map[token.Kind]ast.Op{token.Caret: ast.OpBitXor})
}

func (p *Parser) parseBitAndExpr() ast.Expr {
	return p.parseBinaryLevel(p.parseEqualityExpr, map[token.Kind]ast.Op{token.Amp: ast.OpBitAnd})
}

func (p *Parser) parseEqualityExpr() ast.Expr {
	return p.parseBinaryLevel(p.parseRelationalExpr, map[token.Kind]ast.Op{
		token.Eq: ast.OpEq, token.NotEq: ast.OpNotEq, token.EqStrict: ast.OpStrictEq, token.NotEqStrict: ast.OpStrictNotEq,
	})
}

func (p *Parser) parseRelationalExpr() ast.Expr {
	return p.parseBinaryLevel(p.parseShiftExpr, map[token.Kind]ast.Op{
		token.Lt: ast.OpLt, token.Gt: ast.OpGt, token.Le: ast.OpLe, token.Ge: ast.OpGe,
		token.KwInstanceof: ast.OpInstanceof, token.KwIn: ast.OpIn,
	})
}

func (p *Parser) parseShiftExpr() ast.Expr {
	return p.parseBinaryLevel(p.parseAdditiveExpr, map[token.Kind]ast.Op{
		token.Shl: ast.OpShl, token.Shr: ast.OpShr, token.UShr: ast.OpUShr,
	})
}

func (p *Parser) parseAdditiveExpr() ast.Expr {
	return p.parseBinaryLevel(p.parseMultiplicativeExpr, map[token.Kind]ast.Op{
		token.Plus: ast.OpAdd, token.Minus: ast.OpSub,
	})
}

func (p *Parser) parseMultiplicativeExpr() ast.Expr {
	return p.parseBinaryLevel(p.parseExponentExpr, map[token.Kind]ast.Op{
		token.Star: ast.OpMul, token.Slash: ast.OpDiv, token.Percent: ast.OpMod,
	})
}

// parseExponentExpr is right-associative, per spec §4.2.
func (p *Parser) parseExponentExpr() ast.Expr {
	start := p.peek().Span
	left := p.parseUnaryExpr()

	if p.check(token.StarStar) {
		p.advance()
		right := p.parseExponentExpr()

		return &ast.BinaryExpr{SpanVal: p.spanFrom(start), Op: ast.OpPow, Left: left, Right: right}
	}

	return left
}

func (p *Parser) parseBinaryLevel(next func() ast.Expr, ops map[token.Kind]ast.Op) ast.Expr {
	start := p.peek().Span
	left := next()

	for {
		op, ok := ops[p.peek().Kind]
		if !ok {
			return left
		}

		p.advance()
		right := next()
		left = &ast.BinaryExpr{SpanVal: p.spanFrom(start), Op: op, Left: left, Right: right}
	}
}

var unaryOps = map[token.Kind]ast.Op{
	token.Plus: ast.OpPlus, token.Minus: ast.OpNeg, token.Not: ast.OpNot, token.Tilde: ast.OpBitNot,
	token.KwTypeof: ast.OpTypeof, token.KwVoid: ast.OpVoid, token.KwDelete: ast.OpDelete, token.KwAwait: ast.OpAwait,
}

func (p *Parser) parseUnaryExpr() ast.Expr {
	start := p.peek().Span

	if op, ok := unaryOps[p.peek().Kind]; ok {
		p.advance()
		operand := p.parseUnaryExpr()

		return &ast.UnaryExpr{SpanVal: p.spanFrom(start), Op: op, Operand: operand, Prefix: true}
	}

	if p.check(token.PlusPlus) || p.check(token.MinusMinus) {
		op := ast.OpPreInc
		if p.peek().Kind == token.MinusMinus {
			op = ast.OpPreDec
		}

		p.advance()
		operand := p.parseUnaryExpr()

		return &ast.UpdateExpr{SpanVal: p.spanFrom(start), Op: op, Operand: operand, Prefix: true}
	}

	return p.parsePostfixExpr()
}

// parsePostfixExpr covers call/member/optional-chain/template-tag/non-null
// `!`/`as`/`satisfies`, the highest-but-one stratum in spec §4.2.
func (p *Parser) parsePostfixExpr() ast.Expr {
	start := p.peek().Span
	expr := p.parseLeftHandSideExpr()

	if (p.check(token.PlusPlus) || p.check(token.MinusMinus)) && !p.precededByNewline() {
		op := ast.OpPostInc
		if p.peek().Kind == token.MinusMinus {
			op = ast.OpPostDec
		}

		p.advance()

		return &ast.UpdateExpr{SpanVal: p.spanFrom(start), Op: op, Operand: expr, Prefix: false}
	}

	return expr
}

// precededByNewline is a conservative ASI helper: since the lexer does not
// preserve newline tokens, this always reports false. Automatic semicolon
// insertion around postfix ++/-- is out of scope for this core (spec's
// non-goal: "production-quality error recovery").
func (p *Parser) precededByNewline() bool { return false }

func (p *Parser) parseLeftHandSideExpr() ast.Expr {
	start := p.peek().Span

	var expr ast.Expr
	if p.check(token.KwNew) {
		expr = p.parseNewExpr()
	} else {
		expr = p.parsePrimaryExpr()
	}

	for {
		switch {
		case p.check(token.Dot):
			p.advance()
			name := p.advance().Lexeme
			expr = &ast.MemberExpr{SpanVal: p.spanFrom(start), Object: expr, Property: &ast.Ident{Name: name}}
		case p.check(token.QuestionDot):
			p.advance()

			if p.check(token.LParen) {
				args, spreads := p.parseArgs()
				expr = &ast.CallExpr{SpanVal: p.spanFrom(start), Callee: expr, Args: args, Spreads: spreads, Optional: true}

				continue
			}

			if p.check(token.LBracket) {
				p.advance()
				idx := p.parseExpression()
				p.expect(token.RBracket)
				expr = &ast.MemberExpr{SpanVal: p.spanFrom(start), Object: expr, Property: idx, Computed: true, Optional: true}

				continue
			}

			name := p.advance().Lexeme
			expr = &ast.MemberExpr{SpanVal: p.spanFrom(start), Object: expr, Property: &ast.Ident{Name: name}, Optional: true}
		case p.check(token.LBracket):
			p.advance()
			idx := p.parseExpression()
			p.expect(token.RBracket)
			expr = &ast.MemberExpr{SpanVal: p.spanFrom(start), Object: expr, Property: idx, Computed: true}
		case p.check(token.LParen):
			args, spreads := p.parseArgs()
			expr = &ast.CallExpr{SpanVal: p.spanFrom(start), Callee: expr, Args: args, Spreads: spreads}
		case p.check(token.NonNull):
			p.advance()
			expr = &ast.NonNullExpr{SpanVal: p.spanFrom(start), Operand: expr}
		case p.check(token.KwAs):
			p.advance()
			typ := p.parseTypeAnnotation()
			expr = &ast.AsExpr{SpanVal: p.spanFrom(start), Operand: expr, Type: typ}
		case p.check(token.KwSatisfies):
			p.advance()
			p.parseTypeAnnotation() // collapsed away; satisfies does not change emitted types.
		case p.check(token.Template):
			tmpl := p.parseTemplateLiteral()
			expr = &ast.TaggedTemplateExpr{SpanVal: p.spanFrom(start), Tag: expr, Template: tmpl}
		default:
			return expr
		}
	}
}

func (p *Parser) parseNewExpr() ast.Expr {
	start := p.advance().Span // 'new'
	callee := p.parseLeftHandSideExprNoCall()

	var args []ast.Expr

	if p.check(token.LParen) {
		args, _ = p.parseArgs()
	}

	return &ast.NewExpr{SpanVal: p.spanFrom(start), Callee: callee, Args: args}
}

// parseLeftHandSideExprNoCall parses member accesses but stops before a call
// so `new Foo(a)(b)` binds the call to the `new` expression, not to `Foo`.
func (p *Parser) parseLeftHandSideExprNoCall() ast.Expr {
	start := p.peek().Span
	expr := p.parsePrimaryExpr()

	for {
		switch {
		case p.check(token.Dot):
			p.advance()
			name := p.advance().Lexeme
			expr = &ast.MemberExpr{SpanVal: p.spanFrom(start), Object: expr, Property: &ast.Ident{Name: name}}
		case p.check(token.LBracket):
			p.advance()
			idx := p.parseExpression()
			p.expect(token.RBracket)
			expr = &ast.MemberExpr{SpanVal: p.spanFrom(start), Object: expr, Property: idx, Computed: true}
		default:
			return expr
		}
	}
}

func (p *Parser) parseArgs() ([]ast.Expr, []bool) {
	p.expect(token.LParen)

	var args []ast.Expr

	var spreads []bool

	for !p.check(token.RParen) && !p.atEnd() {
		spread := p.match(token.DotDotDot)
		args = append(args, p.parseAssignExpr())
		spreads = append(spreads, spread)

		if !p.match(token.Comma) {
			break
		}
	}

	p.expect(token.RParen)

	return args, spreads
}

func (p *Parser) parsePrimaryExpr() ast.Expr {
	start := p.peek().Span
	tok := p.peek()

	switch tok.Kind {
	case token.Number:
		p.advance()

		return &ast.NumberLit{SpanVal: start, Value: tok.Lexeme}
	case token.String:
		p.advance()

		return &ast.StringLit{SpanVal: start, Value: unescapeString(tok.Lexeme)}
	case token.True, token.False:
		p.advance()

		return &ast.BoolLit{SpanVal: start, Value: tok.Kind == token.True}
	case token.Null:
		p.advance()

		return &ast.NullLit{SpanVal: start}
	case token.Undefined:
		p.advance()

		return &ast.UndefinedLit{SpanVal: start}
	case token.Regex:
		p.advance()

		return p.buildRegexLit(start, tok.Lexeme)
	case token.Template:
		return p.parseTemplateLiteral()
	case token.Identifier:
		p.advance()

		return &ast.Ident{SpanVal: start, Name: tok.Lexeme}
	case token.KwThis:
		p.advance()

		return &ast.Ident{SpanVal: start, Name: "this"}
	case token.KwSuper:
		p.advance()

		return &ast.Ident{SpanVal: start, Name: "super"}
	case token.LParen:
		p.advance()
		expr := p.parseExpression()
		p.expect(token.RParen)

		return expr
	case token.LBracket:
		return p.parseArrayLit()
	case token.LBrace:
		return p.parseObjectLit()
	case token.KwFunction:
		return p.parseFunctionExpr(false)
	case token.KwAsync:
		if p.peekAt(1).Kind == token.KwFunction {
			p.advance()

			return p.parseFunctionExpr(true)
		}

		p.advance()

		return &ast.Ident{SpanVal: start, Name: "async"}
	case token.KwClass:
		cls := p.parseClassDecl(false, false).(*ast.ClassDecl)

		return &ast.ClassExpr{SpanVal: p.spanFrom(start), Class: cls}
	case token.Lt:
		return p.parseJSX()
	case token.Slash, token.SlashEqual:
		// The lexer's allow-set missed this `/`; force regex interpretation
		// per spec §4.1's `tryLexRegex()` fallback.
		return p.forceRegexFallback(start)
	default:
		p.diags.Errorf(start, "unexpected token '%s'", tok.Kind)
		p.advance()

		return &ast.Ident{SpanVal: start, Name: "<error>"}
	}
}

func (p *Parser) forceRegexFallback(start position.Span) ast.Expr {
	p.diags.Warnf(start, "reinterpreting '/' as a regular expression literal")
	p.advance()

	return &ast.RegexLit{SpanVal: start, Pattern: "", Flags: ""}
}

func (p *Parser) buildRegexLit(span position.Span, lexeme string) ast.Expr {
	body := lexeme
	lastSlash := strings.LastIndexByte(body, '/')
	pattern := body[1:lastSlash]
	flags := body[lastSlash+1:]

	return &ast.RegexLit{SpanVal: span, Pattern: pattern, Flags: flags}
}

func (p *Parser) parseFunctionExpr(async bool) ast.Expr {
	start := p.peek().Span
	p.expect(token.KwFunction)
	generator := p.match(token.Star)

	name := ""
	if p.check(token.Identifier) {
		name = p.advance().Lexeme
	}

	params := p.parseParamList()

	if p.match(token.Colon) {
		p.parseTypeAnnotation()
	}

	body := p.parseBlock()

	return &ast.FunctionExpr{SpanVal: p.spanFrom(start), Name: name, Params: params, Body: body, Async: async, Generator: generator}
}

func (p *Parser) parseArrayLit() ast.Expr {
	start := p.expect(token.LBracket).Span
	lit := &ast.ArrayLit{}

	for !p.check(token.RBracket) && !p.atEnd() {
		if p.check(token.Comma) {
			lit.Elements = append(lit.Elements, nil)
			lit.Spreads = append(lit.Spreads, false)
			p.advance()

			continue
		}

		spread := p.match(token.DotDotDot)
		lit.Elements = append(lit.Elements, p.parseAssignExpr())
		lit.Spreads = append(lit.Spreads, spread)

		if !p.match(token.Comma) {
			break
		}
	}

	p.expect(token.RBracket)
	lit.SpanVal = p.spanFrom(start)

	return lit
}

func (p *Parser) parseObjectLit() ast.Expr {
	start := p.expect(token.LBrace).Span
	lit := &ast.ObjectLit{}

	for !p.check(token.RBrace) && !p.atEnd() {
		if p.match(token.DotDotDot) {
			val := p.parseAssignExpr()
			lit.Properties = append(lit.Properties, ast.ObjectProperty{Value: val, Spread: true})

			if !p.match(token.Comma) {
				break
			}

			continue
		}

		var key ast.Expr

		computed := false

		if p.match(token.LBracket) {
			key = p.parseAssignExpr()
			p.expect(token.RBracket)
			computed = true
		} else {
			tok := p.advance()
			key = &ast.Ident{SpanVal: tok.Span, Name: tok.Lexeme}
		}

		if p.check(token.LParen) {
			// method shorthand `{ foo() {...} }`
			params := p.parseParamList()

			if p.match(token.Colon) {
				p.parseTypeAnnotation()
			}

			body := p.parseBlock()
			fn := &ast.FunctionExpr{Params: params, Body: body}
			lit.Properties = append(lit.Properties, ast.ObjectProperty{Key: key, Value: fn})
		} else if p.match(token.Colon) {
			val := p.parseAssignExpr()
			lit.Properties = append(lit.Properties, ast.ObjectProperty{Key: key, Value: val, Computed: computed})
		} else {
			ident, _ := key.(*ast.Ident)
			lit.Properties = append(lit.Properties, ast.ObjectProperty{Key: key, Value: ident, Shorthand: true})
		}

		if !p.match(token.Comma) {
			break
		}
	}

	p.expect(token.RBrace)
	lit.SpanVal = p.spanFrom(start)

	return lit
}

// parseTemplateLiteral splits the lexer's single raw Template token on
// `${ … }`, balancing braces, into alternating quasi strings and expression
// substrings, then invokes a nested lexer+parser on each expression
// substring (spec §4.2's template-literal interpolation).
func (p *Parser) parseTemplateLiteral() *ast.TemplateLit {
	tok := p.advance()
	raw := tok.Lexeme
	inner := raw[1 : len(raw)-1] // strip backticks

	lit := &ast.TemplateLit{SpanVal: tok.Span}

	i := 0
	quasiStart := 0

	for i < len(inner) {
		if inner[i] == '\\' {
			i += 2

			continue
		}

		if i+1 < len(inner) && inner[i] == '$' && inner[i+1] == '{' {
			lit.Quasis = append(lit.Quasis, unescapeString(inner[quasiStart:i]))

			depth := 1
			exprStart := i + 2
			j := exprStart

			for j < len(inner) && depth > 0 {
				switch inner[j] {
				case '{':
					depth++
				case '}':
					depth--

					if depth == 0 {
						continue
					}
				}

				j++
			}

			exprSrc := inner[exprStart:j]
			lit.Exprs = append(lit.Exprs, p.parseNestedExpr(exprSrc, tok.Span))

			i = j + 1
			quasiStart = i

			continue
		}

		i++
	}

	lit.Quasis = append(lit.Quasis, unescapeString(inner[quasiStart:]))

	return lit
}

// parseNestedExpr lexes and parses an interpolation substring with a fresh
// lexer+parser pair, restoring the outer parser's cursor afterward (the
// outer cursor already sits past the Template token, so there is nothing to
// save/restore beyond using a disposable sub-parser).
func (p *Parser) parseNestedExpr(src string, outer position.Span) ast.Expr {
	sub := New(lexer.New(outer.Start.Filename, src), outer.Start.Filename)
	expr := sub.parseExpression()
	p.diags.Merge(sub.diags)

	return expr
}

func unescapeString(s string) string {
	var b strings.Builder

	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])

			continue
		}

		i++

		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '0':
			b.WriteByte(0)
		case '\\', '\'', '"', '`':
			b.WriteByte(s[i])
		default:
			// Unknown escape: preserve both characters, per spec §4.1.
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}

	return b.String()
}
