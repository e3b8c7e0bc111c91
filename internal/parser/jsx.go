package parser

import (
	"strings"

	"github.com/orizon-lang/orizon/internal/ast"
	"github.com/orizon-lang/orizon/internal/position"
	"github.com/orizon-lang/orizon/internal/token"
)

// parseJSX parses a JSX element or fragment starting at the current `<`
// token, per spec §3's JSX node family. The pre-tokenized stream has no
// notion of "text mode", so child text runs are reconstructed by rejoining
// adjacent token lexemes with single spaces; this loses exact whitespace
// fidelity but preserves the semantic content used by HIR lowering.
func (p *Parser) parseJSX() ast.Expr {
	start := p.peek().Span
	p.expect(token.Lt)

	if p.check(token.Gt) {
		p.advance()

		children := p.parseJSXChildren()
		p.expectJSXFragmentClose()

		return &ast.JSXFragment{SpanVal: p.spanFrom(start), Children: children}
	}

	name := p.parseJSXName()
	attrs := p.parseJSXAttrs()

	if p.match(token.Slash) {
		p.expect(token.Gt)

		return &ast.JSXElement{SpanVal: p.spanFrom(start), Name: name, Attrs: attrs, SelfClosing: true}
	}

	p.expect(token.Gt)

	children := p.parseJSXChildren()
	p.expectJSXClosingTag(start, name)

	return &ast.JSXElement{SpanVal: p.spanFrom(start), Name: name, Attrs: attrs, Children: children}
}

func (p *Parser) parseJSXName() string {
	name := p.advance().Lexeme

	for p.check(token.Dot) {
		p.advance()
		name += "." + p.advance().Lexeme
	}

	return name
}

func (p *Parser) parseJSXAttrs() []ast.JSXAttr {
	var attrs []ast.JSXAttr

	for !p.check(token.Gt) && !p.check(token.Slash) && !p.atEnd() {
		if p.match(token.DotDotDot) {
			expr := p.parseAssignExpr()
			attrs = append(attrs, ast.JSXAttr{Spread: true, Value: expr})

			continue
		}

		name := p.advance().Lexeme

		var value ast.Expr

		if p.match(token.Assign) {
			switch {
			case p.check(token.String):
				tok := p.advance()
				value = &ast.StringLit{SpanVal: tok.Span, Value: unescapeString(tok.Lexeme)}
			case p.match(token.LBrace):
				value = p.parseAssignExpr()
				p.expect(token.RBrace)
			default:
				p.diags.Errorf(p.peek().Span, "expected string or '{' after '=' in JSX attribute")
			}
		}

		attrs = append(attrs, ast.JSXAttr{Name: name, Value: value})
	}

	return attrs
}

func (p *Parser) parseJSXChildren() []ast.Node {
	var children []ast.Node

	var text strings.Builder

	flush := func() {
		if text.Len() > 0 {
			children = append(children, &ast.JSXText{Value: text.String()})
			text.Reset()
		}
	}

	for {
		if p.atEnd() {
			flush()

			return children
		}

		if p.check(token.Lt) && p.peekAt(1).Kind == token.Slash {
			flush()

			return children
		}

		if p.check(token.Lt) {
			flush()
			children = append(children, p.parseJSX())

			continue
		}

		if p.check(token.LBrace) {
			flush()

			start := p.advance().Span
			if p.match(token.RBrace) {
				continue // empty `{}` child, commonly a stray comment placeholder
			}

			expr := p.parseAssignExpr()
			p.expect(token.RBrace)
			children = append(children, &ast.JSXExprContainer{SpanVal: p.spanFrom(start), Expr: expr})

			continue
		}

		tok := p.advance()
		if text.Len() > 0 {
			text.WriteByte(' ')
		}

		text.WriteString(tok.Lexeme)
	}
}

func (p *Parser) expectJSXClosingTag(start position.Span, name string) {
	p.expect(token.Lt)
	p.expect(token.Slash)

	closing := p.parseJSXName()
	if closing != name {
		p.diags.Errorf(p.spanFrom(start), "mismatched JSX closing tag: expected '%s', found '%s'", name, closing)
	}

	p.expect(token.Gt)
}

func (p *Parser) expectJSXFragmentClose() {
	p.expect(token.Lt)
	p.expect(token.Slash)
	p.expect(token.Gt)
}
