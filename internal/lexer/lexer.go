// Package lexer turns Nova source text into a token stream. It stays
// context-sensitive about the two ambiguities the ES grammar cannot resolve
// at the token layer alone: regex-vs-division and template interpolation.
package lexer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/orizon-lang/orizon/internal/diagnostic"
	"github.com/orizon-lang/orizon/internal/position"
	"github.com/orizon-lang/orizon/internal/token"
)

// regexAllowSet is the set of token kinds after which a `/` is lexed as the
// start of a regex literal rather than division/assignment-division. It is
// the fixed allow-set described in spec §4.1: punctuators and keywords that
// cannot be immediately followed by a binary division operator.
var regexAllowSet = map[token.Kind]bool{
	token.Invalid: true, // start-of-file sentinel used as lastKind's zero value
	token.LParen:  true, token.LBrace: true, token.LBracket: true,
	token.Comma: true, token.Semicolon: true, token.Colon: true,
	token.Assign: true, token.PlusEqual: true, token.MinusEqual: true,
	token.StarEqual: true, token.SlashEqual: true, token.PercentEqual: true,
	token.Eq: true, token.NotEq: true, token.EqStrict: true, token.NotEqStrict: true,
	token.Lt: true, token.Gt: true, token.Le: true, token.Ge: true,
	token.AndAnd: true, token.OrOr: true, token.Not: true,
	token.Amp: true, token.Pipe: true, token.Caret: true,
	token.QuestionMark: true, token.QuestionQuestion: true, token.Arrow: true,
	token.KwReturn: true, token.KwTypeof: true, token.KwVoid: true, token.KwDelete: true,
	token.KwCase: true, token.KwIn: true, token.KwOf: true, token.KwInstanceof: true,
	token.KwNew: true, token.KwThrow: true, token.KwYield: true, token.KwAwait: true,
	token.KwDo: true, token.KwElse: true,
}

// Lexer is a byte-scanning lexical analyzer over a single source file.
type Lexer struct {
	diags *diagnostic.Collector

	filename string
	input    string

	cached []token.Token

	ch           byte
	position     int
	readPosition int
	line         int
	column       int

	lastKind token.Kind
}

// New creates a lexer for filename/source. The filename is stamped onto
// every token's span for diagnostic reporting.
func New(filename, source string) *Lexer {
	l := &Lexer{
		filename: filename,
		input:    source,
		line:     1,
		column:   0,
		diags:    diagnostic.NewCollector(diagnostic.StageLex),
	}
	l.readChar()

	return l
}

// Diagnostics returns the diagnostics accumulated during lexing.
func (l *Lexer) Diagnostics() *diagnostic.Collector {
	return l.diags
}

func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}

	l.position = l.readPosition
	l.readPosition++

	if l.ch == '\n' {
		l.line++
		l.column = 0
	} else {
		l.column++
	}
}

func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}

	return l.input[l.readPosition]
}

func (l *Lexer) peekChar2() byte {
	if l.readPosition+1 >= len(l.input) {
		return 0
	}

	return l.input[l.readPosition+1]
}

func (l *Lexer) here() position.Position {
	return position.Position{Filename: l.filename, Line: l.line, Column: l.column, Offset: l.position}
}

func (l *Lexer) span(start position.Position) position.Span {
	return position.Span{Start: start, End: l.here()}
}

// allTokens materializes the entire token stream, memoized on first call, as
// described in spec §4.1's `allTokens()` operation.
func (l *Lexer) AllTokens() []token.Token {
	if l.cached != nil {
		return l.cached
	}

	var out []token.Token

	for {
		tok := l.Next()
		out = append(out, tok)

		if tok.Kind == token.EndOfFile {
			break
		}
	}

	l.cached = out

	return out
}

// Next returns the next token, advancing the lexer and recording its kind
// for the next regex-vs-division decision.
func (l *Lexer) Next() token.Token {
	tok := l.next()
	l.lastKind = tok.Kind

	return tok
}

func (l *Lexer) next() token.Token {
	l.skipWhitespaceAndComments()

	start := l.here()

	if l.ch == 0 {
		return token.Token{Kind: token.EndOfFile, Span: l.span(start)}
	}

	switch {
	case isLetter(l.ch) || l.ch == '_' || l.ch == '$' || l.ch == '#' || l.ch >= 0x80:
		return l.readIdentifierOrKeyword(start)
	case isDigit(l.ch):
		return l.readNumber(start)
	case l.ch == '"' || l.ch == '\'':
		return l.readString(start)
	case l.ch == '`':
		return l.readTemplate(start)
	case l.ch == '/':
		if l.regexAllowedHere() {
			if tok, ok := l.tryLexRegex(start); ok {
				return tok
			}
		}

		return l.readSlashOperator(start)
	default:
		return l.readPunctuator(start)
	}
}

func (l *Lexer) regexAllowedHere() bool {
	return regexAllowSet[l.lastKind]
}

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\r' || l.ch == '\n':
			l.readChar()
		case l.ch == '/' && l.peekChar() == '/':
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
		case l.ch == '/' && l.peekChar() == '*':
			start := l.here()
			l.readChar()
			l.readChar()

			terminated := false

			for l.ch != 0 {
				if l.ch == '*' && l.peekChar() == '/' {
					l.readChar()
					l.readChar()

					terminated = true

					break
				}

				l.readChar()
			}

			if !terminated {
				l.diags.Errorf(l.span(start), "unterminated block comment")
			}
		default:
			return
		}
	}
}

func (l *Lexer) readIdentifierOrKeyword(start position.Position) token.Token {
	startPos := l.position

	// Private class fields (`#name`) are a single identifier token whose
	// lexeme keeps the sigil; `#` is otherwise never an identifier character.
	if l.ch == '#' {
		l.readChar()
	}

	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' || l.ch == '$' || l.ch >= 0x80 {
		if l.ch >= 0x80 {
			r, size := utf8.DecodeRuneInString(l.input[l.position:])
			if size == 0 || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
				break
			}

			for i := 0; i < size; i++ {
				l.readChar()
			}

			continue
		}

		l.readChar()
	}

	lexeme := l.input[startPos:l.position]
	span := l.span(start)

	if kind, ok := token.LookupKeyword(lexeme); ok {
		return token.Token{Kind: kind, Lexeme: lexeme, Span: span}
	}

	return token.Token{Kind: token.Identifier, Lexeme: lexeme, Span: span}
}

// readNumber implements spec §4.1's numeric literal grammar: decimal,
// 0x/0b/0o prefixes, underscore separators (dropped from the lexeme),
// fraction, exponent, and an optional BigInt `n` suffix.
func (l *Lexer) readNumber(start position.Position) token.Token {
	startPos := l.position

	if l.ch == '0' && (l.peekChar() == 'x' || l.peekChar() == 'X') {
		l.readChar()
		l.readChar()
		l.consumeDigitsAndUnderscores(isHexDigit)
	} else if l.ch == '0' && (l.peekChar() == 'b' || l.peekChar() == 'B') {
		l.readChar()
		l.readChar()
		l.consumeDigitsAndUnderscores(isBinDigit)
	} else if l.ch == '0' && (l.peekChar() == 'o' || l.peekChar() == 'O') {
		l.readChar()
		l.readChar()
		l.consumeDigitsAndUnderscores(isOctDigit)
	} else {
		l.consumeDigitsAndUnderscores(isDigit)

		if l.ch == '.' && isDigit(l.peekChar()) {
			l.readChar()
			l.consumeDigitsAndUnderscores(isDigit)
		}

		if l.ch == 'e' || l.ch == 'E' {
			save := l.position
			l.readChar()

			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}

			if isDigit(l.ch) {
				l.consumeDigitsAndUnderscores(isDigit)
			} else {
				l.rewindTo(save)
			}
		}
	}

	if l.ch == 'n' {
		l.readChar() // BigInt suffix; not distinguished further (spec §9 open question).
	}

	lexeme := strings.ReplaceAll(l.input[startPos:l.position], "_", "")

	return token.Token{Kind: token.Number, Lexeme: lexeme, Span: l.span(start)}
}

func (l *Lexer) consumeDigitsAndUnderscores(pred func(byte) bool) {
	for pred(l.ch) || l.ch == '_' {
		l.readChar()
	}
}

// rewindTo resets the scan cursor to a previously observed byte offset; used
// when speculative exponent scanning fails (e.g. `1e` with no digits after).
func (l *Lexer) rewindTo(offset int) {
	l.position = offset
	l.readPosition = offset

	if offset < len(l.input) {
		l.ch = l.input[offset]
	} else {
		l.ch = 0
	}

	l.readPosition = offset + 1
}

func (l *Lexer) readString(start position.Position) token.Token {
	quote := l.ch
	startPos := l.position + 1
	terminated := false

	l.readChar()

	for {
		if l.ch == quote {
			terminated = true
			l.readChar()

			break
		}

		if l.ch == 0 || l.ch == '\n' {
			break
		}

		if l.ch == '\\' {
			l.readChar()

			if l.ch != 0 {
				l.readChar()
			}

			continue
		}

		l.readChar()
	}

	lexeme := l.input[startPos:max(startPos, l.position-1)]
	if !terminated {
		lexeme = l.input[startPos:l.position]
		l.diags.Errorf(l.span(start), "unterminated string literal")
	}

	return token.Token{Kind: token.String, Lexeme: lexeme, Span: l.span(start)}
}

// readTemplate lexes an entire back-tick-delimited literal into one raw
// token (spec §4.1); interpolation splitting happens in the parser.
func (l *Lexer) readTemplate(start position.Position) token.Token {
	startPos := l.position
	l.readChar() // consume opening backtick

	depth := 0
	terminated := false

	for {
		if l.ch == 0 {
			break
		}

		if l.ch == '\\' {
			l.readChar()

			if l.ch != 0 {
				l.readChar()
			}

			continue
		}

		if l.ch == '$' && l.peekChar() == '{' {
			depth++
			l.readChar()
			l.readChar()

			continue
		}

		if depth > 0 && l.ch == '}' {
			depth--
			l.readChar()

			continue
		}

		if depth == 0 && l.ch == '`' {
			l.readChar()
			terminated = true

			break
		}

		l.readChar()
	}

	if !terminated {
		l.diags.Errorf(l.span(start), "unterminated template literal")
	}

	return token.Token{Kind: token.Template, Lexeme: l.input[startPos:l.position], Span: l.span(start)}
}

// tryLexRegex attempts to lex a regex literal starting at the current `/`.
// It is also exposed as TryLexRegex for the parser's fallback described in
// spec §4.1 (`tryLexRegex()` forcing regex interpretation).
func (l *Lexer) tryLexRegex(start position.Position) (token.Token, bool) {
	startPos := l.position
	l.readChar() // consume opening '/'

	inClass := false

	for {
		if l.ch == 0 || l.ch == '\n' {
			l.diags.Errorf(l.span(start), "unterminated regular expression literal")
			l.rewindTo(startPos)

			return token.Token{}, false
		}

		if l.ch == '\\' {
			l.readChar()

			if l.ch != 0 {
				l.readChar()
			}

			continue
		}

		if l.ch == '[' {
			inClass = true
			l.readChar()

			continue
		}

		if l.ch == ']' {
			inClass = false
			l.readChar()

			continue
		}

		if l.ch == '/' && !inClass {
			l.readChar()

			break
		}

		l.readChar()
	}

	for isLetter(l.ch) {
		l.readChar()
	}

	return token.Token{Kind: token.Regex, Lexeme: l.input[startPos:l.position], Span: l.span(start)}, true
}

// TryLexRegex is the parser-facing entry point for spec §4.1's
// `tryLexRegex()` — forcing regex interpretation of a `/` the parser has
// already observed but that the allow-set missed (e.g. after a fresh
// statement the lexer had no prior-token context for).
func (l *Lexer) TryLexRegex() (token.Token, bool) {
	start := l.here()

	return l.tryLexRegex(start)
}

func (l *Lexer) readSlashOperator(start position.Position) token.Token {
	l.readChar()

	if l.ch == '=' {
		l.readChar()

		return token.Token{Kind: token.SlashEqual, Lexeme: "/=", Span: l.span(start)}
	}

	return token.Token{Kind: token.Slash, Lexeme: "/", Span: l.span(start)}
}

func (l *Lexer) readPunctuator(start position.Position) token.Token {
	ch := l.ch
	l.readChar()

	two := func(next byte) bool { return l.ch == next }
	make2 := func(kind token.Kind, lex string) token.Token {
		l.readChar()

		return token.Token{Kind: kind, Lexeme: lex, Span: l.span(start)}
	}

	switch ch {
	case '(':
		return token.Token{Kind: token.LParen, Lexeme: "(", Span: l.span(start)}
	case ')':
		return token.Token{Kind: token.RParen, Lexeme: ")", Span: l.span(start)}
	case '{':
		return token.Token{Kind: token.LBrace, Lexeme: "{", Span: l.span(start)}
	case '}':
		return token.Token{Kind: token.RBrace, Lexeme: "}", Span: l.span(start)}
	case '[':
		return token.Token{Kind: token.LBracket, Lexeme: "[", Span: l.span(start)}
	case ']':
		return token.Token{Kind: token.RBracket, Lexeme: "]", Span: l.span(start)}
	case ';':
		return token.Token{Kind: token.Semicolon, Lexeme: ";", Span: l.span(start)}
	case ',':
		return token.Token{Kind: token.Comma, Lexeme: ",", Span: l.span(start)}
	case '@':
		return token.Token{Kind: token.At, Lexeme: "@", Span: l.span(start)}
	case '~':
		return token.Token{Kind: token.Tilde, Lexeme: "~", Span: l.span(start)}

	case '.':
		if l.ch == '.' && l.peekChar() == '.' {
			l.readChar()
			l.readChar()

			return token.Token{Kind: token.DotDotDot, Lexeme: "...", Span: l.span(start)}
		}

		return token.Token{Kind: token.Dot, Lexeme: ".", Span: l.span(start)}

	case ':':
		return token.Token{Kind: token.Colon, Lexeme: ":", Span: l.span(start)}

	case '?':
		if two('.') {
			return make2(token.QuestionDot, "?.")
		}

		if two('?') {
			l.readChar()

			if l.ch == '=' {
				l.readChar()

				return token.Token{Kind: token.QuestionQuestionEqual, Lexeme: "??=", Span: l.span(start)}
			}

			return token.Token{Kind: token.QuestionQuestion, Lexeme: "??", Span: l.span(start)}
		}

		return token.Token{Kind: token.QuestionMark, Lexeme: "?", Span: l.span(start)}

	case '+':
		if two('+') {
			return make2(token.PlusPlus, "++")
		}

		if two('=') {
			return make2(token.PlusEqual, "+=")
		}

		return token.Token{Kind: token.Plus, Lexeme: "+", Span: l.span(start)}

	case '-':
		if two('-') {
			return make2(token.MinusMinus, "--")
		}

		if two('=') {
			return make2(token.MinusEqual, "-=")
		}

		return token.Token{Kind: token.Minus, Lexeme: "-", Span: l.span(start)}

	case '*':
		if two('*') {
			l.readChar()

			if l.ch == '=' {
				l.readChar()

				return token.Token{Kind: token.StarStarEqual, Lexeme: "**=", Span: l.span(start)}
			}

			return token.Token{Kind: token.StarStar, Lexeme: "**", Span: l.span(start)}
		}

		if two('=') {
			return make2(token.StarEqual, "*=")
		}

		return token.Token{Kind: token.Star, Lexeme: "*", Span: l.span(start)}

	case '%':
		if two('=') {
			return make2(token.PercentEqual, "%=")
		}

		return token.Token{Kind: token.Percent, Lexeme: "%", Span: l.span(start)}

	case '=':
		if two('=') {
			l.readChar()

			if l.ch == '=' {
				l.readChar()

				return token.Token{Kind: token.EqStrict, Lexeme: "===", Span: l.span(start)}
			}

			return token.Token{Kind: token.Eq, Lexeme: "==", Span: l.span(start)}
		}

		if two('>') {
			return make2(token.Arrow, "=>")
		}

		return token.Token{Kind: token.Assign, Lexeme: "=", Span: l.span(start)}

	case '!':
		if two('=') {
			l.readChar()

			if l.ch == '=' {
				l.readChar()

				return token.Token{Kind: token.NotEqStrict, Lexeme: "!==", Span: l.span(start)}
			}

			return token.Token{Kind: token.NotEq, Lexeme: "!=", Span: l.span(start)}
		}

		return token.Token{Kind: token.Not, Lexeme: "!", Span: l.span(start)}

	case '<':
		if two('<') {
			l.readChar()

			if l.ch == '=' {
				l.readChar()

				return token.Token{Kind: token.ShlEqual, Lexeme: "<<=", Span: l.span(start)}
			}

			return token.Token{Kind: token.Shl, Lexeme: "<<", Span: l.span(start)}
		}

		if two('=') {
			return make2(token.Le, "<=")
		}

		return token.Token{Kind: token.Lt, Lexeme: "<", Span: l.span(start)}

	case '>':
		if two('>') {
			l.readChar()

			if l.ch == '>' {
				l.readChar()

				if l.ch == '=' {
					l.readChar()

					return token.Token{Kind: token.UShrEqual, Lexeme: ">>>=", Span: l.span(start)}
				}

				return token.Token{Kind: token.UShr, Lexeme: ">>>", Span: l.span(start)}
			}

			if l.ch == '=' {
				l.readChar()

				return token.Token{Kind: token.ShrEqual, Lexeme: ">>=", Span: l.span(start)}
			}

			return token.Token{Kind: token.Shr, Lexeme: ">>", Span: l.span(start)}
		}

		if two('=') {
			return make2(token.Ge, ">=")
		}

		return token.Token{Kind: token.Gt, Lexeme: ">", Span: l.span(start)}

	case '&':
		if two('&') {
			l.readChar()

			if l.ch == '=' {
				l.readChar()

				return token.Token{Kind: token.AndAndEqual, Lexeme: "&&=", Span: l.span(start)}
			}

			return token.Token{Kind: token.AndAnd, Lexeme: "&&", Span: l.span(start)}
		}

		if two('=') {
			return make2(token.AmpEqual, "&=")
		}

		return token.Token{Kind: token.Amp, Lexeme: "&", Span: l.span(start)}

	case '|':
		if two('|') {
			l.readChar()

			if l.ch == '=' {
				l.readChar()

				return token.Token{Kind: token.OrOrEqual, Lexeme: "||=", Span: l.span(start)}
			}

			return token.Token{Kind: token.OrOr, Lexeme: "||", Span: l.span(start)}
		}

		if two('=') {
			return make2(token.PipeEqual, "|=")
		}

		return token.Token{Kind: token.Pipe, Lexeme: "|", Span: l.span(start)}

	case '^':
		if two('=') {
			return make2(token.CaretEqual, "^=")
		}

		return token.Token{Kind: token.Caret, Lexeme: "^", Span: l.span(start)}

	default:
		l.diags.Errorf(l.span(start), "unexpected character %q", ch)

		return token.Token{Kind: token.Invalid, Lexeme: string(ch), Span: l.span(start)}
	}
}

func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func isHexDigit(ch byte) bool {
	return isDigit(ch) || 'a' <= ch && ch <= 'f' || 'A' <= ch && ch <= 'F'
}

func isBinDigit(ch byte) bool {
	return ch == '0' || ch == '1'
}

func isOctDigit(ch byte) bool {
	return '0' <= ch && ch <= '7'
}

func max(a, b int) int {
	if a > b {
		return a
	}

	return b
}
