package lexer

import (
	"testing"

	"github.com/orizon-lang/orizon/internal/token"
)

func kinds(toks []token.Token) []token.Kind {
	out := make([]token.Kind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}

	return out
}

func TestRegexVsDivision(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want token.Kind
	}{
		{"after return", "return /foo/;", token.Regex},
		{"after comma", "f(a, /foo/);", token.Regex},
		{"after lparen", "(/foo/)", token.Regex},
		{"after assign", "x = /foo/;", token.Regex},
		{"after identifier", "x /foo/", token.Slash},
		{"after rparen", "f() /foo/", token.Slash},
		{"after rbracket", "a[0] /foo/", token.Slash},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			l := New("t.ts", c.src)

			toks := l.AllTokens()

			found := token.Invalid

			for _, tok := range toks {
				if tok.Kind == token.Regex || tok.Kind == token.Slash {
					found = tok.Kind

					break
				}
			}

			if found != c.want {
				t.Fatalf("got %s, want %s (tokens: %v)", found, c.want, kinds(toks))
			}
		})
	}
}

func TestNumericLiterals(t *testing.T) {
	cases := []struct {
		src  string
		want string
	}{
		{"123", "123"},
		{"1_000", "1000"},
		{"0x1F", "0x1F"},
		{"0b101", "0b101"},
		{"0o17", "0o17"},
		{"1.5", "1.5"},
		{"1e10", "1e10"},
		{"1n", "1n"},
	}

	for _, c := range cases {
		l := New("t.ts", c.src)
		toks := l.AllTokens()

		if len(toks) == 0 || toks[0].Kind != token.Number {
			t.Fatalf("%q: expected Number token, got %v", c.src, kinds(toks))
		}

		if toks[0].Lexeme != c.want {
			t.Errorf("%q: got lexeme %q, want %q", c.src, toks[0].Lexeme, c.want)
		}
	}
}

func TestTemplateLiteralSingleToken(t *testing.T) {
	l := New("t.ts", "`hello ${name}!`")
	toks := l.AllTokens()

	if len(toks) != 2 || toks[0].Kind != token.Template || toks[1].Kind != token.EndOfFile {
		t.Fatalf("expected single Template token, got %v", kinds(toks))
	}

	if toks[0].Lexeme != "`hello ${name}!`" {
		t.Errorf("unexpected lexeme %q", toks[0].Lexeme)
	}
}

func TestStringEscapes(t *testing.T) {
	l := New("t.ts", `"a\"b"`)
	toks := l.AllTokens()

	if toks[0].Kind != token.String {
		t.Fatalf("expected String, got %s", toks[0].Kind)
	}
}

func TestUnterminatedStringRecovers(t *testing.T) {
	l := New("t.ts", "\"abc\nlet x = 1;")

	toks := l.AllTokens()
	if !l.Diagnostics().HasErrors() {
		t.Fatalf("expected unterminated string diagnostic")
	}

	// Lexer must resume and still find the following statement's tokens.
	found := false

	for _, tok := range toks {
		if tok.Kind == token.KwLet {
			found = true
		}
	}

	if !found {
		t.Fatalf("lexer did not resume after unterminated string: %v", kinds(toks))
	}
}

func TestMultiCharOperators(t *testing.T) {
	l := New("t.ts", "=== ??= ... => ?. >>>=")
	toks := l.AllTokens()

	want := []token.Kind{
		token.EqStrict, token.QuestionQuestionEqual, token.DotDotDot,
		token.Arrow, token.QuestionDot, token.UShrEqual, token.EndOfFile,
	}

	if len(toks) != len(want) {
		t.Fatalf("got %v, want %v", kinds(toks), want)
	}

	for i, k := range want {
		if toks[i].Kind != k {
			t.Errorf("token %d: got %s, want %s", i, toks[i].Kind, k)
		}
	}
}

func TestLineComment(t *testing.T) {
	l := New("t.ts", "let x = 1; // trailing comment\nlet y = 2;")
	toks := l.AllTokens()

	count := 0

	for _, tok := range toks {
		if tok.Kind == token.KwLet {
			count++
		}
	}

	if count != 2 {
		t.Fatalf("expected 2 let keywords, got %d", count)
	}
}

func TestBlockCommentUpdatesLine(t *testing.T) {
	l := New("t.ts", "/* line1\nline2 */ let x = 1;")
	toks := l.AllTokens()

	for _, tok := range toks {
		if tok.Kind == token.KwLet {
			if tok.Span.Start.Line != 2 {
				t.Errorf("expected let on line 2, got line %d", tok.Span.Start.Line)
			}

			return
		}
	}

	t.Fatalf("let token not found")
}
