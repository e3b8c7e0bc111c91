// Package token defines the lexical tokens produced by internal/lexer and
// consumed by internal/parser: a kind enumeration, the keyword table, and
// the Token type itself.
package token

import "github.com/orizon-lang/orizon/internal/position"

// Kind discriminates every lexical category the lexer can produce.
type Kind int

const (
	Invalid Kind = iota
	EndOfFile

	// Literals.
	Number
	String
	Template
	Regex
	True
	False
	Null
	Undefined
	Identifier

	// Keywords (JS).
	KwBreak
	KwCase
	KwCatch
	KwClass
	KwConst
	KwContinue
	KwDebugger
	KwDefault
	KwDelete
	KwDo
	KwElse
	KwExport
	KwExtends
	KwFinally
	KwFor
	KwFunction
	KwIf
	KwImport
	KwIn
	KwInstanceof
	KwLet
	KwNew
	KwOf
	KwReturn
	KwStatic
	KwSuper
	KwSwitch
	KwThis
	KwThrow
	KwTry
	KwTypeof
	KwVar
	KwVoid
	KwWhile
	KwWith
	KwYield
	KwAsync
	KwAwait
	KwGet
	KwSet

	// Keywords (TypeScript-specific).
	KwAbstract
	KwAny
	KwAs
	KwAsserts
	KwBigint
	KwBoolean
	KwDeclare
	KwEnum
	KwImplements
	KwInfer
	KwInterface
	KwIs
	KwKeyof
	KwModule
	KwNamespace
	KwNever
	KwNumberType
	KwObjectType
	KwOverride
	KwPrivate
	KwProtected
	KwPublic
	KwReadonly
	KwRequire
	KwSatisfies
	KwStringType
	KwSymbolType
	KwType
	KwUndefinedType
	KwUnique
	KwUnknown
	KwVoidType

	// Punctuation/operators.
	LParen
	RParen
	LBrace
	RBrace
	LBracket
	RBracket
	Semicolon
	Comma
	Dot
	DotDotDot
	Colon
	QuestionMark
	QuestionDot
	QuestionQuestion
	QuestionQuestionEqual
	Arrow
	NonNull

	Plus
	Minus
	Star
	StarStar
	Slash
	Percent
	PlusPlus
	MinusMinus

	Assign
	PlusEqual
	MinusEqual
	StarEqual
	StarStarEqual
	SlashEqual
	PercentEqual
	AmpEqual
	PipeEqual
	CaretEqual
	ShlEqual
	ShrEqual
	UShrEqual
	AndAndEqual
	OrOrEqual

	Eq
	NotEq
	EqStrict
	NotEqStrict
	Lt
	Gt
	Le
	Ge

	AndAnd
	OrOr
	Not

	Amp
	Pipe
	Caret
	Tilde
	Shl
	Shr
	UShr

	At // decorator sigil

	// JSX-specific punctuation reuses Lt/Gt/Slash; no dedicated kinds needed.
)

// keywords maps every reserved word recognized by the lexer to its Kind.
// Anything not present here lexes as Identifier.
var keywords = map[string]Kind{
	"break": KwBreak, "case": KwCase, "catch": KwCatch, "class": KwClass,
	"const": KwConst, "continue": KwContinue, "debugger": KwDebugger,
	"default": KwDefault, "delete": KwDelete, "do": KwDo, "else": KwElse,
	"export": KwExport, "extends": KwExtends, "finally": KwFinally, "for": KwFor,
	"function": KwFunction, "if": KwIf, "import": KwImport, "in": KwIn,
	"instanceof": KwInstanceof, "let": KwLet, "new": KwNew, "of": KwOf,
	"return": KwReturn, "static": KwStatic, "super": KwSuper, "switch": KwSwitch,
	"this": KwThis, "throw": KwThrow, "try": KwTry, "typeof": KwTypeof,
	"var": KwVar, "void": KwVoid, "while": KwWhile, "with": KwWith,
	"yield": KwYield, "async": KwAsync, "await": KwAwait, "get": KwGet, "set": KwSet,
	"true": True, "false": False, "null": Null, "undefined": Undefined,

	"abstract": KwAbstract, "any": KwAny, "as": KwAs, "asserts": KwAsserts,
	"bigint": KwBigint, "boolean": KwBoolean, "declare": KwDeclare,
	"enum": KwEnum, "implements": KwImplements, "infer": KwInfer,
	"interface": KwInterface, "is": KwIs, "keyof": KwKeyof, "module": KwModule,
	"namespace": KwNamespace, "never": KwNever, "number": KwNumberType,
	"object": KwObjectType, "override": KwOverride, "private": KwPrivate,
	"protected": KwProtected, "public": KwPublic, "readonly": KwReadonly,
	"require": KwRequire, "satisfies": KwSatisfies, "string": KwStringType,
	"symbol": KwSymbolType, "type": KwType, "unique": KwUnique,
	"unknown": KwUnknown,
}

// LookupKeyword returns the keyword Kind for ident, or (Identifier, false)
// if ident is not reserved.
func LookupKeyword(ident string) (Kind, bool) {
	k, ok := keywords[ident]

	return k, ok
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}

	return "UNKNOWN"
}

var kindNames = map[Kind]string{
	Invalid: "Invalid", EndOfFile: "EndOfFile",
	Number: "Number", String: "String", Template: "Template", Regex: "Regex",
	True: "True", False: "False", Null: "Null", Undefined: "Undefined",
	Identifier: "Identifier",
	LParen:     "(", RParen: ")", LBrace: "{", RBrace: "}",
	LBracket: "[", RBracket: "]", Semicolon: ";", Comma: ",",
	Dot: ".", DotDotDot: "...", Colon: ":", QuestionMark: "?",
	QuestionDot: "?.", QuestionQuestion: "??", QuestionQuestionEqual: "??=",
	Arrow: "=>", NonNull: "!",
	Plus: "+", Minus: "-", Star: "*", StarStar: "**", Slash: "/", Percent: "%",
	PlusPlus: "++", MinusMinus: "--",
	Assign: "=", PlusEqual: "+=", MinusEqual: "-=", StarEqual: "*=",
	StarStarEqual: "**=", SlashEqual: "/=", PercentEqual: "%=",
	AmpEqual: "&=", PipeEqual: "|=", CaretEqual: "^=",
	ShlEqual: "<<=", ShrEqual: ">>=", UShrEqual: ">>>=",
	AndAndEqual: "&&=", OrOrEqual: "||=",
	Eq: "==", NotEq: "!=", EqStrict: "===", NotEqStrict: "!==",
	Lt: "<", Gt: ">", Le: "<=", Ge: ">=",
	AndAnd: "&&", OrOr: "||", Not: "!",
	Amp: "&", Pipe: "|", Caret: "^", Tilde: "~", Shl: "<<", Shr: ">>", UShr: ">>>",
	At: "@",
}

// Token is a single lexical unit: a kind, its source text, and its span.
type Token struct {
	Lexeme string
	Span   position.Span
	Kind   Kind
}

// IsKeyword reports whether the token's kind is one of the reserved words.
func (t Token) IsKeyword() bool {
	return t.Kind >= KwBreak && t.Kind <= KwUnknown
}

// String renders the token for diagnostic/debug output.
func (t Token) String() string {
	return t.Kind.String() + " " + t.Lexeme
}
