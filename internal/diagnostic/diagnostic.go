// Diagnostic system for the Nova compiler.
// Collects lexer, parser, HIR, MIR, and codegen diagnostics behind one
// fluent builder and a position-ordered formatter.

package diagnostic

import (
	"fmt"
	"sort"
	"strings"

	"github.com/orizon-lang/orizon/internal/position"
)

// DiagnosticLevel represents the severity level of a diagnostic message.
type DiagnosticLevel int

const (
	DiagnosticError DiagnosticLevel = iota
	DiagnosticWarning
)

func (dl DiagnosticLevel) String() string {
	switch dl {
	case DiagnosticError:
		return "error"
	case DiagnosticWarning:
		return "warning"
	default:
		return "unknown"
	}
}

// Stage identifies which pipeline stage raised a diagnostic.
type Stage int

const (
	StageLex Stage = iota
	StageParse
	StageHIR
	StageMIR
	StageCodegen
)

func (s Stage) String() string {
	switch s {
	case StageLex:
		return "lex"
	case StageParse:
		return "parse"
	case StageHIR:
		return "hir"
	case StageMIR:
		return "mir"
	case StageCodegen:
		return "codegen"
	default:
		return "unknown"
	}
}

// Diagnostic represents a single diagnostic message.
type Diagnostic struct {
	Code        string
	Message     string
	RelatedInfo []RelatedInformation
	Span        position.Span
	Level       DiagnosticLevel
	Stage       Stage
	// Fatal marks an invariant violation: the stage that raised it must
	// discard its partial output and the driver must stop immediately.
	Fatal bool
}

// RelatedInformation provides additional context for a diagnostic.
type RelatedInformation struct {
	Message string
	Span    position.Span
}

// DiagnosticBuilder helps construct diagnostic messages with fluent API.
type DiagnosticBuilder struct {
	diagnostic *Diagnostic
}

// NewDiagnostic creates a new diagnostic builder.
func NewDiagnostic() *DiagnosticBuilder {
	return &DiagnosticBuilder{
		diagnostic: &Diagnostic{
			RelatedInfo: make([]RelatedInformation, 0),
		},
	}
}

func (db *DiagnosticBuilder) Error() *DiagnosticBuilder {
	db.diagnostic.Level = DiagnosticError

	return db
}

func (db *DiagnosticBuilder) Warning() *DiagnosticBuilder {
	db.diagnostic.Level = DiagnosticWarning

	return db
}

func (db *DiagnosticBuilder) At(stage Stage) *DiagnosticBuilder {
	db.diagnostic.Stage = stage

	return db
}

func (db *DiagnosticBuilder) Lex() *DiagnosticBuilder {
	return db.At(StageLex)
}

func (db *DiagnosticBuilder) Parse() *DiagnosticBuilder {
	return db.At(StageParse)
}

func (db *DiagnosticBuilder) HIR() *DiagnosticBuilder {
	return db.At(StageHIR)
}

func (db *DiagnosticBuilder) MIR() *DiagnosticBuilder {
	return db.At(StageMIR)
}

func (db *DiagnosticBuilder) Codegen() *DiagnosticBuilder {
	return db.At(StageCodegen)
}

func (db *DiagnosticBuilder) Code(code string) *DiagnosticBuilder {
	db.diagnostic.Code = code

	return db
}

func (db *DiagnosticBuilder) Message(message string) *DiagnosticBuilder {
	db.diagnostic.Message = message

	return db
}

func (db *DiagnosticBuilder) Messagef(format string, args ...any) *DiagnosticBuilder {
	db.diagnostic.Message = fmt.Sprintf(format, args...)

	return db
}

func (db *DiagnosticBuilder) Span(span position.Span) *DiagnosticBuilder {
	db.diagnostic.Span = span

	return db
}

// Fatal marks this diagnostic as an invariant violation (spec §7 kind 4):
// the stage must discard its output and the driver must halt.
func (db *DiagnosticBuilder) Fatal() *DiagnosticBuilder {
	db.diagnostic.Fatal = true

	return db
}

func (db *DiagnosticBuilder) Related(span position.Span, message string) *DiagnosticBuilder {
	related := RelatedInformation{
		Span:    span,
		Message: message,
	}
	db.diagnostic.RelatedInfo = append(db.diagnostic.RelatedInfo, related)

	return db
}

func (db *DiagnosticBuilder) Build() *Diagnostic {
	return db.diagnostic
}

// DiagnosticEngine manages the collection and processing of diagnostics for
// one compilation unit, across every stage of the pipeline.
type DiagnosticEngine struct {
	diagnostics []Diagnostic
	config      DiagnosticConfig
}

// DiagnosticConfig controls diagnostic behavior.
type DiagnosticConfig struct {
	IgnoreCodes      []string
	MaxErrors        int
	WarningsAsErrors bool
}

// NewDiagnosticEngine creates a new diagnostic engine.
func NewDiagnosticEngine(config DiagnosticConfig) *DiagnosticEngine {
	return &DiagnosticEngine{
		diagnostics: make([]Diagnostic, 0),
		config:      config,
	}
}

// AddDiagnostic adds a diagnostic to the engine.
func (de *DiagnosticEngine) AddDiagnostic(diagnostic *Diagnostic) {
	if de.shouldIgnore(diagnostic) {
		return
	}

	if de.config.WarningsAsErrors && diagnostic.Level == DiagnosticWarning {
		diagnostic.Level = DiagnosticError
	}

	de.diagnostics = append(de.diagnostics, *diagnostic)

	if de.config.MaxErrors > 0 && len(de.GetErrors()) >= de.config.MaxErrors {
		truncationDiag := NewDiagnostic().
			Error().
			At(diagnostic.Stage).
			Code("E0001").
			Messagef("stopping after %d errors", de.config.MaxErrors).
			Build()
		de.diagnostics = append(de.diagnostics, *truncationDiag)
	}
}

func (de *DiagnosticEngine) shouldIgnore(diagnostic *Diagnostic) bool {
	for _, code := range de.config.IgnoreCodes {
		if diagnostic.Code == code {
			return true
		}
	}

	return false
}

// GetDiagnostics returns all diagnostics.
func (de *DiagnosticEngine) GetDiagnostics() []Diagnostic {
	return de.diagnostics
}

// GetErrors returns only error-level diagnostics.
func (de *DiagnosticEngine) GetErrors() []Diagnostic {
	errors := make([]Diagnostic, 0)

	for _, diag := range de.diagnostics {
		if diag.Level == DiagnosticError {
			errors = append(errors, diag)
		}
	}

	return errors
}

// GetWarnings returns only warning-level diagnostics.
func (de *DiagnosticEngine) GetWarnings() []Diagnostic {
	warnings := make([]Diagnostic, 0)

	for _, diag := range de.diagnostics {
		if diag.Level == DiagnosticWarning {
			warnings = append(warnings, diag)
		}
	}

	return warnings
}

// HasErrors returns true if there are any errors.
func (de *DiagnosticEngine) HasErrors() bool {
	return len(de.GetErrors()) > 0
}

// HasFatal returns true if any diagnostic is a fatal invariant violation.
func (de *DiagnosticEngine) HasFatal() bool {
	for _, diag := range de.diagnostics {
		if diag.Fatal {
			return true
		}
	}

	return false
}

// Clear removes all diagnostics.
func (de *DiagnosticEngine) Clear() {
	de.diagnostics = de.diagnostics[:0]
}

// SortDiagnostics sorts diagnostics by position then severity, guaranteeing
// the source-order emission the driver's textual report depends on.
func (de *DiagnosticEngine) SortDiagnostics() {
	sort.SliceStable(de.diagnostics, func(i, j int) bool {
		a, b := de.diagnostics[i], de.diagnostics[j]

		if a.Span.Start.Filename != b.Span.Start.Filename {
			return a.Span.Start.Filename < b.Span.Start.Filename
		}

		if a.Span.Start.Line != b.Span.Start.Line {
			return a.Span.Start.Line < b.Span.Start.Line
		}

		if a.Span.Start.Column != b.Span.Start.Column {
			return a.Span.Start.Column < b.Span.Start.Column
		}

		return a.Level < b.Level
	})
}

// FormatDiagnostics returns a formatted string representation of all
// diagnostics, one per line in the external format
// "<filename>:<line>:<column>: <level>: <message>", where level is "error"
// or "warning", each followed by its related "note:" lines.
func (de *DiagnosticEngine) FormatDiagnostics() string {
	if len(de.diagnostics) == 0 {
		return ""
	}

	de.SortDiagnostics()

	var result strings.Builder

	for i, diag := range de.diagnostics {
		if i > 0 {
			result.WriteString("\n")
		}

		result.WriteString(de.formatSingleDiagnostic(&diag))
	}

	return result.String()
}

// formatSingleDiagnostic formats a single diagnostic.
func (de *DiagnosticEngine) formatSingleDiagnostic(diag *Diagnostic) string {
	var result strings.Builder

	result.WriteString(fmt.Sprintf("%s:%d:%d: %s: %s",
		diag.Span.Start.Filename,
		diag.Span.Start.Line,
		diag.Span.Start.Column,
		diag.Level.String(),
		diag.Message,
	))

	for _, related := range diag.RelatedInfo {
		result.WriteString(fmt.Sprintf("\n  note: %s:%d:%d: %s",
			related.Span.Start.Filename,
			related.Span.Start.Line,
			related.Span.Start.Column,
			related.Message,
		))
	}

	return result.String()
}

// Collector is the lightweight, stage-tagged diagnostic sink used by the
// lexer, parser, and other single-stage passes: a thin convenience layer
// over DiagnosticEngine that fixes the stage once at construction and
// exposes printf-style helpers instead of the fluent builder.
type Collector struct {
	engine *DiagnosticEngine
	stage  Stage
}

// NewCollector creates a Collector that tags every diagnostic it receives
// with the given pipeline stage.
func NewCollector(stage Stage) *Collector {
	return &Collector{
		engine: NewDiagnosticEngine(DiagnosticConfig{}),
		stage:  stage,
	}
}

// Errorf records a non-fatal error at span.
func (c *Collector) Errorf(span position.Span, format string, args ...any) {
	c.engine.AddDiagnostic(NewDiagnostic().Error().At(c.stage).Messagef(format, args...).Span(span).Build())
}

// Warnf records a warning at span.
func (c *Collector) Warnf(span position.Span, format string, args ...any) {
	c.engine.AddDiagnostic(NewDiagnostic().Warning().At(c.stage).Messagef(format, args...).Span(span).Build())
}

// Fatalf records an invariant-violation error: the caller's stage must
// discard its output and the driver must stop.
func (c *Collector) Fatalf(span position.Span, format string, args ...any) {
	c.engine.AddDiagnostic(NewDiagnostic().Error().At(c.stage).Fatal().Messagef(format, args...).Span(span).Build())
}

// Merge absorbs another Collector's diagnostics, e.g. from a nested
// lexer/parser invocation over a template-literal interpolation substring.
func (c *Collector) Merge(other *Collector) {
	if other == nil {
		return
	}

	for _, d := range other.engine.GetDiagnostics() {
		d := d
		c.engine.AddDiagnostic(&d)
	}
}

// HasErrors reports whether any error-level diagnostic was recorded.
func (c *Collector) HasErrors() bool { return c.engine.HasErrors() }

// HasFatal reports whether any fatal diagnostic was recorded.
func (c *Collector) HasFatal() bool { return c.engine.HasFatal() }

// Diagnostics returns every diagnostic recorded so far, in insertion order.
func (c *Collector) Diagnostics() []Diagnostic { return c.engine.GetDiagnostics() }

// Sorted returns every diagnostic ordered by file, line, column, severity.
func (c *Collector) Sorted() []Diagnostic {
	c.engine.SortDiagnostics()

	return c.engine.GetDiagnostics()
}

// Format renders every diagnostic in the external
// "<filename>:<line>:<column>: <level>: <message>" form, one per line
// (see FormatDiagnostics).
func (c *Collector) Format() string { return c.engine.FormatDiagnostics() }

// CommonDiagnostics provides factory functions for diagnostics raised
// repeatedly across stages, per the mapping table in spec §7.
type CommonDiagnostics struct{}

// UnexpectedToken creates a diagnostic for a parser syntax error.
func (cd *CommonDiagnostics) UnexpectedToken(span position.Span, expected, actual string) *Diagnostic {
	return NewDiagnostic().
		Error().
		Parse().
		Code("E1001").
		Messagef("expected '%s', found '%s'", expected, actual).
		Span(span).
		Build()
}

// UnterminatedString creates a diagnostic for a lexer error.
func (cd *CommonDiagnostics) UnterminatedString(span position.Span) *Diagnostic {
	return NewDiagnostic().
		Error().
		Lex().
		Code("E0101").
		Message("unterminated string literal").
		Span(span).
		Build()
}

// InvalidNumericLiteral creates a diagnostic for a malformed number token.
func (cd *CommonDiagnostics) InvalidNumericLiteral(span position.Span, text string) *Diagnostic {
	return NewDiagnostic().
		Error().
		Lex().
		Code("E0102").
		Messagef("invalid numeric literal %q", text).
		Span(span).
		Build()
}

// UnresolvedClosureCapture creates a diagnostic for an HIR closure-analysis
// failure (a captured variable whose defining block cannot be found).
func (cd *CommonDiagnostics) UnresolvedClosureCapture(span position.Span, name string) *Diagnostic {
	return NewDiagnostic().
		Error().
		HIR().
		Code("E2001").
		Messagef("cannot resolve captured variable '%s'", name).
		Span(span).
		Build()
}

// UnreachableBlock creates a diagnostic for an MIR block with no
// predecessors and no entry marker, an internal-consistency violation.
func (cd *CommonDiagnostics) UnreachableBlock(span position.Span, label string) *Diagnostic {
	return NewDiagnostic().
		Error().
		MIR().
		Fatal().
		Code("E3001").
		Messagef("block '%s' has no predecessors and is not the entry block", label).
		Span(span).
		Build()
}

// UnsupportedConstruct creates a diagnostic for a codegen stage that hit a
// HIR/MIR node it does not yet lower.
func (cd *CommonDiagnostics) UnsupportedConstruct(span position.Span, what string) *Diagnostic {
	return NewDiagnostic().
		Error().
		Codegen().
		Code("E4001").
		Messagef("unsupported construct in code generation: %s", what).
		Span(span).
		Build()
}

// Global instance for convenience.
var Common = &CommonDiagnostics{}
