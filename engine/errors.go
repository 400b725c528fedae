package engine

import (
	"errors"
	"strings"
)

// CompileError is the error shape every engine reports for invalid source.
type CompileError struct {
	// Message is the primary error text.
	Message string
	// Source is an excerpt of the offending source, if available.
	Source string
	// Diagnostics locate the error in the source files.
	Diagnostics []Diagnostic
}

// Diagnostic is one located finding.
type Diagnostic struct {
	// File is the module path the span refers to.
	File string
	// Span is a byte range within File.
	Span Span
	// Title is a short description of the finding.
	Title string
}

// Span is a half-open byte range [Start, End).
type Span struct {
	Start int
	End   int
}

// Len returns the span length, or 0 for an inverted span.
func (s Span) Len() int {
	if s.End < s.Start {
		return 0
	}
	return s.End - s.Start
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	if e.Source == "" {
		return e.Message
	}
	var sb strings.Builder
	sb.WriteString(e.Message)
	sb.WriteString("\n")
	sb.WriteString(e.Source)
	return sb.String()
}

// FirstSpan returns the span of the first diagnostic.
func (e *CompileError) FirstSpan() (Span, bool) {
	if len(e.Diagnostics) == 0 {
		return Span{}, false
	}
	return e.Diagnostics[0].Span, true
}

// AsCompileError unwraps err to a *CompileError.
func AsCompileError(err error) (*CompileError, bool) {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
