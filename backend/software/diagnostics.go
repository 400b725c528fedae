package software

import (
	"errors"
	"regexp"
	"strconv"

	"github.com/gogpu/softgpu/engine"
)

// positionPatterns match the two location formats naga produces:
// "line 3, column 7: ..." from the parser and "3:7: ..." from lowering.
var positionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`line (\d+), column (\d+)`),
	regexp.MustCompile(`(?:^|\s)(\d+):(\d+):`),
}

// formatter is implemented by naga's lowering error list.
type formatter interface {
	FormatAll() string
}

// compileError converts a naga failure into an *engine.CompileError.
// The span covers the identifier or token run starting at the reported
// position; it is omitted when naga gave no usable position.
func compileError(file, code string, err error) *engine.CompileError {
	ce := &engine.CompileError{Message: err.Error()}

	var f formatter
	if errors.As(err, &f) {
		ce.Source = f.FormatAll()
	}

	line, col, ok := position(ce.Message)
	if !ok {
		return ce
	}
	start, ok := offsetOf(code, line, col)
	if !ok {
		return ce
	}
	ce.Diagnostics = []engine.Diagnostic{{
		File:  file,
		Span:  engine.Span{Start: start, End: tokenEnd(code, start)},
		Title: "error",
	}}
	return ce
}

// position extracts a 1-based line and column from a naga message.
func position(msg string) (line, col int, ok bool) {
	for _, re := range positionPatterns {
		m := re.FindStringSubmatch(msg)
		if m == nil {
			continue
		}
		l, err1 := strconv.Atoi(m[1])
		c, err2 := strconv.Atoi(m[2])
		if err1 != nil || err2 != nil || l < 1 || c < 1 {
			continue
		}
		return l, c, true
	}
	return 0, 0, false
}

// offsetOf maps a 1-based line and column to a byte offset in code.
// Columns count bytes, matching the naga lexer.
func offsetOf(code string, line, col int) (int, bool) {
	cur := 1
	lineStart := 0
	for i := 0; i < len(code) && cur < line; i++ {
		if code[i] == '\n' {
			cur++
			lineStart = i + 1
		}
	}
	if cur != line {
		return 0, false
	}
	off := lineStart + col - 1
	if off > len(code) {
		return 0, false
	}
	return off, true
}

// tokenEnd returns the end of the token starting at start. A word run
// extends to the last identifier byte; any other byte is a one-byte token.
func tokenEnd(code string, start int) int {
	if start >= len(code) {
		return start
	}
	end := start
	for end < len(code) && isWordByte(code[end]) {
		end++
	}
	if end == start && code[start] != '\n' {
		end++
	}
	return end
}

func isWordByte(b byte) bool {
	return b == '_' ||
		('a' <= b && b <= 'z') ||
		('A' <= b && b <= 'Z') ||
		('0' <= b && b <= '9')
}
