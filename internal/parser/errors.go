package parser

import "fmt"

// ParseError reports input the builder could not reduce to a usable model
// (unterminated block comment, unbalanced braces, parser failure). The caller
// converts it into an unparseable-category violation; it never aborts a run.
type ParseError struct {
	Path string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Msg)
}
