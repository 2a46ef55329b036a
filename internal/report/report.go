// Package report defines the Violation record and the Reporter that renders
// an ordered violation sequence into human-readable or machine-readable
// output and computes the process exit code.
package report

// Origin identifies which subsystem produced a violation.
type Origin string

const (
	// OriginNative marks violations from registered style rules.
	OriginNative Origin = "native"

	// OriginExternal marks findings merged from an external analyzer.
	OriginExternal Origin = "external"

	// OriginInternal marks run-level problems (unparseable input, broken
	// rule, unreadable file). Their presence forces the internal-error
	// exit code.
	OriginInternal Origin = "internal"
)

// Synthetic rule ids for run-level problems.
const (
	RuleUnparseable   = "unparseable"
	RuleInternalError = "internal-rule-error"
	RuleIOError       = "io-error"
)

// Violation is a single reported deviation at a specific source location.
// Immutable once created.
type Violation struct {
	Path     string `json:"path"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	RuleID   string `json:"ruleId"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Origin   Origin `json:"origin"`

	// RuleIndex is the rule's registration position, used for ordering.
	// External and internal violations sort after native rules.
	RuleIndex int `json:"-"`
}

// Exit codes.
const (
	ExitClean      = 0
	ExitViolations = 1
	ExitInternal   = 2
)

// ExitCode computes the process exit status for a violation sequence:
// 0 clean, 1 violations found, 2 when any internal/unparseable/IO problem
// occurred (the run completed but is incomplete evidence).
func ExitCode(violations []Violation) int {
	code := ExitClean
	for _, v := range violations {
		if v.Origin == OriginInternal {
			return ExitInternal
		}
		code = ExitViolations
	}
	return code
}
