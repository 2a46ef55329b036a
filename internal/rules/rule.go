// Package rules defines the style rule contract and the append-only registry
// the evaluator reads from. Rules are immutable once registered; the registry
// is frozen after initialization and safe for concurrent reads.
package rules

import (
	"cppstyle/internal/model"
)

// Category groups rules by the kind of requirement they enforce.
type Category string

const (
	CategoryNaming    Category = "naming"
	CategoryStructure Category = "structure"
	CategoryForbidden Category = "forbidden"
	CategoryOrdering  Category = "ordering"

	// Synthetic categories used for run-level problems, never registered.
	CategoryUnparseable Category = "unparseable"
	CategoryInternal    Category = "internal"
)

// Severity of a violation.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding is one deviation a rule detected on a declaration. The evaluator
// combines it with the rule's identity into a full Violation record.
type Finding struct {
	Span    model.Span
	Message string
}

// Rule is a named, immutable predicate over structural-model nodes.
// Implementations must be safe for concurrent use: Check is called from
// multiple evaluation workers against the same rule value.
type Rule interface {
	// ID is the stable rule identifier (e.g. "forbidden-using-directive").
	ID() string

	// Category is the guide section this rule belongs to.
	Category() Category

	// Severity of violations this rule produces.
	Severity() Severity

	// Summary is a one-line human description for rule listings.
	Summary() string

	// AppliesTo reports whether the rule wants to see nodes of this kind.
	// The evaluator only calls Check for matching kinds.
	AppliesTo(kind model.DeclKind) bool

	// Check evaluates the rule against one declaration. A nil or empty
	// result means the declaration conforms.
	Check(d *model.Declaration) []Finding
}

// declRule is the concrete shape shared by all built-in rules: identity plus
// an applicability set and a predicate function. Heterogeneous rule logic
// lives in the predicate, not in a hierarchy of rule types.
type declRule struct {
	id       string
	category Category
	severity Severity
	summary  string
	kinds    map[model.DeclKind]bool
	check    func(d *model.Declaration) []Finding
}

func (r *declRule) ID() string         { return r.id }
func (r *declRule) Category() Category { return r.category }
func (r *declRule) Severity() Severity { return r.severity }
func (r *declRule) Summary() string    { return r.summary }

func (r *declRule) AppliesTo(kind model.DeclKind) bool { return r.kinds[kind] }

func (r *declRule) Check(d *model.Declaration) []Finding { return r.check(d) }

func kindSet(kinds ...model.DeclKind) map[model.DeclKind]bool {
	set := make(map[model.DeclKind]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	return set
}

// one is a convenience for single-finding results at the declaration's span.
func one(d *model.Declaration, msg string) []Finding {
	return []Finding{{Span: d.Span, Message: msg}}
}
