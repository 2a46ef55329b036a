// Package engine walks structural models applying registered rules and
// orchestrates the per-file check pipeline across a bounded worker pool.
package engine

import (
	"fmt"

	"cppstyle/internal/logging"
	"cppstyle/internal/model"
	"cppstyle/internal/report"
	"cppstyle/internal/rules"
)

// Evaluate applies every registered rule to the model and returns violations
// in report order for that file: line, then column, then rule registration
// order. The same (rule, span) pair is never reported twice.
//
// A rule predicate that panics is converted into a single internal-rule-error
// violation naming the rule; evaluation continues with the next rule.
func Evaluate(m *model.StructuralModel, reg *rules.Registry) []report.Violation {
	defer logging.StartTimer(logging.CategoryRules, "Evaluate "+m.Path).Stop()

	var out []report.Violation
	seen := make(map[string]bool)

	ruleList := reg.All()
	for idx, rule := range ruleList {
		out = append(out, evaluateRule(m, rule, idx, len(ruleList), seen)...)
	}

	// Rules run in registration-major order; the report contract is
	// location-major within a file.
	report.Sort(out, map[string]int{m.Path: 0})
	return out
}

// evaluateRule visits every applicable node for one rule, containing panics.
func evaluateRule(m *model.StructuralModel, rule rules.Rule, idx, total int, seen map[string]bool) (out []report.Violation) {
	defer func() {
		if r := recover(); r != nil {
			logging.Get(logging.CategoryRules).Error("rule %s panicked: %v", rule.ID(), r)
			out = []report.Violation{{
				Path:      m.Path,
				Line:      1,
				Column:    1,
				RuleID:    report.RuleInternalError,
				Message:   fmt.Sprintf("rule %s failed internally: %v", rule.ID(), r),
				Severity:  string(rules.SeverityError),
				Origin:    report.OriginInternal,
				RuleIndex: total + idx,
			}}
		}
	}()

	m.Walk(func(d *model.Declaration) bool {
		if !rule.AppliesTo(d.Kind) {
			return true
		}
		for _, f := range rule.Check(d) {
			key := fmt.Sprintf("%s@%d:%d-%d:%d", rule.ID(),
				f.Span.StartLine, f.Span.StartCol, f.Span.EndLine, f.Span.EndCol)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, report.Violation{
				Path:      m.Path,
				Line:      f.Span.StartLine,
				Column:    f.Span.StartCol,
				RuleID:    rule.ID(),
				Message:   f.Message,
				Severity:  string(rule.Severity()),
				Origin:    report.OriginNative,
				RuleIndex: idx,
			})
		}
		return true
	})
	return out
}
