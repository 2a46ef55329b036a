package engine

import (
	"testing"

	"cppstyle/internal/model"
	"cppstyle/internal/report"
	"cppstyle/internal/rules"
)

// myClassModel hand-builds the structural model for `class myClass { int x; };`
// so evaluator logic tests do not depend on the parser.
func myClassModel() *model.StructuralModel {
	cls := &model.Declaration{
		Name: "myClass", Kind: model.KindClass,
		Span: model.Span{StartLine: 1, StartCol: 1, EndLine: 1, EndCol: 25},
	}
	member := &model.Declaration{
		Name: "x", Kind: model.KindMember, Access: model.AccessPrivate,
		Span:   model.Span{StartLine: 1, StartCol: 17, EndLine: 1, EndCol: 23},
		Parent: cls,
	}
	cls.Children = []*model.Declaration{member}
	return &model.StructuralModel{Path: "my_class.h", Decls: []*model.Declaration{cls}}
}

func defaultReg(t *testing.T) *rules.Registry {
	t.Helper()
	reg, err := rules.DefaultRegistry()
	if err != nil {
		t.Fatal(err)
	}
	reg.Freeze()
	return reg
}

func TestEvaluate_ClassNameAndMemberPrefix(t *testing.T) {
	vs := Evaluate(myClassModel(), defaultReg(t))

	if len(vs) != 2 {
		t.Fatalf("got %d violations, want 2: %+v", len(vs), vs)
	}
	if vs[0].RuleID != "naming-class-case" {
		t.Errorf("first violation = %s, want naming-class-case", vs[0].RuleID)
	}
	if vs[1].RuleID != "naming-member-prefix" {
		t.Errorf("second violation = %s, want naming-member-prefix", vs[1].RuleID)
	}
}

func TestEvaluate_UsingDirective(t *testing.T) {
	m := &model.StructuralModel{Path: "using.cpp", Decls: []*model.Declaration{{
		Name: "foo", Kind: model.KindUsingDirective,
		Span: model.Span{StartLine: 1, StartCol: 1},
	}}}

	vs := Evaluate(m, defaultReg(t))
	if len(vs) != 1 {
		t.Fatalf("got %d violations, want 1", len(vs))
	}
	if vs[0].RuleID != "forbidden-using-directive" {
		t.Errorf("rule = %s, want forbidden-using-directive", vs[0].RuleID)
	}
}

func TestEvaluate_CleanModelIsEmpty(t *testing.T) {
	cls := &model.Declaration{Name: "Widget", Kind: model.KindClass, Span: model.Span{StartLine: 1, StartCol: 1}}
	member := &model.Declaration{
		Name: "m_size", Kind: model.KindMember, Access: model.AccessPrivate,
		Span: model.Span{StartLine: 3, StartCol: 5}, Parent: cls,
	}
	cls.Children = []*model.Declaration{member}
	m := &model.StructuralModel{Path: "widget.h", Decls: []*model.Declaration{cls}}

	if vs := Evaluate(m, defaultReg(t)); len(vs) != 0 {
		t.Errorf("clean model produced %d violations: %+v", len(vs), vs)
	}
}

func TestEvaluate_LocationMajorOrdering(t *testing.T) {
	// Two violations from different rules on different lines: order must
	// be by line, not by rule registration.
	usingDecl := &model.Declaration{
		Name: "foo", Kind: model.KindUsingDirective,
		Span: model.Span{StartLine: 1, StartCol: 1},
	}
	cls := &model.Declaration{
		Name: "badName", Kind: model.KindClass,
		Span: model.Span{StartLine: 5, StartCol: 1},
	}
	m := &model.StructuralModel{Path: "f.cpp", Decls: []*model.Declaration{usingDecl, cls}}

	vs := Evaluate(m, defaultReg(t))
	if len(vs) != 2 {
		t.Fatalf("got %d violations, want 2", len(vs))
	}
	if vs[0].Line != 1 || vs[1].Line != 5 {
		t.Errorf("lines = %d, %d; want 1, 5", vs[0].Line, vs[1].Line)
	}
}

func TestEvaluate_SameSpanTieBreaksOnRegistrationOrder(t *testing.T) {
	reg := rules.NewRegistry()
	mustRegister(t, reg, stubRule("second-registered", model.KindClass, "b"))
	mustRegister(t, reg, stubRule("first-lexically", model.KindClass, "a"))
	reg.Freeze()

	m := &model.StructuralModel{Path: "f.cpp", Decls: []*model.Declaration{{
		Name: "X", Kind: model.KindClass, Span: model.Span{StartLine: 1, StartCol: 1},
	}}}

	vs := Evaluate(m, reg)
	if len(vs) != 2 {
		t.Fatalf("got %d violations, want 2", len(vs))
	}
	if vs[0].RuleID != "second-registered" || vs[1].RuleID != "first-lexically" {
		t.Errorf("tie-break order = %s, %s; want registration order", vs[0].RuleID, vs[1].RuleID)
	}
}

func TestEvaluate_DedupesSameRuleSameSpan(t *testing.T) {
	// The same declaration visited twice (shared span) must report once.
	d := &model.Declaration{Name: "x", Kind: model.KindMember, Span: model.Span{StartLine: 2, StartCol: 3}}
	m := &model.StructuralModel{Path: "f.cpp", Decls: []*model.Declaration{d, d}}

	vs := Evaluate(m, defaultReg(t))
	count := 0
	for _, v := range vs {
		if v.RuleID == "naming-member-prefix" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("duplicate span reported %d times, want 1", count)
	}
}

func TestEvaluate_PanickingRuleIsContained(t *testing.T) {
	reg := rules.NewRegistry()
	mustRegister(t, reg, &panicRule{})
	mustRegister(t, reg, stubRule("survivor", model.KindClass, "still checked"))
	reg.Freeze()

	m := &model.StructuralModel{Path: "f.cpp", Decls: []*model.Declaration{{
		Name: "X", Kind: model.KindClass, Span: model.Span{StartLine: 1, StartCol: 1},
	}}}

	vs := Evaluate(m, reg)

	var internal, survivor bool
	for _, v := range vs {
		if v.RuleID == report.RuleInternalError {
			internal = true
			if v.Origin != report.OriginInternal {
				t.Errorf("internal-rule-error origin = %s", v.Origin)
			}
		}
		if v.RuleID == "survivor" {
			survivor = true
		}
	}
	if !internal {
		t.Error("panicking rule did not yield internal-rule-error violation")
	}
	if !survivor {
		t.Error("evaluation did not continue past the broken rule")
	}
}

// stubRule fires on every node of the given kind.
type stub struct {
	id   string
	kind model.DeclKind
	msg  string
}

func stubRule(id string, kind model.DeclKind, msg string) rules.Rule {
	return &stub{id: id, kind: kind, msg: msg}
}

func (s *stub) ID() string                           { return s.id }
func (s *stub) Category() rules.Category             { return rules.CategoryStructure }
func (s *stub) Severity() rules.Severity             { return rules.SeverityError }
func (s *stub) Summary() string                      { return s.msg }
func (s *stub) AppliesTo(kind model.DeclKind) bool   { return kind == s.kind }
func (s *stub) Check(d *model.Declaration) []rules.Finding {
	return []rules.Finding{{Span: d.Span, Message: s.msg}}
}

type panicRule struct{}

func (p *panicRule) ID() string                         { return "broken" }
func (p *panicRule) Category() rules.Category           { return rules.CategoryStructure }
func (p *panicRule) Severity() rules.Severity           { return rules.SeverityError }
func (p *panicRule) Summary() string                    { return "always panics" }
func (p *panicRule) AppliesTo(model.DeclKind) bool      { return true }
func (p *panicRule) Check(*model.Declaration) []rules.Finding {
	panic("predicate malfunction")
}

func mustRegister(t *testing.T, reg *rules.Registry, r rules.Rule) {
	t.Helper()
	if err := reg.Register(r); err != nil {
		t.Fatal(err)
	}
}
