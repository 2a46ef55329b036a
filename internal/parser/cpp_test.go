package parser

import (
	"context"
	"errors"
	"testing"

	"cppstyle/internal/model"
)

func build(t *testing.T, src string) *model.StructuralModel {
	t.Helper()
	m, err := NewBuilder().Build(context.Background(), "test.cpp", []byte(src))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return m
}

// find returns the first declaration of the given kind, or nil.
func find(m *model.StructuralModel, kind model.DeclKind) *model.Declaration {
	var out *model.Declaration
	m.Walk(func(d *model.Declaration) bool {
		if d.Kind == kind {
			out = d
			return false
		}
		return true
	})
	return out
}

func findAll(m *model.StructuralModel, kind model.DeclKind) []*model.Declaration {
	var out []*model.Declaration
	m.Walk(func(d *model.Declaration) bool {
		if d.Kind == kind {
			out = append(out, d)
		}
		return true
	})
	return out
}

func TestBuild_ClassWithMembers(t *testing.T) {
	src := `class Widget {
public:
    Widget();
    int size() const;
private:
    int m_size;
    bool m_visible;
};
`
	m := build(t, src)

	cls := find(m, model.KindClass)
	if cls == nil {
		t.Fatal("no class declaration found")
	}
	if cls.Name != "Widget" {
		t.Errorf("class name = %q, want Widget", cls.Name)
	}
	if cls.Span.StartLine != 1 {
		t.Errorf("class start line = %d, want 1", cls.Span.StartLine)
	}

	members := findAll(m, model.KindMember)
	if len(members) != 2 {
		t.Fatalf("found %d members, want 2: %+v", len(members), members)
	}
	if members[0].Name != "m_size" || members[1].Name != "m_visible" {
		t.Errorf("member names = %q, %q", members[0].Name, members[1].Name)
	}
	for _, mem := range members {
		if mem.Access != model.AccessPrivate {
			t.Errorf("member %s access = %q, want private", mem.Name, mem.Access)
		}
		if mem.Parent != cls {
			t.Errorf("member %s parent not set to class", mem.Name)
		}
	}

	labels := findAll(m, model.KindAccessLabel)
	if len(labels) != 2 {
		t.Fatalf("found %d access labels, want 2", len(labels))
	}
	if labels[0].Name != "public" || labels[1].Name != "private" {
		t.Errorf("access labels = %q, %q", labels[0].Name, labels[1].Name)
	}
}

func TestBuild_ClassDefaultAccessIsPrivate(t *testing.T) {
	m := build(t, "class myClass { int x; };\n")

	mem := find(m, model.KindMember)
	if mem == nil {
		t.Fatal("no member found")
	}
	if mem.Name != "x" {
		t.Errorf("member name = %q, want x", mem.Name)
	}
	if mem.Access != model.AccessPrivate {
		t.Errorf("member access = %q, want private (class default)", mem.Access)
	}
}

func TestBuild_StructDefaultAccessIsPublic(t *testing.T) {
	m := build(t, "struct Point { int x; };\n")

	mem := find(m, model.KindMember)
	if mem == nil {
		t.Fatal("no member found")
	}
	if mem.Access != model.AccessPublic {
		t.Errorf("member access = %q, want public (struct default)", mem.Access)
	}
}

func TestBuild_NamespaceScopeChain(t *testing.T) {
	src := `namespace app {
namespace ui {
class Widget {};
}
}
`
	m := build(t, src)

	cls := find(m, model.KindClass)
	if cls == nil {
		t.Fatal("no class found")
	}
	if len(cls.Scope) != 2 || cls.Scope[0] != "app" || cls.Scope[1] != "ui" {
		t.Errorf("class scope = %v, want [app ui]", cls.Scope)
	}
	if got := cls.QualifiedName(); got != "app::ui::Widget" {
		t.Errorf("qualified name = %q", got)
	}
}

func TestBuild_UsingDirective(t *testing.T) {
	m := build(t, "using namespace foo;\n")

	d := find(m, model.KindUsingDirective)
	if d == nil {
		t.Fatal("no using-directive found")
	}
	if d.Name != "foo" {
		t.Errorf("using-directive name = %q, want foo", d.Name)
	}
	if d.Span.StartLine != 1 {
		t.Errorf("using-directive line = %d, want 1", d.Span.StartLine)
	}
}

func TestBuild_UsingDeclarationIsNotDirective(t *testing.T) {
	m := build(t, "using foo::bar;\n")

	if find(m, model.KindUsingDirective) != nil {
		t.Error("using-declaration misclassified as using-directive")
	}
	if find(m, model.KindUsingDecl) == nil {
		t.Error("no using-declaration found")
	}
}

func TestBuild_ForbiddenSites(t *testing.T) {
	src := `#define SQUARE(x) ((x) * (x))

void setup() {
    int* p = new int(42);
    throw 1;
}
`
	m := build(t, src)

	if find(m, model.KindMacroFunction) == nil {
		t.Error("function-like macro not detected")
	}
	nw := find(m, model.KindNewExpr)
	if nw == nil {
		t.Fatal("new expression not detected")
	}
	if nw.Span.StartLine != 4 {
		t.Errorf("new expression line = %d, want 4", nw.Span.StartLine)
	}
	if find(m, model.KindThrow) == nil {
		t.Error("throw not detected")
	}
}

func TestBuild_IncludesAndFunctions(t *testing.T) {
	src := `#include <vector>
#include "widget.h"

int computeTotal(int a, int b) {
    return a + b;
}
`
	m := build(t, src)

	includes := findAll(m, model.KindInclude)
	if len(includes) != 2 {
		t.Fatalf("found %d includes, want 2", len(includes))
	}
	if includes[0].Name != "vector" || includes[1].Name != "widget.h" {
		t.Errorf("include names = %q, %q", includes[0].Name, includes[1].Name)
	}

	fn := find(m, model.KindFunction)
	if fn == nil {
		t.Fatal("no function found")
	}
	if fn.Name != "computeTotal" {
		t.Errorf("function name = %q, want computeTotal", fn.Name)
	}
}

func TestBuild_OutOfClassMethodDefinition(t *testing.T) {
	src := `int Widget::size() const {
    return m_size;
}
`
	m := build(t, src)

	fn := find(m, model.KindMethod)
	if fn == nil {
		t.Fatal("qualified definition not classified as method")
	}
	if fn.Name != "size" {
		t.Errorf("method name = %q, want size", fn.Name)
	}
}

func TestBuild_StaticVariableQualifiers(t *testing.T) {
	src := `static std::string g_name = "x";
constexpr int kLimit = 10;
`
	m := build(t, src)

	vars := findAll(m, model.KindVariable)
	if len(vars) != 2 {
		t.Fatalf("found %d variables, want 2", len(vars))
	}
	if !vars[0].Static {
		t.Error("static qualifier not recorded")
	}
	if !vars[1].Constexpr {
		t.Error("constexpr qualifier not recorded")
	}
}

func TestBuild_UnterminatedBlockComment(t *testing.T) {
	src := "int x = 1;\n/* never closed\nint y = 2;\n"
	_, err := NewBuilder().Build(context.Background(), "broken.cpp", []byte(src))

	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if perr.Line != 2 {
		t.Errorf("ParseError line = %d, want 2", perr.Line)
	}
}

func TestBuild_UnbalancedBraces(t *testing.T) {
	_, err := NewBuilder().Build(context.Background(), "broken.cpp", []byte("void f() {\n"))

	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestBuild_BracesInStringsIgnored(t *testing.T) {
	src := "const char* kJson = \"{ not a brace }\";\nchar c = '{';\n// { comment brace\n"
	if _, err := NewBuilder().Build(context.Background(), "ok.cpp", []byte(src)); err != nil {
		t.Fatalf("Build failed on braces inside literals: %v", err)
	}
}

func TestBuild_RawStringLiterals(t *testing.T) {
	// Raw strings take quotes and braces literally; an odd number of
	// embedded quotes must not derail brace tracking.
	cases := []string{
		`const char* kMsg = R"(one " quote {)";` + "\n",
		`const char* kRe = R"rx(\d+ " { } ")rx";` + "\n",
		"const char* kDoc = R\"(line one\nline { two)\";\n",
	}
	for _, src := range cases {
		if _, err := NewBuilder().Build(context.Background(), "raw.cpp", []byte(src)); err != nil {
			t.Errorf("Build failed on raw string input %q: %v", src, err)
		}
	}
}

func TestBuild_MultiDeclaratorStatements(t *testing.T) {
	src := `class Widget {
    int m_a, b;
};
int x, y = 2;
`
	m := build(t, src)

	members := findAll(m, model.KindMember)
	if len(members) != 2 {
		t.Fatalf("found %d members, want 2: %+v", len(members), members)
	}
	if members[0].Name != "m_a" || members[1].Name != "b" {
		t.Errorf("member names = %q, %q", members[0].Name, members[1].Name)
	}
	if members[0].Span == members[1].Span {
		t.Error("declarators in one statement must carry distinct spans")
	}

	vars := findAll(m, model.KindVariable)
	if len(vars) != 2 {
		t.Fatalf("found %d variables, want 2: %+v", len(vars), vars)
	}
	if vars[0].Name != "x" || vars[1].Name != "y" {
		t.Errorf("variable names = %q, %q", vars[0].Name, vars[1].Name)
	}
}

func TestBuild_PartialParseRetainsEarlierDeclarations(t *testing.T) {
	src := `class Widget {};
int @@ garbage here @@;
class Gadget {};
`
	m := build(t, src)

	classes := findAll(m, model.KindClass)
	if len(classes) == 0 {
		t.Fatal("partial parse lost all declarations")
	}
	if classes[0].Name != "Widget" {
		t.Errorf("first class = %q, want Widget", classes[0].Name)
	}
	if !m.Partial {
		t.Error("model not marked Partial despite skipped subtree")
	}
}

func TestPreScan(t *testing.T) {
	cases := []struct {
		name string
		src  string
		ok   bool
	}{
		{"clean", "int x = 1;\n", true},
		{"nested comment markers", "/* outer /* inner */ int x;\n", true},
		{"line comment open brace", "// {\n", true},
		{"unterminated comment", "/*\n", false},
		{"slash star slash still open", "/*/\n", false},
		{"slash star slash closed later", "/*/ still comment */ int x;\n", true},
		{"open brace", "{\n", false},
		{"close brace", "}\n", false},
		{"escaped quote", `const char* s = "a\"{";` + "\n", true},
		{"raw string odd quotes", `auto s = R"(one " quote {)";` + "\n", true},
		{"raw string with delimiter", `auto s = R"xx(a { " b)xx";` + "\n", true},
		{"multiline raw string", "auto s = R\"(a {\nb \" c)\";\n", true},
	}
	for _, tc := range cases {
		err := preScan("t.cpp", []byte(tc.src))
		if tc.ok && err != nil {
			t.Errorf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("%s: expected ParseError", tc.name)
		}
	}
}
