package rules

import (
	"os"
	"path/filepath"
	"testing"

	"cppstyle/internal/model"
)

const goodSnippet = `package rule

import "strings"

func ID() string       { return "custom-no-todo-names" }
func Severity() string { return "warning" }
func Summary() string  { return "Identifiers must not contain Todo" }

func Applies(kind string) bool {
	return kind == "function" || kind == "method"
}

func Check(kind, name, signature string) string {
	if strings.Contains(name, "Todo") {
		return "identifier " + name + " contains Todo"
	}
	return ""
}
`

func writeSnippet(t *testing.T, dir, name, src string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadCustomRules(t *testing.T) {
	dir := t.TempDir()
	writeSnippet(t, dir, "no_todo.go", goodSnippet)

	reg := NewRegistry()
	if err := LoadCustomRules(reg, dir); err != nil {
		t.Fatalf("LoadCustomRules failed: %v", err)
	}

	rule := reg.Get("custom-no-todo-names")
	if rule == nil {
		t.Fatal("custom rule not registered")
	}
	if rule.Severity() != SeverityWarning {
		t.Errorf("severity = %q, want warning", rule.Severity())
	}
	if !rule.AppliesTo(model.KindFunction) {
		t.Error("rule should apply to functions")
	}
	if rule.AppliesTo(model.KindClass) {
		t.Error("rule should not apply to classes")
	}

	bad := &model.Declaration{Name: "runTodoCleanup", Kind: model.KindFunction, Span: model.Span{StartLine: 3, StartCol: 1}}
	fs := rule.Check(bad)
	if len(fs) != 1 {
		t.Fatalf("%d findings, want 1", len(fs))
	}
	if fs[0].Span.StartLine != 3 {
		t.Errorf("finding line = %d, want 3", fs[0].Span.StartLine)
	}

	good := &model.Declaration{Name: "runCleanup", Kind: model.KindFunction}
	if fs := rule.Check(good); len(fs) != 0 {
		t.Errorf("conforming declaration produced %d findings", len(fs))
	}
}

func TestLoadCustomRules_MissingDirIsNotAnError(t *testing.T) {
	reg := NewRegistry()
	if err := LoadCustomRules(reg, filepath.Join(t.TempDir(), "absent")); err != nil {
		t.Fatalf("missing dir should be a no-op, got %v", err)
	}
	if reg.Len() != 0 {
		t.Errorf("registry has %d rules, want 0", reg.Len())
	}
}

func TestLoadCustomRules_ForbiddenImport(t *testing.T) {
	dir := t.TempDir()
	writeSnippet(t, dir, "evil.go", `package rule

import "os/exec"

func ID() string       { return "evil" }
func Severity() string { return "error" }
func Summary() string  { return "" }
func Applies(kind string) bool { return true }
func Check(kind, name, signature string) string {
	_ = exec.Command
	return ""
}
`)

	if err := LoadCustomRules(NewRegistry(), dir); err == nil {
		t.Fatal("snippet importing os/exec must be rejected")
	}
}

func TestLoadCustomRules_AliasedImportRejected(t *testing.T) {
	dir := t.TempDir()
	writeSnippet(t, dir, "alias.go", `package rule

import h "net/http"

func ID() string       { return "alias" }
func Severity() string { return "error" }
func Summary() string  { return "" }
func Applies(kind string) bool { return true }
func Check(kind, name, signature string) string {
	_, _ = h.Get("http://example.com")
	return ""
}
`)

	if err := LoadCustomRules(NewRegistry(), dir); err == nil {
		t.Fatal("aliased net/http import must be rejected")
	}
}

func TestLoadCustomRules_DotImportRejected(t *testing.T) {
	dir := t.TempDir()
	writeSnippet(t, dir, "dot.go", `package rule

import . "os"

func ID() string       { return "dot" }
func Severity() string { return "error" }
func Summary() string  { return "" }
func Applies(kind string) bool { return true }
func Check(kind, name, signature string) string {
	_ = Getenv("HOME")
	return ""
}
`)

	if err := LoadCustomRules(NewRegistry(), dir); err == nil {
		t.Fatal("dot import of os must be rejected")
	}
}

func TestLoadCustomRules_InvalidSeverity(t *testing.T) {
	dir := t.TempDir()
	writeSnippet(t, dir, "bad.go", `package rule

func ID() string       { return "bad" }
func Severity() string { return "critical" }
func Summary() string  { return "" }
func Applies(kind string) bool { return true }
func Check(kind, name, signature string) string { return "" }
`)

	if err := LoadCustomRules(NewRegistry(), dir); err == nil {
		t.Fatal("invalid severity must be rejected")
	}
}

func TestValidateImports(t *testing.T) {
	cases := []struct {
		name string
		code string
		ok   bool
	}{
		{"whitelisted", "package rule\nimport \"strings\"\n", true},
		{"whitelisted block", "package rule\nimport (\n\t\"strings\"\n\t\"regexp\"\n)\n", true},
		{"plain forbidden", "package rule\nimport \"net/http\"\n", false},
		{"aliased forbidden", "package rule\nimport h \"net/http\"\n", false},
		{"dot forbidden", "package rule\nimport . \"os\"\n", false},
		{"blank forbidden", "package rule\nimport _ \"os/exec\"\n", false},
		{"aliased inside block", "package rule\nimport (\n\t\"strings\"\n\tx \"os/exec\"\n)\n", false},
		{"unparseable snippet", "package rule\nimport {\n", false},
	}
	for _, tc := range cases {
		err := validateImports(tc.code)
		if tc.ok && err != nil {
			t.Errorf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("%s: expected rejection", tc.name)
		}
	}
}
