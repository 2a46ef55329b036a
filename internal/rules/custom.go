package rules

import (
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"cppstyle/internal/logging"
	"cppstyle/internal/model"
)

// Custom rules are Go snippets interpreted at startup with Yaegi rather than
// compiled in. Interpretation avoids a build step for project-local rules and
// keeps them sandboxed: only a whitelist of stdlib packages may be imported.
//
// A snippet is a file in the custom rules directory declaring package rule
// with this surface:
//
//	func ID() string
//	func Severity() string          // "error" or "warning"
//	func Summary() string
//	func Applies(kind string) bool  // structural-model kind names
//	func Check(kind, name, signature string) string // "" = conforms

// allowedImports is the stdlib whitelist for custom rule snippets.
var allowedImports = map[string]bool{
	"strings": true,
	"strconv": true,
	"fmt":     true,
	"regexp":  true,
	"sort":    true,
	"unicode": true,
}

// customRule adapts an interpreted snippet to the Rule interface.
type customRule struct {
	id       string
	severity Severity
	summary  string
	applies  func(string) bool
	check    func(kind, name, signature string) string
}

func (r *customRule) ID() string         { return r.id }
func (r *customRule) Category() Category { return CategoryStructure }
func (r *customRule) Severity() Severity { return r.severity }
func (r *customRule) Summary() string    { return r.summary }

func (r *customRule) AppliesTo(kind model.DeclKind) bool {
	return r.applies(string(kind))
}

func (r *customRule) Check(d *model.Declaration) []Finding {
	msg := r.check(string(d.Kind), d.Name, d.Signature)
	if msg == "" {
		return nil
	}
	return one(d, msg)
}

// LoadCustomRules interprets every *.go snippet in dir and registers the
// resulting rules. A missing directory is not an error; a broken snippet is,
// since rule-set configuration problems must be fatal before any file is
// processed.
func LoadCustomRules(reg *Registry, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading custom rules dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".go") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(dir, name)
		rule, err := loadSnippet(path)
		if err != nil {
			return fmt.Errorf("custom rule %s: %w", name, err)
		}
		if err := reg.Register(rule); err != nil {
			return fmt.Errorf("custom rule %s: %w", name, err)
		}
		logging.Rules("LoadCustomRules: loaded %s from %s", rule.ID(), name)
	}
	return nil
}

// loadSnippet evaluates one snippet and extracts its rule surface.
func loadSnippet(path string) (Rule, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := validateImports(string(src)); err != nil {
		return nil, err
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("loading stdlib symbols: %w", err)
	}
	if _, err := i.Eval(string(src)); err != nil {
		return nil, fmt.Errorf("evaluating snippet: %w", err)
	}

	idFn, err := evalFunc[func() string](i, "rule.ID")
	if err != nil {
		return nil, err
	}
	sevFn, err := evalFunc[func() string](i, "rule.Severity")
	if err != nil {
		return nil, err
	}
	sumFn, err := evalFunc[func() string](i, "rule.Summary")
	if err != nil {
		return nil, err
	}
	appliesFn, err := evalFunc[func(string) bool](i, "rule.Applies")
	if err != nil {
		return nil, err
	}
	checkFn, err := evalFunc[func(string, string, string) string](i, "rule.Check")
	if err != nil {
		return nil, err
	}

	severity := Severity(sevFn())
	if severity != SeverityError && severity != SeverityWarning {
		return nil, fmt.Errorf("invalid severity %q", severity)
	}
	id := idFn()
	if id == "" {
		return nil, fmt.Errorf("empty rule id")
	}

	return &customRule{
		id:       id,
		severity: severity,
		summary:  sumFn(),
		applies:  appliesFn,
		check:    checkFn,
	}, nil
}

// evalFunc resolves a symbol from the interpreter and asserts its type.
func evalFunc[T any](i *interp.Interpreter, symbol string) (T, error) {
	var zero T
	v, err := i.Eval(symbol)
	if err != nil {
		return zero, fmt.Errorf("missing %s: %w", symbol, err)
	}
	fn, ok := v.Interface().(T)
	if !ok {
		return zero, fmt.Errorf("%s has wrong signature", symbol)
	}
	return fn, nil
}

// validateImports rejects snippets importing outside the whitelist. Imports
// are taken from the parsed AST so aliased, dot and block-form imports are
// all caught by path.
func validateImports(code string) error {
	f, err := parser.ParseFile(token.NewFileSet(), "rule.go", code, parser.ImportsOnly)
	if err != nil {
		return fmt.Errorf("parsing snippet: %w", err)
	}
	for _, imp := range f.Imports {
		pkg, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			return fmt.Errorf("malformed import path %s", imp.Path.Value)
		}
		if !allowedImports[pkg] {
			return fmt.Errorf("import %q not allowed in custom rules", pkg)
		}
	}
	return nil
}
