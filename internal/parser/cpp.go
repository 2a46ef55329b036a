// Package parser builds the structural model for C++ sources using
// Tree-sitter. It extracts only what the style rules inspect: declarations,
// scopes, includes, using-directives and the forbidden-construct sites.
package parser

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"time"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/cpp"

	"cppstyle/internal/logging"
	"cppstyle/internal/model"
)

// Builder parses C++ source files into StructuralModels.
// A Builder is not safe for concurrent use; create one per goroutine.
type Builder struct {
	parser *sitter.Parser
}

// NewBuilder creates a C++ source model builder.
func NewBuilder() *Builder {
	p := sitter.NewParser()
	p.SetLanguage(cpp.GetLanguage())
	return &Builder{parser: p}
}

// Build parses content into a structural model. Lexical-level breakage
// (unterminated block comment, unbalanced braces) yields a ParseError.
// Structurally malformed constructs inside an otherwise scannable file are
// skipped: recognized siblings are retained and the model is marked Partial.
func (b *Builder) Build(ctx context.Context, path string, content []byte) (*model.StructuralModel, error) {
	start := time.Now()
	logging.ParseDebug("Builder: parsing %s (%d bytes)", filepath.Base(path), len(content))

	if perr := preScan(path, content); perr != nil {
		return nil, perr
	}

	tree, err := b.parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, &ParseError{Path: path, Msg: err.Error()}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return nil, &ParseError{Path: path, Msg: "empty parse tree"}
	}

	m := &model.StructuralModel{Path: path}
	lines := strings.Split(string(content), "\n")

	w := &walker{content: content, lines: lines, model: m}
	w.walk(root, nil, nil, model.AccessNone)

	if root.HasError() && len(m.Decls) == 0 {
		return nil, &ParseError{Path: path, Msg: "no declarations recognized in malformed input"}
	}

	logging.ParseDebug("Builder: parsed %s - %d declarations in %v",
		filepath.Base(path), m.Count(), time.Since(start))
	return m, nil
}

// preScan rejects input the grammar cannot recover line structure from.
// Tracks comments, string/char literals and brace depth in one pass.
func preScan(path string, content []byte) *ParseError {
	var (
		line         = 1
		depth        = 0
		inLine       bool
		inBlock      bool
		blockStart   int
		inString     bool
		inChar       bool
		prev         byte
		escaped      bool
	)
	for i := 0; i < len(content); i++ {
		c := content[i]
		if c == '\n' {
			line++
			inLine = false
			escaped = false
			prev = 0
			continue
		}
		switch {
		case inLine:
		case inBlock:
			if prev == '*' && c == '/' {
				inBlock = false
				c = 0 // avoid "*/" re-matching on "*//"
			}
		case inString:
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
		case inChar:
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '\'' {
				inChar = false
			}
		default:
			switch c {
			case '/':
				if prev == '/' {
					inLine = true
				}
			case '*':
				if prev == '/' {
					inBlock = true
					blockStart = line
					c = 0 // the opener's '*' must not double as a closer in "/*/"
				}
			case '"':
				// R"delim( ... )delim" raw strings take quotes and braces
				// literally until the matching close sequence.
				if prev == 'R' {
					if end, newlines, ok := skipRawString(content, i); ok {
						line += newlines
						i = end
						prev = 0
						continue
					}
				}
				inString = true
			case '\'':
				inChar = true
			case '{':
				depth++
			case '}':
				depth--
			}
		}
		prev = c
	}
	if inBlock {
		return &ParseError{Path: path, Line: blockStart, Msg: "unterminated block comment"}
	}
	if depth != 0 {
		return &ParseError{Path: path, Msg: "unbalanced braces"}
	}
	return nil
}

// skipRawString consumes a C++ raw string literal. start indexes the opening
// quote (preceded by R); the delimiter may be up to 16 chars per the standard.
// Returns the index of the closing quote, the number of newlines consumed and
// whether a well-formed raw string was found.
func skipRawString(content []byte, start int) (end, newlines int, ok bool) {
	open := start + 1
	for open < len(content) && content[open] != '(' {
		if open-start > 17 || content[open] == '\n' || content[open] == '"' {
			return 0, 0, false
		}
		open++
	}
	if open >= len(content) {
		return 0, 0, false
	}
	closer := append(append([]byte{')'}, content[start+1:open]...), '"')
	rel := bytes.Index(content[open+1:], closer)
	if rel < 0 {
		return 0, 0, false
	}
	end = open + 1 + rel + len(closer) - 1
	newlines = bytes.Count(content[start:end+1], []byte{'\n'})
	return end, newlines, true
}

// walker carries per-file state through the tree traversal.
type walker struct {
	content []byte
	lines   []string
	model   *model.StructuralModel
}

func (w *walker) text(n *sitter.Node) string {
	return string(w.content[n.StartByte():n.EndByte()])
}

func (w *walker) span(n *sitter.Node) model.Span {
	return model.Span{
		StartLine: int(n.StartPoint().Row) + 1,
		StartCol:  int(n.StartPoint().Column) + 1,
		EndLine:   int(n.EndPoint().Row) + 1,
		EndCol:    int(n.EndPoint().Column),
	}
}

func (w *walker) signature(n *sitter.Node) string {
	row := int(n.StartPoint().Row)
	if row >= 0 && row < len(w.lines) {
		return strings.TrimSpace(w.lines[row])
	}
	return ""
}

// add attaches a declaration to its parent (or file scope) and returns it.
func (w *walker) add(d *model.Declaration, parent *model.Declaration) *model.Declaration {
	d.Parent = parent
	if parent == nil {
		w.model.Decls = append(w.model.Decls, d)
	} else {
		parent.Children = append(parent.Children, d)
	}
	return d
}

// walk recursively extracts declarations. scope is the enclosing
// namespace/class name chain; access is the access level in effect inside a
// class/struct body, AccessNone elsewhere.
func (w *walker) walk(node *sitter.Node, parent *model.Declaration, scope []string, access model.Access) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		access = w.visit(child, parent, scope, access)
	}
}

// visit handles one node and returns the access level in effect after it
// (access_specifier labels change it for subsequent siblings).
func (w *walker) visit(node *sitter.Node, parent *model.Declaration, scope []string, access model.Access) model.Access {
	switch node.Type() {
	case "ERROR":
		// Skip the malformed subtree, keep everything already recognized.
		w.model.Partial = true
		return access

	case "comment":
		return access

	case "preproc_include":
		name := ""
		if p := node.ChildByFieldName("path"); p != nil {
			name = strings.Trim(w.text(p), `"<>`)
		}
		w.add(&model.Declaration{
			Name: name, Kind: model.KindInclude, Scope: scopeCopy(scope),
			Span: w.span(node), Signature: w.signature(node),
		}, parent)

	case "preproc_def":
		w.add(&model.Declaration{
			Name: w.fieldText(node, "name"), Kind: model.KindMacro,
			Scope: scopeCopy(scope), Span: w.span(node), Signature: w.signature(node),
		}, parent)

	case "preproc_function_def":
		w.add(&model.Declaration{
			Name: w.fieldText(node, "name"), Kind: model.KindMacroFunction,
			Scope: scopeCopy(scope), Span: w.span(node), Signature: w.signature(node),
		}, parent)

	case "namespace_definition":
		name := w.fieldText(node, "name")
		ns := w.add(&model.Declaration{
			Name: name, Kind: model.KindNamespace, Scope: scopeCopy(scope),
			Span: w.span(node), Signature: w.signature(node),
		}, parent)
		if body := node.ChildByFieldName("body"); body != nil {
			inner := scope
			if name != "" {
				inner = append(scopeCopy(scope), name)
			}
			w.walk(body, ns, inner, model.AccessNone)
		}

	case "using_declaration":
		kind := model.KindUsingDecl
		text := w.text(node)
		if strings.HasPrefix(text, "using namespace") {
			kind = model.KindUsingDirective
		}
		w.add(&model.Declaration{
			Name: lastIdentifier(text), Kind: kind, Scope: scopeCopy(scope),
			Span: w.span(node), Signature: w.signature(node),
		}, parent)

	case "class_specifier", "struct_specifier":
		w.visitClass(node, parent, scope, node.Type() == "class_specifier")

	case "enum_specifier":
		if node.ChildByFieldName("body") != nil {
			w.add(&model.Declaration{
				Name: w.fieldText(node, "name"), Kind: model.KindEnum,
				Scope: scopeCopy(scope), Span: w.span(node), Signature: w.signature(node),
			}, parent)
		}

	case "access_specifier":
		label := strings.TrimSuffix(strings.TrimSpace(w.text(node)), ":")
		w.add(&model.Declaration{
			Name: label, Kind: model.KindAccessLabel, Scope: scopeCopy(scope),
			Span: w.span(node), Signature: w.signature(node),
		}, parent)
		switch label {
		case "public":
			return model.AccessPublic
		case "protected":
			return model.AccessProtected
		case "private":
			return model.AccessPrivate
		}

	case "function_definition":
		w.visitFunction(node, parent, scope, access)
		// Bodies can contain new/throw/try sites.
		if body := node.ChildByFieldName("body"); body != nil {
			w.walk(body, parent, scope, model.AccessNone)
		}

	case "field_declaration":
		w.visitField(node, parent, scope, access)

	case "declaration":
		w.visitDeclaration(node, parent, scope, access)

	case "new_expression":
		w.add(&model.Declaration{
			Kind: model.KindNewExpr, Scope: scopeCopy(scope),
			Span: w.span(node), Signature: w.signature(node),
		}, parent)
		w.walk(node, parent, scope, model.AccessNone)

	case "throw_statement":
		w.add(&model.Declaration{
			Kind: model.KindThrow, Scope: scopeCopy(scope),
			Span: w.span(node), Signature: w.signature(node),
		}, parent)
		w.walk(node, parent, scope, model.AccessNone)

	case "try_statement":
		w.add(&model.Declaration{
			Kind: model.KindTry, Scope: scopeCopy(scope),
			Span: w.span(node), Signature: w.signature(node),
		}, parent)
		w.walk(node, parent, scope, model.AccessNone)

	default:
		// Recurse through wrappers (template_declaration, linkage_specifier,
		// compound statements, expressions) to reach nested constructs.
		w.walk(node, parent, scope, model.AccessNone)
	}
	return access
}

// visitClass extracts a class or struct and its members.
func (w *walker) visitClass(node *sitter.Node, parent *model.Declaration, scope []string, isClass bool) {
	body := node.ChildByFieldName("body")
	name := w.fieldText(node, "name")
	if body == nil {
		// Forward declaration or type use; nothing to check.
		return
	}
	kind := model.KindStruct
	defaultAccess := model.AccessPublic
	if isClass {
		kind = model.KindClass
		defaultAccess = model.AccessPrivate
	}
	cls := w.add(&model.Declaration{
		Name: name, Kind: kind, Scope: scopeCopy(scope),
		Span: w.span(node), Signature: w.signature(node),
	}, parent)
	inner := scope
	if name != "" {
		inner = append(scopeCopy(scope), name)
	}
	acc := defaultAccess
	for i := 0; i < int(body.NamedChildCount()); i++ {
		acc = w.visit(body.NamedChild(i), cls, inner, acc)
	}
}

// visitFunction extracts a function or method definition.
func (w *walker) visitFunction(node *sitter.Node, parent *model.Declaration, scope []string, access model.Access) {
	decl := node.ChildByFieldName("declarator")
	name, qualified := declaratorName(decl, w.content)
	if name == "" {
		return
	}
	kind := model.KindFunction
	if (parent != nil && (parent.Kind == model.KindClass || parent.Kind == model.KindStruct)) || qualified {
		kind = model.KindMethod
	}
	d := &model.Declaration{
		Name: name, Kind: kind, Scope: scopeCopy(scope), Span: w.span(node),
		Signature: w.signature(node), Access: access,
	}
	w.applyQualifiers(node, d)
	w.add(d, parent)
}

// visitField extracts data members and in-class method prototypes. A single
// statement may declare several members (int a, b;); each declarator becomes
// its own node spanning just the declarator.
func (w *walker) visitField(node *sitter.Node, parent *model.Declaration, scope []string, access model.Access) {
	for _, decl := range declarators(node) {
		name, _ := declaratorName(decl, w.content)
		if name == "" {
			continue
		}
		kind := model.KindMember
		if hasFunctionDeclarator(decl) {
			kind = model.KindMethod
		}
		d := &model.Declaration{
			Name: name, Kind: kind, Scope: scopeCopy(scope), Span: w.span(decl),
			Signature: w.signature(node), Access: access,
			TypeName: w.fieldText(node, "type"),
		}
		w.applyQualifiers(node, d)
		w.add(d, parent)
	}
}

// visitDeclaration extracts namespace-scope variables and function prototypes.
// Declarations may also carry an inline class/struct/enum specifier as their
// type; those are handled by the type child itself during recursion.
func (w *walker) visitDeclaration(node *sitter.Node, parent *model.Declaration, scope []string, access model.Access) {
	if t := node.ChildByFieldName("type"); t != nil {
		switch t.Type() {
		case "class_specifier", "struct_specifier", "enum_specifier":
			w.visit(t, parent, scope, access)
			return
		}
	}
	for _, decl := range declarators(node) {
		name, qualified := declaratorName(decl, w.content)
		if name == "" {
			continue
		}
		var d *model.Declaration
		if hasFunctionDeclarator(decl) {
			kind := model.KindFunction
			if qualified || (parent != nil && (parent.Kind == model.KindClass || parent.Kind == model.KindStruct)) {
				kind = model.KindMethod
			}
			d = &model.Declaration{
				Name: name, Kind: kind, Scope: scopeCopy(scope), Span: w.span(decl),
				Signature: w.signature(node), Access: access,
			}
		} else {
			d = &model.Declaration{
				Name: name, Kind: model.KindVariable, Scope: scopeCopy(scope),
				Span: w.span(decl), Signature: w.signature(node), Access: access,
				TypeName: w.fieldText(node, "type"),
			}
		}
		w.applyQualifiers(node, d)
		w.add(d, parent)
	}
	// Initializers can contain new-expressions.
	w.walk(node, parent, scope, model.AccessNone)
}

// applyQualifiers records static/const/constexpr from the declaration node.
func (w *walker) applyQualifiers(node *sitter.Node, d *model.Declaration) {
	for i := 0; i < int(node.ChildCount()); i++ {
		c := node.Child(i)
		switch c.Type() {
		case "storage_class_specifier":
			if w.text(c) == "static" {
				d.Static = true
			}
		case "type_qualifier":
			switch w.text(c) {
			case "const":
				d.Const = true
			case "constexpr":
				d.Constexpr = true
			}
		}
	}
}

func (w *walker) fieldText(node *sitter.Node, field string) string {
	if c := node.ChildByFieldName(field); c != nil {
		return w.text(c)
	}
	return ""
}

// declarators returns every declarator child of a declaration node. Multi-
// declarator statements carry one child per declared entity.
func declarators(node *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(node.ChildCount()); i++ {
		if node.FieldNameForChild(i) == "declarator" {
			out = append(out, node.Child(i))
		}
	}
	return out
}

// hasFunctionDeclarator reports whether the declarator subtree declares a
// function (as opposed to an object).
func hasFunctionDeclarator(node *sitter.Node) bool {
	if node == nil {
		return false
	}
	if node.Type() == "function_declarator" {
		return true
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if hasFunctionDeclarator(node.NamedChild(i)) {
			return true
		}
	}
	return false
}

// declaratorName digs the declared identifier out of a declarator subtree.
// The second result reports whether the name was scope-qualified (Foo::bar),
// which marks out-of-class method definitions.
func declaratorName(node *sitter.Node, content []byte) (string, bool) {
	if node == nil {
		return "", false
	}
	switch node.Type() {
	case "identifier", "field_identifier", "destructor_name", "operator_name":
		return string(content[node.StartByte():node.EndByte()]), false
	case "qualified_identifier":
		if n := node.ChildByFieldName("name"); n != nil {
			name, _ := declaratorName(n, content)
			return name, true
		}
		return "", true
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if name, qualified := declaratorName(node.NamedChild(i), content); name != "" {
			return name, qualified || node.Type() == "qualified_identifier"
		}
	}
	return "", false
}

// lastIdentifier returns the trailing identifier of a using declaration.
func lastIdentifier(text string) string {
	text = strings.TrimSuffix(strings.TrimSpace(text), ";")
	if idx := strings.LastIndexAny(text, ": \t"); idx >= 0 {
		return text[idx+1:]
	}
	return text
}

func scopeCopy(scope []string) []string {
	if len(scope) == 0 {
		return nil
	}
	out := make([]string, len(scope))
	copy(out, scope)
	return out
}
