// Package model defines the lightweight structural model a C++ source file is
// reduced to before rule evaluation. It is deliberately not a full AST: only
// the declarations, scopes and constructs the style rules inspect are kept.
package model

// DeclKind defines the semantic kind of a declaration node.
type DeclKind string

const (
	KindNamespace      DeclKind = "namespace"
	KindClass          DeclKind = "class"
	KindStruct         DeclKind = "struct"
	KindEnum           DeclKind = "enum"
	KindFunction       DeclKind = "function"
	KindMethod         DeclKind = "method"
	KindMember         DeclKind = "member"
	KindVariable       DeclKind = "variable"
	KindInclude        DeclKind = "include"
	KindUsingDirective DeclKind = "using_directive"
	KindUsingDecl      DeclKind = "using_declaration"
	KindMacro          DeclKind = "macro"
	KindMacroFunction  DeclKind = "macro_function"
	KindNewExpr        DeclKind = "new_expression"
	KindThrow          DeclKind = "throw"
	KindTry            DeclKind = "try"
	KindAccessLabel    DeclKind = "access_label"
)

// Access is the C++ access level a declaration sits under.
type Access string

const (
	AccessNone      Access = ""
	AccessPublic    Access = "public"
	AccessProtected Access = "protected"
	AccessPrivate   Access = "private"
)

// Span is a 1-indexed, inclusive source location range.
type Span struct {
	StartLine int `json:"start_line"`
	StartCol  int `json:"start_col"`
	EndLine   int `json:"end_line"`
	EndCol    int `json:"end_col"`
}

// Declaration is one node of the structural model: a named construct (class,
// function, member) or an anonymous site a rule cares about (new-expression,
// throw). Children are in source order.
type Declaration struct {
	// Name is the declared identifier. Empty for anonymous sites.
	Name string `json:"name,omitempty"`

	// Kind is the semantic kind of this node.
	Kind DeclKind `json:"kind"`

	// Scope is the chain of enclosing namespace/class names, outermost first.
	Scope []string `json:"scope,omitempty"`

	// Span is the source range covered by the declaration.
	Span Span `json:"span"`

	// Signature is the trimmed first source line of the declaration.
	Signature string `json:"signature,omitempty"`

	// Access is the access level for class members, AccessNone elsewhere.
	Access Access `json:"access,omitempty"`

	// TypeName is the spelled type for members and variables.
	TypeName string `json:"type_name,omitempty"`

	// Qualifiers observed on the declaration.
	Static    bool `json:"static,omitempty"`
	Const     bool `json:"const,omitempty"`
	Constexpr bool `json:"constexpr,omitempty"`

	// Parent is the enclosing declaration, nil at file scope.
	Parent *Declaration `json:"-"`

	// Children are nested declarations in source order.
	Children []*Declaration `json:"children,omitempty"`
}

// QualifiedName joins the scope chain and name with "::".
func (d *Declaration) QualifiedName() string {
	if len(d.Scope) == 0 {
		return d.Name
	}
	out := ""
	for _, s := range d.Scope {
		out += s + "::"
	}
	return out + d.Name
}

// InClass reports whether the declaration's immediate parent is a class.
// Struct parents return false; the distinction matters for visibility rules.
func (d *Declaration) InClass() bool {
	return d.Parent != nil && d.Parent.Kind == KindClass
}

// AtNamespaceScope reports whether the declaration sits directly in a
// namespace or at file scope, outside any class or function body.
func (d *Declaration) AtNamespaceScope() bool {
	return d.Parent == nil || d.Parent.Kind == KindNamespace
}

// StructuralModel is the per-file declaration tree produced by the source
// model builder. It is built once, evaluated once and discarded.
type StructuralModel struct {
	// Path is the source file the model was built from.
	Path string `json:"path"`

	// Decls are the file-scope declarations in source order.
	Decls []*Declaration `json:"decls"`

	// Partial is set when ERROR subtrees were skipped during parsing.
	// Recognized declarations are still present and evaluated.
	Partial bool `json:"partial,omitempty"`
}

// Walk visits every declaration depth-first in source order. Returning false
// from fn stops the walk.
func (m *StructuralModel) Walk(fn func(*Declaration) bool) {
	var visit func(d *Declaration) bool
	visit = func(d *Declaration) bool {
		if !fn(d) {
			return false
		}
		for _, c := range d.Children {
			if !visit(c) {
				return false
			}
		}
		return true
	}
	for _, d := range m.Decls {
		if !visit(d) {
			return
		}
	}
}

// Count returns the total number of declarations in the model.
func (m *StructuralModel) Count() int {
	n := 0
	m.Walk(func(*Declaration) bool { n++; return true })
	return n
}
