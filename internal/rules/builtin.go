package rules

import (
	"fmt"
	"regexp"
	"strings"

	"cppstyle/internal/model"
)

var (
	pascalCase = regexp.MustCompile(`^[A-Z][A-Za-z0-9]*$`)
	lowerCamel = regexp.MustCompile(`^[a-z][A-Za-z0-9]*$`)
	constCase  = regexp.MustCompile(`^k[A-Z][A-Za-z0-9]*$`)
)

// builtinTypes are fundamental types whose namespace-scope statics have
// trivial destruction and constant initialization.
var builtinTypes = map[string]bool{
	"void": true, "bool": true, "char": true, "wchar_t": true,
	"short": true, "int": true, "long": true, "float": true, "double": true,
	"signed": true, "unsigned": true, "size_t": true, "ptrdiff_t": true,
	"int8_t": true, "int16_t": true, "int32_t": true, "int64_t": true,
	"uint8_t": true, "uint16_t": true, "uint32_t": true, "uint64_t": true,
	"uintptr_t": true, "intptr_t": true, "char8_t": true, "char16_t": true,
	"char32_t": true,
}

// builtinRules returns every built-in rule in canonical registration order.
// Order is part of the output contract: reports tie-break on it.
func builtinRules() []Rule {
	return []Rule{
		namingClassCase(),
		namingMemberPrefix(),
		namingFunctionCase(),
		namingConstantCase(),
		forbiddenUsingDirective(),
		forbiddenRawNew(),
		forbiddenExceptions(),
		forbiddenMacroFunction(),
		forbiddenNontrivialStatic(),
		structMemberOrder(),
		privateDataMembers(),
	}
}

func namingClassCase() Rule {
	return &declRule{
		id:       "naming-class-case",
		category: CategoryNaming,
		severity: SeverityError,
		summary:  "Type names (class, struct, enum) use PascalCase",
		kinds:    kindSet(model.KindClass, model.KindStruct, model.KindEnum),
		check: func(d *model.Declaration) []Finding {
			if d.Name == "" || pascalCase.MatchString(d.Name) {
				return nil
			}
			return one(d, fmt.Sprintf("type name %q must be PascalCase", d.Name))
		},
	}
}

func namingMemberPrefix() Rule {
	return &declRule{
		id:       "naming-member-prefix",
		category: CategoryNaming,
		severity: SeverityError,
		summary:  "Non-static data members are prefixed with m_",
		kinds:    kindSet(model.KindMember),
		check: func(d *model.Declaration) []Finding {
			if d.Static {
				return nil
			}
			if strings.HasPrefix(d.Name, "m_") && len(d.Name) > 2 {
				return nil
			}
			return one(d, fmt.Sprintf("data member %q must be prefixed with m_", d.Name))
		},
	}
}

func namingFunctionCase() Rule {
	return &declRule{
		id:       "naming-function-case",
		category: CategoryNaming,
		severity: SeverityWarning,
		summary:  "Free functions and methods use lowerCamelCase",
		kinds:    kindSet(model.KindFunction, model.KindMethod),
		check: func(d *model.Declaration) []Finding {
			name := d.Name
			// Constructors, destructors and operators carry the type's name.
			if name == "" || strings.HasPrefix(name, "~") || strings.HasPrefix(name, "operator") {
				return nil
			}
			if d.Parent != nil && name == d.Parent.Name {
				return nil
			}
			if lowerCamel.MatchString(name) {
				return nil
			}
			return one(d, fmt.Sprintf("function name %q must be lowerCamelCase", name))
		},
	}
}

func namingConstantCase() Rule {
	return &declRule{
		id:       "naming-constant-case",
		category: CategoryNaming,
		severity: SeverityWarning,
		summary:  "Namespace-scope constants are named kPascalCase",
		kinds:    kindSet(model.KindVariable),
		check: func(d *model.Declaration) []Finding {
			if !d.AtNamespaceScope() || (!d.Const && !d.Constexpr) {
				return nil
			}
			if constCase.MatchString(d.Name) {
				return nil
			}
			return one(d, fmt.Sprintf("constant %q must be named kPascalCase", d.Name))
		},
	}
}

func forbiddenUsingDirective() Rule {
	return &declRule{
		id:       "forbidden-using-directive",
		category: CategoryForbidden,
		severity: SeverityError,
		summary:  "using-namespace directives are forbidden",
		kinds:    kindSet(model.KindUsingDirective),
		check: func(d *model.Declaration) []Finding {
			return one(d, fmt.Sprintf(
				"using namespace %s pollutes the enclosing namespace; qualify names explicitly", d.Name))
		},
	}
}

func forbiddenRawNew() Rule {
	return &declRule{
		id:       "forbidden-raw-new",
		category: CategoryForbidden,
		severity: SeverityError,
		summary:  "Raw new expressions are forbidden; use owning smart pointers",
		kinds:    kindSet(model.KindNewExpr),
		check: func(d *model.Declaration) []Finding {
			return one(d, "raw new expression; allocate through std::make_unique or std::make_shared")
		},
	}
}

func forbiddenExceptions() Rule {
	return &declRule{
		id:       "forbidden-exceptions",
		category: CategoryForbidden,
		severity: SeverityError,
		summary:  "Exceptions (throw/try) are forbidden",
		kinds:    kindSet(model.KindThrow, model.KindTry),
		check: func(d *model.Declaration) []Finding {
			if d.Kind == model.KindTry {
				return one(d, "try block; error handling must use status returns, not exceptions")
			}
			return one(d, "throw expression; error handling must use status returns, not exceptions")
		},
	}
}

func forbiddenMacroFunction() Rule {
	return &declRule{
		id:       "forbidden-macro-function",
		category: CategoryForbidden,
		severity: SeverityError,
		summary:  "Function-like macros are forbidden; use inline/constexpr functions",
		kinds:    kindSet(model.KindMacroFunction),
		check: func(d *model.Declaration) []Finding {
			return one(d, fmt.Sprintf("function-like macro %q; use an inline or constexpr function", d.Name))
		},
	}
}

func forbiddenNontrivialStatic() Rule {
	return &declRule{
		id:       "forbidden-nontrivial-static",
		category: CategoryForbidden,
		severity: SeverityError,
		summary:  "Namespace-scope statics of class type are forbidden",
		kinds:    kindSet(model.KindVariable),
		check: func(d *model.Declaration) []Finding {
			if !d.Static || !d.AtNamespaceScope() || d.Constexpr {
				return nil
			}
			if isTrivialType(d.TypeName, d.Signature) {
				return nil
			}
			return one(d, fmt.Sprintf(
				"static %q of class type %s has non-trivial destruction; construct it on demand", d.Name, d.TypeName))
		},
	}
}

func structMemberOrder() Rule {
	order := map[string]int{"public": 0, "protected": 1, "private": 2}
	return &declRule{
		id:       "struct-member-order",
		category: CategoryOrdering,
		severity: SeverityWarning,
		summary:  "Access sections are ordered public, protected, private",
		kinds:    kindSet(model.KindClass, model.KindStruct),
		check: func(d *model.Declaration) []Finding {
			var findings []Finding
			last := -1
			for _, c := range d.Children {
				if c.Kind != model.KindAccessLabel {
					continue
				}
				rank, ok := order[c.Name]
				if !ok {
					continue
				}
				if rank < last {
					findings = append(findings, Finding{
						Span: c.Span,
						Message: fmt.Sprintf(
							"%s: section out of order; declare public, then protected, then private", c.Name),
					})
				}
				if rank > last {
					last = rank
				}
			}
			return findings
		},
	}
}

func privateDataMembers() Rule {
	return &declRule{
		id:       "private-data-members",
		category: CategoryStructure,
		severity: SeverityError,
		summary:  "Class data members must not be public",
		kinds:    kindSet(model.KindMember),
		check: func(d *model.Declaration) []Finding {
			if !d.InClass() || d.Access != model.AccessPublic || d.Static {
				return nil
			}
			return one(d, fmt.Sprintf("data member %q is public; expose it through accessors", d.Name))
		},
	}
}

// isTrivialType approximates "trivially destructible": fundamental types,
// pointers and references. Everything else is treated as class type.
func isTrivialType(typeName, signature string) bool {
	t := strings.TrimSpace(typeName)
	t = strings.TrimPrefix(t, "const ")
	t = strings.TrimPrefix(t, "std::")
	if builtinTypes[t] {
		return true
	}
	// Pointer and reference declarators sit outside the type node.
	if strings.Contains(signature, "*") || strings.Contains(signature, "&") {
		return true
	}
	return false
}
