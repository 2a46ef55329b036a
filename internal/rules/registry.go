package rules

import (
	"errors"
	"fmt"
	"sort"

	"cppstyle/internal/logging"
)

// ErrDuplicateRule is returned when a rule id is registered twice.
// Duplicate registration is a programmer error and fatal at startup.
var ErrDuplicateRule = errors.New("duplicate rule id")

// Registry holds the registered rules in registration order. It is
// append-only: rules are registered during initialization, the registry is
// frozen, and evaluation workers read it concurrently without locking.
type Registry struct {
	ordered []Rule
	byID    map[string]Rule
	frozen  bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Rule)}
}

// Register appends a rule. Fails with ErrDuplicateRule if the id exists and
// with an error if the registry has already been frozen.
func (r *Registry) Register(rule Rule) error {
	if r.frozen {
		return fmt.Errorf("registry is frozen, cannot register %q", rule.ID())
	}
	if _, exists := r.byID[rule.ID()]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateRule, rule.ID())
	}
	r.byID[rule.ID()] = rule
	r.ordered = append(r.ordered, rule)
	logging.RulesDebug("Registry: registered %s (%s)", rule.ID(), rule.Category())
	return nil
}

// Freeze makes the registry immutable. Call once after all built-in and
// custom rules are registered, before any evaluation starts.
func (r *Registry) Freeze() {
	r.frozen = true
	logging.Rules("Registry: frozen with %d rules", len(r.ordered))
}

// All returns the rules in registration order. The returned slice is a copy;
// the registry itself is never exposed mutably.
func (r *Registry) All() []Rule {
	out := make([]Rule, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Get returns the rule with the given id, or nil.
func (r *Registry) Get(id string) Rule { return r.byID[id] }

// Len returns the number of registered rules.
func (r *Registry) Len() int { return len(r.ordered) }

// Index returns the registration position of a rule id, or -1.
func (r *Registry) Index(id string) int {
	for i, rule := range r.ordered {
		if rule.ID() == id {
			return i
		}
	}
	return -1
}

// IDs returns all rule ids sorted alphabetically (for fingerprints and
// listings where registration order is not the interesting order).
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.ordered))
	for _, rule := range r.ordered {
		ids = append(ids, rule.ID())
	}
	sort.Strings(ids)
	return ids
}

// DefaultRegistry returns a registry with every built-in rule registered, in
// the canonical order. The caller may register custom rules before freezing.
func DefaultRegistry() (*Registry, error) {
	reg := NewRegistry()
	for _, rule := range builtinRules() {
		if err := reg.Register(rule); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// FilteredRegistry returns a registry containing only the built-in rules
// whose category is enabled. Unknown categories in the map are the caller's
// validation problem; missing entries default to enabled.
func FilteredRegistry(enabled map[string]bool) (*Registry, error) {
	reg := NewRegistry()
	for _, rule := range builtinRules() {
		if on, ok := enabled[string(rule.Category())]; ok && !on {
			continue
		}
		if err := reg.Register(rule); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
