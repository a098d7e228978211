// Package dispatch resolves the candidate set of a virtual call: given the
// statically-declared target method, which concrete methods could the call
// reach at runtime. Two strategies are provided, selected at construction:
// class-hierarchy analysis (every structurally possible overrider) and
// instantiation-filtered analysis (only overriders on types proven
// constructed during the same run).
package dispatch

import (
	"fmt"
	"slices"

	"github.com/715d/callgraph/internal/hierarchy"
	"github.com/715d/callgraph/internal/liveness"
	"github.com/715d/callgraph/pkg/model"
)

// Strategy names a dispatch resolution strategy.
type Strategy string

const (
	// StrategyHierarchy resolves against all structurally possible
	// overriders in the type hierarchy (CHA).
	StrategyHierarchy Strategy = "cha"

	// StrategyInstantiation restricts candidates to types proven
	// instantiated during the run (RTA).
	StrategyInstantiation Strategy = "rta"
)

// ParseStrategy validates a configured strategy name.
func ParseStrategy(name string) (Strategy, error) {
	switch Strategy(name) {
	case StrategyHierarchy, StrategyInstantiation:
		return Strategy(name), nil
	default:
		return "", fmt.Errorf("unknown dispatch strategy %q (want %q or %q)",
			name, StrategyHierarchy, StrategyInstantiation)
	}
}

// Resolver turns a statically-declared virtual call target into the set of
// concrete candidate methods.
type Resolver interface {
	// Strategy identifies the resolution strategy.
	Strategy() Strategy

	// Resolve returns the deduplicated candidate set for a virtual call on
	// target. Candidates always have bodies or are interface default
	// methods; abstract methods are never returned.
	Resolve(target *model.Method) []*model.Method
}

// New constructs the resolver for the configured strategy. live may be nil
// for StrategyHierarchy.
func New(s Strategy, p *model.Program, ix *hierarchy.Index, live *liveness.Set) (Resolver, error) {
	base := matcher{program: p, index: ix}
	switch s {
	case StrategyHierarchy:
		return &hierarchyResolver{matcher: base}, nil
	case StrategyInstantiation:
		if live == nil {
			return nil, fmt.Errorf("strategy %q requires an instantiated-type set", s)
		}
		return &instantiationResolver{matcher: base, live: live}, nil
	default:
		return nil, fmt.Errorf("unknown dispatch strategy %q", s)
	}
}

// matcher holds the structural and explicit-binding match rules shared by
// both strategies.
type matcher struct {
	program *model.Program
	index   *hierarchy.Index
}

// structuralMatch reports whether m occupies the same signature shape as
// target: same name, positionally identical parameter type names, and a
// return type that is identical or a covariant reference-type descendant of
// target's.
func (x matcher) structuralMatch(m, target *model.Method) bool {
	if m.Name != target.Name || !slices.Equal(m.Params, target.Params) {
		return false
	}
	if m.ReturnType == target.ReturnType {
		return true
	}
	return x.covariantReturn(m.ReturnType, target.ReturnType)
}

// covariantReturn reports whether ret is a reference-type descendant of
// base, walked through the base-type chain.
func (x matcher) covariantReturn(ret, base string) bool {
	t, ok := x.program.Type(ret)
	if !ok || t.IsValueType {
		return false
	}
	return x.program.DerivesFrom(t, base)
}

// explicitBinding reports whether m declares an override binding that
// resolves to target, by identity first and qualified-name fallback second.
func (x matcher) explicitBinding(m, target *model.Method) bool {
	for i := range m.Overrides {
		ov := &m.Overrides[i]
		if resolved, err := x.program.Resolve(ov); err == nil {
			if resolved == target {
				return true
			}
			continue
		}
		if ov.DeclaringType == target.Declaring().Name &&
			ov.Name == target.Name &&
			slices.Equal(ov.Params, target.Params) {
			return true
		}
	}
	return false
}

// interfaceImpl returns the first declared method of t that implements the
// interface method target, structurally or through an explicit binding.
func (x matcher) interfaceImpl(t *model.Type, target *model.Method) *model.Method {
	for _, m := range t.Methods {
		if m.IsAbstract {
			continue
		}
		if x.structuralMatch(m, target) || x.explicitBinding(m, target) {
			return m
		}
	}
	return nil
}

// classOverride returns the first declared method of t that overrides the
// virtual method target. A matching method that redeclares the dispatch
// slot (new slot) shadows rather than overrides and is excluded.
func (x matcher) classOverride(t *model.Type, target *model.Method) *model.Method {
	for _, m := range t.Methods {
		if !m.IsVirtual || m.IsAbstract || m.IsNewSlot {
			continue
		}
		if x.structuralMatch(m, target) {
			return m
		}
	}
	return nil
}

// candidates accumulates methods deduplicated by identity, returned in
// deterministic key order.
type candidates struct {
	program *model.Program
	byKey   map[string]*model.Method
}

func newCandidates(p *model.Program) *candidates {
	return &candidates{program: p, byKey: make(map[string]*model.Method)}
}

func (c *candidates) add(m *model.Method) {
	if m == nil {
		return
	}
	c.byKey[c.program.Key(m)] = m
}

func (c *candidates) methods() []*model.Method {
	keys := make([]string, 0, len(c.byKey))
	for k := range c.byKey {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]*model.Method, 0, len(keys))
	for _, k := range keys {
		out = append(out, c.byKey[k])
	}
	return out
}
