package analyzer

import (
	"fmt"
	"strings"

	"github.com/715d/callgraph/pkg/model"
)

// EntryStrategy selects which methods seed the worklist.
type EntryStrategy string

const (
	// EntryProgram seeds each module's designated program entry method.
	EntryProgram EntryStrategy = "program-entry"

	// EntryPublicConcrete seeds public non-abstract methods.
	EntryPublicConcrete EntryStrategy = "public-concrete"

	// EntryAccessibleConcrete seeds public and protected non-abstract
	// methods.
	EntryAccessibleConcrete EntryStrategy = "accessible-concrete"

	// EntryConcrete seeds every non-abstract method.
	EntryConcrete EntryStrategy = "concrete"

	// EntryAll seeds literally every method, accessors and abstract
	// methods included.
	EntryAll EntryStrategy = "all"
)

// ParseEntryStrategy validates a configured entry-point strategy name.
func ParseEntryStrategy(name string) (EntryStrategy, error) {
	switch EntryStrategy(name) {
	case EntryProgram, EntryPublicConcrete, EntryAccessibleConcrete, EntryConcrete, EntryAll:
		return EntryStrategy(name), nil
	default:
		return "", fmt.Errorf("unknown entry-point strategy %q", name)
	}
}

// selectEntryPoints seeds the worklist per the configured strategy and
// namespace filter, module by module. It only selects; nothing is scanned.
func (a *Analyzer) selectEntryPoints() []*model.Method {
	var seeds []*model.Method
	for _, mod := range a.program.Modules {
		if a.entry == EntryProgram {
			seeds = append(seeds, a.moduleEntryPoint(mod)...)
			continue
		}
		annotationBase := a.program.AnnotationBase(mod)
		for _, t := range mod.Types {
			if t.IsInterface {
				continue
			}
			if a.program.DerivesFrom(t, annotationBase) {
				continue
			}
			if !matchesNamespace(t.Namespace, a.namespaces) {
				continue
			}
			for _, m := range t.Methods {
				if a.includeSeed(m) {
					seeds = append(seeds, m)
				}
			}
		}
	}
	return seeds
}

func (a *Analyzer) moduleEntryPoint(mod *model.Module) []*model.Method {
	if mod.EntryPoint == nil {
		return nil
	}
	m, err := a.program.Resolve(mod.EntryPoint)
	if err != nil {
		a.diags.record(mod.EntryPoint.String(), fmt.Sprintf("module %s entry point: %v", mod.Name, err))
		return nil
	}
	if t := m.Declaring(); t != nil && !matchesNamespace(t.Namespace, a.namespaces) {
		return nil
	}
	return []*model.Method{m}
}

func (a *Analyzer) includeSeed(m *model.Method) bool {
	if a.entry == EntryAll {
		return true
	}
	// Property accessors only count as seeds under the "all" strategy.
	if m.IsAbstract || m.IsAccessor {
		return false
	}
	switch a.entry {
	case EntryPublicConcrete:
		return m.Visibility == model.VisibilityPublic
	case EntryAccessibleConcrete:
		return m.Visibility == model.VisibilityPublic || m.Visibility == model.VisibilityProtected
	case EntryConcrete:
		return true
	}
	return false
}

// matchesNamespace reports whether ns equals, or is a dot-separated
// descendant of, any configured namespace. An empty filter matches all.
func matchesNamespace(ns string, filters []string) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if ns == f || strings.HasPrefix(ns, f+".") {
			return true
		}
	}
	return false
}
