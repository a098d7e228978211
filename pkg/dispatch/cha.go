package dispatch

import "github.com/715d/callgraph/pkg/model"

// hierarchyResolver implements class-hierarchy analysis: every method that
// could structurally occupy the target's dispatch slot is a candidate,
// whether or not its declaring type is ever constructed.
type hierarchyResolver struct {
	matcher
}

func (r *hierarchyResolver) Strategy() Strategy { return StrategyHierarchy }

func (r *hierarchyResolver) Resolve(target *model.Method) []*model.Method {
	declaring := target.Declaring()
	if declaring == nil {
		return nil
	}
	out := newCandidates(r.program)

	switch {
	case declaring.IsInterface:
		// A default interface method is itself invocable when no
		// implementer overrides it.
		if target.HasBody() && !target.IsAbstract {
			out.add(target)
		}
		for _, impl := range r.index.Implementers(declaring.Name) {
			out.add(r.interfaceImpl(impl, target))
		}

	case target.IsVirtual:
		if !target.IsAbstract {
			out.add(target)
		}
		for _, sub := range r.index.Subtypes(declaring.Name) {
			out.add(r.classOverride(sub, target))
		}

	default:
		// A virtual-call instruction on a non-virtual method binds
		// statically.
		if !target.IsAbstract {
			out.add(target)
		}
	}

	return out.methods()
}
