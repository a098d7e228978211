package dispatch

import (
	"github.com/715d/callgraph/internal/liveness"
	"github.com/715d/callgraph/pkg/model"
)

// instantiationResolver restricts hierarchy-based candidates with a
// liveness gate: a receiver type is eligible only when it, or one of its
// transitive subtypes, has been proven constructed. For an eligible type
// with no override of its own, the candidate is the nearest inherited
// implementation found by walking the base-type chain upward, because that
// is the method a runtime dispatch on that receiver would invoke.
type instantiationResolver struct {
	matcher
	live *liveness.Set
}

func (r *instantiationResolver) Strategy() Strategy { return StrategyInstantiation }

func (r *instantiationResolver) Resolve(target *model.Method) []*model.Method {
	declaring := target.Declaring()
	if declaring == nil {
		return nil
	}
	out := newCandidates(r.program)

	switch {
	case declaring.IsInterface:
		for _, impl := range r.index.Implementers(declaring.Name) {
			if !r.live.Live(impl.Name) {
				continue
			}
			if m := r.inheritedInterfaceImpl(impl, target); m != nil {
				out.add(m)
			} else if target.HasBody() && !target.IsAbstract {
				// No implementer override anywhere on the chain: runtime
				// dispatch lands on the interface's default method.
				out.add(target)
			}
		}

	case target.IsVirtual:
		if r.live.Live(declaring.Name) {
			out.add(r.inheritedClassImpl(declaring, target))
		}
		for _, sub := range r.index.Subtypes(declaring.Name) {
			if sub.IsInterface || !r.live.Live(sub.Name) {
				continue
			}
			out.add(r.inheritedClassImpl(sub, target))
		}

	default:
		if !target.IsAbstract {
			out.add(target)
		}
	}

	return out.methods()
}

// inheritedInterfaceImpl walks recv's base-type chain upward and returns
// the first method implementing the interface method target.
func (r *instantiationResolver) inheritedInterfaceImpl(recv *model.Type, target *model.Method) *model.Method {
	for t := recv; t != nil; {
		if m := r.interfaceImpl(t, target); m != nil {
			return m
		}
		next, ok := r.program.Type(t.Base)
		if t.Base == "" || !ok {
			return nil
		}
		t = next
	}
	return nil
}

// inheritedClassImpl walks recv's base-type chain upward and returns the
// nearest non-abstract virtual implementation of target's dispatch slot.
// The target itself is returned when the walk reaches its declaring type
// and no subtype overrode it.
func (r *instantiationResolver) inheritedClassImpl(recv *model.Type, target *model.Method) *model.Method {
	declaring := target.Declaring()
	for t := recv; t != nil; {
		if t == declaring {
			if !target.IsAbstract {
				return target
			}
			return nil
		}
		if m := r.classOverride(t, target); m != nil {
			return m
		}
		next, ok := r.program.Type(t.Base)
		if t.Base == "" || !ok {
			return nil
		}
		t = next
	}
	return nil
}
