// Package hierarchy derives subtype and interface-implementer relations
// from the program model. The index is a pure function of the immutable
// model; transitive closures are computed on first query and cached.
package hierarchy

import (
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/715d/callgraph/pkg/model"
)

// Index answers transitive type-hierarchy queries over one program.
type Index struct {
	program *model.Program

	// Direct relations, precomputed once: arena-style adjacency keyed by
	// qualified type name rather than back-pointers between types.
	directSubs  map[string][]*model.Type
	directImpls map[string][]*model.Type

	subCache  *xsync.Map[string, []*model.Type]
	implCache *xsync.Map[string, []*model.Type]
}

// NewIndex builds the direct subtype/implementer adjacency for a program.
func NewIndex(p *model.Program) *Index {
	ix := &Index{
		program:     p,
		directSubs:  make(map[string][]*model.Type),
		directImpls: make(map[string][]*model.Type),
		subCache:    xsync.NewMap[string, []*model.Type](),
		implCache:   xsync.NewMap[string, []*model.Type](),
	}
	for _, mod := range p.Modules {
		for _, t := range mod.Types {
			if t.Base != "" {
				ix.directSubs[t.Base] = append(ix.directSubs[t.Base], t)
			}
			for _, iface := range t.Interfaces {
				ix.directImpls[iface] = append(ix.directImpls[iface], t)
			}
		}
	}
	return ix
}

// Subtypes returns every type that derives from the named type through any
// number of intermediate bases. The named type itself is not included.
func (ix *Index) Subtypes(name string) []*model.Type {
	if cached, ok := ix.subCache.Load(name); ok {
		return cached
	}

	var result []*model.Type
	seen := map[string]bool{name: true}
	queue := []string{name}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, sub := range ix.directSubs[cur] {
			if seen[sub.Name] {
				continue
			}
			seen[sub.Name] = true
			result = append(result, sub)
			queue = append(queue, sub.Name)
		}
	}

	ix.subCache.Store(name, result)
	return result
}

// Implementers returns every non-interface type that implements the named
// interface: direct implementers, implementers of interfaces extending it,
// and transitive subtypes of all of those (a derived class satisfies every
// interface of its bases).
func (ix *Index) Implementers(name string) []*model.Type {
	if cached, ok := ix.implCache.Load(name); ok {
		return cached
	}

	var result []*model.Type
	seenType := make(map[string]bool)
	seenIface := map[string]bool{name: true}
	ifaces := []string{name}

	add := func(t *model.Type) {
		if !seenType[t.Name] {
			seenType[t.Name] = true
			result = append(result, t)
		}
	}

	for len(ifaces) > 0 {
		cur := ifaces[0]
		ifaces = ifaces[1:]
		for _, impl := range ix.directImpls[cur] {
			if impl.IsInterface {
				// An interface listing cur extends it; its implementers
				// implement cur as well.
				if !seenIface[impl.Name] {
					seenIface[impl.Name] = true
					ifaces = append(ifaces, impl.Name)
				}
				continue
			}
			add(impl)
			for _, sub := range ix.Subtypes(impl.Name) {
				add(sub)
			}
		}
	}

	ix.implCache.Store(name, result)
	return result
}
