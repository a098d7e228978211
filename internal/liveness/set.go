// Package liveness tracks the set of concrete types proven constructed
// during a run. The set only grows; the instantiation-filtered dispatch
// strategy queries it to narrow candidate methods.
package liveness

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/715d/callgraph/internal/hierarchy"
)

// Set is a monotone, concurrency-safe set of instantiated type names.
type Set struct {
	index *hierarchy.Index
	types *xsync.Map[string, struct{}]
	gen   atomic.Uint64
}

// NewSet returns an empty instantiated-type set backed by the given
// hierarchy index for subtype-aware liveness queries.
func NewSet(index *hierarchy.Index) *Set {
	return &Set{
		index: index,
		types: xsync.NewMap[string, struct{}](),
	}
}

// Record inserts a constructed type. Returns true on first insertion.
func (s *Set) Record(name string) bool {
	_, loaded := s.types.LoadOrStore(name, struct{}{})
	if !loaded {
		s.gen.Add(1)
	}
	return !loaded
}

// Contains reports exact membership.
func (s *Set) Contains(name string) bool {
	_, ok := s.types.Load(name)
	return ok
}

// Live reports whether the named type, or any of its transitive subtypes,
// has been recorded as constructed.
func (s *Set) Live(name string) bool {
	if s.Contains(name) {
		return true
	}
	for _, sub := range s.index.Subtypes(name) {
		if s.Contains(sub.Name) {
			return true
		}
	}
	return false
}

// Size returns the number of recorded types.
func (s *Set) Size() int {
	return s.types.Size()
}

// Generation is a counter bumped on every genuine insertion. The worklist
// driver compares generations across passes to detect the fixpoint.
func (s *Set) Generation() uint64 {
	return s.gen.Load()
}
