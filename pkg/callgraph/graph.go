// Package callgraph holds the analysis output: deduplicated method nodes
// and caller→callee edges. Insertions are insert-if-absent and safe under
// concurrent writers; the graph is read-only once the run completes.
package callgraph

import (
	"cmp"
	"slices"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/715d/callgraph/pkg/model"
)

// Node is one scanned method.
type Node struct {
	ID        string `json:"id"`
	Module    string `json:"module"`
	Namespace string `json:"namespace"`
	Signature string `json:"signature"`
}

// Edge is one deduplicated caller→callee relationship. Repeated call sites
// to the same target collapse into a single edge.
type Edge struct {
	Caller string `json:"caller"`
	Callee string `json:"callee"`
}

// Graph accumulates nodes and edges during a run.
type Graph struct {
	program *model.Program
	nodes   *xsync.Map[string, Node]
	edges   *xsync.Map[string, Edge]
}

// New returns an empty graph keyed by the program's method identities.
func New(p *model.Program) *Graph {
	return &Graph{
		program: p,
		nodes:   xsync.NewMap[string, Node](),
		edges:   xsync.NewMap[string, Edge](),
	}
}

// AddNode inserts the node for a scanned method. Returns true on first
// insertion.
func (g *Graph) AddNode(m *model.Method) bool {
	id := g.program.Key(m)
	node := Node{
		ID:        id,
		Signature: g.program.Signature(m),
	}
	if t := m.Declaring(); t != nil {
		node.Namespace = t.Namespace
		if mod := t.Module(); mod != nil {
			node.Module = mod.Name
		}
	}
	_, loaded := g.nodes.LoadOrStore(id, node)
	return !loaded
}

// AddEdge inserts the caller→callee edge. Returns true on first insertion.
func (g *Graph) AddEdge(caller, callee *model.Method) bool {
	e := Edge{Caller: g.program.Key(caller), Callee: g.program.Key(callee)}
	_, loaded := g.edges.LoadOrStore(e.Caller+" -> "+e.Callee, e)
	return !loaded
}

// HasEdge reports whether the caller→callee edge exists.
func (g *Graph) HasEdge(callerID, calleeID string) bool {
	_, ok := g.edges.Load(callerID + " -> " + calleeID)
	return ok
}

// Nodes returns all nodes sorted by identity.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, g.nodes.Size())
	g.nodes.Range(func(_ string, n Node) bool {
		out = append(out, n)
		return true
	})
	slices.SortFunc(out, func(a, b Node) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Edges returns all edges sorted by caller, then callee.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, g.edges.Size())
	g.edges.Range(func(_ string, e Edge) bool {
		out = append(out, e)
		return true
	})
	slices.SortFunc(out, func(a, b Edge) int {
		if c := cmp.Compare(a.Caller, b.Caller); c != 0 {
			return c
		}
		return cmp.Compare(a.Callee, b.Callee)
	})
	return out
}

// NodeCount returns the number of distinct nodes.
func (g *Graph) NodeCount() int { return g.nodes.Size() }

// EdgeCount returns the number of distinct edges.
func (g *Graph) EdgeCount() int { return g.edges.Size() }
