// Package export renders a finished call graph for downstream consumers:
// structured JSON for tooling and Graphviz DOT for visualization. The core
// analysis owns neither format; this layer only reads the graph.
package export

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/715d/callgraph/pkg/analyzer"
	"github.com/715d/callgraph/pkg/callgraph"
)

// JSONReport is the structured export shape.
type JSONReport struct {
	Nodes       []callgraph.Node      `json:"nodes"`
	Edges       []callgraph.Edge      `json:"edges"`
	Stats       analyzer.Stats        `json:"stats"`
	Diagnostics []analyzer.Diagnostic `json:"diagnostics,omitempty"`
	Version     string                `json:"version"`
	Timestamp   string                `json:"timestamp"`
}

// JSON renders the result as indented JSON.
func JSON(res *analyzer.Result, version string) (string, error) {
	data, err := json.MarshalIndent(JSONReport{
		Nodes:       res.Graph.Nodes(),
		Edges:       res.Graph.Edges(),
		Stats:       res.Stats,
		Diagnostics: res.Diagnostics,
		Version:     version,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling json report: %w", err)
	}
	return string(data), nil
}

// dotNode adapts a call graph node to gonum's graph and DOT interfaces.
// The int64 ID is an xxhash of the method identity so exports are stable
// across runs.
type dotNode struct {
	id    int64
	dotID string
}

func (n dotNode) ID() int64     { return n.id }
func (n dotNode) DOTID() string { return fmt.Sprintf("%q", n.dotID) }

// DOT renders the graph in Graphviz DOT form. maxEdges limits the exported
// edge count (0 = unlimited); edges are sorted before truncation so the cut
// is deterministic.
func DOT(g *callgraph.Graph, name string, maxEdges int) (string, error) {
	edges := g.Edges()
	if maxEdges > 0 && len(edges) > maxEdges {
		edges = edges[:maxEdges]
	}

	dg := simple.NewDirectedGraph()
	ids := make(map[string]dotNode)

	intern := func(key string) dotNode {
		if n, ok := ids[key]; ok {
			return n
		}
		id := int64(xxhash.Sum64String(key))
		// xxhash collisions across distinct identities are vanishingly
		// rare but would corrupt the graph; probe to a free slot.
		for {
			if existing := dg.Node(id); existing == nil {
				break
			}
			id++
		}
		n := dotNode{id: id, dotID: key}
		dg.AddNode(n)
		ids[key] = n
		return n
	}

	for _, node := range g.Nodes() {
		intern(node.ID)
	}
	for _, e := range edges {
		from := intern(e.Caller)
		to := intern(e.Callee)
		if from.id == to.id {
			// gonum's simple graph rejects self loops; a self-recursive
			// method keeps its node but drops the self edge from the
			// visualization.
			continue
		}
		dg.SetEdge(dg.NewEdge(from, to))
	}

	data, err := dot.Marshal(dg, name, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling dot graph: %w", err)
	}
	return string(data), nil
}
