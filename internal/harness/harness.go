// Package harness provides test harness infrastructure for validating the
// analyzer against whole-program snapshot fixtures.
package harness

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/715d/callgraph/pkg/analyzer"
	"github.com/715d/callgraph/pkg/dispatch"
	"github.com/715d/callgraph/pkg/model"
)

// AnalysisConfiguration represents a single analyzer configuration to run
// against a snapshot fixture.
type AnalysisConfiguration struct {
	// Name is a descriptive name for this configuration.
	Name string `yaml:"name"`

	// Algorithm selects the dispatch strategy ("cha" or "rta").
	Algorithm string `yaml:"algorithm"`

	// EntryPoints selects the seeding strategy; empty means program-entry.
	EntryPoints string `yaml:"entrypoints,omitempty"`

	// Namespaces filters entry-point types.
	Namespaces []string `yaml:"namespaces,omitempty"`

	// Workers sets scanning parallelism.
	Workers int `yaml:"workers,omitempty"`

	// ExpectedEdges lists edges ("caller -> callee", in canonical method
	// key form) that must be present in the resulting graph.
	ExpectedEdges []string `yaml:"expected_edges"`

	// AbsentEdges lists edges that must NOT be present.
	AbsentEdges []string `yaml:"absent_edges,omitempty"`

	// ExpectedNodes lists node identities that must be present.
	ExpectedNodes []string `yaml:"expected_nodes,omitempty"`

	// Exhaustive, when true, additionally requires that ExpectedEdges is
	// the complete edge set.
	Exhaustive bool `yaml:"exhaustive,omitempty"`

	// ExpectedDiagnostics is the exact number of diagnostics expected.
	ExpectedDiagnostics int `yaml:"expected_diagnostics,omitempty"`
}

// TestCase represents a single snapshot test scenario.
type TestCase struct {
	// Dir is the directory containing the snapshot, relative to the
	// testdata root.
	Dir string `yaml:"-"`

	// Configurations defines the analyzer configurations to run.
	Configurations []AnalysisConfiguration `yaml:"configurations"`
}

// Harness manages test execution over a testdata root.
type Harness struct {
	root string
}

// NewHarness creates a harness rooted at the given testdata directory.
func NewHarness(root string) *Harness {
	return &Harness{root: root}
}

// Run executes a test case with all its analysis configurations.
func (h *Harness) Run(t *testing.T, tc *TestCase) {
	t.Helper()
	require.NotEmpty(t, tc.Configurations, "test case has no configurations")

	program := loadSnapshot(t, h.root, tc.Dir)

	for _, cfg := range tc.Configurations {
		t.Run(cfg.Name, func(t *testing.T) {
			h.runConfiguration(t, program, cfg)
		})
	}
}

func (h *Harness) runConfiguration(t *testing.T, program *model.Program, cfg AnalysisConfiguration) {
	t.Helper()

	strategy, err := dispatch.ParseStrategy(cfg.Algorithm)
	require.NoError(t, err, "configuration %q", cfg.Name)

	opts := analyzer.Options{
		Strategy:   strategy,
		Namespaces: cfg.Namespaces,
		Workers:    cfg.Workers,
	}
	if cfg.EntryPoints != "" {
		entry, err := analyzer.ParseEntryStrategy(cfg.EntryPoints)
		require.NoError(t, err, "configuration %q", cfg.Name)
		opts.EntryPoints = entry
	}

	a, err := analyzer.New(program, opts)
	require.NoError(t, err)
	res, err := a.Run()
	require.NoError(t, err)

	edges := make(map[string]bool, res.Stats.Edges)
	for _, e := range res.Graph.Edges() {
		edges[e.Caller+" -> "+e.Callee] = true
	}
	nodes := make(map[string]bool, res.Stats.Nodes)
	for _, n := range res.Graph.Nodes() {
		nodes[n.ID] = true
	}

	for _, want := range cfg.ExpectedEdges {
		require.True(t, edges[want], "missing edge %q\nhave: %v", want, sortedKeys(edges))
	}
	for _, absent := range cfg.AbsentEdges {
		require.False(t, edges[absent], "unexpected edge %q", absent)
	}
	for _, want := range cfg.ExpectedNodes {
		require.True(t, nodes[want], "missing node %q\nhave: %v", want, sortedKeys(nodes))
	}
	if cfg.Exhaustive {
		require.Len(t, edges, len(cfg.ExpectedEdges),
			"edge set differs from expectation\nhave: %v", sortedKeys(edges))
	}
	require.Len(t, res.Diagnostics, cfg.ExpectedDiagnostics,
		"diagnostics: %+v", res.Diagnostics)
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	// Deterministic failure messages.
	slices.Sort(out)
	return out
}
