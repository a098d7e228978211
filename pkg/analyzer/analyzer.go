// Package analyzer drives the whole-program reachability fixpoint: it seeds
// a worklist from the configured entry points, scans each pending method's
// instructions, resolves virtual calls through the configured dispatch
// strategy, and accumulates the call graph until no work remains.
package analyzer

import (
	"fmt"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/sync/errgroup"

	"github.com/715d/callgraph/internal/hierarchy"
	"github.com/715d/callgraph/internal/liveness"
	"github.com/715d/callgraph/pkg/callgraph"
	"github.com/715d/callgraph/pkg/dispatch"
	"github.com/715d/callgraph/pkg/model"
)

// Options configures one analysis run.
type Options struct {
	// Strategy selects the virtual dispatch resolution strategy.
	Strategy dispatch.Strategy

	// EntryPoints selects the worklist seeding strategy.
	EntryPoints EntryStrategy

	// Namespaces filters entry-point types; empty matches everything.
	Namespaces []string

	// Workers sets the scanning parallelism. Values below 2 select the
	// default sequential drain.
	Workers int
}

// Stats summarizes one run. Returned in the Result instead of being pushed
// through process-wide state.
type Stats struct {
	MethodsScanned    int           `json:"methods_scanned"`
	Nodes             int           `json:"nodes"`
	Edges             int           `json:"edges"`
	InstantiatedTypes int           `json:"instantiated_types"`
	RefinementPasses  int           `json:"refinement_passes"`
	Duration          time.Duration `json:"duration"`
}

// Result is the terminal artifact of a run.
type Result struct {
	Graph       *callgraph.Graph
	Stats       Stats
	Diagnostics []Diagnostic
}

// virtualSite is one virtual call site recorded for instantiation-filtered
// refinement: re-resolved whenever the instantiated-type set has grown.
type virtualSite struct {
	caller *model.Method
	target *model.Method
}

// Analyzer holds the working state of one run.
type Analyzer struct {
	program  *model.Program
	index    *hierarchy.Index
	live     *liveness.Set
	resolver dispatch.Resolver
	graph    *callgraph.Graph

	entry      EntryStrategy
	namespaces []string
	workers    int

	// visited is authoritative for "already scanned"; the worklist itself
	// tolerates duplicates. Check-and-mark is a single atomic LoadOrStore
	// so parallel workers never double-scan.
	visited *xsync.Map[string, struct{}]

	mu      sync.Mutex
	pending []*model.Method
	sites   []virtualSite

	diags   *diagnostics
	scanned int
	passes  int
}

// New validates the options and builds an analyzer over the program.
func New(p *model.Program, opts Options) (*Analyzer, error) {
	if p == nil {
		return nil, fmt.Errorf("no program provided")
	}
	if opts.Strategy == "" {
		opts.Strategy = dispatch.StrategyHierarchy
	}
	if opts.EntryPoints == "" {
		opts.EntryPoints = EntryProgram
	}
	if _, err := ParseEntryStrategy(string(opts.EntryPoints)); err != nil {
		return nil, err
	}

	index := hierarchy.NewIndex(p)
	live := liveness.NewSet(index)
	resolver, err := dispatch.New(opts.Strategy, p, index, live)
	if err != nil {
		return nil, err
	}

	return &Analyzer{
		program:    p,
		index:      index,
		live:       live,
		resolver:   resolver,
		graph:      callgraph.New(p),
		entry:      opts.EntryPoints,
		namespaces: opts.Namespaces,
		workers:    opts.Workers,
		visited:    xsync.NewMap[string, struct{}](),
		diags:      &diagnostics{},
	}, nil
}

// Run seeds the worklist, drains it to a fixpoint, and returns the
// accumulated call graph. Deterministic given a deterministic program and
// seed order: candidate sets are resolved in key order and the graph
// deduplicates insertions regardless of scan order.
func (a *Analyzer) Run() (*Result, error) {
	start := time.Now()

	seeds := a.selectEntryPoints()
	for _, m := range seeds {
		a.enqueue(m)
	}

	a.drain()

	if a.resolver.Strategy() == dispatch.StrategyInstantiation {
		a.refine()
	}

	res := &Result{
		Graph:       a.graph,
		Diagnostics: a.diags.all(),
	}
	res.Stats = Stats{
		MethodsScanned:    a.scanned,
		Nodes:             a.graph.NodeCount(),
		Edges:             a.graph.EdgeCount(),
		InstantiatedTypes: a.live.Size(),
		RefinementPasses:  a.passes,
		Duration:          time.Since(start),
	}
	return res, nil
}

// enqueue appends a method to the worklist. Duplicates are allowed; the
// visited set gates the expensive work.
func (a *Analyzer) enqueue(m *model.Method) {
	a.mu.Lock()
	a.pending = append(a.pending, m)
	a.mu.Unlock()
}

func (a *Analyzer) recordVirtualSite(caller, target *model.Method) {
	if a.resolver.Strategy() != dispatch.StrategyInstantiation {
		return
	}
	a.mu.Lock()
	a.sites = append(a.sites, virtualSite{caller: caller, target: target})
	a.mu.Unlock()
}

// drain empties the worklist wave by wave. Double-buffering the pending
// slice keeps allocations out of the hot loop; with workers configured,
// each wave fans out over an errgroup while enqueues funnel back through
// the shared mutex.
func (a *Analyzer) drain() int {
	total := 0
	for {
		a.mu.Lock()
		wave := a.pending
		a.pending = make([]*model.Method, 0, len(wave))
		a.mu.Unlock()
		if len(wave) == 0 {
			return total
		}

		before := a.visited.Size()
		if a.workers > 1 {
			var g errgroup.Group
			g.SetLimit(a.workers)
			for _, m := range wave {
				g.Go(func() error {
					a.scan(m)
					return nil
				})
			}
			_ = g.Wait()
		} else {
			for _, m := range wave {
				a.scan(m)
			}
		}
		delta := a.visited.Size() - before
		total += delta
		a.scanned += delta
	}
}

// refine iterates the instantiation-filtered fixpoint: re-resolve every
// recorded virtual call site against the grown instantiated-type set, scan
// whatever became reachable, and repeat until a pass adds no new edge, no
// new scan, and no new instantiation. Both the method set and the type set
// are finite, so the loop terminates.
func (a *Analyzer) refine() {
	for {
		a.passes++

		liveGen := a.live.Generation()
		grew := false
		for _, site := range a.snapshotSites() {
			for _, cand := range a.resolver.Resolve(site.target) {
				if a.graph.AddEdge(site.caller, cand) {
					grew = true
				}
				a.enqueue(cand)
			}
		}

		if a.drain() > 0 {
			grew = true
		}
		if a.live.Generation() != liveGen {
			grew = true
		}
		if !grew {
			return
		}
	}
}

func (a *Analyzer) snapshotSites() []virtualSite {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]virtualSite, len(a.sites))
	copy(out, a.sites)
	return out
}
