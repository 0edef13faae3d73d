package structural

import (
	"fmt"

	"github.com/l3aro/go-control-tree/internal/log"
	"github.com/l3aro/go-control-tree/pkg/cfg"
)

// Options controls one analysis.
type Options struct {
	// MaxIterations bounds the number of compactions and edge removals.
	// Zero derives a bound from the graph size.
	MaxIterations int
	// PruneUnreachable drops blocks the entry cannot reach instead of
	// rejecting the graph.
	PruneUnreachable bool
	// CheckInvariants verifies block coverage after every step.
	CheckInvariants bool
	Logger          log.Logger
}

// Stats summarizes the work done by one analysis.
type Stats struct {
	Blocks      int `json:"blocks" yaml:"blocks" msgpack:"blocks"`
	Edges       int `json:"edges" yaml:"edges" msgpack:"edges"`
	Iterations  int `json:"iterations" yaml:"iterations" msgpack:"iterations"`
	Compactions int `json:"compactions" yaml:"compactions" msgpack:"compactions"`
	Removed     int `json:"removed_branches" yaml:"removed_branches" msgpack:"removed_branches"`
}

// Analyzer runs structural analysis with fixed options. It holds no state
// between runs and is safe for concurrent use.
type Analyzer struct {
	opts Options
}

// New returns an Analyzer using opts.
func New(opts Options) *Analyzer {
	return &Analyzer{opts: opts}
}

// Run analyzes one CFG.
func (a *Analyzer) Run(info *cfg.CFGInfo) (*ControlTree, error) {
	return Analyze(info, a.opts)
}

type analysis struct {
	g    *workingGraph
	d    *dfsInfo
	opts Options
	log  log.Logger

	branches     []UnstructuredBranch
	improper     []ImproperRegion
	improperSeen map[string]bool
	stats        Stats
}

// Analyze builds the control tree of info. Irreducible control flow is not
// an error: it shows up as ImproperRegions and UnstructuredBranches.
func Analyze(info *cfg.CFGInfo, opts Options) (*ControlTree, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Nop()
	}

	g, err := newWorkingGraph(info, opts.PruneUnreachable)
	if err != nil {
		return nil, err
	}
	if len(g.pruned) > 0 {
		logger.Warn("pruned unreachable blocks", "function", info.FunctionName, "blocks", g.pruned)
	}

	a := &analysis{
		g:            g,
		opts:         opts,
		log:          logger,
		improperSeen: make(map[string]bool),
		stats: Stats{
			Blocks: len(g.blocks),
			Edges:  len(g.blockEdges),
		},
	}
	if err := a.run(); err != nil {
		logger.Debug("analysis failed", "function", info.FunctionName, "graph", log.Dump(a.g.liveNodes()))
		return nil, err
	}

	tree := a.finish()
	tree.File = info.File
	tree.Fingerprint = cfg.Fingerprint(info)
	return tree, nil
}

func (a *analysis) maxIterations() int {
	if a.opts.MaxIterations > 0 {
		return a.opts.MaxIterations
	}
	return 4*(a.stats.Blocks+a.stats.Edges) + 16
}

// run is the outer fixed-point loop: classify, try every node in postorder,
// compact the first match, or break the impasse by removing one edge.
func (a *analysis) run() error {
	limit := a.maxIterations()
	for a.pending() {
		if a.stats.Iterations >= limit {
			return fmt.Errorf("%w: %q after %d iterations", ErrIterationLimit, a.g.function, a.stats.Iterations)
		}
		a.stats.Iterations++
		a.d = a.g.classify()

		matched, improper, err := a.reduceOnce()
		if err != nil {
			return err
		}
		if !matched {
			if err := a.breakImpasse(improper); err != nil {
				return err
			}
		}

		if a.opts.CheckInvariants {
			if err := a.checkInvariants(fmt.Sprintf("iteration %d", a.stats.Iterations)); err != nil {
				return err
			}
		}
	}
	a.stats.Removed = len(a.branches)
	return nil
}

// pending reports whether reduction must continue: more than one live
// node, or a lone node that still loops on itself.
func (a *analysis) pending() bool {
	return len(a.g.live) > 1 || len(a.g.succs(a.g.entry)) > 0
}

// reduceOnce compacts the first region found in postorder. An improper
// loop stops the scan so the impasse handler can break it.
func (a *analysis) reduceOnce() (matched bool, improper map[NodeID]bool, err error) {
	for _, n := range a.d.postorder {
		if r := a.acyclicRegion(n); r != nil {
			_, err := a.compact(r)
			return err == nil, nil, err
		}
		if !a.isHeader(n) {
			continue
		}
		r, isImproper := a.cyclicRegion(n)
		if r != nil {
			_, err := a.compact(r)
			return err == nil, nil, err
		}
		if isImproper {
			return false, map[NodeID]bool{n: true}, nil
		}
	}
	return false, nil, nil
}
