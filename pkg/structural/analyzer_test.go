package structural

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-control-tree/internal/log"
	"github.com/l3aro/go-control-tree/pkg/cfg"
)

func analyze(t *testing.T, edges ...string) *ControlTree {
	t.Helper()
	tree, err := Analyze(cfg.MustEdgeList("f", edges...), Options{CheckInvariants: true})
	require.NoError(t, err)
	require.Len(t, tree.Roots, 1)
	return tree
}

func TestAnalyzeNaturalLoop(t *testing.T) {
	tree := analyze(t, "A -> B", "B -> C", "C -> D", "D -> B", "D -> E")

	want := "Block#7 [A B C D E]\n" +
		"  A\n" +
		"  NaturalLoop#6 [B C D]\n" +
		"    B\n" +
		"    Block#5 [C D]\n" +
		"      C\n" +
		"      D\n" +
		"  E\n"
	assert.Equal(t, want, tree.String())
	assert.True(t, tree.IsStructured())

	loops := tree.Regions(RegionNaturalLoop)
	require.Len(t, loops, 1)
	loop := loops[0]
	assert.Equal(t, "B", loop.EntryBlock)
	assert.Equal(t, "D", loop.ExitBlock)
	assert.Equal(t, []BlockEdge{{From: "D", To: "E"}}, loop.OutgoingBlockEdges)
	assert.Equal(t, []BlockEdge{{From: "A", To: "B"}}, loop.IncomingBlockEdges)

	exit := tree.Node(loop.LoopExitNode)
	require.NotNil(t, exit)
	assert.Equal(t, "E", exit.Block)

	leaf, ok := tree.LeafOf("B")
	require.True(t, ok)
	assert.True(t, leaf.IsLoopHeader)
	assert.Equal(t, []NodeID{6, 7}, tree.Ancestors(leaf.ID))

	assert.Equal(t, "E", tree.Root().ExitBlock)
	assert.Equal(t, Stats{Blocks: 5, Edges: 5, Iterations: 3, Compactions: 3}, tree.Stats)
}

func TestAnalyzeWhileLoop(t *testing.T) {
	tree := analyze(t, "A -> B", "B -> C", "C -> B", "B -> D")

	loops := tree.Regions(RegionNaturalLoop)
	require.Len(t, loops, 1)
	assert.Equal(t, []string{"B", "C"}, loops[0].ContainedBlocks)
	assert.Equal(t, "B", loops[0].ExitBlock)
	assert.Equal(t, RegionBlock, tree.Root().RegionType)
}

func TestAnalyzeDiamond(t *testing.T) {
	tree := analyze(t, "A -> B", "A -> C", "B -> D", "C -> D")

	root := tree.Root()
	assert.Equal(t, RegionBlock, root.RegionType)
	require.Len(t, root.Children, 2)

	ite := tree.Node(root.Children[0])
	assert.Equal(t, RegionIfThenElse, ite.RegionType)
	assert.Equal(t, []string{"A", "B", "C"}, ite.ContainedBlocks)
	assert.Empty(t, ite.ExitBlock)
	assert.Equal(t, "D", root.ExitBlock)
	assert.Equal(t, 2, tree.Stats.Iterations)
}

func TestAnalyzeCase(t *testing.T) {
	t.Run("without default", func(t *testing.T) {
		tree := analyze(t, "A -> B", "A -> C", "A -> D", "B -> E", "C -> E", "D -> E")
		cases := tree.Regions(RegionCase)
		require.Len(t, cases, 1)
		assert.Equal(t, []string{"A", "B", "C", "D"}, cases[0].ContainedBlocks)
	})

	t.Run("with default", func(t *testing.T) {
		tree := analyze(t, "A -> B", "A -> C", "A -> E", "B -> E", "C -> E")
		cases := tree.Regions(RegionCase)
		require.Len(t, cases, 1)
		assert.Equal(t, []string{"A", "B", "C"}, cases[0].ContainedBlocks)
		assert.True(t, tree.IsStructured())
	})
}

func TestAnalyzeSelfLoop(t *testing.T) {
	tree := analyze(t, "A -> A")

	root := tree.Root()
	assert.Equal(t, RegionSelfLoop, root.RegionType)
	assert.Equal(t, "A", root.ExitBlock)
	assert.Equal(t, []string{"A"}, root.ContainedBlocks)
}

func TestAnalyzeSingleBlock(t *testing.T) {
	tree := analyze(t, "A")

	assert.True(t, tree.Root().IsLeaf())
	assert.Equal(t, 0, tree.Stats.Iterations)
}

func TestAnalyzeGoto(t *testing.T) {
	tree := analyze(t,
		"S -> A", "S -> G",
		"A -> B", "A -> C",
		"B -> D",
		"C -> E", "E -> D",
		"G -> E",
	)

	want := "IfThenElse#10 [A B C D E G S]\n" +
		"  S\n" +
		"  Block#9 [A B C D E]\n" +
		"    IfThenElse#8 [A B C E]\n" +
		"      A\n" +
		"      B\n" +
		"      Block#7 [C E]\n" +
		"        C\n" +
		"        E\n" +
		"    D\n" +
		"  G\n"
	assert.Equal(t, want, tree.String())
	assert.False(t, tree.IsStructured())

	require.Len(t, tree.UnstructuredBranches, 1)
	br := tree.UnstructuredBranches[0]
	assert.Equal(t, EdgeCross, br.Class)
	assert.Equal(t, []string{"G"}, br.SourceBlocks)
	assert.Equal(t, "E", br.DestinationBlock)
	assert.True(t, br.IsGoto)
	assert.True(t, br.NeedsForwardCopy)
	assert.Equal(t, 1, tree.Stats.Removed)
}

func TestAnalyzeIrreducible(t *testing.T) {
	tree := analyze(t, "E -> A", "E -> B", "A -> B", "B -> A")

	require.Len(t, tree.ImproperRegions, 1)
	ir := tree.ImproperRegions[0]
	assert.Equal(t, "A", ir.HeaderBlock)
	assert.Equal(t, []string{"A", "B"}, ir.Blocks)
	assert.Len(t, ir.Entries, 2)

	require.Len(t, tree.UnstructuredBranches, 1)
	br := tree.UnstructuredBranches[0]
	assert.Equal(t, EdgeBack, br.Class)
	assert.Equal(t, []string{"B"}, br.SourceBlocks)
	assert.Equal(t, "A", br.DestinationBlock)
	assert.True(t, br.IsGoto)

	root := tree.Root()
	assert.Equal(t, RegionBlock, root.RegionType)
	assert.Len(t, tree.Regions(RegionIfThen), 1)
	assert.Empty(t, tree.Regions(RegionImproper))
}

func TestAnalyzeCoversEveryBlock(t *testing.T) {
	graphs := map[string][]string{
		"nested loops": {"A -> B", "B -> C", "C -> C", "C -> D", "D -> B", "D -> E"},
		"loop in branch": {"A -> B", "A -> D", "B -> C", "C -> B", "C -> D"},
		"three way irreducible": {
			"E -> A", "E -> B", "E -> C", "A -> B", "B -> C", "C -> A",
		},
		"break out of nest": {"A -> B", "B -> C", "C -> B", "C -> D", "B -> E", "D -> E", "D -> A"},
		"early returns":     {"A -> B", "A -> R1", "B -> C", "B -> R2", "C -> R3"},
	}

	for name, edges := range graphs {
		t.Run(name, func(t *testing.T) {
			info := cfg.MustEdgeList(name, edges...)
			tree, err := Analyze(info, Options{CheckInvariants: true})
			require.NoError(t, err)
			require.Len(t, tree.Roots, 1)

			assert.Equal(t, info.BlockOrder(), orderedBlocks(tree))
			assert.ElementsMatch(t, info.BlockOrder(), tree.Root().ContainedBlocks)

			bound := 4*(tree.Stats.Blocks+tree.Stats.Edges) + 16
			assert.LessOrEqual(t, tree.Stats.Iterations, bound)

			tree.Walk(func(n *Node, _ int) bool {
				if n.IsLeaf() {
					return true
				}
				seen := make(map[string]bool)
				for _, c := range n.Children {
					child := tree.Node(c)
					require.NotNil(t, child)
					assert.Equal(t, n.ID, child.Parent)
					for _, b := range child.ContainedBlocks {
						assert.False(t, seen[b], "block %s in two children of %s", b, n.Label())
						seen[b] = true
					}
				}
				assert.Len(t, seen, len(n.ContainedBlocks))
				return true
			})
		})
	}
}

// orderedBlocks lists the leaves of tree in the block order of the input.
func orderedBlocks(tree *ControlTree) []string {
	var blocks []string
	for _, n := range tree.Nodes {
		if n != nil && n.IsLeaf() {
			blocks = append(blocks, n.Block)
		}
	}
	return blocks
}

func TestClassifyIsStable(t *testing.T) {
	g, err := newWorkingGraph(cfg.MustEdgeList("f", "A -> B", "B -> C", "C -> B", "A -> C", "C -> D"), false)
	require.NoError(t, err)

	first := g.classify()
	second := g.classify()
	assert.Equal(t, first, second)
	assert.Equal(t, map[NodeID]bool{1: true}, first.headers)
	assert.Equal(t, EdgeBack, first.class[Edge{From: 2, To: 1}])
	assert.Equal(t, EdgeForward, first.class[Edge{From: 0, To: 2}])
}

func TestAnalyzeMalformed(t *testing.T) {
	t.Run("missing entry", func(t *testing.T) {
		info := &cfg.CFGInfo{FunctionName: "f", Blocks: map[string]cfg.CFGBlock{"A": {ID: "A"}}}
		_, err := Analyze(info, Options{})

		var mg *MalformedGraphError
		require.ErrorAs(t, err, &mg)
		assert.Equal(t, cfg.ReasonMissingEntry, mg.Reason)
		assert.ErrorIs(t, err, ErrMalformedGraph)
		assert.ErrorIs(t, err, cfg.ErrInvalidCFG)
	})

	t.Run("dangling edge", func(t *testing.T) {
		info := cfg.MustEdgeList("f", "A -> B")
		info.Edges = append(info.Edges, cfg.CFGEdge{SourceID: "B", TargetID: "Z"})
		_, err := Analyze(info, Options{})

		var mg *MalformedGraphError
		require.ErrorAs(t, err, &mg)
		assert.Equal(t, cfg.ReasonDanglingEdge, mg.Reason)
	})

	t.Run("unreachable strict", func(t *testing.T) {
		_, err := Analyze(cfg.MustEdgeList("f", "A -> B", "C -> D"), Options{})

		var mg *MalformedGraphError
		require.ErrorAs(t, err, &mg)
		assert.Equal(t, cfg.ReasonUnreachable, mg.Reason)
		assert.Equal(t, "C", mg.Block)
	})

	t.Run("unreachable pruned", func(t *testing.T) {
		var buf bytes.Buffer
		logger := log.New(log.LoggerConfig{Level: log.WarnLevel, Output: &buf})
		tree, err := Analyze(cfg.MustEdgeList("f", "A -> B", "C -> D"), Options{PruneUnreachable: true, Logger: logger})
		require.NoError(t, err)

		assert.Equal(t, []string{"C", "D"}, tree.PrunedBlocks)
		assert.Equal(t, []string{"A", "B"}, tree.Root().ContainedBlocks)
		assert.Contains(t, buf.String(), "pruned unreachable blocks")
	})
}

func TestAnalyzeIterationLimit(t *testing.T) {
	_, err := Analyze(cfg.MustEdgeList("f", "A -> B", "A -> C", "B -> D", "C -> D"), Options{MaxIterations: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIterationLimit))
}

func TestInvariantError(t *testing.T) {
	err := error(newInvariantError("compact", "member %d is not live", 3))

	assert.ErrorIs(t, err, ErrInternalInvariant)
	assert.Contains(t, err.Error(), "compact: member 3 is not live")
	assert.Contains(t, fmt.Sprintf("%+v", err), "newInvariantError")

	var ie *InvariantError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "compact", ie.Phase)
}

func TestAnalyzerLogsCompactions(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.LoggerConfig{Level: log.DebugLevel, Output: &buf})

	tree, err := New(Options{Logger: logger}).Run(cfg.MustEdgeList("f", "A -> B", "B -> C"))
	require.NoError(t, err)

	assert.Equal(t, RegionBlock, tree.Root().RegionType)
	assert.Contains(t, buf.String(), "compacted region function=f region=Block#3 members=A,B,C")
}

func TestRegionTypeText(t *testing.T) {
	for _, rt := range []RegionType{RegionBlock, RegionIfThen, RegionCase, RegionNaturalLoop, RegionImproper} {
		text, err := rt.MarshalText()
		require.NoError(t, err)

		var back RegionType
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, rt, back)
	}

	_, err := ParseRegionType("Loop")
	assert.Error(t, err)
	assert.True(t, RegionSelfLoop.IsLoop())
	assert.True(t, RegionCase.IsAcyclic())
	assert.False(t, RegionImproper.IsAcyclic())
}
