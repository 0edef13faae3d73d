package structural

import (
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/flow"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/traverse"
)

// directed snapshots the live graph as a gonum graph. Self edges are
// dropped: they affect neither dominance nor reachability.
func (g *workingGraph) directed() *simple.DirectedGraph {
	dg := simple.NewDirectedGraph()
	for _, id := range g.liveNodes() {
		dg.AddNode(simple.Node(id))
	}
	for _, id := range g.liveNodes() {
		for _, s := range g.succs(id) {
			if s == id {
				continue
			}
			dg.SetEdge(dg.NewEdge(simple.Node(id), simple.Node(s)))
		}
	}
	return dg
}

// dominators computes the dominator tree of the live graph from its entry.
func (g *workingGraph) dominators() flow.DominatorTree {
	return flow.Dominators(simple.Node(g.entry), g.directed())
}

// dominates reports whether a dominates b, walking b's immediate dominators.
func dominates(dt flow.DominatorTree, a, b NodeID) bool {
	for n := b; ; {
		if n == a {
			return true
		}
		idom := dt.DominatorOf(int64(n))
		if idom == nil || NodeID(idom.ID()) == n {
			return false
		}
		n = NodeID(idom.ID())
	}
}

// reachableWithout returns the live nodes reachable from the entry when
// edge skip is ignored.
func (g *workingGraph) reachableWithout(skip Edge) map[NodeID]bool {
	df := traverse.DepthFirst{
		Traverse: func(e graph.Edge) bool {
			return NodeID(e.From().ID()) != skip.From || NodeID(e.To().ID()) != skip.To
		},
	}
	return g.walk(&df, g.entry)
}

// reachableWithin returns the members of set reachable from start along
// edges that stay inside set.
func (g *workingGraph) reachableWithin(start NodeID, set map[NodeID]bool) map[NodeID]bool {
	df := traverse.DepthFirst{
		Traverse: func(e graph.Edge) bool {
			return set[NodeID(e.To().ID())]
		},
	}
	return g.walk(&df, start)
}

func (g *workingGraph) walk(df *traverse.DepthFirst, start NodeID) map[NodeID]bool {
	dg := g.directed()
	df.Walk(dg, simple.Node(start), nil)

	visited := make(map[NodeID]bool, len(g.live))
	for id := range g.live {
		if df.Visited(simple.Node(id)) {
			visited[id] = true
		}
	}
	return visited
}
