package structural

import (
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/traverse"

	"github.com/l3aro/go-control-tree/pkg/cfg"
)

// workingGraph is the node set reduced by one analysis. It owns an arena of
// every node ever created; live holds the nodes of the current level.
type workingGraph struct {
	function string
	nodes    []*Node
	live     map[NodeID]bool
	entry    NodeID
	leafOf   map[string]NodeID
	blocks   []string

	// blockEdges are the original edges between modelled blocks.
	blockEdges []BlockEdge
	removed    map[BlockEdge]bool
	pruned     []string
}

// newWorkingGraph creates one leaf per block reachable from the entry and
// copies the CFG adjacency in edge order. Unreachable blocks are an error
// unless prune is set, in which case they are left out and remembered.
func newWorkingGraph(info *cfg.CFGInfo, prune bool) (*workingGraph, error) {
	if err := cfg.Validate(info); err != nil {
		return nil, malformed(err)
	}

	order := info.BlockOrder()
	succs := info.Successors()
	reachable := reachableBlocks(info.EntryBlockID, order, succs)

	g := &workingGraph{
		function: info.FunctionName,
		live:     make(map[NodeID]bool, len(order)),
		leafOf:   make(map[string]NodeID, len(order)),
		removed:  make(map[BlockEdge]bool),
	}
	for _, id := range order {
		if !reachable[id] {
			if !prune {
				return nil, &MalformedGraphError{Function: info.FunctionName, Reason: cfg.ReasonUnreachable, Block: id}
			}
			g.pruned = append(g.pruned, id)
			continue
		}
		leaf := g.newNode()
		leaf.Block = id
		leaf.ContainedBlocks = []string{id}
		leaf.EntryBlock = id
		leaf.ExitBlock = id
		g.leafOf[id] = leaf.ID
		g.live[leaf.ID] = true
		g.blocks = append(g.blocks, id)
	}
	g.entry = g.leafOf[info.EntryBlockID]

	for _, src := range g.blocks {
		for _, dst := range succs[src] {
			if _, ok := g.leafOf[dst]; !ok {
				continue
			}
			g.blockEdges = append(g.blockEdges, BlockEdge{From: src, To: dst})
			g.addEdge(g.leafOf[src], g.leafOf[dst])
		}
	}
	return g, nil
}

// reachableBlocks walks the block graph from entry with gonum's traversal.
func reachableBlocks(entry string, order []string, succs map[string][]string) map[string]bool {
	index := make(map[string]int64, len(order))
	dg := simple.NewDirectedGraph()
	for i, id := range order {
		index[id] = int64(i)
		dg.AddNode(simple.Node(i))
	}
	for _, src := range order {
		for _, dst := range succs[src] {
			if src == dst {
				continue
			}
			dg.SetEdge(dg.NewEdge(simple.Node(index[src]), simple.Node(index[dst])))
		}
	}

	var df traverse.DepthFirst
	df.Walk(dg, simple.Node(index[entry]), nil)

	reachable := make(map[string]bool, len(order))
	for _, id := range order {
		if df.Visited(simple.Node(index[id])) {
			reachable[id] = true
		}
	}
	return reachable
}

func (g *workingGraph) newNode() *Node {
	n := &Node{
		ID:           NodeID(len(g.nodes)),
		Parent:       NoNode,
		EntryNode:    NoNode,
		LoopExitNode: NoNode,
	}
	g.nodes = append(g.nodes, n)
	return n
}

func (g *workingGraph) node(id NodeID) *Node { return g.nodes[id] }

func (g *workingGraph) succs(id NodeID) []NodeID { return g.nodes[id].Succs }

func (g *workingGraph) preds(id NodeID) []NodeID { return g.nodes[id].Preds }

func (g *workingGraph) addEdge(u, v NodeID) {
	if containsNode(g.nodes[u].Succs, v) {
		return
	}
	g.nodes[u].Succs = append(g.nodes[u].Succs, v)
	g.nodes[v].Preds = append(g.nodes[v].Preds, u)
}

func (g *workingGraph) removeEdge(u, v NodeID) {
	g.nodes[u].Succs = withoutNode(g.nodes[u].Succs, v)
	g.nodes[v].Preds = withoutNode(g.nodes[v].Preds, u)
}

// liveNodes returns the live node IDs in ascending order.
func (g *workingGraph) liveNodes() []NodeID {
	ids := make([]NodeID, 0, len(g.live))
	for id := range g.live {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// labels maps node IDs to their labels, for logging.
func (g *workingGraph) labels(ids []NodeID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = g.nodes[id].Label()
	}
	return out
}

func containsNode(ids []NodeID, id NodeID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func withoutNode(ids []NodeID, id NodeID) []NodeID {
	out := make([]NodeID, 0, len(ids))
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}

// replaceMembers substitutes c for every member of in, keeping the position
// of the first member and dropping the rest.
func replaceMembers(ids []NodeID, in map[NodeID]bool, c NodeID) []NodeID {
	out := make([]NodeID, 0, len(ids))
	placed := false
	for _, id := range ids {
		if !in[id] {
			out = append(out, id)
			continue
		}
		if !placed {
			out = append(out, c)
			placed = true
		}
	}
	return out
}

func unionBlocks(sets ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, set := range sets {
		for _, b := range set {
			if !seen[b] {
				seen[b] = true
				out = append(out, b)
			}
		}
	}
	sort.Strings(out)
	return out
}
