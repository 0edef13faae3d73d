package structural

import (
	"fmt"
	"strings"
)

// ControlTree is the outcome of one analysis: a tree of regions whose root
// covers every modelled block, plus the edges removed along the way.
type ControlTree struct {
	Function    string
	File        string
	Fingerprint string

	// Nodes is indexed by NodeID. Entries not reachable from the root are nil.
	Nodes []*Node
	Roots []NodeID

	UnstructuredBranches []UnstructuredBranch
	ImproperRegions      []ImproperRegion
	PrunedBlocks         []string
	Stats                Stats

	leaves map[string]NodeID
}

// finish turns the reduced working graph into a ControlTree.
func (a *analysis) finish() *ControlTree {
	g := a.g
	t := &ControlTree{
		Function:             g.function,
		Nodes:                make([]*Node, len(g.nodes)),
		Roots:                g.liveNodes(),
		UnstructuredBranches: a.branches,
		ImproperRegions:      a.improper,
		PrunedBlocks:         g.pruned,
		Stats:                a.stats,
		leaves:               make(map[string]NodeID, len(g.leafOf)),
	}

	var keep func(id NodeID)
	keep = func(id NodeID) {
		n := g.node(id)
		t.Nodes[id] = n
		if n.IsLeaf() {
			t.leaves[n.Block] = id
		}
		for _, c := range n.Children {
			keep(c)
		}
	}
	for _, r := range t.Roots {
		keep(r)
	}

	for _, n := range t.Nodes {
		if n == nil || !n.IsCombined || !n.RegionType.IsLoop() {
			continue
		}
		for _, e := range n.OutgoingBranches {
			n.OutgoingBlockEdges = append(n.OutgoingBlockEdges, g.blockEdgesBetween(e.From, e.To)...)
		}
		for _, e := range n.IncomingBranches {
			n.IncomingBlockEdges = append(n.IncomingBlockEdges, g.blockEdgesBetween(e.From, e.To)...)
		}
	}
	for _, r := range t.Roots {
		t.fillExitBlocks(r)
	}
	return t
}

// blockEdgesBetween returns the surviving original edges from a block of u
// to a block of v.
func (g *workingGraph) blockEdgesBetween(u, v NodeID) []BlockEdge {
	from := make(map[string]bool)
	for _, b := range g.node(u).ContainedBlocks {
		from[b] = true
	}
	to := make(map[string]bool)
	for _, b := range g.node(v).ContainedBlocks {
		to[b] = true
	}
	var out []BlockEdge
	for _, be := range g.blockEdges {
		if from[be.From] && to[be.To] && !g.removed[be] {
			out = append(out, be)
		}
	}
	return out
}

// fillExitBlocks sets ExitBlock bottom-up. A Block region exits through its
// last child; a natural loop exits through its only exiting block; branching
// regions have no single exit block.
func (t *ControlTree) fillExitBlocks(id NodeID) string {
	n := t.Nodes[id]
	if n.IsLeaf() {
		return n.ExitBlock
	}
	exits := make([]string, len(n.Children))
	for i, c := range n.Children {
		exits[i] = t.fillExitBlocks(c)
	}

	n.ExitBlock = ""
	switch n.RegionType {
	case RegionBlock:
		n.ExitBlock = exits[len(exits)-1]
	case RegionSelfLoop:
		n.ExitBlock = exits[0]
	case RegionNaturalLoop:
		src := ""
		for _, be := range n.OutgoingBlockEdges {
			if src != "" && src != be.From {
				src = ""
				break
			}
			src = be.From
		}
		n.ExitBlock = src
	}
	return n.ExitBlock
}

// Root returns the root of the tree.
func (t *ControlTree) Root() *Node {
	if len(t.Roots) == 0 {
		return nil
	}
	return t.Nodes[t.Roots[0]]
}

// Node returns the node with the given id, or nil.
func (t *ControlTree) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(t.Nodes) {
		return nil
	}
	return t.Nodes[id]
}

// LeafOf returns the leaf wrapping block.
func (t *ControlTree) LeafOf(block string) (*Node, bool) {
	id, ok := t.leaves[block]
	if !ok {
		return nil, false
	}
	return t.Nodes[id], true
}

// Ancestors returns the enclosing regions of id, innermost first.
func (t *ControlTree) Ancestors(id NodeID) []NodeID {
	var out []NodeID
	for n := t.Node(id); n != nil && n.Parent != NoNode; n = t.Node(n.Parent) {
		out = append(out, n.Parent)
	}
	return out
}

// Walk visits the tree in preorder. Returning false from fn skips the
// node's children.
func (t *ControlTree) Walk(fn func(n *Node, depth int) bool) {
	var visit func(id NodeID, depth int)
	visit = func(id NodeID, depth int) {
		n := t.Nodes[id]
		if !fn(n, depth) {
			return
		}
		for _, c := range n.Children {
			visit(c, depth+1)
		}
	}
	for _, r := range t.Roots {
		visit(r, 0)
	}
}

// Regions returns the compound nodes of the given kind in preorder.
func (t *ControlTree) Regions(kind RegionType) []*Node {
	var out []*Node
	t.Walk(func(n *Node, _ int) bool {
		if n.IsCombined && n.RegionType == kind {
			out = append(out, n)
		}
		return true
	})
	return out
}

// IsStructured reports whether the CFG reduced without removing edges.
func (t *ControlTree) IsStructured() bool {
	return len(t.UnstructuredBranches) == 0 && len(t.ImproperRegions) == 0
}

func (t *ControlTree) String() string {
	var sb strings.Builder
	t.Walk(func(n *Node, depth int) bool {
		sb.WriteString(strings.Repeat("  ", depth))
		if n.IsLeaf() {
			sb.WriteString(n.Block)
		} else {
			fmt.Fprintf(&sb, "%s [%s]", n.Label(), strings.Join(n.ContainedBlocks, " "))
		}
		sb.WriteByte('\n')
		return true
	})
	return sb.String()
}
