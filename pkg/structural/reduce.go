package structural

import "strings"

// compact replaces the members of r with one compound node. External edges
// are redirected to the new node and internal edges are dropped. For loops
// the boundary edges are kept on the node.
func (a *analysis) compact(r *region) (NodeID, error) {
	g := a.g
	in := make(map[NodeID]bool, len(r.members))
	for _, m := range r.members {
		if !g.live[m] {
			return NoNode, newInvariantError("compact", "%s member %s is not live", r.kind, g.node(m).Label())
		}
		in[m] = true
	}
	for _, m := range r.members {
		if m == r.entry {
			continue
		}
		for _, p := range g.preds(m) {
			if !in[p] {
				return NoNode, newInvariantError("compact", "%s member %s entered from %s",
					r.kind, g.node(m).Label(), g.node(p).Label())
			}
		}
	}

	c := g.newNode()
	c.IsCombined = true
	c.RegionType = r.kind
	c.EntryNode = r.entry
	c.EntryBlock = g.node(r.entry).EntryBlock
	c.Children = append([]NodeID(nil), r.members...)

	var blockSets [][]string
	for _, m := range r.members {
		member := g.node(m)
		if member.Parent != NoNode {
			return NoNode, newInvariantError("compact", "%s already has parent %d", member.Label(), member.Parent)
		}
		member.Parent = c.ID
		blockSets = append(blockSets, member.ContainedBlocks)
	}
	c.ContainedBlocks = unionBlocks(blockSets...)

	var outs, ins []NodeID
	for _, m := range r.members {
		for _, s := range g.succs(m) {
			if in[s] {
				continue
			}
			if !containsNode(outs, s) {
				outs = append(outs, s)
			}
			if r.kind.IsLoop() {
				c.OutgoingBranches = append(c.OutgoingBranches, Edge{From: m, To: s})
			}
		}
		for _, p := range g.preds(m) {
			if in[p] {
				continue
			}
			if !containsNode(ins, p) {
				ins = append(ins, p)
			}
			if r.kind.IsLoop() {
				c.IncomingBranches = append(c.IncomingBranches, Edge{From: p, To: m})
			}
		}
	}
	if r.kind.IsLoop() && len(outs) == 1 {
		c.LoopExitNode = outs[0]
	}

	for _, s := range outs {
		g.node(s).Preds = replaceMembers(g.preds(s), in, c.ID)
	}
	for _, p := range ins {
		g.node(p).Succs = replaceMembers(g.succs(p), in, c.ID)
	}
	c.Succs = outs
	c.Preds = ins

	for _, m := range r.members {
		delete(g.live, m)
	}
	g.live[c.ID] = true
	if in[g.entry] {
		g.entry = c.ID
	}

	a.stats.Compactions++
	a.log.Debug("compacted region",
		"function", g.function,
		"region", c.Label(),
		"members", strings.Join(g.labels(r.members), ","),
	)
	return c.ID, nil
}

// checkInvariants verifies that the live nodes partition the modelled
// blocks, that adjacency is symmetric, and that every live node is
// reachable from the entry.
func (a *analysis) checkInvariants(phase string) error {
	g := a.g
	owner := make(map[string]NodeID, len(g.blocks))
	for _, id := range g.liveNodes() {
		for _, b := range g.node(id).ContainedBlocks {
			if prev, dup := owner[b]; dup {
				return newInvariantError(phase, "block %s in both %s and %s", b, g.node(prev).Label(), g.node(id).Label())
			}
			owner[b] = id
		}
		for _, s := range g.succs(id) {
			if !g.live[s] || !containsNode(g.preds(s), id) {
				return newInvariantError(phase, "edge %s -> %s is not symmetric", g.node(id).Label(), g.node(s).Label())
			}
		}
	}
	if len(owner) != len(g.blocks) {
		return newInvariantError(phase, "live nodes cover %d of %d blocks", len(owner), len(g.blocks))
	}

	reach := g.reachableWithout(Edge{From: NoNode, To: NoNode})
	for id := range g.live {
		if !reach[id] {
			return newInvariantError(phase, "%s is unreachable from the entry", g.node(id).Label())
		}
	}
	return nil
}
