package structural

// breakImpasse removes one non-tree edge when no region matched. Candidates
// are scanned in reverse postorder, then successor order, in tiers: back
// edges into improper headers, forward or cross edges into join nodes, other
// back edges, then any remaining non-tree edge. An edge is only taken if
// every live node stays reachable from the entry without it.
func (a *analysis) breakImpasse(improper map[NodeID]bool) error {
	tiers := []func(e Edge, class EdgeClass) bool{
		func(e Edge, class EdgeClass) bool { return class == EdgeBack && improper[e.To] },
		func(e Edge, class EdgeClass) bool {
			return (class == EdgeForward || class == EdgeCross) && len(a.g.preds(e.To)) > 1
		},
		func(e Edge, class EdgeClass) bool { return class == EdgeBack },
		func(e Edge, class EdgeClass) bool { return true },
	}

	order := a.d.reversePostorder()
	for _, accept := range tiers {
		for _, u := range order {
			for _, v := range a.g.succs(u) {
				e := Edge{From: u, To: v}
				class := a.d.class[e]
				if class == EdgeTree || !accept(e, class) {
					continue
				}
				reach := a.g.reachableWithout(e)
				if len(reach) != len(a.g.live) {
					continue
				}
				a.removeUnstructured(e, class, reach[v])
				return nil
			}
		}
	}
	return newInvariantError("impasse", "no region matched and no removable edge among %d live nodes", len(a.g.live))
}

// removeUnstructured records e as an unstructured branch and drops it.
func (a *analysis) removeUnstructured(e Edge, class EdgeClass, stillReachable bool) {
	g := a.g
	src, dst := g.node(e.From), g.node(e.To)

	br := UnstructuredBranch{
		Source:           e.From,
		Destination:      e.To,
		Class:            class,
		DestinationBlock: dst.EntryBlock,
		NeedsForwardCopy: stillReachable,
		IsGoto:           len(src.Succs) == 1,
	}
	inSource := make(map[string]bool, len(src.ContainedBlocks))
	for _, b := range src.ContainedBlocks {
		inSource[b] = true
	}
	for _, be := range g.blockEdges {
		if inSource[be.From] && be.To == dst.EntryBlock && !g.removed[be] {
			g.removed[be] = true
			br.SourceBlocks = append(br.SourceBlocks, be.From)
		}
	}

	g.removeEdge(e.From, e.To)
	a.branches = append(a.branches, br)
	a.log.Debug("removed unstructured branch",
		"function", g.function,
		"from", src.Label(),
		"to", dst.Label(),
		"class", class,
		"goto", br.IsGoto,
	)
}
