package structural

// region is a matched node set waiting to be compacted.
type region struct {
	kind    RegionType
	entry   NodeID
	members []NodeID
}

func (a *analysis) isHeader(n NodeID) bool { return a.d.headers[n] }

// acyclicRegion tries the acyclic shapes at m in priority order.
func (a *analysis) acyclicRegion(m NodeID) *region {
	if r := a.blockRegion(m); r != nil {
		return r
	}
	switch n := len(a.g.succs(m)); {
	case n == 2:
		if r := a.ifThenRegion(m); r != nil {
			return r
		}
		return a.ifThenElseRegion(m)
	case n > 2:
		return a.caseRegion(m)
	}
	return nil
}

// link reports whether u flows straight into v: u has v as its only
// successor, v has u as its only predecessor, and neither heads a loop.
func (a *analysis) link(u, v NodeID) bool {
	su, pv := a.g.succs(u), a.g.preds(v)
	return u != v &&
		len(su) == 1 && su[0] == v &&
		len(pv) == 1 &&
		!a.isHeader(u) && !a.isHeader(v)
}

// blockRegion grows the straight-line chain through m in both directions.
func (a *analysis) blockRegion(m NodeID) *region {
	if a.isHeader(m) {
		return nil
	}
	chain := []NodeID{m}
	in := map[NodeID]bool{m: true}

	for cur := m; len(a.g.succs(cur)) == 1; {
		next := a.g.succs(cur)[0]
		if in[next] || !a.link(cur, next) {
			break
		}
		chain = append(chain, next)
		in[next] = true
		cur = next
	}
	for cur := m; len(a.g.preds(cur)) == 1; {
		prev := a.g.preds(cur)[0]
		if in[prev] || !a.link(prev, cur) {
			break
		}
		chain = append([]NodeID{prev}, chain...)
		in[prev] = true
		cur = prev
	}

	if len(chain) < 2 {
		return nil
	}
	return &region{kind: RegionBlock, entry: chain[0], members: chain}
}

// isArm reports whether n can fold into a conditional headed by m: only m
// enters it, it heads no loop, and it has at most one successor.
func (a *analysis) isArm(m, n NodeID) bool {
	p := a.g.preds(n)
	return n != m &&
		len(p) == 1 && p[0] == m &&
		!a.isHeader(n) &&
		len(a.g.succs(n)) <= 1
}

func (a *analysis) ifThenRegion(m NodeID) *region {
	s := a.g.succs(m)
	for _, pair := range [][2]NodeID{{s[0], s[1]}, {s[1], s[0]}} {
		then, follow := pair[0], pair[1]
		if follow == m || !a.isArm(m, then) {
			continue
		}
		if ts := a.g.succs(then); len(ts) == 1 && ts[0] == follow {
			return &region{kind: RegionIfThen, entry: m, members: []NodeID{m, then}}
		}
	}
	return nil
}

// ifThenElseRegion matches two arms that meet at the same follow node, or
// where an arm leaves the function instead.
func (a *analysis) ifThenElseRegion(m NodeID) *region {
	s := a.g.succs(m)
	if !a.isArm(m, s[0]) || !a.isArm(m, s[1]) {
		return nil
	}
	if _, ok := a.commonFollow(m, s); !ok {
		return nil
	}
	return &region{kind: RegionIfThenElse, entry: m, members: []NodeID{m, s[0], s[1]}}
}

// caseRegion matches a multiway branch. Without a default every successor
// is an arm; with a default exactly one successor is the follow node itself.
func (a *analysis) caseRegion(m NodeID) *region {
	var arms, others []NodeID
	for _, s := range a.g.succs(m) {
		if a.isArm(m, s) {
			arms = append(arms, s)
		} else {
			others = append(others, s)
		}
	}

	follow, ok := a.commonFollow(m, arms)
	if !ok {
		return nil
	}
	switch len(others) {
	case 0:
	case 1:
		if others[0] == m || (follow != NoNode && follow != others[0]) {
			return nil
		}
	default:
		return nil
	}
	return &region{kind: RegionCase, entry: m, members: append([]NodeID{m}, arms...)}
}

// commonFollow returns the single node the arms flow into, or NoNode when
// every arm ends the function. It fails when the arms disagree or loop
// back to m.
func (a *analysis) commonFollow(m NodeID, arms []NodeID) (NodeID, bool) {
	follow := NoNode
	for _, arm := range arms {
		for _, s := range a.g.succs(arm) {
			if s == m {
				return NoNode, false
			}
			if follow != NoNode && follow != s {
				return NoNode, false
			}
			follow = s
		}
	}
	return follow, true
}
