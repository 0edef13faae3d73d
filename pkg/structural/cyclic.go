package structural

import (
	"fmt"
	"sort"
	"strings"
)

// reachUnder returns the header plus every node that reaches a back-edge
// source of h without passing through h.
func (a *analysis) reachUnder(h NodeID) map[NodeID]bool {
	set := map[NodeID]bool{h: true}
	var work []NodeID
	for _, src := range a.d.backEdgesInto(a.g, h) {
		if !set[src] {
			set[src] = true
			work = append(work, src)
		}
	}
	for len(work) > 0 {
		n := work[len(work)-1]
		work = work[:len(work)-1]
		for _, p := range a.g.preds(n) {
			if !set[p] {
				set[p] = true
				work = append(work, p)
			}
		}
	}
	return set
}

// cyclicRegion classifies the loop headed by h. It returns the region to
// compact, or nil with improper set when h does not dominate the loop.
func (a *analysis) cyclicRegion(h NodeID) (r *region, improper bool) {
	set := a.reachUnder(h)
	if len(set) == 1 {
		if containsNode(a.g.succs(h), h) {
			return &region{kind: RegionSelfLoop, entry: h, members: []NodeID{h}}, false
		}
		return nil, false
	}

	dt := a.g.dominators()
	for n := range set {
		if !dominates(dt, h, n) {
			a.recordImproper(h, set)
			return nil, true
		}
	}

	members := make([]NodeID, 0, len(set))
	for n := range set {
		if n != h {
			members = append(members, n)
		}
	}
	sort.Slice(members, func(i, j int) bool { return a.d.pre[members[i]] < a.d.pre[members[j]] })
	return &region{kind: RegionNaturalLoop, entry: h, members: append([]NodeID{h}, members...)}, false
}

// recordImproper notes an irreducible loop once per distinct member set.
// Members are the reach-under nodes the header can reach inside the set;
// entries are members with a predecessor outside it.
func (a *analysis) recordImproper(h NodeID, set map[NodeID]bool) {
	inside := a.g.reachableWithin(h, set)
	members := make([]NodeID, 0, len(inside))
	for n := range inside {
		members = append(members, n)
	}
	sort.Slice(members, func(i, j int) bool { return a.d.pre[members[i]] < a.d.pre[members[j]] })

	key := fmt.Sprint(h, members)
	if a.improperSeen[key] {
		return
	}
	a.improperSeen[key] = true

	rec := ImproperRegion{
		Header:      h,
		HeaderBlock: a.g.node(h).EntryBlock,
		Members:     members,
	}
	var blockSets [][]string
	for _, m := range members {
		blockSets = append(blockSets, a.g.node(m).ContainedBlocks)
		for _, p := range a.g.preds(m) {
			if !inside[p] {
				rec.Entries = append(rec.Entries, m)
				break
			}
		}
	}
	rec.Blocks = unionBlocks(blockSets...)
	a.improper = append(a.improper, rec)

	a.log.Debug("improper region",
		"function", a.g.function,
		"header", a.g.node(h).Label(),
		"members", strings.Join(a.g.labels(members), ","),
	)
}
