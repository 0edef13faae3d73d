package structural

// dfsInfo is the result of one depth-first classification of the live graph.
type dfsInfo struct {
	pre       map[NodeID]int
	post      map[NodeID]int
	postorder []NodeID
	class     map[Edge]EdgeClass
	headers   map[NodeID]bool
}

// classify runs an iterative DFS from the entry, visiting successors in
// adjacency order, numbering nodes in pre- and postorder and classifying
// every edge. A node is a loop header iff some back edge targets it.
func (g *workingGraph) classify() *dfsInfo {
	d := &dfsInfo{
		pre:     make(map[NodeID]int, len(g.live)),
		post:    make(map[NodeID]int, len(g.live)),
		class:   make(map[Edge]EdgeClass),
		headers: make(map[NodeID]bool),
	}

	type frame struct {
		node NodeID
		next int
	}
	onStack := make(map[NodeID]bool, len(g.live))
	stack := []frame{{node: g.entry}}
	d.pre[g.entry] = 0
	onStack[g.entry] = true
	preNum := 1

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		succs := g.succs(top.node)
		if top.next < len(succs) {
			u, v := top.node, succs[top.next]
			top.next++
			e := Edge{From: u, To: v}

			if _, seen := d.pre[v]; !seen {
				d.class[e] = EdgeTree
				d.pre[v] = preNum
				preNum++
				onStack[v] = true
				stack = append(stack, frame{node: v})
				continue
			}
			switch {
			case onStack[v]:
				d.class[e] = EdgeBack
				d.headers[v] = true
			case d.pre[u] < d.pre[v]:
				d.class[e] = EdgeForward
			default:
				d.class[e] = EdgeCross
			}
			continue
		}

		onStack[top.node] = false
		d.post[top.node] = len(d.postorder)
		d.postorder = append(d.postorder, top.node)
		stack = stack[:len(stack)-1]
	}

	for h := range d.headers {
		g.nodes[h].IsLoopHeader = true
	}
	return d
}

// reversePostorder returns the nodes in reverse postorder.
func (d *dfsInfo) reversePostorder() []NodeID {
	out := make([]NodeID, len(d.postorder))
	for i, n := range d.postorder {
		out[len(out)-1-i] = n
	}
	return out
}

// backEdgesInto returns the sources of back edges targeting h, in pred order.
func (d *dfsInfo) backEdgesInto(g *workingGraph, h NodeID) []NodeID {
	var srcs []NodeID
	for _, p := range g.preds(h) {
		if d.class[Edge{From: p, To: h}] == EdgeBack {
			srcs = append(srcs, p)
		}
	}
	return srcs
}
