package structural

import (
	"fmt"
	"io"
	"strings"
	"time"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/simple"
)

// Report is the serializable form of a ControlTree.
type Report struct {
	FunctionName         string           `json:"function" yaml:"function" msgpack:"function"`
	File                 string           `json:"file,omitempty" yaml:"file,omitempty" msgpack:"file,omitempty"`
	Fingerprint          string           `json:"fingerprint" yaml:"fingerprint" msgpack:"fingerprint"`
	Structured           bool             `json:"structured" yaml:"structured" msgpack:"structured"`
	Root                 *ReportNode      `json:"root" yaml:"root" msgpack:"root"`
	UnstructuredBranches []BranchReport   `json:"unstructured_branches,omitempty" yaml:"unstructured_branches,omitempty" msgpack:"unstructured_branches,omitempty"`
	ImproperRegions      []ImproperReport `json:"improper_regions,omitempty" yaml:"improper_regions,omitempty" msgpack:"improper_regions,omitempty"`
	PrunedBlocks         []string         `json:"pruned_blocks,omitempty" yaml:"pruned_blocks,omitempty" msgpack:"pruned_blocks,omitempty"`
	Stats                Stats            `json:"stats" yaml:"stats" msgpack:"stats"`
	AnalyzedAt           time.Time        `json:"analyzed_at" yaml:"analyzed_at" msgpack:"analyzed_at"`
}

// ReportNode is one region or leaf of a Report.
type ReportNode struct {
	ID            int           `json:"id" yaml:"id" msgpack:"id"`
	Region        string        `json:"region,omitempty" yaml:"region,omitempty" msgpack:"region,omitempty"`
	Block         string        `json:"block,omitempty" yaml:"block,omitempty" msgpack:"block,omitempty"`
	Blocks        []string      `json:"blocks" yaml:"blocks" msgpack:"blocks"`
	EntryBlock    string        `json:"entry_block" yaml:"entry_block" msgpack:"entry_block"`
	ExitBlock     string        `json:"exit_block,omitempty" yaml:"exit_block,omitempty" msgpack:"exit_block,omitempty"`
	LoopExitBlock string        `json:"loop_exit_block,omitempty" yaml:"loop_exit_block,omitempty" msgpack:"loop_exit_block,omitempty"`
	Outgoing      []BlockEdge   `json:"outgoing,omitempty" yaml:"outgoing,omitempty" msgpack:"outgoing,omitempty"`
	Incoming      []BlockEdge   `json:"incoming,omitempty" yaml:"incoming,omitempty" msgpack:"incoming,omitempty"`
	Children      []*ReportNode `json:"children,omitempty" yaml:"children,omitempty" msgpack:"children,omitempty"`
}

// BranchReport is an unstructured branch in block terms.
type BranchReport struct {
	From             []string `json:"from" yaml:"from" msgpack:"from"`
	To               string   `json:"to" yaml:"to" msgpack:"to"`
	Class            string   `json:"class" yaml:"class" msgpack:"class"`
	NeedsForwardCopy bool     `json:"needs_forward_copy" yaml:"needs_forward_copy" msgpack:"needs_forward_copy"`
	IsGoto           bool     `json:"is_goto" yaml:"is_goto" msgpack:"is_goto"`
}

// ImproperReport is an irreducible loop in block terms.
type ImproperReport struct {
	Header  string   `json:"header" yaml:"header" msgpack:"header"`
	Entries []string `json:"entries" yaml:"entries" msgpack:"entries"`
	Blocks  []string `json:"blocks" yaml:"blocks" msgpack:"blocks"`
}

// Report converts the tree to its serializable form. A non-empty name
// replaces the function name recorded in the tree.
func (t *ControlTree) Report(name string) *Report {
	if name == "" {
		name = t.Function
	}
	r := &Report{
		FunctionName: name,
		File:         t.File,
		Fingerprint:  t.Fingerprint,
		Structured:   t.IsStructured(),
		PrunedBlocks: t.PrunedBlocks,
		Stats:        t.Stats,
		AnalyzedAt:   time.Now().UTC(),
	}
	if root := t.Root(); root != nil {
		r.Root = t.reportNode(root)
	}
	for _, br := range t.UnstructuredBranches {
		r.UnstructuredBranches = append(r.UnstructuredBranches, BranchReport{
			From:             br.SourceBlocks,
			To:               br.DestinationBlock,
			Class:            br.Class.String(),
			NeedsForwardCopy: br.NeedsForwardCopy,
			IsGoto:           br.IsGoto,
		})
	}
	for _, ir := range t.ImproperRegions {
		rep := ImproperReport{Header: ir.HeaderBlock, Blocks: ir.Blocks}
		for _, e := range ir.Entries {
			if n := t.Node(e); n != nil {
				rep.Entries = append(rep.Entries, n.EntryBlock)
			}
		}
		r.ImproperRegions = append(r.ImproperRegions, rep)
	}
	return r
}

func (t *ControlTree) reportNode(n *Node) *ReportNode {
	rn := &ReportNode{
		ID:         int(n.ID),
		Blocks:     n.ContainedBlocks,
		EntryBlock: n.EntryBlock,
		ExitBlock:  n.ExitBlock,
		Outgoing:   n.OutgoingBlockEdges,
		Incoming:   n.IncomingBlockEdges,
	}
	if n.IsLeaf() {
		rn.Block = n.Block
		return rn
	}
	rn.Region = n.RegionType.String()
	if exit := t.Node(n.LoopExitNode); exit != nil {
		rn.LoopExitBlock = exit.EntryBlock
	}
	for _, c := range n.Children {
		rn.Children = append(rn.Children, t.reportNode(t.Nodes[c]))
	}
	return rn
}

// String renders the report as an indented tree followed by any
// unstructured branches and improper regions.
func (r *Report) String() string {
	var sb strings.Builder
	status := "structured"
	if !r.Structured {
		status = "unstructured"
	}
	fmt.Fprintf(&sb, "%s (%s, %d blocks, %d iterations)\n", r.FunctionName, status, r.Stats.Blocks, r.Stats.Iterations)

	var write func(n *ReportNode, depth int)
	write = func(n *ReportNode, depth int) {
		sb.WriteString(strings.Repeat("  ", depth+1))
		if n.Region == "" {
			sb.WriteString(n.Block)
		} else {
			fmt.Fprintf(&sb, "%s [%s]", n.Region, strings.Join(n.Blocks, " "))
			if n.LoopExitBlock != "" {
				fmt.Fprintf(&sb, " exit=%s", n.LoopExitBlock)
			}
		}
		sb.WriteByte('\n')
		for _, c := range n.Children {
			write(c, depth+1)
		}
	}
	if r.Root != nil {
		write(r.Root, 0)
	}

	for _, br := range r.UnstructuredBranches {
		kind := "branch"
		if br.IsGoto {
			kind = "goto"
		}
		fmt.Fprintf(&sb, "  unstructured %s %s -> %s (%s)\n", kind, strings.Join(br.From, ","), br.To, br.Class)
	}
	for _, ir := range r.ImproperRegions {
		fmt.Fprintf(&sb, "  improper loop at %s entries=%s blocks=%s\n",
			ir.Header, strings.Join(ir.Entries, ","), strings.Join(ir.Blocks, ","))
	}
	return sb.String()
}

type dotNode struct {
	id    int64
	attrs []encoding.Attribute
}

func (n dotNode) ID() int64                        { return n.id }
func (n dotNode) DOTID() string                    { return fmt.Sprintf("n%d", n.id) }
func (n dotNode) Attributes() []encoding.Attribute { return n.attrs }

type dotEdge struct {
	from, to dotNode
	attrs    []encoding.Attribute
}

func (e dotEdge) From() graph.Node                 { return e.from }
func (e dotEdge) To() graph.Node                   { return e.to }
func (e dotEdge) Attributes() []encoding.Attribute { return e.attrs }

func (e dotEdge) ReversedEdge() graph.Edge {
	e.from, e.to = e.to, e.from
	return e
}

// WriteDOT renders the tree in Graphviz format: solid edges from regions to
// their children and dashed edges for unstructured branches between leaves.
func WriteDOT(w io.Writer, t *ControlTree) error {
	dg := simple.NewDirectedGraph()
	nodes := make(map[NodeID]dotNode)
	t.Walk(func(n *Node, _ int) bool {
		dn := dotNode{id: int64(n.ID)}
		if n.IsLeaf() {
			dn.attrs = []encoding.Attribute{
				{Key: "label", Value: n.Block},
				{Key: "shape", Value: "box"},
			}
		} else {
			dn.attrs = []encoding.Attribute{
				{Key: "label", Value: n.Label()},
				{Key: "shape", Value: "ellipse"},
			}
		}
		nodes[n.ID] = dn
		dg.AddNode(dn)
		return true
	})

	t.Walk(func(n *Node, _ int) bool {
		for _, c := range n.Children {
			dg.SetEdge(dotEdge{from: nodes[n.ID], to: nodes[c]})
		}
		return true
	})
	for _, br := range t.UnstructuredBranches {
		to, ok := t.LeafOf(br.DestinationBlock)
		if !ok {
			continue
		}
		for _, b := range br.SourceBlocks {
			from, ok := t.LeafOf(b)
			if !ok || from.ID == to.ID {
				continue
			}
			dg.SetEdge(dotEdge{
				from: nodes[from.ID],
				to:   nodes[to.ID],
				attrs: []encoding.Attribute{
					{Key: "style", Value: "dashed"},
					{Key: "label", Value: br.Class.String()},
				},
			})
		}
	}

	name := t.Function
	if name == "" {
		name = "control_tree"
	}
	data, err := dot.Marshal(dg, name, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to render DOT for %s: %w", t.Function, err)
	}
	_, err = w.Write(append(data, '\n'))
	return err
}
