// Package structural recovers the hierarchical control structure of a CFG.
//
// Analyze repeatedly classifies the edges of a working graph, matches
// acyclic regions (Block, IfThen, IfThenElse, Case) and cyclic regions
// (SelfLoop, NaturalLoop), and compacts each match into a single node. When
// nothing matches, one unstructured edge is recorded and removed. The result
// is a ControlTree whose root covers every modelled block.
package structural

import (
	"fmt"
	"strings"
)

// NodeID addresses a node in the analysis arena.
type NodeID int

// NoNode marks an unset node reference.
const NoNode NodeID = -1

// RegionType classifies a compound node.
type RegionType int

const (
	RegionNil RegionType = iota
	RegionBlock
	RegionIfThen
	RegionIfThenElse
	RegionCase
	RegionSelfLoop
	RegionNaturalLoop
	RegionImproper
)

var regionNames = [...]string{
	RegionNil:         "Nil",
	RegionBlock:       "Block",
	RegionIfThen:      "IfThen",
	RegionIfThenElse:  "IfThenElse",
	RegionCase:        "Case",
	RegionSelfLoop:    "SelfLoop",
	RegionNaturalLoop: "NaturalLoop",
	RegionImproper:    "Improper",
}

func (r RegionType) String() string {
	if r < 0 || int(r) >= len(regionNames) {
		return fmt.Sprintf("RegionType(%d)", int(r))
	}
	return regionNames[r]
}

// IsLoop reports whether r is a cyclic region.
func (r RegionType) IsLoop() bool {
	return r == RegionSelfLoop || r == RegionNaturalLoop || r == RegionImproper
}

// IsAcyclic reports whether r is one of the acyclic region shapes.
func (r RegionType) IsAcyclic() bool {
	return r >= RegionBlock && r <= RegionCase
}

func (r RegionType) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *RegionType) UnmarshalText(text []byte) error {
	rt, err := ParseRegionType(string(text))
	if err != nil {
		return err
	}
	*r = rt
	return nil
}

// ParseRegionType is the inverse of RegionType.String, case-insensitive.
func ParseRegionType(s string) (RegionType, error) {
	for i, name := range regionNames {
		if strings.EqualFold(name, s) {
			return RegionType(i), nil
		}
	}
	return RegionNil, fmt.Errorf("unknown region type %q", s)
}

// EdgeClass is the DFS classification of an edge.
type EdgeClass int

const (
	EdgeTree EdgeClass = iota
	EdgeForward
	EdgeBack
	EdgeCross
)

func (c EdgeClass) String() string {
	switch c {
	case EdgeTree:
		return "tree"
	case EdgeForward:
		return "forward"
	case EdgeBack:
		return "back"
	case EdgeCross:
		return "cross"
	}
	return fmt.Sprintf("EdgeClass(%d)", int(c))
}

// Edge is a directed edge between two nodes of the working graph.
type Edge struct {
	From NodeID
	To   NodeID
}

// BlockEdge is a directed edge between two original basic blocks.
type BlockEdge struct {
	From string `json:"from" yaml:"from" msgpack:"from"`
	To   string `json:"to" yaml:"to" msgpack:"to"`
}

func (e BlockEdge) String() string { return e.From + " -> " + e.To }

// Node is either a leaf wrapping one basic block or a compound node created
// by compacting a region.
type Node struct {
	ID         NodeID
	IsCombined bool
	// Block is the wrapped basic block; leaves only.
	Block string

	// Preds and Succs are the adjacency while the node was live.
	Preds []NodeID
	Succs []NodeID

	// EntryNode is the entry member of the compacted region.
	EntryNode NodeID
	Parent    NodeID
	Children  []NodeID

	ContainedBlocks []string
	EntryBlock      string
	ExitBlock       string

	// Node-level edges crossing a loop region's boundary when it was compacted.
	OutgoingBranches []Edge
	IncomingBranches []Edge
	// The same edges between original blocks, filled in after analysis.
	OutgoingBlockEdges []BlockEdge
	IncomingBlockEdges []BlockEdge

	RegionType   RegionType
	IsLoopHeader bool
	LoopExitNode NodeID
}

// IsLeaf reports whether the node wraps a single basic block.
func (n *Node) IsLeaf() bool { return !n.IsCombined }

// Label is a short human-readable name for the node.
func (n *Node) Label() string {
	if !n.IsCombined {
		return n.Block
	}
	return fmt.Sprintf("%s#%d", n.RegionType, n.ID)
}

// UnstructuredBranch is an edge removed from the working graph so reduction
// could continue.
type UnstructuredBranch struct {
	Source      NodeID
	Destination NodeID
	Class       EdgeClass
	// SourceBlocks are the original blocks whose edge into DestinationBlock
	// was removed.
	SourceBlocks     []string
	DestinationBlock string
	// NeedsForwardCopy is set when the destination stays reachable without
	// the edge, so its code must be duplicated at the source.
	NeedsForwardCopy bool
	// IsGoto is set when the source jumped unconditionally.
	IsGoto bool
}

// ImproperRegion records a loop whose header does not dominate its body.
type ImproperRegion struct {
	Header      NodeID
	HeaderBlock string
	Members     []NodeID
	Entries     []NodeID
	Blocks      []string
}
