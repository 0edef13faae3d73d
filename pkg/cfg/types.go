// Package cfg defines data structures for representing Control Flow Graphs (CFGs).
// It provides types for blocks, edges, and the complete CFG information, plus
// producers that build them from Go source, Go SSA and hand-written documents.
package cfg

import "sort"

// BlockType represents the type of a CFG block.
type BlockType string

const (
	BlockTypeEntry      BlockType = "entry"       // Function entry point
	BlockTypeBranch     BlockType = "branch"      // Conditional branch (if/switch/select)
	BlockTypeLoopHeader BlockType = "loop_header" // Loop condition
	BlockTypeLoopBody   BlockType = "loop_body"   // Loop body (for/range)
	BlockTypeJoin       BlockType = "join"        // Merge point after a branch
	BlockTypeReturn     BlockType = "return"      // Return statement
	BlockTypeExit       BlockType = "exit"        // Function exit point
	BlockTypePlain      BlockType = "plain"       // Regular statements
)

// EdgeType represents the type of a CFG edge.
type EdgeType string

const (
	EdgeTypeUnconditional EdgeType = "unconditional" // Unconditional jump
	EdgeTypeTrue          EdgeType = "true"          // True branch of conditional
	EdgeTypeFalse         EdgeType = "false"         // False branch of conditional
	EdgeTypeCase          EdgeType = "case"          // Switch/select arm
	EdgeTypeBackEdge      EdgeType = "back_edge"     // Back edge (loop continuation)
	EdgeTypeBreak         EdgeType = "break"         // Break from loop/switch
	EdgeTypeContinue      EdgeType = "continue"      // Continue to next iteration
	EdgeTypeGoto          EdgeType = "goto"          // Jump to a label
	EdgeTypeFallthrough   EdgeType = "fallthrough"   // Fallthrough into the next case
)

// CFGBlock represents a basic block in the Control Flow Graph.
// A block is a sequence of statements with a single entry and exit point.
type CFGBlock struct {
	ID           string    `json:"id" yaml:"id"`                                         // Unique identifier for the block
	Type         BlockType `json:"type,omitempty" yaml:"type,omitempty"`                 // Type of block (entry, branch, loop_body, return, exit)
	StartLine    int       `json:"start_line,omitempty" yaml:"start_line,omitempty"`     // Starting line number in source
	EndLine      int       `json:"end_line,omitempty" yaml:"end_line,omitempty"`         // Ending line number in source
	Statements   []string  `json:"statements,omitempty" yaml:"statements,omitempty"`     // List of statements in this block
	Predecessors []string  `json:"predecessors,omitempty" yaml:"predecessors,omitempty"` // IDs of blocks that can precede this block
}

// CFGEdge represents a directed edge between two CFG blocks.
type CFGEdge struct {
	SourceID  string   `json:"source_id" yaml:"source"`                            // ID of the source block
	TargetID  string   `json:"target_id" yaml:"target"`                            // ID of the target block
	EdgeType  EdgeType `json:"edge_type,omitempty" yaml:"type,omitempty"`          // Type of edge (true, false, unconditional, etc.)
	Condition string   `json:"condition,omitempty" yaml:"condition,omitempty"`     // Condition expression for conditional edges
}

// CFGInfo represents the complete Control Flow Graph for a function.
type CFGInfo struct {
	FunctionName         string              `json:"function_name" yaml:"function"`                                  // Name of the function
	File                 string              `json:"file,omitempty" yaml:"file,omitempty"`                           // Source file, when known
	Blocks               map[string]CFGBlock `json:"blocks" yaml:"blocks"`                                           // Map of block ID to block
	Edges                []CFGEdge           `json:"edges" yaml:"edges"`                                             // List of edges in the graph
	EntryBlockID         string              `json:"entry_block_id" yaml:"entry"`                                    // ID of the entry block
	ExitBlockIDs         []string            `json:"exit_block_ids,omitempty" yaml:"exits,omitempty"`                // IDs of exit blocks
	CyclomaticComplexity int                 `json:"cyclomatic_complexity,omitempty" yaml:"complexity,omitempty"` // Cyclomatic complexity of the function
}

// BlockOrder returns block IDs in first-appearance order: the entry, then
// blocks as they appear in the edge list, then any remaining blocks sorted by ID.
func (c *CFGInfo) BlockOrder() []string {
	seen := make(map[string]bool, len(c.Blocks))
	order := make([]string, 0, len(c.Blocks))
	add := func(id string) {
		if seen[id] {
			return
		}
		if _, ok := c.Blocks[id]; !ok {
			return
		}
		seen[id] = true
		order = append(order, id)
	}

	add(c.EntryBlockID)
	for _, e := range c.Edges {
		add(e.SourceID)
		add(e.TargetID)
	}

	rest := make([]string, 0)
	for id := range c.Blocks {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}

// Successors returns the ordered, de-duplicated successor IDs of every block.
func (c *CFGInfo) Successors() map[string][]string {
	succs := make(map[string][]string, len(c.Blocks))
	seen := make(map[[2]string]bool, len(c.Edges))
	for _, e := range c.Edges {
		key := [2]string{e.SourceID, e.TargetID}
		if seen[key] {
			continue
		}
		seen[key] = true
		succs[e.SourceID] = append(succs[e.SourceID], e.TargetID)
	}
	return succs
}

// FillPredecessors recomputes CFGBlock.Predecessors from the edge list.
func (c *CFGInfo) FillPredecessors() {
	preds := make(map[string][]string, len(c.Blocks))
	for src, targets := range c.Successors() {
		for _, dst := range targets {
			preds[dst] = append(preds[dst], src)
		}
	}
	for id, b := range c.Blocks {
		p := preds[id]
		sort.Strings(p)
		b.Predecessors = p
		c.Blocks[id] = b
	}
}

// ComputeComplexity returns E - N + 2 over the de-duplicated edge set.
func (c *CFGInfo) ComputeComplexity() int {
	edges := 0
	for _, targets := range c.Successors() {
		edges += len(targets)
	}
	return edges - len(c.Blocks) + 2
}
