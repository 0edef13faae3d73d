package cfg

import (
	"errors"
	"fmt"
)

// Validation failure reasons.
const (
	ReasonEmpty        = "empty"
	ReasonMissingEntry = "missing entry"
	ReasonUnknownEntry = "unknown entry"
	ReasonDanglingEdge = "dangling edge"
	ReasonUnreachable  = "unreachable"
)

// ErrInvalidCFG is wrapped by every ValidationError.
var ErrInvalidCFG = errors.New("invalid control flow graph")

// ValidationError describes why a CFGInfo cannot be analyzed.
type ValidationError struct {
	Function string
	Reason   string
	Block    string
}

func (e *ValidationError) Error() string {
	if e.Block != "" {
		return fmt.Sprintf("cfg %s: %s: %s", e.Function, e.Reason, e.Block)
	}
	return fmt.Sprintf("cfg %s: %s", e.Function, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidCFG }

// Validate checks the structural well-formedness of a CFG: it must have
// blocks, a known entry, and every edge must connect existing blocks.
// Reachability is not checked here.
func Validate(info *CFGInfo) error {
	if info == nil || len(info.Blocks) == 0 {
		name := ""
		if info != nil {
			name = info.FunctionName
		}
		return &ValidationError{Function: name, Reason: ReasonEmpty}
	}
	if info.EntryBlockID == "" {
		return &ValidationError{Function: info.FunctionName, Reason: ReasonMissingEntry}
	}
	if _, ok := info.Blocks[info.EntryBlockID]; !ok {
		return &ValidationError{Function: info.FunctionName, Reason: ReasonUnknownEntry, Block: info.EntryBlockID}
	}

	for _, e := range info.Edges {
		if _, ok := info.Blocks[e.SourceID]; !ok {
			return &ValidationError{
				Function: info.FunctionName,
				Reason:   ReasonDanglingEdge,
				Block:    fmt.Sprintf("%s -> %s", e.SourceID, e.TargetID),
			}
		}
		if _, ok := info.Blocks[e.TargetID]; !ok {
			return &ValidationError{
				Function: info.FunctionName,
				Reason:   ReasonDanglingEdge,
				Block:    fmt.Sprintf("%s -> %s", e.SourceID, e.TargetID),
			}
		}
	}

	for id, b := range info.Blocks {
		if b.ID != "" && b.ID != id {
			return &ValidationError{
				Function: info.FunctionName,
				Reason:   "block id mismatch",
				Block:    fmt.Sprintf("%s (key %s)", b.ID, id),
			}
		}
	}
	return nil
}
