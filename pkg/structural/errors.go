package structural

import (
	"errors"
	"fmt"
	"io"

	pkgerrors "github.com/pkg/errors"

	"github.com/l3aro/go-control-tree/pkg/cfg"
)

var (
	// ErrMalformedGraph is wrapped by every MalformedGraphError.
	ErrMalformedGraph = errors.New("malformed control flow graph")
	// ErrInternalInvariant is wrapped by every InvariantError.
	ErrInternalInvariant = errors.New("internal invariant failure")
	// ErrIterationLimit is returned when Options.MaxIterations is exceeded.
	ErrIterationLimit = errors.New("structural analysis exceeded iteration limit")
)

// MalformedGraphError reports an input CFG that cannot be analyzed: a
// missing entry, dangling edges, or blocks unreachable from the entry.
type MalformedGraphError struct {
	Function string
	Reason   string
	Block    string
}

func (e *MalformedGraphError) Error() string {
	if e.Block != "" {
		return fmt.Sprintf("malformed CFG %q: %s: %s", e.Function, e.Reason, e.Block)
	}
	return fmt.Sprintf("malformed CFG %q: %s", e.Function, e.Reason)
}

func (e *MalformedGraphError) Unwrap() []error {
	return []error{ErrMalformedGraph, cfg.ErrInvalidCFG}
}

func malformed(err error) error {
	var verr *cfg.ValidationError
	if errors.As(err, &verr) {
		return &MalformedGraphError{Function: verr.Function, Reason: verr.Reason, Block: verr.Block}
	}
	return err
}

// InvariantError signals a bug in the analysis rather than a property of
// the input. It carries the stack where the violation was detected; format
// it with %+v to print the stack.
type InvariantError struct {
	Phase  string
	Detail string
	cause  error
}

func newInvariantError(phase, format string, args ...any) *InvariantError {
	return &InvariantError{
		Phase:  phase,
		Detail: fmt.Sprintf(format, args...),
		cause:  pkgerrors.WithStack(ErrInternalInvariant),
	}
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("structural: %s: %s: %s", ErrInternalInvariant, e.Phase, e.Detail)
}

func (e *InvariantError) Unwrap() error { return e.cause }

func (e *InvariantError) Format(s fmt.State, verb rune) {
	io.WriteString(s, e.Error())
	if verb == 'v' && s.Flag('+') {
		fmt.Fprintf(s, "\n%+v", e.cause)
	}
}
