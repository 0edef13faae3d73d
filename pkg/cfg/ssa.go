package cfg

import (
	"fmt"
	"go/token"
	"sort"
	"strings"

	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// maxSSAStatements caps how many instructions are copied into a block.
const maxSSAStatements = 32

// FromSSA converts a built SSA function into a CFGInfo. Block IDs are "b<index>".
// The recover block is only reachable through a panic and is left out.
func FromSSA(fn *ssa.Function) (*CFGInfo, error) {
	if fn == nil || len(fn.Blocks) == 0 {
		return nil, fmt.Errorf("function %v has no body", fn)
	}

	info := &CFGInfo{
		FunctionName: fn.String(),
		Blocks:       make(map[string]CFGBlock, len(fn.Blocks)),
		EntryBlockID: ssaBlockID(fn.Blocks[0]),
	}

	var fset *token.FileSet
	if fn.Prog != nil {
		fset = fn.Prog.Fset
		if pos := fn.Pos(); pos.IsValid() {
			info.File = fset.Position(pos).Filename
		}
	}

	for _, b := range fn.Blocks {
		if b == fn.Recover {
			continue
		}
		block := CFGBlock{
			ID:   ssaBlockID(b),
			Type: ssaBlockType(fn, b),
		}
		for _, instr := range b.Instrs {
			if fset != nil && instr.Pos().IsValid() {
				ln := fset.Position(instr.Pos()).Line
				if block.StartLine == 0 || ln < block.StartLine {
					block.StartLine = ln
				}
				if ln > block.EndLine {
					block.EndLine = ln
				}
			}
			if len(block.Statements) < maxSSAStatements {
				block.Statements = append(block.Statements, ssaInstrString(instr))
			}
		}
		info.Blocks[block.ID] = block

		var cond string
		if ifInstr, ok := lastInstr(b).(*ssa.If); ok {
			cond = ifInstr.Cond.Name()
		}
		for i, succ := range b.Succs {
			if succ == fn.Recover {
				continue
			}
			edgeType := EdgeTypeUnconditional
			if cond != "" {
				edgeType = EdgeTypeTrue
				if i == 1 {
					edgeType = EdgeTypeFalse
				}
			}
			info.Edges = append(info.Edges, CFGEdge{
				SourceID:  block.ID,
				TargetID:  ssaBlockID(succ),
				EdgeType:  edgeType,
				Condition: cond,
			})
		}
		if len(b.Succs) == 0 {
			info.ExitBlockIDs = append(info.ExitBlockIDs, block.ID)
		}
	}

	info.FillPredecessors()
	info.CyclomaticComplexity = info.ComputeComplexity()
	return info, nil
}

func ssaBlockID(b *ssa.BasicBlock) string {
	return fmt.Sprintf("b%d", b.Index)
}

func ssaBlockType(fn *ssa.Function, b *ssa.BasicBlock) BlockType {
	if b.Index == 0 {
		return BlockTypeEntry
	}
	switch lastInstr(b).(type) {
	case *ssa.Return:
		return BlockTypeReturn
	case *ssa.Panic:
		return BlockTypeExit
	case *ssa.If:
		return BlockTypeBranch
	}
	if strings.HasPrefix(b.Comment, "for.body") || strings.HasPrefix(b.Comment, "rangeindex.body") {
		return BlockTypeLoopBody
	}
	if strings.HasPrefix(b.Comment, "for.loop") || strings.HasPrefix(b.Comment, "rangeindex.loop") {
		return BlockTypeLoopHeader
	}
	return BlockTypePlain
}

func lastInstr(b *ssa.BasicBlock) ssa.Instruction {
	if len(b.Instrs) == 0 {
		return nil
	}
	return b.Instrs[len(b.Instrs)-1]
}

func ssaInstrString(instr ssa.Instruction) string {
	if v, ok := instr.(ssa.Value); ok && v.Name() != "" {
		return v.Name() + " = " + v.String()
	}
	return instr.String()
}

// LoadSSA loads the packages matching patterns (relative to dir), builds SSA
// for them and converts every function with a body declared in those
// packages, including methods and closures. Results are sorted by name.
func LoadSSA(dir string, patterns ...string) ([]*CFGInfo, error) {
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}

	conf := &packages.Config{
		Dir:  dir,
		Mode: packages.LoadAllSyntax,
	}
	initial, err := packages.Load(conf, patterns...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute loader: %w", err)
	}

	var errorMessages strings.Builder
	packages.Visit(initial, nil, func(pkg *packages.Package) {
		for _, e := range pkg.Errors {
			errorMessages.WriteString(e.Error() + "\n")
		}
	})
	if errorMessages.Len() > 0 {
		return nil, fmt.Errorf("packages contain errors: \n%s", errorMessages.String())
	}

	prog, pkgs := ssautil.AllPackages(initial, ssa.InstantiateGenerics)
	prog.Build()

	wanted := make(map[*ssa.Package]bool, len(pkgs))
	for _, p := range pkgs {
		if p != nil {
			wanted[p] = true
		}
	}

	var fns []*ssa.Function
	for fn := range ssautil.AllFunctions(prog) {
		if fn.Pkg == nil || !wanted[fn.Pkg] || len(fn.Blocks) == 0 || fn.Synthetic != "" {
			continue
		}
		fns = append(fns, fn)
	}
	sort.Slice(fns, func(i, j int) bool { return fns[i].String() < fns[j].String() })

	infos := make([]*CFGInfo, 0, len(fns))
	for _, fn := range fns {
		info, err := FromSSA(fn)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}
