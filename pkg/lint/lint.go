// Package lint exposes structural analysis as a go/analysis pass. It reports
// every function whose control flow graph contains an irreducible loop, that
// is a loop that can be entered at more than one block.
package lint

import (
	"go/ast"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/buildssa"

	"github.com/l3aro/go-control-tree/pkg/cfg"
	"github.com/l3aro/go-control-tree/pkg/structural"
)

// Analyzer reports irreducible control flow.
var Analyzer = &analysis.Analyzer{
	Name:     "ctree",
	Doc:      "reports functions whose control flow contains loops with more than one entry",
	Requires: []*analysis.Analyzer{buildssa.Analyzer},
	Run:      run,
}

func run(pass *analysis.Pass) (any, error) {
	ssaInfo := pass.ResultOf[buildssa.Analyzer].(*buildssa.SSA)
	skipFiles := buildSkipFiles(pass)

	for _, fn := range ssaInfo.SrcFuncs {
		if len(fn.Blocks) == 0 || !fn.Pos().IsValid() {
			continue
		}
		if skipFiles[pass.Fset.Position(fn.Pos()).Filename] {
			continue
		}

		info, err := cfg.FromSSA(fn)
		if err != nil {
			continue
		}
		tree, err := structural.Analyze(info, structural.Options{PruneUnreachable: true})
		if err != nil {
			return nil, err
		}
		if len(tree.ImproperRegions) == 0 {
			continue
		}
		ir := tree.ImproperRegions[0]
		pass.Reportf(fn.Pos(), "irreducible control flow in %s: loop at %s has %d entries",
			fn.Name(), ir.HeaderBlock, len(ir.Entries))
	}
	return nil, nil
}

// buildSkipFiles returns the generated files of the package.
func buildSkipFiles(pass *analysis.Pass) map[string]bool {
	skipFiles := make(map[string]bool)
	for _, file := range pass.Files {
		if ast.IsGenerated(file) {
			skipFiles[pass.Fset.Position(file.Pos()).Filename] = true
		}
	}
	return skipFiles
}
