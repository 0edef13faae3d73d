package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-control-tree/pkg/cfg"
	"github.com/l3aro/go-control-tree/pkg/structural"
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Build the control tree of functions in a Go file or CFG document",
	Long: `Builds the control tree of every function in a Go source file, or of every
CFG in a YAML or JSON document, and prints it in the configured format.
Use --func to pick a single function.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := newLogger(cmd, conf)

		path := args[0]
		function, _ := cmd.Flags().GetString("func")
		infos, err := loadCFGs(path, function)
		if err != nil {
			return err
		}

		analyzer := structural.New(conf.AnalysisOptions(logger))
		items := make([]analyzed, 0, len(infos))
		for _, info := range infos {
			tree, err := analyzer.Run(info)
			if err != nil {
				return fmt.Errorf("analyzing %s: %w", info.FunctionName, err)
			}
			name := info.FunctionName
			if isGoFile(path) {
				name = sourceName(".", path, info.FunctionName)
			}
			items = append(items, analyzed{name: name, tree: tree})
		}

		if save, _ := cmd.Flags().GetBool("store"); save {
			if err := storeReports(conf, items); err != nil {
				return fmt.Errorf("storing reports: %w", err)
			}
			logger.Info("stored reports", "count", len(items), "store", conf.StorePath)
		}

		var out io.Writer = cmd.OutOrStdout()
		if outPath, _ := cmd.Flags().GetString("out"); outPath != "" {
			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			out = f
		}
		return render(out, conf.OutputFormat, items)
	},
}

func isGoFile(path string) bool {
	return strings.HasSuffix(path, ".go")
}

// loadCFGs reads the CFGs of path, keeping only function when it is set.
func loadCFGs(path, function string) ([]*cfg.CFGInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, expected a file: %s (use scan for directories)", path)
	}

	if isGoFile(path) {
		if function != "" {
			one, err := cfg.ExtractGoCFG(path, function)
			if err != nil {
				return nil, err
			}
			return []*cfg.CFGInfo{one}, nil
		}
		infos, err := cfg.ExtractGoFile(path)
		if err != nil {
			return nil, err
		}
		if len(infos) == 0 {
			return nil, fmt.Errorf("no functions with a body in %s", path)
		}
		return infos, nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
	default:
		return nil, fmt.Errorf("unsupported file type: %s (expected .go, .yaml, .yml or .json)", path)
	}
	infos, err := cfg.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if function == "" {
		return infos, nil
	}
	for _, info := range infos {
		if info.FunctionName == function {
			return []*cfg.CFGInfo{info}, nil
		}
	}
	return nil, fmt.Errorf("function %q not found in %s", function, path)
}

func init() {
	analyzeCmd.Flags().String("func", "", "Analyze only this function (methods as Type.Method or Method)")
	analyzeCmd.Flags().Bool("store", false, "Save the reports in the report store")
	analyzeCmd.Flags().StringP("out", "o", "", "Write output to a file instead of stdout")
	RootCmd.AddCommand(analyzeCmd)
}
