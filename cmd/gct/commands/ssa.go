package commands

import (
	"github.com/spf13/cobra"

	"github.com/l3aro/go-control-tree/internal/log"
	"github.com/l3aro/go-control-tree/pkg/batch"
	"github.com/l3aro/go-control-tree/pkg/cfg"
)

// ssaCmd represents the ssa command
var ssaCmd = &cobra.Command{
	Use:   "ssa [patterns...]",
	Short: "Analyze Go packages through their SSA form",
	Long: `Loads the packages matching patterns (default: ./...) with full type
information, builds their SSA form and analyzes the control flow graph of
every function, method and closure. Blocks are named after SSA block
indices, so gotos and labelled loops appear exactly as the compiler sees
them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := newLogger(cmd, conf)

		dir, _ := cmd.Flags().GetString("dir")
		spinner := log.NewProgressSpinner("loading packages")
		spinner.Start()
		infos, err := cfg.LoadSSA(dir, args...)
		spinner.Stop()
		if err != nil {
			return err
		}
		logger.Debug("loaded SSA functions", "dir", dir, "functions", len(infos))

		jobs := make([]batch.Job, len(infos))
		for i, info := range infos {
			jobs[i] = batch.Job{Name: info.FunctionName, CFG: info}
		}
		return runBatch(cmd, conf, logger, jobs, func(r batch.Result) string {
			return r.Job.Name
		})
	},
}

func init() {
	ssaCmd.Flags().String("dir", ".", "Directory the patterns are resolved from")
	ssaCmd.Flags().Bool("store", false, "Save the reports in the report store")
	ssaCmd.Flags().Bool("only-unstructured", false, "Print only functions that are not fully structured")
	RootCmd.AddCommand(ssaCmd)
}
