package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-control-tree/internal/config"
	"github.com/l3aro/go-control-tree/pkg/store"
	"github.com/l3aro/go-control-tree/pkg/structural"
)

// showCmd represents the show command
var showCmd = &cobra.Command{
	Use:   "show [function]",
	Short: "Print reports kept in the report store",
	Long: `Prints the stored report of a function, or lists every stored report
when no function is given. Functions from Go sources are stored as
"path:function"; SSA functions under their qualified name.`,
	Args: cobra.RangeArgs(0, 1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		st, err := store.Open(conf.StorePath, store.Options{ReadOnly: true})
		if err != nil {
			return err
		}
		defer st.Close()

		list, _ := cmd.Flags().GetBool("list")
		if list || len(args) == 0 {
			reports, err := st.List()
			if err != nil {
				return err
			}
			if conf.OutputFormat == config.FormatText {
				for _, r := range reports {
					fmt.Fprintln(cmd.OutOrStdout(), summaryLine(r))
				}
				return nil
			}
			return renderReports(cmd.OutOrStdout(), conf.OutputFormat, reports)
		}

		var r *structural.Report
		if fp, _ := cmd.Flags().GetBool("fingerprint"); fp {
			r, err = st.ByFingerprint(args[0])
		} else {
			r, err = st.Get(args[0])
		}
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no stored report for %q (store one with analyze --store)", args[0])
		}
		if err != nil {
			return err
		}
		return renderReports(cmd.OutOrStdout(), conf.OutputFormat, []*structural.Report{r})
	},
}

func summaryLine(r *structural.Report) string {
	status := "structured"
	if !r.Structured {
		status = "unstructured"
	}
	return fmt.Sprintf("%-12s %4d blocks %3d removed  %s", status, r.Stats.Blocks, r.Stats.Removed, r.FunctionName)
}

func init() {
	showCmd.Flags().BoolP("list", "l", false, "List all stored reports")
	showCmd.Flags().Bool("fingerprint", false, "Look the argument up as a CFG fingerprint")
	RootCmd.AddCommand(showCmd)
}
