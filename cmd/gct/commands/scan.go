package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-control-tree/internal/config"
	"github.com/l3aro/go-control-tree/internal/log"
	"github.com/l3aro/go-control-tree/internal/scanner"
	"github.com/l3aro/go-control-tree/pkg/batch"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan [dir]",
	Short: "Analyze every Go file under a directory",
	Long: `Finds the Go files under dir (default: current directory), honouring
.gctignore files, and analyzes all their functions concurrently. A summary
of structured, unstructured and failed functions is printed to stderr.`,
	Args: cobra.RangeArgs(0, 1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) > 0 {
			dir = args[0]
		}

		conf, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := newLogger(cmd, conf)

		opts := scanner.DefaultOptions()
		opts.SkipTests = conf.SkipTests
		opts.SkipGenerated = conf.SkipGenerated
		files, err := scanner.New(opts).Scan(dir)
		if err != nil {
			return err
		}
		logger.Debug("scanned directory", "dir", dir, "files", len(files))

		jobs, failed := batch.ExtractFiles(cmd.Context(), scanner.Paths(files), conf.Workers)
		for path, err := range failed {
			logger.Warn("extraction failed", "file", path, "error", err)
		}

		base, err := filepath.Abs(dir)
		if err != nil {
			return err
		}
		return runBatch(cmd, conf, logger, jobs, func(r batch.Result) string {
			return sourceName(base, r.Tree.File, r.Job.Name)
		})
	},
}

// runBatch analyzes jobs, prints the selected trees and the summary, and
// stores the reports when asked to.
func runBatch(cmd *cobra.Command, conf *config.Config, logger log.Logger, jobs []batch.Job, nameOf func(batch.Result) string) error {
	opts := batch.Options{
		Workers:  conf.Workers,
		Analysis: conf.AnalysisOptions(logger),
		Logger:   logger,
	}
	if conf.CacheSize > 0 {
		opts.Cache = batch.NewTreeCache(conf.CacheSize)
	}

	spinner := log.NewProgressSpinner(fmt.Sprintf("analyzing %d functions", len(jobs)))
	spinner.Start()
	results, err := batch.Run(cmd.Context(), jobs, opts)
	spinner.Stop()
	if err != nil {
		return err
	}

	onlyUnstructured, _ := cmd.Flags().GetBool("only-unstructured")
	var items []analyzed
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		if onlyUnstructured && r.Tree.IsStructured() {
			continue
		}
		items = append(items, analyzed{name: nameOf(r), tree: r.Tree})
	}

	if save, _ := cmd.Flags().GetBool("store"); save && len(items) > 0 {
		if err := storeReports(conf, items); err != nil {
			return fmt.Errorf("storing reports: %w", err)
		}
	}
	if err := render(cmd.OutOrStdout(), conf.OutputFormat, items); err != nil {
		return err
	}

	s := batch.Summarize(results)
	fmt.Fprintf(cmd.ErrOrStderr(), "%d functions: %d structured, %d unstructured, %d failed\n",
		s.Total, s.Structured, s.Unstructured, s.Failed)
	if opts.Cache != nil {
		st := opts.Cache.Stats()
		logger.Debug("tree cache", "entries", st.Length, "hit_rate", fmt.Sprintf("%.2f", st.HitRate()))
	}
	return nil
}

func init() {
	scanCmd.Flags().Bool("store", false, "Save the reports in the report store")
	scanCmd.Flags().Bool("only-unstructured", false, "Print only functions that are not fully structured")
	RootCmd.AddCommand(scanCmd)
}
