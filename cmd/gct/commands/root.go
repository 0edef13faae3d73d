// Package commands provides the CLI commands for the go-control-tree tool.
package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-control-tree/internal/config"
	"github.com/l3aro/go-control-tree/internal/log"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "gct",
	Short: "go-control-tree - Structural analysis of control flow graphs",
	Long: `go-control-tree reduces control flow graphs to trees of structured regions
(blocks, if/then/else, case, loops) and reports the branches and irreducible
loops that prevent a fully structured form.

Commands:
  analyze     Build the control tree of functions in a Go file or CFG document
  scan        Analyze every Go file under a directory
  ssa         Analyze Go packages through their SSA form
  show        Print reports kept in the report store
  init        Create a configuration file interactively
  version     Print version information

Use "gct [command] --help" for more information about a command.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	flags := RootCmd.PersistentFlags()
	flags.String("config", "", "Config file path (default: ~/.gct/config.yaml and ./.gct/config.yaml)")
	flags.StringP("format", "f", "", "Output format: text, json, yaml or dot")
	flags.BoolP("verbose", "V", false, "Debug logging")
	flags.Bool("json-logs", false, "Log as JSON lines")
	flags.Int("max-iterations", 0, "Bound on reduction steps per function (0: derived from graph size)")
	flags.Bool("strict", false, "Reject graphs with unreachable blocks instead of pruning them")
	flags.Bool("check-invariants", false, "Verify block coverage after every reduction step")
	flags.String("store-path", "", "Report store directory")
}

// loadConfig loads the layered configuration and applies command line
// overrides on top of it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()

	var conf *config.Config
	var err error
	if path, _ := flags.GetString("config"); path != "" {
		conf, err = config.LoadFromFile(path)
	} else {
		conf, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if flags.Changed("format") {
		format, _ := flags.GetString("format")
		conf.OutputFormat = config.OutputFormat(strings.ToLower(format))
	}
	if flags.Changed("verbose") {
		conf.Verbose, _ = flags.GetBool("verbose")
	}
	if flags.Changed("json-logs") {
		conf.JSONLogs, _ = flags.GetBool("json-logs")
	}
	if flags.Changed("max-iterations") {
		conf.MaxIterations, _ = flags.GetInt("max-iterations")
	}
	if flags.Changed("strict") {
		strict, _ := flags.GetBool("strict")
		conf.PruneUnreachable = !strict
	}
	if flags.Changed("check-invariants") {
		conf.CheckInvariants, _ = flags.GetBool("check-invariants")
	}
	if flags.Changed("store-path") {
		conf.StorePath, _ = flags.GetString("store-path")
	}

	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func newLogger(cmd *cobra.Command, conf *config.Config) log.Logger {
	lc := conf.LoggerConfig()
	lc.Output = cmd.ErrOrStderr()
	return log.New(lc)
}
