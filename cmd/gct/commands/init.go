package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/l3aro/go-control-tree/internal/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file interactively",
	Long: `Guides you through the gct settings step by step and writes them to the
global (~/.gct/config.yaml) or project (./.gct/config.yaml) config file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit(cmd)
	},
}

func runInit(cmd *cobra.Command) error {
	cfg := config.DefaultConfig()

	// === SECTION 1: Analysis ===
	format := string(cfg.OutputFormat)
	prune := cfg.PruneUnreachable
	checkInvariants := cfg.CheckInvariants
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Output format").
				Description("How analyze and scan print control trees").
				Options(
					huh.NewOption("Indented text", string(config.FormatText)),
					huh.NewOption("JSON", string(config.FormatJSON)),
					huh.NewOption("YAML", string(config.FormatYAML)),
					huh.NewOption("Graphviz DOT", string(config.FormatDOT)),
				).
				Value(&format),
			huh.NewConfirm().
				Title("Unreachable blocks").
				Description("Prune blocks the entry cannot reach instead of rejecting the function?").
				Affirmative("Prune").
				Negative("Reject").
				Value(&prune),
			huh.NewConfirm().
				Title("Invariant checks").
				Description("Verify block coverage after every reduction step? (slower)").
				Value(&checkInvariants),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	// === SECTION 2: Scanning ===
	workers := strconv.Itoa(cfg.Workers)
	skipTests := cfg.SkipTests
	storePath := cfg.StorePath
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Concurrent analyses for scan (0: one per CPU)").
				Placeholder("0").
				Validate(validateCount).
				Value(&workers),
			huh.NewConfirm().
				Title("Skip _test.go files when scanning?").
				Value(&skipTests),
			huh.NewInput().
				Title("Report store directory").
				Placeholder(".gct/reports").
				Value(&storePath),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	// === SECTION 3: Config Location ===
	var saveLocationChoice string
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Save Configuration").
				Description("Where to save the configuration file?").
				Options(
					huh.NewOption("Project (./.gct/config.yaml)", "project"),
					huh.NewOption("Global (~/.gct/config.yaml)", "global"),
				).
				Value(&saveLocationChoice),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	configPath := config.ProjectConfigFilePath()
	if saveLocationChoice == "global" {
		configPath = config.GlobalConfigFilePath()
	}

	if _, err := os.Stat(configPath); err == nil {
		var overwrite bool
		form = huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Config file exists").
					Description(fmt.Sprintf("Overwrite existing config at %s?", configPath)).
					Affirmative("Overwrite").
					Negative("Cancel").
					Value(&overwrite),
			),
		)
		if err := form.Run(); err != nil {
			return fmt.Errorf("interactive prompt failed: %w", err)
		}
		if !overwrite {
			fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
			return nil
		}
	}

	// === Build config struct ===
	cfg.OutputFormat = config.OutputFormat(format)
	cfg.PruneUnreachable = prune
	cfg.CheckInvariants = checkInvariants
	cfg.Workers, _ = strconv.Atoi(workers)
	cfg.SkipTests = skipTests
	if storePath != "" {
		cfg.StorePath = storePath
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "\n=== Configuration Preview ===")
	fmt.Fprintf(out, "Config path: %s\n", configPath)
	fmt.Fprintf(out, "Output format: %s\n", cfg.OutputFormat)
	fmt.Fprintf(out, "Prune unreachable: %t\n", cfg.PruneUnreachable)
	fmt.Fprintf(out, "Check invariants: %t\n", cfg.CheckInvariants)
	fmt.Fprintf(out, "Workers: %d\n", cfg.Workers)
	fmt.Fprintf(out, "Skip tests: %t\n", cfg.SkipTests)
	fmt.Fprintf(out, "Store path: %s\n", cfg.StorePath)
	fmt.Fprintln(out, "================================")

	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	// Read it back the way every other command will
	if _, err := config.LoadFromFile(configPath); err != nil {
		return fmt.Errorf("loading saved config: %w", err)
	}
	absPath, _ := filepath.Abs(configPath)
	fmt.Fprintf(out, "Configuration saved to: %s\n", absPath)
	return nil
}

func validateCount(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("not a number: %s", s)
	}
	if n < 0 {
		return fmt.Errorf("must be zero or more")
	}
	return nil
}

func init() {
	RootCmd.AddCommand(initCmd)
}
