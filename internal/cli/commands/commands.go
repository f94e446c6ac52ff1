package commands

import (
	"os"

	"hqe/internal/cli"
	"hqe/internal/config"
	"hqe/internal/ctxlog"
	"hqe/internal/discovery"
	"hqe/internal/migration"
	"hqe/internal/storage"
	"hqe/internal/ui"

	"github.com/spf13/cobra"
)

// Commands holds all CLI commands
type Commands struct {
	config *config.Config

	Run      *RunCommand
	List     *ListCommand
	Migrate  *MigrateCommand
	Failures *FailuresCommand
	History  *HistoryCommand
}

// NewCommands creates the command set. cfg is filled in by Register's
// pre-run hook before any command executes.
func NewCommands(cfg *config.Config) *Commands {
	return &Commands{config: cfg}
}

// wire initializes dependencies from the loaded configuration
func (c *Commands) wire() {
	cfg := c.config
	scanner := discovery.NewScanner(cfg.SpecSuffix, cfg.PathsToIgnore)
	filter := discovery.NewFilter()
	parser := discovery.NewParser(cfg.TemplateVars())
	jsonStorage := storage.NewJSONStorage(cfg)
	formatter := ui.NewFormatter(cfg, parser, jsonStorage)
	dbManager := migration.NewDatabaseManager(cfg)
	migrator := migration.NewSchemaMigrator(cfg, dbManager)
	errorViewer := ui.NewErrorViewer(cfg, jsonStorage)

	c.Run = NewRunCommand(cfg, scanner, filter, parser, jsonStorage, formatter, dbManager, migrator, errorViewer)
	c.List = NewListCommand(cfg, scanner, filter, parser, formatter, jsonStorage)
	c.Migrate = NewMigrateCommand(cfg, migrator)
	c.Failures = NewFailuresCommand(cfg, jsonStorage, errorViewer)
	c.History = NewHistoryCommand(cfg, dbManager, formatter)
}

// load builds the configuration from flags, installs the logger and wires
// the commands. The loaded config is not modified afterwards.
func (c *Commands) load(cmd *cobra.Command, flags *cli.Flags) error {
	loaded, err := config.Load(flags.ToConfigFlags())
	if err != nil {
		return err
	}
	*c.config = *loaded

	logger := ctxlog.New(c.config.LogLevel, c.config.LogFormat, os.Stderr)
	cmd.SetContext(ctxlog.WithLogger(cmd.Context(), logger))
	c.wire()
	return nil
}

// Register registers all commands with cobra
func (c *Commands) Register(rootCmd *cobra.Command, flags *cli.Flags) {
	rootCmd.PersistentFlags().StringVar(&flags.ConfigFile, "config", "", "Config file (default: hqe.yaml in the project path)")
	rootCmd.PersistentFlags().StringVar(&flags.ProjectPath, "project", "", "Project directory (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flags.LogFormat, "log-format", "", "Log format: text or json")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return c.load(cmd, flags)
	}

	// Run command
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run browser end-to-end suites",
		Long:  "Discover suite files, run every test case in a real browser and write Allure results",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Run.Execute(cmd, args)
		},
	}
	addSelectionFlags(runCmd, flags)
	runCmd.Flags().IntVarP(&flags.Workers, "workers", "w", 0, "Number of test cases to run in parallel")
	runCmd.Flags().BoolVar(&flags.Bail, "bail", false, "Stop starting test cases after the first failure")
	runCmd.Flags().StringVar(&flags.BaseURL, "base-url", "", "Base URL of the site under test")
	runCmd.Flags().StringVar(&flags.ResultsDir, "results-dir", "", "Directory for Allure result files")
	runCmd.Flags().StringVar(&flags.Driver, "driver", "", "Browser automation driver: playwright or chromedp")
	runCmd.Flags().StringVar(&flags.Browser, "browser", "", "Browser: chromium, firefox or webkit")
	runCmd.Flags().BoolVar(&flags.Headed, "headed", false, "Show the browser window")
	runCmd.Flags().BoolVarP(&flags.Migrate, "migrate", "m", false, "Migrate the history database before running")
	runCmd.Flags().BoolVar(&flags.Fresh, "fresh", false, "With --migrate, drop the history tables first")
	runCmd.Flags().BoolVar(&flags.OpenFailures, "open-failures", false, "Open the failures viewer when the run finishes with failures")
	rootCmd.AddCommand(runCmd)

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List discovered suites",
		Long:  "Scan and list suite files, or their test cases, without running them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.List.Execute(cmd, args)
		},
	}
	addSelectionFlags(listCmd, flags)
	listCmd.Flags().BoolVarP(&flags.TestCases, "test-cases", "c", false, "List test cases instead of suite files")
	rootCmd.AddCommand(listCmd)

	// Migrate command
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the history database schema",
		Long:  "Apply pending migrations to the database named by history_dsn",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Migrate.Execute(cmd, args)
		},
	}
	migrateCmd.Flags().BoolVar(&flags.Fresh, "fresh", false, "Drop the history tables before migrating")
	rootCmd.AddCommand(migrateCmd)

	// Failures command
	failuresCmd := &cobra.Command{
		Use:   "failures",
		Short: "View test failures interactively",
		Long:  "Display test failures from the last run in an interactive viewer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Failures.Execute(cmd, args)
		},
	}
	rootCmd.AddCommand(failuresCmd)

	// History command
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs and flaky test cases",
		Long:  "Read the history database and list recent runs and test cases whose status changed between runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.History.Execute(cmd, args)
		},
	}
	historyCmd.Flags().IntVarP(&flags.HistoryLimit, "limit", "n", 20, "Number of runs to show")
	rootCmd.AddCommand(historyCmd)
}

func addSelectionFlags(cmd *cobra.Command, flags *cli.Flags) {
	cmd.Flags().StringVarP(&flags.SpecPath, "spec", "s", "", "Suite file or folder to run (default: spec_path)")
	cmd.Flags().StringVarP(&flags.NameFilter, "filter", "f", "", "Filter suite files by name pattern (supports wildcards, e.g. '*regression*')")
	cmd.Flags().StringVarP(&flags.Grep, "grep", "g", "", "Only test cases whose full name contains this text")
	cmd.Flags().StringSliceVarP(&flags.Tags, "tag", "t", nil, "Only test cases carrying every given tag")
}
