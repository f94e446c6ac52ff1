package commands

import (
	"fmt"
	"os"

	"hqe/internal/browser"
	"hqe/internal/config"
	"hqe/internal/ctxlog"
	"hqe/internal/discovery"
	"hqe/internal/errs"
	"hqe/internal/events"
	"hqe/internal/execution"
	"hqe/internal/migration"
	"hqe/internal/report"
	"hqe/internal/storage"
	"hqe/internal/support"
	"hqe/internal/ui"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// RunCommand handles the run command
type RunCommand struct {
	config    *config.Config
	scanner   *discovery.Scanner
	filter    *discovery.Filter
	parser    *discovery.Parser
	storage   storage.Storage
	formatter *ui.Formatter
	dbManager *migration.DatabaseManager
	migrator  migration.Migrator
	viewer    ui.Viewer
}

// NewRunCommand creates a new RunCommand
func NewRunCommand(
	cfg *config.Config,
	scanner *discovery.Scanner,
	filter *discovery.Filter,
	parser *discovery.Parser,
	st storage.Storage,
	formatter *ui.Formatter,
	dbManager *migration.DatabaseManager,
	migrator migration.Migrator,
	viewer ui.Viewer,
) *RunCommand {
	return &RunCommand{
		config:    cfg,
		scanner:   scanner,
		filter:    filter,
		parser:    parser,
		storage:   st,
		formatter: formatter,
		dbManager: dbManager,
		migrator:  migrator,
		viewer:    viewer,
	}
}

// Execute runs the command. It returns errs.ErrTestsFailed when any test
// case failed so the process exits non-zero.
func (rc *RunCommand) Execute(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := ctxlog.FromContext(ctx)

	// Reporting first: an unwritable results dir aborts before any test case
	bus := events.NewBus()
	allure, err := report.Register(bus, rc.config)
	if err != nil {
		return err
	}
	defer allure.Unregister()

	metrics := bus.On(report.NewMetrics(rc.config.GetMetricsFile()))
	defer metrics.Unregister()

	if rc.dbManager.Enabled() {
		if rc.config.Flags.Migrate {
			if err := rc.migrator.Run(ctx, rc.config.Flags.Fresh); err != nil {
				return err
			}
			fmt.Println()
		}
		db, err := rc.dbManager.Open(ctx)
		if err != nil {
			return err
		}
		history := storage.NewHistoryStore(db)
		defer history.Close()
		defer bus.On(history).Unregister()
	}

	// Discover test cases
	files, err := rc.scanner.Scan(rc.config.GetSpecPath())
	if err != nil {
		return errs.Wrap(errs.Configuration, "failed to discover suites", err)
	}
	files = rc.filter.FilterByName(files, rc.config.Flags.NameFilter)
	cases, err := rc.parser.ParseFiles(files)
	if err != nil {
		return errs.Wrap(errs.Configuration, "invalid suite", err)
	}
	cases = rc.filter.FilterCases(cases, rc.config.Flags.Grep, rc.config.Flags.Tags)
	if len(cases) == 0 {
		color.Yellow("No test cases to execute")
		return nil
	}

	// Support is parsed and applied before the browser starts
	sup, err := support.Init(ctx, rc.config)
	if err != nil {
		return err
	}
	cases, err = sup.PrepareAll(cases)
	if err != nil {
		return err
	}

	driver, err := browser.New(rc.config)
	if err != nil {
		return errs.Wrap(errs.Configuration, "could not launch the browser", err)
	}
	defer func() {
		if err := driver.Close(); err != nil {
			logger.Warn("failed to close browser", "error", err)
		}
	}()
	sup.Attach(driver)

	runner := execution.NewRunner(rc.config, sup.Driver, bus)
	pool := execution.NewWorkerPool(rc.config, runner, bus)
	pool.SetProgress(ui.NewProgressBar(len(cases), os.Stderr))

	var executor execution.Executor = pool
	logger.Debug("executing test cases", "cases", len(cases), "workers", rc.config.Workers, "listeners", bus.Len())
	results, duration, err := executor.Execute(ctx, cases)
	if err != nil {
		return err
	}

	if err := rc.storage.Save(results, duration, rc.config.Workers); err != nil {
		return fmt.Errorf("failed to save test results: %w", err)
	}
	if err := rc.formatter.PrintMetaStats(); err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if !r.Passed() {
			failed++
		}
	}
	logger.Debug("run finished", "cases", len(results), "failed", failed, "duration", duration, "results_dir", rc.config.GetResultsDir())
	if failed == 0 {
		return nil
	}

	if rc.config.Flags.OpenFailures {
		output, err := rc.storage.Load()
		if err != nil {
			return err
		}
		if err := rc.viewer.View(output); err != nil {
			return err
		}
	}
	return errs.ErrTestsFailed
}
