package commands

import (
	"hqe/internal/config"
	"hqe/internal/discovery"
	"hqe/internal/storage"
	"hqe/internal/ui"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// ListCommand handles the list command
type ListCommand struct {
	config    *config.Config
	scanner   *discovery.Scanner
	filter    *discovery.Filter
	parser    *discovery.Parser
	formatter *ui.Formatter
	storage   storage.Storage
}

// NewListCommand creates a new ListCommand
func NewListCommand(
	cfg *config.Config,
	scanner *discovery.Scanner,
	filter *discovery.Filter,
	parser *discovery.Parser,
	formatter *ui.Formatter,
	st storage.Storage,
) *ListCommand {
	return &ListCommand{
		config:    cfg,
		scanner:   scanner,
		filter:    filter,
		parser:    parser,
		formatter: formatter,
		storage:   st,
	}
}

// Execute runs the command
func (lc *ListCommand) Execute(cmd *cobra.Command, args []string) error {
	files, err := lc.scanner.Scan(lc.config.GetSpecPath())
	if err != nil {
		return err
	}
	files = lc.filter.FilterByName(files, lc.config.Flags.NameFilter)

	// Narrow to files that still have test cases after grep/tag filtering
	if lc.config.Flags.Grep != "" || len(lc.config.Flags.Tags) > 0 {
		cases, err := lc.parser.ParseFiles(files)
		if err != nil {
			return err
		}
		keep := make(map[string]bool)
		for _, tc := range lc.filter.FilterCases(cases, lc.config.Flags.Grep, lc.config.Flags.Tags) {
			keep[tc.File] = true
		}
		selected := files[:0]
		for _, f := range files {
			if keep[f] {
				selected = append(selected, f)
			}
		}
		files = selected
	}

	if len(files) == 0 {
		color.Yellow("No suites found")
		return nil
	}

	// Mark files that failed in the last run, when a summary exists
	var failedPaths map[string]struct{}
	if last, err := lc.storage.Load(); err == nil {
		failedPaths = make(map[string]struct{})
		for _, d := range last.Details {
			failedPaths[ui.NormalizedPathKey(lc.config.ProjectPath, d.FilePath)] = struct{}{}
		}
	}
	return lc.formatter.PrintTestList(files, lc.config.Flags.TestCases, failedPaths)
}
