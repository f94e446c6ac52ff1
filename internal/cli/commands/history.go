package commands

import (
	"hqe/internal/config"
	"hqe/internal/migration"
	"hqe/internal/storage"
	"hqe/internal/ui"

	"github.com/spf13/cobra"
)

// HistoryCommand handles the history command
type HistoryCommand struct {
	config    *config.Config
	dbManager *migration.DatabaseManager
	formatter *ui.Formatter
}

// NewHistoryCommand creates a new HistoryCommand
func NewHistoryCommand(cfg *config.Config, dbManager *migration.DatabaseManager, formatter *ui.Formatter) *HistoryCommand {
	return &HistoryCommand{
		config:    cfg,
		dbManager: dbManager,
		formatter: formatter,
	}
}

// Execute runs the command
func (hc *HistoryCommand) Execute(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	db, err := hc.dbManager.Open(ctx)
	if err != nil {
		return err
	}
	history := storage.NewHistoryStore(db)
	defer history.Close()

	runs, err := history.Runs(ctx, hc.config.Flags.HistoryLimit)
	if err != nil {
		return err
	}
	flaky, err := history.Flaky(ctx)
	if err != nil {
		return err
	}
	hc.formatter.PrintHistory(runs, flaky)
	return nil
}
