package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"hqe/internal/cli"
	"hqe/internal/cli/commands"
	"hqe/internal/config"
	"hqe/internal/errs"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	// Create root command
	rootCmd := &cobra.Command{
		Use:           "hqe",
		Short:         "Browser end-to-end suites for horadoqa.com.br",
		Long:          `Runs browser end-to-end suites against a site under test and writes Allure-compatible results. The process exits 0 only when every test case passed.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Filled in by the root pre-run hook once flags are parsed
	cfg := config.New()

	var flags cli.Flags
	cmds := commands.NewCommands(cfg)
	cmds.Register(rootCmd, &flags)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		// Failed test cases were already reported by the summary
		if !errors.Is(err, errs.ErrTestsFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
