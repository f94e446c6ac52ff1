package migration

import (
	"context"
	"fmt"
	"os"
	"time"

	"hqe/internal/config"

	"github.com/fatih/color"
	"github.com/jmoiron/sqlx"
	"github.com/schollz/progressbar/v3"
)

// Migration is one versioned schema change. Statements must work on both
// sqlite and mysql.
type Migration struct {
	Version int
	Name    string
	Up      []string
	Down    []string
}

// Migrations is the history schema, oldest first
var Migrations = []Migration{
	{
		Version: 1,
		Name:    "create_runs",
		Up: []string{`CREATE TABLE IF NOT EXISTS runs (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			base_url VARCHAR(2048) NOT NULL,
			started_at BIGINT NOT NULL,
			finished_at BIGINT NOT NULL,
			total INTEGER NOT NULL,
			failed INTEGER NOT NULL
		)`},
		Down: []string{`DROP TABLE IF EXISTS runs`},
	},
	{
		Version: 2,
		Name:    "create_case_results",
		Up: []string{`CREATE TABLE IF NOT EXISTS case_results (
			run_id VARCHAR(36) NOT NULL,
			case_id VARCHAR(512) NOT NULL,
			full_name VARCHAR(1024) NOT NULL,
			status VARCHAR(16) NOT NULL,
			kind VARCHAR(64) NOT NULL,
			message TEXT NOT NULL,
			duration_ms BIGINT NOT NULL,
			finished_at BIGINT NOT NULL,
			PRIMARY KEY (run_id, case_id)
		)`},
		Down: []string{`DROP TABLE IF EXISTS case_results`},
	},
	{
		Version: 3,
		Name:    "index_case_results_case_id",
		Up:      []string{`CREATE INDEX idx_case_results_case_id ON case_results (case_id)`},
		Down:    nil, // dropped with the table
	},
}

const createMigrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER NOT NULL PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	applied_at BIGINT NOT NULL
)`

// Migrate applies pending migrations in order and returns how many ran.
// With fresh, every table is dropped first. onApplied may be nil.
func Migrate(ctx context.Context, db *sqlx.DB, fresh bool, onApplied func(Migration)) (int, error) {
	if fresh {
		for i := len(Migrations) - 1; i >= 0; i-- {
			for _, stmt := range Migrations[i].Down {
				if _, err := db.ExecContext(ctx, stmt); err != nil {
					return 0, fmt.Errorf("drop %s: %w", Migrations[i].Name, err)
				}
			}
		}
		if _, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS schema_migrations`); err != nil {
			return 0, fmt.Errorf("drop schema_migrations: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, createMigrationsTable); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	var applied []int
	if err := db.SelectContext(ctx, &applied, `SELECT version FROM schema_migrations`); err != nil {
		return 0, fmt.Errorf("read schema_migrations: %w", err)
	}
	done := make(map[int]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	count := 0
	for _, m := range Migrations {
		if done[m.Version] {
			continue
		}
		if err := apply(ctx, db, m); err != nil {
			return count, err
		}
		count++
		if onApplied != nil {
			onApplied(m)
		}
	}
	return count, nil
}

// apply runs one migration. mysql commits DDL implicitly, so statements are
// not wrapped in a transaction.
func apply(ctx context.Context, db *sqlx.DB, m Migration) error {
	for _, stmt := range m.Up {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
		}
	}
	query := db.Rebind(`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`)
	if _, err := db.ExecContext(ctx, query, m.Version, m.Name, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("record migration %d: %w", m.Version, err)
	}
	return nil
}

// SchemaMigrator implements Migrator for the history database
type SchemaMigrator struct {
	config          *config.Config
	databaseManager *DatabaseManager
}

// NewSchemaMigrator creates a new SchemaMigrator
func NewSchemaMigrator(cfg *config.Config, dbManager *DatabaseManager) *SchemaMigrator {
	return &SchemaMigrator{
		config:          cfg,
		databaseManager: dbManager,
	}
}

// Run migrates the configured history database, showing progress
func (sm *SchemaMigrator) Run(ctx context.Context, fresh bool) error {
	color.Cyan("\n╔════════════════════════════════════════════════════════════╗")
	color.Cyan("║               Migrating History Database                   ║")
	color.Cyan("╚════════════════════════════════════════════════════════════╝\n")

	db, err := sm.databaseManager.Open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	total := len(Migrations)
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription(
			color.CyanString("Migrating: ")+
				color.GreenString("[completed: 0/%d]", total),
		),
		progressbar.OptionSetWidth(50),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        color.CyanString("█"),
			SaucerHead:    color.CyanString("█"),
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(os.Stderr, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)

	startTime := time.Now()
	completed := 0
	count, err := Migrate(ctx, db, fresh, func(m Migration) {
		completed++
		bar.Set(completed)
		bar.Describe(color.CyanString("Migrating: ") +
			color.GreenString("[completed: %d/%d]", completed, total))
	})
	bar.Finish()

	fmt.Print("\n")
	if err != nil {
		color.Red("✗ Migration failed: %v\n", err)
		return fmt.Errorf("migration failed: %w", err)
	}
	if count == 0 {
		color.Green("✓ History database is up to date\n")
	} else {
		color.Green("✓ Applied %d migration(s)\n", count)
	}
	color.White("Duration: %s\n", time.Since(startTime).Round(time.Millisecond))
	return nil
}
