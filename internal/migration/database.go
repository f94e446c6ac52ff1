package migration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"hqe/internal/config"
	"hqe/internal/errs"
	"hqe/internal/storage"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

// DatabaseManager makes sure the history database exists before it is opened
type DatabaseManager struct {
	config *config.Config
}

// NewDatabaseManager creates a new DatabaseManager
func NewDatabaseManager(cfg *config.Config) *DatabaseManager {
	return &DatabaseManager{config: cfg}
}

// Enabled reports whether a history database is configured
func (dm *DatabaseManager) Enabled() bool {
	return dm.config.HistoryDSN != ""
}

// Open creates the database if needed and connects to it.
func (dm *DatabaseManager) Open(ctx context.Context) (*sqlx.DB, error) {
	if !dm.Enabled() {
		return nil, errs.New(errs.Configuration, "no history database configured (set history_dsn or HQE_HISTORY_DSN)")
	}
	dsn, err := storage.ParseDSN(dm.config.HistoryDSN, dm.config.ProjectPath)
	if err != nil {
		return nil, err
	}

	switch dsn.Driver {
	case "sqlite3":
		if path := dsn.Path(); path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return nil, fmt.Errorf("create history dir: %w", err)
			}
		}
	case "mysql":
		if err := dm.ensureMySQLDatabase(ctx, dsn.Source); err != nil {
			return nil, err
		}
	}
	return storage.OpenDB(ctx, dsn)
}

// ensureMySQLDatabase connects to the server without a database and creates
// the one named in the DSN when it does not exist yet.
func (dm *DatabaseManager) ensureMySQLDatabase(ctx context.Context, source string) error {
	mcfg, err := mysql.ParseDSN(source)
	if err != nil {
		return errs.Wrap(errs.Configuration, "invalid mysql dsn", err)
	}
	dbName := mcfg.DBName
	if dbName == "" {
		return errs.New(errs.Configuration, "mysql dsn must name a database")
	}
	mcfg.DBName = ""

	db, err := sqlx.ConnectContext(ctx, "mysql", mcfg.FormatDSN())
	if err != nil {
		return fmt.Errorf("failed to connect to database server: %w", err)
	}
	defer db.Close()

	exists, err := dm.databaseExists(ctx, db, dbName)
	if err != nil {
		return fmt.Errorf("failed to check database %s: %w", dbName, err)
	}
	if exists {
		return nil
	}
	if err := dm.createDatabase(ctx, db, dbName); err != nil {
		return fmt.Errorf("failed to create database %s: %w", dbName, err)
	}
	return nil
}

// databaseExists checks if a database exists
func (dm *DatabaseManager) databaseExists(ctx context.Context, db *sqlx.DB, dbName string) (bool, error) {
	var exists bool
	query := "SELECT EXISTS(SELECT SCHEMA_NAME FROM INFORMATION_SCHEMA.SCHEMATA WHERE SCHEMA_NAME = ?)"
	err := db.QueryRowxContext(ctx, query, dbName).Scan(&exists)
	return exists, err
}

// createDatabase creates a new database
func (dm *DatabaseManager) createDatabase(ctx context.Context, db *sqlx.DB, dbName string) error {
	if !isValidDatabaseName(dbName) {
		return fmt.Errorf("invalid database name: %s", dbName)
	}
	_, err := db.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", dbName))
	return err
}

// isValidDatabaseName allows letters, digits, underscores and dashes only
func isValidDatabaseName(name string) bool {
	if len(name) == 0 || len(name) > 64 {
		return false
	}
	return strings.IndexFunc(name, func(r rune) bool {
		return !(r == '_' || r == '-' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
	}) < 0
}
