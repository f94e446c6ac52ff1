package migration

import (
	"context"
	"path/filepath"
	"testing"

	"hqe/internal/config"
	"hqe/internal/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DatabaseManager {
	t.Helper()
	cfg := config.New()
	cfg.ProjectPath = t.TempDir()
	cfg.HistoryDSN = "sqlite3://.hqe/history.db"
	return NewDatabaseManager(cfg)
}

func TestMigrate(t *testing.T) {
	ctx := context.Background()
	dm := openTestDB(t)
	db, err := dm.Open(ctx)
	require.NoError(t, err)
	defer db.Close()

	var names []string
	count, err := Migrate(ctx, db, false, func(m Migration) { names = append(names, m.Name) })
	require.NoError(t, err)
	assert.Equal(t, len(Migrations), count)
	assert.Equal(t, []string{"create_runs", "create_case_results", "index_case_results_case_id"}, names)

	count, err = Migrate(ctx, db, false, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	_, err = db.ExecContext(ctx, `INSERT INTO runs (id, base_url, started_at, finished_at, total, failed) VALUES ('r1', 'https://horadoqa.com.br', 1, 2, 1, 0)`)
	require.NoError(t, err)

	count, err = Migrate(ctx, db, true, nil)
	require.NoError(t, err)
	assert.Equal(t, len(Migrations), count)

	var runs int
	require.NoError(t, db.GetContext(ctx, &runs, `SELECT COUNT(*) FROM runs`))
	assert.Equal(t, 0, runs)
}

func TestDatabaseManager_CreatesSqliteDir(t *testing.T) {
	dm := openTestDB(t)
	db, err := dm.Open(context.Background())
	require.NoError(t, err)
	require.NoError(t, db.Close())
	assert.FileExists(t, filepath.Join(dm.config.ProjectPath, ".hqe", "history.db"))
}

func TestDatabaseManager_Disabled(t *testing.T) {
	dm := NewDatabaseManager(config.New())
	assert.False(t, dm.Enabled())
	_, err := dm.Open(context.Background())
	require.Error(t, err)
	assert.Equal(t, errs.Configuration, errs.KindOf(err))
}

func TestDatabaseManager_BadScheme(t *testing.T) {
	cfg := config.New()
	cfg.HistoryDSN = "postgres://localhost/hqe"
	_, err := NewDatabaseManager(cfg).Open(context.Background())
	require.Error(t, err)
	assert.Equal(t, errs.Configuration, errs.KindOf(err))
}

func TestIsValidDatabaseName(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"hqe_history", true},
		{"hqe-history-2", true},
		{"", false},
		{"hqe`; DROP", false},
		{"a b", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, isValidDatabaseName(tt.name))
		})
	}
}
