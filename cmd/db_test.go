package cmd

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetingbuddy/mbud/config"
	"github.com/meetingbuddy/mbud/pkg/db"
)

// createDbTestDeps returns deps whose database connection always fails with
// the given error.
func createDbTestDeps(connectErr error) *DbCommandDeps {
	cfg := mockConfig()
	return &DbCommandDeps{
		Config: cfg,
		LoadConfig: func() (*config.CLIConfig, error) {
			return cfg, nil
		},
		ConnectToDB: func(ctx context.Context, _ *config.CLIConfig) (*pgxpool.Pool, error) {
			return nil, connectErr
		},
	}
}

func TestNewDbCommand(t *testing.T) {
	cmd := NewDbCommand(nil)
	require.NotNil(t, cmd)

	assert.Equal(t, "db", cmd.Name())
	assert.Contains(t, cmd.Aliases, "database")
	assert.Contains(t, cmd.Aliases, "migrations")
	assert.NotEmpty(t, cmd.Long)

	assert.NotNil(t, cmd.PersistentFlags().Lookup("migrations"))

	subcommands := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		subcommands[sub.Name()] = true
	}
	assert.True(t, subcommands["migrate"], "db command should have migrate subcommand")
	assert.True(t, subcommands["status"], "db command should have status subcommand")
}

func TestDbMigrateCommand_Flags(t *testing.T) {
	cmd := newDbMigrateCommand(nil)

	assert.NotNil(t, cmd.Flags().Lookup("dry-run"))
	assert.NotNil(t, cmd.Flags().Lookup("target"))
	assert.NotEmpty(t, cmd.Example)
}

func TestDbStatusCommand_Flags(t *testing.T) {
	cmd := newDbStatusCommand(nil)

	assert.NotNil(t, cmd.Flags().Lookup("output"))
	assert.NotEmpty(t, cmd.Example)
}

func TestMigrationSource(t *testing.T) {
	oldDir := dbMigrationDir
	defer func() { dbMigrationDir = oldDir }()

	t.Run("embedded by default", func(t *testing.T) {
		dbMigrationDir = ""

		matches, err := fs.Glob(migrationSource(), "*.sql")
		require.NoError(t, err)
		assert.Contains(t, matches, "0001_init.sql")
	})

	t.Run("directory override", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "0002_custom.sql"), []byte("SELECT 1;"), 0o644))
		dbMigrationDir = dir

		matches, err := fs.Glob(migrationSource(), "*.sql")
		require.NoError(t, err)
		assert.Equal(t, []string{"0002_custom.sql"}, matches)
	})
}

func TestRunDbMigrate_ConnectFailure(t *testing.T) {
	deps := createDbTestDeps(errors.New("connection refused"))

	err := runDbMigrate(context.Background(), deps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connecting to database")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestRunDbStatus_ConnectFailure(t *testing.T) {
	deps := createDbTestDeps(errors.New("connection refused"))

	err := runDbStatus(context.Background(), deps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connecting to database")
}

func TestOutputMigrationStatusText_Empty(t *testing.T) {
	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	err := outputMigrationStatusText(&db.MigrationStatus{})

	w.Close()
	os.Stdout = oldStdout

	require.NoError(t, err)

	var buf bytes.Buffer
	buf.ReadFrom(r)
	assert.Contains(t, buf.String(), "No migrations found.")
}

func TestOutputMigrationStatusText_Sections(t *testing.T) {
	appliedAt := time.Date(2026, 8, 1, 10, 30, 0, 0, time.UTC)
	status := &db.MigrationStatus{
		Applied: []db.MigrationStatusEntry{
			{Version: "0001", Name: "init", AppliedAt: &appliedAt},
		},
		Pending: []db.MigrationStatusEntry{
			{Version: "0002", Name: "add_index"},
		},
	}

	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	err := outputMigrationStatusText(status)

	w.Close()
	os.Stdout = oldStdout

	require.NoError(t, err)

	var buf bytes.Buffer
	buf.ReadFrom(r)
	output := buf.String()

	assert.Contains(t, output, "Applied Migrations (1):")
	assert.Contains(t, output, "0001")
	assert.Contains(t, output, "2026-08-01 10:30:00")
	assert.Contains(t, output, "Pending Migrations (1):")
	assert.Contains(t, output, "add_index")
	assert.Contains(t, output, "Summary: 1 applied, 1 pending")
	assert.NotContains(t, output, "drift")
}

func TestOutputMigrationStatusText_Drift(t *testing.T) {
	appliedAt := time.Date(2026, 8, 1, 10, 30, 0, 0, time.UTC)
	status := &db.MigrationStatus{
		Drift: []db.MigrationStatusEntry{
			{Version: "0009", Name: "0009.sql", AppliedAt: &appliedAt},
		},
	}

	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	err := outputMigrationStatusText(status)

	w.Close()
	os.Stdout = oldStdout

	require.NoError(t, err)

	var buf bytes.Buffer
	buf.ReadFrom(r)
	output := buf.String()

	assert.Contains(t, output, "Drift (1) - applied but file missing:")
	assert.Contains(t, output, "0009")
	assert.Contains(t, output, "1 drift")
}

func TestDefaultDbDeps(t *testing.T) {
	deps := DefaultDbDeps()
	require.NotNil(t, deps)
	assert.NotNil(t, deps.LoadConfig)
	assert.NotNil(t, deps.ConnectToDB)
}
