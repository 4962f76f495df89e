// Package cmd provides CLI commands for the mbud tool.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"gopkg.in/yaml.v3"

	"github.com/meetingbuddy/mbud/config"
	"github.com/meetingbuddy/mbud/pkg/db"
	"github.com/meetingbuddy/mbud/pkg/diarize"
	"github.com/meetingbuddy/mbud/pkg/logging"
	"github.com/meetingbuddy/mbud/pkg/store"
	"github.com/meetingbuddy/mbud/pkg/store/postgres"
	"github.com/meetingbuddy/mbud/pkg/store/sqlite"
)

// newLogger builds the command logger from the loaded configuration. Logs go
// to stderr so command results on stdout stay machine-readable.
func newLogger(cfg *config.CLIConfig) logging.Logger {
	level := logging.Level(cfg.Logging.Level)
	if cfg.Debug {
		level = logging.LevelDebug
	}
	return logging.NewLogger(&logging.Config{
		Level:       level,
		ServiceName: "mbud",
		JSONFormat:  cfg.Logging.JSON,
		Output:      os.Stderr,
	})
}

// openStore opens the configured persistence backend. The caller owns the
// returned store and must Close it.
func openStore(ctx context.Context, cfg *config.CLIConfig, logger logging.Logger) (store.Store, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverPostgres:
		pool, err := connectToDatabase(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return postgres.New(pool, logger), nil
	default:
		return sqlite.Open(cfg.Storage.SQLitePath, logger)
	}
}

// connectToDatabase builds the pgx pool for the postgres backend. DB_* env
// variables win over the config file, matching the precedence everywhere
// else in the configuration.
func connectToDatabase(ctx context.Context, cfg *config.CLIConfig) (*pgxpool.Pool, error) {
	return db.Connect(ctx, databaseConfig(cfg))
}

// databaseConfig merges the config file's postgres section under the DB_*
// environment overlay: defaults, then file, then environment.
func databaseConfig(cfg *config.CLIConfig) *db.Config {
	dbCfg := db.DefaultConfig()

	if pg := cfg.Storage.Postgres; pg != nil {
		if pg.Host != "" {
			dbCfg.Host = pg.Host
		}
		if pg.Port != 0 {
			dbCfg.Port = pg.Port
		}
		if pg.Database != "" {
			dbCfg.Database = pg.Database
		}
		if pg.User != "" {
			dbCfg.User = pg.User
		}
		if pg.SSLMode != "" {
			dbCfg.SSLMode = pg.SSLMode
		}
	}

	dbCfg.ApplyEnv()
	return dbCfg
}

// newService builds the job orchestrator for one command invocation.
// One-shot commands pass nil metrics; only watch mode serves an endpoint.
func newService(st store.Store, cfg *config.CLIConfig, logger logging.Logger, metrics *diarize.Metrics) *diarize.Service {
	launcher := diarize.NewEngineLauncher(cfg.Engine.Python, cfg.Engine.Script, logger)
	return diarize.NewService(st, launcher, nil, diarize.ServiceConfig{
		DataDir: cfg.DataDir,
		Engine:  engineOptions(cfg),
		Timeout: cfg.Engine.Timeout,
		Logger:  logger,
		Metrics: metrics,
	})
}

// engineOptions maps the configured engine defaults onto job options.
func engineOptions(cfg *config.CLIConfig) diarize.Options {
	return diarize.Options{
		Device:           cfg.Engine.Device,
		WhisperModel:     cfg.Engine.WhisperModel,
		BatchSize:        cfg.Engine.BatchSize,
		Language:         cfg.Engine.Language,
		DisableStem:      cfg.Engine.DisableStem,
		SuppressNumerals: cfg.Engine.SuppressNumerals,
		MinSpeakers:      cfg.Engine.MinSpeakers,
		MaxSpeakers:      cfg.Engine.MaxSpeakers,
		LogLevel:         cfg.Engine.LogLevel,
	}
}

// resolveOutputFormat applies a per-command format flag over the configured
// default.
func resolveOutputFormat(cfg *config.CLIConfig, override string) (config.OutputFormat, error) {
	format := cfg.OutputFormat
	if override != "" {
		format = config.OutputFormat(override)
	}
	if !format.IsValid() {
		return "", fmt.Errorf("invalid output format: %s (must be text, json, or yaml)", format)
	}
	return format, nil
}

// outputJSON writes v to stdout as indented JSON.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputYAML writes v to stdout as YAML.
func outputYAML(v interface{}) error {
	enc := yaml.NewEncoder(os.Stdout)
	return enc.Encode(v)
}

// drainJobs waits for background jobs to finish before the process exits.
// Interrupting the wait leaves the meeting in processing; the job's outcome
// is lost with the process.
func drainJobs(ctx context.Context, svc *diarize.Service, logger logging.Logger) {
	if svc.ActiveJobs() == 0 {
		return
	}
	fmt.Fprintln(os.Stderr, "Waiting for diarization to finish (Ctrl-C abandons the job)...")
	if err := svc.Drain(ctx); err != nil {
		logger.Warn("exiting with jobs still running", logging.Err(err))
	}
}

// formatClock renders a millisecond offset as H:MM:SS or M:SS.
func formatClock(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	total := ms / 1000
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// formatTimePtr renders an optional timestamp for terminal display.
func formatTimePtr(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// statusColor wraps a meeting status in an ANSI color for terminal display.
func statusColor(status store.Status) string {
	switch status {
	case store.StatusDone:
		return fmt.Sprintf("\033[32m%s\033[0m", status)
	case store.StatusFailed:
		return fmt.Sprintf("\033[31m%s\033[0m", status)
	case store.StatusProcessing:
		return fmt.Sprintf("\033[33m%s\033[0m", status)
	default:
		return string(status)
	}
}

// truncateString truncates a string to maxLen, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
