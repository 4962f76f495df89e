// Package config provides CLI configuration management for the mbud
// command-line tool. It supports loading configuration from YAML files and
// environment variables, with command-line flags overriding both.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// OutputFormat defines the supported output formats for CLI results.
type OutputFormat string

const (
	// OutputFormatText is human-readable plain text output.
	OutputFormatText OutputFormat = "text"
	// OutputFormatJSON is JSON-formatted output for machine processing.
	OutputFormatJSON OutputFormat = "json"
	// OutputFormatYAML is YAML-formatted output for machine processing.
	OutputFormatYAML OutputFormat = "yaml"
)

// Storage driver names.
const (
	StorageDriverSQLite   = "sqlite"
	StorageDriverPostgres = "postgres"
)

// Default configuration values.
const (
	DefaultOutputFormat  = OutputFormatText
	DefaultConfigDir     = ".mbud"
	DefaultConfigFile    = "config.yaml"
	DefaultDatabaseFile  = "mbud.db"
	DefaultEnginePython  = "python3"
	DefaultSettleDelay   = 2 * time.Second
	DefaultLoggingLevel  = "info"
)

// DefaultWatchExtensions are the audio file extensions the watcher picks up.
var DefaultWatchExtensions = []string{".wav", ".mp3", ".m4a", ".flac", ".ogg"}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	// Driver is the backend to use: sqlite (default) or postgres.
	Driver string `yaml:"driver"`

	// SQLitePath is the SQLite database file. Defaults to
	// <config dir>/mbud.db.
	SQLitePath string `yaml:"sqlite_path,omitempty"`

	// Postgres holds connection settings for the postgres driver.
	// DB_* environment variables override these.
	Postgres *PostgresConfig `yaml:"postgres,omitempty"`
}

// PostgresConfig holds PostgreSQL connection settings. The password is never
// stored in the file; set DB_PASSWORD instead.
type PostgresConfig struct {
	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	Database string `yaml:"database,omitempty"`
	User     string `yaml:"user,omitempty"`
	SSLMode  string `yaml:"sslmode,omitempty"`
}

// EngineConfig describes how to invoke the diarization engine. Empty values
// are omitted from the invocation so the engine applies its own defaults.
type EngineConfig struct {
	// Python is the interpreter used to run the engine script.
	Python string `yaml:"python"`

	// Script is the path to the engine entry point.
	Script string `yaml:"script"`

	// Device selects the compute device (for example cuda or cpu).
	Device string `yaml:"device,omitempty"`

	// WhisperModel names the transcription model.
	WhisperModel string `yaml:"whisper_model,omitempty"`

	// BatchSize is the inference batch size; zero means engine default.
	BatchSize int `yaml:"batch_size,omitempty"`

	// Language overrides the engine's language detection.
	Language string `yaml:"language,omitempty"`

	// DisableStem skips source separation before transcription.
	DisableStem bool `yaml:"disable_stem,omitempty"`

	// SuppressNumerals renders numbers as words in the transcript.
	SuppressNumerals bool `yaml:"suppress_numerals,omitempty"`

	// MinSpeakers and MaxSpeakers bound the diarizer's speaker search.
	MinSpeakers int `yaml:"min_speakers,omitempty"`
	MaxSpeakers int `yaml:"max_speakers,omitempty"`

	// LogLevel sets the engine's own log verbosity.
	LogLevel string `yaml:"log_level,omitempty"`

	// Timeout bounds a single engine run; zero means no limit.
	Timeout time.Duration `yaml:"-"`
}

// LoggingConfig controls mbud's own log output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level,omitempty"`

	// JSON switches from console to JSON log lines.
	JSON bool `yaml:"json,omitempty"`
}

// WatchConfig configures the folder watcher.
type WatchConfig struct {
	// Dir is the directory to watch for finished recordings.
	Dir string `yaml:"dir,omitempty"`

	// Extensions limits which files are picked up.
	Extensions []string `yaml:"extensions,omitempty"`

	// SettleDelay is how long a file must stop growing before it is
	// treated as complete.
	SettleDelay time.Duration `yaml:"-"`

	// SpeakerCount seeds rosters for meetings created by the watcher;
	// zero means the standard default.
	SpeakerCount int `yaml:"speaker_count,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint in watch mode.
type MetricsConfig struct {
	// Addr is the listen address (for example :9090). Empty disables the
	// endpoint.
	Addr string `yaml:"addr,omitempty"`
}

// CLIConfig holds the mbud configuration settings.
type CLIConfig struct {
	// DataDir is where meeting outputs are written, one directory per
	// meeting under <data_dir>/meetings/<meeting-id>.
	DataDir string `yaml:"data_dir"`

	// OutputFormat specifies the default output format for commands.
	OutputFormat OutputFormat `yaml:"output_format"`

	// Debug enables verbose debug logging.
	Debug bool `yaml:"debug,omitempty"`

	// Storage selects the persistence backend.
	Storage StorageConfig `yaml:"storage"`

	// Engine describes the diarization engine invocation.
	Engine EngineConfig `yaml:"engine"`

	// Logging controls mbud's log output.
	Logging LoggingConfig `yaml:"logging,omitempty"`

	// Watch configures the folder watcher.
	Watch WatchConfig `yaml:"watch,omitempty"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
}

// DefaultConfig returns a CLIConfig with default values. Paths that depend
// on the config directory are filled in by LoadConfig.
func DefaultConfig() *CLIConfig {
	return &CLIConfig{
		OutputFormat: DefaultOutputFormat,
		Storage: StorageConfig{
			Driver: StorageDriverSQLite,
		},
		Engine: EngineConfig{
			Python: DefaultEnginePython,
		},
		Logging: LoggingConfig{
			Level: DefaultLoggingLevel,
		},
		Watch: WatchConfig{
			SettleDelay: DefaultSettleDelay,
		},
	}
}

// ConfigDir returns the configuration directory path.
// Uses $MBUD_CONFIG_DIR if set, otherwise ~/.mbud
func ConfigDir() (string, error) {
	if dir := os.Getenv("MBUD_CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	return filepath.Join(home, DefaultConfigDir), nil
}

// ConfigPath returns the full path to the configuration file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultConfigFile), nil
}

// LoadConfig loads the mbud configuration.
// Configuration is loaded in this order (later sources override earlier):
//  1. Default values
//  2. Config file (~/.mbud/config.yaml or $MBUD_CONFIG_DIR/config.yaml)
//  3. Environment variables (MBUD_* and DIARIZATION_*)
func LoadConfig() (*CLIConfig, error) {
	cfg := DefaultConfig()

	configDir, err := ConfigDir()
	if err != nil {
		return nil, fmt.Errorf("getting config dir: %w", err)
	}

	configPath := filepath.Join(configDir, DefaultConfigFile)
	if _, err := os.Stat(configPath); err == nil {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	loadFromEnv(cfg)

	// Fill in directory-relative defaults and expand ~ in user paths.
	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Join(configDir, "data")
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = filepath.Join(configDir, DefaultDatabaseFile)
	}
	cfg.DataDir = expandPath(cfg.DataDir)
	cfg.Storage.SQLitePath = expandPath(cfg.Storage.SQLitePath)
	cfg.Engine.Script = expandPath(cfg.Engine.Script)
	cfg.Watch.Dir = expandPath(cfg.Watch.Dir)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(cfg *CLIConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	// Durations are strings in YAML, so engine and watch get temp structs.
	type engineFile struct {
		Python           string `yaml:"python"`
		Script           string `yaml:"script"`
		Device           string `yaml:"device"`
		WhisperModel     string `yaml:"whisper_model"`
		BatchSize        int    `yaml:"batch_size"`
		Language         string `yaml:"language"`
		DisableStem      bool   `yaml:"disable_stem"`
		SuppressNumerals bool   `yaml:"suppress_numerals"`
		MinSpeakers      int    `yaml:"min_speakers"`
		MaxSpeakers      int    `yaml:"max_speakers"`
		LogLevel         string `yaml:"log_level"`
		Timeout          string `yaml:"timeout"`
	}
	type watchFile struct {
		Dir          string   `yaml:"dir"`
		Extensions   []string `yaml:"extensions"`
		SettleDelay  string   `yaml:"settle_delay"`
		SpeakerCount int      `yaml:"speaker_count"`
	}
	type configFile struct {
		DataDir      string        `yaml:"data_dir"`
		OutputFormat OutputFormat  `yaml:"output_format"`
		Debug        bool          `yaml:"debug"`
		Storage      StorageConfig `yaml:"storage"`
		Engine       engineFile    `yaml:"engine"`
		Logging      LoggingConfig `yaml:"logging"`
		Watch        watchFile     `yaml:"watch"`
		Metrics      MetricsConfig `yaml:"metrics"`
	}

	var fileCfg configFile
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	if fileCfg.DataDir != "" {
		cfg.DataDir = fileCfg.DataDir
	}
	if fileCfg.OutputFormat != "" {
		cfg.OutputFormat = fileCfg.OutputFormat
	}
	cfg.Debug = fileCfg.Debug

	if fileCfg.Storage.Driver != "" {
		cfg.Storage.Driver = fileCfg.Storage.Driver
	}
	if fileCfg.Storage.SQLitePath != "" {
		cfg.Storage.SQLitePath = fileCfg.Storage.SQLitePath
	}
	if fileCfg.Storage.Postgres != nil {
		cfg.Storage.Postgres = fileCfg.Storage.Postgres
	}

	if fileCfg.Engine.Python != "" {
		cfg.Engine.Python = fileCfg.Engine.Python
	}
	if fileCfg.Engine.Script != "" {
		cfg.Engine.Script = fileCfg.Engine.Script
	}
	if fileCfg.Engine.Device != "" {
		cfg.Engine.Device = fileCfg.Engine.Device
	}
	if fileCfg.Engine.WhisperModel != "" {
		cfg.Engine.WhisperModel = fileCfg.Engine.WhisperModel
	}
	if fileCfg.Engine.BatchSize != 0 {
		cfg.Engine.BatchSize = fileCfg.Engine.BatchSize
	}
	if fileCfg.Engine.Language != "" {
		cfg.Engine.Language = fileCfg.Engine.Language
	}
	cfg.Engine.DisableStem = fileCfg.Engine.DisableStem
	cfg.Engine.SuppressNumerals = fileCfg.Engine.SuppressNumerals
	if fileCfg.Engine.MinSpeakers != 0 {
		cfg.Engine.MinSpeakers = fileCfg.Engine.MinSpeakers
	}
	if fileCfg.Engine.MaxSpeakers != 0 {
		cfg.Engine.MaxSpeakers = fileCfg.Engine.MaxSpeakers
	}
	if fileCfg.Engine.LogLevel != "" {
		cfg.Engine.LogLevel = fileCfg.Engine.LogLevel
	}
	if fileCfg.Engine.Timeout != "" {
		timeout, err := time.ParseDuration(fileCfg.Engine.Timeout)
		if err != nil {
			return fmt.Errorf("parsing engine timeout: %w", err)
		}
		cfg.Engine.Timeout = timeout
	}

	if fileCfg.Logging.Level != "" {
		cfg.Logging.Level = fileCfg.Logging.Level
	}
	cfg.Logging.JSON = fileCfg.Logging.JSON

	if fileCfg.Watch.Dir != "" {
		cfg.Watch.Dir = fileCfg.Watch.Dir
	}
	if fileCfg.Watch.Extensions != nil {
		cfg.Watch.Extensions = fileCfg.Watch.Extensions
	}
	if fileCfg.Watch.SettleDelay != "" {
		settle, err := time.ParseDuration(fileCfg.Watch.SettleDelay)
		if err != nil {
			return fmt.Errorf("parsing watch settle_delay: %w", err)
		}
		cfg.Watch.SettleDelay = settle
	}
	if fileCfg.Watch.SpeakerCount != 0 {
		cfg.Watch.SpeakerCount = fileCfg.Watch.SpeakerCount
	}

	if fileCfg.Metrics.Addr != "" {
		cfg.Metrics.Addr = fileCfg.Metrics.Addr
	}

	return nil
}

// loadFromEnv overlays environment variables onto the configuration.
func loadFromEnv(cfg *CLIConfig) {
	if v := os.Getenv("MBUD_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("MBUD_OUTPUT_FORMAT"); v != "" {
		cfg.OutputFormat = OutputFormat(v)
	}
	if v := os.Getenv("MBUD_DEBUG"); v == "true" || v == "1" {
		cfg.Debug = true
	}
	if v := os.Getenv("MBUD_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("MBUD_SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("MBUD_ENGINE_PYTHON"); v != "" {
		cfg.Engine.Python = v
	}
	if v := os.Getenv("MBUD_ENGINE_SCRIPT"); v != "" {
		cfg.Engine.Script = v
	}
	if v := os.Getenv("MBUD_ENGINE_DEVICE"); v != "" {
		cfg.Engine.Device = v
	}
	if v := os.Getenv("MBUD_WATCH_DIR"); v != "" {
		cfg.Watch.Dir = v
	}
	if v := os.Getenv("MBUD_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("MBUD_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// The engine honors these itself; mirroring them here keeps
	// `mbud config show` truthful about what a run will use.
	if v := os.Getenv("DIARIZATION_WHISPER_MODEL"); v != "" {
		cfg.Engine.WhisperModel = v
	}
	if v := os.Getenv("DIARIZATION_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.BatchSize = n
		}
	}
	if v := os.Getenv("DIARIZATION_DISABLE_STEM"); v == "1" || v == "true" {
		cfg.Engine.DisableStem = true
	}
	if v := os.Getenv("DIARIZATION_LOG_LEVEL"); v != "" {
		cfg.Engine.LogLevel = v
	}
}

// Validate checks that the configuration is valid.
func (c *CLIConfig) Validate() error {
	if !c.OutputFormat.IsValid() {
		return fmt.Errorf("invalid output_format: %q (must be text, json, or yaml)", c.OutputFormat)
	}

	switch c.Storage.Driver {
	case StorageDriverSQLite, StorageDriverPostgres:
	default:
		return fmt.Errorf("invalid storage driver: %q (must be sqlite or postgres)", c.Storage.Driver)
	}

	if c.Engine.Python == "" {
		return fmt.Errorf("engine python interpreter is required")
	}
	if c.Engine.BatchSize < 0 {
		return fmt.Errorf("engine batch_size must not be negative")
	}
	if c.Engine.MinSpeakers < 0 || c.Engine.MaxSpeakers < 0 {
		return fmt.Errorf("speaker bounds must not be negative")
	}
	if c.Engine.MinSpeakers > 0 && c.Engine.MaxSpeakers > 0 && c.Engine.MaxSpeakers < c.Engine.MinSpeakers {
		return fmt.Errorf("engine max_speakers (%d) must be >= min_speakers (%d)",
			c.Engine.MaxSpeakers, c.Engine.MinSpeakers)
	}

	if c.Watch.SettleDelay < 0 {
		return fmt.Errorf("watch settle_delay must not be negative")
	}

	return nil
}

// MeetingDir returns the output directory for one meeting's artifacts.
func (c *CLIConfig) MeetingDir(meetingID string) string {
	return filepath.Join(c.DataDir, "meetings", meetingID)
}

// WatchExtensions returns the configured extensions or the defaults,
// normalized to lower case with a leading dot.
func (c *CLIConfig) WatchExtensions() []string {
	exts := c.Watch.Extensions
	if len(exts) == 0 {
		exts = DefaultWatchExtensions
	}
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}

// IsValid checks if the output format is valid.
func (f OutputFormat) IsValid() bool {
	switch f {
	case OutputFormatText, OutputFormatJSON, OutputFormatYAML:
		return true
	default:
		return false
	}
}

// String returns the string representation of the output format.
func (f OutputFormat) String() string {
	return string(f)
}

// SaveConfig saves the configuration to the config file.
func SaveConfig(cfg *CLIConfig) error {
	configDir, err := ConfigDir()
	if err != nil {
		return fmt.Errorf("getting config directory: %w", err)
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(configDir, DefaultConfigFile)

	// Durations round-trip as strings.
	type engineFile struct {
		Python           string `yaml:"python"`
		Script           string `yaml:"script,omitempty"`
		Device           string `yaml:"device,omitempty"`
		WhisperModel     string `yaml:"whisper_model,omitempty"`
		BatchSize        int    `yaml:"batch_size,omitempty"`
		Language         string `yaml:"language,omitempty"`
		DisableStem      bool   `yaml:"disable_stem,omitempty"`
		SuppressNumerals bool   `yaml:"suppress_numerals,omitempty"`
		MinSpeakers      int    `yaml:"min_speakers,omitempty"`
		MaxSpeakers      int    `yaml:"max_speakers,omitempty"`
		LogLevel         string `yaml:"log_level,omitempty"`
		Timeout          string `yaml:"timeout,omitempty"`
	}
	type watchFile struct {
		Dir          string   `yaml:"dir,omitempty"`
		Extensions   []string `yaml:"extensions,omitempty"`
		SettleDelay  string   `yaml:"settle_delay,omitempty"`
		SpeakerCount int      `yaml:"speaker_count,omitempty"`
	}
	type configFile struct {
		DataDir      string        `yaml:"data_dir"`
		OutputFormat OutputFormat  `yaml:"output_format"`
		Debug        bool          `yaml:"debug,omitempty"`
		Storage      StorageConfig `yaml:"storage"`
		Engine       engineFile    `yaml:"engine"`
		Logging      LoggingConfig `yaml:"logging,omitempty"`
		Watch        watchFile     `yaml:"watch,omitempty"`
		Metrics      MetricsConfig `yaml:"metrics,omitempty"`
	}

	fileCfg := configFile{
		DataDir:      cfg.DataDir,
		OutputFormat: cfg.OutputFormat,
		Debug:        cfg.Debug,
		Storage:      cfg.Storage,
		Engine: engineFile{
			Python:           cfg.Engine.Python,
			Script:           cfg.Engine.Script,
			Device:           cfg.Engine.Device,
			WhisperModel:     cfg.Engine.WhisperModel,
			BatchSize:        cfg.Engine.BatchSize,
			Language:         cfg.Engine.Language,
			DisableStem:      cfg.Engine.DisableStem,
			SuppressNumerals: cfg.Engine.SuppressNumerals,
			MinSpeakers:      cfg.Engine.MinSpeakers,
			MaxSpeakers:      cfg.Engine.MaxSpeakers,
			LogLevel:         cfg.Engine.LogLevel,
		},
		Logging: cfg.Logging,
		Watch: watchFile{
			Dir:          cfg.Watch.Dir,
			Extensions:   cfg.Watch.Extensions,
			SpeakerCount: cfg.Watch.SpeakerCount,
		},
		Metrics: cfg.Metrics,
	}
	if cfg.Engine.Timeout > 0 {
		fileCfg.Engine.Timeout = cfg.Engine.Timeout.String()
	}
	if cfg.Watch.SettleDelay > 0 && cfg.Watch.SettleDelay != DefaultSettleDelay {
		fileCfg.Watch.SettleDelay = cfg.Watch.SettleDelay.String()
	}

	data, err := yaml.Marshal(&fileCfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// ExpandPath expands ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}
