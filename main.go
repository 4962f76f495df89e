// Package main provides the mbud CLI entry point.
// mbud turns meeting recordings into speaker-attributed transcripts.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/meetingbuddy/mbud/cmd"
	"github.com/meetingbuddy/mbud/config"
	"github.com/meetingbuddy/mbud/pkg/buildinfo"
)

// Global flags and state.
var (
	outputFormat string
	debug        bool

	// cfg holds the loaded configuration.
	cfg *config.CLIConfig
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "mbud",
	Short: "Meeting Buddy - meeting recordings to speaker-attributed transcripts",
	Long: `mbud is the command-line interface for Meeting Buddy.

Meeting Buddy takes meeting audio, runs a diarization engine over it, and
persists a speaker-attributed transcript: who spoke, when, and what they
said. Speakers keep their stable engine labels forever; display names are
yours to set and re-apply to the export files at any time.

COMMON WORKFLOWS:
  Process a recording:  mbud meeting ingest ./standup.wav
  Live meeting:         mbud meeting create "Weekly sync", then
                        mbud meeting end <id> --audio rec.m4a
  Name the voices:      mbud speaker rename <id> "Speaker 1" --name "Alice", then
                        mbud speaker apply-names <id>
  Automatic inbox:      mbud watch --dir ~/Recordings/inbox
  Inspect results:      mbud meeting show <id>, mbud speaker list <id>

DISCOVERY:
  mbud <command> --help       Subcommands, flags, and examples for any command
  mbud config show            Effective configuration and where it came from
  mbud meeting list           All meetings with their processing status`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip initialization for commands that don't need it.
		if cmd.Name() == "version" || cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		// Load configuration.
		var err error
		cfg, err = config.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}

		// Override with command-line flags.
		if outputFormat != "" {
			cfg.OutputFormat = config.OutputFormat(outputFormat)
		}
		if debug {
			cfg.Debug = true
		}

		return nil
	},
}

// Version command flags.
var versionOutputJSON bool

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the version, commit hash, and build time of the mbud CLI.

Use --output-json for machine-readable output.

Examples:
  mbud version                      Show version
  mbud version --output-json        Output as JSON`,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := buildinfo.Get("mbud")

		if versionOutputJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "mbud version %s\n", info.Version)
		fmt.Fprintf(out, "  commit:     %s\n", info.Commit)
		fmt.Fprintf(out, "  built:      %s\n", info.BuildTime)
		fmt.Fprintf(out, "  go:         %s\n", info.GoVersion)
		return nil
	},
}

// configCmd manages CLI configuration.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long:  `View and modify the mbud CLI configuration settings.`,
}

// configShowCmd displays current configuration.
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current CLI configuration values.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Load config (uses PersistentPreRunE, so cfg is already loaded).
		if cfg == nil {
			var err error
			cfg, err = config.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
		}

		configPath, _ := config.ConfigPath()

		fmt.Println("Current configuration:")
		fmt.Printf("  Config file:    %s\n", configPath)
		fmt.Printf("  Data dir:       %s\n", cfg.DataDir)
		fmt.Printf("  Output format:  %s\n", cfg.OutputFormat)
		fmt.Printf("  Storage driver: %s\n", cfg.Storage.Driver)
		if cfg.Storage.Driver == config.StorageDriverPostgres && cfg.Storage.Postgres != nil {
			fmt.Printf("  Postgres:       %s:%d/%s\n",
				cfg.Storage.Postgres.Host, cfg.Storage.Postgres.Port, cfg.Storage.Postgres.Database)
		} else {
			fmt.Printf("  SQLite path:    %s\n", cfg.Storage.SQLitePath)
		}
		fmt.Printf("  Engine python:  %s\n", cfg.Engine.Python)
		fmt.Printf("  Engine script:  %s\n", valueOrDefault(cfg.Engine.Script, "(not set)"))
		if cfg.Engine.Timeout > 0 {
			fmt.Printf("  Engine timeout: %s\n", cfg.Engine.Timeout)
		}
		fmt.Printf("  Watch dir:      %s\n", valueOrDefault(cfg.Watch.Dir, "(not set)"))
		fmt.Printf("  Settle delay:   %s\n", cfg.Watch.SettleDelay)
		fmt.Printf("  Metrics addr:   %s\n", valueOrDefault(cfg.Metrics.Addr, "(disabled)"))
		fmt.Printf("  Debug:          %t\n", cfg.Debug)

		return nil
	},
}

// configInitCmd initializes configuration.
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file",
	Long:  `Create a new configuration file with default values if one doesn't exist.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, err := config.ConfigPath()
		if err != nil {
			return fmt.Errorf("getting config path: %w", err)
		}

		// Check if config already exists.
		if _, err := os.Stat(configPath); err == nil {
			fmt.Printf("Configuration file already exists: %s\n", configPath)
			fmt.Println("Use 'mbud config show' to view current settings.")
			return nil
		}

		// Create default config.
		defaultCfg := config.DefaultConfig()
		if err := config.SaveConfig(defaultCfg); err != nil {
			return fmt.Errorf("saving configuration: %w", err)
		}

		fmt.Printf("Created configuration file: %s\n", configPath)
		fmt.Println("\nDefault settings:")
		fmt.Printf("  Storage driver: %s\n", defaultCfg.Storage.Driver)
		fmt.Printf("  Engine python:  %s\n", defaultCfg.Engine.Python)
		fmt.Printf("  Output format:  %s\n", defaultCfg.OutputFormat)
		fmt.Println("\nSet the engine script before processing:")
		fmt.Println("  mbud config set engine_script /path/to/diarize.py")

		return nil
	},
}

// configSetCmd sets a configuration value.
var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the config file.

Available keys:
  data_dir            - Directory for meeting outputs (supports ~)
  output_format       - Default output format (text, json, yaml)
  storage_driver      - Persistence backend (sqlite, postgres)
  sqlite_path         - SQLite database file (supports ~)
  engine_python       - Python interpreter for the diarization engine
  engine_script       - Path to the engine entry point (supports ~)
  engine_timeout      - Per-run engine time limit (e.g., 30m; 0 disables)
  watch_dir           - Inbox directory for watch mode (supports ~)
  watch_settle_delay  - Quiet period before a dropped file is picked up
  watch_speaker_count - Roster size for meetings the watcher creates
  metrics_addr        - Prometheus listen address for watch mode
  debug               - Enable debug mode (true/false)

Examples:
  mbud config set engine_script ~/diarization/diarize.py
  mbud config set watch_dir ~/Recordings/inbox
  mbud config set output_format json
  mbud config set engine_timeout 45m`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		// Load current config.
		currentCfg, err := config.LoadConfig()
		if err != nil {
			// If config doesn't exist, start with defaults.
			currentCfg = config.DefaultConfig()
		}

		// Set the value.
		switch key {
		case "data_dir":
			expanded, err := config.ExpandPath(value)
			if err != nil {
				return fmt.Errorf("invalid data dir: %w", err)
			}
			// Store the original value (with ~) for readability.
			currentCfg.DataDir = value
			fmt.Printf("  (expands to: %s)\n", expanded)
		case "output_format":
			format := config.OutputFormat(value)
			if !format.IsValid() {
				return fmt.Errorf("invalid output format: %s (must be text, json, or yaml)", value)
			}
			currentCfg.OutputFormat = format
		case "storage_driver":
			if value != config.StorageDriverSQLite && value != config.StorageDriverPostgres {
				return fmt.Errorf("invalid storage driver: %s (must be sqlite or postgres)", value)
			}
			currentCfg.Storage.Driver = value
		case "sqlite_path":
			expanded, err := config.ExpandPath(value)
			if err != nil {
				return fmt.Errorf("invalid sqlite path: %w", err)
			}
			currentCfg.Storage.SQLitePath = value
			fmt.Printf("  (expands to: %s)\n", expanded)
		case "engine_python":
			currentCfg.Engine.Python = value
		case "engine_script":
			expanded, err := config.ExpandPath(value)
			if err != nil {
				return fmt.Errorf("invalid engine script: %w", err)
			}
			currentCfg.Engine.Script = value
			fmt.Printf("  (expands to: %s)\n", expanded)
		case "engine_timeout":
			duration, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid engine timeout: %w", err)
			}
			currentCfg.Engine.Timeout = duration
		case "watch_dir":
			expanded, err := config.ExpandPath(value)
			if err != nil {
				return fmt.Errorf("invalid watch dir: %w", err)
			}
			currentCfg.Watch.Dir = value
			fmt.Printf("  (expands to: %s)\n", expanded)
		case "watch_settle_delay":
			duration, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid settle delay: %w", err)
			}
			currentCfg.Watch.SettleDelay = duration
		case "watch_speaker_count":
			count, err := strconv.Atoi(value)
			if err != nil || count < 0 {
				return fmt.Errorf("invalid speaker count: %s (must be a non-negative integer)", value)
			}
			currentCfg.Watch.SpeakerCount = count
		case "metrics_addr":
			currentCfg.Metrics.Addr = value
		case "debug":
			if value == "true" || value == "1" {
				currentCfg.Debug = true
			} else if value == "false" || value == "0" {
				currentCfg.Debug = false
			} else {
				return fmt.Errorf("invalid debug value: %s (must be true or false)", value)
			}
		default:
			return fmt.Errorf("unknown configuration key: %s", key)
		}

		// Save the config.
		if err := config.SaveConfig(currentCfg); err != nil {
			return fmt.Errorf("saving configuration: %w", err)
		}

		fmt.Printf("Set %s = %s\n", key, value)
		return nil
	},
}

// completionCmd generates shell completion scripts.
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for mbud.

To load completions:

Bash:
  $ source <(mbud completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ mbud completion bash > /etc/bash_completion.d/mbud
  # macOS:
  $ mbud completion bash > $(brew --prefix)/etc/bash_completion.d/mbud

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ mbud completion zsh > "${fpath[1]}/_mbud"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ mbud completion fish | source

  # To load completions for each session, execute once:
  $ mbud completion fish > ~/.config/fish/completions/mbud.fish

PowerShell:
  PS> mbud completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> mbud completion powershell > mbud.ps1
  # and source this file from your PowerShell profile.
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(os.Stdout)
		case "zsh":
			return rootCmd.GenZshCompletion(os.Stdout)
		case "fish":
			return rootCmd.GenFishCompletion(os.Stdout, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletionWithDesc(os.Stdout)
		}
		return nil
	},
}

// valueOrDefault returns the value if non-empty, otherwise the default.
func valueOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}

func init() {
	// Global flags.
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", "", "output format: text, json, yaml")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	// Add command groups for organized help output.
	rootCmd.AddGroup(
		&cobra.Group{ID: "meetings", Title: "Meetings:"},
		&cobra.Group{ID: "speakers", Title: "Speakers:"},
		&cobra.Group{ID: "exports", Title: "Exports:"},
		&cobra.Group{ID: "ops", Title: "Operations:"},
		&cobra.Group{ID: "setup", Title: "Setup:"},
	)

	// Meetings
	meetingCmd := cmd.NewMeetingCommand(nil)
	meetingCmd.GroupID = "meetings"
	rootCmd.AddCommand(meetingCmd)

	// Speakers
	speakerCmd := cmd.NewSpeakerCommand(nil)
	speakerCmd.GroupID = "speakers"
	rootCmd.AddCommand(speakerCmd)

	// Exports
	exportCmd := cmd.NewExportCommand(nil)
	exportCmd.GroupID = "exports"
	rootCmd.AddCommand(exportCmd)

	// Operations
	watchCmd := cmd.NewWatchCommand(nil)
	watchCmd.GroupID = "ops"
	rootCmd.AddCommand(watchCmd)

	dbCmd := cmd.NewDbCommand(nil)
	dbCmd.GroupID = "ops"
	rootCmd.AddCommand(dbCmd)

	// Setup
	configCmd.GroupID = "setup"
	rootCmd.AddCommand(configCmd)

	completionCmd.GroupID = "setup"
	rootCmd.AddCommand(completionCmd)

	versionCmd.GroupID = "setup"
	versionCmd.Flags().BoolVar(&versionOutputJSON, "output-json", false, "Output as JSON")
	rootCmd.AddCommand(versionCmd)

	// Config subcommands.
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)
}

func main() {
	// Set up signal handling for graceful shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		// First signal cancels the context so watch mode can drain its
		// in-flight jobs. A second signal forces exit.
		fmt.Fprintln(os.Stderr, "\nShutting down...")
		cancel()
		<-sigChan
		fmt.Fprintln(os.Stderr, "Forced exit.")
		os.Exit(130)
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
