package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/meetingbuddy/mbud/config"
	"github.com/meetingbuddy/mbud/pkg/buildinfo"
	"github.com/meetingbuddy/mbud/pkg/db"
	"github.com/meetingbuddy/mbud/pkg/diarize"
	"github.com/meetingbuddy/mbud/pkg/logging"
	"github.com/meetingbuddy/mbud/pkg/store"
	"github.com/meetingbuddy/mbud/pkg/store/postgres"
	"github.com/meetingbuddy/mbud/pkg/watcher"
)

// Watch command flags
var (
	watchDir          string
	watchSpeakers     int
	watchMetricsAddr  string
	watchDrainTimeout time.Duration
)

// WatchCommandDeps holds dependencies for the watch command.
type WatchCommandDeps struct {
	Config     *config.CLIConfig
	LoadConfig func() (*config.CLIConfig, error)
	OpenStore  func(ctx context.Context, cfg *config.CLIConfig, logger logging.Logger) (store.Store, error)
	NewService func(st store.Store, cfg *config.CLIConfig, logger logging.Logger, metrics *diarize.Metrics) *diarize.Service
}

// DefaultWatchDeps returns default dependencies for production use.
func DefaultWatchDeps() *WatchCommandDeps {
	return &WatchCommandDeps{
		LoadConfig: config.LoadConfig,
		OpenStore:  openStore,
		NewService: newService,
	}
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(deps *WatchCommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultWatchDeps()
	}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch an inbox folder and process new recordings",
		Long: `Watch an inbox directory and run the ingest trigger for every new
recording dropped into it.

A file is picked up once its size has stopped changing for the settle
delay, so recordings still being written are never processed. Files whose
path already belongs to a meeting are skipped, making re-drops harmless.
Jobs overlap freely; each meeting's status is observable from any other
process while this one keeps watching.

When a metrics listen address is configured the process serves Prometheus
metrics on /metrics and build information on /version.

Stop with Ctrl-C; in-flight jobs are waited for before exit.

Examples:
  # Watch the configured inbox
  mbud watch

  # Watch a specific folder with metrics exposed
  mbud watch --dir ~/Recordings/inbox --metrics-addr :9090`,
		Example: `  mbud watch
  mbud watch --dir ~/Recordings/inbox
  mbud watch --dir ~/Recordings/inbox --metrics-addr :9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), deps)
		},
	}

	cmd.Flags().StringVar(&watchDir, "dir", "", "Inbox directory to watch (default: watch.dir from config)")
	cmd.Flags().IntVar(&watchSpeakers, "speakers", 0, "Expected speaker count for created meetings (default 2)")
	cmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "Prometheus listen address (default: metrics.addr from config)")
	cmd.Flags().DurationVar(&watchDrainTimeout, "drain-timeout", 0, "Bound the wait for in-flight jobs on shutdown (0 waits)")

	return cmd
}

// runWatch executes the watch command. It blocks until the context is
// cancelled, then waits for in-flight jobs.
func runWatch(ctx context.Context, deps *WatchCommandDeps) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	deps.Config = cfg

	dir := cfg.Watch.Dir
	if watchDir != "" {
		if dir, err = config.ExpandPath(watchDir); err != nil {
			return fmt.Errorf("resolving watch directory: %w", err)
		}
	}
	if dir == "" {
		return fmt.Errorf("no inbox directory configured (set watch.dir or pass --dir)")
	}

	metricsAddr := cfg.Metrics.Addr
	if watchMetricsAddr != "" {
		metricsAddr = watchMetricsAddr
	}

	speakerCount := cfg.Watch.SpeakerCount
	if watchSpeakers != 0 {
		speakerCount = watchSpeakers
	}

	logger := newLogger(cfg)
	st, err := deps.OpenStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	// Watch mode owns its registry; one-shot commands never serve metrics.
	registry := prometheus.NewRegistry()
	metrics := diarize.NewMetrics(registry)
	if pg, ok := st.(*postgres.Store); ok {
		if _, err := db.RegisterPoolStatsCollectorWithRegistry(pg.Pool(), "mbud", "watch", registry); err != nil {
			logger.Warn("pool stats collector unavailable", logging.Err(err))
		}
	}

	svc := deps.NewService(st, cfg, logger, metrics)

	ingest := func(ctx context.Context, audioPath string) error {
		_, err := svc.Ingest(ctx, "", audioPath, speakerCount, diarize.Overrides{})
		return err
	}

	w, err := watcher.New(watcher.Config{
		Dir:         dir,
		Extensions:  cfg.WatchExtensions(),
		SettleDelay: cfg.Watch.SettleDelay,
	}, st, ingest, logger)
	if err != nil {
		return fmt.Errorf("setting up watcher: %w", err)
	}

	if metricsAddr != "" {
		srv := startMetricsServer(metricsAddr, registry, logger)
		defer stopMetricsServer(srv, logger)
	}

	fmt.Printf("Watching %s for new recordings. Press Ctrl-C to stop.\n", dir)

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("watching inbox: %w", err)
	}

	if active := svc.ActiveJobs(); active > 0 {
		fmt.Printf("Waiting for %d in-flight job(s)...\n", active)
		drainCtx := context.Background()
		if watchDrainTimeout > 0 {
			var cancel context.CancelFunc
			drainCtx, cancel = context.WithTimeout(drainCtx, watchDrainTimeout)
			defer cancel()
		}
		if err := svc.Drain(drainCtx); err != nil {
			logger.Warn("exiting with jobs still running", logging.Err(err))
		}
	}

	fmt.Println("Stopped watching.")
	return nil
}

// startMetricsServer serves /metrics and /version on the given address.
func startMetricsServer(addr string, registry *prometheus.Registry, logger logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/version", buildinfo.Handler("mbud"))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("metrics endpoint listening", logging.F("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics endpoint failed", logging.Err(err))
		}
	}()

	return srv
}

// stopMetricsServer shuts the metrics endpoint down with a short grace
// period.
func stopMetricsServer(srv *http.Server, logger logging.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("metrics endpoint shutdown", logging.Err(err))
	}
}
