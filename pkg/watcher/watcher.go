// Package watcher monitors an inbox directory for finished recordings and
// feeds them to the ingest pipeline. A file is picked up once its size has
// stopped changing for a settle delay, so half-written recordings are never
// processed, and files whose path already belongs to a meeting are skipped.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	mberrors "github.com/meetingbuddy/mbud/pkg/errors"
	"github.com/meetingbuddy/mbud/pkg/logging"
	"github.com/meetingbuddy/mbud/pkg/store"
)

// IngestFunc processes one settled recording.
type IngestFunc func(ctx context.Context, audioPath string) error

// Config configures a Watcher.
type Config struct {
	// Dir is the inbox directory to monitor.
	Dir string

	// Extensions limits which files are picked up (lowercase, with dot).
	// Empty accepts every file.
	Extensions []string

	// SettleDelay is how long a file's size must stay unchanged before it
	// counts as complete (default: 2s).
	SettleDelay time.Duration

	// PollInterval is the settle check cadence (default: 200ms).
	PollInterval time.Duration
}

// Watcher wires fsnotify events to the ingest pipeline.
type Watcher struct {
	cfg    Config
	store  store.Store
	ingest IngestFunc
	logger logging.Logger

	fsw  *fsnotify.Watcher
	exts map[string]bool
	wg   sync.WaitGroup
}

// New creates a watcher for the configured inbox directory.
func New(cfg Config, st store.Store, ingest IngestFunc, logger logging.Logger) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, errors.New("watcher needs an inbox directory")
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 2 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 200 * time.Millisecond
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := fsw.Add(cfg.Dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", cfg.Dir, err)
	}

	exts := make(map[string]bool, len(cfg.Extensions))
	for _, ext := range cfg.Extensions {
		exts[strings.ToLower(ext)] = true
	}

	return &Watcher{
		cfg:    cfg,
		store:  st,
		ingest: ingest,
		logger: logger,
		fsw:    fsw,
		exts:   exts,
	}, nil
}

// Run processes inbox events until the context is cancelled. In-flight
// settle checks and ingest calls are waited for before returning.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	w.logger.Info("watching inbox",
		logging.F("dir", w.cfg.Dir),
		logging.F("extensions", strings.Join(w.cfg.Extensions, ",")),
		logging.F("settle_delay", w.cfg.SettleDelay),
	)

	for {
		select {
		case <-ctx.Done():
			w.wg.Wait()
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watcher event channel closed")
			}
			// Moves into the inbox surface as creates too.
			if event.Op&fsnotify.Create == 0 {
				continue
			}
			if !w.wanted(event.Name) {
				w.logger.Debug("ignoring file", logging.F("path", event.Name))
				continue
			}

			w.wg.Add(1)
			go func(path string) {
				defer w.wg.Done()
				w.handleFile(ctx, path)
			}(event.Name)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watcher error channel closed")
			}
			w.logger.Error("watch error", logging.Err(err))
		}
	}
}

// wanted reports whether the path's extension is on the pickup list.
func (w *Watcher) wanted(path string) bool {
	if len(w.exts) == 0 {
		return true
	}
	return w.exts[strings.ToLower(filepath.Ext(path))]
}

func (w *Watcher) handleFile(ctx context.Context, path string) {
	if err := w.waitSettled(ctx, path); err != nil {
		if ctx.Err() == nil {
			w.logger.Warn("recording never settled",
				logging.F("path", path), logging.Err(err))
		}
		return
	}

	if existing, err := w.store.GetMeetingByAudioPath(ctx, path); err == nil {
		w.logger.Info("audio already ingested, skipping",
			logging.F("path", path),
			logging.F("meeting_id", existing.ID))
		return
	} else if !mberrors.IsNotFound(err) {
		w.logger.Error("ingest dedupe lookup failed",
			logging.F("path", path), logging.Err(err))
		return
	}

	w.logger.Info("ingesting recording", logging.F("path", path))
	if err := w.ingest(ctx, path); err != nil {
		w.logger.Error("ingest failed",
			logging.F("path", path), logging.Err(err))
	}
}

// waitSettled returns once the file's size has stayed unchanged for the
// settle delay, or an error when the file vanishes, is a directory, or the
// context expires first.
func (w *Watcher) waitSettled(ctx context.Context, path string) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	var lastSize int64 = -1
	stableSince := time.Now()

	for {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("file vanished while settling: %w", err)
		}
		if info.IsDir() {
			return fmt.Errorf("%s is a directory", path)
		}

		if info.Size() != lastSize {
			lastSize = info.Size()
			stableSince = time.Now()
		} else if time.Since(stableSince) >= w.cfg.SettleDelay {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
