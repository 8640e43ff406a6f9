package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the write bursts of a file being copied in.
const DefaultDebounce = 2 * time.Second

// Handler processes one case PDF. Errors are logged; the watcher moves on.
type Handler func(ctx context.Context, path string) error

// WatchConfig configures a Watcher.
type WatchConfig struct {
	Dir         string
	InitialScan bool          // process PDFs already in Dir at start
	Debounce    time.Duration // quiet period before a batch runs
	Logger      *slog.Logger
}

// Watcher runs a Handler for each PDF that appears in a directory. Files are
// handled one at a time; a batch that arrives together runs in numeric
// suffix order.
type Watcher struct {
	cfg     WatchConfig
	handler Handler
	logger  *slog.Logger

	mu   sync.Mutex
	seen map[string]time.Time // path -> mod time when handled
}

// NewWatcher creates a watcher for cfg.Dir.
func NewWatcher(cfg WatchConfig, handler Handler) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, errors.New("no inbox directory provided")
	}
	if handler == nil {
		return nil, errors.New("no handler provided")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		cfg:     cfg,
		handler: handler,
		logger:  logger.With("inbox", cfg.Dir),
		seen:    make(map[string]time.Time),
	}, nil
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.cfg.Dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.cfg.Dir, err)
	}
	w.logger.Info("watching inbox", "debounce", w.cfg.Debounce)

	if w.cfg.InitialScan {
		existing, err := Scan(w.cfg.Dir)
		if err != nil {
			return err
		}
		w.handleBatch(ctx, existing)
	}

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.cfg.Debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !IsPDF(ev.Name) || !ev.Has(fsnotify.Create|fsnotify.Write) {
				continue
			}
			pending[ev.Name] = struct{}{}
			timer.Reset(w.cfg.Debounce)

		case <-timer.C:
			batch := make([]string, 0, len(pending))
			for p := range pending {
				batch = append(batch, p)
			}
			clear(pending)
			w.handleBatch(ctx, sortPDFsByNumber(batch))

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleBatch(ctx context.Context, paths []string) {
	for _, p := range paths {
		if ctx.Err() != nil {
			return
		}
		w.handle(ctx, p)
	}
}

func (w *Watcher) handle(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil {
		// Renamed away or deleted before the batch ran.
		w.logger.Debug("skipping vanished file", "path", path, "error", err)
		return
	}

	w.mu.Lock()
	last, done := w.seen[path]
	w.mu.Unlock()
	if done && !info.ModTime().After(last) {
		return
	}

	pages, err := Inspect(path)
	if err != nil {
		w.logger.Warn("skipping unreadable PDF", "path", path, "error", err)
		return
	}

	w.mu.Lock()
	w.seen[path] = info.ModTime()
	w.mu.Unlock()

	log := w.logger.With("path", path, "pages", pages)
	log.Info("processing case file")
	start := time.Now()
	if err := w.handler(ctx, path); err != nil {
		log.Error("case file failed", "error", err, "duration", time.Since(start))
		return
	}
	log.Info("case file done", "duration", time.Since(start))
}
