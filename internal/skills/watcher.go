package skills

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultDebounce coalesces bursts of filesystem events (editor saves,
// directory moves from the promotion gate) into one refresh.
const defaultDebounce = 500 * time.Millisecond

// Watcher refreshes the registry when skill directories change on disk,
// so a promotion or quarantine takes effect without a restart.
type Watcher struct {
	registry *Registry
	dirs     []string
	debounce time.Duration
	logger   *slog.Logger
}

// NewWatcher creates a watcher over the given roots. Missing directories
// are ignored until they appear at the next start.
func NewWatcher(registry *Registry, dirs Dirs, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	var roots []string
	for _, dir := range []string{dirs.Bundled, dirs.Curated, dirs.Forged, dirs.Quarantine} {
		if dir != "" {
			roots = append(roots, dir)
		}
	}
	return &Watcher{
		registry: registry,
		dirs:     roots,
		debounce: defaultDebounce,
		logger:   logger.With("component", "skills_watcher"),
	}
}

// Run watches until the context is canceled. Events are debounced and
// collapse into a single registry refresh.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for _, dir := range w.dirs {
		if err := watcher.Add(dir); err != nil {
			w.logger.Debug("skill root not watchable", "dir", dir, "error", err)
		}
	}

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("skill watcher error", "error", err)
		case <-fire:
			timer = nil
			fire = nil
			if err := w.registry.Refresh(); err != nil {
				w.logger.Warn("skill refresh failed", "error", err)
			}
		}
	}
}
