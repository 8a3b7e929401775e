package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bimmerbailey/logwarden/internal/config"
)

// DefaultDebounce is how long Watch waits for writes to settle before it
// re-runs the batch.
const DefaultDebounce = 500 * time.Millisecond

// WatchOptions configures Watch.
type WatchOptions struct {
	// Debounce coalesces bursts of writes; zero selects DefaultDebounce.
	Debounce time.Duration
	// OnRun receives every report, including the first one.
	OnRun func(*Report, error)
}

// Watch runs the batch once, then re-runs it whenever one of the input
// files changes. It watches the parent directories so that rotated or
// recreated files are picked up. Watch returns nil when ctx is cancelled.
func (p *Pipeline) Watch(ctx context.Context, inputs []config.Input, opts WatchOptions) error {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	onRun := opts.OnRun
	if onRun == nil {
		onRun = func(*Report, error) {}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to setup watcher: %w", err)
	}
	defer watcher.Close()

	watched := make(map[string]bool, len(inputs))
	dirs := make(map[string]bool)
	for _, in := range inputs {
		abs, err := filepath.Abs(in.Path)
		if err != nil {
			return err
		}
		watched[abs] = true
		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		dirs[dir] = true
	}

	run := func() {
		rep, err := p.Run(ctx, inputs)
		if ctx.Err() == nil {
			onRun(rep, err)
		}
	}
	run()

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher closed unexpectedly")
			}
			if !relevant(event, watched) {
				continue
			}
			p.logger.Debug("input changed", "path", event.Name, "op", event.Op.String())
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher error channel closed")
			}
			return fmt.Errorf("watcher error: %w", err)

		case <-timer.C:
			run()
		}
	}
}

// relevant reports whether event touches a watched file's content. Chmod
// alone does not.
func relevant(event fsnotify.Event, watched map[string]bool) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	return watched[abs]
}
