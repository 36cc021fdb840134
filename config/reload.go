package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/geekxflood/printkit/logging"
)

// settleDelay coalesces the burst of events a single save produces.
const settleDelay = 100 * time.Millisecond

// reloader watches files through their parent directories so that editors
// replacing a file by rename are still noticed.
type reloader struct {
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

func startReloader(ctx context.Context, paths []string, reload func(), logger logging.Logger) (*reloader, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	targets := make(map[string]bool)
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			_ = watcher.Close()
			return nil, fmt.Errorf("failed to resolve %s: %w", p, err)
		}

		dir := filepath.Dir(abs)
		if info, err := os.Stat(abs); err == nil && info.IsDir() {
			// A schema directory: every file in it counts.
			dir = abs
			targets[abs+string(filepath.Separator)] = true
		} else {
			targets[abs] = true
		}
		if !dirs[dir] {
			if err := watcher.Add(dir); err != nil {
				_ = watcher.Close()
				return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
			}
			dirs[dir] = true
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	r := &reloader{
		watcher: watcher,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go r.run(ctx, targets, reload, logger)
	return r, nil
}

func (r *reloader) run(ctx context.Context, targets map[string]bool, reload func(), logger logging.Logger) {
	defer close(r.done)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if !watched(targets, event.Name) || event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(settleDelay)
			} else {
				timer.Reset(settleDelay)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			reload()

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("config watcher error", "error", err)
		}
	}
}

func watched(targets map[string]bool, name string) bool {
	abs, err := filepath.Abs(name)
	if err != nil {
		return false
	}
	if targets[abs] {
		return true
	}
	return targets[filepath.Dir(abs)+string(filepath.Separator)]
}

func (r *reloader) stop() {
	r.once.Do(func() {
		r.cancel()
		_ = r.watcher.Close()
		<-r.done
	})
}
