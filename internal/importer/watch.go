// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package importer

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.astrophena.name/base/logger"

	"github.com/fsnotify/fsnotify"
)

var watchReadyHook func() // used in tests, called when Watch started watching

// watchDelay is how long Watch waits after the last change before deploying,
// so that saving many files at once produces a single deployment.
var watchDelay = 250 * time.Millisecond

// debouncer delays execution of a function until a specified duration has
// passed without any new events.
type debouncer struct {
	d  time.Duration
	mu sync.Mutex
	f  func()
	t  *time.Timer
}

func newDebouncer(d time.Duration, f func()) *debouncer {
	return &debouncer{d: d, f: f}
}

// Do schedules f, canceling a previously scheduled call that didn't run yet.
func (d *debouncer) Do() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.t != nil {
		d.t.Stop()
	}
	d.t = time.AfterFunc(d.d, d.f)
}

// Stop cancels a scheduled call.
func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.t != nil {
		d.t.Stop()
	}
}

// Watch deploys c.Dir and then deploys it again every time something in it
// changes, until ctx is canceled. The result of every deployment is passed to
// deployed. Deployments never overlap, and deployed is not called after Watch
// returns.
func Watch(ctx context.Context, c *Config, deployed func(url string, err error)) error {
	if c.Dir == "" {
		return errors.New("importer: Watch needs a directory to watch")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watchRecursive(watcher, c.Dir); err != nil {
		return err
	}

	var (
		mu      sync.Mutex
		stopped bool
	)
	deploy := func() {
		mu.Lock()
		defer mu.Unlock()
		if stopped || ctx.Err() != nil {
			return
		}
		url, err := Import(ctx, c)
		if err != nil {
			logger.Error(ctx, "deployment failed", slog.Any("err", err))
		} else {
			logger.Info(ctx, "deployed", slog.String("url", url))
		}
		if deployed != nil {
			deployed(url, err)
		}
	}

	logger.Info(ctx, "performing an initial deployment")
	deploy()

	d := newDebouncer(watchDelay, deploy)
	defer func() {
		d.Stop()
		// Waits for a deployment in progress.
		mu.Lock()
		stopped = true
		mu.Unlock()
	}()

	logger.Info(ctx, "started watching for new changes", slog.String("dir", c.Dir))
	if watchReadyHook != nil {
		watchReadyHook()
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// New directories need their own watch.
			if event.Op&fsnotify.Create != 0 {
				if err := watchRecursive(watcher, event.Name); err != nil && !errors.Is(err, fs.ErrNotExist) {
					logger.Warn(ctx, "watching new directory failed", slog.String("name", event.Name), slog.Any("err", err))
				}
			}
			if !shouldRedeploy(event.Name, event.Op) {
				continue
			}
			logger.Info(ctx, "detected change, scheduling deployment",
				slog.String("name", event.Name),
				slog.Any("op", event.Op),
			)
			d.Do()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn(ctx, "watcher error", slog.Any("err", err))
		case <-ctx.Done():
			return nil
		}
	}
}

func watchRecursive(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return w.Add(path)
	})
}

// Based on
// https://github.com/brandur/modulir/blob/1ff912fdc45a79cb4d8d9f199d213ae9c3598cbd/watch.go#L201.
func shouldRedeploy(path string, op fsnotify.Op) bool {
	base := filepath.Base(path)

	// Mac OS' worst mistake.
	if base == ".DS_Store" {
		return false
	}

	// Vim creates this temporary file to see whether it can write into a target
	// directory.
	if base == "4913" {
		return false
	}

	// Vim backups and swap files.
	if strings.HasSuffix(base, "~") || strings.HasSuffix(base, ".swp") {
		return false
	}

	// Renames produce a following create, and chmod doesn't change what gets
	// deployed.
	return op&(fsnotify.Create|fsnotify.Remove|fsnotify.Write) != 0
}
