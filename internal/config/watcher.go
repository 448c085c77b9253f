package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow coalesces editor write bursts (save + rename + chmod)
// into one reload.
const debounceWindow = 250 * time.Millisecond

// Watch hot-reloads the holder's config file when it changes on disk,
// until ctx is canceled. A reload that fails to parse or validate is
// logged and skipped — the last good config stays active. Watching the
// parent directory instead of the file survives editors that replace the
// file by rename.
func Watch(ctx context.Context, holder *Holder, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(holder.Path())
	if err := watcher.Add(dir); err != nil {
		return err
	}

	logger.Debug("watching config file", slog.String("path", holder.Path()))

	var timer *time.Timer

	reload := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if filepath.Clean(event.Name) != filepath.Clean(holder.Path()) {
				continue
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			if timer != nil {
				timer.Stop()
			}

			timer = time.AfterFunc(debounceWindow, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case <-reload:
			cfg, err := Load(holder.Path())
			if err != nil {
				logger.Warn("config reload failed, keeping previous config",
					slog.String("error", err.Error()),
				)

				continue
			}

			holder.Update(cfg)
			logger.Info("config reloaded", slog.String("path", holder.Path()))

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			logger.Warn("config watcher error", slog.String("error", err.Error()))
		}
	}
}
