package labels

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Reloads path into table every time the file is written or replaced, until
// ctx is done. onReload, if not nil, runs after every reload attempt with the
// parse error, if any. A failed reload leaves table untouched.
//
// The parent directory is watched instead of the file so editors that save by
// renaming a temporary file over the original keep triggering reloads.
func Watch(ctx context.Context, path string, table *Table, logger *slog.Logger, onReload func(*Table, error)) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "labels"), slog.String("file", path))

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	path = filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			loaded, err := Load(path)
			if err != nil {
				logger.Warn("label reload failed", slog.Any("error", err))
			} else {
				table.Replace(loaded)
				logger.Info("labels reloaded", slog.Int("labels", table.Len()), slog.Int("breakpoints", len(table.Breakpoints())))
			}

			if onReload != nil {
				onReload(table, err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("label watcher error", slog.Any("error", err))
		}
	}
}
