package usecases

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long a file must be quiet before it is re-imported
const DefaultDebounce = 200 * time.Millisecond

// Change reports one settled file event handled by Watch
type Change struct {
	Name    string
	Path    string
	Removed bool
	Err     error
}

// Watch re-imports use case files in dir as they change and removes the
// catalog entry of deleted files. Rapid saves are coalesced. onChange, if
// set, is called after each settled change. Watch blocks until ctx is done.
func (l *Loader) Watch(ctx context.Context, dir string, debounce time.Duration, onChange func(Change)) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	l.logger.Info("Watching use cases", zap.String("dir", dir))

	pending := make(map[string]time.Time)

	ticker := time.NewTicker(debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !IsUseCaseFile(event.Name) {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			l.logger.Debug("Use case file event", zap.String("path", event.Name), zap.Stringer("op", event.Op))
			pending[event.Name] = time.Now()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.logger.Warn("Watcher error", zap.Error(err))

		case <-ticker.C:
			now := time.Now()
			var settled []string
			for path, at := range pending {
				if now.Sub(at) >= debounce {
					settled = append(settled, path)
					delete(pending, path)
				}
			}

			for _, path := range settled {
				change := l.reload(path)
				if onChange != nil {
					onChange(change)
				}
			}
		}
	}
}

// reload imports path again, or drops it from the catalog when it is gone
func (l *Loader) reload(path string) Change {
	change := Change{Name: NameFromPath(path), Path: path}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		change.Removed = true
		change.Err = l.Delete(change.Name)
		l.logger.Info("Removed use case", zap.String("name", change.Name))
		return change
	}

	def, err := l.LoadFromFile(path)
	if err == nil {
		err = l.Import(change.Name, path, def)
	}
	if err != nil {
		l.logger.Warn("Failed to reload use case", zap.String("path", path), zap.Error(err))
		change.Err = err
		return change
	}

	l.logger.Info("Reloaded use case", zap.String("name", change.Name))
	return change
}
