package skills

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jingkaihe/skillpack/pkg/logger"
	"github.com/pkg/errors"
)

// DefaultDebounce is how long Watch waits for a burst of writes to settle.
const DefaultDebounce = 100 * time.Millisecond

// Watch validates the skill in dir once, then again every time its SKILL.md
// changes, passing each outcome to fn. It blocks until ctx is cancelled.
func Watch(ctx context.Context, dir string, debounce time.Duration, fn func(*Descriptor, error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create file watcher")
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return errors.Wrapf(err, "failed to watch %s", dir)
	}

	fn(Load(dir))

	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != FileName {
				continue
			}
			logger.G(ctx).WithField("op", event.Op.String()).Debug("skill file changed")
			settle = time.After(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.G(ctx).WithError(err).Warn("file watcher error")
		case <-settle:
			settle = nil
			fn(Load(dir))
		}
	}
}
