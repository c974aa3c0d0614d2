// Package filewatcher emits the contents of a single file every time it is modified.
package filewatcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jensneuse/abstractlogger"

	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/subtask"
)

const DefaultDebounce = time.Second

// Event is emitted after a debounced modification of the watched file.
// Removed is set on the terminal event emitted when the file disappeared; no event follows it.
type Event struct {
	Path     string
	Contents []byte
	Removed  bool
}

type Option func(*FileWatcher)

// WithDebounce overrides the window in which consecutive writes collapse into one event.
func WithDebounce(d time.Duration) Option {
	return func(w *FileWatcher) {
		w.debounce = d
	}
}

func WithLogger(logger abstractlogger.Logger) Option {
	return func(w *FileWatcher) {
		w.log = logger
	}
}

// FileWatcher is a subtask.Unit watching one file.
type FileWatcher struct {
	path     string
	debounce time.Duration
	log      abstractlogger.Logger
}

var _ subtask.Unit[Event] = (*FileWatcher)(nil)

func New(path string, opts ...Option) *FileWatcher {
	w := &FileWatcher{
		path:     path,
		debounce: DefaultDebounce,
		log:      abstractlogger.NoopLogger,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *FileWatcher) Path() string {
	return w.path
}

// Fetch reads the current contents of path.
func Fetch(path string) ([]byte, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return contents, nil
}

// Run watches the file until ctx is done or the file is removed.
func (w *FileWatcher) Run(ctx context.Context, out chan<- Event) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.log.Error("fileWatcher.Run",
			abstractlogger.String("path", w.path),
			abstractlogger.Error(err),
		)
		return
	}
	defer watcher.Close()

	if err = watcher.Add(w.path); err != nil {
		w.log.Error("fileWatcher.Run",
			abstractlogger.String("path", w.path),
			abstractlogger.Error(err),
		)
		subtask.Send(ctx, out, Event{Path: w.path, Removed: true})
		return
	}

	w.log.Debug("fileWatcher.Run",
		abstractlogger.String("status", "watching"),
		abstractlogger.String("path", w.path),
	)

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	arm := func() {
		if timer == nil {
			timer = time.NewTimer(w.debounce)
		} else {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)
		}
		timerC = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			switch {
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				if !w.exists() {
					w.removed(ctx, out)
					return
				}
				// replaced atomically, the old inode is gone from the watch list
				_ = watcher.Remove(w.path)
				if err := watcher.Add(w.path); err != nil {
					w.removed(ctx, out)
					return
				}
				arm()
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
				arm()
			default:
				// chmod only
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("fileWatcher.Run",
				abstractlogger.String("path", w.path),
				abstractlogger.Error(err),
			)
		case <-timerC:
			timerC = nil
			contents, err := Fetch(w.path)
			if err != nil {
				w.log.Error("fileWatcher.Run",
					abstractlogger.String("status", "unreadable"),
					abstractlogger.String("path", w.path),
					abstractlogger.Error(err),
				)
				w.removed(ctx, out)
				return
			}
			if !subtask.Send(ctx, out, Event{Path: w.path, Contents: contents}) {
				return
			}
		}
	}
}

func (w *FileWatcher) exists() bool {
	_, err := os.Stat(w.path)
	return !errors.Is(err, fs.ErrNotExist)
}

func (w *FileWatcher) removed(ctx context.Context, out chan<- Event) {
	w.log.Warn("fileWatcher.Run",
		abstractlogger.String("status", "removed"),
		abstractlogger.String("path", w.path),
	)
	subtask.Send(ctx, out, Event{Path: w.path, Removed: true})
}
