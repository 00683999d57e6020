package source

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecprep/internal/logger"
)

// DefaultDebounce is the quiet period after the last write before a file is handed over.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reports batch files as they land in the detector's directory.
// fsnotify works on the real filesystem only.
type Watcher struct {
	detector *Detector
	debounce time.Duration
}

// NewWatcher creates a watcher. A non-positive debounce uses DefaultDebounce.
func NewWatcher(d *Detector, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{detector: d, debounce: debounce}
}

// Watch blocks until ctx is done. handle runs on the watch goroutine, once per
// settled file, so files are processed one at a time.
func (w *Watcher) Watch(ctx context.Context, handle func(ctx context.Context, path string)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	if err := fw.Add(w.detector.Dir()); err != nil {
		return fmt.Errorf("watch %s: %w", w.detector.Dir(), err)
	}

	log := logger.FromContext(ctx)
	log.Info("Watching data dir", zap.String("dir", w.detector.Dir()))

	ready := make(chan string)
	deb := newDebouncer(w.debounce, func(path string) {
		select {
		case ready <- path:
		case <-ctx.Done():
		}
	})
	defer deb.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !w.detector.Matches(event.Name) {
				continue
			}
			deb.touch(event.Name)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Warn("Watcher error", zap.Error(err))
		case path := <-ready:
			handle(ctx, path)
		}
	}
}

// debouncer fires once per path after it has been quiet for delay.
type debouncer struct {
	mu     sync.Mutex
	delay  time.Duration
	timers map[string]*time.Timer
	fire   func(path string)
}

func newDebouncer(delay time.Duration, fire func(string)) *debouncer {
	return &debouncer{delay: delay, timers: make(map[string]*time.Timer), fire: fire}
}

func (d *debouncer) touch(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if t, ok := d.timers[path]; ok {
		t.Stop()
	}
	d.timers[path] = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		delete(d.timers, path)
		d.mu.Unlock()
		d.fire(path)
	})
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for path, t := range d.timers {
		t.Stop()
		delete(d.timers, path)
	}
}
