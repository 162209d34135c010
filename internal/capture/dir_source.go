package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"signscribe/internal/logging"
)

// DirSource serves the newest image written into a directory. An external
// grabber such as `ffmpeg -f v4l2 -i /dev/video0 -update 1 frame.jpg` keeps
// overwriting a file there; fsnotify events mark which file is freshest.
type DirSource struct {
	dir    string
	logger *slog.Logger

	mu      sync.Mutex
	latest  string
	stamp   time.Time
	cached  image.Image
	cacheOf time.Time
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewDirSource watches dir for frames.
func NewDirSource(dir string, logger *slog.Logger) *DirSource {
	return &DirSource{dir: dir, logger: logging.NewComponentLogger(logger, "frames")}
}

func (d *DirSource) Open(ctx context.Context) error {
	info, err := os.Stat(d.dir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: frame directory %q not found", ErrCameraUnavailable, d.dir)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: create watcher: %v", ErrCameraUnavailable, err)
	}
	if err := watcher.Add(d.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("%w: watch %s: %v", ErrCameraUnavailable, d.dir, err)
	}

	d.mu.Lock()
	d.watcher = watcher
	d.done = make(chan struct{})
	d.mu.Unlock()

	d.scan()
	go d.watch(watcher, d.done)
	return nil
}

func (d *DirSource) watch(watcher *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 || !isFrameFile(event.Name) {
				continue
			}
			d.mark(event.Name, time.Now())
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logging.WarnWithContext(d.logger, "frame watcher error", "frame_watch_error",
				logging.Error(err),
				logging.String(logging.FieldImpact, "newest frame may be stale"),
			)
		}
	}
}

func (d *DirSource) scan() {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !isFrameFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		d.mark(filepath.Join(d.dir, entry.Name()), info.ModTime())
	}
}

func (d *DirSource) mark(path string, at time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.latest == "" || path == d.latest || !at.Before(d.stamp) {
		d.latest = path
		d.stamp = at
	}
}

func (d *DirSource) Frame(context.Context) (image.Image, error) {
	d.mu.Lock()
	path, stamp := d.latest, d.stamp
	cached, cacheOf := d.cached, d.cacheOf
	open := d.watcher != nil
	d.mu.Unlock()

	if !open {
		return nil, fmt.Errorf("%w: source closed", ErrCameraUnavailable)
	}
	if path == "" {
		return nil, ErrNoFrame
	}
	if cached != nil && cacheOf.Equal(stamp) {
		return cached, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open frame: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		// The grabber may still be writing; serve the previous frame.
		if cached != nil {
			return cached, nil
		}
		return nil, fmt.Errorf("%w: decode %s: %v", ErrNoFrame, filepath.Base(path), err)
	}

	d.mu.Lock()
	d.cached, d.cacheOf = img, stamp
	d.mu.Unlock()
	return img, nil
}

func (d *DirSource) Close() error {
	d.mu.Lock()
	watcher, done := d.watcher, d.done
	d.watcher = nil
	d.mu.Unlock()
	if watcher == nil {
		return nil
	}
	err := watcher.Close()
	<-done
	if errors.Is(err, fsnotify.ErrClosed) {
		return nil
	}
	return err
}

func isFrameFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	default:
		return false
	}
}
