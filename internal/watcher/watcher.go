// Package watcher notices when the overlay's image or layout file changes
// on disk and reports it once the file has settled.
//
// Editors save in bursts (truncate, write, rename), so a path is only
// reported after it has been quiet for the debounce interval, and only if
// its content hash actually changed.
package watcher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/crypto/blake2b"
)

// DefaultDebounce is the quiet period used when none is configured.
const DefaultDebounce = 250 * time.Millisecond

// ErrStopped is returned by SetPaths after Stop.
var ErrStopped = errors.New("watcher stopped")

// Event describes a watched file whose content changed.
type Event struct {
	Path      string
	Hash      [32]byte
	Size      int64
	Removed   bool
	Timestamp time.Time
}

// Watcher monitors a set of files for content changes.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	debounce  time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	paths   map[string]bool      // absolute file path -> watched
	dirs    map[string]int       // directory -> watched files in it
	hashes  map[string][32]byte  // last reported content
	pending map[string]time.Time // path -> last filesystem event
	stopped bool

	events chan Event
	errors chan error

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a watcher. It watches nothing until SetPaths is called.
func New(debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default().With("component", "watcher")
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsWatcher: fsWatcher,
		debounce:  debounce,
		logger:    logger,
		paths:     make(map[string]bool),
		dirs:      make(map[string]int),
		hashes:    make(map[string][32]byte),
		pending:   make(map[string]time.Time),
		events:    make(chan Event, 16),
		errors:    make(chan error, 10),
		done:      make(chan struct{}),
	}

	w.wg.Add(2)
	go w.eventLoop()
	go w.debounceLoop()
	return w, nil
}

// Events returns the channel of change events.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the channel of errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// SetPaths replaces the watched files. Empty paths are ignored. Files that
// do not exist yet are watched through their directory and reported when
// they appear.
func (w *Watcher) SetPaths(paths ...string) error {
	want := make(map[string]bool)
	for _, p := range paths {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		want[abs] = true
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return ErrStopped
	}

	for p := range w.paths {
		if !want[p] {
			w.untrackLocked(p)
		}
	}
	var errs []error
	for p := range want {
		if w.paths[p] {
			continue
		}
		if err := w.trackLocked(p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *Watcher) trackLocked(path string) error {
	dir := filepath.Dir(path)
	if w.dirs[dir] == 0 {
		if err := w.fsWatcher.Add(dir); err != nil {
			return err
		}
	}
	w.dirs[dir]++
	w.paths[path] = true

	if hash, _, err := HashFile(path); err == nil {
		w.hashes[path] = hash
	}
	return nil
}

func (w *Watcher) untrackLocked(path string) {
	dir := filepath.Dir(path)
	w.dirs[dir]--
	if w.dirs[dir] <= 0 {
		delete(w.dirs, dir)
		w.fsWatcher.Remove(dir)
	}
	delete(w.paths, path)
	delete(w.hashes, path)
	delete(w.pending, path)
}

// WatchedPaths returns the absolute paths being watched.
func (w *Watcher) WatchedPaths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.paths))
	for p := range w.paths {
		out = append(out, p)
	}
	return out
}

// Pending returns the number of paths waiting to settle.
func (w *Watcher) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Stop shuts the watcher down and closes its channels.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	w.mu.Unlock()

	close(w.done)
	w.wg.Wait()
	close(w.events)
	close(w.errors)
	return w.fsWatcher.Close()
}

// Run calls reload for every event until ctx is done or the watcher stops.
// Reload errors are logged; the watcher keeps running.
func (w *Watcher) Run(ctx context.Context, reload func(context.Context, Event) error) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.events:
			if !ok {
				return
			}
			w.logger.Info("asset changed", "path", ev.Path, "removed", ev.Removed, "size", ev.Size)
			if err := reload(ctx, ev); err != nil {
				w.logger.Warn("reload after change failed", "path", ev.Path, "error", err)
			}
		case err, ok := <-w.errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			path := filepath.Clean(event.Name)

			w.mu.Lock()
			if w.paths[path] {
				w.pending[path] = time.Now()
			}
			w.mu.Unlock()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.report(err)
		}
	}
}

func (w *Watcher) debounceLoop() {
	defer w.wg.Done()

	tick := w.debounce / 2
	if tick < 5*time.Millisecond {
		tick = 5 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case now := <-ticker.C:
			w.checkStableFiles(now)
		}
	}
}

type stableFile struct {
	path    string
	lastMod time.Time
}

// checkStableFiles hashes paths that have been quiet for the debounce
// interval. The lock is released while hashing.
func (w *Watcher) checkStableFiles(now time.Time) {
	threshold := now.Add(-w.debounce)

	var stable []stableFile
	w.mu.Lock()
	for path, lastMod := range w.pending {
		if lastMod.Before(threshold) {
			stable = append(stable, stableFile{path: path, lastMod: lastMod})
		}
	}
	w.mu.Unlock()

	for _, sf := range stable {
		hash, size, err := HashFile(sf.path)
		removed := errors.Is(err, os.ErrNotExist)
		if err != nil && !removed {
			w.report(err)
		}

		w.mu.Lock()
		if cur, ok := w.pending[sf.path]; !ok || !cur.Equal(sf.lastMod) {
			// Changed again while hashing; wait for it to settle.
			w.mu.Unlock()
			continue
		}
		if err != nil && !removed {
			delete(w.pending, sf.path)
			w.mu.Unlock()
			continue
		}

		prev, known := w.hashes[sf.path]
		changed := removed && known || !removed && (!known || prev != hash)
		if !changed {
			delete(w.pending, sf.path)
			w.mu.Unlock()
			continue
		}

		ev := Event{Path: sf.path, Hash: hash, Size: size, Removed: removed, Timestamp: now}
		select {
		case w.events <- ev:
			delete(w.pending, sf.path)
			if removed {
				delete(w.hashes, sf.path)
			} else {
				w.hashes[sf.path] = hash
			}
		default:
			// Event channel full, try again next tick.
		}
		w.mu.Unlock()
	}
}

func (w *Watcher) report(err error) {
	select {
	case w.errors <- err:
	default:
	}
}

// HashFile computes the BLAKE2b-256 hash of a file.
func HashFile(path string) ([32]byte, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return [32]byte{}, 0, err
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return [32]byte{}, 0, err
	}
	size, err := io.Copy(h, f)
	if err != nil {
		return [32]byte{}, 0, err
	}

	var hash [32]byte
	copy(hash[:], h.Sum(nil))
	return hash, size, nil
}
