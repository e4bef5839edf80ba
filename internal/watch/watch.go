// Package watch re-runs generation when the sources of a solution change.
package watch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/dejo1307/cs2luadoc/internal/logging"
)

// DefaultDebounce is how long the watcher waits for events to settle.
const DefaultDebounce = 500 * time.Millisecond

// DefaultExtensions are the file types that trigger a run.
var DefaultExtensions = []string{".cs", ".csproj", ".sln", ".yaml", ".yml"}

var skipDirs = map[string]bool{"bin": true, "obj": true, ".git": true, ".vs": true}

// ChangeFunc is called with the sorted absolute paths whose content changed
// or that were removed.
type ChangeFunc func(ctx context.Context, changed []string) error

// Watcher tracks content hashes of the watched files.
type Watcher struct {
	root       string
	extensions map[string]bool
	skip       map[string]bool
	debounce   time.Duration
	logger     *zap.SugaredLogger
	hashes     map[string]string // abs path -> sha256
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the settle delay.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the watcher logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithSkipDir excludes a directory, such as the output directory, from
// watching.
func WithSkipDir(path string) Option {
	return func(w *Watcher) {
		if abs, err := filepath.Abs(path); err == nil {
			w.skip[abs] = true
		}
	}
}

// New returns a watcher for root. A file root watches its directory.
func New(root string, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %s", root)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", root)
	}
	if !info.IsDir() {
		abs = filepath.Dir(abs)
	}

	w := &Watcher{
		root:       abs,
		extensions: make(map[string]bool),
		skip:       make(map[string]bool),
		debounce:   DefaultDebounce,
	}
	for _, ext := range DefaultExtensions {
		w.extensions[ext] = true
	}
	for _, o := range opts {
		o(w)
	}
	w.logger = logging.OrNop(w.logger).Named("watch")
	return w, nil
}

// Root returns the watched directory.
func (w *Watcher) Root() string { return w.root }

func (w *Watcher) relevant(path string) bool {
	return w.extensions[strings.ToLower(filepath.Ext(path))]
}

func (w *Watcher) skipDir(path string) bool {
	return skipDirs[filepath.Base(path)] || w.skip[path]
}

// dirs lists root and every directory below it that is watched.
func (w *Watcher) dirs(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.skipDir(path) {
			return filepath.SkipDir
		}
		out = append(out, path)
		return nil
	})
	return out, err
}

// Snapshot records the hashes of every relevant file under root.
func (w *Watcher) Snapshot() error {
	w.hashes = make(map[string]string)
	dirs, err := w.dirs(w.root)
	if err != nil {
		return errors.Wrapf(err, "scanning %s", w.root)
	}
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return errors.Wrapf(err, "reading %s", dir)
		}
		for _, e := range entries {
			path := filepath.Join(dir, e.Name())
			if e.IsDir() || !w.relevant(path) {
				continue
			}
			if h, err := hashFile(path); err == nil {
				w.hashes[path] = h
			}
		}
	}
	return nil
}

// Changed rehashes candidates and returns those whose content differs from
// the last known hash, including removed files. Known hashes are updated.
func (w *Watcher) Changed(candidates []string) []string {
	if w.hashes == nil {
		w.hashes = make(map[string]string)
	}
	var changed []string
	for _, path := range candidates {
		prev, known := w.hashes[path]
		h, err := hashFile(path)
		switch {
		case err != nil && known:
			delete(w.hashes, path)
			changed = append(changed, path)
		case err != nil:
		case !known || prev != h:
			w.hashes[path] = h
			changed = append(changed, path)
		}
	}
	sort.Strings(changed)
	return changed
}

func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:]), nil
}

// Run watches the root until ctx is done and calls onChange once per settled
// burst of content changes. Errors returned by onChange are logged and the
// watch goes on.
func (w *Watcher) Run(ctx context.Context, onChange ChangeFunc) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "creating file watcher")
	}
	defer fw.Close()

	if err := w.addTree(fw, w.root); err != nil {
		return err
	}
	if w.hashes == nil {
		if err := w.Snapshot(); err != nil {
			return err
		}
	}
	w.logger.Infow("watching for changes", "root", w.root, "files", len(w.hashes))

	pending := make(map[string]bool)
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if !w.skipDir(event.Name) {
						if err := w.addTree(fw, event.Name); err != nil {
							w.logger.Warnw("cannot watch new directory", "dir", event.Name, "error", err)
						}
						w.queueTree(event.Name, pending)
						timer.Reset(w.debounce)
					}
					continue
				}
			}
			if !w.relevant(event.Name) || event.Op == fsnotify.Chmod {
				continue
			}
			w.logger.Debugw("file event", "file", event.Name, "op", event.Op.String())
			pending[event.Name] = true
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warnw("watch error", "error", err)

		case <-timer.C:
			candidates := make([]string, 0, len(pending))
			for path := range pending {
				candidates = append(candidates, path)
			}
			clear(pending)

			changed := w.Changed(candidates)
			if len(changed) == 0 {
				w.logger.Debugw("events without content changes", "files", len(candidates))
				continue
			}
			w.logger.Infow("sources changed", "files", len(changed))
			if err := onChange(ctx, changed); err != nil {
				w.logger.Errorw("regeneration failed", "error", err)
			}
		}
	}
}

func (w *Watcher) addTree(fw *fsnotify.Watcher, root string) error {
	dirs, err := w.dirs(root)
	if err != nil {
		return errors.Wrapf(err, "scanning %s", root)
	}
	for _, dir := range dirs {
		if err := fw.Add(dir); err != nil {
			return errors.Wrapf(err, "watching %s", dir)
		}
	}
	return nil
}

// queueTree marks the relevant files of a newly created directory; files
// written before the directory was watched produce no events.
func (w *Watcher) queueTree(root string, pending map[string]bool) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && w.skipDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if w.relevant(path) {
			pending[path] = true
		}
		return nil
	})
}

// Run watches root with the given options. See Watcher.Run.
func Run(ctx context.Context, root string, onChange ChangeFunc, opts ...Option) error {
	w, err := New(root, opts...)
	if err != nil {
		return err
	}
	return w.Run(ctx, onChange)
}
