package ontology

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the event bursts editors emit on save.
const reloadDebounce = 250 * time.Millisecond

// Watcher hot-reloads a YAML catalog file into a Store. A reload that fails
// to parse or validate is logged and discarded; the previous catalog stays
// active.
type Watcher struct {
	store   *Store
	path    string
	watcher *fsnotify.Watcher
}

// NewWatcher loads the catalog file once, seeds the store with it, and
// starts watching the file's directory. Watching the directory instead of
// the file survives rename-based saves.
func NewWatcher(store *Store, path string) (*Watcher, error) {
	cat, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	store.Replace(cat)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("ontology: create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("ontology: watch %s: %w", path, err)
	}

	return &Watcher{store: store, path: path, watcher: fw}, nil
}

// Run processes filesystem events until the context is canceled. It is meant
// to be launched as a goroutine.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(reloadDebounce)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("ontology: watcher error: %v", err)
		case <-pending:
			pending = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	cat, err := LoadFile(w.path)
	if err != nil {
		log.Printf("ontology: reload %s failed, keeping previous catalog: %v", w.path, err)
		return
	}
	w.store.Replace(cat)
	log.Printf("ontology: reloaded catalog %s (%d concepts)", w.path, cat.Len())
}
