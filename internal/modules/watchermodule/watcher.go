package watchermodule

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lumengallery/lumen/internal/events"
	"github.com/lumengallery/lumen/internal/logger"
	"github.com/lumengallery/lumen/internal/modules/storemodule"
	"github.com/lumengallery/lumen/internal/utils"
)

// DirectoryWatcher keeps store membership in sync with the contents of
// the photos directory.
type DirectoryWatcher struct {
	root     string
	store    *storemodule.Store
	eventBus events.EventBus

	watcher *fsnotify.Watcher

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Raw fsnotify events are queued and debounced so editors that
	// write a file in many small bursts produce one store mutation.
	eventQueue       chan fileEvent
	debounceInterval time.Duration
}

type fileEvent struct {
	op   fsnotify.Op
	path string
}

// NewDirectoryWatcher creates a watcher rooted at the photos directory.
func NewDirectoryWatcher(root string, store *storemodule.Store, eventBus events.EventBus) (*DirectoryWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &DirectoryWatcher{
		root:             root,
		store:            store,
		eventBus:         eventBus,
		watcher:          watcher,
		ctx:              ctx,
		cancel:           cancel,
		eventQueue:       make(chan fileEvent, 1000),
		debounceInterval: 2 * time.Second,
	}, nil
}

// Start reconciles the directory against the store and begins watching
// for live changes.
func (dw *DirectoryWatcher) Start() error {
	if err := os.MkdirAll(dw.root, 0755); err != nil {
		return fmt.Errorf("failed to create photos directory: %w", err)
	}

	if err := dw.Reconcile(); err != nil {
		return fmt.Errorf("startup reconciliation failed: %w", err)
	}

	if err := dw.watcher.Add(dw.root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dw.root, err)
	}
	if err := dw.addRecursiveWatch(dw.root); err != nil {
		logger.Error("Failed to add recursive watches: %v", err)
		// New subdirectories are still picked up from create events.
	}

	dw.wg.Add(1)
	go dw.watchEvents()

	dw.wg.Add(1)
	go dw.processFileEvents()

	if dw.eventBus != nil {
		dw.eventBus.PublishAsync(events.NewSystemEvent(events.EventWatchStarted,
			"Directory watch started", dw.root))
	}

	logger.Info("Watching %s for image changes", dw.root)
	return nil
}

// Stop stops the watcher and waits for in-flight event processing.
func (dw *DirectoryWatcher) Stop() error {
	dw.cancel()
	if dw.watcher != nil {
		dw.watcher.Close()
	}
	dw.wg.Wait()
	return nil
}

// shouldIgnore filters hidden files, the store's own metadata files,
// and its tmp_ scratch files, so persistence writes are never observed
// as image changes.
func (dw *DirectoryWatcher) shouldIgnore(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return true
	}
	if strings.HasPrefix(base, storemodule.TempFilePrefix) {
		return true
	}
	if base == "imageData.json" || base == "settings.json" {
		return true
	}
	return false
}

func (dw *DirectoryWatcher) addRecursiveWatch(rootPath string) error {
	return filepath.Walk(rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() && path != rootPath && !dw.shouldIgnore(path) {
			if err := dw.watcher.Add(path); err != nil {
				logger.Debug("Failed to add watch for subdirectory %s: %v", path, err)
			}
		}
		return nil
	})
}

// watchEvents is the main loop draining fsnotify into the debounce queue.
func (dw *DirectoryWatcher) watchEvents() {
	defer dw.wg.Done()

	for {
		select {
		case event, ok := <-dw.watcher.Events:
			if !ok {
				return
			}
			dw.handleFileSystemEvent(event)

		case err, ok := <-dw.watcher.Errors:
			if !ok {
				return
			}
			logger.Error("File watcher error: %v", err)

		case <-dw.ctx.Done():
			return
		}
	}
}

func (dw *DirectoryWatcher) handleFileSystemEvent(event fsnotify.Event) {
	if dw.shouldIgnore(event.Name) {
		return
	}

	// Watch newly created directories so nested additions are seen.
	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := dw.watcher.Add(event.Name); err != nil {
				logger.Error("Failed to watch new directory %s: %v", event.Name, err)
			}
			return
		}
	}

	if !utils.IsImageFile(event.Name) {
		return
	}

	select {
	case dw.eventQueue <- fileEvent{op: event.Op, path: event.Name}:
	case <-time.After(time.Second):
		logger.Warn("File event queue full, dropping event for %s", event.Name)
	}
}

// processFileEvents batches queued events per path on a debounce tick.
// Only the latest event per path within a tick survives.
func (dw *DirectoryWatcher) processFileEvents() {
	defer dw.wg.Done()

	pending := make(map[string]fileEvent)
	ticker := time.NewTicker(dw.debounceInterval)
	defer ticker.Stop()

	for {
		select {
		case event := <-dw.eventQueue:
			pending[event.path] = event

		case <-ticker.C:
			if len(pending) > 0 {
				dw.applyBatch(pending)
				pending = make(map[string]fileEvent)
			}

		case <-dw.ctx.Done():
			if len(pending) > 0 {
				dw.applyBatch(pending)
			}
			return
		}
	}
}

func (dw *DirectoryWatcher) applyBatch(batch map[string]fileEvent) {
	for path, event := range batch {
		if err := dw.applyEvent(event); err != nil {
			logger.Error("Failed to process file event for %s: %v", path, err)
		}
	}
}

func (dw *DirectoryWatcher) applyEvent(event fileEvent) error {
	id := filepath.Base(event.path)

	switch {
	case event.op&fsnotify.Create == fsnotify.Create:
		_, created, err := dw.store.Create(id, event.path)
		if err != nil {
			return err
		}
		if created {
			logger.Info("New image detected: %s", id)
		}
		return nil

	case event.op&(fsnotify.Remove|fsnotify.Rename) != 0:
		removed, err := dw.store.Delete(id)
		if err != nil {
			return err
		}
		if removed {
			logger.Info("Image removed: %s", id)
		}
		return nil

	case event.op&fsnotify.Write == fsnotify.Write:
		// Content edits refresh subscribers but never re-trigger
		// enrichment.
		err := dw.store.Touch(id)
		if err == storemodule.ErrRecordNotFound {
			// A new file arrives as create immediately followed by
			// write, and the debounce map keeps only the latest event
			// per path. The record may not exist yet, so a write for an
			// unknown path with a file behind it is a create.
			if _, statErr := os.Stat(event.path); statErr == nil {
				_, created, cerr := dw.store.Create(id, event.path)
				if cerr != nil {
					return cerr
				}
				if created {
					logger.Info("New image detected: %s", id)
				}
			}
			return nil
		}
		return err

	default:
		logger.Debug("Ignoring file event %v for %s", event.op, event.path)
		return nil
	}
}
