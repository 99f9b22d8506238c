package watchermodule

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/lumengallery/lumen/internal/events"
	"github.com/lumengallery/lumen/internal/logger"
	"github.com/lumengallery/lumen/internal/utils"
)

// Reconcile walks the photos directory and creates base records for
// image files the store has never seen. Records whose file is missing
// are left alone: a transiently unmounted directory must not destroy
// metadata, so only live remove events delete records.
func (dw *DirectoryWatcher) Reconcile() error {
	added := 0

	err := filepath.Walk(dw.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != dw.root && dw.shouldIgnore(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if dw.shouldIgnore(path) || !utils.IsImageFile(path) {
			return nil
		}

		_, created, err := dw.store.Create(filepath.Base(path), path)
		if err != nil {
			return fmt.Errorf("failed to create record for %s: %w", path, err)
		}
		if created {
			added++
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("Reconciliation complete: %d new images, %d total", added, dw.store.Len())

	if dw.eventBus != nil {
		event := events.NewSystemEvent(events.EventReconcileDone,
			"Reconciliation completed", dw.root)
		event.Data["new_images"] = added
		event.Data["total_images"] = dw.store.Len()
		dw.eventBus.PublishAsync(event)
	}

	return nil
}
