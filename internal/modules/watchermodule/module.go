package watchermodule

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/lumengallery/lumen/internal/config"
	"github.com/lumengallery/lumen/internal/events"
	"github.com/lumengallery/lumen/internal/modules/modulemanager"
	"github.com/lumengallery/lumen/internal/modules/storemodule"
)

const (
	ModuleID   = "gallery.watcher"
	ModuleName = "File Change Detector"
)

// Module wires the directory watcher into the module system.
type Module struct {
	id      string
	name    string
	core    bool
	cfg     *config.Config
	watcher *DirectoryWatcher
}

// Register registers this module with the module system
func Register(cfg *config.Config) {
	modulemanager.Register(&Module{
		id:   ModuleID,
		name: ModuleName,
		core: true,
		cfg:  cfg,
	})
}

// ID returns the module ID
func (m *Module) ID() string { return m.id }

// Name returns the module name
func (m *Module) Name() string { return m.name }

// Core returns whether this is a core module
func (m *Module) Core() bool { return m.core }

// Migrate is a no-op; the watcher has no database state.
func (m *Module) Migrate(db *gorm.DB) error { return nil }

// Init builds the watcher against the metadata store.
func (m *Module) Init() error {
	store := storemodule.GetStore()
	if store == nil {
		return fmt.Errorf("metadata store not initialized")
	}

	watcher, err := NewDirectoryWatcher(m.cfg.Gallery.PhotosDir, store, events.GetGlobalEventBus())
	if err != nil {
		return err
	}
	m.watcher = watcher
	return nil
}

// Start begins reconciliation and live watching.
func (m *Module) Start(ctx context.Context) error {
	return m.watcher.Start()
}

// Stop shuts the watcher down.
func (m *Module) Stop(ctx context.Context) error {
	return m.watcher.Stop()
}
