package storemodule

import (
	"fmt"
	"sync"

	"gorm.io/gorm"

	"github.com/lumengallery/lumen/internal/config"
	"github.com/lumengallery/lumen/internal/events"
	"github.com/lumengallery/lumen/internal/modules/modulemanager"
)

const (
	ModuleID   = "gallery.store"
	ModuleName = "Metadata Store"
)

// Module owns the metadata store and the settings sidecar. Every other
// module reaches image metadata through it.
type Module struct {
	id       string
	name     string
	core     bool
	cfg      *config.Config
	store    *Store
	settings *SettingsStore
}

var (
	instance *Module
	mu       sync.RWMutex
)

// Register registers this module with the module system
func Register(cfg *config.Config) {
	m := &Module{
		id:   ModuleID,
		name: ModuleName,
		core: true,
		cfg:  cfg,
	}
	mu.Lock()
	instance = m
	mu.Unlock()
	modulemanager.Register(m)
}

// ID returns the module ID
func (m *Module) ID() string { return m.id }

// Name returns the module name
func (m *Module) Name() string { return m.name }

// Core returns whether this is a core module
func (m *Module) Core() bool { return m.core }

// Migrate is a no-op; the store persists to its own JSON data file.
func (m *Module) Migrate(db *gorm.DB) error { return nil }

// Init loads the data file and settings. Corrupt persisted data fails
// initialization.
func (m *Module) Init() error {
	store, err := NewStore(m.cfg.Gallery.DataFile, events.GetGlobalEventBus())
	if err != nil {
		return fmt.Errorf("store init: %w", err)
	}
	settings, err := NewSettingsStore(m.cfg.Gallery.SettingsFile)
	if err != nil {
		return fmt.Errorf("settings init: %w", err)
	}
	m.store = store
	m.settings = settings
	return nil
}

// GetStore returns the process-wide metadata store.
func GetStore() *Store {
	mu.RLock()
	defer mu.RUnlock()
	if instance == nil {
		return nil
	}
	return instance.store
}

// GetSettings returns the process-wide settings store.
func GetSettings() *SettingsStore {
	mu.RLock()
	defer mu.RUnlock()
	if instance == nil {
		return nil
	}
	return instance.settings
}
