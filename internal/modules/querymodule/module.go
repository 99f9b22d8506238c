package querymodule

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
	ModuleID   = "gallery.query"
	ModuleName = "Query Engine"
)

// Module serves the read side of the gallery API: search, pagination,
// tag listings, and the metadata edit endpoints that feed back into the
// store.
type Module struct {
	id       string
	name     string
	core     bool
	cfg      *config.Config
	store    *storemodule.Store
	settings *storemodule.SettingsStore
	engine   *Engine
	subID    string
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

// Migrate is a no-op; queries run against the in-memory store.
func (m *Module) Migrate(db *gorm.DB) error { return nil }

// Init builds the engine over the metadata store.
func (m *Module) Init() error {
	m.store = storemodule.GetStore()
	m.settings = storemodule.GetSettings()
	if m.store == nil || m.settings == nil {
		return fmt.Errorf("metadata store not initialized")
	}
	m.engine = NewEngine(m.store, m.cfg.Gallery.PageSize)
	return nil
}

// Start invalidates cached orderings whenever store membership changes,
// so pages never reference records that were added or removed since the
// ordering was built.
func (m *Module) Start(ctx context.Context) error {
	bus := events.GetGlobalEventBus()
	if bus == nil {
		return nil
	}
	sub, err := bus.Subscribe(ctx, events.EventFilter{
		Types: events.MembershipEvents,
	}, func(events.Event) error {
		m.engine.Invalidate()
		return nil
	})
	if err != nil {
		return fmt.Errorf("subscribe to membership events: %w", err)
	}
	m.subID = sub.ID
	return nil
}

// Stop removes the membership subscription.
func (m *Module) Stop(ctx context.Context) error {
	if bus := events.GetGlobalEventBus(); bus != nil && m.subID != "" {
		return bus.Unsubscribe(m.subID)
	}
	return nil
}
