package livemodule

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/lumengallery/lumen/internal/config"
	"github.com/lumengallery/lumen/internal/events"
	"github.com/lumengallery/lumen/internal/modules/modulemanager"
)

const (
	ModuleID   = "gallery.live"
	ModuleName = "Live Updates"
)

// Module bridges the event bus to websocket clients: any membership
// change in the store becomes an imagesUpdated push.
type Module struct {
	id    string
	name  string
	core  bool
	cfg   *config.Config
	hub   *Hub
	subID string
}

// Register registers this module with the module system
func Register(cfg *config.Config) {
	modulemanager.Register(&Module{
		id:   ModuleID,
		name: ModuleName,
		core: false,
		cfg:  cfg,
	})
}

// ID returns the module ID
func (m *Module) ID() string { return m.id }

// Name returns the module name
func (m *Module) Name() string { return m.name }

// Core returns whether this is a core module
func (m *Module) Core() bool { return m.core }

// Migrate is a no-op; live updates are transient.
func (m *Module) Migrate(db *gorm.DB) error { return nil }

// Init builds the hub.
func (m *Module) Init() error {
	m.hub = NewHub()
	return nil
}

// Start subscribes the hub to store membership and update events.
func (m *Module) Start(ctx context.Context) error {
	bus := events.GetGlobalEventBus()
	if bus == nil {
		return nil
	}

	types := append([]events.EventType{}, events.MembershipEvents...)
	types = append(types, events.EventImageUpdated)

	sub, err := bus.Subscribe(ctx, events.EventFilter{Types: types}, func(e events.Event) error {
		m.hub.Broadcast(Notification{Type: "imagesUpdated", Image: e.Target})
		return nil
	})
	if err != nil {
		return fmt.Errorf("subscribe to gallery events: %w", err)
	}
	m.subID = sub.ID
	return nil
}

// Stop closes all client connections.
func (m *Module) Stop(ctx context.Context) error {
	if bus := events.GetGlobalEventBus(); bus != nil && m.subID != "" {
		bus.Unsubscribe(m.subID)
	}
	m.hub.Close()
	return nil
}

// RegisterRoutes exposes the websocket endpoint.
func (m *Module) RegisterRoutes(router *gin.Engine) {
	router.GET("/ws", func(c *gin.Context) {
		m.hub.Handle(c.Writer, c.Request)
	})
}
