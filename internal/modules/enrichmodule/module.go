package enrichmodule

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"github.com/lumengallery/lumen/internal/config"
	"github.com/lumengallery/lumen/internal/events"
	"github.com/lumengallery/lumen/internal/modules/modulemanager"
	"github.com/lumengallery/lumen/internal/modules/storemodule"
)

const (
	ModuleID   = "gallery.enrich"
	ModuleName = "Enrichment Pipeline"
)

// Module owns the enrichment providers and the scheduler that feeds
// them. When auto tagging is enabled it subscribes to image additions
// and enriches new files as they land.
type Module struct {
	id   string
	name string
	core bool
	cfg  *config.Config

	scheduler *Scheduler
	vision    *VisionProvider
	log       hclog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	subID  string
	wg     sync.WaitGroup
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

// Migrate is a no-op; enrichment keeps no database state of its own.
func (m *Module) Migrate(db *gorm.DB) error { return nil }

// Init builds the providers and the scheduler.
func (m *Module) Init() error {
	store := storemodule.GetStore()
	if store == nil {
		return fmt.Errorf("metadata store not initialized")
	}

	m.log = hclog.New(&hclog.LoggerOptions{
		Name:  "lumen.enrich",
		Level: hclog.LevelFromString(m.cfg.Logging.Level),
	})

	ocr := NewOCRProvider(&m.cfg.Enrich, m.log)
	m.vision = NewVisionProvider(&m.cfg.Enrich, m.log)
	throttler := newLoadThrottler(m.cfg.Enrich.CPUThreshold, m.cfg.Enrich.MemoryThreshold, m.log)

	m.scheduler = NewScheduler(store, ocr, m.vision, events.GetGlobalEventBus(),
		throttler, m.cfg.Enrich.BatchSize, m.log)
	return nil
}

// Start applies persisted settings to the vision provider, subscribes
// to image additions, and drains the backlog in the background.
func (m *Module) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(context.Background())

	if settings := storemodule.GetSettings(); settings != nil {
		s := settings.Get()
		m.vision.Configure(s.AI.Model, s.AI.APIKey)
	}

	bus := events.GetGlobalEventBus()
	if bus != nil {
		sub, err := bus.Subscribe(m.ctx, events.EventFilter{
			Types: []events.EventType{events.EventImageAdded},
		}, m.onImageAdded)
		if err != nil {
			return fmt.Errorf("subscribe to image additions: %w", err)
		}
		m.subID = sub.ID
	}

	if m.autoTagEnabled() {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			if err := m.scheduler.ProcessBacklog(m.ctx); err != nil && !errors.Is(err, context.Canceled) {
				m.log.Error("backlog processing aborted", "error", err)
			}
		}()
	}
	return nil
}

// Stop cancels in-flight enrichment and waits for workers to exit.
func (m *Module) Stop(ctx context.Context) error {
	if bus := events.GetGlobalEventBus(); bus != nil && m.subID != "" {
		bus.Unsubscribe(m.subID)
	}
	if m.cancel != nil {
		m.cancel()
	}
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (m *Module) autoTagEnabled() bool {
	settings := storemodule.GetSettings()
	if settings == nil {
		return false
	}
	return settings.Get().AI.AutoTag
}

// onImageAdded enriches newly added images when auto tagging is on.
func (m *Module) onImageAdded(event events.Event) error {
	if !m.autoTagEnabled() {
		return nil
	}
	id := event.Target
	if id == "" {
		return nil
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		err := m.scheduler.Process(m.ctx, id, false)
		if err != nil && !errors.Is(err, ErrAlreadyInFlight) && !errors.Is(err, context.Canceled) {
			m.log.Warn("auto enrichment failed", "image", id, "error", err)
		}
	}()
	return nil
}

// RegisterRoutes wires the manual re-enrichment endpoint.
func (m *Module) RegisterRoutes(router *gin.Engine) {
	router.POST("/api/retag-image", m.retagImage)
}

// retagImage re-runs both providers for one record, bypassing the
// processed flags. A record already being enriched answers 409.
func (m *Module) retagImage(c *gin.Context) {
	var req struct {
		ImageName string `json:"imageName"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.ImageName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "imageName is required"})
		return
	}

	err := m.scheduler.Process(c.Request.Context(), req.ImageName, true)
	switch {
	case err == nil:
		rec, gerr := storemodule.GetStore().Get(req.ImageName)
		if gerr != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": gerr.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "image": rec})
	case errors.Is(err, ErrAlreadyInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": "image is already being processed"})
	case errors.Is(err, storemodule.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
