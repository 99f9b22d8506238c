// Package server assembles the gallery backend: database, event bus,
// module system, and the HTTP surface.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lumengallery/lumen/internal/config"
	"github.com/lumengallery/lumen/internal/database"
	"github.com/lumengallery/lumen/internal/events"
	"github.com/lumengallery/lumen/internal/logger"
	"github.com/lumengallery/lumen/internal/modules/enrichmodule"
	"github.com/lumengallery/lumen/internal/modules/livemodule"
	"github.com/lumengallery/lumen/internal/modules/modulemanager"
	"github.com/lumengallery/lumen/internal/modules/querymodule"
	"github.com/lumengallery/lumen/internal/modules/storemodule"
	"github.com/lumengallery/lumen/internal/modules/watchermodule"
)

// Server owns the process lifecycle: it boots the shared services,
// loads the modules, and runs the HTTP listener until told to stop.
type Server struct {
	cfg      *config.Config
	router   *gin.Engine
	eventBus events.EventBus
	httpSrv  *http.Server
}

// New initializes the shared services and module system. Module order
// matters: the store must load before anything that reads it.
func New(cfg *config.Config) (*Server, error) {
	logger.SetLevel(cfg.Logging.Level)

	if err := database.Initialize(&cfg.Database); err != nil {
		return nil, fmt.Errorf("database init: %w", err)
	}

	bus, err := startEventBus()
	if err != nil {
		return nil, fmt.Errorf("event bus init: %w", err)
	}
	events.SetGlobalEventBus(bus)

	storemodule.Register(cfg)
	querymodule.Register(cfg)
	enrichmodule.Register(cfg)
	livemodule.Register(cfg)
	watchermodule.Register(cfg)

	if err := modulemanager.LoadAll(database.GetDB()); err != nil {
		return nil, fmt.Errorf("module init: %w", err)
	}

	router := newRouter(cfg)
	modulemanager.RegisterRoutes(router)

	return &Server{
		cfg:      cfg,
		router:   router,
		eventBus: bus,
	}, nil
}

func startEventBus() (events.EventBus, error) {
	storage, err := events.NewDatabaseStorage(database.GetDB())
	if err != nil {
		return nil, err
	}

	bus := events.NewEventBus(events.DefaultEventBusConfig(), events.NewStdLogger(), storage)
	if err := bus.Start(context.Background()); err != nil {
		return nil, err
	}
	return bus, nil
}

// Run starts background modules and serves HTTP until ctx is canceled,
// then shuts everything down in reverse order.
func (s *Server) Run(ctx context.Context) error {
	if err := modulemanager.StartAll(ctx); err != nil {
		return fmt.Errorf("module start: %w", err)
	}

	s.eventBus.PublishAsync(events.NewSystemEvent(events.EventSystemStarted,
		"System started", "gallery backend is up"))

	addr := net.JoinHostPort(s.cfg.Server.Host, s.cfg.Server.Port)
	s.httpSrv = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Listening on %s", addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.shutdown()
		return err
	case <-ctx.Done():
		s.shutdown()
		return nil
	}
}

func (s *Server) shutdown() {
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP shutdown: %v", err)
		}
	}

	modulemanager.StopAll(shutdownCtx)

	s.eventBus.PublishAsync(events.NewSystemEvent(events.EventSystemStopped,
		"System stopped", "gallery backend is shutting down"))
	if err := s.eventBus.Stop(shutdownCtx); err != nil {
		logger.Warn("Event bus shutdown: %v", err)
	}
}
