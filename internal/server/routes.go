package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lumengallery/lumen/internal/config"
	"github.com/lumengallery/lumen/internal/modules/modulemanager"
)

// newRouter builds the gin engine with shared middleware and the
// routes that belong to no module. Module routes are registered by the
// module system afterwards.
func newRouter(cfg *config.Config) *gin.Engine {
	r := gin.Default()

	if cfg.Server.EnableCORS {
		r.Use(corsMiddleware())
	}

	r.GET("/api/health", healthHandler)

	// Original files are served directly; record ids are filenames under
	// the photos directory.
	r.Static("/photos", cfg.Gallery.PhotosDir)

	return r
}

// CORS middleware for development
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func healthHandler(c *gin.Context) {
	modules := modulemanager.ListModules()
	names := make([]string, 0, len(modules))
	for _, m := range modules {
		names = append(names, m.ID())
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"modules": names,
	})
}
