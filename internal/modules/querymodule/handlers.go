package querymodule

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lumengallery/lumen/internal/events"
	"github.com/lumengallery/lumen/internal/modules/storemodule"
	"github.com/lumengallery/lumen/internal/utils"
)

// imageView is the wire shape of one gallery item.
type imageView struct {
	Name        string    `json:"name"`
	Src         string    `json:"src"`
	Text        string    `json:"text"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags"`
	Colors      []string  `json:"colors"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	Date        time.Time `json:"date"`
}

// toView flattens a record for the frontend. Dimension probing is best
// effort; unreadable files report zero dimensions rather than erroring
// the whole page.
func toView(rec *storemodule.ImageRecord) imageView {
	w, h, err := utils.Dimensions(rec.FilePath)
	if err != nil {
		w, h = 0, 0
	}
	return imageView{
		Name:        rec.Name,
		Src:         "/photos/" + url.PathEscape(rec.Name),
		Text:        rec.OCRText,
		Title:       rec.Title,
		Description: rec.Description,
		Tags:        rec.Tags,
		Colors:      rec.Colors,
		Width:       w,
		Height:      h,
		Date:        rec.Date,
	}
}

// RegisterRoutes wires the gallery query and metadata-edit endpoints.
func (m *Module) RegisterRoutes(router *gin.Engine) {
	router.GET("/api/images", m.listImages)
	router.GET("/api/get-tags", m.listTags)
	router.GET("/api/image-info", m.imageInfo)
	router.POST("/api/images/:imageName/tags", m.addTag)
	router.DELETE("/api/images/:imageName/tags/:tag", m.removeTag)
	router.PUT("/api/images/:imageName/description", m.updateDescription)
	router.POST("/api/clear", m.clearStore)
	router.GET("/api/settings", m.getSettings)
	router.PUT("/api/settings", m.updateSettings)
	router.GET("/api/events", m.listEvents)
}

// listImages answers GET /api/images?search=&offset=&limit=&shuffle=&sort=.
// shuffle=true forces random ordering regardless of sort.
func (m *Module) listImages(c *gin.Context) {
	search := c.Query("search")
	offset := intQuery(c, "offset", 0)
	limit := intQuery(c, "limit", 0)

	mode := c.Query("sort")
	if c.Query("shuffle") == "true" {
		mode = ModeRandom
	}

	page := m.engine.Query(search, mode, offset, limit)

	views := make([]imageView, 0, len(page.Items))
	for _, rec := range page.Items {
		views = append(views, toView(rec))
	}
	c.JSON(http.StatusOK, gin.H{
		"images":  views,
		"total":   page.Total,
		"hasMore": page.HasMore,
	})
}

// listTags answers with a bare array of {tag, count} entries.
func (m *Module) listTags(c *gin.Context) {
	c.JSON(http.StatusOK, m.engine.TagFrequencies(c.Query("keyword")))
}

// imageInfo answers with the enrichment state of one record: its tags,
// the descriptive context, and whether tagging is still outstanding.
func (m *Module) imageInfo(c *gin.Context) {
	name := c.Query("imageName")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "imageName is required"})
		return
	}
	rec, err := m.store.Get(name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"tags":         rec.Tags,
		"context":      rec.Description,
		"needsTagging": rec.NeedsTagging,
	})
}

func (m *Module) addTag(c *gin.Context) {
	var req struct {
		Tag string `json:"tag"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Tag == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tag is required"})
		return
	}

	rec, err := m.store.AddTag(c.Param("imageName"), req.Tag)
	if err != nil {
		m.writeStoreError(c, err)
		return
	}
	m.engine.Invalidate()
	c.JSON(http.StatusOK, gin.H{"success": true, "tags": rec.Tags})
}

func (m *Module) removeTag(c *gin.Context) {
	rec, err := m.store.RemoveTag(c.Param("imageName"), c.Param("tag"))
	if err != nil {
		m.writeStoreError(c, err)
		return
	}
	m.engine.Invalidate()
	c.JSON(http.StatusOK, gin.H{"success": true, "tags": rec.Tags})
}

func (m *Module) updateDescription(c *gin.Context) {
	var req struct {
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	rec, err := m.store.SetDescription(c.Param("imageName"), req.Description)
	if err != nil {
		m.writeStoreError(c, err)
		return
	}
	m.engine.Invalidate()
	c.JSON(http.StatusOK, gin.H{"success": true, "description": rec.Description})
}

func (m *Module) clearStore(c *gin.Context) {
	if err := m.store.Clear(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (m *Module) getSettings(c *gin.Context) {
	c.JSON(http.StatusOK, m.settings.Get())
}

func (m *Module) updateSettings(c *gin.Context) {
	var next storemodule.Settings
	if err := c.ShouldBindJSON(&next); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid settings body"})
		return
	}
	if err := m.settings.Update(next); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, m.settings.Get())
}

// listEvents exposes the persisted event log for the activity view.
func (m *Module) listEvents(c *gin.Context) {
	bus := events.GetGlobalEventBus()
	if bus == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event bus not running"})
		return
	}

	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)

	var filter events.EventFilter
	if t := c.Query("type"); t != "" {
		filter.Types = []events.EventType{events.EventType(t)}
	}
	if s := c.Query("source"); s != "" {
		filter.Sources = []string{s}
	}

	list, total, err := bus.GetEvents(filter, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": list, "total": total})
}

func (m *Module) writeStoreError(c *gin.Context, err error) {
	if errors.Is(err, storemodule.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func intQuery(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
