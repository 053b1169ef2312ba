package api

import (
	"cmp"
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/rss-digest/app/feed"
	"github.com/lysyi3m/rss-digest/app/publish"
)

func NewHandler(pipeline PipelineInterface, registry *feed.RegistryCache, generator GeneratorInterface, baseURL string, postLimit int) *Handler {
	return &Handler{
		pipeline:  pipeline,
		registry:  registry,
		generator: generator,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		postLimit: postLimit,
	}
}

// corpus fetches the latest corpus or answers 503 when no run has finished.
func (h *Handler) corpus(c *gin.Context) *feed.Corpus {
	corpus := h.pipeline.Latest()
	if corpus == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "No run has completed yet"})
		return nil
	}
	return corpus
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"sources":   h.registry.GetSourceCount(),
	}

	if corpus := h.pipeline.Latest(); corpus != nil {
		health["status"] = "ok"
		health["last_run"] = newRunResponse(corpus)
	} else {
		health["status"] = "pending"
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetPosts(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	corpus := h.corpus(c)
	if corpus == nil {
		return
	}

	posts := corpus.Posts
	if category := c.Query("category"); category != "" {
		posts = corpus.Category(category)
	}
	if limit > 0 && limit < len(posts) {
		posts = posts[:limit]
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id": corpus.RunID,
		"posts":  posts,
		"total":  len(posts),
	})
}

func (h *Handler) GetCategories(c *gin.Context) {
	corpus := h.corpus(c)
	if corpus == nil {
		return
	}

	names := corpus.Categories()
	categories := make([]categoryResponse, 0, len(names))
	for _, name := range names {
		label := h.registry.GetCategoryLabel(name)
		categories = append(categories, categoryResponse{
			Name:  name,
			Title: label.Title,
			Icon:  label.Icon,
			Posts: len(corpus.Category(name)),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"categories": categories,
		"total":      len(categories),
	})
}

func (h *Handler) GetErrors(c *gin.Context) {
	corpus := h.corpus(c)
	if corpus == nil {
		return
	}

	errs := make([]errorResponse, 0, len(corpus.Errors))
	for _, sourceErr := range corpus.Errors {
		errs = append(errs, errorResponse{
			Source: sourceErr.Source,
			Kind:   sourceErr.Kind(),
			Error:  sourceErr.Error(),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id": corpus.RunID,
		"errors": errs,
		"total":  len(errs),
	})
}

func (h *Handler) GetFeed(c *gin.Context) {
	corpus := h.pipeline.Latest()
	if corpus == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}

	registry := h.registry.GetRegistry()
	channel := publish.Channel{
		Title:       cmp.Or(registry.Title, "RSS Digest"),
		Description: registry.Description,
		BuiltAt:     corpus.RunAt,
	}
	if h.baseURL != "" {
		channel.Link = h.baseURL + "/"
		channel.SelfLink = h.baseURL + "/feed.xml"
	}

	posts := corpus.Latest(h.postLimit)
	rss, err := h.generator.Run(channel, posts)
	if err != nil {
		slog.Error("RSS generation error", "run_id", corpus.RunID, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(posts)))
	c.Header("X-Last-Updated", corpus.RunAt.In(time.Local).Format(time.RFC3339))

	c.String(http.StatusOK, rss)
}

func (h *Handler) APIRefresh(c *gin.Context) {
	// The run outlives a client that disconnects mid-request
	corpus, err := h.pipeline.Refresh(context.WithoutCancel(c.Request.Context()))
	if err != nil {
		slog.Error("Refresh failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Refresh failed",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"run":     newRunResponse(corpus),
	})
}
