package search

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"resume-intake/internal/shared/server/respond"
)

// Searcher is the pipeline's search entry point.
type Searcher interface {
	Search(ctx context.Context, text string, top int) (Result, error)
}

// IndexStats summarizes one reindex run.
type IndexStats struct {
	Resumes    int `json:"resumes"`
	Embeddings int `json:"embeddings"`
	Removed    int `json:"removed"`
}

// Reindexer rebuilds a provider-side index from stored resumes.
type Reindexer interface {
	Reindex(ctx context.Context) (IndexStats, error)
}

// Handler exposes search over HTTP. Reindexer is nil when the provider manages its own index.
type Handler struct {
	Searcher  Searcher
	Reindexer Reindexer
}

// NewHandler constructs a Handler.
func NewHandler(searcher Searcher, reindexer Reindexer) *Handler {
	return &Handler{Searcher: searcher, Reindexer: reindexer}
}

// RegisterRoutes attaches search routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/search", h.search)
	rg.POST("/search/reindex", h.reindex)
}

func (h *Handler) search(c *gin.Context) {
	top := 0
	if raw := strings.TrimSpace(c.Query("top")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxTop {
			respond.Error(c, http.StatusBadRequest, "validation_error", "top must be between 1 and 100", gin.H{"top": raw})
			return
		}
		top = n
	}

	res, err := h.Searcher.Search(c.Request.Context(), c.Query("q"), top)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.OK(c, res)
}

func (h *Handler) reindex(c *gin.Context) {
	if h.Reindexer == nil {
		respond.Error(c, http.StatusConflict, "reindex_unsupported", "search provider manages its own index", nil)
		return
	}
	stats, err := h.Reindexer.Reindex(c.Request.Context())
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.OK(c, stats)
}
