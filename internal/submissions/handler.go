package submissions

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"resume-intake/internal/shared/server/respond"
)

// Handler exposes the submission history.
type Handler struct {
	Repo Repo
}

// NewHandler constructs a Handler.
func NewHandler(repo Repo) *Handler {
	return &Handler{Repo: repo}
}

// RegisterRoutes attaches history routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/submissions", h.list)
}

func (h *Handler) list(c *gin.Context) {
	limit := DefaultListLimit
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxListLimit {
			respond.Error(c, http.StatusBadRequest, "validation_error", "limit must be between 1 and 500", gin.H{"limit": raw})
			return
		}
		limit = n
	}

	items, err := h.Repo.List(c.Request.Context(), strings.TrimSpace(c.Query("email")), limit)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "history_unavailable", "Failed to list submissions", nil)
		return
	}
	respond.OK(c, gin.H{"items": items, "count": len(items)})
}
