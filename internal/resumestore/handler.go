package resumestore

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"resume-intake/internal/shared/errs"
	"resume-intake/internal/shared/server/respond"
)

// Handler exposes stored resumes and embedding records over HTTP.
type Handler struct {
	Store *Store
}

// NewHandler constructs a Handler.
func NewHandler(store *Store) *Handler {
	return &Handler{Store: store}
}

// RegisterRoutes attaches storage routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/resumes/:email", h.download)
	rg.GET("/embeddings", h.listEmbeddings)
}

func (h *Handler) download(c *gin.Context) {
	email := strings.TrimSpace(c.Param("email"))
	if email == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "email is required", nil)
		return
	}
	c.Set("candidateEmail", email)

	text, err := h.Store.LoadResume(c.Request.Context(), email)
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "resume not found", gin.H{"key": ResumeKey(email)})
		default:
			respond.FromError(c, err)
		}
		return
	}

	if c.Query("format") == "json" {
		respond.OK(c, gin.H{"email": email, "key": ResumeKey(email), "resume": text})
		return
	}
	respond.Attachment(c, ResumeKey(email), "text/plain; charset=utf-8", []byte(text))
}

type embeddingResponse struct {
	Key        string    `json:"key"`
	Email      string    `json:"email"`
	ResumeURL  string    `json:"resumeUrl"`
	Dimensions int       `json:"dimensions"`
	Embedding  []float64 `json:"embedding,omitempty"`
}

func (h *Handler) listEmbeddings(c *gin.Context) {
	email := strings.TrimSpace(c.Query("email"))
	withVectors := c.Query("vectors") == "true"

	recs, err := h.Store.ListEmbeddings(c.Request.Context(), email)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	items := make([]embeddingResponse, 0, len(recs))
	for _, rec := range recs {
		item := embeddingResponse{
			Key:        rec.Key,
			Email:      rec.Email,
			ResumeURL:  rec.ResumeURL,
			Dimensions: len(rec.Embedding),
		}
		if withVectors {
			item.Embedding = rec.Embedding
		}
		items = append(items, item)
	}
	respond.OK(c, gin.H{"items": items, "count": len(items)})
}
