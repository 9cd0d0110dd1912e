package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"resume-intake/internal/shared/metrics"
)

func TestRecoveryReturnsInternalError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Recovery())
	r.POST("/api/v1/resumes", func(c *gin.Context) {
		c.Set("submissionId", "sub-1")
		c.Set("pipelineStage", "embedding")
		panic("vector store exploded")
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/resumes", nil)
	req.Header.Set("X-Request-Id", "req-42")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	var payload struct {
		Error struct {
			Code    string            `json:"code"`
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Error.Code != "internal" || payload.Error.Details["requestId"] != "req-42" {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
	if !strings.Contains(metrics.Render(), "http_panics_total") {
		t.Fatalf("expected panic counter in metrics")
	}
}

func TestRecoveryLeavesCommittedResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Recovery())
	r.GET("/api/v1/resumes/:email", func(c *gin.Context) {
		c.String(http.StatusOK, "partial")
		panic("late failure")
	})

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/resumes/a@b.com", nil))
	if resp.Code != http.StatusOK || resp.Body.String() != "partial" {
		t.Fatalf("expected committed response to survive, got %d %q", resp.Code, resp.Body.String())
	}
}
