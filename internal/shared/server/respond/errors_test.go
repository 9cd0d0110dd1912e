package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"resume-intake/internal/shared/errs"
)

func TestDescribeStatuses(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", errs.Invalid("narrative", "is required"), http.StatusBadRequest, "validation_error"},
		{"not found", fmt.Errorf("get: %w", errs.NotFound("resumes", "x")), http.StatusNotFound, "not_found"},
		{"config", errs.Config("llm", "AZURE_OPENAI_API_KEY"), http.StatusServiceUnavailable, "configuration_error"},
		{"upstream", errs.UpstreamStatus("openai", "chat completion", 500, "boom"), http.StatusBadGateway, "upstream_error"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			status, body := Describe(tt.err)
			if status != tt.status || body.Code != tt.code {
				t.Fatalf("expected %d/%s, got %d/%s", tt.status, tt.code, status, body.Code)
			}
		})
	}
}

func TestFromErrorWritesBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		FromError(c, errs.UpstreamStatus("azure-search", "query", 403, "forbidden"))
	})
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/x", nil))
	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.Code)
	}
	var payload ErrorResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Error.Message != "azure-search query failed: status 403: forbidden" {
		t.Fatalf("unexpected message: %q", payload.Error.Message)
	}
}
