package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"resume-intake/internal/shared/errs"
)

type stubSearcher struct {
	text string
	top  int
	res  Result
	err  error
}

func (s *stubSearcher) Search(_ context.Context, text string, top int) (Result, error) {
	s.text, s.top = text, top
	return s.res, s.err
}

type stubReindexer struct{ calls int }

func (s *stubReindexer) Reindex(context.Context) (IndexStats, error) {
	s.calls++
	return IndexStats{Resumes: 2, Embeddings: 1}, nil
}

func newRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.RegisterRoutes(r.Group("/api/v1"))
	return r
}

func TestSearchEndpoint(t *testing.T) {
	s := &stubSearcher{res: Result{
		Documents: []Document{{ID: "a_b_com_resume.txt", Content: "welder", Score: 1.5}},
		Answers:   []Answer{},
	}}
	r := newRouter(NewHandler(s, nil))

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/search?q=welder&top=3", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if s.text != "welder" || s.top != 3 {
		t.Fatalf("unexpected forwarded query %q/%d", s.text, s.top)
	}
	var body Result
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Documents) != 1 || body.Documents[0].ID != "a_b_com_resume.txt" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestSearchEndpointRejectsBadTop(t *testing.T) {
	r := newRouter(NewHandler(&stubSearcher{}, nil))
	for _, top := range []string{"0", "101", "abc"} {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/search?top="+top, nil))
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("top=%s: expected 400, got %d", top, resp.Code)
		}
	}
}

func TestSearchEndpointMapsUpstreamError(t *testing.T) {
	s := &stubSearcher{err: errs.UpstreamStatus("azure-search", "search", 403, "Forbidden")}
	r := newRouter(NewHandler(s, nil))

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/search?q=go", nil))
	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.Code)
	}
}

func TestReindexEndpoint(t *testing.T) {
	ri := &stubReindexer{}
	r := newRouter(NewHandler(&stubSearcher{}, ri))

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/search/reindex", nil))
	if resp.Code != http.StatusOK || ri.calls != 1 {
		t.Fatalf("expected reindex to run, got %d calls=%d", resp.Code, ri.calls)
	}
}

func TestReindexUnsupported(t *testing.T) {
	r := newRouter(NewHandler(&stubSearcher{}, nil))

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/search/reindex", nil))
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.Code)
	}
}
