package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"resume-intake/internal/llm"
	"resume-intake/internal/resumestore"
	"resume-intake/internal/shared/errs"
)

type stubSubmitter struct {
	got Submission
	out Outcome
}

func (s *stubSubmitter) Submit(_ context.Context, sub Submission) Outcome {
	s.got = sub
	return s.out
}

type stubTranscriber struct {
	text string
	err  error
	name string
	data string
}

func (s *stubTranscriber) Transcribe(_ context.Context, audio llm.Audio) (string, error) {
	s.name = audio.FileName
	raw, _ := io.ReadAll(audio.Data)
	s.data = string(raw)
	return s.text, s.err
}

func newTestRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.RegisterRoutes(r.Group("/api/v1"))
	return r
}

func completedOutcome() Outcome {
	return Completed{
		Resume:            ResumeDocument{Body: "Jane Doe"},
		ResumeLocation:    resumestore.Location{Bucket: "resumes", Key: "a_b_com_resume.txt"},
		EmbeddingLocation: resumestore.Location{Bucket: "embeddings", Key: "a_b_com_embedding_20250506_070809.json"},
	}
}

func decodeOutcome(t *testing.T, body []byte) outcomeResponse {
	t.Helper()
	var out outcomeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v: %s", err, body)
	}
	return out
}

func TestSubmitJSONCompleted(t *testing.T) {
	s := &stubSubmitter{out: completedOutcome()}
	r := newTestRouter(NewHandler(s, nil, 0))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/resumes", strings.NewReader(`{"narrative":"I weld ships.","email":"a@b.com","phone":"555"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	out := decodeOutcome(t, resp.Body.Bytes())
	if out.Status != StatusCompleted || out.Resume != "Jane Doe" {
		t.Fatalf("unexpected body %+v", out)
	}
	if out.ResumeLocation != "resumes/a_b_com_resume.txt" || out.Message != "File stored successfully: resumes/a_b_com_resume.txt" {
		t.Fatalf("unexpected location fields %+v", out)
	}
	if out.SubmissionID == "" || s.got.ID != out.SubmissionID {
		t.Fatalf("expected submission id to be forwarded, got %q vs %q", s.got.ID, out.SubmissionID)
	}
	if s.got.Email != "a@b.com" || s.got.Source != "text" {
		t.Fatalf("unexpected submission %+v", s.got)
	}
}

func TestSubmitPartialFailureIs207(t *testing.T) {
	s := &stubSubmitter{out: PartialFailure{
		Stage:       StageEmbedding,
		Resume:      ResumeDocument{Body: "Jane Doe"},
		StoredSoFar: resumestore.Location{Bucket: "resumes", Key: "a_b_com_resume.txt"},
		Cause:       errs.UpstreamStatus("openai", "embedding", 429, "slow down"),
	}}
	r := newTestRouter(NewHandler(s, nil, 0))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/resumes", strings.NewReader(`{"narrative":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusMultiStatus {
		t.Fatalf("expected 207, got %d", resp.Code)
	}
	out := decodeOutcome(t, resp.Body.Bytes())
	if out.Stage != StageEmbedding || out.Error == nil || out.Error.Code != "upstream_error" {
		t.Fatalf("unexpected body %+v", out)
	}
	if out.EmbeddingLocation != "" {
		t.Fatalf("no embedding location expected, got %q", out.EmbeddingLocation)
	}
}

func TestSubmitFailedStatusFollowsCause(t *testing.T) {
	tests := []struct {
		name  string
		cause error
		want  int
	}{
		{name: "validation", cause: errs.Invalid("narrative", "must not be blank"), want: http.StatusBadRequest},
		{name: "configuration", cause: errs.Config("azure-openai", "AZURE_OPENAI_API_KEY"), want: http.StatusServiceUnavailable},
		{name: "upstream", cause: errs.UpstreamStatus("azure-openai", "chat completion", 401, "denied"), want: http.StatusBadGateway},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			s := &stubSubmitter{out: Failed{Stage: StageGeneration, Cause: tt.cause}}
			r := newTestRouter(NewHandler(s, nil, 0))

			req := httptest.NewRequest(http.MethodPost, "/api/v1/resumes", strings.NewReader(`{"narrative":"x"}`))
			req.Header.Set("Content-Type", "application/json")
			resp := httptest.NewRecorder()
			r.ServeHTTP(resp, req)

			if resp.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, resp.Code)
			}
			out := decodeOutcome(t, resp.Body.Bytes())
			if out.Status != StatusFailed || out.Stage != StageGeneration || out.Resume != "" {
				t.Fatalf("unexpected body %+v", out)
			}
		})
	}
}

func TestSubmitRejectsMalformedJSON(t *testing.T) {
	r := newTestRouter(NewHandler(&stubSubmitter{}, nil, 0))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/resumes", strings.NewReader(`{`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func multipartBody(t *testing.T, fields map[string]string, fileField, fileName, fileType, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if fileField != "" {
		h := make(map[string][]string)
		h["Content-Disposition"] = []string{`form-data; name="` + fileField + `"; filename="` + fileName + `"`}
		h["Content-Type"] = []string{fileType}
		w, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestSubmitMultipartFile(t *testing.T) {
	s := &stubSubmitter{out: completedOutcome()}
	r := newTestRouter(NewHandler(s, nil, 0))

	body, ct := multipartBody(t, map[string]string{"email": "a@b.com"}, "file", "story.md", "text/markdown", "# About me\nI weld ships.")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/resumes", body)
	req.Header.Set("Content-Type", ct)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	if s.got.Narrative != "# About me\nI weld ships." || s.got.Source != "file" || s.got.Email != "a@b.com" {
		t.Fatalf("unexpected submission %+v", s.got)
	}
}

func TestSubmitMultipartAudio(t *testing.T) {
	s := &stubSubmitter{out: completedOutcome()}
	tr := &stubTranscriber{text: "I have ten years of welding experience."}
	r := newTestRouter(NewHandler(s, tr, 0))

	body, ct := multipartBody(t, nil, "audio", "intro.wav", "audio/wav", "RIFF....")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/resumes", body)
	req.Header.Set("Content-Type", ct)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	if s.got.Narrative != tr.text || s.got.Source != "audio" {
		t.Fatalf("unexpected submission %+v", s.got)
	}
	if tr.name != "intro.wav" || tr.data != "RIFF...." {
		t.Fatalf("unexpected transcriber input %q/%q", tr.name, tr.data)
	}
}

func TestSubmitAudioWithoutTranscriberIs503(t *testing.T) {
	r := newTestRouter(NewHandler(&stubSubmitter{}, nil, 0))

	body, ct := multipartBody(t, nil, "audio", "intro.wav", "audio/wav", "RIFF")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/resumes", body)
	req.Header.Set("Content-Type", ct)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
}

func TestSubmitOversizedFileRejected(t *testing.T) {
	r := newTestRouter(NewHandler(&stubSubmitter{}, nil, 8))

	body, ct := multipartBody(t, nil, "file", "story.txt", "text/plain", "this is longer than eight bytes")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/resumes", body)
	req.Header.Set("Content-Type", ct)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestTranscriptionsEndpoint(t *testing.T) {
	tr := &stubTranscriber{text: "hello there"}
	r := newTestRouter(NewHandler(&stubSubmitter{}, tr, 0))

	body, ct := multipartBody(t, nil, "audio", "clip.mp3", "audio/mpeg", "ID3")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transcriptions", body)
	req.Header.Set("Content-Type", ct)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var out map[string]string
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["text"] != "hello there" {
		t.Fatalf("unexpected text %q", out["text"])
	}
}

func TestTranscriptionsUpstreamError(t *testing.T) {
	tr := &stubTranscriber{err: errs.UpstreamStatus("openai", "transcription", 400, "Invalid file format.")}
	r := newTestRouter(NewHandler(&stubSubmitter{}, tr, 0))

	body, ct := multipartBody(t, nil, "audio", "clip.ogg", "audio/ogg", "OggS")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transcriptions", body)
	req.Header.Set("Content-Type", ct)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.Code)
	}
}
