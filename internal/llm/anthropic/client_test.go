package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"resume-intake/internal/llm"
	"resume-intake/internal/shared/errs"
)

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(Options{Model: "claude-3-5-haiku-latest"}); !errs.IsConfig(err) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestCompleteJoinsTextBlocks(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "test-key" {
			t.Errorf("missing api key header")
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-haiku-latest","content":[{"type":"text","text":"Jane Doe\n"},{"type":"text","text":"Backend Engineer"}],"stop_reason":"end_turn","usage":{"input_tokens":10,"output_tokens":5}}`))
	}))
	defer srv.Close()

	client, err := New(Options{APIKey: "test-key", BaseURL: srv.URL + "/", Model: "claude-3-5-haiku-latest"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	out, err := client.Complete(context.Background(), llm.Request{System: "You are a professional resume writer.", User: "narrative"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out != "Jane Doe\nBackend Engineer" {
		t.Fatalf("unexpected output %q", out)
	}
	if body["max_tokens"] != float64(defaultMaxTokens) {
		t.Fatalf("expected default max tokens, got %v", body["max_tokens"])
	}
	if _, ok := body["system"]; !ok {
		t.Fatalf("expected system prompt in request")
	}
}

func TestCompleteMapsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	}))
	defer srv.Close()

	client, err := New(Options{APIKey: "bad", BaseURL: srv.URL + "/", Model: "claude-3-5-haiku-latest"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	_, err = client.Complete(context.Background(), llm.Request{User: "u"})
	up, ok := errs.AsUpstream(err)
	if !ok {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if up.Status != http.StatusUnauthorized || up.Provider != "anthropic" {
		t.Fatalf("unexpected upstream error %+v", up)
	}
}
