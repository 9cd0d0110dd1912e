package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gin-gonic/gin"

	"resume-intake/internal/shared/errs"
	"resume-intake/internal/shared/server/respond"
)

func TestColdStartProxiesToRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	builds := 0
	start := &coldStart{build: func() (*gin.Engine, error) {
		builds++
		r := gin.New()
		r.GET("/api/v1/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
		return r, nil
	}}
	req := events.APIGatewayV2HTTPRequest{
		RawPath: "/api/v1/health",
		RequestContext: events.APIGatewayV2HTTPRequestContext{
			DomainName: "intake.example.com",
			HTTP:       events.APIGatewayV2HTTPRequestContextHTTPDescription{Method: http.MethodGet, Path: "/api/v1/health"},
		},
	}
	for i := 0; i < 2; i++ {
		resp, err := start.handle(context.Background(), req)
		if err != nil {
			t.Fatalf("handle: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", resp.StatusCode, resp.Body)
		}
	}
	if builds != 1 {
		t.Fatalf("expected a single build, got %d", builds)
	}
}

func TestColdStartReportsConfigError(t *testing.T) {
	start := &coldStart{build: func() (*gin.Engine, error) {
		return nil, errs.Config("llm", "OPENAI_API_KEY")
	}}
	resp, err := start.handle(context.Background(), events.APIGatewayV2HTTPRequest{})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
	var payload respond.ErrorResponse
	if err := json.Unmarshal([]byte(resp.Body), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Error.Code != "configuration_error" {
		t.Fatalf("unexpected code %q", payload.Error.Code)
	}
}

func TestBootstrapFailureHidesUnknownErrors(t *testing.T) {
	resp := bootstrapFailure(errors.New("dial tcp: secret-host:5432"))
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
	var payload respond.ErrorResponse
	if err := json.Unmarshal([]byte(resp.Body), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Error.Code != "bootstrap_failed" {
		t.Fatalf("unexpected body %s", resp.Body)
	}
}
