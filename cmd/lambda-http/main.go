package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"

	"resume-intake/internal/bootstrap"
	"resume-intake/internal/shared/config"
	"resume-intake/internal/shared/server/respond"
	"resume-intake/internal/shared/telemetry"
)

// coldStart builds the router once per execution environment. A failed build is cached
// so every invocation reports it without retrying provider setup.
type coldStart struct {
	once  sync.Once
	build func() (*gin.Engine, error)
	proxy *ginadapter.GinLambdaV2
	err   error
}

func (s *coldStart) handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	s.once.Do(func() {
		router, err := s.build()
		if err != nil {
			s.err = err
			return
		}
		s.proxy = ginadapter.NewV2(router)
	})
	if s.err != nil {
		return bootstrapFailure(s.err), nil
	}
	return s.proxy.ProxyWithContext(ctx, req)
}

// bootstrapFailure renders a startup error in the API's error envelope. Anything other than
// a configuration problem is reported as 503 because no request can be served.
func bootstrapFailure(err error) events.APIGatewayV2HTTPResponse {
	telemetry.Error("lambda.bootstrap_failed", map[string]any{"error": err})
	status, body := respond.Describe(err)
	if status < http.StatusInternalServerError {
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		status = http.StatusServiceUnavailable
		body = respond.ErrorBody{Code: "bootstrap_failed", Message: "service is not configured"}
	}
	payload, _ := json.Marshal(respond.ErrorResponse{Error: body})
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Body:       string(payload),
		Headers:    map[string]string{"Content-Type": "application/json", "Cache-Control": "no-store"},
	}
}

func main() {
	cfg := config.Load()
	telemetry.Configure(cfg.LogLevel, cfg.LogFormat)
	start := &coldStart{build: func() (*gin.Engine, error) {
		app, err := bootstrap.Build(cfg)
		if err != nil {
			return nil, err
		}
		return app.Router, nil
	}}
	lambda.Start(start.handle)
}
