package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"resume-intake/internal/shared/metrics"
	"resume-intake/internal/shared/telemetry"
)

// Logging emits a structured log per request. Handlers may set "submissionId",
// "candidateEmail" and "pipelineStage" on the gin context to enrich the line.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.Request.Method, "OPTIONS") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)
		metrics.IncHTTPRequest()

		submissionID, _ := c.Get("submissionId")
		email, _ := c.Get("candidateEmail")
		stage := c.GetString("pipelineStage")

		telemetry.Info("request.complete", map[string]any{
			"request_id":     RequestIDFromContext(c),
			"method":         c.Request.Method,
			"path":           c.Request.URL.Path,
			"route":          c.FullPath(),
			"status":         c.Writer.Status(),
			"duration_ms":    float64(latency.Microseconds()) / 1000.0,
			"submission_id":  submissionID,
			"candidate":      email,
			"pipeline_stage": stage,
			"client_ip":      c.ClientIP(),
			"user_agent":     c.Request.UserAgent(),
		})
	}
}
