package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"resume-intake/internal/shared/metrics"
	"resume-intake/internal/shared/server/respond"
	"resume-intake/internal/shared/telemetry"
)

// Recovery turns a handler panic into a 500 and logs the submission context the handler
// had set. http.ErrAbortHandler is re-raised so net/http can drop the connection.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}
			metrics.IncPanic()

			reqID := RequestIDFromContext(c)
			fields := map[string]any{
				"request_id": reqID,
				"panic":      fmt.Sprint(rec),
				"stack":      string(debug.Stack()),
				"route":      c.FullPath(),
				"method":     c.Request.Method,
			}
			if id := c.GetString("submissionId"); id != "" {
				fields["submission_id"] = id
			}
			if stage := c.GetString("pipelineStage"); stage != "" {
				fields["pipeline_stage"] = stage
			}
			telemetry.Error("http.panic", fields)

			if c.Writer.Written() {
				c.Abort()
				return
			}
			respond.Error(c, http.StatusInternalServerError, "internal", "Unexpected server error", gin.H{"requestId": reqID})
		}()
		c.Next()
	}
}
