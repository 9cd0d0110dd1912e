package respond

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"resume-intake/internal/shared/errs"
	"resume-intake/internal/shared/telemetry"
)

// ErrorBody defines the standardized error object.
type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// ErrorResponse wraps the error body.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Error sends a standardized error response.
func Error(c *gin.Context, status int, code, message string, details interface{}) {
	fields := map[string]any{
		"status":     status,
		"code":       code,
		"message":    message,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"request_id": c.GetString("requestId"),
	}
	if email := c.GetString("candidateEmail"); email != "" {
		fields["candidate"] = email
	}
	telemetry.Error("http.error", fields)

	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// Describe maps an error from the intake taxonomy to an HTTP status and body.
func Describe(err error) (int, ErrorBody) {
	var (
		cfgErr      *errs.ConfigError
		upstreamErr *errs.UpstreamError
		validErr    *errs.ValidationError
	)
	switch {
	case errors.As(err, &validErr):
		return http.StatusBadRequest, ErrorBody{Code: "validation_error", Message: validErr.Error(), Details: map[string]string{"field": validErr.Field}}
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound, ErrorBody{Code: "not_found", Message: err.Error()}
	case errors.As(err, &cfgErr):
		return http.StatusServiceUnavailable, ErrorBody{Code: "configuration_error", Message: cfgErr.Error(), Details: map[string]string{"setting": cfgErr.Setting}}
	case errors.As(err, &upstreamErr):
		details := map[string]any{"provider": upstreamErr.Provider}
		if upstreamErr.Status > 0 {
			details["status"] = upstreamErr.Status
		}
		return http.StatusBadGateway, ErrorBody{Code: "upstream_error", Message: upstreamErr.Error(), Details: details}
	default:
		return http.StatusInternalServerError, ErrorBody{Code: "internal", Message: "Unexpected server error"}
	}
}

// FromError sends the standardized response for err.
func FromError(c *gin.Context, err error) {
	status, body := Describe(err)
	Error(c, status, body.Code, body.Message, body.Details)
}
