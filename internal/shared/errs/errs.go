// Package errs defines the error taxonomy shared by the intake pipeline and its adapters.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is matched by errors.Is for every NotFoundError.
var ErrNotFound = errors.New("not found")

// ConfigError reports a missing or invalid required setting, detected at construction time.
type ConfigError struct {
	Component string
	Setting   string
	Reason    string
}

func (e *ConfigError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "is required"
	}
	if e.Component == "" {
		return fmt.Sprintf("configuration: %s %s", e.Setting, reason)
	}
	return fmt.Sprintf("%s configuration: %s %s", e.Component, e.Setting, reason)
}

// Config builds a ConfigError for a required setting.
func Config(component, setting string) error {
	return &ConfigError{Component: component, Setting: setting}
}

// RequireSettings returns a ConfigError for the first blank setting, in order.
func RequireSettings(component string, settings ...[2]string) error {
	for _, s := range settings {
		if strings.TrimSpace(s[1]) == "" {
			return Config(component, s[0])
		}
	}
	return nil
}

// UpstreamError reports a failed call to an external service. Status is zero when the
// call never produced an HTTP response.
type UpstreamError struct {
	Provider string
	Op       string
	Status   int
	Message  string
	Err      error
}

func (e *UpstreamError) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	if e.Op != "" {
		b.WriteString(" ")
		b.WriteString(e.Op)
	}
	b.WriteString(" failed")
	if e.Status > 0 {
		fmt.Fprintf(&b, ": status %d", e.Status)
	}
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg != "" {
		b.WriteString(": ")
		b.WriteString(msg)
	}
	return b.String()
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Upstream wraps err as an UpstreamError with no HTTP status.
func Upstream(provider, op string, err error) error {
	return &UpstreamError{Provider: provider, Op: op, Err: err}
}

// UpstreamStatus builds an UpstreamError carrying the provider status and message.
func UpstreamStatus(provider, op string, status int, message string) error {
	return &UpstreamError{Provider: provider, Op: op, Status: status, Message: strings.TrimSpace(message)}
}

// NotFoundError reports a missing storage object.
type NotFoundError struct {
	Bucket string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("object %s/%s not found", e.Bucket, e.Key)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NotFound builds a NotFoundError.
func NotFound(bucket, key string) error {
	return &NotFoundError{Bucket: bucket, Key: key}
}

// ValidationError reports invalid caller input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Invalid builds a ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsConfig reports whether err is or wraps a ConfigError.
func IsConfig(err error) bool {
	var target *ConfigError
	return errors.As(err, &target)
}

// IsUpstream reports whether err is or wraps an UpstreamError.
func IsUpstream(err error) bool {
	var target *UpstreamError
	return errors.As(err, &target)
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// AsUpstream extracts the UpstreamError from err's chain.
func AsUpstream(err error) (*UpstreamError, bool) {
	var target *UpstreamError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
