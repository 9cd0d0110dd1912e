// Package generation turns a candidate narrative into a formatted resume using a chat model.
package generation

import (
	"context"
	"strings"
	"time"

	"resume-intake/internal/llm"
	"resume-intake/internal/shared/errs"
	"resume-intake/internal/shared/telemetry"
)

// DefaultTemperature is the sampling temperature for resume generation.
const DefaultTemperature = 0.7

// Contact is the candidate contact block embedded in the prompt.
type Contact struct {
	Email string
	Phone string
}

// Options tunes the completion request. A nil Temperature uses DefaultTemperature; zero is
// a valid setting.
type Options struct {
	Temperature *float64
	MaxTokens   int64
}

// Generator is the TextGenerator over an llm.Completer.
type Generator struct {
	completer   llm.Completer
	temperature float64
	maxTokens   int64
}

// New returns a Generator. A nil completer is a configuration error.
func New(completer llm.Completer, opts Options) (*Generator, error) {
	if completer == nil {
		return nil, errs.Config("generation", "completion provider")
	}
	temperature := DefaultTemperature
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}
	return &Generator{completer: completer, temperature: temperature, maxTokens: opts.MaxTokens}, nil
}

// Generate renders the resume prompt and returns the model text unmodified.
func (g *Generator) Generate(ctx context.Context, narrative string, contact Contact) (string, error) {
	if strings.TrimSpace(narrative) == "" {
		return "", errs.Invalid("narrative", "must not be blank")
	}

	prompt, err := llm.RenderResumePrompt(llm.ResumePromptInput{
		Narrative: narrative,
		Email:     contact.Email,
		Phone:     contact.Phone,
	})
	if err != nil {
		return "", err
	}

	start := time.Now()
	text, err := g.completer.Complete(ctx, llm.Request{
		System:      llm.ResumeSystemPrompt(),
		User:        prompt,
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	})
	if err != nil {
		telemetry.Warn("generation.failed", map[string]any{
			"candidate":   contact.Email,
			"duration_ms": time.Since(start).Milliseconds(),
			"error":       err,
		})
		if errs.IsUpstream(err) {
			return "", err
		}
		return "", errs.Upstream("llm", "chat completion", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", errs.UpstreamStatus("llm", "chat completion", 0, "model returned empty content")
	}

	telemetry.Info("generation.completed", map[string]any{
		"candidate":   contact.Email,
		"duration_ms": time.Since(start).Milliseconds(),
		"chars":       len(text),
	})
	return text, nil
}
