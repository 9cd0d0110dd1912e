// Package llm defines the capability interfaces the intake pipeline needs from
// language-model providers. Adapters live in the provider subpackages.
package llm

import (
	"context"
	"io"
)

// Request is a single-turn completion: one system message and one user message.
type Request struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int64
}

// Completer returns the text of the first choice for a completion request.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Embedder returns the embedding vector of a single text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Audio is an uploaded recording to transcribe.
type Audio struct {
	FileName    string
	ContentType string
	Data        io.Reader
}

// Transcriber converts speech to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio Audio) (string, error)
}
