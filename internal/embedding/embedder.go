// Package embedding produces vector embeddings of generated resumes.
package embedding

import (
	"context"
	"fmt"
	"time"

	"resume-intake/internal/llm"
	"resume-intake/internal/shared/errs"
	"resume-intake/internal/shared/telemetry"
)

// Generator is the EmbeddingGenerator. One call per text, no batching or caching.
type Generator struct {
	embedder   llm.Embedder
	dimensions int
}

// New returns a Generator. When dimensions is positive every vector must have that length.
func New(embedder llm.Embedder, dimensions int) (*Generator, error) {
	if embedder == nil {
		return nil, errs.Config("embedding", "embedding provider")
	}
	if dimensions < 0 {
		return nil, &errs.ConfigError{Component: "embedding", Setting: "EMBEDDING_DIMENSIONS", Reason: "must not be negative"}
	}
	return &Generator{embedder: embedder, dimensions: dimensions}, nil
}

// Dimensions is the expected vector length, or zero when unchecked.
func (g *Generator) Dimensions() int { return g.dimensions }

// Embed returns the vector for text.
func (g *Generator) Embed(ctx context.Context, text string) ([]float64, error) {
	start := time.Now()
	vec, err := g.embedder.Embed(ctx, text)
	if err != nil {
		if errs.IsUpstream(err) {
			return nil, err
		}
		return nil, errs.Upstream("embedding", "embed", err)
	}
	if len(vec) == 0 {
		return nil, errs.UpstreamStatus("embedding", "embed", 0, "provider returned an empty vector")
	}
	if g.dimensions > 0 && len(vec) != g.dimensions {
		return nil, errs.UpstreamStatus("embedding", "embed", 0,
			fmt.Sprintf("expected %d dimensions, got %d", g.dimensions, len(vec)))
	}

	telemetry.Info("embedding.completed", map[string]any{
		"dimensions":  len(vec),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return vec, nil
}
