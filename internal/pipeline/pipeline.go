// Package pipeline runs a candidate submission through generation, storage and embedding,
// and exposes the search entry point over stored resumes.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"resume-intake/internal/generation"
	"resume-intake/internal/resumestore"
	"resume-intake/internal/search"
	"resume-intake/internal/shared/errs"
	"resume-intake/internal/shared/metrics"
	"resume-intake/internal/shared/telemetry"
	"resume-intake/internal/submissions"
)

// TextGenerator produces resume text from a narrative.
type TextGenerator interface {
	Generate(ctx context.Context, narrative string, contact generation.Contact) (string, error)
}

// EmbeddingGenerator produces a vector for resume text.
type EmbeddingGenerator interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// ResumeStore persists resumes and embedding records.
type ResumeStore interface {
	StoreResume(ctx context.Context, email, text string) (resumestore.Location, error)
	StoreEmbedding(ctx context.Context, rec resumestore.EmbeddingRecord) (resumestore.Location, error)
}

// Indexer receives completed resumes for immediate searchability.
type Indexer interface {
	Add(email, content string, vector []float64) error
}

// Deps are the pipeline collaborators. Search, History and Indexer are optional.
type Deps struct {
	Generator TextGenerator
	Embedder  EmbeddingGenerator
	Store     ResumeStore
	Search    search.Gateway
	History   submissions.Repo
	Indexer   Indexer
	Validator *validator.Validate
	Now       func() time.Time
	NewID     func() string
}

// Pipeline is the resume orchestrator. Each Submit is a sequential chain of blocking calls
// that stops at the first failure.
type Pipeline struct {
	deps Deps
}

// New validates deps and returns a Pipeline.
func New(deps Deps) (*Pipeline, error) {
	if deps.Generator == nil {
		return nil, errs.Config("pipeline", "text generator")
	}
	if deps.Embedder == nil {
		return nil, errs.Config("pipeline", "embedding generator")
	}
	if deps.Store == nil {
		return nil, errs.Config("pipeline", "resume store")
	}
	if deps.Validator == nil {
		deps.Validator = NewValidator()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	return &Pipeline{deps: deps}, nil
}

// Submit runs sub through Raw, Generated, Stored, Embedded and Done.
func (p *Pipeline) Submit(ctx context.Context, sub Submission) Outcome {
	id := sub.ID
	if id == "" {
		id = p.deps.NewID()
	}
	start := p.deps.Now()
	sub = sub.Normalize()
	metrics.IncSubmissionStarted()

	out := p.run(ctx, sub)
	p.record(ctx, id, sub, out, p.deps.Now().Sub(start))
	return out
}

func (p *Pipeline) run(ctx context.Context, sub Submission) Outcome {
	if err := sub.Validate(p.deps.Validator); err != nil {
		return Failed{Stage: StageGeneration, Cause: err}
	}

	text, err := p.deps.Generator.Generate(ctx, sub.Narrative, generation.Contact{Email: sub.Email, Phone: sub.Phone})
	if err != nil {
		return Failed{Stage: StageGeneration, Cause: err}
	}
	if strings.TrimSpace(text) == "" {
		return Failed{Stage: StageGeneration, Cause: errs.UpstreamStatus("llm", "chat completion", 0, "model returned empty content")}
	}
	doc := ResumeDocument{Body: text, Email: sub.Email, CreatedAt: p.deps.Now().UTC()}

	resumeLoc, err := p.deps.Store.StoreResume(ctx, sub.Email, text)
	if err != nil {
		return Failed{Stage: StageStorage, Resume: &doc, Cause: err}
	}

	vector, err := p.deps.Embedder.Embed(ctx, text)
	if err != nil {
		return PartialFailure{Stage: StageEmbedding, Resume: doc, StoredSoFar: resumeLoc, Cause: err}
	}

	embeddingLoc, err := p.deps.Store.StoreEmbedding(ctx, resumestore.EmbeddingRecord{
		Email:     sub.Email,
		Embedding: vector,
	})
	if err != nil {
		return PartialFailure{Stage: StageEmbeddingStorage, Resume: doc, StoredSoFar: resumeLoc, Cause: err}
	}

	if p.deps.Indexer != nil {
		if err := p.deps.Indexer.Add(sub.Email, text, vector); err != nil {
			telemetry.Warn("pipeline.index_failed", map[string]any{"candidate": sub.Email, "error": err})
		}
	}

	return Completed{Resume: doc, ResumeLocation: resumeLoc, EmbeddingLocation: embeddingLoc, Dimensions: len(vector)}
}

// Search forwards to the search gateway unchanged.
func (p *Pipeline) Search(ctx context.Context, text string, top int) (search.Result, error) {
	if p.deps.Search == nil {
		return search.Result{}, errs.Config("search", "SEARCH_PROVIDER")
	}
	return p.deps.Search.Search(ctx, search.Query{Text: text, Top: top})
}

// History returns the configured submission history, or nil.
func (p *Pipeline) History() submissions.Repo {
	return p.deps.History
}

func (p *Pipeline) record(ctx context.Context, id string, sub Submission, out Outcome, elapsed time.Duration) {
	status, stage := string(out.Status()), string(out.Reason())
	metrics.IncOutcome(status, stage)
	metrics.ObservePipelineDurationMs(float64(elapsed.Microseconds()) / 1000.0)

	rec := submissions.Record{
		ID:          id,
		Email:       sub.Email,
		Status:      status,
		Stage:       stage,
		InputSource: sub.Source,
		DurationMs:  elapsed.Milliseconds(),
		CreatedAt:   p.deps.Now().UTC(),
	}
	if rec.InputSource == "" {
		rec.InputSource = submissions.SourceText
	}
	switch o := out.(type) {
	case Completed:
		rec.ResumeKey = o.ResumeLocation.Key
		rec.EmbeddingKey = o.EmbeddingLocation.Key
		rec.EmbeddingDims = o.Dimensions
	case PartialFailure:
		rec.ResumeKey = o.StoredSoFar.Key
	}
	if cause := out.Err(); cause != nil {
		rec.ErrorMessage = cause.Error()
	}

	fields := map[string]any{
		"submission_id": id,
		"candidate":     sub.Email,
		"status":        status,
		"source":        rec.InputSource,
		"duration_ms":   rec.DurationMs,
	}
	if stage != "" {
		fields["stage"] = stage
		fields["error"] = rec.ErrorMessage
		telemetry.Warn("pipeline.finished", fields)
	} else {
		fields["resume_key"] = rec.ResumeKey
		fields["embedding_key"] = rec.EmbeddingKey
		telemetry.Info("pipeline.finished", fields)
	}

	if p.deps.History == nil {
		return
	}
	if err := p.deps.History.Create(context.WithoutCancel(ctx), rec); err != nil {
		telemetry.Warn("pipeline.history_failed", map[string]any{"submission_id": id, "error": err})
	}
}
