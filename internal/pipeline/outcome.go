package pipeline

import "resume-intake/internal/resumestore"

// Stage names the step at which a run stopped.
type Stage string

const (
	StageGeneration       Stage = "generation"
	StageStorage          Stage = "storage"
	StageEmbedding        Stage = "embedding"
	StageEmbeddingStorage Stage = "embedding_storage"
)

// Status is the coarse result of a run.
type Status string

const (
	StatusCompleted      Status = "completed"
	StatusPartialFailure Status = "partial_failure"
	StatusFailed         Status = "failed"
)

// Outcome is one of Completed, Failed or PartialFailure.
type Outcome interface {
	Status() Status
	// Reason is the failing stage, or empty for Completed.
	Reason() Stage
	// Err is the cause, or nil for Completed.
	Err() error
	isOutcome()
}

// Completed means the resume and its embedding are both stored.
type Completed struct {
	Resume            ResumeDocument
	ResumeLocation    resumestore.Location
	EmbeddingLocation resumestore.Location
	Dimensions        int
}

func (Completed) Status() Status { return StatusCompleted }
func (Completed) Reason() Stage  { return "" }
func (Completed) Err() error     { return nil }
func (Completed) isOutcome()     {}

// Failed means nothing usable was persisted. At StageStorage the generated resume is
// still returned in Resume; at StageGeneration Resume is nil.
type Failed struct {
	Stage  Stage
	Resume *ResumeDocument
	Cause  error
}

func (f Failed) Status() Status { return StatusFailed }
func (f Failed) Reason() Stage  { return f.Stage }
func (f Failed) Err() error     { return f.Cause }
func (Failed) isOutcome()       {}

// PartialFailure means the resume is stored but its embedding is not. Nothing is rolled back.
type PartialFailure struct {
	Stage       Stage
	Resume      ResumeDocument
	StoredSoFar resumestore.Location
	Cause       error
}

func (p PartialFailure) Status() Status { return StatusPartialFailure }
func (p PartialFailure) Reason() Stage  { return p.Stage }
func (p PartialFailure) Err() error     { return p.Cause }
func (PartialFailure) isOutcome()       {}
