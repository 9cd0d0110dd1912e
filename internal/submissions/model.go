package submissions

import "time"

// Input sources for a submission.
const (
	SourceText  = "text"
	SourceFile  = "file"
	SourceAudio = "audio"
)

// Record is one pipeline run as kept in the history.
type Record struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Status        string    `json:"status"`
	Stage         string    `json:"stage,omitempty"`
	ResumeKey     string    `json:"resumeKey,omitempty"`
	EmbeddingKey  string    `json:"embeddingKey,omitempty"`
	EmbeddingDims int       `json:"embeddingDims,omitempty"`
	ErrorMessage  string    `json:"error,omitempty"`
	InputSource   string    `json:"inputSource"`
	DurationMs    int64     `json:"durationMs"`
	CreatedAt     time.Time `json:"createdAt"`
}
