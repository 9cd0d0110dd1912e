package resumestore

// EmbeddingRecord is the JSON document stored for each embedding.
type EmbeddingRecord struct {
	Email     string    `json:"email"`
	Embedding []float64 `json:"embedding"`
	ResumeURL string    `json:"resume_url"`

	// Key is the storage key the record was read from or written to.
	Key string `json:"-"`
}

// Entry is one listed object with its content.
type Entry struct {
	Key     string
	Content []byte
}

// Location identifies a stored object.
type Location struct {
	Bucket string
	Key    string
}

// Path returns "bucket/key".
func (l Location) Path() string {
	if l.Bucket == "" && l.Key == "" {
		return ""
	}
	return l.Bucket + "/" + l.Key
}

// Message is the human-readable confirmation returned after a successful put.
func (l Location) Message() string {
	return "File stored successfully: " + l.Path()
}
