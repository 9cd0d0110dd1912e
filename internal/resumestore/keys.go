package resumestore

import (
	"strings"
	"time"

	"resume-intake/internal/shared/errs"
	"resume-intake/internal/shared/storage/object"
)

const (
	// BucketResumes holds one plain-text resume per candidate email.
	BucketResumes = "resumes"
	// BucketEmbeddings holds append-only embedding records.
	BucketEmbeddings = "embeddings"

	// EmbeddingMarker identifies embedding record keys inside the embeddings bucket.
	EmbeddingMarker = "_embedding_"
	// embeddingStem is shared by timestamped and legacy embedding keys.
	embeddingStem = "_embedding"

	resumeSuffix          = "_resume.txt"
	legacyEmbeddingSuffix = "_embedding.json"
	timestampLayout       = "20060102_150405"
)

var keyReplacer = strings.NewReplacer("@", "_", ".", "_")

// KeyPrefix derives the storage identity of a candidate: '@' and '.' become '_'.
func KeyPrefix(email string) string {
	return keyReplacer.Replace(email)
}

// CheckEmail rejects an email whose derived keys the object store would refuse, such as one
// with '/' or a backslash in the local part.
func CheckEmail(email string) error {
	if err := object.ValidateName(ResumeKey(email)); err != nil {
		return errs.Invalid("email", "cannot be used as a storage key")
	}
	return nil
}

// ResumeKey is the overwrite-in-place key of a candidate's resume.
func ResumeKey(email string) string {
	return KeyPrefix(email) + resumeSuffix
}

// EmbeddingKey is the timestamped key of one embedding record. Two records for the
// same email within one second share a key and the later write wins.
func EmbeddingKey(email string, at time.Time) string {
	return KeyPrefix(email) + EmbeddingMarker + at.Format(timestampLayout) + ".json"
}

// IsEmbeddingKey reports whether key follows an embedding record naming convention.
func IsEmbeddingKey(key string) bool {
	return strings.Contains(key, EmbeddingMarker) || strings.HasSuffix(key, legacyEmbeddingSuffix)
}

// IsResumeKey reports whether key names a resume object.
func IsResumeKey(key string) bool {
	return strings.HasSuffix(key, resumeSuffix)
}
