package resumestore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"resume-intake/internal/shared/errs"
	"resume-intake/internal/shared/metrics"
	"resume-intake/internal/shared/storage/object"
	"resume-intake/internal/shared/telemetry"
)

// Store persists resumes and embedding records on top of a bucket-scoped object store.
type Store struct {
	Objects object.ObjectStore
	Now     func() time.Time
	Timeout time.Duration
}

// New wraps objects. A nil store is a configuration error.
func New(objects object.ObjectStore, timeout time.Duration) (*Store, error) {
	if objects == nil {
		return nil, errs.Config("storage", "OBJECT_STORE")
	}
	return &Store{Objects: objects, Now: time.Now, Timeout: timeout}, nil
}

// EnsureBucket creates the bucket if absent. Repeated calls are no-ops.
func (s *Store) EnsureBucket(ctx context.Context, name string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.Objects.EnsureBucket(ctx, name)
}

// Put uploads content under bucket/key, creating the bucket first and overwriting any
// existing object.
func (s *Store) Put(ctx context.Context, bucket, key string, content []byte) (Location, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	defer func() { metrics.ObserveUpstream("object-store", time.Since(start)) }()

	if err := s.Objects.EnsureBucket(ctx, bucket); err != nil {
		return Location{}, fmt.Errorf("ensure bucket %s: %w", bucket, err)
	}
	if _, err := s.Objects.Put(ctx, bucket, key, contentTypeFor(key), bytes.NewReader(content)); err != nil {
		return Location{}, fmt.Errorf("put %s/%s: %w", bucket, key, err)
	}
	loc := Location{Bucket: bucket, Key: key}
	telemetry.Info("store.put", map[string]any{"bucket": bucket, "key": key, "size_bytes": len(content)})
	return loc, nil
}

// Get downloads bucket/key. A missing object fails with errs.ErrNotFound.
func (s *Store) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rc, err := s.Objects.Open(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errs.Upstream("object-store", "read", err)
	}
	return data, nil
}

// List downloads every object in bucket whose key contains marker. It lists the whole
// bucket, so cost is O(bucket size) rather than O(matches).
func (s *Store) List(ctx context.Context, bucket, marker string) ([]Entry, error) {
	return s.listMatching(ctx, bucket, func(key string) bool {
		return marker == "" || strings.Contains(key, marker)
	})
}

// StoreResume writes the resume text under the candidate's resume key.
func (s *Store) StoreResume(ctx context.Context, email, text string) (Location, error) {
	if err := CheckEmail(email); err != nil {
		return Location{}, err
	}
	return s.Put(ctx, BucketResumes, ResumeKey(email), []byte(text))
}

// LoadResume reads the candidate's resume text.
func (s *Store) LoadResume(ctx context.Context, email string) (string, error) {
	if err := CheckEmail(email); err != nil {
		return "", err
	}
	data, err := s.Get(ctx, BucketResumes, ResumeKey(email))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ListResumes downloads every stored resume.
func (s *Store) ListResumes(ctx context.Context) ([]Entry, error) {
	return s.listMatching(ctx, BucketResumes, IsResumeKey)
}

// StoreEmbedding writes rec under a fresh timestamped key.
func (s *Store) StoreEmbedding(ctx context.Context, rec EmbeddingRecord) (Location, error) {
	if len(rec.Embedding) == 0 {
		return Location{}, errs.Invalid("embedding", "is empty")
	}
	if err := CheckEmail(rec.Email); err != nil {
		return Location{}, err
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return Location{}, fmt.Errorf("encode embedding record: %w", err)
	}
	return s.Put(ctx, BucketEmbeddings, EmbeddingKey(rec.Email, s.now().UTC()), body)
}

// ListEmbeddings downloads every embedding record, optionally only those for email.
// Both timestamped and legacy keys match. Objects that fail to decode are skipped and logged.
func (s *Store) ListEmbeddings(ctx context.Context, email string) ([]EmbeddingRecord, error) {
	prefix := ""
	if email != "" {
		if err := CheckEmail(email); err != nil {
			return nil, err
		}
		prefix = KeyPrefix(email) + embeddingStem
	}
	entries, err := s.listMatching(ctx, BucketEmbeddings, func(key string) bool {
		return IsEmbeddingKey(key) && strings.HasPrefix(key, prefix)
	})
	if err != nil {
		return nil, err
	}
	out := make([]EmbeddingRecord, 0, len(entries))
	for _, e := range entries {
		var rec EmbeddingRecord
		if err := json.Unmarshal(e.Content, &rec); err != nil {
			telemetry.Warn("store.embedding_decode_failed", map[string]any{"key": e.Key, "error": err})
			continue
		}
		rec.Key = e.Key
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) listMatching(ctx context.Context, bucket string, match func(string) bool) ([]Entry, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	items, err := s.Objects.List(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", bucket, err)
	}
	var out []Entry
	for _, it := range items {
		if !match(it.Key) {
			continue
		}
		rc, err := s.Objects.Open(ctx, bucket, it.Key)
		if err != nil {
			return nil, fmt.Errorf("open %s/%s: %w", bucket, it.Key, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, errs.Upstream("object-store", "read", err)
		}
		out = append(out, Entry{Key: it.Key, Content: data})
	}
	return out, nil
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.Timeout)
}

func contentTypeFor(key string) string {
	if strings.HasSuffix(key, ".json") {
		return "application/json"
	}
	return "text/plain; charset=utf-8"
}
