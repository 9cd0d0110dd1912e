package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"resume-intake/internal/shared/errs"
	"resume-intake/internal/shared/storage/object"
)

// Store implements ObjectStore in memory. Used by tests and OBJECT_STORE=memory.
type Store struct {
	mu      sync.RWMutex
	buckets map[string]map[string][]byte
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{buckets: map[string]map[string][]byte{}}
}

// EnsureBucket creates the bucket if absent.
func (s *Store) EnsureBucket(ctx context.Context, bucket string) error {
	if err := object.ValidateName(bucket); err != nil {
		return fmt.Errorf("bucket %q: %w", bucket, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buckets[bucket]; !ok {
		s.buckets[bucket] = map[string][]byte{}
	}
	return nil
}

// Put stores a copy of the reader contents, replacing any existing object.
func (s *Store) Put(ctx context.Context, bucket, key, contentType string, r io.Reader) (int64, error) {
	if err := object.ValidateName(key); err != nil {
		return 0, fmt.Errorf("key %q: %w", key, err)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("read body: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[bucket]
	if !ok {
		return 0, errs.NotFound(bucket, "")
	}
	b[key] = data
	return int64(len(data)), nil
}

// Open returns a reader over a copy of the stored object.
func (s *Store) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.buckets[bucket][key]
	if !ok {
		return nil, errs.NotFound(bucket, key)
	}
	return io.NopCloser(bytes.NewReader(append([]byte(nil), data...))), nil
}

// List returns objects in key order. An absent bucket lists as empty.
func (s *Store) List(ctx context.Context, bucket string) ([]object.Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]object.Info, 0, len(s.buckets[bucket]))
	for k, v := range s.buckets[bucket] {
		out = append(out, object.Info{Key: k, SizeBytes: int64(len(v))})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

var _ object.ObjectStore = (*Store)(nil)
