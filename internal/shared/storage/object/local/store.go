package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"resume-intake/internal/shared/errs"
	"resume-intake/internal/shared/storage/object"
)

// Store implements ObjectStore using the local filesystem. Buckets are directories under baseDir.
type Store struct {
	baseDir string
}

// New creates a new local object store rooted at baseDir.
func New(baseDir string) (*Store, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, errs.Config("storage", "LOCAL_STORE_DIR")
	}
	return &Store{baseDir: baseDir}, nil
}

// EnsureBucket creates the bucket directory if absent.
func (s *Store) EnsureBucket(ctx context.Context, bucket string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir, err := s.bucketDir(bucket)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Upstream("local-store", "create bucket", err)
	}
	return nil
}

// Put writes the reader to bucket/key, replacing any existing file. The write goes
// through a temp file so concurrent readers never observe a partial object.
func (s *Store) Put(ctx context.Context, bucket, key, contentType string, r io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	fullPath, err := s.objectPath(bucket, key)
	if err != nil {
		return 0, err
	}
	if _, err := os.Stat(filepath.Dir(fullPath)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, errs.NotFound(bucket, "")
		}
		return 0, errs.Upstream("local-store", "put", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".upload-*")
	if err != nil {
		return 0, errs.Upstream("local-store", "put", fmt.Errorf("create temp: %w", err))
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return 0, errs.Upstream("local-store", "put", fmt.Errorf("write body: %w", err))
	}
	if err := tmp.Close(); err != nil {
		return 0, errs.Upstream("local-store", "put", fmt.Errorf("close temp: %w", err))
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return 0, errs.Upstream("local-store", "put", fmt.Errorf("rename: %w", err))
	}
	_ = contentType
	return written, nil
}

// Open opens a stored object for reading.
func (s *Store) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fullPath, err := s.objectPath(bucket, key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errs.NotFound(bucket, key)
		}
		return nil, errs.Upstream("local-store", "open", err)
	}
	return f, nil
}

// List returns regular files in the bucket in key order. An absent bucket lists as empty.
func (s *Store) List(ctx context.Context, bucket string) ([]object.Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := s.bucketDir(bucket)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, errs.Upstream("local-store", "list", err)
	}
	out := make([]object.Info, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".upload-") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, object.Info{Key: e.Name(), SizeBytes: info.Size()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Store) bucketDir(bucket string) (string, error) {
	if err := object.ValidateName(bucket); err != nil {
		return "", fmt.Errorf("bucket %q: %w", bucket, err)
	}
	return filepath.Join(s.baseDir, bucket), nil
}

func (s *Store) objectPath(bucket, key string) (string, error) {
	dir, err := s.bucketDir(bucket)
	if err != nil {
		return "", err
	}
	if err := object.ValidateName(key); err != nil {
		return "", fmt.Errorf("key %q: %w", key, err)
	}
	return filepath.Join(dir, key), nil
}

var _ object.ObjectStore = (*Store)(nil)
