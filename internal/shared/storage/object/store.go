package object

import (
	"context"
	"errors"
	"io"
	"strings"
)

// ObjectStore defines the contract for bucket-scoped blobs. Put overwrites unconditionally.
// Open returns an error matching errs.ErrNotFound when the key is absent.
type ObjectStore interface {
	EnsureBucket(ctx context.Context, bucket string) error
	Put(ctx context.Context, bucket, key, contentType string, r io.Reader) (sizeBytes int64, err error)
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	List(ctx context.Context, bucket string) ([]Info, error)
}

// Info describes a stored object.
type Info struct {
	Key       string
	SizeBytes int64
}

var errInvalidName = errors.New("invalid object name")

// ValidateName rejects bucket names and keys that could escape their namespace.
func ValidateName(name string) error {
	s := strings.TrimSpace(name)
	if s == "" || s != name {
		return errInvalidName
	}
	if strings.Contains(s, "..") || strings.ContainsAny(s, `/\`) {
		return errInvalidName
	}
	return nil
}
