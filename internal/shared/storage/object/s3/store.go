package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"resume-intake/internal/shared/errs"
	"resume-intake/internal/shared/storage/object"
)

const provider = "s3"

// Options configures the S3 store. Endpoint selects an S3-compatible service.
type Options struct {
	Region          string
	BucketPrefix    string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	ForcePathStyle  bool
}

// Store implements ObjectStore using Amazon S3. Logical buckets map to
// BucketPrefix+name physical buckets.
type Store struct {
	client *s3.Client
	region string
	prefix string
	sse    bool
}

// New creates a new S3-backed object store.
func New(ctx context.Context, opts Options) (*Store, error) {
	if strings.TrimSpace(opts.Region) == "" && strings.TrimSpace(opts.Endpoint) == "" {
		return nil, errs.Config("storage", "AWS_REGION")
	}
	if (opts.AccessKeyID == "") != (opts.SecretAccessKey == "") {
		return nil, &errs.ConfigError{Component: "storage", Setting: "S3_ACCESS_KEY_ID/S3_SECRET_ACCESS_KEY", Reason: "must be set together"}
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := strings.TrimSpace(opts.Endpoint)
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = opts.ForcePathStyle
	})

	return &Store{
		client: client,
		region: cfg.Region,
		prefix: strings.TrimSpace(opts.BucketPrefix),
		sse:    endpoint == "",
	}, nil
}

// EnsureBucket creates the physical bucket if HeadBucket reports it missing.
func (s *Store) EnsureBucket(ctx context.Context, bucket string) error {
	name, err := s.bucketName(bucket)
	if err != nil {
		return err
	}
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(name)}); err == nil {
		return nil
	} else if !isNotFound(err) {
		return upstream("head bucket", err)
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(name)}
	if s.region != "" && s.region != "us-east-1" {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(s.region),
		}
	}
	if _, err := s.client.CreateBucket(ctx, input); err != nil {
		var owned *s3types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return upstream("create bucket", err)
	}
	return nil
}

// Put uploads the reader contents, replacing any existing object.
func (s *Store) Put(ctx context.Context, bucket, key, contentType string, r io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	name, err := s.bucketName(bucket)
	if err != nil {
		return 0, err
	}
	if err := object.ValidateName(key); err != nil {
		return 0, fmt.Errorf("key %q: %w", key, err)
	}

	body, size, err := seekableBody(r)
	if err != nil {
		return 0, fmt.Errorf("read body for %s: %w", key, err)
	}
	input := &s3.PutObjectInput{
		Bucket:        aws.String(name),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	}
	if s.sse {
		input.ServerSideEncryption = s3types.ServerSideEncryptionAes256
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		if isNotFound(err) {
			return 0, errs.NotFound(bucket, "")
		}
		return 0, upstream("put object", fmt.Errorf("bucket=%s key=%s: %w", name, key, err))
	}
	return size, nil
}

// Open downloads a stored object for reading.
func (s *Store) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name, err := s.bucketName(bucket)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(name),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, errs.NotFound(bucket, key)
		}
		return nil, upstream("get object", fmt.Errorf("bucket=%s key=%s: %w", name, key, err))
	}
	return out.Body, nil
}

// List pages through every object in the bucket. An absent bucket lists as empty.
func (s *Store) List(ctx context.Context, bucket string) ([]object.Info, error) {
	name, err := s.bucketName(bucket)
	if err != nil {
		return nil, err
	}
	var out []object.Info
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{Bucket: aws.String(name)})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			if isNotFound(err) {
				return nil, nil
			}
			return nil, upstream("list objects", err)
		}
		for _, obj := range page.Contents {
			out = append(out, object.Info{Key: aws.ToString(obj.Key), SizeBytes: aws.ToInt64(obj.Size)})
		}
	}
	return out, nil
}

func (s *Store) bucketName(bucket string) (string, error) {
	if err := object.ValidateName(bucket); err != nil {
		return "", fmt.Errorf("bucket %q: %w", bucket, err)
	}
	return physicalBucket(s.prefix, bucket), nil
}

// seekableBody returns a body the SDK can rewind for payload checksums, which S3-compatible
// endpoints without TLS require. Seekable readers are sized from their current offset;
// anything else is buffered.
func seekableBody(r io.Reader) (io.ReadSeeker, int64, error) {
	if rs, ok := r.(io.ReadSeeker); ok {
		start, err := rs.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, 0, err
		}
		end, err := rs.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, 0, err
		}
		if _, err := rs.Seek(start, io.SeekStart); err != nil {
			return nil, 0, err
		}
		return rs, end - start, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, err
	}
	return bytes.NewReader(data), int64(len(data)), nil
}

func physicalBucket(prefix, bucket string) string {
	return strings.ToLower(strings.TrimSpace(prefix) + bucket)
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	var nsb *s3types.NoSuchBucket
	var nf *s3types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &nsb) || errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return true
		}
	}
	return statusCode(err) == http.StatusNotFound
}

func statusCode(err error) int {
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode()
	}
	return 0
}

func upstream(op string, err error) error {
	msg := err.Error()
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		msg = apiErr.ErrorCode() + ": " + apiErr.ErrorMessage()
	}
	return &errs.UpstreamError{Provider: provider, Op: op, Status: statusCode(err), Message: msg, Err: err}
}

var _ object.ObjectStore = (*Store)(nil)
