package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dshills/duraflow-go/flow"
)

// S3Storage implements flow.OutputStorage over S3 objects. Results are
// stored under <prefix>/<key>.json; the event log carries an "s3"
// reference naming bucket and object key.
type S3Storage struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Storage creates an S3-backed storage over an existing client.
func NewS3Storage(client *s3.Client, bucket, prefix string) *S3Storage {
	return &S3Storage{client: client, bucket: bucket, prefix: prefix}
}

// NewS3StorageFromConfig builds the client from the default AWS
// configuration chain (environment, shared config, instance role).
func NewS3StorageFromConfig(ctx context.Context, bucket, prefix string) (*S3Storage, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewS3Storage(s3.NewFromConfig(cfg), bucket, prefix), nil
}

// Store implements flow.OutputStorage.
func (s *S3Storage) Store(ctx context.Context, key string, value json.RawMessage) (json.RawMessage, error) {
	objectKey := s.objectKey(key)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(value),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("put stored result %s: %w", key, err)
	}
	ref := flow.StorageRef{
		Ref: "s3",
		Key: key,
		Metadata: map[string]string{
			"bucket": s.bucket,
			"object": objectKey,
		},
	}
	return json.Marshal(ref)
}

// Load implements flow.OutputStorage. Inline payloads pass through
// unchanged.
func (s *S3Storage) Load(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	ref, ok := flow.ParseStorageRef(payload)
	if !ok {
		return payload, nil
	}
	objectKey := ref.Metadata["object"]
	if objectKey == "" {
		objectKey = s.objectKey(ref.Key)
	}
	bucket := ref.Metadata["bucket"]
	if bucket == "" {
		bucket = s.bucket
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return nil, fmt.Errorf("get stored result %s: %w", ref.Key, err)
	}
	defer func() { _ = out.Body.Close() }()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read stored result %s: %w", ref.Key, err)
	}
	return data, nil
}

func (s *S3Storage) objectKey(key string) string {
	return path.Join(s.prefix, key+".json")
}
