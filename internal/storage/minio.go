package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOConfig holds MinIO configuration
type MinIOConfig struct {
	Endpoint  string // MinIO server endpoint (e.g., localhost:9000)
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Secure    bool // Use HTTPS (default: false for local)
}

// MinIO is an ObjectStore over an S3-compatible MinIO bucket
type MinIO struct {
	bucketURI
	client *minio.Client
}

// NewMinIO creates a new MinIO object store
func NewMinIO(config *MinIOConfig) (*MinIO, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if config.AccessKey == "" {
		return nil, fmt.Errorf("access key is required")
	}
	if config.SecretKey == "" {
		return nil, fmt.Errorf("secret key is required")
	}
	if config.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.Secure,
		Region: config.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &MinIO{
		bucketURI: bucketURI{scheme: "s3", bucket: config.Bucket},
		client:    client,
	}, nil
}

// List lists objects recursively under prefix
func (s *MinIO) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	objectCh := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})

	objects := make([]ObjectInfo, 0)
	for object := range objectCh {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", object.Err)
		}
		objects = append(objects, ObjectInfo{
			Name:    object.Key,
			Size:    object.Size,
			Updated: object.LastModified,
		})
	}

	return objects, nil
}

// Open opens a streaming reader on an object
func (s *MinIO) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", name, err)
	}

	// GetObject is lazy; Stat surfaces a missing key before the caller starts reading
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%s: %w", name, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("failed to stat object %s: %w", name, err)
	}

	return obj, nil
}

// Write uploads an object of unknown size
func (s *MinIO) Write(ctx context.Context, name string, r io.Reader, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, name, r, -1, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", name, err)
	}
	return nil
}

// Close is a no-op; the MinIO client holds no persistent connections
func (s *MinIO) Close() error {
	return nil
}
