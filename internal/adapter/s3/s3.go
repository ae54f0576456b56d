// Package s3 loads readings documents from S3-compatible object storage.
package s3

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/couchcryptid/station-clusters/internal/adapter/csv"
	"github.com/couchcryptid/station-clusters/internal/config"
	"github.com/couchcryptid/station-clusters/internal/domain"
)

// ObjectGetter is the subset of the minio client used by ObjectSource.
type ObjectGetter interface {
	GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (*minio.Object, error)
}

// ObjectSource reads a CSV object on every run.
type ObjectSource struct {
	client ObjectGetter
	bucket string
	key    string
	decode func(io.Reader) ([]domain.Reading, error)
}

// NewObjectSource connects to the configured endpoint.
func NewObjectSource(cfg *config.Config) (*ObjectSource, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return newObjectSource(client, cfg.S3Bucket, cfg.S3Key), nil
}

func newObjectSource(client ObjectGetter, bucket, key string) *ObjectSource {
	return &ObjectSource{client: client, bucket: bucket, key: key, decode: csv.ReadReadings}
}

// Name returns the object location, used in logs.
func (s *ObjectSource) Name() string {
	return "s3://" + s.bucket + "/" + s.key
}

// LoadReadings downloads and decodes the object.
func (s *ObjectSource) LoadReadings(ctx context.Context) ([]domain.Reading, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", s.Name(), err)
	}
	defer obj.Close()

	readings, err := s.decode(obj)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.Name(), err)
	}
	return readings, nil
}
