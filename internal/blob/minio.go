package blob

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/petermazzocco/photocard-catalog/internal/config"
	"github.com/petermazzocco/photocard-catalog/internal/errs"
)

// MinioStore has no write-if-absent primitive; PutIfAbsent relies on the caller's Exists check
// and the randomness of image identifiers.
type MinioStore struct {
	client *minio.Client
	bucket string
}

func NewMinioStore(cfg config.BlobConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.AccessKeySecret, ""),
		Secure: cfg.MinioSecure,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &MinioStore{client: client, bucket: cfg.Bucket}, nil
}

func (s *MinioStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return false, nil
	}
	return false, fmt.Errorf("%w: stat %s: %v", errs.ErrStoreWrite, key, err)
}

func (s *MinioStore) PutIfAbsent(ctx context.Context, key string, data []byte, meta Meta) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  meta.ContentType,
		CacheControl: meta.CacheControl,
	})
	if err != nil {
		return fmt.Errorf("%w: put %s: %v", errs.ErrStoreWrite, key, err)
	}
	return nil
}
