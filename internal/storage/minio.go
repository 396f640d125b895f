package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/lumenbank/apiserver/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// minioBackend archives statements in an S3-compatible bucket.
type minioBackend struct {
	api    *minio.Client
	bucket string
}

func newMinioBackend(cfg config.MinioConfig) (*minioBackend, error) {
	if err := requireSettings(
		"MINIO_ENDPOINT", cfg.Endpoint,
		"MINIO_ACCESS_KEY", cfg.AccessKey,
		"MINIO_SECRET_KEY", cfg.SecretKey,
		"MINIO_BUCKET", cfg.Bucket,
	); err != nil {
		return nil, err
	}

	api, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio %s: %w", cfg.Endpoint, err)
	}
	return &minioBackend{api: api, bucket: cfg.Bucket}, nil
}

// EnsureBucket tolerates another replica creating the bucket first.
func (b *minioBackend) EnsureBucket(ctx context.Context) error {
	exists, err := b.api.BucketExists(ctx, b.bucket)
	switch {
	case err != nil:
		return err
	case exists:
		return nil
	}
	err = b.api.MakeBucket(ctx, b.bucket, minio.MakeBucketOptions{})
	if err != nil && minio.ToErrorResponse(err).Code != "BucketAlreadyOwnedByYou" {
		return err
	}
	return nil
}

func (b *minioBackend) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if _, err := b.api.PutObject(ctx, b.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Get stats the object first; GetObject alone defers a missing key to the
// first Read.
func (b *minioBackend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := b.api.GetObject(ctx, b.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, b.objectErr(key, err)
	}
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, b.objectErr(key, err)
	}
	return obj, nil
}

func (b *minioBackend) objectErr(key string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("get %s: %w", key, ErrNotFound)
	}
	return fmt.Errorf("get %s: %w", key, err)
}

func (b *minioBackend) Bucket() string { return b.bucket }

func (b *minioBackend) Close() error { return nil }
