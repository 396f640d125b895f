package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"github.com/lumenbank/apiserver/config"
	"google.golang.org/api/option"
)

// gcsBackend archives statements in a Google Cloud Storage bucket. Buckets
// it creates use uniform bucket-level access so statements carry no ACLs.
type gcsBackend struct {
	api     *storage.Client
	bucket  string
	project string
}

func newGCSBackend(ctx context.Context, cfg config.GCSConfig) (*gcsBackend, error) {
	if err := requireSettings("GCS_BUCKET", cfg.Bucket); err != nil {
		return nil, err
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	api, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	return &gcsBackend{api: api, bucket: cfg.Bucket, project: cfg.ProjectID}, nil
}

func (b *gcsBackend) EnsureBucket(ctx context.Context) error {
	handle := b.api.Bucket(b.bucket)
	if _, err := handle.Attrs(ctx); !errors.Is(err, storage.ErrBucketNotExist) {
		return err
	}
	if err := requireSettings("GCS_PROJECT_ID", b.project); err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	return handle.Create(ctx, b.project, &storage.BucketAttrs{
		UniformBucketLevelAccess: storage.UniformBucketLevelAccess{Enabled: true},
	})
}

// Put uploads in a single request; statements are small.
func (b *gcsBackend) Put(ctx context.Context, key string, r io.Reader, _ int64, contentType string) error {
	w := b.api.Bucket(b.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.ChunkSize = 0
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("put %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (b *gcsBackend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := b.api.Bucket(b.bucket).Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("get %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return rc, nil
}

func (b *gcsBackend) Bucket() string { return b.bucket }

func (b *gcsBackend) Close() error { return b.api.Close() }
