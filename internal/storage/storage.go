package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/lumenbank/apiserver/config"
)

// Drivers accepted by Open.
const (
	DriverNone  = "none"
	DriverMinio = "minio"
	DriverGCS   = "gcs"
)

// ErrNotFound is returned by Get when no object exists under the key.
var ErrNotFound = errors.New("object not found")

// Backend is one bucket of an object store.
type Backend interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Bucket() string
	Close() error
}

// Storage reads and writes statement documents as JSON objects.
type Storage struct {
	backend Backend
}

func NewStorage(backend Backend) *Storage {
	return &Storage{backend: backend}
}

// Open builds the backend selected by cfg.Driver and makes sure its bucket
// exists. It returns nil, nil when object storage is disabled.
func Open(ctx context.Context, cfg config.ObjectStorageConfig) (*Storage, error) {
	var (
		backend Backend
		err     error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverNone:
		return nil, nil
	case DriverMinio:
		backend, err = newMinioBackend(cfg.Minio)
	case DriverGCS:
		backend, err = newGCSBackend(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unsupported OBJECT_STORAGE %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := backend.EnsureBucket(ctx); err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("ensure bucket %s: %w", backend.Bucket(), err)
	}
	return NewStorage(backend), nil
}

// PutJSON encodes v and stores it under key. It returns the object's
// bucket-qualified location.
func (s *Storage) PutJSON(ctx context.Context, key string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	if err := s.backend.Put(ctx, key, bytes.NewReader(data), int64(len(data)), "application/json"); err != nil {
		return "", err
	}
	return s.backend.Bucket() + "/" + key, nil
}

// GetJSON decodes the object at key into v. A missing object matches
// ErrNotFound.
func (s *Storage) GetJSON(ctx context.Context, key string, v any) error {
	rc, err := s.backend.Get(ctx, key)
	if err != nil {
		return err
	}
	defer rc.Close()
	if err := json.NewDecoder(rc).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *Storage) Close() error {
	return s.backend.Close()
}

// requireSettings fails naming every setting whose value is blank.
// pairs alternates setting name and value.
func requireSettings(pairs ...string) error {
	var missing []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			missing = append(missing, pairs[i])
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("object storage: %s not set", strings.Join(missing, ", "))
	}
	return nil
}
