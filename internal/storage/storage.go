// Package storage holds product images in an object store. MinIO and Google
// Cloud Storage backends are supported; image endpoints are disabled when no
// backend is configured.
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/sweetshop/apiserver/config"
)

// ObjectStore defines the object operations shared by the backends.
type ObjectStore interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// Open builds the configured image store and ensures its bucket exists. An
// empty backend name returns (nil, nil), which callers treat as "images
// disabled".
func Open(ctx context.Context, cfg config.StorageConfig) (ObjectStore, error) {
	var (
		backend ObjectStore
		err     error
	)
	switch cfg.Backend {
	case "":
		return nil, nil
	case "minio":
		backend, err = NewMinioStore(cfg.Minio)
	case "gcs":
		backend, err = NewGCSStore(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	if err := backend.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket %s: %w", backend.Bucket(), err)
	}
	return backend, nil
}
