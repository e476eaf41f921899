// Package storage keeps uploaded image files. A Store hands back a
// location string on Put; that location is what gets recorded in
// images.file_path and passed back to Open and Delete.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/mrlokans/annotator/internal/config"
)

var (
	ErrNotFound        = errors.New("object not found")
	ErrInvalidKey      = errors.New("invalid object key")
	ErrForeignLocation = errors.New("location does not belong to this store")
)

// Store is a flat object store.
type Store interface {
	// Put writes r under key. size may be -1 when unknown.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (location string, err error)

	// Open returns the content at location. The caller closes it.
	Open(ctx context.Context, location string) (io.ReadCloser, error)

	// Delete removes the object. Deleting a missing object is not an error.
	Delete(ctx context.Context, location string) error
}

// New builds the store selected by cfg.Storage.Backend.
func New(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (Store, error) {
	switch cfg.Storage.Backend {
	case config.StorageLocal, "":
		return NewLocalStore(cfg.Storage.Dir)
	case config.StorageMinio:
		return NewMinioStore(ctx, MinioOptions{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			UseSSL:    cfg.Minio.UseSSL,
		}, log)
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}
