// Package storage keeps exported thesis documents on the local file system
// or in an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/tesis/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// ErrObjectNotFound is returned when a key does not exist
var ErrObjectNotFound = errors.New("object not found")

// ErrInvalidKey is returned for empty keys or keys escaping the storage root
var ErrInvalidKey = errors.New("invalid storage key")

// Object describes a stored document
type Object struct {
	Key  string `json:"key"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

// ObjectStorage stores documents by key
type ObjectStorage interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (*Object, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	// URL returns a link a client can download the object from
	URL(ctx context.Context, key string) (string, error)
}

// Cleaner is implemented by storages that can expire old objects
type Cleaner interface {
	CleanupOlderThan(ctx context.Context, age time.Duration) (int, error)
}

// New creates the storage selected by cfg.Driver
func New(ctx context.Context, cfg *config.StorageConfig, logger *zap.Logger) (ObjectStorage, error) {
	switch cfg.Driver {
	case "", "fs":
		return NewFileSystemStorage(&FileSystemStorageConfig{
			BasePath: cfg.BasePath,
			BaseURL:  cfg.BaseURL,
			Logger:   logger,
		})
	case "s3":
		return NewS3ObjectStorage(ctx, cfg, WithLogger(logger))
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

// ExportKey builds the key for an archived export:
// exports/{owner}/{thesis}/{yyyymmdd-hhmmss}-{filename}
func ExportKey(ownerID, thesisID, filename string, at time.Time) string {
	return path.Join("exports", ownerID, thesisID, at.UTC().Format("20060102-150405")+"-"+filename)
}

// cleanKey rejects absolute keys and keys containing ".." segments
func cleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return "", ErrInvalidKey
		}
	}
	return path.Clean(key), nil
}
