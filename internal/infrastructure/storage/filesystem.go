package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// FileSystemStorageConfig contains configuration for file system storage
type FileSystemStorageConfig struct {
	// BasePath is the root directory, default data/exports
	BasePath string
	// BaseURL is the URL prefix under which the HTTP server serves the files
	BaseURL string
	Logger  *zap.Logger
}

// FileSystemStorage stores documents below a local directory
type FileSystemStorage struct {
	basePath string
	baseURL  string
	logger   *zap.Logger
}

// NewFileSystemStorage creates the base directory when missing
func NewFileSystemStorage(cfg *FileSystemStorageConfig) (*FileSystemStorage, error) {
	if cfg == nil {
		cfg = &FileSystemStorageConfig{}
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "data/exports"
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "/files"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", basePath, err)
	}
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage directory: %w", err)
	}

	return &FileSystemStorage{basePath: abs, baseURL: baseURL, logger: logger}, nil
}

// resolve maps key to a path that is guaranteed to stay below basePath
func (s *FileSystemStorage) resolve(key string) (string, string, error) {
	clean, err := cleanKey(key)
	if err != nil {
		s.logger.Warn("blocked potentially malicious path", zap.String("key", key))
		return "", "", err
	}
	full := filepath.Join(s.basePath, filepath.FromSlash(clean))
	if !strings.HasPrefix(full, s.basePath+string(filepath.Separator)) {
		s.logger.Warn("path escape attempt blocked", zap.String("key", key))
		return "", "", ErrInvalidKey
	}
	return clean, full, nil
}

// Put writes data under key, creating parent directories
func (s *FileSystemStorage) Put(ctx context.Context, key string, data []byte, _ string) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean, full, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp, full); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("failed to move file into place: %w", err)
	}

	url := s.baseURL + "/" + clean
	s.logger.Info("export stored",
		zap.String("path", full),
		zap.Int("size", len(data)),
		zap.String("url", url))

	return &Object{Key: clean, URL: url, Size: int64(len(data))}, nil
}

// Open returns a reader for key
func (s *FileSystemStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, full, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

// Delete removes key; a missing file is not an error
func (s *FileSystemStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, full, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// URL returns the link under BaseURL
func (s *FileSystemStorage) URL(_ context.Context, key string) (string, error) {
	clean, _, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	return s.baseURL + "/" + clean, nil
}

// CleanupOlderThan removes files last modified before now-age
func (s *FileSystemStorage) CleanupOlderThan(ctx context.Context, age time.Duration) (int, error) {
	cutoff := time.Now().Add(-age)
	deleted := 0

	err := filepath.WalkDir(s.basePath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(p); err == nil {
				deleted++
				s.logger.Debug("deleted old export", zap.String("path", p))
			}
		}
		return nil
	})
	if err != nil {
		return deleted, fmt.Errorf("cleanup walk failed: %w", err)
	}

	s.logger.Info("cleanup completed", zap.Int("deleted", deleted), zap.Duration("age", age))
	return deleted, nil
}

var (
	_ ObjectStorage = (*FileSystemStorage)(nil)
	_ Cleaner       = (*FileSystemStorage)(nil)
)
