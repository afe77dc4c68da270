package filestorage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cozy-creator/medpredict/internal/config"
)

type LocalFileStorage struct {
	assetsDir string
	tempDir   string
	baseURL   string
}

func NewLocalFileStorage(cfg *config.Config) (*LocalFileStorage, error) {
	if !strings.EqualFold(cfg.FilesystemType, config.FilesystemLocal) {
		return nil, fmt.Errorf("filesystem is not local")
	}

	host := cfg.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}

	return &LocalFileStorage{
		assetsDir: cfg.AssetsDir,
		tempDir:   cfg.TempDir,
		baseURL:   fmt.Sprintf("http://%s:%d/file", host, cfg.Port),
	}, nil
}

func (u *LocalFileStorage) Upload(ctx context.Context, file FileInfo) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir := u.assetsDir
	if file.IsTemp {
		dir = u.tempDir
	}
	filedest := filepath.Join(dir, file.Filename())

	if err := os.MkdirAll(filepath.Dir(filedest), os.ModePerm); err != nil {
		return "", err
	}

	// content-addressed names make rewrites idempotent
	if err := os.WriteFile(filedest, file.Content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", filedest, err)
	}

	return fmt.Sprintf("%s/%s", u.baseURL, file.Filename()), nil
}

func (u *LocalFileStorage) GetFile(_ context.Context, filename string) (*FileInfo, error) {
	path, err := u.ResolveFile(filename)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	ext := filepath.Ext(filename)
	return &FileInfo{
		Name:      strings.TrimSuffix(filename, ext),
		Extension: ext,
		Content:   content,
	}, nil
}

// ResolveFile maps a bare filename to its path under the assets directory.
func (u *LocalFileStorage) ResolveFile(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}

	path := filepath.Join(u.assetsDir, filename)
	if _, err := os.Stat(path); err != nil {
		return "", err
	}

	return path, nil
}
