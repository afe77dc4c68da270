package filestorage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cozy-creator/medpredict/internal/config"
)

var ErrInvalidFilename = errors.New("invalid filename")

type FileInfo struct {
	Name      string
	Extension string
	Content   []byte
	IsTemp    bool
}

func (f FileInfo) Filename() string {
	return f.Name + f.Extension
}

type FileStorage interface {
	// Upload stores the file and returns its public URL.
	Upload(ctx context.Context, file FileInfo) (string, error)
	GetFile(ctx context.Context, filename string) (*FileInfo, error)
}

func NewFileInfo(name string, extension string, content []byte, isTemp bool) FileInfo {
	return FileInfo{
		Name:      name,
		Extension: extension,
		Content:   content,
		IsTemp:    isTemp,
	}
}

func NewFileStorage(ctx context.Context, cfg *config.Config) (FileStorage, error) {
	switch strings.ToLower(cfg.FilesystemType) {
	case config.FilesystemLocal:
		return NewLocalFileStorage(cfg)
	case config.FilesystemS3:
		return NewS3FileStorage(ctx, cfg)
	}

	return nil, fmt.Errorf("invalid filesystem type %s", cfg.FilesystemType)
}
