package fileuploader

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/cozy-creator/medpredict/internal/services/filestorage"
	"github.com/cozy-creator/medpredict/internal/utils/hashutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStorage struct {
	mu    sync.Mutex
	files map[string][]byte
	err   error
}

func (m *memoryStorage) Upload(_ context.Context, file filestorage.FileInfo) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[file.Filename()] = file.Content
	return "mem://" + file.Filename(), nil
}

func (m *memoryStorage) GetFile(_ context.Context, filename string) (*filestorage.FileInfo, error) {
	return nil, errors.New("not implemented")
}

func TestUploadBytes(t *testing.T) {
	storage := &memoryStorage{files: map[string][]byte{}}
	uploader := NewFileUploader(storage, 2)
	defer uploader.Stop()

	content := []byte("\x89PNG\r\n\x1a\n0000")
	res := <-uploader.UploadBytes(context.Background(), content)
	require.NoError(t, res.Err)

	want := hashutil.Blake3Hash(content) + ".png"
	assert.Equal(t, "mem://"+want, res.URL)
	assert.Contains(t, storage.files, want)
}

func TestUploadReportsErrors(t *testing.T) {
	boom := errors.New("bucket gone")
	uploader := NewFileUploader(&memoryStorage{err: boom}, 1)
	defer uploader.Stop()

	res := <-uploader.Upload(context.Background(), filestorage.NewFileInfo("a", ".png", nil, false))
	assert.ErrorIs(t, res.Err, boom)

	nilStorage := NewFileUploader(nil, 1)
	defer nilStorage.Stop()
	res = <-nilStorage.Upload(context.Background(), filestorage.FileInfo{})
	assert.ErrorIs(t, res.Err, ErrNoStorage)
}

func TestUploadCancelled(t *testing.T) {
	uploader := NewFileUploader(&memoryStorage{files: map[string][]byte{}}, 1)
	defer uploader.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := <-uploader.UploadBytes(ctx, []byte("x"))
	assert.ErrorIs(t, res.Err, context.Canceled)
}
