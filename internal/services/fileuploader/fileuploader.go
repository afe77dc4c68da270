package fileuploader

import (
	"context"
	"errors"

	"github.com/cozy-creator/medpredict/internal/services/filestorage"
	"github.com/cozy-creator/medpredict/internal/utils/hashutil"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gammazero/workerpool"
)

var ErrNoStorage = errors.New("no file storage configured")

type Result struct {
	URL string
	Err error
}

type Uploader struct {
	wp          *workerpool.WorkerPool
	filestorage filestorage.FileStorage
}

func NewFileUploader(filestorage filestorage.FileStorage, maxWorkers int) *Uploader {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}

	return &Uploader{
		wp:          workerpool.New(maxWorkers),
		filestorage: filestorage,
	}
}

// Stop waits for queued uploads to finish.
func (w *Uploader) Stop() {
	w.wp.StopWait()
}

// Upload queues file on the worker pool. The returned channel receives
// exactly one Result.
func (w *Uploader) Upload(ctx context.Context, file filestorage.FileInfo) <-chan Result {
	response := make(chan Result, 1)
	w.wp.Submit(func() {
		response <- w.upload(ctx, file)
	})

	return response
}

// UploadBytes stores content under its blake3 hash with an extension
// sniffed from the bytes.
func (w *Uploader) UploadBytes(ctx context.Context, content []byte) <-chan Result {
	fileInfo := filestorage.NewFileInfo(
		hashutil.Blake3Hash(content),
		mimetype.Detect(content).Extension(),
		content,
		false,
	)

	return w.Upload(ctx, fileInfo)
}

func (w *Uploader) upload(ctx context.Context, file filestorage.FileInfo) Result {
	if w.filestorage == nil {
		return Result{Err: ErrNoStorage}
	}
	if err := ctx.Err(); err != nil {
		return Result{Err: err}
	}

	url, err := w.filestorage.Upload(ctx, file)
	return Result{URL: url, Err: err}
}
