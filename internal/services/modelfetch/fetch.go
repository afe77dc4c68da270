package modelfetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cozy-creator/medpredict/internal/diagnosis"
	"github.com/cozy-creator/medpredict/internal/utils/hashutil"
	"github.com/cozy-creator/medpredict/internal/utils/pathutil"

	"github.com/cenkalti/backoff/v4"
	"github.com/vbauerster/mpb/v7"
	"github.com/vbauerster/mpb/v7/decor"
	"go.uber.org/zap"
)

var (
	ErrNoURL            = errors.New("model has no download url")
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// Fetcher downloads model files into a models directory.
type Fetcher struct {
	modelsDir  string
	client     *http.Client
	logger     *zap.Logger
	output     io.Writer
	overwrite  bool
	newBackOff func() backoff.BackOff
}

type Option func(*Fetcher)

func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		f.client = client
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// WithProgressOutput sets where progress bars are drawn.
func WithProgressOutput(w io.Writer) Option {
	return func(f *Fetcher) {
		f.output = w
	}
}

// WithOverwrite re-downloads files that already exist.
func WithOverwrite(overwrite bool) Option {
	return func(f *Fetcher) {
		f.overwrite = overwrite
	}
}

func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(f *Fetcher) {
		f.newBackOff = newBackOff
	}
}

func NewFetcher(modelsDir string, opts ...Option) *Fetcher {
	f := &Fetcher{
		modelsDir:  modelsDir,
		logger:     zap.NewNop(),
		output:     os.Stdout,
		newBackOff: defaultBackOff,
		client: &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout: 60 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   60 * time.Second,
				ResponseHeaderTimeout: 60 * time.Second,
				IdleConnTimeout:       60 * time.Second,
			},
		},
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 1 * time.Second
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 5 * time.Minute
	return b
}

// FetchAll downloads every spec and joins the failures.
func (f *Fetcher) FetchAll(ctx context.Context, specs []diagnosis.Spec) error {
	var errs []error
	for _, spec := range specs {
		if _, err := f.Fetch(ctx, spec); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", spec.Disease, err))
		}
	}

	return errors.Join(errs...)
}

// Fetch downloads spec.URL to its model path and returns that path. An
// existing file is kept when it passes the checksum.
func (f *Fetcher) Fetch(ctx context.Context, spec diagnosis.Spec) (string, error) {
	destPath := diagnosis.ModelPath(f.modelsDir, spec)

	if !f.overwrite && pathutil.FileExists(destPath) {
		if err := verifyChecksum(destPath, spec.Checksum); err == nil {
			f.logger.Info("model already present", zap.String("disease", string(spec.Disease)), zap.String("path", destPath))
			return destPath, nil
		}
		f.logger.Warn("existing model failed verification, downloading again", zap.String("path", destPath))
	}

	if spec.URL == "" {
		return "", ErrNoURL
	}

	if err := os.MkdirAll(filepath.Dir(destPath), os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create models directory: %w", err)
	}

	attempt := 0
	operation := func() error {
		attempt++
		err := f.download(ctx, spec, destPath)
		if err != nil {
			f.logger.Warn("download attempt failed",
				zap.String("disease", string(spec.Disease)),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}
		return err
	}

	if err := backoff.Retry(operation, backoff.WithContext(f.newBackOff(), ctx)); err != nil {
		return "", err
	}

	f.logger.Info("model downloaded", zap.String("disease", string(spec.Disease)), zap.String("path", destPath))
	return destPath, nil
}

// download fetches into destPath+".tmp", resuming from a partial file
// when the server honours Range requests, then renames into place.
func (f *Fetcher) download(ctx context.Context, spec diagnosis.Spec, destPath string) error {
	tmpPath := destPath + ".tmp"

	var initialSize int64
	if info, err := os.Stat(tmpPath); err == nil {
		initialSize = info.Size()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, spec.URL, nil)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	if initialSize > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", initialSize))
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	flag := os.O_CREATE | os.O_WRONLY
	var totalSize int64

	switch {
	case initialSize > 0 && resp.StatusCode == http.StatusPartialContent:
		flag |= os.O_APPEND
		if resp.ContentLength >= 0 {
			totalSize = initialSize + resp.ContentLength
		}
	case resp.StatusCode == http.StatusOK:
		if initialSize > 0 {
			f.logger.Warn("server doesn't support resume, starting download from beginning", zap.String("url", spec.URL))
		}
		flag |= os.O_TRUNC
		initialSize = 0
		totalSize = resp.ContentLength
	case resp.StatusCode == http.StatusRequestedRangeNotSatisfiable:
		os.Remove(tmpPath)
		return fmt.Errorf("resume failed with status %d", resp.StatusCode)
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		return backoff.Permanent(fmt.Errorf("download failed with status %d", resp.StatusCode))
	default:
		return fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	file, err := os.OpenFile(tmpPath, flag, 0o644)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to open file: %w", err))
	}

	written, err := f.copyWithProgress(ctx, file, resp.Body, filepath.Base(destPath), initialSize, totalSize)
	if cerr := file.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	if totalSize > 0 && initialSize+written != totalSize {
		return fmt.Errorf("download size mismatch: expected %d, got %d", totalSize, initialSize+written)
	}

	if err := verifyChecksum(tmpPath, spec.Checksum); err != nil {
		os.Remove(tmpPath)
		return backoff.Permanent(err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return backoff.Permanent(fmt.Errorf("failed to move file: %w", err))
	}

	return nil
}

func (f *Fetcher) copyWithProgress(ctx context.Context, dst io.Writer, src io.Reader, name string, current, total int64) (int64, error) {
	progress := mpb.NewWithContext(ctx,
		mpb.WithOutput(f.output),
		mpb.WithWidth(60),
		mpb.WithRefreshRate(180*time.Millisecond),
	)

	bar := progress.AddBar(total,
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: 40, C: decor.DidentRight}),
			decor.CountersKibiByte("% .2f / % .2f"),
		),
		mpb.AppendDecorators(
			decor.EwmaETA(decor.ET_STYLE_GO, 90),
			decor.Name(" ] "),
			decor.EwmaSpeed(decor.UnitKiB, "% .2f", 60),
		),
	)
	if current > 0 {
		bar.SetCurrent(current)
	}

	reader := bar.ProxyReader(src)
	defer reader.Close()

	written, err := io.Copy(dst, reader)
	if err != nil {
		bar.Abort(true)
		progress.Wait()
		return written, fmt.Errorf("read failed: %w", err)
	}

	// Completes bars whose total was unknown up front.
	bar.SetTotal(-1, true)
	progress.Wait()

	return written, nil
}

func verifyChecksum(path, expected string) error {
	if expected == "" {
		return nil
	}

	actual, err := hashutil.Blake3File(path)
	if err != nil {
		return err
	}

	if !strings.EqualFold(actual, expected) {
		return fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, expected, actual)
	}

	return nil
}
