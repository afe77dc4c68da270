package filestorage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"

	"github.com/cozy-creator/medpredict/internal/config"
)

type S3FileStorage struct {
	client *s3.Client
	cfg    *config.S3Config
}

func NewS3FileStorage(ctx context.Context, cfg *config.Config) (*S3FileStorage, error) {
	if cfg.S3 == nil {
		return nil, fmt.Errorf("s3 config is not set")
	}

	region := cfg.S3.Region
	if region == "" {
		region = "auto"
	}

	credentialsProvider := credentials.NewStaticCredentialsProvider(cfg.S3.AccessKey, cfg.S3.SecretKey, "")
	awsCfg, err := awsConfig.LoadDefaultConfig(
		ctx,
		awsConfig.WithRegion(region),
		awsConfig.WithCredentialsProvider(credentialsProvider),
	)
	if err != nil {
		return nil, err
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3.EndpointUrl != "" {
			o.BaseEndpoint = &cfg.S3.EndpointUrl
		}
	})

	return &S3FileStorage{
		client: s3Client,
		cfg:    cfg.S3,
	}, nil
}

func (u *S3FileStorage) key(filename string, isTemp bool) string {
	if isTemp {
		return path.Join("temp", filename)
	}
	return path.Join(strings.Trim(u.cfg.Folder, "/"), filename)
}

// Uploaded medical images stay private; the returned URL only resolves when
// public_url points at an authorised proxy.
func (u *S3FileStorage) Upload(ctx context.Context, file FileInfo) (string, error) {
	key := u.key(file.Filename(), file.IsTemp)
	mtype := mimetype.Detect(file.Content).String()

	input := s3.PutObjectInput{
		Key:         &key,
		ContentType: &mtype,
		Bucket:      &u.cfg.Bucket,
		Body:        bytes.NewReader(file.Content),
	}
	if _, err := u.client.PutObject(ctx, &input); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	return u.objectURL(key), nil
}

func (u *S3FileStorage) objectURL(key string) string {
	if u.cfg.PublicUrl != "" {
		return fmt.Sprintf("%s/%s", strings.TrimSuffix(u.cfg.PublicUrl, "/"), key)
	}

	switch {
	case strings.Contains(u.cfg.EndpointUrl, "digitaloceanspaces.com"):
		return fmt.Sprintf("https://%s.%s.digitaloceanspaces.com/%s", u.cfg.Bucket, u.cfg.Region, key)
	case u.cfg.EndpointUrl == "" || strings.Contains(u.cfg.EndpointUrl, "amazonaws.com"):
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.cfg.Bucket, u.cfg.Region, key)
	default:
		return fmt.Sprintf("s3://%s/%s", u.cfg.Bucket, key)
	}
}

func (u *S3FileStorage) GetFile(ctx context.Context, filename string) (*FileInfo, error) {
	if filename == "" || filename != filepath.Base(filename) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}

	key := u.key(filename, false)
	object, err := u.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &u.cfg.Bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, err
	}
	defer object.Body.Close()

	content, err := io.ReadAll(object.Body)
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
