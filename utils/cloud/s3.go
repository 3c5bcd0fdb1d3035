package cloud

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"haruki-cutscenes/config"
)

type S3Storage struct {
	client *s3.Client
	bucket string
	name   string
}

func NewS3Storage(cfg config.RemoteStorageConfig) (*S3Storage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 storage %s has no bucket", cfg.Base)
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := s3.Options{
		Region:       region,
		UsePathStyle: cfg.PathStyle,
	}
	if cfg.AccessKey != "" {
		opts.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return &S3Storage{
		client: s3.New(opts),
		bucket: cfg.Bucket,
		name:   "s3://" + cfg.Bucket + "/" + strings.TrimPrefix(cfg.Base, "/"),
	}, nil
}

func (s *S3Storage) Name() string {
	return s.name
}

func contentType(file string) string {
	if t := mime.TypeByExtension(filepath.Ext(file)); t != "" {
		return t
	}
	switch strings.ToLower(filepath.Ext(file)) {
	case ".mkv":
		return "video/x-matroska"
	case ".ivf":
		return "video/x-ivf"
	case ".hca":
		return "audio/x-hca"
	}
	return "application/octet-stream"
}

func (s *S3Storage) Upload(ctx context.Context, localPath, remotePath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(strings.TrimPrefix(remotePath, "/")),
		Body:        f,
		ContentType: aws.String(contentType(localPath)),
	})
	if err != nil {
		return fmt.Errorf("failed to put %s to %s: %w", localPath, s.name, err)
	}
	return nil
}
