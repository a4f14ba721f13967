package minio

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/orrn/rprint/internal/storage"
)

// Config holds S3/MinIO settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Client stores job files as objects in one bucket.
type Client struct {
	client *minio.Client
	bucket string
}

// New connects to MinIO and creates the bucket if it is missing.
func New(ctx context.Context, cfg Config) (*Client, error) {
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &Client{client: cli, bucket: cfg.Bucket}, nil
}

func (c *Client) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if !storage.ValidKey(key) {
		return storage.ErrInvalidKey
	}
	_, err := c.client.PutObject(ctx, c.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("failed to upload object: %w", err)
	}
	return nil
}

func (c *Client) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if !storage.ValidKey(key) {
		return nil, storage.ErrInvalidKey
	}
	object, err := c.client.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, translate(err)
	}

	// GetObject is lazy; Stat surfaces a missing key.
	if _, err := object.Stat(); err != nil {
		object.Close()
		return nil, translate(err)
	}
	return object, nil
}

func (c *Client) Delete(ctx context.Context, key string) error {
	if !storage.ValidKey(key) {
		return storage.ErrInvalidKey
	}
	if err := c.client.RemoveObject(ctx, c.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil
		}
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

func translate(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return storage.ErrNotFound
	}
	return fmt.Errorf("failed to open object: %w", err)
}
