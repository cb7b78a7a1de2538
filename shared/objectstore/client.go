package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config holds object store connection configuration
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Client is the blob storage capability used by the pipeline. Names are
// opaque strings; bucket mechanics stay inside this package.
type Client struct {
	mc     *minio.Client
	bucket string
	logger *slog.Logger
}

// NewClient connects to the object store and ensures the bucket exists.
func NewClient(config *Config, logger *slog.Logger) (*Client, error) {
	mc, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := mc.BucketExists(ctx, config.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := mc.MakeBucket(ctx, config.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		logger.Info("Object store bucket created",
			slog.String("bucket", config.Bucket),
		)
	}

	logger.Info("Object store client initialized",
		slog.String("endpoint", config.Endpoint),
		slog.String("bucket", config.Bucket),
	)

	return &Client{
		mc:     mc,
		bucket: config.Bucket,
		logger: logger,
	}, nil
}

// Put writes bytes under the given name.
func (c *Client) Put(ctx context.Context, name string, data []byte, contentType string) error {
	_, err := c.mc.PutObject(ctx, c.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		c.logger.Error("Failed to upload object",
			slog.String("name", name),
			slog.Any("error", err),
		)
		return fmt.Errorf("failed to upload object %s: %w", name, err)
	}

	c.logger.Debug("Object uploaded",
		slog.String("name", name),
		slog.Int("size", len(data)),
	)

	return nil
}

// Get returns a stream for the named object. The caller must close it.
func (c *Client) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	obj, err := c.mc.GetObject(ctx, c.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", name, err)
	}

	// GetObject is lazy; Stat forces the first request so a missing object
	// fails here instead of on first read.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, fmt.Errorf("failed to stat object %s: %w", name, err)
	}

	return obj, nil
}

// SignedURL returns a presigned GET URL valid for the given ttl.
func (c *Client) SignedURL(ctx context.Context, name string, ttl time.Duration) (string, error) {
	u, err := c.mc.PresignedGetObject(ctx, c.bucket, name, ttl, nil)
	if err != nil {
		return "", fmt.Errorf("failed to presign object %s: %w", name, err)
	}
	return u.String(), nil
}
