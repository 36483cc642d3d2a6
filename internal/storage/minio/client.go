package minio

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"

	"github.com/dtroode/telcoassist-server/internal/model"
)

// ErrBucketNotFound is returned when the configured bucket does not exist.
var ErrBucketNotFound = errors.New("bucket not found")

// objectAPI is the subset of *minio.Client the storage uses.
type objectAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
}

type clientAdapter struct{ c *minio.Client }

func (a clientAdapter) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	return a.c.BucketExists(ctx, bucketName)
}

func (a clientAdapter) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	obj, err := a.c.GetObject(ctx, bucketName, objectName, opts)
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func (a clientAdapter) StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	return a.c.StatObject(ctx, bucketName, objectName, opts)
}

var _ model.ObjectStorage = (*Client)(nil)

// Client reads auxiliary NLU documents from a single bucket.
type Client struct {
	api    objectAPI
	bucket string
}

// NewClient wraps a *minio.Client and checks that bucket is present.
func NewClient(ctx context.Context, client *minio.Client, bucket string) (*Client, error) {
	return newClient(ctx, clientAdapter{c: client}, bucket)
}

func newClient(ctx context.Context, api objectAPI, bucket string) (*Client, error) {
	exists, err := api.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%s: %w", bucket, ErrBucketNotFound)
	}

	return &Client{api: api, bucket: bucket}, nil
}

// Download opens the object stored under key. A missing key yields
// model.ErrNotFound.
func (c *Client) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	if _, err := c.api.StatObject(ctx, c.bucket, key, minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("failed to stat object: %w", err)
	}

	obj, err := c.api.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	return obj, nil
}

// Exists reports whether key is present in the bucket.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.api.StatObject(ctx, c.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat object: %w", err)
	}
	return true, nil
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
