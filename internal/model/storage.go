package model

import (
	"context"
	"io"
)

// ObjectStorage reads auxiliary documents from object storage.
type ObjectStorage interface {
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
}
