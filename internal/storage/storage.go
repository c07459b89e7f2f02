package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var ErrObjectNotFound = errors.New("object not found")

type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

// ObjectStore holds schema descriptors shared between deployments. Keys are
// relative to the store's prefix.
type ObjectStore interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Put(ctx context.Context, key string, body []byte, contentType string) (ObjectInfo, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
}
