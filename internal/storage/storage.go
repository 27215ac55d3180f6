// Package storage defines the object store used for table snapshots.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrInvalidKey     = errors.New("invalid object key")
)

// ObjectInfo describes a stored object. Metadata holds the user metadata
// written with PutOptions, keyed without any provider prefix.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
	Metadata     map[string]string
}

type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// Reader is the read half of ObjectStore. Query engines and integrity
// checks only need this.
type Reader interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
}

type ObjectStore interface {
	Reader
	Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) (ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

// ReadObject stats key and downloads it in full. The returned info is the
// stat result; callers compare info.Size with len(data) to detect truncation.
func ReadObject(ctx context.Context, store Reader, key string) (ObjectInfo, []byte, error) {
	if store == nil {
		return ObjectInfo{}, nil, fmt.Errorf("object store is required")
	}
	info, err := store.Stat(ctx, key)
	if err != nil {
		return ObjectInfo{}, nil, err
	}
	body, err := store.Get(ctx, key)
	if err != nil {
		return info, nil, err
	}
	defer body.Close()

	var buf bytes.Buffer
	if info.Size > 0 {
		buf.Grow(int(info.Size))
	}
	if _, err := io.Copy(&buf, body); err != nil {
		return info, nil, fmt.Errorf("read object %q: %w", key, err)
	}
	return info, buf.Bytes(), nil
}
