package storage

import (
	"context"
	"io"
)

// Store persists document bytes and generated artifacts (training files,
// workbooks) under opaque keys.
type Store interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}
