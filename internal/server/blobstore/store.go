// Package blobstore keeps uploaded images outside the database. Records only
// hold the key.
package blobstore

import (
	"context"
	"io"
	"time"
)

// Store is a flat key/value store for binary objects.
type Store interface {
	// Put writes size bytes from r under key, replacing any previous object.
	Put(ctx context.Context, key, contentType string, r io.Reader, size int64) error
	// Open returns the object and its content type, or common.ErrorNotFound.
	Open(ctx context.Context, key string) (io.ReadCloser, string, error)
	// Delete removes key. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error
}

// Presigner is implemented by stores that can hand out temporary direct URLs.
type Presigner interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}
