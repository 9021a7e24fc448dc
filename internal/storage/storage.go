// Package storage defines the interface for object storage operations.
// Swap implementations by changing the concrete type injected at startup:
// the MinIO implementation works with any S3-compatible provider, the S3
// implementation talks to AWS (or a compatible endpoint) through aws-sdk-go-v2.
package storage

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// cacheControl is set on every stored photo. Keys are never reused, so
// browsers and CDNs may keep an object forever.
const cacheControl = "public, max-age=31536000, immutable"

// Storage is the interface for uploading and removing objects.
type Storage interface {
	// Upload streams data to the store under the given key.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	// Delete removes an object identified by key. Deleting a key that does
	// not exist succeeds: S3 and MinIO both answer 204 for it.
	Delete(ctx context.Context, key string) error
	// PublicURL constructs the browser-accessible URL for a given key.
	PublicURL(key string) string
}

// NewKey derives a collision-free object key for an uploaded file: a random
// UUID followed by the extension of the original filename, case kept.
// The user-supplied name never becomes part of the key.
func NewKey(filename string) string {
	ext := filepath.Ext(filepath.Base(filename))
	if ext == "." || strings.ContainsAny(ext, `/\`) {
		ext = ""
	}
	return uuid.NewString() + ext
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
