// Package storage mirrors finished job artifacts into object storage so they
// outlive the provider's expiring result links.
package storage

import (
	"context"
	"fmt"
	"io"
)

// ObjectStorage is the subset of object-store operations the result mirror needs.
type ObjectStorage interface {
	// EnsureBucket creates the target bucket when the backend allows it.
	EnsureBucket(ctx context.Context) error

	// Upload stores obj under obj.Key, replacing any existing object.
	Upload(ctx context.Context, obj Object) error

	// Exists checks if an object exists.
	Exists(ctx context.Context, key string) (bool, error)

	// GetURL returns the public URL for key.
	GetURL(key string) string
}

// Object is a single artifact to store.
type Object struct {
	Key         string
	Body        io.Reader
	Size        int64 // -1 when unknown
	ContentType string
	// Filename, when set, is offered to browsers as the download name.
	Filename string
	Metadata map[string]string
}

func (o Object) contentDisposition() string {
	if o.Filename == "" {
		return ""
	}
	return fmt.Sprintf("attachment; filename=%q", o.Filename)
}
