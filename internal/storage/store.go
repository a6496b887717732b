// Package storage abstracts the bucket holding historical CSV files and backups.
package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

// ErrObjectNotFound is returned when a named object does not exist
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo describes a listed object
type ObjectInfo struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	Updated time.Time `json:"updated"`
}

// ObjectStore is a bucket-scoped blob store
type ObjectStore interface {
	// List returns every object whose name starts with prefix, in no particular order
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	// Open streams an object; the caller closes the reader
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Write(ctx context.Context, name string, r io.Reader, contentType string) error
	// URI renders the object name as the fully-qualified location a warehouse can read
	URI(name string) string
	// NameFromURI is the inverse of URI for objects in this bucket
	NameFromURI(uri string) (string, bool)
	Close() error
}

// bucketURI implements URI and NameFromURI for scheme://bucket/name locations
type bucketURI struct {
	scheme string
	bucket string
}

func (b bucketURI) prefix() string {
	return b.scheme + "://" + b.bucket + "/"
}

func (b bucketURI) URI(name string) string {
	return b.prefix() + strings.TrimPrefix(name, "/")
}

func (b bucketURI) NameFromURI(uri string) (string, bool) {
	if !strings.HasPrefix(uri, b.prefix()) {
		return "", false
	}
	return strings.TrimPrefix(uri, b.prefix()), true
}

// Join builds an object name from path segments, skipping empty ones
func Join(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "/")
}
