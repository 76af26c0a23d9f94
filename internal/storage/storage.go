// Package storage reads data products from object stores and plain HTTP(S)
// servers. Backends stream bodies and never touch local disk; writing the
// result somewhere is the caller's job.
package storage

import (
	"context"
	"io"
	"time"

	"datalocator/internal/model"
)

// ObjectInfo contains basic information about a remote object.
// Size is -1 when the server did not report a length.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
}

// Backend reads objects addressed by bucket, key and region.
// Implementations must be safe for concurrent use by multiple goroutines and
// must classify failures with ErrNotFound, ErrAccessDenied or ErrTransfer.
type Backend interface {
	// Stat returns object metadata without transferring the body.
	Stat(ctx context.Context, addr model.CloudAddress) (ObjectInfo, error)
	// Get returns the object body as a streaming reader alongside its info.
	Get(ctx context.Context, addr model.CloudAddress) (io.ReadCloser, ObjectInfo, error)
}

// Fetcher reads products that are only reachable through their access URL.
type Fetcher interface {
	// Head returns metadata for rawURL without transferring the body.
	Head(ctx context.Context, rawURL string) (ObjectInfo, error)
	// Fetch returns the body of rawURL as a streaming reader.
	Fetch(ctx context.Context, rawURL string) (io.ReadCloser, ObjectInfo, error)
}

// Registry maps provider names found in cloud metadata to backends.
type Registry map[string]Backend

// Lookup returns the backend serving provider.
func (r Registry) Lookup(provider string) (Backend, error) {
	if b, ok := r[provider]; ok && b != nil {
		return b, nil
	}
	return nil, unsupportedProvider(provider)
}

// Providers lists the registered provider names.
func (r Registry) Providers() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	return names
}
