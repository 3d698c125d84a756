// Package blob stores uploaded document bytes outside the database. Two
// backends exist: local filesystem and any S3-compatible object store. The
// backend is chosen by deployment configuration, never by runtime inspection.
package blob

import "context"

// Provider is the byte-oriented storage port used by upload and processing.
type Provider interface {
	Upload(ctx context.Context, data []byte, path, contentType string) error
	Download(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) error
}
