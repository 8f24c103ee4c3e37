// Package storage manages scratch space for conversions and publishes
// finished audio to S3-compatible object storage.
package storage

import "context"

// Storage provides per-chapter scratch directories on local disk.
type Storage interface {
	// TempDir returns the root of the scratch area.
	TempDir() string

	// NewWorkDir creates a fresh, uniquely named directory under TempDir.
	// The name is used as a prefix.
	NewWorkDir(ctx context.Context, name string) (string, error)

	// CleanupTemp removes the given files or directories.
	// It continues cleanup even if some paths fail to delete.
	CleanupTemp(ctx context.Context, paths []string) error
}

// Publisher uploads a finished file and returns the URL it is served from.
type Publisher interface {
	Publish(ctx context.Context, key, path string) (url string, err error)
}
