// Package blob persists snapshot bytes. The store is append-only: a path is
// written exactly once and never rewritten, which is what makes snapshots
// immutable.
package blob

import (
	"context"
	"time"
)

// Store is the tabular byte store. Paths are generated by NewPath and are
// scoped to the owning datasource.
type Store interface {
	// NewPath returns a fresh path for a snapshot of the datasource. The
	// label distinguishes uploads, copy-on-write inputs, execution outputs
	// and appends.
	NewPath(dataSourceID, label string, at time.Time) string
	// Put writes bytes under a path that must not already exist.
	Put(ctx context.Context, path string, data []byte) error
	Get(ctx context.Context, path string) ([]byte, error)
	// Copy duplicates existing bytes to a new path.
	Copy(ctx context.Context, srcPath, dstPath string) error
	Size(ctx context.Context, path string) (int64, error)
}

// timestampName renders the UTC microsecond timestamp used in snapshot file
// names.
func timestampName(at time.Time) string {
	return at.UTC().Format("20060102T150405.000000")
}
