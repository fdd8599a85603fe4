// Package blob selects a backup blob store implementation.
package blob

import (
	"context"
	"fmt"

	"spycats/internal/infra/blob/core"
	"spycats/internal/infra/blob/fs"
	"spycats/internal/infra/blob/memory"
	"spycats/internal/infra/blob/s3"
)

// DefaultFSRoot is the directory used by the fs driver when no root is set.
const DefaultFSRoot = "backups"

// Store re-exports the blob store abstraction.
type Store = core.Store

// Options selects a driver. FSRoot is consulted only for fs and S3 only
// for s3.
type Options struct {
	Driver core.Driver
	FSRoot string
	S3     s3.Config
}

// Open returns the configured store. Driver defaults to fs so backups are
// durable unless memory is requested explicitly.
func Open(ctx context.Context, opts Options) (Store, error) {
	driver := opts.Driver
	if driver == "" {
		driver = core.DriverFS
	}
	switch driver {
	case core.DriverFS:
		root := opts.FSRoot
		if root == "" {
			root = DefaultFSRoot
		}
		return fs.New(root)
	case core.DriverMemory:
		return memory.New(), nil
	case core.DriverS3:
		return s3.New(ctx, opts.S3)
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
