package mapstore

import (
	"context"
	"fmt"
	"log/slog"
)

// Driver selects a Store backend.
type Driver string

const (
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
)

// Options configures Open.
type Options struct {
	Driver Driver
	Root   string // filesystem base directory when Driver == fs
	S3     S3Config
}

// Open constructs the configured Store backend.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (Store, error) {
	switch opts.Driver {
	case DriverFilesystem:
		return NewFilesystem(opts.Root, logger)
	case DriverS3:
		return NewS3(ctx, opts.S3, logger)
	default:
		return nil, fmt.Errorf("unknown map store driver %q", opts.Driver)
	}
}
