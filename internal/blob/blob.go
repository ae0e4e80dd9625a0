// Package blob abstracts the LIMS file store: uploaded result files, run
// logs, and changelog artifacts live here. Drivers cover the mounted
// filesystem store, S3-compatible archives, and an in-memory store for tests.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// Driver identifies a concrete file store implementation.
type Driver string

const (
	DriverFilesystem Driver = "fs"     // local directory (default)
	DriverS3         Driver = "s3"     // S3-compatible bucket
	DriverMemory     Driver = "memory" // in-memory (tests)
)

// ErrUnsupported marks operations a driver cannot provide.
var ErrUnsupported = errors.New("operation not supported by blob driver")

// WriteOptions carries optional attributes for Put.
type WriteOptions struct {
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo describes a stored file.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	ETag         string
	Metadata     map[string]string
	LastModified time.Time
}

// Store is the file store contract. Put is create-only: the LIMS never
// overwrites an uploaded file in place, it versions by key.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts WriteOptions) (ObjectInfo, error)
	Get(ctx context.Context, key string) (ObjectInfo, io.ReadCloser, error)
	Head(ctx context.Context, key string) (ObjectInfo, error)
	Delete(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	PresignURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	Driver() Driver
}

// Open selects a store implementation using environment variables.
//
//	LIMSEPP_BLOB_DRIVER: fs|s3|memory (default fs)
//	LIMSEPP_BLOB_FS_ROOT: root directory when driver=fs
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("LIMSEPP_BLOB_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return NewFilesystem(os.Getenv("LIMSEPP_BLOB_FS_ROOT"))
	case DriverS3:
		return OpenS3FromEnv(ctx)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}

func cloneMetadata(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
