// Package storage keeps annotated result images and hands back a URL the
// browser can load them from.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	DriverLocal = "local"
	DriverS3    = "s3"
)

var (
	ErrNotFound     = errors.New("result not found")
	ErrInvalidName  = errors.New("invalid result name")
	ErrUnknownStore = errors.New("unknown storage driver")
)

type IStorage interface {
	// Save stores data under name and returns the public URL for it.
	Save(ctx context.Context, name string, data []byte, contentType string) (string, error)
	// Open returns the stored object. Callers must close the reader.
	Open(ctx context.Context, name string) (io.ReadCloser, string, error)
	// URL returns a URL a client can fetch name from directly, or "" when the
	// object is only reachable through Open.
	URL(ctx context.Context, name string) (string, error)
}

// New builds the storage selected by STORAGE_DRIVER (local by default).
func New() (IStorage, error) {
	driver := os.Getenv("STORAGE_DRIVER")
	if driver == "" {
		driver = DriverLocal
	}

	switch driver {
	case DriverLocal:
		dir := os.Getenv("RESULT_FOLDER")
		if dir == "" {
			dir = "results"
		}
		return NewLocal(dir, "/results")
	case DriverS3:
		return NewS3()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStore, driver)
	}
}
