// Package blob is the only entry point to blob storage for the rest of the
// module. It re-exports the core abstractions and selects a backend.
package blob

import (
	"context"
	"fmt"

	"formulacore/internal/blob/core"
	"formulacore/internal/config"
	"formulacore/internal/infra/blob/fs"
	"formulacore/internal/infra/blob/memory"
	"formulacore/internal/infra/blob/s3"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// Info describes stored blob metadata.
	Info = core.Info
	// Store is the interface for blob storage backends.
	Store = core.Store
)

const (
	// DriverFilesystem is the local filesystem driver.
	DriverFilesystem = core.DriverFilesystem
	// DriverS3 is the S3-compatible driver.
	DriverS3 = core.DriverS3
	// DriverMemory is the in-memory driver.
	DriverMemory = core.DriverMemory
)

var (
	// ErrNotFound is returned (wrapped) when a key does not exist.
	ErrNotFound = core.ErrNotFound
	// ErrExists is returned (wrapped) when Put targets an existing key.
	ErrExists = core.ErrExists
)

// Open selects a Store from configuration. An empty driver means fs.
func Open(ctx context.Context, cfg config.Blob) (Store, error) {
	switch Driver(cfg.Driver) {
	case DriverFilesystem, "":
		return NewFilesystem(cfg.FSRoot)
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}

// NewFilesystem returns a Store rooted at root.
func NewFilesystem(root string) (Store, error) {
	store, err := fs.New(root)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// NewMemory returns an in-process Store.
func NewMemory() Store { return memory.New() }

// NewS3 returns a Store bound to the configured bucket.
func NewS3(ctx context.Context, cfg config.S3) (Store, error) {
	store, err := s3.New(ctx, s3.Config{
		Region:          cfg.Region,
		Bucket:          cfg.Bucket,
		Endpoint:        cfg.Endpoint,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		PathStyle:       cfg.PathStyle,
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

// NewS3Mock returns an S3 Store backed by an in-process fake transport.
func NewS3Mock(ctx context.Context) (Store, error) {
	store, err := s3.NewMock(ctx, 0)
	if err != nil {
		return nil, err
	}
	return store, nil
}
