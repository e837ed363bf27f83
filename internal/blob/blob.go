// Package blob exposes the artifact store interface and its backend factory.
// Call sites depend on blob.Store; the concrete backends live under
// internal/infra/blob and are only reached through this package.
package blob

import (
	"context"
	"fmt"
	"os"

	"inventorycore/internal/blob/core"
	"inventorycore/internal/infra/blob/fs"
	memorystore "inventorycore/internal/infra/blob/memory"
	infraS3 "inventorycore/internal/infra/blob/s3"
)

type (
	// Driver identifies an artifact storage backend.
	Driver = core.Driver
	// PutOptions configures an artifact write.
	PutOptions = core.PutOptions
	// SignedURLOptions configures URL pre-signing.
	SignedURLOptions = core.SignedURLOptions
	// Info describes stored artifact metadata.
	Info = core.Info
	// Store is the interface for artifact storage backends.
	Store = core.Store
)

const (
	// DriverFilesystem is the local filesystem driver.
	DriverFilesystem = core.DriverFilesystem
	// DriverS3 is the S3-compatible driver.
	DriverS3 = core.DriverS3
	// DriverMemory is the in-memory test driver.
	DriverMemory = core.DriverMemory
)

// ErrUnsupported indicates an operation isn't supported by a driver.
var ErrUnsupported = core.ErrUnsupported

// S3Config holds explicit S3 construction parameters.
type S3Config = infraS3.Config

// Open selects a Store implementation using environment variables.
//
//	INVENTORYCORE_BLOB_DRIVER: fs|s3|memory (default fs)
//	INVENTORYCORE_BLOB_FS_ROOT: directory root when driver=fs (default ./artifactdata)
//	(S3 specific variables documented in the s3 backend)
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("INVENTORYCORE_BLOB_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return NewFilesystem(os.Getenv("INVENTORYCORE_BLOB_FS_ROOT"))
	case DriverS3:
		return infraS3.OpenFromEnv(ctx)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}

// NewFilesystem constructs a filesystem-backed Store rooted at the provided
// path.
func NewFilesystem(root string) (Store, error) {
	return fs.New(root)
}

// NewMemory returns an in-memory Store suitable for tests.
func NewMemory() Store { return memorystore.New() }

// NewS3 constructs an S3-backed Store from the provided configuration.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	return infraS3.New(ctx, cfg)
}

// NewMockS3ForTests exposes the in-memory S3 mock for cross-package tests.
func NewMockS3ForTests() Store { return infraS3.NewMockForTests() }
