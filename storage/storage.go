/*
Package storage abstracts the object store used for proof-of-payment
artifacts.

PURPOSE:
  The engine persists uploaded receipts before it writes any enrollment
  record, and treats the returned URL as an opaque string afterwards.
  This package hides whether the bytes land in S3 or in memory.

IMPLEMENTATIONS:
  - s3.go:     S3-compatible object store (production)
  - memory.go: In-memory map (tests, local dev)

SEE ALSO:
  - engine/service.go: Uploads receipts during CreateEnrollment
*/
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned when a key has no stored object.
var ErrObjectNotFound = errors.New("object not found")

// Storage stores binary artifacts under opaque keys.
type Storage interface {
	// Upload stores the object and returns a retrievable URL for it.
	Upload(ctx context.Context, key string, data io.Reader) (string, error)

	// Download returns the object's contents. The caller closes the reader.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists reports whether an object is stored under the key.
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes the object. Removing a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
