package ports

import (
	"context"
	"io"
	"time"
)

// ObjectInfo describes one stored object as returned by ListObjects.
// Updated is the store's native modification time; custom metadata is not
// included here (most backends require a per-object metadata read).
type ObjectInfo struct {
	Key     string
	Size    int64
	Updated time.Time
}

type PutObjectInput struct {
	ObjectKey   string
	ContentType string
	Reader      io.Reader
	Size        int64
	// Metadata is stored as custom object metadata and returned verbatim by
	// GetObjectMetadata. Keys may be case-folded by some backends.
	Metadata map[string]string
}

type PutObjectOutput struct {
	ObjectKey string
	Size      int64
}

type SignedURLOutput struct {
	URL       string
	ExpiresAt time.Time
}

// StorageProvider: implementations (localfs, s3, gcs).
type StorageProvider interface {
	Provider() string

	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
	PutObject(ctx context.Context, in PutObjectInput) (PutObjectOutput, error)
	GetObject(ctx context.Context, objectKey string) (rc io.ReadCloser, contentType string, size int64, err error)
	DeleteObject(ctx context.Context, objectKey string) error

	// GetObjectMetadata returns the custom metadata map alongside the
	// object's listing info (native modification time included).
	GetObjectMetadata(ctx context.Context, objectKey string) (map[string]string, ObjectInfo, error)

	GetSignedURL(ctx context.Context, objectKey string, expiresIn time.Duration) (SignedURLOutput, error)
}
