package domain

import (
	"context"
	"io"
	"time"
)

// BlobInfo describes a stored object.
type BlobInfo struct {
	Path         string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// BlobReader retrieves data from object storage.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// ArchivePrefix is the object prefix under which a contract's submissions
// are archived.
func ArchivePrefix(contractID string) string {
	return "resolutions/" + contractID + "/"
}

// ResolutionArchiver copies resolution records to cold storage.
type ResolutionArchiver interface {
	ArchiveRecord(ctx context.Context, rec ResolutionRecord) (string, error)
	ArchiveBefore(ctx context.Context, before time.Time) (int64, error)
}
