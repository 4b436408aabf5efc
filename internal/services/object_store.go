package services

import (
	"context"
	"errors"
	"io"
	"time"
)

// DefaultPageSize is the number of keys requested per listing page when the
// caller does not ask for a specific size
const DefaultPageSize = 1000

// ErrObjectNotFound is returned by StatObject and GetObject when no object
// exists at the key. It is the only storage error the backends translate.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo is the metadata of a single stored object
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string
}

// ListObjectsOptions selects one page of a listing
type ListObjectsOptions struct {
	Prefix string
	// Delimiter groups keys below the next delimiter into CommonPrefixes.
	// Empty means a recursive listing.
	Delimiter         string
	MaxKeys           int
	ContinuationToken string
}

// ListObjectsResult contains one page of a listing
type ListObjectsResult struct {
	Objects               []ObjectInfo
	CommonPrefixes        []string
	IsTruncated           bool
	NextContinuationToken string
}

// ObjectStore is the bucket-scoped subset of the S3 API the gateway relies
// on. Implementations must be safe for concurrent use.
type ObjectStore interface {
	// StatObject returns the metadata of key or ErrObjectNotFound.
	StatObject(ctx context.Context, bucketName, objectName string) (ObjectInfo, error)
	// GetObject opens key for reading. The reader may implement io.Seeker.
	GetObject(ctx context.Context, bucketName, objectName string) (io.ReadCloser, ObjectInfo, error)
	// PutObject uploads reader to key, replacing any existing object. A
	// negative size means the length is unknown.
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64) (ObjectInfo, error)
	CopyObject(ctx context.Context, srcBucket, srcObject, dstBucket, dstObject string) error
	RemoveObject(ctx context.Context, bucketName, objectName string) error
	ListObjectsPage(ctx context.Context, bucketName string, opts ListObjectsOptions) (ListObjectsResult, error)
}

func pageSize(maxKeys int) int {
	if maxKeys <= 0 {
		return DefaultPageSize
	}
	return maxKeys
}
