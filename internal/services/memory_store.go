package services

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryObject struct {
	data     []byte
	modified time.Time
	etag     string
}

// MemoryStore is an in-memory ObjectStore with S3 listing semantics. It backs
// the "memory" backend for local development and the gateway tests.
type MemoryStore struct {
	mu       sync.RWMutex
	buckets  map[string]map[string]memoryObject
	pageSize int
	now      func() time.Time
}

// NewMemoryStore constructs an empty store. Buckets are created on first write.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		buckets: make(map[string]map[string]memoryObject),
		now:     time.Now,
	}
}

// SetPageSize caps every listing page, overriding larger MaxKeys requests.
// Tests use it to force pagination.
func (m *MemoryStore) SetPageSize(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pageSize = n
}

// Keys returns every key in bucket in lexical order
func (m *MemoryStore) Keys(bucketName string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedKeys(bucketName)
}

// Content returns a copy of the object data at key
func (m *MemoryStore) Content(bucketName, objectName string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.buckets[bucketName][objectName]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), obj.data...), true
}

func (m *MemoryStore) StatObject(ctx context.Context, bucketName, objectName string) (ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.buckets[bucketName][objectName]
	if !ok {
		return ObjectInfo{}, fmt.Errorf("%w: %s", ErrObjectNotFound, objectName)
	}
	return obj.info(objectName), nil
}

func (m *MemoryStore) GetObject(ctx context.Context, bucketName, objectName string) (io.ReadCloser, ObjectInfo, error) {
	info, err := m.StatObject(ctx, bucketName, objectName)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	data, _ := m.Content(bucketName, objectName)
	return &memoryReader{Reader: bytes.NewReader(data)}, info, nil
}

func (m *MemoryStore) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64) (ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return ObjectInfo{}, err
	}
	if objectSize >= 0 && int64(len(data)) != objectSize {
		return ObjectInfo{}, fmt.Errorf("memory store: short upload for %s: got %d bytes, want %d", objectName, len(data), objectSize)
	}

	sum := md5.Sum(data)
	obj := memoryObject{data: data, modified: m.now().UTC(), etag: hex.EncodeToString(sum[:])}

	m.mu.Lock()
	defer m.mu.Unlock()
	bucket, ok := m.buckets[bucketName]
	if !ok {
		bucket = make(map[string]memoryObject)
		m.buckets[bucketName] = bucket
	}
	bucket[objectName] = obj
	return obj.info(objectName), nil
}

func (m *MemoryStore) CopyObject(ctx context.Context, srcBucket, srcObject, dstBucket, dstObject string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	src, ok := m.buckets[srcBucket][srcObject]
	if !ok {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, srcObject)
	}
	bucket, ok := m.buckets[dstBucket]
	if !ok {
		bucket = make(map[string]memoryObject)
		m.buckets[dstBucket] = bucket
	}
	bucket[dstObject] = memoryObject{
		data:     append([]byte(nil), src.data...),
		modified: m.now().UTC(),
		etag:     src.etag,
	}
	return nil
}

// RemoveObject succeeds for missing keys, like S3 DeleteObject
func (m *MemoryStore) RemoveObject(ctx context.Context, bucketName, objectName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.buckets[bucketName], objectName)
	return nil
}

// ListObjectsPage groups keys below the delimiter into common prefixes. Each
// common prefix counts as one key toward MaxKeys. Continuation tokens are
// opaque: "k" or "p" followed by the last key or prefix emitted.
func (m *MemoryStore) ListObjectsPage(ctx context.Context, bucketName string, opts ListObjectsOptions) (ListObjectsResult, error) {
	if err := ctx.Err(); err != nil {
		return ListObjectsResult{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	limit := pageSize(opts.MaxKeys)
	if m.pageSize > 0 && m.pageSize < limit {
		limit = m.pageSize
	}

	var afterKey, afterPrefix string
	if tok := opts.ContinuationToken; tok != "" {
		switch tok[0] {
		case 'k':
			afterKey = tok[1:]
		case 'p':
			afterPrefix = tok[1:]
		default:
			return ListObjectsResult{}, fmt.Errorf("memory store: invalid continuation token %q", tok)
		}
	}

	var result ListObjectsResult
	count := 0
	lastToken := ""
	for _, key := range m.sortedKeys(bucketName) {
		if !strings.HasPrefix(key, opts.Prefix) {
			continue
		}
		if afterKey != "" && key <= afterKey {
			continue
		}
		if afterPrefix != "" && (key <= afterPrefix || strings.HasPrefix(key, afterPrefix)) {
			continue
		}

		commonPrefix := ""
		if opts.Delimiter != "" {
			rest := key[len(opts.Prefix):]
			if i := strings.Index(rest, opts.Delimiter); i >= 0 {
				commonPrefix = opts.Prefix + rest[:i+len(opts.Delimiter)]
			}
		}
		if commonPrefix != "" && lastToken == "p"+commonPrefix {
			continue
		}

		if count == limit {
			result.IsTruncated = true
			result.NextContinuationToken = lastToken
			break
		}
		if commonPrefix != "" {
			result.CommonPrefixes = append(result.CommonPrefixes, commonPrefix)
			lastToken = "p" + commonPrefix
		} else {
			result.Objects = append(result.Objects, m.buckets[bucketName][key].info(key))
			lastToken = "k" + key
		}
		count++
	}
	return result, nil
}

func (m *MemoryStore) sortedKeys(bucketName string) []string {
	bucket := m.buckets[bucketName]
	keys := make([]string, 0, len(bucket))
	for k := range bucket {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (o memoryObject) info(key string) ObjectInfo {
	return ObjectInfo{
		Key:          key,
		Size:         int64(len(o.data)),
		LastModified: o.modified,
		ETag:         o.etag,
	}
}

type memoryReader struct {
	*bytes.Reader
}

func (r *memoryReader) Close() error { return nil }
