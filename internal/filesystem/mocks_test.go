package filesystem

import (
	"context"
	"io"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/damacus/bucketfs/internal/services"
)

// MockObjectStore mocks services.ObjectStore
type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) StatObject(ctx context.Context, bucketName, objectName string) (services.ObjectInfo, error) {
	args := m.Called(ctx, bucketName, objectName)
	return args.Get(0).(services.ObjectInfo), args.Error(1)
}

func (m *MockObjectStore) GetObject(ctx context.Context, bucketName, objectName string) (io.ReadCloser, services.ObjectInfo, error) {
	args := m.Called(ctx, bucketName, objectName)
	if args.Get(0) == nil {
		return nil, args.Get(1).(services.ObjectInfo), args.Error(2)
	}
	return args.Get(0).(io.ReadCloser), args.Get(1).(services.ObjectInfo), args.Error(2)
}

func (m *MockObjectStore) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64) (services.ObjectInfo, error) {
	args := m.Called(ctx, bucketName, objectName, reader, objectSize)
	return args.Get(0).(services.ObjectInfo), args.Error(1)
}

func (m *MockObjectStore) CopyObject(ctx context.Context, srcBucket, srcObject, dstBucket, dstObject string) error {
	args := m.Called(ctx, srcBucket, srcObject, dstBucket, dstObject)
	return args.Error(0)
}

func (m *MockObjectStore) RemoveObject(ctx context.Context, bucketName, objectName string) error {
	args := m.Called(ctx, bucketName, objectName)
	return args.Error(0)
}

func (m *MockObjectStore) ListObjectsPage(ctx context.Context, bucketName string, opts services.ListObjectsOptions) (services.ListObjectsResult, error) {
	args := m.Called(ctx, bucketName, opts)
	return args.Get(0).(services.ListObjectsResult), args.Error(1)
}

// faultyStore wraps a MemoryStore and injects failures per key
type faultyStore struct {
	*services.MemoryStore

	mu        sync.Mutex
	copyErr   map[string]error
	removeErr map[string]error
	putErr    error
	// afterPage runs after every successful listing page
	afterPage func(page int)
	pages     int
}

func newFaultyStore(mem *services.MemoryStore) *faultyStore {
	return &faultyStore{
		MemoryStore: mem,
		copyErr:     make(map[string]error),
		removeErr:   make(map[string]error),
	}
}

func (f *faultyStore) CopyObject(ctx context.Context, srcBucket, srcObject, dstBucket, dstObject string) error {
	f.mu.Lock()
	err := f.copyErr[srcObject]
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.MemoryStore.CopyObject(ctx, srcBucket, srcObject, dstBucket, dstObject)
}

func (f *faultyStore) RemoveObject(ctx context.Context, bucketName, objectName string) error {
	f.mu.Lock()
	err := f.removeErr[objectName]
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.MemoryStore.RemoveObject(ctx, bucketName, objectName)
}

func (f *faultyStore) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64) (services.ObjectInfo, error) {
	if f.putErr != nil {
		return services.ObjectInfo{}, f.putErr
	}
	return f.MemoryStore.PutObject(ctx, bucketName, objectName, reader, objectSize)
}

func (f *faultyStore) ListObjectsPage(ctx context.Context, bucketName string, opts services.ListObjectsOptions) (services.ListObjectsResult, error) {
	result, err := f.MemoryStore.ListObjectsPage(ctx, bucketName, opts)
	if err != nil {
		return result, err
	}
	f.mu.Lock()
	f.pages++
	page := f.pages
	f.mu.Unlock()
	if f.afterPage != nil {
		f.afterPage(page)
	}
	return result, nil
}

// trackingReader records whether Close was called
type trackingReader struct {
	io.Reader
	closed bool
}

func (r *trackingReader) Close() error {
	r.closed = true
	return nil
}
