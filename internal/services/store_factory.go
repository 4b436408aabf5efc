package services

import (
	"context"
	"fmt"
	"strings"
)

// StoreFactory creates the shared object store client
type StoreFactory interface {
	NewStore(ctx context.Context, creds Credentials) (ObjectStore, error)
}

// RealStoreFactory is the production implementation
type RealStoreFactory struct{}

// shouldUseSSL determines if SSL should be used based on the endpoint.
// Returns false for localhost, 127.0.0.1, and docker service names.
func shouldUseSSL(endpoint string) bool {
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "https://"), "http://")
	// Local development endpoints
	if endpoint == "localhost:9000" || endpoint == "127.0.0.1:9000" {
		return false
	}
	// Docker service names (minio:9000, minio1:9000, minio2:9000, etc.)
	// Only match simple hostnames without dots (not domain names like minio.example.com)
	if strings.HasPrefix(endpoint, "minio") && !strings.Contains(strings.Split(endpoint, ":")[0], ".") && strings.Contains(endpoint, ":9000") {
		return false
	}
	return true
}

func (f *RealStoreFactory) NewStore(ctx context.Context, creds Credentials) (ObjectStore, error) {
	switch creds.BackendName() {
	case BackendMinio:
		return NewMinioStore(creds)
	case BackendS3:
		return NewS3Store(ctx, creds)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", creds.Backend)
	}
}
