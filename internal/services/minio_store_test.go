package services

import (
	"errors"
	"net/http"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinioError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		notFound bool
	}{
		{"nil", nil, false},
		{"no such key", minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}, true},
		{"head 404 without code", minio.ErrorResponse{StatusCode: http.StatusNotFound}, true},
		{"missing bucket", minio.ErrorResponse{Code: "NoSuchBucket", StatusCode: http.StatusNotFound}, false},
		{"access denied", minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}, false},
		{"transport", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := minioError(tt.err, "key")
			if tt.err == nil {
				assert.NoError(t, got)
				return
			}
			assert.Equal(t, tt.notFound, errors.Is(got, ErrObjectNotFound))
			if !tt.notFound {
				assert.Equal(t, tt.err, got)
			}
		})
	}
}

func TestNewMinioStore(t *testing.T) {
	t.Run("host and port", func(t *testing.T) {
		store, err := NewMinioStore(Credentials{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"})
		require.NoError(t, err)
		assert.Equal(t, "http", store.core.EndpointURL().Scheme)
		assert.Equal(t, "localhost:9000", store.core.EndpointURL().Host)
	})

	t.Run("url endpoint sets scheme", func(t *testing.T) {
		store, err := NewMinioStore(Credentials{Endpoint: "https://storage.example.com", AccessKey: "a", SecretKey: "b"})
		require.NoError(t, err)
		assert.Equal(t, "https", store.core.EndpointURL().Scheme)
		assert.Equal(t, "storage.example.com", store.core.EndpointURL().Host)
	})

	t.Run("explicit secure wins over scheme", func(t *testing.T) {
		insecure := false
		store, err := NewMinioStore(Credentials{Endpoint: "https://storage.example.com", Secure: &insecure})
		require.NoError(t, err)
		assert.Equal(t, "http", store.core.EndpointURL().Scheme)
	})

	t.Run("path in endpoint is rejected", func(t *testing.T) {
		_, err := NewMinioStore(Credentials{Endpoint: "storage.example.com/bucket"})
		assert.Error(t, err)
	})
}
