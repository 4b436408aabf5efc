package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore wraps minio.Core to implement ObjectStore.
// Core is needed for single-page ListObjectsV2 calls; everything else goes
// through the embedded *minio.Client.
type MinioStore struct {
	core *minio.Core
}

// NewMinioStore connects to a MinIO or other S3-compatible endpoint
func NewMinioStore(creds Credentials) (*MinioStore, error) {
	endpoint, secure := creds.Endpoint, creds.UseSSL()
	// minio.New wants host[:port]; accept a URL and take TLS from its scheme
	if u, err := url.Parse(endpoint); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		endpoint = u.Host
		if creds.Secure == nil {
			secure = u.Scheme == "https"
		}
	}

	core, err := minio.NewCore(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(creds.AccessKey, creds.SecretKey, creds.SessionToken),
		Secure: secure,
		Region: creds.Region,
	})
	if err != nil {
		return nil, err
	}
	return &MinioStore{core: core}, nil
}

func (s *MinioStore) StatObject(ctx context.Context, bucketName, objectName string) (ObjectInfo, error) {
	info, err := s.core.Client.StatObject(ctx, bucketName, objectName, minio.StatObjectOptions{})
	if err != nil {
		return ObjectInfo{}, minioError(err, objectName)
	}
	return fromMinioInfo(info), nil
}

// GetObject returns the seekable *minio.Object. The object is stat'ed first
// so a missing key fails here instead of on the first Read.
func (s *MinioStore) GetObject(ctx context.Context, bucketName, objectName string) (io.ReadCloser, ObjectInfo, error) {
	obj, err := s.core.Client.GetObject(ctx, bucketName, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, ObjectInfo{}, minioError(err, objectName)
	}
	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, ObjectInfo{}, minioError(err, objectName)
	}
	return obj, fromMinioInfo(info), nil
}

func (s *MinioStore) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64) (ObjectInfo, error) {
	if objectSize < 0 {
		objectSize = -1
	}
	upload, err := s.core.Client.PutObject(ctx, bucketName, objectName, reader, objectSize, minio.PutObjectOptions{})
	if err != nil {
		return ObjectInfo{}, err
	}
	return ObjectInfo{
		Key:          objectName,
		Size:         upload.Size,
		LastModified: upload.LastModified,
		ETag:         upload.ETag,
	}, nil
}

func (s *MinioStore) CopyObject(ctx context.Context, srcBucket, srcObject, dstBucket, dstObject string) error {
	_, err := s.core.Client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: dstBucket, Object: dstObject},
		minio.CopySrcOptions{Bucket: srcBucket, Object: srcObject},
	)
	return minioError(err, srcObject)
}

func (s *MinioStore) RemoveObject(ctx context.Context, bucketName, objectName string) error {
	return s.core.Client.RemoveObject(ctx, bucketName, objectName, minio.RemoveObjectOptions{})
}

// ListObjectsPage issues exactly one ListObjectsV2 request.
// minio.Core does not take a context, so cancellation is checked before the
// call and again before the result is returned.
func (s *MinioStore) ListObjectsPage(ctx context.Context, bucketName string, opts ListObjectsOptions) (ListObjectsResult, error) {
	if err := ctx.Err(); err != nil {
		return ListObjectsResult{}, err
	}

	page, err := s.core.ListObjectsV2(bucketName, opts.Prefix, "", opts.ContinuationToken, opts.Delimiter, pageSize(opts.MaxKeys))
	if err != nil {
		return ListObjectsResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return ListObjectsResult{}, err
	}

	result := ListObjectsResult{
		IsTruncated:           page.IsTruncated,
		NextContinuationToken: page.NextContinuationToken,
	}
	for _, obj := range page.Contents {
		result.Objects = append(result.Objects, fromMinioInfo(obj))
	}
	for _, cp := range page.CommonPrefixes {
		result.CommonPrefixes = append(result.CommonPrefixes, cp.Prefix)
	}
	return result, nil
}

func fromMinioInfo(info minio.ObjectInfo) ObjectInfo {
	return ObjectInfo{
		Key:          info.Key,
		Size:         info.Size,
		LastModified: info.LastModified,
		ETag:         info.ETag,
	}
}

// minioError maps missing-object responses onto ErrObjectNotFound and leaves
// every other error untouched
func minioError(err error, objectName string) error {
	if err == nil {
		return nil
	}
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || (resp.StatusCode == http.StatusNotFound && resp.Code != "NoSuchBucket") {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, objectName)
	}
	return err
}
