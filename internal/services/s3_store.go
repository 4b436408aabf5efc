package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithy "github.com/aws/smithy-go"
)

const defaultS3Region = "us-east-1"

// S3API is the part of *s3.Client used by S3Store
type S3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Store implements ObjectStore on the AWS SDK
type S3Store struct {
	client S3API
}

// NewS3Store builds an AWS S3 client. A non-empty endpoint switches to path
// style addressing for S3-compatible services.
func NewS3Store(ctx context.Context, creds Credentials) (*S3Store, error) {
	region := creds.Region
	if region == "" {
		region = defaultS3Region
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if creds.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			awscreds.NewStaticCredentialsProvider(creds.AccessKey, creds.SecretKey, creds.SessionToken),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load config: %w", err)
	}

	endpoint := strings.TrimSpace(creds.Endpoint)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint == "" {
			return
		}
		if !strings.Contains(endpoint, "://") {
			scheme := "https"
			if !creds.UseSSL() {
				scheme = "http"
			}
			endpoint = scheme + "://" + endpoint
		}
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})
	return NewS3StoreWithClient(client), nil
}

// NewS3StoreWithClient wraps an existing client
func NewS3StoreWithClient(client S3API) *S3Store {
	return &S3Store{client: client}
}

func (s *S3Store) StatObject(ctx context.Context, bucketName, objectName string) (ObjectInfo, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucketName),
		Key:    aws.String(objectName),
	})
	if err != nil {
		return ObjectInfo{}, s3Error(err, objectName)
	}
	return ObjectInfo{
		Key:          objectName,
		Size:         aws.ToInt64(out.ContentLength),
		LastModified: aws.ToTime(out.LastModified),
		ETag:         strings.Trim(aws.ToString(out.ETag), `"`),
	}, nil
}

func (s *S3Store) GetObject(ctx context.Context, bucketName, objectName string) (io.ReadCloser, ObjectInfo, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucketName),
		Key:    aws.String(objectName),
	})
	if err != nil {
		return nil, ObjectInfo{}, s3Error(err, objectName)
	}
	info := ObjectInfo{
		Key:          objectName,
		Size:         aws.ToInt64(out.ContentLength),
		LastModified: aws.ToTime(out.LastModified),
		ETag:         strings.Trim(aws.ToString(out.ETag), `"`),
	}
	return &s3Object{
		ctx:    ctx,
		client: s.client,
		bucket: bucketName,
		key:    objectName,
		size:   info.Size,
		body:   out.Body,
	}, info, nil
}

// PutObject buffers any body that cannot seek. Without TLS the SDK computes
// the payload checksum up front and rejects unseekable streams even when the
// length is known.
func (s *S3Store) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64) (ObjectInfo, error) {
	if _, ok := reader.(io.ReadSeeker); !ok {
		buf, err := io.ReadAll(reader)
		if err != nil {
			return ObjectInfo{}, err
		}
		if objectSize >= 0 && int64(len(buf)) != objectSize {
			return ObjectInfo{}, fmt.Errorf("s3: short upload for %s: got %d bytes, want %d", objectName, len(buf), objectSize)
		}
		reader = bytes.NewReader(buf)
		objectSize = int64(len(buf))
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(bucketName),
		Key:    aws.String(objectName),
		Body:   reader,
	}
	if objectSize >= 0 {
		input.ContentLength = aws.Int64(objectSize)
	}
	out, err := s.client.PutObject(ctx, input)
	if err != nil {
		return ObjectInfo{}, err
	}
	info := ObjectInfo{Key: objectName, Size: objectSize, ETag: strings.Trim(aws.ToString(out.ETag), `"`)}
	if out.Size != nil {
		info.Size = aws.ToInt64(out.Size)
	}
	return info, nil
}

func (s *S3Store) CopyObject(ctx context.Context, srcBucket, srcObject, dstBucket, dstObject string) error {
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(dstBucket),
		Key:        aws.String(dstObject),
		CopySource: aws.String(copySource(srcBucket, srcObject)),
	})
	return s3Error(err, srcObject)
}

func (s *S3Store) RemoveObject(ctx context.Context, bucketName, objectName string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucketName),
		Key:    aws.String(objectName),
	})
	return err
}

func (s *S3Store) ListObjectsPage(ctx context.Context, bucketName string, opts ListObjectsOptions) (ListObjectsResult, error) {
	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(bucketName),
		Prefix:  aws.String(opts.Prefix),
		MaxKeys: aws.Int32(int32(pageSize(opts.MaxKeys))),
	}
	if opts.Delimiter != "" {
		input.Delimiter = aws.String(opts.Delimiter)
	}
	if opts.ContinuationToken != "" {
		input.ContinuationToken = aws.String(opts.ContinuationToken)
	}

	out, err := s.client.ListObjectsV2(ctx, input)
	if err != nil {
		return ListObjectsResult{}, err
	}

	result := ListObjectsResult{
		IsTruncated:           aws.ToBool(out.IsTruncated),
		NextContinuationToken: aws.ToString(out.NextContinuationToken),
	}
	for _, obj := range out.Contents {
		result.Objects = append(result.Objects, ObjectInfo{
			Key:          aws.ToString(obj.Key),
			Size:         aws.ToInt64(obj.Size),
			LastModified: aws.ToTime(obj.LastModified),
			ETag:         strings.Trim(aws.ToString(obj.ETag), `"`),
		})
	}
	for _, cp := range out.CommonPrefixes {
		result.CommonPrefixes = append(result.CommonPrefixes, aws.ToString(cp.Prefix))
	}
	return result, nil
}

// copySource URL-encodes each key segment of "bucket/key"
func copySource(bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return bucket + "/" + strings.Join(segments, "/")
}

func isS3NotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

func s3Error(err error, objectName string) error {
	if err == nil {
		return nil
	}
	if isS3NotFound(err) {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, objectName)
	}
	return err
}

// s3Object is a GetObject body that seeks by reopening the object with a
// Range header. Nothing is buffered.
type s3Object struct {
	ctx    context.Context
	client S3API
	bucket string
	key    string
	size   int64
	pos    int64
	body   io.ReadCloser
}

func (o *s3Object) Read(p []byte) (int, error) {
	if o.body == nil {
		if o.pos >= o.size {
			return 0, io.EOF
		}
		out, err := o.client.GetObject(o.ctx, &s3.GetObjectInput{
			Bucket: aws.String(o.bucket),
			Key:    aws.String(o.key),
			Range:  aws.String(fmt.Sprintf("bytes=%d-", o.pos)),
		})
		if err != nil {
			return 0, s3Error(err, o.key)
		}
		o.body = out.Body
	}
	n, err := o.body.Read(p)
	o.pos += int64(n)
	return n, err
}

func (o *s3Object) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = o.pos + offset
	case io.SeekEnd:
		target = o.size + offset
	default:
		return o.pos, errors.New("s3: invalid whence")
	}
	if target < 0 {
		return o.pos, errors.New("s3: negative position")
	}
	if target == o.pos {
		return o.pos, nil
	}
	if o.body != nil {
		_ = o.body.Close()
		o.body = nil
	}
	o.pos = target
	return o.pos, nil
}

func (o *s3Object) Close() error {
	if o.body == nil {
		return nil
	}
	err := o.body.Close()
	o.body = nil
	return err
}
