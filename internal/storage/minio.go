package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig holds the connection settings for an S3-compatible bucket.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// ObjectInfo describes a stored object, as reported by List.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// MinioStorage implements Gateway using a MinIO (or any S3-compatible) backend.
// One instance is built at startup and shared by every component.
type MinioStorage struct {
	client *minio.Client
	bucket string
}

// NewMinioStorage creates the MinIO client. It does not contact the backend;
// call EnsureBucket at startup to verify connectivity.
// With Region set, presigning is computed locally without a bucket-location lookup.
func NewMinioStorage(cfg MinioConfig) (*MinioStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinioStorage{client: client, bucket: cfg.Bucket}, nil
}

// Bucket returns the configured bucket name.
func (s *MinioStorage) Bucket() string {
	return s.bucket
}

// BucketExists reports whether the configured bucket exists.
func (s *MinioStorage) BucketExists(ctx context.Context) (bool, error) {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return false, fmt.Errorf("check bucket %q: %w: %w", s.bucket, ErrUnavailable, err)
	}
	return exists, nil
}

// EnsureBucket creates the bucket if it does not exist yet. The bucket stays
// private; objects are only reachable through presigned URLs.
func (s *MinioStorage) EnsureBucket(ctx context.Context) error {
	exists, err := s.BucketExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %q: %w: %w", s.bucket, ErrUnavailable, err)
	}
	log.Printf("storage: created bucket %q", s.bucket)
	return nil
}

// Presign returns a presigned URL for method on key, valid for expiry.
func (s *MinioStorage) Presign(ctx context.Context, key string, method Method, expiry time.Duration) (string, error) {
	var (
		u   *url.URL
		err error
	)
	switch method {
	case MethodGet:
		u, err = s.client.PresignedGetObject(ctx, s.bucket, key, expiry, url.Values{})
	case MethodPut:
		u, err = s.client.PresignedPutObject(ctx, s.bucket, key, expiry)
	case MethodDelete:
		u, err = s.client.Presign(ctx, http.MethodDelete, s.bucket, key, expiry, url.Values{})
	default:
		return "", fmt.Errorf("presign %q: %w: %s", key, ErrUnsupportedMethod, method)
	}
	if err != nil {
		return "", fmt.Errorf("presign %s %q: %w: %w", method, key, ErrUnavailable, err)
	}
	return u.String(), nil
}

// Put streams reader to the bucket under key. size must be the exact byte
// count (pass -1 only if the size is genuinely unknown; MinIO will buffer it).
func (s *MinioStorage) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put object %q: %w: %w", key, ErrUnavailable, err)
	}
	return nil
}

// Delete removes the object at key. A missing key is treated as deleted.
func (s *MinioStorage) Delete(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err == nil || isNotFound(err) {
		return nil
	}
	return fmt.Errorf("delete object %q: %w: %w", key, ErrUnavailable, err)
}

// List returns every object whose key starts with prefix.
func (s *MinioStorage) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list objects: %w: %w", ErrUnavailable, obj.Err)
		}
		objects = append(objects, ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}
	return objects, nil
}

// isNotFound checks whether err is an S3 "no such key" response.
func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}
