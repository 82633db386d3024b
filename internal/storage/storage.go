// Package storage defines the object storage gateway used for recipe images.
// The MinIO implementation works with any S3-compatible provider (MinIO, AWS S3, R2).
// Clients never send image bytes through the API: they receive presigned URLs
// and transfer directly to the bucket.
package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

// Method is an HTTP verb a presigned URL can be issued for.
type Method string

const (
	MethodGet    Method = "GET"
	MethodPut    Method = "PUT"
	MethodDelete Method = "DELETE"
)

// ParseMethod upper-cases s and returns it as a Method. It does not check
// whether the method is supported; that is up to the caller's policy.
func ParseMethod(s string) Method {
	return Method(strings.ToUpper(strings.TrimSpace(s)))
}

// ErrUnavailable is returned when the storage backend cannot be reached or
// rejects the request (transport, credentials, bucket errors).
var ErrUnavailable = errors.New("object storage unavailable")

// ErrUnsupportedMethod is returned when a presigned URL is requested for a
// method the gateway cannot sign.
var ErrUnsupportedMethod = errors.New("unsupported presign method")

// Gateway is the set of storage operations the API relies on.
// Implementations never retry; retry policy belongs to the caller.
type Gateway interface {
	// Presign returns a time-limited URL granting method on key.
	Presign(ctx context.Context, key string, method Method, expiry time.Duration) (string, error)
	// Put writes data under key. Used by server-side tooling only.
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
