package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newOfflineStorage returns a MinioStorage whose presigning never touches the
// network: the region is fixed, so no bucket-location lookup is made.
func newOfflineStorage(t *testing.T) *MinioStorage {
	t.Helper()
	s, err := NewMinioStorage(MinioConfig{
		Endpoint:  "localhost:9000",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "tasti",
		Region:    "us-east-1",
	})
	require.NoError(t, err)
	return s
}

func TestMinioStorage_PresignSignsEachSupportedMethod(t *testing.T) {
	s := newOfflineStorage(t)

	for _, method := range []Method{MethodGet, MethodPut, MethodDelete} {
		t.Run(string(method), func(t *testing.T) {
			raw, err := s.Presign(context.Background(), "recipes/abc.jpg", method, time.Hour)
			require.NoError(t, err)

			u, err := url.Parse(raw)
			require.NoError(t, err)
			assert.Equal(t, "localhost:9000", u.Host)
			assert.Contains(t, u.Path, "recipes/abc.jpg")
			assert.Equal(t, "3600", u.Query().Get("X-Amz-Expires"))
			assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
		})
	}
}

func TestMinioStorage_PresignRejectsUnsupportedMethod(t *testing.T) {
	s := newOfflineStorage(t)

	_, err := s.Presign(context.Background(), "recipes/abc.jpg", Method("PATCH"), time.Hour)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedMethod)
	assert.NotErrorIs(t, err, ErrUnavailable)
}

func TestMinioStorage_PresignBackendErrorIsUnavailable(t *testing.T) {
	s := newOfflineStorage(t)

	// Signature V4 caps expiry at seven days; the client refuses anything longer.
	_, err := s.Presign(context.Background(), "recipes/abc.jpg", MethodGet, 8*24*time.Hour)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestMinioStorage_Bucket(t *testing.T) {
	assert.Equal(t, "tasti", newOfflineStorage(t).Bucket())
}

// s3Error writes an S3-style XML error body.
func s3Error(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>` + code + `</Code><Message>` + code + `</Message></Error>`))
}

func TestMinioStorage_Delete(t *testing.T) {
	var deleted []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		switch r.URL.Path {
		case "/tasti/recipes/abc.jpg":
			deleted = append(deleted, r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
		case "/tasti/recipes/missing.jpg":
			s3Error(w, http.StatusNotFound, "NoSuchKey")
		default:
			s3Error(w, http.StatusForbidden, "AccessDenied")
		}
	}))
	t.Cleanup(srv.Close)

	s, err := NewMinioStorage(MinioConfig{
		Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "tasti",
		Region:    "us-east-1",
	})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Delete(ctx, "recipes/abc.jpg"))
	assert.Equal(t, []string{"/tasti/recipes/abc.jpg"}, deleted)

	assert.NoError(t, s.Delete(ctx, "recipes/missing.jpg"), "a missing object counts as deleted")

	err = s.Delete(ctx, "recipes/locked.jpg")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}
