package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasti/api/internal/presign"
	"github.com/tasti/api/internal/storage"
)

type fakeBucket struct {
	name    string
	exists  bool
	err     error
	objects []storage.ObjectInfo
}

func (b *fakeBucket) Bucket() string { return b.name }

func (b *fakeBucket) BucketExists(context.Context) (bool, error) { return b.exists, b.err }

func (b *fakeBucket) List(_ context.Context, prefix string) ([]storage.ObjectInfo, error) {
	var out []storage.ObjectInfo
	for _, o := range b.objects {
		if strings.HasPrefix(o.Key, prefix) {
			out = append(out, o)
		}
	}
	return out, b.err
}

// httpGateway presigns URLs that point at an httptest server acting as the bucket.
type httpGateway struct {
	base string
}

func (g httpGateway) Presign(_ context.Context, key string, _ storage.Method, _ time.Duration) (string, error) {
	return g.base + "/" + key, nil
}

func (g httpGateway) Put(context.Context, string, io.Reader, int64, string) error { return nil }

func (g httpGateway) Delete(context.Context, string) error { return nil }

// bucketServer stores PUT bodies by path and serves them on GET.
func bucketServer(t *testing.T) (*httptest.Server, map[string][]byte) {
	t.Helper()
	var mu sync.Mutex
	objects := map[string][]byte{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch r.Method {
		case http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			objects[r.URL.Path] = body
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			body, ok := objects[r.URL.Path]
			if !ok {
				http.Error(w, "NoSuchKey", http.StatusNotFound)
				return
			}
			_, _ = w.Write(body)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, objects
}

func TestRunCheck(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runCheck(context.Background(), &out, &fakeBucket{name: "tasti", exists: true}))
	assert.Contains(t, out.String(), `Bucket "tasti" exists`)

	err := runCheck(context.Background(), &out, &fakeBucket{name: "tasti"})
	assert.ErrorContains(t, err, "does not exist")

	err = runCheck(context.Background(), &out, &fakeBucket{name: "tasti", err: storage.ErrUnavailable})
	assert.ErrorIs(t, err, storage.ErrUnavailable)
}

func TestRunList(t *testing.T) {
	b := &fakeBucket{name: "tasti", objects: []storage.ObjectInfo{
		{Key: "recipes/a.png", Size: 10, LastModified: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)},
		{Key: "other/b.png", Size: 20},
	}}

	var out bytes.Buffer
	require.NoError(t, runList(context.Background(), &out, b, "recipes/"))
	assert.Contains(t, out.String(), "recipes/a.png - 10 bytes - 2026-03-01 09:30:00")
	assert.NotContains(t, out.String(), "other/b.png")

	out.Reset()
	require.NoError(t, runList(context.Background(), &out, b, "missing/"))
	assert.Contains(t, out.String(), "No objects found")
}

func TestTestUploadThenDownload(t *testing.T) {
	srv, objects := bucketServer(t)
	broker := presign.NewBroker(httpGateway{base: srv.URL}, 0)

	var out bytes.Buffer
	require.NoError(t, runTestUpload(context.Background(), &out, broker, srv.Client()))
	assert.Contains(t, out.String(), "Image upload successful!")
	assert.Equal(t, testPNG, objects["/recipes/test-image.png"])

	out.Reset()
	require.NoError(t, runTestDownload(context.Background(), &out, broker, srv.Client()))
	assert.Contains(t, out.String(), "Content appears to be valid PNG")
	assert.Contains(t, out.String(), fmt.Sprintf("Content length: %d bytes", len(testPNG)))
}

func TestTestDownload_Missing(t *testing.T) {
	srv, _ := bucketServer(t)
	broker := presign.NewBroker(httpGateway{base: srv.URL}, 0)

	var out bytes.Buffer
	err := runTestDownload(context.Background(), &out, broker, srv.Client())
	assert.ErrorContains(t, err, "NoSuchKey")
	assert.Contains(t, out.String(), "Download response status: 404")
}

func TestTestUpload_PresignFailure(t *testing.T) {
	broker := presign.NewBroker(failingGateway{}, 0)

	err := runTestUpload(context.Background(), io.Discard, broker, http.DefaultClient)
	assert.ErrorIs(t, err, storage.ErrUnavailable)
}

type failingGateway struct{ httpGateway }

func (failingGateway) Presign(context.Context, string, storage.Method, time.Duration) (string, error) {
	return "", errors.Join(storage.ErrUnavailable, errors.New("dial tcp: connection refused"))
}
