// Package storagetest provides an in-memory storage.Gateway for tests.
package storagetest

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/tasti/api/internal/storage"
)

// PresignCall records one Presign invocation.
type PresignCall struct {
	Key    string
	Method storage.Method
	Expiry time.Duration
}

// Gateway is a storage.Gateway that keeps objects in memory and records calls.
// Set the *Err fields to make the matching operation fail.
type Gateway struct {
	mu sync.Mutex

	Objects  map[string][]byte
	Presigns []PresignCall
	Deletes  []string

	PresignErr error
	PutErr     error
	DeleteErr  error
}

// New returns an empty Gateway.
func New() *Gateway {
	return &Gateway{Objects: map[string][]byte{}}
}

func (g *Gateway) Presign(_ context.Context, key string, method storage.Method, expiry time.Duration) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Presigns = append(g.Presigns, PresignCall{Key: key, Method: method, Expiry: expiry})
	if g.PresignErr != nil {
		return "", g.PresignErr
	}
	switch method {
	case storage.MethodGet, storage.MethodPut, storage.MethodDelete:
	default:
		return "", fmt.Errorf("presign %q: %w: %s", key, storage.ErrUnsupportedMethod, method)
	}
	q := url.Values{}
	q.Set("method", string(method))
	q.Set("expires", fmt.Sprint(int(expiry.Seconds())))
	return "https://storage.test/bucket/" + key + "?" + q.Encode(), nil
}

func (g *Gateway) Put(_ context.Context, key string, reader io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.PutErr != nil {
		return g.PutErr
	}
	g.Objects[key] = data
	return nil
}

func (g *Gateway) Delete(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Deletes = append(g.Deletes, key)
	if g.DeleteErr != nil {
		return g.DeleteErr
	}
	delete(g.Objects, key)
	return nil
}

// Has reports whether key is stored.
func (g *Gateway) Has(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.Objects[key]
	return ok
}

// DeleteCalls returns a copy of the keys passed to Delete.
func (g *Gateway) DeleteCalls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.Deletes...)
}

// PresignCalls returns a copy of the recorded Presign calls.
func (g *Gateway) PresignCalls() []PresignCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]PresignCall(nil), g.Presigns...)
}
