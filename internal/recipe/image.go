package recipe

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/tasti/api/internal/presign"
	"github.com/tasti/api/internal/storage"
)

// ImageStore persists a recipe's image key.
type ImageStore interface {
	SetImageKey(ctx context.Context, id string, key *string) (time.Time, error)
}

// ImageChange is the outcome of an image mutation that reached the database.
// A non-nil CleanupErr means the recipe was updated but the previous object
// could not be removed from storage and is now orphaned.
type ImageChange struct {
	Previous   string
	Current    string
	CleanupErr error
}

// CleanupFailed reports whether the old object was left behind in storage.
func (c ImageChange) CleanupFailed() bool {
	return c.CleanupErr != nil
}

// ImageManager keeps a recipe's image key and the stored object in step.
// The database row is authoritative: storage deletes are best-effort and run
// only after the row is written, so a failed delete leaves an orphaned object
// rather than a recipe pointing at nothing.
//
// Calls on the same recipe are not serialized. Two concurrent SetImage calls
// each remove only the key they read, so the losing upload is orphaned.
type ImageManager struct {
	store   ImageStore
	objects storage.Gateway
}

// NewImageManager creates an ImageManager.
func NewImageManager(store ImageStore, objects storage.Gateway) *ImageManager {
	return &ImageManager{store: store, objects: objects}
}

// SetImage points rec at newKey and removes the previous object if it differs.
// newKey is scoped under the recipes namespace. A blank newKey clears the image.
func (m *ImageManager) SetImage(ctx context.Context, rec *Recipe, newKey string) (ImageChange, error) {
	newKey = strings.TrimSpace(newKey)
	if newKey == "" {
		return m.ClearImage(ctx, rec)
	}
	newKey = presign.NormalizeKey(newKey)

	change := ImageChange{Previous: currentKey(rec), Current: newKey}
	if err := m.persist(ctx, rec, &newKey); err != nil {
		return change, err
	}

	if change.Previous != "" && change.Previous != newKey {
		change.CleanupErr = m.Cleanup(ctx, change.Previous)
	}
	return change, nil
}

// ClearImage removes rec's image reference and its object. The row is written
// even when there is no image to clear.
func (m *ImageManager) ClearImage(ctx context.Context, rec *Recipe) (ImageChange, error) {
	change := ImageChange{Previous: currentKey(rec)}
	if err := m.persist(ctx, rec, nil); err != nil {
		return change, err
	}

	if change.Previous != "" {
		change.CleanupErr = m.Cleanup(ctx, change.Previous)
	}
	return change, nil
}

// Cleanup deletes key from storage. Failures are logged and returned for the
// caller to inspect, never to propagate.
func (m *ImageManager) Cleanup(ctx context.Context, key string) error {
	// Storage cleanup follows a committed write; a client disconnect must not abort it.
	if err := m.objects.Delete(context.WithoutCancel(ctx), key); err != nil {
		log.Printf("recipe: cleanup of image %q failed: %v", key, err)
		return fmt.Errorf("cleanup image %q: %w", key, err)
	}
	return nil
}

func (m *ImageManager) persist(ctx context.Context, rec *Recipe, key *string) error {
	updatedAt, err := m.store.SetImageKey(ctx, rec.ID, key)
	if err != nil {
		return fmt.Errorf("persist image key: %w", err)
	}
	rec.ImageKey = key
	rec.UpdatedAt = updatedAt
	return nil
}

func currentKey(rec *Recipe) string {
	if rec.ImageKey == nil {
		return ""
	}
	return *rec.ImageKey
}
