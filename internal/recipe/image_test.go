package recipe

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasti/api/internal/storage"
	"github.com/tasti/api/internal/storage/storagetest"
)

var errBackendDown = errors.Join(storage.ErrUnavailable, errors.New("dial tcp: connection refused"))

func TestImageManager_SetImageReplacesAndDeletesOld(t *testing.T) {
	store := newMemStore()
	gw := storagetest.New()
	m := NewImageManager(store, gw)
	rec := store.add("u1", "Soup", strptr("recipes/abc.jpg"))

	change, err := m.SetImage(context.Background(), rec, "recipes/def.jpg")
	require.NoError(t, err)

	assert.Equal(t, []string{"recipes/abc.jpg"}, gw.DeleteCalls())
	assert.Equal(t, "recipes/abc.jpg", change.Previous)
	assert.Equal(t, "recipes/def.jpg", change.Current)
	assert.False(t, change.CleanupFailed())

	require.NotNil(t, rec.ImageKey)
	assert.Equal(t, "recipes/def.jpg", *rec.ImageKey)
	stored, _ := store.get(rec.ID)
	assert.Equal(t, "recipes/def.jpg", *stored.ImageKey)
	assert.Equal(t, stored.UpdatedAt, rec.UpdatedAt)
}

func TestImageManager_SetImageKeepsNewKeyWhenCleanupFails(t *testing.T) {
	store := newMemStore()
	gw := storagetest.New()
	gw.DeleteErr = errBackendDown
	m := NewImageManager(store, gw)
	rec := store.add("u1", "Soup", strptr("recipes/abc.jpg"))

	change, err := m.SetImage(context.Background(), rec, "recipes/def.jpg")
	require.NoError(t, err, "cleanup failure must not fail the operation")

	assert.Equal(t, []string{"recipes/abc.jpg"}, gw.DeleteCalls())
	assert.True(t, change.CleanupFailed())
	assert.ErrorIs(t, change.CleanupErr, storage.ErrUnavailable)

	stored, _ := store.get(rec.ID)
	assert.Equal(t, "recipes/def.jpg", *stored.ImageKey)
}

func TestImageManager_SetImageFromNoImage(t *testing.T) {
	store := newMemStore()
	gw := storagetest.New()
	rec := store.add("u1", "Soup", nil)

	change, err := NewImageManager(store, gw).SetImage(context.Background(), rec, "recipes/new.png")
	require.NoError(t, err)

	assert.Empty(t, gw.DeleteCalls())
	assert.Empty(t, change.Previous)
	assert.Equal(t, "recipes/new.png", *rec.ImageKey)
}

func TestImageManager_SetImageSameKeyDoesNotDelete(t *testing.T) {
	store := newMemStore()
	gw := storagetest.New()
	rec := store.add("u1", "Soup", strptr("recipes/abc.jpg"))

	_, err := NewImageManager(store, gw).SetImage(context.Background(), rec, "recipes/abc.jpg")
	require.NoError(t, err)

	assert.Empty(t, gw.DeleteCalls())
	assert.Equal(t, "recipes/abc.jpg", *rec.ImageKey)
}

func TestImageManager_SetImageScopesKeyToNamespace(t *testing.T) {
	store := newMemStore()
	gw := storagetest.New()
	rec := store.add("u1", "Soup", strptr("recipes/abc.jpg"))

	change, err := NewImageManager(store, gw).SetImage(context.Background(), rec, "private/payroll.pdf")
	require.NoError(t, err)

	assert.Equal(t, "recipes/private/payroll.pdf", change.Current)
	stored, _ := store.get(rec.ID)
	assert.Equal(t, strptr("recipes/private/payroll.pdf"), stored.ImageKey)
	assert.Equal(t, []string{"recipes/abc.jpg"}, gw.DeleteCalls())
}

func TestImageManager_SetImageBlankKeyClears(t *testing.T) {
	store := newMemStore()
	gw := storagetest.New()
	rec := store.add("u1", "Soup", strptr("recipes/abc.jpg"))

	_, err := NewImageManager(store, gw).SetImage(context.Background(), rec, "   ")
	require.NoError(t, err)

	assert.Nil(t, rec.ImageKey)
	assert.Equal(t, []string{"recipes/abc.jpg"}, gw.DeleteCalls())
}

func TestImageManager_PersistFailureLeavesStorageUntouched(t *testing.T) {
	store := newMemStore()
	gw := storagetest.New()
	rec := store.add("u1", "Soup", strptr("recipes/abc.jpg"))
	store.setImageErr = errors.New("db down")
	m := NewImageManager(store, gw)

	_, err := m.SetImage(context.Background(), rec, "recipes/def.jpg")
	require.Error(t, err)
	_, err = m.ClearImage(context.Background(), rec)
	require.Error(t, err)

	assert.Empty(t, gw.DeleteCalls(), "the referenced object must survive a failed write")
	assert.Equal(t, "recipes/abc.jpg", *rec.ImageKey)
}

func TestImageManager_ClearImageDeletesOnceEvenWhenDeleteFails(t *testing.T) {
	store := newMemStore()
	gw := storagetest.New()
	gw.DeleteErr = errBackendDown
	rec := store.add("u1", "Soup", strptr("recipes/abc.jpg"))

	change, err := NewImageManager(store, gw).ClearImage(context.Background(), rec)
	require.NoError(t, err)

	assert.Equal(t, []string{"recipes/abc.jpg"}, gw.DeleteCalls())
	assert.True(t, change.CleanupFailed())
	assert.Nil(t, rec.ImageKey)
	stored, _ := store.get(rec.ID)
	assert.Nil(t, stored.ImageKey)
}

func TestImageManager_ClearImageWithoutImageStillWrites(t *testing.T) {
	store := newMemStore()
	gw := storagetest.New()
	rec := store.add("u1", "Soup", nil)

	change, err := NewImageManager(store, gw).ClearImage(context.Background(), rec)
	require.NoError(t, err)

	assert.Empty(t, gw.DeleteCalls())
	assert.False(t, change.CleanupFailed())
	assert.Equal(t, 1, store.imageWrites)
}

func TestImageManager_SequenceKeepsLastSetKey(t *testing.T) {
	store := newMemStore()
	gw := storagetest.New()
	gw.DeleteErr = errBackendDown
	m := NewImageManager(store, gw)
	rec := store.add("u1", "Soup", nil)
	ctx := context.Background()

	steps := []struct {
		set  string
		want *string
	}{
		{"recipes/a.jpg", strptr("recipes/a.jpg")},
		{"recipes/b.jpg", strptr("recipes/b.jpg")},
		{"", nil},
		{"recipes/c.jpg", strptr("recipes/c.jpg")},
		{"recipes/d.jpg", strptr("recipes/d.jpg")},
	}
	for _, step := range steps {
		_, err := m.SetImage(ctx, rec, step.set)
		require.NoError(t, err)
		stored, _ := store.get(rec.ID)
		assert.Equal(t, step.want, stored.ImageKey)
	}
	assert.Equal(t, []string{"recipes/a.jpg", "recipes/b.jpg", "recipes/c.jpg"}, gw.DeleteCalls())
}

func TestImageManager_CleanupIgnoresCallerCancellation(t *testing.T) {
	store := newMemStore()
	gw := storagetest.New()
	rec := store.add("u1", "Soup", strptr("recipes/abc.jpg"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewImageManager(store, gw).Cleanup(ctx, *rec.ImageKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"recipes/abc.jpg"}, gw.DeleteCalls())
}
