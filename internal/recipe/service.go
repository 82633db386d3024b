package recipe

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/tasti/api/internal/presign"
	"github.com/tasti/api/internal/storage"
)

// DefaultUploadFilename names the upload when a create request asks for an
// upload URL without giving a filename.
const DefaultUploadFilename = "image.jpg"

// Service contains business logic for recipes.
type Service struct {
	store   Store
	objects storage.Gateway
	broker  *presign.Broker
	images  *ImageManager
}

// NewService creates a new recipe Service.
func NewService(store Store, objects storage.Gateway, broker *presign.Broker) *Service {
	return &Service{
		store:   store,
		objects: objects,
		broker:  broker,
		images:  NewImageManager(store, objects),
	}
}

// Create inserts a new recipe.
func (s *Service) Create(ctx context.Context, p CreateParams) (*Recipe, error) {
	if p.Difficulty == "" {
		p.Difficulty = DifficultyEasy
	}
	if p.Steps == nil {
		p.Steps = []string{}
	}
	rec, err := s.store.Create(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("create recipe: %w", err)
	}
	return rec, nil
}

// CreateWithUpload inserts a new recipe and issues a PUT grant for its image.
// The recipe is created even if the grant cannot be issued; grant is nil then.
// The grant's key is not attached to the recipe until the client confirms the
// upload through SetImage.
func (s *Service) CreateWithUpload(ctx context.Context, p CreateParams, filename string) (*Recipe, *presign.Grant, error) {
	rec, err := s.Create(ctx, p)
	if err != nil {
		return nil, nil, err
	}

	if filename == "" {
		filename = DefaultUploadFilename
	}
	grant, err := s.broker.RequestAccess(ctx, presign.RecipePolicy, presign.Request{
		Method:   string(storage.MethodPut),
		Filename: filename,
	})
	if err != nil {
		log.Printf("recipe: upload url for new recipe %s: %v", rec.ID, err)
		return rec, nil, nil
	}
	return rec, grant, nil
}

// GetByID returns a recipe by its UUID.
func (s *Service) GetByID(ctx context.Context, id string) (*Recipe, error) {
	return s.store.GetByID(ctx, id)
}

// List returns a page of recipes, newest first.
func (s *Service) List(ctx context.Context, p ListParams) ([]Recipe, error) {
	if p.Limit <= 0 || p.Limit > 100 {
		p.Limit = 20
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return s.store.List(ctx, p)
}

// Update applies a partial update to the recipe's fields. The image key is
// not part of it; use SetImage or ClearImage.
func (s *Service) Update(ctx context.Context, id string, p UpdateParams) (*Recipe, error) {
	return s.store.Update(ctx, id, p)
}

// SetImage attaches the uploaded object at key to rec, replacing any previous image.
func (s *Service) SetImage(ctx context.Context, rec *Recipe, key string) (ImageChange, error) {
	return s.images.SetImage(ctx, rec, key)
}

// ClearImage detaches and deletes rec's image.
func (s *Service) ClearImage(ctx context.Context, rec *Recipe) (ImageChange, error) {
	return s.images.ClearImage(ctx, rec)
}

// Delete removes the recipe, then its image. A storage failure never undoes
// or fails the delete; it is reported in the returned ImageChange.
func (s *Service) Delete(ctx context.Context, rec *Recipe) (ImageChange, error) {
	change := ImageChange{Previous: currentKey(rec)}
	if err := s.store.Delete(ctx, rec.ID); err != nil {
		return change, fmt.Errorf("delete recipe: %w", err)
	}
	if change.Previous != "" {
		change.CleanupErr = s.images.Cleanup(ctx, change.Previous)
	}
	return change, nil
}

// ImageURL returns a short-lived download URL for rec's image, or "" when it
// has none or the URL cannot be signed.
func (s *Service) ImageURL(ctx context.Context, rec *Recipe) string {
	if !rec.HasImage() {
		return ""
	}
	url, err := s.objects.Presign(ctx, *rec.ImageKey, storage.MethodGet, s.broker.DefaultExpiry())
	if err != nil {
		log.Printf("recipe: image url for %s: %v", rec.ID, err)
		return ""
	}
	return url
}

// ExistsByTitle reports whether ownerID already has a recipe called title.
func (s *Service) ExistsByTitle(ctx context.Context, ownerID, title string) (bool, error) {
	return s.store.ExistsByTitle(ctx, ownerID, title)
}

// IsNotFound returns true when the error indicates a recipe was not found.
func (s *Service) IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
