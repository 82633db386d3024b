// Package recipe manages recipes, their persistence, and the lifecycle of
// their stored images.
package recipe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Difficulty levels a recipe can have.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Recipe is a user-owned recipe. ImageKey is only changed through ImageManager.
type Recipe struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Duration    int       `json:"duration"` // seconds
	Difficulty  string    `json:"difficulty"`
	Steps       []string  `json:"steps"`
	OwnerID     string    `json:"owner_id"`
	Owner       string    `json:"owner"`
	ImageKey    *string   `json:"image_bucket_key"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasImage reports whether the recipe references a stored image.
func (r *Recipe) HasImage() bool {
	return r.ImageKey != nil && *r.ImageKey != ""
}

// CreateParams holds the fields of a new recipe.
type CreateParams struct {
	OwnerID     string
	Title       string
	Description string
	Duration    int
	Difficulty  string
	Steps       []string
}

// UpdateParams holds a partial update; nil fields are left unchanged.
type UpdateParams struct {
	Title       *string
	Description *string
	Duration    *int
	Difficulty  *string
	Steps       *[]string
}

// ListParams filters and pages List.
type ListParams struct {
	OwnerID string
	Limit   int
	Offset  int
}

// ErrNotFound is returned when a recipe does not exist.
var ErrNotFound = errors.New("recipe not found")

// Store is the persistence the recipe service depends on.
type Store interface {
	Create(ctx context.Context, p CreateParams) (*Recipe, error)
	GetByID(ctx context.Context, id string) (*Recipe, error)
	List(ctx context.Context, p ListParams) ([]Recipe, error)
	Update(ctx context.Context, id string, p UpdateParams) (*Recipe, error)
	SetImageKey(ctx context.Context, id string, key *string) (time.Time, error)
	Delete(ctx context.Context, id string) error
	ExistsByTitle(ctx context.Context, ownerID, title string) (bool, error)
}

const recipeColumns = `r.id, r.title, r.description, r.duration_seconds, r.difficulty, r.steps,
	r.owner_id, u.username, r.image_bucket_key, r.created_at, r.updated_at`

// Repository handles all recipe database operations.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func scanRecipe(row pgx.Row) (*Recipe, error) {
	rec := &Recipe{}
	err := row.Scan(&rec.ID, &rec.Title, &rec.Description, &rec.Duration, &rec.Difficulty, &rec.Steps,
		&rec.OwnerID, &rec.Owner, &rec.ImageKey, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if rec.Steps == nil {
		rec.Steps = []string{}
	}
	return rec, nil
}

// Create inserts a new recipe and returns the created record.
func (r *Repository) Create(ctx context.Context, p CreateParams) (*Recipe, error) {
	rec, err := scanRecipe(r.db.QueryRow(ctx,
		`WITH r AS (
			INSERT INTO recipes (owner_id, title, description, duration_seconds, difficulty, steps)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING *
		 )
		 SELECT `+recipeColumns+` FROM r JOIN users u ON u.id = r.owner_id`,
		p.OwnerID, p.Title, p.Description, p.Duration, p.Difficulty, p.Steps,
	))
	if err != nil {
		return nil, fmt.Errorf("create recipe: %w", err)
	}
	return rec, nil
}

// GetByID fetches a recipe by its UUID.
func (r *Repository) GetByID(ctx context.Context, id string) (*Recipe, error) {
	rec, err := scanRecipe(r.db.QueryRow(ctx,
		`SELECT `+recipeColumns+`
		 FROM recipes r JOIN users u ON u.id = r.owner_id
		 WHERE r.id = $1`,
		id,
	))
	if isNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get recipe by id: %w", err)
	}
	return rec, nil
}

// List returns recipes newest first, optionally restricted to one owner.
func (r *Repository) List(ctx context.Context, p ListParams) ([]Recipe, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+recipeColumns+`
		 FROM recipes r JOIN users u ON u.id = r.owner_id
		 WHERE ($1 = '' OR r.owner_id::text = $1)
		 ORDER BY r.created_at DESC
		 LIMIT $2 OFFSET $3`,
		p.OwnerID, p.Limit, p.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	defer rows.Close()

	recipes := []Recipe{}
	for rows.Next() {
		rec, err := scanRecipe(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recipe: %w", err)
		}
		recipes = append(recipes, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	return recipes, nil
}

// Update applies the non-nil fields of p and returns the updated record.
func (r *Repository) Update(ctx context.Context, id string, p UpdateParams) (*Recipe, error) {
	rec, err := scanRecipe(r.db.QueryRow(ctx,
		`WITH r AS (
			UPDATE recipes SET
				title            = COALESCE($2, title),
				description      = COALESCE($3, description),
				duration_seconds = COALESCE($4, duration_seconds),
				difficulty       = COALESCE($5, difficulty),
				steps            = COALESCE($6, steps),
				updated_at       = NOW()
			WHERE id = $1
			RETURNING *
		 )
		 SELECT `+recipeColumns+` FROM r JOIN users u ON u.id = r.owner_id`,
		id, p.Title, p.Description, p.Duration, p.Difficulty, p.Steps,
	))
	if isNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update recipe: %w", err)
	}
	return rec, nil
}

// SetImageKey stores key (nil clears it) and touches updated_at.
func (r *Repository) SetImageKey(ctx context.Context, id string, key *string) (time.Time, error) {
	var updatedAt time.Time
	err := r.db.QueryRow(ctx,
		`UPDATE recipes SET image_bucket_key = $2, updated_at = NOW()
		 WHERE id = $1
		 RETURNING updated_at`,
		id, key,
	).Scan(&updatedAt)
	if isNotFound(err) {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("set recipe image key: %w", err)
	}
	return updatedAt, nil
}

// Delete removes the recipe row.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM recipes WHERE id = $1`, id)
	if isNotFound(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete recipe: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ExistsByTitle reports whether ownerID already has a recipe called title.
func (r *Repository) ExistsByTitle(ctx context.Context, ownerID, title string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM recipes WHERE owner_id = $1 AND title = $2)`,
		ownerID, title,
	).Scan(&exists)
	return exists, err
}

// isNotFound treats a missing row and a malformed UUID (code 22P02) alike.
func isNotFound(err error) bool {
	if errors.Is(err, pgx.ErrNoRows) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}
