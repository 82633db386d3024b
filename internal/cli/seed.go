package cli

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tasti/api/internal/auth"
	"github.com/tasti/api/internal/recipe"
	"github.com/tasti/api/internal/storage"
	"github.com/tasti/api/internal/user"
)

// SeedUsername owns every seeded recipe.
const SeedUsername = "tasti"

const seedPasswordLength = 12

type seedRecipe struct {
	Title       string
	Description string
	ImageName   string
}

var seedRecipes = []seedRecipe{
	{"Classic Spaghetti Carbonara", "A traditional Italian pasta dish made with eggs, cheese, pancetta, and black pepper. Simple yet delicious.", "spaghetti_carbonara.jpg"},
	{"Chicken Tikka Masala", "Creamy and spicy curry with tender chicken pieces in a rich tomato-based sauce. Served with rice or naan.", "chicken_tikka.jpg"},
	{"Vegetable Stir Fry", "Colorful mix of fresh vegetables stir-fried with soy sauce and garlic. Quick and healthy meal.", "vegetable_stir_fry.jpg"},
	{"Chocolate Chip Cookies", "Soft and chewy cookies loaded with chocolate chips. Perfect for dessert or snacking.", "chocolate_chip_cookies.jpg"},
	{"Greek Salad", "Fresh tomatoes, cucumbers, olives, feta cheese, and olive oil dressing. Light and refreshing.", "greek_salad.jpg"},
	{"Beef Tacos", "Seasoned ground beef in corn tortillas with lettuce, cheese, and salsa. Mexican street food favorite.", "beef_tacos.jpg"},
	{"Mushroom Risotto", "Creamy Arborio rice cooked with mushrooms, white wine, and Parmesan cheese. Italian comfort food.", "mushroom_risotto.jpg"},
	{"Banana Bread", "Moist bread made with ripe bananas, walnuts, and cinnamon. Great for breakfast or tea time.", "banana_bread.jpg"},
	{"Shakshuka", "North African dish of eggs poached in tomato sauce with peppers, onions, and spices. Served with bread.", "shakshuka.jpg"},
	{"Caesar Salad", "Crisp romaine lettuce with Caesar dressing, croutons, and Parmesan cheese. Classic salad.", "caesar_salad.jpg"},
	{"Pancakes", "Fluffy pancakes served with maple syrup and butter. Perfect weekend breakfast.", "pancakes.jpg"},
	{"Lentil Soup", "Hearty soup made with lentils, vegetables, and herbs. Comforting and nutritious.", "lentil_soup.jpg"},
	{"Apple Pie", "Traditional pie with cinnamon-spiced apples in a flaky crust. American classic.", "apple_pie.jpg"},
	{"Pad Thai", "Thai stir-fried noodles with shrimp, tofu, peanuts, and tamarind sauce. Street food delight.", "pad_thai.jpg"},
	{"Quiche Lorraine", "Savory pie with bacon, cheese, and eggs in a pastry crust. French brunch favorite.", "quiche_lorraine.jpg"},
	{"Tomato Basil Soup", "Creamy soup made with fresh tomatoes, basil, and cream. Served with grilled cheese.", "tomato_basil_soup.jpg"},
	{"Fried Rice", "Chinese-style rice dish with vegetables, eggs, and soy sauce. Quick and versatile.", "fried_rice.jpg"},
	{"Brownies", "Rich and fudgy chocolate brownies. Indulgent dessert for chocolate lovers.", "brownies.jpg"},
	{"Caprese Salad", "Simple Italian salad with tomatoes, mozzarella, basil, and balsamic glaze.", "caprese_salad.jpg"},
	{"Chicken Curry", "Spicy curry with tender chicken, coconut milk, and aromatic spices. Served with rice.", "chicken_curry.jpg"},
}

type seedUsers interface {
	GetByUsername(ctx context.Context, username string) (*user.User, error)
	Create(ctx context.Context, p user.CreateParams) (*user.User, error)
	Delete(ctx context.Context, id string) error
}

type seedRecipeStore interface {
	Create(ctx context.Context, p recipe.CreateParams) (*recipe.Recipe, error)
	List(ctx context.Context, p recipe.ListParams) ([]recipe.Recipe, error)
	ExistsByTitle(ctx context.Context, ownerID, title string) (bool, error)
	SetImage(ctx context.Context, rec *recipe.Recipe, key string) (recipe.ImageChange, error)
	Delete(ctx context.Context, rec *recipe.Recipe) (recipe.ImageChange, error)
}

// Seeder creates the demo user and recipes. Running it twice is a no-op.
type Seeder struct {
	users   seedUsers
	recipes seedRecipeStore
	objects storage.Gateway
	out     io.Writer
}

// NewSeeder creates a Seeder writing progress to out.
func NewSeeder(users *user.Service, recipes *recipe.Service, objects storage.Gateway, out io.Writer) *Seeder {
	return &Seeder{users: users, recipes: recipes, objects: objects, out: out}
}

// NewSeedCommand creates the seed command
func NewSeedCommand() *cobra.Command {
	var (
		reset     bool
		imagesDir string
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the database with the demo user and recipes",
		Long: `Creates the "tasti" user (printing its generated password) and a set of
sample recipes. Images named after each recipe are uploaded from --images
when present; recipes are created without images otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := loadEnv()
			if err != nil {
				return err
			}
			pool, err := e.openDB(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			users := user.NewService(user.NewRepository(pool))
			recipes := recipe.NewService(recipe.NewRepository(pool), e.store, e.broker)
			s := NewSeeder(users, recipes, e.store, cmd.OutOrStdout())

			if reset {
				if err := s.Reset(ctx); err != nil {
					return err
				}
			}
			_, err = s.Seed(ctx, imagesDir)
			return err
		},
	}

	cmd.Flags().BoolVar(&reset, "reset", false, "delete the demo user and its recipes before seeding")
	cmd.Flags().StringVar(&imagesDir, "images", "sample_images", "directory holding the sample recipe images")

	return cmd
}

// Reset deletes the demo user's recipes (and their images), then the user.
func (s *Seeder) Reset(ctx context.Context) error {
	fmt.Fprintln(s.out, "Resetting existing data...")
	u, err := s.users.GetByUsername(ctx, SeedUsername)
	if errors.Is(err, user.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reset: %w", err)
	}

	for {
		page, err := s.recipes.List(ctx, recipe.ListParams{OwnerID: u.ID, Limit: 100})
		if err != nil {
			return fmt.Errorf("reset: list recipes: %w", err)
		}
		if len(page) == 0 {
			break
		}
		for i := range page {
			change, err := s.recipes.Delete(ctx, &page[i])
			if err != nil {
				return fmt.Errorf("reset: delete %q: %w", page[i].Title, err)
			}
			if change.CleanupFailed() {
				fmt.Fprintf(s.out, "Warning: image %s of %q was not removed: %v\n", change.Previous, page[i].Title, change.CleanupErr)
			}
		}
	}

	if err := s.users.Delete(ctx, u.ID); err != nil && !errors.Is(err, user.ErrNotFound) {
		return fmt.Errorf("reset: delete user: %w", err)
	}
	return nil
}

// Seed creates the demo user and every missing sample recipe. It returns how
// many recipes were created.
func (s *Seeder) Seed(ctx context.Context, imagesDir string) (int, error) {
	u, err := s.ensureUser(ctx)
	if err != nil {
		return 0, err
	}

	images := availableImages(imagesDir)
	if len(images) == 0 {
		fmt.Fprintf(s.out, "Warning: no images found in %q. Recipes will be created without images.\n", imagesDir)
	}

	created := 0
	for _, data := range seedRecipes {
		exists, err := s.recipes.ExistsByTitle(ctx, u.ID, data.Title)
		if err != nil {
			return created, fmt.Errorf("seed %q: %w", data.Title, err)
		}
		if exists {
			continue
		}

		rec, err := s.recipes.Create(ctx, recipe.CreateParams{
			OwnerID:     u.ID,
			Title:       data.Title,
			Description: data.Description,
		})
		if err != nil {
			return created, fmt.Errorf("seed %q: %w", data.Title, err)
		}
		created++
		fmt.Fprintf(s.out, "Created recipe: %s\n", rec.Title)

		if images[data.ImageName] {
			if err := s.uploadImage(ctx, rec, filepath.Join(imagesDir, data.ImageName)); err != nil {
				fmt.Fprintf(s.out, "Warning: failed to upload image for %q: %v\n", rec.Title, err)
			}
		}
	}

	fmt.Fprintf(s.out, "Seeding complete. Created %d recipes.\n", created)
	return created, nil
}

func (s *Seeder) ensureUser(ctx context.Context) (*user.User, error) {
	u, err := s.users.GetByUsername(ctx, SeedUsername)
	if err == nil {
		fmt.Fprintf(s.out, "User %q already exists\n", SeedUsername)
		return u, nil
	}
	if !errors.Is(err, user.ErrNotFound) {
		return nil, fmt.Errorf("seed user: %w", err)
	}

	password, err := randomPassword(seedPasswordLength)
	if err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	u, err = s.users.Create(ctx, user.CreateParams{Username: SeedUsername, PasswordHash: hash})
	if err != nil {
		return nil, fmt.Errorf("seed user: %w", err)
	}
	fmt.Fprintf(s.out, "Created user %q with password: %s\n", SeedUsername, password)
	return u, nil
}

// uploadImage stores the file under a fresh key and attaches it to rec.
func (s *Seeder) uploadImage(ctx context.Context, rec *recipe.Recipe, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	name := filepath.Base(path)
	key := storage.GenerateKey("recipes", name)
	if err := s.objects.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType(name)); err != nil {
		return err
	}
	if _, err := s.recipes.SetImage(ctx, rec, key); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Uploaded image for %q\n", rec.Title)
	return nil
}

// availableImages returns the jpg/jpeg/png file names in dir.
func availableImages(dir string) map[string]bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	out := make(map[string]bool)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
			out[e.Name()] = true
		}
	}
	return out
}

func contentType(name string) string {
	if strings.EqualFold(filepath.Ext(name), ".png") {
		return "image/png"
	}
	return "image/jpeg"
}

const passwordAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomPassword(n int) (string, error) {
	var b strings.Builder
	limit := big.NewInt(int64(len(passwordAlphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		b.WriteByte(passwordAlphabet[idx.Int64()])
	}
	return b.String(), nil
}
