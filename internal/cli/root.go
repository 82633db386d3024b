// Package cli implements tastictl, the admin command line for the Tasti API.
package cli

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/tasti/api/internal/config"
	"github.com/tasti/api/internal/db"
	"github.com/tasti/api/internal/presign"
	"github.com/tasti/api/internal/storage"
)

// NewRootCommand creates the root cobra command
func NewRootCommand(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tastictl",
		Short: "Tasti admin CLI",
		Long: `Administrative tools for the Tasti API.

Reads the same environment (and .env file) as the API server:
  - bucket: inspect the image bucket and round-trip a presigned upload
  - seed:   create the demo user and its recipes`,
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(NewBucketCommand())
	rootCmd.AddCommand(NewSeedCommand())

	return rootCmd
}

// env is the wiring shared by the subcommands.
type env struct {
	cfg    *config.Config
	store  *storage.MinioStorage
	broker *presign.Broker
}

func loadEnv() (*env, error) {
	cfg := config.Load()
	store, err := storage.NewMinioStorage(cfg.Minio())
	if err != nil {
		return nil, fmt.Errorf("object storage init: %w", err)
	}
	return &env{
		cfg:    cfg,
		store:  store,
		broker: presign.NewBroker(store, cfg.PresignDefaultExpiry),
	}, nil
}

// openDB connects and migrates, so seeding works against a fresh database.
func (e *env) openDB(ctx context.Context) (*pgxpool.Pool, error) {
	pool, err := db.Connect(ctx, e.cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(e.cfg.DatabaseURL); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
