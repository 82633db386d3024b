//	@title			Tasti API
//	@version		1.0.0
//	@description	Recipe sharing backend. Images go straight to object storage through presigned URLs.
//
//	@host		localhost:8080
//	@BasePath	/api/v1
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: **Bearer {token}**

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/tasti/api/internal/auth"
	"github.com/tasti/api/internal/config"
	"github.com/tasti/api/internal/db"
	appMiddleware "github.com/tasti/api/internal/middleware"
	"github.com/tasti/api/internal/presign"
	"github.com/tasti/api/internal/recipe"
	"github.com/tasti/api/internal/response"
	"github.com/tasti/api/internal/storage"
	"github.com/tasti/api/internal/user"

	_ "github.com/tasti/api/docs/swagger"
)

const version = "1.0.0"

func main() {
	cfg := config.Load()
	ctx := context.Background()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		log.Fatalf("database migration failed: %v", err)
	}

	// One storage client and one broker, shared by every component.
	store, err := storage.NewMinioStorage(cfg.Minio())
	if err != nil {
		log.Fatalf("object storage init failed: %v", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		// presigning still works offline; uploads fail until the bucket is reachable
		log.Printf("object storage unavailable: %v", err)
	}
	broker := presign.NewBroker(store, cfg.PresignDefaultExpiry)
	presignHandler := presign.NewHandler(broker)

	// Wire dependencies: repository → service → handler
	userRepo := user.NewRepository(pool)
	userSvc := user.NewService(userRepo)
	userHandler := user.NewHandler(userSvc)

	authRepo := auth.NewRepository(pool)
	authSvc := auth.NewService(authRepo, userSvc, cfg)
	authHandler := auth.NewHandler(authSvc, cfg)

	recipeRepo := recipe.NewRepository(pool)
	recipeSvc := recipe.NewService(recipeRepo, store, broker)
	recipeHandler := recipe.NewHandler(recipeSvc, presignHandler)

	requireAuth := appMiddleware.RequireAuth(cfg.JWTSecret)

	// Router
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, http.StatusOK, map[string]string{
			"status":  "healthy",
			"message": "Tasti API is running!",
			"version": version,
		})
	})

	// Swagger UI at http://localhost:8080/swagger/
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/token/refresh", authHandler.Refresh)
			r.With(requireAuth).Post("/logout", authHandler.Logout)
		})

		r.Mount("/users", userHandler.Routes(requireAuth))
		r.Mount("/recipes", recipeHandler.Routes(requireAuth))
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("server listening on :%s (env=%s, bucket=%s)", cfg.Port, cfg.AppEnv, store.Bucket())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-quit
	log.Println("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}

	log.Println("server stopped")
}
