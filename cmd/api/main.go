package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/markbates/goth/gothic"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/petermazzocco/photocard-catalog/internal/auth"
	"github.com/petermazzocco/photocard-catalog/internal/blob"
	"github.com/petermazzocco/photocard-catalog/internal/catalog"
	"github.com/petermazzocco/photocard-catalog/internal/config"
	"github.com/petermazzocco/photocard-catalog/internal/handlers"
	"github.com/petermazzocco/photocard-catalog/internal/imageid"
	"github.com/petermazzocco/photocard-catalog/internal/logger"
	"github.com/petermazzocco/photocard-catalog/internal/transcode"
	"github.com/petermazzocco/photocard-catalog/internal/workflow"
	"github.com/petermazzocco/photocard-catalog/models"
)

var skipMigrate bool

var rootCmd = &cobra.Command{
	Use:   "photocards",
	Short: "Photocard catalog API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, db, err := setup()
		if err != nil {
			return err
		}
		if !skipMigrate {
			if err := catalog.Migrate(db); err != nil {
				return fmt.Errorf("auto migrate models: %w", err)
			}
		}
		return serve(cmd.Context(), cfg, db)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := setup()
		if err != nil {
			return err
		}
		if err := catalog.Migrate(db); err != nil {
			return fmt.Errorf("auto migrate models: %w", err)
		}
		logger.For(cmd.Context()).Info("migration complete")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&skipMigrate, "skip-migrate", false, "do not auto migrate on startup")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.For(nil).WithError(err).Error("exiting")
		os.Exit(1)
	}
}

func setup() (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger.Configure(cfg.App.Env, cfg.App.Debug)

	db, err := gorm.Open(postgres.Open(cfg.DB.DSN), &gorm.Config{})
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return cfg, db, nil
}

func newBlobStore(ctx context.Context, cfg config.BlobConfig) (blob.Store, error) {
	if cfg.Backend == "minio" {
		store, err := blob.NewMinioStore(cfg)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	client, err := blob.NewR2Client(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return blob.NewS3Store(client, cfg.Bucket), nil
}

func serve(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	auth.Setup(cfg.Auth)

	store, err := newBlobStore(ctx, cfg.Blob)
	if err != nil {
		return err
	}
	strategy, err := imageid.ParseStrategy(cfg.Image.DedupStrategy)
	if err != nil {
		return err
	}

	repo := catalog.NewGormRepository(db)
	svc := catalog.NewService(repo)
	transcoder := transcode.New(
		transcode.NewCodec(cfg.Image.Backend, cfg.Image.Quality),
		transcode.Options{MaxInputBytes: cfg.Image.MaxSizeBytes, ThumbnailHeight: cfg.Image.ThumbnailHeightPx},
	)
	controller := workflow.NewController(
		transcoder,
		imageid.NewDeriver(strategy),
		catalog.NewOrchestrator(repo),
		blob.NewCoordinator(store),
		svc,
	)
	maxImage := cfg.Image.MaxSizeBytes

	// Chi
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.Middleware)
	r.Use(middleware.Recoverer)

	// User auth
	r.Get("/auth/{provider}/callback", func(w http.ResponseWriter, r *http.Request) {
		handlers.UserLoginHandler(w, r, db)
	})
	r.Post("/logout/{provider}", func(w http.ResponseWriter, r *http.Request) {
		gothic.Logout(w, r)
	})
	r.Post("/auth/{provider}", func(w http.ResponseWriter, r *http.Request) {
		if gothUser, err := gothic.CompleteUserAuth(w, r); err == nil {
			fmt.Fprintf(w, "User already authenticated: %s\n", gothUser.Name)
		} else {
			gothic.BeginAuthHandler(w, r)
		}
	})

	// Available API routes for authenticated users
	r.Route("/api", func(r chi.Router) {
		r.Use(auth.UserMiddleware(db))
		r.Use(httprate.Limit(
			cfg.Limiter.RequestsPerMinute,
			1*time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP, httprate.KeyByEndpoint),
		))

		r.Get("/user", func(w http.ResponseWriter, r *http.Request) {
			handlers.GetUserHandler(w, r, db)
		})
		r.Get("/photocards", func(w http.ResponseWriter, r *http.Request) {
			handlers.GetPhotocardsHandler(w, r, svc, cfg.Blob.PublicURL)
		})
		r.Get("/collections", func(w http.ResponseWriter, r *http.Request) {
			handlers.GetCollectionsHandler(w, r, svc)
		})
		r.Get("/collection-types", func(w http.ResponseWriter, r *http.Request) {
			handlers.GetCollectionTypesHandler(w, r, svc)
		})
		r.Get("/card-types", func(w http.ResponseWriter, r *http.Request) {
			handlers.GetCardTypesHandler(w, r, svc)
		})
		r.Get("/card-sizes", func(w http.ResponseWriter, r *http.Request) {
			handlers.GetCardSizesHandler(w, r, svc)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(models.RoleMod))
			r.Post("/collection-types", func(w http.ResponseWriter, r *http.Request) {
				handlers.CreateCollectionTypeHandler(w, r, svc)
			})
			r.Post("/card-types", func(w http.ResponseWriter, r *http.Request) {
				handlers.CreateCardTypeHandler(w, r, svc)
			})
			r.Post("/card-sizes", func(w http.ResponseWriter, r *http.Request) {
				handlers.CreateCardSizeHandler(w, r, svc)
			})
			r.Post("/collections", func(w http.ResponseWriter, r *http.Request) {
				handlers.PublishCollectionHandler(w, r, controller, maxImage)
			})
			r.Put("/images/{id}", func(w http.ResponseWriter, r *http.Request) {
				handlers.ReuploadImageHandler(w, r, controller, maxImage)
			})
			r.Post("/photocards/{id}/lock", func(w http.ResponseWriter, r *http.Request) {
				handlers.LockPhotocardHandler(w, r, svc)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(models.RoleAdmin))
			r.Put("/users/{id}/role", func(w http.ResponseWriter, r *http.Request) {
				handlers.SetUserRoleHandler(w, r, svc)
			})
		})
	})

	addr := ":" + cfg.App.Port
	logger.For(ctx).WithFields(logrus.Fields{
		"addr":         addr,
		"blob_backend": cfg.Blob.Backend,
		"image_codec":  cfg.Image.Backend,
		"dedup":        strategy,
	}).Info("starting API server")
	return http.ListenAndServe(addr, r)
}
