package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/farmlink/farmhub/internal/auth"
	"github.com/farmlink/farmhub/internal/config"
	"github.com/farmlink/farmhub/internal/domain/user"
	"github.com/farmlink/farmhub/internal/http/handlers"
	"github.com/farmlink/farmhub/internal/http/middlewares"
	"github.com/farmlink/farmhub/internal/observability"
	"github.com/farmlink/farmhub/internal/repo/postgres"
	"github.com/farmlink/farmhub/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const maxBodyBytes = 8 << 20 // multipart photo uploads included

// UsersStore is everything the HTTP layer needs from the users
// repository; both the postgres and the in-memory repo satisfy it.
type UsersStore interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	Create(ctx context.Context, email, passwordHash, name, role string) (user.User, error)
	UpdateProfile(ctx context.Context, id string, upd user.ProfileUpdate) (user.User, error)
	UpdateProfileImage(ctx context.Context, id string, path string) (user.User, error)
}

func NewRouter(log *slog.Logger, pool *pgxpool.Pool, cfg config.Config) (*gin.Engine, error) {
	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)

	// wire up repositories

	users := postgres.NewUsersRepoWithMetrics(pool, prom)

	photos, err := storage.NewDiskStore(cfg.UploadDir)

	if err != nil {
		return nil, err
	}

	ping := func() error {
		if pool == nil {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		return pool.Ping(ctx)
	}

	r := newEngine(cfg, users, photos, ping, prom)

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	log.Debug("router initialized", "upload_dir", cfg.UploadDir)

	return r, nil
}

// NewRouterWithStores skips metrics registration and takes fake stores;
// it exists for handler and end-to-end tests.
func NewRouterWithStores(cfg config.Config, users UsersStore, photos handlers.PhotoStore) *gin.Engine {
	return newEngine(cfg, users, photos, nil, nil)
}

func newEngine(cfg config.Config, users UsersStore, photos handlers.PhotoStore, ping func() error, prom *observability.Prom) *gin.Engine {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("farmhub"))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.MaxBodyBytes(maxBodyBytes))

	if len(cfg.CORSOrigins) > 0 {
		r.Use(middlewares.CORSMiddleware(cfg.CORSOrigins))
	}

	if prom != nil {
		r.Use(prom.GinHandleMiddleware())
	}

	// strategies built once, injected below; no runtime registry

	jwtManager := auth.NewManager(cfg.JWTSecret, cfg.TokenTTL())
	creds := auth.NewCredentialStrategy(users)
	tokens := auth.NewTokenStrategy(jwtManager, users)

	authMW := middlewares.NewAuthMiddleware(tokens)

	// health
	h := handlers.NewHealthHandler(ping)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	// wire up handlers
	authHandler := handlers.NewAuthHandler(users, creds, jwtManager, prom)
	profileHandler := handlers.NewProfileHandler(users, photos)

	api := r.Group("/api/auth")

	api.POST("/register", middlewares.RequireJSON(), authHandler.Register)
	api.POST("/login", middlewares.RequireJSON(), authHandler.Login)

	api.GET("/profile", authMW.RequireAuth(), profileHandler.GetProfile)
	api.PATCH("/profile", authMW.RequireAuth(), middlewares.RequireJSON(), profileHandler.UpdateProfile)
	// multipart, so no RequireJSON here
	api.PATCH("/profile/photo", authMW.RequireAuth(), profileHandler.UploadPhoto)

	// uploaded images are public, keyed by stored filename
	if cfg.UploadDir != "" {
		r.Static("/uploads", cfg.UploadDir)
	}

	return r
}
