package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/ehr/docportal/internal/config"
	"github.com/ehr/docportal/internal/domain/document"
	"github.com/ehr/docportal/internal/domain/staff"
	"github.com/ehr/docportal/internal/domain/task"
	"github.com/ehr/docportal/internal/platform/apperr"
	"github.com/ehr/docportal/internal/platform/audit"
	"github.com/ehr/docportal/internal/platform/auth"
	"github.com/ehr/docportal/internal/platform/blobstore"
	"github.com/ehr/docportal/internal/platform/db"
	"github.com/ehr/docportal/internal/platform/events"
	"github.com/ehr/docportal/internal/platform/middleware"
)

// deps are the process-wide collaborators built once in runServer.
type deps struct {
	cfg         *config.Config
	logger      zerolog.Logger
	pool        *pgxpool.Pool
	resolver    auth.Resolver
	revocations auth.RevocationStore
	events      events.Publisher
	// blobs is nil when S3_BUCKET is unset.
	blobs blobstore.Store
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()

	// Database
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	d := &deps{cfg: cfg, logger: logger, pool: pool}

	// Session revocation
	d.revocations = auth.NopRevocationStore{}
	if cfg.RedisURL != "" {
		client, err := auth.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer client.Close()
		d.revocations = auth.NewRedisRevocationStore(client)
		logger.Info().Msg("session revocation enabled")
	}

	d.resolver = newResolver(cfg, d.revocations)

	// Domain events
	d.events = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer func() {
			if err := kp.Close(); err != nil {
				logger.Warn().Err(err).Msg("close event publisher")
			}
		}()
		d.events = kp
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("event publishing enabled")
	}

	// Document blobs
	if cfg.S3Bucket != "" {
		store, err := blobstore.NewS3Store(ctx, blobstore.S3Options{
			Bucket:   cfg.S3Bucket,
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure blob storage")
		}
		d.blobs = store
	}

	e := newServer(d)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func newResolver(cfg *config.Config, revocations auth.RevocationStore) auth.Resolver {
	if cfg.RemoteSessions() {
		return auth.NewRemoteResolver(cfg.AuthSessionURL, 5*time.Second)
	}
	return auth.NewTokenResolver(auth.TokenConfig{
		Secret:      []byte(cfg.AuthSecret),
		Issuer:      cfg.AuthIssuer,
		Audience:    cfg.AuthAudience,
		CookieName:  cfg.SessionCookie,
		Revocations: revocations,
	})
}

// newServer wires middleware, API routes and the guarded front-end.
func newServer(d *deps) *echo.Echo {
	cfg, logger := d.cfg, d.logger

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(logger)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch},
		AllowHeaders:     []string{echo.HeaderAuthorization, echo.HeaderContentType, middleware.RequestIDHeader},
		AllowCredentials: true,
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))

	// Health
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(db.NewHealthSource(d.pool), logger))

	// API
	api := e.Group("/api")
	api.Use(auth.RequireSession(d.resolver, time.Now, logger))
	api.Use(db.ConnMiddleware(d.pool))
	api.POST("/auth/sign-out", auth.SignOutHandler(d.revocations, cfg.SessionCookie, logger))

	// Tenant routes admit only roles that own or belong to a practice.
	tenant := api.Group("", auth.RequireRole(auth.RolePhysician, auth.RoleStaff))

	recorder := audit.NewAsyncRecorder(audit.NewPGRecorder(d.pool), logger)
	tx := db.NewTransactor(d.pool)

	docSvc := document.NewService(document.NewRepoPG(d.pool), tx, document.Options{
		Events:  d.events,
		Blobs:   d.blobs,
		BlobTTL: cfg.BlobURLTTL,
		Logger:  logger,
	})
	document.NewHandler(docSvc, recorder).RegisterRoutes(tenant)

	taskSvc := task.NewService(task.NewRepoPG(d.pool), tx, d.events, logger)
	task.NewHandler(taskSvc, recorder).RegisterRoutes(tenant)

	staff.NewHandler(staff.NewService(staff.NewRepoPG(d.pool)), recorder).RegisterRoutes(tenant)

	// Pages
	e.Use(auth.Guard(auth.GuardConfig{
		Resolver:   d.resolver,
		SignInPath: cfg.SignInPath,
		Logger:     logger,
	}))
	e.Use(echomw.StaticWithConfig(echomw.StaticConfig{
		Root:    cfg.WebDir,
		HTML5:   true,
		Skipper: skipStatic,
	}))

	return e
}

func skipStatic(c echo.Context) bool {
	p := c.Request().URL.Path
	return p == "/api" || strings.HasPrefix(p, "/api/") || strings.HasPrefix(p, "/health")
}
