package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/auth"
	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/config"
	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/database"
	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/download"
	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/links"
	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/logger"
	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/metrics"
	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/records"
	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/server/handlers"
	downloadmw "github.com/FIAP-Grupo-11SOAT/download-lambda/internal/server/middleware"
	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/services"
	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/version"
)

// maxRequestBytes bounds request bodies (the API only serves GETs)
const maxRequestBytes = 4 * 1024

type Server struct {
	pool     *pgxpool.Pool
	config   *config.ServerEnvironment
	logger   *slog.Logger
	router   *chi.Mux
	keyCache *auth.KeyCache
	metrics  *metrics.Prom
	settings download.Settings
	download *download.Handler
}

// NewServer wires the download service from its collaborators.
// pool may be nil when the DynamoDB record store is used.
// ctx bounds the lifetime of the background JWK refresh.
func NewServer(
	ctx context.Context,
	pool *pgxpool.Pool,
	cfg *config.ServerEnvironment,
	logger *slog.Logger,
	svcs *services.Services,
) (*Server, error) {
	server := &Server{
		pool:    pool,
		config:  cfg,
		logger:  logger,
		router:  chi.NewRouter(),
		metrics: metrics.NewProm("download"),
		settings: download.Settings{
			Bucket: cfg.Bucket,
			Table:  cfg.Table,
			Issuer: cfg.Issuer(),
		},
	}

	if err := server.initKeyCache(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize key cache: %w", err)
	}

	if err := server.settings.Validate(); err != nil {
		// not fatal: download requests answer 500 until this is fixed
		logger.Warn("download settings incomplete", slog.String("error", err.Error()))
	}

	service := download.NewService(
		server.settings,
		auth.NewVerifier(server.keyCache),
		records.NewResolver(svcs.RecordStore),
		links.NewIssuer(svcs.LinkSigner, cfg.Bucket),
		server.metrics,
	)
	server.download = download.NewHandler(service)

	server.setupMiddleware()
	server.registerRoutes()

	return server, nil
}

// initKeyCache creates the signing key cache used to verify identity tokens.
func (s *Server) initKeyCache(ctx context.Context) error {
	keyCacheConfig := auth.NewKeyCacheConfig(
		s.config.JWKCacheHTTPTimeout,
		s.config.SkipJWKCache,
		s.config.JWKCacheMinRefresh,
		s.config.JWKCacheMaxRefresh,
	)

	keyCache, err := auth.NewKeyCache(ctx, keyCacheConfig, s.logger)
	if err != nil {
		return fmt.Errorf("failed to create key cache: %w", err)
	}

	s.keyCache = keyCache
	s.logger.Info("signing key cache initialized",
		slog.String("issuer", s.settings.Issuer),
		slog.Bool("skip_jwk_cache", s.config.SkipJWKCache))

	return nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(logger.RequestLogging(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(downloadmw.SecurityHeaders(s.config.Environment))
	s.router.Use(downloadmw.RateLimit(s.config.RateLimitRPS, s.config.RateLimitBurst))
	s.router.Use(downloadmw.RequestSizeLimit(maxRequestBytes))
	if s.config.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(s.config.RequestTimeout))
	}
}

func (s *Server) registerRoutes() {
	v := version.Get()

	s.router.Get("/health/live", handlers.HandleHealth)
	s.router.Get("/health/ready", handlers.HandleReadiness(s.readinessChecks()...))
	s.router.Get("/version", handlers.HandleVersion(v.Version, v.BuildDate, v.GitCommit))
	s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	s.router.Get("/downloads/{filename}", s.download.HandleDownload)
	s.router.Get("/records/{id}/download", s.download.HandleDownload)
}

func (s *Server) readinessChecks() []handlers.ReadinessCheck {
	checks := []handlers.ReadinessCheck{
		{
			Name:  "download settings",
			Check: func(context.Context) error { return s.settings.Validate() },
		},
	}
	if s.pool != nil {
		checks = append(checks, handlers.ReadinessCheck{
			Name: "database",
			Check: func(ctx context.Context) error {
				return database.IsDatabaseRunning(ctx, s.pool)
			},
		})
	}
	return checks
}

// Router returns the root handler (used by tests)
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) Start(ctx context.Context) error {
	serverAddr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	httpServer := &http.Server{
		Addr:         serverAddr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("service listening",
			slog.String("environment", s.config.Environment),
			slog.String("address", serverAddr))

		err := httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), s.config.ServerShutdownTimeout)
	defer shutdownCancel()

	s.logger.Info("shutting down HTTP server")

	err := httpServer.Shutdown(shutdownCtx)
	if err != nil {
		s.logger.Warn("HTTP server shutdown error",
			slog.String("error", err.Error()))
		return fmt.Errorf("HTTP server shutdown failed: %w", err)
	}

	s.logger.Info("HTTP server shutdown complete")
	return nil
}

func (s *Server) DatabaseShutdown() {
	if s.pool != nil {
		s.pool.Close()
		s.logger.Info("database connection closed")
	}
}
