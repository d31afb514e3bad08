package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/config"
	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/database"
	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/logger"
	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/server"
	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/services"
	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/version"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

//	@title			download-server
//	@description	download-server issues short-lived download links for processed video artifacts
//	@description
//	@description	## Authentication
//	@description	Requests carry a Cognito identity token in the `Authorization: Bearer` header.
//	@description	The token is verified against the user pool's published keys (RS256) and its
//	@description	email claim identifies the caller. Callers can only download their own artifacts:
//	@description	the identity part of the requested reference is ignored.
//	@description
//	@description	## Common Error Responses
//	@description	All endpoints may return:
//	@description	- `413` Request body exceeds size limit
//	@description	- `429` Rate limit exceeded
//	@description	- `500` Internal server error
//	@description
//	@description	## Request Limits
//	@description	All endpoints are protected by a global rate limit (see RATE_LIMIT_RPS, default 100 rps, 0 disables it).
//	@description	In production there may be additional per-IP limits at the load balancer.
//	@license.name	MIT

//	@servers.url			http://localhost:8080
//	@servers.description	Development server

//	@produce	json

//	@tag.name			Downloads
//	@tag.description	Download link issuance

//	@tag.name			Common
//	@tag.description	Server API endpoints (health, readiness, version, metrics)

func main() {
	cmd := &cobra.Command{
		Use:   "download-server",
		Short: "Artifact download link server",
		Long: `download-server authenticates callers with their identity token, looks up the
caller's processed artifact and answers with a time-limited download link.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}
	cmd.AddCommand(migrateCmd())

	v := version.Get()
	cmd.Version = fmt.Sprintf("%s (built %s, commit %s)", v.Version, v.BuildDate, v.GitCommit)

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.ServerEnvironment, *slog.Logger) {
	cfg, err := config.NewServerConfig()
	if err != nil {
		log.Printf("failed to load configuration: %v", err.Error())
		os.Exit(1)
	}
	return cfg, logger.InitLogger(logger.ParseLogLevel(cfg.LogLevel), cfg.Environment)
}

func run() error {
	cfg, appLogger := loadConfig()

	appLogger.Info("Configuration loaded",
		slog.String("ENVIRONMENT", cfg.Environment),
		slog.String("HOST", cfg.Host),
		slog.Int("PORT", cfg.Port),
		slog.String("LOG_LEVEL", cfg.LogLevel),
		slog.String("BUCKET", cfg.Bucket),
		slog.String("TABLE", cfg.Table),
		slog.String("ISSUER", cfg.Issuer()),
		slog.String("RECORD_STORE", cfg.RecordStore),
		slog.String("AWS_REGION", cfg.AWSRegion),
		slog.String("AWS_ENDPOINT_URL", cfg.AWSEndpointURL),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if cfg.RecordStore == config.RecordStorePostgres {
		p, err := database.NewPool(ctx, cfg)
		if err != nil {
			appLogger.Error("Unable to connect to PostgreSQL", slog.String("error", err.Error()))
			os.Exit(1)
		}
		pool = p
		appLogger.Info("connected to PostgreSQL")

		schemaVersion, err := database.Migrate(ctx, pool)
		if err != nil {
			appLogger.Error("Failed to migrate database", slog.String("error", err.Error()))
			os.Exit(1)
		}
		appLogger.Info("database schema up to date", slog.Int64("version", schemaVersion))
	}

	svcs, err := services.NewServices(ctx, cfg, pool)
	if err != nil {
		appLogger.Error("Failed to create services", slog.String("error", err.Error()))
		os.Exit(1)
	}

	appLogger.Info("Starting server", slog.String("version", version.Get().Version))

	server, err := server.NewServer(ctx, pool, cfg, appLogger, svcs)
	if err != nil {
		appLogger.Error("Failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	defer server.DatabaseShutdown()

	if err := server.Start(ctx); err != nil {
		appLogger.Error("Server error", slog.String("error", err.Error()))
		return err
	}

	appLogger.Info("server shutdown complete")
	return nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the Postgres record store schema",
		Long:  `Apply pending migrations to DATABASE_URL and exit. Only needed with RECORD_STORE=postgres.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, appLogger := loadConfig()

			pool, err := database.NewPool(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			schemaVersion, err := database.Migrate(cmd.Context(), pool)
			if err != nil {
				return err
			}
			appLogger.Info("database schema up to date", slog.Int64("version", schemaVersion))
			return nil
		},
	}
}
