//go:build integration

package integration

// Test environment setup and server lifecycle management.
//
// The integration tests start the download-server in-process with RECORD_STORE=postgres
// against a temporary database, and an httptest JWKS endpoint standing in for the
// Cognito user pool. The database is created empty, migrated with the embedded
// migrations and dropped after each test.
//
// Download links are presigned against a localstack style endpoint with static
// credentials, so no AWS account or network access is needed.
//
// By default the server logs are not included in the test output, you can enable them with:
//
//	ENABLE_SERVER_LOGS=true go test -tags=integration -v ./test/integration
//

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/auth/authtest"
	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/config"
	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/database"
	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/logger"
	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/server"
	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/services"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	testBucket = "artifacts-bucket"
	testTable  = "artifact_records"
)

// testEnv provides access to the test db, the identity provider and the server
type testEnv struct {
	baseURL  string
	cfg      *config.ServerEnvironment
	pool     *pgxpool.Pool
	signer   *authtest.Signer
	jwks     *authtest.JWKSServer
	shutdown func()
}

// startInProcessServer starts the download-server in-process for testing
func startInProcessServer(t *testing.T) *testEnv {
	t.Helper()

	testEnv := &testEnv{}

	t.Log("Starting in-process server...")

	var (
		ctx      = context.Background()
		host     = "localhost"
		port     = findFreePort(t)
		logLevel = logger.ParseLogLevel("none")
	)

	if os.Getenv("ENABLE_SERVER_LOGS") == "true" {
		logLevel = logger.ParseLogLevel("debug")
	}

	testEnv.signer = authtest.NewSigner(t, "integration-key")
	testEnv.jwks = authtest.NewJWKSServer(t, testEnv.signer.PublicJWK(t))

	testEnv.pool = setupTestDatabase(t)

	testEnvVars := map[string]string{
		"HOST":           host,
		"PORT":           fmt.Sprintf("%d", port),
		"ENVIRONMENT":    "test",
		"LOG_LEVEL":      logLevel.String(),
		"SKIP_JWK_CACHE": "true",
		"RATE_LIMIT_RPS": "0",

		"ISSUER_URL":   testEnv.jwks.Issuer(),
		"BUCKET":       testBucket,
		"TABLE":        testTable,
		"RECORD_STORE": config.RecordStorePostgres,
		"DATABASE_URL": testEnv.pool.Config().ConnString(),

		"AWS_REGION":            "us-east-1",
		"AWS_ENDPOINT_URL":      "http://localhost:4566",
		"AWS_ACCESS_KEY_ID":     "test",
		"AWS_SECRET_ACCESS_KEY": "test",
	}

	for key, value := range testEnvVars {
		t.Setenv(key, value)
	}

	cfg, err := config.NewServerConfig()
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}
	testEnv.cfg = cfg

	appLogger := logger.InitLogger(logLevel, "test")

	svcs, err := services.NewServices(ctx, cfg, testEnv.pool)
	if err != nil {
		t.Fatalf("Failed to create services: %v", err)
	}

	serverInstance, err := server.NewServer(ctx, testEnv.pool, cfg, appLogger, svcs)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	serverCtx, serverCancel := context.WithCancel(ctx)

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := serverInstance.Start(serverCtx); err != nil {
			serverDone <- err
		}
	}()

	testEnv.shutdown = func() {
		t.Log("Stopping server...")

		serverCancel()

		select {
		case err := <-serverDone:
			if err != nil {
				t.Logf("❌ Server shutdown with error: %v", err)
			} else {
				t.Log("✅ Server shut down gracefully")
			}
		case <-time.After(5 * time.Second):
			t.Log("⚠️ Server shutdown timeout")
		}
	}

	testEnv.baseURL = fmt.Sprintf("http://localhost:%d", port)

	if !waitForServer(t, testEnv.baseURL+"/health/live", 30*time.Second) {
		t.Fatal("Server failed to start within timeout")
	}

	t.Logf("✅ Server started at %s", testEnv.baseURL)
	return testEnv
}

func findFreePort(t *testing.T) int {
	t.Helper()
	listener, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("Failed to find free port: %v", err)
	}
	defer listener.Close()

	return listener.Addr().(*net.TCPAddr).Port
}

func waitForServer(t *testing.T, url string, timeout time.Duration) bool {
	t.Helper()

	client := &http.Client{Timeout: 1 * time.Second}
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return true
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return false
}

// Test database configuration

type databaseConfig struct {
	userAndPassword string
	dbname          string
	host            string
	port            int
}

func (d *databaseConfig) connectionURL() string {
	return fmt.Sprintf("postgres://%s@%s:%d/%s?sslmode=disable",
		d.userAndPassword, d.host, d.port, d.dbname)
}

func (d *databaseConfig) WithDatabase(dbname string) *databaseConfig {
	return &databaseConfig{
		userAndPassword: d.userAndPassword,
		host:            d.host,
		port:            d.port,
		dbname:          dbname,
	}
}

func localDatabaseConfig() *databaseConfig {
	return &databaseConfig{
		userAndPassword: "download-dev",
		dbname:          "tmp_download_integration_test",
		host:            "localhost",
		port:            15433,
	}
}

func ciDatabaseConfig() *databaseConfig {
	return &databaseConfig{
		userAndPassword: "postgres:postgres",
		dbname:          "tmp_download_integration_test",
		host:            "localhost",
		port:            5432,
	}
}

// setupTestDatabase creates an empty test db, applies migrations and returns a connection pool.
// It uses the CI database settings when running under github actions.
func setupTestDatabase(t *testing.T) *pgxpool.Pool {
	t.Helper()

	ctx := context.Background()
	dbConfig := localDatabaseConfig()
	if os.Getenv("GITHUB_ACTIONS") == "true" {
		dbConfig = ciDatabaseConfig()
	}

	// the admin pool stays open until the test database has been dropped
	postgresConnectionURL := dbConfig.WithDatabase("postgres").connectionURL()
	postgresPool, err := pgxpool.New(ctx, postgresConnectionURL)
	if err != nil {
		t.Fatalf("Unable to create postgres connection pool: %v", err)
	}
	t.Cleanup(postgresPool.Close)

	if err := postgresPool.Ping(ctx); err != nil {
		t.Fatalf("Can't ping PostgreSQL server %s", postgresConnectionURL)
	}

	if _, err := postgresPool.Exec(ctx, "DROP DATABASE IF EXISTS "+dbConfig.dbname); err != nil {
		t.Fatalf("DROP DATABASE IF EXISTS Failed : %v", err)
	}
	if _, err := postgresPool.Exec(ctx, "CREATE DATABASE "+dbConfig.dbname); err != nil {
		t.Fatalf("CREATE DATABASE Failed : %v", err)
	}

	t.Cleanup(func() {
		_, err := postgresPool.Exec(ctx, "DROP DATABASE "+dbConfig.dbname+" WITH (FORCE)")
		if err != nil {
			t.Errorf("Failed to drop test database: %v", err)
		}
	})

	testDatabasePool, err := pgxpool.New(ctx, dbConfig.connectionURL())
	if err != nil {
		t.Fatalf("Unable to create connection pool: %v", err)
	}
	// cleanups run in reverse: the pool is closed before the database is dropped
	t.Cleanup(testDatabasePool.Close)

	schemaVersion, err := database.Migrate(ctx, testDatabasePool)
	if err != nil {
		t.Fatalf("Failed to apply database migrations: %v", err)
	}

	t.Logf("Database ready: %s (schema version %d)", dbConfig.dbname, schemaVersion)
	return testDatabasePool
}
