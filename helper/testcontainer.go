package helper

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	testDatabaseName     = "database"
	testDatabaseUser     = "user"
	testDatabasePassword = "password"
)

// MustStartPostgresContainer starts a pgvector enabled PostgreSQL container.
// It returns the teardown function and the mapped host port.
func MustStartPostgresContainer() (func(ctx context.Context, opts ...testcontainers.TerminateOption) error, string, error) {
	ctx := context.Background()

	container, err := postgres.Run(
		ctx,
		"pgvector/pgvector:pg17",
		postgres.WithDatabase(testDatabaseName),
		postgres.WithUsername(testDatabaseUser),
		postgres.WithPassword(testDatabasePassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start postgres container: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return container.Terminate, "", fmt.Errorf("failed to get mapped port: %w", err)
	}

	return container.Terminate, port.Port(), nil
}

// SetTestDatabaseConfigEnvs points the database configuration at the test container
func SetTestDatabaseConfigEnvs(t *testing.T, port string) {
	t.Setenv("REPORTRAG_DB_HOST", "localhost")
	t.Setenv("REPORTRAG_DB_PORT", port)
	t.Setenv("REPORTRAG_DB_DATABASE", testDatabaseName)
	t.Setenv("REPORTRAG_DB_USERNAME", testDatabaseUser)
	t.Setenv("REPORTRAG_DB_PASSWORD", testDatabasePassword)
	t.Setenv("REPORTRAG_DB_SCHEMA", "public")
	t.Setenv("REPORTRAG_DB_SSLMODE", "disable")
}
