package database

import (
	"context"
	"log"
	"os"
	"testing"

	"github.com/siherrmann/reportrag/helper"
	loadSql "github.com/siherrmann/reportrag/sql"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
)

const testDimension = 3

var dbPort string

func TestMain(m *testing.M) {
	var teardown func(ctx context.Context, opts ...testcontainers.TerminateOption) error
	var err error
	teardown, dbPort, err = helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("error starting postgres container: %v", err)
	}

	code := m.Run()

	if err := teardown(context.Background()); err != nil {
		log.Fatalf("error tearing down postgres container: %v", err)
	}
	os.Exit(code)
}

func initDB(t *testing.T) *helper.Database {
	helper.SetTestDatabaseConfigEnvs(t, dbPort)
	dbConfig, err := helper.NewDatabaseConfiguration()
	require.NoError(t, err, "failed to create database configuration")
	database := helper.NewTestDatabase(dbConfig)

	err = loadSql.Init(database.Instance)
	require.NoError(t, err)

	return database
}

func initHandlers(t *testing.T) (*DocumentsDBHandler, *ChunksDBHandler) {
	database := initDB(t)

	// Documents first, chunks reference them
	documentsDbHandler, err := NewDocumentsDBHandler(database, true)
	require.NoError(t, err, "Expected NewDocumentsDBHandler to not return an error")

	chunksDbHandler, err := NewChunksDBHandler(database, testDimension, true)
	require.NoError(t, err, "Expected NewChunksDBHandler to not return an error")

	return documentsDbHandler, chunksDbHandler
}
