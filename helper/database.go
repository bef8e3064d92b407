package helper

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// Database holds the connection pool and the logger shared by all handlers
type Database struct {
	Name     string
	Logger   *slog.Logger
	Instance *sql.DB
}

// DatabaseConfiguration holds the connection settings for PostgreSQL
type DatabaseConfiguration struct {
	Host     string
	Port     string
	Database string
	Username string
	Password string
	Schema   string
	SSLMode  string
}

// NewDatabaseConfiguration reads the configuration from the environment.
// A .env file in the working directory is loaded first if present.
func NewDatabaseConfiguration() (*DatabaseConfiguration, error) {
	_ = godotenv.Load()

	config := &DatabaseConfiguration{
		Host:     os.Getenv("REPORTRAG_DB_HOST"),
		Port:     os.Getenv("REPORTRAG_DB_PORT"),
		Database: os.Getenv("REPORTRAG_DB_DATABASE"),
		Username: os.Getenv("REPORTRAG_DB_USERNAME"),
		Password: os.Getenv("REPORTRAG_DB_PASSWORD"),
		Schema:   os.Getenv("REPORTRAG_DB_SCHEMA"),
		SSLMode:  os.Getenv("REPORTRAG_DB_SSLMODE"),
	}

	if len(strings.TrimSpace(config.Host)) == 0 ||
		len(strings.TrimSpace(config.Port)) == 0 ||
		len(strings.TrimSpace(config.Database)) == 0 ||
		len(strings.TrimSpace(config.Username)) == 0 ||
		len(strings.TrimSpace(config.Password)) == 0 {
		return nil, NewError("database configuration", fmt.Errorf("REPORTRAG_DB_HOST, REPORTRAG_DB_PORT, REPORTRAG_DB_DATABASE, REPORTRAG_DB_USERNAME and REPORTRAG_DB_PASSWORD must be set"))
	}
	if len(strings.TrimSpace(config.Schema)) == 0 {
		config.Schema = "public"
	}
	if len(strings.TrimSpace(config.SSLMode)) == 0 {
		config.SSLMode = "disable"
	}

	return config, nil
}

// DSN returns the postgres connection string for the configuration
func (c *DatabaseConfiguration) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.Username, c.Password),
		Host:   fmt.Sprintf("%s:%s", c.Host, c.Port),
		Path:   c.Database,
	}
	q := u.Query()
	q.Set("sslmode", c.SSLMode)
	q.Set("search_path", c.Schema)
	u.RawQuery = q.Encode()
	return u.String()
}

// NewDatabase opens and pings the connection pool. It panics if the database
// stays unreachable, as every handler depends on it.
func NewDatabase(name string, config *DatabaseConfiguration, logger *slog.Logger) *Database {
	if logger == nil {
		logger = slog.Default()
	}

	db := &Database{
		Name:   name,
		Logger: logger,
	}
	if config == nil {
		return db
	}

	err := db.ConnectToDatabase(config)
	if err != nil {
		log.Panicf("error connecting to database %s: %v", name, err)
	}

	return db
}

// NewTestDatabase creates a database for tests with a quiet logger
func NewTestDatabase(config *DatabaseConfiguration) *Database {
	logger := NewLogger(os.Stdout, slog.LevelWarn)
	return NewDatabase("test_db", config, logger)
}

// ConnectToDatabase opens the pool and retries the ping for a few seconds
func (d *Database) ConnectToDatabase(config *DatabaseConfiguration) error {
	instance, err := sql.Open("postgres", config.DSN())
	if err != nil {
		return NewError("open", err)
	}

	instance.SetMaxOpenConns(25)
	instance.SetMaxIdleConns(25)
	instance.SetConnMaxLifetime(5 * time.Minute)

	var pingErr error
	for attempt := 0; attempt < 10; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		pingErr = instance.PingContext(ctx)
		cancel()
		if pingErr == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if pingErr != nil {
		_ = instance.Close()
		return NewError("ping", pingErr)
	}

	d.Instance = instance
	d.Logger.Info("Connected to database", slog.String("name", d.Name), slog.String("host", config.Host))

	return nil
}

// Close closes the connection pool if it was opened
func (d *Database) Close() error {
	if d == nil || d.Instance == nil {
		return nil
	}
	return d.Instance.Close()
}
