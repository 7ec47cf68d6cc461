// File: connection.go
package postgres

import (
	"fmt"
	"os"

	"github.com/secagent/go-api/secagent/postgres/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Config selects the backing database. The caller constructs a connection
// on startup and passes the returned handle to repositories; there is no
// package-level connection.
type Config struct {
	// Driver is "postgres" or "sqlite".
	Driver string
	// DSN is the postgres DSN, or the sqlite file path (":memory:" allowed).
	DSN string
}

// ConfigFromEnv reads SECAGENT_DB ("postgres"/"sqlite") and
// SECAGENT_POSTGRES_DSN / SECAGENT_SQLITE_PATH. Defaults to a local
// postgres instance.
func ConfigFromEnv() Config {
	cfg := Config{
		Driver: "postgres",
		DSN:    "host=localhost user=postgres password=password dbname=secagent port=5432 sslmode=disable",
	}
	if driver := os.Getenv("SECAGENT_DB"); driver != "" {
		cfg.Driver = driver
	}
	switch cfg.Driver {
	case "sqlite":
		cfg.DSN = "secagent.db"
		if path := os.Getenv("SECAGENT_SQLITE_PATH"); path != "" {
			cfg.DSN = path
		}
	default:
		if dsn := os.Getenv("SECAGENT_POSTGRES_DSN"); dsn != "" {
			cfg.DSN = dsn
		}
	}
	return cfg
}

// NewConnection opens the configured database and migrates the scan record
// schema. The returned handle is owned by the caller.
func NewConnection(cfg Config) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)

	switch cfg.Driver {
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(cfg.DSN), &gorm.Config{})
	case "postgres", "":
		db, err = gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{})
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to %s database: %w", cfg.Driver, err)
	}

	if err := db.AutoMigrate(&models.ScanRecord{}); err != nil {
		return nil, fmt.Errorf("migrate scan record schema: %w", err)
	}

	return db, nil
}
