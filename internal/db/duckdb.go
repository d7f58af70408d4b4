package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Config holds database configuration.
type Config struct {
	DataDir string
	DBName  string
}

// Path returns the database file location under DataDir.
func (c Config) Path() string {
	name := c.DBName
	if name == "" {
		name = "trips"
	}
	return filepath.Join(c.DataDir, "duckdb", name+".duckdb")
}

// Open opens the DuckDB file for cfg and applies the schema.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	path := cfg.Path()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create duckdb directory: %w", err)
	}
	return open(ctx, path)
}

// OpenMemory opens an in-memory database with the schema applied.
func OpenMemory(ctx context.Context) (*sql.DB, error) {
	return open(ctx, "")
}

func open(ctx context.Context, dsn string) (*sql.DB, error) {
	conn, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	// An in-memory database lives only as long as its connection.
	conn.SetMaxOpenConns(1)

	if err := Migrate(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS trips (
	id          VARCHAR PRIMARY KEY,
	session_id  VARCHAR NOT NULL,
	stops       VARCHAR NOT NULL,
	route       VARCHAR NOT NULL,
	distance_km DOUBLE NOT NULL,
	created_at  TIMESTAMP NOT NULL
);
`

// Migrate creates the tables if they do not exist.
func Migrate(ctx context.Context, conn *sql.DB) error {
	if _, err := conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
