// Package duckdb exports sealed offset tables to DuckDB so they can be
// queried across builds and genomes with SQL.
package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection holding exported builds.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database path, empty for in-memory stores.
func (s *Store) Path() string {
	return s.path
}

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS builds (
		build_id VARCHAR PRIMARY KEY,
		source VARCHAR,
		created_at TIMESTAMP,
		chromosomes BIGINT,
		genomes BIGINT
	)`); err != nil {
		return err
	}
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS tracks (
		build_id VARCHAR,
		chrom VARCHAR,
		genome VARCHAR,
		entries BIGINT,
		PRIMARY KEY (build_id, chrom, genome)
	)`); err != nil {
		return err
	}
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS offset_entries (
		build_id VARCHAR,
		chrom VARCHAR,
		genome VARCHAR,
		ref_pos BIGINT,
		native_offset BIGINT,
		meta_offset BIGINT,
		extra_offset BIGINT,
		PRIMARY KEY (build_id, chrom, genome, ref_pos)
	)`)
	return err
}
