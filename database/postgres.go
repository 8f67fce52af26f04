package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Open connects to Postgres and verifies the connection
func Open(ctx context.Context, dbURL string) (*sql.DB, error) {
	if dbURL == "" {
		return nil, fmt.Errorf("database url is required")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// CreateTables creates the necessary tables if they don't exist
func CreateTables(ctx context.Context, db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS comparison_runs (
			id UUID PRIMARY KEY,
			queries TEXT[] NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS product_results (
			id SERIAL PRIMARY KEY,
			run_id UUID NOT NULL REFERENCES comparison_runs(id) ON DELETE CASCADE,
			query TEXT NOT NULL,
			retailer TEXT NOT NULL,
			rank INTEGER NOT NULL,
			name TEXT NOT NULL,
			price NUMERIC,
			quantity_text TEXT NOT NULL DEFAULT '',
			unit_price_text TEXT NOT NULL DEFAULT '',
			available BOOLEAN NOT NULL,
			unit_amount NUMERIC,
			unit TEXT NOT NULL DEFAULT '',
			normalized BOOLEAN NOT NULL DEFAULT FALSE,
			display TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS best_deals (
			run_id UUID NOT NULL REFERENCES comparison_runs(id) ON DELETE CASCADE,
			query TEXT NOT NULL,
			retailer TEXT NOT NULL,
			name TEXT NOT NULL,
			price NUMERIC,
			display TEXT NOT NULL DEFAULT '',
			basis VARCHAR(20) NOT NULL CHECK (basis IN ('unit_price', 'total_price')),
			PRIMARY KEY (run_id, query)
		)`,
		`CREATE TABLE IF NOT EXISTS search_failures (
			id SERIAL PRIMARY KEY,
			run_id UUID NOT NULL REFERENCES comparison_runs(id) ON DELETE CASCADE,
			retailer TEXT NOT NULL,
			query TEXT NOT NULL,
			kind VARCHAR(20) NOT NULL,
			message TEXT NOT NULL DEFAULT ''
		)`,

		`CREATE INDEX IF NOT EXISTS idx_product_results_run ON product_results (run_id, query, retailer, rank)`,
		`CREATE INDEX IF NOT EXISTS idx_best_deals_query ON best_deals (query)`,
	}

	for _, query := range queries {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}
