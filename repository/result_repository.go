package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"smartcart/models"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// ResultRepository persists comparison runs in Postgres
type ResultRepository struct {
	db *sql.DB
}

func NewResultRepository(db *sql.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// Save stores the run, every ranked record, the best deals and the failures
// in one transaction
func (r *ResultRepository) Save(ctx context.Context, run *models.ComparisonRun) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	finished := run.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO comparison_runs (id, queries, started_at, finished_at)
		VALUES ($1, $2, $3, $4)
	`, run.ID, pq.Array(run.Queries), run.StartedAt, finished)
	if err != nil {
		return fmt.Errorf("failed to save comparison run: %w", err)
	}

	resultStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO product_results (run_id, query, retailer, rank, name, price, quantity_text,
			unit_price_text, available, unit_amount, unit, normalized, display)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare result insert: %w", err)
	}
	defer resultStmt.Close()

	for _, query := range run.Queries {
		results := run.Results[query]
		for _, retailer := range results.Retailers() {
			for rank, rec := range results[retailer] {
				var (
					unitAmount decimal.NullDecimal
					unit       string
					normalized bool
				)
				if rec.UnitPrice != nil {
					unitAmount = models.NewPrice(rec.UnitPrice.AmountPerUnit)
					unit = rec.UnitPrice.Unit
					normalized = rec.UnitPrice.Normalized
				}
				_, err := resultStmt.ExecContext(ctx,
					run.ID, query, retailer, rank+1, rec.Name, rec.Price, rec.QuantityText,
					rec.UnitPriceText, rec.Available, unitAmount, unit, normalized, rec.DisplayString,
				)
				if err != nil {
					return fmt.Errorf("failed to save result for %s %q: %w", retailer, query, err)
				}
			}
		}
	}

	for _, query := range run.Queries {
		best := run.BestDeals[query]
		if best == nil {
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO best_deals (run_id, query, retailer, name, price, display, basis)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, run.ID, query, best.Retailer, best.Record.Name, best.Record.Price, best.Record.DisplayString, string(best.Basis))
		if err != nil {
			return fmt.Errorf("failed to save best deal for %q: %w", query, err)
		}
	}

	for _, f := range run.Failures {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO search_failures (run_id, retailer, query, kind, message)
			VALUES ($1, $2, $3, $4, $5)
		`, run.ID, f.Retailer, f.Query, string(f.Kind), f.Message)
		if err != nil {
			return fmt.Errorf("failed to save search failure: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit comparison run: %w", err)
	}
	return nil
}

// BestDealEntry is one historical winner for a query
type BestDealEntry struct {
	RunID      string
	RecordedAt time.Time
	Retailer   string
	Name       string
	Price      decimal.NullDecimal
	Display    string
	Basis      models.ComparisonBasis
}

// GetBestDealHistory returns the most recent winners for a query, newest first
func (r *ResultRepository) GetBestDealHistory(ctx context.Context, query string, limit int) ([]BestDealEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT b.run_id, c.finished_at, b.retailer, b.name, b.price, b.display, b.basis
		FROM best_deals b
		JOIN comparison_runs c ON c.id = b.run_id
		WHERE b.query = $1
		ORDER BY c.finished_at DESC
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get best deal history: %w", err)
	}
	defer rows.Close()

	var entries []BestDealEntry
	for rows.Next() {
		var (
			e     BestDealEntry
			basis string
		)
		if err := rows.Scan(&e.RunID, &e.RecordedAt, &e.Retailer, &e.Name, &e.Price, &e.Display, &basis); err != nil {
			return nil, fmt.Errorf("failed to scan best deal: %w", err)
		}
		e.Basis = models.ComparisonBasis(basis)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read best deals: %w", err)
	}

	return entries, nil
}

// GetResults loads the ranked records of one run and query, keyed by retailer
func (r *ResultRepository) GetResults(ctx context.Context, runID, query string) (models.QueryResultSet, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT retailer, name, price, quantity_text, unit_price_text, available, unit_amount, unit, normalized, display
		FROM product_results
		WHERE run_id = $1 AND query = $2
		ORDER BY retailer, rank
	`, runID, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get results: %w", err)
	}
	defer rows.Close()

	results := make(models.QueryResultSet)
	for rows.Next() {
		var (
			rec        models.ProductRecord
			unitAmount decimal.NullDecimal
			unit       string
			normalized bool
		)
		err := rows.Scan(
			&rec.SourceRetailer, &rec.Name, &rec.Price, &rec.QuantityText, &rec.UnitPriceText,
			&rec.Available, &unitAmount, &unit, &normalized, &rec.DisplayString,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		if unitAmount.Valid {
			rec.UnitPrice = &models.UnitPrice{AmountPerUnit: unitAmount.Decimal, Unit: unit, Normalized: normalized}
		}
		results[rec.SourceRetailer] = append(results[rec.SourceRetailer], rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}

	return results, nil
}
