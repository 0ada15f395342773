package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/xray-ledger/internal/models"
)

const (
	// RunStatusQueued indicates the run is waiting for the worker
	RunStatusQueued = "queued"
	// RunStatusRunning indicates the worker picked the run up
	RunStatusRunning = "running"
	// RunStatusCompleted indicates every product was processed
	RunStatusCompleted = "completed"
	// RunStatusFailed indicates the run aborted before finishing
	RunStatusFailed = "failed"

	// ProductStatusWritten indicates the ledger row was persisted
	ProductStatusWritten = "written"
	// ProductStatusFailed indicates the product was skipped after errors
	ProductStatusFailed = "failed"
)

// RunProduct is the audit record for a single product within a run.
type RunProduct struct {
	ID              uuid.UUID
	RunID           string
	Brand           string
	Segment         models.SellerSegment
	Country         string
	ProductName     string
	ProductURL      string
	RowPosition     *int
	CategoryRevenue string
	MonthlyRevenue  string
	Status          string
	ErrorMessage    *string
	WrittenAt       *time.Time
}

// RunRepository persists run lifecycle state for auditing.
type RunRepository struct {
	db *DB
}

func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

// CreateRun records a freshly queued run.
func (r *RunRepository) CreateRun(ctx context.Context, run *models.RunRequest) error {
	query := `
		INSERT INTO ledger_run (id, status, brand_count, product_count, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.pool.Exec(ctx, query,
		run.ID, RunStatusQueued, len(run.Brands), run.ProductCount(), run.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	return nil
}

// MarkStarted transitions a run to running.
func (r *RunRepository) MarkStarted(ctx context.Context, id string) error {
	query := `
		UPDATE ledger_run
		SET status = $1, started_at = $2
		WHERE id = $3`

	result, err := r.db.pool.Exec(ctx, query, RunStatusRunning, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark run started: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("run not found: %s", id)
	}

	return nil
}

// MarkFinished records the terminal status of a run. runErr may be nil.
func (r *RunRepository) MarkFinished(ctx context.Context, id string, runErr error) error {
	status := RunStatusCompleted
	var errMsg *string
	if runErr != nil {
		status = RunStatusFailed
		msg := runErr.Error()
		errMsg = &msg
	}

	query := `
		UPDATE ledger_run
		SET status = $1, error_message = $2, finished_at = $3
		WHERE id = $4`

	result, err := r.db.pool.Exec(ctx, query, status, errMsg, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark run finished: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("run not found: %s", id)
	}

	return nil
}

// RecordProduct persists the outcome for one product and country.
func (r *RunRepository) RecordProduct(ctx context.Context, rp *RunProduct) error {
	if rp.ID == uuid.Nil {
		rp.ID = uuid.New()
	}
	if rp.Status == ProductStatusWritten && rp.WrittenAt == nil {
		now := time.Now()
		rp.WrittenAt = &now
	}

	query := `
		INSERT INTO ledger_run_product (
			id, run_id, brand, segment, country,
			product_name, product_url, row_position,
			category_revenue, monthly_revenue,
			status, error_message, written_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)`

	_, err := r.db.pool.Exec(ctx, query,
		rp.ID, rp.RunID, rp.Brand, string(rp.Segment), rp.Country,
		rp.ProductName, rp.ProductURL, rp.RowPosition,
		rp.CategoryRevenue, rp.MonthlyRevenue,
		rp.Status, rp.ErrorMessage, rp.WrittenAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record run product: %w", err)
	}

	return nil
}

// FailedProducts lists the audit rows of products that did not make it
// into the ledger for a run.
func (r *RunRepository) FailedProducts(ctx context.Context, runID string) ([]*RunProduct, error) {
	query := `
		SELECT id, run_id, brand, segment, country,
			product_name, product_url, row_position,
			category_revenue, monthly_revenue,
			status, error_message, written_at
		FROM ledger_run_product
		WHERE run_id = $1 AND status = $2
		ORDER BY brand, country`

	rows, err := r.db.pool.Query(ctx, query, runID, ProductStatusFailed)
	if err != nil {
		return nil, fmt.Errorf("failed to query failed products: %w", err)
	}
	defer rows.Close()

	var products []*RunProduct
	for rows.Next() {
		rp := &RunProduct{}
		var segment string
		err := rows.Scan(
			&rp.ID, &rp.RunID, &rp.Brand, &segment, &rp.Country,
			&rp.ProductName, &rp.ProductURL, &rp.RowPosition,
			&rp.CategoryRevenue, &rp.MonthlyRevenue,
			&rp.Status, &rp.ErrorMessage, &rp.WrittenAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run product: %w", err)
		}
		rp.Segment = models.SellerSegment(segment)
		products = append(products, rp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return products, nil
}
