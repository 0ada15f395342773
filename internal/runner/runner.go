// Package runner walks a submitted run brand by brand, country by
// country, product by product, driving the extractors and writing the
// resulting rows into the segment's ledger workbook.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sells-group/xray-ledger/internal/events"
	"github.com/sells-group/xray-ledger/internal/extractor"
	"github.com/sells-group/xray-ledger/internal/ledger"
	"github.com/sells-group/xray-ledger/internal/models"
	"github.com/sells-group/xray-ledger/internal/pace"
	"github.com/sells-group/xray-ledger/internal/picker"
	"github.com/sells-group/xray-ledger/internal/retry"
	"github.com/sells-group/xray-ledger/internal/store"
)

// Navigator opens a URL in a browser tab and waits for it to load.
type Navigator interface {
	Open(url string) error
}

// CategorySource reads overlay revenue figures from the active tab.
type CategorySource interface {
	Extract() (models.Metric, error)
	ParentRevenue() (models.Metric, error)
}

// ProfitabilitySource reads the calculator metrics for a product page.
type ProfitabilitySource interface {
	Extract(productURL string) (models.ProfitabilityMetrics, error)
}

// EventSink receives run lifecycle events. *events.Publisher satisfies it.
type EventSink interface {
	RunStarted(ctx context.Context, payload *events.RunStartedPayload) error
	RowWritten(ctx context.Context, payload *events.RowWrittenPayload) error
	ProductFailed(ctx context.Context, payload *events.ProductFailedPayload) error
	RunCompleted(ctx context.Context, payload *events.RunCompletedPayload) error
}

// AuditStore persists run outcomes. *store.RunRepository satisfies it.
type AuditStore interface {
	MarkStarted(ctx context.Context, id string) error
	MarkFinished(ctx context.Context, id string, runErr error) error
	RecordProduct(ctx context.Context, rp *store.RunProduct) error
}

// NopEvents discards all events.
type NopEvents struct{}

func (NopEvents) RunStarted(context.Context, *events.RunStartedPayload) error       { return nil }
func (NopEvents) RowWritten(context.Context, *events.RowWrittenPayload) error       { return nil }
func (NopEvents) ProductFailed(context.Context, *events.ProductFailedPayload) error { return nil }
func (NopEvents) RunCompleted(context.Context, *events.RunCompletedPayload) error   { return nil }

// NopAudit discards all audit writes.
type NopAudit struct{}

func (NopAudit) MarkStarted(context.Context, string) error               { return nil }
func (NopAudit) MarkFinished(context.Context, string, error) error       { return nil }
func (NopAudit) RecordProduct(context.Context, *store.RunProduct) error  { return nil }

// Deps bundles the coordinator's collaborators.
type Deps struct {
	Ledgers  *ledger.Set
	Nav      Navigator
	Category CategorySource
	Profit   ProfitabilitySource
	Retrier  *retry.Orchestrator
	Events   EventSink
	Audit    AuditStore
	Pacer    pace.Pacer
	Logger   *slog.Logger

	// CompetitorMonth selects the storage fee season for competitor
	// pricing. Zero means the current month.
	CompetitorMonth int
	Now             func() time.Time
}

// Coordinator executes one run end to end.
type Coordinator struct {
	ledgers  *ledger.Set
	nav      Navigator
	category CategorySource
	profit   ProfitabilitySource
	retrier  *retry.Orchestrator
	events   EventSink
	audit    AuditStore
	pacer    pace.Pacer
	logger   *slog.Logger
	month    int
	now      func() time.Time
}

func NewCoordinator(d Deps) *Coordinator {
	if d.Events == nil {
		d.Events = NopEvents{}
	}
	if d.Audit == nil {
		d.Audit = NopAudit{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Pacer == nil {
		d.Pacer = pace.None{}
	}
	if d.Retrier == nil {
		d.Retrier = retry.New(retry.DefaultMaxAttempts, retry.DefaultDelay, d.Logger)
	}
	return &Coordinator{
		ledgers:  d.Ledgers,
		nav:      d.Nav,
		category: d.Category,
		profit:   d.Profit,
		retrier:  d.Retrier,
		events:   d.Events,
		audit:    d.Audit,
		pacer:    d.Pacer,
		logger:   d.Logger.With("component", "run-coordinator"),
		month:    d.CompetitorMonth,
		now:      d.Now,
	}
}

func (c *Coordinator) competitorMonth() int {
	if c.month != 0 {
		return c.month
	}
	return int(c.now().Month())
}

// Run processes every product of every brand block. A product failure is
// isolated: it is audited and the run moves on. Run only returns an
// error for structural problems such as an unknown seller segment.
func (c *Coordinator) Run(ctx context.Context, run *models.RunRequest) (err error) {
	logger := c.logger.With("run_id", run.ID)
	logger.Info("run started", "brands", len(run.Brands), "products", run.ProductCount())

	if auditErr := c.audit.MarkStarted(ctx, run.ID); auditErr != nil {
		logger.Warn("failed to audit run start", "error", auditErr)
	}
	if evErr := c.events.RunStarted(ctx, &events.RunStartedPayload{
		RunID:        run.ID,
		BrandCount:   len(run.Brands),
		ProductCount: run.ProductCount(),
	}); evErr != nil {
		logger.Warn("failed to publish run started", "error", evErr)
	}

	rowsWritten := 0
	failures := 0

	defer func() {
		if auditErr := c.audit.MarkFinished(ctx, run.ID, err); auditErr != nil {
			logger.Warn("failed to audit run finish", "error", auditErr)
		}
		if evErr := c.events.RunCompleted(ctx, &events.RunCompletedPayload{
			RunID:       run.ID,
			RowsWritten: rowsWritten,
			Failures:    failures,
		}); evErr != nil {
			logger.Warn("failed to publish run completed", "error", evErr)
		}
		logger.Info("run finished", "rows_written", rowsWritten, "failures", failures)
	}()

	for _, brand := range run.Brands {
		book, bookErr := c.ledgers.ForSegment(brand.Segment)
		if bookErr != nil {
			return fmt.Errorf("brand %q: %w", brand.Brand, bookErr)
		}

		for _, country := range brand.Countries {
			name := models.NormalizeCountry(country.Name)
			tab, tabErr := book.Tab(name)
			if tabErr != nil {
				logger.Error("skipping country, no worksheet tab",
					"brand", brand.Brand, "country", name, "error", tabErr)
				for _, product := range country.Products {
					failures++
					c.recordFailure(ctx, run.ID, brand, name, product, tabErr)
				}
				continue
			}

			writer := ledger.NewWriter(tab)
			for _, product := range country.Products {
				if waitErr := c.pacer.Wait(ctx); waitErr != nil {
					return waitErr
				}

				row, rec, prodErr := c.processProduct(brand, name, product, writer)
				if prodErr != nil {
					failures++
					c.pacer.RecordError()
					logger.Error("product failed",
						"brand", brand.Brand, "country", name,
						"product", product.Name, "error", prodErr)
					c.recordFailure(ctx, run.ID, brand, name, product, prodErr)
					continue
				}

				if saveErr := book.Save(); saveErr != nil {
					return fmt.Errorf("failed to save ledger for %s: %w", brand.Segment, saveErr)
				}

				rowsWritten++
				c.pacer.RecordSuccess()
				c.recordRow(ctx, run.ID, brand, name, product, row, rec)
			}
		}
	}

	return nil
}

// processProduct extracts, writes the product row and fills in the
// competitor block when a CSV is attached.
func (c *Coordinator) processProduct(brand models.Brand, country string, product models.Product, writer *ledger.Writer) (int, models.ExtractionResult, error) {
	var result models.ExtractionResult

	if product.CategoryURL != "" {
		if err := c.nav.Open(product.CategoryURL); err != nil {
			return 0, result, fmt.Errorf("failed to open category page: %w", err)
		}
		err := c.retrier.Do("category revenue", func() error {
			metric, exErr := c.category.Extract()
			if exErr != nil {
				return exErr
			}
			result.CategoryRevenue = metric
			return nil
		})
		if err != nil {
			return 0, result, err
		}
	}

	// New sellers have no current product; their revenue cell stays empty.
	if brand.Segment != models.SegmentNewSeller && product.URL != "" {
		if err := c.nav.Open(product.URL); err != nil {
			return 0, result, fmt.Errorf("failed to open product page: %w", err)
		}
		err := c.retrier.Do("parent revenue", func() error {
			metric, exErr := c.category.ParentRevenue()
			if exErr != nil {
				return exErr
			}
			result.MonthlyParentRev = metric
			return nil
		})
		if err != nil {
			c.logger.Warn("parent revenue unavailable, leaving cell empty",
				"product", product.Name, "error", err)
		}
	}

	rec := models.ProductRecord{Product: product, Result: result}
	row, err := writer.AppendProductRow(rec, brand.Segment, country)
	if err != nil {
		return 0, result, fmt.Errorf("failed to append ledger row: %w", err)
	}

	if err := c.writeCompetitor(brand, country, product, writer, row); err != nil {
		c.logger.Warn("competitor block skipped",
			"product", product.Name, "row", row, "error", err)
	}

	return row, result, nil
}

// writeCompetitor picks the best competitor from the attached CSV and
// fills the competitor and pricing columns. The row's competitor cells
// must be empty; a populated cell means another process already claimed
// them.
func (c *Coordinator) writeCompetitor(brand models.Brand, country string, product models.Product, writer *ledger.Writer, row int) error {
	csvPath := product.CSVFilePath
	if csvPath == "" || product.Keyword == "" {
		return nil
	}
	if row <= 2 {
		return fmt.Errorf("row %d is inside the header block", row)
	}

	linkCol, mrevCol := ledger.CompetitorCols(brand.Segment)
	for _, col := range []int{linkCol, mrevCol} {
		val, err := writer.Tab().ReadCell(row, col)
		if err != nil {
			return err
		}
		if val != "" {
			return fmt.Errorf("competitor cell %d already occupied", col)
		}
	}

	table, err := picker.LoadFile(csvPath)
	if err != nil {
		return fmt.Errorf("failed to load competitor csv: %w", err)
	}
	comp := table.Pick(product.Keyword, c.now())

	var pm models.ProfitabilityMetrics
	if comp.URL != "" && c.profit != nil {
		err := c.retrier.Do("profitability metrics", func() error {
			metrics, exErr := c.profit.Extract(comp.URL)
			if exErr != nil {
				return exErr
			}
			pm = metrics
			return nil
		})
		if err != nil {
			c.logger.Warn("profitability metrics unavailable, writing competitor link only",
				"competitor", comp.URL, "error", err)
			pm = models.ProfitabilityMetrics{}
		} else {
			pm = extractor.HarmonizeCurrency(pm)
		}
	}

	return writer.WriteCompetitor(row, comp, pm, brand.Segment, country, c.competitorMonth())
}

func (c *Coordinator) recordRow(ctx context.Context, runID string, brand models.Brand, country string, product models.Product, row int, rec models.ExtractionResult) {
	if err := c.audit.RecordProduct(ctx, &store.RunProduct{
		RunID:           runID,
		Brand:           brand.Brand,
		Segment:         brand.Segment,
		Country:         country,
		ProductName:     product.Name,
		ProductURL:      product.URL,
		RowPosition:     &row,
		CategoryRevenue: rec.CategoryRevenue.Text,
		MonthlyRevenue:  rec.MonthlyParentRev.Text,
		Status:          store.ProductStatusWritten,
	}); err != nil {
		c.logger.Warn("failed to audit product row", "product", product.Name, "error", err)
	}

	if err := c.events.RowWritten(ctx, &events.RowWrittenPayload{
		RunID:       runID,
		Brand:       brand.Brand,
		Segment:     string(brand.Segment),
		Country:     country,
		ProductName: product.Name,
		Row:         row,
		CategoryRev: rec.CategoryRevenue.Text,
	}); err != nil {
		c.logger.Warn("failed to publish row written", "product", product.Name, "error", err)
	}
}

func (c *Coordinator) recordFailure(ctx context.Context, runID string, brand models.Brand, country string, product models.Product, prodErr error) {
	msg := prodErr.Error()
	if err := c.audit.RecordProduct(ctx, &store.RunProduct{
		RunID:        runID,
		Brand:        brand.Brand,
		Segment:      brand.Segment,
		Country:      country,
		ProductName:  product.Name,
		ProductURL:   product.URL,
		Status:       store.ProductStatusFailed,
		ErrorMessage: &msg,
	}); err != nil {
		c.logger.Warn("failed to audit product failure", "product", product.Name, "error", err)
	}

	if err := c.events.ProductFailed(ctx, &events.ProductFailedPayload{
		RunID:       runID,
		Brand:       brand.Brand,
		Country:     country,
		ProductName: product.Name,
		Error:       msg,
	}); err != nil {
		c.logger.Warn("failed to publish product failure", "product", product.Name, "error", err)
	}
}
