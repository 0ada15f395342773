package runner

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/sells-group/xray-ledger/internal/events"
	"github.com/sells-group/xray-ledger/internal/ledger"
	"github.com/sells-group/xray-ledger/internal/models"
	"github.com/sells-group/xray-ledger/internal/retry"
	"github.com/sells-group/xray-ledger/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type stubNav struct {
	opened []string
	err    error
}

func (n *stubNav) Open(url string) error {
	if n.err != nil {
		return n.err
	}
	n.opened = append(n.opened, url)
	return nil
}

type stubCategory struct {
	category models.Metric
	parent   models.Metric
	err      error
}

func (s *stubCategory) Extract() (models.Metric, error) {
	if s.err != nil {
		return models.Metric{}, s.err
	}
	return s.category, nil
}

func (s *stubCategory) ParentRevenue() (models.Metric, error) {
	if s.err != nil {
		return models.Metric{}, s.err
	}
	return s.parent, nil
}

type stubProfit struct {
	pm   models.ProfitabilityMetrics
	urls []string
	err  error
}

func (s *stubProfit) Extract(productURL string) (models.ProfitabilityMetrics, error) {
	s.urls = append(s.urls, productURL)
	if s.err != nil {
		return models.ProfitabilityMetrics{}, s.err
	}
	return s.pm, nil
}

type captureSink struct {
	started   []*events.RunStartedPayload
	rows      []*events.RowWrittenPayload
	failed    []*events.ProductFailedPayload
	completed []*events.RunCompletedPayload
}

func (c *captureSink) RunStarted(_ context.Context, p *events.RunStartedPayload) error {
	c.started = append(c.started, p)
	return nil
}

func (c *captureSink) RowWritten(_ context.Context, p *events.RowWrittenPayload) error {
	c.rows = append(c.rows, p)
	return nil
}

func (c *captureSink) ProductFailed(_ context.Context, p *events.ProductFailedPayload) error {
	c.failed = append(c.failed, p)
	return nil
}

func (c *captureSink) RunCompleted(_ context.Context, p *events.RunCompletedPayload) error {
	c.completed = append(c.completed, p)
	return nil
}

type captureAudit struct {
	started  []string
	finished []string
	products []*store.RunProduct
}

func (c *captureAudit) MarkStarted(_ context.Context, id string) error {
	c.started = append(c.started, id)
	return nil
}

func (c *captureAudit) MarkFinished(_ context.Context, id string, _ error) error {
	c.finished = append(c.finished, id)
	return nil
}

func (c *captureAudit) RecordProduct(_ context.Context, rp *store.RunProduct) error {
	c.products = append(c.products, rp)
	return nil
}

// newLedgerSet writes one workbook per segment and opens them as a Set.
// populate receives the workbook file keyed by segment.
func newLedgerSet(t *testing.T, populate map[models.SellerSegment]func(f *excelize.File)) (*ledger.Set, map[models.SellerSegment]string) {
	t.Helper()

	dir := t.TempDir()
	paths := map[models.SellerSegment]string{}
	for _, segment := range []models.SellerSegment{
		models.SegmentNewSeller, models.SegmentExistingSeller, models.SegmentVendor,
	} {
		f := excelize.NewFile()
		for _, country := range models.ValidCountries {
			_, err := f.NewSheet(country)
			require.NoError(t, err)
		}
		require.NoError(t, f.DeleteSheet("Sheet1"))
		if fn, ok := populate[segment]; ok && fn != nil {
			fn(f)
		}

		path := filepath.Join(dir, string(segment)+".xlsx")
		require.NoError(t, f.SaveAs(path))
		require.NoError(t, f.Close())
		paths[segment] = path
	}

	set, err := ledger.OpenSet(paths, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { set.Close() })
	return set, paths
}

func fastRetrier() *retry.Orchestrator {
	return retry.New(1, 0, testLogger())
}

func TestRunNewSellerUK(t *testing.T) {
	set, paths := newLedgerSet(t, map[models.SellerSegment]func(f *excelize.File){
		models.SegmentNewSeller: func(f *excelize.File) {
			f.SetCellValue("UK", "A1", "No.")
			f.SetCellValue("UK", "A2", 4)
			f.SetCellValue("UK", "D2", "$9,999")
		},
	})

	sink := &captureSink{}
	audit := &captureAudit{}
	nav := &stubNav{}
	coordinator := NewCoordinator(Deps{
		Ledgers:  set,
		Nav:      nav,
		Category: &stubCategory{category: models.Metric{Text: "4,768,718", Number: 4768718}},
		Profit:   &stubProfit{},
		Retrier:  fastRetrier(),
		Events:   sink,
		Audit:    audit,
		Logger:   testLogger(),
	})

	run := &models.RunRequest{
		ID:        "run-uk-1",
		CreatedAt: time.Now(),
		Brands: []models.Brand{{
			Brand:   "Acme",
			Segment: models.SegmentNewSeller,
			Countries: []models.Country{{
				Name: "UK",
				Products: []models.Product{{
					Name:        "Acme Widget",
					URL:         "https://www.amazon.co.uk/dp/B0TEST",
					CategoryURL: "https://www.amazon.co.uk/s?k=widgets",
					Projection:  &models.Projection{LowUnits: 63, BaseUnits: 96, HighUnits: 135},
				}},
			}},
		}},
	}

	require.NoError(t, coordinator.Run(context.Background(), run))

	f, err := excelize.OpenFile(paths[models.SegmentNewSeller])
	require.NoError(t, err)
	defer f.Close()

	seq, err := f.GetCellValue("UK", "A3")
	require.NoError(t, err)
	assert.Equal(t, "5", seq)

	// UK is international, so the new-seller units columns shift left by one.
	for cell, want := range map[string]string{
		"R3": "63", "V3": "96", "Z3": "135",
	} {
		got, err := f.GetCellValue("UK", cell)
		require.NoError(t, err)
		assert.Equal(t, want, got, cell)
	}

	catRev, err := f.GetCellValue("UK", "E3")
	require.NoError(t, err)
	assert.Equal(t, "4,768,718", catRev)

	current, err := f.GetCellValue("UK", "D3")
	require.NoError(t, err)
	assert.Empty(t, current, "new seller current revenue must stay empty")

	require.Len(t, sink.rows, 1)
	assert.Equal(t, 3, sink.rows[0].Row)
	require.Len(t, sink.completed, 1)
	assert.Equal(t, 1, sink.completed[0].RowsWritten)
	assert.Equal(t, 0, sink.completed[0].Failures)

	require.Len(t, audit.products, 1)
	assert.Equal(t, store.ProductStatusWritten, audit.products[0].Status)

	// Category page only; new sellers have no product page to read.
	assert.Equal(t, []string{"https://www.amazon.co.uk/s?k=widgets"}, nav.opened)
}

func TestRunExistingSellerWithCompetitor(t *testing.T) {
	set, paths := newLedgerSet(t, map[models.SellerSegment]func(f *excelize.File){
		models.SegmentExistingSeller: func(f *excelize.File) {
			f.SetCellValue("US", "A1", "No.")
			f.SetCellValue("US", "A2", 1)
		},
	})

	csvPath := filepath.Join(t.TempDir(), "competitors.csv")
	csv := "Product Details,URL,Parent Level Revenue,Creation Date,Review Count\n" +
		"Widget Pro,https://www.amazon.com/dp/B0COMP,\"83,091.29\",2025-03-01,120\n" +
		"Widget Classic,https://www.amazon.com/dp/B0OLD,\"99,000.00\",2019-01-01,80\n"
	require.NoError(t, os.WriteFile(csvPath, []byte(csv), 0o644))

	profit := &stubProfit{pm: models.ProfitabilityMetrics{
		Price:            models.Metric{Text: "$31.00", Number: 31},
		FBAFees:          models.Metric{Text: "$4.37", Number: 4.37},
		StorageFeeJanSep: models.Metric{Text: "$0.08", Number: 0.08},
		StorageFeeOctDec: models.Metric{Text: "$0.38", Number: 0.38},
	}}

	coordinator := NewCoordinator(Deps{
		Ledgers: set,
		Nav:     &stubNav{},
		Category: &stubCategory{
			category: models.Metric{Text: "$1,2M", Number: 1200000},
			parent:   models.Metric{Text: "$88,000", Number: 88000},
		},
		Profit:          profit,
		Retrier:         fastRetrier(),
		Logger:          testLogger(),
		CompetitorMonth: 11,
		Now:             func() time.Time { return time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC) },
	})

	run := &models.RunRequest{
		ID:        "run-us-1",
		CreatedAt: time.Now(),
		Brands: []models.Brand{{
			Brand:   "Acme",
			Segment: models.SegmentExistingSeller,
			Countries: []models.Country{{
				Name: "US",
				Products: []models.Product{{
					Name:        "Acme Widget",
					URL:         "https://www.amazon.com/dp/B0TEST",
					CategoryURL: "https://www.amazon.com/s?k=widgets",
					Keyword:     "widget",
					CSVFilePath: csvPath,
				}},
			}},
		}},
	}

	require.NoError(t, coordinator.Run(context.Background(), run))

	// The recent candidate wins over the higher-revenue stale one.
	assert.Equal(t, []string{"https://www.amazon.com/dp/B0COMP"}, profit.urls)

	f, err := excelize.OpenFile(paths[models.SegmentExistingSeller])
	require.NoError(t, err)
	defer f.Close()

	current, err := f.GetCellValue("US", "D3")
	require.NoError(t, err)
	assert.Equal(t, "$88,000", current)

	link, err := f.GetCellFormula("US", "G3")
	require.NoError(t, err)
	assert.Contains(t, link, "HYPERLINK")
	assert.Contains(t, link, "B0COMP")

	mrev, err := f.GetCellValue("US", "H3")
	require.NoError(t, err)
	assert.Equal(t, "83,091.29", mrev)

	// Existing seller, domestic tab: pricing columns sit at their base
	// offsets and hold numeric values. Month 11 selects the peak season
	// storage fee.
	for cell, want := range map[string]string{
		"J3": "31", "L3": "4.37", "N3": "0.38",
	} {
		got, err := f.GetCellValue("US", cell)
		require.NoError(t, err)
		assert.Equal(t, want, got, cell)
	}
}

func TestRunIsolatesProductFailures(t *testing.T) {
	set, paths := newLedgerSet(t, map[models.SellerSegment]func(f *excelize.File){
		models.SegmentVendor: func(f *excelize.File) {
			f.SetCellValue("DE", "A1", "No.")
			f.SetCellValue("DE", "A2", 7)
		},
	})

	sink := &captureSink{}
	audit := &captureAudit{}
	calls := 0
	category := &flakyCategory{
		category:  models.Metric{Text: "500,000", Number: 500000},
		failFirst: &calls,
	}

	coordinator := NewCoordinator(Deps{
		Ledgers:  set,
		Nav:      &stubNav{},
		Category: category,
		Profit:   &stubProfit{},
		Retrier:  fastRetrier(),
		Events:   sink,
		Audit:    audit,
		Logger:   testLogger(),
	})

	run := &models.RunRequest{
		ID:        "run-de-1",
		CreatedAt: time.Now(),
		Brands: []models.Brand{{
			Brand:   "Acme",
			Segment: models.SegmentVendor,
			Countries: []models.Country{{
				Name: "DE",
				Products: []models.Product{
					{Name: "Broken", CategoryURL: "https://www.amazon.de/s?k=broken"},
					{Name: "Fine", CategoryURL: "https://www.amazon.de/s?k=fine"},
				},
			}},
		}},
	}

	require.NoError(t, coordinator.Run(context.Background(), run))

	require.Len(t, sink.failed, 1)
	assert.Equal(t, "Broken", sink.failed[0].ProductName)
	require.Len(t, sink.completed, 1)
	assert.Equal(t, 1, sink.completed[0].RowsWritten)
	assert.Equal(t, 1, sink.completed[0].Failures)

	require.Len(t, audit.products, 2)
	assert.Equal(t, store.ProductStatusFailed, audit.products[0].Status)
	assert.Equal(t, store.ProductStatusWritten, audit.products[1].Status)

	f, err := excelize.OpenFile(paths[models.SegmentVendor])
	require.NoError(t, err)
	defer f.Close()

	seq, err := f.GetCellValue("DE", "A3")
	require.NoError(t, err)
	assert.Equal(t, "8", seq)
}

// flakyCategory fails its first Extract call and succeeds afterwards.
type flakyCategory struct {
	category  models.Metric
	failFirst *int
}

func (s *flakyCategory) Extract() (models.Metric, error) {
	*s.failFirst++
	if *s.failFirst == 1 {
		return models.Metric{}, errors.New("overlay not detected")
	}
	return s.category, nil
}

func (s *flakyCategory) ParentRevenue() (models.Metric, error) {
	return models.Metric{}, errors.New("not available")
}

func TestRunUnknownCountryTabFailsProducts(t *testing.T) {
	set, _ := newLedgerSet(t, nil)

	sink := &captureSink{}
	coordinator := NewCoordinator(Deps{
		Ledgers:  set,
		Nav:      &stubNav{},
		Category: &stubCategory{},
		Profit:   &stubProfit{},
		Retrier:  fastRetrier(),
		Events:   sink,
		Logger:   testLogger(),
	})

	run := &models.RunRequest{
		ID: "run-fr-1",
		Brands: []models.Brand{{
			Brand:   "Acme",
			Segment: models.SegmentExistingSeller,
			Countries: []models.Country{{
				Name:     "FR",
				Products: []models.Product{{Name: "Unplaceable"}},
			}},
		}},
	}

	require.NoError(t, coordinator.Run(context.Background(), run))

	require.Len(t, sink.failed, 1)
	require.Len(t, sink.completed, 1)
	assert.Equal(t, 0, sink.completed[0].RowsWritten)
	assert.Equal(t, 1, sink.completed[0].Failures)
}
