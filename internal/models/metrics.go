package models

// Metric pairs the display text captured from the page with its normalized
// numeric value. The number is always derived from the text, so the two stay
// consistent even when extraction went through a fallback path.
type Metric struct {
	Text   string  `json:"text"`
	Number float64 `json:"number"`
}

// IsZero reports whether the metric was never populated.
func (m Metric) IsZero() bool {
	return m.Text == "" && m.Number == 0
}

// ExtractionResult holds everything scraped for one product. Immutable once
// extraction finishes; consumed exactly once by the ledger writer.
type ExtractionResult struct {
	CategoryRevenue  Metric `json:"category_revenue"`
	MonthlyParentRev Metric `json:"monthly_revenue"`
}

// ProfitabilityMetrics is the calculator read-out for one product page.
// Storage fees carry both seasonal rate schedules; the writer picks the
// active one by calendar month.
type ProfitabilityMetrics struct {
	Price            Metric `json:"product_price"`
	FBAFees          Metric `json:"fba_fees"`
	StorageFeeJanSep Metric `json:"storage_fee_jan_sep"`
	StorageFeeOctDec Metric `json:"storage_fee_oct_dec"`
}

// StorageFeeForMonth returns the storage fee in effect for the given month
// (1-12). Amazon switches to the peak rate schedule in October.
func (p ProfitabilityMetrics) StorageFeeForMonth(month int) Metric {
	if month >= 10 {
		return p.StorageFeeOctDec
	}
	return p.StorageFeeJanSep
}

// CompetitorRecord is the opaque best-candidate row returned by the CSV
// picker.
type CompetitorRecord struct {
	ProductDetails     string `json:"product_details"`
	URL                string `json:"url"`
	ParentLevelRevenue string `json:"parent_level_revenue"`
	CreationDate       string `json:"creation_date"`
}

// ProductRecord is a product together with its extraction result, ready for
// the ledger.
type ProductRecord struct {
	Product
	Result ExtractionResult `json:"result"`
}
