package models

import (
	"fmt"
	"strings"
	"time"
)

// SellerSegment selects the target ledger workbook and column layout for a run.
type SellerSegment string

const (
	SegmentNewSeller      SellerSegment = "new_seller"
	SegmentExistingSeller SellerSegment = "existing_seller"
	SegmentVendor         SellerSegment = "vendor"
)

// ParseSegment validates a seller segment string from a submission payload.
func ParseSegment(s string) (SellerSegment, error) {
	switch SellerSegment(strings.TrimSpace(strings.ToLower(s))) {
	case SegmentNewSeller:
		return SegmentNewSeller, nil
	case SegmentExistingSeller:
		return SegmentExistingSeller, nil
	case SegmentVendor:
		return SegmentVendor, nil
	}
	return "", fmt.Errorf("unknown seller segment %q", s)
}

// ValidCountries is the fixed set of supported country tabs.
var ValidCountries = []string{"US", "UK", "CAN", "AUS", "DE", "UAE"}

// NormalizeCountry uppercases a country name and maps the AU alias to AUS.
func NormalizeCountry(name string) string {
	c := strings.ToUpper(strings.TrimSpace(name))
	if c == "AU" {
		return "AUS"
	}
	return c
}

// IsValidCountry reports whether name (after normalization) is a supported tab.
func IsValidCountry(name string) bool {
	for _, c := range ValidCountries {
		if c == name {
			return true
		}
	}
	return false
}

// Product is one product entry inside a submitted run.
type Product struct {
	Name        string      `json:"productname"`
	URL         string      `json:"url"`
	Keyword     string      `json:"keyword"`
	CategoryURL string      `json:"categoryUrl"`
	CSVFile     string      `json:"csvFile,omitempty"`
	CSVFilePath string      `json:"csvFilePath,omitempty"`
	Projection  *Projection `json:"projection,omitempty"`
}

// Projection carries the unit/revenue/profit scenario values submitted with a
// product (low / base / high).
type Projection struct {
	LowUnits    int     `json:"low_total_sales"`
	BaseUnits   int     `json:"base_total_sales"`
	HighUnits   int     `json:"high_total_sales"`
	LowRevenue  float64 `json:"low_total_revenue"`
	BaseRevenue float64 `json:"base_total_revenue"`
	HighRevenue float64 `json:"high_total_revenue"`
	LowProfit   float64 `json:"low_total_profit"`
	BaseProfit  float64 `json:"base_total_profit_start_ads"`
	HighProfit  float64 `json:"high_total_profit"`
}

// Country groups the products submitted for one worksheet tab.
type Country struct {
	Name     string    `json:"name"`
	Products []Product `json:"products"`
}

// Brand is one brand block: a seller segment plus its countries. The segment
// is fixed for the lifetime of the block.
type Brand struct {
	Brand     string        `json:"brand"`
	Segment   SellerSegment `json:"seller_type"`
	Countries []Country     `json:"countries"`
}

// RunRequest is a full submission: the unit of work the queue schedules.
// UploadedFiles lists competitor CSVs the API saved for this run; they are
// removed once the run finishes.
type RunRequest struct {
	ID            string    `json:"id"`
	Brands        []Brand   `json:"brands"`
	UploadedFiles []string  `json:"uploaded_files,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ProductCount returns the total number of products across all brand blocks.
func (r *RunRequest) ProductCount() int {
	n := 0
	for _, b := range r.Brands {
		for _, c := range b.Countries {
			n += len(c.Products)
		}
	}
	return n
}
