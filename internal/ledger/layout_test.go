package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/xray-ledger/internal/models"
)

func TestResolveUnits(t *testing.T) {
	tests := []struct {
		name    string
		segment models.SellerSegment
		country string
		low     int
		base    int
		high    int
	}{
		{name: "vendor US", segment: models.SegmentVendor, country: "US", low: 20, base: 24, high: 28},
		{name: "vendor CAN", segment: models.SegmentVendor, country: "CAN", low: 20, base: 24, high: 28},
		{name: "vendor UK", segment: models.SegmentVendor, country: "UK", low: 21, base: 25, high: 29},
		{name: "vendor AUS is international", segment: models.SegmentVendor, country: "AUS", low: 21, base: 25, high: 29},
		{name: "existing US", segment: models.SegmentExistingSeller, country: "US", low: 18, base: 22, high: 26},
		{name: "existing AUS", segment: models.SegmentExistingSeller, country: "AUS", low: 18, base: 22, high: 26},
		{name: "existing DE", segment: models.SegmentExistingSeller, country: "DE", low: 19, base: 23, high: 27},
		{name: "new seller US", segment: models.SegmentNewSeller, country: "US", low: 16, base: 20, high: 24},
		{name: "new seller UK", segment: models.SegmentNewSeller, country: "UK", low: 17, base: 21, high: 25},
		{name: "new seller UAE", segment: models.SegmentNewSeller, country: "UAE", low: 17, base: 21, high: 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveUnits(tt.segment, tt.country)
			assert.Equal(t, tt.low, got.Low)
			assert.Equal(t, tt.base, got.Base)
			assert.Equal(t, tt.high, got.High)
		})
	}
}

func TestResolvePricing(t *testing.T) {
	tests := []struct {
		name    string
		segment models.SellerSegment
		country string
		price   int
		fba     int
		storage int
	}{
		{name: "existing US", segment: models.SegmentExistingSeller, country: "US", price: 9, fba: 11, storage: 13},
		{name: "existing UK", segment: models.SegmentExistingSeller, country: "UK", price: 9, fba: 12, storage: 14},
		{name: "vendor US", segment: models.SegmentVendor, country: "US", price: 9, fba: 13, storage: 15},
		{name: "vendor DE", segment: models.SegmentVendor, country: "DE", price: 9, fba: 11, storage: 16},
		{name: "new seller US", segment: models.SegmentNewSeller, country: "US", price: 7, fba: 9, storage: 11},
		{name: "new seller DE", segment: models.SegmentNewSeller, country: "DE", price: 7, fba: 10, storage: 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolvePricing(tt.segment, tt.country)
			assert.Equal(t, tt.price, got.Price)
			assert.Equal(t, tt.fba, got.FBAFees)
			assert.Equal(t, tt.storage, got.StorageFees)
		})
	}
}

// Resolution must be deterministic and free of cross-call state: repeated
// calls with identical inputs yield identical offsets, and interleaving
// other resolutions does not disturb them.
func TestResolveIsStateless(t *testing.T) {
	for _, segment := range []models.SellerSegment{
		models.SegmentNewSeller, models.SegmentExistingSeller, models.SegmentVendor,
	} {
		for _, country := range models.ValidCountries {
			first := ResolveUnits(segment, country)
			firstPricing := ResolvePricing(segment, country)

			// Interleave resolutions for every other combination.
			for _, s2 := range []models.SellerSegment{models.SegmentVendor, models.SegmentNewSeller} {
				for _, c2 := range models.ValidCountries {
					ResolveUnits(s2, c2)
					ResolvePricing(s2, c2)
				}
			}

			assert.Equal(t, first, ResolveUnits(segment, country), "%s/%s", segment, country)
			assert.Equal(t, firstPricing, ResolvePricing(segment, country), "%s/%s", segment, country)
		}
	}
}

// The three unit columns keep their relative spacing under every shift, and
// likewise the pricing group is always produced as one unit.
func TestGroupsMoveTogether(t *testing.T) {
	for _, segment := range []models.SellerSegment{
		models.SegmentNewSeller, models.SegmentExistingSeller, models.SegmentVendor,
	} {
		for _, country := range models.ValidCountries {
			u := ResolveUnits(segment, country)
			assert.Equal(t, ColUnitsBase-ColUnitsLow, u.Base-u.Low, "%s/%s", segment, country)
			assert.Equal(t, ColUnitsHigh-ColUnitsBase, u.High-u.Base, "%s/%s", segment, country)
		}
	}
}
