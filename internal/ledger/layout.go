// Package ledger writes extraction results into per-country worksheet tabs
// of per-segment spreadsheet workbooks, resolving the physical column each
// logical metric occupies for a given (segment, country) combination.
package ledger

import (
	"github.com/sells-group/xray-ledger/internal/models"
)

// Logical column slots of a ledger row (0-based). The sheet template is 32
// columns wide; positions here are the base offsets before any segment or
// region shift is applied.
const (
	ColNo           = 0
	ColCategory     = 1
	ColProducts     = 2
	ColCurrentMRev  = 3
	ColCategoryMRev = 4

	ColCompetitor = 6
	ColCompMRev   = 7

	ColPrice       = 9
	ColFBAFees     = 11
	ColStorageFees = 13

	ColPPULow   = 17
	ColUnitsLow = 18
	ColRevLow   = 19

	ColPPUBase   = 21
	ColUnitsBase = 22
	ColRevBase   = 23

	ColPPUHigh   = 25
	ColUnitsHigh = 26
	ColRevHigh   = 27

	// RowWidth is the fixed logical row width of every country tab.
	RowWidth = 32
)

// UnitsOffsets are the resolved physical columns for the three projected
// unit-count scenarios. The three always shift together.
type UnitsOffsets struct {
	Low  int
	Base int
	High int
}

// PricingOffsets are the resolved physical columns for the competitor
// pricing group (price / FBA fee / storage fee). Resolved as one group,
// never independently.
type PricingOffsets struct {
	Price       int
	FBAFees     int
	StorageFees int
}

// regionClass partitions countries into the segment's home marketplaces and
// everything else. Vendors treat only US/CAN as domestic; the seller
// segments include AUS.
type regionClass int

const (
	regionDomestic regionClass = iota
	regionInternational
)

func classify(segment models.SellerSegment, country string) regionClass {
	domestic := map[string]bool{"US": true, "CAN": true}
	if segment != models.SegmentVendor {
		domestic["AUS"] = true
	}
	if domestic[country] {
		return regionDomestic
	}
	return regionInternational
}

// The shift tables encode the fixed visual template of each spreadsheet
// variant. They are data, not logic: each entry is the delta applied to the
// base offsets for one (segment, region class) combination.

// unitsShift is the uniform delta applied to all three unit columns.
var unitsShift = map[models.SellerSegment]map[regionClass]int{
	models.SegmentVendor: {
		regionDomestic:      +2,
		regionInternational: +3,
	},
	models.SegmentExistingSeller: {
		regionDomestic:      0,
		regionInternational: +1,
	},
	models.SegmentNewSeller: {
		regionDomestic:      -2,
		regionInternational: -1,
	},
}

// pricingShift holds per-column deltas as [price, fbaFees, storageFees].
var pricingShift = map[models.SellerSegment]map[regionClass][3]int{
	models.SegmentVendor: {
		regionDomestic:      {0, +2, +2},
		regionInternational: {0, 0, +3},
	},
	models.SegmentExistingSeller: {
		regionDomestic:      {0, 0, 0},
		regionInternational: {0, +1, +1},
	},
	models.SegmentNewSeller: {
		regionDomestic:      {-2, -2, -2},
		regionInternational: {-2, -1, -1},
	},
}

// ResolveUnits returns the physical columns of the low/base/high unit-count
// cells for the given segment and (normalized) country. Pure function: every
// call computes fresh offsets from the base constants.
func ResolveUnits(segment models.SellerSegment, country string) UnitsOffsets {
	d := unitsShift[segment][classify(segment, country)]
	return UnitsOffsets{
		Low:  ColUnitsLow + d,
		Base: ColUnitsBase + d,
		High: ColUnitsHigh + d,
	}
}

// ResolvePricing returns the physical columns of the competitor pricing
// group for the given segment and (normalized) country.
func ResolvePricing(segment models.SellerSegment, country string) PricingOffsets {
	d := pricingShift[segment][classify(segment, country)]
	return PricingOffsets{
		Price:       ColPrice + d[0],
		FBAFees:     ColFBAFees + d[1],
		StorageFees: ColStorageFees + d[2],
	}
}
