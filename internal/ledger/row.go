package ledger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sells-group/xray-ledger/internal/models"
)

// FilledCols lists the base columns that get the machine-written highlight
// after a product row is appended.
var FilledCols = []int{
	ColNo, ColCategory, ColProducts, ColCurrentMRev, ColCategoryMRev,
	ColPPULow, ColUnitsLow, ColRevLow,
	ColPPUBase, ColUnitsBase, ColRevBase,
	ColPPUHigh, ColUnitsHigh, ColRevHigh,
}

func escapeQuotes(s string) string {
	return strings.ReplaceAll(s, `"`, `""`)
}

// Hyperlink renders a spreadsheet HYPERLINK formula. Embedded quotes in the
// url and text are doubled. An empty url yields the bare text instead.
func Hyperlink(url, text string) string {
	if text == "" {
		text = "link"
	}
	if url == "" {
		return text
	}
	return fmt.Sprintf(`=HYPERLINK("%s","%s")`, escapeQuotes(url), escapeQuotes(text))
}

// BuildProductRow maps one extracted product onto its sparse cell set for
// the given segment and country. Only populated cells appear in the map;
// the writer leaves every other column of the duplicated row untouched.
func BuildProductRow(rec models.ProductRecord, segment models.SellerSegment, country string) map[int]string {
	cells := make(map[int]string)
	set := func(col int, v string) {
		if v != "" {
			cells[col] = v
		}
	}

	set(ColCategory, Hyperlink(rec.CategoryURL, rec.Keyword))
	set(ColProducts, Hyperlink(rec.URL, rec.Name))
	set(ColCurrentMRev, rec.Result.MonthlyParentRev.Text)
	set(ColCategoryMRev, rec.Result.CategoryRevenue.Text)

	// A submitted projection writes all three scenarios, a 0-unit
	// scenario included; only a missing projection leaves them blank.
	if p := rec.Projection; p != nil {
		units := ResolveUnits(segment, country)
		cells[units.Low] = strconv.Itoa(p.LowUnits)
		cells[units.Base] = strconv.Itoa(p.BaseUnits)
		cells[units.High] = strconv.Itoa(p.HighUnits)
	}

	if segment == models.SegmentNewSeller {
		delete(cells, ColCurrentMRev)
	}

	return cells
}

// CompetitorCols returns the competitor link and revenue columns for a
// segment. New-seller sheets have no competitor pair of their own; the link
// and revenue land in the two cells right of the product column instead.
func CompetitorCols(segment models.SellerSegment) (link, mrev int) {
	if segment == models.SegmentNewSeller {
		return ColProducts + 1, ColProducts + 2
	}
	return ColCompetitor, ColCompMRev
}

// BuildCompetitorCells maps the competitor phase output onto the pricing and
// competitor columns for the given segment and country. The storage fee is
// chosen for the given calendar month.
func BuildCompetitorCells(comp models.CompetitorRecord, pm models.ProfitabilityMetrics, segment models.SellerSegment, country string, month int) map[int]string {
	cells := make(map[int]string)
	set := func(col int, v string) {
		if v != "" {
			cells[col] = v
		}
	}

	linkCol, mrevCol := CompetitorCols(segment)
	if comp.URL != "" || comp.ProductDetails != "" {
		cells[linkCol] = Hyperlink(comp.URL, comp.ProductDetails)
	}
	set(mrevCol, comp.ParentLevelRevenue)

	// Pricing cells carry the numeric value; the symbol-bearing text stays
	// in events and audit only.
	setNum := func(col int, m models.Metric) {
		if !m.IsZero() {
			cells[col] = strconv.FormatFloat(m.Number, 'f', 2, 64)
		}
	}

	pricing := ResolvePricing(segment, country)
	setNum(pricing.Price, pm.Price)
	if segment != models.SegmentVendor {
		setNum(pricing.FBAFees, pm.FBAFees)
	}
	setNum(pricing.StorageFees, pm.StorageFeeForMonth(month))

	return cells
}

// Writer appends extracted product rows to one country tab.
type Writer struct {
	tab *Tab
}

// NewWriter wraps a country tab for appends.
func NewWriter(tab *Tab) *Writer {
	return &Writer{tab: tab}
}

// Tab exposes the underlying country tab.
func (w *Writer) Tab() *Tab {
	return w.tab
}

// AppendProductRow duplicates the last filled row, assigns the next
// sequence number, writes the product's cells and highlights the written
// base columns. Returns the new row's 1-based position.
func (w *Writer) AppendProductRow(rec models.ProductRecord, segment models.SellerSegment, country string) (int, error) {
	row, err := w.tab.DuplicateLastRow()
	if err != nil {
		return 0, err
	}

	seq, err := w.tab.NextSequenceNumber()
	if err != nil {
		return 0, err
	}

	cells := BuildProductRow(rec, segment, country)
	cells[ColNo] = strconv.Itoa(seq)

	if err := w.tab.WriteCells(row, cells); err != nil {
		return 0, err
	}

	// The duplicate carries the template's current revenue value; a new
	// seller has no current product, so that cell must not survive.
	if segment == models.SegmentNewSeller {
		if err := w.tab.ClearCells(row, ColCurrentMRev); err != nil {
			return 0, err
		}
	}

	if err := w.tab.Highlight(row, FilledCols); err != nil {
		return 0, err
	}
	return row, nil
}

// WriteCompetitor overwrites the competitor and pricing cells of an
// existing row. Empty metric texts leave their columns untouched.
func (w *Writer) WriteCompetitor(row int, comp models.CompetitorRecord, pm models.ProfitabilityMetrics, segment models.SellerSegment, country string, month int) error {
	return w.tab.WriteCells(row, BuildCompetitorCells(comp, pm, segment, country, month))
}
