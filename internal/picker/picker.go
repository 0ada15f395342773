// Package picker chooses the best competitor row out of an uploaded
// research CSV export: highest parent-level revenue among recent,
// low-review listings matching the keyword.
package picker

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/xray-ledger/internal/models"
)

// Column names as they appear in the export.
const (
	colProductDetails = "Product Details"
	colURL            = "URL"
	colParentRevenue  = "Parent Level Revenue"
	colRevenue        = "Revenue"
	colCreationDate   = "Creation Date"
	colReviewCount    = "Review Count"
)

const (
	// maxReviews caps how established a competitor may be. Listings past
	// this are incumbents, not comparable entrants.
	maxReviews = 1000
	// recencyYears bounds how old a qualifying listing's creation date
	// may be.
	recencyYears = 2
)

var dateFormats = []string{
	"2006-01-02",
	"01/02/2006",
	"02/01/2006",
	"02-Jan-2006",
	"Jan 02, 2006",
}

// Row is one CSV record keyed by header name.
type Row map[string]string

// Table is a parsed competitor export.
type Table struct {
	rows       []Row
	hasParent  bool
	hasRevenue bool
}

// Load parses a competitor CSV. The first record is the header; short
// records are tolerated.
func Load(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	t := &Table{}
	for _, h := range header {
		switch h {
		case colParentRevenue:
			t.hasParent = true
		case colRevenue:
			t.hasRevenue = true
		}
	}

	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv record: %w", err)
		}
		row := make(Row, len(header))
		for i, h := range header {
			if i < len(record) {
				row[h] = record[i]
			}
		}
		t.rows = append(t.rows, row)
	}

	if len(t.rows) == 0 {
		return nil, fmt.Errorf("csv contains no data rows")
	}
	return t, nil
}

// LoadFile parses a competitor CSV from disk.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.rows) }

// revenueOf reads the revenue column, preferring the parent-level figure.
func (t *Table) revenueOf(row Row) string {
	if t.hasParent {
		return row[colParentRevenue]
	}
	return row[colRevenue]
}

// parseNumber converts "$12,345.67" to 12345.67, honoring accounting
// parentheses for negatives.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if neg {
		v = -v
	}
	return v, true
}

// parseDate tries the export's known date formats, then a loose
// year/month/day split as a last resort.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateFormats {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}

	loose := strings.NewReplacer(".", "/", "-", "/").Replace(s)
	parts := strings.Split(loose, "/")
	if len(parts) == 3 {
		y, errY := strconv.Atoi(parts[0])
		m, errM := strconv.Atoi(parts[1])
		d, errD := strconv.Atoi(parts[2])
		if errY == nil && errM == nil && errD == nil && m >= 1 && m <= 12 && d >= 1 && d <= 31 {
			if y < 100 {
				y += 2000
			}
			return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

func matchesKeyword(row Row, keyword string) bool {
	return strings.Contains(
		strings.ToLower(row[colProductDetails]),
		strings.ToLower(keyword),
	)
}

func (t *Table) keywordRows(keyword string) []Row {
	var out []Row
	for _, row := range t.rows {
		if matchesKeyword(row, keyword) {
			out = append(out, row)
		}
	}
	return out
}

// nextBest is the escape hatch when no row passes the main filters: among
// keyword matches, take the most recently created (preferRecent) or the
// least reviewed; with no keyword match at all, the first row of the file.
func (t *Table) nextBest(keyword string, preferRecent bool) Row {
	matched := t.keywordRows(keyword)
	if len(matched) == 0 {
		return t.rows[0]
	}
	if len(matched) == 1 {
		return matched[0]
	}

	if preferRecent {
		sort.SliceStable(matched, func(i, j int) bool {
			di, oki := parseDate(matched[i][colCreationDate])
			dj, okj := parseDate(matched[j][colCreationDate])
			if oki != okj {
				return oki
			}
			return di.After(dj)
		})
		return matched[0]
	}

	var reviewed []Row
	for _, row := range matched {
		if _, ok := parseNumber(row[colReviewCount]); ok {
			reviewed = append(reviewed, row)
		}
	}
	if len(reviewed) == 0 {
		return matched[0]
	}
	sort.SliceStable(reviewed, func(i, j int) bool {
		ri, _ := parseNumber(reviewed[i][colReviewCount])
		rj, _ := parseNumber(reviewed[j][colReviewCount])
		return ri < rj
	})
	return reviewed[0]
}

// candidates returns keyword matches with a numeric review count at or
// under the cap. Empty result means the caller should fall back.
func (t *Table) candidates(keyword string) []Row {
	var out []Row
	for _, row := range t.keywordRows(keyword) {
		count, ok := parseNumber(row[colReviewCount])
		if !ok || count > maxReviews {
			continue
		}
		out = append(out, row)
	}
	return out
}

// Pick returns the best competitor: the qualifying row with the highest
// revenue created within the recency window, ties broken by the more
// recent creation date. Rows that fail every filter degrade to the
// next-best heuristics rather than returning nothing.
func (t *Table) Pick(keyword string, now time.Time) models.CompetitorRecord {
	candidates := t.candidates(keyword)
	if len(candidates) == 0 {
		return t.record(t.nextBest(keyword, false))
	}

	cutoff := now.AddDate(0, 0, -365*recencyYears)
	var best Row
	bestRev := 0.0

	for _, row := range candidates {
		created, ok := parseDate(row[colCreationDate])
		if !ok || created.Before(cutoff) {
			continue
		}
		rev, ok := parseNumber(t.revenueOf(row))
		if !ok {
			continue
		}

		switch {
		case best == nil || rev > bestRev:
			best = row
			bestRev = rev
		case rev == bestRev:
			prev, okPrev := parseDate(best[colCreationDate])
			if okPrev && created.After(prev) {
				best = row
			}
		}
	}

	if best == nil {
		return t.record(t.nextBest(keyword, true))
	}
	return t.record(best)
}

func (t *Table) record(row Row) models.CompetitorRecord {
	return models.CompetitorRecord{
		ProductDetails:     strings.TrimSpace(row[colProductDetails]),
		URL:                strings.TrimSpace(row[colURL]),
		ParentLevelRevenue: strings.TrimSpace(t.revenueOf(row)),
		CreationDate:       strings.TrimSpace(row[colCreationDate]),
	}
}
