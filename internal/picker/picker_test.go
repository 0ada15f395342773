package picker

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC)

func loadCSV(t *testing.T, data string) *Table {
	t.Helper()
	table, err := Load(strings.NewReader(data))
	require.NoError(t, err)
	return table
}

func TestLoadRejectsEmpty(t *testing.T) {
	_, err := Load(strings.NewReader("Product Details,URL\n"))
	assert.Error(t, err)
}

func TestPickHighestRecentRevenue(t *testing.T) {
	table := loadCSV(t, `Product Details,URL,Parent Level Revenue,Creation Date,Review Count
Gentle Face Wash 200ml,https://www.amazon.com/dp/A,"$12,000",2024-05-01,300
Foaming Face Wash,https://www.amazon.com/dp/B,"$45,000",2024-11-12,150
Old Face Wash Classic,https://www.amazon.com/dp/C,"$90,000",2019-01-01,200
Shampoo Bar,https://www.amazon.com/dp/D,"$99,000",2024-12-01,50
`)

	got := table.Pick("face wash", now)

	assert.Equal(t, "Foaming Face Wash", got.ProductDetails, "old listing and non-matching keyword are excluded")
	assert.Equal(t, "https://www.amazon.com/dp/B", got.URL)
	assert.Equal(t, "$45,000", got.ParentLevelRevenue)
}

func TestPickExcludesHighReviewCounts(t *testing.T) {
	table := loadCSV(t, `Product Details,URL,Parent Level Revenue,Creation Date,Review Count
Face Wash Incumbent,https://www.amazon.com/dp/A,"$500,000",2024-06-01,4821
Face Wash Entrant,https://www.amazon.com/dp/B,"$20,000",2024-06-01,900
`)

	got := table.Pick("face wash", now)
	assert.Equal(t, "Face Wash Entrant", got.ProductDetails)
}

func TestPickTieBreaksOnRecency(t *testing.T) {
	table := loadCSV(t, `Product Details,URL,Parent Level Revenue,Creation Date,Review Count
Face Wash Early,https://www.amazon.com/dp/A,"$30,000",2024-02-01,100
Face Wash Late,https://www.amazon.com/dp/B,"$30,000",2024-08-01,100
`)

	got := table.Pick("face wash", now)
	assert.Equal(t, "Face Wash Late", got.ProductDetails)
}

func TestPickFallsBackToLeastReviewed(t *testing.T) {
	// Every keyword match is over the review cap, so the fallback sorts
	// matches by fewest reviews.
	table := loadCSV(t, `Product Details,URL,Parent Level Revenue,Creation Date,Review Count
Face Wash A,https://www.amazon.com/dp/A,"$10,000",2024-01-01,5000
Face Wash B,https://www.amazon.com/dp/B,"$10,000",2024-01-01,2000
Soap,https://www.amazon.com/dp/C,"$10,000",2024-01-01,10
`)

	got := table.Pick("face wash", now)
	assert.Equal(t, "Face Wash B", got.ProductDetails)
}

func TestPickFallsBackToMostRecentWhenAllStale(t *testing.T) {
	// Candidates pass the review filter but none are recent enough, so
	// the fallback prefers the most recent creation date.
	table := loadCSV(t, `Product Details,URL,Parent Level Revenue,Creation Date,Review Count
Face Wash Oldest,https://www.amazon.com/dp/A,"$10,000",2018-01-01,100
Face Wash Newer,https://www.amazon.com/dp/B,"$10,000",2020-06-01,100
`)

	got := table.Pick("face wash", now)
	assert.Equal(t, "Face Wash Newer", got.ProductDetails)
}

func TestPickNoKeywordMatchReturnsFirstRow(t *testing.T) {
	table := loadCSV(t, `Product Details,URL,Parent Level Revenue,Creation Date,Review Count
Shampoo,https://www.amazon.com/dp/A,"$10,000",2024-01-01,100
Conditioner,https://www.amazon.com/dp/B,"$20,000",2024-01-01,100
`)

	got := table.Pick("face wash", now)
	assert.Equal(t, "Shampoo", got.ProductDetails)
}

func TestPickFallsBackToRevenueColumn(t *testing.T) {
	table := loadCSV(t, `Product Details,URL,Revenue,Creation Date,Review Count
Face Wash,https://www.amazon.com/dp/A,"$7,500",2024-05-01,100
`)

	got := table.Pick("face wash", now)
	assert.Equal(t, "$7,500", got.ParentLevelRevenue)
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"$12,345.67", 12345.67, true},
		{"($123.45)", -123.45, true},
		{"900", 900, true},
		{"", 0, false},
		{"N/A", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseNumber(tt.in)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
		if ok {
			assert.InDelta(t, tt.want, got, 1e-9, "input %q", tt.in)
		}
	}
}

func TestParseDateFormats(t *testing.T) {
	for _, in := range []string{
		"2025-08-01",
		"08/01/2025",
		"01-Aug-2025",
		"Aug 01, 2025",
		"2025.08.01",
	} {
		ts, ok := parseDate(in)
		require.True(t, ok, "input %q", in)
		assert.Equal(t, 2025, ts.Year(), "input %q", in)
		assert.Equal(t, time.August, ts.Month(), "input %q", in)
	}

	_, ok := parseDate("soon")
	assert.False(t, ok)
}
