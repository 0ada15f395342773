package currency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected float64
		hasError bool
	}{
		{name: "US grouped with decimal", input: "$12,345.67", expected: 12345.67},
		{name: "UK grouped", input: "£605,607", expected: 605607},
		{name: "EU dot grouping", input: "€605.607", expected: 605607},
		{name: "EU decimal comma", input: "€1.234,56", expected: 1234.56},
		{name: "space grouping", input: "605 607", expected: 605607},
		{name: "NBSP grouping", input: "1 234 567", expected: 1234567},
		{name: "apostrophe grouping", input: "1'234'567", expected: 1234567},
		{name: "AED with comma decimal", input: "AED 1,2M", expected: 1200000},
		{name: "billions suffix", input: "$1.2B", expected: 1200000000},
		{name: "thousands suffix", input: "45K", expected: 45000},
		{name: "plain integer", input: "4768718", expected: 4768718},
		{name: "bare comma grouping", input: "4,768,718", expected: 4768718},
		{name: "accounting negative", input: "(123.45)", expected: -123.45},
		{name: "negative with symbol", input: "($1,500.00)", expected: -1500},
		{name: "leading minus", input: "-123.45", expected: -123.45},
		{name: "minus after symbol", input: "$-1,500.00", expected: -1500},
		{name: "mixed separators keep decimal", input: "1.234,567", expected: 1234.567},
		{name: "repeated dots group", input: "605.607.123", expected: 605607123},
		{name: "AU dollar prefix", input: "A$19.99", expected: 19.99},
		{name: "CA dollar prefix", input: "CA$7.88", expected: 7.88},
		{name: "empty", input: "", hasError: true},
		{name: "bare symbol", input: "$", hasError: true},
		{name: "whitespace only", input: "   ", hasError: true},
		{name: "no digits", input: "N/A", hasError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			val, err := Parse(tt.input)
			if tt.hasError {
				assert.ErrorIs(t, err, ErrUnparseable)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, val, 0.001)
		})
	}
}

// Normalizing the canonical output again must yield the same value.
func TestParseIdempotent(t *testing.T) {
	inputs := []string{"$12,345.67", "€605.607", "£605,607", "1.2M", "(123.45)", "($1,500.00)", "£9.99"}

	for _, in := range inputs {
		first, err := Parse(in)
		require.NoError(t, err, in)

		second, err := Parse(Format("$", first))
		require.NoError(t, err, in)
		assert.InDelta(t, first, second, 0.001, in)
	}
}

func TestParseRevenueRounds(t *testing.T) {
	v, err := ParseRevenue("$231,767.51")
	require.NoError(t, err)
	assert.Equal(t, float64(231768), v)

	v, err = ParseRevenue("1.2M")
	require.NoError(t, err)
	assert.Equal(t, float64(1200000), v)
}

func TestParseUnitPricePrecision(t *testing.T) {
	v, err := ParseUnitPrice("$7.888")
	require.NoError(t, err)
	assert.Equal(t, 7.89, v)

	v, err = ParseUnitPrice("£6.74")
	require.NoError(t, err)
	assert.Equal(t, 6.74, v)
}

func TestNumberFallsBackToZero(t *testing.T) {
	assert.Equal(t, float64(0), Number("no value"))
	assert.Equal(t, 19.99, Number("$19.99"))
}

func TestSymbolDetection(t *testing.T) {
	assert.Equal(t, "£", Symbol("£6.74"))
	assert.Equal(t, "AED", Symbol("AED 12.00"))
	assert.Equal(t, "A$", Symbol("A$5.12"))
	assert.Equal(t, "CA$", Symbol("CA$6.74"))
	assert.Equal(t, "", Symbol("12.50"))

	// First symbol wins across fields; dollar fallback.
	assert.Equal(t, "€", SymbolOf("12.50", "€3.42", "£6.74"))
	assert.Equal(t, "$", SymbolOf("12.50", "88"))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "€3.42", Format("€", 3.42))
	assert.Equal(t, "$1500.00", Format("$", 1500))
}
