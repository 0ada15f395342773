// Package currency normalizes the heterogeneous currency strings the overlay
// renders (mixed thousands/decimal separators, symbol prefixes, K/M/B
// suffixes) into canonical numeric values.
package currency

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ErrUnparseable is returned when the input contains no digits after
// cleaning (for example a bare currency symbol).
var ErrUnparseable = errors.New("currency: no numeric content")

var (
	suffixRe    = regexp.MustCompile(`(?i)([KMB])\s*$`)
	separatorRe = regexp.MustCompile("[    ⁠']")
	spaceRunRe  = regexp.MustCompile(`\s+`)
	nonDigitRe  = regexp.MustCompile(`[^\d]`)
	keepRe      = regexp.MustCompile("[^\\d.,     ⁠']")
	symbolRe    = regexp.MustCompile(`(AU\$|A\$|CA\$|C\$|AED|€|£|\$)`)
)

var suffixMultipliers = map[string]float64{
	"K": 1e3,
	"M": 1e6,
	"B": 1e9,
}

// Parse extracts the numeric value from a currency-formatted string.
//
// The decimal separator is taken to be the last '.' or ',' with a digit on
// both sides; every separator before it is treated as grouping and dropped.
// A trailing three-digit group is grouping, not a decimal fraction, unless
// the other separator class appears earlier in the string ("1.234,567" keeps
// its comma decimal, "£605,607" and "€605.607" both mean 605607).
// Accounting-style parentheses and a minus sign ahead of the first digit
// negate the value.
func Parse(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrUnparseable
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if i := strings.IndexAny(s, "0123456789"); i > 0 && strings.Contains(s[:i], "-") {
		negative = true
	}

	mult := 1.0
	if m := suffixRe.FindStringSubmatchIndex(s); m != nil {
		suffix := strings.ToUpper(s[m[2]:m[3]])
		mult = suffixMultipliers[suffix]
		s = strings.TrimSpace(s[:m[0]])
	}

	// Keep digits, dots, commas and the whitespace-family grouping
	// characters; everything else (symbols, ISO codes) is noise.
	cleaned := keepRe.ReplaceAllString(s, "")
	cleaned = separatorRe.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(spaceRunRe.ReplaceAllString(cleaned, " "))

	decimalAt := -1
	for i, r := range cleaned {
		if r != '.' && r != ',' {
			continue
		}
		if i > 0 && i < len(cleaned)-1 && isDigit(cleaned[i-1]) && isDigit(cleaned[i+1]) {
			decimalAt = i
		}
	}

	if decimalAt >= 0 && isGroupingSeparator(cleaned, decimalAt) {
		decimalAt = -1
	}

	var numStr string
	if decimalAt >= 0 {
		intPart := nonDigitRe.ReplaceAllString(cleaned[:decimalAt], "")
		fracPart := nonDigitRe.ReplaceAllString(cleaned[decimalAt+1:], "")
		numStr = intPart
		if fracPart != "" {
			numStr = intPart + "." + fracPart
		}
	} else {
		numStr = nonDigitRe.ReplaceAllString(cleaned, "")
	}

	if numStr == "" || numStr == "." {
		return 0, ErrUnparseable
	}

	val, err := strconv.ParseFloat(numStr, 64)
	if err != nil {
		return 0, fmt.Errorf("currency: parse %q: %w", numStr, err)
	}

	val *= mult
	if negative {
		val = -val
	}
	return val, nil
}

// ParseRevenue parses a revenue or unit-count figure, rounded to the nearest
// whole number.
func ParseRevenue(s string) (float64, error) {
	v, err := Parse(s)
	if err != nil {
		return 0, err
	}
	return math.Round(v), nil
}

// ParseUnitPrice parses a per-unit currency amount, kept at two-decimal
// precision.
func ParseUnitPrice(s string) (float64, error) {
	v, err := Parse(s)
	if err != nil {
		return 0, err
	}
	return math.Round(v*100) / 100, nil
}

// Number is Parse with a zero fallback: malformed but non-empty input yields
// 0 rather than an error. Callers that must distinguish "missing" from
// "zero" use Parse directly.
func Number(s string) float64 {
	v, err := Parse(s)
	if err != nil {
		return 0
	}
	return v
}

// Symbol returns the first recognized currency symbol in s, or "" if none.
func Symbol(s string) string {
	return symbolRe.FindString(s)
}

// SymbolOf scans the given texts for a currency symbol and returns the first
// one found, defaulting to "$".
func SymbolOf(texts ...string) string {
	for _, t := range texts {
		if sym := Symbol(t); sym != "" {
			return sym
		}
	}
	return "$"
}

// Format renders a value with a leading symbol at two-decimal precision,
// matching how harmonized metrics are written to the ledger.
func Format(symbol string, value float64) string {
	return fmt.Sprintf("%s%.2f", symbol, value)
}

// isGroupingSeparator reports whether the decimal candidate at sepAt is
// really a thousands separator: its trailing group is exactly three digits
// and the string gives no decimal signal (the same separator repeats, or no
// opposite-class separator precedes it).
func isGroupingSeparator(cleaned string, sepAt int) bool {
	frac := cleaned[sepAt+1:]
	if len(frac) != 3 {
		return false
	}
	for i := 0; i < len(frac); i++ {
		if !isDigit(frac[i]) {
			return false
		}
	}

	sep := cleaned[sepAt]
	other := byte('.')
	if sep == '.' {
		other = ','
	}
	if strings.Count(cleaned, string(sep)) > 1 {
		return true
	}
	return !strings.Contains(cleaned[:sepAt], string(other))
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
