// Package locator finds metric values on pages where the overlay widget
// offers no stable selectors. A chain of strategies is tried in order,
// from the fastest known-selector lookup down to a geometry search and an
// ancestor tree walk.
package locator

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/playwright-community/playwright-go"
)

// ErrValueNotFound signals that no strategy produced a value for the label.
// Callers must surface this rather than substitute zero.
var ErrValueNotFound = errors.New("locator: value not found")

// currencyShapedRe matches display text that looks like a money amount:
// optional symbol or ISO code, grouped digits with locale separators, an
// optional decimal part and an optional K/M/B magnitude suffix.
var currencyShapedRe = regexp.MustCompile(`(?i)^(?:USD|GBP|EUR|CAD|AUD|AED|AU\$|A\$|CA\$|C\$|[$€£])?\s*\d[\d\s',.` + "    ⁠" + `]*(?:[.,]\d+)?\s*[KMB]?$`)

// bareNumericRe is the looser pattern used by the tree-walk fallback.
var bareNumericRe = regexp.MustCompile(`^\$?\s*\d[\d,]*(?:\.\d+)?$`)

// CurrencyShaped reports whether text looks like a money amount.
func CurrencyShaped(text string) bool {
	return currencyShapedRe.MatchString(strings.TrimSpace(text))
}

// BareNumeric reports whether text is a plain grouped number.
func BareNumeric(text string) bool {
	return bareNumericRe.MatchString(strings.TrimSpace(text))
}

// CleanText collapses runs of whitespace to single spaces.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Strategy is one way of resolving a labeled value on a page.
type Strategy interface {
	Name() string
	Find(page playwright.Page, label string) (string, error)
}

// Chain tries each strategy in order and returns the first hit.
type Chain struct {
	strategies []Strategy
	logger     *slog.Logger
}

// NewChain builds the default chain: exact selector, proximity geometry,
// ancestor tree walk.
func NewChain(logger *slog.Logger, strategies ...Strategy) *Chain {
	if len(strategies) == 0 {
		strategies = []Strategy{
			&ExactSelector{},
			&Proximity{},
			&AncestorScan{},
		}
	}
	return &Chain{
		strategies: strategies,
		logger:     logger.With("component", "locator"),
	}
}

// Find resolves the value for a label, returning its cleaned display text.
// Returns ErrValueNotFound when every strategy fails.
func (c *Chain) Find(page playwright.Page, label string) (string, error) {
	for _, s := range c.strategies {
		text, err := s.Find(page, label)
		if err != nil {
			c.logger.Debug("strategy missed", "strategy", s.Name(), "label", label, "error", err)
			continue
		}
		text = CleanText(text)
		if text == "" {
			continue
		}
		c.logger.Debug("strategy hit", "strategy", s.Name(), "label", label, "value", text)
		return text, nil
	}
	return "", fmt.Errorf("%w: label %q", ErrValueNotFound, label)
}
