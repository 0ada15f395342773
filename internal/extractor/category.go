// Package extractor reads financial signals out of the research overlay:
// the aggregate category revenue from the search results widget and the
// profitability calculator fields from a product page.
package extractor

import (
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/sells-group/xray-ledger/internal/browser"
	"github.com/sells-group/xray-ledger/internal/currency"
	"github.com/sells-group/xray-ledger/internal/locator"
	"github.com/sells-group/xray-ledger/internal/models"
)

const (
	// overlayMarker is the text proving the overlay injected into a tab.
	overlayMarker = "Xray"
	// totalRevenueLabel anchors the aggregate read.
	totalRevenueLabel = "Total Revenue"
	// parentRevenueLabel anchors the current product's own revenue read.
	parentRevenueLabel = "Parent Level Revenue"

	overlayProbeTimeoutMs = 1500
	loadMoreTimeoutMs     = 4000
	loadMoreClickMs       = 1500
)

var loadMorePattern = regexp.MustCompile(`(?i)^\s*Load More\s*$`)

// CategoryRevenue reads the overlay's aggregate revenue for the category
// currently loaded in the browser.
type CategoryRevenue struct {
	session *browser.Session
	chain   *locator.Chain
	logger  *slog.Logger

	// settleDelay is how long the overlay gets to re-render after Load
	// More. The widget exposes no completion signal, so this is a fixed
	// wait rather than a poll.
	settleDelay time.Duration
}

// NewCategoryRevenue wires the extractor with the default locator chain.
func NewCategoryRevenue(session *browser.Session, logger *slog.Logger, settleDelay time.Duration) *CategoryRevenue {
	return &CategoryRevenue{
		session:     session,
		chain:       locator.NewChain(logger),
		logger:      logger.With("component", "category-extractor"),
		settleDelay: settleDelay,
	}
}

// findOverlayPage scans every open tab for an Amazon page where the
// overlay widget is visible.
func (c *CategoryRevenue) findOverlayPage() (playwright.Page, error) {
	for _, page := range c.session.Pages() {
		if !isAmazonURL(page.URL()) {
			continue
		}
		marker := page.GetByText(overlayMarker).First()
		if err := marker.WaitFor(playwright.LocatorWaitForOptions{
			Timeout: playwright.Float(overlayProbeTimeoutMs),
		}); err != nil {
			continue
		}
		return page, nil
	}
	return nil, fmt.Errorf("overlay not detected on any open tab")
}

var amazonHostRe = regexp.MustCompile(`(?i)\bamazon\.`)

func isAmazonURL(u string) bool {
	return amazonHostRe.MatchString(u)
}

// clickLoadMore expands the result set, trying a direct click, a
// programmatic click and a synthetic mouse event in turn. A miss is not
// fatal; some result sets are already fully loaded.
func (c *CategoryRevenue) clickLoadMore(page playwright.Page) bool {
	btn := page.GetByRole(playwright.AriaRole("button"), playwright.PageGetByRoleOptions{
		Name: loadMorePattern,
	}).First()

	if err := btn.WaitFor(playwright.LocatorWaitForOptions{
		Timeout: playwright.Float(loadMoreTimeoutMs),
	}); err == nil {
		btn.ScrollIntoViewIfNeeded()
		if err := btn.Click(playwright.LocatorClickOptions{
			Timeout: playwright.Float(loadMoreClickMs),
		}); err == nil {
			c.logger.Info("load more clicked")
			return true
		}
		if _, err := btn.Evaluate("el => el.click()", nil); err == nil {
			c.logger.Info("load more clicked programmatically")
			return true
		}
	}

	alt := page.Locator("button:has-text('Load More')").First()
	alt.ScrollIntoViewIfNeeded()
	if _, err := alt.Evaluate(
		"el => el.dispatchEvent(new MouseEvent('click', {bubbles: true, cancelable: true}))", nil,
	); err == nil {
		c.logger.Info("load more clicked via synthetic event")
		return true
	}

	return false
}

// Extract locates the overlay tab, expands its results and reads the
// aggregate revenue. The returned metric carries both the display text and
// the normalized number.
func (c *CategoryRevenue) Extract() (models.Metric, error) {
	page, err := c.findOverlayPage()
	if err != nil {
		return models.Metric{}, err
	}
	page.BringToFront()
	page.WaitForTimeout(500)

	if c.clickLoadMore(page) {
		c.logger.Info("waiting for overlay to settle", "delay", c.settleDelay)
		page.WaitForTimeout(float64(c.settleDelay.Milliseconds()))
	} else {
		c.logger.Warn("could not click load more, reading current result set")
	}

	text, err := c.chain.Find(page, totalRevenueLabel)
	if err != nil {
		return models.Metric{}, fmt.Errorf("failed to read total revenue: %w", err)
	}

	number, err := currency.ParseRevenue(text)
	if err != nil {
		return models.Metric{}, fmt.Errorf("total revenue %q unparseable: %w", text, err)
	}

	c.logger.Info("category revenue extracted", "text", text, "number", number)
	return models.Metric{Text: text, Number: number}, nil
}

// ParentRevenue reads the parent-level monthly revenue shown by the
// overlay for the product loaded in the current tab. The overlay must
// already be visible; no Load More expansion is needed for a single
// listing.
func (c *CategoryRevenue) ParentRevenue() (models.Metric, error) {
	page, err := c.findOverlayPage()
	if err != nil {
		return models.Metric{}, err
	}
	page.BringToFront()
	page.WaitForTimeout(500)

	text, err := c.chain.Find(page, parentRevenueLabel)
	if err != nil {
		return models.Metric{}, fmt.Errorf("failed to read parent level revenue: %w", err)
	}

	number, err := currency.ParseRevenue(text)
	if err != nil {
		return models.Metric{}, fmt.Errorf("parent level revenue %q unparseable: %w", text, err)
	}

	c.logger.Info("parent revenue extracted", "text", text, "number", number)
	return models.Metric{Text: text, Number: number}, nil
}
