package extractor

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/sells-group/xray-ledger/internal/browser"
	"github.com/sells-group/xray-ledger/internal/currency"
	"github.com/sells-group/xray-ledger/internal/locator"
	"github.com/sells-group/xray-ledger/internal/models"
)

const (
	calculatorTimeoutMs = 15000
	fieldWaitBudget     = 60 * time.Second
	fieldWaitSliceMs    = 2500
	fieldWaitPauseMs    = 300

	// Calculator field selectors. The testids are stable on the major
	// storefronts; the tile class list covers the rest.
	selStorageFeeJanSep = `div[data-testid="calculator-profitability-storageFeeJanSep"]`
	selStorageFeeOctDec = `div[data-testid="calculator-profitability-storageFeeOctDec"]`
	selPriceInput       = `input[data-testid="calculator-profitability-price"]`
	selCalculatorTile   = "div.sc-zbfRe.bUrasH"
	selFBAFeesUS        = "div.sc-gsnOKb.jESxTP"
	selPriceContainer   = "//div[contains(@class,'sc-kdYKFS') and contains(@class,'lgKsUy')]"
)

var (
	calculatorNameRe = regexp.MustCompile(`(?i)profitability|calculator`)
	digitsOnwardRe   = regexp.MustCompile(`\d.*`)
)

// TabPolicy controls how a profitability read isolates itself from the
// shared session's other tabs.
type TabPolicy struct {
	// CloseAllFirst closes every tab before opening the product page.
	CloseAllFirst bool
	// CloseOthersAfterOpen closes sibling tabs once the product page is
	// open, leaving only it.
	CloseOthersAfterOpen bool
}

// Profitability reads the calculator panel of a product page.
type Profitability struct {
	session *browser.Session
	logger  *slog.Logger
	policy  TabPolicy
}

func NewProfitability(session *browser.Session, logger *slog.Logger, policy TabPolicy) *Profitability {
	return &Profitability{
		session: session,
		logger:  logger.With("component", "profitability-extractor"),
		policy:  policy,
	}
}

// Extract opens the product page, clicks the calculator open and reads
// price, FBA fee and both seasonal storage fees. Every metric's number is
// normalized from whatever display text was captured.
func (p *Profitability) Extract(productURL string) (models.ProfitabilityMetrics, error) {
	var zero models.ProfitabilityMetrics

	code, err := MarketplaceCode(productURL)
	if err != nil {
		return zero, err
	}
	v := variantFor(code)

	if p.policy.CloseAllFirst {
		if n := p.session.CloseAllTabs(); n > 0 {
			p.logger.Info("closed tabs before extraction", "count", n)
		}
	}

	page, err := p.session.NewPage()
	if err != nil {
		return zero, err
	}
	defer page.Close()

	if _, err := page.Goto(productURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return zero, fmt.Errorf("failed to open product page: %w", err)
	}
	page.BringToFront()

	if p.policy.CloseOthersAfterOpen {
		if n := p.session.CloseOthers(page); n > 0 {
			p.logger.Info("closed sibling tabs", "count", n)
		}
	}

	if err := p.openCalculator(page); err != nil {
		return zero, err
	}
	if err := p.waitForFields(page, v); err != nil {
		return zero, err
	}

	janSep, octDec, err := p.readStorageFees(page, v)
	if err != nil {
		return zero, err
	}
	priceText, err := p.readPrice(page, v)
	if err != nil {
		return zero, err
	}
	fbaText, err := p.readFBAFees(page, v)
	if err != nil {
		return zero, err
	}

	metrics := models.ProfitabilityMetrics{
		Price:            models.Metric{Text: priceText, Number: currency.Number(priceText)},
		FBAFees:          models.Metric{Text: fbaText, Number: currency.Number(fbaText)},
		StorageFeeJanSep: models.Metric{Text: janSep, Number: currency.Number(janSep)},
		StorageFeeOctDec: models.Metric{Text: octDec, Number: currency.Number(octDec)},
	}

	p.logger.Info("profitability metrics captured",
		"marketplace", code,
		"price", metrics.Price.Text,
		"fba_fees", metrics.FBAFees.Text,
	)
	return metrics, nil
}

// openCalculator clicks the calculator trigger with a three-tier fallback:
// testid attribute, button role with a name pattern, then any element with
// calculator text.
func (p *Profitability) openCalculator(page playwright.Page) error {
	btn := page.Locator(`div[data-testid="calculator"]`).First()
	if err := btn.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(calculatorTimeoutMs * 2),
	}); err == nil {
		if err := btn.Click(); err == nil {
			p.logger.Info("calculator opened")
			return nil
		}
	}

	alt := page.GetByRole(playwright.AriaRole("button"), playwright.PageGetByRoleOptions{
		Name: calculatorNameRe,
	}).First()
	if err := alt.WaitFor(playwright.LocatorWaitForOptions{
		Timeout: playwright.Float(20000),
	}); err == nil {
		if err := alt.Click(); err == nil {
			p.logger.Info("calculator opened via role fallback")
			return nil
		}
	}

	anyCalc := page.Locator(":is(div,button,span,a):has-text('Calculator')").First()
	if err := anyCalc.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(20000),
	}); err == nil {
		if err := anyCalc.Click(); err == nil {
			p.logger.Info("calculator opened via text fallback")
			return nil
		}
	}

	return fmt.Errorf("could not find or click the profitability calculator trigger")
}

// waitForFields polls for the calculator's field set until it renders or
// the budget runs out. Storefronts flagged skipFieldWaits never render the
// testid fields, so they pass straight through.
func (p *Profitability) waitForFields(page playwright.Page, v variant) error {
	if v.skipFieldWaits || !v.waitFields {
		return nil
	}

	selectors := []string{selStorageFeeJanSep, selStorageFeeOctDec, selPriceInput}
	deadline := time.Now().Add(fieldWaitBudget)
	var lastErr error

	for time.Now().Before(deadline) {
		lastErr = nil
		for _, sel := range selectors {
			if _, err := page.WaitForSelector(sel, playwright.PageWaitForSelectorOptions{
				Timeout: playwright.Float(fieldWaitSliceMs),
			}); err != nil {
				lastErr = fmt.Errorf("missing calculator field %s: %w", sel, err)
				break
			}
		}
		if lastErr == nil {
			return nil
		}
		page.WaitForTimeout(fieldWaitPauseMs)
	}

	return fmt.Errorf("calculator fields did not appear in %s: %w", fieldWaitBudget, lastErr)
}

func (p *Profitability) readStorageFees(page playwright.Page, v variant) (janSep, octDec string, err error) {
	if v.sharedStorageTile >= 0 {
		tile := page.Locator(selCalculatorTile).Nth(v.sharedStorageTile)
		text, err := tile.TextContent()
		if err != nil {
			return "", "", fmt.Errorf("failed to read storage fee tile: %w", err)
		}
		text = strings.TrimSpace(text)
		return text, text, nil
	}

	janSep, err = innerTextOf(page, selStorageFeeJanSep)
	if err != nil {
		return "", "", fmt.Errorf("failed to read jan-sep storage fee: %w", err)
	}
	octDec, err = innerTextOf(page, selStorageFeeOctDec)
	if err != nil {
		return "", "", fmt.Errorf("failed to read oct-dec storage fee: %w", err)
	}
	return janSep, octDec, nil
}

func (p *Profitability) readPrice(page playwright.Page, v variant) (string, error) {
	if v.priceFromField {
		val, err := page.Locator(selPriceInput).InputValue()
		if err != nil {
			return "", fmt.Errorf("failed to read price input: %w", err)
		}
		return strings.TrimSpace(val), nil
	}

	// No testid on this storefront; find the input through its styled
	// container instead.
	container := page.Locator("div:has(> input)").Filter(playwright.LocatorFilterOptions{
		Has: page.Locator(selPriceContainer),
	}).First()
	input := container.Locator("input").First()
	val, err := input.Evaluate("el => el.value", nil)
	if err != nil {
		return "", fmt.Errorf("failed to read price via container: %w", err)
	}
	text, _ := val.(string)
	return strings.TrimSpace(text), nil
}

// readFBAFees reads the fulfillment fee. The fast path uses the variant's
// selector; a label-proximity scan over the panel's ancestors covers
// layout drift.
func (p *Profitability) readFBAFees(page playwright.Page, v variant) (string, error) {
	if text := p.fbaFeesFast(page, v); text != "" {
		return text, nil
	}

	scan := &locator.AncestorScan{}
	text, err := scan.Find(page, "FBA Fees")
	if err != nil {
		return "", fmt.Errorf("could not read FBA fees from the calculator panel: %w", err)
	}
	return text, nil
}

func (p *Profitability) fbaFeesFast(page playwright.Page, v variant) string {
	if v.fbaTile < 0 {
		el := page.Locator(selFBAFeesUS).First()
		if err := el.WaitFor(playwright.LocatorWaitForOptions{
			Timeout: playwright.Float(2000),
		}); err != nil {
			return ""
		}
		text, err := el.InnerText()
		if err != nil {
			return ""
		}
		return strings.TrimSpace(text)
	}

	tile := page.Locator(selCalculatorTile).Nth(v.fbaTile)
	text, err := tile.TextContent()
	if err != nil {
		return ""
	}
	text = strings.TrimSpace(text)
	if m := digitsOnwardRe.FindString(text); m != "" {
		return m
	}
	return text
}

func innerTextOf(page playwright.Page, selector string) (string, error) {
	text, err := page.Locator(selector).InnerText()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
