package locator

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/playwright-community/playwright-go"
)

const (
	labelTimeoutMs = 8000
	valueTimeoutMs = 3000

	// Geometry bounds for the proximity search, in CSS pixels.
	maxVerticalGap        = 200
	centerAlignTolerance  = 180
	nearDistancePx        = 140
	maxAncestorScanLevels = 5
)

// overlayValueClass is the last known class of the overlay's value tiles.
// It goes stale whenever the extension ships a new build, which is why it
// is only the first strategy of the chain.
const overlayValueClass = "div.sc-iYRSqv.jktLat"

// labelLocator anchors on the label text. Playwright normalizes
// whitespace for string matches, so the overlay's padded labels still hit.
func labelLocator(page playwright.Page, label string) playwright.Locator {
	return page.GetByText(label).First()
}

// ExactSelector reads the value tile through the known CSS class,
// constrained to sit below and near the label.
type ExactSelector struct{}

func (s *ExactSelector) Name() string { return "exact-selector" }

func (s *ExactSelector) Find(page playwright.Page, label string) (string, error) {
	anchor := labelLocator(page, label)
	if err := anchor.WaitFor(playwright.LocatorWaitForOptions{
		Timeout: playwright.Float(labelTimeoutMs),
	}); err != nil {
		return "", fmt.Errorf("label %q not visible: %w", label, err)
	}

	selector := fmt.Sprintf(
		"%s:below(:text('%s')):near(:text('%s'), %d)",
		overlayValueClass, label, label, nearDistancePx,
	)
	value := page.Locator(selector).First()
	if err := value.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(valueTimeoutMs),
	}); err != nil {
		return "", fmt.Errorf("value tile for %q not visible: %w", label, err)
	}
	return value.InnerText()
}

// Proximity ranks visible currency-shaped texts strictly below the label,
// within a bounded vertical gap and horizontal center tolerance, by
// smallest vertical gap then Euclidean distance from the label's lower
// edge.
type Proximity struct{}

func (s *Proximity) Name() string { return "proximity" }

func (s *Proximity) Find(page playwright.Page, label string) (string, error) {
	anchor := labelLocator(page, label)
	if err := anchor.WaitFor(playwright.LocatorWaitForOptions{
		Timeout: playwright.Float(labelTimeoutMs),
	}); err != nil {
		return "", fmt.Errorf("label %q not visible: %w", label, err)
	}

	js := fmt.Sprintf(`(labelEl) => {
	  const rectL = labelEl.getBoundingClientRect();
	  const centerLX = rectL.left + rectL.width/2;
	  const isVisible = (el) => {
	    if (!el) return false;
	    const cs = getComputedStyle(el);
	    if (cs.display === 'none' || cs.visibility === 'hidden') return false;
	    const r = el.getBoundingClientRect();
	    return r.width > 0 && r.height > 0;
	  };
	  const RE = /^(?:\p{Sc}|USD|GBP|EUR|CAD|AUD|AED|A\$|AU\$|C\$|CA\$)?\s*\d[\d\s',.    ⁠]*(?:[.,]\d+)?\s*(?:[KMB])?$/iu;

	  const cands = Array.from(document.querySelectorAll('%s, div, span, p, b, strong, em'))
	    .filter(isVisible)
	    .map(e => {
	      const t = (e.innerText || '').trim();
	      const r = e.getBoundingClientRect();
	      return {e, t, r};
	    })
	    .filter(o => o.t && RE.test(o.t) && o.r.top >= rectL.bottom - 2)
	    .filter(o => (o.r.top - rectL.bottom) <= %d && Math.abs((o.r.left + o.r.width/2) - centerLX) <= %d)
	    .sort((a,b) => {
	      const dyA = Math.max(0, a.r.top - rectL.bottom);
	      const dyB = Math.max(0, b.r.top - rectL.bottom);
	      if (dyA !== dyB) return dyA - dyB;
	      const cxA = a.r.left + a.r.width/2, cyA = a.r.top + a.r.height/2;
	      const cxB = b.r.left + b.r.width/2, cyB = b.r.top + b.r.height/2;
	      const dA = Math.hypot(cxA - centerLX, cyA - rectL.bottom);
	      const dB = Math.hypot(cxB - centerLX, cyB - rectL.bottom);
	      return dA - dB;
	    });

	  return cands.length ? cands[0].t : null;
	}`, overlayValueClass, maxVerticalGap, centerAlignTolerance)

	result, err := anchor.Evaluate(js, nil)
	if err != nil {
		return "", fmt.Errorf("geometry search failed for %q: %w", label, err)
	}
	text, ok := result.(string)
	if !ok || text == "" {
		return "", fmt.Errorf("no currency-shaped text below %q", label)
	}
	if strings.Contains(strings.ToLower(text), strings.ToLower(label)) {
		return "", fmt.Errorf("candidate below %q repeats the label", label)
	}
	return text, nil
}

// AncestorScan walks up from the label a bounded number of levels and
// scans each ancestor's subtree for the first bare-numeric text node. The
// subtree HTML is pulled out of the page and scanned locally.
type AncestorScan struct{}

func (s *AncestorScan) Name() string { return "ancestor-scan" }

func (s *AncestorScan) Find(page playwright.Page, label string) (string, error) {
	anchor := labelLocator(page, label)
	if err := anchor.WaitFor(playwright.LocatorWaitForOptions{
		Timeout: playwright.Float(labelTimeoutMs),
	}); err != nil {
		return "", fmt.Errorf("label %q not visible: %w", label, err)
	}

	for depth := 1; depth <= maxAncestorScanLevels; depth++ {
		result, err := anchor.Evaluate(`(el, depth) => {
		  let n = el;
		  for (let i = 0; i < depth && n.parentElement; i++) n = n.parentElement;
		  return n.outerHTML;
		}`, depth)
		if err != nil {
			return "", fmt.Errorf("failed to read ancestor %d of %q: %w", depth, label, err)
		}
		html, ok := result.(string)
		if !ok || html == "" {
			continue
		}
		if text := ScanHTML(html, label); text != "" {
			return text, nil
		}
	}
	return "", fmt.Errorf("no numeric text within %d ancestors of %q", maxAncestorScanLevels, label)
}

// ScanHTML parses a document fragment and returns the first element whose
// entire text is bare-numeric and does not repeat the label.
func ScanHTML(html, label string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	labelLower := strings.ToLower(label)
	found := ""
	doc.Find("*").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := CleanText(sel.Text())
		if text == "" || !BareNumeric(text) {
			return true
		}
		if strings.Contains(strings.ToLower(text), labelLower) {
			return true
		}
		found = text
		return false
	})
	return found
}
