// Package browser manages the shared Chrome session the extension overlay
// lives in. The overlay only renders inside a signed-in profile, so the
// session prefers attaching to an already-running Chrome over CDP; with no
// CDP endpoint configured it launches its own browser.
package browser

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"
)

type Session struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	logger  *slog.Logger
}

type Options struct {
	// CDPURL is the DevTools endpoint of the profile Chrome, e.g.
	// "http://127.0.0.1:9222". Empty means launch a browser instead.
	CDPURL string
	// ExtensionID primes the extension service worker by opening its
	// popup page once after connecting.
	ExtensionID string
	// KeepPopupOpen leaves the primed popup tab open for debugging.
	KeepPopupOpen bool
	// Headless applies to the launched browser only.
	Headless bool
	Timeout  time.Duration
}

func DefaultOptions() *Options {
	return &Options{
		CDPURL:  "http://127.0.0.1:9222",
		Timeout: 30 * time.Second,
	}
}

// Connect attaches to the running Chrome when a CDP endpoint is
// configured, launches a browser otherwise, and primes the extension
// popup.
func Connect(opts *Options, logger *slog.Logger) (*Session, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	var br playwright.Browser
	if opts.CDPURL != "" {
		br, err = pw.Chromium.ConnectOverCDP(opts.CDPURL, playwright.BrowserTypeConnectOverCDPOptions{
			Timeout: playwright.Float(float64(opts.Timeout.Milliseconds())),
		})
		if err != nil {
			pw.Stop()
			return nil, fmt.Errorf("failed to connect to chrome at %s: %w", opts.CDPURL, err)
		}
	} else {
		br, err = pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(opts.Headless),
			Args: []string{
				"--disable-blink-features=AutomationControlled",
				"--disable-dev-shm-usage",
				"--no-sandbox",
				"--window-size=1920,1080",
			},
		})
		if err != nil {
			pw.Stop()
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
	}

	s := &Session{
		pw:      pw,
		browser: br,
		logger:  logger.With("component", "browser"),
	}

	if opts.ExtensionID != "" {
		if err := s.primePopup(opts.ExtensionID, opts.KeepPopupOpen); err != nil {
			s.logger.Warn("failed to prime extension popup", "error", err)
		}
	}

	return s, nil
}

// primePopup opens the extension popup once so its service worker wakes up
// and starts injecting the overlay, then closes the tab again.
func (s *Session) primePopup(extensionID string, keepOpen bool) error {
	popup, err := s.Context().NewPage()
	if err != nil {
		return fmt.Errorf("failed to open popup page: %w", err)
	}

	popupURL := fmt.Sprintf("chrome-extension://%s/popup.html", extensionID)
	if _, err := popup.Goto(popupURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		popup.Close()
		return fmt.Errorf("failed to load popup: %w", err)
	}

	s.logger.Info("extension popup primed", "extension", extensionID)
	if !keepOpen {
		if err := popup.Close(); err != nil {
			s.logger.Warn("failed to close popup tab", "error", err)
		}
	}
	return nil
}

// Context returns the profile's default context.
func (s *Session) Context() playwright.BrowserContext {
	contexts := s.browser.Contexts()
	if len(contexts) > 0 {
		return contexts[0]
	}
	ctx, err := s.browser.NewContext()
	if err != nil {
		s.logger.Error("failed to create context", "error", err)
		return nil
	}
	return ctx
}

// NewPage opens a tab in the profile context.
func (s *Session) NewPage() (playwright.Page, error) {
	ctx := s.Context()
	if ctx == nil {
		return nil, fmt.Errorf("no browser context available")
	}
	page, err := ctx.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}
	return page, nil
}

// Pages returns every open tab across all contexts.
func (s *Session) Pages() []playwright.Page {
	var pages []playwright.Page
	for _, ctx := range s.browser.Contexts() {
		pages = append(pages, ctx.Pages()...)
	}
	return pages
}

// CloseAllTabs closes every open tab and returns how many were closed.
func (s *Session) CloseAllTabs() int {
	closed := 0
	for _, page := range s.Pages() {
		if err := page.Close(); err != nil {
			s.logger.Warn("failed to close tab", "error", err)
			continue
		}
		closed++
	}
	return closed
}

// CloseOthers closes every tab except keep, isolating it from overlay
// cross-talk, and returns how many were closed.
func (s *Session) CloseOthers(keep playwright.Page) int {
	closed := 0
	for _, page := range s.Pages() {
		if page == keep {
			continue
		}
		if err := page.Close(); err != nil {
			s.logger.Warn("failed to close sibling tab", "error", err)
			continue
		}
		closed++
	}
	return closed
}

// NavigateWithRetry drives a page to url, retrying with linear backoff.
func (s *Session) NavigateWithRetry(page playwright.Page, url string, maxRetries int) error {
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			s.logger.Info("retrying navigation", "attempt", i+1, "url", url)
			time.Sleep(time.Duration(i+1) * time.Second)
		}

		_, err := page.Goto(url, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
			Timeout:   playwright.Float(30000),
		})
		if err == nil {
			return nil
		}

		lastErr = err
		s.logger.Error("navigation failed", "error", err, "attempt", i+1)
	}

	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

// Close detaches from the browser without killing the user's Chrome.
func (s *Session) Close() error {
	var errs []error

	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to disconnect browser: %w", err))
		}
	}
	if s.pw != nil {
		if err := s.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}
	return nil
}
