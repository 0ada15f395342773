package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "http://127.0.0.1:9222", cfg.Browser.CDPURL)
	assert.Equal(t, 30*time.Second, cfg.Extractor.SettleDelay)
	assert.Equal(t, 8, cfg.Retry.MaxAttempts)
	assert.Equal(t, 20*time.Second, cfg.Retry.Delay)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("RETRY_MAX_ATTEMPTS", "3")
	t.Setenv("EXTRACTOR_SETTLE_DELAY", "5s")
	t.Setenv("LEDGER_VENDOR_PATH", "/data/vendor.xlsx")
	t.Setenv("BROWSER_CDP_URL", "")
	t.Setenv("BROWSER_HEADLESS", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.Extractor.SettleDelay)
	assert.Equal(t, "/data/vendor.xlsx", cfg.Ledger.VendorPath)

	// Empty CDP URL selects the launch path.
	assert.Empty(t, cfg.Browser.CDPURL)
	assert.True(t, cfg.Browser.Headless)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Retry.MaxAttempts = 0
	assert.Error(t, cfg.Validate())

	cfg.Retry.MaxAttempts = 8
	cfg.Extractor.CompetitorMonth = 13
	assert.Error(t, cfg.Validate())

	cfg.Extractor.CompetitorMonth = 0
	cfg.Ledger.VendorPath = ""
	assert.Error(t, cfg.Validate())
}

func TestCompetitorMonthOrNow(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	november := time.Date(2025, 11, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 11, cfg.CompetitorMonthOrNow(november))

	cfg.Extractor.CompetitorMonth = 4
	assert.Equal(t, 4, cfg.CompetitorMonthOrNow(november))
}
