package browser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	assert.Equal(t, "http://127.0.0.1:9222", opts.CDPURL)
	assert.Equal(t, 30*time.Second, opts.Timeout)
	assert.Empty(t, opts.ExtensionID)
	assert.False(t, opts.KeepPopupOpen)
	assert.False(t, opts.Headless)
}
