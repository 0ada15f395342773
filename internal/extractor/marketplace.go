package extractor

import (
	"fmt"
	"net/url"
	"strings"
)

// MarketplaceCode derives the 2-letter marketplace code from a product
// URL's domain suffix. "amazon.co.uk" yields "uk", "amazon.com.au" yields
// "au", a bare "amazon.com" yields "us".
func MarketplaceCode(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid product url %q: %w", rawURL, err)
	}
	host := u.Hostname()
	parts := strings.Split(host, ".")
	if len(parts) < 2 {
		return "", fmt.Errorf("cannot derive marketplace from host %q", host)
	}

	tld := parts[len(parts)-1]
	region := parts[len(parts)-2]

	switch region {
	case "co":
		return tld, nil
	case "com":
		if tld == "com" {
			return "us", nil
		}
		return tld, nil
	default:
		if tld == "com" {
			return "us", nil
		}
		return tld, nil
	}
}

// variant captures the calculator DOM differences per marketplace. The
// extension renders a different field set per storefront, so which
// selector reads which value is data, not logic.
type variant struct {
	// skipFieldWaits marks storefronts whose calculator never exposes the
	// testid field set, so waiting for it would always time out.
	skipFieldWaits bool
	// waitFields marks storefronts whose field set is reliable enough to
	// poll for before reading.
	waitFields bool
	// priceFromField reads the price from the calculator's price input by
	// testid; otherwise the input is found through its styled container.
	priceFromField bool
	// fbaTile is the index into the generic calculator tile list holding
	// the FBA fee. -1 selects the dedicated class selector instead.
	fbaTile int
	// sharedStorageTile, when >= 0, is a single tile holding the one
	// storage rate the storefront publishes, used for both seasons.
	sharedStorageTile int
}

// variantFor returns the calculator layout for a marketplace code.
// Unknown codes get the common international layout.
func variantFor(code string) variant {
	switch code {
	case "us":
		return variant{waitFields: true, priceFromField: true, fbaTile: -1, sharedStorageTile: -1}
	case "uk", "de":
		return variant{waitFields: true, priceFromField: true, fbaTile: 11, sharedStorageTile: -1}
	case "au", "ca":
		return variant{fbaTile: 8, sharedStorageTile: -1}
	case "ae":
		return variant{skipFieldWaits: true, fbaTile: 8, sharedStorageTile: 10}
	default:
		return variant{fbaTile: 11, sharedStorageTile: -1}
	}
}
