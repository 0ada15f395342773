package extractor

import (
	"regexp"
	"strings"

	"github.com/sells-group/xray-ledger/internal/currency"
	"github.com/sells-group/xray-ledger/internal/models"
)

var nonNumericRe = regexp.MustCompile(`[^\d.,]`)

// HarmonizeCurrency rewrites the four metric texts so they all carry the
// same currency symbol. The calculator sometimes renders mixed symbols on
// one panel when a storefront's locale and the account's home marketplace
// disagree; the first symbol found wins, dollar as the fallback.
func HarmonizeCurrency(pm models.ProfitabilityMetrics) models.ProfitabilityMetrics {
	symbol := currency.SymbolOf(
		pm.Price.Text, pm.FBAFees.Text,
		pm.StorageFeeJanSep.Text, pm.StorageFeeOctDec.Text,
	)

	return models.ProfitabilityMetrics{
		Price:            harmonizeMetric(pm.Price, symbol),
		FBAFees:          harmonizeMetric(pm.FBAFees, symbol),
		StorageFeeJanSep: harmonizeMetric(pm.StorageFeeJanSep, symbol),
		StorageFeeOctDec: harmonizeMetric(pm.StorageFeeOctDec, symbol),
	}
}

func harmonizeMetric(m models.Metric, symbol string) models.Metric {
	num := nonNumericRe.ReplaceAllString(m.Text, "")
	num = strings.ReplaceAll(num, ",", ".")
	if num == "" {
		return models.Metric{Text: currency.Format(symbol, m.Number), Number: m.Number}
	}
	return models.Metric{Text: symbol + num, Number: m.Number}
}
