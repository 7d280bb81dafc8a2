package costs

import (
	"github.com/shopspring/decimal"
)

// usdScale is the precision used when persisting or displaying USD amounts.
// Cost math itself never rounds; only the boundary does.
const usdScale = 6

// RoundUSD rounds a computed cost for persistence or display.
func RoundUSD(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(usdScale).Float64()
	return f
}

// FormatUSD renders a cost with the persistence precision.
func FormatUSD(v float64) string {
	return "$" + decimal.NewFromFloat(v).Round(usdScale).String()
}
