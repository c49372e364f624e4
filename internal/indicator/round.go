package indicator

import "github.com/shopspring/decimal"

const (
	// PricePlaces is the precision generated prices are rounded to.
	PricePlaces = 2
	// AveragePlaces is the precision moving averages are rounded to.
	AveragePlaces = 4
)

// Round rounds v to the given number of decimal places, half away from zero.
// Rounding goes through the shortest decimal representation of v, so 1.005
// rounds to 1.01 rather than the binary-float 1.00.
func Round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
