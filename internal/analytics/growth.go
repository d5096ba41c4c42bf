package analytics

import (
	"math/big"
	"strconv"

	"freelance/internal/core"
)

// IncomeGrowth returns the month-over-month change in percent, rounded
// half-up to one decimal. A zero base counts as +100% when there is income
// this month and 0 otherwise.
func IncomeGrowth(thisMonth, lastMonth core.Money) float64 {
	switch {
	case lastMonth.Cents > 0:
		return float64(growthTenths(thisMonth.Cents, lastMonth.Cents)) / 10
	case thisMonth.Cents > 0:
		return 100
	default:
		return 0
	}
}

// growthTenths computes floor((this-last)*1000/last + 1/2) exactly.
func growthTenths(this, last int64) int64 {
	num := big.NewInt(this - last)
	num.Mul(num, big.NewInt(2000))
	num.Add(num, big.NewInt(last))
	den := big.NewInt(2 * last)
	// Div is Euclidean; with a positive divisor that is floor division.
	return num.Div(num, den).Int64()
}

// FormatGrowth renders a percentage with an explicit sign: "+0%", "+12.5%",
// "-12.3%".
func FormatGrowth(pct float64) string {
	if pct == 0 {
		pct = 0 // no "-0"
	}
	s := strconv.FormatFloat(pct, 'f', -1, 64)
	if pct >= 0 {
		s = "+" + s
	}
	return s + "%"
}
