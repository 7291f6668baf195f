package render

import (
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// Missing values render the way the browser's number formatter renders NaN.
const (
	missingCurrency = "$NaN"
	missingPercent  = "NaN%"
)

// Currency formats v as en-US dollars with exactly two decimals, e.g.
// "$1,234.50" or "-$0.10". The sign follows the unrounded value, so -0.001
// is "-$0.00".
func Currency(v decimal.NullDecimal) string {
	if !v.Valid {
		return missingCurrency
	}
	sign := ""
	if v.Decimal.IsNegative() {
		sign = "-"
	}
	abs := v.Decimal.Abs().Round(2)
	fixed := abs.StringFixed(2)
	return sign + "$" + humanize.BigComma(abs.BigInt()) + fixed[strings.IndexByte(fixed, '.'):]
}

// SignedCurrency is Currency with a leading "+" when v is strictly positive.
func SignedCurrency(v decimal.NullDecimal) string {
	return plus(v) + Currency(v)
}

// SignedPercent rounds v to a whole number and appends "%", with a leading
// "+" when v is strictly positive and "-" when it is negative, even if it
// rounds to zero.
func SignedPercent(v decimal.NullDecimal) string {
	if !v.Valid {
		return missingPercent
	}
	sign := plus(v)
	if v.Decimal.IsNegative() {
		sign = "-"
	}
	return sign + v.Decimal.Abs().Round(0).String() + "%"
}

func plus(v decimal.NullDecimal) string {
	if v.Valid && v.Decimal.IsPositive() {
		return "+"
	}
	return ""
}
