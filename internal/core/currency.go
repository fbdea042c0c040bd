package core

import (
	"github.com/shopspring/decimal"
)

// ValidateRate checks that the global exchange rate is usable. A missing or
// non-positive rate is a configuration error: the engine refuses to run
// rather than producing snapshots with garbage totals.
func ValidateRate(rate decimal.Decimal) error {
	if !rate.IsPositive() {
		return ErrInvalidRate
	}
	return nil
}

// ToReportingCurrency converts an amount in the given currency into the
// reporting currency using the single global rate. The rate is expressed as
// foreign-currency units per reporting-currency unit, so foreign / rate =
// reporting. Amounts already in the reporting currency pass through
// unchanged. No rounding happens here; display rounding is the caller's
// concern.
func ToReportingCurrency(amount decimal.Decimal, currency Currency, rate decimal.Decimal) (decimal.Decimal, error) {
	if currency == ReportingCurrency {
		return amount, nil
	}
	if err := ValidateRate(rate); err != nil {
		return decimal.Decimal{}, err
	}
	return amount.Div(rate), nil
}
