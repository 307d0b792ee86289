package entity

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Monetary amounts are signed integers in the smallest unit of their
// currency: satoshi for BTC, cents for EUR. No persisted quantity is
// ever a float; decimals are used for rate arithmetic only.
const (
	BTC = "BTC"
	EUR = "EUR"

	// BtcStep is the number of satoshi in one BTC.
	BtcStep int64 = 100_000_000
	// EurStep is the number of cents in one EUR.
	EurStep int64 = 100
)

// ErrInvalidAmount reports a non-numeric or malformed monetary value.
var ErrInvalidAmount = errors.New("invalid amount")

var (
	btcStepDec = decimal.NewFromInt(BtcStep)
	eurStepDec = decimal.NewFromInt(EurStep)
)

// ParseAmount parses a smallest-unit amount. A leading '+' is accepted
// because the trade history persists deltas with an explicit sign.
func ParseAmount(s string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(s), "+"), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidAmount, "%q", s)
	}
	return v, nil
}

// RateToCents converts a BTC/EUR market price to whole EUR-cents.
// The fractional cent is truncated, matching the recorded reference
// rates of the trade history.
func RateToCents(rate decimal.Decimal) int64 {
	return rate.Mul(eurStepDec).IntPart()
}

// FormatUnits renders a smallest-unit amount in whole-currency form for
// human-readable output: 8 fraction digits for BTC, 2 for EUR.
func FormatUnits(currency string, units int64) string {
	d := decimal.NewFromInt(units)
	if currency == BTC {
		return d.Div(btcStepDec).StringFixed(8)
	}
	return d.Div(eurStepDec).StringFixed(2)
}
