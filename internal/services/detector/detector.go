// Package detector implements the price-band decision rule: compare
// the current market rate against the reference rate of the last
// executed trade and decide whether to transition.
package detector

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"autotrader/internal/entity"
)

// Default band: trade when the price has moved at least 6% away from
// the last trade's reference rate.
var (
	DefaultSellRatio = decimal.RequireFromString("1.06")
	DefaultBuyRatio  = decimal.RequireFromString("0.94")
)

// Detector holds the configured thresholds. It is stateless between
// invocations; all memory is the durable ledger the caller reads.
type Detector struct {
	sellRatio decimal.Decimal
	buyRatio  decimal.Decimal
}

// New creates a detector. Zero thresholds fall back to the defaults.
func New(sellRatio, buyRatio decimal.Decimal) *Detector {
	if sellRatio.IsZero() {
		sellRatio = DefaultSellRatio
	}
	if buyRatio.IsZero() {
		buyRatio = DefaultBuyRatio
	}
	return &Detector{sellRatio: sellRatio, buyRatio: buyRatio}
}

// Detect evaluates ratio = lastTradeRate / currentRate (both in
// EUR-cents). With BTC on hand and ratio >= sellRatio the full BTC
// balance should be sold; with EUR on hand and ratio <= buyRatio the
// full EUR balance should be spent. Sell is checked first; the band
// keeps the two conditions from firing on the same tick. The computed
// ratio is returned alongside the action for the caller's logging.
func (d *Detector) Detect(lastTradeRate, currentRate, btcBalance, eurBalance int64) (entity.Action, decimal.Decimal, error) {
	if lastTradeRate <= 0 || currentRate <= 0 {
		return entity.ActionNull, decimal.Zero, errors.Errorf("non-positive rate: last=%d current=%d", lastTradeRate, currentRate)
	}

	ratio := decimal.NewFromInt(lastTradeRate).Div(decimal.NewFromInt(currentRate))

	if btcBalance > 0 && ratio.GreaterThanOrEqual(d.sellRatio) {
		return entity.ActionSell, ratio, nil
	}
	if eurBalance > 0 && ratio.LessThanOrEqual(d.buyRatio) {
		return entity.ActionBuy, ratio, nil
	}

	return entity.ActionNull, ratio, nil
}
