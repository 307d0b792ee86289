// Package pricer provides current market prices for a trading pair.
package pricer

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"autotrader/internal/entity"
)

// ErrPriceUnavailable reports a feed fetch or parse failure.
var ErrPriceUnavailable = errors.New("price unavailable")

// Pricer provides the current price of the base currency quoted in the
// pair's second currency.
type Pricer interface {
	GetPrice(ctx context.Context, pair entity.Pair) (decimal.Decimal, error)
}
