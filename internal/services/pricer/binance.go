package pricer

import (
	"context"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"autotrader/internal/entity"
)

// BinancePricer fetches prices from the Binance public API. The ticker
// endpoint needs no authentication, so empty API keys are fine.
type BinancePricer struct {
	client *binance.Client
}

// NewBinancePricer creates a pricer backed by the given Binance client.
func NewBinancePricer(client *binance.Client) *BinancePricer {
	return &BinancePricer{client: client}
}

// GetPrice returns the last traded price for the pair's symbol.
func (p *BinancePricer) GetPrice(ctx context.Context, pair entity.Pair) (decimal.Decimal, error) {
	prices, err := p.client.NewListPricesService().Symbol(pair.Symbol()).Do(ctx)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(ErrPriceUnavailable, "binance list prices: %v", err)
	}
	if len(prices) == 0 {
		return decimal.Decimal{}, errors.Wrapf(ErrPriceUnavailable, "binance returned no prices for %s", pair.String())
	}

	price, err := decimal.NewFromString(prices[0].Price)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(ErrPriceUnavailable, "bad binance price %q", prices[0].Price)
	}

	return price, nil
}
