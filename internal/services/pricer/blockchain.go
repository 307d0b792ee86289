package pricer

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"autotrader/internal/entity"
)

// DefaultTickerURL is the blockchain.info ticker endpoint: a JSON
// object keyed by currency code, each with a "last" price field.
const DefaultTickerURL = "https://blockchain.info/ticker"

// BlockchainPricer fetches the current BTC price from the
// blockchain.info ticker.
type BlockchainPricer struct {
	url    string
	client *http.Client
}

// NewBlockchainPricer creates a pricer against the given ticker URL,
// falling back to DefaultTickerURL when empty.
func NewBlockchainPricer(url string) *BlockchainPricer {
	if url == "" {
		url = DefaultTickerURL
	}
	return &BlockchainPricer{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// GetPrice returns the last traded price of BTC in the pair's quote
// currency. Any network, status or parse failure surfaces as
// ErrPriceUnavailable.
func (p *BlockchainPricer) GetPrice(ctx context.Context, pair entity.Pair) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(ErrPriceUnavailable, "build ticker request: %v", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(ErrPriceUnavailable, "fetch ticker: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Decimal{}, errors.Wrapf(ErrPriceUnavailable, "ticker returned %s", resp.Status)
	}

	var tickers map[string]struct {
		Last json.Number `json:"last"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tickers); err != nil {
		return decimal.Decimal{}, errors.Wrapf(ErrPriceUnavailable, "decode ticker response: %v", err)
	}

	ticker, ok := tickers[pair.To]
	if !ok {
		return decimal.Decimal{}, errors.Wrapf(ErrPriceUnavailable, "no ticker for %s", pair.To)
	}

	price, err := decimal.NewFromString(ticker.Last.String())
	if err != nil || !price.IsPositive() {
		return decimal.Decimal{}, errors.Wrapf(ErrPriceUnavailable, "bad last price %q for %s", ticker.Last.String(), pair.To)
	}

	return price, nil
}
