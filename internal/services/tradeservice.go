// Package services wires one evaluation cycle: fetch the market price,
// record the sample, and let the detector drive the executor.
package services

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"autotrader/internal/entity"
	"autotrader/internal/services/detector"
	"autotrader/internal/services/executor"
	"autotrader/internal/services/pricer"
	"autotrader/internal/storage/ledger"
	"autotrader/pkg/retrier"
)

const (
	defaultFetchTimeout = 10 * time.Second

	// retry policy for one price fetch: the first attempt plus
	// fetchRetries more, all inside the fetch timeout
	fetchRetries       = 2
	fetchRetryInterval = 500 * time.Millisecond
)

// TradeService runs evaluation cycles for one trading pair. It keeps
// no state of its own between ticks; everything it needs is read back
// from the ledger store.
type TradeService struct {
	pair         entity.Pair
	pricer       pricer.Pricer
	ledger       *ledger.Store
	detector     *detector.Detector
	executor     *executor.Executor
	retrier      *retrier.Retrier
	fetchTimeout time.Duration
	logger       *zap.Logger
}

// NewTradeService creates the evaluation cycle for a pair.
func NewTradeService(logger *zap.Logger, pair entity.Pair, feed pricer.Pricer, ledgerStore *ledger.Store,
	det *detector.Detector, exec *executor.Executor, fetchTimeout time.Duration) *TradeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fetchTimeout <= 0 {
		fetchTimeout = defaultFetchTimeout
	}
	return &TradeService{
		pair:     pair,
		pricer:   feed,
		ledger:   ledgerStore,
		detector: det,
		executor: exec,
		retrier: retrier.New(
			retrier.WithMaxRetries(fetchRetries),
			retrier.WithInitialInterval(fetchRetryInterval),
		),
		fetchTimeout: fetchTimeout,
		logger:       logger,
	}
}

// Trade runs one tick. Every error aborts only this tick; the caller
// schedules the next one. The returned event is nil when no transition
// was triggered.
func (t *TradeService) Trade(ctx context.Context) (*entity.TradeEvent, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, t.fetchTimeout)
	defer cancel()

	price, err := retrier.DoWithData(t.retrier, fetchCtx, func(ctx context.Context) (decimal.Decimal, error) {
		return t.pricer.GetPrice(ctx, t.pair)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "fetch price for %s", t.pair.String())
	}

	rate := entity.RateToCents(price)
	if rate <= 0 {
		return nil, errors.Wrapf(pricer.ErrPriceUnavailable, "non-positive rate %d for %s", rate, t.pair.String())
	}

	if err := t.ledger.AppendPriceSample(rate); err != nil {
		return nil, errors.Wrap(err, "record price sample")
	}

	// an uninitialized ledger must not be allowed to trade
	lastRate, err := t.ledger.LastTradeRate()
	if err != nil {
		return nil, errors.Wrap(err, "read last trade rate")
	}

	btcBalance, err := t.ledger.CurrentBalance(entity.BTC)
	if err != nil {
		return nil, errors.Wrap(err, "read BTC balance")
	}
	eurBalance, err := t.ledger.CurrentBalance(entity.EUR)
	if err != nil {
		return nil, errors.Wrap(err, "read EUR balance")
	}

	action, ratio, err := t.detector.Detect(lastRate, rate, btcBalance, eurBalance)
	if err != nil {
		return nil, errors.Wrapf(err, "detector failed for %s", t.pair.String())
	}

	t.logger.Debug("rate comparison",
		zap.Int64("last_trade_rate", lastRate),
		zap.Int64("current_rate", rate),
		zap.String("ratio", ratio.StringFixed(4)))

	switch action {
	case entity.ActionSell:
		return t.executor.Sell(btcBalance, price)
	case entity.ActionBuy:
		return t.executor.Buy(eurBalance, price)
	default:
		return nil, nil
	}
}
