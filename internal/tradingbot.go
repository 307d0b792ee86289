// Package internal hosts the trading bot: the loop that schedules one
// evaluation cycle per poll interval with no overlap between ticks.
package internal

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"autotrader/internal/entity"
	"autotrader/internal/services"
	"autotrader/internal/services/executor"
	"autotrader/internal/storage/journal"
	"autotrader/internal/storage/ledger"
)

// TradingBot represents a single trading instance.
type TradingBot struct {
	pair     entity.Pair
	interval time.Duration
	service  *services.TradeService
	executor *executor.Executor
	ledger   *ledger.Store
	journal  *journal.Store
	logger   *zap.Logger
}

// NewTradingBot creates a new trading bot instance.
func NewTradingBot(pair entity.Pair, interval time.Duration, service *services.TradeService,
	exec *executor.Executor, ledgerStore *ledger.Store, journalStore *journal.Store, logger *zap.Logger) *TradingBot {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TradingBot{
		pair:     pair,
		interval: interval,
		service:  service,
		executor: exec,
		ledger:   ledgerStore,
		journal:  journalStore,
		logger:   logger,
	}
}

// Close releases the bot's stores.
func (b *TradingBot) Close() error {
	if err := b.journal.Close(); err != nil {
		return errors.Wrap(err, "close transition journal")
	}
	return b.ledger.Close()
}

// Run replays any interrupted transition, then executes evaluation
// cycles until the context is done. Ticks run strictly one at a time:
// a cycle finishes before the next fires, which is what lets the
// ledger get by with a single logical writer. A failed tick is logged
// and the next tick retries independently.
func (b *TradingBot) Run(ctx context.Context) error {
	if err := b.executor.Recover(); err != nil {
		return errors.Wrap(err, "recover interrupted transition")
	}

	btcBalance, err := b.ledger.CurrentBalance(entity.BTC)
	if err != nil {
		return errors.Wrap(err, "read BTC balance (seed the ledgers with --mode reset first)")
	}
	eurBalance, err := b.ledger.CurrentBalance(entity.EUR)
	if err != nil {
		return errors.Wrap(err, "read EUR balance (seed the ledgers with --mode reset first)")
	}

	b.logger.Info("trading loop started",
		zap.String("pair", b.pair.String()),
		zap.Duration("poll_interval", b.interval),
		zap.String("btc_balance", entity.FormatUnits(entity.BTC, btcBalance)),
		zap.String("eur_balance", entity.FormatUnits(entity.EUR, eurBalance)))

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("stopping trading loop", zap.String("pair", b.pair.String()))
			return ctx.Err()
		case <-ticker.C:
			event, err := b.service.Trade(ctx)
			if err != nil {
				b.logger.Error("tick failed", zap.String("pair", b.pair.String()), zap.Error(err))
				continue
			}
			if event != nil {
				b.logger.Info("trade event", zap.String("event", event.String()))
			}
		}
	}
}
