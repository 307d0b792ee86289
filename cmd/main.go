// Command autotrader runs the BTC/EUR auto trader: it polls the market
// price on a fixed interval, keeps append-only CSV ledgers of both
// wallet balances, and executes a full-balance buy or sell whenever the
// price moves far enough from the last trade's reference rate.
//
// Usage:
//
//	autotrader --mode reset           seed the ledgers, then trade
//	autotrader --config config.yaml
//
// Optional environment variables (only for --feed binance):
//
//	BINANCE_API_KEY, BINANCE_API_SECRET
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/adshao/go-binance/v2"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"autotrader/config"
	"autotrader/internal"
	"autotrader/internal/services"
	"autotrader/internal/services/detector"
	"autotrader/internal/services/executor"
	"autotrader/internal/services/pricer"
	"autotrader/internal/storage/journal"
	"autotrader/internal/storage/ledger"
)

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	cfg, err := config.Get()
	if err != nil {
		logger.Fatal("failed to get configuration", zap.Error(err))
	}

	logger.Info("autotrader starting",
		zap.String("pair", cfg.Pair.String()),
		zap.String("mode", cfg.Mode),
		zap.String("feed", cfg.Feed))

	store, err := ledger.Open(cfg.DataDir)
	if err != nil {
		logger.Fatal("open ledger store", zap.Error(err))
	}

	if cfg.Mode == config.ModeReset {
		if err := store.Initialize(ledger.DefaultSeed(), cfg.Force); err != nil {
			if errors.Is(err, ledger.ErrHistoryNotEmpty) {
				logger.Fatal("refusing to reset: trade history is not empty, pass --force to discard it")
			}
			logger.Fatal("initialize ledgers", zap.Error(err))
		}
		// a stale journal must not be replayed over freshly seeded ledgers
		if err := os.RemoveAll(cfg.JournalDir); err != nil {
			logger.Fatal("clear transition journal", zap.Error(err))
		}
		logger.Info("ledgers reinitialized to seed state")
	}

	journalStore, err := journal.NewStore(cfg.JournalDir)
	if err != nil {
		logger.Fatal("open transition journal", zap.Error(err))
	}

	var feed pricer.Pricer
	switch cfg.Feed {
	case "binance":
		feed = pricer.NewBinancePricer(binance.NewClient(os.Getenv("BINANCE_API_KEY"), os.Getenv("BINANCE_API_SECRET")))
	case "blockchain":
		feed = pricer.NewBlockchainPricer(cfg.FeedURL)
	default:
		logger.Fatal("unsupported feed", zap.String("feed", cfg.Feed))
	}

	exec := executor.New(cfg.Pair, store, journalStore, logger)
	service := services.NewTradeService(logger, cfg.Pair, feed, store,
		detector.New(cfg.SellRatio, cfg.BuyRatio), exec, cfg.FetchTimeout)

	bot := internal.NewTradingBot(cfg.Pair, cfg.PollInterval, service, exec, store, journalStore, logger)
	defer bot.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("trading bot stopped", zap.Error(err))
	}
}
