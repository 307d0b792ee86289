package internal

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autotrader/internal/entity"
	"autotrader/internal/services"
	"autotrader/internal/services/detector"
	"autotrader/internal/services/executor"
	"autotrader/internal/services/pricer"
	"autotrader/internal/storage/journal"
	"autotrader/internal/storage/ledger"
)

var testPair = entity.Pair{From: entity.BTC, To: entity.EUR}

type staticPricer struct {
	price decimal.Decimal
}

func (s *staticPricer) GetPrice(_ context.Context, _ entity.Pair) (decimal.Decimal, error) {
	return s.price, nil
}

func newTestBot(t *testing.T, seed ledger.Seed, feed pricer.Pricer, interval time.Duration) (*TradingBot, *ledger.Store) {
	t.Helper()

	store, err := ledger.Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Initialize(seed, false))

	journalStore, err := journal.NewStore(t.TempDir())
	require.NoError(t, err)

	exec := executor.New(testPair, store, journalStore, nil)
	svc := services.NewTradeService(nil, testPair, feed, store,
		detector.New(decimal.Decimal{}, decimal.Decimal{}), exec, time.Second)

	return NewTradingBot(testPair, interval, svc, exec, store, journalStore, nil), store
}

func TestRun_StopsOnContextDone(t *testing.T) {
	// price equal to the reference rate keeps every tick inside the band
	feed := &staticPricer{price: decimal.RequireFromString("5750.00")}
	bot, store := newTestBot(t, ledger.DefaultSeed(), feed, 10*time.Millisecond)
	defer bot.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := bot.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// ticks fired and recorded samples, but no trade was triggered
	prices, err := store.PriceEntries()
	require.NoError(t, err)
	assert.Greater(t, len(prices), 1)

	eur, err := store.CurrentBalance(entity.EUR)
	require.NoError(t, err)
	assert.Equal(t, int64(100000), eur)
}

func TestRun_FailsWithoutSeededLedgers(t *testing.T) {
	store, err := ledger.Open(t.TempDir())
	require.NoError(t, err)

	journalStore, err := journal.NewStore(t.TempDir())
	require.NoError(t, err)

	feed := &staticPricer{price: decimal.RequireFromString("5750.00")}
	exec := executor.New(testPair, store, journalStore, nil)
	svc := services.NewTradeService(nil, testPair, feed, store,
		detector.New(decimal.Decimal{}, decimal.Decimal{}), exec, time.Second)

	bot := NewTradingBot(testPair, time.Minute, svc, exec, store, journalStore, nil)
	defer bot.Close()

	err = bot.Run(context.Background())
	assert.ErrorIs(t, err, ledger.ErrLedgerEmpty)
}

func TestRun_TradesOnFirstTick(t *testing.T) {
	// reference rate 575000, current 650000 triggers a buy
	feed := &staticPricer{price: decimal.RequireFromString("6500.00")}
	bot, store := newTestBot(t, ledger.DefaultSeed(), feed, 10*time.Millisecond)
	defer bot.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := bot.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	btc, err := store.CurrentBalance(entity.BTC)
	require.NoError(t, err)
	assert.Equal(t, int64(15384615), btc)

	eur, err := store.CurrentBalance(entity.EUR)
	require.NoError(t, err)
	assert.Equal(t, int64(0), eur)

	// once the EUR wallet is empty later ticks stay flat
	trades, err := store.TradeEntries()
	require.NoError(t, err)
	assert.Len(t, trades, 3)
}
