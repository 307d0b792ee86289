package ledger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Seed is the known starting state Initialize rewrites the ledgers to.
type Seed struct {
	Trades []SeedTrade
	Prices []SeedPrice
	// BtcBalance and EurBalance seed one entry per wallet, sharing a
	// freshly minted transaction id.
	BtcBalance int64
	EurBalance int64
}

// SeedTrade one historical trade history row.
type SeedTrade struct {
	Timestamp int64
	ID        string
	BtcDelta  int64
	EurDelta  int64
	Rate      int64
}

// SeedPrice one historical price history row.
type SeedPrice struct {
	Timestamp int64
	Rate      int64
}

// DefaultSeed is the development starting state: an empty BTC wallet,
// 1000 EUR, and two historical trades whose tail sets the reference
// rate to 575000 EUR-cents.
func DefaultSeed() Seed {
	return Seed{
		Trades: []SeedTrade{
			{Timestamp: 1528524100, ID: uuid.NewString(), BtcDelta: 19620000, EurDelta: -109890, Rate: 540000},
			{Timestamp: 1538262307, ID: uuid.NewString(), BtcDelta: -19620000, EurDelta: 109890, Rate: 575000},
		},
		Prices:     []SeedPrice{{Timestamp: 1528524100, Rate: 558264}},
		BtcBalance: 0,
		EurBalance: 100000,
	}
}

// Initialize clears and rewrites all four ledgers to the seed state.
// It is a setup-time operation only and refuses to discard an existing
// trade history unless force is set.
func (s *Store) Initialize(seed Seed, force bool) error {
	s.tradeMu.Lock()
	defer s.tradeMu.Unlock()
	s.btcMu.Lock()
	defer s.btcMu.Unlock()
	s.eurMu.Lock()
	defer s.eurMu.Unlock()
	s.priceMu.Lock()
	defer s.priceMu.Unlock()

	if !force {
		// a corrupt history also blocks an unforced reset
		if _, err := s.lastTradeLocked(); err == nil {
			return ErrHistoryNotEmpty
		} else if !errors.Is(err, ErrNoTradeYet) {
			return err
		}
	}

	tradeLines := []string{tradeHeader}
	for _, t := range seed.Trades {
		tradeLines = append(tradeLines, fmt.Sprintf("%d%s%s%s%+d%s%+d%s%d",
			t.Timestamp, delimiter, t.ID, delimiter, t.BtcDelta, delimiter, t.EurDelta, delimiter, t.Rate))
	}
	if err := s.rewrite(tradeHistoryFile, tradeLines); err != nil {
		return err
	}

	priceLines := []string{priceHeader}
	for _, p := range seed.Prices {
		priceLines = append(priceLines, fmt.Sprintf("%d%s%d", p.Timestamp, delimiter, p.Rate))
	}
	if err := s.rewrite(priceHistoryFile, priceLines); err != nil {
		return err
	}

	// both wallet seeds share one transaction id, like a transition would
	id := uuid.NewString()
	ts := s.now().Unix()
	seedWallet := func(name string, amount int64) error {
		return s.rewrite(name, []string{
			walletHeader,
			strings.Join([]string{strconv.FormatInt(ts, 10), id, strconv.FormatInt(amount, 10)}, delimiter),
		})
	}
	if err := seedWallet(btcWalletFile, seed.BtcBalance); err != nil {
		return err
	}
	if err := seedWallet(eurWalletFile, seed.EurBalance); err != nil {
		return err
	}

	s.btcTail = &BalanceEntry{Timestamp: ts, ID: id, Amount: seed.BtcBalance}
	s.eurTail = &BalanceEntry{Timestamp: ts, ID: id, Amount: seed.EurBalance}
	s.tradeTail = nil
	if n := len(seed.Trades); n > 0 {
		t := seed.Trades[n-1]
		s.tradeTail = &TradeEntry{Timestamp: t.Timestamp, ID: t.ID, BtcDelta: t.BtcDelta, EurDelta: t.EurDelta, Rate: t.Rate}
	}

	return nil
}
