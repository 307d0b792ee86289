// Package executor performs one atomic currency transition: it
// validates funds, computes the conversion, journals the intent and
// appends the paired balance entries plus the trade history entry.
package executor

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"autotrader/internal/entity"
	"autotrader/internal/storage/journal"
	"autotrader/internal/storage/ledger"
)

// ErrInsufficientFunds is returned when the requested amount exceeds
// the current balance. Nothing is persisted in that case.
var ErrInsufficientFunds = errors.New("insufficient funds")

var (
	btcStep = decimal.NewFromInt(entity.BtcStep)
	eurStep = decimal.NewFromInt(entity.EurStep)
)

// Executor settles transitions against the local ledger store.
type Executor struct {
	pair    entity.Pair
	ledger  *ledger.Store
	journal *journal.Store
	logger  *zap.Logger
	now     func() time.Time
}

// New creates an executor for one ledger pair.
func New(pair entity.Pair, ledgerStore *ledger.Store, journalStore *journal.Store, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		pair:    pair,
		ledger:  ledgerStore,
		journal: journalStore,
		logger:  logger,
		now:     time.Now,
	}
}

// Sell converts btcAmount satoshi into EUR at the given market rate
// (EUR per BTC). The EUR proceeds in cents are rounded half away from
// zero, which fixes the exact settlement amount.
func (e *Executor) Sell(btcAmount int64, rate decimal.Decimal) (*entity.TradeEvent, error) {
	btcBalance, eurBalance, err := e.balances()
	if err != nil {
		return nil, err
	}
	if btcAmount > btcBalance {
		return nil, errors.Wrapf(ErrInsufficientFunds, "sell %d satoshi, BTC balance %d", btcAmount, btcBalance)
	}

	eurReceived := decimal.NewFromInt(btcAmount).Div(btcStep).Mul(rate).Mul(eurStep).Round(0).IntPart()

	return e.commit(entity.ActionSell, journal.Record{
		ID:         uuid.NewString(),
		Timestamp:  e.now().Unix(),
		BtcBalance: btcBalance - btcAmount,
		EurBalance: eurBalance + eurReceived,
		BtcDelta:   -btcAmount,
		EurDelta:   eurReceived,
		Rate:       entity.RateToCents(rate),
	})
}

// Buy converts eurAmount cents into BTC at the given market rate.
// The satoshi received are rounded half away from zero.
func (e *Executor) Buy(eurAmount int64, rate decimal.Decimal) (*entity.TradeEvent, error) {
	btcBalance, eurBalance, err := e.balances()
	if err != nil {
		return nil, err
	}
	if eurAmount > eurBalance {
		return nil, errors.Wrapf(ErrInsufficientFunds, "buy with %d cents, EUR balance %d", eurAmount, eurBalance)
	}

	btcReceived := decimal.NewFromInt(eurAmount).Div(eurStep).Div(rate).Mul(btcStep).Round(0).IntPart()

	return e.commit(entity.ActionBuy, journal.Record{
		ID:         uuid.NewString(),
		Timestamp:  e.now().Unix(),
		BtcBalance: btcBalance + btcReceived,
		EurBalance: eurBalance - eurAmount,
		BtcDelta:   btcReceived,
		EurDelta:   -eurAmount,
		Rate:       entity.RateToCents(rate),
	})
}

// Recover re-applies the last journaled transition if the trade history
// tail does not carry its transaction id. Safe to call on every start;
// it is a no-op when ledger and journal agree.
func (e *Executor) Recover() error {
	rec, err := e.journal.Last()
	if errors.Is(err, journal.ErrNoRecords) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "read transition journal")
	}

	last, err := e.ledger.LastTrade()
	if err != nil && !errors.Is(err, ledger.ErrNoTradeYet) {
		return errors.Wrap(err, "read trade history tail")
	}
	if err == nil && last.ID == rec.ID {
		return nil
	}

	e.logger.Warn("replaying interrupted transition",
		zap.String("id", rec.ID),
		zap.Int64("btc_delta", rec.BtcDelta),
		zap.Int64("eur_delta", rec.EurDelta))

	return e.apply(rec)
}

func (e *Executor) balances() (btc, eur int64, err error) {
	btc, err = e.ledger.CurrentBalance(entity.BTC)
	if err != nil {
		return 0, 0, errors.Wrap(err, "read BTC balance")
	}
	eur, err = e.ledger.CurrentBalance(entity.EUR)
	if err != nil {
		return 0, 0, errors.Wrap(err, "read EUR balance")
	}
	return btc, eur, nil
}

// commit journals the transition first, then performs the three ledger
// appends. The journal write is the durable barrier: if the process
// dies mid-append, Recover finishes the transition on the next start.
func (e *Executor) commit(action entity.Action, rec journal.Record) (*entity.TradeEvent, error) {
	if err := e.journal.Append(rec); err != nil {
		return nil, errors.Wrap(err, "journal transition")
	}
	if err := e.apply(rec); err != nil {
		return nil, err
	}

	event := &entity.TradeEvent{
		ID:       rec.ID,
		Action:   action,
		Pair:     e.pair,
		BtcDelta: rec.BtcDelta,
		EurDelta: rec.EurDelta,
		Rate:     rec.Rate,
		Time:     time.Unix(rec.Timestamp, 0).UTC(),
	}

	// trade notification, observational only
	e.logger.Info("trade executed",
		zap.String("action", action.String()),
		zap.String("btc", entity.FormatUnits(entity.BTC, abs(rec.BtcDelta))),
		zap.String("eur", entity.FormatUnits(entity.EUR, abs(rec.EurDelta))),
		zap.Int64("rate", rec.Rate),
		zap.String("id", rec.ID),
		zap.Time("at", event.Time))

	return event, nil
}

// apply performs the three ledger appends of a transition. A balance
// append is skipped when the ledger tail already carries the
// transaction id, so replaying a transition that died between appends
// never writes a duplicate row for the same id.
func (e *Executor) apply(rec journal.Record) error {
	if err := e.appendBalanceOnce(entity.BTC, rec.ID, rec.BtcBalance); err != nil {
		return errors.Wrap(err, "append BTC balance")
	}
	if err := e.appendBalanceOnce(entity.EUR, rec.ID, rec.EurBalance); err != nil {
		return errors.Wrap(err, "append EUR balance")
	}
	if err := e.ledger.AppendTrade(rec.ID, rec.BtcDelta, rec.EurDelta, rec.Rate); err != nil {
		return errors.Wrap(err, "append trade history")
	}
	return nil
}

func (e *Executor) appendBalanceOnce(currency, id string, amount int64) error {
	tail, err := e.ledger.LastBalanceEntry(currency)
	if err != nil && !errors.Is(err, ledger.ErrLedgerEmpty) {
		return errors.Wrap(err, "read ledger tail")
	}
	if err == nil && tail.ID == id {
		return nil
	}
	return e.ledger.AppendBalance(currency, id, amount)
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
