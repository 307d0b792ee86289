// Package ledger implements the durable append-only ledger store: one
// balance ledger per currency, the trade history and the price history,
// persisted as CSV files. Append is the only mutation; current balance
// and last trade rate are derived reads over the tail of the log.
package ledger

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"autotrader/internal/entity"
)

const (
	btcWalletFile    = "wallet-btc-balance.csv"
	eurWalletFile    = "wallet-eur-balance.csv"
	tradeHistoryFile = "trade-history-btceur.csv"
	priceHistoryFile = "exchangerate-history.csv"

	delimiter = ","

	walletHeader = "timestamp,id,amount"
	tradeHeader  = "timestamp,id,BTC,EUR,rate"
	priceHeader  = "timestamp,rate"
)

var (
	// ErrLedgerEmpty is returned when a ledger has never been seeded.
	ErrLedgerEmpty = errors.New("ledger is empty")
	// ErrLedgerCorrupt is returned when the ledger tail is not parseable.
	ErrLedgerCorrupt = errors.New("ledger is corrupt")
	// ErrNoTradeYet is returned when the trade history holds no entries.
	ErrNoTradeYet = errors.New("no trade in history yet")
	// ErrWriteFailed is returned when a durable append did not complete.
	ErrWriteFailed = errors.New("ledger write failed")
	// ErrHistoryNotEmpty is returned by Initialize when it would discard
	// an existing trade history without force.
	ErrHistoryNotEmpty = errors.New("trade history is not empty")
)

// BalanceEntry one row of a wallet ledger. Amount is the absolute
// balance after the entry, not a delta.
type BalanceEntry struct {
	Timestamp int64
	ID        string
	Amount    int64
}

// TradeEntry one row of the trade history. Deltas are in smallest units
// and carry opposite signs.
type TradeEntry struct {
	Timestamp int64
	ID        string
	BtcDelta  int64
	EurDelta  int64
	Rate      int64
}

// PriceEntry one observed market price sample, in EUR-cents.
type PriceEntry struct {
	Timestamp int64
	Rate      int64
}

// Store is the CSV-backed ledger store. Each ledger file has its own
// mutex scoping exclusive access for the duration of one append, and an
// in-memory tail cache so reads do not re-scan growing files.
type Store struct {
	dir string
	now func() time.Time

	btcMu   sync.Mutex
	btcTail *BalanceEntry

	eurMu   sync.Mutex
	eurTail *BalanceEntry

	tradeMu   sync.Mutex
	tradeTail *TradeEntry

	priceMu sync.Mutex
}

// Open prepares the store under dir, creating empty ledgers with their
// headers when missing.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create ledger dir")
	}

	s := &Store{dir: dir, now: time.Now}

	headers := map[string]string{
		btcWalletFile:    walletHeader,
		eurWalletFile:    walletHeader,
		tradeHistoryFile: tradeHeader,
		priceHistoryFile: priceHeader,
	}
	for name, header := range headers {
		if err := s.ensureFile(name, header); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Close releases the store. Files are opened per append, so closing
// only drops the tail caches.
func (s *Store) Close() error {
	s.btcMu.Lock()
	s.btcTail = nil
	s.btcMu.Unlock()
	s.eurMu.Lock()
	s.eurTail = nil
	s.eurMu.Unlock()
	s.tradeMu.Lock()
	s.tradeTail = nil
	s.tradeMu.Unlock()
	return nil
}

// CurrentBalance returns the amount of the last entry in the currency's
// ledger.
func (s *Store) CurrentBalance(currency string) (int64, error) {
	e, err := s.LastBalanceEntry(currency)
	if err != nil {
		return 0, err
	}
	return e.Amount, nil
}

// LastBalanceEntry returns the tail entry of the currency's ledger.
func (s *Store) LastBalanceEntry(currency string) (BalanceEntry, error) {
	mu, tail, name, err := s.wallet(currency)
	if err != nil {
		return BalanceEntry{}, err
	}

	mu.Lock()
	defer mu.Unlock()

	if *tail != nil {
		return **tail, nil
	}

	line, err := s.lastLine(name)
	if err != nil {
		return BalanceEntry{}, err
	}
	e, err := parseBalanceLine(name, line)
	if err != nil {
		return BalanceEntry{}, err
	}
	*tail = &e

	return e, nil
}

// LastTradeRate returns the reference rate of the most recent trade.
func (s *Store) LastTradeRate() (int64, error) {
	e, err := s.LastTrade()
	if err != nil {
		return 0, err
	}
	return e.Rate, nil
}

// LastTrade returns the tail entry of the trade history.
func (s *Store) LastTrade() (TradeEntry, error) {
	s.tradeMu.Lock()
	defer s.tradeMu.Unlock()
	return s.lastTradeLocked()
}

func (s *Store) lastTradeLocked() (TradeEntry, error) {
	if s.tradeTail != nil {
		return *s.tradeTail, nil
	}

	line, err := s.lastLine(tradeHistoryFile)
	if err != nil {
		if errors.Is(err, ErrLedgerEmpty) {
			return TradeEntry{}, ErrNoTradeYet
		}
		return TradeEntry{}, err
	}
	e, err := parseTradeLine(line)
	if err != nil {
		return TradeEntry{}, err
	}
	s.tradeTail = &e

	return e, nil
}

// AppendBalance appends one balance entry. Business validation is the
// trade executor's job; this only guarantees a durable append.
func (s *Store) AppendBalance(currency, id string, amount int64) error {
	mu, tail, name, err := s.wallet(currency)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()

	e := BalanceEntry{Timestamp: s.now().Unix(), ID: id, Amount: amount}
	line := strings.Join([]string{
		strconv.FormatInt(e.Timestamp, 10),
		id,
		strconv.FormatInt(amount, 10),
	}, delimiter)
	if err := s.appendLine(name, line); err != nil {
		return err
	}
	*tail = &e

	return nil
}

// AppendTrade appends one trade history entry. Deltas are written with
// an explicit sign prefix.
func (s *Store) AppendTrade(id string, btcDelta, eurDelta, rate int64) error {
	s.tradeMu.Lock()
	defer s.tradeMu.Unlock()

	e := TradeEntry{Timestamp: s.now().Unix(), ID: id, BtcDelta: btcDelta, EurDelta: eurDelta, Rate: rate}
	line := fmt.Sprintf("%d%s%s%s%+d%s%+d%s%d",
		e.Timestamp, delimiter, id, delimiter, btcDelta, delimiter, eurDelta, delimiter, rate)
	if err := s.appendLine(tradeHistoryFile, line); err != nil {
		return err
	}
	s.tradeTail = &e

	return nil
}

// AppendPriceSample records one observed market rate in EUR-cents.
func (s *Store) AppendPriceSample(rate int64) error {
	s.priceMu.Lock()
	defer s.priceMu.Unlock()

	line := fmt.Sprintf("%d%s%d", s.now().Unix(), delimiter, rate)
	return s.appendLine(priceHistoryFile, line)
}

// BalanceEntries returns every entry of the currency's ledger, oldest
// first. Audit read, not used by the decision path.
func (s *Store) BalanceEntries(currency string) ([]BalanceEntry, error) {
	mu, _, name, err := s.wallet(currency)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()

	var entries []BalanceEntry
	err = s.scan(name, func(line string) error {
		e, err := parseBalanceLine(name, line)
		if err != nil {
			return err
		}
		entries = append(entries, e)
		return nil
	})
	return entries, err
}

// TradeEntries returns the full trade history, oldest first.
func (s *Store) TradeEntries() ([]TradeEntry, error) {
	s.tradeMu.Lock()
	defer s.tradeMu.Unlock()

	var entries []TradeEntry
	err := s.scan(tradeHistoryFile, func(line string) error {
		e, err := parseTradeLine(line)
		if err != nil {
			return err
		}
		entries = append(entries, e)
		return nil
	})
	return entries, err
}

// PriceEntries returns the full price history, oldest first.
func (s *Store) PriceEntries() ([]PriceEntry, error) {
	s.priceMu.Lock()
	defer s.priceMu.Unlock()

	var entries []PriceEntry
	err := s.scan(priceHistoryFile, func(line string) error {
		fields := strings.Split(line, delimiter)
		if len(fields) != 2 {
			return errors.Wrapf(ErrLedgerCorrupt, "%s: bad row %q", priceHistoryFile, line)
		}
		ts, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return errors.Wrapf(ErrLedgerCorrupt, "%s: bad timestamp %q", priceHistoryFile, fields[0])
		}
		rate, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return errors.Wrapf(ErrLedgerCorrupt, "%s: bad rate %q", priceHistoryFile, fields[1])
		}
		entries = append(entries, PriceEntry{Timestamp: ts, Rate: rate})
		return nil
	})
	return entries, err
}

func (s *Store) wallet(currency string) (*sync.Mutex, **BalanceEntry, string, error) {
	switch currency {
	case entity.BTC:
		return &s.btcMu, &s.btcTail, btcWalletFile, nil
	case entity.EUR:
		return &s.eurMu, &s.eurTail, eurWalletFile, nil
	default:
		return nil, nil, "", errors.Errorf("unknown currency %q", currency)
	}
}

func (s *Store) ensureFile(name, header string) error {
	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return errors.Wrapf(err, "stat %s", name)
	}
	return s.rewrite(name, []string{header})
}

// appendLine durably appends one row: once it returns nil the entry is
// visible to subsequent reads even across a process restart.
func (s *Store) appendLine(name, line string) error {
	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrapf(ErrWriteFailed, "open %s: %v", name, err)
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		f.Close()
		return errors.Wrapf(ErrWriteFailed, "append to %s: %v", name, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return errors.Wrapf(ErrWriteFailed, "sync %s: %v", name, err)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(ErrWriteFailed, "close %s: %v", name, err)
	}
	return nil
}

func (s *Store) rewrite(name string, lines []string) error {
	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrapf(ErrWriteFailed, "truncate %s: %v", name, err)
	}
	for _, line := range lines {
		if _, err := f.WriteString(line + "\n"); err != nil {
			f.Close()
			return errors.Wrapf(ErrWriteFailed, "write %s: %v", name, err)
		}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return errors.Wrapf(ErrWriteFailed, "sync %s: %v", name, err)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(ErrWriteFailed, "close %s: %v", name, err)
	}
	return nil
}

// lastLine returns the last non-empty row after the header.
func (s *Store) lastLine(name string) (string, error) {
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.Wrapf(ErrLedgerEmpty, "%s is missing", name)
		}
		return "", errors.Wrapf(err, "open %s", name)
	}
	defer f.Close()

	var last string
	var rows int
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			last = line
			rows++
		}
	}
	if err := sc.Err(); err != nil {
		return "", errors.Wrapf(err, "read %s", name)
	}
	if rows <= 1 {
		return "", errors.Wrapf(ErrLedgerEmpty, "%s has no entries", name)
	}
	return last, nil
}

// scan calls fn for every non-empty row after the header.
func (s *Store) scan(name string, fn func(line string) error) error {
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(ErrLedgerEmpty, "%s is missing", name)
		}
		return errors.Wrapf(err, "open %s", name)
	}
	defer f.Close()

	first := true
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if first {
			first = false
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return errors.Wrapf(sc.Err(), "read %s", name)
}

func parseBalanceLine(name, line string) (BalanceEntry, error) {
	fields := strings.Split(line, delimiter)
	if len(fields) != 3 {
		return BalanceEntry{}, errors.Wrapf(ErrLedgerCorrupt, "%s: bad row %q", name, line)
	}
	ts, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return BalanceEntry{}, errors.Wrapf(ErrLedgerCorrupt, "%s: bad timestamp %q", name, fields[0])
	}
	amount, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return BalanceEntry{}, errors.Wrapf(ErrLedgerCorrupt, "%s: bad amount %q", name, fields[2])
	}
	return BalanceEntry{Timestamp: ts, ID: fields[1], Amount: amount}, nil
}

func parseTradeLine(line string) (TradeEntry, error) {
	fields := strings.Split(line, delimiter)
	if len(fields) != 5 {
		return TradeEntry{}, errors.Wrapf(ErrLedgerCorrupt, "%s: bad row %q", tradeHistoryFile, line)
	}
	ts, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return TradeEntry{}, errors.Wrapf(ErrLedgerCorrupt, "%s: bad timestamp %q", tradeHistoryFile, fields[0])
	}
	btcDelta, err := entity.ParseAmount(fields[2])
	if err != nil {
		return TradeEntry{}, errors.Wrapf(ErrLedgerCorrupt, "%s: bad BTC delta %q", tradeHistoryFile, fields[2])
	}
	eurDelta, err := entity.ParseAmount(fields[3])
	if err != nil {
		return TradeEntry{}, errors.Wrapf(ErrLedgerCorrupt, "%s: bad EUR delta %q", tradeHistoryFile, fields[3])
	}
	rate, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return TradeEntry{}, errors.Wrapf(ErrLedgerCorrupt, "%s: bad rate %q", tradeHistoryFile, fields[4])
	}
	return TradeEntry{Timestamp: ts, ID: fields[1], BtcDelta: btcDelta, EurDelta: eurDelta, Rate: rate}, nil
}
