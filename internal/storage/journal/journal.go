// Package journal persists transition intents in a write-ahead log.
// The executor writes a record here before touching the ledger files,
// so an interrupted transition can be replayed on the next start.
package journal

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
)

const (
	segmentThreshold = 1000
	maxSegments      = 100
	keyPrefix        = "transition_"
)

// ErrNoRecords is returned when the journal holds no transitions.
var ErrNoRecords = errors.New("no transition records")

// Record captures everything needed to re-apply one transition:
// the resulting balances, the deltas and the reference rate.
type Record struct {
	ID         string `json:"id"`
	Timestamp  int64  `json:"ts"`
	BtcBalance int64  `json:"btc_balance"`
	EurBalance int64  `json:"eur_balance"`
	BtcDelta   int64  `json:"btc_delta"`
	EurDelta   int64  `json:"eur_delta"`
	Rate       int64  `json:"rate"`
}

// Store is the WAL-backed transition journal.
type Store struct {
	wal *gowal.Wal
	mu  sync.Mutex
}

// NewStore initializes the journal under the provided directory.
func NewStore(dir string) (*Store, error) {
	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "seg_",
		SegmentThreshold: segmentThreshold,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init transition journal")
	}

	return &Store{wal: wal}, nil
}

// Append durably writes the record. This is the write barrier of a
// transition: it must complete before any ledger append.
func (s *Store) Append(rec Record) error {
	if rec.ID == "" {
		return errors.New("transition record id is required")
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "marshal transition record")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Write(s.wal.CurrentIndex()+1, keyPrefix+rec.ID, payload)
}

// Last returns the most recently journaled transition.
func (s *Store) Last() (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var last *Record
	for msg := range s.wal.Iterator() {
		if !strings.HasPrefix(msg.Key, keyPrefix) {
			continue
		}
		var rec Record
		if err := json.Unmarshal(msg.Value, &rec); err != nil {
			return Record{}, errors.Wrap(err, "decode transition record")
		}
		last = &rec
	}
	if last == nil {
		return Record{}, ErrNoRecords
	}
	return *last, nil
}

// Close closes the underlying WAL.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
