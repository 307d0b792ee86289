package entity

import (
	"fmt"
	"time"
)

// TradeEvent one executed transition. BtcDelta and EurDelta are in
// smallest units and carry opposite signs; ID is the transaction id
// shared with the two balance entries the transition produced.
type TradeEvent struct {
	ID       string
	Action   Action
	Pair     Pair
	BtcDelta int64
	EurDelta int64
	// Rate is the BTC/EUR price in EUR-cents at execution time.
	Rate int64
	Time time.Time
}

// String returns a human-readable string representation.
func (t *TradeEvent) String() string {
	return fmt.Sprintf("%s action: %s btc: %s eur: %s rate: %d",
		t.Pair.String(), t.Action.String(),
		FormatUnits(BTC, t.BtcDelta), FormatUnits(EUR, t.EurDelta), t.Rate)
}
