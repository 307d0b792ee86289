package entity

// Action represents the trade transition to be performed.
type Action int

const (
	// ActionNull represents no action
	ActionNull Action = iota
	// ActionBuy acquires BTC for EUR
	ActionBuy
	// ActionSell liquidates BTC into EUR
	ActionSell
)

// String returns the string representation of the action.
func (a Action) String() string {
	switch a {
	case ActionBuy:
		return "BUY"
	case ActionSell:
		return "SELL"
	default:
		return "NULL"
	}
}
