package model

// Action is the engine's directional recommendation.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// IsEntry reports whether the action opens a position.
func (a Action) IsEntry() bool {
	return a == ActionBuy || a == ActionSell
}

// Direction returns the position direction an entry action opens.
// HOLD maps to the empty direction.
func (a Action) Direction() Direction {
	switch a {
	case ActionBuy:
		return Long
	case ActionSell:
		return Short
	default:
		return ""
	}
}
