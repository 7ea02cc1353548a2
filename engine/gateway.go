package engine

// Side of an order from the agent's point of view.
type Side uint8

const (
	SideBuy Side = iota
	SideSell
)

func (s Side) String() string {
	if s == SideBuy {
		return "BUY"
	}
	return "SELL"
}

// Lifespan controls how long an inserted order rests on the venue.
type Lifespan uint8

const (
	// LifespanGoodForDay keeps the order live until filled, cancelled or
	// the trading session ends.
	LifespanGoodForDay Lifespan = iota
	// LifespanFillAndKill cancels whatever cannot trade immediately.
	LifespanFillAndKill
)

func (l Lifespan) String() string {
	if l == LifespanFillAndKill {
		return "FAK"
	}
	return "GFD"
}

// Gateway is the outbound command surface toward the execution venue.
// Calls are fire-and-forget: the trader does not wait for acknowledgement
// and reconciles through later status/fill/error events. A non-nil error
// means the command could not even be sent.
type Gateway interface {
	SubmitOrder(orderID uint64, side Side, price, volume int64, lifespan Lifespan) error
	CancelOrder(orderID uint64) error
	SubmitHedgeOrder(orderID uint64, side Side, price, volume int64) error
}
