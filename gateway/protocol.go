package gateway

import "encoding/json"

// Frame types exchanged with the execution gateway. Inbound frames carry
// venue events; outbound frames carry agent commands.
const (
	TypeOrderBook   = "order_book"
	TypeTradeTicks  = "trade_ticks"
	TypeOrderFilled = "order_filled"
	TypeOrderStatus = "order_status"
	TypeOrderError  = "order_error"
	TypeHedgeFilled = "hedge_filled"

	TypeInsertOrder = "insert_order"
	TypeCancelOrder = "cancel_order"
	TypeHedgeOrder  = "hedge_order"
)

// Envelope wraps every frame with its type discriminator.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// BookFrame carries a top-of-book snapshot (order book or trade ticks).
type BookFrame struct {
	Instrument string  `json:"instrument"`
	Sequence   uint64  `json:"sequence"`
	AskPrices  []int64 `json:"askPrices"`
	AskVolumes []int64 `json:"askVolumes"`
	BidPrices  []int64 `json:"bidPrices"`
	BidVolumes []int64 `json:"bidVolumes"`
}

// FillFrame reports a (partial) execution of a quote or hedge order.
type FillFrame struct {
	OrderID uint64 `json:"orderId"`
	Price   int64  `json:"price"`
	Volume  int64  `json:"volume"`
}

// StatusFrame reports order lifecycle progress. RemainingVolume zero means
// the order is done (filled, cancelled or rejected).
type StatusFrame struct {
	OrderID         uint64 `json:"orderId"`
	FillVolume      int64  `json:"fillVolume"`
	RemainingVolume int64  `json:"remainingVolume"`
	Fees            int64  `json:"fees"`
}

// ErrorFrame reports a venue error; OrderID is zero when the error does
// not pertain to a particular order.
type ErrorFrame struct {
	OrderID uint64 `json:"orderId"`
	Message string `json:"message"`
}

// InsertFrame submits a new resting order.
type InsertFrame struct {
	OrderID  uint64 `json:"orderId"`
	Side     string `json:"side"`
	Price    int64  `json:"price"`
	Volume   int64  `json:"volume"`
	Lifespan string `json:"lifespan"`
}

// CancelFrame withdraws a resting order.
type CancelFrame struct {
	OrderID uint64 `json:"orderId"`
}

// HedgeFrame submits an aggressive order in the hedge instrument.
type HedgeFrame struct {
	OrderID uint64 `json:"orderId"`
	Side    string `json:"side"`
	Price   int64  `json:"price"`
	Volume  int64  `json:"volume"`
}
