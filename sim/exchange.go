package sim

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"autohedger-go/engine"
	"autohedger-go/gateway"
	"autohedger-go/market"
)

// Exchange is an in-process venue used by the replay tool and the
// integration tests. It accepts the same outbound commands a live
// connection would and answers with the same lifecycle events, so the
// trading engine runs against it unmodified.
//
// Responses are queued rather than delivered inside the outbound call:
// a real venue never acks synchronously, and the engine relies on that.
// Call Flush after each inbound event to drain the queue.
type Exchange struct {
	// Quoted limits matching to the instrument the engine quotes on.
	Quoted market.Instrument
	// FeePerLot is charged on every filled lot. Negative is a rebate.
	FeePerLot int64

	log     *zap.Logger
	resting map[uint64]*restingOrder
	pending []func(h gateway.EventHandler)

	fills  int
	hedges int
	cash   int64 // signed proceeds of all fills, in cents
	fees   int64
}

type restingOrder struct {
	id     uint64
	side   engine.Side
	price  int64
	volume int64
	filled int64
}

func NewExchange(quoted market.Instrument, log *zap.Logger) *Exchange {
	if log == nil {
		log = zap.NewNop()
	}
	return &Exchange{
		Quoted:  quoted,
		log:     log,
		resting: make(map[uint64]*restingOrder),
	}
}

// SubmitOrder rests the order on the book. Lifespan is accepted for
// interface compatibility; fill-and-kill orders are matched on the next
// snapshot like any other, which is close enough for replay purposes.
func (e *Exchange) SubmitOrder(orderID uint64, side engine.Side, price, volume int64, _ engine.Lifespan) error {
	e.resting[orderID] = &restingOrder{id: orderID, side: side, price: price, volume: volume}
	e.log.Debug("sim order accepted",
		zap.Uint64("id", orderID),
		zap.String("side", side.String()),
		zap.Int64("price", price),
		zap.Int64("volume", volume))
	return nil
}

// CancelOrder removes a resting order and queues its terminal status.
// Cancels for unknown ids answer with an error event, as a venue would.
func (e *Exchange) CancelOrder(orderID uint64) error {
	o, ok := e.resting[orderID]
	if !ok {
		e.emit(func(h gateway.EventHandler) {
			h.OnError(orderID, "order not found")
		})
		return nil
	}
	delete(e.resting, orderID)
	filled, fees := o.filled, o.filled*e.FeePerLot
	e.emit(func(h gateway.EventHandler) {
		h.OnOrderStatus(orderID, filled, 0, fees)
	})
	return nil
}

// SubmitHedgeOrder fills immediately at the requested price. The replay
// feed carries no hedge-side book, so perfect liquidity is assumed.
func (e *Exchange) SubmitHedgeOrder(orderID uint64, side engine.Side, price, volume int64) error {
	e.hedges++
	e.settle(side, price, volume)
	e.emit(func(h gateway.EventHandler) {
		h.OnHedgeFilled(orderID, price, volume)
	})
	return nil
}

// Match crosses resting orders against the top level of a snapshot:
// sells trade when the best bid reaches their price, buys when the best
// ask falls to theirs. Fill volume is capped by the snapshot's top-level
// volume. Snapshots for other instruments are ignored.
func (e *Exchange) Match(u market.BookUpdate) {
	if u.Instrument != e.Quoted {
		return
	}
	ids := make([]uint64, 0, len(e.resting))
	for id := range e.resting {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		o := e.resting[id]
		var available int64
		switch o.side {
		case engine.SideSell:
			if bid := u.BestBid(); bid == 0 || bid < o.price {
				continue
			}
			available = u.BestBidVolume()
		case engine.SideBuy:
			if ask := u.BestAsk(); ask == 0 || ask > o.price {
				continue
			}
			available = u.BestAskVolume()
		}
		fv := min64(o.volume-o.filled, available)
		if fv <= 0 {
			continue
		}
		o.filled += fv
		e.fills++
		e.settle(o.side, o.price, fv)

		oid, price := o.id, o.price
		e.emit(func(h gateway.EventHandler) {
			h.OnOrderFilled(oid, price, fv)
		})
		remaining := o.volume - o.filled
		filled, fees := o.filled, o.filled*e.FeePerLot
		e.emit(func(h gateway.EventHandler) {
			h.OnOrderStatus(oid, filled, remaining, fees)
		})
		if remaining == 0 {
			delete(e.resting, id)
		}
	}
}

// Flush delivers queued events one at a time. Delivery may enqueue
// further events; the loop runs until the queue is empty.
func (e *Exchange) Flush(h gateway.EventHandler) {
	for len(e.pending) > 0 {
		ev := e.pending[0]
		e.pending = e.pending[1:]
		ev(h)
	}
}

// Open reports how many orders currently rest on the book.
func (e *Exchange) Open() int { return len(e.resting) }

// settle books the signed proceeds of one execution.
func (e *Exchange) settle(side engine.Side, price, volume int64) {
	if side == engine.SideSell {
		e.cash += price * volume
	} else {
		e.cash -= price * volume
	}
	e.fees += e.FeePerLot * volume
}

func (e *Exchange) emit(ev func(h gateway.EventHandler)) {
	e.pending = append(e.pending, ev)
}

func (e *Exchange) String() string {
	return fmt.Sprintf("sim exchange: %d resting, %d fills, %d hedges", len(e.resting), e.fills, e.hedges)
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
