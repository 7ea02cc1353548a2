package engine

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"autohedger-go/market"
	"autohedger-go/metrics"
)

// Config holds the trading parameters of the quoting and hedging engine.
// All prices are in cents, all volumes in lots.
type Config struct {
	QuotedInstrument market.Instrument // instrument the trader quotes on
	HedgeInstrument  market.Instrument // correlated instrument used to hedge
	PositionLimit    int64             // hard bound on |position|
	TickSize         int64             // minimum price increment
	MaxUnhedgedLots  int64             // tolerated |position + hedgePosition|
	UnhedgedGrace    time.Duration     // how long exposure may stay outside tolerance
	MinimumBid       int64             // venue lower price bound
	MaximumAsk       int64             // venue upper price bound
}

func (c Config) validate() error {
	if c.QuotedInstrument == "" || c.HedgeInstrument == "" {
		return errors.New("both instruments are required")
	}
	if c.QuotedInstrument == c.HedgeInstrument {
		return errors.New("quoted and hedge instruments must differ")
	}
	if c.PositionLimit <= 0 {
		return errors.New("positionLimit must be > 0")
	}
	if c.TickSize <= 0 {
		return errors.New("tickSize must be > 0")
	}
	if c.MaxUnhedgedLots < 0 {
		return errors.New("maxUnhedgedLots must be >= 0")
	}
	if c.UnhedgedGrace < 0 {
		return errors.New("unhedgedGrace must be >= 0")
	}
	if c.MinimumBid <= 0 || c.MaximumAsk <= c.MinimumBid {
		return errors.New("venue price bounds must satisfy 0 < minimumBid < maximumAsk")
	}
	return nil
}

// orderKind classifies a client order id. One table replaces per-side id
// sets so a callback carrying only an id can always be attributed.
type orderKind uint8

const (
	kindAsk orderKind = iota + 1
	kindBid
	kindHedge
)

// restingOrder is the locally tracked state of the single resting order on
// one side of the book. A zero id means no order is resting.
type restingOrder struct {
	id     uint64
	price  int64
	volume int64
}

// Trader is the quoting and hedging engine. It owns all mutable trading
// state and is driven entirely by inbound venue events; it emits insert,
// cancel and hedge commands through the Gateway.
//
// Trader is not safe for concurrent use: every handler must be invoked
// from the same goroutine (the gateway read loop or the sim loop), and
// each handler runs to completion before the next event is delivered.
type Trader struct {
	cfg   Config
	gw    Gateway
	log   *zap.Logger
	clock Clock

	// hedge prices rounded to the conservative side of the venue bounds
	minBidTick int64
	maxAskTick int64

	nextID uint64 // shared monotonic counter for quote and hedge ids

	position      int64 // net filled lots in the quoted instrument
	hedgePosition int64 // net lots dealt in the hedge instrument, optimistic

	ask  restingOrder
	bid  restingOrder
	live map[uint64]orderKind

	nextBidVolume int64
	nextAskVolume int64

	unhedgedSince time.Time
	lastBookSeq   map[market.Instrument]uint64
}

// Option customises a Trader.
type Option func(*Trader)

// WithClock substitutes the time source, used by tests.
func WithClock(c Clock) Option {
	return func(t *Trader) { t.clock = c }
}

// New builds a Trader. The gateway and logger are required.
func New(cfg Config, gw Gateway, log *zap.Logger, opts ...Option) (*Trader, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid trader config: %w", err)
	}
	if gw == nil {
		return nil, errors.New("gateway is required")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}
	t := &Trader{
		cfg:         cfg,
		gw:          gw,
		log:         log,
		clock:       realClock{},
		minBidTick:  market.CeilToTick(cfg.MinimumBid, cfg.TickSize),
		maxAskTick:  market.FloorToTick(cfg.MaximumAsk, cfg.TickSize),
		live:        make(map[uint64]orderKind),
		lastBookSeq: make(map[market.Instrument]uint64),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.recomputeQuoteVolumes()
	t.unhedgedSince = t.clock.Now()
	return t, nil
}

// Position returns the net filled quantity in the quoted instrument.
func (t *Trader) Position() int64 { return t.position }

// HedgePosition returns the net quantity dealt via hedge orders.
func (t *Trader) HedgePosition() int64 { return t.hedgePosition }

func (t *Trader) nextOrderID() uint64 {
	t.nextID++
	return t.nextID
}

// cancelAsk withdraws the resting ask when the reference price has moved.
// The local id is cleared immediately; the remaining tracked volume stays
// counted against headroom until the venue confirms termination.
func (t *Trader) cancelAsk(newPrice int64) {
	if t.ask.id == 0 || newPrice == 0 || newPrice == t.ask.price {
		return
	}
	if err := t.gw.CancelOrder(t.ask.id); err != nil {
		t.log.Warn("cancel ask not sent", zap.Uint64("orderId", t.ask.id), zap.Error(err))
	} else {
		metrics.OrdersCanceled.Inc()
	}
	t.ask.id = 0
}

// cancelBid is the bid-side counterpart of cancelAsk.
func (t *Trader) cancelBid(newPrice int64) {
	if t.bid.id == 0 || newPrice == 0 || newPrice == t.bid.price {
		return
	}
	if err := t.gw.CancelOrder(t.bid.id); err != nil {
		t.log.Warn("cancel bid not sent", zap.Uint64("orderId", t.bid.id), zap.Error(err))
	} else {
		metrics.OrdersCanceled.Inc()
	}
	t.bid.id = 0
}

// insertAsk posts a sell order at price, clamped so that a full fill of
// the position plus all resting ask volume cannot breach -PositionLimit.
func (t *Trader) insertAsk(price, volume int64) {
	if headroom := t.position + t.cfg.PositionLimit - t.ask.volume; volume > headroom {
		volume = headroom
	}
	if t.ask.id != 0 || price == 0 || volume <= 0 {
		return
	}
	id := t.nextOrderID()
	t.ask = restingOrder{id: id, price: price, volume: volume}
	t.live[id] = kindAsk
	if err := t.gw.SubmitOrder(id, SideSell, price, volume, LifespanGoodForDay); err != nil {
		t.log.Warn("insert ask not sent", zap.Uint64("orderId", id), zap.Error(err))
	} else {
		metrics.OrdersSubmitted.WithLabelValues(SideSell.String()).Inc()
	}
	t.log.Debug("ask inserted",
		zap.Uint64("orderId", id),
		zap.Int64("price", price),
		zap.Int64("volume", volume))
}

// insertBid posts a buy order at price, clamped symmetrically against
// +PositionLimit.
func (t *Trader) insertBid(price, volume int64) {
	if headroom := t.cfg.PositionLimit - t.position - t.bid.volume; volume > headroom {
		volume = headroom
	}
	if t.bid.id != 0 || price == 0 || volume <= 0 {
		return
	}
	id := t.nextOrderID()
	t.bid = restingOrder{id: id, price: price, volume: volume}
	t.live[id] = kindBid
	if err := t.gw.SubmitOrder(id, SideBuy, price, volume, LifespanGoodForDay); err != nil {
		t.log.Warn("insert bid not sent", zap.Uint64("orderId", id), zap.Error(err))
	} else {
		metrics.OrdersSubmitted.WithLabelValues(SideBuy.String()).Inc()
	}
	t.log.Debug("bid inserted",
		zap.Uint64("orderId", id),
		zap.Int64("price", price),
		zap.Int64("volume", volume))
}

// hedge sends one corrective order in the hedge instrument sized to bring
// combined exposure back to the tolerance edge. HedgePosition is adjusted
// at send time so the next evaluation sees the in-flight correction and
// cannot fire a duplicate.
func (t *Trader) hedge() {
	exposure := t.position + t.hedgePosition
	switch {
	case exposure > t.cfg.MaxUnhedgedLots:
		volume := exposure - t.cfg.MaxUnhedgedLots
		id := t.nextOrderID()
		t.live[id] = kindHedge
		if err := t.gw.SubmitHedgeOrder(id, SideSell, t.minBidTick, volume); err != nil {
			t.log.Warn("hedge sell not sent", zap.Uint64("orderId", id), zap.Error(err))
		} else {
			metrics.HedgeOrders.WithLabelValues(SideSell.String()).Inc()
		}
		t.hedgePosition -= volume
		t.log.Info("hedge sell sent",
			zap.Uint64("orderId", id),
			zap.Int64("price", t.minBidTick),
			zap.Int64("volume", volume))
	case exposure < -t.cfg.MaxUnhedgedLots:
		volume := -(exposure + t.cfg.MaxUnhedgedLots)
		id := t.nextOrderID()
		t.live[id] = kindHedge
		if err := t.gw.SubmitHedgeOrder(id, SideBuy, t.maxAskTick, volume); err != nil {
			t.log.Warn("hedge buy not sent", zap.Uint64("orderId", id), zap.Error(err))
		} else {
			metrics.HedgeOrders.WithLabelValues(SideBuy.String()).Inc()
		}
		t.hedgePosition += volume
		t.log.Info("hedge buy sent",
			zap.Uint64("orderId", id),
			zap.Int64("price", t.maxAskTick),
			zap.Int64("volume", volume))
	}
}

// recomputeQuoteVolumes leans the next quotes against the current
// position: the side that flattens inventory quotes bigger, the side that
// would grow it quotes smaller or not at all.
func (t *Trader) recomputeQuoteVolumes() {
	remaining := t.cfg.PositionLimit - t.position
	if t.position < 0 {
		t.nextBidVolume = (remaining + 1) / 2
	} else {
		t.nextBidVolume = remaining / 2
	}
	t.nextAskVolume = t.position + t.nextBidVolume
}

// OnOrderBook handles a top-of-book snapshot. Quoted-instrument updates
// refresh both quotes and evaluate the hedge grace period; other
// instruments are observational.
func (t *Trader) OnOrderBook(u market.BookUpdate) {
	if last, ok := t.lastBookSeq[u.Instrument]; ok && u.Sequence <= last {
		metrics.StaleBookUpdates.Inc()
		t.log.Warn("stale order book dropped",
			zap.String("instrument", string(u.Instrument)),
			zap.Uint64("sequence", u.Sequence),
			zap.Uint64("lastSequence", last))
		return
	}
	t.lastBookSeq[u.Instrument] = u.Sequence
	metrics.BookUpdates.WithLabelValues(string(u.Instrument)).Inc()
	t.log.Debug("order book",
		zap.String("instrument", string(u.Instrument)),
		zap.Uint64("sequence", u.Sequence),
		zap.Int64("bestAsk", u.BestAsk()),
		zap.Int64("bestBid", u.BestBid()))

	if u.Instrument != t.cfg.QuotedInstrument {
		return
	}

	newAskPrice := u.BestAsk()
	newBidPrice := u.BestBid()

	// Cancel and reinsert back-to-back: with the slot freed the insert
	// goes straight out, and no fill from this event can land in between.
	t.cancelAsk(newAskPrice)
	t.insertAsk(newAskPrice, t.nextAskVolume)

	t.cancelBid(newBidPrice)
	t.insertBid(newBidPrice, t.nextBidVolume)

	exposure := t.position + t.hedgePosition
	if abs64(exposure) <= t.cfg.MaxUnhedgedLots {
		t.unhedgedSince = t.clock.Now()
	} else if t.clock.Now().Sub(t.unhedgedSince) >= t.cfg.UnhedgedGrace {
		t.hedge()
		t.unhedgedSince = t.clock.Now()
	}
	metrics.UpdateExposure(t.position, t.hedgePosition)
}

// OnTradeTicks handles a last-trade snapshot. Observational only.
func (t *Trader) OnTradeTicks(tt market.TradeTicks) {
	t.log.Debug("trade ticks",
		zap.String("instrument", string(tt.Instrument)),
		zap.Uint64("sequence", tt.Sequence),
		zap.Int64("bestAsk", tt.BestAsk()),
		zap.Int64("bestBid", tt.BestBid()))
}

// OnOrderFilled handles a partial or full fill on one of the trader's
// resting orders. Unknown ids are ignored.
func (t *Trader) OnOrderFilled(orderID uint64, price, volume int64) {
	t.log.Info("order filled",
		zap.Uint64("orderId", orderID),
		zap.Int64("price", price),
		zap.Int64("volume", volume))
	switch t.live[orderID] {
	case kindAsk:
		t.position -= volume
	case kindBid:
		t.position += volume
	default:
		return
	}
	metrics.OrderFills.Inc()
	metrics.UpdateExposure(t.position, t.hedgePosition)
	t.recomputeQuoteVolumes()
}

// OnOrderStatus handles an order status report. Zero remaining volume
// retires the order completely; a partial fill only shrinks the tracked
// remaining volume so headroom stays accurate.
func (t *Trader) OnOrderStatus(orderID uint64, fillVolume, remainingVolume, fees int64) {
	t.log.Debug("order status",
		zap.Uint64("orderId", orderID),
		zap.Int64("fillVolume", fillVolume),
		zap.Int64("remainingVolume", remainingVolume),
		zap.Int64("fees", fees))
	if remainingVolume == 0 {
		if orderID == t.ask.id {
			t.ask = restingOrder{}
		} else if orderID == t.bid.id {
			t.bid = restingOrder{}
		}
		// Direction is unknown at this point; removal is idempotent.
		delete(t.live, orderID)
		return
	}
	if fillVolume > 0 {
		if orderID == t.ask.id {
			t.ask.volume = max64(t.ask.volume-fillVolume, 0)
		} else if orderID == t.bid.id {
			t.bid.volume = max64(t.bid.volume-fillVolume, 0)
		}
	}
}

// OnError handles a venue error. An error naming a tracked quote order is
// treated as immediate termination of that order; anything else is logged
// and dropped because it cannot be attributed to local state.
func (t *Trader) OnError(orderID uint64, message string) {
	t.log.Warn("venue error",
		zap.Uint64("orderId", orderID),
		zap.String("message", message))
	metrics.VenueErrors.Inc()
	if orderID == 0 {
		return
	}
	switch t.live[orderID] {
	case kindAsk, kindBid:
		t.OnOrderStatus(orderID, 0, 0, 0)
	case kindHedge:
		delete(t.live, orderID)
	}
}

// OnHedgeFilled handles a hedge execution report. HedgePosition was
// already adjusted when the hedge was sent, so this only retires the id.
func (t *Trader) OnHedgeFilled(orderID uint64, price, volume int64) {
	t.log.Info("hedge filled",
		zap.Uint64("orderId", orderID),
		zap.Int64("averagePrice", price),
		zap.Int64("volume", volume))
	delete(t.live, orderID)
}

// OnDisconnect handles loss of the execution connection. Reconnecting is
// the gateway's responsibility.
func (t *Trader) OnDisconnect() {
	t.log.Warn("execution connection lost")
}

// CancelAll withdraws both resting quotes unconditionally, used on
// shutdown. Confirmation events may never arrive.
func (t *Trader) CancelAll() {
	if t.ask.id != 0 {
		if err := t.gw.CancelOrder(t.ask.id); err != nil {
			t.log.Warn("cancel ask not sent", zap.Uint64("orderId", t.ask.id), zap.Error(err))
		}
		t.ask.id = 0
	}
	if t.bid.id != 0 {
		if err := t.gw.CancelOrder(t.bid.id); err != nil {
			t.log.Warn("cancel bid not sent", zap.Uint64("orderId", t.bid.id), zap.Error(err))
		}
		t.bid.id = 0
	}
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
