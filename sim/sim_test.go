package sim

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"autohedger-go/engine"
	"autohedger-go/market"
)

type recordedEvent struct {
	kind    string
	orderID uint64
	a, b, c int64
	message string
}

// recorder captures the venue-side events the exchange queues.
type recorder struct {
	events []recordedEvent
}

func (r *recorder) OnOrderBook(market.BookUpdate)  {}
func (r *recorder) OnTradeTicks(market.TradeTicks) {}
func (r *recorder) OnDisconnect()                  {}

func (r *recorder) OnOrderFilled(orderID uint64, price, volume int64) {
	r.events = append(r.events, recordedEvent{kind: "fill", orderID: orderID, a: price, b: volume})
}

func (r *recorder) OnOrderStatus(orderID uint64, fillVolume, remainingVolume, fees int64) {
	r.events = append(r.events, recordedEvent{kind: "status", orderID: orderID, a: fillVolume, b: remainingVolume, c: fees})
}

func (r *recorder) OnError(orderID uint64, message string) {
	r.events = append(r.events, recordedEvent{kind: "error", orderID: orderID, message: message})
}

func (r *recorder) OnHedgeFilled(orderID uint64, price, volume int64) {
	r.events = append(r.events, recordedEvent{kind: "hedge", orderID: orderID, a: price, b: volume})
}

func book(seq uint64, askPrice, askVol, bidPrice, bidVol int64) market.BookUpdate {
	return market.BookUpdate{
		Instrument: "FUT",
		Sequence:   seq,
		AskPrices:  []int64{askPrice},
		AskVolumes: []int64{askVol},
		BidPrices:  []int64{bidPrice},
		BidVolumes: []int64{bidVol},
	}
}

func TestExchangeMatchesSellAgainstBid(t *testing.T) {
	ex := NewExchange("FUT", zap.NewNop())
	rec := &recorder{}

	require.NoError(t, ex.SubmitOrder(1, engine.SideSell, 10000, 10, engine.LifespanGoodForDay))

	// Bid below the offer leaves it resting.
	ex.Match(book(1, 10200, 50, 9900, 50))
	ex.Flush(rec)
	assert.Empty(t, rec.events)

	// Bid reaches the offer but only 4 lots are available.
	ex.Match(book(2, 10200, 50, 10000, 4))
	ex.Flush(rec)
	require.Len(t, rec.events, 2)
	assert.Equal(t, recordedEvent{kind: "fill", orderID: 1, a: 10000, b: 4}, rec.events[0])
	assert.Equal(t, recordedEvent{kind: "status", orderID: 1, a: 4, b: 6}, rec.events[1])
	assert.Equal(t, 1, ex.Open())

	// Enough liquidity to finish the order removes it from the book.
	rec.events = nil
	ex.Match(book(3, 10200, 50, 10000, 50))
	ex.Flush(rec)
	require.Len(t, rec.events, 2)
	assert.Equal(t, recordedEvent{kind: "fill", orderID: 1, a: 10000, b: 6}, rec.events[0])
	assert.Equal(t, recordedEvent{kind: "status", orderID: 1, a: 10, b: 0}, rec.events[1])
	assert.Equal(t, 0, ex.Open())
}

func TestExchangeCancelAnswersTerminalStatus(t *testing.T) {
	ex := NewExchange("FUT", zap.NewNop())
	rec := &recorder{}

	require.NoError(t, ex.SubmitOrder(7, engine.SideBuy, 9900, 20, engine.LifespanGoodForDay))
	require.NoError(t, ex.CancelOrder(7))
	ex.Flush(rec)

	require.Len(t, rec.events, 1)
	assert.Equal(t, recordedEvent{kind: "status", orderID: 7}, rec.events[0])
	assert.Equal(t, 0, ex.Open())
}

func TestExchangeCancelUnknownAnswersError(t *testing.T) {
	ex := NewExchange("FUT", zap.NewNop())
	rec := &recorder{}

	require.NoError(t, ex.CancelOrder(99))
	ex.Flush(rec)

	require.Len(t, rec.events, 1)
	assert.Equal(t, "error", rec.events[0].kind)
	assert.Equal(t, uint64(99), rec.events[0].orderID)
}

func TestExchangeHedgeFillsImmediately(t *testing.T) {
	ex := NewExchange("FUT", zap.NewNop())
	rec := &recorder{}

	require.NoError(t, ex.SubmitHedgeOrder(3, engine.SideSell, 100, 30))
	ex.Flush(rec)

	require.Len(t, rec.events, 1)
	assert.Equal(t, recordedEvent{kind: "hedge", orderID: 3, a: 100, b: 30}, rec.events[0])
}

func TestExchangeIgnoresOtherInstruments(t *testing.T) {
	ex := NewExchange("FUT", zap.NewNop())
	rec := &recorder{}

	require.NoError(t, ex.SubmitOrder(1, engine.SideSell, 10000, 10, engine.LifespanGoodForDay))
	ex.Match(market.BookUpdate{
		Instrument: "ETF",
		Sequence:   1,
		BidPrices:  []int64{10000},
		BidVolumes: []int64{50},
	})
	ex.Flush(rec)

	assert.Empty(t, rec.events)
	assert.Equal(t, 1, ex.Open())
}

func TestExchangeChargesFees(t *testing.T) {
	ex := NewExchange("FUT", zap.NewNop())
	ex.FeePerLot = 2
	rec := &recorder{}

	require.NoError(t, ex.SubmitOrder(1, engine.SideSell, 10000, 10, engine.LifespanGoodForDay))
	ex.Match(book(1, 10200, 50, 10000, 10))
	ex.Flush(rec)

	require.Len(t, rec.events, 2)
	assert.Equal(t, int64(20), rec.events[1].c)
}

const replayFeed = `
# two-instrument session: quote, get lifted, hedge
{"type":"order_book","data":{"instrument":"FUT","sequence":1,"askPrices":[10000],"askVolumes":[100],"bidPrices":[9900],"bidVolumes":[100]}}
{"type":"order_book","data":{"instrument":"FUT","sequence":2,"askPrices":[10000],"askVolumes":[40],"bidPrices":[10000],"bidVolumes":[0]}}
{"type":"trade_ticks","data":{"instrument":"FUT","sequence":2,"askPrices":[10000],"askVolumes":[40],"bidPrices":[],"bidVolumes":[]}}
{"type":"order_book","data":{"instrument":"FUT","sequence":3,"askPrices":[10050],"askVolumes":[40],"bidPrices":[9950],"bidVolumes":[40]}}
`

func TestReplaySession(t *testing.T) {
	cfg := engine.Config{
		QuotedInstrument: "FUT",
		HedgeInstrument:  "ETF",
		PositionLimit:    100,
		TickSize:         100,
		MaxUnhedgedLots:  10,
		UnhedgedGrace:    0,
		MinimumBid:       1,
		MaximumAsk:       200000,
	}
	ex := NewExchange(cfg.QuotedInstrument, zap.NewNop())
	tr, err := engine.New(cfg, ex, zap.NewNop())
	require.NoError(t, err)

	runner := &Runner{Exchange: ex, Trader: tr, Log: zap.NewNop()}
	sum, err := runner.Replay(strings.NewReader(replayFeed))
	require.NoError(t, err)

	// Snapshot 2 lifts the full 40-lot bid the engine placed at 10000.
	// Snapshot 3 then finds exposure past tolerance with no grace left
	// and hedges 30 lots down to the edge.
	assert.Equal(t, 4, sum.Frames)
	assert.Equal(t, 3, sum.BookUpdates)
	assert.Equal(t, 1, sum.TradeTicks)
	assert.Equal(t, 1, sum.Fills)
	assert.Equal(t, 1, sum.Hedges)
	assert.Equal(t, 2, sum.OpenOrders)
	assert.Equal(t, int64(40), sum.FinalPosition)
	assert.Equal(t, int64(-30), sum.FinalHedgePosition)

	// bought 40 at 10000, hedge-sold 30 at the floor tick of 100
	assert.Equal(t, int64(-40*10000+30*100), sum.CashCents)
	assert.Equal(t, int64(0), sum.FeesCents)
}

func TestReplayDropsBadLines(t *testing.T) {
	cfg := engine.Config{
		QuotedInstrument: "FUT",
		HedgeInstrument:  "ETF",
		PositionLimit:    100,
		TickSize:         100,
		MaxUnhedgedLots:  10,
		UnhedgedGrace:    0,
		MinimumBid:       1,
		MaximumAsk:       200000,
	}
	ex := NewExchange(cfg.QuotedInstrument, zap.NewNop())
	tr, err := engine.New(cfg, ex, zap.NewNop())
	require.NoError(t, err)

	runner := &Runner{Exchange: ex, Trader: tr, Log: zap.NewNop()}
	sum, err := runner.Replay(strings.NewReader("not json\n{\"type\":\"mystery\",\"data\":{}}\n"))
	require.NoError(t, err)

	assert.Equal(t, 0, sum.Frames)
	assert.Equal(t, 0, sum.BookUpdates)
}
