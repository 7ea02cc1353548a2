package sim

import (
	"bufio"
	"bytes"
	"io"

	"go.uber.org/zap"

	"autohedger-go/engine"
	"autohedger-go/gateway"
	"autohedger-go/market"
)

// Runner drives a trading session from a recorded feed. It sits between
// the decoded events and the engine: book updates go to the engine
// first, are then matched against the engine's own resting orders, and
// finally the venue's queued responses are delivered back.
type Runner struct {
	Exchange *Exchange
	Trader   *engine.Trader
	Log      *zap.Logger

	frames int
	books  int
	ticks  int
}

// Summary describes a completed replay session.
type Summary struct {
	Frames             int   `json:"frames"`
	BookUpdates        int   `json:"bookUpdates"`
	TradeTicks         int   `json:"tradeTicks"`
	Fills              int   `json:"fills"`
	Hedges             int   `json:"hedges"`
	OpenOrders         int   `json:"openOrders"`
	FinalPosition      int64 `json:"finalPosition"`
	FinalHedgePosition int64 `json:"finalHedgePosition"`
	CashCents          int64 `json:"cashCents"` // signed proceeds of all fills
	FeesCents          int64 `json:"feesCents"`
}

// Replay feeds a JSONL event stream through the session. Blank lines
// and lines starting with # are skipped; undecodable lines are logged
// and dropped, matching how the live connection treats bad frames.
func (r *Runner) Replay(rd io.Reader) (Summary, error) {
	log := r.Log
	if log == nil {
		log = zap.NewNop()
	}
	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		if err := gateway.Dispatch(line, r); err != nil {
			log.Warn("replay line dropped", zap.Error(err))
			continue
		}
		r.frames++
	}
	if err := sc.Err(); err != nil {
		return Summary{}, err
	}
	return r.Summarize(), nil
}

// Summarize snapshots the session counters.
func (r *Runner) Summarize() Summary {
	return Summary{
		Frames:             r.frames,
		BookUpdates:        r.books,
		TradeTicks:         r.ticks,
		Fills:              r.Exchange.fills,
		Hedges:             r.Exchange.hedges,
		OpenOrders:         r.Exchange.Open(),
		FinalPosition:      r.Trader.Position(),
		FinalHedgePosition: r.Trader.HedgePosition(),
		CashCents:          r.Exchange.cash,
		FeesCents:          r.Exchange.fees,
	}
}

// OnOrderBook lets the engine requote, then crosses the snapshot
// against whatever now rests on the sim book.
func (r *Runner) OnOrderBook(u market.BookUpdate) {
	r.books++
	r.Trader.OnOrderBook(u)
	r.Exchange.Match(u)
	r.Exchange.Flush(r.Trader)
}

func (r *Runner) OnTradeTicks(t market.TradeTicks) {
	r.ticks++
	r.Trader.OnTradeTicks(t)
	r.Exchange.Flush(r.Trader)
}

// The remaining events never appear in a recorded feed; they only exist
// because the venue queue answers through the same handler interface.

func (r *Runner) OnOrderFilled(orderID uint64, price, volume int64) {
	r.Trader.OnOrderFilled(orderID, price, volume)
}

func (r *Runner) OnOrderStatus(orderID uint64, fillVolume, remainingVolume, fees int64) {
	r.Trader.OnOrderStatus(orderID, fillVolume, remainingVolume, fees)
}

func (r *Runner) OnError(orderID uint64, message string) {
	r.Trader.OnError(orderID, message)
}

func (r *Runner) OnHedgeFilled(orderID uint64, price, volume int64) {
	r.Trader.OnHedgeFilled(orderID, price, volume)
}

func (r *Runner) OnDisconnect() {
	r.Trader.OnDisconnect()
}
