package gateway

import (
	"encoding/json"
	"errors"
	"fmt"

	"autohedger-go/market"
)

// EventHandler receives decoded venue events. The gateway delivers calls
// one at a time from a single goroutine; handlers run to completion before
// the next frame is dispatched.
type EventHandler interface {
	OnOrderBook(market.BookUpdate)
	OnTradeTicks(market.TradeTicks)
	OnOrderFilled(orderID uint64, price, volume int64)
	OnOrderStatus(orderID uint64, fillVolume, remainingVolume, fees int64)
	OnError(orderID uint64, message string)
	OnHedgeFilled(orderID uint64, price, volume int64)
	OnDisconnect()
}

// ErrUnknownFrame marks a frame whose type has no handler.
var ErrUnknownFrame = errors.New("unknown frame type")

// Dispatch decodes one raw frame and invokes the matching handler method.
func Dispatch(raw []byte, h EventHandler) error {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	switch env.Type {
	case TypeOrderBook:
		var f BookFrame
		if err := json.Unmarshal(env.Data, &f); err != nil {
			return fmt.Errorf("decode %s: %w", env.Type, err)
		}
		h.OnOrderBook(market.BookUpdate{
			Instrument: market.Instrument(f.Instrument),
			Sequence:   f.Sequence,
			AskPrices:  f.AskPrices,
			AskVolumes: f.AskVolumes,
			BidPrices:  f.BidPrices,
			BidVolumes: f.BidVolumes,
		})
	case TypeTradeTicks:
		var f BookFrame
		if err := json.Unmarshal(env.Data, &f); err != nil {
			return fmt.Errorf("decode %s: %w", env.Type, err)
		}
		h.OnTradeTicks(market.TradeTicks{
			Instrument: market.Instrument(f.Instrument),
			Sequence:   f.Sequence,
			AskPrices:  f.AskPrices,
			AskVolumes: f.AskVolumes,
			BidPrices:  f.BidPrices,
			BidVolumes: f.BidVolumes,
		})
	case TypeOrderFilled:
		var f FillFrame
		if err := json.Unmarshal(env.Data, &f); err != nil {
			return fmt.Errorf("decode %s: %w", env.Type, err)
		}
		h.OnOrderFilled(f.OrderID, f.Price, f.Volume)
	case TypeOrderStatus:
		var f StatusFrame
		if err := json.Unmarshal(env.Data, &f); err != nil {
			return fmt.Errorf("decode %s: %w", env.Type, err)
		}
		h.OnOrderStatus(f.OrderID, f.FillVolume, f.RemainingVolume, f.Fees)
	case TypeOrderError:
		var f ErrorFrame
		if err := json.Unmarshal(env.Data, &f); err != nil {
			return fmt.Errorf("decode %s: %w", env.Type, err)
		}
		h.OnError(f.OrderID, f.Message)
	case TypeHedgeFilled:
		var f FillFrame
		if err := json.Unmarshal(env.Data, &f); err != nil {
			return fmt.Errorf("decode %s: %w", env.Type, err)
		}
		h.OnHedgeFilled(f.OrderID, f.Price, f.Volume)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFrame, env.Type)
	}
	return nil
}
