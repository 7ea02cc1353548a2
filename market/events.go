package market

// Instrument identifies a tradeable product on the venue.
type Instrument string

// BookUpdate is a top-of-book snapshot for one instrument. Prices and
// volumes are parallel slices ordered best first; unused trailing levels
// are zero. At least one level is present on each side.
type BookUpdate struct {
	Instrument Instrument
	Sequence   uint64
	AskPrices  []int64
	AskVolumes []int64
	BidPrices  []int64
	BidVolumes []int64
}

// BestAsk returns the best (lowest) ask price, or 0 when the side is empty.
func (u BookUpdate) BestAsk() int64 {
	if len(u.AskPrices) == 0 {
		return 0
	}
	return u.AskPrices[0]
}

// BestBid returns the best (highest) bid price, or 0 when the side is empty.
func (u BookUpdate) BestBid() int64 {
	if len(u.BidPrices) == 0 {
		return 0
	}
	return u.BidPrices[0]
}

// BestAskVolume returns the volume resting at the best ask level.
func (u BookUpdate) BestAskVolume() int64 {
	if len(u.AskVolumes) == 0 {
		return 0
	}
	return u.AskVolumes[0]
}

// BestBidVolume returns the volume resting at the best bid level.
func (u BookUpdate) BestBidVolume() int64 {
	if len(u.BidVolumes) == 0 {
		return 0
	}
	return u.BidVolumes[0]
}

// TradeTicks is a last-trade snapshot for one instrument: the price levels
// that traded since the previous snapshot with aggregated volumes. Same
// slice layout as BookUpdate.
type TradeTicks struct {
	Instrument Instrument
	Sequence   uint64
	AskPrices  []int64
	AskVolumes []int64
	BidPrices  []int64
	BidVolumes []int64
}

// BestAsk returns the first ask level that traded, or 0.
func (t TradeTicks) BestAsk() int64 {
	if len(t.AskPrices) == 0 {
		return 0
	}
	return t.AskPrices[0]
}

// BestBid returns the first bid level that traded, or 0.
func (t TradeTicks) BestBid() int64 {
	if len(t.BidPrices) == 0 {
		return 0
	}
	return t.BidPrices[0]
}
