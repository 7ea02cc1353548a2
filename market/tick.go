package market

// FloorToTick rounds price down to the nearest multiple of tick.
func FloorToTick(price, tick int64) int64 {
	if tick <= 0 {
		return price
	}
	return price / tick * tick
}

// CeilToTick rounds price up to the nearest multiple of tick.
func CeilToTick(price, tick int64) int64 {
	if tick <= 0 {
		return price
	}
	return (price + tick - 1) / tick * tick
}
