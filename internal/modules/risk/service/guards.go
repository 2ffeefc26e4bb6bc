package service

import (
	"fmt"
	"math"
)

// TickRound округляет цену к ближайшему кратному tickSize, половина уходит вверх.
func TickRound(price, tickSize float64) (float64, error) {
	if tickSize <= 0 {
		return 0, fmt.Errorf("%w: tick_size must be positive", ErrInvalidConfiguration)
	}
	steps := math.Floor(price/tickSize + 0.5 + 1e-12)
	return steps * tickSize, nil
}

// EnsurePriceBands проверяет, что лимитная цена не дальше maxTicks от последней.
// Нулевая limitPrice означает рыночный ордер, проверять нечего.
func EnsurePriceBands(last, limitPrice float64, maxTicks int, tickSize float64) error {
	if limitPrice <= 0 {
		return nil
	}
	if tickSize <= 0 {
		return fmt.Errorf("%w: tick_size must be positive", ErrInvalidConfiguration)
	}
	diffTicks := math.Abs(limitPrice-last) / tickSize
	if diffTicks > float64(maxTicks) {
		return fmt.Errorf("%w: limit price %v is %v ticks from last %v, exceeds %d",
			ErrOutOfBandPrice, limitPrice, diffTicks, last, maxTicks)
	}
	return nil
}

func EnsureQtyIncrement(qty, minQty float64) error {
	if qty < minQty {
		return fmt.Errorf("%w: quantity %v below minimum %v", ErrQuantityTooSmall, qty, minQty)
	}
	return nil
}
