package service

import (
	"fmt"
	"strconv"

	"margin_guard/internal/models"
)

// ValidatePartialTP проверяет частичную фиксацию против инвариантов размера позиции.
// Правила идут по порядку, первое нарушение завершает проверку.
// Чистая функция, без I/O.
func ValidatePartialTP(pos *models.Position, partialQty float64) *models.PartialTakeProfitRule {
	rule := &models.PartialTakeProfitRule{
		PositionID:        pos.ID,
		PartialQty:        partialQty,
		RemainingQtyAfter: pos.Qty - partialQty,
		IsValid:           true,
	}

	fail := func(msg string) *models.PartialTakeProfitRule {
		rule.IsValid = false
		rule.ValidationErrors = append(rule.ValidationErrors, msg)
		return rule
	}

	// частичная фиксация имеет смысл только когда есть что оставить
	if pos.Qty <= 1 {
		return fail("Partial take profit requires position > 1 contract")
	}

	if partialQty <= 0 {
		return fail("Partial quantity must be positive")
	}

	if partialQty >= pos.Qty {
		return fail("Partial quantity cannot be equal to or greater than position size")
	}

	// после фиксации не должно оставаться пыли
	if rule.RemainingQtyAfter < 1 {
		return fail(fmt.Sprintf(
			"Partial TP would leave position with %s contracts. Minimum remaining position must be ≥ 1 contract",
			strconv.FormatFloat(rule.RemainingQtyAfter, 'f', -1, 64),
		))
	}

	if partialQty < 1 {
		return fail("Partial take profit quantity must be at least 1 contract")
	}

	return rule
}
