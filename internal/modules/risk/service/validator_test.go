package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"margin_guard/internal/models"
)

func posWithQty(qty float64) *models.Position {
	return &models.Position{
		ID:            "p-1",
		InstrumentID:  "MESU6",
		Side:          models.SideBuy,
		Qty:           qty,
		AvgEntryPrice: 100,
	}
}

func TestValidatePartialTPOk(t *testing.T) {
	rule := ValidatePartialTP(posWithQty(10), 4)

	assert.True(t, rule.IsValid)
	assert.Empty(t, rule.ValidationErrors)
	assert.Equal(t, "p-1", rule.PositionID)
	assert.Equal(t, 4.0, rule.PartialQty)
	assert.Equal(t, 6.0, rule.RemainingQtyAfter)
}

func TestValidatePartialTPSingleContract(t *testing.T) {
	rule := ValidatePartialTP(posWithQty(1), 0.5)

	require.False(t, rule.IsValid)
	assert.Equal(t, []string{"Partial take profit requires position > 1 contract"}, rule.ValidationErrors)
}

func TestValidatePartialTPNonPositiveQty(t *testing.T) {
	for _, q := range []float64{0, -3} {
		rule := ValidatePartialTP(posWithQty(10), q)

		require.False(t, rule.IsValid)
		assert.Equal(t, []string{"Partial quantity must be positive"}, rule.ValidationErrors)
	}
}

func TestValidatePartialTPWholePosition(t *testing.T) {
	for _, q := range []float64{10, 12} {
		rule := ValidatePartialTP(posWithQty(10), q)

		require.False(t, rule.IsValid)
		assert.Equal(t, []string{"Partial quantity cannot be equal to or greater than position size"}, rule.ValidationErrors)
	}
}

func TestValidatePartialTPDustRemainder(t *testing.T) {
	rule := ValidatePartialTP(posWithQty(5), 4.5)

	require.False(t, rule.IsValid)
	require.Len(t, rule.ValidationErrors, 1)
	assert.Equal(t,
		"Partial TP would leave position with 0.5 contracts. Minimum remaining position must be ≥ 1 contract",
		rule.ValidationErrors[0])
}

func TestValidatePartialTPFractionalQty(t *testing.T) {
	// остаток валиден, но сама заявка меньше контракта
	rule := ValidatePartialTP(posWithQty(5), 0.5)

	require.False(t, rule.IsValid)
	assert.Equal(t, []string{"Partial take profit quantity must be at least 1 contract"}, rule.ValidationErrors)
}
