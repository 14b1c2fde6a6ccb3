package service

import (
	"github.com/shopspring/decimal"

	"github.com/flicky/go-storefront-api/internal/model"
)

// Limits the payment provider puts on a single charge, in minor units.
const (
	MinChargeMinor int64 = 50
	MaxChargeMinor int64 = 99_999_999
)

// LineAmountMinor returns round(price in cents) * quantity. The unit price is
// rounded before the multiplication, never the line or cart total.
func LineAmountMinor(price decimal.Decimal, quantity int) int64 {
	return lineAmount(price, quantity).IntPart()
}

func TotalMinor(items []model.CartItem) int64 {
	return cartTotal(items).IntPart()
}

// ChargeAmount is TotalMinor for checkout: totals the provider cannot charge
// are rejected instead of being truncated to int64.
func ChargeAmount(items []model.CartItem) (int64, error) {
	total := cartTotal(items)
	if total.LessThan(decimal.NewFromInt(MinChargeMinor)) {
		return 0, ErrAmountTooSmall
	}
	if total.GreaterThan(decimal.NewFromInt(MaxChargeMinor)) {
		return 0, ErrAmountTooLarge
	}
	return total.IntPart(), nil
}

func FromMinor(amount int64) decimal.Decimal {
	return decimal.New(amount, -2)
}

func lineAmount(price decimal.Decimal, quantity int) decimal.Decimal {
	return price.Shift(2).Round(0).Mul(decimal.NewFromInt(int64(quantity)))
}

func cartTotal(items []model.CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(lineAmount(item.Price, item.Quantity))
	}
	return total
}
