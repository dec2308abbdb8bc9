package pricing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"restaurant-pos/internal/models"
)

func item(price float64, qty int, status models.ItemStatus) models.OrderItem {
	return models.OrderItem{Price: price, Quantity: qty, Subtotal: price * float64(qty), Status: status}
}

func TestRecompute(t *testing.T) {
	tests := []struct {
		name         string
		items        []models.OrderItem
		discount     Discount
		serviceRate  float64
		wantSubtotal float64
		wantDiscount float64
		wantTax      float64
		wantService  float64
		wantTotal    float64
	}{
		{
			name:         "no items",
			wantSubtotal: 0, wantDiscount: 0, wantTax: 0, wantService: 0, wantTotal: 0,
		},
		{
			name:         "plain items",
			items:        []models.OrderItem{item(5, 1, models.ItemPending), item(3, 2, models.ItemPending)},
			wantSubtotal: 11, wantDiscount: 0, wantTax: 1.98, wantService: 0, wantTotal: 12.98,
		},
		{
			name:         "sent items still count",
			items:        []models.OrderItem{item(5, 1, models.ItemSentToKitchen), item(3, 1, models.ItemPending)},
			serviceRate:  10,
			wantSubtotal: 8, wantDiscount: 0, wantTax: 1.44, wantService: 0.8, wantTotal: 10.24,
		},
		{
			name:         "percentage discount",
			items:        []models.OrderItem{item(10, 2, models.ItemPending)},
			discount:     Discount{Kind: models.DiscountPercentage, Value: 10},
			serviceRate:  5,
			wantSubtotal: 20, wantDiscount: 2, wantTax: 3.24, wantService: 0.9, wantTotal: 22.14,
		},
		{
			name:         "amount discount",
			items:        []models.OrderItem{item(10, 1, models.ItemPending)},
			discount:     Discount{Kind: models.DiscountAmount, Value: 4},
			wantSubtotal: 10, wantDiscount: 4, wantTax: 1.08, wantService: 0, wantTotal: 7.08,
		},
		{
			name:         "amount discount clamped to subtotal",
			items:        []models.OrderItem{item(3, 1, models.ItemPending)},
			discount:     Discount{Kind: models.DiscountAmount, Value: 5},
			wantSubtotal: 3, wantDiscount: 3, wantTax: 0, wantService: 0, wantTotal: 0,
		},
		{
			name:         "negative discount clamped to zero",
			items:        []models.OrderItem{item(3, 1, models.ItemPending)},
			discount:     Discount{Kind: models.DiscountAmount, Value: -2},
			wantSubtotal: 3, wantDiscount: 0, wantTax: 0.54, wantService: 0, wantTotal: 3.54,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Recompute(tt.items, tt.discount, tt.serviceRate)
			assert.InDelta(t, tt.wantSubtotal, got.Subtotal, 1e-9)
			assert.InDelta(t, tt.wantDiscount, got.Discount, 1e-9)
			assert.InDelta(t, tt.wantTax, got.Tax, 1e-9)
			assert.InDelta(t, tt.wantService, got.ServiceCharge, 1e-9)
			assert.InDelta(t, tt.wantTotal, got.Total, 1e-9)
		})
	}
}

func TestRecomputeTotalFormula(t *testing.T) {
	prices := []float64{0.1, 0.2, 1.35, 2.99, 7.5, 12.45, 19.99, 99.95}
	rates := []float64{0, 5, 10, 12.5, 15}

	for _, rate := range rates {
		for n := 1; n <= len(prices); n++ {
			var items []models.OrderItem
			for i := 0; i < n; i++ {
				items = append(items, item(prices[i], i%3+1, models.ItemPending))
			}
			for _, pct := range []float64{0, 7, 33.3, 100} {
				d := Discount{Kind: models.DiscountPercentage, Value: pct}
				got := Recompute(items, d, rate)

				after := got.Subtotal - got.Discount
				want := after*1.18 + after*rate/100
				assert.LessOrEqual(t, math.Abs(got.Total-want), 0.01)
				assert.LessOrEqual(t, got.Discount, got.Subtotal)
				assert.GreaterOrEqual(t, got.Discount, 0.0)
			}
		}
	}
}

func TestApplyRecomputesLines(t *testing.T) {
	o := &models.Order{
		Items:         []models.OrderItem{{Price: 2.5, Quantity: 4}},
		DiscountType:  models.DiscountAmount,
		DiscountValue: 1,
		ServiceRate:   10,
	}

	Apply(o)

	assert.InDelta(t, 10.0, o.Items[0].Subtotal, 1e-9)
	assert.InDelta(t, 10.0, o.Subtotal, 1e-9)
	assert.InDelta(t, 1.0, o.Discount, 1e-9)
	assert.InDelta(t, 1.62, o.Tax, 1e-9)
	assert.InDelta(t, 0.9, o.ServiceCharge, 1e-9)
	assert.InDelta(t, 11.52, o.TotalAmount, 1e-9)
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 10.24, Round2(10.2449))
	assert.Equal(t, 10.25, Round2(10.245))
	assert.Equal(t, 0.0, Round2(0))
}
