// Package pricing computes order totals. All arithmetic is done in decimal
// and converted to float64 only at the boundary.
package pricing

import (
	"github.com/shopspring/decimal"

	"restaurant-pos/internal/models"
)

// TaxRate is the fixed VAT applied to the discounted subtotal.
var TaxRate = decimal.New(18, -2)

var hundred = decimal.NewFromInt(100)

// Discount is the entered discount, kept so it can be re-derived against a
// changed subtotal instead of being prorated.
type Discount struct {
	Kind  models.DiscountKind
	Value float64
}

// Totals is the result of Recompute
type Totals struct {
	Subtotal      float64
	Discount      float64
	AfterDiscount float64
	Tax           float64
	ServiceCharge float64
	Total         float64
}

// LineSubtotal returns price × quantity.
func LineSubtotal(price float64, quantity int) float64 {
	return decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(quantity))).InexactFloat64()
}

// Recompute derives every monetary field from the item collection. Items
// count toward the subtotal regardless of kitchen status.
func Recompute(items []models.OrderItem, d Discount, serviceRatePercent float64) Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	discount := discountAmount(subtotal, d)
	after := subtotal.Sub(discount)
	tax := after.Mul(TaxRate)
	service := after.Mul(decimal.NewFromFloat(serviceRatePercent)).Div(hundred)

	return Totals{
		Subtotal:      subtotal.InexactFloat64(),
		Discount:      discount.InexactFloat64(),
		AfterDiscount: after.InexactFloat64(),
		Tax:           tax.InexactFloat64(),
		ServiceCharge: service.InexactFloat64(),
		Total:         after.Add(tax).Add(service).InexactFloat64(),
	}
}

func discountAmount(subtotal decimal.Decimal, d Discount) decimal.Decimal {
	value := decimal.NewFromFloat(d.Value)
	var amount decimal.Decimal
	switch d.Kind {
	case models.DiscountPercentage:
		amount = subtotal.Mul(value).Div(hundred)
	case models.DiscountAmount:
		amount = value
	default:
		return decimal.Zero
	}
	if amount.IsNegative() {
		return decimal.Zero
	}
	if amount.GreaterThan(subtotal) {
		return subtotal
	}
	return amount
}

// Apply recomputes the order's line subtotals and totals in place. Callers
// pass a value they own (see models.Order.Clone).
func Apply(o *models.Order) {
	for i := range o.Items {
		o.Items[i].Subtotal = LineSubtotal(o.Items[i].Price, o.Items[i].Quantity)
	}
	t := Recompute(o.Items, Discount{Kind: o.DiscountType, Value: o.DiscountValue}, o.ServiceRate)
	o.Subtotal = t.Subtotal
	o.Discount = t.Discount
	o.Tax = t.Tax
	o.ServiceCharge = t.ServiceCharge
	o.TotalAmount = t.Total
}

// Round2 rounds an amount to cents.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// ToDecimal converts an amount for exact comparisons.
func ToDecimal(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}
