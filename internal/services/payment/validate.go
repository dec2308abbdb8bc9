package payment

import (
	"fmt"

	"github.com/shopspring/decimal"

	"restaurant-pos/internal/errs"
	"restaurant-pos/internal/models"
)

// splitTolerance is the largest accepted gap between cash+card and the total.
var splitTolerance = decimal.New(1, -2)

// ValidatePayment checks details against the order total rounded to cents
// and returns them with Change filled in for cash.
func ValidatePayment(o *models.Order, details models.PaymentDetails) (models.PaymentDetails, error) {
	if o == nil {
		return details, errs.ErrNoActiveOrder
	}
	total := decimal.NewFromFloat(o.TotalAmount).Round(2)
	details.UnpaidReason = ""

	switch details.Method {
	case models.PaymentCash:
		given := decimal.NewFromFloat(details.CashGiven)
		if given.LessThan(total) {
			return details, fmt.Errorf("%w: given %s, total %s", errs.ErrInsufficientCash, given.StringFixed(2), total.StringFixed(2))
		}
		details.Change = given.Sub(total).Round(2).InexactFloat64()
		details.CashAmount = total.InexactFloat64()
		details.CardAmount = 0

	case models.PaymentCard:
		if !details.CardConfirmed {
			return details, errs.ErrUnconfirmedCardPayment
		}
		details.CardAmount = total.InexactFloat64()
		details.CashGiven, details.CashAmount, details.Change = 0, 0, 0

	case models.PaymentMixed:
		cash := decimal.NewFromFloat(details.CashAmount)
		card := decimal.NewFromFloat(details.CardAmount)
		if cash.IsNegative() || card.IsNegative() {
			return details, errs.ValidationError{Field: "payment", Message: "amounts must not be negative"}
		}
		diff := cash.Add(card).Sub(total).Abs()
		if diff.GreaterThan(splitTolerance) {
			return details, fmt.Errorf("%w: cash %s + card %s vs total %s", errs.ErrSplitMismatch,
				cash.StringFixed(2), card.StringFixed(2), total.StringFixed(2))
		}
		details.Change = 0

	default:
		return details, fmt.Errorf("%w: %q", errs.ErrInvalidPaymentMethod, details.Method)
	}
	return details, nil
}
