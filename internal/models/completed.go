package models

import "time"

// UnpaidReason is the fixed set of reasons an order may be closed without payment.
type UnpaidReason string

const (
	UnpaidGuestLeft      UnpaidReason = "guest_left"
	UnpaidCompanyAccount UnpaidReason = "company_account"
	UnpaidWaiterError    UnpaidReason = "waiter_error"
	UnpaidCancelled      UnpaidReason = "cancelled"
	UnpaidOther          UnpaidReason = "other"
)

func (r UnpaidReason) Valid() bool {
	switch r {
	case UnpaidGuestLeft, UnpaidCompanyAccount, UnpaidWaiterError, UnpaidCancelled, UnpaidOther:
		return true
	}
	return false
}

// PaymentDetails is the breakdown entered at the till. Change is filled in
// by validation for cash payments.
type PaymentDetails struct {
	Method        PaymentMethod `json:"method"`
	CashGiven     float64       `json:"cash_given,omitempty"`
	Change        float64       `json:"change,omitempty"`
	CashAmount    float64       `json:"cash_amount,omitempty"`
	CardAmount    float64       `json:"card_amount,omitempty"`
	CardConfirmed bool          `json:"card_confirmed,omitempty"`
	UnpaidReason  UnpaidReason  `json:"unpaid_reason,omitempty"`
}

// Cashier identifies who settled an order
type Cashier struct {
	ID   string `json:"cashier_id"`
	Name string `json:"cashier_name"`
}

// CompletedOrderRecord is the immutable settlement snapshot
type CompletedOrderRecord struct {
	ID             string          `json:"id,omitempty"`
	OrderID        string          `json:"order_id"`
	RestaurantID   string          `json:"restaurant_id"`
	BranchID       string          `json:"branch_id"`
	TableID        string          `json:"table_id"`
	TableNumber    int             `json:"table_number"`
	WaiterID       string          `json:"waiter_id,omitempty"`
	Items          []OrderItem     `json:"items"`
	Subtotal       float64         `json:"subtotal"`
	Discount       float64         `json:"discount"`
	DiscountType   DiscountKind    `json:"discount_type,omitempty"`
	Tax            float64         `json:"tax"`
	ServiceCharge  float64         `json:"service_charge"`
	TotalAmount    float64         `json:"total_amount"`
	PaymentMethod  PaymentMethod   `json:"payment_method,omitempty"`
	PaymentDetails *PaymentDetails `json:"payment_details,omitempty"`
	CashierID      string          `json:"cashier_id"`
	CashierName    string          `json:"cashier_name"`
	IsUnpaid       bool            `json:"is_unpaid"`
	UnpaidReason   UnpaidReason    `json:"unpaid_reason,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	StartedAt      time.Time       `json:"started_at"`
	CompletedAt    time.Time       `json:"completed_at"`
}

// NewCompletedRecord snapshots the order's monetary fields.
func NewCompletedRecord(o *Order, cashier Cashier, completedAt time.Time) *CompletedOrderRecord {
	c := o.Clone()
	return &CompletedOrderRecord{
		OrderID:       c.ID,
		RestaurantID:  c.RestaurantID,
		BranchID:      c.BranchID,
		TableID:       c.TableID,
		TableNumber:   c.TableNumber,
		WaiterID:      c.WaiterID,
		Items:         c.Items,
		Subtotal:      c.Subtotal,
		Discount:      c.Discount,
		DiscountType:  c.DiscountType,
		Tax:           c.Tax,
		ServiceCharge: c.ServiceCharge,
		TotalAmount:   c.TotalAmount,
		CashierID:     cashier.ID,
		CashierName:   cashier.Name,
		Notes:         c.Notes,
		StartedAt:     c.StartedAt,
		CompletedAt:   completedAt,
	}
}
