package models

import (
	"time"
)

// OrderStatus represents the status of an order
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusInProgress OrderStatus = "in_progress"
	StatusCompleted  OrderStatus = "completed"
	StatusCancelled  OrderStatus = "cancelled"
)

// IsTerminal reports whether the order can no longer be mutated.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ItemStatus is the kitchen lifecycle of a single order line.
type ItemStatus string

const (
	ItemPending       ItemStatus = "pending"
	ItemSentToKitchen ItemStatus = "sent_to_kitchen"
)

// DiscountKind selects how DiscountValue is interpreted.
type DiscountKind string

const (
	DiscountNone       DiscountKind = ""
	DiscountPercentage DiscountKind = "percentage"
	DiscountAmount     DiscountKind = "amount"
)

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

type PaymentMethod string

const (
	PaymentCash  PaymentMethod = "cash"
	PaymentCard  PaymentMethod = "card"
	PaymentMixed PaymentMethod = "mixed"

	// PaymentMethodUnpaid marks settlement records closed without payment.
	PaymentMethodUnpaid PaymentMethod = "unpaid"
)

// OrderItem represents a line in an order
type OrderItem struct {
	ID           string     `json:"id"`
	ProductID    string     `json:"product_id"`
	Name         string     `json:"name"`
	Price        float64    `json:"price"`
	Quantity     int        `json:"quantity"`
	Subtotal     float64    `json:"subtotal"`
	Status       ItemStatus `json:"status"`
	DepartmentID *string    `json:"department_id,omitempty"`
	AddedAt      time.Time  `json:"added_at"`
}

// Order is the active (or settled) order of one table
type Order struct {
	ID              string        `json:"id,omitempty"`
	RestaurantID    string        `json:"restaurant_id"`
	BranchID        string        `json:"branch_id"`
	TableID         string        `json:"table_id"`
	TableNumber     int           `json:"table_number"`
	WaiterID        string        `json:"waiter_id,omitempty"`
	Items           []OrderItem   `json:"items"`
	Subtotal        float64       `json:"subtotal"`
	Discount        float64       `json:"discount"`
	DiscountType    DiscountKind  `json:"discount_type,omitempty"`
	DiscountValue   float64       `json:"discount_value,omitempty"`
	ServiceRate     float64       `json:"service_rate"`
	Tax             float64       `json:"tax"`
	ServiceCharge   float64       `json:"service_charge"`
	TotalAmount     float64       `json:"total_amount"`
	Status          OrderStatus   `json:"status"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	PaymentMethod   PaymentMethod `json:"payment_method,omitempty"`
	Notes           string        `json:"notes,omitempty"`
	StartedAt       time.Time     `json:"started_at"`
	SentToKitchenAt *time.Time    `json:"sent_to_kitchen_at,omitempty"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty"`
	UpdatedAt       time.Time     `json:"updated_at"`
	Version         int           `json:"version"`
}

// Clone returns a deep copy so callers can derive a new value without
// touching the original.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Items = make([]OrderItem, len(o.Items))
	for i, item := range o.Items {
		c.Items[i] = item.clone()
	}
	if o.SentToKitchenAt != nil {
		t := *o.SentToKitchenAt
		c.SentToKitchenAt = &t
	}
	if o.CompletedAt != nil {
		t := *o.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// HasItems reports whether the order holds at least one line.
func (o *Order) HasItems() bool {
	return o != nil && len(o.Items) > 0
}

// FindItem returns the index of the item with the given id, or -1.
func (o *Order) FindItem(itemID string) int {
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			return i
		}
	}
	return -1
}

func (i OrderItem) clone() OrderItem {
	if i.DepartmentID != nil {
		d := *i.DepartmentID
		i.DepartmentID = &d
	}
	return i
}

// Department returns the kitchen department the item is routed to.
func (i OrderItem) Department() Department {
	if i.DepartmentID == nil || *i.DepartmentID == "" {
		return DefaultDepartment
	}
	return Department{ID: *i.DepartmentID}
}
