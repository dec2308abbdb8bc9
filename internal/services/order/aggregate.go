package order

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"restaurant-pos/internal/errs"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/pricing"
)

const maxNoteLength = 500

var newID = uuid.NewString

// Editable reports whether an item may still change. Only pending items are
// editable; kitchen-confirmed items are history.
func Editable(item models.OrderItem) bool {
	return item.Status == "" || item.Status == models.ItemPending
}

// New returns an empty pending order for the table.
func New(table *models.Table, hall *models.Hall, now time.Time) *models.Order {
	o := &models.Order{
		RestaurantID:  table.RestaurantID,
		TableID:       table.ID,
		TableNumber:   table.Number,
		Items:         []models.OrderItem{},
		Status:        models.StatusPending,
		PaymentStatus: models.PaymentUnpaid,
		StartedAt:     now,
		UpdatedAt:     now,
	}
	if hall != nil {
		o.BranchID = hall.BranchID
		o.ServiceRate = hall.ServiceCharge
	}
	return o
}

func checkOpen(o *models.Order) error {
	if o == nil {
		return errs.ErrNoActiveOrder
	}
	if o.Status.IsTerminal() {
		return fmt.Errorf("order %s is %s: %w", o.ID, o.Status, errs.ErrNoActiveOrder)
	}
	return nil
}

// AddOrIncrementItem adds one unit of product. A pending line for the same
// product is incremented; otherwise a new line is appended. A nil current
// order starts a new one on the table.
func AddOrIncrementItem(current *models.Order, table *models.Table, hall *models.Hall, product *models.Product, now time.Time) (*models.Order, error) {
	if table == nil {
		return nil, errs.ErrTableNotSelected
	}
	if product == nil {
		return nil, errs.ValidationError{Field: "product_id", Message: "product is required"}
	}

	var next *models.Order
	if current == nil {
		next = New(table, hall, now)
	} else {
		if err := checkOpen(current); err != nil {
			return nil, err
		}
		next = current.Clone()
	}

	incremented := false
	for i := range next.Items {
		if next.Items[i].ProductID == product.ID && Editable(next.Items[i]) {
			next.Items[i].Quantity++
			incremented = true
			break
		}
	}
	if !incremented {
		item := models.OrderItem{
			ID:        newID(),
			ProductID: product.ID,
			Name:      product.Name,
			Price:     product.Price,
			Quantity:  1,
			Status:    models.ItemPending,
			AddedAt:   now,
		}
		if product.DepartmentID != nil {
			d := *product.DepartmentID
			item.DepartmentID = &d
		}
		next.Items = append(next.Items, item)
	}

	pricing.Apply(next)
	return next, nil
}

// SetItemQuantity sets the quantity of a pending item; quantity <= 0
// removes it. A sent item is left untouched and the input is returned as is.
func SetItemQuantity(o *models.Order, itemID string, quantity int) (*models.Order, error) {
	if err := checkOpen(o); err != nil {
		return nil, err
	}
	idx := o.FindItem(itemID)
	if idx < 0 {
		return nil, fmt.Errorf("item %s: %w", itemID, errs.ErrNotFound)
	}
	if !Editable(o.Items[idx]) {
		return o, nil
	}
	if quantity <= 0 {
		return RemoveItem(o, itemID)
	}

	next := o.Clone()
	next.Items[idx].Quantity = quantity
	pricing.Apply(next)
	return next, nil
}

// RemoveItem drops a pending item. Sent items are left untouched.
func RemoveItem(o *models.Order, itemID string) (*models.Order, error) {
	if err := checkOpen(o); err != nil {
		return nil, err
	}
	idx := o.FindItem(itemID)
	if idx < 0 {
		return nil, fmt.Errorf("item %s: %w", itemID, errs.ErrNotFound)
	}
	if !Editable(o.Items[idx]) {
		return o, nil
	}

	next := o.Clone()
	next.Items = append(next.Items[:idx], next.Items[idx+1:]...)
	pricing.Apply(next)
	return next, nil
}

// ApplyDiscount records the discount and re-derives totals.
func ApplyDiscount(o *models.Order, kind models.DiscountKind, value float64) (*models.Order, error) {
	if err := checkOpen(o); err != nil {
		return nil, err
	}
	if value <= 0 {
		return nil, fmt.Errorf("%w: value must be positive", errs.ErrInvalidDiscount)
	}
	switch kind {
	case models.DiscountPercentage:
		if value > 100 {
			return nil, fmt.Errorf("%w: percentage above 100", errs.ErrInvalidDiscount)
		}
	case models.DiscountAmount:
		if value > o.Subtotal {
			return nil, fmt.Errorf("%w: amount %.2f exceeds subtotal %.2f", errs.ErrInvalidDiscount, value, o.Subtotal)
		}
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", errs.ErrInvalidDiscount, kind)
	}

	next := o.Clone()
	next.DiscountType = kind
	next.DiscountValue = value
	pricing.Apply(next)
	return next, nil
}

// RemoveDiscount clears any discount.
func RemoveDiscount(o *models.Order) (*models.Order, error) {
	if err := checkOpen(o); err != nil {
		return nil, err
	}
	next := o.Clone()
	next.DiscountType = models.DiscountNone
	next.DiscountValue = 0
	pricing.Apply(next)
	return next, nil
}

// SetNote replaces the order comment carried onto kitchen tickets.
func SetNote(o *models.Order, note string) (*models.Order, error) {
	if err := checkOpen(o); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(note) > maxNoteLength {
		return nil, errs.ValidationError{
			Field:   "note",
			Message: fmt.Sprintf("note must be at most %d characters", maxNoteLength),
		}
	}
	next := o.Clone()
	next.Notes = note
	return next, nil
}

// Clear discards the active order. The caller persists the cancellation.
func Clear(o *models.Order) (*models.Order, error) {
	if err := checkOpen(o); err != nil {
		return nil, err
	}
	return nil, nil
}
