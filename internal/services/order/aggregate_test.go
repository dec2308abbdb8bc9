package order

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-pos/internal/errs"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/pricing"
)

var (
	testNow   = time.Date(2026, 3, 1, 19, 30, 0, 0, time.UTC)
	testTable = &models.Table{ID: "t1", RestaurantID: "r1", HallID: "h1", Number: 7}
	testHall  = &models.Hall{ID: "h1", BranchID: "b1", ServiceCharge: 10}
	grill     = "grill"
	kebab     = &models.Product{ID: "p-kebab", Name: "Kebab", Price: 5, DepartmentID: &grill, IsActive: true}
	tea       = &models.Product{ID: "p-tea", Name: "Tea", Price: 3, IsActive: true}
)

func orderWith(items ...models.OrderItem) *models.Order {
	o := New(testTable, testHall, testNow)
	o.ID = "o1"
	o.Items = items
	return o
}

func pendingItem(id, productID string, price float64, qty int) models.OrderItem {
	return models.OrderItem{ID: id, ProductID: productID, Price: price, Quantity: qty, Subtotal: price * float64(qty), Status: models.ItemPending}
}

func sentItem(id, productID string, price float64, qty int) models.OrderItem {
	it := pendingItem(id, productID, price, qty)
	it.Status = models.ItemSentToKitchen
	return it
}

func TestEditable(t *testing.T) {
	assert.True(t, Editable(models.OrderItem{}))
	assert.True(t, Editable(models.OrderItem{Status: models.ItemPending}))
	assert.False(t, Editable(models.OrderItem{Status: models.ItemSentToKitchen}))
}

func TestAddOrIncrementItem_NewOrder(t *testing.T) {
	o, err := AddOrIncrementItem(nil, testTable, testHall, kebab, testNow)
	require.NoError(t, err)

	assert.Empty(t, o.ID)
	assert.Equal(t, models.StatusPending, o.Status)
	assert.Equal(t, models.PaymentUnpaid, o.PaymentStatus)
	assert.Equal(t, "t1", o.TableID)
	assert.Equal(t, 7, o.TableNumber)
	assert.Equal(t, "b1", o.BranchID)
	assert.Equal(t, testNow, o.StartedAt)
	require.Len(t, o.Items, 1)
	assert.Equal(t, 1, o.Items[0].Quantity)
	assert.Equal(t, models.ItemPending, o.Items[0].Status)
	require.NotNil(t, o.Items[0].DepartmentID)
	assert.Equal(t, "grill", *o.Items[0].DepartmentID)
	assert.InDelta(t, 5.0, o.Subtotal, 1e-9)
	assert.InDelta(t, 5.0*1.18+0.5, o.TotalAmount, 1e-9)
}

func TestAddOrIncrementItem_SameProductTwice(t *testing.T) {
	o, err := AddOrIncrementItem(nil, testTable, testHall, kebab, testNow)
	require.NoError(t, err)
	o, err = AddOrIncrementItem(o, testTable, testHall, kebab, testNow)
	require.NoError(t, err)

	require.Len(t, o.Items, 1)
	assert.Equal(t, 2, o.Items[0].Quantity)
	assert.InDelta(t, 10.0, o.Items[0].Subtotal, 1e-9)
	assert.InDelta(t, 10.0, o.Subtotal, 1e-9)
}

func TestAddOrIncrementItem_SentLineGetsNewLine(t *testing.T) {
	current := orderWith(sentItem("i1", kebab.ID, 5, 1))

	o, err := AddOrIncrementItem(current, testTable, testHall, kebab, testNow)
	require.NoError(t, err)

	require.Len(t, o.Items, 2)
	assert.Equal(t, models.ItemSentToKitchen, o.Items[0].Status)
	assert.Equal(t, 1, o.Items[0].Quantity)
	assert.Equal(t, models.ItemPending, o.Items[1].Status)
	assert.Len(t, current.Items, 1, "input must not be mutated")
}

func TestAddOrIncrementItem_NoTable(t *testing.T) {
	_, err := AddOrIncrementItem(nil, nil, testHall, kebab, testNow)
	assert.ErrorIs(t, err, errs.ErrTableNotSelected)
}

func TestSetItemQuantity(t *testing.T) {
	tests := []struct {
		name      string
		order     *models.Order
		itemID    string
		quantity  int
		wantItems int
		wantQty   int
		wantSame  bool
		wantErr   error
	}{
		{
			name:      "sets pending quantity",
			order:     orderWith(pendingItem("i1", "p1", 4, 1)),
			itemID:    "i1",
			quantity:  3,
			wantItems: 1,
			wantQty:   3,
		},
		{
			name:      "zero removes",
			order:     orderWith(pendingItem("i1", "p1", 4, 1), pendingItem("i2", "p2", 2, 1)),
			itemID:    "i1",
			quantity:  0,
			wantItems: 1,
			wantQty:   1,
		},
		{
			name:      "negative removes",
			order:     orderWith(pendingItem("i1", "p1", 4, 2)),
			itemID:    "i1",
			quantity:  -1,
			wantItems: 0,
		},
		{
			name:      "sent item untouched",
			order:     orderWith(sentItem("i1", "p1", 4, 2)),
			itemID:    "i1",
			quantity:  5,
			wantItems: 1,
			wantQty:   2,
			wantSame:  true,
		},
		{
			name:    "unknown item",
			order:   orderWith(pendingItem("i1", "p1", 4, 1)),
			itemID:  "nope",
			wantErr: errs.ErrNotFound,
		},
		{
			name:    "no order",
			itemID:  "i1",
			wantErr: errs.ErrNoActiveOrder,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SetItemQuantity(tt.order, tt.itemID, tt.quantity)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Len(t, got.Items, tt.wantItems)
			if tt.wantItems > 0 {
				assert.Equal(t, tt.wantQty, got.Items[0].Quantity)
			}
			if tt.wantSame {
				assert.Same(t, tt.order, got)
			}
		})
	}
}

func TestRemoveItem(t *testing.T) {
	o := orderWith(pendingItem("i1", "p1", 5, 1), sentItem("i2", "p2", 3, 1))
	o.ServiceRate = 0

	got, err := RemoveItem(o, "i2")
	require.NoError(t, err)
	assert.Same(t, o, got)

	got, err = RemoveItem(o, "i1")
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "i2", got.Items[0].ID)
	assert.InDelta(t, 3.0, got.Subtotal, 1e-9)
	assert.Len(t, o.Items, 2)
}

func TestApplyDiscount(t *testing.T) {
	base := orderWith(pendingItem("i1", "p1", 10, 2))
	base.ServiceRate = 0
	base.Subtotal = 20

	tests := []struct {
		name         string
		kind         models.DiscountKind
		value        float64
		wantDiscount float64
		wantErr      bool
	}{
		{name: "percentage", kind: models.DiscountPercentage, value: 25, wantDiscount: 5},
		{name: "full percentage", kind: models.DiscountPercentage, value: 100, wantDiscount: 20},
		{name: "percentage above 100", kind: models.DiscountPercentage, value: 100.5, wantErr: true},
		{name: "amount", kind: models.DiscountAmount, value: 7.5, wantDiscount: 7.5},
		{name: "amount equal to subtotal", kind: models.DiscountAmount, value: 20, wantDiscount: 20},
		{name: "amount above subtotal", kind: models.DiscountAmount, value: 20.01, wantErr: true},
		{name: "zero", kind: models.DiscountAmount, value: 0, wantErr: true},
		{name: "negative", kind: models.DiscountPercentage, value: -5, wantErr: true},
		{name: "unknown kind", kind: "coupon", value: 5, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ApplyDiscount(base, tt.kind, tt.value)
			if tt.wantErr {
				assert.ErrorIs(t, err, errs.ErrInvalidDiscount)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.wantDiscount, got.Discount, 1e-9)
			assert.Equal(t, tt.kind, got.DiscountType)
			after := 20 - tt.wantDiscount
			assert.InDelta(t, after*1.18, got.TotalAmount, 1e-9)
		})
	}
}

func TestDiscountRederivedAfterItemChange(t *testing.T) {
	o := orderWith(pendingItem("i1", "p1", 10, 2))
	o.ServiceRate = 0
	o, err := ApplyDiscount(withTotals(o), models.DiscountPercentage, 10)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, o.Discount, 1e-9)

	o, err = SetItemQuantity(o, "i1", 4)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, o.Discount, 1e-9)
}

func TestRemoveDiscount(t *testing.T) {
	o, err := ApplyDiscount(withTotals(orderWith(pendingItem("i1", "p1", 10, 1))), models.DiscountAmount, 2)
	require.NoError(t, err)

	o, err = RemoveDiscount(o)
	require.NoError(t, err)
	assert.Equal(t, models.DiscountNone, o.DiscountType)
	assert.Zero(t, o.Discount)
}

func TestSetNote(t *testing.T) {
	o := orderWith(pendingItem("i1", "p1", 10, 1))

	got, err := SetNote(o, "no onions")
	require.NoError(t, err)
	assert.Equal(t, "no onions", got.Notes)
	assert.Empty(t, o.Notes)

	long := strings.Repeat("x", maxNoteLength+1)
	_, err = SetNote(o, long)
	var ve errs.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestSetNoteCountsCharacters(t *testing.T) {
	o := orderWith(pendingItem("i1", "p1", 10, 1))

	note := strings.Repeat("ş", maxNoteLength)
	require.Greater(t, len(note), maxNoteLength)

	got, err := SetNote(o, note)
	require.NoError(t, err)
	assert.Equal(t, note, got.Notes)

	_, err = SetNote(o, note+"ə")
	var ve errs.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestClear(t *testing.T) {
	got, err := Clear(orderWith(pendingItem("i1", "p1", 10, 1)))
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = Clear(nil)
	assert.ErrorIs(t, err, errs.ErrNoActiveOrder)
}

func TestTerminalOrderRejected(t *testing.T) {
	o := orderWith(pendingItem("i1", "p1", 10, 1))
	o.Status = models.StatusCompleted

	_, err := SetItemQuantity(o, "i1", 2)
	assert.ErrorIs(t, err, errs.ErrNoActiveOrder)
	_, err = AddOrIncrementItem(o, testTable, testHall, tea, testNow)
	assert.ErrorIs(t, err, errs.ErrNoActiveOrder)
}

func withTotals(o *models.Order) *models.Order {
	next := o.Clone()
	pricing.Apply(next)
	return next
}
