package kitchen

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-pos/internal/errs"
	"restaurant-pos/internal/models"
)

var testNow = time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("k%d", n)
	}
}

func dep(id string) *string { return &id }

func item(id string, department *string, status models.ItemStatus) models.OrderItem {
	return models.OrderItem{ID: id, ProductID: "p-" + id, Name: id, Price: 1, Quantity: 1, Subtotal: 1, DepartmentID: department, Status: status}
}

func TestRouteGroupsByDepartmentInFirstAppearanceOrder(t *testing.T) {
	o := &models.Order{
		ID:          "o1",
		TableNumber: 4,
		Status:      models.StatusPending,
		Notes:       "window seat",
		Items: []models.OrderItem{
			item("a", dep("grill"), models.ItemPending),
			item("b", nil, models.ItemPending),
			item("c", dep("bar"), models.ItemPending),
			item("d", dep("grill"), models.ItemPending),
		},
	}

	next, tickets, err := Route(o, testNow, seqIDs())
	require.NoError(t, err)

	require.Len(t, tickets, 3)
	assert.Equal(t, "grill", tickets[0].Department().Key())
	assert.Equal(t, models.DefaultDepartment, tickets[1].Department())
	assert.Nil(t, tickets[1].DepartmentID)
	assert.Equal(t, "bar", tickets[2].Department().Key())

	require.Len(t, tickets[0].Items, 2)
	assert.Equal(t, "a", tickets[0].Items[0].ID)
	assert.Equal(t, "d", tickets[0].Items[1].ID)
	for _, tk := range tickets {
		assert.Equal(t, "o1", tk.OrderID)
		assert.Equal(t, 4, tk.TableNumber)
		assert.Equal(t, models.TicketPending, tk.Status)
		assert.Equal(t, "window seat", tk.Notes)
		assert.Equal(t, testNow, tk.CreatedAt)
		for _, it := range tk.Items {
			assert.Equal(t, models.ItemSentToKitchen, it.Status)
		}
	}

	assert.Equal(t, models.StatusInProgress, next.Status)
	require.NotNil(t, next.SentToKitchenAt)
	assert.Equal(t, testNow, *next.SentToKitchenAt)
	for _, it := range next.Items {
		assert.Equal(t, models.ItemSentToKitchen, it.Status)
	}
	assert.Equal(t, models.ItemPending, o.Items[0].Status, "input must not be mutated")
}

func TestRouteOnlyTicketsNewItems(t *testing.T) {
	o := &models.Order{
		ID:     "o1",
		Status: models.StatusInProgress,
		Items: []models.OrderItem{
			item("old", dep("grill"), models.ItemSentToKitchen),
			item("new", dep("grill"), models.ItemPending),
		},
	}

	_, tickets, err := Route(o, testNow, seqIDs())
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	require.Len(t, tickets[0].Items, 1)
	assert.Equal(t, "new", tickets[0].Items[0].ID)
}

func TestRouteNothingToSend(t *testing.T) {
	o := &models.Order{ID: "o1", Status: models.StatusInProgress, Items: []models.OrderItem{
		item("a", nil, models.ItemSentToKitchen),
	}}
	_, _, err := Route(o, testNow, seqIDs())
	assert.ErrorIs(t, err, errs.ErrNothingToSend)

	_, _, err = Route(&models.Order{ID: "o2", Status: models.StatusPending}, testNow, seqIDs())
	assert.ErrorIs(t, err, errs.ErrNothingToSend)

	_, _, err = Route(nil, testNow, seqIDs())
	assert.ErrorIs(t, err, errs.ErrNoActiveOrder)
}
