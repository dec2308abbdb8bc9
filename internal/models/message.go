package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ChangeEventType is the kind of row change reported by the change feed.
type ChangeEventType string

const (
	EventInsert ChangeEventType = "INSERT"
	EventUpdate ChangeEventType = "UPDATE"
	EventDelete ChangeEventType = "DELETE"
)

const (
	FeedTableTables = "tables"
	FeedTableOrders = "orders"
)

// ChangeRow carries the key columns of the changed row.
type ChangeRow struct {
	ID           string `json:"id"`
	TableID      string `json:"table_id,omitempty"`
	RestaurantID string `json:"restaurant_id"`
	Status       string `json:"status,omitempty"`
}

// ChangeEvent is one notification from the change feed
type ChangeEvent struct {
	Type  ChangeEventType `json:"eventType"`
	Table string          `json:"table"`
	Row   ChangeRow       `json:"row"`
}

// AffectedTableID returns the dining table the event refers to.
func (e ChangeEvent) AffectedTableID() string {
	if e.Table == FeedTableTables {
		return e.Row.ID
	}
	return e.Row.TableID
}

// ParseChangeEvent decodes a feed payload and reports whether it is
// well-formed and belongs to restaurantID. An empty restaurantID accepts
// every restaurant.
func ParseChangeEvent(body []byte, restaurantID string) (ChangeEvent, bool) {
	var ev ChangeEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return ev, false
	}
	if ev.Table == "" || ev.Row.ID == "" {
		return ev, false
	}
	if restaurantID != "" && ev.Row.RestaurantID != restaurantID {
		return ev, false
	}
	return ev, true
}

// StatusUpdateMessage is published when an order reaches a new status
type StatusUpdateMessage struct {
	OrderID     string      `json:"order_id"`
	TableID     string      `json:"table_id"`
	TableNumber int         `json:"table_number"`
	OldStatus   OrderStatus `json:"old_status"`
	NewStatus   OrderStatus `json:"new_status"`
	ChangedBy   string      `json:"changed_by"`
	TotalAmount float64     `json:"total_amount"`
	IsUnpaid    bool        `json:"is_unpaid,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
}

// CreateStatusUpdateMessage creates a StatusUpdateMessage for a settled order
func CreateStatusUpdateMessage(o *Order, oldStatus OrderStatus, changedBy string, unpaid bool) *StatusUpdateMessage {
	return &StatusUpdateMessage{
		OrderID:     o.ID,
		TableID:     o.TableID,
		TableNumber: o.TableNumber,
		OldStatus:   oldStatus,
		NewStatus:   o.Status,
		ChangedBy:   changedBy,
		TotalAmount: o.TotalAmount,
		IsUnpaid:    unpaid,
		Timestamp:   time.Now().UTC(),
	}
}

// KitchenRoutingKey generates the routing key for a department's tickets
func KitchenRoutingKey(d Department) string {
	return fmt.Sprintf("kitchen.%s", d.Key())
}
