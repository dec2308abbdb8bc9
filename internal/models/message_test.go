package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChangeEvent(t *testing.T) {
	body := []byte(`{"eventType":"UPDATE","table":"orders","row":{"id":"o1","table_id":"t1","restaurant_id":"r1","status":"in_progress"}}`)

	ev, ok := ParseChangeEvent(body, "r1")
	require.True(t, ok)
	assert.Equal(t, EventUpdate, ev.Type)
	assert.Equal(t, "t1", ev.AffectedTableID())

	_, ok = ParseChangeEvent(body, "r2")
	assert.False(t, ok)

	_, ok = ParseChangeEvent(body, "")
	assert.True(t, ok)

	_, ok = ParseChangeEvent([]byte(`not json`), "r1")
	assert.False(t, ok)

	_, ok = ParseChangeEvent([]byte(`{"eventType":"UPDATE"}`), "")
	assert.False(t, ok)
}

func TestAffectedTableID(t *testing.T) {
	ev := ChangeEvent{Table: FeedTableTables, Row: ChangeRow{ID: "t9"}}
	assert.Equal(t, "t9", ev.AffectedTableID())
}

func TestKitchenRoutingKey(t *testing.T) {
	assert.Equal(t, "kitchen.default", KitchenRoutingKey(DefaultDepartment))
	assert.Equal(t, "kitchen.bar", KitchenRoutingKey(Department{ID: "bar"}))
}

func TestCreateStatusUpdateMessage(t *testing.T) {
	o := &Order{ID: "o1", TableID: "t1", TableNumber: 2, Status: StatusCompleted, TotalAmount: 20.65}
	msg := CreateStatusUpdateMessage(o, StatusInProgress, "cashier-1", false)
	assert.Equal(t, StatusInProgress, msg.OldStatus)
	assert.Equal(t, StatusCompleted, msg.NewStatus)
	assert.Equal(t, "cashier-1", msg.ChangedBy)
	assert.False(t, msg.Timestamp.IsZero())
}
