package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-pos/internal/errs"
	"restaurant-pos/internal/models"
)

func newTestMemory() *Memory {
	m := NewMemory()
	m.AddHall(models.Hall{ID: "h1", RestaurantID: "r1", ServiceCharge: 10, IsActive: true})
	m.AddTable(models.Table{ID: "t1", RestaurantID: "r1", HallID: "h1", Number: 1})
	m.AddTable(models.Table{ID: "t2", RestaurantID: "r1", HallID: "h1", Number: 2})
	return m
}

func TestCreateOrderExclusivePerTable(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory()

	first := &models.Order{TableID: "t1", RestaurantID: "r1", Status: models.StatusPending}
	require.NoError(t, m.CreateOrder(ctx, first))
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, 1, first.Version)

	second := &models.Order{TableID: "t1", RestaurantID: "r1", Status: models.StatusPending}
	assert.ErrorIs(t, m.CreateOrder(ctx, second), errs.ErrActiveOrderExists)

	first.Status = models.StatusCompleted
	require.NoError(t, m.UpdateOrder(ctx, first))
	assert.NoError(t, m.CreateOrder(ctx, second))
}

func TestUpdateOrderVersionCheck(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory()

	o := &models.Order{TableID: "t1", RestaurantID: "r1", Status: models.StatusPending}
	require.NoError(t, m.CreateOrder(ctx, o))

	a, err := m.ActiveOrder(ctx, "t1")
	require.NoError(t, err)
	b, err := m.ActiveOrder(ctx, "t1")
	require.NoError(t, err)

	a.Notes = "first"
	require.NoError(t, m.UpdateOrder(ctx, a))
	assert.Equal(t, 2, a.Version)

	b.Notes = "second"
	assert.ErrorIs(t, m.UpdateOrder(ctx, b), errs.ErrConcurrencyConflict)

	latest, err := m.ActiveOrder(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "first", latest.Notes)
}

func TestUpdateOrderRejectsTerminal(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory()

	o := &models.Order{TableID: "t1", Status: models.StatusPending}
	require.NoError(t, m.CreateOrder(ctx, o))
	o.Status = models.StatusCancelled
	require.NoError(t, m.UpdateOrder(ctx, o))

	o.Status = models.StatusPending
	assert.ErrorIs(t, m.UpdateOrder(ctx, o), errs.ErrConcurrencyConflict)
}

func TestActiveOrderReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory()

	o := &models.Order{TableID: "t1", Status: models.StatusPending, Items: []models.OrderItem{{ID: "i1", Quantity: 1}}}
	require.NoError(t, m.CreateOrder(ctx, o))

	got, err := m.ActiveOrder(ctx, "t1")
	require.NoError(t, err)
	got.Items[0].Quantity = 9

	again, err := m.ActiveOrder(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, again.Items[0].Quantity)

	none, err := m.ActiveOrder(ctx, "t2")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestWithinTxRollsBack(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory()
	boom := errors.New("boom")

	err := m.WithinTx(ctx, func(q Querier) error {
		require.NoError(t, q.SetTableStatus(ctx, "t1", models.TableOccupied))
		require.NoError(t, q.CreateOrder(ctx, &models.Order{TableID: "t1", Status: models.StatusPending}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	table, err := m.GetTable(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.TableEmpty, table.Status)
	o, err := m.ActiveOrder(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, o)
}

func TestRecentCompletedWindow(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, m.InsertCompleted(ctx, &models.CompletedOrderRecord{TableID: "t1", TableNumber: 1, CompletedAt: now}))

	got, err := m.RecentCompleted(ctx, "t1", 1, now.Add(-5*time.Second))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.NotEmpty(t, got.ID)

	got, err = m.RecentCompleted(ctx, "t1", 1, now.Add(time.Second))
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = m.RecentCompleted(ctx, "t1", 2, now.Add(-5*time.Second))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFeedDeliversCommittedChanges(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory()
	m.AddTable(models.Table{ID: "x1", RestaurantID: "other", HallID: "h1", Number: 9})

	feed := m.Subscribe("r1")
	defer feed.Close()

	_ = m.WithinTx(ctx, func(q Querier) error {
		_ = q.SetTableStatus(ctx, "t2", models.TableOccupied)
		return errors.New("rolled back")
	})
	require.NoError(t, m.SetTableStatus(ctx, "x1", models.TableOccupied))
	require.NoError(t, m.SetTableStatus(ctx, "t1", models.TableOccupied))

	select {
	case ev := <-feed.Events():
		assert.Equal(t, models.EventUpdate, ev.Type)
		assert.Equal(t, models.FeedTableTables, ev.Table)
		assert.Equal(t, "t1", ev.AffectedTableID())
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
	assert.Empty(t, feed.Events())

	require.NoError(t, feed.Close())
	_, open := <-feed.Events()
	assert.False(t, open)
}

func TestLoadSeed(t *testing.T) {
	seed, err := LoadSeed(filepath.Join("..", "..", "seed.yaml"))
	require.NoError(t, err)

	m := NewMemory()
	seed.Apply(m)

	tables, err := m.ListTables(context.Background(), "hall-main")
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, 1, tables[0].Number)

	p, err := m.GetProduct(context.Background(), "p-kebab")
	require.NoError(t, err)
	require.NotNil(t, p.DepartmentID)
	assert.Equal(t, "grill", *p.DepartmentID)

	salad, err := m.GetProduct(context.Background(), "p-salad")
	require.NoError(t, err)
	assert.Nil(t, salad.DepartmentID)
}
