package table

import (
	"context"
	"fmt"

	"restaurant-pos/internal/errs"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/store"
)

// DeriveStatus maps an order to the table's occupancy.
func DeriveStatus(o *models.Order) models.TableStatus {
	if o == nil || o.Status.IsTerminal() || len(o.Items) == 0 {
		return models.TableEmpty
	}
	return models.TableOccupied
}

// NextStatus is DeriveStatus except that a table already awaiting payment
// keeps that status while its order still has items.
func NextStatus(current models.TableStatus, o *models.Order) models.TableStatus {
	derived := DeriveStatus(o)
	if derived == models.TableOccupied && current == models.TableWaitingPayment {
		return models.TableWaitingPayment
	}
	return derived
}

// Manager owns writes to table status.
type Manager struct {
	store store.Store
}

func NewManager(s store.Store) *Manager {
	return &Manager{store: s}
}

// Sync writes the status implied by o, if it differs, and returns the
// updated table.
func (m *Manager) Sync(ctx context.Context, q store.Querier, t *models.Table, o *models.Order) (*models.Table, error) {
	next := NextStatus(t.Status, o)
	return m.set(ctx, q, t, next)
}

// Release frees the table after settlement or cancellation.
func (m *Manager) Release(ctx context.Context, q store.Querier, t *models.Table) (*models.Table, error) {
	return m.set(ctx, q, t, models.TableEmpty)
}

// Occupy marks the table occupied regardless of a pending bill request.
func (m *Manager) Occupy(ctx context.Context, q store.Querier, t *models.Table) (*models.Table, error) {
	return m.set(ctx, q, t, models.TableOccupied)
}

// MarkAwaitingPayment flags a table whose guests asked for the bill. The
// table must have an active order with items.
func (m *Manager) MarkAwaitingPayment(ctx context.Context, q store.Querier, tableID string) (*models.Table, *models.Order, error) {
	t, err := q.GetTable(ctx, tableID)
	if err != nil {
		return nil, nil, err
	}
	o, err := q.ActiveOrder(ctx, tableID)
	if err != nil {
		return nil, nil, err
	}
	if !o.HasItems() {
		return nil, nil, fmt.Errorf("table %d: %w", t.Number, errs.ErrNoActiveOrder)
	}
	t, err = m.set(ctx, q, t, models.TableWaitingPayment)
	if err != nil {
		return nil, nil, err
	}
	return t, o, nil
}

// ListTables returns the tables of a hall, or every table when hallID is empty.
func (m *Manager) ListTables(ctx context.Context, hallID string) ([]models.Table, error) {
	return m.store.ListTables(ctx, hallID)
}

func (m *Manager) set(ctx context.Context, q store.Querier, t *models.Table, status models.TableStatus) (*models.Table, error) {
	updated := *t
	if t.Status == status {
		return &updated, nil
	}
	if err := q.SetTableStatus(ctx, t.ID, status); err != nil {
		return nil, err
	}
	updated.Status = status
	return &updated, nil
}
