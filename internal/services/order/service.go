package order

import (
	"context"
	"fmt"
	"time"

	"restaurant-pos/internal/errs"
	"restaurant-pos/internal/lease"
	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/services/table"
	"restaurant-pos/internal/store"
)

// MaxAttempts bounds the re-fetch-and-retry loop on version conflicts.
const MaxAttempts = 3

// Service applies aggregate operations to a table's active order
type Service struct {
	store    store.Store
	locker   lease.Locker
	tables   *table.Manager
	observer table.Observer
	logger   *logger.Logger
	now      func() time.Time
}

// NewService creates a new order service
func NewService(s store.Store, locker lease.Locker, tables *table.Manager, observer table.Observer, log *logger.Logger) *Service {
	if observer == nil {
		observer = table.Nop{}
	}
	return &Service{
		store:    s,
		locker:   locker,
		tables:   tables,
		observer: observer,
		logger:   log,
		now:      time.Now,
	}
}

// mutation computes the next order from the latest stored state. Returning
// the current pointer unchanged means there is nothing to write; returning
// nil cancels the current order.
type mutation func(ctx context.Context, q store.Querier, t *models.Table, current *models.Order) (*models.Order, error)

// ActiveOrder returns the table's active order, or nil.
func (s *Service) ActiveOrder(ctx context.Context, tableID string) (*models.Order, error) {
	if tableID == "" {
		return nil, errs.ErrTableNotSelected
	}
	if _, err := s.store.GetTable(ctx, tableID); err != nil {
		return nil, err
	}
	return s.store.ActiveOrder(ctx, tableID)
}

// AddProduct adds one unit of a product to the table's order, creating the
// order if the table has none.
func (s *Service) AddProduct(ctx context.Context, tableID, productID, requestID string) (*models.Order, error) {
	if productID == "" {
		return nil, errs.ValidationError{Field: "product_id", Message: "product_id is required"}
	}
	return s.mutate(ctx, tableID, requestID, "item_added", func(ctx context.Context, q store.Querier, t *models.Table, current *models.Order) (*models.Order, error) {
		product, err := q.GetProduct(ctx, productID)
		if err != nil {
			return nil, err
		}
		hall, err := q.GetHall(ctx, t.HallID)
		if err != nil {
			return nil, err
		}
		return AddOrIncrementItem(current, t, hall, product, s.now())
	})
}

func (s *Service) SetQuantity(ctx context.Context, tableID, itemID string, quantity int, requestID string) (*models.Order, error) {
	return s.mutate(ctx, tableID, requestID, "item_quantity_set", func(_ context.Context, _ store.Querier, _ *models.Table, current *models.Order) (*models.Order, error) {
		return SetItemQuantity(current, itemID, quantity)
	})
}

func (s *Service) RemoveItem(ctx context.Context, tableID, itemID, requestID string) (*models.Order, error) {
	return s.mutate(ctx, tableID, requestID, "item_removed", func(_ context.Context, _ store.Querier, _ *models.Table, current *models.Order) (*models.Order, error) {
		return RemoveItem(current, itemID)
	})
}

func (s *Service) ApplyDiscount(ctx context.Context, tableID string, kind models.DiscountKind, value float64, requestID string) (*models.Order, error) {
	return s.mutate(ctx, tableID, requestID, "discount_applied", func(_ context.Context, _ store.Querier, _ *models.Table, current *models.Order) (*models.Order, error) {
		return ApplyDiscount(current, kind, value)
	})
}

func (s *Service) RemoveDiscount(ctx context.Context, tableID, requestID string) (*models.Order, error) {
	return s.mutate(ctx, tableID, requestID, "discount_removed", func(_ context.Context, _ store.Querier, _ *models.Table, current *models.Order) (*models.Order, error) {
		return RemoveDiscount(current)
	})
}

func (s *Service) SetNote(ctx context.Context, tableID, note, requestID string) (*models.Order, error) {
	return s.mutate(ctx, tableID, requestID, "note_set", func(_ context.Context, _ store.Querier, _ *models.Table, current *models.Order) (*models.Order, error) {
		return SetNote(current, note)
	})
}

// Clear cancels the table's active order and frees the table.
func (s *Service) Clear(ctx context.Context, tableID, requestID string) error {
	_, err := s.mutate(ctx, tableID, requestID, "order_cleared", func(_ context.Context, _ store.Querier, _ *models.Table, current *models.Order) (*models.Order, error) {
		return Clear(current)
	})
	return err
}

func (s *Service) mutate(ctx context.Context, tableID, requestID, action string, fn mutation) (*models.Order, error) {
	if tableID == "" {
		return nil, errs.ErrTableNotSelected
	}

	release, err := s.locker.Acquire(ctx, lease.TableKey(tableID))
	if err != nil {
		return nil, err
	}
	defer release()

	s.observer.MutationStarted(tableID)
	var (
		result  *models.Order
		updated *models.Table
	)
	for attempt := 1; ; attempt++ {
		result, updated, err = s.apply(ctx, tableID, fn)
		if err == nil || !errs.Retryable(err) || attempt >= MaxAttempts {
			break
		}
		s.logger.Debug("mutation_retry", "Order changed concurrently, retrying on fresh snapshot", requestID, map[string]interface{}{
			"table_id": tableID,
			"action":   action,
			"attempt":  attempt,
		})
	}
	s.observer.MutationFinished(ctx, table.Mutation{TableID: tableID, Table: updated, Order: result, Err: err})

	if err != nil {
		if errs.KindOf(err) == errs.KindPersistence {
			s.logger.Error(action+"_failed", "Failed to persist order change", requestID, err, map[string]interface{}{
				"table_id": tableID,
			})
		}
		return nil, err
	}

	fields := map[string]interface{}{"table_id": tableID}
	if result != nil {
		fields["order_id"] = result.ID
		fields["items"] = len(result.Items)
		fields["total_amount"] = result.TotalAmount
		fields["version"] = result.Version
	}
	s.logger.Debug(action, fmt.Sprintf("Order on table %s updated", tableID), requestID, fields)
	return result, nil
}

// apply runs one read-modify-write attempt in a transaction.
func (s *Service) apply(ctx context.Context, tableID string, fn mutation) (*models.Order, *models.Table, error) {
	var (
		result  *models.Order
		updated *models.Table
	)
	err := s.store.WithinTx(ctx, func(q store.Querier) error {
		t, err := q.GetTable(ctx, tableID)
		if err != nil {
			return err
		}
		current, err := q.ActiveOrder(ctx, tableID)
		if err != nil {
			return err
		}

		next, err := fn(ctx, q, t, current)
		if err != nil {
			return err
		}

		switch {
		case next == nil && current != nil:
			cancelled := current.Clone()
			cancelled.Status = models.StatusCancelled
			now := s.now()
			cancelled.CompletedAt = &now
			if err := q.UpdateOrder(ctx, cancelled); err != nil {
				return err
			}
		case next == current:
			result, updated = current, t
			return nil
		case next.ID == "":
			if err := q.CreateOrder(ctx, next); err != nil {
				return err
			}
		default:
			if err := q.UpdateOrder(ctx, next); err != nil {
				return err
			}
		}

		updated, err = s.tables.Sync(ctx, q, t, next)
		if err != nil {
			return err
		}
		result = next
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return result, updated, nil
}
