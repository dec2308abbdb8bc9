package payment

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

// Notifier announces settled orders.
type Notifier interface {
	PublishNotification(ctx context.Context, msg *models.StatusUpdateMessage) error
}

// Resolver settles a table's active order, paid or unpaid.
type Resolver struct {
	store        store.Store
	locker       lease.Locker
	tables       *table.Manager
	observer     table.Observer
	notifier     Notifier
	settleWindow time.Duration
	logger       *logger.Logger
	now          func() time.Time
}

// NewResolver creates a resolver. notifier may be nil. A repeated settlement
// of the same table within settleWindow returns the earlier record.
func NewResolver(s store.Store, locker lease.Locker, tables *table.Manager, observer table.Observer, notifier Notifier, settleWindow time.Duration, log *logger.Logger) *Resolver {
	if observer == nil {
		observer = table.Nop{}
	}
	return &Resolver{
		store:        s,
		locker:       locker,
		tables:       tables,
		observer:     observer,
		notifier:     notifier,
		settleWindow: settleWindow,
		logger:       log,
		now:          time.Now,
	}
}

// closure describes one settlement attempt.
type closure struct {
	cashier models.Cashier
	details *models.PaymentDetails
	unpaid  bool
	reason  models.UnpaidReason
}

// Complete settles the order as paid.
func (r *Resolver) Complete(ctx context.Context, tableID string, cashier models.Cashier, details models.PaymentDetails, requestID string) (*models.CompletedOrderRecord, error) {
	return r.settle(ctx, tableID, closure{cashier: cashier, details: &details}, requestID)
}

// CloseUnpaid settles the order without payment for one of the fixed reasons.
func (r *Resolver) CloseUnpaid(ctx context.Context, tableID string, cashier models.Cashier, reason models.UnpaidReason, requestID string) (*models.CompletedOrderRecord, error) {
	if !reason.Valid() {
		return nil, fmt.Errorf("%w: %q", errs.ErrInvalidUnpaidReason, reason)
	}
	return r.settle(ctx, tableID, closure{cashier: cashier, unpaid: true, reason: reason}, requestID)
}

// AwaitPayment marks the table as waiting for the bill.
func (r *Resolver) AwaitPayment(ctx context.Context, tableID, requestID string) (*models.Table, error) {
	if tableID == "" {
		return nil, errs.ErrTableNotSelected
	}
	release, err := r.locker.Acquire(ctx, lease.TableKey(tableID))
	if err != nil {
		return nil, err
	}
	defer release()

	r.observer.MutationStarted(tableID)
	var (
		t *models.Table
		o *models.Order
	)
	err = r.store.WithinTx(ctx, func(q store.Querier) error {
		var err error
		t, o, err = r.tables.MarkAwaitingPayment(ctx, q, tableID)
		return err
	})
	r.observer.MutationFinished(ctx, table.Mutation{TableID: tableID, Table: t, Order: o, Err: err})
	if err != nil {
		return nil, err
	}

	r.logger.Info("awaiting_payment", fmt.Sprintf("Table %d is waiting for payment", t.Number), requestID, map[string]interface{}{
		"table_id": tableID,
		"order_id": o.ID,
	})
	return t, nil
}

func (r *Resolver) settle(ctx context.Context, tableID string, c closure, requestID string) (*models.CompletedOrderRecord, error) {
	if tableID == "" {
		return nil, errs.ErrTableNotSelected
	}

	current, err := r.store.ActiveOrder(ctx, tableID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return r.recentOrMissing(ctx, r.store, tableID, requestID)
	}
	if c.details != nil {
		if _, err := ValidatePayment(current, *c.details); err != nil {
			return nil, err
		}
	}

	releaseSettle, ok, err := r.locker.TryAcquire(ctx, lease.SettleKey(current.ID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("order %s: %w", current.ID, errs.ErrSettlementInProgress)
	}
	defer releaseSettle()

	releaseTable, err := r.locker.Acquire(ctx, lease.TableKey(tableID))
	if err != nil {
		return nil, err
	}
	defer releaseTable()

	r.observer.MutationStarted(tableID)
	var (
		record   *models.CompletedOrderRecord
		settled  *models.Order
		released *models.Table
		replayed bool
	)
	err = r.store.WithinTx(ctx, func(q store.Querier) error {
		t, err := q.GetTable(ctx, tableID)
		if err != nil {
			return err
		}
		o, err := q.ActiveOrder(ctx, tableID)
		if err != nil {
			return err
		}
		if o == nil || o.ID != current.ID {
			rec, err := r.recent(ctx, q, t)
			if err != nil {
				return err
			}
			if rec == nil {
				return errs.ErrNoActiveOrder
			}
			record, released, replayed = rec, t, true
			return nil
		}

		now := r.now()
		rec := models.NewCompletedRecord(o, c.cashier, now)
		next := o.Clone()
		next.CompletedAt = &now
		if c.unpaid {
			rec.IsUnpaid = true
			rec.UnpaidReason = c.reason
			rec.PaymentMethod = models.PaymentMethodUnpaid
			rec.PaymentDetails = &models.PaymentDetails{Method: models.PaymentMethodUnpaid, UnpaidReason: c.reason}
			next.Status = models.StatusCancelled
		} else {
			details, err := ValidatePayment(o, *c.details)
			if err != nil {
				return err
			}
			rec.PaymentMethod = details.Method
			rec.PaymentDetails = &details
			next.Status = models.StatusCompleted
			next.PaymentStatus = models.PaymentPaid
			next.PaymentMethod = details.Method
		}

		if err := q.InsertCompleted(ctx, rec); err != nil {
			return err
		}
		if err := q.UpdateOrder(ctx, next); err != nil {
			return err
		}
		if released, err = r.tables.Release(ctx, q, t); err != nil {
			return err
		}
		record, settled = rec, next
		return nil
	})
	r.observer.MutationFinished(ctx, table.Mutation{TableID: tableID, Table: released, Err: err})

	if err != nil {
		if errs.KindOf(err) == errs.KindPersistence {
			r.logger.Error("settlement_failed", "Failed to persist settlement", requestID, err, map[string]interface{}{
				"table_id": tableID,
				"order_id": current.ID,
			})
		}
		return nil, err
	}
	if replayed {
		r.logger.Info("settlement_replayed", "Order already settled, returning existing record", requestID, map[string]interface{}{
			"table_id":  tableID,
			"record_id": record.ID,
		})
		return record, nil
	}

	r.logger.Info("order_settled", fmt.Sprintf("Order on table %d settled", record.TableNumber), requestID, map[string]interface{}{
		"order_id":       settled.ID,
		"record_id":      record.ID,
		"total_amount":   record.TotalAmount,
		"payment_method": record.PaymentMethod,
		"is_unpaid":      record.IsUnpaid,
		"cashier_id":     c.cashier.ID,
	})
	r.notify(ctx, settled, current.Status, c, requestID)
	return record, nil
}

// recentOrMissing answers a settlement retry for a table that no longer has
// an active order.
func (r *Resolver) recentOrMissing(ctx context.Context, q store.Querier, tableID, requestID string) (*models.CompletedOrderRecord, error) {
	t, err := q.GetTable(ctx, tableID)
	if err != nil {
		return nil, err
	}
	rec, err := r.recent(ctx, q, t)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("table %d: %w", t.Number, errs.ErrNoActiveOrder)
	}
	r.logger.Info("settlement_replayed", "Order already settled, returning existing record", requestID, map[string]interface{}{
		"table_id":  tableID,
		"record_id": rec.ID,
	})
	return rec, nil
}

func (r *Resolver) recent(ctx context.Context, q store.Querier, t *models.Table) (*models.CompletedOrderRecord, error) {
	if r.settleWindow <= 0 {
		return nil, nil
	}
	return q.RecentCompleted(ctx, t.ID, t.Number, r.now().Add(-r.settleWindow))
}

func (r *Resolver) notify(ctx context.Context, o *models.Order, oldStatus models.OrderStatus, c closure, requestID string) {
	if r.notifier == nil {
		return
	}
	changedBy := c.cashier.Name
	if changedBy == "" {
		changedBy = c.cashier.ID
	}
	msg := models.CreateStatusUpdateMessage(o, oldStatus, changedBy, c.unpaid)
	if err := r.notifier.PublishNotification(ctx, msg); err != nil {
		r.logger.Error("notification_publish_failed", "Failed to publish settlement notification", requestID, err, map[string]interface{}{
			"order_id": o.ID,
		})
	}
}
