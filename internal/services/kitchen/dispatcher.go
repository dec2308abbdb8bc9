package kitchen

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"restaurant-pos/internal/errs"
	"restaurant-pos/internal/lease"
	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/services/table"
	"restaurant-pos/internal/store"
)

const maxAttempts = 3

// TicketPublisher delivers tickets to kitchen displays.
type TicketPublisher interface {
	PublishTicket(ctx context.Context, ticket models.KitchenTicket) error
}

// Dispatcher sends a table's pending items to the kitchen
type Dispatcher struct {
	store     store.Store
	locker    lease.Locker
	tables    *table.Manager
	observer  table.Observer
	publisher TicketPublisher
	logger    *logger.Logger
	now       func() time.Time
}

// NewDispatcher creates a dispatcher. publisher may be nil when no broker is
// configured; tickets are still stored.
func NewDispatcher(s store.Store, locker lease.Locker, tables *table.Manager, observer table.Observer, publisher TicketPublisher, log *logger.Logger) *Dispatcher {
	if observer == nil {
		observer = table.Nop{}
	}
	return &Dispatcher{
		store:     s,
		locker:    locker,
		tables:    tables,
		observer:  observer,
		publisher: publisher,
		logger:    log,
		now:       time.Now,
	}
}

// SendToKitchen stores the dispatched order, its tickets and the occupied
// table in one transaction, then publishes the tickets.
func (d *Dispatcher) SendToKitchen(ctx context.Context, tableID, requestID string) (*models.Order, []models.KitchenTicket, error) {
	if tableID == "" {
		return nil, nil, errs.ErrTableNotSelected
	}

	release, err := d.locker.Acquire(ctx, lease.TableKey(tableID))
	if err != nil {
		return nil, nil, err
	}
	defer release()

	d.observer.MutationStarted(tableID)
	var (
		order   *models.Order
		tickets []models.KitchenTicket
		updated *models.Table
	)
	for attempt := 1; ; attempt++ {
		order, tickets, updated, err = d.dispatch(ctx, tableID)
		if err == nil || !errs.Retryable(err) || attempt >= maxAttempts {
			break
		}
	}
	d.observer.MutationFinished(ctx, table.Mutation{TableID: tableID, Table: updated, Order: order, Err: err})
	if err != nil {
		if errs.KindOf(err) == errs.KindPersistence {
			d.logger.Error("kitchen_dispatch_failed", "Failed to store kitchen dispatch", requestID, err, map[string]interface{}{
				"table_id": tableID,
			})
		}
		return nil, nil, err
	}

	d.logger.Info("kitchen_dispatched", fmt.Sprintf("Sent %d ticket(s) to the kitchen", len(tickets)), requestID, map[string]interface{}{
		"table_id": tableID,
		"order_id": order.ID,
		"tickets":  len(tickets),
	})

	d.publish(ctx, tickets, requestID)
	return order, tickets, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, tableID string) (*models.Order, []models.KitchenTicket, *models.Table, error) {
	var (
		order   *models.Order
		tickets []models.KitchenTicket
		updated *models.Table
	)
	err := d.store.WithinTx(ctx, func(q store.Querier) error {
		t, err := q.GetTable(ctx, tableID)
		if err != nil {
			return err
		}
		current, err := q.ActiveOrder(ctx, tableID)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("table %d: %w", t.Number, errs.ErrNothingToSend)
		}

		next, routed, err := Route(current, d.now(), uuid.NewString)
		if err != nil {
			return err
		}
		if err := q.UpdateOrder(ctx, next); err != nil {
			return err
		}
		if err := q.InsertKitchenTickets(ctx, routed); err != nil {
			return err
		}
		updated, err = d.tables.Occupy(ctx, q, t)
		if err != nil {
			return err
		}
		order, tickets = next, routed
		return nil
	})
	return order, tickets, updated, err
}

// publish is best effort: tickets are already durable in the store.
func (d *Dispatcher) publish(ctx context.Context, tickets []models.KitchenTicket, requestID string) {
	if d.publisher == nil {
		return
	}
	for _, t := range tickets {
		if err := d.publisher.PublishTicket(ctx, t); err != nil {
			d.logger.Error("ticket_publish_failed", "Failed to publish kitchen ticket", requestID, err, map[string]interface{}{
				"ticket_id":  t.ID,
				"order_id":   t.OrderID,
				"department": t.Department().Key(),
			})
		}
	}
}
