package table

import (
	"context"

	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
)

// Mutation is the outcome of one local write against a table. Order is nil
// when the table no longer has an active order.
type Mutation struct {
	TableID string
	Table   *models.Table
	Order   *models.Order
	Err     error
}

// Observer is told when a local mutation on a table starts and ends. Every
// MutationStarted is followed by exactly one MutationFinished.
type Observer interface {
	MutationStarted(tableID string)
	MutationFinished(ctx context.Context, m Mutation)
}

// Observers fans out to several observers in order.
type Observers []Observer

func (obs Observers) MutationStarted(tableID string) {
	for _, o := range obs {
		o.MutationStarted(tableID)
	}
}

func (obs Observers) MutationFinished(ctx context.Context, m Mutation) {
	for _, o := range obs {
		o.MutationFinished(ctx, m)
	}
}

// Nop ignores everything.
type Nop struct{}

func (Nop) MutationStarted(string)                     {}
func (Nop) MutationFinished(context.Context, Mutation) {}

// ChangePublisher sends change events to other terminals.
type ChangePublisher interface {
	PublishChange(ctx context.Context, ev models.ChangeEvent) error
}

// Broadcaster publishes a change event for every successful mutation. It
// is used when the change feed is a message bus rather than the database.
type Broadcaster struct {
	publisher ChangePublisher
	logger    *logger.Logger
}

func NewBroadcaster(p ChangePublisher, log *logger.Logger) *Broadcaster {
	return &Broadcaster{publisher: p, logger: log}
}

func (b *Broadcaster) MutationStarted(string) {}

func (b *Broadcaster) MutationFinished(ctx context.Context, m Mutation) {
	if m.Err != nil {
		return
	}
	var events []models.ChangeEvent
	if m.Table != nil {
		events = append(events, models.ChangeEvent{
			Type:  models.EventUpdate,
			Table: models.FeedTableTables,
			Row: models.ChangeRow{
				ID:           m.Table.ID,
				RestaurantID: m.Table.RestaurantID,
				Status:       string(m.Table.Status),
			},
		})
	}
	if m.Order != nil {
		events = append(events, models.ChangeEvent{
			Type:  models.EventUpdate,
			Table: models.FeedTableOrders,
			Row: models.ChangeRow{
				ID:           m.Order.ID,
				TableID:      m.Order.TableID,
				RestaurantID: m.Order.RestaurantID,
				Status:       string(m.Order.Status),
			},
		})
	}
	for _, ev := range events {
		if err := b.publisher.PublishChange(ctx, ev); err != nil {
			b.logger.Error("change_publish_failed", "Failed to publish change event", "", err, map[string]interface{}{
				"table_id": m.TableID,
				"table":    ev.Table,
			})
		}
	}
}
