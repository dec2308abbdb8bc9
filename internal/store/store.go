// Package store defines the persistence contract used by the order services.
package store

import (
	"context"
	"time"

	"restaurant-pos/internal/models"
)

// Querier is the set of reads and writes available both inside and outside
// a transaction.
//
// ActiveOrder returns (nil, nil) when the table has no pending/in_progress
// order. CreateOrder assigns ID and sets Version to 1; it fails with
// errs.ErrActiveOrderExists if the table already has an active order.
// UpdateOrder succeeds only if the stored version equals o.Version and the
// stored order is not terminal; on success o.Version is incremented.
// Otherwise it fails with errs.ErrConcurrencyConflict.
type Querier interface {
	GetTable(ctx context.Context, id string) (*models.Table, error)
	ListTables(ctx context.Context, hallID string) ([]models.Table, error)
	SetTableStatus(ctx context.Context, id string, status models.TableStatus) error
	GetHall(ctx context.Context, id string) (*models.Hall, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)

	ActiveOrder(ctx context.Context, tableID string) (*models.Order, error)
	CreateOrder(ctx context.Context, o *models.Order) error
	UpdateOrder(ctx context.Context, o *models.Order) error

	InsertKitchenTickets(ctx context.Context, tickets []models.KitchenTicket) error

	RecentCompleted(ctx context.Context, tableID string, tableNumber int, since time.Time) (*models.CompletedOrderRecord, error)
	InsertCompleted(ctx context.Context, rec *models.CompletedOrderRecord) error
}

// Store is a Querier that can also run a group of writes atomically.
type Store interface {
	Querier
	// WithinTx runs fn in a transaction. Nothing fn wrote is visible if it
	// returns an error.
	WithinTx(ctx context.Context, fn func(q Querier) error) error
	Ping(ctx context.Context) error
}
