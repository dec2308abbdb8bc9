package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"restaurant-pos/internal/errs"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/store"
)

const uniqueViolation = "23505"

// dbtx is satisfied by both the pool and a transaction.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the PostgreSQL implementation of store.Store.
type Store struct {
	db *DB
	queries
}

func NewStore(db *DB) *Store {
	return &Store{db: db, queries: queries{q: db.Pool}}
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return errs.Persistence("ping", err)
	}
	return nil
}

// WithinTx runs fn inside a transaction that commits only if fn succeeds.
func (s *Store) WithinTx(ctx context.Context, fn func(q store.Querier) error) error {
	var fnErr error
	err := pgx.BeginFunc(ctx, s.db.Pool, func(tx pgx.Tx) error {
		fnErr = fn(&queries{q: tx})
		return fnErr
	})
	if err == nil || fnErr != nil {
		return err
	}
	return errs.Persistence("transaction", err)
}

// ApplySeed upserts halls, products and tables.
func (s *Store) ApplySeed(ctx context.Context, seed *store.Seed) error {
	return s.WithinTx(ctx, func(q store.Querier) error {
		tx := q.(*queries).q
		for _, h := range seed.Halls {
			if _, err := tx.Exec(ctx, UpsertHallSQL, h.ID, h.RestaurantID, h.BranchID, h.Name, h.ServiceCharge, h.IsActive); err != nil {
				return errs.Persistence("seed hall "+h.ID, err)
			}
		}
		for _, t := range seed.Tables {
			shape := t.Shape
			if shape == "" {
				shape = "square"
			}
			capacity := t.Capacity
			if capacity == 0 {
				capacity = 4
			}
			if _, err := tx.Exec(ctx, UpsertTableSQL, t.ID, t.RestaurantID, t.HallID, t.Number, capacity, shape); err != nil {
				return errs.Persistence("seed table "+t.ID, err)
			}
		}
		for _, p := range seed.Products {
			if _, err := tx.Exec(ctx, UpsertProductSQL, p.ID, p.RestaurantID, p.Name, p.Price, p.DepartmentID, p.IsActive); err != nil {
				return errs.Persistence("seed product "+p.ID, err)
			}
		}
		return nil
	})
}

type queries struct {
	q dbtx
}

func notFound(what, id string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", what, id, errs.ErrNotFound)
	}
	return errs.Persistence("get "+what, err)
}

func scanTable(row pgx.Row) (*models.Table, error) {
	var t models.Table
	err := row.Scan(&t.ID, &t.RestaurantID, &t.HallID, &t.Number, &t.Capacity, &t.Shape, &t.Status, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *queries) GetTable(ctx context.Context, id string) (*models.Table, error) {
	t, err := scanTable(r.q.QueryRow(ctx, GetTableSQL, id))
	if err != nil {
		return nil, notFound("table", id, err)
	}
	return t, nil
}

func (r *queries) ListTables(ctx context.Context, hallID string) ([]models.Table, error) {
	rows, err := r.q.Query(ctx, ListTablesSQL, hallID)
	if err != nil {
		return nil, errs.Persistence("list tables", err)
	}
	tables, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Table, error) {
		t, err := scanTable(row)
		if err != nil {
			return models.Table{}, err
		}
		return *t, nil
	})
	if err != nil {
		return nil, errs.Persistence("list tables", err)
	}
	return tables, nil
}

func (r *queries) SetTableStatus(ctx context.Context, id string, status models.TableStatus) error {
	tag, err := r.q.Exec(ctx, SetTableStatusSQL, id, status)
	if err != nil {
		return errs.Persistence("set table status", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("table %s: %w", id, errs.ErrNotFound)
	}
	return nil
}

func (r *queries) GetHall(ctx context.Context, id string) (*models.Hall, error) {
	var h models.Hall
	err := r.q.QueryRow(ctx, GetHallSQL, id).Scan(&h.ID, &h.RestaurantID, &h.BranchID, &h.Name, &h.ServiceCharge, &h.IsActive)
	if err != nil {
		return nil, notFound("hall", id, err)
	}
	return &h, nil
}

func (r *queries) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	err := r.q.QueryRow(ctx, GetProductSQL, id).Scan(&p.ID, &p.RestaurantID, &p.Name, &p.Price, &p.DepartmentID, &p.IsActive)
	if err != nil {
		return nil, notFound("product", id, err)
	}
	return &p, nil
}

func (r *queries) ActiveOrder(ctx context.Context, tableID string) (*models.Order, error) {
	var (
		o     models.Order
		items []byte
	)
	err := r.q.QueryRow(ctx, ActiveOrderSQL, tableID).Scan(
		&o.ID, &o.RestaurantID, &o.BranchID, &o.TableID, &o.TableNumber, &o.WaiterID,
		&items, &o.Subtotal, &o.Discount, &o.DiscountType, &o.DiscountValue, &o.ServiceRate,
		&o.Tax, &o.ServiceCharge, &o.TotalAmount, &o.Status, &o.PaymentStatus, &o.PaymentMethod,
		&o.Notes, &o.StartedAt, &o.SentToKitchenAt, &o.CompletedAt, &o.UpdatedAt, &o.Version,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Persistence("get active order", err)
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, errs.Persistence("decode order items", err)
	}
	return &o, nil
}

func (r *queries) CreateOrder(ctx context.Context, o *models.Order) error {
	items, err := marshalItems(o.Items)
	if err != nil {
		return err
	}
	err = r.q.QueryRow(ctx, InsertOrderSQL,
		o.RestaurantID, o.BranchID, o.TableID, o.TableNumber, o.WaiterID, items,
		o.Subtotal, o.Discount, o.DiscountType, o.DiscountValue, o.ServiceRate, o.Tax,
		o.ServiceCharge, o.TotalAmount, o.Status, o.PaymentStatus, o.PaymentMethod,
		o.Notes, o.StartedAt, o.SentToKitchenAt, o.CompletedAt,
	).Scan(&o.ID, &o.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("table %s: %w", o.TableID, errs.ErrActiveOrderExists)
		}
		return errs.Persistence("create order", err)
	}
	o.Version = 1
	return nil
}

func (r *queries) UpdateOrder(ctx context.Context, o *models.Order) error {
	items, err := marshalItems(o.Items)
	if err != nil {
		return err
	}
	var (
		version   int
		updatedAt time.Time
	)
	err = r.q.QueryRow(ctx, UpdateOrderSQL,
		o.ID, o.Version, items, o.Subtotal, o.Discount, o.DiscountType, o.DiscountValue,
		o.ServiceRate, o.Tax, o.ServiceCharge, o.TotalAmount,
		o.Status, o.PaymentStatus, o.PaymentMethod, o.Notes,
		o.SentToKitchenAt, o.CompletedAt, o.WaiterID,
	).Scan(&version, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := r.q.QueryRow(ctx, OrderExistsSQL, o.ID).Scan(&exists); err != nil {
			return errs.Persistence("check order", err)
		}
		if !exists {
			return fmt.Errorf("order %s: %w", o.ID, errs.ErrNotFound)
		}
		return fmt.Errorf("order %s at version %d: %w", o.ID, o.Version, errs.ErrConcurrencyConflict)
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("table %s: %w", o.TableID, errs.ErrActiveOrderExists)
		}
		return errs.Persistence("update order", err)
	}
	o.Version = version
	o.UpdatedAt = updatedAt
	return nil
}

func (r *queries) InsertKitchenTickets(ctx context.Context, tickets []models.KitchenTicket) error {
	for i := range tickets {
		t := &tickets[i]
		items, err := marshalItems(t.Items)
		if err != nil {
			return err
		}
		err = r.q.QueryRow(ctx, InsertKitchenOrderSQL,
			t.OrderID, t.DepartmentID, items, t.Status, t.TableNumber, t.Notes, t.CreatedAt,
		).Scan(&t.ID)
		if err != nil {
			return errs.Persistence("insert kitchen ticket", err)
		}
	}
	return nil
}

func (r *queries) RecentCompleted(ctx context.Context, tableID string, tableNumber int, since time.Time) (*models.CompletedOrderRecord, error) {
	var (
		rec     models.CompletedOrderRecord
		items   []byte
		details []byte
	)
	err := r.q.QueryRow(ctx, RecentCompletedSQL, tableID, tableNumber, since).Scan(
		&rec.ID, &rec.OrderID, &rec.RestaurantID, &rec.BranchID, &rec.TableID, &rec.TableNumber,
		&rec.WaiterID, &items, &rec.Subtotal, &rec.Discount, &rec.DiscountType, &rec.Tax,
		&rec.ServiceCharge, &rec.TotalAmount, &rec.PaymentMethod, &details,
		&rec.CashierID, &rec.CashierName, &rec.IsUnpaid, &rec.UnpaidReason, &rec.Notes, &rec.StartedAt, &rec.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Persistence("get recent completed order", err)
	}
	if err := json.Unmarshal(items, &rec.Items); err != nil {
		return nil, errs.Persistence("decode completed items", err)
	}
	if len(details) > 0 {
		rec.PaymentDetails = &models.PaymentDetails{}
		if err := json.Unmarshal(details, rec.PaymentDetails); err != nil {
			return nil, errs.Persistence("decode payment details", err)
		}
	}
	return &rec, nil
}

func (r *queries) InsertCompleted(ctx context.Context, rec *models.CompletedOrderRecord) error {
	items, err := marshalItems(rec.Items)
	if err != nil {
		return err
	}
	var details []byte
	if rec.PaymentDetails != nil {
		if details, err = json.Marshal(rec.PaymentDetails); err != nil {
			return errs.Persistence("encode payment details", err)
		}
	}
	err = r.q.QueryRow(ctx, InsertCompletedSQL,
		rec.OrderID, rec.RestaurantID, rec.BranchID, rec.TableID, rec.TableNumber, rec.WaiterID, items,
		rec.Subtotal, rec.Discount, rec.DiscountType, rec.Tax, rec.ServiceCharge, rec.TotalAmount,
		rec.PaymentMethod, details, rec.CashierID, rec.CashierName, rec.IsUnpaid,
		rec.UnpaidReason, rec.Notes, rec.StartedAt, rec.CompletedAt,
	).Scan(&rec.ID)
	if err != nil {
		return errs.Persistence("insert completed order", err)
	}
	return nil
}

func marshalItems(items []models.OrderItem) ([]byte, error) {
	if items == nil {
		items = []models.OrderItem{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, errs.Persistence("encode items", err)
	}
	return b, nil
}

var _ store.Store = (*Store)(nil)
