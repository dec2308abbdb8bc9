package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"restaurant-pos/internal/errs"
	"restaurant-pos/internal/models"
)

// Memory is an in-process Store. Transactions work on a copy of the whole
// state which replaces the live state on commit.
type Memory struct {
	mu    sync.Mutex
	state *memState
	now   func() time.Time

	feedMu sync.Mutex
	feeds  map[*Feed]struct{}
}

func NewMemory() *Memory {
	return &Memory{
		state: newMemState(),
		now:   time.Now,
		feeds: make(map[*Feed]struct{}),
	}
}

// SetClock overrides the time source used for timestamps.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Memory) AddHall(h models.Hall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.halls[h.ID] = h
}

func (m *Memory) AddTable(t models.Table) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.Status == "" {
		t.Status = models.TableEmpty
	}
	m.state.tables[t.ID] = t
}

func (m *Memory) AddProduct(p models.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.products[p.ID] = p
}

// Tickets returns every kitchen ticket written so far.
func (m *Memory) Tickets() []models.KitchenTicket {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.KitchenTicket(nil), m.state.tickets...)
}

// Completed returns every completed order record written so far.
func (m *Memory) Completed() []models.CompletedOrderRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.CompletedOrderRecord(nil), m.state.completed...)
}

// Order returns a stored order by id regardless of status.
func (m *Memory) Order(id string) (*models.Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.state.orders[id]
	return o.Clone(), ok
}

func (m *Memory) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *Memory) WithinTx(ctx context.Context, fn func(q Querier) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memQuerier{s: m.state.clone(), now: m.now}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errs.Persistence("commit", err)
	}
	m.state = tx.s
	m.publish(tx.events)
	return nil
}

// run executes a single operation against the live state.
func (m *Memory) run(fn func(q *memQuerier) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := &memQuerier{s: m.state, now: m.now}
	err := fn(q)
	if err == nil {
		m.publish(q.events)
	}
	return err
}

func (m *Memory) GetTable(ctx context.Context, id string) (t *models.Table, err error) {
	err = m.run(func(q *memQuerier) error { t, err = q.GetTable(ctx, id); return err })
	return t, err
}

func (m *Memory) ListTables(ctx context.Context, hallID string) (ts []models.Table, err error) {
	err = m.run(func(q *memQuerier) error { ts, err = q.ListTables(ctx, hallID); return err })
	return ts, err
}

func (m *Memory) SetTableStatus(ctx context.Context, id string, status models.TableStatus) error {
	return m.run(func(q *memQuerier) error { return q.SetTableStatus(ctx, id, status) })
}

func (m *Memory) GetHall(ctx context.Context, id string) (h *models.Hall, err error) {
	err = m.run(func(q *memQuerier) error { h, err = q.GetHall(ctx, id); return err })
	return h, err
}

func (m *Memory) GetProduct(ctx context.Context, id string) (p *models.Product, err error) {
	err = m.run(func(q *memQuerier) error { p, err = q.GetProduct(ctx, id); return err })
	return p, err
}

func (m *Memory) ActiveOrder(ctx context.Context, tableID string) (o *models.Order, err error) {
	err = m.run(func(q *memQuerier) error { o, err = q.ActiveOrder(ctx, tableID); return err })
	return o, err
}

func (m *Memory) CreateOrder(ctx context.Context, o *models.Order) error {
	return m.run(func(q *memQuerier) error { return q.CreateOrder(ctx, o) })
}

func (m *Memory) UpdateOrder(ctx context.Context, o *models.Order) error {
	return m.run(func(q *memQuerier) error { return q.UpdateOrder(ctx, o) })
}

func (m *Memory) InsertKitchenTickets(ctx context.Context, tickets []models.KitchenTicket) error {
	return m.run(func(q *memQuerier) error { return q.InsertKitchenTickets(ctx, tickets) })
}

func (m *Memory) RecentCompleted(ctx context.Context, tableID string, tableNumber int, since time.Time) (r *models.CompletedOrderRecord, err error) {
	err = m.run(func(q *memQuerier) error { r, err = q.RecentCompleted(ctx, tableID, tableNumber, since); return err })
	return r, err
}

func (m *Memory) InsertCompleted(ctx context.Context, rec *models.CompletedOrderRecord) error {
	return m.run(func(q *memQuerier) error { return q.InsertCompleted(ctx, rec) })
}

type memState struct {
	halls     map[string]models.Hall
	tables    map[string]models.Table
	products  map[string]models.Product
	orders    map[string]*models.Order
	tickets   []models.KitchenTicket
	completed []models.CompletedOrderRecord
}

func newMemState() *memState {
	return &memState{
		halls:    make(map[string]models.Hall),
		tables:   make(map[string]models.Table),
		products: make(map[string]models.Product),
		orders:   make(map[string]*models.Order),
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.halls {
		c.halls[k] = v
	}
	for k, v := range s.tables {
		c.tables[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v.Clone()
	}
	c.tickets = append(c.tickets, s.tickets...)
	c.completed = append(c.completed, s.completed...)
	return c
}

type memQuerier struct {
	s      *memState
	now    func() time.Time
	events []models.ChangeEvent
}

func (q *memQuerier) emit(typ models.ChangeEventType, table string, row models.ChangeRow) {
	q.events = append(q.events, models.ChangeEvent{Type: typ, Table: table, Row: row})
}

func (q *memQuerier) GetTable(_ context.Context, id string) (*models.Table, error) {
	t, ok := q.s.tables[id]
	if !ok {
		return nil, fmt.Errorf("table %s: %w", id, errs.ErrNotFound)
	}
	return &t, nil
}

func (q *memQuerier) ListTables(_ context.Context, hallID string) ([]models.Table, error) {
	var out []models.Table
	for _, t := range q.s.tables {
		if hallID == "" || t.HallID == hallID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (q *memQuerier) SetTableStatus(_ context.Context, id string, status models.TableStatus) error {
	t, ok := q.s.tables[id]
	if !ok {
		return fmt.Errorf("table %s: %w", id, errs.ErrNotFound)
	}
	t.Status = status
	t.UpdatedAt = q.now()
	q.s.tables[id] = t
	q.emit(models.EventUpdate, models.FeedTableTables, models.ChangeRow{
		ID: t.ID, RestaurantID: t.RestaurantID, Status: string(status),
	})
	return nil
}

func (q *memQuerier) GetHall(_ context.Context, id string) (*models.Hall, error) {
	h, ok := q.s.halls[id]
	if !ok {
		return nil, fmt.Errorf("hall %s: %w", id, errs.ErrNotFound)
	}
	return &h, nil
}

func (q *memQuerier) GetProduct(_ context.Context, id string) (*models.Product, error) {
	p, ok := q.s.products[id]
	if !ok || !p.IsActive {
		return nil, fmt.Errorf("product %s: %w", id, errs.ErrNotFound)
	}
	return &p, nil
}

func (q *memQuerier) activeOrder(tableID string) *models.Order {
	for _, o := range q.s.orders {
		if o.TableID == tableID && !o.Status.IsTerminal() {
			return o
		}
	}
	return nil
}

func (q *memQuerier) ActiveOrder(_ context.Context, tableID string) (*models.Order, error) {
	return q.activeOrder(tableID).Clone(), nil
}

func (q *memQuerier) CreateOrder(_ context.Context, o *models.Order) error {
	if q.activeOrder(o.TableID) != nil {
		return errs.ErrActiveOrderExists
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if _, exists := q.s.orders[o.ID]; exists {
		return fmt.Errorf("order %s: %w", o.ID, errs.ErrConcurrencyConflict)
	}
	o.Version = 1
	o.UpdatedAt = q.now()
	q.s.orders[o.ID] = o.Clone()
	q.emit(models.EventInsert, models.FeedTableOrders, orderRow(o))
	return nil
}

func (q *memQuerier) UpdateOrder(_ context.Context, o *models.Order) error {
	stored, ok := q.s.orders[o.ID]
	if !ok {
		return fmt.Errorf("order %s: %w", o.ID, errs.ErrNotFound)
	}
	if stored.Status.IsTerminal() || stored.Version != o.Version {
		return fmt.Errorf("order %s at version %d: %w", o.ID, o.Version, errs.ErrConcurrencyConflict)
	}
	o.Version++
	o.UpdatedAt = q.now()
	q.s.orders[o.ID] = o.Clone()
	q.emit(models.EventUpdate, models.FeedTableOrders, orderRow(o))
	return nil
}

func (q *memQuerier) InsertKitchenTickets(_ context.Context, tickets []models.KitchenTicket) error {
	for i := range tickets {
		if tickets[i].ID == "" {
			tickets[i].ID = uuid.NewString()
		}
		q.s.tickets = append(q.s.tickets, tickets[i])
	}
	return nil
}

func (q *memQuerier) RecentCompleted(_ context.Context, tableID string, tableNumber int, since time.Time) (*models.CompletedOrderRecord, error) {
	for i := len(q.s.completed) - 1; i >= 0; i-- {
		r := q.s.completed[i]
		if r.TableID == tableID && r.TableNumber == tableNumber && !r.CompletedAt.Before(since) {
			return &r, nil
		}
	}
	return nil, nil
}

func (q *memQuerier) InsertCompleted(_ context.Context, rec *models.CompletedOrderRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	q.s.completed = append(q.s.completed, *rec)
	return nil
}

func orderRow(o *models.Order) models.ChangeRow {
	return models.ChangeRow{
		ID:           o.ID,
		TableID:      o.TableID,
		RestaurantID: o.RestaurantID,
		Status:       string(o.Status),
	}
}
