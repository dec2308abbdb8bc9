package table

import (
	"context"
	"sort"
	"sync"

	"restaurant-pos/internal/errs"
	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/store"
)

// Subscription is a cancellable stream of change events.
type Subscription interface {
	Events() <-chan models.ChangeEvent
	Close() error
}

// Snapshot is the terminal's view at one point in time.
type Snapshot struct {
	Table  *models.Table   `json:"table"`
	Order  *models.Order   `json:"order"`
	Tables []models.Table  `json:"tables"`
	Stale  map[string]bool `json:"stale,omitempty"`
}

// Terminal is the local session state of one POS terminal: the selected
// table, its active order and the known table statuses. Local mutations
// report through the Observer methods; remote changes arrive through Apply.
type Terminal struct {
	store        store.Store
	restaurantID string
	logger       *logger.Logger

	mu         sync.Mutex
	selectedID string
	selected   *models.Table
	order      *models.Order
	tables     map[string]models.Table
	inFlight   map[string]int
	stale      map[string]bool
}

func NewTerminal(s store.Store, restaurantID string, log *logger.Logger) *Terminal {
	return &Terminal{
		store:        s,
		restaurantID: restaurantID,
		logger:       log,
		tables:       make(map[string]models.Table),
		inFlight:     make(map[string]int),
		stale:        make(map[string]bool),
	}
}

// LoadTables refreshes the known table list from the store.
func (t *Terminal) LoadTables(ctx context.Context, hallID string) ([]models.Table, error) {
	tables, err := t.store.ListTables(ctx, hallID)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	for _, tb := range tables {
		t.tables[tb.ID] = tb
	}
	t.mu.Unlock()
	return tables, nil
}

// Select makes tableID the current table and loads its active order.
func (t *Terminal) Select(ctx context.Context, tableID string) (Snapshot, error) {
	tb, o, err := t.load(ctx, tableID)
	if err != nil {
		return Snapshot{}, err
	}
	t.mu.Lock()
	t.selectedID = tableID
	t.selected = tb
	t.order = o
	t.tables[tb.ID] = *tb
	delete(t.stale, tableID)
	t.mu.Unlock()
	return t.Snapshot(), nil
}

// SelectedTableID returns the current table, or "" if none.
func (t *Terminal) SelectedTableID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.selectedID
}

func (t *Terminal) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := Snapshot{Order: t.order.Clone()}
	if t.selected != nil {
		tb := *t.selected
		snap.Table = &tb
	}
	for _, tb := range t.tables {
		snap.Tables = append(snap.Tables, tb)
	}
	sort.Slice(snap.Tables, func(i, j int) bool { return snap.Tables[i].Number < snap.Tables[j].Number })
	if len(t.stale) > 0 {
		snap.Stale = make(map[string]bool, len(t.stale))
		for k, v := range t.stale {
			snap.Stale[k] = v
		}
	}
	return snap
}

func (t *Terminal) MutationStarted(tableID string) {
	t.mu.Lock()
	t.inFlight[tableID]++
	t.mu.Unlock()
}

func (t *Terminal) MutationFinished(ctx context.Context, m Mutation) {
	t.mu.Lock()
	if t.inFlight[m.TableID] > 0 {
		t.inFlight[m.TableID]--
	}
	if t.inFlight[m.TableID] == 0 {
		delete(t.inFlight, m.TableID)
	}

	if m.Err == nil {
		if m.Table != nil {
			t.tables[m.Table.ID] = *m.Table
		}
		if m.TableID == t.selectedID {
			if m.Table != nil {
				tb := *m.Table
				t.selected = &tb
			}
			t.order = m.Order.Clone()
		}
	} else if errs.Retryable(m.Err) {
		t.stale[m.TableID] = true
	}

	refresh := t.stale[m.TableID] && t.inFlight[m.TableID] == 0
	t.mu.Unlock()

	if refresh {
		t.refresh(ctx, m.TableID)
	}
}

// Apply reconciles one remote change. It returns true when local state was
// overwritten from the store. Changes to a table with a local mutation in
// flight are deferred until that mutation finishes.
func (t *Terminal) Apply(ctx context.Context, ev models.ChangeEvent) bool {
	if ev.Type != models.EventInsert && ev.Type != models.EventUpdate {
		return false
	}
	if t.restaurantID != "" && ev.Row.RestaurantID != "" && ev.Row.RestaurantID != t.restaurantID {
		return false
	}
	tableID := ev.AffectedTableID()
	if tableID == "" {
		return false
	}

	t.mu.Lock()
	if ev.Table == models.FeedTableTables && ev.Row.Status != "" {
		if tb, ok := t.tables[tableID]; ok {
			tb.Status = models.TableStatus(ev.Row.Status)
			t.tables[tableID] = tb
		}
	}
	tracked := tableID == t.selectedID ||
		(ev.Table == models.FeedTableOrders && t.order != nil && ev.Row.ID == t.order.ID)
	if !tracked {
		t.mu.Unlock()
		return false
	}
	if t.inFlight[tableID] > 0 {
		t.stale[tableID] = true
		t.mu.Unlock()
		return false
	}
	t.mu.Unlock()

	return t.refresh(ctx, tableID)
}

// Run applies events from sub until ctx is cancelled or the feed ends.
func (t *Terminal) Run(ctx context.Context, sub Subscription) {
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				t.logger.Info("feed_closed", "Change feed closed", "", nil)
				return
			}
			if t.Apply(ctx, ev) {
				t.logger.Debug("remote_change_applied", "Reconciled local state with remote change", "", map[string]interface{}{
					"event_type": ev.Type,
					"table":      ev.Table,
					"row_id":     ev.Row.ID,
				})
			}
		}
	}
}

func (t *Terminal) load(ctx context.Context, tableID string) (*models.Table, *models.Order, error) {
	tb, err := t.store.GetTable(ctx, tableID)
	if err != nil {
		return nil, nil, err
	}
	o, err := t.store.ActiveOrder(ctx, tableID)
	if err != nil {
		return nil, nil, err
	}
	return tb, o, nil
}

// refresh overwrites local state for tableID with the stored version.
func (t *Terminal) refresh(ctx context.Context, tableID string) bool {
	tb, o, err := t.load(ctx, tableID)
	if err != nil {
		t.logger.Error("refresh_failed", "Failed to reload table state", "", err, map[string]interface{}{
			"table_id": tableID,
		})
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.inFlight[tableID] > 0 {
		t.stale[tableID] = true
		return false
	}
	delete(t.stale, tableID)
	t.tables[tb.ID] = *tb
	if tableID != t.selectedID {
		return false
	}
	t.selected = tb
	t.order = o
	return true
}
