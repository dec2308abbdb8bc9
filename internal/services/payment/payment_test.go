package payment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-pos/internal/errs"
	"restaurant-pos/internal/lease"
	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/services/table"
	"restaurant-pos/internal/store"
)

func TestValidatePayment(t *testing.T) {
	order := &models.Order{TotalAmount: 20}

	tests := []struct {
		name       string
		details    models.PaymentDetails
		wantErr    error
		wantChange float64
	}{
		{name: "cash short", details: models.PaymentDetails{Method: models.PaymentCash, CashGiven: 15}, wantErr: errs.ErrInsufficientCash},
		{name: "cash exact", details: models.PaymentDetails{Method: models.PaymentCash, CashGiven: 20}, wantChange: 0},
		{name: "cash with change", details: models.PaymentDetails{Method: models.PaymentCash, CashGiven: 50}, wantChange: 30},
		{name: "card unconfirmed", details: models.PaymentDetails{Method: models.PaymentCard}, wantErr: errs.ErrUnconfirmedCardPayment},
		{name: "card confirmed", details: models.PaymentDetails{Method: models.PaymentCard, CardConfirmed: true}},
		{name: "mixed within a cent", details: models.PaymentDetails{Method: models.PaymentMixed, CashAmount: 10, CardAmount: 9.99}},
		{name: "mixed over a cent", details: models.PaymentDetails{Method: models.PaymentMixed, CashAmount: 10, CardAmount: 9.989}, wantErr: errs.ErrSplitMismatch},
		{name: "mixed overpaid", details: models.PaymentDetails{Method: models.PaymentMixed, CashAmount: 15, CardAmount: 5.02}, wantErr: errs.ErrSplitMismatch},
		{name: "unknown method", details: models.PaymentDetails{Method: "voucher"}, wantErr: errs.ErrInvalidPaymentMethod},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidatePayment(order, tt.details)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, errs.KindValidation, errs.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.wantChange, got.Change, 1e-9)
		})
	}
}

func TestValidatePaymentRoundsTotal(t *testing.T) {
	_, err := ValidatePayment(&models.Order{TotalAmount: 20.004}, models.PaymentDetails{Method: models.PaymentCash, CashGiven: 20})
	assert.NoError(t, err)
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []*models.StatusUpdateMessage
}

func (f *fakeNotifier) PublishNotification(_ context.Context, msg *models.StatusUpdateMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return nil
}

var cashier = models.Cashier{ID: "c1", Name: "Dana"}

func seeded(t *testing.T) *store.Memory {
	t.Helper()
	m := store.NewMemory()
	m.AddHall(models.Hall{ID: "h1", RestaurantID: "r1", IsActive: true})
	m.AddTable(models.Table{ID: "t1", RestaurantID: "r1", HallID: "h1", Number: 1, Status: models.TableOccupied})
	o := &models.Order{
		RestaurantID: "r1", TableID: "t1", TableNumber: 1,
		Status: models.StatusInProgress, PaymentStatus: models.PaymentUnpaid,
		Items:       []models.OrderItem{{ID: "i1", Name: "Kebab", Price: 20, Quantity: 1, Subtotal: 20, Status: models.ItemSentToKitchen}},
		Subtotal:    20,
		TotalAmount: 20,
	}
	require.NoError(t, m.CreateOrder(context.Background(), o))
	return m
}

func newResolver(m *store.Memory, n Notifier) *Resolver {
	return NewResolver(m, lease.NewLocal(), table.NewManager(m), nil, n, 5*time.Second, logger.Discard())
}

func TestCompleteSettlesOrder(t *testing.T) {
	ctx := context.Background()
	m := seeded(t)
	n := &fakeNotifier{}

	rec, err := newResolver(m, n).Complete(ctx, "t1", cashier, models.PaymentDetails{Method: models.PaymentCash, CashGiven: 25}, "req")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, models.PaymentCash, rec.PaymentMethod)
	require.NotNil(t, rec.PaymentDetails)
	assert.InDelta(t, 5.0, rec.PaymentDetails.Change, 1e-9)
	assert.False(t, rec.IsUnpaid)
	assert.Equal(t, "Dana", rec.CashierName)

	stored, ok := m.Order(rec.OrderID)
	require.True(t, ok)
	assert.Equal(t, models.StatusCompleted, stored.Status)
	assert.Equal(t, models.PaymentPaid, stored.PaymentStatus)

	tb, err := m.GetTable(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.TableEmpty, tb.Status)

	require.Len(t, n.msgs, 1)
	assert.Equal(t, models.StatusInProgress, n.msgs[0].OldStatus)
	assert.Equal(t, models.StatusCompleted, n.msgs[0].NewStatus)
}

func TestCompleteRetryIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := seeded(t)
	r := newResolver(m, nil)
	details := models.PaymentDetails{Method: models.PaymentCard, CardConfirmed: true}

	first, err := r.Complete(ctx, "t1", cashier, details, "req")
	require.NoError(t, err)
	second, err := r.Complete(ctx, "t1", cashier, details, "req")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, m.Completed(), 1)
}

func TestCompleteAfterWindowHasNoOrder(t *testing.T) {
	ctx := context.Background()
	m := seeded(t)
	r := newResolver(m, nil)

	_, err := r.Complete(ctx, "t1", cashier, models.PaymentDetails{Method: models.PaymentCard, CardConfirmed: true}, "req")
	require.NoError(t, err)

	r.now = func() time.Time { return time.Now().Add(time.Minute) }
	_, err = r.Complete(ctx, "t1", cashier, models.PaymentDetails{Method: models.PaymentCard, CardConfirmed: true}, "req")
	assert.ErrorIs(t, err, errs.ErrNoActiveOrder)
}

func TestConcurrentCompleteWritesOneRecord(t *testing.T) {
	ctx := context.Background()
	m := seeded(t)
	r := newResolver(m, nil)
	details := models.PaymentDetails{Method: models.PaymentCash, CashGiven: 20}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Complete(ctx, "t1", cashier, details, "req")
			if err != nil {
				assert.ErrorIs(t, err, errs.ErrSettlementInProgress)
			}
		}()
	}
	wg.Wait()

	assert.Len(t, m.Completed(), 1)
}

func TestCompleteHeldLease(t *testing.T) {
	ctx := context.Background()
	m := seeded(t)
	locker := lease.NewLocal()
	r := NewResolver(m, locker, table.NewManager(m), nil, nil, 5*time.Second, logger.Discard())

	o, err := m.ActiveOrder(ctx, "t1")
	require.NoError(t, err)
	release, ok, err := locker.TryAcquire(ctx, lease.SettleKey(o.ID))
	require.NoError(t, err)
	require.True(t, ok)

	_, err = r.Complete(ctx, "t1", cashier, models.PaymentDetails{Method: models.PaymentCash, CashGiven: 20}, "req")
	assert.ErrorIs(t, err, errs.ErrSettlementInProgress)
	assert.Empty(t, m.Completed())

	release()
	_, err = r.Complete(ctx, "t1", cashier, models.PaymentDetails{Method: models.PaymentCash, CashGiven: 20}, "req")
	assert.NoError(t, err)
}

func TestInvalidPaymentLeavesOrderOpen(t *testing.T) {
	ctx := context.Background()
	m := seeded(t)

	_, err := newResolver(m, nil).Complete(ctx, "t1", cashier, models.PaymentDetails{Method: models.PaymentCash, CashGiven: 15}, "req")
	assert.ErrorIs(t, err, errs.ErrInsufficientCash)

	o, err := m.ActiveOrder(ctx, "t1")
	require.NoError(t, err)
	assert.NotNil(t, o)
	assert.Empty(t, m.Completed())
}

func TestCloseUnpaid(t *testing.T) {
	ctx := context.Background()
	m := seeded(t)
	n := &fakeNotifier{}
	r := newResolver(m, n)

	_, err := r.CloseUnpaid(ctx, "t1", cashier, "forgot", "req")
	assert.ErrorIs(t, err, errs.ErrInvalidUnpaidReason)

	rec, err := r.CloseUnpaid(ctx, "t1", cashier, models.UnpaidGuestLeft, "req")
	require.NoError(t, err)
	assert.True(t, rec.IsUnpaid)
	assert.Equal(t, models.UnpaidGuestLeft, rec.UnpaidReason)
	assert.Equal(t, models.PaymentMethodUnpaid, rec.PaymentMethod)
	require.NotNil(t, rec.PaymentDetails)
	assert.Equal(t, models.UnpaidGuestLeft, rec.PaymentDetails.UnpaidReason)

	records := m.Completed()
	require.Len(t, records, 1)
	assert.Equal(t, models.PaymentMethodUnpaid, records[0].PaymentMethod)

	stored, ok := m.Order(rec.OrderID)
	require.True(t, ok)
	assert.Equal(t, models.StatusCancelled, stored.Status)
	assert.Equal(t, models.PaymentUnpaid, stored.PaymentStatus)

	require.Len(t, n.msgs, 1)
	assert.True(t, n.msgs[0].IsUnpaid)
}

func TestAwaitPayment(t *testing.T) {
	ctx := context.Background()
	m := seeded(t)
	r := newResolver(m, nil)

	tb, err := r.AwaitPayment(ctx, "t1", "req")
	require.NoError(t, err)
	assert.Equal(t, models.TableWaitingPayment, tb.Status)

	_, err = r.CloseUnpaid(ctx, "t1", cashier, models.UnpaidOther, "req")
	require.NoError(t, err)

	_, err = r.AwaitPayment(ctx, "t1", "req")
	assert.ErrorIs(t, err, errs.ErrNoActiveOrder)
}
