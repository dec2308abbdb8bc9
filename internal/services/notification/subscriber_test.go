package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/messaging"
	"restaurant-pos/internal/models"
)

var stamp = time.Date(2026, 3, 1, 21, 15, 0, 0, time.UTC)

func TestFormatNotification(t *testing.T) {
	tests := []struct {
		name string
		msg  models.StatusUpdateMessage
		want string
	}{
		{
			name: "paid",
			msg:  models.StatusUpdateMessage{TableNumber: 4, NewStatus: models.StatusCompleted, TotalAmount: 19.84, ChangedBy: "Dana", Timestamp: stamp},
			want: "[2026-03-01 21:15:00] Table 4 paid 19.84, closed by Dana.",
		},
		{
			name: "unpaid",
			msg:  models.StatusUpdateMessage{TableNumber: 4, NewStatus: models.StatusCancelled, IsUnpaid: true, TotalAmount: 7.5, ChangedBy: "c1", Timestamp: stamp},
			want: "[2026-03-01 21:15:00] Table 4 closed unpaid (7.50) by c1.",
		},
		{
			name: "other",
			msg:  models.StatusUpdateMessage{TableNumber: 2, OldStatus: models.StatusPending, NewStatus: models.StatusInProgress, ChangedBy: "till-1", Timestamp: stamp},
			want: "[2026-03-01 21:15:00] Order on table 2 changed from 'pending' to 'in_progress' by till-1.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatNotification(&tt.msg))
		})
	}
}

type stubSource struct {
	bodies [][]byte
	errs   []error
	closed bool
}

func (s *stubSource) StartConsuming(ctx context.Context, handler messaging.MessageHandler) error {
	for _, b := range s.bodies {
		s.errs = append(s.errs, handler(ctx, b))
	}
	return nil
}

func (s *stubSource) Close() error {
	s.closed = true
	return nil
}

func TestSubscriberPrintsNotifications(t *testing.T) {
	body, err := json.Marshal(models.StatusUpdateMessage{
		OrderID: "o1", TableNumber: 3, OldStatus: models.StatusInProgress,
		NewStatus: models.StatusCompleted, TotalAmount: 12, ChangedBy: "Dana", Timestamp: stamp,
	})
	require.NoError(t, err)

	src := &stubSource{bodies: [][]byte{body, []byte("{broken")}}
	var out bytes.Buffer
	require.NoError(t, NewSubscriber(src, &out, logger.Discard()).Start(context.Background()))

	assert.True(t, src.closed)
	require.Len(t, src.errs, 2)
	assert.NoError(t, src.errs[0])
	assert.ErrorIs(t, src.errs[1], messaging.ErrDLQ)
	assert.Contains(t, out.String(), "Table 3 paid 12.00")
}
