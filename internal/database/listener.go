package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"restaurant-pos/internal/models"
)

// ChangesChannel is the NOTIFY channel fed by the orders and tables triggers.
const ChangesChannel = "pos_changes"

// Listener turns PostgreSQL notifications into change events for one
// restaurant. It holds a dedicated pooled connection while running and
// re-listens after connection loss.
type Listener struct {
	db           *DB
	restaurantID string
	events       chan models.ChangeEvent
	cancel       context.CancelFunc
	done         chan struct{}
	once         sync.Once
}

// Listen starts delivering change events until Close is called.
func (db *DB) Listen(ctx context.Context, restaurantID string) *Listener {
	ctx, cancel := context.WithCancel(ctx)
	l := &Listener{
		db:           db,
		restaurantID: restaurantID,
		events:       make(chan models.ChangeEvent, 64),
		cancel:       cancel,
		done:         make(chan struct{}),
	}
	go l.run(ctx)
	return l
}

func (l *Listener) Events() <-chan models.ChangeEvent {
	return l.events
}

func (l *Listener) Close() error {
	l.once.Do(func() {
		l.cancel()
		<-l.done
	})
	return nil
}

func (l *Listener) run(ctx context.Context) {
	defer close(l.done)
	defer close(l.events)

	backoff := time.Second
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return
		}
		l.db.logger.Error("listener_failed", fmt.Sprintf("Change listener failed, retrying in %v", backoff), "", err, nil)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := l.db.Pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{ChangesChannel}.Sanitize()); err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	l.db.logger.Info("listener_started", "Listening for table and order changes", "", map[string]interface{}{
		"channel":       ChangesChannel,
		"restaurant_id": l.restaurantID,
	})

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			conn.Conn().Close(context.Background())
			return fmt.Errorf("failed to wait for notification: %w", err)
		}
		ev, ok := models.ParseChangeEvent([]byte(n.Payload), l.restaurantID)
		if !ok {
			continue
		}
		select {
		case l.events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
