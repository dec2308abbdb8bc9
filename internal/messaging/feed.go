package messaging

import (
	"context"
	"fmt"
	"sync"

	"github.com/rabbitmq/amqp091-go"

	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
)

// ChangeFeed receives change events broadcast on the pos_changes exchange
// through a private, auto-deleted queue.
type ChangeFeed struct {
	channel      *amqp091.Channel
	restaurantID string
	logger       *logger.Logger
	events       chan models.ChangeEvent
	cancel       context.CancelFunc
	once         sync.Once
	done         chan struct{}
}

// SubscribeChanges opens a dedicated channel and starts delivering events
// for restaurantID. An empty restaurantID receives everything.
func SubscribeChanges(ctx context.Context, conn *Connection, restaurantID string, log *logger.Logger) (*ChangeFeed, error) {
	ch, err := conn.OpenChannel()
	if err != nil {
		return nil, fmt.Errorf("failed to open feed channel: %w", err)
	}

	q, err := ch.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // auto-delete
		true,  // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare feed queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", ChangesExchange, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to bind feed queue: %w", err)
	}

	msgs, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to consume feed queue: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	f := &ChangeFeed{
		channel:      ch,
		restaurantID: restaurantID,
		logger:       log,
		events:       make(chan models.ChangeEvent, 64),
		cancel:       cancel,
		done:         make(chan struct{}),
	}
	go f.pump(ctx, msgs)
	return f, nil
}

func (f *ChangeFeed) pump(ctx context.Context, msgs <-chan amqp091.Delivery) {
	defer close(f.done)
	defer close(f.events)
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-msgs:
			if !ok {
				return
			}
			ev, ok := models.ParseChangeEvent(d.Body, f.restaurantID)
			if !ok {
				f.logger.Debug("change_skipped", "Ignored change event", "", map[string]interface{}{
					"message_size": len(d.Body),
				})
				continue
			}
			select {
			case f.events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (f *ChangeFeed) Events() <-chan models.ChangeEvent {
	return f.events
}

func (f *ChangeFeed) Close() error {
	var err error
	f.once.Do(func() {
		f.cancel()
		<-f.done
		err = f.channel.Close()
	})
	return err
}
