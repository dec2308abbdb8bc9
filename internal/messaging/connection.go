package messaging

import (
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"restaurant-pos/internal/config"
	"restaurant-pos/internal/logger"
)

const (
	KitchenExchange       = "kitchen_topic"
	KitchenDeadLetters    = "kitchen_dlx"
	DeadLetterQueue       = "kitchen_dead_letters"
	ChangesExchange       = "pos_changes"
	NotificationsExchange = "order_notifications"
	NotificationsQueue    = "order_notifications_queue"
)

// Connection wraps RabbitMQ connection with reconnection logic
type Connection struct {
	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel
	logger  *logger.Logger
	url     string
}

// New creates a new RabbitMQ connection
func New(cfg *config.Config, log *logger.Logger) (*Connection, error) {
	conn := &Connection{
		logger: log,
		url:    cfg.RabbitMQURL(),
	}

	if err := conn.connect(); err != nil {
		return nil, fmt.Errorf("failed to establish initial connection: %w", err)
	}

	return conn, nil
}

// connect establishes connection to RabbitMQ with retry logic
func (c *Connection) connect() error {
	maxRetries := 5
	var err error

	for i := 0; i < maxRetries; i++ {
		c.conn, err = amqp091.Dial(c.url)
		if err == nil {
			c.channel, err = c.conn.Channel()
			if err == nil {
				if setupErr := c.setupTopology(); setupErr != nil {
					c.logger.Error("rabbitmq_setup_failed", "Failed to set up topology", "startup", setupErr, nil)
					c.close()
					err = setupErr
				} else {
					return nil
				}
			} else {
				c.conn.Close()
			}
		}

		if i < maxRetries-1 {
			waitTime := time.Duration(i+1) * 2 * time.Second
			c.logger.Error("rabbitmq_connection_failed",
				fmt.Sprintf("Failed to connect to RabbitMQ, retrying in %v", waitTime),
				"startup", err, nil)
			time.Sleep(waitTime)
		}
	}

	return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", maxRetries, err)
}

// setupTopology declares the exchanges shared by every process. Kitchen
// queues are declared by the displays that consume them.
func (c *Connection) setupTopology() error {
	exchanges := []struct {
		name string
		kind string
	}{
		{KitchenExchange, "topic"},
		{KitchenDeadLetters, "fanout"},
		{ChangesExchange, "fanout"},
		{NotificationsExchange, "fanout"},
	}
	for _, ex := range exchanges {
		if err := c.channel.ExchangeDeclare(ex.name, ex.kind, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare %s exchange: %w", ex.name, err)
		}
	}

	queues := []struct {
		name     string
		exchange string
	}{
		{DeadLetterQueue, KitchenDeadLetters},
		{NotificationsQueue, NotificationsExchange},
	}
	for _, q := range queues {
		if _, err := c.channel.QueueDeclare(q.name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", q.name, err)
		}
		if err := c.channel.QueueBind(q.name, "", q.exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue %s: %w", q.name, err)
		}
	}

	return nil
}

// KitchenQueue returns the queue name and binding key for a department.
// The department "all" receives every ticket.
func KitchenQueue(department string) (queue, bindingKey string) {
	if department == "" || department == "all" {
		return "kitchen_all", "kitchen.*"
	}
	return "kitchen_" + department, "kitchen." + department
}

// DeclareKitchenQueue declares a department's durable ticket queue with
// dead-lettering to kitchen_dlx.
func (c *Connection) DeclareKitchenQueue(department string) (string, error) {
	queue, key := KitchenQueue(department)

	ch := c.Channel()
	_, err := ch.QueueDeclare(queue, true, false, false, false, amqp091.Table{
		"x-dead-letter-exchange": KitchenDeadLetters,
	})
	if err != nil {
		return "", fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	if err := ch.QueueBind(queue, key, KitchenExchange, false, nil); err != nil {
		return "", fmt.Errorf("failed to bind queue %s with routing key %s: %w", queue, key, err)
	}
	return queue, nil
}

// OpenChannel opens an additional channel on the current connection.
func (c *Connection) OpenChannel() (*amqp091.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || c.conn.IsClosed() {
		return nil, amqp091.ErrClosed
	}
	return c.conn.Channel()
}

// Channel returns the current channel
func (c *Connection) Channel() *amqp091.Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel
}

// Close closes the connection
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.close()
}

func (c *Connection) close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsClosed checks if the connection is closed
func (c *Connection) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn == nil || c.conn.IsClosed() || c.channel == nil || c.channel.IsClosed()
}

// Reconnect attempts to reconnect to RabbitMQ
func (c *Connection) Reconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.close()
	return c.connect()
}
