package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/messaging"
	"restaurant-pos/internal/models"
)

// Source delivers raw notification messages to a handler until ctx ends.
type Source interface {
	StartConsuming(ctx context.Context, handler messaging.MessageHandler) error
	Close() error
}

// Subscriber handles notification messages
type Subscriber struct {
	source Source
	out    io.Writer
	logger *logger.Logger
}

// NewSubscriber creates a new notification subscriber
func NewSubscriber(source Source, out io.Writer, logger *logger.Logger) *Subscriber {
	return &Subscriber{
		source: source,
		out:    out,
		logger: logger,
	}
}

// Start consumes notifications until ctx is cancelled.
func (s *Subscriber) Start(ctx context.Context) error {
	requestID := logger.GenerateRequestID()
	s.logger.Info("service_started", "Notification subscriber started", requestID, nil)

	err := s.source.StartConsuming(ctx, s.handleNotification)

	s.logger.Info("graceful_shutdown", "Notification subscriber stopping", requestID, nil)
	s.source.Close()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// handleNotification processes incoming status update notifications
func (s *Subscriber) handleNotification(ctx context.Context, body []byte) error {
	requestID := logger.GenerateRequestID()

	var statusUpdate models.StatusUpdateMessage
	if err := json.Unmarshal(body, &statusUpdate); err != nil {
		s.logger.Error("message_parsing_failed", "Failed to parse notification message", requestID, err, nil)
		return fmt.Errorf("failed to parse notification: %w", messaging.ErrDLQ)
	}

	s.logger.Debug("notification_received", "Received status update notification", requestID, map[string]interface{}{
		"order_id":   statusUpdate.OrderID,
		"new_status": statusUpdate.NewStatus,
		"changed_by": statusUpdate.ChangedBy,
	})

	if _, err := fmt.Fprintln(s.out, formatNotification(&statusUpdate)); err != nil {
		return fmt.Errorf("failed to print notification: %w", messaging.ErrRequeue)
	}

	s.logger.Info("notification_displayed", "Notification displayed to user", requestID, map[string]interface{}{
		"order_id":     statusUpdate.OrderID,
		"table_number": statusUpdate.TableNumber,
		"old_status":   statusUpdate.OldStatus,
		"new_status":   statusUpdate.NewStatus,
		"is_unpaid":    statusUpdate.IsUnpaid,
		"timestamp":    statusUpdate.Timestamp.Format("2006-01-02 15:04:05"),
	})
	return nil
}

// formatNotification creates a human-readable notification message
func formatNotification(u *models.StatusUpdateMessage) string {
	timestamp := u.Timestamp.Format("2006-01-02 15:04:05")

	switch {
	case u.NewStatus == models.StatusCompleted:
		return fmt.Sprintf("[%s] Table %d paid %.2f, closed by %s.",
			timestamp, u.TableNumber, u.TotalAmount, u.ChangedBy)
	case u.NewStatus == models.StatusCancelled && u.IsUnpaid:
		return fmt.Sprintf("[%s] Table %d closed unpaid (%.2f) by %s.",
			timestamp, u.TableNumber, u.TotalAmount, u.ChangedBy)
	case u.NewStatus == models.StatusCancelled:
		return fmt.Sprintf("[%s] Order on table %d has been cancelled.", timestamp, u.TableNumber)
	default:
		return fmt.Sprintf("[%s] Order on table %d changed from '%s' to '%s' by %s.",
			timestamp, u.TableNumber, u.OldStatus, u.NewStatus, u.ChangedBy)
	}
}
