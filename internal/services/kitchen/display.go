package kitchen

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/messaging"
	"restaurant-pos/internal/models"
)

// TicketSource delivers raw ticket messages to a handler until ctx ends.
type TicketSource interface {
	StartConsuming(ctx context.Context, handler messaging.MessageHandler) error
	Close() error
}

// Display prints the tickets of one kitchen department as they arrive.
type Display struct {
	department string
	source     TicketSource
	out        io.Writer
	logger     *logger.Logger
}

// NewDisplay creates a display. department "all" accepts every ticket.
func NewDisplay(department string, source TicketSource, out io.Writer, log *logger.Logger) *Display {
	return &Display{
		department: department,
		source:     source,
		out:        out,
		logger:     log,
	}
}

// Start consumes tickets until ctx is cancelled.
func (d *Display) Start(ctx context.Context) error {
	requestID := logger.GenerateRequestID()
	d.logger.Info("display_started", fmt.Sprintf("Kitchen display for %s started", d.department), requestID, map[string]interface{}{
		"department": d.department,
	})

	err := d.source.StartConsuming(ctx, d.handleMessage)

	d.logger.Info("graceful_shutdown", "Kitchen display stopping", requestID, nil)
	d.source.Close()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// handleMessage renders one ticket. Unreadable or misrouted tickets are
// dead-lettered.
func (d *Display) handleMessage(ctx context.Context, body []byte) error {
	requestID := logger.GenerateRequestID()

	var ticket models.KitchenTicket
	if err := json.Unmarshal(body, &ticket); err != nil {
		d.logger.Error("message_parsing_failed", "Failed to parse kitchen ticket", requestID, err, nil)
		return fmt.Errorf("failed to parse ticket: %w", messaging.ErrDLQ)
	}

	if !d.accepts(ticket.Department()) {
		d.logger.Error("ticket_misrouted", "Ticket does not belong to this display", requestID, nil, map[string]interface{}{
			"ticket_id":  ticket.ID,
			"department": ticket.Department().Key(),
		})
		return fmt.Errorf("ticket for %s: %w", ticket.Department().Key(), messaging.ErrDLQ)
	}

	if _, err := fmt.Fprintln(d.out, FormatTicket(ticket)); err != nil {
		return fmt.Errorf("failed to print ticket: %w", messaging.ErrRequeue)
	}

	d.logger.Debug("ticket_displayed", fmt.Sprintf("Displayed ticket for table %d", ticket.TableNumber), requestID, map[string]interface{}{
		"ticket_id":    ticket.ID,
		"order_id":     ticket.OrderID,
		"department":   ticket.Department().Key(),
		"items":        len(ticket.Items),
		"table_number": ticket.TableNumber,
	})
	return nil
}

func (d *Display) accepts(dep models.Department) bool {
	return d.department == "" || d.department == "all" || d.department == dep.Key()
}

// FormatTicket renders a ticket the way a kitchen printer would.
func FormatTicket(t models.KitchenTicket) string {
	var b strings.Builder
	fmt.Fprintf(&b, "==== %s | table %d | %s ====\n",
		strings.ToUpper(t.Department().Key()), t.TableNumber, t.CreatedAt.Format("15:04:05"))
	for _, item := range t.Items {
		fmt.Fprintf(&b, "%3d x %s\n", item.Quantity, item.Name)
	}
	if t.Notes != "" {
		fmt.Fprintf(&b, "note: %s\n", t.Notes)
	}
	b.WriteString(strings.Repeat("=", 32))
	return b.String()
}
