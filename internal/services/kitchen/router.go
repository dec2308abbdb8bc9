package kitchen

import (
	"time"

	"restaurant-pos/internal/errs"
	"restaurant-pos/internal/models"
)

// Route marks every pending item as sent and builds one ticket per
// department for exactly those items, in order of first appearance.
// Items sent by an earlier dispatch are never ticketed again.
func Route(o *models.Order, now time.Time, newID func() string) (*models.Order, []models.KitchenTicket, error) {
	if o == nil || o.Status.IsTerminal() {
		return nil, nil, errs.ErrNoActiveOrder
	}

	next := o.Clone()
	var sent []models.OrderItem
	for i := range next.Items {
		if next.Items[i].Status == "" || next.Items[i].Status == models.ItemPending {
			next.Items[i].Status = models.ItemSentToKitchen
			sent = append(sent, next.Items[i])
		}
	}
	if len(sent) == 0 {
		return nil, nil, errs.ErrNothingToSend
	}

	var (
		order   []models.Department
		buckets = make(map[models.Department][]models.OrderItem)
	)
	for _, item := range sent {
		d := item.Department()
		if _, seen := buckets[d]; !seen {
			order = append(order, d)
		}
		buckets[d] = append(buckets[d], item)
	}

	tickets := make([]models.KitchenTicket, 0, len(order))
	for _, d := range order {
		tickets = append(tickets, models.KitchenTicket{
			ID:           newID(),
			OrderID:      next.ID,
			DepartmentID: d.Ref(),
			Items:        buckets[d],
			Status:       models.TicketPending,
			TableNumber:  next.TableNumber,
			Notes:        next.Notes,
			CreatedAt:    now,
		})
	}

	next.Status = models.StatusInProgress
	next.SentToKitchenAt = &now
	return next, tickets, nil
}
