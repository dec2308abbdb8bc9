package transfer

import (
	"fmt"
	"time"

	"restaurant-pos/internal/errs"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/pricing"
	"restaurant-pos/internal/services/order"
)

// Split moves the items named by itemIDs from source to dest. dest may be
// nil, in which case a new order is seeded on destTable with the moved items,
// no discount and the destination hall's service rate. Neither input is
// modified.
func Split(source *models.Order, itemIDs []string, dest *models.Order, destTable *models.Table, destHall *models.Hall, now time.Time) (*models.Order, *models.Order, error) {
	if source == nil || source.Status.IsTerminal() {
		return nil, nil, errs.ErrNoActiveOrder
	}
	if len(itemIDs) == 0 {
		return nil, nil, fmt.Errorf("%w: no items selected", errs.ErrInvalidTransfer)
	}
	if destTable == nil {
		return nil, nil, fmt.Errorf("%w: destination table is required", errs.ErrInvalidTransfer)
	}
	if destTable.ID == source.TableID {
		return nil, nil, fmt.Errorf("%w: destination is the source table", errs.ErrInvalidTransfer)
	}
	if dest != nil && dest.Status.IsTerminal() {
		return nil, nil, fmt.Errorf("destination order %s: %w", dest.ID, errs.ErrNoActiveOrder)
	}

	selected := make(map[string]bool, len(itemIDs))
	for _, id := range itemIDs {
		if source.FindItem(id) < 0 {
			return nil, nil, fmt.Errorf("%w: item %s is not on the source order", errs.ErrInvalidTransfer, id)
		}
		selected[id] = true
	}

	var kept, moved []models.OrderItem
	for _, item := range source.Items {
		if selected[item.ID] {
			moved = append(moved, item)
		} else {
			kept = append(kept, item)
		}
	}
	if len(kept) == 0 {
		return nil, nil, errs.ErrEmptySource
	}

	nextSource := source.Clone()
	nextSource.Items = cloneItems(kept)
	pricing.Apply(nextSource)

	var nextDest *models.Order
	if dest == nil {
		nextDest = order.New(destTable, destHall, now)
		if anySent(moved) {
			nextDest.Status = models.StatusInProgress
		}
	} else {
		nextDest = dest.Clone()
	}
	nextDest.Items = append(nextDest.Items, cloneItems(moved)...)
	pricing.Apply(nextDest)

	return nextSource, nextDest, nil
}

func anySent(items []models.OrderItem) bool {
	for _, item := range items {
		if !order.Editable(item) {
			return true
		}
	}
	return false
}

func cloneItems(items []models.OrderItem) []models.OrderItem {
	o := &models.Order{Items: items}
	return o.Clone().Items
}
