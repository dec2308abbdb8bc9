package transfer

import (
	"context"
	"fmt"
	"time"

	"restaurant-pos/internal/errs"
	"restaurant-pos/internal/lease"
	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/services/table"
	"restaurant-pos/internal/store"
)

const maxAttempts = 3

// Request names the items to move between two tables.
type Request struct {
	SourceTableID      string   `json:"source_table_id"`
	DestinationTableID string   `json:"destination_table_id"`
	ItemIDs            []string `json:"item_ids"`
}

// Result is the state of both orders after a transfer.
type Result struct {
	Source      *models.Order `json:"source"`
	Destination *models.Order `json:"destination"`
}

// Coordinator moves items between table orders atomically.
type Coordinator struct {
	store    store.Store
	locker   lease.Locker
	tables   *table.Manager
	observer table.Observer
	logger   *logger.Logger
	now      func() time.Time
}

func NewCoordinator(s store.Store, locker lease.Locker, tables *table.Manager, observer table.Observer, log *logger.Logger) *Coordinator {
	if observer == nil {
		observer = table.Nop{}
	}
	return &Coordinator{
		store:    s,
		locker:   locker,
		tables:   tables,
		observer: observer,
		logger:   log,
		now:      time.Now,
	}
}

type outcome struct {
	result      Result
	sourceTable *models.Table
	destTable   *models.Table
}

// Transfer moves req.ItemIDs from the source table's order to the
// destination table. Both orders and both table statuses are written in one
// transaction.
func (c *Coordinator) Transfer(ctx context.Context, req Request, requestID string) (Result, error) {
	if req.SourceTableID == "" {
		return Result{}, errs.ErrTableNotSelected
	}
	if req.DestinationTableID == "" {
		return Result{}, errs.ValidationError{Field: "destination_table_id", Message: "destination_table_id is required"}
	}
	if req.DestinationTableID == req.SourceTableID {
		return Result{}, fmt.Errorf("%w: destination is the source table", errs.ErrInvalidTransfer)
	}
	if len(req.ItemIDs) == 0 {
		return Result{}, fmt.Errorf("%w: no items selected", errs.ErrInvalidTransfer)
	}

	release, err := lease.AcquireAll(ctx, c.locker, lease.TableKey(req.SourceTableID), lease.TableKey(req.DestinationTableID))
	if err != nil {
		return Result{}, err
	}
	defer release()

	c.observer.MutationStarted(req.SourceTableID)
	c.observer.MutationStarted(req.DestinationTableID)

	var out outcome
	for attempt := 1; ; attempt++ {
		out, err = c.transfer(ctx, req)
		if err == nil || !errs.Retryable(err) || attempt >= maxAttempts {
			break
		}
		c.logger.Debug("transfer_retry", "Orders changed concurrently, retrying on fresh snapshot", requestID, map[string]interface{}{
			"source_table_id":      req.SourceTableID,
			"destination_table_id": req.DestinationTableID,
			"attempt":              attempt,
		})
	}

	c.observer.MutationFinished(ctx, table.Mutation{TableID: req.SourceTableID, Table: out.sourceTable, Order: out.result.Source, Err: err})
	c.observer.MutationFinished(ctx, table.Mutation{TableID: req.DestinationTableID, Table: out.destTable, Order: out.result.Destination, Err: err})

	if err != nil {
		if errs.KindOf(err) == errs.KindPersistence {
			c.logger.Error("transfer_failed", "Failed to persist transfer", requestID, err, map[string]interface{}{
				"source_table_id":      req.SourceTableID,
				"destination_table_id": req.DestinationTableID,
			})
		}
		return Result{}, err
	}

	c.logger.Info("items_transferred", fmt.Sprintf("Moved %d item(s) from table %d to table %d",
		len(req.ItemIDs), out.sourceTable.Number, out.destTable.Number), requestID, map[string]interface{}{
		"source_order_id":      out.result.Source.ID,
		"destination_order_id": out.result.Destination.ID,
		"items":                len(req.ItemIDs),
	})
	return out.result, nil
}

func (c *Coordinator) transfer(ctx context.Context, req Request) (outcome, error) {
	var out outcome
	err := c.store.WithinTx(ctx, func(q store.Querier) error {
		srcTable, err := q.GetTable(ctx, req.SourceTableID)
		if err != nil {
			return err
		}
		dstTable, err := q.GetTable(ctx, req.DestinationTableID)
		if err != nil {
			return err
		}
		source, err := q.ActiveOrder(ctx, srcTable.ID)
		if err != nil {
			return err
		}
		dest, err := q.ActiveOrder(ctx, dstTable.ID)
		if err != nil {
			return err
		}

		var hall *models.Hall
		if dest == nil {
			if hall, err = q.GetHall(ctx, dstTable.HallID); err != nil {
				return err
			}
		}

		nextSource, nextDest, err := Split(source, req.ItemIDs, dest, dstTable, hall, c.now())
		if err != nil {
			return err
		}

		if err := q.UpdateOrder(ctx, nextSource); err != nil {
			return err
		}
		if dest == nil {
			err = q.CreateOrder(ctx, nextDest)
		} else {
			err = q.UpdateOrder(ctx, nextDest)
		}
		if err != nil {
			return err
		}

		if out.sourceTable, err = c.tables.Sync(ctx, q, srcTable, nextSource); err != nil {
			return err
		}
		if out.destTable, err = c.tables.Sync(ctx, q, dstTable, nextDest); err != nil {
			return err
		}
		out.result = Result{Source: nextSource, Destination: nextDest}
		return nil
	})
	if err != nil {
		return outcome{}, err
	}
	return out, nil
}
