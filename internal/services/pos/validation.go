package pos

import (
	"fmt"

	"restaurant-pos/internal/errs"
)

const (
	maxIDLength       = 64
	maxQuantity       = 999
	maxTransferItems  = 100
	maxCashierNameLen = 100
)

func validateAddItem(req *addItemRequest) error {
	return validateID("product_id", req.ProductID)
}

func validateQuantity(req *quantityRequest) error {
	if req.Quantity == nil {
		return errs.ValidationError{
			Field:   "quantity",
			Message: "quantity is required",
		}
	}
	if *req.Quantity > maxQuantity {
		return errs.ValidationError{
			Field:   "quantity",
			Message: fmt.Sprintf("quantity must be less than or equal to %d", maxQuantity),
		}
	}
	return nil
}

func validateTransferItems(itemIDs []string) error {
	if len(itemIDs) > maxTransferItems {
		return errs.ValidationError{
			Field:   "item_ids",
			Message: fmt.Sprintf("a maximum of %d items can be moved at once", maxTransferItems),
		}
	}
	for i, id := range itemIDs {
		if err := validateID(fmt.Sprintf("item_ids[%d]", i), id); err != nil {
			return err
		}
	}
	return nil
}

func validateCashier(id, name string) error {
	if len(id) > maxIDLength {
		return errs.ValidationError{
			Field:   "cashier_id",
			Message: fmt.Sprintf("cashier id must be at most %d characters", maxIDLength),
		}
	}
	if len(name) > maxCashierNameLen {
		return errs.ValidationError{
			Field:   "cashier_name",
			Message: fmt.Sprintf("cashier name must be at most %d characters", maxCashierNameLen),
		}
	}
	return nil
}

func validateID(field, id string) error {
	if id == "" {
		return errs.ValidationError{
			Field:   field,
			Message: field + " is required",
		}
	}
	if len(id) > maxIDLength {
		return errs.ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%s must be at most %d characters", field, maxIDLength),
		}
	}
	return nil
}
