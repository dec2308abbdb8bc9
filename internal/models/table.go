package models

import "time"

// TableStatus represents the occupancy of a table
type TableStatus string

const (
	TableEmpty          TableStatus = "empty"
	TableOccupied       TableStatus = "occupied"
	TableWaitingPayment TableStatus = "waiting_payment"
	TableReserved       TableStatus = "reserved"
)

// Table is a seat group inside a hall
type Table struct {
	ID           string      `json:"id" yaml:"id"`
	RestaurantID string      `json:"restaurant_id" yaml:"restaurant_id"`
	HallID       string      `json:"hall_id" yaml:"hall_id"`
	Number       int         `json:"table_number" yaml:"table_number"`
	Capacity     int         `json:"capacity" yaml:"capacity"`
	Shape        string      `json:"shape" yaml:"shape"`
	Status       TableStatus `json:"status" yaml:"status"`
	UpdatedAt    time.Time   `json:"updated_at" yaml:"-"`
}

// Hall groups tables and carries the service charge percentage
type Hall struct {
	ID            string  `json:"id" yaml:"id"`
	RestaurantID  string  `json:"restaurant_id" yaml:"restaurant_id"`
	BranchID      string  `json:"branch_id" yaml:"branch_id"`
	Name          string  `json:"name" yaml:"name"`
	ServiceCharge float64 `json:"service_charge" yaml:"service_charge"`
	IsActive      bool    `json:"is_active" yaml:"is_active"`
}

// Product is a menu entry
type Product struct {
	ID           string  `json:"id" yaml:"id"`
	RestaurantID string  `json:"restaurant_id" yaml:"restaurant_id"`
	Name         string  `json:"name" yaml:"name"`
	Price        float64 `json:"price" yaml:"price"`
	DepartmentID *string `json:"department_id,omitempty" yaml:"department_id"`
	IsActive     bool    `json:"is_active" yaml:"is_active"`
}
