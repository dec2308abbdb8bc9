package models

import "time"

// Department identifies a kitchen preparation station. Items without a
// department go to DefaultDepartment.
type Department struct {
	ID      string
	Default bool
}

var DefaultDepartment = Department{Default: true}

// Key is the routing segment for the department.
func (d Department) Key() string {
	if d.Default {
		return "default"
	}
	return d.ID
}

// Ref is the nullable column value stored on a ticket.
func (d Department) Ref() *string {
	if d.Default {
		return nil
	}
	id := d.ID
	return &id
}

type TicketStatus string

const TicketPending TicketStatus = "pending"

// KitchenTicket is the per-department snapshot of one dispatch
type KitchenTicket struct {
	ID           string       `json:"id"`
	OrderID      string       `json:"order_id"`
	DepartmentID *string      `json:"department_id"`
	Items        []OrderItem  `json:"items"`
	Status       TicketStatus `json:"status"`
	TableNumber  int          `json:"table_number"`
	Notes        string       `json:"notes,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Department returns the ticket's department with the default made explicit.
func (t KitchenTicket) Department() Department {
	if t.DepartmentID == nil || *t.DepartmentID == "" {
		return DefaultDepartment
	}
	return Department{ID: *t.DepartmentID}
}
