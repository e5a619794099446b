package models

import "time"

// Status is the closed set of ticket lifecycle states.
type Status string

const (
	StatusPending    Status = "pending"
	StatusWaiting    Status = "waiting"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// TicketType distinguishes immediate check-ins from pre-booked visits.
type TicketType string

const (
	TypeWalkIn      TicketType = "walkin"
	TypeAppointment TicketType = "appointment"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusWaiting, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Active reports whether the ticket still occupies a place in the shop's
// queue for dedup and capacity purposes.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusWaiting || s == StatusInProgress
}

type Ticket struct {
	TicketID          int64      `json:"ticket_id"`
	ShopID            string     `json:"shop_id"`
	Type              TicketType `json:"type"`
	Status            Status     `json:"status"`
	Position          int        `json:"position,omitempty"`
	ServiceID         string     `json:"service_id"`
	BarberID          *string    `json:"barber_id,omitempty"`
	PreferredBarberID *string    `json:"preferred_barber_id,omitempty"`
	CustomerName      string     `json:"customer_name"`
	CustomerPhone     string     `json:"customer_phone,omitempty"`
	ClientID          *string    `json:"client_id,omitempty"`
	DeviceID          string     `json:"device_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	CheckInTime       *time.Time `json:"check_in_time,omitempty"`
	ScheduledTime     *time.Time `json:"scheduled_time,omitempty"`
	BarberAssignedAt  *time.Time `json:"barber_assigned_at,omitempty"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	CancelledAt       *time.Time `json:"cancelled_at,omitempty"`
	CancelReason      string     `json:"cancel_reason,omitempty"`
	CancelledBy       Actor      `json:"cancelled_by,omitempty"`

	// EstimatedWaitMinutes is derived on read, never stored as truth.
	EstimatedWaitMinutes int `json:"estimated_wait_minutes"`
	// Rank is the 1-based ordinal among currently waiting tickets. Position
	// stays an internal arrival marker; rank is the customer-facing number.
	Rank int `json:"rank,omitempty"`
}

// Actor identifies who drove a transition.
type Actor string

const (
	ActorCustomer Actor = "customer"
	ActorStaff    Actor = "staff"
)
