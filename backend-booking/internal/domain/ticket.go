package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TicketStatus represents the state of an issued ticket
type TicketStatus string

const (
	TicketStatusPending   TicketStatus = "Pending"
	TicketStatusConfirmed TicketStatus = "Confirmed"
	TicketStatusDone      TicketStatus = "Done"
	TicketStatusCancelled TicketStatus = "Cancelled"
	TicketStatusRefunded  TicketStatus = "Refunded"
)

var ticketTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusPending:   {TicketStatusConfirmed},
	TicketStatusConfirmed: {TicketStatusDone, TicketStatusCancelled, TicketStatusRefunded},
	TicketStatusDone:      {},
	TicketStatusCancelled: {},
	TicketStatusRefunded:  {},
}

// CanTransitionTo checks if a transition to the target status is allowed
func (s TicketStatus) CanTransitionTo(target TicketStatus) bool {
	for _, allowed := range ticketTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if the status has no outgoing transitions
func (s TicketStatus) IsTerminal() bool {
	return len(ticketTransitions[s]) == 0
}

// HoldsSeats reports whether a ticket in this status occupies inventory
func (s TicketStatus) HoldsSeats() bool {
	return s == TicketStatusPending || s == TicketStatusConfirmed || s == TicketStatusDone
}

// Passenger carries the traveller details copied between requests and tickets
type Passenger struct {
	Name    string `json:"passenger_name"`
	Phone   string `json:"passenger_phone"`
	Pickup  string `json:"pickup_point"`
	Dropoff string `json:"dropoff_point"`
	Note    string `json:"note"`
}

// Ticket is an issued booking record. Price is per seat.
type Ticket struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	TripID         string          `json:"trip_id"`
	RequestID      string          `json:"request_id"`
	Price          decimal.Decimal `json:"price"`
	Seats          Seats           `json:"seats"`
	Status         TicketStatus    `json:"status"`
	CommissionPaid bool            `json:"commission_paid"`
	Passenger
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SeatCount returns the number of seats on the ticket
func (t *Ticket) SeatCount() int {
	return len(t.Seats)
}

// TicketPatch is a partial ticket update. Nil fields are left unchanged.
type TicketPatch struct {
	Status         *TicketStatus
	Seats          Seats
	CommissionPaid *bool
	Passenger      *Passenger
}

// Apply validates the patch against t and applies it in place
func (p *TicketPatch) Apply(t *Ticket) error {
	if p.Status != nil && *p.Status != t.Status {
		if !t.Status.CanTransitionTo(*p.Status) {
			return ErrInvalidTransition
		}
	}
	if p.Seats != nil {
		if err := p.Seats.ValidateRequested(); err != nil {
			return err
		}
		status := t.Status
		if p.Status != nil {
			status = *p.Status
		}
		if status != TicketStatusConfirmed && status != TicketStatusPending {
			return ConflictError("seats can only change on a pending or confirmed ticket")
		}
	}
	if p.CommissionPaid != nil && !*p.CommissionPaid && t.CommissionPaid {
		return ConflictError("commission_paid cannot be reset")
	}

	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Seats != nil {
		t.Seats = append(Seats(nil), p.Seats...)
	}
	if p.CommissionPaid != nil {
		t.CommissionPaid = *p.CommissionPaid
	}
	if p.Passenger != nil {
		t.Passenger = *p.Passenger
	}
	return nil
}
