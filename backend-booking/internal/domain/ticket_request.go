package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RequestTitle is the intent a ticket request carries
type RequestTitle string

const (
	TitleBookTicket   RequestTitle = "BookTicket"
	TitleCancelTicket RequestTitle = "CancelTicket"
	TitleRefund       RequestTitle = "Refund"
)

// IsValid reports whether t is a known title
func (t RequestTitle) IsValid() bool {
	switch t {
	case TitleBookTicket, TitleCancelTicket, TitleRefund:
		return true
	}
	return false
}

// RequestStatus is the workflow state of a ticket request
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "Pending"
	RequestStatusConfirmed RequestStatus = "Confirmed"
	RequestStatusCancelled RequestStatus = "Cancelled"
	RequestStatusRefunded  RequestStatus = "Refunded"
	RequestStatusRejected  RequestStatus = "Rejected"
)

var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestStatusPending:   {RequestStatusConfirmed, RequestStatusCancelled, RequestStatusRefunded, RequestStatusRejected},
	RequestStatusConfirmed: {},
	RequestStatusCancelled: {},
	RequestStatusRefunded:  {},
	RequestStatusRejected:  {},
}

// IsValid reports whether s is a known request status
func (s RequestStatus) IsValid() bool {
	_, ok := requestTransitions[s]
	return ok
}

// CanTransitionTo checks if a transition to the target status is allowed
func (s RequestStatus) CanTransitionTo(target RequestStatus) bool {
	for _, allowed := range requestTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if the status has no outgoing transitions
func (s RequestStatus) IsTerminal() bool {
	return len(requestTransitions[s]) == 0
}

// TicketRequest is the mutable workflow object behind a booking, cancellation or refund
type TicketRequest struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	CreatedBy    string          `json:"created_by"`
	TripID       *string         `json:"trip_id,omitempty"`
	TicketID     *string         `json:"ticket_id,omitempty"`
	TitleRequest RequestTitle    `json:"title_request"`
	TicketType   string          `json:"ticket_type,omitempty"`
	Seats        Seats           `json:"seats"`
	Price        decimal.Decimal `json:"price"`
	Amount       decimal.Decimal `json:"amount"`
	Status       RequestStatus   `json:"status"`
	Passenger
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TripIDValue returns the trip id or an empty string
func (r *TicketRequest) TripIDValue() string {
	if r.TripID == nil {
		return ""
	}
	return *r.TripID
}

// TicketIDValue returns the ticket id or an empty string
func (r *TicketRequest) TicketIDValue() string {
	if r.TicketID == nil {
		return ""
	}
	return *r.TicketID
}

// HasIssuedTicket reports whether a booking request already produced a ticket
func (r *TicketRequest) HasIssuedTicket() bool {
	return r.TitleRequest == TitleBookTicket && r.Status == RequestStatusConfirmed && r.TicketID != nil
}

// IsEditable reports whether passenger fields and seats may still change
func (r *TicketRequest) IsEditable() bool {
	if r.Status == RequestStatusPending {
		return true
	}
	return r.TitleRequest == TitleBookTicket && r.Status == RequestStatusConfirmed
}
