package dto

import (
	"github.com/bamanh2802/bookingcar/backend-booking/internal/domain"
	"github.com/shopspring/decimal"
)

// CreateTicketRequestRequest represents the request body for creating a ticket request
type CreateTicketRequestRequest struct {
	TitleRequest domain.RequestTitle `json:"title_request"`
	TripID       string              `json:"trip_id"`
	TicketID     string              `json:"ticket_id"`
	TicketType   string              `json:"ticket_type"`
	Seats        domain.Seats        `json:"seats"`
	Price        decimal.Decimal     `json:"price"`
	Amount       decimal.Decimal     `json:"amount"`
	Name         string              `json:"passenger_name"`
	Phone        string              `json:"passenger_phone"`
	Pickup       string              `json:"pickup_point"`
	Dropoff      string              `json:"dropoff_point"`
	Note         string              `json:"note"`
}

// Title returns the requested title, defaulting to BookTicket
func (r *CreateTicketRequestRequest) Title() domain.RequestTitle {
	if r.TitleRequest == "" {
		return domain.TitleBookTicket
	}
	return r.TitleRequest
}

// Passenger returns the passenger fields as a domain value
func (r *CreateTicketRequestRequest) Passenger() domain.Passenger {
	return domain.Passenger{
		Name:    r.Name,
		Phone:   r.Phone,
		Pickup:  r.Pickup,
		Dropoff: r.Dropoff,
		Note:    r.Note,
	}
}

// Validate performs the shape checks that need no storage access
func (r *CreateTicketRequestRequest) Validate() error {
	switch r.Title() {
	case domain.TitleBookTicket:
		if r.TripID == "" {
			return domain.ErrTripRequired
		}
		if r.Price.IsNegative() {
			return domain.ValidationError("price cannot be negative")
		}
		return r.Seats.ValidateRequested()
	case domain.TitleCancelTicket:
		if r.TicketID == "" {
			return domain.ErrTicketRequired
		}
		return r.Seats.ValidateRequested()
	case domain.TitleRefund:
		if r.TicketID == "" {
			return domain.ErrTicketRequired
		}
		if !r.Amount.IsPositive() {
			return domain.ErrInvalidAmount
		}
		return nil
	default:
		return domain.ErrInvalidTitle
	}
}

// UpdateTicketRequestRequest represents the request body for PATCH /ticket-requests/:id.
// A Status drives the lifecycle dispatch; without one the call is a plain edit.
type UpdateTicketRequestRequest struct {
	Status  *domain.RequestStatus `json:"status"`
	Seats   domain.Seats          `json:"seats"`
	Name    *string               `json:"passenger_name"`
	Phone   *string               `json:"passenger_phone"`
	Pickup  *string               `json:"pickup_point"`
	Dropoff *string               `json:"dropoff_point"`
	Note    *string               `json:"note"`
}

// HasStatusChange reports whether the update targets a new status
func (r *UpdateTicketRequestRequest) HasStatusChange(current domain.RequestStatus) bool {
	return r.Status != nil && *r.Status != current
}

// ApplyPassenger copies any provided passenger fields onto p
func (r *UpdateTicketRequestRequest) ApplyPassenger(p *domain.Passenger) {
	if r.Name != nil {
		p.Name = *r.Name
	}
	if r.Phone != nil {
		p.Phone = *r.Phone
	}
	if r.Pickup != nil {
		p.Pickup = *r.Pickup
	}
	if r.Dropoff != nil {
		p.Dropoff = *r.Dropoff
	}
	if r.Note != nil {
		p.Note = *r.Note
	}
}

// Validate checks the update shape
func (r *UpdateTicketRequestRequest) Validate() error {
	if r.Status != nil && !r.Status.IsValid() {
		return domain.ErrInvalidStatus
	}
	if r.Seats != nil {
		return r.Seats.ValidateRequested()
	}
	return nil
}

// TicketRequestListFilter holds query parameters for listing ticket requests
type TicketRequestListFilter struct {
	UserID       string `form:"user_id"`
	TripID       string `form:"trip_id"`
	Status       string `form:"status"`
	TitleRequest string `form:"title_request"`
	Page         int    `form:"page"`
	PerPage      int    `form:"per_page"`
}

// SetDefaults clamps paging values
func (f *TicketRequestListFilter) SetDefaults() {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PerPage <= 0 {
		f.PerPage = 20
	}
	if f.PerPage > 100 {
		f.PerPage = 100
	}
}

// Offset returns the row offset for the current page
func (f *TicketRequestListFilter) Offset() int {
	return (f.Page - 1) * f.PerPage
}
