package dto

import (
	"time"

	"github.com/bamanh2802/bookingcar/backend-booking/internal/domain"
)

// CreateTripRequest represents the request body for POST /trips
type CreateTripRequest struct {
	TicketType string    `json:"ticket_type" binding:"required"`
	TotalSeats int       `json:"total_seats" binding:"required"`
	StartTime  time.Time `json:"start_time" binding:"required"`
}

// ToTrip converts the request into a new trip
func (r *CreateTripRequest) ToTrip() *domain.Trip {
	return &domain.Trip{
		TicketType: r.TicketType,
		TotalSeats: r.TotalSeats,
		StartTime:  r.StartTime,
	}
}

// ResizeTripRequest represents the request body for PATCH /trips/:id/seats
type ResizeTripRequest struct {
	TotalSeats int `json:"total_seats" binding:"required"`
}

// UpdateTripStatusRequest represents the request body for PATCH /trips/:id/status
type UpdateTripStatusRequest struct {
	Status domain.TripStatus `json:"status" binding:"required"`
}

// TripResponse is a trip with its seat inventory
type TripResponse struct {
	*domain.Trip
	BookedSeats      domain.Seats `json:"booked_seats"`
	TotalBookedSeats int          `json:"total_booked_seats"`
}

// NewTripResponse combines a trip and its seat map
func NewTripResponse(trip *domain.Trip, seatMap *domain.SeatMap) *TripResponse {
	resp := &TripResponse{Trip: trip, BookedSeats: domain.Seats{}}
	if seatMap != nil {
		resp.BookedSeats = seatMap.BookedSeats.Sorted()
		resp.TotalBookedSeats = seatMap.TotalBookedSeats
	}
	return resp
}

// CascadeResult summarises one commission cascade run
type CascadeResult struct {
	TripID  string   `json:"trip_id"`
	Paid    int      `json:"paid"`
	Skipped int      `json:"skipped"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
	// Credited lists every user whose balance grew during the run
	Credited []string `json:"credited_user_ids,omitempty"`
}
