package domain

import "time"

// TripStatus represents the lifecycle state of a trip
type TripStatus string

const (
	TripStatusNotStarted TripStatus = "NotStarted"
	TripStatusDelayed    TripStatus = "Delayed"
	TripStatusCompleted  TripStatus = "Completed"
	TripStatusCancelled  TripStatus = "Cancelled"
)

var tripTransitions = map[TripStatus][]TripStatus{
	TripStatusNotStarted: {TripStatusDelayed, TripStatusCompleted, TripStatusCancelled},
	TripStatusDelayed:    {TripStatusNotStarted, TripStatusCompleted, TripStatusCancelled},
	TripStatusCompleted:  {},
	TripStatusCancelled:  {},
}

// IsValid reports whether s is a known trip status
func (s TripStatus) IsValid() bool {
	_, ok := tripTransitions[s]
	return ok
}

// CanTransitionTo checks if a transition to the target status is allowed
func (s TripStatus) CanTransitionTo(target TripStatus) bool {
	for _, allowed := range tripTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if the status has no outgoing transitions
func (s TripStatus) IsTerminal() bool {
	return len(tripTransitions[s]) == 0
}

// Trip is a scheduled departure with a finite number of seats
type Trip struct {
	ID             string     `json:"id"`
	TicketType     string     `json:"ticket_type"`
	TotalSeats     int        `json:"total_seats"`
	AvailableSeats int        `json:"available_seats"`
	StartTime      time.Time  `json:"start_time"`
	Status         TripStatus `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// HasStarted reports whether the trip departed at or before now
func (t *Trip) HasStarted(now time.Time) bool {
	return !now.Before(t.StartTime)
}

// EnsureBookable returns ErrTripStarted when seats can no longer change
func (t *Trip) EnsureBookable(now time.Time) error {
	if t.HasStarted(now) || t.Status == TripStatusCompleted || t.Status == TripStatusCancelled {
		return ErrTripStarted
	}
	return nil
}

// BookedSeats returns the number of seats taken from capacity
func (t *Trip) BookedSeats() int {
	return t.TotalSeats - t.AvailableSeats
}

// Resize sets a new total capacity while keeping booked seats booked
func (t *Trip) Resize(totalSeats int) error {
	if totalSeats <= 0 {
		return ValidationError("total_seats must be greater than zero")
	}
	booked := t.BookedSeats()
	if totalSeats < booked {
		return ErrCapacityExceeded
	}
	t.TotalSeats = totalSeats
	t.AvailableSeats = totalSeats - booked
	return nil
}

// CanAdjust reports whether availableSeats+delta stays within [0, totalSeats]
func (t *Trip) CanAdjust(delta int) bool {
	next := t.AvailableSeats + delta
	return next >= 0 && next <= t.TotalSeats
}
