package domain

import (
	"fmt"
	"sort"
)

// Seat identifies one physical seat on a trip
type Seat struct {
	Code  string `json:"code"`
	Floor int    `json:"floor"`
}

func (s Seat) String() string {
	return fmt.Sprintf("%s/%d", s.Code, s.Floor)
}

// Seats is an ordered list of seats treated as a set by the helpers below
type Seats []Seat

func (s Seats) index() map[Seat]struct{} {
	idx := make(map[Seat]struct{}, len(s))
	for _, seat := range s {
		idx[seat] = struct{}{}
	}
	return idx
}

// Contains reports whether seat is in s
func (s Seats) Contains(seat Seat) bool {
	for _, x := range s {
		if x == seat {
			return true
		}
	}
	return false
}

// HasDuplicates reports whether any (code, floor) pair appears twice
func (s Seats) HasDuplicates() bool {
	return len(s.index()) != len(s)
}

// Intersect returns the seats of s that are also in other, in s order
func (s Seats) Intersect(other Seats) Seats {
	idx := other.index()
	out := make(Seats, 0, len(s))
	for _, seat := range s {
		if _, ok := idx[seat]; ok {
			out = append(out, seat)
		}
	}
	return out
}

// Subtract returns the seats of s not in other, in s order
func (s Seats) Subtract(other Seats) Seats {
	idx := other.index()
	out := make(Seats, 0, len(s))
	for _, seat := range s {
		if _, ok := idx[seat]; !ok {
			out = append(out, seat)
		}
	}
	return out
}

// SameSet reports set equality, ignoring order
func (s Seats) SameSet(other Seats) bool {
	a, b := s.index(), other.index()
	if len(a) != len(b) {
		return false
	}
	for seat := range a {
		if _, ok := b[seat]; !ok {
			return false
		}
	}
	return true
}

// Sorted returns a copy ordered by floor then code
func (s Seats) Sorted() Seats {
	out := append(Seats(nil), s...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Floor != out[j].Floor {
			return out[i].Floor < out[j].Floor
		}
		return out[i].Code < out[j].Code
	})
	return out
}

// ValidateRequested checks a caller-supplied seat list
func (s Seats) ValidateRequested() error {
	if len(s) == 0 {
		return ErrSeatsRequired
	}
	for _, seat := range s {
		if seat.Code == "" {
			return ValidationError("seat code is required")
		}
	}
	if s.HasDuplicates() {
		return ErrDuplicateSeat
	}
	return nil
}

// SeatMap is the per-trip seat inventory
type SeatMap struct {
	ID               string `json:"id"`
	TripID           string `json:"trip_id"`
	BookedSeats      Seats  `json:"booked_seats"`
	TotalBookedSeats int    `json:"total_booked_seats"`
}

// Collisions returns the requested seats already present in the map
func (m *SeatMap) Collisions(requested Seats) Seats {
	return requested.Intersect(m.BookedSeats)
}
