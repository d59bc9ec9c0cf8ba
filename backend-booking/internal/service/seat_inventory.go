package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bamanh2802/bookingcar/backend-booking/internal/domain"
	"github.com/bamanh2802/bookingcar/backend-booking/internal/repository"
)

// SeatInventory couples the per-trip seat set with trip capacity so that
// total_booked_seats + available_seats == total_seats holds after every call.
// Callers run it inside a transaction that already holds the trip lock.
type SeatInventory struct {
	seatMaps repository.SeatMapRepository
	trips    repository.TripRepository
}

// NewSeatInventory creates a SeatInventory
func NewSeatInventory(seatMaps repository.SeatMapRepository, trips repository.TripRepository) *SeatInventory {
	return &SeatInventory{seatMaps: seatMaps, trips: trips}
}

// Get returns the seat map of a trip
func (s *SeatInventory) Get(ctx context.Context, tripID string) (*domain.SeatMap, error) {
	seatMap, err := s.seatMaps.GetByTripID(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("get seat map: %w", err)
	}
	if seatMap == nil {
		return nil, domain.ErrSeatMapNotFound
	}
	return seatMap, nil
}

// Reserve appends seats to the trip inventory and takes them from capacity
func (s *SeatInventory) Reserve(ctx context.Context, tripID string, seats domain.Seats) error {
	if err := seats.ValidateRequested(); err != nil {
		return err
	}

	seatMap, err := s.Get(ctx, tripID)
	if err != nil {
		return err
	}
	if taken := seatMap.Collisions(seats); len(taken) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrSeatAlreadyBooked, joinSeats(taken))
	}

	if err := s.seatMaps.AppendSeats(ctx, seatMap.ID, seats); err != nil {
		return err
	}
	if _, err := s.trips.AdjustAvailableSeats(ctx, tripID, -len(seats)); err != nil {
		return err
	}
	return nil
}

// Release removes seats from the trip inventory and credits capacity by the number removed
func (s *SeatInventory) Release(ctx context.Context, tripID string, seats domain.Seats) (int, error) {
	seatMap, err := s.Get(ctx, tripID)
	if err != nil {
		return 0, err
	}

	removed, err := s.seatMaps.ReleaseSeats(ctx, seatMap.ID, seats)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		if _, err := s.trips.AdjustAvailableSeats(ctx, tripID, removed); err != nil {
			return 0, err
		}
	}
	return removed, nil
}

func joinSeats(seats domain.Seats) string {
	parts := make([]string, len(seats))
	for i, seat := range seats {
		parts[i] = seat.String()
	}
	return strings.Join(parts, ", ")
}
