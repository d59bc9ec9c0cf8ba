package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bamanh2802/bookingcar/backend-booking/internal/domain"
	"github.com/bamanh2802/bookingcar/backend-booking/internal/dto"
	"github.com/bamanh2802/bookingcar/backend-booking/internal/repository"
	"github.com/bamanh2802/bookingcar/pkg/logger"
	"github.com/bamanh2802/bookingcar/pkg/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// TripService implements trip capacity and status operations
type TripService struct {
	tx          repository.Transactor
	trips       repository.TripRepository
	seatMaps    repository.SeatMapRepository
	tickets     *TicketLedger
	inventory   *SeatInventory
	commissions CommissionPayer
	publisher   EventPublisher
	log         *logger.Logger
}

// TripServiceConfig holds the trip service collaborators.
// Publisher may be nil; the commission cascade then runs inline on completion.
type TripServiceConfig struct {
	Tx          repository.Transactor
	Trips       repository.TripRepository
	SeatMaps    repository.SeatMapRepository
	Tickets     *TicketLedger
	Inventory   *SeatInventory
	Commissions CommissionPayer
	Publisher   EventPublisher
	Logger      *logger.Logger
}

// NewTripService creates a new TripService
func NewTripService(cfg *TripServiceConfig) *TripService {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &TripService{
		tx:          cfg.Tx,
		trips:       cfg.Trips,
		seatMaps:    cfg.SeatMaps,
		tickets:     cfg.Tickets,
		inventory:   cfg.Inventory,
		commissions: cfg.Commissions,
		publisher:   cfg.Publisher,
		log:         log.Named("trip"),
	}
}

// CreateTrip stores a trip together with its empty seat map
func (s *TripService) CreateTrip(ctx context.Context, trip *domain.Trip) error {
	if trip.TotalSeats <= 0 {
		return domain.ValidationError("total_seats must be greater than zero")
	}
	if trip.ID == "" {
		trip.ID = uuid.New().String()
	}
	if trip.Status == "" {
		trip.Status = domain.TripStatusNotStarted
	}
	if !trip.Status.IsValid() {
		return domain.ErrInvalidStatus
	}
	now := time.Now()
	trip.AvailableSeats = trip.TotalSeats
	trip.CreatedAt = now
	trip.UpdatedAt = now

	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.trips.Create(ctx, trip); err != nil {
			return fmt.Errorf("create trip: %w", err)
		}
		seatMap := &domain.SeatMap{ID: uuid.New().String(), TripID: trip.ID}
		if err := s.seatMaps.Create(ctx, seatMap); err != nil {
			return fmt.Errorf("create seat map: %w", err)
		}
		return nil
	})
}

// GetTrip returns a trip with its booked seats
func (s *TripService) GetTrip(ctx context.Context, id string) (*dto.TripResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.trip.get")
	defer span.End()
	span.SetAttributes(telemetry.TripIDAttr(id))

	trip, err := s.trips.GetByID(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("get trip: %w", err)
	}
	if trip == nil {
		return nil, domain.ErrTripNotFound
	}

	seatMap, err := s.seatMaps.GetByTripID(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("get seat map: %w", err)
	}
	return dto.NewTripResponse(trip, seatMap), nil
}

// ResizeTrip changes the seat capacity of a trip. Booked seats stay booked, so
// the new total may not drop below them. Available seats move with the total.
func (s *TripService) ResizeTrip(ctx context.Context, id string, totalSeats int) (*domain.Trip, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.trip.resize")
	defer span.End()
	span.SetAttributes(telemetry.TripIDAttr(id), attribute.Int("trip.total_seats", totalSeats))

	var result *domain.Trip
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		trip, err := s.trips.LockByID(ctx, id)
		if err != nil {
			return fmt.Errorf("lock trip: %w", err)
		}
		if trip == nil {
			return domain.ErrTripNotFound
		}
		if trip.Status == domain.TripStatusCompleted || trip.Status == domain.TripStatusCancelled {
			return domain.ErrTripStarted
		}
		result, err = s.trips.Resize(ctx, id, totalSeats)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return result, nil
}

// UpdateTripStatus moves a trip through its status machine. Cancelling a trip
// cancels its confirmed tickets; completing it starts the commission cascade.
func (s *TripService) UpdateTripStatus(ctx context.Context, id string, status domain.TripStatus) (*domain.Trip, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.trip.update_status")
	defer span.End()
	span.SetAttributes(telemetry.TripIDAttr(id), attribute.String("trip.status", string(status)))

	if !status.IsValid() {
		return nil, domain.ErrInvalidStatus
	}

	var (
		updated *domain.Trip
		changed bool
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		trip, err := s.trips.LockByID(ctx, id)
		if err != nil {
			return fmt.Errorf("lock trip: %w", err)
		}
		if trip == nil {
			return domain.ErrTripNotFound
		}
		if trip.Status == status {
			updated = trip
			return nil
		}
		if !trip.Status.CanTransitionTo(status) {
			return domain.ErrInvalidTransition
		}

		if status == domain.TripStatusCancelled {
			if err := s.cancelTickets(ctx, trip.ID); err != nil {
				return err
			}
		}
		if err := s.trips.UpdateStatus(ctx, trip.ID, status); err != nil {
			return fmt.Errorf("update trip status: %w", err)
		}

		updated, err = s.trips.GetByID(ctx, trip.ID)
		if err != nil {
			return fmt.Errorf("get trip: %w", err)
		}
		changed = true
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if changed {
		s.log.WithContext(ctx).Info("trip status updated",
			zap.String("trip_id", id),
			zap.String("status", string(status)),
		)
	}
	if changed && status == domain.TripStatusCompleted {
		s.onCompleted(ctx, id)
	}
	return updated, nil
}

func (s *TripService) cancelTickets(ctx context.Context, tripID string) error {
	confirmed, err := s.tickets.ListConfirmed(ctx, tripID)
	if err != nil {
		return err
	}
	cancelled := domain.TicketStatusCancelled
	for _, t := range confirmed {
		if _, err := s.inventory.Release(ctx, tripID, t.Seats); err != nil {
			return fmt.Errorf("release seats of ticket %s: %w", t.ID, err)
		}
		if _, err := s.tickets.UpdateTicket(ctx, t.ID, &domain.TicketPatch{Status: &cancelled}); err != nil {
			return err
		}
	}
	return nil
}

func (s *TripService) onCompleted(ctx context.Context, tripID string) {
	log := s.log.WithContext(ctx)
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, dto.NewTripCompletedEvent(tripID)); err != nil {
			log.Error("failed to publish trip completed event", zap.String("trip_id", tripID), zap.Error(err))
		}
		return
	}
	if s.commissions == nil {
		return
	}
	if _, err := s.commissions.PayTripCommissions(ctx, tripID); err != nil {
		log.Error("inline commission cascade failed", zap.String("trip_id", tripID), zap.Error(err))
	}
}
