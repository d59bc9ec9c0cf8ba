package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bamanh2802/bookingcar/backend-booking/internal/domain"
	"github.com/bamanh2802/bookingcar/backend-booking/internal/dto"
	"github.com/bamanh2802/bookingcar/backend-booking/internal/repository"
	"github.com/bamanh2802/bookingcar/pkg/logger"
	"github.com/bamanh2802/bookingcar/pkg/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ticketRequestService struct {
	tx        repository.Transactor
	requests  repository.TicketRequestRepository
	trips     repository.TripRepository
	tickets   *TicketLedger
	inventory *SeatInventory
	refunds   *RefundService
	publisher EventPublisher
	log       *logger.Logger
	metrics   *Metrics
	now       func() time.Time
}

// TicketRequestServiceConfig holds the coordinator collaborators
type TicketRequestServiceConfig struct {
	Tx        repository.Transactor
	Requests  repository.TicketRequestRepository
	Trips     repository.TripRepository
	Tickets   *TicketLedger
	Inventory *SeatInventory
	Refunds   *RefundService
	// Publisher may be nil, events are then dropped
	Publisher EventPublisher
	Logger    *logger.Logger
	Metrics   *Metrics
	Now       func() time.Time
}

// NewTicketRequestService creates a new TicketRequestService
func NewTicketRequestService(cfg *TicketRequestServiceConfig) TicketRequestService {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &ticketRequestService{
		tx:        cfg.Tx,
		requests:  cfg.Requests,
		trips:     cfg.Trips,
		tickets:   cfg.Tickets,
		inventory: cfg.Inventory,
		refunds:   cfg.Refunds,
		publisher: cfg.Publisher,
		log:       log.Named("ticket-request"),
		metrics:   orNopMetrics(cfg.Metrics),
		now:       now,
	}
}

// Create files a new request in Pending status
func (s *ticketRequestService) Create(ctx context.Context, in *dto.CreateTicketRequestRequest, principal *domain.Principal) (*domain.TicketRequest, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.ticket_request.create")
	defer span.End()

	if principal == nil || principal.UserID == "" {
		return nil, domain.ErrUnauthenticated
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	span.SetAttributes(telemetry.RequestTitleAttr(string(in.Title())), telemetry.UserIDAttr(principal.UserID))

	var (
		req *domain.TicketRequest
		err error
	)
	switch in.Title() {
	case domain.TitleBookTicket:
		req, err = s.newBookRequest(ctx, in, principal)
	case domain.TitleCancelTicket:
		req, err = s.newCancelRequest(ctx, in, principal)
	case domain.TitleRefund:
		req, err = s.newRefundRequest(ctx, in, principal)
	default:
		err = domain.ErrInvalidTitle
	}
	if err != nil {
		return nil, s.fail(span, err)
	}

	req.ID = uuid.New().String()
	req.CreatedBy = principal.UserID
	req.Status = domain.RequestStatusPending
	req.CreatedAt = s.now()
	req.UpdatedAt = req.CreatedAt

	if err := s.requests.Create(ctx, req); err != nil {
		return nil, s.fail(span, fmt.Errorf("create ticket request: %w", err))
	}
	span.SetAttributes(telemetry.RequestIDAttr(req.ID))

	s.metrics.RequestsCreated.Inc(ctx, telemetry.RequestTitleAttr(string(req.TitleRequest)))
	s.log.WithContext(ctx).Info("ticket request created",
		zap.String("request_id", req.ID),
		zap.String("title_request", string(req.TitleRequest)),
		zap.String("user_id", req.UserID),
	)
	s.publish(ctx, dto.NewTicketRequestCreatedEvent(req))
	return req, nil
}

func (s *ticketRequestService) newBookRequest(ctx context.Context, in *dto.CreateTicketRequestRequest, principal *domain.Principal) (*domain.TicketRequest, error) {
	trip, err := s.trips.GetByID(ctx, in.TripID)
	if err != nil {
		return nil, fmt.Errorf("get trip: %w", err)
	}
	if trip == nil {
		return nil, domain.ErrTripNotFound
	}
	if err := trip.EnsureBookable(s.now()); err != nil {
		return nil, err
	}
	if in.TicketType != "" && in.TicketType != trip.TicketType {
		return nil, domain.ErrTicketTypeMismatch
	}

	return &domain.TicketRequest{
		UserID:       principal.UserID,
		TripID:       &trip.ID,
		TitleRequest: domain.TitleBookTicket,
		TicketType:   trip.TicketType,
		Seats:        in.Seats,
		Price:        in.Price,
		Passenger:    in.Passenger(),
	}, nil
}

func (s *ticketRequestService) newCancelRequest(ctx context.Context, in *dto.CreateTicketRequestRequest, principal *domain.Principal) (*domain.TicketRequest, error) {
	ticket, err := s.tickets.GetTicket(ctx, in.TicketID)
	if err != nil {
		return nil, err
	}
	if !ownsOrApproves(principal, ticket.UserID) {
		return nil, domain.ErrNotOwner
	}
	if ticket.Status != domain.TicketStatusConfirmed {
		return nil, domain.ErrTicketNotConfirmed
	}

	exists, err := s.requests.HasCancelRequest(ctx, ticket.ID)
	if err != nil {
		return nil, fmt.Errorf("check cancel request: %w", err)
	}
	if exists {
		return nil, domain.ErrDuplicateCancelRequest
	}

	seats := in.Seats.Intersect(ticket.Seats)
	if len(seats) == 0 {
		return nil, domain.ErrNoSeatOverlap
	}

	return &domain.TicketRequest{
		UserID:       ticket.UserID,
		TripID:       &ticket.TripID,
		TicketID:     &ticket.ID,
		TitleRequest: domain.TitleCancelTicket,
		Seats:        seats,
		Price:        ticket.Price,
		Passenger:    ticket.Passenger,
	}, nil
}

// newRefundRequest files a balance refund against a ticket. The amount is capped
// by the ticket price and the refund debits the ticket owner.
func (s *ticketRequestService) newRefundRequest(ctx context.Context, in *dto.CreateTicketRequestRequest, principal *domain.Principal) (*domain.TicketRequest, error) {
	ticket, err := s.tickets.GetTicket(ctx, in.TicketID)
	if err != nil {
		return nil, err
	}
	if !ownsOrApproves(principal, ticket.UserID) {
		return nil, domain.ErrNotOwner
	}
	if in.Amount.GreaterThan(ticket.Price) {
		return nil, domain.ErrAmountExceedsPrice
	}

	req := &domain.TicketRequest{
		UserID:       ticket.UserID,
		TicketID:     &ticket.ID,
		TitleRequest: domain.TitleRefund,
		Price:        ticket.Price,
		Amount:       in.Amount,
		Passenger:    in.Passenger(),
	}
	if in.TripID != "" {
		tripID := in.TripID
		req.TripID = &tripID
	}
	return req, nil
}

// Update dispatches a status change or applies a plain edit
func (s *ticketRequestService) Update(ctx context.Context, id string, in *dto.UpdateTicketRequestRequest, principal *domain.Principal) (*domain.TicketRequest, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.ticket_request.update")
	defer span.End()
	span.SetAttributes(telemetry.RequestIDAttr(id))

	if err := in.Validate(); err != nil {
		return nil, err
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, s.fail(span, err)
	}
	if principal != nil && !ownsOrApproves(principal, current.UserID) {
		return nil, domain.ErrNotOwner
	}

	if !in.HasStatusChange(current.Status) {
		updated, err := s.edit(ctx, id, in)
		if err != nil {
			return nil, s.fail(span, err)
		}
		return updated, nil
	}

	target := *in.Status
	span.SetAttributes(telemetry.RequestTitleAttr(string(current.TitleRequest)), telemetry.RequestStatusAttr(string(target)))
	if current.Status != domain.RequestStatusPending {
		return nil, domain.ErrRequestNotPending
	}
	if needsApproval(current.TitleRequest, target) && principal != nil && !principal.HasPermission(domain.PermTicketRequestApprove) {
		return nil, domain.ErrApprovalRequired
	}

	var updated *domain.TicketRequest
	switch {
	case target == domain.RequestStatusRejected,
		current.TitleRequest == domain.TitleBookTicket && target == domain.RequestStatusCancelled:
		updated, err = s.setStatus(ctx, id, target)
	case current.TitleRequest == domain.TitleBookTicket && target == domain.RequestStatusConfirmed:
		updated, err = s.confirmBooking(ctx, id, in)
	case current.TitleRequest == domain.TitleCancelTicket && target == domain.RequestStatusCancelled:
		updated, err = s.confirmCancel(ctx, id)
	case current.TitleRequest == domain.TitleRefund && target == domain.RequestStatusRefunded:
		updated, err = s.confirmRefund(ctx, id)
	default:
		err = domain.ErrInvalidTransition
	}
	if err != nil {
		return nil, s.fail(span, err)
	}

	s.metrics.RequestsResolved.Inc(ctx,
		telemetry.RequestTitleAttr(string(updated.TitleRequest)),
		telemetry.RequestStatusAttr(string(updated.Status)),
	)
	s.log.WithContext(ctx).Info("ticket request resolved",
		zap.String("request_id", updated.ID),
		zap.String("title_request", string(updated.TitleRequest)),
		zap.String("status", string(updated.Status)),
	)
	s.publish(ctx, dto.NewTicketRequestConfirmedEvent(updated))
	return updated, nil
}

// setStatus moves a pending request to target with no side effects
func (s *ticketRequestService) setStatus(ctx context.Context, id string, target domain.RequestStatus) (*domain.TicketRequest, error) {
	var result *domain.TicketRequest
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		req, err := s.lockPending(ctx, id)
		if err != nil {
			return err
		}
		req.Status = target
		if err := s.requests.Update(ctx, req); err != nil {
			return fmt.Errorf("update ticket request: %w", err)
		}
		result = req
		return nil
	})
	return result, err
}

// confirmBooking reserves the seats, issues a confirmed ticket and links it.
// On a seat collision the stale request is deleted once the transaction has rolled back.
func (s *ticketRequestService) confirmBooking(ctx context.Context, id string, in *dto.UpdateTicketRequestRequest) (*domain.TicketRequest, error) {
	var result *domain.TicketRequest
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		req, err := s.lockPending(ctx, id)
		if err != nil {
			return err
		}
		if in.Seats != nil {
			req.Seats = in.Seats
		}
		in.ApplyPassenger(&req.Passenger)

		trip, err := s.lockTrip(ctx, req.TripIDValue())
		if err != nil {
			return err
		}
		if err := trip.EnsureBookable(s.now()); err != nil {
			return err
		}
		if err := s.inventory.Reserve(ctx, trip.ID, req.Seats); err != nil {
			return err
		}

		ticket := &domain.Ticket{
			UserID:    req.UserID,
			TripID:    trip.ID,
			RequestID: req.ID,
			Price:     req.Price,
			Seats:     req.Seats,
			Status:    domain.TicketStatusConfirmed,
			Passenger: req.Passenger,
		}
		if err := s.tickets.CreateTicket(ctx, ticket); err != nil {
			return err
		}

		req.Status = domain.RequestStatusConfirmed
		req.TicketID = &ticket.ID
		if err := s.requests.Update(ctx, req); err != nil {
			return fmt.Errorf("update ticket request: %w", err)
		}
		result = req
		return nil
	})

	if errors.Is(err, domain.ErrSeatAlreadyBooked) {
		s.metrics.SeatConflicts.Inc(ctx, telemetry.RequestIDAttr(id))
		if delErr := s.requests.Delete(ctx, id); delErr != nil && !domain.IsNotFound(delErr) {
			s.log.WithContext(ctx).Error("failed to delete conflicting ticket request",
				zap.String("request_id", id),
				zap.Error(delErr),
			)
		}
		return nil, err
	}
	return result, err
}

// confirmCancel releases the requested seats of the linked ticket. Releasing
// every seat cancels the ticket, otherwise it keeps the remaining seats.
func (s *ticketRequestService) confirmCancel(ctx context.Context, id string) (*domain.TicketRequest, error) {
	var result *domain.TicketRequest
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		req, err := s.lockPending(ctx, id)
		if err != nil {
			return err
		}

		trip, err := s.lockTrip(ctx, req.TripIDValue())
		if err != nil {
			return err
		}
		if err := trip.EnsureBookable(s.now()); err != nil {
			return err
		}

		ticket, err := s.tickets.LockTicket(ctx, req.TicketIDValue())
		if err != nil {
			return err
		}
		if ticket.Status != domain.TicketStatusConfirmed {
			return domain.ErrTicketNotConfirmed
		}

		release := req.Seats.Intersect(ticket.Seats)
		if len(release) == 0 {
			return domain.ErrNoSeatOverlap
		}
		if _, err := s.inventory.Release(ctx, trip.ID, release); err != nil {
			return err
		}

		patch := &domain.TicketPatch{}
		if release.SameSet(ticket.Seats) {
			cancelled := domain.TicketStatusCancelled
			patch.Status = &cancelled
		} else {
			patch.Seats = ticket.Seats.Subtract(release)
		}
		if _, err := s.tickets.UpdateTicket(ctx, ticket.ID, patch); err != nil {
			return err
		}

		req.Seats = release
		req.Status = domain.RequestStatusCancelled
		if err := s.requests.Update(ctx, req); err != nil {
			return fmt.Errorf("update ticket request: %w", err)
		}
		result = req
		return nil
	})
	return result, err
}

func (s *ticketRequestService) confirmRefund(ctx context.Context, id string) (*domain.TicketRequest, error) {
	var result *domain.TicketRequest
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		req, err := s.lockPending(ctx, id)
		if err != nil {
			return err
		}
		if err := s.refunds.ProcessRefund(ctx, req); err != nil {
			return err
		}
		result = req
		return nil
	})
	return result, err
}

// edit applies passenger and seat changes without a status change
func (s *ticketRequestService) edit(ctx context.Context, id string, in *dto.UpdateTicketRequestRequest) (*domain.TicketRequest, error) {
	var result *domain.TicketRequest
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		req, err := s.lockRequest(ctx, id)
		if err != nil {
			return err
		}
		if !req.IsEditable() {
			return domain.ErrRequestNotEditable
		}
		in.ApplyPassenger(&req.Passenger)

		switch req.TitleRequest {
		case domain.TitleRefund:
			if in.Seats != nil {
				return domain.ValidationError("refund requests carry no seats")
			}
		case domain.TitleCancelTicket:
			if in.Seats != nil {
				ticket, err := s.tickets.GetTicket(ctx, req.TicketIDValue())
				if err != nil {
					return err
				}
				seats := in.Seats.Intersect(ticket.Seats)
				if len(seats) == 0 {
					return domain.ErrNoSeatOverlap
				}
				req.Seats = seats
			}
		case domain.TitleBookTicket:
			if req.TicketID == nil {
				if in.Seats != nil {
					req.Seats = in.Seats
				}
				break
			}
			if err := s.editIssuedTicket(ctx, req, in.Seats); err != nil {
				return err
			}
		}

		if err := s.requests.Update(ctx, req); err != nil {
			return fmt.Errorf("update ticket request: %w", err)
		}
		result = req
		return nil
	})
	return result, err
}

// editIssuedTicket mirrors a booking edit onto its ticket. A seat change keeps
// the seat count and swaps the reservation in place.
func (s *ticketRequestService) editIssuedTicket(ctx context.Context, req *domain.TicketRequest, seats domain.Seats) error {
	ticket, err := s.tickets.LockTicket(ctx, req.TicketIDValue())
	if err != nil {
		return err
	}

	passenger := req.Passenger
	patch := &domain.TicketPatch{Passenger: &passenger}

	if seats != nil && !seats.SameSet(ticket.Seats) {
		if len(seats) != len(ticket.Seats) {
			return domain.ErrSeatCountMismatch
		}
		if ticket.Status != domain.TicketStatusConfirmed {
			return domain.ErrTicketNotConfirmed
		}
		trip, err := s.lockTrip(ctx, ticket.TripID)
		if err != nil {
			return err
		}
		if err := trip.EnsureBookable(s.now()); err != nil {
			return err
		}
		if _, err := s.inventory.Release(ctx, trip.ID, ticket.Seats); err != nil {
			return err
		}
		if err := s.inventory.Reserve(ctx, trip.ID, seats); err != nil {
			return err
		}
		patch.Seats = seats
		req.Seats = seats
	}

	_, err = s.tickets.UpdateTicket(ctx, ticket.ID, patch)
	return err
}

// Delete hard deletes a request. Seat inventory is not compensated, so a
// request that already issued a ticket cannot be deleted.
func (s *ticketRequestService) Delete(ctx context.Context, id string, principal *domain.Principal) error {
	ctx, span := telemetry.StartSpan(ctx, "service.ticket_request.delete")
	defer span.End()
	span.SetAttributes(telemetry.RequestIDAttr(id))

	req, err := s.Get(ctx, id)
	if err != nil {
		return s.fail(span, err)
	}
	if principal != nil && !ownsOrApproves(principal, req.UserID) {
		return domain.ErrNotOwner
	}
	if req.HasIssuedTicket() {
		return domain.ErrRequestHasTicket
	}
	if err := s.requests.Delete(ctx, id); err != nil {
		return s.fail(span, err)
	}
	return nil
}

// Get retrieves a request by ID
func (s *ticketRequestService) Get(ctx context.Context, id string) (*domain.TicketRequest, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get ticket request: %w", err)
	}
	if req == nil {
		return nil, domain.ErrTicketRequestNotFound
	}
	return req, nil
}

// List lists requests with filters and pagination
func (s *ticketRequestService) List(ctx context.Context, filter *dto.TicketRequestListFilter) ([]*domain.TicketRequest, int, error) {
	filter.SetDefaults()
	reqs, total, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list ticket requests: %w", err)
	}
	return reqs, total, nil
}

func (s *ticketRequestService) lockRequest(ctx context.Context, id string) (*domain.TicketRequest, error) {
	req, err := s.requests.LockByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lock ticket request: %w", err)
	}
	if req == nil {
		return nil, domain.ErrTicketRequestNotFound
	}
	return req, nil
}

// lockPending re-reads the request under lock; a concurrent resolution loses here
func (s *ticketRequestService) lockPending(ctx context.Context, id string) (*domain.TicketRequest, error) {
	req, err := s.lockRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != domain.RequestStatusPending {
		return nil, domain.ErrRequestNotPending
	}
	return req, nil
}

func (s *ticketRequestService) lockTrip(ctx context.Context, id string) (*domain.Trip, error) {
	if id == "" {
		return nil, domain.ErrTripRequired
	}
	trip, err := s.trips.LockByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lock trip: %w", err)
	}
	if trip == nil {
		return nil, domain.ErrTripNotFound
	}
	return trip, nil
}

func (s *ticketRequestService) publish(ctx context.Context, event dto.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.WithContext(ctx).Error("failed to publish event",
			zap.String("topic", event.Topic()),
			zap.String("key", event.Key()),
			zap.Error(err),
		)
	}
}

func (s *ticketRequestService) fail(span trace.Span, err error) error {
	telemetry.RecordError(span, err)
	return err
}

func ownsOrApproves(p *domain.Principal, ownerID string) bool {
	return p.UserID == ownerID || p.HasPermission(domain.PermTicketRequestApprove)
}

// needsApproval reports whether moving a request of title to target has side
// effects on inventory, tickets or balances
func needsApproval(title domain.RequestTitle, target domain.RequestStatus) bool {
	switch target {
	case domain.RequestStatusConfirmed, domain.RequestStatusRefunded, domain.RequestStatusRejected:
		return true
	case domain.RequestStatusCancelled:
		return title == domain.TitleCancelTicket
	}
	return false
}
