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
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultAgencyCommissionPercent is paid to a non-admin parent of the ticket owner
var DefaultAgencyCommissionPercent = decimal.RequireFromString("1.5")

// CommissionService pays commissions for completed trips. Every ticket is
// settled in its own transaction; a failing ticket stays unpaid for the next sweep.
type CommissionService struct {
	tx            repository.Transactor
	trips         repository.TripRepository
	tickets       *TicketLedger
	users         repository.UserRepository
	roles         repository.RoleRepository
	ledger        repository.LedgerRepository
	agencyPercent decimal.Decimal
	log           *logger.Logger
	metrics       *Metrics
}

// CommissionServiceConfig holds the commission collaborators
type CommissionServiceConfig struct {
	Tx            repository.Transactor
	Trips         repository.TripRepository
	Tickets       *TicketLedger
	Users         repository.UserRepository
	Roles         repository.RoleRepository
	Ledger        repository.LedgerRepository
	// AgencyPercent overrides the default agency rate when set; zero turns the payout off
	AgencyPercent *decimal.Decimal
	Logger        *logger.Logger
	Metrics       *Metrics
}

// NewCommissionService creates a CommissionService
func NewCommissionService(cfg *CommissionServiceConfig) *CommissionService {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	agency := DefaultAgencyCommissionPercent
	if cfg.AgencyPercent != nil {
		agency = *cfg.AgencyPercent
	}
	return &CommissionService{
		tx:            cfg.Tx,
		trips:         cfg.Trips,
		tickets:       cfg.Tickets,
		users:         cfg.Users,
		roles:         cfg.Roles,
		ledger:        cfg.Ledger,
		agencyPercent: agency,
		log:           log.Named("commission"),
		metrics:       orNopMetrics(cfg.Metrics),
	}
}

// PayTripCommissions settles every confirmed, unpaid ticket of a completed trip
func (s *CommissionService) PayTripCommissions(ctx context.Context, tripID string) (*dto.CascadeResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.commission.pay_trip")
	defer span.End()
	span.SetAttributes(telemetry.TripIDAttr(tripID))
	start := time.Now()

	trip, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("get trip: %w", err)
	}
	if trip == nil {
		return nil, domain.ErrTripNotFound
	}
	if trip.Status != domain.TripStatusCompleted {
		return nil, domain.ErrTripNotCompleted
	}

	unpaid, err := s.tickets.ListUnpaid(ctx, tripID)
	if err != nil {
		return nil, err
	}

	log := s.log.WithContext(ctx)
	result := &dto.CascadeResult{TripID: tripID}
	for _, t := range unpaid {
		credited, paid, err := s.payTicket(ctx, t.ID)
		switch {
		case err != nil:
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", t.ID, err))
			s.metrics.CommissionFailures.Inc(ctx, telemetry.TripIDAttr(tripID))
			log.Error("commission payout failed",
				zap.String("trip_id", tripID),
				zap.String("ticket_id", t.ID),
				zap.Error(err),
			)
		case paid:
			result.Paid++
			result.Credited = appendUnique(result.Credited, credited...)
		default:
			result.Skipped++
		}
	}

	s.metrics.CascadeDuration.Record(ctx, float64(time.Since(start).Milliseconds()), telemetry.TripIDAttr(tripID))
	log.Info("commission cascade finished",
		zap.String("trip_id", tripID),
		zap.Int("paid", result.Paid),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// SweepUnpaid pays completed trips that still carry unpaid tickets
func (s *CommissionService) SweepUnpaid(ctx context.Context, limit int) ([]*dto.CascadeResult, error) {
	tripIDs, err := s.trips.ListCompletedWithUnpaid(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list unpaid trips: %w", err)
	}

	results := make([]*dto.CascadeResult, 0, len(tripIDs))
	for _, id := range tripIDs {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
		res, err := s.PayTripCommissions(ctx, id)
		if err != nil {
			s.log.WithContext(ctx).Error("sweep trip failed", zap.String("trip_id", id), zap.Error(err))
			continue
		}
		results = append(results, res)
	}
	return results, nil
}

// payTicket settles one ticket and returns the credited users. paid is false
// when the ticket was already settled.
func (s *CommissionService) payTicket(ctx context.Context, ticketID string) (credited []string, paid bool, err error) {
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		credited = credited[:0]
		ticket, err := s.tickets.LockTicket(ctx, ticketID)
		if err != nil {
			return err
		}
		if ticket.CommissionPaid || ticket.Status != domain.TicketStatusConfirmed {
			return nil
		}

		owner, err := s.users.GetByID(ctx, ticket.UserID)
		if err != nil {
			return fmt.Errorf("get owner: %w", err)
		}
		if owner == nil {
			return domain.ErrUserNotFound
		}

		percent, err := s.percentFor(ctx, owner.RoleID)
		if err != nil {
			return err
		}
		if ok, err := s.credit(ctx, owner.ID, ticket, percent, domain.ReasonCommissionPaid); err != nil {
			return err
		} else if ok {
			credited = append(credited, owner.ID)
		}

		if owner.ParentID != nil {
			parent, err := s.users.GetByID(ctx, *owner.ParentID)
			if err != nil {
				return fmt.Errorf("get parent: %w", err)
			}
			if parent != nil && !parent.IsAdmin() {
				if ok, err := s.credit(ctx, parent.ID, ticket, s.agencyPercent, domain.ReasonAgencyCommission); err != nil {
					return err
				} else if ok {
					credited = append(credited, parent.ID)
				}
			}
		}

		done := domain.TicketStatusDone
		settled := true
		if _, err := s.tickets.UpdateTicket(ctx, ticket.ID, &domain.TicketPatch{Status: &done, CommissionPaid: &settled}); err != nil {
			return err
		}
		paid = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return credited, paid, nil
}

func (s *CommissionService) percentFor(ctx context.Context, roleID string) (decimal.Decimal, error) {
	c, err := s.roles.GetCommission(ctx, roleID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("get commission: %w", err)
	}
	if c == nil {
		return decimal.Zero, nil
	}
	return c.Percent, nil
}

// credit pays amount for one tier. A zero amount writes nothing and reports false.
func (s *CommissionService) credit(ctx context.Context, userID string, ticket *domain.Ticket, percent decimal.Decimal, reason domain.CommissionReason) (bool, error) {
	amount := domain.CommissionAmount(ticket.Price, percent, ticket.SeatCount())
	if !amount.IsPositive() {
		return false, nil
	}

	if err := s.users.CreditBalance(ctx, userID, amount); err != nil {
		return false, fmt.Errorf("credit %s: %w", reason, err)
	}
	entry := &domain.CommissionPaidHistory{
		ID:        uuid.New().String(),
		UserID:    userID,
		TicketID:  ticket.ID,
		TripID:    ticket.TripID,
		Amount:    amount,
		Reason:    reason,
		CreatedAt: time.Now(),
	}
	if err := s.ledger.InsertCommissionPaid(ctx, entry); err != nil {
		return false, fmt.Errorf("insert commission history: %w", err)
	}
	s.metrics.CommissionPayouts.Inc(ctx, telemetry.TicketIDAttr(ticket.ID))
	return true, nil
}

func appendUnique(dst []string, ids ...string) []string {
	for _, id := range ids {
		found := false
		for _, have := range dst {
			if have == id {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, id)
		}
	}
	return dst
}
