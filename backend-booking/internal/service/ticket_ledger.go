package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bamanh2802/bookingcar/backend-booking/internal/domain"
	"github.com/bamanh2802/bookingcar/backend-booking/internal/repository"
	"github.com/google/uuid"
)

// TicketLedger owns issued tickets and their status machine
type TicketLedger struct {
	tickets repository.TicketRepository
}

// NewTicketLedger creates a TicketLedger
func NewTicketLedger(tickets repository.TicketRepository) *TicketLedger {
	return &TicketLedger{tickets: tickets}
}

// CreateTicket stores a new ticket in Pending or Confirmed status
func (l *TicketLedger) CreateTicket(ctx context.Context, t *domain.Ticket) error {
	if t.Status != domain.TicketStatusPending && t.Status != domain.TicketStatusConfirmed {
		return domain.ErrInvalidTransition
	}
	if t.CommissionPaid {
		return domain.ConflictError("a new ticket cannot have commission paid")
	}
	if err := t.Seats.ValidateRequested(); err != nil {
		return err
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	if err := l.tickets.Create(ctx, t); err != nil {
		return fmt.Errorf("create ticket: %w", err)
	}
	return nil
}

// GetTicket retrieves a ticket by ID
func (l *TicketLedger) GetTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	t, err := l.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	if t == nil {
		return nil, domain.ErrTicketNotFound
	}
	return t, nil
}

// LockTicket retrieves a ticket holding its row lock
func (l *TicketLedger) LockTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	t, err := l.tickets.LockByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lock ticket: %w", err)
	}
	if t == nil {
		return nil, domain.ErrTicketNotFound
	}
	return t, nil
}

// UpdateTicket applies patch under the ticket state machine
func (l *TicketLedger) UpdateTicket(ctx context.Context, id string, patch *domain.TicketPatch) (*domain.Ticket, error) {
	t, err := l.LockTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := patch.Apply(t); err != nil {
		return nil, err
	}
	if err := l.tickets.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("update ticket: %w", err)
	}
	return t, nil
}

// ListConfirmed returns the confirmed tickets of a trip
func (l *TicketLedger) ListConfirmed(ctx context.Context, tripID string) ([]*domain.Ticket, error) {
	tickets, err := l.tickets.ListByTrip(ctx, tripID, domain.TicketStatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	return tickets, nil
}

// ListUnpaid returns confirmed tickets of a trip still owed commission
func (l *TicketLedger) ListUnpaid(ctx context.Context, tripID string) ([]*domain.Ticket, error) {
	tickets, err := l.tickets.ListUnpaidByTrip(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("list unpaid tickets: %w", err)
	}
	return tickets, nil
}
