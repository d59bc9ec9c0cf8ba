package service

import (
	"context"

	"github.com/bamanh2802/bookingcar/backend-booking/internal/domain"
	"github.com/bamanh2802/bookingcar/backend-booking/internal/dto"
)

// TicketRequestService defines the interface for the ticket request lifecycle
type TicketRequestService interface {
	// Create files a BookTicket, CancelTicket or Refund request
	Create(ctx context.Context, req *dto.CreateTicketRequestRequest, principal *domain.Principal) (*domain.TicketRequest, error)
	// Update confirms, cancels, refunds, rejects or edits a request
	Update(ctx context.Context, id string, req *dto.UpdateTicketRequestRequest, principal *domain.Principal) (*domain.TicketRequest, error)
	// Delete hard deletes a request that has not issued a ticket
	Delete(ctx context.Context, id string, principal *domain.Principal) error
	// Get retrieves a request by ID
	Get(ctx context.Context, id string) (*domain.TicketRequest, error)
	// List lists requests with filters and pagination
	List(ctx context.Context, filter *dto.TicketRequestListFilter) ([]*domain.TicketRequest, int, error)
}

// CommissionPayer runs the commission cascade for a completed trip
type CommissionPayer interface {
	PayTripCommissions(ctx context.Context, tripID string) (*dto.CascadeResult, error)
}

// EventPublisher publishes domain events after the producing transaction commits
type EventPublisher interface {
	Publish(ctx context.Context, event dto.Event) error
}

// PresenceStore tracks which users are online and pushes messages to them
type PresenceStore interface {
	MarkOnline(ctx context.Context, userID string) error
	Online(ctx context.Context, userIDs []string) ([]string, error)
	Push(ctx context.Context, userID string, payload []byte) error
}
