package repository

import (
	"context"

	"github.com/bamanh2802/bookingcar/backend-booking/internal/domain"
	"github.com/bamanh2802/bookingcar/backend-booking/internal/dto"
	"github.com/shopspring/decimal"
)

// Repositories return (nil, nil) when a row does not exist; services map that to a NotFound error.

// Transactor runs fn inside one unit of work. Repository calls made with the
// ctx handed to fn join the same transaction.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TripRepository defines the interface for trip data access
type TripRepository interface {
	Create(ctx context.Context, trip *domain.Trip) error
	GetByID(ctx context.Context, id string) (*domain.Trip, error)
	// LockByID reads the trip and holds a row lock until the transaction ends
	LockByID(ctx context.Context, id string) (*domain.Trip, error)
	UpdateStatus(ctx context.Context, id string, status domain.TripStatus) error
	// AdjustAvailableSeats is the only capacity mutation. It fails with
	// domain.ErrCapacityExceeded when the result would leave [0, total_seats].
	AdjustAvailableSeats(ctx context.Context, id string, delta int) (*domain.Trip, error)
	// Resize changes total_seats and available_seats together, keeping booked seats
	Resize(ctx context.Context, id string, totalSeats int) (*domain.Trip, error)
	// ListCompletedWithUnpaid returns completed trips that still carry unpaid confirmed tickets
	ListCompletedWithUnpaid(ctx context.Context, limit int) ([]string, error)
}

// SeatMapRepository defines the interface for the per-trip seat inventory
type SeatMapRepository interface {
	Create(ctx context.Context, seatMap *domain.SeatMap) error
	GetByTripID(ctx context.Context, tripID string) (*domain.SeatMap, error)
	// AppendSeats reserves seats and bumps the counter. A seat already present
	// yields domain.ErrSeatAlreadyBooked and nothing is written.
	AppendSeats(ctx context.Context, seatMapID string, seats domain.Seats) error
	// ReleaseSeats removes matching seats and returns how many were removed
	ReleaseSeats(ctx context.Context, seatMapID string, seats domain.Seats) (int, error)
}

// TicketRepository defines the interface for ticket data access
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	LockByID(ctx context.Context, id string) (*domain.Ticket, error)
	Update(ctx context.Context, ticket *domain.Ticket) error
	ListByTrip(ctx context.Context, tripID string, status domain.TicketStatus) ([]*domain.Ticket, error)
	// ListUnpaidByTrip returns confirmed tickets with commission_paid = false
	ListUnpaidByTrip(ctx context.Context, tripID string) ([]*domain.Ticket, error)
}

// TicketRequestRepository defines the interface for ticket request data access
type TicketRequestRepository interface {
	Create(ctx context.Context, req *domain.TicketRequest) error
	GetByID(ctx context.Context, id string) (*domain.TicketRequest, error)
	LockByID(ctx context.Context, id string) (*domain.TicketRequest, error)
	Update(ctx context.Context, req *domain.TicketRequest) error
	Delete(ctx context.Context, id string) error
	HasCancelRequest(ctx context.Context, ticketID string) (bool, error)
	List(ctx context.Context, filter *dto.TicketRequestListFilter) ([]*domain.TicketRequest, int, error)
}

// UserRepository defines the interface for user balances and hierarchy
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	CreditBalance(ctx context.Context, id string, amount decimal.Decimal) error
	// DebitBalance fails with domain.ErrInsufficientBalance when balance < amount
	DebitBalance(ctx context.Context, id string, amount decimal.Decimal) error
	// ListUplineIDs returns the parent chain of userID, nearest first
	ListUplineIDs(ctx context.Context, userID string) ([]string, error)
	ListAdminIDs(ctx context.Context) ([]string, error)
}

// RoleRepository defines the interface for roles and their commission rates
type RoleRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Role, error)
	GetCommission(ctx context.Context, roleID string) (*domain.Commission, error)
}

// BankAccountRepository defines the interface for payout accounts
type BankAccountRepository interface {
	GetByUserID(ctx context.Context, userID string) (*domain.BankAccount, error)
}

// LedgerRepository appends audit history rows
type LedgerRepository interface {
	InsertCommissionPaid(ctx context.Context, entry *domain.CommissionPaidHistory) error
	InsertRefund(ctx context.Context, entry *domain.RefundHistory) error
	ListCommissionByTicket(ctx context.Context, ticketID string) ([]*domain.CommissionPaidHistory, error)
	ListRefundsByUser(ctx context.Context, userID string) ([]*domain.RefundHistory, error)
}

// NotificationRepository persists notifications
type NotificationRepository interface {
	CreateBatch(ctx context.Context, notifications []*domain.Notification) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Notification, error)
}
