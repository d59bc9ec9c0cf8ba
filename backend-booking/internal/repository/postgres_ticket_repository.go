package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bamanh2802/bookingcar/backend-booking/internal/domain"
	"github.com/bamanh2802/bookingcar/pkg/database"
	"github.com/jackc/pgx/v5"
)

const ticketColumns = `id, user_id, trip_id, request_id, price, seats, status, commission_paid,
	passenger_name, passenger_phone, pickup_point, dropoff_point, note, created_at, updated_at`

// PostgresTicketRepository implements TicketRepository using PostgreSQL
type PostgresTicketRepository struct {
	db *database.PostgresDB
}

// NewPostgresTicketRepository creates a new PostgresTicketRepository
func NewPostgresTicketRepository(db *database.PostgresDB) *PostgresTicketRepository {
	return &PostgresTicketRepository{db: db}
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	t := &domain.Ticket{}
	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.TripID,
		&t.RequestID,
		&t.Price,
		&t.Seats,
		&t.Status,
		&t.CommissionPaid,
		&t.Passenger.Name,
		&t.Passenger.Phone,
		&t.Passenger.Pickup,
		&t.Passenger.Dropoff,
		&t.Passenger.Note,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

func (r *PostgresTicketRepository) list(ctx context.Context, query string, args ...interface{}) ([]*domain.Ticket, error) {
	rows, err := r.db.Conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []*domain.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

// Create creates a new ticket
func (r *PostgresTicketRepository) Create(ctx context.Context, t *domain.Ticket) error {
	query := `
		INSERT INTO tickets (id, user_id, trip_id, request_id, price, seats, status, commission_paid,
			passenger_name, passenger_phone, pickup_point, dropoff_point, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := r.db.Conn(ctx).Exec(ctx, query,
		t.ID,
		t.UserID,
		t.TripID,
		t.RequestID,
		t.Price,
		seatsOrEmpty(t.Seats),
		t.Status,
		t.CommissionPaid,
		t.Passenger.Name,
		t.Passenger.Phone,
		t.Passenger.Pickup,
		t.Passenger.Dropoff,
		t.Passenger.Note,
		t.CreatedAt,
		t.UpdatedAt,
	)
	return err
}

// GetByID retrieves a ticket by ID
func (r *PostgresTicketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`
	return scanTicket(r.db.Conn(ctx).QueryRow(ctx, query, id))
}

// LockByID retrieves a ticket and locks its row for the rest of the transaction
func (r *PostgresTicketRepository) LockByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1 FOR UPDATE`
	return scanTicket(r.db.Conn(ctx).QueryRow(ctx, query, id))
}

// Update writes status, seats, commission flag and passenger fields.
// commission_paid is OR-ed so a stale writer can never reset it.
func (r *PostgresTicketRepository) Update(ctx context.Context, t *domain.Ticket) error {
	query := `
		UPDATE tickets
		SET status = $2, seats = $3, commission_paid = commission_paid OR $4,
			passenger_name = $5, passenger_phone = $6, pickup_point = $7, dropoff_point = $8,
			note = $9, updated_at = $10
		WHERE id = $1
	`
	t.UpdatedAt = time.Now()
	result, err := r.db.Conn(ctx).Exec(ctx, query,
		t.ID,
		t.Status,
		seatsOrEmpty(t.Seats),
		t.CommissionPaid,
		t.Passenger.Name,
		t.Passenger.Phone,
		t.Passenger.Pickup,
		t.Passenger.Dropoff,
		t.Passenger.Note,
		t.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrTicketNotFound
	}
	return nil
}

// ListByTrip lists tickets of a trip in the given status
func (r *PostgresTicketRepository) ListByTrip(ctx context.Context, tripID string, status domain.TicketStatus) ([]*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE trip_id = $1 AND status = $2 ORDER BY created_at`
	return r.list(ctx, query, tripID, status)
}

// ListUnpaidByTrip lists confirmed tickets still waiting for commission
func (r *PostgresTicketRepository) ListUnpaidByTrip(ctx context.Context, tripID string) ([]*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets
		WHERE trip_id = $1 AND status = $2 AND NOT commission_paid
		ORDER BY created_at`
	return r.list(ctx, query, tripID, domain.TicketStatusConfirmed)
}

func seatsOrEmpty(s domain.Seats) domain.Seats {
	if s == nil {
		return domain.Seats{}
	}
	return s
}
