package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bamanh2802/bookingcar/backend-booking/internal/domain"
	"github.com/bamanh2802/bookingcar/backend-booking/internal/dto"
	"github.com/bamanh2802/bookingcar/pkg/database"
	"github.com/jackc/pgx/v5"
)

const ticketRequestColumns = `id, user_id, created_by, trip_id, ticket_id, title_request, ticket_type,
	seats, price, amount, status, passenger_name, passenger_phone, pickup_point, dropoff_point, note,
	created_at, updated_at`

// PostgresTicketRequestRepository implements TicketRequestRepository using PostgreSQL
type PostgresTicketRequestRepository struct {
	db *database.PostgresDB
}

// NewPostgresTicketRequestRepository creates a new PostgresTicketRequestRepository
func NewPostgresTicketRequestRepository(db *database.PostgresDB) *PostgresTicketRequestRepository {
	return &PostgresTicketRequestRepository{db: db}
}

func scanTicketRequest(row pgx.Row) (*domain.TicketRequest, error) {
	r := &domain.TicketRequest{}
	err := row.Scan(
		&r.ID,
		&r.UserID,
		&r.CreatedBy,
		&r.TripID,
		&r.TicketID,
		&r.TitleRequest,
		&r.TicketType,
		&r.Seats,
		&r.Price,
		&r.Amount,
		&r.Status,
		&r.Passenger.Name,
		&r.Passenger.Phone,
		&r.Passenger.Pickup,
		&r.Passenger.Dropoff,
		&r.Passenger.Note,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return r, nil
}

// Create creates a new ticket request
func (r *PostgresTicketRequestRepository) Create(ctx context.Context, req *domain.TicketRequest) error {
	query := `
		INSERT INTO ticket_requests (id, user_id, created_by, trip_id, ticket_id, title_request, ticket_type,
			seats, price, amount, status, passenger_name, passenger_phone, pickup_point, dropoff_point, note,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err := r.db.Conn(ctx).Exec(ctx, query,
		req.ID,
		req.UserID,
		req.CreatedBy,
		req.TripID,
		req.TicketID,
		req.TitleRequest,
		req.TicketType,
		seatsOrEmpty(req.Seats),
		req.Price,
		req.Amount,
		req.Status,
		req.Passenger.Name,
		req.Passenger.Phone,
		req.Passenger.Pickup,
		req.Passenger.Dropoff,
		req.Passenger.Note,
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil && database.IsUniqueViolation(err) {
		// ux_ticket_requests_cancel
		return domain.ErrDuplicateCancelRequest
	}
	return err
}

// GetByID retrieves a ticket request by ID
func (r *PostgresTicketRequestRepository) GetByID(ctx context.Context, id string) (*domain.TicketRequest, error) {
	query := `SELECT ` + ticketRequestColumns + ` FROM ticket_requests WHERE id = $1`
	return scanTicketRequest(r.db.Conn(ctx).QueryRow(ctx, query, id))
}

// LockByID retrieves a ticket request and locks its row for the rest of the transaction
func (r *PostgresTicketRequestRepository) LockByID(ctx context.Context, id string) (*domain.TicketRequest, error) {
	query := `SELECT ` + ticketRequestColumns + ` FROM ticket_requests WHERE id = $1 FOR UPDATE`
	return scanTicketRequest(r.db.Conn(ctx).QueryRow(ctx, query, id))
}

// Update writes the mutable columns of a ticket request
func (r *PostgresTicketRequestRepository) Update(ctx context.Context, req *domain.TicketRequest) error {
	query := `
		UPDATE ticket_requests
		SET ticket_id = $2, seats = $3, status = $4, passenger_name = $5, passenger_phone = $6,
			pickup_point = $7, dropoff_point = $8, note = $9, updated_at = $10
		WHERE id = $1
	`
	req.UpdatedAt = time.Now()
	result, err := r.db.Conn(ctx).Exec(ctx, query,
		req.ID,
		req.TicketID,
		seatsOrEmpty(req.Seats),
		req.Status,
		req.Passenger.Name,
		req.Passenger.Phone,
		req.Passenger.Pickup,
		req.Passenger.Dropoff,
		req.Passenger.Note,
		req.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrTicketRequestNotFound
	}
	return nil
}

// Delete hard deletes a ticket request
func (r *PostgresTicketRequestRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Conn(ctx).Exec(ctx, `DELETE FROM ticket_requests WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrTicketRequestNotFound
	}
	return nil
}

// HasCancelRequest reports whether any cancel request was filed for the ticket
func (r *PostgresTicketRequestRepository) HasCancelRequest(ctx context.Context, ticketID string) (bool, error) {
	query := `SELECT EXISTS (
		SELECT 1 FROM ticket_requests
		WHERE ticket_id = $1 AND title_request = $2
	)`
	var exists bool
	err := r.db.Conn(ctx).QueryRow(ctx, query, ticketID, domain.TitleCancelTicket).Scan(&exists)
	return exists, err
}

// List lists ticket requests with filters and pagination
func (r *PostgresTicketRequestRepository) List(ctx context.Context, filter *dto.TicketRequestListFilter) ([]*domain.TicketRequest, int, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		where = append(where, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("user_id", filter.UserID)
	add("trip_id", filter.TripID)
	add("status", filter.Status)
	add("title_request", filter.TitleRequest)

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	conn := r.db.Conn(ctx)

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM ticket_requests`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.PerPage, filter.Offset())
	query := fmt.Sprintf(`SELECT %s FROM ticket_requests%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		ticketRequestColumns, clause, len(args)-1, len(args))
	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var requests []*domain.TicketRequest
	for rows.Next() {
		req, err := scanTicketRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		requests = append(requests, req)
	}
	return requests, total, rows.Err()
}
