package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bamanh2802/bookingcar/backend-booking/internal/domain"
	"github.com/bamanh2802/bookingcar/pkg/database"
	"github.com/jackc/pgx/v5"
)

const tripColumns = `id, ticket_type, total_seats, available_seats, start_time, status, created_at, updated_at`

// PostgresTripRepository implements TripRepository using PostgreSQL
type PostgresTripRepository struct {
	db *database.PostgresDB
}

// NewPostgresTripRepository creates a new PostgresTripRepository
func NewPostgresTripRepository(db *database.PostgresDB) *PostgresTripRepository {
	return &PostgresTripRepository{db: db}
}

// scanTrip scans a row into a Trip struct
func (r *PostgresTripRepository) scanTrip(row pgx.Row) (*domain.Trip, error) {
	trip := &domain.Trip{}
	err := row.Scan(
		&trip.ID,
		&trip.TicketType,
		&trip.TotalSeats,
		&trip.AvailableSeats,
		&trip.StartTime,
		&trip.Status,
		&trip.CreatedAt,
		&trip.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return trip, nil
}

// Create creates a new trip
func (r *PostgresTripRepository) Create(ctx context.Context, trip *domain.Trip) error {
	query := `
		INSERT INTO trips (id, ticket_type, total_seats, available_seats, start_time, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Conn(ctx).Exec(ctx, query,
		trip.ID,
		trip.TicketType,
		trip.TotalSeats,
		trip.AvailableSeats,
		trip.StartTime,
		trip.Status,
		trip.CreatedAt,
		trip.UpdatedAt,
	)
	return err
}

// GetByID retrieves a trip by ID
func (r *PostgresTripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1`
	return r.scanTrip(r.db.Conn(ctx).QueryRow(ctx, query, id))
}

// LockByID retrieves a trip and locks its row for the rest of the transaction
func (r *PostgresTripRepository) LockByID(ctx context.Context, id string) (*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1 FOR UPDATE`
	return r.scanTrip(r.db.Conn(ctx).QueryRow(ctx, query, id))
}

// UpdateStatus sets the trip status
func (r *PostgresTripRepository) UpdateStatus(ctx context.Context, id string, status domain.TripStatus) error {
	query := `UPDATE trips SET status = $2, updated_at = $3 WHERE id = $1`
	result, err := r.db.Conn(ctx).Exec(ctx, query, id, status, time.Now())
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrTripNotFound
	}
	return nil
}

// AdjustAvailableSeats applies delta to available_seats when the result stays in range
func (r *PostgresTripRepository) AdjustAvailableSeats(ctx context.Context, id string, delta int) (*domain.Trip, error) {
	query := `
		UPDATE trips
		SET available_seats = available_seats + $2, updated_at = $3
		WHERE id = $1 AND available_seats + $2 BETWEEN 0 AND total_seats
		RETURNING ` + tripColumns
	trip, err := r.scanTrip(r.db.Conn(ctx).QueryRow(ctx, query, id, delta, time.Now()))
	if err != nil {
		return nil, err
	}
	if trip != nil {
		return trip, nil
	}

	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, domain.ErrTripNotFound
	}
	return nil, domain.ErrCapacityExceeded
}

// Resize sets total_seats and shifts available_seats by the same amount so booked seats are kept
func (r *PostgresTripRepository) Resize(ctx context.Context, id string, totalSeats int) (*domain.Trip, error) {
	if totalSeats <= 0 {
		return nil, domain.ValidationError("total_seats must be greater than zero")
	}
	query := `
		UPDATE trips
		SET available_seats = $2 - (total_seats - available_seats), total_seats = $2, updated_at = $3
		WHERE id = $1 AND $2 >= total_seats - available_seats
		RETURNING ` + tripColumns
	trip, err := r.scanTrip(r.db.Conn(ctx).QueryRow(ctx, query, id, totalSeats, time.Now()))
	if err != nil {
		return nil, err
	}
	if trip != nil {
		return trip, nil
	}

	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, domain.ErrTripNotFound
	}
	return nil, domain.ErrCapacityExceeded
}

// ListCompletedWithUnpaid returns completed trips that still carry unpaid confirmed tickets
func (r *PostgresTripRepository) ListCompletedWithUnpaid(ctx context.Context, limit int) ([]string, error) {
	query := `
		SELECT DISTINCT t.id
		FROM trips t
		JOIN tickets k ON k.trip_id = t.id
		WHERE t.status = $1 AND k.status = $2 AND NOT k.commission_paid
		ORDER BY t.id
		LIMIT $3
	`
	rows, err := r.db.Conn(ctx).Query(ctx, query, domain.TripStatusCompleted, domain.TicketStatusConfirmed, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
