package repository

import (
	"context"
	"errors"

	"github.com/bamanh2802/bookingcar/backend-booking/internal/domain"
	"github.com/bamanh2802/bookingcar/pkg/database"
	"github.com/jackc/pgx/v5"
)

// PostgresSeatMapRepository implements SeatMapRepository.
// Each reserved seat is one row of seat_map_seats whose primary key
// (seat_map_id, code, floor) rejects a second reservation atomically.
type PostgresSeatMapRepository struct {
	db *database.PostgresDB
}

// NewPostgresSeatMapRepository creates a new PostgresSeatMapRepository
func NewPostgresSeatMapRepository(db *database.PostgresDB) *PostgresSeatMapRepository {
	return &PostgresSeatMapRepository{db: db}
}

// Create creates an empty seat map for a trip
func (r *PostgresSeatMapRepository) Create(ctx context.Context, seatMap *domain.SeatMap) error {
	query := `INSERT INTO seat_maps (id, trip_id, total_booked_seats) VALUES ($1, $2, 0)`
	_, err := r.db.Conn(ctx).Exec(ctx, query, seatMap.ID, seatMap.TripID)
	return err
}

// GetByTripID loads the seat map and its reserved seats
func (r *PostgresSeatMapRepository) GetByTripID(ctx context.Context, tripID string) (*domain.SeatMap, error) {
	conn := r.db.Conn(ctx)

	seatMap := &domain.SeatMap{}
	err := conn.QueryRow(ctx,
		`SELECT id, trip_id, total_booked_seats FROM seat_maps WHERE trip_id = $1`, tripID,
	).Scan(&seatMap.ID, &seatMap.TripID, &seatMap.TotalBookedSeats)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	rows, err := conn.Query(ctx,
		`SELECT code, floor FROM seat_map_seats WHERE seat_map_id = $1 ORDER BY floor, code`, seatMap.ID)
	if err != nil {
		return nil, err
	}
	seats, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Seat, error) {
		var s domain.Seat
		err := row.Scan(&s.Code, &s.Floor)
		return s, err
	})
	if err != nil {
		return nil, err
	}
	seatMap.BookedSeats = seats
	return seatMap, nil
}

// AppendSeats inserts seat rows and increments total_booked_seats
func (r *PostgresSeatMapRepository) AppendSeats(ctx context.Context, seatMapID string, seats domain.Seats) error {
	if len(seats) == 0 {
		return nil
	}
	conn := r.db.Conn(ctx)
	codes, floors := splitSeats(seats)

	_, err := conn.Exec(ctx, `
		INSERT INTO seat_map_seats (seat_map_id, code, floor)
		SELECT $1, s.code, s.floor FROM unnest($2::text[], $3::int[]) AS s(code, floor)
	`, seatMapID, codes, floors)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return domain.ErrSeatAlreadyBooked
		}
		return err
	}

	result, err := conn.Exec(ctx,
		`UPDATE seat_maps SET total_booked_seats = total_booked_seats + $2 WHERE id = $1`,
		seatMapID, len(seats))
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrSeatMapNotFound
	}
	return nil
}

// ReleaseSeats deletes matching seat rows and decrements total_booked_seats
func (r *PostgresSeatMapRepository) ReleaseSeats(ctx context.Context, seatMapID string, seats domain.Seats) (int, error) {
	if len(seats) == 0 {
		return 0, nil
	}
	conn := r.db.Conn(ctx)
	codes, floors := splitSeats(seats)

	result, err := conn.Exec(ctx, `
		DELETE FROM seat_map_seats
		WHERE seat_map_id = $1
		  AND (code, floor) IN (SELECT * FROM unnest($2::text[], $3::int[]))
	`, seatMapID, codes, floors)
	if err != nil {
		return 0, err
	}
	removed := int(result.RowsAffected())
	if removed == 0 {
		return 0, nil
	}

	_, err = conn.Exec(ctx,
		`UPDATE seat_maps SET total_booked_seats = total_booked_seats - $2 WHERE id = $1`,
		seatMapID, removed)
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func splitSeats(seats domain.Seats) ([]string, []int32) {
	codes := make([]string, len(seats))
	floors := make([]int32, len(seats))
	for i, s := range seats {
		codes[i] = s.Code
		floors[i] = int32(s.Floor)
	}
	return codes, floors
}
