package repository

import (
	"context"

	"github.com/bamanh2802/bookingcar/backend-booking/internal/domain"
	"github.com/bamanh2802/bookingcar/pkg/database"
	"github.com/jackc/pgx/v5"
)

// PostgresLedgerRepository appends commission and refund history rows
type PostgresLedgerRepository struct {
	db *database.PostgresDB
}

// NewPostgresLedgerRepository creates a new PostgresLedgerRepository
func NewPostgresLedgerRepository(db *database.PostgresDB) *PostgresLedgerRepository {
	return &PostgresLedgerRepository{db: db}
}

// InsertCommissionPaid appends a commission payout row
func (r *PostgresLedgerRepository) InsertCommissionPaid(ctx context.Context, e *domain.CommissionPaidHistory) error {
	query := `
		INSERT INTO commission_paid_histories (id, user_id, ticket_id, trip_id, amount, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Conn(ctx).Exec(ctx, query, e.ID, e.UserID, e.TicketID, e.TripID, e.Amount, e.Reason, e.CreatedAt)
	return err
}

// InsertRefund appends a refund row
func (r *PostgresLedgerRepository) InsertRefund(ctx context.Context, e *domain.RefundHistory) error {
	query := `
		INSERT INTO refund_histories (id, user_id, request_id, amount, status, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Conn(ctx).Exec(ctx, query, e.ID, e.UserID, e.RequestID, e.Amount, e.Status, e.Reason, e.CreatedAt)
	return err
}

// ListCommissionByTicket returns the payout rows written for a ticket
func (r *PostgresLedgerRepository) ListCommissionByTicket(ctx context.Context, ticketID string) ([]*domain.CommissionPaidHistory, error) {
	query := `
		SELECT id, user_id, ticket_id, trip_id, amount, reason, created_at
		FROM commission_paid_histories WHERE ticket_id = $1 ORDER BY created_at
	`
	rows, err := r.db.Conn(ctx).Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.CommissionPaidHistory, error) {
		e := &domain.CommissionPaidHistory{}
		err := row.Scan(&e.ID, &e.UserID, &e.TicketID, &e.TripID, &e.Amount, &e.Reason, &e.CreatedAt)
		return e, err
	})
}

// ListRefundsByUser returns the refund rows of a user
func (r *PostgresLedgerRepository) ListRefundsByUser(ctx context.Context, userID string) ([]*domain.RefundHistory, error) {
	query := `
		SELECT id, user_id, request_id, amount, status, reason, created_at
		FROM refund_histories WHERE user_id = $1 ORDER BY created_at
	`
	rows, err := r.db.Conn(ctx).Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.RefundHistory, error) {
		e := &domain.RefundHistory{}
		err := row.Scan(&e.ID, &e.UserID, &e.RequestID, &e.Amount, &e.Status, &e.Reason, &e.CreatedAt)
		return e, err
	})
}
