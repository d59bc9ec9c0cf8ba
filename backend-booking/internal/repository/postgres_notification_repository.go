package repository

import (
	"context"

	"github.com/bamanh2802/bookingcar/backend-booking/internal/domain"
	"github.com/bamanh2802/bookingcar/pkg/database"
	"github.com/jackc/pgx/v5"
)

// PostgresNotificationRepository implements NotificationRepository using PostgreSQL
type PostgresNotificationRepository struct {
	db *database.PostgresDB
}

// NewPostgresNotificationRepository creates a new PostgresNotificationRepository
func NewPostgresNotificationRepository(db *database.PostgresDB) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{db: db}
}

// CreateBatch inserts notifications in one round trip
func (r *PostgresNotificationRepository) CreateBatch(ctx context.Context, notifications []*domain.Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, n := range notifications {
		batch.Queue(`
			INSERT INTO notifications (id, user_id, type, payload, is_read, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, n.ID, n.UserID, n.Type, n.Payload, n.IsRead, n.CreatedAt)
	}
	return r.db.Pool().SendBatch(ctx, batch).Close()
}

// ListByUser returns the latest notifications of a user
func (r *PostgresNotificationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Notification, error) {
	query := `
		SELECT id, user_id, type, payload, is_read, created_at
		FROM notifications WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2
	`
	rows, err := r.db.Conn(ctx).Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Notification, error) {
		n := &domain.Notification{}
		err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Payload, &n.IsRead, &n.CreatedAt)
		return n, err
	})
}
