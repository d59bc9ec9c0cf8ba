package repository

import (
	"context"
	"errors"

	"github.com/bamanh2802/bookingcar/backend-booking/internal/domain"
	"github.com/bamanh2802/bookingcar/pkg/database"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// maxUplineDepth bounds the parent-chain walk
const maxUplineDepth = 16

// PostgresUserRepository implements UserRepository using PostgreSQL
type PostgresUserRepository struct {
	db *database.PostgresDB
}

// NewPostgresUserRepository creates a new PostgresUserRepository
func NewPostgresUserRepository(db *database.PostgresDB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

// GetByID retrieves a user with its role name
func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `
		SELECT u.id, u.name, u.role_id, r.name, u.parent_id, u.balance, u.created_at, u.updated_at
		FROM users u
		JOIN roles r ON r.id = u.role_id
		WHERE u.id = $1
	`
	user := &domain.User{}
	err := r.db.Conn(ctx).QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Name,
		&user.RoleID,
		&user.RoleName,
		&user.ParentID,
		&user.Balance,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// CreditBalance adds amount to the user's balance
func (r *PostgresUserRepository) CreditBalance(ctx context.Context, id string, amount decimal.Decimal) error {
	result, err := r.db.Conn(ctx).Exec(ctx,
		`UPDATE users SET balance = balance + $2, updated_at = NOW() WHERE id = $1`, id, amount)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// DebitBalance subtracts amount only when the balance covers it
func (r *PostgresUserRepository) DebitBalance(ctx context.Context, id string, amount decimal.Decimal) error {
	result, err := r.db.Conn(ctx).Exec(ctx,
		`UPDATE users SET balance = balance - $2, updated_at = NOW() WHERE id = $1 AND balance >= $2`, id, amount)
	if err != nil {
		if database.IsCheckViolation(err) {
			return domain.ErrInsufficientBalance
		}
		return err
	}
	if result.RowsAffected() > 0 {
		return nil
	}

	user, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if user == nil {
		return domain.ErrUserNotFound
	}
	return domain.ErrInsufficientBalance
}

// ListUplineIDs walks parent_id links, nearest parent first
func (r *PostgresUserRepository) ListUplineIDs(ctx context.Context, userID string) ([]string, error) {
	query := `
		WITH RECURSIVE upline AS (
			SELECT parent_id AS id, 1 AS depth
			FROM users WHERE id = $1 AND parent_id IS NOT NULL
			UNION ALL
			SELECT u.parent_id, up.depth + 1
			FROM users u JOIN upline up ON u.id = up.id
			WHERE u.parent_id IS NOT NULL AND u.parent_id <> $1 AND up.depth < $2
		)
		SELECT DISTINCT ON (id) id FROM upline ORDER BY id, depth
	`
	rows, err := r.db.Conn(ctx).Query(ctx, query, userID, maxUplineDepth)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// ListAdminIDs returns every user holding the Admin role
func (r *PostgresUserRepository) ListAdminIDs(ctx context.Context) ([]string, error) {
	query := `SELECT u.id FROM users u JOIN roles r ON r.id = u.role_id WHERE r.name = $1 ORDER BY u.id`
	rows, err := r.db.Conn(ctx).Query(ctx, query, domain.RoleAdmin)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
