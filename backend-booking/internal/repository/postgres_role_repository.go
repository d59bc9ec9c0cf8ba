package repository

import (
	"context"
	"errors"

	"github.com/bamanh2802/bookingcar/backend-booking/internal/domain"
	"github.com/bamanh2802/bookingcar/pkg/database"
	"github.com/jackc/pgx/v5"
)

// PostgresRoleRepository implements RoleRepository and BankAccountRepository lookups
type PostgresRoleRepository struct {
	db *database.PostgresDB
}

// NewPostgresRoleRepository creates a new PostgresRoleRepository
func NewPostgresRoleRepository(db *database.PostgresDB) *PostgresRoleRepository {
	return &PostgresRoleRepository{db: db}
}

// GetByID retrieves a role with its parent links and direct permissions
func (r *PostgresRoleRepository) GetByID(ctx context.Context, id string) (*domain.Role, error) {
	role := &domain.Role{}
	err := r.db.Conn(ctx).QueryRow(ctx,
		`SELECT id, name, parent_ids::text[], permissions FROM roles WHERE id = $1`, id,
	).Scan(&role.ID, &role.Name, &role.ParentIDs, &role.Permissions)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return role, nil
}

// GetCommission retrieves the commission row of a role
func (r *PostgresRoleRepository) GetCommission(ctx context.Context, roleID string) (*domain.Commission, error) {
	c := &domain.Commission{}
	err := r.db.Conn(ctx).QueryRow(ctx,
		`SELECT role_id, percent FROM commissions WHERE role_id = $1`, roleID,
	).Scan(&c.RoleID, &c.Percent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// PostgresBankAccountRepository implements BankAccountRepository using PostgreSQL
type PostgresBankAccountRepository struct {
	db *database.PostgresDB
}

// NewPostgresBankAccountRepository creates a new PostgresBankAccountRepository
func NewPostgresBankAccountRepository(db *database.PostgresDB) *PostgresBankAccountRepository {
	return &PostgresBankAccountRepository{db: db}
}

// GetByUserID retrieves the payout account of a user
func (r *PostgresBankAccountRepository) GetByUserID(ctx context.Context, userID string) (*domain.BankAccount, error) {
	query := `
		SELECT id, user_id, bank_name, account_number, account_holder, is_verified, created_at
		FROM bank_accounts WHERE user_id = $1
	`
	a := &domain.BankAccount{}
	err := r.db.Conn(ctx).QueryRow(ctx, query, userID).Scan(
		&a.ID,
		&a.UserID,
		&a.BankName,
		&a.AccountNumber,
		&a.AccountHolder,
		&a.IsVerified,
		&a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}
