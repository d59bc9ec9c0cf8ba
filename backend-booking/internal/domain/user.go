package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RoleAdmin is the role name that never receives agency commission
const RoleAdmin = "Admin"

// User is an account that books tickets and holds a commission balance
type User struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	RoleID    string          `json:"role_id"`
	RoleName  string          `json:"role_name"`
	ParentID  *string         `json:"parent_id,omitempty"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// IsAdmin reports whether the user holds the Admin role
func (u *User) IsAdmin() bool {
	return u.RoleName == RoleAdmin
}

// Role is a node in the permission DAG
type Role struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	ParentIDs   []string `json:"parent_ids"`
	Permissions []string `json:"permissions"`
}

// Commission is the payout percent for a role
type Commission struct {
	RoleID  string          `json:"role_id"`
	Percent decimal.Decimal `json:"percent"`
}

// BankAccount is a user's payout destination
type BankAccount struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	BankName      string    `json:"bank_name"`
	AccountNumber string    `json:"account_number"`
	AccountHolder string    `json:"account_holder"`
	IsVerified    bool      `json:"is_verified"`
	CreatedAt     time.Time `json:"created_at"`
}

// Principal is the authenticated caller
type Principal struct {
	UserID      string
	RoleID      string
	RoleName    string
	Permissions []string
}

// HasPermission reports whether the principal carries perm
func (p *Principal) HasPermission(perm string) bool {
	for _, have := range p.Permissions {
		if have == perm {
			return true
		}
	}
	return false
}

// Permission names checked by the HTTP layer
const (
	PermTicketRequestCreate  = "ticket_request:create"
	PermTicketRequestRead    = "ticket_request:read"
	PermTicketRequestApprove = "ticket_request:approve"
	PermTicketRead           = "ticket:read"
	PermTripRead             = "trip:read"
	PermTripManage           = "trip:manage"
	PermCommissionPay        = "commission:pay"
)
