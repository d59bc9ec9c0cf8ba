package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CommissionReason tells the two commission tiers apart
type CommissionReason string

const (
	ReasonCommissionPaid   CommissionReason = "CommissionPaid"
	ReasonAgencyCommission CommissionReason = "AgencyCommission"
)

// CommissionPaidHistory is an append-only payout record
type CommissionPaidHistory struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	TicketID  string           `json:"ticket_id"`
	TripID    string           `json:"trip_id"`
	Amount    decimal.Decimal  `json:"amount"`
	Reason    CommissionReason `json:"reason"`
	CreatedAt time.Time        `json:"created_at"`
}

// Refund history values
const (
	RefundStatusCompleted   = "Completed"
	RefundReasonUserRequest = "UserRequest"
)

// RefundHistory is an append-only refund record
type RefundHistory struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	RequestID string          `json:"request_id"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
	Reason    string          `json:"reason"`
	CreatedAt time.Time       `json:"created_at"`
}

// CommissionAmount computes price × percent × seats / 100, rounded to cents
func CommissionAmount(price, percent decimal.Decimal, seats int) decimal.Decimal {
	return price.Mul(percent).Mul(decimal.NewFromInt(int64(seats))).Div(decimal.NewFromInt(100)).Round(2)
}
