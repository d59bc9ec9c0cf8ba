package domain

import (
	"encoding/json"
	"time"
)

// Notification types
const (
	NotificationTicketRequestCreated   = "ticket_request.created"
	NotificationTicketRequestConfirmed = "ticket_request.confirmed"
	NotificationTicketCancelled        = "ticket.cancelled"
	NotificationCommissionPaid         = "commission.paid"
)

// Notification is a persisted message for one user
type Notification struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	IsRead    bool            `json:"is_read"`
	CreatedAt time.Time       `json:"created_at"`
}
